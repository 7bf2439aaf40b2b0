// Package capture produces best-effort visual snapshots of the running
// screen with sensitive regions blanked for the duration of the capture.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vantora/guardian/internal/metrics"
)

// Screen is the capability interface Guardian needs from the UI layer.
// MaskSensitive and the returned restore must always be paired; the
// capturer guarantees restoration on every exit path.
type Screen interface {
	// MaskSensitive blanks sensitive regions and returns the paired restore
	// function. restore may be non-nil even when err is set, in which case
	// it must still be called.
	MaskSensitive(ctx context.Context) (restore func(), err error)

	// Render produces a compressed image encoding of the current screen.
	Render(ctx context.Context) ([]byte, error)
}

// DefaultTimeout bounds how long a render may run before it is abandoned.
const DefaultTimeout = 3 * time.Second

// Capturer orchestrates mask -> render -> restore with a timeout race.
type Capturer struct {
	screen  Screen
	timeout time.Duration
	logger  *slog.Logger
}

// NewCapturer constructs a Capturer over the supplied screen capability.
func NewCapturer(screen Screen, timeout time.Duration, logger *slog.Logger) *Capturer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Capturer{screen: screen, timeout: timeout, logger: logger}
}

// Capture returns a compressed screenshot, or nil on any failure. It never
// returns an error: capture degrades to "no screenshot" rather than blocking
// incident creation.
func (c *Capturer) Capture(ctx context.Context) []byte {
	if c == nil || c.screen == nil {
		return nil
	}

	start := time.Now()
	data := c.capture(ctx)
	metrics.ObserveCapture(time.Since(start), data != nil)
	return data
}

func (c *Capturer) capture(ctx context.Context) (data []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("screen capture panicked", slog.Any("panic", r))
			data = nil
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	restore, err := c.screen.MaskSensitive(ctx)
	if restore != nil {
		// Restoration must happen no matter which branch of the race wins.
		defer restore()
	}
	if err != nil {
		c.logger.Debug("sensitive-element masking failed", slog.Any("error", err))
		return nil
	}

	type renderResult struct {
		data []byte
		err  error
	}
	done := make(chan renderResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- renderResult{err: fmt.Errorf("renderer panicked: %v", r)}
			}
		}()
		d, renderErr := c.screen.Render(ctx)
		done <- renderResult{data: d, err: renderErr}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			c.logger.Debug("screen render failed", slog.Any("error", res.err))
			return nil
		}
		if len(res.data) == 0 {
			return nil
		}
		return res.data
	case <-ctx.Done():
		// The renderer overran its budget; abandon it. The masked elements
		// are still restored by the deferred call above.
		c.logger.Debug("screen render timed out", slog.Duration("timeout", c.timeout))
		return nil
	}
}
