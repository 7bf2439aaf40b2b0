package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// sensitiveSelectors is the fixed list of regions blanked before a capture.
// New financial/PII fields must be tagged by the owning screen; there is no
// automated coverage check.
var sensitiveSelectors = []string{
	`input[type="password"]`,
	`input[type="email"]`,
	`input[name*="iban" i]`,
	`input[name*="card" i]`,
	`input[name*="account" i]`,
	`input[autocomplete="cc-number"]`,
	`[data-sensitive="true"]`,
	`[data-financial="true"]`,
	`[data-personal="true"]`,
	// Guardian must never capture its own panel.
	`[data-guardian-panel]`,
	`.guardian-panel`,
}

// RodScreen implements Screen against a live browser page over the Chrome
// DevTools Protocol.
type RodScreen struct {
	page    *rod.Page
	scale   float64
	quality int
	logger  *slog.Logger
}

// NewRodScreen wraps a rod page. scale reduces the render resolution
// (0 < scale <= 1); quality is the JPEG quality used for compression.
func NewRodScreen(page *rod.Page, scale float64, quality int, logger *slog.Logger) *RodScreen {
	if scale <= 0 || scale > 1 {
		scale = 0.5
	}
	if quality <= 0 || quality > 100 {
		quality = 60
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RodScreen{page: page, scale: scale, quality: quality, logger: logger}
}

// MaskSensitive overwrites the styling of every element matching the
// sensitive selector list, recording prior styling on the page itself. The
// returned restore reverts the recorded elements and always runs on its own
// deadline so restoration survives an expired capture context.
func (s *RodScreen) MaskSensitive(ctx context.Context) (func(), error) {
	selectors, err := json.Marshal(sensitiveSelectors)
	if err != nil {
		return nil, fmt.Errorf("encode selectors: %w", err)
	}

	maskJS := fmt.Sprintf(`
	() => {
		const selectors = %s;
		const marks = [];
		for (const sel of selectors) {
			let matched;
			try {
				matched = document.querySelectorAll(sel);
			} catch (e) {
				continue;
			}
			for (const el of matched) {
				marks.push({
					el,
					color: el.style.color,
					background: el.style.backgroundColor,
				});
				el.style.color = 'transparent';
				el.style.backgroundColor = '#c8c8c8';
			}
		}
		window.__guardianMaskState = marks;
		return marks.length;
	}
	`, string(selectors))

	restore := func() {
		restoreCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, restoreErr := s.page.Context(restoreCtx).Evaluate(&rod.EvalOptions{
			JS: `
			() => {
				const marks = window.__guardianMaskState || [];
				for (const m of marks) {
					m.el.style.color = m.color;
					m.el.style.backgroundColor = m.background;
				}
				delete window.__guardianMaskState;
				return marks.length;
			}
			`,
			ByValue: true,
		})
		if restoreErr != nil {
			s.logger.Warn("failed to restore masked elements", slog.Any("error", restoreErr))
		}
	}

	res, err := s.page.Context(ctx).Evaluate(&rod.EvalOptions{JS: maskJS, ByValue: true})
	if err != nil {
		// Some elements may already be blanked; the pairing discipline still
		// requires the caller to run restore.
		return restore, fmt.Errorf("mask sensitive elements: %w", err)
	}
	s.logger.Debug("masked sensitive elements", slog.Int("count", res.Value.Int()))
	return restore, nil
}

// Render captures the page viewport as a reduced-scale JPEG.
func (s *RodScreen) Render(ctx context.Context) ([]byte, error) {
	res, err := s.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:      `() => ({w: window.innerWidth, h: window.innerHeight})`,
		ByValue: true,
	})
	if err != nil {
		return nil, fmt.Errorf("read viewport: %w", err)
	}

	width := res.Value.Get("w").Num()
	height := res.Value.Get("h").Num()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("viewport not measurable")
	}

	quality := s.quality
	req := &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: &quality,
		Clip: &proto.PageViewport{
			X:      0,
			Y:      0,
			Width:  width,
			Height: height,
			Scale:  s.scale,
		},
	}
	return s.page.Context(ctx).Screenshot(false, req)
}

// RodNavigator drives page navigation for remedial actions.
type RodNavigator struct {
	page      *rod.Page
	homeURL   string
	signInURL string
	logger    *slog.Logger
}

// NewRodNavigator wraps a rod page with the application's entry URLs.
func NewRodNavigator(page *rod.Page, homeURL, signInURL string, logger *slog.Logger) *RodNavigator {
	if logger == nil {
		logger = slog.Default()
	}
	return &RodNavigator{page: page, homeURL: homeURL, signInURL: signInURL, logger: logger}
}

func (n *RodNavigator) Reload() {
	if err := n.page.Reload(); err != nil {
		n.logger.Warn("page reload failed", slog.Any("error", err))
	}
}

func (n *RodNavigator) Back() {
	if err := n.page.NavigateBack(); err != nil {
		n.logger.Warn("navigate back failed", slog.Any("error", err))
	}
}

func (n *RodNavigator) Home() {
	if err := n.page.Navigate(n.homeURL); err != nil {
		n.logger.Warn("navigate home failed", slog.Any("error", err))
	}
}

func (n *RodNavigator) SignIn() {
	if err := n.page.Navigate(n.signInURL); err != nil {
		n.logger.Warn("navigate to sign-in failed", slog.Any("error", err))
	}
}
