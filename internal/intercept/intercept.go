// Package intercept funnels uncaught failures into the incident store. It
// is a thin bridge: callers install it once at startup and every panic or
// stray error anywhere in the application becomes a critical runtime-error
// incident instead of a silent crash.
package intercept

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/vantora/guardian/internal/store"
)

// Hooks bridges process-wide failure sources to the store.
type Hooks struct {
	store  *store.Store
	logger *slog.Logger
}

// New constructs the interception hooks.
func New(s *store.Store, logger *slog.Logger) *Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hooks{store: s, logger: logger}
}

// Recover is meant for use as `defer hooks.Recover()` at goroutine
// boundaries: it converts a panic into an incident and swallows it.
func (h *Hooks) Recover() {
	if r := recover(); r != nil {
		h.report(r, debug.Stack())
	}
}

// Go spawns fn on a new goroutine with panic funneling installed, the
// moral equivalent of an unhandled-rejection handler for background work.
func (h *Hooks) Go(fn func()) {
	go func() {
		defer h.Recover()
		fn()
	}()
}

// HandleError records an error that nothing upstream handled. Used by
// collaborators that surface failures as values rather than panics.
func (h *Hooks) HandleError(err error) {
	if err == nil {
		return
	}
	stack := string(debug.Stack())
	if _, reportErr := h.store.ReportRuntimeError(context.Background(), err.Error(), &stack); reportErr != nil {
		h.logger.Warn("failed to record unhandled error", slog.Any("error", reportErr))
	}
}

// Middleware converts handler panics into incidents before answering 500.
func (h *Hooks) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				h.report(r, debug.Stack())
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"status": "error",
					"error":  "internal error",
				})
			}
		}()
		c.Next()
	}
}

func (h *Hooks) report(recovered any, stack []byte) {
	message := fmt.Sprintf("panic: %v", recovered)
	stackText := string(stack)
	if _, err := h.store.ReportRuntimeError(context.Background(), message, &stackText); err != nil {
		h.logger.Warn("failed to record panic incident", slog.Any("error", err))
	}
	h.logger.Error("uncaught panic intercepted", slog.String("message", message))
}
