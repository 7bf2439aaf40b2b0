// Package actions implements the fixed catalogue of remedial operations an
// operator can trigger against an incident. Every execution is recorded on
// the incident as a two-phase audit trail: a pending entry first, then a
// resolved success/failure entry, so partial failures stay inspectable.
package actions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vantora/guardian/internal/metrics"
	"github.com/vantora/guardian/internal/models"
	"github.com/vantora/guardian/internal/store"
)

// Navigator abstracts the navigation side effects so they can be mocked.
type Navigator interface {
	Reload()
	Back()
	Home()
	SignIn()
}

// SessionControl is the slice of session behaviour remedies need.
type SessionControl interface {
	EndSession()
	Refresh(ctx context.Context) error
}

// DefaultNavigationDelay leaves the operator a moment to read the audit
// entry before the screen changes underneath them.
const DefaultNavigationDelay = 1500 * time.Millisecond

// Registry executes catalogue actions against incidents in the store.
type Registry struct {
	store     *store.Store
	session   SessionControl
	navigator Navigator
	delay     time.Duration
	logger    *slog.Logger
}

// NewRegistry constructs the action registry. delay <= 0 selects the
// default navigation delay.
func NewRegistry(s *store.Store, session SessionControl, navigator Navigator, delay time.Duration, logger *slog.Logger) *Registry {
	if delay <= 0 {
		delay = DefaultNavigationDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{store: s, session: session, navigator: navigator, delay: delay, logger: logger}
}

type actionSpec struct {
	pending  string
	resolved string
}

var catalogue = map[models.ActionType]actionSpec{
	models.ActionForceLogout:  {pending: "Force sign-out requested", resolved: "Force sign-out"},
	models.ActionRefreshToken: {pending: "Token refresh requested", resolved: "Token refresh"},
	models.ActionReloadPage:   {pending: "Page reload requested", resolved: "Page reload"},
	models.ActionNavigateBack: {pending: "Navigate back requested", resolved: "Navigate back"},
	models.ActionNavigateHome: {pending: "Navigate to home requested", resolved: "Navigate to home"},
}

// Known reports whether the action type belongs to the catalogue.
func Known(action models.ActionType) bool {
	_, ok := catalogue[action]
	return ok
}

// Execute runs one catalogue action against the named incident. Unknown
// action types are the only error; the action's own failure is recorded in
// the incident's log, never raised.
func (r *Registry) Execute(ctx context.Context, incidentID string, action models.ActionType) error {
	spec, ok := catalogue[action]
	if !ok {
		return fmt.Errorf("unknown guardian action %q", action)
	}

	r.store.AddGuardianAction(incidentID, models.ActionInput{
		ActionType:  action,
		Description: spec.pending,
	})

	success, result := r.run(ctx, action)

	r.store.AddGuardianAction(incidentID, models.ActionInput{
		ActionType:  action,
		Description: spec.resolved,
		Success:     success,
		Result:      &result,
	})
	metrics.ObserveAction(string(action), success)

	r.logger.Info("guardian action executed",
		slog.String("incident_id", incidentID),
		slog.String("action", string(action)),
		slog.Bool("success", success))
	return nil
}

func (r *Registry) run(ctx context.Context, action models.ActionType) (bool, string) {
	switch action {
	case models.ActionForceLogout:
		if r.session == nil {
			return false, "no session manager attached"
		}
		r.session.EndSession()
		r.afterDelay(func(n Navigator) { n.SignIn() })
		return true, "session cleared; redirecting to sign-in"

	case models.ActionRefreshToken:
		if r.session == nil {
			return false, "no session manager attached"
		}
		if err := r.session.Refresh(ctx); err != nil {
			return false, fmt.Sprintf("token refresh failed: %v", err)
		}
		return true, "tokens refreshed"

	case models.ActionReloadPage:
		r.afterDelay(func(n Navigator) { n.Reload() })
		return true, "reloading page"

	case models.ActionNavigateBack:
		r.afterDelay(func(n Navigator) { n.Back() })
		return true, "navigating back"

	case models.ActionNavigateHome:
		r.afterDelay(func(n Navigator) { n.Home() })
		return true, "navigating to home"
	}
	return false, "not implemented"
}

// afterDelay schedules a navigation side effect; with no navigator attached
// the action still resolves, it just has nothing to drive.
func (r *Registry) afterDelay(fn func(Navigator)) {
	if r.navigator == nil {
		return
	}
	navigator := r.navigator
	time.AfterFunc(r.delay, func() { fn(navigator) })
}
