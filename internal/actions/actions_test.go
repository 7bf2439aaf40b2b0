package actions

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vantora/guardian/internal/models"
	"github.com/vantora/guardian/internal/store"
)

type fakeNavigator struct {
	reloads atomic.Int32
	backs   atomic.Int32
	homes   atomic.Int32
	signIns atomic.Int32
}

func (f *fakeNavigator) Reload() { f.reloads.Add(1) }
func (f *fakeNavigator) Back()   { f.backs.Add(1) }
func (f *fakeNavigator) Home()   { f.homes.Add(1) }
func (f *fakeNavigator) SignIn() { f.signIns.Add(1) }

type fakeSessionControl struct {
	ended      atomic.Int32
	refreshErr error
}

func (f *fakeSessionControl) EndSession() { f.ended.Add(1) }
func (f *fakeSessionControl) Refresh(context.Context) error {
	return f.refreshErr
}

func newIncident(t *testing.T, s *store.Store) string {
	t.Helper()
	id, err := s.AddIncident(context.Background(), models.IncidentInput{
		Type: models.IncidentTypeAuth, Severity: models.SeverityWarning, Message: "session expired",
	})
	if err != nil {
		t.Fatalf("add incident: %v", err)
	}
	return id
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not reached before deadline")
}

func TestExecuteUnknownAction(t *testing.T) {
	s := store.New(nil, nil, nil, nil)
	r := NewRegistry(s, nil, nil, time.Millisecond, nil)
	if err := r.Execute(context.Background(), "any", models.ActionType("format_disk")); err == nil {
		t.Fatalf("expected error for unknown action")
	}
}

func TestTwoPhaseAuditTrail(t *testing.T) {
	s := store.New(nil, nil, nil, nil)
	nav := &fakeNavigator{}
	r := NewRegistry(s, nil, nav, time.Millisecond, nil)
	id := newIncident(t, s)

	if err := r.Execute(context.Background(), id, models.ActionReloadPage); err != nil {
		t.Fatalf("execute: %v", err)
	}

	inc, _ := s.Incident(id)
	if len(inc.GuardianActions) != 2 {
		t.Fatalf("expected pending + resolved entries, got %d", len(inc.GuardianActions))
	}
	pending, resolved := inc.GuardianActions[0], inc.GuardianActions[1]
	if pending.Result != nil || pending.Success {
		t.Fatalf("pending entry should have nil result and no success flag: %+v", pending)
	}
	if !resolved.Success || resolved.Result == nil {
		t.Fatalf("resolved entry should carry success and result: %+v", resolved)
	}
	if pending.Timestamp.After(resolved.Timestamp) {
		t.Fatalf("pending entry must precede resolution")
	}

	waitFor(t, func() bool { return nav.reloads.Load() == 1 })
}

func TestForceLogout(t *testing.T) {
	s := store.New(nil, nil, nil, nil)
	nav := &fakeNavigator{}
	sess := &fakeSessionControl{}
	r := NewRegistry(s, sess, nav, time.Millisecond, nil)
	id := newIncident(t, s)

	if err := r.Execute(context.Background(), id, models.ActionForceLogout); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if sess.ended.Load() != 1 {
		t.Fatalf("session not ended")
	}
	waitFor(t, func() bool { return nav.signIns.Load() == 1 })

	inc, _ := s.Incident(id)
	if !inc.GuardianActions[1].Success {
		t.Fatalf("force logout should resolve successfully")
	}
}

func TestRefreshTokenFailureRecorded(t *testing.T) {
	s := store.New(nil, nil, nil, nil)
	sess := &fakeSessionControl{refreshErr: errors.New("no refresh token stored")}
	r := NewRegistry(s, sess, nil, time.Millisecond, nil)
	id := newIncident(t, s)

	if err := r.Execute(context.Background(), id, models.ActionRefreshToken); err != nil {
		t.Fatalf("failures are audit entries, not errors: %v", err)
	}

	inc, _ := s.Incident(id)
	resolved := inc.GuardianActions[1]
	if resolved.Success {
		t.Fatalf("refresh without token must resolve as failure")
	}
	if resolved.Result == nil || !strings.Contains(*resolved.Result, "no refresh token") {
		t.Fatalf("failure result should describe the cause: %v", resolved.Result)
	}
}

func TestRefreshTokenSuccess(t *testing.T) {
	s := store.New(nil, nil, nil, nil)
	sess := &fakeSessionControl{}
	r := NewRegistry(s, sess, nil, time.Millisecond, nil)
	id := newIncident(t, s)

	_ = r.Execute(context.Background(), id, models.ActionRefreshToken)
	inc, _ := s.Incident(id)
	if !inc.GuardianActions[1].Success {
		t.Fatalf("refresh should resolve successfully")
	}
}

func TestNavigationActions(t *testing.T) {
	s := store.New(nil, nil, nil, nil)
	nav := &fakeNavigator{}
	r := NewRegistry(s, nil, nav, time.Millisecond, nil)
	id := newIncident(t, s)

	_ = r.Execute(context.Background(), id, models.ActionNavigateBack)
	_ = r.Execute(context.Background(), id, models.ActionNavigateHome)

	waitFor(t, func() bool { return nav.backs.Load() == 1 && nav.homes.Load() == 1 })

	inc, _ := s.Incident(id)
	if len(inc.GuardianActions) != 4 {
		t.Fatalf("expected four audit entries, got %d", len(inc.GuardianActions))
	}
}

func TestExecuteAgainstMissingIncident(t *testing.T) {
	s := store.New(nil, nil, nil, nil)
	r := NewRegistry(s, nil, &fakeNavigator{}, time.Millisecond, nil)

	// Store ignores entries for unknown incidents; execution must not
	// create one either.
	if err := r.Execute(context.Background(), "missing", models.ActionReloadPage); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if s.Count() != 0 {
		t.Fatalf("action against missing incident created state")
	}
}

func TestKnown(t *testing.T) {
	for _, action := range models.KnownActionTypes() {
		if !Known(action) {
			t.Fatalf("catalogue action %s reported unknown", action)
		}
	}
	if Known("format_disk") {
		t.Fatalf("unknown action reported known")
	}
}
