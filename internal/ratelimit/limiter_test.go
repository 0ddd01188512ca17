package ratelimit

import (
	"testing"
	"time"

	"github.com/aman-cerp/kbcore/internal/kberrors"
)

func TestAllowPermitsUpToBurstThenRejects(t *testing.T) {
	l := New(map[Operation]Window{
		OpQuery: {Limit: 2, Period: time.Minute},
	})

	if err := l.Allow(OpQuery, "p1"); err != nil {
		t.Fatalf("expected first call allowed: %v", err)
	}
	if err := l.Allow(OpQuery, "p1"); err != nil {
		t.Fatalf("expected second call allowed: %v", err)
	}
	if err := l.Allow(OpQuery, "p1"); kberrors.GetKind(err) != kberrors.RateLimited {
		t.Fatalf("expected RateLimited on third call, got %v", err)
	}
}

func TestAllowIsPerProject(t *testing.T) {
	l := New(map[Operation]Window{
		OpQuery: {Limit: 1, Period: time.Minute},
	})

	if err := l.Allow(OpQuery, "p1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.Allow(OpQuery, "p2"); err != nil {
		t.Fatalf("expected p2's own window to be independent: %v", err)
	}
	if err := l.Allow(OpQuery, "p1"); kberrors.GetKind(err) != kberrors.RateLimited {
		t.Fatalf("expected p1 exhausted, got %v", err)
	}
}

func TestAllowUnconfiguredOperationIsUnlimited(t *testing.T) {
	l := New(map[Operation]Window{})
	for i := 0; i < 100; i++ {
		if err := l.Allow(OpIngest, "p1"); err != nil {
			t.Fatalf("expected unconfigured operation to never rate-limit, got %v", err)
		}
	}
}

func TestForgetResetsProjectState(t *testing.T) {
	l := New(map[Operation]Window{
		OpQuery: {Limit: 1, Period: time.Minute},
	})
	if err := l.Allow(OpQuery, "p1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.Allow(OpQuery, "p1"); kberrors.GetKind(err) != kberrors.RateLimited {
		t.Fatalf("expected exhausted, got %v", err)
	}

	l.Forget("p1")

	if err := l.Allow(OpQuery, "p1"); err != nil {
		t.Fatalf("expected fresh limiter after Forget, got %v", err)
	}
}

func TestDefaultWindowsMatchSpecifiedLimits(t *testing.T) {
	windows := DefaultWindows()
	cases := map[Operation]int{
		OpCreateProject: 10,
		OpListProjects:  60,
		OpCreateAPIKey:  10,
		OpListAPIKeys:   60,
		OpQuery:         30,
		OpIngest:        20,
	}
	for op, limit := range cases {
		w, ok := windows[op]
		if !ok {
			t.Fatalf("expected default window for %s", op)
		}
		if w.Limit != limit || w.Period != time.Minute {
			t.Fatalf("expected %s to be %d/min, got %+v", op, limit, w)
		}
	}
}
