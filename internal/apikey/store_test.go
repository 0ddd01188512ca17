package apikey

import (
	"strings"
	"testing"
	"time"

	"github.com/aman-cerp/kbcore/internal/kberrors"
)

func TestCreateKeyReturnsRawOnceAndPrefixed(t *testing.T) {
	s := NewStore()
	raw, key, err := s.CreateKey("proj1", "ci", []Scope{ScopeRead}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(raw, "kb_") {
		t.Fatalf("expected kb_ prefix, got %q", raw)
	}
	if key.KeyHash == "" || key.KeyHash == raw {
		t.Fatalf("expected stored hash distinct from raw key")
	}
}

func TestCreateKeyRequiresScope(t *testing.T) {
	s := NewStore()
	_, _, err := s.CreateKey("proj1", "ci", nil, nil)
	if kberrors.GetKind(err) != kberrors.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestValidateReadScopeRejectsWriteRequirement(t *testing.T) {
	s := NewStore()
	raw, _, _ := s.CreateKey("proj1", "ci", []Scope{ScopeRead}, nil)

	if _, err := s.Validate(raw, ScopeRead); err != nil {
		t.Fatalf("expected read validation to succeed: %v", err)
	}
	if _, err := s.Validate(raw, ScopeWrite); kberrors.GetKind(err) != kberrors.Unauthorized {
		t.Fatalf("expected Unauthorized for write with read-only key, got %v", err)
	}
}

func TestValidateAdminScopeSatisfiesEverything(t *testing.T) {
	s := NewStore()
	raw, _, _ := s.CreateKey("proj1", "ci", []Scope{ScopeAdmin}, nil)

	for _, scope := range []Scope{ScopeRead, ScopeWrite, ScopeAdmin} {
		if _, err := s.Validate(raw, scope); err != nil {
			t.Fatalf("expected admin key to satisfy %s, got %v", scope, err)
		}
	}
}

func TestRevokeMakesValidationFailImmediately(t *testing.T) {
	s := NewStore()
	raw, key, _ := s.CreateKey("proj1", "ci", []Scope{ScopeRead}, nil)

	if _, err := s.Validate(raw, ScopeRead); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Revoke(key.KeyID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Validate(raw, ScopeRead); kberrors.GetKind(err) != kberrors.Unauthorized {
		t.Fatalf("expected Unauthorized after revocation, got %v", err)
	}

	// Revocation is a permanent audit entry, not a delete.
	found := false
	for _, k := range s.List() {
		if k.KeyID == key.KeyID && k.Revoked {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected revoked key to remain listed")
	}
}

func TestValidateExpiredKeyFails(t *testing.T) {
	s := NewStore()
	past := time.Now().Add(-time.Hour)
	raw, _, _ := s.CreateKey("proj1", "ci", []Scope{ScopeRead}, &past)

	if _, err := s.Validate(raw, ScopeRead); kberrors.GetKind(err) != kberrors.Unauthorized {
		t.Fatalf("expected Unauthorized for expired key, got %v", err)
	}
}

func TestValidateUnknownRawFails(t *testing.T) {
	s := NewStore()
	if _, err := s.Validate("kb_not-a-real-key", ScopeRead); kberrors.GetKind(err) != kberrors.Unauthorized {
		t.Fatalf("expected Unauthorized for unrecognized key, got %v", err)
	}
}

func TestListNeverExposesRawKey(t *testing.T) {
	s := NewStore()
	raw, _, _ := s.CreateKey("proj1", "ci", []Scope{ScopeRead}, nil)
	for _, k := range s.List() {
		if k.KeyHash == raw {
			t.Fatalf("listed key must never equal the raw secret")
		}
	}
}

func TestActiveCountExcludesRevokedAndExpired(t *testing.T) {
	s := NewStore()
	_, active, _ := s.CreateKey("proj1", "active", []Scope{ScopeRead}, nil)
	past := time.Now().Add(-time.Hour)
	_, _, _ = s.CreateKey("proj1", "expired", []Scope{ScopeRead}, &past)
	_, revoked, _ := s.CreateKey("proj1", "revoked", []Scope{ScopeRead}, nil)
	_ = s.Revoke(revoked.KeyID)

	if got := s.ActiveCount(); got != 1 {
		t.Fatalf("expected 1 active key, got %d", got)
	}
	_ = active
}
