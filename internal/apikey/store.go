package apikey

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"sync"
	"time"

	"github.com/aman-cerp/kbcore/internal/kberrors"
)

// keyPrefix is the short visible tag prepended to every raw key so a
// leaked credential is recognizable at a glance in logs or diffs.
const keyPrefix = "kb_"

// rawKeyBytes is the CSPRNG entropy size for a raw key, before encoding.
const rawKeyBytes = 32

// Store owns the API keys for a single project. Reads return deep copies;
// raw key material is never retained after CreateKey returns it.
type Store struct {
	mu      sync.RWMutex
	keys    map[string]Key // keyID -> Key
	nextSeq uint64
}

// NewStore returns an empty key store for one project.
func NewStore() *Store {
	return &Store{keys: make(map[string]Key)}
}

// generateRawKey returns a CSPRNG raw key string and its SHA-256 hex hash.
func generateRawKey() (raw string, hash string, err error) {
	buf := make([]byte, rawKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", kberrors.New(kberrors.Internal, "generate key entropy", err)
	}
	raw = keyPrefix + base64.RawURLEncoding.EncodeToString(buf)
	sum := sha256.Sum256([]byte(raw))
	return raw, hex.EncodeToString(sum[:]), nil
}

func generateKeyID() string {
	buf := make([]byte, 9)
	_, _ = rand.Read(buf)
	return "key_" + base64.RawURLEncoding.EncodeToString(buf)
}

// CreateKey generates a new raw key for projectID and stores only its hash.
// The raw key is returned exactly once; it cannot be recovered later.
func (s *Store) CreateKey(projectID, name string, scopes []Scope, expiresAt *time.Time) (rawKey string, key Key, err error) {
	if len(scopes) == 0 {
		return "", Key{}, kberrors.New(kberrors.InvalidArgument, "api key requires at least one scope", nil)
	}

	raw, hash, err := generateRawKey()
	if err != nil {
		return "", Key{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSeq++
	k := Key{
		KeyID:     generateKeyID(),
		ProjectID: projectID,
		Name:      name,
		Scopes:    append([]Scope(nil), scopes...),
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
		KeyHash:   hash,
	}
	s.keys[k.KeyID] = k
	return raw, k.clone(), nil
}

// List returns deep copies of every key in the store, including revoked
// ones (revocation is a permanent audit trail, not a deletion).
func (s *Store) List() []Key {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Key, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, k.clone())
	}
	return out
}

// Revoke marks keyID as revoked. Idempotent; returns NotFound if unknown.
func (s *Store) Revoke(keyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[keyID]
	if !ok {
		return kberrors.New(kberrors.NotFound, "api key not found", nil).WithDetail("key_id", keyID)
	}
	k.Revoked = true
	s.keys[keyID] = k
	return nil
}

// Validate checks raw against every stored key's hash using a
// constant-time comparison, honoring the scope hierarchy and revocation
// and expiry state. On success it best-effort (non-blocking) updates
// last_used_at and returns a copy of the matched key.
func (s *Store) Validate(raw string, required Scope) (Key, error) {
	sum := sha256.Sum256([]byte(raw))
	target := hex.EncodeToString(sum[:])

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, k := range s.keys {
		if subtle.ConstantTimeCompare([]byte(k.KeyHash), []byte(target)) != 1 {
			continue
		}
		if k.Revoked {
			return Key{}, kberrors.New(kberrors.Unauthorized, "api key revoked", nil).WithDetail("key_id", id)
		}
		if k.expired(time.Now()) {
			return Key{}, kberrors.New(kberrors.Unauthorized, "api key expired", nil).WithDetail("key_id", id)
		}
		if !k.HasAnyScope(required) {
			return Key{}, kberrors.New(kberrors.Unauthorized, "api key scope insufficient", nil).
				WithDetail("key_id", id).WithDetail("required_scope", string(required))
		}
		now := time.Now()
		k.LastUsedAt = &now
		s.keys[id] = k
		return k.clone(), nil
	}
	return Key{}, kberrors.New(kberrors.Unauthorized, "api key not recognized", nil)
}

// Len returns the number of keys in the store, including revoked ones.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// ActiveCount returns the number of non-revoked, non-expired keys.
func (s *Store) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := time.Now()
	count := 0
	for _, k := range s.keys {
		if !k.Revoked && !k.expired(now) {
			count++
		}
	}
	return count
}
