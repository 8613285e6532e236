package model

import "time"

// Scope is a credential's access breadth.
type Scope string

const (
	// ScopeRead grants query-only access.
	ScopeRead Scope = "read"
	// ScopeFull grants mutating and generation-capable access.
	ScopeFull Scope = "full"
)

// Valid reports whether the scope is one of the recognized values.
func (s Scope) Valid() bool {
	return s == ScopeRead || s == ScopeFull
}

// APIKey represents an issued developer credential. The raw secret is never
// stored; only the Argon2id hash and a short display prefix are persisted.
// Revocation is terminal: a revoked record is never reactivated, and
// regeneration creates a new record instead.
type APIKey struct {
	ID         int64      `json:"id" db:"id"`
	SubjectID  string     `json:"subject_id" db:"subject_id"`
	Label      string     `json:"label" db:"label"`
	KeyHash    string     `json:"-" db:"key_hash"`            // Argon2id encoded hash, never expose
	KeyPrefix  string     `json:"key_prefix" db:"key_prefix"` // Redacted display form, e.g. "bck_a1b2…e9f0"
	Scope      Scope      `json:"scope" db:"scope"`
	Revoked    bool       `json:"revoked" db:"revoked"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
	UsageCount int64      `json:"usage_count" db:"usage_count"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	LastUsed   *time.Time `json:"last_used,omitempty" db:"last_used"`
}

// APIKeyView is the public-safe projection of an APIKey returned by list
// endpoints. It carries no hash material.
type APIKeyView struct {
	ID         int64      `json:"id"`
	Label      string     `json:"label"`
	KeyPrefix  string     `json:"key_prefix"`
	Scope      Scope      `json:"scope"`
	Revoked    bool       `json:"revoked"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	UsageCount int64      `json:"usage_count"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsed   *time.Time `json:"last_used,omitempty"`
}

// View returns the public-safe projection of the key.
func (k *APIKey) View() APIKeyView {
	return APIKeyView{
		ID:         k.ID,
		Label:      k.Label,
		KeyPrefix:  k.KeyPrefix,
		Scope:      k.Scope,
		Revoked:    k.Revoked,
		RevokedAt:  k.RevokedAt,
		UsageCount: k.UsageCount,
		CreatedAt:  k.CreatedAt,
		LastUsed:   k.LastUsed,
	}
}

// IssuedKey pairs a freshly persisted key record with its one-time raw
// secret. The secret exists only in this value and in the response body that
// surfaces it to the requester; it must never be logged or persisted.
type IssuedKey struct {
	Key       APIKeyView `json:"key"`
	RawSecret string     `json:"secret"`
}
