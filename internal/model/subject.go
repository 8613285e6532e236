package model

import "time"

// Tier is a subject's subscription level, used to gate premium-only routes.
type Tier string

const (
	TierFree Tier = "free"
	TierPlus Tier = "plus"
	TierPro  Tier = "pro"
)

// Valid reports whether the tier is one of the recognized values.
func (t Tier) Valid() bool {
	return t == TierFree || t == TierPlus || t == TierPro
}

// Default profile values applied when a subject has no explicit profile row.
const (
	DefaultTier    = TierFree
	DefaultCredits = 100
)

// SubjectProfile holds the billing attributes consulted during authorization.
type SubjectProfile struct {
	SubjectID string    `json:"subject_id" db:"subject_id"`
	Tier      Tier      `json:"tier" db:"tier"`
	Credits   int64     `json:"credits" db:"credits"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
