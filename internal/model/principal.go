package model

// AuthMethod records which credential path produced a principal.
type AuthMethod string

const (
	// AuthSession means the principal came from a verified session token.
	AuthSession AuthMethod = "session"
	// AuthAPIKey means the principal came from a validated API key.
	AuthAPIKey AuthMethod = "api_key"
)

// Principal is the resolved, request-scoped identity plus its authorization
// attributes. It is constructed fresh per request and never cached, because
// credits and revocation state can change between requests.
type Principal struct {
	SubjectID   string     `json:"subject_id"`
	DisplayName string     `json:"display_name,omitempty"`
	Method      AuthMethod `json:"method"`
	Scope       Scope      `json:"scope"`
	Tier        Tier       `json:"tier"`
	Credits     int64      `json:"credits"`
	KeyID       int64      `json:"key_id,omitempty"` // set only for AuthAPIKey
}
