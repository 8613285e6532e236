package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/brightclass/keygate/internal/config"
	"github.com/brightclass/keygate/internal/model"
	"github.com/brightclass/keygate/internal/secret"
)

// SessionIdentity is the result of verifying an interactive session token.
type SessionIdentity struct {
	SubjectID   string
	DisplayName string
}

// SessionVerifier verifies opaque session tokens issued by the identity
// provider. The core never inspects tokens itself.
type SessionVerifier interface {
	Verify(ctx context.Context, token string) (*SessionIdentity, error)
}

// Credentials is the credential material extracted from a request. Zero, one,
// or both fields may be set; the gate resolves every combination exhaustively.
type Credentials struct {
	SessionToken string
	APIKey       string
}

// Requirement declares what a route demands of an API-key principal. Session
// principals bypass these checks; interactive sessions are not subject to
// API-credit metering.
type Requirement struct {
	Scope          model.Scope  // zero value means any scope
	Tiers          []model.Tier // empty means any tier
	RequireCredits bool
}

// DenyReason is the stable machine-readable reason for a denial.
type DenyReason string

const (
	DenyAuthRequired      DenyReason = "auth_required"
	DenyInvalidToken      DenyReason = "invalid_token"
	DenyInvalidKey        DenyReason = "invalid_or_revoked_key"
	DenyInsufficientScope DenyReason = "insufficient_scope"
	DenyInsufficientTier  DenyReason = "insufficient_tier"
	DenyCreditsExhausted  DenyReason = "credits_exhausted"
)

// Decision is the terminal outcome of the authorization gate for one request.
// An allowed anonymous request (public route, no credentials) has a nil
// Principal.
type Decision struct {
	Allowed   bool
	Principal *model.Principal
	Reason    DenyReason
}

func allowed(p *model.Principal) Decision { return Decision{Allowed: true, Principal: p} }

func (s *AuthService) denied(reason DenyReason, method, path string) Decision {
	s.logger.Debug("request denied", "reason", reason, "method", method, "path", path)
	return Decision{Reason: reason}
}

// AuthService resolves presented credentials into authorization decisions.
// It combines the API key validator and the per-request gate consumed by the
// middleware ahead of every protected route. All collaborators are injected
// once at construction; nothing reads ambient state.
type AuthService struct {
	store    *config.Store
	sessions SessionVerifier
	routes   *config.RouteTable
	logger   *slog.Logger
}

// NewAuthService creates an AuthService.
func NewAuthService(store *config.Store, sessions SessionVerifier, routes *config.RouteTable, logger *slog.Logger) *AuthService {
	return &AuthService{store: store, sessions: sessions, routes: routes, logger: logger}
}

// ValidateAPIKey resolves a raw presented secret to a principal. A nil
// principal with nil error means the key did not validate; the response
// never distinguishes "no candidate found" from "hash mismatch", so the
// prefix cannot be used as an enumeration oracle. Errors are reserved for
// store failures.
func (s *AuthService) ValidateAPIKey(ctx context.Context, rawKey string) (*model.Principal, error) {
	// Fast syntactic rejection before any hashing or storage work.
	if !secret.IsWellFormed(rawKey) {
		return nil, nil
	}

	candidates, err := s.store.GetAPIKeysByPrefix(ctx, secret.DisplayPrefix(rawKey))
	if err != nil {
		return nil, internalError("fetch key candidates", err)
	}

	for i := range candidates {
		key := &candidates[i]
		if key.Revoked {
			// Skip without paying for the hash comparison.
			continue
		}
		if !secret.Verify(rawKey, key.KeyHash) {
			continue
		}

		// Usage stats are best-effort; a failed update must never deny
		// or grant authorization.
		go func(id int64) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.store.TouchAPIKey(ctx, id); err != nil {
				s.logger.Warn("update key usage stats", "key_id", id, "error", err)
			}
		}(key.ID)

		profile, err := s.store.GetSubjectProfile(ctx, key.SubjectID)
		if err != nil {
			return nil, internalError("load subject profile", err)
		}
		return &model.Principal{
			SubjectID: key.SubjectID,
			Method:    model.AuthAPIKey,
			Scope:     key.Scope,
			Tier:      profile.Tier,
			Credits:   profile.Credits,
			KeyID:     key.ID,
		}, nil
	}
	return nil, nil
}

// Authorize is the request-time decision function. It resolves the presented
// credential material against the route's publicity and requirements into a
// single terminal outcome. The returned error covers internal failures only
// (store, hash engine); those fail closed at the caller.
func (s *AuthService) Authorize(ctx context.Context, creds Credentials, method, path string, req Requirement) (Decision, error) {
	hasSession := creds.SessionToken != ""
	hasKey := creds.APIKey != ""

	if !hasSession && !hasKey {
		if s.routes.IsPublic(method, path) {
			return allowed(nil), nil
		}
		return s.denied(DenyAuthRequired, method, path), nil
	}

	if hasSession {
		identity, err := s.sessions.Verify(ctx, creds.SessionToken)
		if err == nil {
			p, perr := s.sessionPrincipal(ctx, identity)
			if perr != nil {
				return Decision{}, perr
			}
			return allowed(p), nil
		}

		// A stale session with a valid API key falls through to the key
		// path instead of failing outright.
		if !hasKey {
			if s.routes.IsPublic(method, path) {
				return allowed(nil), nil
			}
			return s.denied(DenyInvalidToken, method, path), nil
		}
	}

	principal, err := s.ValidateAPIKey(ctx, creds.APIKey)
	if err != nil {
		return Decision{}, err
	}
	if principal == nil {
		return s.denied(DenyInvalidKey, method, path), nil
	}
	return s.applyRequirement(principal, req, method, path), nil
}

// sessionPrincipal builds a principal from a verified interactive identity.
// Scope defaults to full and the scope/tier/credit gate does not apply, but
// the profile is still loaded so handlers can display billing state.
func (s *AuthService) sessionPrincipal(ctx context.Context, identity *SessionIdentity) (*model.Principal, error) {
	profile, err := s.store.GetSubjectProfile(ctx, identity.SubjectID)
	if err != nil {
		return nil, internalError("load subject profile", err)
	}
	return &model.Principal{
		SubjectID:   identity.SubjectID,
		DisplayName: identity.DisplayName,
		Method:      model.AuthSession,
		Scope:       model.ScopeFull,
		Tier:        profile.Tier,
		Credits:     profile.Credits,
	}, nil
}

// applyRequirement runs the scope/tier/credit gate. It applies only to
// API-key principals.
func (s *AuthService) applyRequirement(p *model.Principal, req Requirement, method, path string) Decision {
	if p.Method != model.AuthAPIKey {
		return allowed(p)
	}
	if req.Scope == model.ScopeFull && p.Scope == model.ScopeRead {
		return s.denied(DenyInsufficientScope, method, path)
	}
	if len(req.Tiers) > 0 {
		ok := false
		for _, t := range req.Tiers {
			if p.Tier == t {
				ok = true
				break
			}
		}
		if !ok {
			return s.denied(DenyInsufficientTier, method, path)
		}
	}
	if req.RequireCredits && p.Credits <= 0 {
		return s.denied(DenyCreditsExhausted, method, path)
	}
	return allowed(p)
}

// ---------------------------------------------------------------------------
// JWT session verifier
// ---------------------------------------------------------------------------

// ErrInvalidSession is returned by the JWT verifier for any token that does
// not verify, including expired ones.
var ErrInvalidSession = errors.New("invalid session token")

// JWTVerifier is the default SessionVerifier: HS256-signed JWTs with the
// subject ID in the "sub" claim and an optional "name" claim.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a verifier with the given signing secret.
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

// Verify validates the token signature and expiry and extracts the identity.
func (v *JWTVerifier) Verify(ctx context.Context, tokenStr string) (*SessionIdentity, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidSession
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidSession
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, ErrInvalidSession
	}

	identity := &SessionIdentity{SubjectID: sub}
	if name, ok := claims["name"].(string); ok {
		identity.DisplayName = name
	}
	return identity, nil
}

// Issue mints a signed session token. Used by the CLI to create development
// tokens; production tokens come from the external identity provider.
func (v *JWTVerifier) Issue(subjectID, displayName string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": subjectID,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
		"iss": "keygate",
	}
	if displayName != "" {
		claims["name"] = displayName
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
