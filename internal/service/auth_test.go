package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/brightclass/keygate/internal/config"
	"github.com/brightclass/keygate/internal/model"
)

func newTestAuth(t *testing.T, publicRoutes ...config.PublicRoute) (*AuthService, *KeyService, *config.Store) {
	t.Helper()
	store, err := config.NewStore("")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	verifier := NewJWTVerifier("test-secret")
	routes := config.NewRouteTable(publicRoutes)
	auth := NewAuthService(store, verifier, routes, logger)
	keys := NewKeyService(store, logger)
	return auth, keys, store
}

func TestValidateIssuedKey(t *testing.T) {
	auth, keys, _ := newTestAuth(t)
	ctx := context.Background()

	issued, err := keys.Issue(ctx, "u1", "CI key", model.ScopeRead)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	principal, err := auth.ValidateAPIKey(ctx, issued.RawSecret)
	if err != nil {
		t.Fatalf("ValidateAPIKey: %v", err)
	}
	if principal == nil {
		t.Fatal("expected a principal for a freshly issued key")
	}
	if principal.SubjectID != "u1" {
		t.Errorf("SubjectID: got %q, want %q", principal.SubjectID, "u1")
	}
	if principal.Scope != model.ScopeRead {
		t.Errorf("Scope: got %q, want %q", principal.Scope, model.ScopeRead)
	}
	if principal.Method != model.AuthAPIKey {
		t.Errorf("Method: got %q, want %q", principal.Method, model.AuthAPIKey)
	}
	if principal.Tier != model.TierFree || principal.Credits != model.DefaultCredits {
		t.Errorf("expected default profile, got tier=%q credits=%d", principal.Tier, principal.Credits)
	}
}

func TestValidateNonMatchesCollapseToNil(t *testing.T) {
	auth, keys, _ := newTestAuth(t)
	ctx := context.Background()

	if _, err := keys.Issue(ctx, "u1", "key", model.ScopeRead); err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Malformed, unknown-but-well-formed, and wrong-secret inputs are all
	// indistinguishable nils.
	for _, raw := range []string{
		"",
		"garbage",
		"bck_short",
		"bck_00000000000000000000000000000000",
	} {
		principal, err := auth.ValidateAPIKey(ctx, raw)
		if err != nil {
			t.Fatalf("ValidateAPIKey(%q): %v", raw, err)
		}
		if principal != nil {
			t.Errorf("ValidateAPIKey(%q) returned a principal", raw)
		}
	}
}

func TestValidateRevokedKey(t *testing.T) {
	auth, keys, _ := newTestAuth(t)
	ctx := context.Background()

	issued, err := keys.Issue(ctx, "u1", "key", model.ScopeRead)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if p, err := auth.ValidateAPIKey(ctx, issued.RawSecret); err != nil || p == nil {
		t.Fatalf("expected key to validate before revocation, got (%v, %v)", p, err)
	}

	if err := keys.Revoke(ctx, "u1", issued.Key.ID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	principal, err := auth.ValidateAPIKey(ctx, issued.RawSecret)
	if err != nil {
		t.Fatalf("ValidateAPIKey: %v", err)
	}
	if principal != nil {
		t.Error("revoked key must never validate")
	}
}

func TestValidateRegeneratedKey(t *testing.T) {
	auth, keys, _ := newTestAuth(t)
	ctx := context.Background()

	issued, err := keys.Issue(ctx, "u1", "key", model.ScopeFull)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	regen, err := keys.Regenerate(ctx, "u1", issued.Key.ID)
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}

	if p, _ := auth.ValidateAPIKey(ctx, issued.RawSecret); p != nil {
		t.Error("old secret must not validate after regeneration")
	}
	p, err := auth.ValidateAPIKey(ctx, regen.RawSecret)
	if err != nil {
		t.Fatalf("ValidateAPIKey: %v", err)
	}
	if p == nil {
		t.Fatal("new secret must validate after regeneration")
	}
	if p.Scope != model.ScopeFull {
		t.Errorf("Scope: got %q, want %q", p.Scope, model.ScopeFull)
	}
}

func TestValidateUpdatesUsageStats(t *testing.T) {
	auth, keys, store := newTestAuth(t)
	ctx := context.Background()

	issued, err := keys.Issue(ctx, "u1", "key", model.ScopeRead)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if p, _ := auth.ValidateAPIKey(ctx, issued.RawSecret); p == nil {
		t.Fatal("expected key to validate")
	}

	// The usage update is asynchronous best-effort; poll briefly.
	deadline := time.Now().Add(2 * time.Second)
	for {
		key, err := store.GetAPIKey(ctx, issued.Key.ID)
		if err != nil {
			t.Fatalf("GetAPIKey: %v", err)
		}
		if key.UsageCount == 1 && key.LastUsed != nil {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("usage stats not updated: count=%d last_used=%v", key.UsageCount, key.LastUsed)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// ---------------------------------------------------------------------------
// Gate
// ---------------------------------------------------------------------------

func sessionToken(t *testing.T, subjectID string, ttl time.Duration) string {
	t.Helper()
	token, err := NewJWTVerifier("test-secret").Issue(subjectID, "Test User", ttl)
	if err != nil {
		t.Fatalf("Issue token: %v", err)
	}
	return token
}

func TestGateNoCredentials(t *testing.T) {
	auth, _, _ := newTestAuth(t, config.PublicRoute{Method: "GET", Path: "/healthz"})
	ctx := context.Background()

	// Protected route: denied.
	d, err := auth.Authorize(ctx, Credentials{}, "GET", "/api/v1/keys", Requirement{})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if d.Allowed || d.Reason != DenyAuthRequired {
		t.Errorf("expected AuthRequired denial, got %+v", d)
	}

	// Public route: allowed anonymously.
	d, err = auth.Authorize(ctx, Credentials{}, "GET", "/healthz", Requirement{})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if !d.Allowed {
		t.Errorf("expected public route to allow, got %+v", d)
	}
	if d.Principal != nil {
		t.Error("anonymous allow must carry no principal")
	}
}

func TestGateSessionToken(t *testing.T) {
	auth, _, _ := newTestAuth(t)
	ctx := context.Background()

	d, err := auth.Authorize(ctx, Credentials{SessionToken: sessionToken(t, "u1", time.Hour)},
		"POST", "/api/v1/keys", Requirement{})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if !d.Allowed || d.Principal == nil {
		t.Fatalf("expected session allow, got %+v", d)
	}
	if d.Principal.SubjectID != "u1" || d.Principal.Method != model.AuthSession {
		t.Errorf("unexpected principal: %+v", d.Principal)
	}
	if d.Principal.Scope != model.ScopeFull {
		t.Errorf("session scope: got %q, want %q", d.Principal.Scope, model.ScopeFull)
	}
}

func TestGateInvalidSessionToken(t *testing.T) {
	auth, _, _ := newTestAuth(t, config.PublicRoute{Method: "GET", Path: "/open"})
	ctx := context.Background()

	expired := sessionToken(t, "u1", -time.Hour)

	d, err := auth.Authorize(ctx, Credentials{SessionToken: expired}, "GET", "/api/v1/keys", Requirement{})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if d.Allowed || d.Reason != DenyInvalidToken {
		t.Errorf("expected InvalidToken denial, got %+v", d)
	}

	// On a public route a bad token degrades to anonymous.
	d, err = auth.Authorize(ctx, Credentials{SessionToken: expired}, "GET", "/open", Requirement{})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if !d.Allowed || d.Principal != nil {
		t.Errorf("expected anonymous allow on public route, got %+v", d)
	}
}

func TestGateStaleSessionFallsThroughToKey(t *testing.T) {
	auth, keys, _ := newTestAuth(t)
	ctx := context.Background()

	issued, err := keys.Issue(ctx, "u1", "key", model.ScopeFull)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	creds := Credentials{
		SessionToken: sessionToken(t, "u1", -time.Hour),
		APIKey:       issued.RawSecret,
	}
	d, err := auth.Authorize(ctx, creds, "POST", "/api/v1/generate", Requirement{Scope: model.ScopeFull})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if !d.Allowed || d.Principal == nil || d.Principal.Method != model.AuthAPIKey {
		t.Errorf("expected fall-through to the API key path, got %+v", d)
	}
}

func TestGateSessionPrecedenceWhenBothValid(t *testing.T) {
	auth, keys, _ := newTestAuth(t)
	ctx := context.Background()

	issued, err := keys.Issue(ctx, "u1", "key", model.ScopeRead)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	creds := Credentials{
		SessionToken: sessionToken(t, "u1", time.Hour),
		APIKey:       issued.RawSecret,
	}
	// The read-scoped key would be denied here; the valid session wins.
	d, err := auth.Authorize(ctx, creds, "POST", "/api/v1/generate", Requirement{Scope: model.ScopeFull})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if !d.Allowed || d.Principal == nil || d.Principal.Method != model.AuthSession {
		t.Errorf("expected session precedence, got %+v", d)
	}
}

func TestGateInvalidKey(t *testing.T) {
	auth, _, _ := newTestAuth(t)
	ctx := context.Background()

	d, err := auth.Authorize(ctx, Credentials{APIKey: "bck_00000000000000000000000000000000"},
		"GET", "/api/v1/keys", Requirement{})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if d.Allowed || d.Reason != DenyInvalidKey {
		t.Errorf("expected InvalidOrRevokedKey denial, got %+v", d)
	}
}

func TestGateScopeEscalationBlocked(t *testing.T) {
	auth, keys, _ := newTestAuth(t)
	ctx := context.Background()

	issued, err := keys.Issue(ctx, "u1", "read key", model.ScopeRead)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	d, err := auth.Authorize(ctx, Credentials{APIKey: issued.RawSecret},
		"POST", "/api/v1/generate", Requirement{Scope: model.ScopeFull})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if d.Allowed || d.Reason != DenyInsufficientScope {
		t.Errorf("expected InsufficientScope denial, got %+v", d)
	}

	// The same key is fine on a read route.
	d, err = auth.Authorize(ctx, Credentials{APIKey: issued.RawSecret},
		"GET", "/api/v1/chapters", Requirement{})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if !d.Allowed {
		t.Errorf("expected read route to allow, got %+v", d)
	}
}

func TestGateTier(t *testing.T) {
	auth, keys, store := newTestAuth(t)
	ctx := context.Background()

	issued, err := keys.Issue(ctx, "u1", "key", model.ScopeFull)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	premium := Requirement{Tiers: []model.Tier{model.TierPlus, model.TierPro}}

	d, err := auth.Authorize(ctx, Credentials{APIKey: issued.RawSecret}, "POST", "/api/v1/skybox", premium)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if d.Allowed || d.Reason != DenyInsufficientTier {
		t.Errorf("expected InsufficientTier denial for free tier, got %+v", d)
	}

	if err := store.SetSubjectProfile(ctx, &model.SubjectProfile{
		SubjectID: "u1", Tier: model.TierPro, Credits: 10,
	}); err != nil {
		t.Fatalf("SetSubjectProfile: %v", err)
	}

	d, err = auth.Authorize(ctx, Credentials{APIKey: issued.RawSecret}, "POST", "/api/v1/skybox", premium)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if !d.Allowed {
		t.Errorf("expected pro tier to pass, got %+v", d)
	}
}

func TestGateCredits(t *testing.T) {
	auth, keys, store := newTestAuth(t)
	ctx := context.Background()

	issued, err := keys.Issue(ctx, "u1", "key", model.ScopeFull)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := store.SetSubjectProfile(ctx, &model.SubjectProfile{
		SubjectID: "u1", Tier: model.TierFree, Credits: 0,
	}); err != nil {
		t.Fatalf("SetSubjectProfile: %v", err)
	}

	d, err := auth.Authorize(ctx, Credentials{APIKey: issued.RawSecret},
		"POST", "/api/v1/tts", Requirement{RequireCredits: true})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if d.Allowed || d.Reason != DenyCreditsExhausted {
		t.Errorf("expected CreditsExhausted denial, got %+v", d)
	}

	// The same principal on a route that doesn't meter credits is allowed.
	d, err = auth.Authorize(ctx, Credentials{APIKey: issued.RawSecret},
		"GET", "/api/v1/chapters", Requirement{})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if !d.Allowed {
		t.Errorf("expected non-metered route to allow, got %+v", d)
	}
}

func TestGateCreditCheckBypassedForSessions(t *testing.T) {
	auth, _, store := newTestAuth(t)
	ctx := context.Background()

	if err := store.SetSubjectProfile(ctx, &model.SubjectProfile{
		SubjectID: "u1", Tier: model.TierFree, Credits: 0,
	}); err != nil {
		t.Fatalf("SetSubjectProfile: %v", err)
	}

	d, err := auth.Authorize(ctx, Credentials{SessionToken: sessionToken(t, "u1", time.Hour)},
		"POST", "/api/v1/tts", Requirement{RequireCredits: true, Scope: model.ScopeFull})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if !d.Allowed {
		t.Errorf("interactive sessions are not credit-metered, got %+v", d)
	}
}
