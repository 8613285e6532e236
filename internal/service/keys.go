package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/brightclass/keygate/internal/config"
	"github.com/brightclass/keygate/internal/model"
	"github.com/brightclass/keygate/internal/secret"
)

// MaxActiveKeys is the per-subject quota of concurrent non-revoked keys.
// The count-then-insert sequence is not transactional, so two concurrent
// issuances can both pass the check; the quota is a soft limit.
const MaxActiveKeys = 5

// KeyService orchestrates the credential lifecycle: issuance, listing,
// revocation, and regeneration. It owns all business rules (quota,
// ownership, label and scope validation); the store stays a dumb
// persistence boundary.
type KeyService struct {
	store  *config.Store
	logger *slog.Logger
}

// NewKeyService creates a KeyService backed by the given store.
func NewKeyService(store *config.Store, logger *slog.Logger) *KeyService {
	return &KeyService{store: store, logger: logger}
}

// Issue creates a new API key for the subject and returns its public record
// together with the one-time raw secret. This is the only code path in the
// system that holds the raw secret after generation; callers surface it to
// the requester exactly once and must not log it.
func (s *KeyService) Issue(ctx context.Context, subjectID, label string, scope model.Scope) (*model.IssuedKey, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, validationError("invalid_label", "label must not be empty")
	}
	if !scope.Valid() {
		return nil, validationError("invalid_scope", "scope must be %q or %q", model.ScopeRead, model.ScopeFull)
	}

	active, err := s.store.CountActiveAPIKeys(ctx, subjectID)
	if err != nil {
		return nil, internalError("count active keys", err)
	}
	if active >= MaxActiveKeys {
		return nil, newError(KindQuota, "key_quota_exceeded",
			"active key limit reached; revoke an existing key first")
	}

	rawKey, err := secret.Generate()
	if err != nil {
		return nil, internalError("generate key", err)
	}
	hash, err := secret.Hash(rawKey)
	if err != nil {
		return nil, internalError("hash key", err)
	}

	key := &model.APIKey{
		SubjectID: subjectID,
		Label:     label,
		KeyHash:   hash,
		KeyPrefix: secret.DisplayPrefix(rawKey),
		Scope:     scope,
	}
	if err := s.store.CreateAPIKey(ctx, key); err != nil {
		return nil, internalError("save key", err)
	}

	s.logger.Info("api key issued",
		"subject_id", subjectID, "key_id", key.ID, "prefix", key.KeyPrefix, "scope", scope)

	return &model.IssuedKey{Key: key.View(), RawSecret: rawKey}, nil
}

// List returns all of the subject's keys, active and revoked, newest first,
// with only public-safe fields. The sort runs in memory so the ordering
// holds even if the store cannot satisfy it directly.
func (s *KeyService) List(ctx context.Context, subjectID string) ([]model.APIKeyView, error) {
	keys, err := s.store.ListAPIKeysBySubject(ctx, subjectID)
	if err != nil {
		return nil, internalError("list keys", err)
	}

	sort.SliceStable(keys, func(i, j int) bool {
		if keys[i].CreatedAt.Equal(keys[j].CreatedAt) {
			return keys[i].ID > keys[j].ID
		}
		return keys[i].CreatedAt.After(keys[j].CreatedAt)
	})

	views := make([]model.APIKeyView, len(keys))
	for i := range keys {
		views[i] = keys[i].View()
	}
	return views, nil
}

// Revoke marks a key as revoked after re-verifying ownership. The check
// order is significant: existence before ownership before revocation state,
// so responses never leak cross-tenant existence beyond "not found".
func (s *KeyService) Revoke(ctx context.Context, subjectID string, keyID int64) error {
	key, err := s.store.GetAPIKey(ctx, keyID)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return newError(KindNotFound, "key_not_found", "api key not found")
		}
		return internalError("get key", err)
	}
	if key.SubjectID != subjectID {
		return newError(KindAuthorization, "not_key_owner", "api key belongs to another subject")
	}
	if key.Revoked {
		return validationError("key_already_revoked", "api key is already revoked")
	}

	if err := s.store.RevokeAPIKey(ctx, keyID); err != nil {
		if errors.Is(err, config.ErrAlreadyRevoked) {
			return validationError("key_already_revoked", "api key is already revoked")
		}
		return internalError("revoke key", err)
	}

	s.logger.Info("api key revoked", "subject_id", subjectID, "key_id", keyID)
	return nil
}

// Regenerate revokes the key and issues a replacement with the same label
// and scope as one logical operation. If the revoke fails, the issue is
// never attempted.
func (s *KeyService) Regenerate(ctx context.Context, subjectID string, keyID int64) (*model.IssuedKey, error) {
	old, err := s.store.GetAPIKey(ctx, keyID)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return nil, newError(KindNotFound, "key_not_found", "api key not found")
		}
		return nil, internalError("get key", err)
	}

	if err := s.Revoke(ctx, subjectID, keyID); err != nil {
		return nil, err
	}
	return s.Issue(ctx, subjectID, old.Label, old.Scope)
}
