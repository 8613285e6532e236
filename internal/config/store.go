package config

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/brightclass/keygate/internal/model"
)

// Store is the persistence boundary for credential records, subject profiles,
// and instance settings, backed by SQLite. It does not interpret business
// rules (quota, ownership); that logic lives in the service layer. Reads are
// read-after-write consistent, which the revocation path depends on.
type Store struct {
	db *sqlx.DB
}

// NewStore creates a new store. Pass empty string for in-memory.
func NewStore(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == "" {
		dsn = ":memory:?_journal_mode=WAL"
	} else {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = filepath.Join(dataDir, "keygate.db") + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ---------------------------------------------------------------------------
// API keys
// ---------------------------------------------------------------------------

// CreateAPIKey inserts a new credential record. The key_hash must already be
// set by the caller. The ID and CreatedAt fields are populated after insert.
func (s *Store) CreateAPIKey(ctx context.Context, key *model.APIKey) error {
	key.CreatedAt = time.Now().UTC()

	const q = `INSERT INTO api_keys
		(subject_id, label, key_hash, key_prefix, scope, revoked, usage_count, created_at)
		VALUES
		(:subject_id, :label, :key_hash, :key_prefix, :scope, :revoked, :usage_count, :created_at)`

	result, err := s.db.NamedExecContext(ctx, q, key)
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get api key id: %w", err)
	}
	key.ID = id
	return nil
}

// GetAPIKey returns a credential record by ID.
func (s *Store) GetAPIKey(ctx context.Context, id int64) (*model.APIKey, error) {
	var key model.APIKey
	if err := s.db.GetContext(ctx, &key, "SELECT * FROM api_keys WHERE id = ?", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get api key: %w", err)
	}
	return &key, nil
}

// ListAPIKeysBySubject returns all credential records owned by the subject,
// active and revoked, newest first.
func (s *Store) ListAPIKeysBySubject(ctx context.Context, subjectID string) ([]model.APIKey, error) {
	var keys []model.APIKey
	const q = "SELECT * FROM api_keys WHERE subject_id = ? ORDER BY created_at DESC, id DESC"
	if err := s.db.SelectContext(ctx, &keys, q, subjectID); err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return keys, nil
}

// CountActiveAPIKeys returns the number of non-revoked credentials owned by
// the subject, used for quota enforcement.
func (s *Store) CountActiveAPIKeys(ctx context.Context, subjectID string) (int, error) {
	var count int
	const q = "SELECT COUNT(*) FROM api_keys WHERE subject_id = ? AND revoked = 0"
	if err := s.db.GetContext(ctx, &count, q, subjectID); err != nil {
		return 0, fmt.Errorf("count active api keys: %w", err)
	}
	return count, nil
}

// GetAPIKeysByPrefix returns all credential records whose display prefix
// matches. The prefix reveals only 8 of 32 random characters, so it is not
// unique by construction and this may return more than one candidate.
func (s *Store) GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]model.APIKey, error) {
	var keys []model.APIKey
	if err := s.db.SelectContext(ctx, &keys, "SELECT * FROM api_keys WHERE key_prefix = ?", prefix); err != nil {
		return nil, fmt.Errorf("get api keys by prefix: %w", err)
	}
	return keys, nil
}

// RevokeAPIKey marks a credential as revoked. Returns ErrNotFound if the ID
// does not exist and ErrAlreadyRevoked if the key was revoked previously;
// revocation is a one-way transition and is never undone.
func (s *Store) RevokeAPIKey(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		"UPDATE api_keys SET revoked = 1, revoked_at = ? WHERE id = ? AND revoked = 0", now, id)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke api key rows affected: %w", err)
	}
	if n == 0 {
		// Distinguish a missing key from one that lost the conditional update.
		if _, err := s.GetAPIKey(ctx, id); err != nil {
			return err
		}
		return ErrAlreadyRevoked
	}
	return nil
}

// TouchAPIKey sets the last_used timestamp and increments the usage counter
// in a single statement.
func (s *Store) TouchAPIKey(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		"UPDATE api_keys SET last_used = ?, usage_count = usage_count + 1 WHERE id = ?", now, id)
	if err != nil {
		return fmt.Errorf("touch api key: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("touch api key rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// Subject profiles
// ---------------------------------------------------------------------------

// GetSubjectProfile returns the billing profile for a subject. Subjects with
// no explicit profile row get sane defaults rather than an error.
func (s *Store) GetSubjectProfile(ctx context.Context, subjectID string) (*model.SubjectProfile, error) {
	var profile model.SubjectProfile
	if err := s.db.GetContext(ctx, &profile, "SELECT * FROM subjects WHERE subject_id = ?", subjectID); err != nil {
		if err == sql.ErrNoRows {
			return &model.SubjectProfile{
				SubjectID: subjectID,
				Tier:      model.DefaultTier,
				Credits:   model.DefaultCredits,
			}, nil
		}
		return nil, fmt.Errorf("get subject profile: %w", err)
	}
	return &profile, nil
}

// SetSubjectProfile upserts a subject's tier and credit balance.
func (s *Store) SetSubjectProfile(ctx context.Context, profile *model.SubjectProfile) error {
	profile.UpdatedAt = time.Now().UTC()

	const q = `INSERT INTO subjects (subject_id, tier, credits, updated_at)
		VALUES (:subject_id, :tier, :credits, :updated_at)
		ON CONFLICT(subject_id) DO UPDATE SET
			tier = excluded.tier, credits = excluded.credits, updated_at = excluded.updated_at`

	if _, err := s.db.NamedExecContext(ctx, q, profile); err != nil {
		return fmt.Errorf("set subject profile: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Settings
// ---------------------------------------------------------------------------

// GetSetting returns an instance setting value, or ErrNotFound.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	if err := s.db.GetContext(ctx, &value, "SELECT value FROM settings WHERE key = ?", key); err != nil {
		if err == sql.ErrNoRows {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get setting: %w", err)
	}
	return value, nil
}

// SetSetting upserts an instance setting.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	const q = `INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err := s.db.ExecContext(ctx, q, key, value); err != nil {
		return fmt.Errorf("set setting: %w", err)
	}
	return nil
}
