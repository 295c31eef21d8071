// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ANANT0908/lessonwatch/internal/store"
)

// UserStoreConfig controls the Postgres connection pool behind the user store.
type UserStoreConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// UserStore persists user documents in a users table with jsonb progress and
// completed columns. Field merges use jsonb_set so sibling keys are preserved.
type UserStore struct {
	pool querier
}

// NewUserStore creates a Postgres-backed UserStore using the provided config.
func NewUserStore(ctx context.Context, cfg UserStoreConfig) (*UserStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &UserStore{pool: pool}, nil
}

// NewUserStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewUserStoreWithPool(pool querier) (*UserStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &UserStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *UserStore) Close() {
	s.pool.Close()
}

// GetUser loads a document or returns store.ErrNotFound.
func (s *UserStore) GetUser(ctx context.Context, userID string) (store.UserDocument, error) {
	query := `
		SELECT id, email, progress, completed, created_at
		FROM users
		WHERE id = $1;
	`
	var (
		doc           store.UserDocument
		progressJSON  []byte
		completedJSON []byte
	)
	err := s.pool.QueryRow(ctx, query, userID).Scan(
		&doc.UserID,
		&doc.Email,
		&progressJSON,
		&completedJSON,
		&doc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.UserDocument{}, store.ErrNotFound
		}
		return store.UserDocument{}, fmt.Errorf("get user: %w", err)
	}
	if err := json.Unmarshal(progressJSON, &doc.Progress); err != nil {
		return store.UserDocument{}, fmt.Errorf("decode progress map: %w", err)
	}
	if err := json.Unmarshal(completedJSON, &doc.Completed); err != nil {
		return store.UserDocument{}, fmt.Errorf("decode completed map: %w", err)
	}
	return doc, nil
}

// CreateUser writes the full document, overwriting an existing row.
func (s *UserStore) CreateUser(ctx context.Context, doc store.UserDocument) error {
	if doc.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	progressJSON, err := encodeMap(doc.Progress)
	if err != nil {
		return fmt.Errorf("encode progress map: %w", err)
	}
	completedJSON, err := encodeMap(doc.Completed)
	if err != nil {
		return fmt.Errorf("encode completed map: %w", err)
	}
	query := `
		INSERT INTO users (id, email, progress, completed, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET email = EXCLUDED.email,
		    progress = EXCLUDED.progress,
		    completed = EXCLUDED.completed;
	`
	if _, err := s.pool.Exec(ctx, query, doc.UserID, doc.Email, progressJSON, completedJSON, doc.CreatedAt); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UpdateFields merges leaf keys such as "progress.lesson1". Each key becomes
// one jsonb_set call on the owning column, so sibling keys are untouched.
func (s *UserStore) UpdateFields(ctx context.Context, userID string, fields map[string]any) error {
	for key, value := range fields {
		section, lessonID, err := store.SplitField(key)
		if err != nil {
			return err
		}
		valueJSON, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode field %q: %w", key, err)
		}
		query := fmt.Sprintf(`
			UPDATE users
			SET %s = jsonb_set(%s, $1, $2::jsonb, true)
			WHERE id = $3;
		`, section, section)
		tag, err := s.pool.Exec(ctx, query, []string{lessonID}, valueJSON, userID)
		if err != nil {
			return fmt.Errorf("merge field %q: %w", key, err)
		}
		if tag.RowsAffected() == 0 {
			return store.ErrNotFound
		}
	}
	return nil
}

// GetCredential loads by normalized email or returns store.ErrNotFound.
func (s *UserStore) GetCredential(ctx context.Context, email string) (store.Credential, error) {
	query := `
		SELECT email, user_id, password_hash, created_at
		FROM credentials
		WHERE email = lower(trim($1));
	`
	var cred store.Credential
	err := s.pool.QueryRow(ctx, query, email).Scan(
		&cred.Email,
		&cred.UserID,
		&cred.PasswordHash,
		&cred.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Credential{}, store.ErrNotFound
		}
		return store.Credential{}, fmt.Errorf("get credential: %w", err)
	}
	return cred, nil
}

// CreateCredential inserts a credential; a taken email fails the insert.
func (s *UserStore) CreateCredential(ctx context.Context, cred store.Credential) error {
	query := `
		INSERT INTO credentials (email, user_id, password_hash, created_at)
		VALUES (lower(trim($1)), $2, $3, $4);
	`
	if _, err := s.pool.Exec(ctx, query, cred.Email, cred.UserID, cred.PasswordHash, cred.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%s: %w", cred.Email, store.ErrEmailTaken)
		}
		return fmt.Errorf("create credential: %w", err)
	}
	return nil
}

// encodeMap marshals a possibly nil map as an empty JSON object rather than null.
func encodeMap(m any) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" {
		return []byte("{}"), nil
	}
	return data, nil
}
