// Package redis provides a Redis-backed user document store. Each document
// map lives in its own hash, so a field merge is a plain HSET and never
// touches sibling keys.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ANANT0908/lessonwatch/internal/store"
)

// UserStoreConfig controls the Redis client behind the user store.
type UserStoreConfig struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// UserStore implements store.UserStore and store.CredentialStore on Redis
// hashes:
//
//	user:{id}            meta (email, created_at)
//	user:{id}:progress   lesson id -> percent
//	user:{id}:completed  lesson id -> 0/1
//	cred:{email}         user_id, password_hash, created_at
type UserStore struct {
	rdb *goredis.Client
}

// NewUserStore dials Redis and verifies the connection with a ping.
func NewUserStore(ctx context.Context, cfg UserStoreConfig) (*UserStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("store.redis.addr is required")
	}
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: dialTimeout,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &UserStore{rdb: rdb}, nil
}

// NewUserStoreWithClient constructs a store from an existing client
// (primarily for testing).
func NewUserStoreWithClient(rdb *goredis.Client) *UserStore {
	return &UserStore{rdb: rdb}
}

// Close releases the underlying client.
func (s *UserStore) Close() error {
	if err := s.rdb.Close(); err != nil {
		return fmt.Errorf("close redis client: %w", err)
	}
	return nil
}

// GetUser loads a document or returns store.ErrNotFound.
func (s *UserStore) GetUser(ctx context.Context, userID string) (store.UserDocument, error) {
	meta, err := s.rdb.HGetAll(ctx, metaKey(userID)).Result()
	if err != nil {
		return store.UserDocument{}, fmt.Errorf("get user meta: %w", err)
	}
	if len(meta) == 0 {
		return store.UserDocument{}, store.ErrNotFound
	}
	doc := store.UserDocument{
		UserID:    userID,
		Email:     meta["email"],
		Progress:  map[string]int{},
		Completed: map[string]bool{},
	}
	if raw := meta["created_at"]; raw != "" {
		ts, parseErr := time.Parse(time.RFC3339Nano, raw)
		if parseErr != nil {
			return store.UserDocument{}, fmt.Errorf("parse created_at: %w", parseErr)
		}
		doc.CreatedAt = ts
	}
	progress, err := s.rdb.HGetAll(ctx, progressKey(userID)).Result()
	if err != nil {
		return store.UserDocument{}, fmt.Errorf("get progress map: %w", err)
	}
	for lessonID, raw := range progress {
		percent, parseErr := strconv.Atoi(raw)
		if parseErr != nil {
			return store.UserDocument{}, fmt.Errorf("parse percent for %s: %w", lessonID, parseErr)
		}
		doc.Progress[lessonID] = percent
	}
	completed, err := s.rdb.HGetAll(ctx, completedKey(userID)).Result()
	if err != nil {
		return store.UserDocument{}, fmt.Errorf("get completed map: %w", err)
	}
	for lessonID, raw := range completed {
		doc.Completed[lessonID] = raw == "1"
	}
	return doc, nil
}

// CreateUser writes the full document, replacing any previous hashes.
func (s *UserStore) CreateUser(ctx context.Context, doc store.UserDocument) error {
	if doc.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, metaKey(doc.UserID), progressKey(doc.UserID), completedKey(doc.UserID))
	pipe.HSet(ctx, metaKey(doc.UserID),
		"email", doc.Email,
		"created_at", doc.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	for lessonID, percent := range doc.Progress {
		pipe.HSet(ctx, progressKey(doc.UserID), lessonID, percent)
	}
	for lessonID, flag := range doc.Completed {
		pipe.HSet(ctx, completedKey(doc.UserID), lessonID, boolField(flag))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UpdateFields merges leaf keys like "progress.lesson1" via HSET.
func (s *UserStore) UpdateFields(ctx context.Context, userID string, fields map[string]any) error {
	exists, err := s.rdb.Exists(ctx, metaKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("check user exists: %w", err)
	}
	if exists == 0 {
		return store.ErrNotFound
	}
	pipe := s.rdb.TxPipeline()
	for key, value := range fields {
		section, lessonID, splitErr := store.SplitField(key)
		if splitErr != nil {
			return splitErr
		}
		switch section {
		case store.SectionProgress:
			pipe.HSet(ctx, progressKey(userID), lessonID, fmt.Sprint(value))
		case store.SectionCompleted:
			flag, ok := value.(bool)
			if !ok {
				return fmt.Errorf("field %q: expected bool, got %T", key, value)
			}
			pipe.HSet(ctx, completedKey(userID), lessonID, boolField(flag))
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("merge fields: %w", err)
	}
	return nil
}

// GetCredential loads by normalized email or returns store.ErrNotFound.
func (s *UserStore) GetCredential(ctx context.Context, email string) (store.Credential, error) {
	key := credKey(email)
	fields, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return store.Credential{}, fmt.Errorf("get credential: %w", err)
	}
	if len(fields) == 0 {
		return store.Credential{}, store.ErrNotFound
	}
	cred := store.Credential{
		Email:        normalizeEmail(email),
		UserID:       fields["user_id"],
		PasswordHash: []byte(fields["password_hash"]),
	}
	if raw := fields["created_at"]; raw != "" {
		ts, parseErr := time.Parse(time.RFC3339Nano, raw)
		if parseErr != nil {
			return store.Credential{}, fmt.Errorf("parse created_at: %w", parseErr)
		}
		cred.CreatedAt = ts
	}
	return cred, nil
}

// CreateCredential claims the email with HSETNX semantics.
func (s *UserStore) CreateCredential(ctx context.Context, cred store.Credential) error {
	key := credKey(cred.Email)
	claimed, err := s.rdb.HSetNX(ctx, key, "user_id", cred.UserID).Result()
	if err != nil {
		return fmt.Errorf("claim credential: %w", err)
	}
	if !claimed {
		return fmt.Errorf("%s: %w", normalizeEmail(cred.Email), store.ErrEmailTaken)
	}
	err = s.rdb.HSet(ctx, key,
		"password_hash", string(cred.PasswordHash),
		"created_at", cred.CreatedAt.UTC().Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		return fmt.Errorf("create credential: %w", err)
	}
	return nil
}

func metaKey(userID string) string {
	return "user:" + userID
}

func progressKey(userID string) string {
	return "user:" + userID + ":progress"
}

func completedKey(userID string) string {
	return "user:" + userID + ":completed"
}

func credKey(email string) string {
	return "cred:" + normalizeEmail(email)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func boolField(flag bool) string {
	if flag {
		return "1"
	}
	return "0"
}
