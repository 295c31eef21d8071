// Package memory provides in-memory stores for development and testing.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ANANT0908/lessonwatch/internal/store"
)

// UserStore implements store.UserStore and store.CredentialStore with
// mutex-guarded maps.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]store.UserDocument
	creds map[string]store.Credential
}

// NewUserStore constructs an empty UserStore.
func NewUserStore() *UserStore {
	return &UserStore{
		users: make(map[string]store.UserDocument),
		creds: make(map[string]store.Credential),
	}
}

// GetUser loads a document copy or returns store.ErrNotFound.
func (s *UserStore) GetUser(_ context.Context, userID string) (store.UserDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.users[userID]
	if !ok {
		return store.UserDocument{}, store.ErrNotFound
	}
	return cloneDoc(doc), nil
}

// CreateUser stores the full document, overwriting any previous version.
func (s *UserStore) CreateUser(_ context.Context, doc store.UserDocument) error {
	if doc.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[doc.UserID] = cloneDoc(doc)
	return nil
}

// UpdateFields merges leaf keys like "progress.lesson1" into the document.
func (s *UserStore) UpdateFields(_ context.Context, userID string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	doc = cloneDoc(doc)
	for key, value := range fields {
		section, lessonID, err := store.SplitField(key)
		if err != nil {
			return err
		}
		switch section {
		case store.SectionProgress:
			percent, err := toInt(value)
			if err != nil {
				return fmt.Errorf("field %q: %w", key, err)
			}
			doc.Progress[lessonID] = percent
		case store.SectionCompleted:
			flag, ok := value.(bool)
			if !ok {
				return fmt.Errorf("field %q: expected bool, got %T", key, value)
			}
			doc.Completed[lessonID] = flag
		}
	}
	s.users[userID] = doc
	return nil
}

// GetCredential loads by normalized email or returns store.ErrNotFound.
func (s *UserStore) GetCredential(_ context.Context, email string) (store.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.creds[normalizeEmail(email)]
	if !ok {
		return store.Credential{}, store.ErrNotFound
	}
	return cred, nil
}

// CreateCredential stores the credential; the email must be unclaimed.
func (s *UserStore) CreateCredential(_ context.Context, cred store.Credential) error {
	key := normalizeEmail(cred.Email)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.creds[key]; exists {
		return fmt.Errorf("%s: %w", key, store.ErrEmailTaken)
	}
	cred.Email = key
	s.creds[key] = cred
	return nil
}

func cloneDoc(doc store.UserDocument) store.UserDocument {
	cp := doc
	cp.Progress = make(map[string]int, len(doc.Progress))
	for k, v := range doc.Progress {
		cp.Progress[k] = v
	}
	cp.Completed = make(map[string]bool, len(doc.Completed))
	for k, v := range doc.Completed {
		cp.Completed[k] = v
	}
	return cp
}

func toInt(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", value)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
