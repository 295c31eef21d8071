// Package store declares interfaces for persisting user documents.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound signals that the requested document does not exist.
var ErrNotFound = errors.New("document not found")

// ErrEmailTaken signals that a credential already claims the email.
var ErrEmailTaken = errors.New("email already registered")

// UserDocument is the per-user record owning the progress and completed maps.
// It is created once at signup (or on first login) and field-level-updated on
// every progress tick and completion toggle. It is never deleted.
type UserDocument struct {
	// UserID is the primary key, assigned by the identity layer.
	UserID string
	// Email is the address the account was registered with.
	Email string
	// Progress maps lesson id to truncated watch percent (0-100).
	Progress map[string]int
	// Completed maps lesson id to the explicit completion flag.
	Completed map[string]bool
	// CreatedAt records when the document was first written.
	CreatedAt time.Time
}

// Credential holds the login secret for one account, keyed by normalized
// email so lookups at login never need a user-id first.
type Credential struct {
	Email        string
	UserID       string
	PasswordHash []byte
	CreatedAt    time.Time
}

// UserStore persists user documents with field-level merge semantics. A field
// key addresses a single leaf such as "progress.lesson1"; merging one key
// never clobbers sibling keys.
type UserStore interface {
	// GetUser loads a document or returns ErrNotFound.
	GetUser(ctx context.Context, userID string) (UserDocument, error)
	// CreateUser writes the full document. Used once at account creation.
	CreateUser(ctx context.Context, doc UserDocument) error
	// UpdateFields merges leaf fields into an existing document.
	UpdateFields(ctx context.Context, userID string, fields map[string]any) error
}

// CredentialStore persists login credentials.
type CredentialStore interface {
	// GetCredential loads by normalized email or returns ErrNotFound.
	GetCredential(ctx context.Context, email string) (Credential, error)
	// CreateCredential writes a credential; fails if the email is taken.
	CreateCredential(ctx context.Context, cred Credential) error
}

// Field section names recognized by SplitField.
const (
	SectionProgress  = "progress"
	SectionCompleted = "completed"
)

// ProgressField builds the leaf key for a lesson's percent.
func ProgressField(lessonID string) string {
	return SectionProgress + "." + lessonID
}

// CompletedField builds the leaf key for a lesson's completion flag.
func CompletedField(lessonID string) string {
	return SectionCompleted + "." + lessonID
}

// SplitField breaks a dotted leaf key into its section and lesson id. Keys
// must have exactly one dot and a known section.
func SplitField(key string) (section, lessonID string, err error) {
	section, lessonID, ok := strings.Cut(key, ".")
	if !ok || lessonID == "" || strings.Contains(lessonID, ".") {
		return "", "", fmt.Errorf("malformed field key %q", key)
	}
	if section != SectionProgress && section != SectionCompleted {
		return "", "", fmt.Errorf("unknown field section %q", section)
	}
	return section, lessonID, nil
}
