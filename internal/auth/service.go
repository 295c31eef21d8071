// Package auth implements account creation, password login, and token
// verification. Signing in or out publishes an Event so session-scoped
// resources (the progress trackers) can follow auth state.
package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ANANT0908/lessonwatch/internal/store"
)

var (
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// emailPattern mirrors the signup form check: something@something.tld with no
// whitespace. Deliverability is not our problem.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const minPasswordLen = 6

// Config holds the token signing parameters.
type Config struct {
	JWTSecret string
	AccessTTL time.Duration
}

// Claims is the token payload: subject is the user id.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Session is what a successful signup or login hands back to the client.
type Session struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Service owns the credential store, the user document store, and the token
// secret.
type Service struct {
	users       store.UserStore
	creds       store.CredentialStore
	secret      []byte
	ttl         time.Duration
	broadcaster *Broadcaster
	logger      *zap.Logger
	now         func() time.Time
}

// NewService validates the config and builds the service. The broadcaster may
// be nil when nothing needs auth events.
func NewService(
	cfg Config,
	users store.UserStore,
	creds store.CredentialStore,
	broadcaster *Broadcaster,
	logger *zap.Logger,
) (*Service, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("auth: jwt secret is required")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		users:       users,
		creds:       creds,
		secret:      []byte(cfg.JWTSecret),
		ttl:         cfg.AccessTTL,
		broadcaster: broadcaster,
		logger:      logger,
		now:         time.Now,
	}, nil
}

// Register creates the credential, the user document with empty progress and
// completed maps, and returns a signed session. The credential claims the
// email first so two concurrent signups cannot share an address.
func (s *Service) Register(ctx context.Context, email, password string) (Session, error) {
	email = normalizeEmail(email)
	if !emailPattern.MatchString(email) {
		return Session{}, ErrInvalidEmail
	}
	if len(password) < minPasswordLen {
		return Session{}, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}

	userID := uuid.NewString()
	now := s.now().UTC()
	err = s.creds.CreateCredential(ctx, store.Credential{
		Email:        email,
		UserID:       userID,
		PasswordHash: hash,
		CreatedAt:    now,
	})
	if err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			return Session{}, ErrEmailTaken
		}
		return Session{}, fmt.Errorf("store credential: %w", err)
	}

	err = s.users.CreateUser(ctx, store.UserDocument{
		UserID:    userID,
		Email:     email,
		Progress:  map[string]int{},
		Completed: map[string]bool{},
		CreatedAt: now,
	})
	if err != nil {
		return Session{}, fmt.Errorf("create user document: %w", err)
	}

	s.logger.Info("account created", zap.String("user_id", userID))
	return s.issue(userID, email)
}

// Login verifies the password against the stored bcrypt hash and, when the
// user document is missing (legacy accounts), recreates it before issuing
// the session.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = normalizeEmail(email)
	cred, err := s.creds.GetCredential(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("load credential: %w", err)
	}
	if bcrypt.CompareHashAndPassword(cred.PasswordHash, []byte(password)) != nil {
		return Session{}, ErrInvalidCredentials
	}

	if err := s.ensureUserDocument(ctx, cred.UserID, email); err != nil {
		s.logger.Warn("user document repair failed",
			zap.String("user_id", cred.UserID), zap.Error(err))
	}

	s.logger.Info("login", zap.String("user_id", cred.UserID))
	return s.issue(cred.UserID, email)
}

// ensureUserDocument backfills the document for accounts whose credential
// exists but whose document write was lost.
func (s *Service) ensureUserDocument(ctx context.Context, userID, email string) error {
	_, err := s.users.GetUser(ctx, userID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return s.users.CreateUser(ctx, store.UserDocument{
		UserID:    userID,
		Email:     email,
		Progress:  map[string]int{},
		Completed: map[string]bool{},
		CreatedAt: s.now().UTC(),
	})
}

// Logout only publishes the sign-out event; tokens stay valid until expiry.
func (s *Service) Logout(userID string) {
	if s.broadcaster != nil {
		s.broadcaster.Publish(Event{UserID: userID, SignedIn: false})
	}
}

// VerifyToken parses and validates an access token, enforcing HS256.
func (s *Service) VerifyToken(tokenString string) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

func (s *Service) issue(userID, email string) (Session, error) {
	now := s.now().UTC()
	expires := now.Add(s.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return Session{}, fmt.Errorf("sign token: %w", err)
	}
	if s.broadcaster != nil {
		s.broadcaster.Publish(Event{UserID: userID, SignedIn: true})
	}
	return Session{UserID: userID, Email: email, Token: signed, ExpiresAt: expires}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
