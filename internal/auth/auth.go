// Package auth handles user accounts and request authentication: bcrypt
// password hashes, signed session tokens for browsers, and API keys for
// the command line.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/wsio/wsio/internal/errs"
	"github.com/wsio/wsio/internal/metrics"
	"github.com/wsio/wsio/internal/store"
)

// DefaultTokenTTL is how long an issued session token stays valid.
const DefaultTokenTTL = 24 * time.Hour

// Service issues and verifies credentials against the metadata store.
type Service struct {
	store    store.Store
	secret   []byte
	tokenTTL time.Duration
}

// NewService creates an auth Service. secret signs session tokens and
// must be stable across restarts.
func NewService(s store.Store, secret []byte) *Service {
	return &Service{store: s, secret: secret, tokenTTL: DefaultTokenTTL}
}

// Register creates a user with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, username, email, password string) (*store.User, error) {
	if username == "" || password == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "username and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindUnknown, "failed to hash password", err)
	}

	u := &store.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login verifies the password and returns a signed session token.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	u, err := s.store.UserByUsername(ctx, username)
	if err != nil {
		metrics.CountAuthAttempt(false)
		if errs.IsNotFound(err) {
			return "", errs.New(errs.ErrKindPermissionDenied, "invalid username or password")
		}
		return "", err
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		metrics.CountAuthAttempt(false)
		return "", errs.New(errs.ErrKindPermissionDenied, "invalid username or password")
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   u.ID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", errs.Wrap(errs.ErrKindUnknown, "failed to sign session token", err)
	}

	metrics.CountAuthAttempt(true)
	return token, nil
}

// VerifyToken parses a session token and loads its user.
func (s *Service) VerifyToken(ctx context.Context, token string) (*store.User, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil || !parsed.Valid {
		metrics.CountAuthAttempt(false)
		return nil, errs.Wrap(errs.ErrKindPermissionDenied, "invalid session token", err)
	}

	subject, err := parsed.Claims.GetSubject()
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindPermissionDenied, "session token has no subject", err)
	}
	id, err := uuid.Parse(subject)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindPermissionDenied, "malformed token subject", err)
	}

	u, err := s.store.UserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	metrics.CountAuthAttempt(true)
	return u, nil
}

// IssueAPIKey mints a key for the command line. The secret is returned
// exactly once; only its bcrypt hash is stored.
func (s *Service) IssueAPIKey(ctx context.Context, user *store.User) (keyID, secret string, err error) {
	keyID, err = randomHex(8)
	if err != nil {
		return "", "", err
	}
	secret, err = randomHex(24)
	if err != nil {
		return "", "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", "", errs.Wrap(errs.ErrKindUnknown, "failed to hash api key", err)
	}

	k := &store.APIKey{
		KeyID:      keyID,
		SecretHash: string(hash),
		UserID:     user.ID,
	}
	if err := s.store.CreateAPIKey(ctx, k); err != nil {
		return "", "", err
	}
	return keyID, secret, nil
}

// VerifyAPIKey checks a keyID/secret pair and loads its user.
func (s *Service) VerifyAPIKey(ctx context.Context, keyID, secret string) (*store.User, error) {
	k, err := s.store.APIKeyByKeyID(ctx, keyID)
	if err != nil {
		metrics.CountAuthAttempt(false)
		if errs.IsNotFound(err) {
			return nil, errs.New(errs.ErrKindPermissionDenied, "invalid api key")
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(k.SecretHash), []byte(secret)) != nil {
		metrics.CountAuthAttempt(false)
		return nil, errs.New(errs.ErrKindPermissionDenied, "invalid api key")
	}

	u, err := s.store.UserByID(ctx, k.UserID)
	if err != nil {
		return nil, err
	}
	metrics.CountAuthAttempt(true)
	return u, nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", errs.Wrap(errs.ErrKindUnknown, "failed to read random bytes", err)
	}
	return hex.EncodeToString(buf), nil
}
