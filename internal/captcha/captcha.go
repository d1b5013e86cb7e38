// Package captcha issues image challenges and validates them exactly once.
package captcha

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// Defaults for issued challenges.
const (
	DefaultTTL        = time.Hour
	DefaultCodeLength = 6
)

// Challenge is an issued captcha: the session id plus the rendered PNG.
type Challenge struct {
	SessionID string
	Image     []byte
}

// Option configures a Service.
type Option func(*Service)

// WithTTL overrides the challenge lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) { s.ttl = ttl }
}

// WithCodeSource replaces the random code generator.
func WithCodeSource(fn func() (string, error)) Option {
	return func(s *Service) { s.newCode = fn }
}

// Service binds generated codes to session ids in a Store.
type Service struct {
	store   Store
	ttl     time.Duration
	newCode func() (string, error)
	render  func(string) ([]byte, error)
	logger  *slog.Logger
}

// NewService creates a Service over store.
func NewService(store Store, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:   store,
		ttl:     DefaultTTL,
		newCode: func() (string, error) { return GenerateCode(DefaultCodeLength) },
		render:  Render,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue generates a code, stores its digest under a fresh session id and
// returns the rendered image.
func (s *Service) Issue(ctx context.Context) (Challenge, error) {
	code, err := s.newCode()
	if err != nil {
		return Challenge{}, fmt.Errorf("generate captcha code: %w", err)
	}
	img, err := s.render(code)
	if err != nil {
		return Challenge{}, err
	}
	sessionID := uuid.New().String()
	if err := s.store.Set(ctx, sessionID, digest(code), s.ttl); err != nil {
		return Challenge{}, fmt.Errorf("store captcha: %w", err)
	}
	s.logger.Info("captcha issued", "session_id", sessionID)
	return Challenge{SessionID: sessionID, Image: img}, nil
}

// ValidateAndConsume reports whether code matches the live challenge for
// sessionID. The entry is removed by the lookup itself, so a session can
// succeed at most once; a wrong code also burns the session. Codes are
// generated upper-case only, so the comparison ignores case.
func (s *Service) ValidateAndConsume(ctx context.Context, sessionID, code string) (bool, error) {
	if sessionID == "" || code == "" {
		return false, nil
	}
	want, err := s.store.Take(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	got := digest(code)
	return subtle.ConstantTimeCompare(want, got) == 1, nil
}

func digest(code string) []byte {
	sum := blake2b.Sum256([]byte(strings.ToUpper(strings.TrimSpace(code))))
	return sum[:]
}
