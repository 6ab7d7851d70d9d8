// Package auth is the built-in auth provider: bcrypt credentials, opaque
// session tokens, password recovery and an auth state change subscription.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/youssefsiam38/taskpg/storage"
)

// MinPasswordLength is the shortest password UpdatePassword accepts.
const MinPasswordLength = 8

// Errors returned by the auth package.
var (
	ErrInvalidCredentials   = errors.New("auth: invalid credentials")
	ErrInvalidSession       = errors.New("auth: invalid session")
	ErrSessionExpired       = errors.New("auth: session expired")
	ErrWeakPassword         = fmt.Errorf("auth: password must be at least %d characters", MinPasswordLength)
	ErrInvalidRecoveryToken = errors.New("auth: invalid or expired recovery link")
)

// EventType identifies an auth state change.
type EventType string

const (
	EventSignedIn         EventType = "signed_in"
	EventSignedOut        EventType = "signed_out"
	EventPasswordRecovery EventType = "password_recovery"
	EventUserUpdated      EventType = "user_updated"
)

// Event is delivered to OnAuthStateChange handlers.
type Event struct {
	Type EventType

	// Session is the session the event concerns. It is nil for EventSignedOut.
	Session *Session

	ProfileID string
}

// Session is an authenticated session.
type Session struct {
	Token     string
	Profile   *storage.Profile
	Kind      storage.AuthSessionKind
	ExpiresAt time.Time
}

// Recovery reports whether the session was obtained through a recovery link.
// Such sessions should be sent to the password reset view.
func (s *Session) Recovery() bool {
	return s.Kind == storage.AuthSessionKindRecovery
}

// Logger is the logging interface used by the provider. *slog.Logger satisfies it.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Config holds configuration for the provider.
type Config struct {
	// SessionTTL is how long a sign-in lasts.
	// Default: 7 days
	SessionTTL time.Duration

	// RecoveryTTL is how long a recovery link stays valid.
	// Default: 1 hour
	RecoveryTTL time.Duration

	// BcryptCost is the hashing cost for new passwords.
	// Default: bcrypt.DefaultCost
	BcryptCost int

	// Now returns the current time. Default: time.Now
	Now func() time.Time

	// Logger for auth events. Default: none
	Logger Logger
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		SessionTTL:  7 * 24 * time.Hour,
		RecoveryTTL: time.Hour,
		BcryptCost:  bcrypt.DefaultCost,
		Now:         time.Now,
	}
}

func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.SessionTTL <= 0 {
		c.SessionTTL = defaults.SessionTTL
	}
	if c.RecoveryTTL <= 0 {
		c.RecoveryTTL = defaults.RecoveryTTL
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = defaults.BcryptCost
	}
	if c.Now == nil {
		c.Now = defaults.Now
	}
}

type subscription struct {
	id      int64
	handler func(Event)
}

// Provider implements sign-in, sign-out, session lookup, password update
// and recovery on top of a storage.Store.
type Provider struct {
	store  storage.Store
	config *Config

	mu     sync.RWMutex
	subs   []subscription
	nextID int64
}

// New creates a provider. A nil config uses DefaultConfig.
func New(store storage.Store, config *Config) *Provider {
	if config == nil {
		config = DefaultConfig()
	}
	config.applyDefaults()
	return &Provider{store: store, config: config}
}

// HashPassword hashes a password with the configured cost.
func (p *Provider) HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.config.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// SignIn verifies credentials and starts a session.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	creds, err := p.store.GetCredentials(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if creds.PasswordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	session, err := p.startSession(ctx, creds.Profile, storage.AuthSessionKindSignIn)
	if err != nil {
		return nil, err
	}
	p.log("user signed in", "profile_id", creds.Profile.ID)
	p.emit(Event{Type: EventSignedIn, Session: session, ProfileID: creds.Profile.ID})
	return session, nil
}

func (p *Provider) startSession(ctx context.Context, profile *storage.Profile, kind storage.AuthSessionKind) (*Session, error) {
	now := p.config.Now()
	record := &storage.AuthSession{
		Token:     uuid.NewString(),
		ProfileID: profile.ID,
		Kind:      kind,
		CreatedAt: now,
		ExpiresAt: now.Add(p.config.SessionTTL),
	}
	if err := p.store.CreateAuthSession(ctx, record); err != nil {
		return nil, err
	}
	return &Session{
		Token:     record.Token,
		Profile:   profile,
		Kind:      kind,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

// SignOut ends the session. Unknown tokens are ignored.
func (p *Provider) SignOut(ctx context.Context, token string) error {
	record, err := p.store.GetAuthSession(ctx, token)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := p.store.DeleteAuthSession(ctx, token); err != nil {
		return err
	}
	p.emit(Event{Type: EventSignedOut, ProfileID: record.ProfileID})
	return nil
}

// Session returns the live session for token. Expired sessions are deleted
// and reported as ErrSessionExpired.
func (p *Provider) Session(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}
	record, err := p.store.GetAuthSession(ctx, token)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, err
	}
	// An unredeemed recovery link is not a session.
	if record.Kind == storage.AuthSessionKindRecoveryToken {
		return nil, ErrInvalidSession
	}
	if record.Expired(p.config.Now()) {
		if err := p.store.DeleteAuthSession(ctx, token); err != nil {
			p.warn("failed to delete expired session", "error", err)
		}
		return nil, ErrSessionExpired
	}

	profile, err := p.store.GetProfile(ctx, record.ProfileID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, err
	}
	return &Session{
		Token:     record.Token,
		Profile:   profile,
		Kind:      record.Kind,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

// UpdatePassword sets a new password for the session's profile.
func (p *Provider) UpdatePassword(ctx context.Context, token, password string) error {
	session, err := p.Session(ctx, token)
	if err != nil {
		return err
	}
	hash, err := p.HashPassword(password)
	if err != nil {
		return err
	}
	if err := p.store.SetPasswordHash(ctx, session.Profile.ID, hash); err != nil {
		return err
	}
	p.log("password updated", "profile_id", session.Profile.ID)
	p.emit(Event{Type: EventUserUpdated, Session: session, ProfileID: session.Profile.ID})
	return nil
}

// RequestRecovery issues a one-time recovery token for email. Unknown
// addresses return an empty token and no error.
func (p *Provider) RequestRecovery(ctx context.Context, email string) (string, error) {
	profile, err := p.store.GetProfileByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	now := p.config.Now()
	record := &storage.AuthSession{
		Token:     uuid.NewString(),
		ProfileID: profile.ID,
		Kind:      storage.AuthSessionKindRecoveryToken,
		CreatedAt: now,
		ExpiresAt: now.Add(p.config.RecoveryTTL),
	}
	if err := p.store.CreateAuthSession(ctx, record); err != nil {
		return "", err
	}
	p.log("password recovery requested", "profile_id", profile.ID)
	return record.Token, nil
}

// Recover redeems a recovery token for a recovery session. The token can
// be used once.
func (p *Provider) Recover(ctx context.Context, token string) (*Session, error) {
	record, err := p.store.GetAuthSession(ctx, token)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrInvalidRecoveryToken
	}
	if err != nil {
		return nil, err
	}
	if record.Kind != storage.AuthSessionKindRecoveryToken {
		return nil, ErrInvalidRecoveryToken
	}
	if err := p.store.DeleteAuthSession(ctx, token); err != nil {
		return nil, err
	}
	if record.Expired(p.config.Now()) {
		return nil, ErrInvalidRecoveryToken
	}

	profile, err := p.store.GetProfile(ctx, record.ProfileID)
	if err != nil {
		return nil, err
	}
	session, err := p.startSession(ctx, profile, storage.AuthSessionKindRecovery)
	if err != nil {
		return nil, err
	}
	p.emit(Event{Type: EventPasswordRecovery, Session: session, ProfileID: profile.ID})
	return session, nil
}

// OnAuthStateChange registers handler for every auth event and returns a
// function that removes it. Handlers run synchronously on the caller's
// goroutine.
func (p *Provider) OnAuthStateChange(handler func(Event)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextID
	p.nextID++
	p.subs = append(p.subs, subscription{id: id, handler: handler})

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, sub := range p.subs {
			if sub.id == id {
				p.subs = append(p.subs[:i:i], p.subs[i+1:]...)
				return
			}
		}
	}
}

func (p *Provider) emit(event Event) {
	p.mu.RLock()
	subs := make([]subscription, len(p.subs))
	copy(subs, p.subs)
	p.mu.RUnlock()

	for _, sub := range subs {
		sub.handler(event)
	}
}

func (p *Provider) log(msg string, args ...any) {
	if p.config.Logger != nil {
		p.config.Logger.Info(msg, args...)
	}
}

func (p *Provider) warn(msg string, args ...any) {
	if p.config.Logger != nil {
		p.config.Logger.Warn(msg, args...)
	}
}
