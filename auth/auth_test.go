package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/youssefsiam38/taskpg/storage"
)

// memStore implements the storage.Store methods the provider uses.
type memStore struct {
	storage.Store
	profiles map[string]*storage.Profile
	hashes   map[string]string
	sessions map[string]*storage.AuthSession
}

func newMemStore() *memStore {
	return &memStore{
		profiles: make(map[string]*storage.Profile),
		hashes:   make(map[string]string),
		sessions: make(map[string]*storage.AuthSession),
	}
}

func (m *memStore) GetCredentials(ctx context.Context, email string) (*storage.Credentials, error) {
	for _, p := range m.profiles {
		if p.Email == email {
			return &storage.Credentials{Profile: p, PasswordHash: m.hashes[p.ID]}, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *memStore) GetProfileByEmail(ctx context.Context, email string) (*storage.Profile, error) {
	creds, err := m.GetCredentials(ctx, email)
	if err != nil {
		return nil, err
	}
	return creds.Profile, nil
}

func (m *memStore) GetProfile(ctx context.Context, id string) (*storage.Profile, error) {
	if p, ok := m.profiles[id]; ok {
		return p, nil
	}
	return nil, storage.ErrNotFound
}

func (m *memStore) SetPasswordHash(ctx context.Context, profileID, hash string) error {
	m.hashes[profileID] = hash
	return nil
}

func (m *memStore) CreateAuthSession(ctx context.Context, s *storage.AuthSession) error {
	m.sessions[s.Token] = s
	return nil
}

func (m *memStore) GetAuthSession(ctx context.Context, token string) (*storage.AuthSession, error) {
	if s, ok := m.sessions[token]; ok {
		return s, nil
	}
	return nil, storage.ErrNotFound
}

func (m *memStore) DeleteAuthSession(ctx context.Context, token string) error {
	delete(m.sessions, token)
	return nil
}

type fixture struct {
	store    *memStore
	provider *Provider
	now      time.Time
	events   []Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: newMemStore(),
		now:   time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC),
	}
	f.provider = New(f.store, &Config{
		SessionTTL:  time.Hour,
		RecoveryTTL: 10 * time.Minute,
		BcryptCost:  bcrypt.MinCost,
		Now:         func() time.Time { return f.now },
	})
	f.provider.OnAuthStateChange(func(e Event) { f.events = append(f.events, e) })

	hash, err := f.provider.HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	f.store.profiles["p1"] = &storage.Profile{ID: "p1", Email: "ann@example.com", DisplayName: "Ann"}
	f.store.hashes["p1"] = hash
	return f
}

func (f *fixture) eventTypes() []EventType {
	types := make([]EventType, len(f.events))
	for i, e := range f.events {
		types[i] = e.Type
	}
	return types
}

func TestSignIn(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{name: "valid", email: "ann@example.com", password: "correct horse"},
		{name: "wrong password", email: "ann@example.com", password: "battery staple", wantErr: ErrInvalidCredentials},
		{name: "unknown email", email: "bob@example.com", password: "correct horse", wantErr: ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			session, err := f.provider.SignIn(context.Background(), tt.email, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("SignIn() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				if len(f.events) != 0 {
					t.Errorf("Expected no events, got %v", f.eventTypes())
				}
				return
			}
			if session.Token == "" || session.Profile.ID != "p1" {
				t.Errorf("Unexpected session %+v", session)
			}
			if !session.ExpiresAt.Equal(f.now.Add(time.Hour)) {
				t.Errorf("ExpiresAt = %v", session.ExpiresAt)
			}
			if got := f.eventTypes(); len(got) != 1 || got[0] != EventSignedIn {
				t.Errorf("events = %v, want [signed_in]", got)
			}
		})
	}
}

func TestSession_Expiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, err := f.provider.SignIn(ctx, "ann@example.com", "correct horse")
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}

	got, err := f.provider.Session(ctx, session.Token)
	if err != nil {
		t.Fatalf("Session failed: %v", err)
	}
	if got.Profile.DisplayName != "Ann" || got.Recovery() {
		t.Errorf("Unexpected session %+v", got)
	}

	f.now = f.now.Add(2 * time.Hour)
	if _, err := f.provider.Session(ctx, session.Token); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("Session() error = %v, want %v", err, ErrSessionExpired)
	}
	if _, ok := f.store.sessions[session.Token]; ok {
		t.Error("Expected expired session to be deleted")
	}
	if _, err := f.provider.Session(ctx, "nope"); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("Session(unknown) error = %v, want %v", err, ErrInvalidSession)
	}
}

func TestSignOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, _ := f.provider.SignIn(ctx, "ann@example.com", "correct horse")
	if err := f.provider.SignOut(ctx, session.Token); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}
	if _, err := f.provider.Session(ctx, session.Token); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("Session after sign out error = %v", err)
	}
	if err := f.provider.SignOut(ctx, session.Token); err != nil {
		t.Errorf("Second SignOut failed: %v", err)
	}

	want := []EventType{EventSignedIn, EventSignedOut}
	got := f.eventTypes()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestUpdatePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session, _ := f.provider.SignIn(ctx, "ann@example.com", "correct horse")

	if err := f.provider.UpdatePassword(ctx, session.Token, "short"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("UpdatePassword(short) error = %v, want %v", err, ErrWeakPassword)
	}
	if err := f.provider.UpdatePassword(ctx, session.Token, "a much better secret"); err != nil {
		t.Fatalf("UpdatePassword failed: %v", err)
	}

	if _, err := f.provider.SignIn(ctx, "ann@example.com", "correct horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("old password still accepted: %v", err)
	}
	if _, err := f.provider.SignIn(ctx, "ann@example.com", "a much better secret"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}
	if err := f.provider.UpdatePassword(ctx, "bogus", "a much better secret"); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("UpdatePassword(bogus token) error = %v", err)
	}
}

func TestRecovery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	token, err := f.provider.RequestRecovery(ctx, "ann@example.com")
	if err != nil || token == "" {
		t.Fatalf("RequestRecovery() = %q, %v", token, err)
	}

	// The raw token is not a usable session.
	if _, err := f.provider.Session(ctx, token); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("Session(recovery token) error = %v", err)
	}

	session, err := f.provider.Recover(ctx, token)
	if err != nil {
		t.Fatalf("Recover failed: %v", err)
	}
	if !session.Recovery() {
		t.Error("Expected a recovery session")
	}
	if got := f.eventTypes(); len(got) != 1 || got[0] != EventPasswordRecovery {
		t.Errorf("events = %v, want [password_recovery]", got)
	}

	if _, err := f.provider.Recover(ctx, token); !errors.Is(err, ErrInvalidRecoveryToken) {
		t.Errorf("second Recover error = %v, want %v", err, ErrInvalidRecoveryToken)
	}
	if err := f.provider.UpdatePassword(ctx, session.Token, "brand new secret"); err != nil {
		t.Errorf("UpdatePassword with recovery session failed: %v", err)
	}
}

func TestRecovery_Expired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	token, _ := f.provider.RequestRecovery(ctx, "ann@example.com")
	f.now = f.now.Add(11 * time.Minute)

	if _, err := f.provider.Recover(ctx, token); !errors.Is(err, ErrInvalidRecoveryToken) {
		t.Errorf("Recover(expired) error = %v, want %v", err, ErrInvalidRecoveryToken)
	}
}

func TestRequestRecovery_UnknownEmail(t *testing.T) {
	f := newFixture(t)

	token, err := f.provider.RequestRecovery(context.Background(), "ghost@example.com")
	if err != nil || token != "" {
		t.Errorf("RequestRecovery(unknown) = %q, %v; want empty, nil", token, err)
	}
}

func TestOnAuthStateChange_Unsubscribe(t *testing.T) {
	f := newFixture(t)
	var count int
	unsubscribe := f.provider.OnAuthStateChange(func(Event) { count++ })

	ctx := context.Background()
	_, _ = f.provider.SignIn(ctx, "ann@example.com", "correct horse")
	unsubscribe()
	_, _ = f.provider.SignIn(ctx, "ann@example.com", "correct horse")

	if count != 1 {
		t.Errorf("handler called %d times, want 1", count)
	}
}
