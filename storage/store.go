// Package storage defines the row-store contract taskpg persists through and
// the records that cross it.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/youssefsiam38/taskpg/types"
)

// Storage errors.
var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("storage: not found")

	// ErrDuplicate is returned when a unique column already holds the value.
	ErrDuplicate = errors.New("storage: duplicate")
)

// Store defines the storage interface for tasks, profiles, teams and auth sessions.
type Store interface {
	// Migrate creates the schema. It is safe to call on every start.
	Migrate(ctx context.Context) error

	// Task operations
	// ListTasks returns every task ordered by start date ascending. Tasks
	// without a start date come last, ties are broken by name.
	ListTasks(ctx context.Context) ([]*Task, error)
	GetTask(ctx context.Context, id string) (*Task, error)
	// InsertTask stores a new task. An empty ID is filled in.
	InsertTask(ctx context.Context, task *Task) error
	// UpdateTask writes only the fields set on the patch.
	UpdateTask(ctx context.Context, id string, patch *TaskPatch) error
	// DeleteTask removes a task and moves its children up to its parent.
	DeleteTask(ctx context.Context, id string) error

	// Profile operations
	// ListProfiles returns every profile ordered by display name.
	ListProfiles(ctx context.Context) ([]*Profile, error)
	GetProfile(ctx context.Context, id string) (*Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (*Profile, error)
	CreateProfile(ctx context.Context, profile *Profile, passwordHash string) error

	// Team operations
	// ListTeams returns every team ordered by name.
	ListTeams(ctx context.Context) ([]*Team, error)
	CreateTeam(ctx context.Context, team *Team) error

	// Credential and auth session operations
	GetCredentials(ctx context.Context, email string) (*Credentials, error)
	SetPasswordHash(ctx context.Context, profileID, hash string) error
	CreateAuthSession(ctx context.Context, session *AuthSession) error
	GetAuthSession(ctx context.Context, token string) (*AuthSession, error)
	DeleteAuthSession(ctx context.Context, token string) error
	// DeleteExpiredAuthSessions removes sessions that expired before now and
	// returns how many were removed.
	DeleteExpiredAuthSessions(ctx context.Context, now time.Time) (int, error)

	// Leader election
	// LeaderAttemptElect takes the lease when nobody holds it or it expired.
	LeaderAttemptElect(ctx context.Context, params *LeaderElectParams) (bool, error)
	// LeaderAttemptReelect extends a lease still held by params.LeaderID.
	LeaderAttemptReelect(ctx context.Context, params *LeaderElectParams) (bool, error)
	LeaderResign(ctx context.Context, leaderID string) error
}

// Recurrence describes how a task repeats.
type Recurrence struct {
	Rule     types.RecurrenceRule `json:"rule"`
	Interval int                  `json:"interval"`
	Until    *civil.Date          `json:"until,omitempty"`
}

// Task is a stored task row.
type Task struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	StartDate   *civil.Date    `json:"start_date,omitempty"`
	EndDate     *civil.Date    `json:"end_date,omitempty"`
	Status      types.Status   `json:"status"`
	Priority    types.Priority `json:"priority"`
	Progress    int            `json:"progress"`
	Assignee    string         `json:"assignee,omitempty"`
	ParentID    *string        `json:"parent_id,omitempty"`
	Category    string         `json:"category,omitempty"`
	Recurrence  Recurrence     `json:"recurrence"`
	// Dependencies is the comma separated list of task ids this task waits on.
	Dependencies string    `json:"dependencies,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ApplyDefaults fills the fields a new task may omit.
func (t *Task) ApplyDefaults() {
	if t.Status == "" {
		t.Status = types.StatusToDo
	}
	if t.Priority == "" {
		t.Priority = types.PriorityMedium
	}
	t.Progress = types.ClampProgress(t.Progress)
	if t.Category == "" {
		t.Category = string(types.CategoryRoutine)
	}
	if t.Recurrence.Rule == "" {
		t.Recurrence.Rule = types.RecurrenceNone
	}
	if t.Recurrence.Interval < 1 {
		t.Recurrence.Interval = 1
	}
}

// WorkCategory returns the normalised category.
func (t *Task) WorkCategory() types.Category {
	return types.NormalizeCategory(t.Category)
}

// Parent returns the parent id or an empty string.
func (t *Task) Parent() string {
	if t.ParentID == nil {
		return ""
	}
	return *t.ParentID
}

// DependencyIDs splits Dependencies into trimmed, non-empty ids.
func (t *Task) DependencyIDs() []string {
	return SplitDependencies(t.Dependencies)
}

// SplitDependencies splits a comma separated id list.
func SplitDependencies(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}

// TaskPatch is a partial task update. Nil fields are left untouched.
// For nullable columns (dates, parent) a pointer to the zero value clears
// the column.
type TaskPatch struct {
	Name         *string
	Description  *string
	StartDate    *civil.Date
	EndDate      *civil.Date
	Status       *types.Status
	Priority     *types.Priority
	Progress     *int
	Assignee     *string
	ParentID     *string
	Category     *string
	Recurrence   *Recurrence
	Dependencies *string
}

// Empty reports whether the patch sets no field.
func (p *TaskPatch) Empty() bool {
	return p == nil || (p.Name == nil && p.Description == nil && p.StartDate == nil &&
		p.EndDate == nil && p.Status == nil && p.Priority == nil && p.Progress == nil &&
		p.Assignee == nil && p.ParentID == nil && p.Category == nil && p.Recurrence == nil &&
		p.Dependencies == nil)
}

// Apply writes the patch onto t.
func (p *TaskPatch) Apply(t *Task) {
	if p == nil {
		return
	}
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.StartDate != nil {
		t.StartDate = patchDate(*p.StartDate)
	}
	if p.EndDate != nil {
		t.EndDate = patchDate(*p.EndDate)
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Progress != nil {
		t.Progress = *p.Progress
	}
	if p.Assignee != nil {
		t.Assignee = *p.Assignee
	}
	if p.ParentID != nil {
		if *p.ParentID == "" {
			t.ParentID = nil
		} else {
			parent := *p.ParentID
			t.ParentID = &parent
		}
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Recurrence != nil {
		t.Recurrence = *p.Recurrence
	}
	if p.Dependencies != nil {
		t.Dependencies = *p.Dependencies
	}
}

func patchDate(d civil.Date) *civil.Date {
	if d.IsZero() {
		return nil
	}
	return &d
}

// Profile is a user of the workspace.
type Profile struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	Role        types.Role `json:"role"`
	TeamID      *string    `json:"team_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Team groups profiles.
type Team struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Credentials pairs a profile with its password hash.
type Credentials struct {
	Profile      *Profile
	PasswordHash string
}

// AuthSessionKind distinguishes regular sign-ins from password recovery.
type AuthSessionKind string

const (
	AuthSessionKindSignIn   AuthSessionKind = "signin"
	AuthSessionKindRecovery AuthSessionKind = "recovery"
	// AuthSessionKindRecoveryToken is an unredeemed recovery link.
	AuthSessionKindRecoveryToken AuthSessionKind = "recovery_token"
)

// AuthSession is an opaque bearer token bound to a profile.
type AuthSession struct {
	Token     string          `json:"-"`
	ProfileID string          `json:"profile_id"`
	Kind      AuthSessionKind `json:"kind"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at now.
func (s *AuthSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// LeaderElectParams identifies an instance asking for the maintenance lease.
type LeaderElectParams struct {
	LeaderID string
	TTL      time.Duration
	Now      time.Time
}
