// Package sqlstore implements storage.Store once for every SQL driver taskpg
// ships. Drivers supply an executor and a Dialect.
package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/youssefsiam38/taskpg/driver"
	"github.com/youssefsiam38/taskpg/storage"
	"github.com/youssefsiam38/taskpg/types"
)

// Store implements storage.Store over a driver.Executor.
type Store struct {
	executor func() driver.Executor
	dialect  Dialect
	now      func() time.Time
}

// New creates a Store. executor returns the pool executor used when the
// context carries no transaction.
func New(executor func() driver.Executor, dialect Dialect) *Store {
	return &Store{
		executor: executor,
		dialect:  dialect,
		now:      time.Now,
	}
}

// getExecutor returns the executor from context if present, otherwise the default pool executor.
func (s *Store) getExecutor(ctx context.Context) driver.Executor {
	if exec := driver.ExecutorFromContext(ctx); exec != nil {
		return exec
	}
	return s.executor()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (int64, error) {
	return s.getExecutor(ctx).Exec(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (driver.Rows, error) {
	return s.getExecutor(ctx).Query(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) driver.Row {
	return s.getExecutor(ctx).QueryRow(ctx, s.dialect.rebind(query), args...)
}

// Migrate creates the schema.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema() {
		if _, err := s.exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate %s schema: %w", s.dialect.Name, err)
		}
	}
	return nil
}

const taskColumns = `id, name, description, start_date, end_date, status, priority, progress,
	assignee, parent_id, category, recurrence_rule, recurrence_interval, recurrence_until,
	dependencies, created_at, updated_at`

func scanTask(row driver.Row) (*storage.Task, error) {
	var (
		task                   storage.Task
		start, end, until      dateColumn
		createdAt, updatedAt   timeColumn
		status, priority, rule string
	)
	err := row.Scan(
		&task.ID,
		&task.Name,
		&task.Description,
		&start,
		&end,
		&status,
		&priority,
		&task.Progress,
		&task.Assignee,
		&task.ParentID,
		&task.Category,
		&rule,
		&task.Recurrence.Interval,
		&until,
		&task.Dependencies,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	task.StartDate = start.value
	task.EndDate = end.value
	task.Status = types.Status(status)
	task.Priority = types.Priority(priority)
	task.Recurrence.Rule = types.RecurrenceRule(rule)
	task.Recurrence.Until = until.value
	task.CreatedAt = createdAt.value
	task.UpdatedAt = updatedAt.value
	return &task, nil
}

// ListTasks returns every task ordered by start date.
func (s *Store) ListTasks(ctx context.Context) ([]*storage.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM taskpg_tasks
		ORDER BY start_date IS NULL, start_date ASC, name ASC, id ASC
	`

	rows, err := s.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*storage.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}
	return tasks, nil
}

// GetTask retrieves a task by ID.
func (s *Store) GetTask(ctx context.Context, id string) (*storage.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM taskpg_tasks WHERE id = $1`

	task, err := scanTask(s.queryRow(ctx, query, id))
	if s.dialect.noRows(err) {
		return nil, fmt.Errorf("task %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// InsertTask stores a new task.
func (s *Store) InsertTask(ctx context.Context, task *storage.Task) error {
	if task.Name == "" {
		return fmt.Errorf("task name is required")
	}
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	task.ApplyDefaults()
	now := s.now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now

	query := `
		INSERT INTO taskpg_tasks (id, name, description, start_date, end_date, status, priority,
			progress, assignee, parent_id, category, recurrence_rule, recurrence_interval,
			recurrence_until, dependencies, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err := s.exec(ctx, query,
		task.ID,
		task.Name,
		task.Description,
		dateArg(task.StartDate),
		dateArg(task.EndDate),
		string(task.Status),
		string(task.Priority),
		task.Progress,
		task.Assignee,
		task.ParentID,
		task.Category,
		string(task.Recurrence.Rule),
		task.Recurrence.Interval,
		dateArg(task.Recurrence.Until),
		task.Dependencies,
		timeArg(task.CreatedAt),
		timeArg(task.UpdatedAt),
	)
	if s.dialect.uniqueViolation(err) {
		return fmt.Errorf("task %s: %w", task.ID, storage.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// setClause accumulates "column = $N" assignments in placeholder order.
type setClause struct {
	columns []string
	args    []any
}

func (c *setClause) add(column string, value any) {
	c.args = append(c.args, value)
	c.columns = append(c.columns, fmt.Sprintf("%s = $%d", column, len(c.args)))
}

// UpdateTask writes the fields set on patch.
func (s *Store) UpdateTask(ctx context.Context, id string, patch *storage.TaskPatch) error {
	var set setClause
	if patch != nil {
		if patch.Name != nil {
			set.add("name", *patch.Name)
		}
		if patch.Description != nil {
			set.add("description", *patch.Description)
		}
		if patch.StartDate != nil {
			set.add("start_date", patchDateArg(*patch.StartDate))
		}
		if patch.EndDate != nil {
			set.add("end_date", patchDateArg(*patch.EndDate))
		}
		if patch.Status != nil {
			set.add("status", string(*patch.Status))
		}
		if patch.Priority != nil {
			set.add("priority", string(*patch.Priority))
		}
		if patch.Progress != nil {
			set.add("progress", *patch.Progress)
		}
		if patch.Assignee != nil {
			set.add("assignee", *patch.Assignee)
		}
		if patch.ParentID != nil {
			if *patch.ParentID == "" {
				set.add("parent_id", nil)
			} else {
				set.add("parent_id", *patch.ParentID)
			}
		}
		if patch.Category != nil {
			set.add("category", *patch.Category)
		}
		if patch.Recurrence != nil {
			set.add("recurrence_rule", string(patch.Recurrence.Rule))
			set.add("recurrence_interval", patch.Recurrence.Interval)
			set.add("recurrence_until", dateArg(patch.Recurrence.Until))
		}
		if patch.Dependencies != nil {
			set.add("dependencies", *patch.Dependencies)
		}
	}
	set.add("updated_at", timeArg(s.now()))

	query := fmt.Sprintf("UPDATE taskpg_tasks SET %s WHERE id = $%d",
		strings.Join(set.columns, ", "), len(set.args)+1)

	affected, err := s.exec(ctx, query, append(set.args, id)...)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("task %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

// DeleteTask removes a task and re-parents its children onto its parent.
func (s *Store) DeleteTask(ctx context.Context, id string) (err error) {
	tx, err := s.getExecutor(ctx).Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin delete: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	reparent := `
		UPDATE taskpg_tasks
		SET parent_id = (SELECT p.parent_id FROM taskpg_tasks p WHERE p.id = $1)
		WHERE parent_id = $2
	`
	if _, err = tx.Exec(ctx, s.dialect.rebind(reparent), id, id); err != nil {
		return fmt.Errorf("failed to re-parent children: %w", err)
	}

	affected, err := tx.Exec(ctx, s.dialect.rebind(`DELETE FROM taskpg_tasks WHERE id = $1`), id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if affected == 0 {
		err = fmt.Errorf("task %s: %w", id, storage.ErrNotFound)
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}

const profileColumns = `id, email, display_name, role, team_id, created_at`

func scanProfile(row driver.Row, extra ...any) (*storage.Profile, error) {
	var (
		profile   storage.Profile
		role      string
		createdAt timeColumn
	)
	dest := append([]any{
		&profile.ID,
		&profile.Email,
		&profile.DisplayName,
		&role,
		&profile.TeamID,
		&createdAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	profile.Role = types.Role(role)
	profile.CreatedAt = createdAt.value
	return &profile, nil
}

// ListProfiles returns every profile ordered by display name.
func (s *Store) ListProfiles(ctx context.Context) ([]*storage.Profile, error) {
	rows, err := s.query(ctx, `SELECT `+profileColumns+` FROM taskpg_profiles ORDER BY display_name ASC, email ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*storage.Profile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate profiles: %w", err)
	}
	return profiles, nil
}

// GetProfile retrieves a profile by ID.
func (s *Store) GetProfile(ctx context.Context, id string) (*storage.Profile, error) {
	profile, err := scanProfile(s.queryRow(ctx, `SELECT `+profileColumns+` FROM taskpg_profiles WHERE id = $1`, id))
	if s.dialect.noRows(err) {
		return nil, fmt.Errorf("profile %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return profile, nil
}

// GetProfileByEmail retrieves a profile by its email, ignoring case.
func (s *Store) GetProfileByEmail(ctx context.Context, email string) (*storage.Profile, error) {
	profile, err := scanProfile(s.queryRow(ctx,
		`SELECT `+profileColumns+` FROM taskpg_profiles WHERE email = $1`, normalizeEmail(email)))
	if s.dialect.noRows(err) {
		return nil, fmt.Errorf("profile %s: %w", email, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return profile, nil
}

// CreateProfile stores a new profile with its password hash.
func (s *Store) CreateProfile(ctx context.Context, profile *storage.Profile, passwordHash string) error {
	if profile.Email == "" {
		return fmt.Errorf("profile email is required")
	}
	if profile.ID == "" {
		profile.ID = uuid.New().String()
	}
	if profile.Role == "" {
		profile.Role = types.RoleUser
	}
	profile.Email = normalizeEmail(profile.Email)
	profile.CreatedAt = s.now().UTC()

	query := `
		INSERT INTO taskpg_profiles (id, email, display_name, role, team_id, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.exec(ctx, query,
		profile.ID,
		profile.Email,
		profile.DisplayName,
		string(profile.Role),
		profile.TeamID,
		passwordHash,
		timeArg(profile.CreatedAt),
	)
	if s.dialect.uniqueViolation(err) {
		return fmt.Errorf("profile %s: %w", profile.Email, storage.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// ListTeams returns every team ordered by name.
func (s *Store) ListTeams(ctx context.Context) ([]*storage.Team, error) {
	rows, err := s.query(ctx, `SELECT id, name, color, created_at FROM taskpg_teams ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query teams: %w", err)
	}
	defer rows.Close()

	var teams []*storage.Team
	for rows.Next() {
		var (
			team      storage.Team
			createdAt timeColumn
		)
		if err := rows.Scan(&team.ID, &team.Name, &team.Color, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		team.CreatedAt = createdAt.value
		teams = append(teams, &team)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate teams: %w", err)
	}
	return teams, nil
}

// CreateTeam stores a new team.
func (s *Store) CreateTeam(ctx context.Context, team *storage.Team) error {
	if team.Name == "" {
		return fmt.Errorf("team name is required")
	}
	if team.ID == "" {
		team.ID = uuid.New().String()
	}
	team.CreatedAt = s.now().UTC()

	_, err := s.exec(ctx, `INSERT INTO taskpg_teams (id, name, color, created_at) VALUES ($1, $2, $3, $4)`,
		team.ID, team.Name, team.Color, timeArg(team.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create team: %w", err)
	}
	return nil
}

// GetCredentials returns the profile and password hash for email.
func (s *Store) GetCredentials(ctx context.Context, email string) (*storage.Credentials, error) {
	var hash string
	profile, err := scanProfile(s.queryRow(ctx,
		`SELECT `+profileColumns+`, password_hash FROM taskpg_profiles WHERE email = $1`,
		normalizeEmail(email)), &hash)
	if s.dialect.noRows(err) {
		return nil, fmt.Errorf("credentials %s: %w", email, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credentials: %w", err)
	}
	return &storage.Credentials{Profile: profile, PasswordHash: hash}, nil
}

// SetPasswordHash replaces a profile's password hash.
func (s *Store) SetPasswordHash(ctx context.Context, profileID, hash string) error {
	affected, err := s.exec(ctx, `UPDATE taskpg_profiles SET password_hash = $1 WHERE id = $2`, hash, profileID)
	if err != nil {
		return fmt.Errorf("failed to set password: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("profile %s: %w", profileID, storage.ErrNotFound)
	}
	return nil
}

// CreateAuthSession stores a session token.
func (s *Store) CreateAuthSession(ctx context.Context, session *storage.AuthSession) error {
	if session.Token == "" || session.ProfileID == "" {
		return fmt.Errorf("session token and profile are required")
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = s.now().UTC()
	}

	query := `
		INSERT INTO taskpg_auth_sessions (token, profile_id, kind, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.exec(ctx, query,
		session.Token,
		session.ProfileID,
		string(session.Kind),
		timeArg(session.CreatedAt),
		timeArg(session.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create auth session: %w", err)
	}
	return nil
}

// GetAuthSession retrieves a session by token. Expiry is left to the caller.
func (s *Store) GetAuthSession(ctx context.Context, token string) (*storage.AuthSession, error) {
	var (
		session              storage.AuthSession
		kind                 string
		createdAt, expiresAt timeColumn
	)
	err := s.queryRow(ctx,
		`SELECT token, profile_id, kind, created_at, expires_at FROM taskpg_auth_sessions WHERE token = $1`,
		token,
	).Scan(&session.Token, &session.ProfileID, &kind, &createdAt, &expiresAt)
	if s.dialect.noRows(err) {
		return nil, fmt.Errorf("auth session: %w", storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get auth session: %w", err)
	}
	session.Kind = storage.AuthSessionKind(kind)
	session.CreatedAt = createdAt.value
	session.ExpiresAt = expiresAt.value
	return &session, nil
}

// DeleteAuthSession removes a session. Deleting a missing session is not an error.
func (s *Store) DeleteAuthSession(ctx context.Context, token string) error {
	if _, err := s.exec(ctx, `DELETE FROM taskpg_auth_sessions WHERE token = $1`, token); err != nil {
		return fmt.Errorf("failed to delete auth session: %w", err)
	}
	return nil
}

// DeleteExpiredAuthSessions removes every session that expired before now.
func (s *Store) DeleteExpiredAuthSessions(ctx context.Context, now time.Time) (int, error) {
	affected, err := s.exec(ctx, `DELETE FROM taskpg_auth_sessions WHERE expires_at <= $1`, timeArg(now))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired auth sessions: %w", err)
	}
	return int(affected), nil
}

// leaderName keys the single maintenance lease.
const leaderName = "maintenance"

// LeaderAttemptElect inserts the lease, or takes it over once it has expired.
func (s *Store) LeaderAttemptElect(ctx context.Context, params *storage.LeaderElectParams) (bool, error) {
	now := params.Now
	query := `
		INSERT INTO taskpg_leader (name, leader_id, elected_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE
		SET leader_id = excluded.leader_id,
			elected_at = excluded.elected_at,
			expires_at = excluded.expires_at
		WHERE taskpg_leader.expires_at < $5
	`
	affected, err := s.exec(ctx, query,
		leaderName,
		params.LeaderID,
		timeArg(now),
		timeArg(now.Add(params.TTL)),
		timeArg(now),
	)
	if err != nil {
		return false, fmt.Errorf("failed to elect leader: %w", err)
	}
	return affected > 0, nil
}

// LeaderAttemptReelect extends the lease when params.LeaderID still holds it.
func (s *Store) LeaderAttemptReelect(ctx context.Context, params *storage.LeaderElectParams) (bool, error) {
	query := `
		UPDATE taskpg_leader
		SET expires_at = $1
		WHERE name = $2 AND leader_id = $3
	`
	affected, err := s.exec(ctx, query, timeArg(params.Now.Add(params.TTL)), leaderName, params.LeaderID)
	if err != nil {
		return false, fmt.Errorf("failed to reelect leader: %w", err)
	}
	return affected > 0, nil
}

// LeaderResign drops the lease if leaderID holds it.
func (s *Store) LeaderResign(ctx context.Context, leaderID string) error {
	if _, err := s.exec(ctx, `DELETE FROM taskpg_leader WHERE name = $1 AND leader_id = $2`, leaderName, leaderID); err != nil {
		return fmt.Errorf("failed to resign leader: %w", err)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Compile-time check
var _ storage.Store = (*Store)(nil)
