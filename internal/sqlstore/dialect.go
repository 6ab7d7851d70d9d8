package sqlstore

import (
	"fmt"
	"regexp"
)

// placeholderRe matches PostgreSQL style positional parameters.
var placeholderRe = regexp.MustCompile(`\$\d+`)

// Dialect captures the differences between the SQL databases the store runs on.
//
// Queries are written with $N placeholders. Each placeholder appears exactly
// once and in ascending order, so dialects without numbered parameters can
// rewrite them to plain '?'.
type Dialect struct {
	// Name identifies the dialect in errors.
	Name string

	// TimestampType is the column type used for instants.
	TimestampType string

	// NumberedParams is true when the database understands $N natively.
	NumberedParams bool

	// IsUniqueViolation classifies driver errors raised by unique constraints.
	IsUniqueViolation func(err error) bool

	// IsNoRows reports whether QueryRow found nothing.
	IsNoRows func(err error) bool
}

// Postgres returns the PostgreSQL dialect. The classifiers are supplied by the
// driver package since each client library reports errors differently.
func Postgres(isUnique, isNoRows func(err error) bool) Dialect {
	return Dialect{
		Name:              "postgres",
		TimestampType:     "TIMESTAMPTZ",
		NumberedParams:    true,
		IsUniqueViolation: isUnique,
		IsNoRows:          isNoRows,
	}
}

// SQLite returns the SQLite dialect.
func SQLite(isUnique, isNoRows func(err error) bool) Dialect {
	return Dialect{
		Name:              "sqlite",
		TimestampType:     "DATETIME",
		IsUniqueViolation: isUnique,
		IsNoRows:          isNoRows,
	}
}

func (d Dialect) rebind(query string) string {
	if d.NumberedParams {
		return query
	}
	return placeholderRe.ReplaceAllString(query, "?")
}

func (d Dialect) noRows(err error) bool {
	return err != nil && d.IsNoRows != nil && d.IsNoRows(err)
}

func (d Dialect) uniqueViolation(err error) bool {
	return err != nil && d.IsUniqueViolation != nil && d.IsUniqueViolation(err)
}

// schema returns the DDL statements in dependency order.
func (d Dialect) schema() []string {
	ts := d.TimestampType
	return []string{
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS taskpg_teams (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			color TEXT NOT NULL DEFAULT '',
			created_at %s NOT NULL
		)`, ts),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS taskpg_profiles (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'user',
			team_id TEXT REFERENCES taskpg_teams(id) ON DELETE SET NULL,
			password_hash TEXT NOT NULL DEFAULT '',
			created_at %s NOT NULL
		)`, ts),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS taskpg_tasks (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			start_date DATE,
			end_date DATE,
			status TEXT NOT NULL,
			priority TEXT NOT NULL,
			progress INTEGER NOT NULL DEFAULT 0 CHECK (progress BETWEEN 0 AND 100),
			assignee TEXT NOT NULL DEFAULT '',
			parent_id TEXT,
			category TEXT NOT NULL DEFAULT 'routine',
			recurrence_rule TEXT NOT NULL DEFAULT 'none',
			recurrence_interval INTEGER NOT NULL DEFAULT 1,
			recurrence_until DATE,
			dependencies TEXT NOT NULL DEFAULT '',
			created_at %s NOT NULL,
			updated_at %s NOT NULL
		)`, ts, ts),
		`CREATE INDEX IF NOT EXISTS taskpg_tasks_start_date_idx ON taskpg_tasks (start_date)`,
		`CREATE INDEX IF NOT EXISTS taskpg_tasks_parent_id_idx ON taskpg_tasks (parent_id)`,
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS taskpg_auth_sessions (
			token TEXT PRIMARY KEY,
			profile_id TEXT NOT NULL REFERENCES taskpg_profiles(id) ON DELETE CASCADE,
			kind TEXT NOT NULL,
			created_at %s NOT NULL,
			expires_at %s NOT NULL
		)`, ts, ts),
		`CREATE INDEX IF NOT EXISTS taskpg_auth_sessions_expires_at_idx ON taskpg_auth_sessions (expires_at)`,
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS taskpg_leader (
			name TEXT PRIMARY KEY,
			leader_id TEXT NOT NULL,
			elected_at %s NOT NULL,
			expires_at %s NOT NULL
		)`, ts, ts),
	}
}
