// Package storetest holds a behavioural test suite every storage.Store
// implementation must pass. Driver packages run it against their database.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"github.com/youssefsiam38/taskpg/storage"
	"github.com/youssefsiam38/taskpg/types"
)

// Run executes the suite. newStore must return a migrated, empty store.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Run("TaskLifecycle", func(t *testing.T) { testTaskLifecycle(t, newStore(t)) })
	t.Run("TaskDefaults", func(t *testing.T) { testTaskDefaults(t, newStore(t)) })
	t.Run("ListTasksOrder", func(t *testing.T) { testListTasksOrder(t, newStore(t)) })
	t.Run("UpdateTaskPartial", func(t *testing.T) { testUpdateTaskPartial(t, newStore(t)) })
	t.Run("UpdateTaskClearsNullable", func(t *testing.T) { testUpdateTaskClears(t, newStore(t)) })
	t.Run("DeleteTaskReparents", func(t *testing.T) { testDeleteTaskReparents(t, newStore(t)) })
	t.Run("NotFound", func(t *testing.T) { testNotFound(t, newStore(t)) })
	t.Run("Profiles", func(t *testing.T) { testProfiles(t, newStore(t)) })
	t.Run("AuthSessions", func(t *testing.T) { testAuthSessions(t, newStore(t)) })
	t.Run("LeaderElection", func(t *testing.T) { testLeaderElection(t, newStore(t)) })
	t.Run("MigrateIdempotent", func(t *testing.T) {
		store := newStore(t)
		if err := store.Migrate(context.Background()); err != nil {
			t.Fatalf("second Migrate failed: %v", err)
		}
	})
}

func date(s string) *civil.Date {
	d, err := civil.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return &d
}

func strPtr(s string) *string { return &s }

func mustInsert(t *testing.T, store storage.Store, task *storage.Task) *storage.Task {
	t.Helper()
	if err := store.InsertTask(context.Background(), task); err != nil {
		t.Fatalf("InsertTask(%q) failed: %v", task.Name, err)
	}
	return task
}

func testTaskLifecycle(t *testing.T, store storage.Store) {
	ctx := context.Background()

	task := mustInsert(t, store, &storage.Task{
		Name:         "Write report",
		Description:  "quarterly **numbers**",
		StartDate:    date("2024-01-05"),
		EndDate:      date("2024-01-10"),
		Status:       types.StatusInProgress,
		Priority:     types.PriorityHigh,
		Progress:     40,
		Assignee:     "Alice",
		Category:     "project",
		Recurrence:   storage.Recurrence{Rule: types.RecurrenceWeekly, Interval: 2, Until: date("2024-06-01")},
		Dependencies: "a, b",
	})
	if task.ID == "" {
		t.Fatal("Expected InsertTask to assign an ID")
	}

	got, err := store.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got.Name != "Write report" || got.Description != "quarterly **numbers**" {
		t.Errorf("Unexpected text fields: %+v", got)
	}
	if got.StartDate == nil || got.StartDate.String() != "2024-01-05" {
		t.Errorf("Expected start 2024-01-05, got %v", got.StartDate)
	}
	if got.EndDate == nil || got.EndDate.String() != "2024-01-10" {
		t.Errorf("Expected end 2024-01-10, got %v", got.EndDate)
	}
	if got.Status != types.StatusInProgress || got.Priority != types.PriorityHigh || got.Progress != 40 {
		t.Errorf("Unexpected status fields: %s %s %d", got.Status, got.Priority, got.Progress)
	}
	if got.Recurrence.Rule != types.RecurrenceWeekly || got.Recurrence.Interval != 2 {
		t.Errorf("Unexpected recurrence: %+v", got.Recurrence)
	}
	if got.Recurrence.Until == nil || got.Recurrence.Until.String() != "2024-06-01" {
		t.Errorf("Expected until 2024-06-01, got %v", got.Recurrence.Until)
	}
	if ids := got.DependencyIDs(); len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("Unexpected dependencies: %v", ids)
	}
	if got.ParentID != nil {
		t.Errorf("Expected nil parent, got %q", *got.ParentID)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("Expected timestamps to be set")
	}

	if err := store.DeleteTask(ctx, task.ID); err != nil {
		t.Fatalf("DeleteTask failed: %v", err)
	}
	if _, err := store.GetTask(ctx, task.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func testTaskDefaults(t *testing.T, store storage.Store) {
	task := mustInsert(t, store, &storage.Task{Name: "Bare"})

	got, err := store.GetTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got.Status != types.StatusToDo {
		t.Errorf("Expected status %q, got %q", types.StatusToDo, got.Status)
	}
	if got.Priority != types.PriorityMedium {
		t.Errorf("Expected priority %q, got %q", types.PriorityMedium, got.Priority)
	}
	if got.Progress != 0 {
		t.Errorf("Expected progress 0, got %d", got.Progress)
	}
	if got.Category != "routine" {
		t.Errorf("Expected category routine, got %q", got.Category)
	}
	if got.Recurrence.Rule != types.RecurrenceNone || got.Recurrence.Interval != 1 {
		t.Errorf("Unexpected recurrence defaults: %+v", got.Recurrence)
	}
	if got.StartDate != nil || got.EndDate != nil {
		t.Errorf("Expected no dates, got %v %v", got.StartDate, got.EndDate)
	}

	if err := store.InsertTask(context.Background(), &storage.Task{}); err == nil {
		t.Error("Expected error inserting a task without a name")
	}
}

func testListTasksOrder(t *testing.T, store storage.Store) {
	mustInsert(t, store, &storage.Task{Name: "undated"})
	mustInsert(t, store, &storage.Task{Name: "late", StartDate: date("2024-03-01")})
	mustInsert(t, store, &storage.Task{Name: "b-early", StartDate: date("2024-01-01")})
	mustInsert(t, store, &storage.Task{Name: "a-early", StartDate: date("2024-01-01")})

	tasks, err := store.ListTasks(context.Background())
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}

	want := []string{"a-early", "b-early", "late", "undated"}
	if len(tasks) != len(want) {
		t.Fatalf("Expected %d tasks, got %d", len(want), len(tasks))
	}
	for i, name := range want {
		if tasks[i].Name != name {
			t.Errorf("tasks[%d] = %q, want %q", i, tasks[i].Name, name)
		}
	}
}

func testUpdateTaskPartial(t *testing.T, store storage.Store) {
	ctx := context.Background()
	task := mustInsert(t, store, &storage.Task{
		Name:      "Plan",
		StartDate: date("2024-01-01"),
		EndDate:   date("2024-01-03"),
		Assignee:  "Bob",
	})

	status := types.StatusDone
	progress := 100
	err := store.UpdateTask(ctx, task.ID, &storage.TaskPatch{
		Status:    &status,
		Progress:  &progress,
		StartDate: date("2024-01-02"),
	})
	if err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}

	got, err := store.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got.Status != types.StatusDone || got.Progress != 100 {
		t.Errorf("Expected Done/100, got %s/%d", got.Status, got.Progress)
	}
	if got.StartDate.String() != "2024-01-02" {
		t.Errorf("Expected start 2024-01-02, got %v", got.StartDate)
	}
	if got.EndDate.String() != "2024-01-03" {
		t.Errorf("Expected untouched end 2024-01-03, got %v", got.EndDate)
	}
	if got.Assignee != "Bob" || got.Name != "Plan" {
		t.Errorf("Expected untouched fields, got %+v", got)
	}
	if got.UpdatedAt.Before(got.CreatedAt) {
		t.Errorf("Expected updated_at >= created_at")
	}

	// An empty patch still touches updated_at and must succeed.
	if err := store.UpdateTask(ctx, task.ID, &storage.TaskPatch{}); err != nil {
		t.Errorf("Empty UpdateTask failed: %v", err)
	}
}

func testUpdateTaskClears(t *testing.T, store storage.Store) {
	ctx := context.Background()
	parent := mustInsert(t, store, &storage.Task{Name: "parent"})
	child := mustInsert(t, store, &storage.Task{
		Name:      "child",
		ParentID:  strPtr(parent.ID),
		StartDate: date("2024-02-01"),
	})

	err := store.UpdateTask(ctx, child.ID, &storage.TaskPatch{
		ParentID:  strPtr(""),
		StartDate: &civil.Date{},
	})
	if err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}

	got, err := store.GetTask(ctx, child.ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got.ParentID != nil {
		t.Errorf("Expected parent cleared, got %q", *got.ParentID)
	}
	if got.StartDate != nil {
		t.Errorf("Expected start cleared, got %v", got.StartDate)
	}
}

func testDeleteTaskReparents(t *testing.T, store storage.Store) {
	ctx := context.Background()
	root := mustInsert(t, store, &storage.Task{Name: "root"})
	middle := mustInsert(t, store, &storage.Task{Name: "middle", ParentID: strPtr(root.ID)})
	leaf := mustInsert(t, store, &storage.Task{Name: "leaf", ParentID: strPtr(middle.ID)})

	if err := store.DeleteTask(ctx, middle.ID); err != nil {
		t.Fatalf("DeleteTask failed: %v", err)
	}

	got, err := store.GetTask(ctx, leaf.ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got.Parent() != root.ID {
		t.Errorf("Expected leaf re-parented to %s, got %q", root.ID, got.Parent())
	}

	if err := store.DeleteTask(ctx, root.ID); err != nil {
		t.Fatalf("DeleteTask(root) failed: %v", err)
	}
	got, err = store.GetTask(ctx, leaf.ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got.ParentID != nil {
		t.Errorf("Expected leaf to become a root, got parent %q", *got.ParentID)
	}
}

func testNotFound(t *testing.T, store storage.Store) {
	ctx := context.Background()
	name := "x"

	if _, err := store.GetTask(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetTask: expected ErrNotFound, got %v", err)
	}
	if err := store.UpdateTask(ctx, "missing", &storage.TaskPatch{Name: &name}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("UpdateTask: expected ErrNotFound, got %v", err)
	}
	if err := store.DeleteTask(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("DeleteTask: expected ErrNotFound, got %v", err)
	}
	if _, err := store.GetProfile(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetProfile: expected ErrNotFound, got %v", err)
	}
	if _, err := store.GetCredentials(ctx, "nobody@example.com"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetCredentials: expected ErrNotFound, got %v", err)
	}
	if _, err := store.GetAuthSession(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetAuthSession: expected ErrNotFound, got %v", err)
	}
}

func testProfiles(t *testing.T, store storage.Store) {
	ctx := context.Background()

	team := &storage.Team{Name: "Ops", Color: "#336699"}
	if err := store.CreateTeam(ctx, team); err != nil {
		t.Fatalf("CreateTeam failed: %v", err)
	}

	bob := &storage.Profile{Email: "Bob@Example.com ", DisplayName: "Bob", TeamID: &team.ID}
	if err := store.CreateProfile(ctx, bob, "hash-b"); err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}
	alice := &storage.Profile{Email: "alice@example.com", DisplayName: "Alice", Role: types.RoleAdmin}
	if err := store.CreateProfile(ctx, alice, "hash-a"); err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}

	dup := &storage.Profile{Email: "BOB@example.com", DisplayName: "Other Bob"}
	if err := store.CreateProfile(ctx, dup, "x"); !errors.Is(err, storage.ErrDuplicate) {
		t.Errorf("Expected ErrDuplicate, got %v", err)
	}

	profiles, err := store.ListProfiles(ctx)
	if err != nil {
		t.Fatalf("ListProfiles failed: %v", err)
	}
	if len(profiles) != 2 || profiles[0].DisplayName != "Alice" || profiles[1].DisplayName != "Bob" {
		t.Fatalf("Unexpected profiles: %+v", profiles)
	}
	if profiles[1].Role != types.RoleUser {
		t.Errorf("Expected default role user, got %q", profiles[1].Role)
	}
	if profiles[1].TeamID == nil || *profiles[1].TeamID != team.ID {
		t.Errorf("Expected team %s, got %v", team.ID, profiles[1].TeamID)
	}

	byEmail, err := store.GetProfileByEmail(ctx, "BOB@EXAMPLE.COM")
	if err != nil {
		t.Fatalf("GetProfileByEmail failed: %v", err)
	}
	if byEmail.ID != bob.ID {
		t.Errorf("Expected %s, got %s", bob.ID, byEmail.ID)
	}

	creds, err := store.GetCredentials(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetCredentials failed: %v", err)
	}
	if creds.PasswordHash != "hash-a" || creds.Profile.ID != alice.ID {
		t.Errorf("Unexpected credentials: %+v", creds)
	}

	if err := store.SetPasswordHash(ctx, alice.ID, "hash-new"); err != nil {
		t.Fatalf("SetPasswordHash failed: %v", err)
	}
	creds, _ = store.GetCredentials(ctx, "alice@example.com")
	if creds.PasswordHash != "hash-new" {
		t.Errorf("Expected new hash, got %q", creds.PasswordHash)
	}

	teams, err := store.ListTeams(ctx)
	if err != nil {
		t.Fatalf("ListTeams failed: %v", err)
	}
	if len(teams) != 1 || teams[0].Color != "#336699" {
		t.Errorf("Unexpected teams: %+v", teams)
	}
}

func testAuthSessions(t *testing.T, store storage.Store) {
	ctx := context.Background()
	profile := &storage.Profile{Email: "carol@example.com", DisplayName: "Carol"}
	if err := store.CreateProfile(ctx, profile, "h"); err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}

	now := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
	live := &storage.AuthSession{
		Token:     "live",
		ProfileID: profile.ID,
		Kind:      storage.AuthSessionKindSignIn,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	stale := &storage.AuthSession{
		Token:     "stale",
		ProfileID: profile.ID,
		Kind:      storage.AuthSessionKindRecoveryToken,
		CreatedAt: now.Add(-2 * time.Hour),
		ExpiresAt: now.Add(-time.Hour),
	}
	for _, s := range []*storage.AuthSession{live, stale} {
		if err := store.CreateAuthSession(ctx, s); err != nil {
			t.Fatalf("CreateAuthSession(%s) failed: %v", s.Token, err)
		}
	}

	got, err := store.GetAuthSession(ctx, "live")
	if err != nil {
		t.Fatalf("GetAuthSession failed: %v", err)
	}
	if got.ProfileID != profile.ID || got.Kind != storage.AuthSessionKindSignIn {
		t.Errorf("Unexpected session: %+v", got)
	}
	if !got.ExpiresAt.Equal(live.ExpiresAt) {
		t.Errorf("Expected expiry %v, got %v", live.ExpiresAt, got.ExpiresAt)
	}

	removed, err := store.DeleteExpiredAuthSessions(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpiredAuthSessions failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 expired session removed, got %d", removed)
	}
	if _, err := store.GetAuthSession(ctx, "stale"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected stale session gone, got %v", err)
	}

	if err := store.DeleteAuthSession(ctx, "live"); err != nil {
		t.Fatalf("DeleteAuthSession failed: %v", err)
	}
	if err := store.DeleteAuthSession(ctx, "live"); err != nil {
		t.Errorf("Deleting a missing session should not fail: %v", err)
	}
}

func testLeaderElection(t *testing.T, store storage.Store) {
	ctx := context.Background()
	now := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
	params := func(id string, at time.Time) *storage.LeaderElectParams {
		return &storage.LeaderElectParams{LeaderID: id, TTL: 30 * time.Second, Now: at}
	}

	elected, err := store.LeaderAttemptElect(ctx, params("a", now))
	if err != nil || !elected {
		t.Fatalf("first election = %v, %v; want elected", elected, err)
	}
	if elected, _ := store.LeaderAttemptElect(ctx, params("b", now.Add(10*time.Second))); elected {
		t.Error("b took a live lease")
	}

	if ok, err := store.LeaderAttemptReelect(ctx, params("a", now.Add(20*time.Second))); err != nil || !ok {
		t.Errorf("reelect a = %v, %v", ok, err)
	}
	if ok, _ := store.LeaderAttemptReelect(ctx, params("b", now.Add(20*time.Second))); ok {
		t.Error("b reelected a lease it never held")
	}

	// The renewed lease runs to now+50s.
	if elected, _ := store.LeaderAttemptElect(ctx, params("b", now.Add(40*time.Second))); elected {
		t.Error("b took the lease before the renewal expired")
	}
	if elected, err := store.LeaderAttemptElect(ctx, params("b", now.Add(time.Minute))); err != nil || !elected {
		t.Errorf("b after expiry = %v, %v; want elected", elected, err)
	}

	if err := store.LeaderResign(ctx, "a"); err != nil {
		t.Fatalf("resign by a non-leader failed: %v", err)
	}
	if ok, _ := store.LeaderAttemptReelect(ctx, params("b", now.Add(time.Minute))); !ok {
		t.Error("resign by a removed b's lease")
	}
	if err := store.LeaderResign(ctx, "b"); err != nil {
		t.Fatalf("LeaderResign failed: %v", err)
	}
	if elected, _ := store.LeaderAttemptElect(ctx, params("a", now.Add(time.Minute))); !elected {
		t.Error("lease not free after resign")
	}
}
