// Package taskpg is a task tracker backed by a relational row store.
//
// Tasks carry dates, a status, a priority, progress, an assignee, a parent
// task, a work category, recurrence and dependencies. They are edited through
// a Client and viewed as a list, a status board, a month calendar and a
// hierarchical timeline (see package timeline).
//
// # Key Features
//
//   - PostgreSQL through pgx/v5 or database/sql, or an embedded SQLite file
//   - Status and progress kept consistent on every write
//   - Change events over LISTEN/NOTIFY so every open view reloads
//   - Built-in auth provider with password recovery
//   - Server-rendered UI and JSON API (see package ui)
//
// # Quick Start
//
//	pool, _ := pgxpool.New(ctx, os.Getenv("DATABASE_URL"))
//	client, err := taskpg.NewClient(pgxv5.New(pool), nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := client.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	if err := client.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Stop(context.Background())
//
//	task, _ := client.CreateTask(ctx, &storage.Task{Name: "Quarterly report"})
//	_, _ = client.SetProgress(ctx, task.ID, 50)
//
// # Change Events
//
// Every successful write publishes an event. Handlers run synchronously:
//
//	unsubscribe := client.SubscribeAll(func(e *notifier.Event) {
//	    log.Printf("%s %s", e.Type, e.Payload)
//	})
//	defer unsubscribe()
//
// # Housekeeping
//
// Start also joins the election for the maintenance lease. Several servers
// can share one database; only the lease holder removes expired sessions,
// and another instance takes over when it stops or disappears.
//
// # Transactions
//
// InTx runs a function inside a transaction; store calls made with its
// context join the transaction and TxFromContext exposes the native one:
//
//	err := client.InTx(ctx, func(ctx context.Context) error {
//	    _, err := client.CreateTask(ctx, parent)
//	    return err
//	})
package taskpg
