// Package ui serves the task tracker over HTTP: an HTMX frontend and a JSON
// API, both backed by one service.
//
// # Quick Start
//
//	pool, _ := pgxpool.New(ctx, os.Getenv("DATABASE_URL"))
//	client, _ := taskpg.NewClient(pgxv5.New(pool), nil)
//	_ = client.Migrate(ctx)
//
//	h, err := ui.New(client, &ui.Config{BasePath: "/ui"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer h.Close()
//
//	mux := http.NewServeMux()
//	mux.Handle("/ui/", http.StripPrefix("/ui", h.UI))
//	mux.Handle("/api/", http.StripPrefix("/api", h.API))
//	http.ListenAndServe(":8080", mux)
//
// The frontend and the API accept the same session cookie, so a signed-in
// browser can call the API directly. Scripts authenticate with a bearer
// token from POST /auth/signin instead.
//
// # Time zone
//
// Config.Location decides what "today" is: overdue flags, the calendar
// highlight and the timeline marker all use it.
package ui
