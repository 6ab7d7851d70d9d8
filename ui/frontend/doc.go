// Package frontend provides the server-rendered task tracker UI.
//
// The frontend uses HTMX for interactivity and Tailwind CSS for styling,
// both loaded via CDN for simplicity. Sessions live in an HttpOnly cookie.
//
// # Routes
//
// Auth:
//   - GET/POST /login - Sign in
//   - POST /logout - Sign out
//   - GET/POST /password - Change password
//   - GET/POST /recover - Request a reset link
//   - GET /recover/{token} - Redeem a reset link
//
// Main Pages:
//   - GET / - Dashboard
//   - GET /tasks - Task list with filters
//   - GET /tasks/new, POST /tasks - Create a task
//   - GET /tasks/{id} - Task detail
//   - GET /tasks/{id}/edit, POST /tasks/{id} - Edit a task
//   - POST /tasks/{id}/delete - Delete a task
//   - GET /board - Status board
//   - GET /calendar - Month calendar
//   - GET /timeline - Tree and Gantt chart
//   - GET /people - Profiles and teams
//
// Timeline actions (HTMX, answer with the timeline fragment):
//   - POST /timeline/toggle, /timeline/window, /timeline/window/reset
//   - POST /timeline/categories, /timeline/granularity
//   - POST /timeline/drag, /timeline/progress
//   - POST /timeline/scroll - Scroll sync, answers JSON offsets
//
// HTMX Fragments:
//   - GET /fragments/* - Partial HTML fragments for HTMX updates
//
// Static Assets:
//   - GET /static/* - Embedded static files (JS, CSS)
package frontend
