// Package api provides the JSON API of the task tracker.
//
// Every endpoint except sign-in and password recovery requires a session
// token, sent as "Authorization: Bearer <token>" or as the session cookie.
//
// # Endpoints
//
// Auth:
//   - POST /auth/signin - Exchange email and password for a session token
//   - POST /auth/signout - End the current session
//   - PUT /auth/password - Set a new password
//   - POST /auth/recover - Request a recovery link
//   - POST /auth/recover/{token} - Redeem a recovery link
//   - GET /me - Current profile
//
// Tasks:
//   - GET /tasks - List tasks (filtered, paginated)
//   - POST /tasks - Create a task
//   - POST /tasks/import - Create many tasks in one transaction
//   - GET /tasks/{id} - Task detail
//   - PUT /tasks/{id} - Replace the editable fields of a task
//   - PATCH /tasks/{id} - Partial update
//   - DELETE /tasks/{id} - Delete a task
//   - POST /tasks/{id}/move - Change status from the board
//
// Timeline (state is kept per user):
//   - GET /timeline - Rows, chart entries and layout
//   - POST /timeline/toggle - Collapse or expand a row
//   - PUT /timeline/window, DELETE /timeline/window - Set or reset the window
//   - PUT /timeline/categories - Choose the active categories
//   - PUT /timeline/granularity - day, week or month columns
//   - POST /timeline/drag - Move or resize a bar
//   - POST /timeline/progress - Set the progress of a task bar
//   - POST /timeline/scroll - Report chart scroll or tree wheel input
//
// Other:
//   - GET /dashboard, GET /board, GET /calendar?month=YYYY-MM
//   - GET /profiles, GET /teams, POST /teams
//   - GET /version - Build version and task change counter
//   - GET /events - SSE stream of task changes
package api
