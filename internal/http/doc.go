// Package http exposes the leave ledger over JSON.
//
// Public endpoints:
//   - POST /register: self registration. Body: {"name","email","password"}.
//   - POST /sessions: login. Body: {"email","password"}. Response:
//     {"token","expires_at","user"}; the token is also set as the
//     `session_token` cookie.
//   - GET /healthz and GET /metrics.
//
// Every other endpoint requires a session token, either as
// `Authorization: Bearer <token>` or via the session cookie:
//   - PUT /sessions/current rotates the token, DELETE /sessions/current logs
//     out, DELETE /sessions/{token} revokes any session (admin).
//   - GET /me, GET /users (admin), POST /users (admin),
//     PUT /users/{id}/balance (admin).
//   - GET|POST /leave-requests, GET|PUT|DELETE /leave-requests/{id},
//     POST /leave-requests/{id}/approve|reject (admin).
//   - GET /admin/leave-requests?status= (admin).
//   - GET /calendar?from=YYYY-MM-DD&to=YYYY-MM-DD.
//
// Mutating leave endpoints answer {"request","balance"} so clients see the
// ledger effect of each transition. Errors use {"error_code","message"} with
// field errors under "errors" for 422 responses.
package http
