// Package http provides HTTP handlers and middleware for the tutoring booking API.
//
// Every route except /healthz, /metrics and /calendar/callback requires a bearer
// token issued by the identity service. The router exposes:
//   - POST /sessions: books a 30 minute session. Body:
//     {"speakerId","title","date","time","topics"}. Responds 201 with
//     {"session","calendar":{"created","eventId","error"}}.
//   - GET /sessions?status=: lists sessions the caller is a party to.
//   - GET /sessions/{id}: a single session visible to its parties.
//   - POST /sessions/{id}/cancel: optional body {"reason"}. Enforces the minimum
//     notice window and removes the calendar event asynchronously.
//   - GET /speakers/{id}/availability, PUT /availability: the weekly availability
//     table exchanging `availabilityEntryDTO` payloads.
//   - GET /speakers/{id}/slots?from=&days=: open 30 minute slots.
//   - GET /calendar/connect, GET /calendar/callback, DELETE /calendar/connection:
//     the speaker calendar consent flow.
//
// Failures are rendered as {"error_code","message","errors","details"}.
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
