// Package http exposes the study space reservation API.
//
// Every route requires the X-User-ID header set by the authenticating gateway:
//   - GET /resources: active study spaces, filterable by type, power_outlet,
//     quiet_zone and min_capacity.
//   - GET /reservations, POST /reservations: the caller's reservations
//     (optionally ?status=) and admission of a new one. Body:
//     {"resource_id","start","end","note"} with RFC 3339 instants in whole
//     seconds; fractional seconds are rejected with 400.
//   - PUT /reservations/{id}, DELETE /reservations/{id}: move or cancel one of
//     the caller's reservations. Cancelling twice succeeds.
//   - GET /free-slots?resource=&date=YYYY-MM-DD&duration=: admissible windows.
//     duration defaults to 120 minutes; zero or several resources query the
//     catalog in one batch.
//   - GET /occupancy?resource=&date=: reservations per resource per hour.
//   - GET /sessions, POST /sessions, GET /sessions/active,
//     POST /sessions/{id}/stop: usage sessions.
//     Stop takes {"score","note"}.
//   - GET /me/summary: reservation and session totals for the caller.
//
// Errors are JSON bodies of the form {"error_code","message","errors",
// "conflicting_reservation_ids"}. Contention on the store yields 503 with
// Retry-After.
package http
