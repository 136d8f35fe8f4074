// Package api provides the HTTP surface of the game server.
//
// Endpoints:
//
//   - POST /game     — mint a fresh game id, returned as plain text.
//     The id is not registered anywhere; a game only starts to exist
//     when the first player joins it over the websocket.
//   - GET  /healthz  — liveness probe, responds 204 No Content.
//   - GET  /metrics  — Prometheus metrics.
//   - GET  /ws       — websocket upgrade into the game hub.
//
// CORS:
//
// A single allowed origin (the game frontend) is configured at
// startup. When set, every response carries the CORS headers and
// OPTIONS preflights are answered with 204. When unset, no CORS
// headers are emitted.
package api
