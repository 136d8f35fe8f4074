// Package catalog fetches round candidates from the external anime
// catalog (the Jikan REST API by default).
//
// The Provider interface is the only thing the rest of the server
// depends on: a single call that yields one randomly chosen anime for
// the next round. The concrete Client talks to a Jikan-compatible
// endpoint and picks uniformly from the returned popularity ranking.
//
// Failures (network errors, non-2xx responses, malformed bodies,
// empty candidate lists) are returned as errors; callers decide
// whether a failed fetch is fatal. The round coordinator treats it as
// a silently skipped round.
package catalog
