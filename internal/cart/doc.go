// Package cart keeps the in-memory cart consistent with the server.
//
// The synchronizer applies mutations optimistically so the caller
// stays responsive, then reconciles against the backend:
//
//   - server accepted: re-fetch (full replace) and rewrite the mirror
//   - server rejected: roll the optimistic change back and re-fetch
//   - server unreachable: keep the optimistic state and write it to
//     the local mirror, leaving the discrepancy for the next
//     successful fetch to resolve
//
// Reads never fail: a fetch that cannot reach the backend falls back
// to the persisted mirror, and an empty mirror yields an empty cart.
package cart
