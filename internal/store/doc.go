// Package store provides SQLite-backed persistent client state.
//
// It is the local-storage analog for the storefront client, holding:
//   - the anonymous session identifier (generated once, kept forever)
//   - the current-user record written at login
//   - the cart mirror: a best-effort snapshot of the server cart used
//     when the backend is unreachable
//
// The mirror is read and written by multiple commands with no
// cross-process locking; last write wins, and the next successful
// cart fetch overwrites whatever is here.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
package store
