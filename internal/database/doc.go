// Package database stores crawl runs in SQLite.
//
// Every run gets a row in runs (keyed by a UUID) holding its summary
// counters, and the identities, edges and profiles it observed are stored
// against that run. This backs the history and compare commands.
//
// Design decision: We use SQLite (via modernc.org/sqlite) because:
//  1. The database is a single file in the XDG data directory
//  2. The driver is CGO-free, so cross-compilation stays trivial
//  3. WAL mode lets history queries run while a crawl is writing
//
// Observed data is written by a Recorder, which implements the crawl
// observer interface and flushes events in batched transactions so the
// traversal does not wait on a disk write per edge.
package database
