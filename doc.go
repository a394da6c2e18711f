// The [boardsync] package keeps a shared kanban board consistent across
// multiple concurrent editors and a remote coordination server, while
// remaining fully usable offline.
//
// # Engine
//
// [Engine] is the state container: construct it with [New], inject it into
// whatever needs board access, and tear it down with [Engine.Close]. All
// reads go through [Engine.State] snapshots, all writes through the typed
// mutation operations. Every mutation applies optimistically to the local
// state and the durable cache first, then asks the coordination server to
// confirm; a canonical state returned by the server wholesale-replaces the
// optimistic guess.
//
// # Connectivity
//
// [Engine.Connect] opens a server-sent-events push channel managed by
// [github.com/boardsync/boardsync.go/pkg/connection]. A broken channel
// reconnects with capped exponential backoff; after five failed attempts the
// engine stops retrying and surfaces a fatal connectivity error until
// Connect is called again. While disconnected, mutations keep working
// against the durable cache in
// [github.com/boardsync/boardsync.go/pkg/cache].
//
// # Locking
//
// Editing a specific card is gated by a per-card pessimistic lock with a
// server-owned TTL. Locks are advisory: they are enforced at the
// card-mutating call sites, expire lazily, and a caller's own lock is
// invisible to that caller.
package boardsync
