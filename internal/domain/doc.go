// Package domain defines the entities and the persistence-management core
// of Civica: cities, the citizens that belong to them, and the session
// machinery that keeps both consistent.
//
// # Entities
//
// City owns a collection of Citizens; each Citizen points back at a single
// City. The two records are linked by identity values (the citizen's
// CityID), never by live object graphs, so the storage representation
// stays acyclic.
//
// # Sessions
//
// A Session is a bounded unit of work over the Store. Entities resolved or
// created through a session are tracked: the session guarantees at most one
// in-memory instance per persisted identity, records every tracked entity
// for write-out, and flushes all of it atomically on Commit. Abort (or any
// store failure during commit) rolls the transaction back and leaves the
// store exactly as it was.
//
// # Relationship consistency
//
// Attach, Detach, and ReplaceAll are the only code that ever mutates the
// city/citizen link, and they always mutate both sides: a citizen in a
// city's collection points back at that city, and a detached citizen
// points at nothing. Moving a citizen between cities severs the old link
// first.
//
// # Lifecycle
//
// unbound -> tracked -> detached (or removed). A detached entity keeps its
// identity and last-known values but is no longer synchronized; it
// re-enters tracked state only through a session's resolver.
package domain
