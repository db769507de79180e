// Package service exposes the application-facing CRUD surface. Every
// operation runs inside its own unit-of-work session: it opens a session
// against the store, performs its reads and edits through the tracking
// context, and either commits or aborts before returning. Callers only
// ever see detached snapshots.
package service
