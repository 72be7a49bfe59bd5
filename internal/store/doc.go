// Package store persists the workflow state in SQLite and exposes typed
// accessors for every table the tracker owns.
//
// The Store manages the database connection, versioned schema migrations,
// and the status transitions for products, active stages, and worker
// assignments. Multi-step operations (stage cascade delete, export and
// inbound record creation, reordering) run inside explicit transactions;
// stage completion is a single conditional UPDATE so concurrent workers
// cannot double-fire the warehouse handoff.
//
// Treat this package as the single source of truth for workflow semantics;
// schema changes are new files under migrations/ recorded in
// schema_migrations, never edits to applied versions.
package store
