// Package queue persists separation jobs in SQLite and exposes the
// operations the worker loop and the HTTP surface drive them with.
//
// Two tables back the lifecycle. queue holds one row per job awaiting
// pickup and status holds one row per known job; a job appears in queue
// exactly while its status is PENDING, and claiming a job removes its
// queue row in the same statement that returns it. Ids without a status
// row read as StatusNone, which is synthetic and never stored.
//
// The database lives next to the job artifact directories so state and
// artifacts travel together. It is operational state rather than an
// archive; schema changes bump the version in schema.go and incompatible
// databases are rejected at open.
package queue
