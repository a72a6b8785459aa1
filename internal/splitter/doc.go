// Package splitter owns the separation job lifecycle: admission, the single
// background worker that drives queued jobs through the engine, result
// lookup, and cleanup of terminal jobs.
//
// Jobs move along exactly one of two paths, PENDING to PROCESSING to
// FINISHED, or PENDING to PROCESSING to ERROR. The queue store is the
// serialization point for claims; the service-level mutex only exists to
// keep bulk cleanup from racing a concurrent admission.
package splitter
