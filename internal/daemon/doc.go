// Package daemon assembles and runs the splitter service: the queue store,
// the engine adapter, the worker loop, and the HTTP listener, guarded by a
// single-instance lock file in the data directory.
package daemon
