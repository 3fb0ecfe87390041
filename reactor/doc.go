// Package reactor implements a single-threaded, reactor-style event loop.
// A Loop multiplexes file descriptor readiness against a pluggable poll
// backend and fires time-driven callbacks from a doubly linked timer list.
// There is no internal locking: callbacks run on the goroutine that calls
// ProcessEvents or Run, and the loop suspends only inside the backend's
// blocking poll call or the pre/post-sleep hooks.
package reactor
