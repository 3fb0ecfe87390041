// Package dict implements an in-memory associative map with incremental
// rehashing and dual safe/unsafe iteration, modeled on a two-table
// open-chained hash table. A Dict owns no locking: like reactor, it is
// meant to be driven from a single goroutine, with safe iterators pinning
// the structure against concurrent rehash steps rather than against
// concurrent goroutines.
package dict
