package dict

import "sync/atomic"

// Metrics accumulates counters describing a Dict's activity. All fields
// are updated atomically so a Metrics value may be read concurrently with
// mutation, e.g. from a status endpoint.
type Metrics struct {
	Inserts         atomic.Uint64
	Deletes         atomic.Uint64
	Lookups         atomic.Uint64
	RehashSteps     atomic.Uint64
	ResizeEvents    atomic.Uint64
	SafeIterators   atomic.Uint64
	UnsafeIterators atomic.Uint64
}

// Snapshot is a point-in-time copy of Metrics.
type Snapshot struct {
	Inserts         uint64
	Deletes         uint64
	Lookups         uint64
	RehashSteps     uint64
	ResizeEvents    uint64
	SafeIterators   uint64
	UnsafeIterators uint64
}

// Snapshot reads all counters into a plain struct.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		Inserts:         m.Inserts.Load(),
		Deletes:         m.Deletes.Load(),
		Lookups:         m.Lookups.Load(),
		RehashSteps:     m.RehashSteps.Load(),
		ResizeEvents:    m.ResizeEvents.Load(),
		SafeIterators:   m.SafeIterators.Load(),
		UnsafeIterators: m.UnsafeIterators.Load(),
	}
}

// Observer receives notifications about a Dict's activity as it happens.
// Calls are synchronous with the triggering operation.
type Observer interface {
	ObserveRehashStep(bucketsMoved int)
	ObserveResize(oldSize, newSize uint64)
}

// NoOpObserver implements Observer with no-op methods, the default when no
// Observer is supplied.
type NoOpObserver struct{}

func (NoOpObserver) ObserveRehashStep(bucketsMoved int)     {}
func (NoOpObserver) ObserveResize(oldSize, newSize uint64) {}
