package reactor

import "sync/atomic"

// Metrics accumulates counters describing a Loop's dispatch activity.
// All fields are updated with atomic operations so a Metrics value may be
// read concurrently with the loop's own goroutine, e.g. from a status
// endpoint.
type Metrics struct {
	FileEventsDispatched  atomic.Uint64
	TimersCreated         atomic.Uint64
	TimersFired           atomic.Uint64
	TimersCancelled       atomic.Uint64
	BarrierInversions     atomic.Uint64
	EINTRRetries          atomic.Uint64
	PollWaitNanos         atomic.Uint64
	Iterations            atomic.Uint64
}

// Snapshot is a point-in-time copy of Metrics suitable for logging or
// exposing over a status endpoint.
type Snapshot struct {
	FileEventsDispatched uint64
	TimersCreated        uint64
	TimersFired          uint64
	TimersCancelled      uint64
	BarrierInversions    uint64
	EINTRRetries         uint64
	PollWaitNanos        uint64
	Iterations           uint64
}

// Snapshot reads all counters into a plain struct.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		FileEventsDispatched: m.FileEventsDispatched.Load(),
		TimersCreated:        m.TimersCreated.Load(),
		TimersFired:          m.TimersFired.Load(),
		TimersCancelled:      m.TimersCancelled.Load(),
		BarrierInversions:    m.BarrierInversions.Load(),
		EINTRRetries:         m.EINTRRetries.Load(),
		PollWaitNanos:        m.PollWaitNanos.Load(),
		Iterations:           m.Iterations.Load(),
	}
}

// Observer receives notifications about loop activity as it happens. It is
// called synchronously from ProcessEvents, so implementations must not
// block or re-enter the loop.
type Observer interface {
	ObserveDispatch(fd int, mask FileMask)
	ObserveTimerFired(id int64)
	ObservePollWait(nanos int64)
}

// NoOpObserver implements Observer with no-op methods. It is the default
// when no Observer is supplied.
type NoOpObserver struct{}

func (NoOpObserver) ObserveDispatch(fd int, mask FileMask) {}
func (NoOpObserver) ObserveTimerFired(id int64)            {}
func (NoOpObserver) ObservePollWait(nanos int64)           {}
