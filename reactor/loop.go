package reactor

import (
	"time"

	reactorkv "github.com/ehrlich-b/reactorkv"
	"github.com/ehrlich-b/reactorkv/internal/logging"
)

// registration is the per-fd record of registered callbacks and mask.
type registration struct {
	mask             FileMask
	onRead, onWrite  FileProc
	userdata         any
}

// Loop is a single-threaded reactor: it multiplexes fd readiness against a
// pluggable poll backend and fires matured timers from a doubly linked
// list. There is no internal locking; all methods are meant to be called
// from the same goroutine that drives ProcessEvents/Run, except where
// documented otherwise (Wait is independent of any running loop).
type Loop struct {
	setsize int
	maxfd   int

	registered []registration
	fired      []firedEvent

	timerHead   *timer
	nextTimerID int64
	lastTime    int64

	backend pollBackend

	beforeSleep func(*Loop)
	afterSleep  func(*Loop)

	stop bool

	logger   *logging.Logger
	observer Observer
	metrics  Metrics
}

func newInvalidArg(op, msg string) error {
	return reactorkv.NewError(op, reactorkv.ErrCodeInvalidArgument, msg)
}

func newCapacityErr(op, msg string) error {
	return reactorkv.NewError(op, reactorkv.ErrCodeCapacity, msg)
}

// New allocates a Loop with capacity for setsize file descriptors (valid fd
// range is [0, setsize)) and installs the poll backend.
func New(setsize int, opts ...Option) (*Loop, error) {
	if setsize <= 0 {
		return nil, newInvalidArg("reactor.New", "setsize must be positive")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	backend := cfg.backend
	if backend == nil {
		backend = newDefaultBackend()
	}
	if err := backend.create(setsize); err != nil {
		return nil, err
	}

	l := &Loop{
		setsize:    setsize,
		maxfd:      -1,
		registered: make([]registration, setsize),
		fired:      make([]firedEvent, setsize),
		backend:    backend,
		logger:     cfg.logger,
		observer:   cfg.observer,
		lastTime:   time.Now().Unix(),
	}
	if l.logger != nil {
		l.logger.Debug("reactor loop created", "setsize", setsize, "backend", backend.name())
	}
	return l, nil
}

// Metrics returns the loop's live metrics. The returned pointer may be read
// concurrently with the loop's own goroutine.
func (l *Loop) Metrics() *Metrics { return &l.metrics }

// SetHooks installs the pre-sleep and post-sleep hooks invoked by
// ProcessEvents when CallBeforeSleep/CallAfterSleep are set. Either may be
// nil.
func (l *Loop) SetHooks(before, after func(*Loop)) {
	l.beforeSleep = before
	l.afterSleep = after
}

// Register adds mask to fd's registration, storing onRead/onWrite for the
// newly requested directions and userdata for future dispatches. It fails
// if fd is outside [0, setsize).
func (l *Loop) Register(fd int, mask FileMask, onRead, onWrite FileProc, userdata any) error {
	if fd < 0 || fd >= l.setsize {
		return newCapacityErr("reactor.Register", "fd exceeds setsize")
	}

	reg := &l.registered[fd]
	if mask&Readable != 0 {
		reg.onRead = onRead
	}
	if mask&Writable != 0 {
		reg.onWrite = onWrite
	}
	reg.mask |= mask
	reg.userdata = userdata

	if err := l.backend.addEvent(fd, reg.mask); err != nil {
		return err
	}
	if fd > l.maxfd {
		l.maxfd = fd
	}
	if l.logger != nil {
		l.logger.Debug("fd registered", "fd", fd, "mask", reg.mask)
	}
	return nil
}

// Unregister clears mask from fd's registration. If the resulting mask is
// None the backend watch is dropped and maxfd is adjusted downward. It is
// a silent no-op for an fd that isn't registered.
func (l *Loop) Unregister(fd int, mask FileMask) {
	if fd < 0 || fd >= l.setsize {
		return
	}
	reg := &l.registered[fd]
	if reg.mask == None {
		return
	}
	reg.mask &^= mask
	l.backend.delEvent(fd, mask)

	if mask&Readable != 0 {
		reg.onRead = nil
	}
	if mask&Writable != 0 {
		reg.onWrite = nil
	}

	if reg.mask == None && fd == l.maxfd {
		for l.maxfd >= 0 && l.registered[l.maxfd].mask == None {
			l.maxfd--
		}
	}
	if l.logger != nil {
		l.logger.Debug("fd unregistered", "fd", fd, "mask", mask)
	}
}

// Mask returns fd's currently registered mask, or None if unregistered or
// out of range.
func (l *Loop) Mask(fd int) FileMask {
	if fd < 0 || fd >= l.setsize {
		return None
	}
	return l.registered[fd].mask
}

// ResizeSetSize grows or shrinks the loop's fd capacity to n. Shrinking
// below maxfd+1 fails, since live registrations would be truncated.
func (l *Loop) ResizeSetSize(n int) error {
	if n <= l.maxfd {
		return newCapacityErr("reactor.ResizeSetSize", "new size would truncate a registered fd")
	}
	if err := l.backend.resize(n); err != nil {
		return err
	}
	regs := make([]registration, n)
	copy(regs, l.registered)
	l.registered = regs
	l.fired = make([]firedEvent, n)
	if l.logger != nil {
		l.logger.Debug("setsize resized", "old", l.setsize, "new", n)
	}
	l.setsize = n
	return nil
}

// Stop causes Run to return after the current iteration completes.
func (l *Loop) Stop() { l.stop = true }

// Run repeatedly calls ProcessEvents with all events and hooks enabled
// until Stop is called.
func (l *Loop) Run() {
	l.stop = false
	for !l.stop {
		l.ProcessEvents(FileEvents | TimeEvents | CallBeforeSleep | CallAfterSleep)
	}
}

// ProcessEvents runs one iteration of the loop: it computes the sleep
// deadline from the nearest timer (unless DontWait is set or TimeEvents is
// not requested), invokes the pre-sleep hook, polls the backend, invokes
// the post-sleep hook, dispatches ready file events honoring barrier
// ordering, then dispatches matured timers. It returns the total number of
// file and timer events dispatched.
func (l *Loop) ProcessEvents(flags Flags) (int, error) {
	if flags&(FileEvents|TimeEvents) == 0 {
		return 0, nil
	}

	l.checkClockSkew()

	var timeoutMicros int64 = -1
	if flags&FileEvents != 0 {
		if flags&TimeEvents != 0 && flags&DontWait == 0 {
			if sec, ms, ok := l.nearestDeadline(); ok {
				now := time.Now()
				deadline := time.Unix(sec, ms*int64(time.Millisecond))
				d := deadline.Sub(now)
				if d < 0 {
					d = 0
				}
				timeoutMicros = d.Microseconds()
			} else if flags&DontWait != 0 {
				timeoutMicros = 0
			}
		} else if flags&DontWait != 0 {
			timeoutMicros = 0
		}
	} else {
		// No file events requested: just run timers, no blocking poll.
		return l.dispatchTimers(), nil
	}

	if flags&CallBeforeSleep != 0 && l.beforeSleep != nil {
		l.beforeSleep(l)
	}

	pollStart := time.Now()
	n, err := l.backend.poll(timeoutMicros, l.fired)
	l.metrics.PollWaitNanos.Add(uint64(time.Since(pollStart).Nanoseconds()))
	l.observer.ObservePollWait(time.Since(pollStart).Nanoseconds())
	if err != nil {
		l.metrics.EINTRRetries.Add(1)
		if l.logger != nil {
			l.logger.Warn("poll failed", "error", err)
		}
		return 0, err
	}

	if flags&CallAfterSleep != 0 && l.afterSleep != nil {
		l.afterSleep(l)
	}

	dispatched := 0
	for i := 0; i < n; i++ {
		dispatched += l.dispatchFired(l.fired[i])
	}

	if flags&TimeEvents != 0 {
		dispatched += l.dispatchTimers()
	}

	l.metrics.Iterations.Add(1)
	return dispatched, nil
}

// dispatchFired invokes the callbacks registered for a single fired event,
// honoring barrier ordering: normally read fires before write, but when
// Barrier is set on the registration the order inverts so the application
// can, e.g., fsync before replying within the same iteration. A callback
// fires only if its direction is both registered and ready; if the same
// proc is registered for both directions, it is not invoked twice.
func (l *Loop) dispatchFired(ev firedEvent) int {
	if ev.fd < 0 || ev.fd >= len(l.registered) {
		return 0
	}
	reg := &l.registered[ev.fd]
	count := 0

	fireRead := reg.mask&Readable != 0 && ev.mask&Readable != 0
	fireWrite := reg.mask&Writable != 0 && ev.mask&Writable != 0

	invoke := func(proc FileProc, mask FileMask) bool {
		if proc == nil {
			return false
		}
		proc(l, ev.fd, reg.userdata, mask)
		l.metrics.FileEventsDispatched.Add(1)
		l.observer.ObserveDispatch(ev.fd, mask)
		count++
		return true
	}

	if reg.mask&Barrier != 0 {
		l.metrics.BarrierInversions.Add(1)
		readFired := false
		if fireWrite {
			readFired = invoke(reg.onWrite, Writable)
		}
		if fireRead && (reg.onRead == nil || !samePtr(reg.onRead, reg.onWrite) || !readFired) {
			invoke(reg.onRead, Readable)
		}
		return count
	}

	readFired := false
	if fireRead {
		readFired = invoke(reg.onRead, Readable)
	}
	if fireWrite && (!samePtr(reg.onRead, reg.onWrite) || !readFired) {
		invoke(reg.onWrite, Writable)
	}
	return count
}

// samePtr reports whether two FileProc values refer to the same function,
// used to suppress a second dispatch when one proc is registered for both
// directions on a level-triggered backend.
func samePtr(a, b FileProc) bool {
	if a == nil || b == nil {
		return false
	}
	return funcEqual(a, b)
}
