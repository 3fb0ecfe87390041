package reactor

import "time"

// timer is one node of the reactor's doubly linked timer list. id is -1
// once the timer has been logically deleted but not yet unlinked; refCount
// guards against freeing a timer that is currently executing its own proc
// (e.g. a timer that deletes itself).
type timer struct {
	id           int64
	deadlineSec  int64
	deadlineMs   int64
	proc         TimerProc
	finalizer    func(any)
	userdata     any
	refCount     int
	prev, next   *timer
}

func timerDeadline(d time.Duration) (sec, ms int64) {
	now := time.Now()
	at := now.Add(d)
	return at.Unix(), int64(at.Nanosecond() / int(time.Millisecond))
}

// CreateTimer schedules proc to run after d elapses, passing userdata.
// The returned id is monotonically increasing for the lifetime of the
// loop and is used to cancel the timer with DeleteTimer. finalizer, if
// non-nil, runs once when the timer is ultimately unlinked and freed
// (whether it completed normally, was cancelled, or returned NoMore).
func (l *Loop) CreateTimer(d time.Duration, proc TimerProc, userdata any, finalizer func(any)) int64 {
	sec, ms := timerDeadline(d)
	id := l.nextTimerID
	l.nextTimerID++

	t := &timer{
		id:          id,
		deadlineSec: sec,
		deadlineMs:  ms,
		proc:        proc,
		finalizer:   finalizer,
		userdata:    userdata,
	}

	// Insert at head of the list.
	t.next = l.timerHead
	if l.timerHead != nil {
		l.timerHead.prev = t
	}
	l.timerHead = t

	l.metrics.TimersCreated.Add(1)
	if l.logger != nil {
		l.logger.Debug("timer created", "id", id, "after", d)
	}
	return id
}

// DeleteTimer marks the timer identified by id as deleted. DeleteTimer
// itself unlinks nothing: the next timer dispatch pass unlinks the timer
// and runs its finalizer once its refCount is zero, so a timer that is
// presently executing its own proc is not freed under it.
func (l *Loop) DeleteTimer(id int64) error {
	for t := l.timerHead; t != nil; t = t.next {
		if t.id == id {
			t.id = -1
			l.metrics.TimersCancelled.Add(1)
			if l.logger != nil {
				l.logger.Debug("timer deleted", "id", id)
			}
			return nil
		}
	}
	return newInvalidArg("reactor.DeleteTimer", "timer id not found")
}

// nearestDeadline returns the earliest non-deleted deadline in the list,
// and whether any live timer exists at all.
func (l *Loop) nearestDeadline() (sec, ms int64, ok bool) {
	for t := l.timerHead; t != nil; t = t.next {
		if t.id == -1 {
			continue
		}
		if !ok || t.deadlineSec < sec || (t.deadlineSec == sec && t.deadlineMs < ms) {
			sec, ms, ok = t.deadlineSec, t.deadlineMs, true
		}
	}
	return
}

// checkClockSkew forces every live timer to fire immediately if wall-clock
// time has moved backward since the last iteration.
func (l *Loop) checkClockSkew() {
	nowSec := time.Now().Unix()
	if nowSec < l.lastTime {
		if l.logger != nil {
			l.logger.Warn("clock skew detected, forcing timers to fire", "was", l.lastTime, "now", nowSec)
		}
		for t := l.timerHead; t != nil; t = t.next {
			t.deadlineSec = 0
		}
	}
	l.lastTime = nowSec
}

// dispatchTimers fires every live, due timer whose id does not exceed the
// maxId captured at the start of this iteration, so that timers created by
// a proc invoked during this same pass are not also dispatched in it. It
// returns the number of timers fired.
func (l *Loop) dispatchTimers() int {
	maxID := l.nextTimerID - 1
	fired := 0
	now := time.Now()
	nowSec, nowMs := now.Unix(), int64(now.Nanosecond()/int(time.Millisecond))

	for t := l.timerHead; t != nil; t = t.next {
		if t.id == -1 || t.id > maxID {
			continue
		}
		due := t.deadlineSec < nowSec || (t.deadlineSec == nowSec && t.deadlineMs <= nowMs)
		if !due {
			continue
		}

		t.refCount++
		ret := t.proc(l, t.id, t.userdata)
		t.refCount--
		fired++
		l.metrics.TimersFired.Add(1)
		l.observer.ObserveTimerFired(t.id)

		if ret == NoMore {
			t.id = -1
		} else {
			sec, ms := timerDeadline(time.Duration(ret) * time.Millisecond)
			t.deadlineSec, t.deadlineMs = sec, ms
		}
	}

	l.reapDeadTimers()
	return fired
}

// reapDeadTimers unlinks and frees every timer whose id is -1 and whose
// refCount has dropped to zero, invoking its finalizer if present.
func (l *Loop) reapDeadTimers() {
	t := l.timerHead
	for t != nil {
		next := t.next
		if t.id == -1 && t.refCount == 0 {
			l.unlinkTimer(t)
			if t.finalizer != nil {
				t.finalizer(t.userdata)
			}
		}
		t = next
	}
}

func (l *Loop) unlinkTimer(t *timer) {
	if t.prev != nil {
		t.prev.next = t.next
	} else {
		l.timerHead = t.next
	}
	if t.next != nil {
		t.next.prev = t.prev
	}
	t.prev, t.next = nil, nil
}
