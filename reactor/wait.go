package reactor

import "time"

// Wait blocks until fd becomes ready for one of the directions in mask, or
// timeout elapses, and reports which directions were actually ready. It is
// independent of any Loop: it creates and tears down its own backend for
// the duration of the call.
func Wait(fd int, mask FileMask, timeout time.Duration) (FileMask, error) {
	backend := newDefaultBackend()
	if err := backend.create(fd + 1); err != nil {
		return None, err
	}
	defer backend.free()

	if err := backend.addEvent(fd, mask); err != nil {
		return None, err
	}

	fired := make([]firedEvent, 1)
	n, err := backend.poll(timeout.Microseconds(), fired)
	if err != nil {
		return None, err
	}
	if n == 0 {
		return None, nil
	}
	return fired[0].mask, nil
}
