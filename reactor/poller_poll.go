//go:build !linux

package reactor

import (
	"syscall"

	"golang.org/x/sys/unix"

	reactorkv "github.com/ehrlich-b/reactorkv"
)

// pollBackendPoll is the portable fallback backend for platforms without
// epoll, built on the POSIX poll(2) syscall exposed by golang.org/x/sys/unix.
// It rebuilds its pollfd slice from the registration map on every call,
// which is adequate for the demo's small fd counts; the shipped default on
// Linux is the epoll backend in poller_linux.go.
type pollBackendPoll struct {
	masks map[int]FileMask
}

func newPollBackendPoll() *pollBackendPoll {
	return &pollBackendPoll{masks: make(map[int]FileMask)}
}

func (b *pollBackendPoll) create(setsize int) error { return nil }

func (b *pollBackendPoll) free() {}

func (b *pollBackendPoll) resize(setsize int) error { return nil }

func (b *pollBackendPoll) addEvent(fd int, mask FileMask) error {
	b.masks[fd] |= mask
	return nil
}

func (b *pollBackendPoll) delEvent(fd int, mask FileMask) {
	remaining := b.masks[fd] &^ mask
	if remaining == None {
		delete(b.masks, fd)
		return
	}
	b.masks[fd] = remaining
}

func maskToPollEvents(mask FileMask) int16 {
	var ev int16
	if mask&Readable != 0 {
		ev |= unix.POLLIN
	}
	if mask&Writable != 0 {
		ev |= unix.POLLOUT
	}
	return ev
}

func pollEventsToMask(ev int16) FileMask {
	var mask FileMask
	if ev&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
		mask |= Readable
	}
	if ev&unix.POLLOUT != 0 {
		mask |= Writable
	}
	return mask
}

func (b *pollBackendPoll) poll(timeoutMicros int64, fired []firedEvent) (int, error) {
	if len(b.masks) == 0 {
		if timeoutMicros < 0 {
			return 0, nil
		}
	}
	fds := make([]unix.PollFd, 0, len(b.masks))
	order := make([]int, 0, len(b.masks))
	for fd, mask := range b.masks {
		fds = append(fds, unix.PollFd{Fd: int32(fd), Events: maskToPollEvents(mask)})
		order = append(order, fd)
	}
	timeoutMs := -1
	if timeoutMicros >= 0 {
		timeoutMs = int(timeoutMicros / 1000)
	}
	n, err := unix.Poll(fds, timeoutMs)
	if err != nil {
		if errno, ok := err.(syscall.Errno); ok && errno == syscall.EINTR {
			return 0, nil
		}
		return 0, reactorkv.WrapError("poll.poll", reactorkv.ErrCodeIOError, err)
	}
	count := 0
	for i := 0; i < len(fds) && count < len(fired) && n > 0; i++ {
		if fds[i].Revents == 0 {
			continue
		}
		fired[count] = firedEvent{fd: order[i], mask: pollEventsToMask(fds[i].Revents)}
		count++
		n--
	}
	return count, nil
}

func (b *pollBackendPoll) name() string { return "poll" }

func newDefaultBackend() pollBackend {
	return newPollBackendPoll()
}
