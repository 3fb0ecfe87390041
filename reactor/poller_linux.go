//go:build linux

package reactor

import (
	"syscall"

	"golang.org/x/sys/unix"

	reactorkv "github.com/ehrlich-b/reactorkv"
)

// asErrno extracts a syscall.Errno from a golang.org/x/sys/unix error,
// falling back to EIO when the concrete type is unexpected.
func asErrno(err error) syscall.Errno {
	if errno, ok := err.(syscall.Errno); ok {
		return errno
	}
	return syscall.EIO
}

// epollBackend is the default pollBackend on Linux. It keeps the epoll
// event bits currently registered for each fd in a map keyed by fd, so
// addEvent and delEvent can choose between EPOLL_CTL_ADD, MOD and DEL.
type epollBackend struct {
	epfd     int
	events   map[int]uint32 // fd -> currently-registered epoll event bits
	eventBuf []unix.EpollEvent
}

func newEpollBackend() *epollBackend {
	return &epollBackend{events: make(map[int]uint32)}
}

func (b *epollBackend) create(setsize int) error {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return reactorkv.NewErrorWithErrno("epoll.create", asErrno(err))
	}
	b.epfd = fd
	b.eventBuf = make([]unix.EpollEvent, setsize)
	return nil
}

func (b *epollBackend) free() {
	if b.epfd > 0 {
		unix.Close(b.epfd)
		b.epfd = 0
	}
}

func (b *epollBackend) resize(setsize int) error {
	if len(b.eventBuf) < setsize {
		b.eventBuf = make([]unix.EpollEvent, setsize)
	}
	return nil
}

func maskToEpoll(mask FileMask) uint32 {
	var ev uint32
	if mask&Readable != 0 {
		ev |= unix.EPOLLIN
	}
	if mask&Writable != 0 {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func epollToMask(ev uint32) FileMask {
	var mask FileMask
	if ev&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0 {
		mask |= Readable
	}
	if ev&unix.EPOLLOUT != 0 {
		mask |= Writable
	}
	return mask
}

func (b *epollBackend) addEvent(fd int, mask FileMask) error {
	existing, had := b.events[fd]
	want := existing | maskToEpoll(mask)
	ev := &unix.EpollEvent{Events: want, Fd: int32(fd)}
	op := unix.EPOLL_CTL_ADD
	if had {
		op = unix.EPOLL_CTL_MOD
	}
	if err := unix.EpollCtl(b.epfd, op, fd, ev); err != nil {
		return reactorkv.NewErrorWithErrno("epoll.addEvent", asErrno(err))
	}
	b.events[fd] = want
	return nil
}

func (b *epollBackend) delEvent(fd int, mask FileMask) {
	existing, had := b.events[fd]
	if !had {
		return
	}
	remaining := existing &^ maskToEpoll(mask)
	if remaining == 0 {
		unix.EpollCtl(b.epfd, unix.EPOLL_CTL_DEL, fd, nil)
		delete(b.events, fd)
		return
	}
	ev := &unix.EpollEvent{Events: remaining, Fd: int32(fd)}
	unix.EpollCtl(b.epfd, unix.EPOLL_CTL_MOD, fd, ev)
	b.events[fd] = remaining
}

func (b *epollBackend) poll(timeoutMicros int64, fired []firedEvent) (int, error) {
	timeoutMs := -1
	if timeoutMicros >= 0 {
		timeoutMs = int(timeoutMicros / 1000)
	}
	n, err := unix.EpollWait(b.epfd, b.eventBuf, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, reactorkv.NewErrorWithErrno("epoll.poll", asErrno(err))
	}
	count := 0
	for i := 0; i < n && count < len(fired); i++ {
		fired[count] = firedEvent{
			fd:   int(b.eventBuf[i].Fd),
			mask: epollToMask(b.eventBuf[i].Events),
		}
		count++
	}
	return count, nil
}

func (b *epollBackend) name() string { return "epoll" }

func newDefaultBackend() pollBackend {
	return newEpollBackend()
}
