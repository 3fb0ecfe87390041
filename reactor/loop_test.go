package reactor

import (
	"testing"

	reactorkv "github.com/ehrlich-b/reactorkv"
)

func noopProc(*Loop, int, any, FileMask) {}

func TestRegisterUnregisterMask(t *testing.T) {
	mock := NewMockPollBackend()
	l, err := New(16, WithPollBackend(mock))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := l.Register(3, Readable|Writable, noopProc, noopProc, nil); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if got := l.Mask(3); got != Readable|Writable {
		t.Fatalf("Mask after register = %v, want Readable|Writable", got)
	}

	l.Unregister(3, Writable)
	if got := l.Mask(3); got != Readable {
		t.Fatalf("Mask after unregister = %v, want Readable", got)
	}
}

func TestMaxfdTracksHighestRegisteredFD(t *testing.T) {
	mock := NewMockPollBackend()
	l, err := New(16, WithPollBackend(mock))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tests := []struct {
		name      string
		action    func()
		wantMaxfd int
	}{
		{"initially -1", func() {}, -1},
		{"register fd 5", func() { l.Register(5, Readable, noopProc, nil, nil) }, 5},
		{"register fd 2", func() { l.Register(2, Readable, noopProc, nil, nil) }, 5},
		{"unregister fd 2", func() { l.Unregister(2, Readable) }, 5},
		{"unregister fd 5", func() { l.Unregister(5, Readable) }, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.action()
			if l.maxfd != tt.wantMaxfd {
				t.Fatalf("maxfd = %d, want %d", l.maxfd, tt.wantMaxfd)
			}
		})
	}
}

func TestRegisterFailsWhenFDExceedsSetsize(t *testing.T) {
	mock := NewMockPollBackend()
	l, err := New(4, WithPollBackend(mock))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = l.Register(10, Readable, noopProc, nil, nil)
	if !reactorkv.IsCode(err, reactorkv.ErrCodeCapacity) {
		t.Fatalf("Register(fd >= setsize) err = %v, want ErrCodeCapacity", err)
	}
}

func TestBarrierOrderingInvertsWriteBeforeRead(t *testing.T) {
	mock := NewMockPollBackend()
	l, err := New(16, WithPollBackend(mock))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var order []string
	onRead := func(*Loop, int, any, FileMask) { order = append(order, "read") }
	onWrite := func(*Loop, int, any, FileMask) { order = append(order, "write") }

	if err := l.Register(3, Readable|Writable|Barrier, onRead, onWrite, nil); err != nil {
		t.Fatalf("Register: %v", err)
	}
	mock.SetReady(3, Readable|Writable)

	if _, err := l.ProcessEvents(FileEvents); err != nil {
		t.Fatalf("ProcessEvents: %v", err)
	}
	if len(order) != 2 || order[0] != "write" || order[1] != "read" {
		t.Fatalf("dispatch order = %v, want [write read]", order)
	}
}

func TestNoBarrierOrdersReadBeforeWrite(t *testing.T) {
	mock := NewMockPollBackend()
	l, err := New(16, WithPollBackend(mock))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var order []string
	onRead := func(*Loop, int, any, FileMask) { order = append(order, "read") }
	onWrite := func(*Loop, int, any, FileMask) { order = append(order, "write") }

	if err := l.Register(3, Readable|Writable, onRead, onWrite, nil); err != nil {
		t.Fatalf("Register: %v", err)
	}
	mock.SetReady(3, Readable|Writable)

	if _, err := l.ProcessEvents(FileEvents); err != nil {
		t.Fatalf("ProcessEvents: %v", err)
	}
	if len(order) != 2 || order[0] != "read" || order[1] != "write" {
		t.Fatalf("dispatch order = %v, want [read write]", order)
	}
}

func TestSharedProcNotDispatchedTwice(t *testing.T) {
	mock := NewMockPollBackend()
	l, err := New(16, WithPollBackend(mock))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	calls := 0
	shared := func(*Loop, int, any, FileMask) { calls++ }

	if err := l.Register(3, Readable|Writable, shared, shared, nil); err != nil {
		t.Fatalf("Register: %v", err)
	}
	mock.SetReady(3, Readable|Writable)

	if _, err := l.ProcessEvents(FileEvents); err != nil {
		t.Fatalf("ProcessEvents: %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (shared proc dispatched once)", calls)
	}
}

func TestResizeSetSizeRejectsTruncatingMaxfd(t *testing.T) {
	mock := NewMockPollBackend()
	l, err := New(16, WithPollBackend(mock))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := l.Register(10, Readable, noopProc, nil, nil); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := l.ResizeSetSize(5); err == nil {
		t.Fatalf("ResizeSetSize(5) with maxfd=10 should fail")
	}
	if err := l.ResizeSetSize(32); err != nil {
		t.Fatalf("ResizeSetSize(32): %v", err)
	}
	if l.Mask(10) != Readable {
		t.Fatalf("registration lost across ResizeSetSize")
	}
}
