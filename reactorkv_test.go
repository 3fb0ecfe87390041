package reactorkv_test

import (
	"fmt"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ehrlich-b/reactorkv/dict"
	"github.com/ehrlich-b/reactorkv/reactor"
)

// TestLoopDrivesDictThroughSocketpair exercises the only sanctioned joint
// use of the two packages: a reactor.Loop dispatching socket readability
// into lookups/mutations of a shared dict.Dict, with a timer advancing an
// in-progress rehash between requests.
func TestLoopDrivesDictThroughSocketpair(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	serverFD, clientFD := fds[0], fds[1]
	defer unix.Close(clientFD)
	if err := unix.SetNonblock(serverFD, true); err != nil {
		t.Fatalf("SetNonblock: %v", err)
	}

	store := dict.New[string, int](dict.StringType[int]())
	for i := 0; i < 200; i++ {
		store.Add(keyFor(i), i)
	}
	if err := store.Expand(1024); err != nil {
		t.Fatalf("Expand: %v", err)
	}

	loop, err := reactor.New(8)
	if err != nil {
		t.Fatalf("reactor.New: %v", err)
	}

	received := make(chan byte, 1)
	onReadable := func(l *reactor.Loop, fd int, userdata any, mask reactor.FileMask) {
		var b [1]byte
		n, _ := unix.Read(fd, b[:])
		if n > 0 {
			received <- b[0]
		}
		l.Stop()
	}
	if err := loop.Register(serverFD, reactor.Readable, onReadable, nil, nil); err != nil {
		t.Fatalf("Register: %v", err)
	}

	rehashSteps := 0
	loop.CreateTimer(2*time.Millisecond, func(l *reactor.Loop, id int64, ud any) int64 {
		if store.Rehash(10) {
			rehashSteps++
		}
		return 2
	}, nil, nil)

	go func() {
		time.Sleep(20 * time.Millisecond)
		unix.Write(clientFD, []byte("x"))
	}()

	done := make(chan struct{})
	go func() {
		loop.Run()
		close(done)
	}()

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for socket read dispatch")
	}
	<-done

	if _, ok := store.FetchValue(keyFor(0)); !ok {
		t.Fatal("expected key inserted before rehashing to survive")
	}
	if _, ok := store.FetchValue(keyFor(199)); !ok {
		t.Fatal("expected last key inserted to survive")
	}
	if store.Size() != 200 {
		t.Fatalf("Size() = %d, want 200", store.Size())
	}
}

func keyFor(i int) string {
	return fmt.Sprintf("k%03d", i)
}
