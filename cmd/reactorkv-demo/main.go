// Command reactorkv-demo wires a reactor.Loop and a dict.Dict together the
// way the two packages relate conceptually inside an in-memory data
// store: the loop multiplexes client sockets, each read callback looks up
// or mutates a shared dict used as the session key/value store, and a
// timer sweep drives incremental rehashing during idle ticks. It speaks a
// tiny line protocol (GET key / SET key value / DEL key) purely to
// exercise both packages end-to-end; there is no wire format, protocol
// compatibility, or persistence guarantee here.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	reactorkv "github.com/ehrlich-b/reactorkv"
	"github.com/ehrlich-b/reactorkv/dict"
	"github.com/ehrlich-b/reactorkv/internal/bufpool"
	"github.com/ehrlich-b/reactorkv/internal/logging"
	"github.com/ehrlich-b/reactorkv/reactor"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:6399", "listen address")
	setsize := flag.Int("setsize", 1024, "maximum number of concurrently registered file descriptors")
	flag.Parse()

	logger := logging.NewLogger(&logging.Config{Level: logging.LevelInfo, Output: os.Stderr})
	logging.SetDefault(logger)

	store := dict.New[string, []byte](dict.StringType[[]byte]())

	loop, err := reactor.New(*setsize, reactor.WithLogger(logger))
	if err != nil {
		logger.Error("failed to create reactor loop", "error", err)
		os.Exit(1)
	}

	listenFD, err := listenTCP(*addr)
	if err != nil {
		logger.Error("failed to listen", "addr", *addr, "error", err)
		os.Exit(1)
	}
	defer unix.Close(listenFD)

	conns := make(map[int]*connState)

	acceptProc := func(l *reactor.Loop, fd int, userdata any, mask reactor.FileMask) {
		for {
			nfd, _, err := unix.Accept(fd)
			if err != nil {
				if err == unix.EAGAIN {
					return
				}
				logger.Warn("accept failed", "error", err)
				return
			}
			unix.SetNonblock(nfd, true)
			conns[nfd] = &connState{reader: bufio.NewReader(&fdReader{fd: nfd})}
			if err := l.Register(nfd, reactor.Readable, readProc(conns, store, logger), nil, nil); err != nil {
				logger.Warn("failed to register connection", "fd", nfd, "error", err)
				unix.Close(nfd)
				delete(conns, nfd)
			}
		}
	}

	if err := loop.Register(listenFD, reactor.Readable, acceptProc, nil, nil); err != nil {
		logger.Error("failed to register listener", "error", err)
		os.Exit(1)
	}

	// Opportunistic incremental rehash sweep: every 200ms, spend up to 5ms
	// advancing any in-progress rehash. This makes externally visible what
	// AddRaw/Delete/Find already do implicitly on every call.
	var rehashTick reactor.TimerProc
	rehashTick = func(l *reactor.Loop, id int64, ud any) int64 {
		store.RehashMilliseconds(5 * time.Millisecond)
		return 200
	}
	loop.CreateTimer(200*time.Millisecond, rehashTick, nil, nil)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		loop.Stop()
	}()

	logger.Info("reactorkv-demo listening", "addr", *addr)
	loop.Run()
	logger.Info("reactorkv-demo stopped")
}

type connState struct {
	reader *bufio.Reader
}

// fdReader adapts a raw fd to io.Reader for bufio, used only to parse
// complete lines out of whatever a single non-blocking read returned; the
// reactor callback itself never blocks on a short read.
type fdReader struct {
	fd  int
	buf []byte
}

func (r *fdReader) Read(p []byte) (int, error) {
	if len(r.buf) == 0 {
		tmp := bufpool.Get(4096)[:4096]
		n, err := unix.Read(r.fd, tmp)
		if n <= 0 {
			bufpool.Put(tmp)
			if err != nil {
				return 0, err
			}
			return 0, unix.EAGAIN
		}
		r.buf = tmp[:n]
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

func readProc(conns map[int]*connState, store *dict.Dict[string, []byte], logger *logging.Logger) reactor.FileProc {
	return func(l *reactor.Loop, fd int, userdata any, mask reactor.FileMask) {
		conn, ok := conns[fd]
		if !ok {
			return
		}
		line, err := conn.reader.ReadString('\n')
		if err != nil && line == "" {
			if err == unix.EAGAIN {
				return
			}
			l.Unregister(fd, reactor.Readable)
			unix.Close(fd)
			delete(conns, fd)
			return
		}
		reply := handleCommand(store, strings.TrimSpace(line))
		unix.Write(fd, []byte(reply+"\n"))
	}
}

func handleCommand(store *dict.Dict[string, []byte], line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "ERR empty command"
	}
	switch strings.ToUpper(fields[0]) {
	case "GET":
		if len(fields) != 2 {
			return "ERR usage: GET key"
		}
		v, ok := store.FetchValue(fields[1])
		if !ok {
			return "NIL"
		}
		return string(v)
	case "SET":
		if len(fields) < 3 {
			return "ERR usage: SET key value"
		}
		store.Replace(fields[1], []byte(strings.Join(fields[2:], " ")))
		return "OK"
	case "DEL":
		if len(fields) != 2 {
			return "ERR usage: DEL key"
		}
		if store.Delete(fields[1]) {
			return "OK"
		}
		return "NIL"
	default:
		return fmt.Sprintf("ERR unknown command %q", fields[0])
	}
}

func listenTCP(addr string) (int, error) {
	host, portStr, err := splitHostPort(addr)
	if err != nil {
		return -1, reactorkv.WrapError("listenTCP", reactorkv.ErrCodeInvalidArgument, err)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, reactorkv.WrapError("listenTCP", reactorkv.ErrCodeIOError, err)
	}
	unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)

	var sa unix.SockaddrInet4
	copy(sa.Addr[:], host[:])
	sa.Port = portStr

	if err := unix.Bind(fd, &sa); err != nil {
		unix.Close(fd)
		return -1, reactorkv.WrapError("listenTCP", reactorkv.ErrCodeIOError, err)
	}
	if err := unix.Listen(fd, 128); err != nil {
		unix.Close(fd)
		return -1, reactorkv.WrapError("listenTCP", reactorkv.ErrCodeIOError, err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, reactorkv.WrapError("listenTCP", reactorkv.ErrCodeIOError, err)
	}
	return fd, nil
}

func splitHostPort(addr string) ([4]byte, int, error) {
	var ip [4]byte
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return ip, 0, fmt.Errorf("missing port in %q", addr)
	}
	hostPart := addr[:idx]
	portPart := addr[idx+1:]

	var port int
	if _, err := fmt.Sscanf(portPart, "%d", &port); err != nil {
		return ip, 0, fmt.Errorf("invalid port %q: %w", portPart, err)
	}

	if hostPart == "" || hostPart == "0.0.0.0" {
		return ip, port, nil
	}
	parts := strings.Split(hostPart, ".")
	if len(parts) != 4 {
		return ip, 0, fmt.Errorf("invalid IPv4 host %q", hostPart)
	}
	for i, p := range parts {
		var b int
		if _, err := fmt.Sscanf(p, "%d", &b); err != nil {
			return ip, 0, fmt.Errorf("invalid IPv4 host %q", hostPart)
		}
		ip[i] = byte(b)
	}
	return ip, port, nil
}
