// Package epoll wraps Linux epoll, the event loop each worker thread
// drives: every registered file descriptor (an interface's raw socket,
// plus the thread's own wakeup eventfd) delivers its readiness through
// one Client.
package epoll

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/gopakumarce/r2/internal/efd"
)

const (
	In  = unix.EPOLLIN
	Out = unix.EPOLLOUT
	Hup = unix.EPOLLHUP
	Err = unix.EPOLLERR
)

// Client receives one callback per ready descriptor from Wait.
type Client interface {
	Event(fd int, events uint32)
}

// Epoll is one thread's event loop: an epoll instance plus the eventfd
// used to wake it from another thread.
type Epoll struct {
	epfd    int
	nfds    int
	timeout int
	wakeup  *efd.Efd
	client  Client
	events  []unix.EpollEvent
}

// New creates an epoll instance sized for nfds simultaneous events,
// already watching wakeup for EPOLLIN. timeout is the wait() timeout in
// milliseconds, -1 meaning block indefinitely.
func New(wakeup *efd.Efd, nfds, timeout int, client Client) (*Epoll, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}
	e := &Epoll{
		epfd:    epfd,
		nfds:    nfds,
		timeout: timeout,
		wakeup:  wakeup,
		client:  client,
		events:  make([]unix.EpollEvent, nfds),
	}
	if err := e.Add(wakeup.Fd, In); err != nil {
		unix.Close(epfd)
		return nil, err
	}
	return e, nil
}

// Add registers fd for the given event mask, first switching it to
// non-blocking mode (every fd handed to this epoll instance is read in a
// single-shot-per-wakeup style, so a blocking read would stall the
// entire worker).
func (e *Epoll) Add(fd int, events uint32) error {
	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFL, 0)
	if err != nil {
		return fmt.Errorf("fcntl getfl fd %d: %w", fd, err)
	}
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_SETFL, flags|unix.O_NONBLOCK); err != nil {
		return fmt.Errorf("fcntl setfl fd %d: %w", fd, err)
	}
	ev := unix.EpollEvent{Events: events, Fd: int32(fd)}
	if err := unix.EpollCtl(e.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("epoll_ctl add fd %d: %w", fd, err)
	}
	return nil
}

// Del unregisters fd.
func (e *Epoll) Del(fd int) {
	_ = unix.EpollCtl(e.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// Wait blocks for up to timeout milliseconds and delivers one Event call
// per ready descriptor, transparently consuming (and not delivering) the
// wakeup eventfd's own readiness. Returns the number of events observed,
// or -1 on failure (EINTR is swallowed as a zero-event wait).
func (e *Epoll) Wait() int {
	n, err := unix.EpollWait(e.epfd, e.events, e.timeout)
	if err != nil {
		if err == unix.EINTR {
			return 0
		}
		return -1
	}
	for i := 0; i < n; i++ {
		fd := int(e.events[i].Fd)
		if fd == e.wakeup.Fd {
			e.wakeup.Read()
			continue
		}
		e.client.Event(fd, e.events[i].Events)
	}
	return n
}

// Close releases the epoll descriptor.
func (e *Epoll) Close() error {
	return unix.Close(e.epfd)
}
