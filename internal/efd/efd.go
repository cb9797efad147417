// Package efd wraps a Linux eventfd, used to wake a worker's epoll loop
// from another thread (the control thread, or another worker delivering
// a cross-thread packet).
package efd

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

// Efd is one eventfd descriptor.
type Efd struct {
	Fd int
}

// New creates an eventfd with the given flags (e.g. unix.EFD_NONBLOCK).
func New(flags int) (*Efd, error) {
	fd, err := unix.Eventfd(0, flags)
	if err != nil {
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	return &Efd{Fd: fd}, nil
}

// Write signals the eventfd, adding val to its internal counter.
func (e *Efd) Write(val uint64) {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], val)
	_, _ = unix.Write(e.Fd, buf[:])
}

// Read drains the eventfd's counter, returning its accumulated value (0
// if nothing was pending and the fd is non-blocking).
func (e *Efd) Read() uint64 {
	var buf [8]byte
	n, err := unix.Read(e.Fd, buf[:])
	if err != nil || n != 8 {
		return 0
	}
	return binary.NativeEndian.Uint64(buf[:])
}

// Close releases the descriptor.
func (e *Efd) Close() error {
	return unix.Close(e.Fd)
}
