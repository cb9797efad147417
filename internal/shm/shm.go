// Package shm opens POSIX shared-memory segments and maps them into the
// process address space. It backs both the counter pool (internal/counters)
// and the log ring (internal/logring).
package shm

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Segment is a shared-memory region mapped into this process.
type Segment struct {
	Bytes    []byte
	name     string
	readOnly bool
}

// Create opens (or creates) a named segment sized to size bytes, mapped
// read-write. Startup failures here are fatal per the error taxonomy:
// the process refuses to start without its shared memory.
func Create(name string, size int) (*Segment, error) {
	fd, err := unix.ShmOpen(name, unix.O_CREAT|unix.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("shm_open %q: %w", name, err)
	}
	defer unix.Close(fd)

	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		return nil, fmt.Errorf("ftruncate %q to %d: %w", name, size, err)
	}

	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap %q: %w", name, err)
	}

	return &Segment{Bytes: data, name: name}, nil
}

// OpenRO maps an existing segment read-only, the mode used by the
// out-of-process counter reader.
func OpenRO(name string, size int) (*Segment, error) {
	fd, err := unix.ShmOpen(name, unix.O_RDONLY, 0o400)
	if err != nil {
		return nil, fmt.Errorf("shm_open %q: %w", name, err)
	}
	defer unix.Close(fd)

	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap %q: %w", name, err)
	}

	return &Segment{Bytes: data, name: name, readOnly: true}, nil
}

// Close unmaps the segment.
func (s *Segment) Close() error {
	if s.Bytes == nil {
		return nil
	}
	err := unix.Munmap(s.Bytes)
	s.Bytes = nil
	return err
}

// Unlink removes the named segment from the filesystem namespace.
func Unlink(name string) error {
	return unix.ShmUnlink(name)
}
