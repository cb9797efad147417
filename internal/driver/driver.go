// Package driver wraps a raw AF_PACKET socket bound to one interface: the
// actual rx/tx path a worker's epoll loop drives once an interface's fd is
// ready.
package driver

import (
	"encoding/binary"
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/gopakumarce/r2/internal/packet"
)

// htons converts a host-order uint16 to network order, matching the
// original's ETH_P_ALL_BE constant derivation.
func htons(v uint16) uint16 {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return binary.NativeEndian.Uint16(b[:])
}

// Socket is one AF_PACKET/SOCK_RAW descriptor bound to a single interface,
// receiving every ethertype on it.
type Socket struct {
	Fd      int
	Ifindex int
	Ifname  string
}

// New opens and binds a raw socket to ifname. nonBlocking should be true for
// every socket handed to an epoll.Epoll, since a blocking recv would stall
// the whole worker.
func New(ifname string, nonBlocking bool) (*Socket, error) {
	intf, err := net.InterfaceByName(ifname)
	if err != nil {
		return nil, fmt.Errorf("interface %s: %w", ifname, err)
	}

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(unix.ETH_P_ALL)))
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}

	sa := &unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  intf.Index,
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind %s: %w", ifname, err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_PACKET, unix.PACKET_AUXDATA, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("setsockopt auxdata %s: %w", ifname, err)
	}

	if nonBlocking {
		flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFL, 0)
		if err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("fcntl getfl %s: %w", ifname, err)
		}
		if _, err := unix.FcntlInt(uintptr(fd), unix.F_SETFL, flags|unix.O_NONBLOCK); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("fcntl setfl %s: %w", ifname, err)
		}
	}

	return &Socket{Fd: fd, Ifindex: intf.Index, Ifname: ifname}, nil
}

// Recv reads one frame into pkt, writing past pkt's headroom the way
// PushL2/PullL2 expect to find it, and advances pkt's tail by the amount
// read. Returns false on EAGAIN (nothing pending) or any other error.
func (s *Socket) Recv(pkt *packet.Packet) bool {
	buf := pkt.DataRaw()[pkt.Headroom():]
	n, _, _, _, err := unix.Recvmsg(s.Fd, buf, nil, unix.MSG_TRUNC)
	if err != nil || n <= 0 {
		return false
	}
	return pkt.MoveTail(n) == n
}

// Send writes every particle in pkt's chain out as one frame via a
// scatter/gather write, so a packet spanning several particles doesn't need
// to be linearized first.
func (s *Socket) Send(pkt *packet.Packet) bool {
	slices := pkt.Slices()
	if len(slices) == 0 {
		return true
	}
	n, err := unix.Writev(s.Fd, slices)
	if err != nil {
		return false
	}
	total := 0
	for _, s := range slices {
		total += len(s)
	}
	return n == total
}

// Close releases the descriptor.
func (s *Socket) Close() error {
	return unix.Close(s.Fd)
}
