package control

import (
	"fmt"
	"net/netip"

	"github.com/gopakumarce/r2/internal/driver"
	"github.com/gopakumarce/r2/internal/ethernet"
	"github.com/gopakumarce/r2/internal/fwd"
	"github.com/gopakumarce/r2/internal/iface"
	"github.com/gopakumarce/r2/internal/msg"
	"github.com/gopakumarce/r2/internal/packet"
)

// AddInterface brings up a new interface: it opens the raw socket,
// spreads ownership of it across forwarding threads round-robin, and
// broadcasts the epoll registration, the IfNode, and the ethernet
// decap/encap pair that every other thread needs a copy of.
func (r *R2) AddInterface(ifname string, l2Addr [fwd.EthAlen]byte, bandwidthBps uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.ifByName[ifname]; exists {
		return fmt.Errorf("control: interface %s already exists", ifname)
	}

	probe, err := driver.New(ifname, true)
	if err != nil {
		return fmt.Errorf("control: probing interface %s: %w", ifname, err)
	}
	ifindex := probe.Ifindex
	probe.Close()

	if _, exists := r.ifByIndex[ifindex]; exists {
		return fmt.Errorf("control: interface index %d already exists", ifindex)
	}

	intf := fwd.NewInterface(ifname, ifindex, l2Addr, MaxHeadroom)
	if bandwidthBps != 0 {
		intf.BandwidthBps = bandwidthBps
	}

	thread := r.lastThread
	r.lastThread = (r.lastThread + 1) % r.nthreads
	threadMask := uint64(1) << uint(thread)
	wakeup := r.threads[thread].wakeup

	pool := packet.NewHeapPool(r.cntrs, defPkts, defParts, defParticleSize)
	ifNode, ifInit, err := iface.New(r.cntrs, pool, threadMask, wakeup, intf)
	if err != nil {
		return fmt.Errorf("control: creating interface node for %s: %w", ifname, err)
	}

	r.broadcast(msg.EpollAddMsg{Fd: ifNode.Fd(), Thread: thread})
	r.broadcast(msg.GnodeAddMsg{Client: ifNode, Init: ifInit})

	decap, decapInit := ethernet.NewEthDecap(intf, r.cntrs, r.fwd2ctrl)
	r.broadcast(msg.GnodeAddMsg{Client: decap, Init: decapInit})

	encap, encapInit := ethernet.NewEthEncap(intf, r.cntrs)
	r.broadcast(msg.GnodeAddMsg{Client: encap, Init: encapInit})

	r.ifByName[ifname] = intf
	r.ifByIndex[ifindex] = ifname
	return nil
}

// AddIPAddr assigns an IPv4 address to an interface, broadcasting the
// updated Interface snapshot and swapping the connected route for the
// address's subnet in.
func (r *R2) AddIPAddr(ifname string, addr netip.Addr, maskLen int) error {
	r.mu.Lock()
	intf, ok := r.ifByName[ifname]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("control: unknown interface %s", ifname)
	}
	if !addr.Is4() || maskLen == 0 {
		r.mu.Unlock()
		return fmt.Errorf("control: refusing zero address/mask %s/%d", addr, maskLen)
	}
	prevAddr, prevMaskLen := intf.V4Addr()
	ifindex := intf.Ifindex

	newIntf := *intf
	newIntf.SetV4Addr(addr, maskLen)
	r.ifByName[ifname] = &newIntf
	r.broadcast(msg.ModifyInterfaceMsg{ModifyInterfaceMsg: fwd.ModifyInterfaceMsg{Intf: &newIntf}})
	r.mu.Unlock()

	if prevAddr.IsValid() && prevMaskLen != 0 {
		prevPrefix := netip.PrefixFrom(prevAddr, prevMaskLen).Masked()
		if err := r.DelRoute(prevPrefix); err != nil {
			return fmt.Errorf("control: removing old connected route: %w", err)
		}
	}
	prefix := netip.PrefixFrom(addr, maskLen).Masked()
	return r.AddRoute(prefix, netip.IPv4Unspecified(), ifindex)
}

// InterfaceIfindex looks an interface name up, for callers (like route
// configuration) that need to resolve a name to the numeric index every
// graph message actually carries.
func (r *R2) InterfaceIfindex(ifname string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	intf, ok := r.ifByName[ifname]
	if !ok {
		return 0, false
	}
	return intf.Ifindex, true
}
