package ethernet

import (
	"net/netip"

	"github.com/gopakumarce/r2/internal/counters"
	"github.com/gopakumarce/r2/internal/fwd"
	"github.com/gopakumarce/r2/internal/graph"
	"github.com/gopakumarce/r2/internal/msg"
	"github.com/gopakumarce/r2/internal/names"
	"github.com/gopakumarce/r2/internal/packet"
)

type encapNext int

const (
	encapDrop encapNext = iota
	encapTX
)

func encapNextNames(ifindex int) []string {
	return []string{names.Drop, names.RxTx(ifindex)}
}

// EthEncap adds an interface's layer-2 header to an outgoing packet. If
// the destination mac isn't resolved yet it sends an ARP request instead
// and drops the original packet -- the caller is expected to retransmit
// once EthDecap's reply arrives and broadcasts the learned mac.
type EthEncap struct {
	intf *fwd.Interface
	mac  map[netip.Addr]fwd.EthMacRaw
}

func NewEthEncap(intf *fwd.Interface, cntrs *counters.Pool) (*EthEncap, graph.Init) {
	name := names.L2EthEncap(intf.Ifindex)
	e := &EthEncap{
		intf: intf,
		mac:  make(map[netip.Addr]fwd.EthMacRaw),
	}
	return e, graph.Init{Name: name, NextNames: encapNextNames(intf.Ifindex)}
}

func (e *EthEncap) Clone(cntrs *counters.Pool) graph.Client[msg.R2Msg] {
	return &EthEncap{
		intf: e.intf,
		mac:  make(map[netip.Addr]fwd.EthMacRaw),
	}
}

func (e *EthEncap) MacAdd(ip netip.Addr, mac [fwd.EthAlen]byte) {
	if _, ok := e.mac[ip]; !ok {
		e.mac[ip] = fwd.EthMacRaw{Bytes: mac}
	}
}

func (e *EthEncap) doArpRequest(pool packet.Pool, inPkt *packet.Packet) *packet.Packet {
	pkt, ok := pool.Pkt(0)
	if !ok {
		return nil
	}
	raw := pkt.DataRaw()

	copy(raw[fwd.EthDaddrOff:fwd.EthDaddrOff+fwd.EthAlen], fwd.BcastMac[:])
	copy(raw[fwd.EthSaddrOff:fwd.EthSaddrOff+fwd.EthAlen], e.intf.L2Addr[:])
	putBE16(raw[fwd.EthTypeOff:], fwd.EthTypeARP)
	putBE16(raw[fwd.EthHwtypeOff:], fwd.ArpHwTypeEth)
	putBE16(raw[fwd.EthProtoOff:], fwd.EthTypeIPv4)
	raw[fwd.EthHwSzOff] = fwd.EthAlen
	raw[fwd.EthProtoSzOff] = 4
	putBE16(raw[fwd.EthOpcodeOff:], fwd.ArpOpcodeReq)
	copy(raw[fwd.EthSenderMacOff:fwd.EthSenderMacOff+fwd.EthAlen], e.intf.L2Addr[:])
	copy(raw[fwd.EthSenderIPOff:fwd.EthSenderIPOff+4], e.intf.IPv4Addr.As4()[:])
	copy(raw[fwd.EthTargetMacOff:fwd.EthTargetMacOff+fwd.EthAlen], fwd.ZeroMac[:])

	if inPkt.OutL3Addr == netip.IPv4Unspecified() {
		// A zero-valued adjacency nexthop is a connected route: arp for
		// the packet's own destination address instead of a gateway.
		l3, l3Len := inPkt.GetL3()
		if l3Len < fwd.IPHdrMinLen {
			pkt.Free()
			return nil
		}
		copy(raw[fwd.EthTargetIPOff:fwd.EthTargetIPOff+4], l3[fwd.IPHdrDaddrOff:fwd.IPHdrDaddrOff+4])
	} else {
		copy(raw[fwd.EthTargetIPOff:fwd.EthTargetIPOff+4], inPkt.OutL3Addr.As4()[:])
	}

	const bytes = 2*fwd.EthAlen + 2 + 2 + 2 + 1 + 1 + 2 + fwd.EthAlen + 4 + fwd.EthAlen + 4
	pkt.MoveTail(bytes)
	pkt.OutIfindex = e.intf.Ifindex
	return pkt
}

func (e *EthEncap) addEthHdr(pool packet.Pool, pkt *packet.Packet, mac fwd.EthMacRaw) bool {
	var ethertype [2]byte
	putBE16(ethertype[:], fwd.EthTypeIPv4)
	if !pkt.Prepend(ethertype[:]) {
		return false
	}
	if !pkt.Prepend(e.intf.L2Addr[:]) {
		return false
	}
	if !pkt.Prepend(mac.Bytes[:]) {
		return false
	}
	pkt.SetL2(fwd.EthAlen)
	return true
}

func (e *EthEncap) Dispatch(thread int, vectors *graph.Dispatch[msg.R2Msg]) {
	for {
		p, ok := vectors.Pop()
		if !ok {
			return
		}
		if mac, ok := e.mac[p.OutL3Addr]; ok {
			if e.addEthHdr(p.Pool(), p, mac) {
				vectors.Push(int(encapTX), p)
			} else {
				p.Free()
			}
			continue
		}
		if arp := e.doArpRequest(p.Pool(), p); arp != nil {
			vectors.Push(int(encapTX), arp)
		}
		p.Free()
	}
}

func (e *EthEncap) ControlMsg(thread int, message msg.R2Msg) {
	switch m := message.(type) {
	case msg.ModifyInterfaceMsg:
		e.intf = m.Intf
	case msg.EthMacAddMsg:
		e.MacAdd(m.IP, m.Mac)
	}
}
