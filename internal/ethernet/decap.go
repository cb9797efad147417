// Package ethernet implements the layer-2 boundary nodes: one EthDecap per
// receiving interface strips the ethernet header and answers ARP, one
// EthEncap per transmitting interface adds it back (resolving the
// destination mac via ARP if it isn't learned yet), and EncapMux fans a
// single "send this out" next-node slot out across every interface's
// EthEncap so upstream nodes don't need one next-node per interface.
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

type decapNext int

const (
	decapDrop decapNext = iota
	decapL3IPv4Parse
	decapTX
)

func decapNextNames(ifindex int) []string {
	return []string{names.Drop, names.L3IPv4Parse, names.RxTx(ifindex)}
}

type decapCnt struct {
	unknownEthtype *counters.Counter
	unknownArp     *counters.Counter
	notMyMac       *counters.Counter
	macSendFail    *counters.Counter
}

func newDecapCnt(pool *counters.Pool, node string) decapCnt {
	return decapCnt{
		unknownEthtype: counters.NewCounter(pool, node, counters.ClassError, "unknown_ethtype"),
		unknownArp:     counters.NewCounter(pool, node, counters.ClassError, "unknown_arp"),
		notMyMac:       counters.NewCounter(pool, node, counters.ClassError, "not_my_mac"),
		macSendFail:    counters.NewCounter(pool, node, counters.ClassError, "mac_send_fail"),
	}
}

// EthDecap removes an interface's layer-2 header before handing the
// packet to layer-3 parsing, answers ARP requests addressed to the
// interface, and learns source macs from both ARP requests and replies.
//
// mac learning lives here rather than in EthEncap (which is the side that
// actually needs the mac to send a packet) because decap is where an ARP
// reply/request arrives; every learned entry is broadcast as a control
// message so every thread's EthEncap picks it up too. In a router with
// few macs this is cheap; on an L2-switch-shaped topology with many hosts
// per interface this broadcast doesn't scale, and folding decap/encap
// into one node would remove the need for it -- left as-is since nothing
// in this tree runs at switch scale yet.
type EthDecap struct {
	intf   *fwd.Interface
	mac    map[netip.Addr]fwd.EthMacRaw
	sender chan<- msg.R2Msg
	cnt    decapCnt
}

// NewEthDecap builds the decap node for intf. sender is the channel every
// learned mac is broadcast on for the control thread to fan out.
func NewEthDecap(intf *fwd.Interface, cntrs *counters.Pool, sender chan<- msg.R2Msg) (*EthDecap, graph.Init) {
	name := names.L2EthDecap(intf.Ifindex)
	d := &EthDecap{
		intf:   intf,
		mac:    make(map[netip.Addr]fwd.EthMacRaw),
		sender: sender,
		cnt:    newDecapCnt(cntrs, name),
	}
	return d, graph.Init{Name: name, NextNames: decapNextNames(intf.Ifindex)}
}

func (d *EthDecap) Clone(cntrs *counters.Pool) graph.Client[msg.R2Msg] {
	name := names.L2EthDecap(d.intf.Ifindex)
	return &EthDecap{
		intf:   d.intf,
		mac:    make(map[netip.Addr]fwd.EthMacRaw),
		sender: d.sender,
		cnt:    newDecapCnt(cntrs, name),
	}
}

func (d *EthDecap) doArpReply(pool packet.Pool, srcIP netip.Addr, srcMac [fwd.EthAlen]byte) *packet.Packet {
	pkt, ok := pool.Pkt(0)
	if !ok {
		return nil
	}
	raw := pkt.DataRaw()

	copy(raw[fwd.EthDaddrOff:fwd.EthDaddrOff+fwd.EthAlen], srcMac[:])
	copy(raw[fwd.EthSaddrOff:fwd.EthSaddrOff+fwd.EthAlen], d.intf.L2Addr[:])
	putBE16(raw[fwd.EthTypeOff:], fwd.EthTypeARP)
	putBE16(raw[fwd.EthHwtypeOff:], fwd.ArpHwTypeEth)
	putBE16(raw[fwd.EthProtoOff:], fwd.EthTypeIPv4)
	raw[fwd.EthHwSzOff] = fwd.EthAlen
	raw[fwd.EthProtoSzOff] = 4
	putBE16(raw[fwd.EthOpcodeOff:], fwd.ArpOpcodeReply)
	copy(raw[fwd.EthSenderMacOff:fwd.EthSenderMacOff+fwd.EthAlen], d.intf.L2Addr[:])
	copy(raw[fwd.EthSenderIPOff:fwd.EthSenderIPOff+4], d.intf.IPv4Addr.As4()[:])
	copy(raw[fwd.EthTargetMacOff:fwd.EthTargetMacOff+fwd.EthAlen], srcMac[:])
	copy(raw[fwd.EthTargetIPOff:fwd.EthTargetIPOff+4], srcIP.As4()[:])

	const bytes = 2*fwd.EthAlen + 2 + 2 + 2 + 1 + 1 + 2 + fwd.EthAlen + 4 + fwd.EthAlen + 4
	pkt.MoveTail(bytes)
	pkt.OutIfindex = d.intf.Ifindex
	return pkt
}

func (d *EthDecap) processArp(pool packet.Pool, raw []byte) *packet.Packet {
	op := be16(raw[fwd.EthOpcodeOff:])
	proto := be16(raw[fwd.EthProtoOff:])
	switch {
	case op == fwd.ArpOpcodeReply && proto == fwd.EthTypeIPv4:
		d.processArpReply(raw)
		return nil
	case op == fwd.ArpOpcodeReq && proto == fwd.EthTypeIPv4:
		return d.processArpReq(pool, raw)
	default:
		d.cnt.unknownArp.Incr()
		return nil
	}
}

func (d *EthDecap) macLearn(ip netip.Addr, mac [fwd.EthAlen]byte) {
	if _, ok := d.mac[ip]; ok {
		return
	}
	raw := fwd.EthMacRaw{Bytes: mac}
	d.mac[ip] = raw
	ok := trySend(d.sender, msg.EthMacAddMsg{EthMacAddMsg: fwd.EthMacAddMsg{
		Ifindex: d.intf.Ifindex,
		IP:      ip,
		Mac:     mac,
	}})
	if !ok {
		d.cnt.macSendFail.Incr()
	}
}

func (d *EthDecap) processArpReq(pool packet.Pool, raw []byte) *packet.Packet {
	dstIP := netip.AddrFrom4([4]byte(raw[fwd.EthTargetIPOff : fwd.EthTargetIPOff+4]))
	if d.intf.IPv4Addr != dstIP {
		d.cnt.unknownArp.Incr()
		return nil
	}
	srcIP := netip.AddrFrom4([4]byte(raw[fwd.EthSenderIPOff : fwd.EthSenderIPOff+4]))
	var srcMac [fwd.EthAlen]byte
	copy(srcMac[:], raw[fwd.EthSenderMacOff:fwd.EthSenderMacOff+fwd.EthAlen])
	d.macLearn(srcIP, srcMac)
	return d.doArpReply(pool, srcIP, srcMac)
}

func (d *EthDecap) processArpReply(raw []byte) {
	dstIP := netip.AddrFrom4([4]byte(raw[fwd.EthTargetIPOff : fwd.EthTargetIPOff+4]))
	if d.intf.IPv4Addr != dstIP {
		d.cnt.unknownArp.Incr()
		return
	}
	var dstMac [fwd.EthAlen]byte
	copy(dstMac[:], raw[fwd.EthTargetMacOff:fwd.EthTargetMacOff+fwd.EthAlen])
	if dstMac != d.intf.L2Addr {
		d.cnt.unknownArp.Incr()
		return
	}
	srcIP := netip.AddrFrom4([4]byte(raw[fwd.EthSenderIPOff : fwd.EthSenderIPOff+4]))
	var srcMac [fwd.EthAlen]byte
	copy(srcMac[:], raw[fwd.EthSenderMacOff:fwd.EthSenderMacOff+fwd.EthAlen])
	d.macLearn(srcIP, srcMac)
}

// MacAdd installs a learned mac entry broadcast from some other thread's
// decap node, if this thread hasn't already learned it itself.
func (d *EthDecap) MacAdd(ip netip.Addr, mac [fwd.EthAlen]byte) {
	if _, ok := d.mac[ip]; !ok {
		d.mac[ip] = fwd.EthMacRaw{Bytes: mac}
	}
}

func (d *EthDecap) Dispatch(thread int, vectors *graph.Dispatch[msg.R2Msg]) {
	for {
		p, ok := vectors.Pop()
		if !ok {
			return
		}
		if p.PullL2(fwd.EtherHdrLen) != fwd.EtherHdrLen {
			p.Free()
			continue
		}
		raw, _ := p.GetL2()

		ethtype := be16(raw[fwd.EthTypeOff:])
		if ethtype == fwd.EthTypeARP {
			if arp := d.processArp(p.Pool(), raw); arp != nil {
				vectors.Push(int(decapTX), arp)
			}
			p.Free()
			continue
		}

		var daddr [fwd.EthAlen]byte
		copy(daddr[:], raw[fwd.EthDaddrOff:fwd.EthDaddrOff+fwd.EthAlen])
		if daddr != d.intf.L2Addr {
			d.cnt.notMyMac.Incr()
			p.Free()
			continue
		}

		if ethtype == fwd.EthTypeIPv4 {
			vectors.Push(int(decapL3IPv4Parse), p)
		} else {
			d.cnt.unknownEthtype.Incr()
			p.Free()
		}
	}
}

func (d *EthDecap) ControlMsg(thread int, message msg.R2Msg) {
	switch m := message.(type) {
	case msg.ModifyInterfaceMsg:
		d.intf = m.Intf
	case msg.EthMacAddMsg:
		d.MacAdd(m.IP, m.Mac)
	}
}

func be16(b []byte) uint16 { return uint16(b[0])<<8 | uint16(b[1]) }

func putBE16(b []byte, v uint16) {
	b[0] = byte(v >> 8)
	b[1] = byte(v)
}

func trySend(ch chan<- msg.R2Msg, m msg.R2Msg) bool {
	select {
	case ch <- m:
		return true
	default:
		return false
	}
}
