package fwd

import (
	"net/netip"
	"strconv"
	"strings"
)

const MaxInterfaces = 4 * 1024

// Interface is an egress target: a named, numbered interface with its
// current L3 address, MTU, HFSC bandwidth and the headroom its driver
// needs reserved ahead of every packet it transmits.
type Interface struct {
	Ifname     string
	Ifindex    int
	BandwidthBps uint64
	MTU        int
	IPv4Addr   netip.Addr
	MaskLen    int
	L2Addr     [EthAlen]byte
	Headroom   int
}

func NewInterface(ifname string, ifindex int, l2Addr [EthAlen]byte, headroom int) *Interface {
	return &Interface{
		Ifname:       ifname,
		Ifindex:      ifindex,
		BandwidthBps: 10 * 1024 * 1024 * 8,
		MTU:          EtherMTU,
		L2Addr:       l2Addr,
		Headroom:     headroom,
	}
}

func (i *Interface) V4Addr() (netip.Addr, int) { return i.IPv4Addr, i.MaskLen }

func (i *Interface) SetV4Addr(addr netip.Addr, maskLen int) {
	i.IPv4Addr = addr
	i.MaskLen = maskLen
}

// ModifyInterfaceMsg broadcasts a replacement Interface snapshot to every
// worker thread.
type ModifyInterfaceMsg struct {
	Intf *Interface
}

// EthMacRaw is a resolved ARP entry's hardware address, stored by value
// in each node's IP -> MAC table.
type EthMacRaw struct {
	Bytes [EthAlen]byte
}

// EthMacAddMsg is the control message that installs one ARP entry on
// every worker thread; an entry already held for the same IP is kept.
type EthMacAddMsg struct {
	Ifindex int
	IP      netip.Addr
	Mac     [EthAlen]byte
}

// StrToMac parses a colon-separated hex MAC string ("aa:bb:cc:dd:ee:ff").
func StrToMac(mac string) ([EthAlen]byte, bool) {
	var out [EthAlen]byte
	parts := strings.Split(mac, ":")
	if len(parts) != EthAlen {
		return out, false
	}
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return out, false
		}
		out[i] = byte(v)
	}
	return out, true
}

// IPMaskDecode parses a "1.2.3.4/24" CIDR string into its address and
// mask length.
func IPMaskDecode(ipAndMask string) (netip.Addr, int, bool) {
	prefix, err := netip.ParsePrefix(ipAndMask)
	if err != nil {
		return netip.Addr{}, 0, false
	}
	return prefix.Addr(), prefix.Bits(), true
}
