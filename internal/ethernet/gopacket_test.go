package ethernet

import (
	"net"
	"net/netip"
	"testing"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/stretchr/testify/require"

	"github.com/gopakumarce/r2/internal/fwd"
)

// ipv4FrameWithHeader builds a full ethernet+IPv4 frame the same way
// ipv4Frame does, but with a real (if minimal) IPv4 header instead of
// zeroed bytes, so a standards-compliant decoder can walk it.
func ipv4FrameWithHeader(dstMac, srcMac [fwd.EthAlen]byte, saddr, daddr netip.Addr, ttl byte) []byte {
	buf := make([]byte, fwd.EtherHdrLen+fwd.IPHdrMinLen)
	copy(buf[fwd.EthDaddrOff:], dstMac[:])
	copy(buf[fwd.EthSaddrOff:], srcMac[:])
	putBE16(buf[fwd.EthTypeOff:], fwd.EthTypeIPv4)

	ip := buf[fwd.EtherHdrLen:]
	ip[0] = 0x45 // version 4, IHL 5 words
	ip[1] = 0    // DSCP/ECN
	putBE16(ip[2:], uint16(fwd.IPHdrMinLen))
	putBE16(ip[4:], 0) // identification
	putBE16(ip[6:], 0) // flags/fragment offset
	ip[8] = ttl
	ip[9] = 17 // UDP, picked so gopacket doesn't try to walk a payload layer
	putBE16(ip[10:], 0)
	copy(ip[12:16], saddr.As4()[:])
	copy(ip[16:20], daddr.As4()[:])
	return buf
}

// Cross-checks the hand-rolled byte-offset frame construction used
// throughout these tests against gopacket's independent decoder, the same
// sanity check the field teams run tcpip parsers against real capture
// bytes with.
func TestHandBuiltFrameDecodesUnderGopacket(t *testing.T) {
	dst := [fwd.EthAlen]byte{0x02, 0, 0, 0, 0, 1}
	src := [fwd.EthAlen]byte{0x02, 0, 0, 0, 0, 2}
	saddr := netip.MustParseAddr("10.0.0.2")
	daddr := netip.MustParseAddr("10.0.0.1")

	frame := ipv4FrameWithHeader(dst, src, saddr, daddr, 64)

	pkt := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.DecodeOptions{
		Lazy:   true,
		NoCopy: true,
	})

	ethLayer := pkt.Layer(layers.LayerTypeEthernet)
	require.NotNil(t, ethLayer)
	eth, ok := ethLayer.(*layers.Ethernet)
	require.True(t, ok)
	require.Equal(t, net.HardwareAddr(dst[:]), eth.DstMAC)
	require.Equal(t, net.HardwareAddr(src[:]), eth.SrcMAC)
	require.Equal(t, layers.EthernetTypeIPv4, eth.EthernetType)

	ipLayer := pkt.Layer(layers.LayerTypeIPv4)
	require.NotNil(t, ipLayer)
	ip, ok := ipLayer.(*layers.IPv4)
	require.True(t, ok)
	require.Equal(t, saddr.AsSlice(), []byte(ip.SrcIP))
	require.Equal(t, daddr.AsSlice(), []byte(ip.DstIP))
	require.Equal(t, uint8(64), ip.TTL)
	require.Equal(t, layers.IPProtocolUDP, ip.Protocol)
}
