// Package fwd holds the Ethernet/ARP/IPv4 wire constants and the small
// forwarding-result types that graph nodes pass to each other: an LPM hit
// resolves to an adjacency, an adjacency resolves to an interface.
package fwd

const (
	EthTypeARP  = 0x0806
	EthTypeIPv4 = 0x0800

	ArpHwTypeEth    = 0x0001
	ArpOpcodeReq    = 0x0001
	ArpOpcodeReply  = 0x0002

	EthAlen      = 6
	EtherHdrLen  = 14
	EtherMTU     = 1500

	IPHdrMinLen  = 20
	IPHdrDaddrOff = 16
)

var (
	BcastMac = [EthAlen]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	ZeroMac  = [EthAlen]byte{}
)

// EthOffsets are byte offsets into a flat ethernet+ARP frame buffer.
const (
	EthDaddrOff     = 0
	EthSaddrOff     = 6
	EthTypeOff      = 12
	EthHwtypeOff    = 14
	EthProtoOff     = 16
	EthHwSzOff      = 18
	EthProtoSzOff   = 19
	EthOpcodeOff    = 20
	EthSenderMacOff = 22
	EthSenderIPOff  = 28
	EthTargetMacOff = 32
	EthTargetIPOff  = 38
)
