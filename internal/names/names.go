// Package names holds the well-known graph node names, both the fixed
// ones and the builders for per-interface dynamic names.
package names

import "strconv"

const (
	Drop         = "drop"
	IfMux        = "ifmux"
	EncapMux     = "encapmux"
	L3IPv4Parse  = "l3_ipv4_parse"
	L3IPv4Fwd    = "l3_ipv4_fwd"
	rxTxPrefix   = "rx_tx:"
	decapPrefix  = "l2_eth_decap:"
	encapPrefix  = "l2_eth_encap:"
)

func RxTx(ifindex int) string      { return rxTxPrefix + strconv.Itoa(ifindex) }
func L2EthDecap(ifindex int) string { return decapPrefix + strconv.Itoa(ifindex) }
func L2EthEncap(ifindex int) string { return encapPrefix + strconv.Itoa(ifindex) }
