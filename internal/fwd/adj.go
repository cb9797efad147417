package fwd

import "net/netip"

// Adjacency is the next hop a route resolved to: a gateway address plus
// the egress interface that should encap towards it.
type Adjacency struct {
	Nhop    netip.Addr
	Ifindex int
}

func NewAdjacency(nhop netip.Addr, ifindex int) *Adjacency {
	return &Adjacency{Nhop: nhop, Ifindex: ifindex}
}
