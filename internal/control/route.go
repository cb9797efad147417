package control

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/gopakumarce/r2/internal/fwd"
	"github.com/gopakumarce/r2/internal/msg"
)

// AddRoute installs prefix -> (nhop, ifindex) into the LPM table and
// waits for every forwarding thread to adopt it. Nhop of
// netip.IPv4Unspecified() marks a connected route: internal/ipv4's Fwd
// node substitutes the packet's own destination as the resolved
// nexthop for those, the same convention internal/ethernet's EthEncap
// uses for ARP resolution.
func (r *R2) AddRoute(prefix netip.Prefix, nhop netip.Addr, ifindex int) error {
	leaf := fwd.NewIPv4Leaf(fwd.NewAdjacency(nhop, ifindex))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := r.rcu.AddRoute(ctx, prefix, leaf, r.notifyTableGeneration)
	if err != nil {
		return fmt.Errorf("control: add route %s: %w", prefix, err)
	}
	return nil
}

// DelRoute removes prefix from the LPM table, waiting the same way
// AddRoute does.
func (r *R2) DelRoute(prefix netip.Prefix) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := r.rcu.DelRoute(ctx, prefix, r.notifyTableGeneration)
	if err != nil {
		return fmt.Errorf("control: del route %s: %w", prefix, err)
	}
	return nil
}

func (r *R2) notifyTableGeneration(generation uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcast(msg.IPv4TableAddMsg{Generation: generation})
}

// AddClass creates one HFSC class on the named interface's IfNode, on
// every forwarding thread that holds a copy -- only the one actually
// named in the interface's thread mask acts on it, every other thread's
// ControlMsg is a no-op because that thread does not own the interface.
// A class name that already exists is left unchanged.
func (r *R2) AddClass(ifname, name, parent string, qlimit int, isLeaf bool, curves msg.Curves) error {
	ifindex, ok := r.InterfaceIfindex(ifname)
	if !ok {
		return fmt.Errorf("control: unknown interface %s", ifname)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcast(msg.ClassAddMsg{
		Ifindex: ifindex,
		Name:    name,
		Parent:  parent,
		Qlimit:  qlimit,
		IsLeaf:  isLeaf,
		Curves:  curves,
	})
	return nil
}
