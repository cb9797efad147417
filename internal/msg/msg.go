// Package msg defines the control-plane message variants broadcast from
// the control thread to every worker thread's graph instance.
package msg

import (
	"github.com/gopakumarce/r2/internal/fwd"
	"github.com/gopakumarce/r2/internal/graph"
)

// R2Msg is the sum type every worker's control inbox carries. Implemented
// by the *Msg types below.
type R2Msg interface {
	isR2Msg()
}

// GnodeAddMsg installs a new client under a name in every worker's
// graph.
type GnodeAddMsg struct {
	Client graph.Client[R2Msg]
	Init   graph.Init
}

func (GnodeAddMsg) isR2Msg() {}

// EpollAddMsg registers fd with a worker's epoll set. Thread selects
// which worker owns the registration; a message with Fd < 0 is ignored.
type EpollAddMsg struct {
	Fd     int
	Thread int
}

func (EpollAddMsg) isR2Msg() {}

// IPv4TableAddMsg tells a worker a new LPM table generation is ready to
// adopt; Generation is the epoch the worker must stamp into its own
// counter once it has switched over, so the control thread's quiescence
// poll can observe every worker has moved on.
type IPv4TableAddMsg struct {
	Generation uint64
}

func (IPv4TableAddMsg) isR2Msg() {}

// ModifyInterfaceMsg replaces a worker's cached Interface snapshot.
type ModifyInterfaceMsg struct {
	fwd.ModifyInterfaceMsg
}

func (ModifyInterfaceMsg) isR2Msg() {}

// EthMacAddMsg installs one resolved ARP entry; an entry already held
// for the same IP is kept.
type EthMacAddMsg struct {
	fwd.EthMacAddMsg
}

func (EthMacAddMsg) isR2Msg() {}

// ClassAddMsg creates one HFSC class; a class name that already exists
// is left unchanged.
type ClassAddMsg struct {
	Ifindex int
	Name    string
	Parent  string
	Qlimit  int
	IsLeaf  bool
	Curves  Curves
}

func (ClassAddMsg) isR2Msg() {}

// Sc is one segment of a service curve: slope m1 until elapsed time d,
// then slope m2.
type Sc struct {
	M1 uint64
	D  uint64
	M2 uint64
}

// Curves bundles the three service curves an HFSC class can carry: an
// optional realtime curve, an optional upperlimit curve, and the
// mandatory linkshare (fair share) curve.
type Curves struct {
	RSc *Sc
	USc *Sc
	FSc Sc
}
