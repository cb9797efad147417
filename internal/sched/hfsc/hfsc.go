// Package hfsc implements a Hierarchical Fair Service Curve scheduler:
// a tree of classes, each carrying a linkshare curve and an optional
// realtime curve, that together decide dequeue order across a set of
// queues sharing one egress link.
package hfsc

import (
	"errors"
	"time"

	"github.com/gopakumarce/r2/internal/msg"
	"github.com/gopakumarce/r2/internal/packet"
)

var (
	ErrClassExists    = errors.New("hfsc: class already exists")
	ErrParentNotFound = errors.New("hfsc: parent not found")
	ErrInvalidParent  = errors.New("hfsc: invalid parent")
)

func defaultTimeNs() uint64 { return uint64(time.Now().UnixNano()) }

// Hfsc is one egress link's scheduler. Class index 0 is a permanently
// unused dummy (so 0 can double as a "no such class" sentinel); index
// root is the tree root, whose linkshare and upperlimit curves both have
// slope equal to the link's bandwidth.
type Hfsc struct {
	root       int
	freeIndex  []int
	eligible   keyMap
	classes    []*class
	classNames map[string]int
	getTimeNs  func() uint64
	pktsQueued int
}

// New builds a scheduler for a link of the given bandwidth, in bits per
// second.
func New(bandwidth uint64) *Hfsc {
	curves := msg.Curves{
		RSc: nil,
		USc: &msg.Sc{M1: 0, D: 0, M2: bandwidth},
		FSc: msg.Sc{M1: 0, D: 0, M2: bandwidth},
	}

	classes := []*class{dummyClass()}
	names := map[string]int{"dummy": 0}

	root := len(classes)
	classes = append(classes, newClass(0, root, 0, false, 0, curves))
	names["root"] = root

	return &Hfsc{
		root:       root,
		classNames: names,
		classes:    classes,
		getTimeNs:  defaultTimeNs,
	}
}

func (h *Hfsc) PktsQueued() int { return h.pktsQueued }

// HasClasses reports whether the root has an active child, that is,
// whether some class below it has packets queued. Classes that exist
// but hold no packets do not count.
func (h *Hfsc) HasClasses() bool { return h.classes[h.root].children.len() != 0 }

// CreateClass adds a class under parentName, reusing a freed index slot
// if one is available.
func (h *Hfsc) CreateClass(name, parentName string, qlimit int, isLeaf bool, curves msg.Curves) error {
	if _, exists := h.classNames[name]; exists {
		return ErrClassExists
	}
	parent, ok := h.classNames[parentName]
	if !ok {
		return ErrParentNotFound
	}
	if parent >= len(h.classes) || !h.classes[parent].inUse {
		return ErrInvalidParent
	}

	pvoff := h.classes[parent].pvoff
	if len(h.freeIndex) > 0 {
		free := h.freeIndex[0]
		h.freeIndex = h.freeIndex[1:]
		h.classes[free] = newClass(parent, free, qlimit, isLeaf, pvoff, curves)
		h.classNames[name] = free
		return nil
	}

	free := len(h.classes)
	h.classes = append(h.classes, newClass(parent, free, qlimit, isLeaf, pvoff, curves))
	h.classNames[name] = free
	return nil
}

func (h *Hfsc) ClassIndex(name string) (int, bool) {
	idx, ok := h.classNames[name]
	return idx, ok
}

// DestroyClass tears down the named class index, recursively destroying
// any children first so no child is ever left referencing a freed
// parent -- the resolution to the open question of how pvoff should
// propagate when a class with active children is destroyed: children
// are unwound depth-first, each returning its own reserved share to its
// parent via the normal updateV passivation path, before the parent
// itself is converted to a free slot.
func (h *Hfsc) DestroyClass(index int) int {
	if index >= len(h.classes) || !h.classes[index].inUse {
		return 0
	}
	for idx, child := range h.classes {
		if idx != index && child.inUse && child.parent == index {
			h.DestroyClass(idx)
		}
	}

	c := h.classes[index]
	k := key{c.eligible, c.index}
	isEmpty := c.packets.len() == 0
	isRealtime := c.rIsc != nil
	if !isEmpty {
		h.updateV(index, 0, 0, true)
		if isRealtime {
			h.eligible.remove(k)
		}
	}
	h.classes[index] = dummyClass()
	h.freeIndex = append(h.freeIndex, index)
	return index
}

// getMinD finds the eligible class with the earliest deadline, among
// those already eligible at time.
func (h *Hfsc) getMinD(time uint64) int {
	deadline := ^uint64(0)
	classIdx := 0
	h.eligible.forEachUntil(
		func(k key, v int) bool { return h.classes[v].eligible > time },
		func(k key, v int) {
			c := h.classes[v]
			if c.deadline < deadline {
				classIdx = v
				deadline = c.deadline
			}
		},
	)
	return classIdx
}

// getMinV descends to the linkshare-eligible leaf with the smallest
// virtual time under parent, tracking vmin along the way.
func (h *Hfsc) getMinV(parent int, time uint64) int {
	p := h.classes[parent]
	_, ch, ok := p.children.first()
	if !ok {
		return 0
	}

	vtime := h.classes[ch].vtime
	leaf := h.classes[ch].leaf
	if vtime > p.vmin {
		p.vmin = vtime
	}
	r := h.getMinV(ch, time)
	if r == 0 {
		if leaf {
			return ch
		}
		return 0
	}
	return r
}

// updateV propagates a dequeue (or a forced passivation) up the tree,
// updating each ancestor's virtual-time bookkeeping.
func (h *Hfsc) updateV(classIdx int, length int, time uint64, passive bool) {
	c := h.classes[classIdx]
	pindex := c.parent
	if pindex == 0 {
		return
	}
	c.fBytes += uint64(length)
	if c.nactive == 0 {
		h.updateV(pindex, length, time, passive)
		return
	}

	if passive {
		c.nactive--
	}
	goPassive := passive && c.nactive == 0
	k := key{c.vtime, c.index}

	parent := h.classes[pindex]
	pvmin := parent.vmin
	parent.children.remove(k)

	if goPassive {
		if k.time > parent.vmax {
			parent.vmax = k.time
		}
	} else {
		c.vtime = rtscY2X(c.fRun, c.fBytes) - c.voff + c.vadj
		if c.vtime < pvmin {
			c.vadj += pvmin - c.vtime
			c.vtime = pvmin
		}
		parent.children.insert(key{c.vtime, classIdx}, classIdx)
	}
	h.updateV(pindex, length, time, goPassive)
}

// initV activates a class (and, transitively, any ancestor that was
// previously idle), seeding its virtual time from its siblings.
func (h *Hfsc) initV(classIdx int, length int, active bool) {
	c := h.classes[classIdx]
	pindex := c.parent
	if pindex == 0 {
		return
	}
	goActive := active && c.nactive == 0
	if active {
		c.nactive++
	}
	if !goActive {
		return
	}

	parent := h.classes[pindex]
	pvmin := parent.vmin
	pvperiod := parent.vperiod
	pvoff := parent.voff
	pnactive := parent.nactive

	maxChild := 0
	var maxVtime uint64
	if _, v, ok := parent.children.last(); ok {
		maxChild = v
		maxVtime = h.classes[maxChild].vtime
	}

	if maxChild != 0 {
		vt := maxVtime
		if pvmin != 0 {
			vt = (pvmin + vt) / 2
		}
		if pvperiod != c.pvperiod || vt > c.vtime {
			c.vtime = vt
		}
	} else {
		parent.voff += parent.vmax
		pvoff = parent.voff
		parent.vmax = 0
		parent.vmin = 0
		c.vtime = 0
	}

	c.voff = pvoff - c.pvoff
	vt := c.vtime + c.voff
	rtscMin(&c.fRun, c.fIsc, vt, c.fBytes)
	if c.fRun.x == vt {
		c.fRun.x -= c.voff
		c.voff = 0
	}
	c.vadj = 0
	c.vperiod++
	c.pvperiod = pvperiod
	if pnactive == 0 {
		c.pvperiod++
	}
	parent.children.insert(key{c.vtime, c.index}, classIdx)
	h.initV(pindex, length, goActive)
}

// Enqueue queues pkt on classIdx, dropping it and counting a drop if the
// class is at its qlimit (0 meaning unbounded).
func (h *Hfsc) Enqueue(classIdx int, pkt *packet.Packet) bool {
	if classIdx >= len(h.classes) || !h.classes[classIdx].inUse {
		return false
	}
	c := h.classes[classIdx]
	qlen := c.packets.len()
	if c.qlimit != 0 && qlen >= c.qlimit {
		c.qdrops++
		return false
	}

	if qlen == 0 {
		h.initV(classIdx, pkt.Len(), true)
		if c.rIsc != nil {
			c.initEd(pkt.Len(), h.getTimeNs())
			h.eligible.insert(key{c.eligible, c.index}, classIdx)
		}
	}
	c.packets.pushBack(pkt)
	h.pktsQueued++
	return true
}

// Dequeue picks the next packet to send: a realtime-eligible class with
// the earliest deadline takes priority; otherwise the linkshare tree's
// minimum-vtime leaf is chosen.
func (h *Hfsc) Dequeue() (*packet.Packet, bool) {
	now := h.getTimeNs()

	if childIdx := h.getMinD(now); childIdx != 0 {
		c := h.classes[childIdx]
		pkt, ok := c.packets.popFront()
		if !ok {
			return nil, false
		}
		c.rBytes += uint64(pkt.Len())
		qEmpty := c.packets.len() == 0
		if !qEmpty {
			if c.rIsc != nil {
				next, _ := c.packets.front()
				h.eligible.remove(key{c.eligible, c.index})
				c.updateEd(next.Len())
				h.eligible.insert(key{c.eligible, c.index}, childIdx)
			}
		} else if c.rIsc != nil {
			h.eligible.remove(key{c.eligible, c.index})
		}
		h.updateV(childIdx, pkt.Len(), now, qEmpty)
		h.pktsQueued--
		return pkt, true
	}

	childIdx := h.getMinV(h.root, now)
	if childIdx == 0 {
		return nil, false
	}
	c := h.classes[childIdx]
	pkt, ok := c.packets.popFront()
	if !ok {
		return nil, false
	}
	qEmpty := c.packets.len() == 0
	if !qEmpty {
		if c.rIsc != nil {
			next, _ := c.packets.front()
			c.updateD(next.Len())
		}
	} else if c.rIsc != nil {
		h.eligible.remove(key{c.eligible, c.index})
	}
	h.updateV(childIdx, pkt.Len(), now, qEmpty)
	h.pktsQueued--
	return pkt, true
}
