package packet

import "net/netip"

// Packet owns a chain of particles and the forwarding metadata the graph
// nodes thread through it. Ownership is exclusive to whichever goroutine
// currently holds the handle; Free enqueues it on the owning pool's
// return queue rather than releasing it immediately, mirroring the
// Rust original's drop-to-return-queue semantics without relying on a GC
// finalizer.
type Packet struct {
	particle *Particle
	length   int

	l2, l2Len int
	l3, l3Len int

	pool Pool

	InIfindex  int
	OutIfindex int
	OutL3Addr  netip.Addr
}

func newPacket(pool Pool, particle *Particle) *Packet {
	return &Packet{particle: particle, pool: pool}
}

// Reinit is called by a pool implementation before handing a recycled
// packet back out.
func (pkt *Packet) Reinit(headroom int) {
	pkt.length = 0
	pkt.l2, pkt.l2Len = 0, 0
	pkt.l3, pkt.l3Len = 0, 0
	pkt.InIfindex = 0
	pkt.OutIfindex = 0
	pkt.OutL3Addr = netip.Addr{}
	pkt.particle.Reinit(headroom)
}

func (pkt *Packet) pushParticle(next *Particle) {
	pkt.particle.lastParticle().next = next
}

func (pkt *Packet) Len() int { return pkt.length }

// Pool returns the pool pkt was allocated from, so a node that needs to
// allocate a fresh packet in response to one it just popped (an ARP
// reply or request) doesn't need the pool threaded through separately.
func (pkt *Packet) Pool() Pool { return pkt.pool }

func (pkt *Packet) Headroom() int { return pkt.particle.head }

// Prepend copies bytes in front of the packet's current data, allocating
// new head particles from the pool as needed. Returns false if the pool
// runs out of particles mid-prepend.
func (pkt *Packet) Prepend(bytes []byte) bool {
	remaining := len(bytes)
	for remaining != 0 {
		n := pkt.particle.prepend(bytes[:remaining])
		if n != remaining {
			p, ok := pkt.pool.ParticleAlloc(pkt.pool.ParticleSize())
			if !ok {
				return false
			}
			prev := pkt.particle
			pkt.particle = p
			pkt.particle.next = prev
		}
		remaining -= n
	}
	pkt.length += len(bytes)
	return true
}

// Append copies bytes after the packet's current data, allocating new tail
// particles from the pool as needed.
func (pkt *Packet) Append(bytes []byte) bool {
	offset := 0
	for offset != len(bytes) {
		last := pkt.particle.lastParticle()
		n := last.append(bytes[offset:])
		offset += n
		if n == 0 {
			p, ok := pkt.pool.ParticleAlloc(0)
			if !ok {
				return false
			}
			pkt.pushParticle(p)
		}
	}
	pkt.length += len(bytes)
	return true
}

func (pkt *Packet) MoveTail(mv int) int {
	last := pkt.particle.lastParticle()
	if last.moveTail(mv) != mv {
		return 0
	}
	pkt.length += mv
	return mv
}

func (pkt *Packet) moveHead(mv int) int {
	if pkt.particle.moveHead(mv) != mv {
		return 0
	}
	pkt.length -= mv
	return mv
}

// PullL2 treats the next len bytes as the layer-2 header and advances past
// it.
func (pkt *Packet) PullL2(length int) int {
	l2 := pkt.particle.head
	if pkt.moveHead(length) != length {
		return 0
	}
	pkt.l2, pkt.l2Len = l2, length
	return length
}

// PushL2 prepends bytes as the layer-2 header.
func (pkt *Packet) PushL2(bytes []byte) bool {
	if !pkt.Prepend(bytes) {
		return false
	}
	pkt.l2, pkt.l2Len = pkt.particle.head, len(bytes)
	return true
}

// SetL2 records the layer-2 region without moving head.
func (pkt *Packet) SetL2(length int) bool {
	if pkt.particle.Len() < length {
		return false
	}
	pkt.l2, pkt.l2Len = pkt.particle.head, length
	return true
}

// GetL2 returns the layer-2 bytes, or (nil,0) if the recorded region
// doesn't lie entirely within the head particle.
func (pkt *Packet) GetL2() ([]byte, int) {
	if pkt.l2Len == 0 {
		return nil, 0
	}
	d := pkt.particle.dataRaw(pkt.l2)
	if len(d) < pkt.l2Len {
		return nil, 0
	}
	return d, pkt.l2Len
}

// PullL3 treats the next len bytes as the layer-3 header and advances past
// it.
func (pkt *Packet) PullL3(length int) int {
	l3 := pkt.particle.head
	if pkt.moveHead(length) != length {
		return 0
	}
	pkt.l3, pkt.l3Len = l3, length
	return length
}

// PushL3 prepends bytes as the layer-3 header.
func (pkt *Packet) PushL3(bytes []byte) bool {
	if !pkt.Prepend(bytes) {
		return false
	}
	pkt.l3, pkt.l3Len = pkt.particle.head, len(bytes)
	return true
}

// SetL3 records the layer-3 region without moving head.
func (pkt *Packet) SetL3(length int) bool {
	if pkt.particle.Len() < length {
		return false
	}
	pkt.l3, pkt.l3Len = pkt.particle.head, length
	return true
}

// GetL3 returns the layer-3 bytes, or (nil,0) if the recorded region
// doesn't lie entirely within the head particle.
func (pkt *Packet) GetL3() ([]byte, int) {
	if pkt.l3Len == 0 {
		return nil, 0
	}
	d := pkt.particle.dataRaw(pkt.l3)
	if len(d) < pkt.l3Len {
		return nil, 0
	}
	return d, pkt.l3Len
}

// Data returns the len bytes of live data starting offset bytes into the
// packet, walking the particle chain as needed.
func (pkt *Packet) Data(offset int) ([]byte, int, bool) {
	consumed := 0
	for p := pkt.particle; p != nil; p = p.next {
		if d, n, ok := p.data(offset - consumed); ok {
			return d, n, true
		}
		consumed += p.Len()
	}
	return nil, 0, false
}

// DataRaw returns the raw (not just in-use) bytes of the head particle.
func (pkt *Packet) DataRaw() []byte {
	return pkt.particle.dataRaw(0)
}

// Slices returns every particle's live data region in chain order.
func (pkt *Packet) Slices() [][]byte {
	var out [][]byte
	for p := pkt.particle; p != nil; p = p.next {
		if d, _, ok := p.data(0); ok {
			out = append(out, d)
		}
	}
	return out
}

// Free enqueues the packet handle onto its pool's return queue. After
// calling Free the caller must not touch pkt again.
func (pkt *Packet) Free() {
	pkt.pool.FreePkt(pkt)
}
