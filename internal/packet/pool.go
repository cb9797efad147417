package packet

import "github.com/gopakumarce/r2/internal/counters"

// Pool is implemented by every packet/particle allocator. All addresses it
// hands out must stay valid across every worker goroutine's lifetime — the
// pool itself is owned by exactly one goroutine, which allocates; any
// goroutine may return a handle via Free/FreePart.
type Pool interface {
	// Pkt allocates a packet with a single particle reinitialized to the
	// given headroom.
	Pkt(headroom int) (*Packet, bool)
	// ParticleAlloc allocates a free-standing particle.
	ParticleAlloc(headroom int) (*Particle, bool)
	// FreePkt returns a packet (whose single owned particle travels with
	// it) onto the pool's return queue.
	FreePkt(pkt *Packet)
	// FreePart returns a particle directly to the particle free list; used
	// internally while draining a multi-particle chain.
	FreePart(part *Particle)
	// ParticleSize is the fixed capacity of every particle's raw buffer.
	ParticleSize() int
	// DrainReturns walks the return queue, recycling every linked
	// particle and the packet itself. Called once at the start of every
	// graph tick by the owning thread.
	DrainReturns()
	// Free releases the entire pool.
	Free()
}

// HeapPool is the default from-heap implementation: Packet, Particle and
// their raw buffers are ordinary Go allocations, and the free lists are
// bounded channels playing the role of the lockfree MPSC queues the
// original uses.
type HeapPool struct {
	allocFail   *counters.Counter
	pkts        chan *Packet
	particles   chan *Particle
	returns     chan *Packet
	particleSz  int
}

// NewHeapPool builds a pool of numPkts packets and numParts particles
// (numParts must be >= numPkts: every packet keeps one particle of its
// own, the rest seed the free particle list).
func NewHeapPool(cntrs *counters.Pool, numPkts, numParts, particleSz int) *HeapPool {
	if numParts < numPkts {
		panic("packet pool: num_parts must be >= num_pkts")
	}
	partsLeft := numParts - numPkts

	pool := &HeapPool{
		allocFail:  counters.NewCounter(cntrs, "PKTS_HEAP", counters.ClassError, "PktAllocFail"),
		pkts:       make(chan *Packet, numPkts),
		particles:  make(chan *Particle, partsLeft),
		returns:    make(chan *Packet, numPkts),
		particleSz: particleSz,
	}

	for i := 0; i < numPkts; i++ {
		particle := NewParticle(make([]byte, particleSz))
		pool.pkts <- newPacket(pool, particle)
	}
	for i := 0; i < partsLeft; i++ {
		pool.particles <- NewParticle(make([]byte, particleSz))
	}

	return pool
}

func (p *HeapPool) Pkt(headroom int) (*Packet, bool) {
	select {
	case pkt := <-p.pkts:
		pkt.Reinit(headroom)
		return pkt, true
	default:
		p.allocFail.Incr()
		return nil, false
	}
}

func (p *HeapPool) ParticleAlloc(headroom int) (*Particle, bool) {
	select {
	case part := <-p.particles:
		part.Reinit(headroom)
		return part, true
	default:
		p.allocFail.Incr()
		return nil, false
	}
}

func (p *HeapPool) FreePkt(pkt *Packet) {
	select {
	case p.returns <- pkt:
	default:
		// Return queue full: the packet is dropped and never comes back
		// to the pool. This can only happen if DrainReturns isn't being
		// called every tick as required.
	}
}

func (p *HeapPool) FreePart(part *Particle) {
	part.next = nil
	select {
	case p.particles <- part:
	default:
	}
}

func (p *HeapPool) ParticleSize() int { return p.particleSz }

// DrainReturns empties the return queue: for every packet, every particle
// after the head goes back to the particle free list, then the packet
// (with its own head particle still attached) goes back to the packet
// free list.
func (p *HeapPool) DrainReturns() {
	for {
		select {
		case pkt := <-p.returns:
			part := pkt.particle.next
			pkt.particle.next = nil
			for part != nil {
				next := part.next
				part.next = nil
				p.FreePart(part)
				part = next
			}
			select {
			case p.pkts <- pkt:
			default:
			}
		default:
			return
		}
	}
}

func (p *HeapPool) Free() {}
