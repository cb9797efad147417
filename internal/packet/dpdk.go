package packet

// This file documents, rather than implements, the mbuf-backed pool
// variant. A DPDK driver is an external collaborator; only its contract
// with Pool matters here.
//
// A DPDK-backed Pool steals two pointer-sized slots from the start of each
// mbuf's headroom to store (mbuf pointer, particle pointer). Freeing a
// particle recovers both pointers from that reserved region and returns
// the mbuf to DPDK's own pool; Rx constructs a Particle directly over an
// mbuf's data area without copying. This is the only place in the system
// where pointer arithmetic over a foreign allocator's buffer would be
// permitted, and it lives entirely behind the Pool interface — no other
// package needs to know particles can be mbuf-backed.
