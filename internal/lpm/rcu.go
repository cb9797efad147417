package lpm

import (
	"context"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gopakumarce/r2/internal/fwd"
)

// RCU is the double-buffered table the control thread mutates and every
// worker thread reads from. Rust's original relies on Arc::get_mut
// spinning until a table's strong count drops to one, which only works
// because Arc exposes a live reference count; Go has no equivalent, so
// quiescence is tracked explicitly instead: every worker stamps its own
// generation counter after it adopts a broadcasted table swap, and the
// control thread polls until every worker's stamp has caught up.
type RCU struct {
	mu        sync.Mutex
	t1, t2    *Table
	which     atomic.Int32 // index (0 or 1) of the currently-live table
	nextGen   atomic.Uint64
	workerGen []*atomic.Uint64
}

// NewRCU builds an RCU pair with numWorkers independent generation
// counters, one per worker thread.
func NewRCU(numWorkers int) (*RCU, error) {
	t1, err := NewTable()
	if err != nil {
		return nil, err
	}
	t2, err := NewTable()
	if err != nil {
		t1.Close()
		return nil, err
	}
	r := &RCU{t1: t1, t2: t2, workerGen: make([]*atomic.Uint64, numWorkers)}
	for i := range r.workerGen {
		r.workerGen[i] = &atomic.Uint64{}
	}
	return r, nil
}

func (r *RCU) Close() {
	r.t1.Close()
	r.t2.Close()
}

// Current returns the presently-live table, for worker lookup use.
func (r *RCU) Current() *Table {
	if r.which.Load() == 0 {
		return r.t1
	}
	return r.t2
}

// Ack is called by a worker after it has finished processing an
// IPv4TableAddMsg for generation gen: it is the worker's declaration that
// it is no longer touching the table that generation superseded.
func (r *RCU) Ack(worker int, gen uint64) {
	r.workerGen[worker].Store(gen)
}

// live and stale return the currently-active and currently-inactive
// table, without synchronizing with Current's atomic load -- callers
// hold r.mu, which already serializes against other control-thread
// mutators (worker reads of Current are lock-free by design).
func (r *RCU) live() (*Table, *Table) {
	if r.which.Load() == 0 {
		return r.t1, r.t2
	}
	return r.t2, r.t1
}

// AddOrDelRoute applies mutate to both table generations, converging
// them: it mutates the currently-inactive table first, flips which table
// is live, broadcasts the swap (via notify) so workers adopt the new
// table, waits for every worker to acknowledge the new generation, and
// only then applies the same mutation to the now-inactive (formerly
// live) table so both copies agree again at rest.
//
// notify is handed the new table's generation number; the caller is
// expected to broadcast an IPv4TableAddMsg carrying it to every worker.
func (r *RCU) AddOrDelRoute(ctx context.Context, mutate func(t *Table) bool, notify func(generation uint64)) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, stale := r.live()
	ok := mutate(stale)

	gen := r.nextGen.Add(1)
	newWhich := int32(1) - r.which.Load()
	r.which.Store(newWhich)
	notify(gen)

	if err := r.awaitQuiescence(ctx, gen); err != nil {
		return ok, err
	}

	// stale is now the old live table; converge it too.
	_, nowStale := r.live()
	mutate(nowStale)
	return ok, nil
}

func (r *RCU) awaitQuiescence(ctx context.Context, gen uint64) error {
	op := func() (struct{}, error) {
		for _, g := range r.workerGen {
			if g.Load() < gen {
				return struct{}{}, errNotQuiescentYet
			}
		}
		return struct{}{}, nil
	}
	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(5*time.Second),
	)
	return err
}

var errNotQuiescentYet = quiescenceError{}

type quiescenceError struct{}

func (quiescenceError) Error() string { return "lpm: worker generations have not converged yet" }

// AddRoute installs prefix -> target on both table generations.
func (r *RCU) AddRoute(ctx context.Context, prefix netip.Prefix, value *fwd.IPv4Leaf, notify func(uint64)) (bool, error) {
	return r.AddOrDelRoute(ctx, func(t *Table) bool { return t.Add(prefix, value) }, notify)
}

// DelRoute removes prefix from both table generations.
func (r *RCU) DelRoute(ctx context.Context, prefix netip.Prefix, notify func(uint64)) (bool, error) {
	return r.AddOrDelRoute(ctx, func(t *Table) bool { return t.Del(prefix) }, notify)
}
