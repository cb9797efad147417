// Package control implements the control thread: the single-writer
// context every configuration change (interfaces, routes, HFSC classes)
// passes through before being broadcast out to the forwarding threads'
// graphs. Nothing under here ever touches a forwarding thread's graph
// directly -- every mutation is translated into a msg.R2Msg and handed
// to the thread that owns the state being changed.
package control

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/gopakumarce/r2/internal/counters"
	"github.com/gopakumarce/r2/internal/efd"
	"github.com/gopakumarce/r2/internal/epoll"
	"github.com/gopakumarce/r2/internal/ethernet"
	"github.com/gopakumarce/r2/internal/fwd"
	"github.com/gopakumarce/r2/internal/graph"
	"github.com/gopakumarce/r2/internal/ipv4"
	"github.com/gopakumarce/r2/internal/logring"
	"github.com/gopakumarce/r2/internal/lpm"
	"github.com/gopakumarce/r2/internal/msg"
	"github.com/gopakumarce/r2/internal/names"
)

const (
	maxFds          = 4000
	defPkts         = 512
	defParts        = 2 * defPkts
	defParticleSize = 2048

	// MaxHeadroom is reserved ahead of every packet for the layers any
	// encap node in the graph might prepend.
	MaxHeadroom = 100
)

// perThread holds the pieces of per-forwarding-thread state the control
// thread needs to reach into: where to send it messages, how to wake it,
// and its own log ring.
type perThread struct {
	thread   int
	ctrl2fwd chan msg.R2Msg
	wakeup   *efd.Efd
	pollFds  []int
	logger   *logring.Logger
}

// R2 is the control-plane context shared across every configuration
// operation. It is built once, then Launch spins up one goroutine per
// forwarding thread; Run then blocks the caller until its context is done,
// draining whatever forwarding threads hand back upstream (today:
// resolved ARP entries).
type R2 struct {
	mu       sync.Mutex
	log      *zap.SugaredLogger
	cntrs    *counters.Pool
	rcu      *lpm.RCU
	fwd2ctrl chan msg.R2Msg
	nthreads int
	threads  []*perThread

	lastThread int
	ifByName   map[string]*fwd.Interface
	ifByIndex  map[int]string
}

// Option configures optional R2 fields at construction time.
type Option func(*R2)

// WithLog attaches a logger; without one, R2 logs nowhere.
func WithLog(log *zap.SugaredLogger) Option {
	return func(r *R2) { r.log = log }
}

// New builds the control context: one shared counter segment, an LPM
// RCU sized for nthreads workers, and one log ring + wakeup eventfd per
// worker thread.
func New(counterName, logName string, logEntrySize, logEntries, nthreads int, opts ...Option) (*R2, error) {
	cntrs, err := counters.New(counterName)
	if err != nil {
		return nil, fmt.Errorf("control: counters: %w", err)
	}
	rcu, err := lpm.NewRCU(nthreads)
	if err != nil {
		cntrs.Close()
		return nil, fmt.Errorf("control: lpm rcu: %w", err)
	}

	threads := make([]*perThread, nthreads)
	for t := 0; t < nthreads; t++ {
		logger, err := logring.New(fmt.Sprintf("%s:%d", logName, t), logEntrySize, logEntries)
		if err != nil {
			closeThreads(threads[:t])
			rcu.Close()
			cntrs.Close()
			return nil, fmt.Errorf("control: log ring thread %d: %w", t, err)
		}
		wakeup, err := efd.New(0)
		if err != nil {
			logger.Close()
			closeThreads(threads[:t])
			rcu.Close()
			cntrs.Close()
			return nil, fmt.Errorf("control: eventfd thread %d: %w", t, err)
		}
		threads[t] = &perThread{thread: t, wakeup: wakeup, logger: logger}
	}

	r := &R2{
		log:       zap.NewNop().Sugar(),
		cntrs:     cntrs,
		rcu:       rcu,
		fwd2ctrl:  make(chan msg.R2Msg, 256),
		nthreads:  nthreads,
		threads:   threads,
		ifByName:  make(map[string]*fwd.Interface),
		ifByIndex: make(map[int]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func closeThreads(threads []*perThread) {
	for _, t := range threads {
		if t == nil {
			continue
		}
		t.logger.Close()
		t.wakeup.Close()
	}
}

// Close releases every shared-memory segment and descriptor this
// context owns.
func (r *R2) Close() error {
	var result *multierror.Error
	for _, t := range r.threads {
		if err := t.logger.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		if err := t.wakeup.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	r.rcu.Close()
	if err := r.cntrs.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// broadcast sends message to every launched forwarding thread's control
// channel and wakes each of them; threads not yet launched (ctrl2fwd is
// still nil) just get their eventfd written, matching the original's
// "every thread gets woken regardless" behavior.
func (r *R2) broadcast(message msg.R2Msg) {
	for _, t := range r.threads {
		if t.ctrl2fwd != nil {
			t.ctrl2fwd <- message
		}
		t.wakeup.Write(1)
	}
}

// createNodes registers every graph node that doesn't depend on runtime
// configuration: interfaces are added dynamically via AddInterface, but
// the IPv4 parse/forward pair and the ethernet encap mux exist from the
// start.
func (r *R2) createNodes(g *graph.Graph[msg.R2Msg]) {
	parse, parseInit := ipv4.NewParse(r.cntrs)
	g.Add(r.cntrs, parse, parseInit)

	fwdNode, fwdInit := ipv4.NewFwd(r.rcu, r.cntrs)
	g.Add(r.cntrs, fwdNode, fwdInit)

	mux, muxInit := ethernet.NewEncapMux()
	g.Add(r.cntrs, mux, muxInit)

	g.Finalize()
}

type noopEpollClient struct{}

func (noopEpollClient) Event(fd int, events uint32) {}

// Launch builds the base graph and spawns one goroutine per forwarding
// thread, each running its own epoll-driven dispatch loop. It returns
// once every thread is running; use Run to block on the upstream
// fwd2ctrl pump afterwards.
func (r *R2) Launch() error {
	g := graph.New[msg.R2Msg](0, r.cntrs)
	r.createNodes(g)

	for t := 0; t < r.nthreads; t++ {
		tg := g
		if t != 0 {
			tg = g.Clone(t, r.cntrs)
		}
		if err := r.startThread(tg, t); err != nil {
			return fmt.Errorf("control: starting thread %d: %w", t, err)
		}
	}
	return nil
}

func (r *R2) startThread(g *graph.Graph[msg.R2Msg], thread int) error {
	pt := r.threads[thread]
	ctrl2fwd := make(chan msg.R2Msg, 256)

	ep, err := epoll.New(pt.wakeup, maxFds, -1, noopEpollClient{})
	if err != nil {
		return err
	}
	for _, fd := range pt.pollFds {
		if err := ep.Add(fd, epoll.In); err != nil {
			return err
		}
	}

	r.mu.Lock()
	pt.ctrl2fwd = ctrl2fwd
	r.mu.Unlock()

	name := fmt.Sprintf("r2-%d", thread)
	go func() {
		r.log.Debugw("forwarding thread started", "name", name)
		for {
			work := true
			for work {
				work, _ = g.Run()
				r.drainCtrl2fwd(thread, ep, ctrl2fwd, g)
			}
			ep.Wait()
		}
	}()
	return nil
}

// drainCtrl2fwd applies every pending control message without blocking,
// interleaving it with packet dispatch the same way the original does
// between calls to g.run().
func (r *R2) drainCtrl2fwd(thread int, ep *epoll.Epoll, ch <-chan msg.R2Msg, g *graph.Graph[msg.R2Msg]) {
	for {
		select {
		case m := <-ch:
			r.applyCtrl2fwd(thread, ep, m, g)
		default:
			return
		}
	}
}

// applyCtrl2fwd is this thread's half of delivering a broadcast message:
// node additions and epoll registrations are handled directly since they
// need access to the graph/epoll instance itself, everything else is
// addressed to the specific node(s) that care about it by name.
func (r *R2) applyCtrl2fwd(thread int, ep *epoll.Epoll, message msg.R2Msg, g *graph.Graph[msg.R2Msg]) {
	switch m := message.(type) {
	case msg.GnodeAddMsg:
		g.Add(r.cntrs, m.Client, m.Init)
		g.Finalize()
	case msg.EpollAddMsg:
		if m.Thread == thread && m.Fd >= 0 {
			ep.Add(m.Fd, epoll.In)
		}
	case msg.IPv4TableAddMsg:
		g.ControlMsg(names.L3IPv4Fwd, message)
	case msg.ModifyInterfaceMsg:
		ifindex := m.Intf.Ifindex
		g.ControlMsg(names.L2EthDecap(ifindex), message)
		g.ControlMsg(names.L2EthEncap(ifindex), message)
		g.ControlMsg(names.RxTx(ifindex), message)
	case msg.EthMacAddMsg:
		g.ControlMsg(names.L2EthDecap(m.Ifindex), message)
		g.ControlMsg(names.L2EthEncap(m.Ifindex), message)
	case msg.ClassAddMsg:
		g.ControlMsg(names.RxTx(m.Ifindex), message)
	}
}

// Run drains whatever forwarding threads hand back upstream -- today,
// only resolved ARP entries -- and re-broadcasts them to every thread so
// each interface's encap node learns the mapping its own decap node
// resolved. Blocks until ctx is done.
func (r *R2) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m := <-r.fwd2ctrl:
			switch m.(type) {
			case msg.EthMacAddMsg:
				r.mu.Lock()
				r.broadcast(m)
				r.mu.Unlock()
			default:
				r.log.Warnw("unexpected message on fwd2ctrl channel", "message", m)
			}
		}
	}
}
