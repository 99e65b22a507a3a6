// Package workerpool fans a single ordered stream of packets out across a
// fixed set of worker goroutines sharing one dedup classifier instance,
// and merges their per-worker outputs back into position order. It
// adapts the channel-and-event driven capture pipeline pattern from
// driver.QueuedMultiInterfacePacketFilter into a plain context/errgroup
// pipeline, since there is no adapter or driver layer here to poll.
package workerpool

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/Enchufa2/nantools/internal/dedup"
	"github.com/Enchufa2/nantools/internal/dissect"
	"github.com/Enchufa2/nantools/internal/window"
)

// Result pairs an ingested packet's position with its classifier verdict.
type Result struct {
	Pos    uint64
	Record dedup.DupRecord
	Found  bool
}

// Pool runs n workers sharing one Classifier and its one underlying
// window, consuming per-worker dispatch channels and each producing an
// ordered-by-worker result stream that Multiplex merges back into
// ascending position order.
//
// Task dispatch is per-worker (not one shared channel) so that a node
// handed to worker i is always processed by classifier goroutine i —
// required for the window package's per-worker marker bookkeeping, which
// assumes a fixed worker-to-goroutine mapping.
type Pool struct {
	n          int
	classifier *dedup.Classifier
	ins        []chan *window.Node[*dissect.Packet]
	outs       []chan Result
	next       int
}

// New builds a Pool of n workers sharing classifier. queueDepth bounds
// each worker's dispatch and output channel capacity.
func New(n int, classifier *dedup.Classifier, queueDepth int) *Pool {
	if n < 1 {
		n = 1
	}
	p := &Pool{
		n:          n,
		classifier: classifier,
		ins:        make([]chan *window.Node[*dissect.Packet], n),
		outs:       make([]chan Result, n),
	}
	for i := range p.outs {
		p.ins[i] = make(chan *window.Node[*dissect.Packet], queueDepth)
		p.outs[i] = make(chan Result, queueDepth)
	}
	return p
}

// Run starts the worker goroutines under an errgroup bound to ctx; it
// returns once ctx is canceled or every dispatch channel is closed and
// drained. Every worker calls Classify against the same shared
// Classifier, each under its own worker id — cross-worker visibility of
// the window is handled by the window package's per-node markers, not by
// this pool.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.n; i++ {
		i := i
		g.Go(func() error {
			defer close(p.outs[i])
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case n, ok := <-p.ins[i]:
					if !ok {
						return nil
					}
					pkt := n.Get()
					rec, found := p.classifier.Classify(i, n)
					select {
					case p.outs[i] <- Result{Pos: pkt.Pos, Record: rec, Found: found}:
					case <-ctx.Done():
						return ctx.Err()
					}
				}
			}
		})
	}
	return g.Wait()
}

// Dispatch appends pkt to the shared window — synchronously, on the
// ingest goroutine's call stack, so the window's active-list order always
// matches ingest (pos) order regardless of how worker goroutines are
// later scheduled — then enqueues the resulting node onto the next
// worker's queue, round-robin. Callers must invoke Dispatch only from a
// single goroutine; concurrent callers would race the round-robin
// counter and, worse, could append out of pos order.
func (p *Pool) Dispatch(pkt *dissect.Packet) int {
	n := p.classifier.Append(pkt)
	worker := p.next
	p.next = (p.next + 1) % p.n
	p.ins[worker] <- n
	return worker
}

// CloseInput signals workers that no further tasks will be dispatched.
func (p *Pool) CloseInput() {
	for _, ch := range p.ins {
		close(ch)
	}
}

// Outputs exposes the per-worker result channels for Multiplex.
func (p *Pool) Outputs() []chan Result { return p.outs }

// Multiplex merges n per-worker result channels, each internally ordered
// by ascending position (round-robin dispatch preserves that per
// worker), into one globally position-ordered stream. It keeps one
// lookahead record per worker and always emits the smallest available
// position, blocking only on the specific worker channel it needs next.
func Multiplex(outs []chan Result) <-chan Result {
	merged := make(chan Result, len(outs))
	go func() {
		defer close(merged)
		lookahead := make(map[int]Result, len(outs))
		open := make([]bool, len(outs))
		for i, ch := range outs {
			if r, ok := <-ch; ok {
				lookahead[i] = r
				open[i] = true
			}
		}
		for {
			best := -1
			for i, isOpen := range open {
				if !isOpen {
					continue
				}
				if best == -1 || lookahead[i].Pos < lookahead[best].Pos {
					best = i
				}
			}
			if best == -1 {
				return
			}
			merged <- lookahead[best]
			if r, ok := <-outs[best]; ok {
				lookahead[best] = r
			} else {
				open[best] = false
				delete(lookahead, best)
			}
		}
	}()
	return merged
}
