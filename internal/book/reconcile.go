package book

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"coinbase-lob/pkg/types"
)

const (
	reconcileBackoffBase = time.Second
	reconcileBackoffMax  = 30 * time.Second
)

// SnapshotFetcher fetches a level-3 book snapshot. Implemented by the
// exchange REST client; tests substitute fakes.
type SnapshotFetcher interface {
	BookSnapshot(ctx context.Context, productID string) (*types.BookSnapshot, error)
}

// SnapshotResult is the completion of an asynchronous snapshot fetch,
// delivered back onto the core goroutine's queue. Generation ties the
// response to the reconciliation attempt that requested it; stale
// generations are discarded.
type SnapshotResult struct {
	ProductID  string
	Generation uint64
	Snapshot   *types.BookSnapshot
	Err        error
}

// Reconciler drives one book's Fresh → AwaitingSnapshot → Live protocol:
// it requests a snapshot on the first stream event, buffers events while
// the fetch is in flight, splices snapshot and stream on completion, and
// restarts (bounded) when draining detects a gap.
//
// All methods run on the goroutine that owns the book; only the spawned
// fetch goroutine runs elsewhere, and it communicates exclusively through
// the results channel.
type Reconciler struct {
	book    *Book
	fetch   SnapshotFetcher
	results chan<- SnapshotResult

	timeout     time.Duration
	maxAttempts int
	bufferCap   int

	buffer     []types.Event
	generation uint64
	attempts   int

	logger *slog.Logger
}

// NewReconciler wires a reconciler to its book. Fetch completions are
// posted to results; the owner must route them back via OnSnapshot.
func NewReconciler(b *Book, fetch SnapshotFetcher, results chan<- SnapshotResult, timeout time.Duration, maxAttempts, bufferCap int, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		book:        b,
		fetch:       fetch,
		results:     results,
		timeout:     timeout,
		maxAttempts: maxAttempts,
		bufferCap:   bufferCap,
		logger:      logger.With("component", "reconciler", "product", b.ProductID()),
	}
}

// Generation returns the current reconciliation generation.
func (r *Reconciler) Generation() uint64 { return r.generation }

// Buffered returns how many stream events are waiting for the snapshot.
func (r *Reconciler) Buffered() int { return len(r.buffer) }

// OnEvent feeds one decoded stream event through the protocol.
func (r *Reconciler) OnEvent(ctx context.Context, ev types.Event) {
	switch r.book.Mode() {
	case ModeFresh:
		r.begin(ctx)
		r.bufferEvent(ev)
	case ModeAwaitingSnapshot:
		r.bufferEvent(ev)
	case ModeLive:
		err := r.book.Apply(ev)
		var gap *GapError
		if errors.As(err, &gap) {
			r.logger.Error("sequence gap on live book",
				"expected", gap.Expected,
				"got", gap.Got,
			)
			r.restart(ctx)
		}
	case ModeInvalid:
		// A restart is already underway; the event predates the snapshot
		// we are about to fetch.
	case ModeFailed:
		// Parked. Events are refused until an operator intervenes or the
		// feed reconnects and resets the book.
	}
}

// OnSnapshot completes a fetch. Stale generations (superseded restarts,
// reconnects) are discarded without touching the book.
func (r *Reconciler) OnSnapshot(ctx context.Context, res SnapshotResult) {
	if res.Generation != r.generation {
		r.logger.Debug("discarding stale snapshot response",
			"generation", res.Generation,
			"current", r.generation,
		)
		return
	}
	if r.book.Mode() != ModeAwaitingSnapshot {
		return
	}

	if res.Err != nil {
		r.logger.Error("snapshot fetch failed", "error", res.Err, "attempt", r.attempts)
		r.retryOrPark(ctx)
		return
	}

	r.book.ApplySnapshot(res.Snapshot)

	// Drain in FIFO order through the live path. Events at or below the
	// snapshot sequence are discarded inside Apply.
	for i, ev := range r.buffer {
		err := r.book.Apply(ev)
		var gap *GapError
		if errors.As(err, &gap) {
			r.logger.Error("sequence gap while draining replay buffer",
				"expected", gap.Expected,
				"got", gap.Got,
			)
			// Keep the undrained tail; it is still ahead of any snapshot
			// we fetch next.
			r.buffer = append([]types.Event(nil), r.buffer[i+1:]...)
			r.restart(ctx)
			return
		}
	}

	r.logger.Info("reconciliation complete",
		"sequence", r.book.LastSeq(),
		"replayed", len(r.buffer),
	)
	r.buffer = nil
	r.attempts = 0
}

// Reset returns the book to Fresh, invalidating any in-flight fetch.
// Called when the stream reconnects: buffered events may have holes, so
// the whole protocol starts over on the next event.
func (r *Reconciler) Reset() {
	r.generation++
	r.attempts = 0
	r.buffer = nil
	r.book.setMode(ModeFresh)
}

// begin starts a reconciliation attempt: the book enters
// AwaitingSnapshot and a fetch goroutine is dispatched.
func (r *Reconciler) begin(ctx context.Context) {
	r.generation++
	r.attempts++
	r.book.setMode(ModeAwaitingSnapshot)

	delay := r.backoff()
	r.logger.Info("requesting book snapshot",
		"attempt", r.attempts,
		"generation", r.generation,
		"delay", delay,
	)

	go r.doFetch(ctx, r.generation, delay)
}

// doFetch runs off the core goroutine. It must not touch the reconciler;
// the result is posted back through the results channel.
func (r *Reconciler) doFetch(ctx context.Context, generation uint64, delay time.Duration) {
	if delay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}

	fctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	snap, err := r.fetch.BookSnapshot(fctx, r.book.ProductID())
	res := SnapshotResult{
		ProductID:  r.book.ProductID(),
		Generation: generation,
		Snapshot:   snap,
		Err:        err,
	}

	select {
	case r.results <- res:
	case <-ctx.Done():
	}
}

// restart re-enters the fetch cycle after a gap, or parks the book when
// the retry budget is spent.
func (r *Reconciler) restart(ctx context.Context) {
	r.book.setMode(ModeFresh)
	r.retryOrPark(ctx)
}

func (r *Reconciler) retryOrPark(ctx context.Context) {
	if r.attempts >= r.maxAttempts {
		r.book.setMode(ModeFailed)
		r.buffer = nil
		r.logger.Error("reconciliation retries exhausted, book parked",
			"attempts", r.attempts,
		)
		return
	}
	r.begin(ctx)
}

func (r *Reconciler) bufferEvent(ev types.Event) {
	if len(r.buffer) >= r.bufferCap {
		// Shedding the oldest entry keeps the tail contiguous; if the
		// dropped event turns out to matter, the drain detects the gap
		// and triggers another fetch.
		r.buffer = r.buffer[1:]
		r.logger.Warn("replay buffer full, dropping oldest event", "cap", r.bufferCap)
	}
	r.buffer = append(r.buffer, ev)
}

func (r *Reconciler) backoff() time.Duration {
	if r.attempts <= 1 {
		return 0
	}
	d := reconcileBackoffBase << (r.attempts - 2)
	if d > reconcileBackoffMax {
		d = reconcileBackoffMax
	}
	return d
}
