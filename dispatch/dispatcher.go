// Package dispatch releases compiled candidate configurations for
// execution: it deduplicates against previously recorded trials, enforces
// a concurrency ceiling on in-flight work, and reports each trial's state
// transitions to the caller.
//
// The dispatcher is the only concurrency boundary of the search pipeline.
// Admission blocks until a slot frees; completion notifications arrive
// asynchronously through Done. Retry policy deliberately stays with the
// external job substrate: a Failed trial is reported, never re-run here.
package dispatch

import (
	"context"
	"fmt"
	"iter"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/google/uuid"
	"github.com/molml/hypersearch/search"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// State of a trial in the dispatch state machine:
// Pending -> Deduplicated (terminal), or
// Pending -> Admitted -> {Completed, Failed}.
type State int

const (
	Pending State = iota
	Deduplicated
	Admitted
	Completed
	Failed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Deduplicated:
		return "deduplicated"
	case Admitted:
		return "admitted"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	}
	return "invalid"
}

// Trial is one candidate released into the dispatch state machine.
type Trial struct {
	ID          uuid.UUID
	Fingerprint string
	Candidate   *search.Candidate
}

// Event reports one trial state transition. Err is set only for Failed.
type Event struct {
	Trial *Trial
	State State
	Err   error
}

// TrackerLookup is the deduplication collaborator: a read-mostly external
// resource answering fingerprint existence queries. It need not be
// strongly consistent.
type TrackerLookup interface {
	Exists(ctx context.Context, fingerprint string) (bool, error)
}

// Runner hands an admitted trial to the external job substrate. Submit
// must not block on the trial's execution: the substrate reports the
// outcome asynchronously via Dispatcher.Done.
type Runner interface {
	Submit(ctx context.Context, t *Trial) error
}

// DispatchError wraps a tracker or job-substrate communication failure.
// The dispatcher reports it and stops; retrying (with backoff or
// otherwise) is the caller's decision.
type DispatchError struct {
	Fingerprint string
	Err         error
}

// Error implements the error interface.
func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch failed for trial %s: %v", e.Fingerprint, e.Err)
}

// Unwrap exposes the underlying failure.
func (e *DispatchError) Unwrap() error { return e.Err }

// Options configures a Dispatcher.
type Options struct {
	// MaxConcurrent is the ceiling on simultaneously admitted trials.
	// Must be positive.
	MaxConcurrent int
	// Rerun disables deduplication: every candidate is dispatched even if
	// the tracker already knows its fingerprint.
	Rerun bool
	// EventBuffer sizes the event channel. Defaults to 64.
	EventBuffer int
}

// Dispatcher consumes a candidate sequence and releases trials under the
// concurrency ceiling. Create with New, consume Events concurrently with
// Run, and feed completions through Done.
type Dispatcher struct {
	tracker TrackerLookup
	runner  Runner
	opts    Options

	mu       sync.Mutex
	cond     *sync.Cond
	inFlight map[uuid.UUID]*Trial
	// slots counts occupied admission slots. It only reaches zero after
	// the matching terminal events were emitted, so closing the event
	// stream cannot race a late emission.
	slots   int
	stopped bool

	events chan Event
}

// New creates a Dispatcher. A non-positive MaxConcurrent is a programming
// error and panics.
func New(trackerLookup TrackerLookup, runner Runner, opts Options) *Dispatcher {
	if opts.MaxConcurrent <= 0 {
		exceptions.Panicf("dispatch.New: MaxConcurrent must be positive, got %d", opts.MaxConcurrent)
	}
	if runner == nil {
		exceptions.Panicf("dispatch.New: a Runner is required")
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 64
	}
	d := &Dispatcher{
		tracker:  trackerLookup,
		runner:   runner,
		opts:     opts,
		inFlight: make(map[uuid.UUID]*Trial),
		events:   make(chan Event, opts.EventBuffer),
	}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// Events returns the stream of dispatch decisions. It is closed when Run
// returns. Callers must drain it concurrently with Run, or Run may block
// once the buffer fills.
func (d *Dispatcher) Events() <-chan Event { return d.events }

// Stop cooperatively stops the dispatcher: no further candidates are
// admitted, in-flight trials run to completion. Safe to call from any
// goroutine, any number of times.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.cond.Broadcast()
}

// Done is the completion notification from the job substrate: the trial
// finished, successfully or not. It frees an admission slot and emits the
// terminal event. Unknown trial ids are logged and ignored.
func (d *Dispatcher) Done(id uuid.UUID, runErr error) {
	d.mu.Lock()
	trial, found := d.inFlight[id]
	if found {
		delete(d.inFlight, id)
	}
	d.mu.Unlock()
	if !found {
		klog.Warningf("dispatch: completion for unknown trial %s ignored", id)
		return
	}

	if runErr != nil {
		d.emit(Event{Trial: trial, State: Failed, Err: runErr})
	} else {
		d.emit(Event{Trial: trial, State: Completed})
	}

	d.mu.Lock()
	d.slots--
	d.cond.Broadcast()
	d.mu.Unlock()
}

func (d *Dispatcher) emit(ev Event) {
	d.events <- ev
}

// acquire blocks until an admission slot is free, the dispatcher is
// stopped, or ctx is canceled. It reports whether a slot was acquired.
func (d *Dispatcher) acquire(ctx context.Context) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for {
		if d.stopped || ctx.Err() != nil {
			return false
		}
		if d.slots < d.opts.MaxConcurrent {
			return true
		}
		d.cond.Wait()
	}
}

// Run dispatches the candidate sequence. For each candidate it computes
// the fingerprint, consults the tracker (unless Rerun), waits for an
// admission slot and submits the trial. It returns after every admitted
// trial completed, closing the event stream.
//
// A tracker or submit failure aborts with a DispatchError after draining
// in-flight trials; validation-level concerns never reach this layer.
func (d *Dispatcher) Run(ctx context.Context, candidates iter.Seq[*search.Candidate]) error {
	// A canceled context must wake admission waiters.
	watchDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			d.Stop()
		case <-watchDone:
		}
	}()
	defer close(watchDone)

	var runErr error
	dispatched := 0
	for candidate := range candidates {
		if d.isStopped() {
			break
		}
		fingerprint, err := Fingerprint(candidate)
		if err != nil {
			runErr = err
			break
		}
		if !d.opts.Rerun && d.tracker != nil {
			exists, err := d.tracker.Exists(ctx, fingerprint)
			if err != nil {
				runErr = &DispatchError{Fingerprint: fingerprint,
					Err: errors.Wrap(err, "tracker lookup failed")}
				break
			}
			if exists {
				d.emit(Event{
					Trial: &Trial{Fingerprint: fingerprint, Candidate: candidate},
					State: Deduplicated,
				})
				continue
			}
		}
		if !d.acquire(ctx) {
			break
		}
		trial := &Trial{ID: uuid.New(), Fingerprint: fingerprint, Candidate: candidate}
		d.mu.Lock()
		d.inFlight[trial.ID] = trial
		d.slots++
		d.mu.Unlock()
		d.emit(Event{Trial: trial, State: Admitted})
		dispatched++
		if err := d.runner.Submit(ctx, trial); err != nil {
			// The slot stays occupied until Done; release it ourselves
			// since the substrate never saw the trial.
			d.mu.Lock()
			delete(d.inFlight, trial.ID)
			d.slots--
			d.cond.Broadcast()
			d.mu.Unlock()
			runErr = &DispatchError{Fingerprint: fingerprint,
				Err: errors.Wrap(err, "job submission failed")}
			break
		}
	}

	d.drain()
	close(d.events)
	if runErr != nil {
		return runErr
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	klog.V(1).Infof("dispatch: run finished, %d trials dispatched", dispatched)
	return nil
}

func (d *Dispatcher) isStopped() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopped
}

// drain waits for every admission slot to free, which happens only after
// the matching terminal event was emitted.
func (d *Dispatcher) drain() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for d.slots > 0 {
		d.cond.Wait()
	}
}
