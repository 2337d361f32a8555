package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/molml/hypersearch/search"
	"github.com/molml/hypersearch/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runnerFunc adapts a function to the Runner interface.
type runnerFunc func(ctx context.Context, t *Trial) error

func (f runnerFunc) Submit(ctx context.Context, t *Trial) error { return f(ctx, t) }

// testSpace compiles a small all-valid NN space with the given number of
// architectures (one candidate each).
func testSpace(t *testing.T, archs string) *search.Space {
	t.Helper()
	space, err := search.Compile(map[string]string{
		"model_type":  "NN",
		"search_type": "user_specified",
		"layer_sizes": archs,
	}, search.CompileOptions{})
	require.NoError(t, err)
	return space
}

func collectEvents(d *Dispatcher) (<-chan []Event, func()) {
	out := make(chan []Event, 1)
	var events []Event
	done := make(chan struct{})
	go func() {
		for ev := range d.Events() {
			events = append(events, ev)
		}
		out <- events
		close(done)
	}()
	return out, func() { <-done }
}

func TestFingerprintDeterministic(t *testing.T) {
	space := testSpace(t, "64,64")
	var first, second string
	for c := range space.Candidates() {
		fp, err := Fingerprint(c)
		require.NoError(t, err)
		first = fp
	}
	for c := range space.Candidates() {
		fp, err := Fingerprint(c)
		require.NoError(t, err)
		second = fp
	}
	require.NotEmpty(t, first)
	assert.Equal(t, first, second)

	other := testSpace(t, "128,64")
	for c := range other.Candidates() {
		fp, err := Fingerprint(c)
		require.NoError(t, err)
		assert.NotEqual(t, first, fp)
	}
}

func TestDispatchDeduplicates(t *testing.T) {
	ctx := context.Background()
	space := testSpace(t, "64,64 128,64")

	// Pre-record the first candidate's fingerprint.
	mem := tracker.NewMemory()
	var firstFP string
	for c := range space.Candidates() {
		fp, err := Fingerprint(c)
		require.NoError(t, err)
		firstFP = fp
		break
	}
	require.NoError(t, mem.Record(ctx, tracker.Record{Fingerprint: firstFP, Status: "completed"}))

	var d *Dispatcher
	d = New(mem, runnerFunc(func(_ context.Context, trial *Trial) error {
		go d.Done(trial.ID, nil)
		return nil
	}), Options{MaxConcurrent: 2})

	eventsCh, wait := collectEvents(d)
	require.NoError(t, d.Run(ctx, space.Candidates()))
	wait()
	events := <-eventsCh

	statesByFP := make(map[string][]State)
	for _, ev := range events {
		statesByFP[ev.Trial.Fingerprint] = append(statesByFP[ev.Trial.Fingerprint], ev.State)
	}
	// The recorded candidate is deduplicated and never admitted.
	assert.Equal(t, []State{Deduplicated}, statesByFP[firstFP])
	// The other one runs to completion.
	require.Len(t, statesByFP, 2)
	for fp, states := range statesByFP {
		if fp == firstFP {
			continue
		}
		assert.Equal(t, []State{Admitted, Completed}, states)
	}
}

func TestDispatchRerunSkipsDedup(t *testing.T) {
	ctx := context.Background()
	space := testSpace(t, "64,64")

	mem := tracker.NewMemory()
	for c := range space.Candidates() {
		fp, err := Fingerprint(c)
		require.NoError(t, err)
		require.NoError(t, mem.Record(ctx, tracker.Record{Fingerprint: fp}))
	}

	var d *Dispatcher
	d = New(mem, runnerFunc(func(_ context.Context, trial *Trial) error {
		go d.Done(trial.ID, nil)
		return nil
	}), Options{MaxConcurrent: 1, Rerun: true})

	eventsCh, wait := collectEvents(d)
	require.NoError(t, d.Run(ctx, space.Candidates()))
	wait()
	events := <-eventsCh
	require.Len(t, events, 2)
	assert.Equal(t, Admitted, events[0].State)
	assert.Equal(t, Completed, events[1].State)
}

func TestDispatchConcurrencyCeiling(t *testing.T) {
	ctx := context.Background()
	space := testSpace(t, "16 32 64,16 16,16 32,16")

	var current, peak atomic.Int32
	var d *Dispatcher
	d = New(tracker.NewMemory(), runnerFunc(func(_ context.Context, trial *Trial) error {
		go func() {
			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			current.Add(-1)
			d.Done(trial.ID, nil)
		}()
		return nil
	}), Options{MaxConcurrent: 2})

	eventsCh, wait := collectEvents(d)
	require.NoError(t, d.Run(ctx, space.Candidates()))
	wait()
	events := <-eventsCh

	admitted := 0
	for _, ev := range events {
		if ev.State == Admitted {
			admitted++
		}
	}
	assert.Equal(t, 5, admitted)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestDispatchReportsFailures(t *testing.T) {
	ctx := context.Background()
	space := testSpace(t, "64,64")

	bootErr := assert.AnError
	var d *Dispatcher
	d = New(tracker.NewMemory(), runnerFunc(func(_ context.Context, trial *Trial) error {
		go d.Done(trial.ID, bootErr)
		return nil
	}), Options{MaxConcurrent: 1})

	eventsCh, wait := collectEvents(d)
	require.NoError(t, d.Run(ctx, space.Candidates()))
	wait()
	events := <-eventsCh
	require.Len(t, events, 2)
	assert.Equal(t, Failed, events[1].State)
	assert.ErrorIs(t, events[1].Err, bootErr)
}

func TestDispatchTrackerFailureIsDispatchError(t *testing.T) {
	ctx := context.Background()
	space := testSpace(t, "64,64")

	failing := trackerFunc(func(context.Context, string) (bool, error) {
		return false, assert.AnError
	})
	d := New(failing, runnerFunc(func(context.Context, *Trial) error { return nil }),
		Options{MaxConcurrent: 1})

	_, wait := collectEvents(d)
	err := d.Run(ctx, space.Candidates())
	wait()
	var dispatchErr *DispatchError
	require.ErrorAs(t, err, &dispatchErr)
	assert.ErrorIs(t, err, assert.AnError)
}

type trackerFunc func(ctx context.Context, fingerprint string) (bool, error)

func (f trackerFunc) Exists(ctx context.Context, fp string) (bool, error) { return f(ctx, fp) }

func TestDispatchStop(t *testing.T) {
	ctx := context.Background()
	space := testSpace(t, "16 32 64,16 16,16 32,16")

	var d *Dispatcher
	var admissions atomic.Int32
	var once sync.Once
	d = New(tracker.NewMemory(), runnerFunc(func(_ context.Context, trial *Trial) error {
		admissions.Add(1)
		once.Do(d.Stop) // stop after the first admission
		go d.Done(trial.ID, nil)
		return nil
	}), Options{MaxConcurrent: 1})

	_, wait := collectEvents(d)
	require.NoError(t, d.Run(ctx, space.Candidates()))
	wait()

	// The first trial finished; the rest were never admitted.
	assert.Equal(t, int32(1), admissions.Load())
}
