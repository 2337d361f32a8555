// hypersearch compiles a hyperparameter search space from a parameter
// file and dispatches the resulting trials.
//
// Typical usage:
//
//	hypersearch -config params.json -dry_run
//	hypersearch -config params.json -set "search_type=grid;rf_estimators=100,500,100"
//	hypersearch -config params.yaml -tracker trials.db -max_concurrent 4 -output trials.jsonl
//
// Without -dry_run each candidate is serialized to one JSON line in the
// output file (the handoff format for the job substrate), deduplicated
// against the tracker database and recorded there.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"iter"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/janpfeifer/must"
	"github.com/molml/hypersearch/config"
	"github.com/molml/hypersearch/dispatch"
	"github.com/molml/hypersearch/search"
	"github.com/molml/hypersearch/tracker"
	sqlitetracker "github.com/molml/hypersearch/tracker/sqlite"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

var (
	flagConfig = flag.String("config", "", "Parameter file (.json, .yaml or .yml). Required.")
	flagSet    = flag.String("set", "", "Parameter overrides, \"name=value\" separated by \";\". "+
		"An entry \"file:overrides.txt\" reads more settings from a file.")
	flagSeed    = flag.Uint64("seed", 0, "Seed for the random search strategy.")
	flagDryRun  = flag.Bool("dry_run", false, "Print the candidate configurations as JSON lines and exit.")
	flagLimit   = flag.Int("limit", 0, "Stop after this many candidates (0 = no limit).")
	flagTracker = flag.String("tracker", "", "SQLite trial database for deduplication. "+
		"Empty uses an in-memory tracker (no dedup across runs).")
	flagRerun         = flag.Bool("rerun", false, "Dispatch candidates even if the tracker has already seen them.")
	flagMaxConcurrent = flag.Int("max_concurrent", 4, "Ceiling on simultaneously in-flight trials.")
	flagOutput        = flag.String("output", "", "File receiving one JSON line per dispatched trial. Default stdout.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if *flagConfig == "" {
		klog.Exitf("Missing -config parameter file. See 'hypersearch -help'.")
	}

	raw := must.M1(config.Load(*flagConfig))
	must.M(config.ApplyOverrides(raw, []string{*flagSet}))
	klog.V(1).Infof("raw parameters:\n%s", config.Sprint(raw))

	space, err := search.Compile(raw, search.CompileOptions{Seed: *flagSeed})
	if err != nil {
		klog.Exitf("Failed to compile search space: %+v", err)
	}
	fmt.Printf("Search space: %s combinations\n", humanize.Comma(int64(space.Size())))
	if err := space.EnsureNonEmpty(); err != nil {
		klog.Exitf("%+v", err)
	}

	if *flagDryRun {
		dryRun(space)
		return
	}
	run(space)
}

func dryRun(space *search.Space) {
	count := 0
	for candidate := range space.Candidates() {
		fmt.Println(string(must.M1(json.Marshal(candidate))))
		count++
		if *flagLimit > 0 && count >= *flagLimit {
			break
		}
	}
	fmt.Fprintf(os.Stderr, "%s valid candidates\n", humanize.Comma(int64(count)))
}

func run(space *search.Space) {
	ctx := context.Background()

	var store tracker.Tracker
	if *flagTracker != "" {
		sqlStore := must.M1(sqlitetracker.New(*flagTracker))
		defer func() { must.M(sqlStore.Close()) }()
		store = sqlStore
	} else {
		store = tracker.NewMemory()
	}

	out := os.Stdout
	if *flagOutput != "" {
		out = must.M1(os.Create(*flagOutput))
		defer func() { must.M(out.Close()) }()
	}

	var dispatcher *dispatch.Dispatcher
	runner := &handoffRunner{
		out:   out,
		store: store,
		done:  func(id uuid.UUID, err error) { dispatcher.Done(id, err) },
	}
	dispatcher = dispatch.New(store, runner, dispatch.Options{
		MaxConcurrent: *flagMaxConcurrent,
		Rerun:         *flagRerun,
	})

	bar := progressbar.Default(int64(space.Size()), "dispatching")
	counts := make(map[dispatch.State]int)
	eventsDone := make(chan struct{})
	go func() {
		defer close(eventsDone)
		for ev := range dispatcher.Events() {
			switch ev.State {
			case dispatch.Deduplicated, dispatch.Completed, dispatch.Failed:
				counts[ev.State]++
				_ = bar.Add(1)
			}
			if ev.State == dispatch.Failed {
				klog.Errorf("trial %s failed: %v", ev.Trial.Fingerprint, ev.Err)
			}
		}
	}()

	candidates := space.Candidates()
	if *flagLimit > 0 {
		candidates = limitSeq(candidates, *flagLimit)
	}
	err := dispatcher.Run(ctx, candidates)
	<-eventsDone
	_ = bar.Finish()
	if err != nil {
		klog.Exitf("Dispatch failed: %+v", err)
	}
	fmt.Printf("\nDispatched %s, deduplicated %s, failed %s\n",
		humanize.Comma(int64(counts[dispatch.Completed])),
		humanize.Comma(int64(counts[dispatch.Deduplicated])),
		humanize.Comma(int64(counts[dispatch.Failed])))
}

func limitSeq(seq iter.Seq[*search.Candidate], limit int) iter.Seq[*search.Candidate] {
	return func(yield func(*search.Candidate) bool) {
		count := 0
		for c := range seq {
			if !yield(c) {
				return
			}
			count++
			if count >= limit {
				return
			}
		}
	}
}

// handoffRunner is the job substrate stand-in used by the CLI: it writes
// each admitted trial as one JSON line, records it in the tracker and
// immediately reports completion.
type handoffRunner struct {
	out   *os.File
	store tracker.Tracker
	done  func(id uuid.UUID, err error)
}

// Submit implements dispatch.Runner.
func (r *handoffRunner) Submit(ctx context.Context, t *dispatch.Trial) error {
	data, err := json.Marshal(t.Candidate)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(r.out, string(data)); err != nil {
		return err
	}
	recordErr := r.store.Record(ctx, tracker.Record{
		Fingerprint: t.Fingerprint,
		TrialID:     t.ID.String(),
		Params:      data,
		Status:      "dispatched",
		CreatedAt:   time.Now().UTC(),
	})
	go r.done(t.ID, recordErr)
	return nil
}
