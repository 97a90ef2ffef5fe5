package refresh

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/czkultura/dataserve/internal/dataset"
	"github.com/czkultura/dataserve/internal/logger"
	"github.com/czkultura/dataserve/internal/probe"
)

// ErrAlreadyStarted is returned when a second refresh loop tries to start in
// the same process.
var ErrAlreadyStarted = errors.New("refresh loop already started")

// ErrRunInProgress is returned when a cycle is requested while one is running.
var ErrRunInProgress = errors.New("refresh run already in progress")

// Only one refresh loop may poll per process; concurrent loops would race on
// the snapshot files.
var (
	registryMu sync.Mutex
	registered bool
)

// SnapshotStore is the slice of the snapshot store the loop needs: the
// current record for change detection and the atomic write for persistence.
type SnapshotStore interface {
	Read(ds dataset.Dataset) (dataset.Record, error)
	Write(ds dataset.Dataset, rec dataset.Record) error
}

// Options configures a refresh Loop.
type Options struct {
	Datasets []dataset.Dataset
	Prober   probe.Prober
	Store    SnapshotStore
	// Poll is how often the loop checks the trigger condition.
	Poll time.Duration
	// Hour and Minute give the daily wall-clock trigger in Location.
	Hour     int
	Minute   int
	Location *time.Location
	// ProbeTimeout is the per-dataset live fetch budget during a run.
	ProbeTimeout time.Duration
	// Now is the clock, injectable for tests.
	Now func() time.Time
}

// Loop refreshes every dataset's snapshot once per day at a fixed wall-clock
// time. It polls rather than sleeping until the trigger, so delayed wakeups
// (suspend, clock drift) still fire at most once per day. Datasets refresh
// sequentially; one failure never aborts the rest.
type Loop struct {
	datasets     []dataset.Dataset
	prober       probe.Prober
	store        SnapshotStore
	poll         time.Duration
	hour, minute int
	loc          *time.Location
	probeTimeout time.Duration
	now          func() time.Time

	mu           sync.Mutex
	state        State
	lastFiredDay string
	current      *RunInfo
	lastRun      *Run
}

func New(opts Options) *Loop {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Poll <= 0 {
		opts.Poll = 30 * time.Second
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Loop{
		datasets:     opts.Datasets,
		prober:       opts.Prober,
		store:        opts.Store,
		poll:         opts.Poll,
		hour:         opts.Hour,
		minute:       opts.Minute,
		loc:          opts.Location,
		probeTimeout: opts.ProbeTimeout,
		now:          opts.Now,
		state:        StateIdle,
	}
}

// Start registers this loop as the process singleton and begins polling in a
// goroutine until ctx is canceled. Cancellation deregisters the singleton, so
// a later Start (e.g. in tests or after a soft restart) works again.
func (l *Loop) Start(ctx context.Context) error {
	registryMu.Lock()
	if registered {
		registryMu.Unlock()
		return ErrAlreadyStarted
	}
	registered = true
	registryMu.Unlock()

	log := logger.WithComponent("refresh")
	log.Debugf("starting refresh loop: daily at %02d:%02d %s, polling every %v",
		l.hour, l.minute, l.loc.String(), l.poll)

	ticker := time.NewTicker(l.poll)
	go func() {
		defer ticker.Stop()
		defer func() {
			registryMu.Lock()
			registered = false
			registryMu.Unlock()
		}()
		for {
			select {
			case <-ctx.Done():
				log.Info("refresh loop stopped")
				return
			case <-ticker.C:
				l.tick(ctx)
			}
		}
	}()
	return nil
}

// tick fires the daily cycle once the trigger time has passed and the day
// has not fired yet. The day is consumed before the run is attempted: a
// trigger that lands while a manual run is still going is skipped for the
// day rather than queued.
func (l *Loop) tick(ctx context.Context) {
	now := l.now().In(l.loc)
	trigger := time.Date(now.Year(), now.Month(), now.Day(), l.hour, l.minute, 0, 0, l.loc)
	if now.Before(trigger) {
		return
	}
	today := dayKey(now)

	l.mu.Lock()
	if l.lastFiredDay == today {
		l.mu.Unlock()
		return
	}
	l.lastFiredDay = today
	l.mu.Unlock()

	run, ok := l.beginRun("scheduled")
	if !ok {
		logger.WithComponent("refresh").Warn("previous run still in progress, skipping today's trigger")
		return
	}
	l.execute(ctx, run)
}

// RunNow executes one refresh cycle immediately and returns it, or
// ErrRunInProgress when a cycle is already underway.
func (l *Loop) RunNow(ctx context.Context) (*Run, error) {
	run, ok := l.beginRun("manual")
	if !ok {
		return nil, ErrRunInProgress
	}
	return l.execute(ctx, run), nil
}

// StartManual kicks one refresh cycle in the background and returns its run
// ID, or ErrRunInProgress when a cycle is already underway. The given ctx
// should outlive the request that asked for the run.
func (l *Loop) StartManual(ctx context.Context) (string, error) {
	run, ok := l.beginRun("manual")
	if !ok {
		return "", ErrRunInProgress
	}
	go l.execute(ctx, run)
	return run.ID, nil
}

// Status reports the loop state, the in-flight run if any, and the last
// completed run.
func (l *Loop) Status() StatusSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	snap := StatusSnapshot{State: l.state, LastRun: l.lastRun.clone()}
	if l.current != nil {
		info := *l.current
		snap.CurrentRun = &info
	}
	return snap
}

func (l *Loop) beginRun(trigger string) (*Run, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateRunning {
		return nil, false
	}
	l.state = StateRunning
	run := &Run{
		ID:        uuid.New().String(),
		Trigger:   trigger,
		StartedAt: l.now().In(l.loc),
	}
	l.current = &RunInfo{ID: run.ID, Trigger: run.Trigger, StartedAt: run.StartedAt}
	return run, true
}

func (l *Loop) finishRun(run *Run) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = StateIdle
	l.current = nil
	l.lastRun = run
}

func (l *Loop) execute(ctx context.Context, run *Run) *Run {
	log := logger.WithComponent("refresh").WithField("run_id", run.ID)
	log.WithField("trigger", run.Trigger).Infof("refresh run started for %d datasets", len(l.datasets))

	for _, ds := range l.datasets {
		if ctx.Err() != nil {
			log.Warn("refresh run interrupted")
			break
		}
		res := l.refreshDataset(ctx, ds)
		run.Results = append(run.Results, res)

		entry := logger.WithDataset("refresh", ds.Name).WithField("run_id", run.ID)
		switch res.Status {
		case ResultFailed:
			entry.WithField("error", res.Error).Warnf("refresh %s: %s", res.Status, res.Reason)
		case ResultSkipped:
			entry.Debugf("refresh %s: %s", res.Status, res.Reason)
		default:
			entry.Infof("refresh %s", res.Status)
		}
	}

	finished := l.now().In(l.loc)
	run.FinishedAt = &finished
	l.finishRun(run)
	log.Infof("refresh run finished: %s", summarize(run.Results))
	return run
}

// refreshDataset fetches one dataset's live payload and reconciles the local
// snapshot with it. The snapshot is only replaced by a payload that decodes
// and validates as the snapshot shape; anything less leaves disk untouched.
func (l *Loop) refreshDataset(ctx context.Context, ds dataset.Dataset) Result {
	start := l.now()
	done := func(r Result) Result {
		r.Dataset = ds.Name
		r.ElapsedMS = l.now().Sub(start).Milliseconds()
		return r
	}

	if !ds.HasSnapshot() {
		return done(Result{Status: ResultSkipped, Reason: "no snapshot file"})
	}
	if !ds.HasEndpoint() {
		// Nothing to fetch, but verify the local file still parses.
		if _, err := l.store.Read(ds); err != nil {
			logger.WithDataset("refresh", ds.Name).WithError(err).Warn("local snapshot failed verification")
		}
		return done(Result{Status: ResultSkipped, Reason: "no live endpoint"})
	}

	pctx, cancel := context.WithTimeout(ctx, l.probeTimeout)
	res := l.prober.Probe(pctx, ds)
	cancel()

	if !res.Fetchable() {
		r := Result{Status: ResultFailed, Reason: string(res.Outcome)}
		if res.Err != nil {
			r.Error = res.Err.Error()
		} else {
			r.Reason = "empty payload"
		}
		return done(r)
	}

	var rec dataset.Record
	var err error
	if res.Outcome == probe.OutcomeSuccess {
		rec, err = ds.Transform(res.Payload)
	} else {
		rec, err = ds.Codec.Decode(res.Payload)
	}
	if err != nil {
		return done(Result{Status: ResultFailed, Reason: "payload not in snapshot schema", Error: err.Error()})
	}
	if err := rec.Validate(); err != nil {
		return done(Result{Status: ResultFailed, Reason: "payload not in snapshot schema", Error: err.Error()})
	}

	// A missing or corrupt current snapshot counts as different, so a healthy
	// live payload heals it.
	current, err := l.store.Read(ds)
	if err == nil && reflect.DeepEqual(current, rec) {
		return done(Result{Status: ResultUnchanged})
	}

	if err := l.store.Write(ds, rec); err != nil {
		return done(Result{Status: ResultFailed, Reason: "persist failed", Error: err.Error()})
	}
	return done(Result{Status: ResultUpdated})
}

func summarize(results []Result) string {
	counts := map[ResultStatus]int{}
	for _, r := range results {
		counts[r.Status]++
	}
	return fmt.Sprintf("updated=%d unchanged=%d skipped=%d failed=%d",
		counts[ResultUpdated], counts[ResultUnchanged], counts[ResultSkipped], counts[ResultFailed])
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
