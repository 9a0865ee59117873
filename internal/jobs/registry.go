package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/4liaghaie/scraper-dashboard/internal/logger"
	"github.com/4liaghaie/scraper-dashboard/internal/metrics"
)

const (
	// DefaultWatchBuffer is the per-watcher event buffer size.
	DefaultWatchBuffer = 64

	// recordTimeout bounds each best-effort persistence call.
	recordTimeout = 5 * time.Second
)

// Recorder mirrors registry mutations to durable storage. Calls are best
// effort: a failing recorder never fails the job.
type Recorder interface {
	// JobCreated is invoked once per job, right after creation.
	JobCreated(ctx context.Context, snap Snapshot) error
	// JobUpdated is invoked after every status or counter change.
	JobUpdated(ctx context.Context, snap Snapshot) error
	// JobEvent is invoked per progress tick with the tick's increment.
	JobEvent(ctx context.Context, jobID, level, message string, plus int, meta Meta) error
}

// Tick describes a single progress increment.
type Tick struct {
	// Plus is the processed-count increment; zero means 1.
	Plus int
	// OK routes the increment to the ok counter; otherwise to err.
	OK bool
	// Note, when non-empty, replaces the job's note.
	Note string
	// Meta keys overwrite the job's meta per key.
	Meta Meta
}

// Registry is the single writer of job state. It serializes mutations per
// job id and fans each mutation out, in order, to every watcher of that
// job.
type Registry struct {
	logger      logger.Logger
	recorder    Recorder
	watchBuffer int

	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	mu      sync.Mutex
	snap    Snapshot
	subs    map[int64]chan Event
	nextSub int64
}

// Option configures a Registry.
type Option func(*Registry)

// WithRecorder attaches a persistence recorder.
func WithRecorder(r Recorder) Option {
	return func(reg *Registry) { reg.recorder = r }
}

// WithWatchBuffer sets the per-watcher channel buffer.
func WithWatchBuffer(n int) Option {
	return func(reg *Registry) {
		if n > 0 {
			reg.watchBuffer = n
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(log logger.Logger, opts ...Option) *Registry {
	r := &Registry{
		logger:      log,
		watchBuffer: DefaultWatchBuffer,
		entries:     make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create registers a new job in queued status and returns its snapshot.
func (r *Registry) Create(kind string, total int, meta Meta) Snapshot {
	snap := Snapshot{
		ID:     uuid.New().String(),
		Kind:   kind,
		Status: StatusQueued,
		Total:  total,
		Meta:   meta.Clone(),
	}

	r.mu.Lock()
	r.entries[snap.ID] = &entry{
		snap: snap,
		subs: make(map[int64]chan Event),
	}
	r.mu.Unlock()

	metrics.JobsStarted.WithLabelValues(kind).Inc()
	r.record(snap.ID, func(ctx context.Context, rec Recorder) error {
		return rec.JobCreated(ctx, snap.Clone())
	})

	return snap.Clone()
}

// Get returns the current snapshot for a job id.
func (r *Registry) Get(id string) (Snapshot, error) {
	e, ok := r.entry(id)
	if !ok {
		return Snapshot{}, ErrJobNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap.Clone(), nil
}

// List returns snapshots of every known job.
func (r *Registry) List() []Snapshot {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]Snapshot, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.snap.Clone())
		e.mu.Unlock()
	}
	return out
}

// MarkRunning transitions a queued job to running, emitting the started
// event. On an already-running job it updates total/note and emits
// progress. total <= 0 leaves the current estimate untouched.
func (r *Registry) MarkRunning(id string, total int, note string) error {
	e, ok := r.entry(id)
	if !ok {
		return ErrJobNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.snap.Status.Terminal() {
		return ErrJobTerminal
	}

	first := e.snap.Status == StatusQueued
	e.snap.Status = StatusRunning
	if total > 0 {
		e.snap.Total = total
	}
	if note != "" {
		e.snap.Note = note
	}

	name := EventProgress
	if first {
		name = EventStarted
		metrics.JobsRunning.Inc()
	}
	r.emitLocked(e, name)

	snap := e.snap.Clone()
	r.record(id, func(ctx context.Context, rec Recorder) error {
		return rec.JobUpdated(ctx, snap)
	})
	return nil
}

// Tick applies a progress increment. A tick against a queued job promotes
// it to running first, so the started event is never skipped.
func (r *Registry) Tick(id string, t Tick) error {
	e, ok := r.entry(id)
	if !ok {
		return ErrJobNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.snap.Status.Terminal() {
		return ErrJobTerminal
	}

	name := EventProgress
	if e.snap.Status == StatusQueued {
		e.snap.Status = StatusRunning
		name = EventStarted
		metrics.JobsRunning.Inc()
	}

	plus := t.Plus
	if plus <= 0 {
		plus = 1
	}
	e.snap.Done += plus
	if t.OK {
		e.snap.OK += plus
	} else {
		e.snap.Err += plus
	}
	if t.Note != "" {
		e.snap.Note = t.Note
	}
	if len(t.Meta) > 0 {
		e.snap.Meta = e.snap.Meta.Merge(t.Meta)
	}

	r.emitLocked(e, name)

	snap := e.snap.Clone()
	level := "info"
	if !t.OK {
		level = "error"
	}
	r.record(id, func(ctx context.Context, rec Recorder) error {
		if err := rec.JobEvent(ctx, id, level, t.Note, plus, t.Meta.Clone()); err != nil {
			return err
		}
		return rec.JobUpdated(ctx, snap)
	})
	return nil
}

// SetTotal revises the job's work estimate. The executor may raise the
// estimate mid-run when it discovers more work.
func (r *Registry) SetTotal(id string, total int) error {
	e, ok := r.entry(id)
	if !ok {
		return ErrJobNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.snap.Status.Terminal() {
		return ErrJobTerminal
	}
	if total <= e.snap.Total {
		return nil
	}
	e.snap.Total = total
	if e.snap.Status == StatusRunning {
		r.emitLocked(e, EventProgress)
	}

	snap := e.snap.Clone()
	r.record(id, func(ctx context.Context, rec Recorder) error {
		return rec.JobUpdated(ctx, snap)
	})
	return nil
}

// Finish moves a job to a terminal status, emits the final event, and
// closes every watcher channel. queued → cancelled is legal; any other
// finish from queued is recorded as given.
func (r *Registry) Finish(id string, status Status, note string) error {
	if !status.Terminal() {
		return ErrInvalidStatus
	}

	e, ok := r.entry(id)
	if !ok {
		return ErrJobNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.snap.Status.Terminal() {
		return ErrJobTerminal
	}

	wasRunning := e.snap.Status == StatusRunning
	e.snap.Status = status
	if note != "" {
		e.snap.Note = note
	}

	r.emitLocked(e, eventForTerminal(status))
	for subID, ch := range e.subs {
		delete(e.subs, subID)
		close(ch)
	}

	if wasRunning {
		metrics.JobsRunning.Dec()
	}
	metrics.JobsFinished.WithLabelValues(e.snap.Kind, string(status)).Inc()

	snap := e.snap.Clone()
	r.record(id, func(ctx context.Context, rec Recorder) error {
		return rec.JobUpdated(ctx, snap)
	})
	return nil
}

// Watch attaches an ordered event channel to a job. Watching a job that is
// already terminal yields exactly one event, the final snapshot, followed
// by channel close. Watching a running job yields the current snapshot as
// a started event before any further mutations.
func (r *Registry) Watch(id string) (<-chan Event, func(), error) {
	e, ok := r.entry(id)
	if !ok {
		return nil, nil, ErrJobNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.snap.Status.Terminal() {
		ch := make(chan Event, 1)
		ch <- Event{Name: eventForTerminal(e.snap.Status), Snapshot: e.snap.Clone()}
		close(ch)
		return ch, func() {}, nil
	}

	ch := make(chan Event, r.watchBuffer)
	if e.snap.Status == StatusRunning {
		ch <- Event{Name: EventStarted, Snapshot: e.snap.Clone()}
	}

	subID := e.nextSub
	e.nextSub++
	e.subs[subID] = ch

	cancel := func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if c, stillThere := e.subs[subID]; stillThere {
			delete(e.subs, subID)
			close(c)
		}
	}
	return ch, cancel, nil
}

func (r *Registry) entry(id string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

// emitLocked fans the current snapshot out to every watcher. Caller holds
// e.mu, which is what guarantees watchers see mutations in write order. A
// watcher whose buffer is full is disconnected rather than allowed to
// stall the writer.
func (r *Registry) emitLocked(e *entry, name EventName) {
	ev := Event{Name: name, Snapshot: e.snap.Clone()}
	for subID, ch := range e.subs {
		select {
		case ch <- ev:
		default:
			delete(e.subs, subID)
			close(ch)
			metrics.WatchersDropped.Inc()
			r.logger.Warn("watcher buffer full, dropping subscription",
				logger.String("job_id", e.snap.ID),
				logger.String("event", string(name)),
			)
		}
	}
	metrics.EventsEmitted.WithLabelValues(string(name)).Inc()
}

// record runs a persistence callback when a recorder is configured.
// Failures degrade to a log line.
func (r *Registry) record(jobID string, fn func(context.Context, Recorder) error) {
	if r.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := fn(ctx, r.recorder); err != nil {
		r.logger.Warn("job persistence failed",
			logger.String("job_id", jobID),
			logger.Error(err),
		)
	}
}
