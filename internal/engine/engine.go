// Package engine launches registered job kinds as background workers and
// owns their cancellation. Each launched job reports through the registry;
// the engine guarantees every job it starts reaches a terminal status.
package engine

import (
	"context"
	"sort"
	"sync"

	"github.com/4liaghaie/scraper-dashboard/internal/jobs"
	"github.com/4liaghaie/scraper-dashboard/internal/logger"
	"github.com/4liaghaie/scraper-dashboard/internal/params"
)

// RunFunc is the body of a job kind. It receives the job handle for
// progress reporting and must return promptly once ctx is cancelled. A nil
// return finishes the job as done, an error return as error; a return
// caused by cancellation finishes it as cancelled.
type RunFunc func(ctx context.Context, job *Handle) error

// Kind is a launchable job type with its declarative parameter schema.
type Kind struct {
	// Name is the wire identifier, e.g. "rebaid_details".
	Name string
	// Title is the human-readable catalog label.
	Title string
	// Params is the parameter schema used for resolution and validation.
	Params []params.Definition
	// Run executes the job.
	Run RunFunc
}

// Handle is the job-side view of a running job. Methods are safe for
// concurrent use by worker goroutines inside the executor.
type Handle struct {
	id       string
	kind     string
	values   params.Values
	registry *jobs.Registry
}

// ID returns the job id.
func (h *Handle) ID() string { return h.id }

// Kind returns the job kind name.
func (h *Handle) Kind() string { return h.kind }

// Params returns the fully resolved, validated parameter values.
func (h *Handle) Params() params.Values { return h.values.Clone() }

// Begin marks the job running with an initial work estimate and note.
func (h *Handle) Begin(total int, note string) error {
	return h.registry.MarkRunning(h.id, total, note)
}

// Tick reports one unit (or Plus units) of progress.
func (h *Handle) Tick(t jobs.Tick) error {
	return h.registry.Tick(h.id, t)
}

// SetTotal raises the job's work estimate.
func (h *Handle) SetTotal(total int) error {
	return h.registry.SetTotal(h.id, total)
}

// Engine validates launch requests, resolves parameters, and runs job
// kinds to completion on background goroutines.
type Engine struct {
	logger   logger.Logger
	registry *jobs.Registry
	store    *params.Store
	maxJobs  int

	mu      sync.Mutex
	kinds   map[string]Kind
	cancels map[string]context.CancelFunc
	closed  bool

	wg sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxConcurrent caps the number of simultaneously running jobs.
// Zero or negative means unlimited.
func WithMaxConcurrent(n int) Option {
	return func(e *Engine) { e.maxJobs = n }
}

// New creates an engine over the given registry and parameter store.
func New(log logger.Logger, registry *jobs.Registry, store *params.Store, opts ...Option) *Engine {
	e := &Engine{
		logger:   log,
		registry: registry,
		store:    store,
		kinds:    make(map[string]Kind),
		cancels:  make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register adds a launchable kind. Registration happens at startup, before
// the engine serves requests.
func (e *Engine) Register(k Kind) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.kinds[k.Name]; exists {
		return ErrKindAlreadyRegistered
	}
	e.kinds[k.Name] = k
	return nil
}

// Kinds returns the registered kinds sorted by name, for the catalog
// endpoint.
func (e *Engine) Kinds() []Kind {
	e.mu.Lock()
	out := make([]Kind, 0, len(e.kinds))
	for _, k := range e.kinds {
		out = append(out, k)
	}
	e.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Start validates and launches a job of the named kind, seeded with the
// caller's parameter values, and returns the queued snapshot. The error is
// ErrUnknownKind, ErrEngineUnavailable, or a *params.ValidationError; no
// job exists after a failed Start.
func (e *Engine) Start(ctx context.Context, kindName string, seed params.Values) (jobs.Snapshot, error) {
	e.mu.Lock()
	kind, known := e.kinds[kindName]
	if !known {
		e.mu.Unlock()
		return jobs.Snapshot{}, ErrUnknownKind
	}
	if e.closed || (e.maxJobs > 0 && len(e.cancels) >= e.maxJobs) {
		e.mu.Unlock()
		return jobs.Snapshot{}, ErrEngineUnavailable
	}
	e.mu.Unlock()

	// At launch the caller's explicit values outrank persisted overrides;
	// persisted values only fill in keys the request left out. The
	// persisted-highest ordering of Store.Resolve is for form
	// initialization, not live launches.
	resolved := params.Merge(
		params.ResolveDefaults(kind.Params),
		e.store.Load(ctx, kindName),
		seed,
	)
	values, err := params.Validate(kind.Params, resolved)
	if err != nil {
		return jobs.Snapshot{}, err
	}

	snap := e.registry.Create(kindName, 0, nil)

	jobCtx, cancel := context.WithCancel(context.Background())

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		cancel()
		_ = e.registry.Finish(snap.ID, jobs.StatusCancelled, "engine shutting down")
		return jobs.Snapshot{}, ErrEngineUnavailable
	}
	e.cancels[snap.ID] = cancel
	e.wg.Add(1)
	e.mu.Unlock()

	// Remember the validated values as the kind's new persisted overrides.
	e.store.Save(ctx, kindName, values)

	go e.run(jobCtx, kind, &Handle{
		id:       snap.ID,
		kind:     kindName,
		values:   values,
		registry: e.registry,
	})

	e.logger.Info("job launched",
		logger.String("job_id", snap.ID),
		logger.String("kind", kindName),
	)
	return snap, nil
}

func (e *Engine) run(ctx context.Context, kind Kind, h *Handle) {
	defer e.wg.Done()
	defer func() {
		e.mu.Lock()
		if cancel, ok := e.cancels[h.id]; ok {
			delete(e.cancels, h.id)
			cancel()
		}
		e.mu.Unlock()
	}()

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("job panicked",
				logger.String("job_id", h.id),
				logger.String("kind", h.kind),
				logger.Any("panic", r),
			)
			_ = e.registry.Finish(h.id, jobs.StatusError, "internal error")
		}
	}()

	if err := h.Begin(0, ""); err != nil {
		e.logger.Warn("job could not start",
			logger.String("job_id", h.id),
			logger.Error(err),
		)
		return
	}

	err := kind.Run(ctx, h)

	switch {
	case ctx.Err() != nil:
		_ = e.registry.Finish(h.id, jobs.StatusCancelled, "cancelled")
	case err != nil:
		_ = e.registry.Finish(h.id, jobs.StatusError, err.Error())
	default:
		_ = e.registry.Finish(h.id, jobs.StatusDone, "")
	}
}

// Cancel requests cancellation of one job. The job reaches the cancelled
// status asynchronously, once its executor observes the context.
func (e *Engine) Cancel(id string) error {
	e.mu.Lock()
	cancel, ok := e.cancels[id]
	e.mu.Unlock()

	if ok {
		cancel()
		return nil
	}

	// Not tracked here: either unknown or already terminal.
	snap, err := e.registry.Get(id)
	if err != nil {
		return err
	}
	if snap.Status.Terminal() {
		return jobs.ErrJobTerminal
	}
	return nil
}

// CancelAll requests cancellation of every tracked job, optionally
// limited to one kind, and returns how many were signalled.
func (e *Engine) CancelAll(kind string) int {
	e.mu.Lock()
	cancels := make(map[string]context.CancelFunc, len(e.cancels))
	for id, cancel := range e.cancels {
		cancels[id] = cancel
	}
	e.mu.Unlock()

	cancelled := 0
	for id, cancel := range cancels {
		if kind != "" {
			snap, err := e.registry.Get(id)
			if err != nil || snap.Kind != kind {
				continue
			}
		}
		cancel()
		cancelled++
	}
	return cancelled
}

// Close stops accepting launches, cancels running jobs, and waits for
// their executors to finish or ctx to expire.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	e.CancelAll("")

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
