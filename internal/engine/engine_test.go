package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/4liaghaie/scraper-dashboard/internal/engine"
	"github.com/4liaghaie/scraper-dashboard/internal/jobs"
	"github.com/4liaghaie/scraper-dashboard/internal/logger"
	"github.com/4liaghaie/scraper-dashboard/internal/params"
)

func newEngine(t *testing.T, opts ...engine.Option) (*engine.Engine, *jobs.Registry, *params.Store) {
	t.Helper()
	log := logger.NewNop()
	registry := jobs.NewRegistry(log)
	store := params.NewStore(params.NewMemoryCache(), log)
	return engine.New(log, registry, store, opts...), registry, store
}

// waitTerminal watches a job until its stream closes and returns the final
// snapshot.
func waitTerminal(t *testing.T, registry *jobs.Registry, id string) jobs.Snapshot {
	t.Helper()

	ch, cancel, err := registry.Watch(id)
	require.NoError(t, err)
	defer cancel()

	deadline := time.After(5 * time.Second)
	var last jobs.Snapshot
	for {
		select {
		case ev, open := <-ch:
			if !open {
				return last
			}
			last = ev.Snapshot
		case <-deadline:
			t.Fatalf("job %s did not reach a terminal status", id)
		}
	}
}

func countingKind(name string, items int, failEvery int) engine.Kind {
	return engine.Kind{
		Name: name,
		Params: []params.Definition{
			params.Number{Name: "limit", Default: float64(items)},
		},
		Run: func(ctx context.Context, job *engine.Handle) error {
			limit, _ := job.Params()["limit"].(float64)
			_ = job.Begin(int(limit), "")
			for i := 0; i < int(limit); i++ {
				ok := failEvery == 0 || (i+1)%failEvery != 0
				if err := job.Tick(jobs.Tick{OK: ok}); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func blockingKind(name string) engine.Kind {
	return engine.Kind{
		Name: name,
		Run: func(ctx context.Context, job *engine.Handle) error {
			_ = job.Begin(0, "waiting")
			<-ctx.Done()
			return ctx.Err()
		},
	}
}

func TestEngine_StartUnknownKind(t *testing.T) {
	eng, _, _ := newEngine(t)

	_, err := eng.Start(context.Background(), "no_such_kind", nil)
	assert.ErrorIs(t, err, engine.ErrUnknownKind)
}

func TestEngine_StartInvalidParameters(t *testing.T) {
	eng, registry, _ := newEngine(t)
	require.NoError(t, eng.Register(engine.Kind{
		Name: "demo",
		Params: []params.Definition{
			params.Number{Name: "limit", Min: floatPtr(1), Default: 10},
		},
		Run: func(ctx context.Context, job *engine.Handle) error { return nil },
	}))

	_, err := eng.Start(context.Background(), "demo", params.Values{"limit": -3.0})

	var verr *params.ValidationError
	require.ErrorAs(t, err, &verr)
	// A rejected launch leaves no job behind.
	assert.Empty(t, registry.List())
}

func TestEngine_RunToDone(t *testing.T) {
	eng, registry, _ := newEngine(t)
	require.NoError(t, eng.Register(countingKind("count", 10, 0)))

	snap, err := eng.Start(context.Background(), "count", nil)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusQueued, snap.Status)

	final := waitTerminal(t, registry, snap.ID)
	assert.Equal(t, jobs.StatusDone, final.Status)
	assert.Equal(t, 10, final.Done)
	assert.Equal(t, 10, final.OK)
	assert.Equal(t, 0, final.Err)
	assert.Equal(t, final.Done, final.OK+final.Err)
}

func TestEngine_RunToError(t *testing.T) {
	eng, registry, _ := newEngine(t)
	require.NoError(t, eng.Register(engine.Kind{
		Name: "boom",
		Run: func(ctx context.Context, job *engine.Handle) error {
			_ = job.Begin(1, "")
			return errors.New("upstream returned 503")
		},
	}))

	snap, err := eng.Start(context.Background(), "boom", nil)
	require.NoError(t, err)

	final := waitTerminal(t, registry, snap.ID)
	assert.Equal(t, jobs.StatusError, final.Status)
	assert.Equal(t, "upstream returned 503", final.Note)
}

func TestEngine_PanicFinishesAsError(t *testing.T) {
	eng, registry, _ := newEngine(t)
	require.NoError(t, eng.Register(engine.Kind{
		Name: "panics",
		Run: func(ctx context.Context, job *engine.Handle) error {
			_ = job.Begin(1, "")
			panic("nil map write")
		},
	}))

	snap, err := eng.Start(context.Background(), "panics", nil)
	require.NoError(t, err)

	final := waitTerminal(t, registry, snap.ID)
	assert.Equal(t, jobs.StatusError, final.Status)
}

func TestEngine_Cancel(t *testing.T) {
	eng, registry, _ := newEngine(t)
	require.NoError(t, eng.Register(blockingKind("block")))

	snap, err := eng.Start(context.Background(), "block", nil)
	require.NoError(t, err)

	require.NoError(t, eng.Cancel(snap.ID))

	final := waitTerminal(t, registry, snap.ID)
	assert.Equal(t, jobs.StatusCancelled, final.Status)
}

func TestEngine_CancelUnknownJob(t *testing.T) {
	eng, _, _ := newEngine(t)
	assert.ErrorIs(t, eng.Cancel("missing"), jobs.ErrJobNotFound)
}

func TestEngine_CancelAll(t *testing.T) {
	eng, registry, _ := newEngine(t)
	require.NoError(t, eng.Register(blockingKind("block")))

	first, err := eng.Start(context.Background(), "block", nil)
	require.NoError(t, err)
	second, err := eng.Start(context.Background(), "block", nil)
	require.NoError(t, err)

	assert.Equal(t, 0, eng.CancelAll("other_kind"))
	assert.Equal(t, 2, eng.CancelAll(""))

	assert.Equal(t, jobs.StatusCancelled, waitTerminal(t, registry, first.ID).Status)
	assert.Equal(t, jobs.StatusCancelled, waitTerminal(t, registry, second.ID).Status)
}

func TestEngine_ClosedRejectsLaunches(t *testing.T) {
	eng, _, _ := newEngine(t)
	require.NoError(t, eng.Register(countingKind("count", 1, 0)))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, eng.Close(ctx))

	_, err := eng.Start(context.Background(), "count", nil)
	assert.ErrorIs(t, err, engine.ErrEngineUnavailable)
}

func TestEngine_MaxConcurrent(t *testing.T) {
	eng, registry, _ := newEngine(t, engine.WithMaxConcurrent(1))
	require.NoError(t, eng.Register(blockingKind("block")))

	snap, err := eng.Start(context.Background(), "block", nil)
	require.NoError(t, err)

	_, err = eng.Start(context.Background(), "block", nil)
	assert.ErrorIs(t, err, engine.ErrEngineUnavailable)

	require.NoError(t, eng.Cancel(snap.ID))
	waitTerminal(t, registry, snap.ID)
}

func TestEngine_StartPersistsValidatedParams(t *testing.T) {
	eng, registry, store := newEngine(t)
	require.NoError(t, eng.Register(countingKind("count", 5, 0)))

	snap, err := eng.Start(context.Background(), "count", params.Values{"limit": 3.0})
	require.NoError(t, err)
	waitTerminal(t, registry, snap.ID)

	persisted := store.Load(context.Background(), "count")
	assert.Equal(t, 3.0, persisted["limit"])

	// The persisted value fills in when the next launch omits the key.
	next, err := eng.Start(context.Background(), "count", nil)
	require.NoError(t, err)
	final := waitTerminal(t, registry, next.ID)
	assert.Equal(t, 3, final.Done)
}

func TestEngine_ExplicitSeedOutranksPersisted(t *testing.T) {
	eng, registry, store := newEngine(t)
	require.NoError(t, eng.Register(countingKind("count", 5, 0)))

	snap, err := eng.Start(context.Background(), "count", params.Values{"limit": 3.0})
	require.NoError(t, err)
	waitTerminal(t, registry, snap.ID)

	// An explicit value on a later launch wins over the persisted one and
	// becomes the new persisted override.
	next, err := eng.Start(context.Background(), "count", params.Values{"limit": 4.0})
	require.NoError(t, err)
	final := waitTerminal(t, registry, next.ID)
	assert.Equal(t, 4, final.Done)

	persisted := store.Load(context.Background(), "count")
	assert.Equal(t, 4.0, persisted["limit"])
}

func TestEngine_InvalidSeedRejectedDespitePersisted(t *testing.T) {
	eng, registry, _ := newEngine(t)
	bounded := countingKind("count", 5, 0)
	bounded.Params = []params.Definition{
		params.Number{Name: "limit", Min: floatPtr(1), Default: 5},
	}
	require.NoError(t, eng.Register(bounded))

	snap, err := eng.Start(context.Background(), "count", params.Values{"limit": 5.0})
	require.NoError(t, err)
	waitTerminal(t, registry, snap.ID)

	// A persisted value must not stand in for an invalid explicit one.
	_, err = eng.Start(context.Background(), "count", params.Values{"limit": -5.0})
	var verr *params.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, registry.List(), 1)
}

func TestEngine_KindsSorted(t *testing.T) {
	eng, _, _ := newEngine(t)
	require.NoError(t, eng.Register(engine.Kind{Name: "zeta"}))
	require.NoError(t, eng.Register(engine.Kind{Name: "alpha"}))
	assert.ErrorIs(t, eng.Register(engine.Kind{Name: "alpha"}), engine.ErrKindAlreadyRegistered)

	kinds := eng.Kinds()
	require.Len(t, kinds, 2)
	assert.Equal(t, "alpha", kinds[0].Name)
	assert.Equal(t, "zeta", kinds[1].Name)
}

func floatPtr(v float64) *float64 { return &v }
