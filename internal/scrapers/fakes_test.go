package scrapers

import (
	"context"
	"sync"

	"github.com/4liaghaie/scraper-dashboard/internal/jobs"
)

// fakeReporter records progress calls in place of a live job handle.
type fakeReporter struct {
	mu    sync.Mutex
	total int
	note  string
	ticks []jobs.Tick
}

func (r *fakeReporter) Begin(total int, note string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total = total
	r.note = note
	return nil
}

func (r *fakeReporter) Tick(t jobs.Tick) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, t)
	return nil
}

// counts folds the recorded ticks into done/ok/err totals, the same way
// the registry would.
func (r *fakeReporter) counts() (done, ok, errs int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.ticks {
		plus := t.Plus
		if plus <= 0 {
			plus = 1
		}
		done += plus
		if t.OK {
			ok += plus
		} else {
			errs += plus
		}
	}
	return done, ok, errs
}

// fakeSink wraps MemorySink with a scriptable upsert failure.
type fakeSink struct {
	*MemorySink
	upsertErr error
}

func newFakeSink() *fakeSink {
	return &fakeSink{MemorySink: NewMemorySink()}
}

func (s *fakeSink) UpsertProducts(ctx context.Context, products []Product) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	return s.MemorySink.UpsertProducts(ctx, products)
}

func (s *fakeSink) get(site, url string) (Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.stored[site+"|"+url]
	return p, ok
}
