package scrapers

import (
	"context"
	"sync"
	"time"
)

// MemorySink is an in-process ProductSink used when no database is
// configured. Contents do not survive a restart.
type MemorySink struct {
	mu     sync.Mutex
	stored map[string]Product
	order  []string
}

// NewMemorySink creates an empty in-memory product sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{stored: make(map[string]Product)}
}

// UpsertProducts stores a batch, overwriting per (site, url) pair.
func (s *MemorySink) UpsertProducts(ctx context.Context, products []Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range products {
		if p.ScrapedAt.IsZero() {
			p.ScrapedAt = time.Now()
		}
		key := p.Site + "|" + p.URL
		if _, seen := s.stored[key]; !seen {
			s.order = append(s.order, key)
		}
		s.stored[key] = p
	}
	return nil
}

// Products returns stored products matching the query, in insertion
// order.
func (s *MemorySink) Products(ctx context.Context, q ProductQuery) ([]Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Product
	for _, key := range s.order {
		p := s.stored[key]
		if q.Site != "" && p.Site != q.Site {
			continue
		}
		if q.MissingDetailsOnly && p.HasDetails {
			continue
		}
		if q.MissingStoreOnly && (p.ASIN == "" || p.StoreName != "") {
			continue
		}
		out = append(out, p)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out, nil
}

// Len reports how many products are stored.
func (s *MemorySink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stored)
}
