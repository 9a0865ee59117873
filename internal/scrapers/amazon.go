package scrapers

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/4liaghaie/scraper-dashboard/internal/engine"
	"github.com/4liaghaie/scraper-dashboard/internal/jobs"
)

const defaultAmazonBaseURL = "https://www.amazon.com"

// amazonStoreSelectors are tried in order; Amazon renders the seller
// byline under several layouts.
var amazonStoreSelectors = []string{
	"#bylineInfo",
	"#sellerProfileTriggerId",
	"a#brand",
}

// runAmazonStores resolves the storefront name for products that carry an
// ASIN but no store yet.
func (f *Factory) runAmazonStores(ctx context.Context, job Reporter, opts DetailOptions) error {
	products, err := f.sink.Products(ctx, ProductQuery{MissingStoreOnly: true, Limit: opts.Limit})
	if err != nil {
		return fmt.Errorf("load products without store: %w", err)
	}

	if err := job.Begin(len(products), "resolving amazon stores"); err != nil {
		return err
	}
	if len(products) == 0 {
		return nil
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(products) {
		workers = len(products)
	}

	queue := make(chan Product)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range queue {
				f.resolveStore(ctx, job, p)
			}
		}()
	}

feed:
	for _, p := range products {
		select {
		case queue <- p:
		case <-ctx.Done():
			break feed
		}
	}
	close(queue)
	wg.Wait()

	return ctx.Err()
}

func (f *Factory) resolveStore(ctx context.Context, job Reporter, p Product) {
	url := f.amazonBaseURL + "/dp/" + p.ASIN
	meta := jobs.Meta{"asin": jobs.MetaString(p.ASIN)}

	doc, err := f.fetchDocument(ctx, url)
	if err != nil {
		_ = job.Tick(jobs.Tick{OK: false, Note: "amazon fetch failed: " + p.ASIN, Meta: meta})
		return
	}

	var store string
	for _, sel := range amazonStoreSelectors {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			store = cleanByline(text)
			break
		}
	}
	if store == "" {
		_ = job.Tick(jobs.Tick{OK: false, Note: "no store byline: " + p.ASIN, Meta: meta})
		return
	}

	p.StoreName = store
	tick := jobs.Tick{OK: true, Meta: meta}
	if err := f.sink.UpsertProducts(ctx, []Product{p}); err != nil {
		tick.OK = false
		tick.Note = fmt.Sprintf("store failed: %v", err)
	}
	_ = job.Tick(tick)
}

// cleanByline strips the "Visit the ... Store" / "Brand: ..." wrapping
// Amazon puts around the storefront name.
func cleanByline(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "Visit the ")
	text = strings.TrimPrefix(text, "Brand: ")
	text = strings.TrimSuffix(text, " Store")
	return strings.TrimSpace(text)
}

func (f *Factory) amazonKind() engine.Kind {
	return engine.Kind{
		Name:   "amazon_stores",
		Title:  "Resolve Amazon storefront names",
		Params: amazonParams(),
		Run: func(ctx context.Context, job *engine.Handle) error {
			var opts DetailOptions
			if err := decodeOptions(job.Params(), &opts); err != nil {
				return err
			}
			return f.runAmazonStores(ctx, job, opts)
		},
	}
}
