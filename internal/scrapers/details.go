package scrapers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/4liaghaie/scraper-dashboard/internal/engine"
	"github.com/4liaghaie/scraper-dashboard/internal/jobs"
	"github.com/4liaghaie/scraper-dashboard/internal/retry"
)

// errUpstreamBusy marks a 5xx response as worth another attempt.
var errUpstreamBusy = errors.New("upstream busy")

func fetchIsRetryable(err error) bool {
	return errors.Is(err, errUpstreamBusy) || retry.DefaultIsRetryable(err)
}

// runDetails enriches stored products with data from their product pages.
// A fixed worker pool fetches and parses concurrently; every product
// becomes exactly one tick, ok or not.
func (f *Factory) runDetails(ctx context.Context, job Reporter, site SiteConfig, opts DetailOptions) error {
	query := ProductQuery{Site: site.Name, Limit: opts.Limit}
	if opts.MissingOnly {
		query.MissingDetailsOnly = true
	}
	products, err := f.sink.Products(ctx, query)
	if err != nil {
		return fmt.Errorf("load %s products: %w", site.Name, err)
	}

	if !opts.presetTotal {
		if err := job.Begin(len(products), "scraping "+site.Name+" details"); err != nil {
			return err
		}
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
				f.scrapeDetail(ctx, job, site, p)
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

// scrapeDetail fetches one product page, extracts its fields, and stores
// the result. Failures tick the err counter and move on.
func (f *Factory) scrapeDetail(ctx context.Context, job Reporter, site SiteConfig, p Product) {
	doc, err := f.fetchDocument(ctx, p.URL)
	if err != nil {
		_ = job.Tick(jobs.Tick{
			OK:   false,
			Note: fmt.Sprintf("fetch failed: %s", p.URL),
			Meta: jobs.Meta{"url": jobs.MetaString(p.URL)},
		})
		return
	}

	sel := site.Detail
	p.Title = strings.TrimSpace(doc.Find(sel.Title).First().Text())
	p.Price = ParsePrice(doc.Find(sel.Price).First().Text())
	p.FinalPrice = ParsePrice(doc.Find(sel.FinalPrice).First().Text())
	if src, ok := doc.Find(sel.Image).First().Attr("src"); ok {
		p.ImageURL = src
	}
	if href, ok := doc.Find(sel.AmazonLink).First().Attr("href"); ok {
		if asin := ASINFromURL(href); asin != "" {
			p.ASIN = asin
		}
	}
	p.HasDetails = true

	tick := jobs.Tick{
		OK:   true,
		Meta: jobs.Meta{"url": jobs.MetaString(p.URL)},
	}
	if err := f.sink.UpsertProducts(ctx, []Product{p}); err != nil {
		tick.OK = false
		tick.Note = fmt.Sprintf("store failed: %v", err)
	}
	_ = job.Tick(tick)
}

// fetchDocument GETs a page with backoff and parses it with goquery.
func (f *Factory) fetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	var doc *goquery.Document

	err := retry.Do(ctx, f.retryConfig, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", f.userAgent)

		resp, err := f.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: HTTP %d for %s", errUpstreamBusy, resp.StatusCode, url)
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
		}

		doc, err = goquery.NewDocumentFromReader(resp.Body)
		if err != nil {
			return fmt.Errorf("parse %s: %w", url, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (f *Factory) detailKind(siteName string) engine.Kind {
	return engine.Kind{
		Name:   siteName + "_details",
		Title:  "Scrape " + siteName + " product details",
		Params: detailParams(),
		Run: func(ctx context.Context, job *engine.Handle) error {
			site, err := f.site(siteName)
			if err != nil {
				return err
			}
			var opts DetailOptions
			if err := decodeOptions(job.Params(), &opts); err != nil {
				return err
			}
			return f.runDetails(ctx, job, site, opts)
		},
	}
}
