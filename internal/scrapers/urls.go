package scrapers

import (
	"context"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/4liaghaie/scraper-dashboard/internal/engine"
	"github.com/4liaghaie/scraper-dashboard/internal/jobs"
	"github.com/4liaghaie/scraper-dashboard/internal/logger"
)

const collectTimeout = 30 * time.Second

// runURLCollection walks a site's listing pages with colly, collecting
// product URLs until the limit, the page cap, or cancellation. Each
// finished page is flushed to the sink as one batch and reported as one
// tick per collected URL.
func (f *Factory) runURLCollection(ctx context.Context, job Reporter, site SiteConfig, opts URLOptions) error {
	if !opts.presetTotal {
		if err := job.Begin(opts.Limit, "collecting "+site.Name+" urls"); err != nil {
			return err
		}
	}

	c := colly.NewCollector(
		colly.UserAgent(f.userAgent),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(collectTimeout)
	if opts.Proxy != "" {
		if err := c.SetProxy(opts.Proxy); err != nil {
			return fmt.Errorf("set proxy: %w", err)
		}
	}

	var (
		collected int
		pages     int
		batch     []Product
		fetchErr  error
	)

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})

	c.OnResponse(func(r *colly.Response) {
		pages++
	})

	c.OnHTML(site.List.Product, func(e *colly.HTMLElement) {
		if collected >= opts.Limit {
			return
		}
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if link == "" {
			return
		}
		batch = append(batch, Product{
			Site: site.Name,
			URL:  link,
			ASIN: ASINFromURL(link),
		})
		collected++
	})

	c.OnHTML(site.List.NextPage, func(e *colly.HTMLElement) {
		if collected >= opts.Limit || pages >= opts.Pages || ctx.Err() != nil {
			return
		}
		if err := e.Request.Visit(e.Attr("href")); err != nil {
			f.logger.Debug("pagination stopped",
				logger.String("site", site.Name),
				logger.Error(err),
			)
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		fetchErr = err
		_ = job.Tick(jobs.Tick{
			OK:   false,
			Note: fmt.Sprintf("fetch failed: %s", r.Request.URL),
			Meta: jobs.Meta{"url": jobs.MetaString(r.Request.URL.String())},
		})
	})

	c.OnScraped(func(r *colly.Response) {
		if len(batch) == 0 {
			return
		}
		page := batch
		batch = nil

		tick := jobs.Tick{
			Plus: len(page),
			OK:   true,
			Note: fmt.Sprintf("%s page %d: %d urls", site.Name, pages, len(page)),
			Meta: jobs.Meta{"lastPage": jobs.MetaString(r.Request.URL.String())},
		}
		if err := f.sink.UpsertProducts(ctx, page); err != nil {
			tick.OK = false
			tick.Note = fmt.Sprintf("store failed: %v", err)
		}
		_ = job.Tick(tick)
	})

	if err := c.Visit(site.ListURL(1)); err != nil {
		return fmt.Errorf("visit %s listing: %w", site.Name, err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if collected == 0 && fetchErr != nil {
		return fmt.Errorf("collect %s urls: %w", site.Name, fetchErr)
	}
	return nil
}

func (f *Factory) urlKind(siteName string) engine.Kind {
	return engine.Kind{
		Name:   siteName + "_urls",
		Title:  "Collect " + siteName + " product URLs",
		Params: urlParams(),
		Run: func(ctx context.Context, job *engine.Handle) error {
			site, err := f.site(siteName)
			if err != nil {
				return err
			}
			var opts URLOptions
			if err := decodeOptions(job.Params(), &opts); err != nil {
				return err
			}
			return f.runURLCollection(ctx, job, site, opts)
		},
	}
}
