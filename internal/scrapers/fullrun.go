package scrapers

import (
	"context"
	"fmt"

	"github.com/4liaghaie/scraper-dashboard/internal/engine"
	"github.com/4liaghaie/scraper-dashboard/internal/logger"
)

// runFullRefresh chains URL collection and detail enrichment across every
// site. All phases report into the one job; the total is the per-site
// limit times the number of phases, so the percent figure spans the whole
// run. A failed phase is noted and the run continues with the next site.
func (f *Factory) runFullRefresh(ctx context.Context, job Reporter, opts FullRunOptions) error {
	sites := make([]SiteConfig, 0, len(f.sites))
	for _, name := range f.siteNames() {
		sites = append(sites, f.sites[name])
	}

	// URL + detail phase per site.
	total := opts.Limit * len(sites) * 2
	if err := job.Begin(total, "full refresh"); err != nil {
		return err
	}

	var attempted, failed int
	for _, site := range sites {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		urlOpts := URLOptions{Limit: opts.Limit, Pages: 50, presetTotal: true}
		attempted++
		if err := f.runURLCollection(ctx, job, site, urlOpts); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failed++
			f.logger.Warn("full refresh: url phase failed",
				logger.String("site", site.Name),
				logger.Error(err),
			)
			continue
		}

		detailOpts := DetailOptions{
			Limit:       opts.Limit,
			Workers:     opts.Workers,
			MissingOnly: true,
			presetTotal: true,
		}
		attempted++
		if err := f.runDetails(ctx, job, site, detailOpts); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failed++
			f.logger.Warn("full refresh: detail phase failed",
				logger.String("site", site.Name),
				logger.Error(err),
			)
		}
	}

	if attempted > 0 && failed == attempted {
		return fmt.Errorf("full refresh: all %d phases failed", failed)
	}
	return nil
}

func (f *Factory) fullRunKind() engine.Kind {
	return engine.Kind{
		Name:   "full_fresh_run",
		Title:  "Full refresh across all sites",
		Params: fullRunParams(),
		Run: func(ctx context.Context, job *engine.Handle) error {
			var opts FullRunOptions
			if err := decodeOptions(job.Params(), &opts); err != nil {
				return err
			}
			return f.runFullRefresh(ctx, job, opts)
		},
	}
}
