// Package scrapers implements the launchable job kinds: URL collection
// and detail enrichment for the supported deal sites, plus the composite
// full refresh run.
package scrapers

import (
	"context"
	"time"

	"github.com/4liaghaie/scraper-dashboard/internal/jobs"
)

// Reporter is the slice of the job handle the executors need: marking the
// run started with its work estimate, and per-item progress ticks.
type Reporter interface {
	Begin(total int, note string) error
	Tick(t jobs.Tick) error
}

// Supported deal sites.
const (
	SiteRebaid    = "rebaid"
	SiteRebateKey = "rebatekey"
	SiteMyVipon   = "myvipon"
)

// Product is one scraped deal. URL collection discovers the Site/URL pair;
// detail enrichment fills in the rest.
type Product struct {
	Site       string    `db:"site" json:"site"`
	URL        string    `db:"url" json:"url"`
	Title      string    `db:"title" json:"title,omitempty"`
	ASIN       string    `db:"asin" json:"asin,omitempty"`
	Price      float64   `db:"price" json:"price,omitempty"`
	FinalPrice float64   `db:"final_price" json:"final_price,omitempty"`
	ImageURL   string    `db:"image_url" json:"image_url,omitempty"`
	StoreName  string    `db:"store_name" json:"store_name,omitempty"`
	HasDetails bool      `db:"has_details" json:"has_details"`
	ScrapedAt  time.Time `db:"scraped_at" json:"scraped_at,omitempty"`
}

// ProductQuery selects products for an enrichment pass.
type ProductQuery struct {
	// Site restricts to one site; empty matches every site.
	Site string
	// MissingDetailsOnly keeps only products not yet enriched.
	MissingDetailsOnly bool
	// MissingStoreOnly keeps only products with an ASIN but no store name.
	MissingStoreOnly bool
	// Limit caps the result size.
	Limit int
}

// ProductSink receives scraped products. The (site, url) pair is the
// identity: a second upsert of the same pair overwrites the first.
type ProductSink interface {
	// UpsertProducts stores a batch of products.
	UpsertProducts(ctx context.Context, products []Product) error
	// Products returns stored products matching the query, oldest first.
	Products(ctx context.Context, q ProductQuery) ([]Product, error)
}
