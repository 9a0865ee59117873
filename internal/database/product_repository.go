package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/4liaghaie/scraper-dashboard/internal/scrapers"
)

// ProductRepository stores scraped products keyed by (site, url). It
// implements scrapers.ProductSink.
type ProductRepository struct {
	db *sqlx.DB
}

// NewProductRepository creates a product repository.
func NewProductRepository(db *sqlx.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// UpsertProducts inserts or overwrites a batch of products inside one
// transaction.
func (r *ProductRepository) UpsertProducts(ctx context.Context, products []scrapers.Product) error {
	if len(products) == 0 {
		return nil
	}

	query := `
		INSERT INTO products (site, url, title, asin, price, final_price, image_url, store_name, has_details, scraped_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (site, url) DO UPDATE
		SET title = EXCLUDED.title, asin = EXCLUDED.asin, price = EXCLUDED.price,
		    final_price = EXCLUDED.final_price, image_url = EXCLUDED.image_url,
		    store_name = EXCLUDED.store_name,
		    has_details = products.has_details OR EXCLUDED.has_details,
		    scraped_at = NOW()
	`

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin product upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	for i := range products {
		p := &products[i]
		if _, execErr := tx.ExecContext(
			ctx,
			query,
			p.Site,
			p.URL,
			p.Title,
			p.ASIN,
			p.Price,
			p.FinalPrice,
			p.ImageURL,
			p.StoreName,
			p.HasDetails,
		); execErr != nil {
			return fmt.Errorf("failed to upsert product %s: %w", p.URL, execErr)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit product upsert: %w", err)
	}

	return nil
}

// Products returns stored products matching the query, oldest first.
func (r *ProductRepository) Products(ctx context.Context, q scrapers.ProductQuery) ([]scrapers.Product, error) {
	query := `
		SELECT site, url, title, asin, price, final_price, image_url, store_name, has_details, scraped_at
		FROM products
		WHERE 1=1
	`
	var args []any

	if q.Site != "" {
		args = append(args, q.Site)
		query += fmt.Sprintf(" AND site = $%d", len(args))
	}
	if q.MissingDetailsOnly {
		query += " AND has_details = FALSE"
	}
	if q.MissingStoreOnly {
		query += " AND asin <> '' AND store_name = ''"
	}

	query += " ORDER BY scraped_at ASC"
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	var products []scrapers.Product
	if err := r.db.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}

	if products == nil {
		products = []scrapers.Product{}
	}
	return products, nil
}
