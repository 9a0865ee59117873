package scrapers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/4liaghaie/scraper-dashboard/internal/logger"
)

func TestCleanByline(t *testing.T) {
	assert.Equal(t, "Acme Gadgets", cleanByline("Visit the Acme Gadgets Store"))
	assert.Equal(t, "Acme", cleanByline("Brand: Acme"))
	assert.Equal(t, "Plain Seller", cleanByline("  Plain Seller  "))
}

func TestRunAmazonStores(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/dp/B0GOODASIN1":
			fmt.Fprint(w, `<html><body><a id="bylineInfo">Visit the Acme Gadgets Store</a></body></html>`)
		case "/dp/B0NOBYLINE2":
			fmt.Fprint(w, `<html><body><h1>page without seller info</h1></body></html>`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	sink := newFakeSink()
	require.NoError(t, sink.UpsertProducts(context.Background(), []Product{
		{Site: "rebaid", URL: "https://rebaid.com/p/1", ASIN: "B0GOODASIN1", HasDetails: true},
		{Site: "rebaid", URL: "https://rebaid.com/p/2", ASIN: "B0NOBYLINE2", HasDetails: true},
		// Already resolved; must not be touched again.
		{Site: "rebaid", URL: "https://rebaid.com/p/3", ASIN: "B0RESOLVED3", StoreName: "Done Inc"},
		// No ASIN; nothing to resolve.
		{Site: "rebaid", URL: "https://rebaid.com/p/4"},
	}))

	f := NewFactory(logger.NewNop(), sink,
		WithRetryConfig(fastRetry()),
		WithAmazonBaseURL(srv.URL),
	)
	rep := &fakeReporter{}

	err := f.runAmazonStores(context.Background(), rep, DetailOptions{Limit: 10, Workers: 2})
	require.NoError(t, err)

	done, ok, errs := rep.counts()
	assert.Equal(t, 2, done)
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, errs)
	assert.Equal(t, 2, rep.total)

	p, _ := sink.get("rebaid", "https://rebaid.com/p/1")
	assert.Equal(t, "Acme Gadgets", p.StoreName)

	p, _ = sink.get("rebaid", "https://rebaid.com/p/2")
	assert.Empty(t, p.StoreName)
}
