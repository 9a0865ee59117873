package scrapers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/4liaghaie/scraper-dashboard/internal/logger"
)

// fullRunServer serves a listing page with two products plus their
// detail pages.
func fullRunServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/list"):
			fmt.Fprint(w, `<html><body>
				<div class="product-card"><a class="product-link" href="/p/1">one</a></div>
				<div class="product-card"><a class="product-link" href="/p/2">two</a></div>
			</body></html>`)
		case strings.HasPrefix(r.URL.Path, "/p/"):
			fmt.Fprint(w, detailPage)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRunFullRefresh(t *testing.T) {
	srv := fullRunServer(t)
	sink := newFakeSink()

	f := NewFactory(logger.NewNop(), sink,
		WithRetryConfig(fastRetry()),
		WithSites(map[string]SiteConfig{"testsite": testSite(srv.URL)}),
	)
	rep := &fakeReporter{}

	err := f.runFullRefresh(context.Background(), rep, FullRunOptions{Limit: 10, Workers: 2})
	require.NoError(t, err)

	// Both phases for the single site: 2 urls collected + 2 details.
	done, ok, errs := rep.counts()
	assert.Equal(t, 4, done)
	assert.Equal(t, 4, ok)
	assert.Equal(t, 0, errs)
	assert.Equal(t, 20, rep.total)

	p, found := sink.get("testsite", srv.URL+"/p/1")
	require.True(t, found)
	assert.True(t, p.HasDetails)
	assert.Equal(t, "Wireless Mouse", p.Title)
}

func TestRunFullRefresh_ContinuesPastFailedSite(t *testing.T) {
	srv := fullRunServer(t)
	sink := newFakeSink()

	f := NewFactory(logger.NewNop(), sink,
		WithRetryConfig(fastRetry()),
		WithSites(map[string]SiteConfig{
			"deadsite": testSite("http://127.0.0.1:1"),
			"testsite": testSite(srv.URL),
		}),
	)
	rep := &fakeReporter{}

	err := f.runFullRefresh(context.Background(), rep, FullRunOptions{Limit: 10, Workers: 2})
	require.NoError(t, err)

	_, found := sink.get("testsite", srv.URL+"/p/1")
	assert.True(t, found)
}
