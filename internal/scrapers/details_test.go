package scrapers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/4liaghaie/scraper-dashboard/internal/logger"
	"github.com/4liaghaie/scraper-dashboard/internal/retry"
)

const detailPage = `<html><body>
	<h1 class="product-title">Wireless Mouse</h1>
	<div class="price"><span class="original">$29.99</span><span class="final">$9.99</span></div>
	<div class="gallery"><img src="https://cdn.example.com/mouse.jpg"></div>
	<a href="https://www.amazon.com/dp/B0MOUSE1234">Buy on Amazon</a>
</body></html>`

func fastRetry() retry.Config {
	return retry.Config{
		MaxAttempts:  2,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		IsRetryable:  fetchIsRetryable,
	}
}

func TestRunDetails_EnrichesProducts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, detailPage)
	}))
	defer srv.Close()

	sink := newFakeSink()
	require.NoError(t, sink.UpsertProducts(context.Background(), []Product{
		{Site: "testsite", URL: srv.URL + "/p/1"},
		{Site: "testsite", URL: srv.URL + "/p/2"},
	}))

	f := NewFactory(logger.NewNop(), sink, WithRetryConfig(fastRetry()))
	rep := &fakeReporter{}

	err := f.runDetails(context.Background(), rep, testSite(srv.URL), DetailOptions{
		Limit: 10, Workers: 2, MissingOnly: true,
	})
	require.NoError(t, err)

	done, ok, errs := rep.counts()
	assert.Equal(t, 2, done)
	assert.Equal(t, 2, ok)
	assert.Equal(t, 0, errs)
	assert.Equal(t, 2, rep.total)

	p, found := sink.get("testsite", srv.URL+"/p/1")
	require.True(t, found)
	assert.Equal(t, "Wireless Mouse", p.Title)
	assert.Equal(t, 29.99, p.Price)
	assert.Equal(t, 9.99, p.FinalPrice)
	assert.Equal(t, "https://cdn.example.com/mouse.jpg", p.ImageURL)
	assert.Equal(t, "B0MOUSE1234", p.ASIN)
	assert.True(t, p.HasDetails)
}

func TestRunDetails_MissingOnlySkipsEnriched(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, detailPage)
	}))
	defer srv.Close()

	sink := newFakeSink()
	require.NoError(t, sink.UpsertProducts(context.Background(), []Product{
		{Site: "testsite", URL: srv.URL + "/p/1", HasDetails: true},
		{Site: "testsite", URL: srv.URL + "/p/2"},
	}))

	f := NewFactory(logger.NewNop(), sink, WithRetryConfig(fastRetry()))
	rep := &fakeReporter{}

	err := f.runDetails(context.Background(), rep, testSite(srv.URL), DetailOptions{
		Limit: 10, Workers: 1, MissingOnly: true,
	})
	require.NoError(t, err)

	done, _, _ := rep.counts()
	assert.Equal(t, 1, done)
	assert.Equal(t, 1, rep.total)
}

func TestRunDetails_FetchFailureTicksErr(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	sink := newFakeSink()
	require.NoError(t, sink.UpsertProducts(context.Background(), []Product{
		{Site: "testsite", URL: srv.URL + "/p/1"},
	}))

	f := NewFactory(logger.NewNop(), sink, WithRetryConfig(fastRetry()))
	rep := &fakeReporter{}

	err := f.runDetails(context.Background(), rep, testSite(srv.URL), DetailOptions{
		Limit: 10, Workers: 1, MissingOnly: true,
	})
	require.NoError(t, err)

	done, ok, errs := rep.counts()
	assert.Equal(t, 1, done)
	assert.Equal(t, 0, ok)
	assert.Equal(t, 1, errs)

	p, _ := sink.get("testsite", srv.URL+"/p/1")
	assert.False(t, p.HasDetails)
}

func TestRunDetails_RetriesServerErrors(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, detailPage)
	}))
	defer srv.Close()

	sink := newFakeSink()
	require.NoError(t, sink.UpsertProducts(context.Background(), []Product{
		{Site: "testsite", URL: srv.URL + "/p/1"},
	}))

	f := NewFactory(logger.NewNop(), sink, WithRetryConfig(fastRetry()))
	rep := &fakeReporter{}

	err := f.runDetails(context.Background(), rep, testSite(srv.URL), DetailOptions{
		Limit: 10, Workers: 1, MissingOnly: true,
	})
	require.NoError(t, err)

	_, ok, _ := rep.counts()
	assert.Equal(t, 1, ok)
	assert.Equal(t, 2, hits)
}

func TestRunDetails_Cancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		fmt.Fprint(w, detailPage)
	}))
	defer srv.Close()
	defer close(release)

	sink := newFakeSink()
	var seed []Product
	for i := 0; i < 20; i++ {
		seed = append(seed, Product{Site: "testsite", URL: fmt.Sprintf("%s/p/%d", srv.URL, i)})
	}
	require.NoError(t, sink.UpsertProducts(context.Background(), seed))

	f := NewFactory(logger.NewNop(), sink, WithRetryConfig(fastRetry()))
	rep := &fakeReporter{}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := f.runDetails(ctx, rep, testSite(srv.URL), DetailOptions{
		Limit: 20, Workers: 1, MissingOnly: true,
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunDetails_NothingToDo(t *testing.T) {
	f := NewFactory(logger.NewNop(), newFakeSink())
	rep := &fakeReporter{}

	err := f.runDetails(context.Background(), rep, testSite("http://unused"), DetailOptions{
		Limit: 10, Workers: 2, MissingOnly: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, rep.total)
	done, _, _ := rep.counts()
	assert.Equal(t, 0, done)
}
