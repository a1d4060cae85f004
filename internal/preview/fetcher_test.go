package preview

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const productPage = `<!DOCTYPE html>
<html><body>
<h1><span id="productTitle">
    Gopher Plush Toy, Large
</span></h1>
<span id="kindle-price">￥1,980</span>
<span id="price_inside_buybox">
  ￥2,200
</span>
<div><img id="imgBlkFront" src="https://images.example/front.jpg"></div>
<div><img id="landingImage" src="https://images.example/landing.jpg"></div>
<span data-hook="rating-out-of-text">5つ星のうち<b>4.5</b></span>
</body></html>`

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParsePriority(t *testing.T) {
	t.Parallel()

	rec, err := Parse(strings.NewReader(productPage))
	require.NoError(t, err)

	require.NotNil(t, rec.Title)
	assert.Equal(t, "Gopher Plush Toy, Large", *rec.Title)
	require.NotNil(t, rec.Price)
	assert.Equal(t, "￥2,200", *rec.Price, "price_inside_buybox is checked before kindle-price")
	require.NotNil(t, rec.ImageURL)
	assert.Equal(t, "https://images.example/landing.jpg", *rec.ImageURL, "landingImage is checked first regardless of document order")
	require.NotNil(t, rec.Rating)
	assert.Equal(t, "5つ星のうち4.5", *rec.Rating)
}

func TestParseMissingFieldsAreNil(t *testing.T) {
	t.Parallel()

	rec, err := Parse(strings.NewReader(`<html><body><span id="productTitle">   </span><img id="landingImage"></body></html>`))
	require.NoError(t, err)
	assert.True(t, rec.Empty(), "got %+v", rec)
}

func TestFetchSendsUserAgentOnce(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "linkrelay-test", r.Header.Get("User-Agent"))
		_, _ = io.WriteString(w, productPage)
	}))
	defer srv.Close()

	f := NewFetcher(newTestLogger(), "linkrelay-test", time.Second)
	rec, err := f.Fetch(context.Background(), srv.URL+"/dp/B000123456")
	require.NoError(t, err)
	require.NotNil(t, rec.Title)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetchNonSuccessStatus(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "robot check", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := NewFetcher(newTestLogger(), "", time.Second)
	_, err := f.Fetch(context.Background(), srv.URL)
	require.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.Equal(t, int32(1), hits.Load(), "no retry")
}

func TestFetchNetworkError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	f := NewFetcher(newTestLogger(), "", time.Second)
	_, err := f.Fetch(context.Background(), url)
	require.Error(t, err)
}
