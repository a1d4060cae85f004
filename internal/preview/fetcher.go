package preview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// ErrUnexpectedStatus is returned when the product page answers with a
// non-2xx status.
var ErrUnexpectedStatus = errors.New("unexpected status")

// Record is the product data extracted from a shopping page. A nil field
// means the page did not carry it.
type Record struct {
	Title    *string `json:"title,omitempty"`
	Price    *string `json:"price,omitempty"`
	ImageURL *string `json:"image_url,omitempty"`
	Rating   *string `json:"rating,omitempty"`
}

// Empty reports whether no field was found.
func (r Record) Empty() bool {
	return r.Title == nil && r.Price == nil && r.ImageURL == nil && r.Rating == nil
}

var (
	titleSelector = cascadia.MustCompile("#productTitle")

	// Checked in order, first present wins.
	priceSelectors = mustCompileAll(
		"span#price",
		"span#price_inside_buybox",
		"span#newBuyBoxPrice",
		"span#kindle-price",
		"span#a-price",
		"span#a-color-price",
	)
	imageSelectors = mustCompileAll(
		"#landingImage",
		"#imgBlkFront",
		"#ebooksImgBlkFront",
	)

	ratingSelector = cascadia.MustCompile(`span[data-hook="rating-out-of-text"]`)
)

func mustCompileAll(selectors ...string) []cascadia.Selector {
	out := make([]cascadia.Selector, 0, len(selectors))
	for _, s := range selectors {
		out = append(out, cascadia.MustCompile(s))
	}
	return out
}

// Fetcher retrieves product pages and extracts a Record from them.
type Fetcher struct {
	logger    *slog.Logger
	client    *http.Client
	userAgent string
}

// NewFetcher builds a Fetcher. A zero timeout leaves the client without a
// deadline of its own.
func NewFetcher(log *slog.Logger, userAgent string, timeout time.Duration) *Fetcher {
	if log == nil {
		log = slog.Default()
	}
	return &Fetcher{
		logger:    log.With(slog.String("component", "preview_fetcher")),
		client:    &http.Client{Timeout: timeout},
		userAgent: strings.TrimSpace(userAgent),
	}
}

// Fetch issues a single GET for url and parses the response. It does not retry.
func (f *Fetcher) Fetch(ctx context.Context, url string) (Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Record{}, fmt.Errorf("build request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return Record{}, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return Record{}, fmt.Errorf("fetch %s: %w: %d", url, ErrUnexpectedStatus, resp.StatusCode)
	}

	rec, err := Parse(resp.Body)
	if err != nil {
		return Record{}, fmt.Errorf("parse %s: %w", url, err)
	}
	f.logger.Debug("preview fetched",
		slog.String("url", url),
		slog.Bool("title", rec.Title != nil),
		slog.Bool("price", rec.Price != nil),
		slog.Bool("image", rec.ImageURL != nil),
		slog.Bool("rating", rec.Rating != nil),
	)
	return rec, nil
}

// Parse extracts a Record from an HTML document.
func Parse(r io.Reader) (Record, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return Record{}, err
	}

	var rec Record
	if n := titleSelector.MatchFirst(doc); n != nil {
		rec.Title = nonEmpty(textContent(n))
	}
	if n := firstMatch(doc, priceSelectors); n != nil {
		rec.Price = nonEmpty(textContent(n))
	}
	if n := firstMatch(doc, imageSelectors); n != nil {
		if src, ok := attr(n, "src"); ok {
			rec.ImageURL = nonEmpty(src)
		}
	}
	if n := ratingSelector.MatchFirst(doc); n != nil {
		rec.Rating = nonEmpty(textContent(n))
	}
	return rec, nil
}

func firstMatch(doc *html.Node, selectors []cascadia.Selector) *html.Node {
	for _, sel := range selectors {
		if n := sel.MatchFirst(doc); n != nil {
			return n
		}
	}
	return nil
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func nonEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
