// Package fetch retrieves RSS and Atom sources and converts their entries
// into relevance-filtered news items.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/abelbrown/crisiswatch/internal/feeds"
)

const (
	// DefaultMaxEntries bounds the entries read from a single feed.
	DefaultMaxEntries = 10

	userAgent     = "CrisisWatch/1.0"
	acceptHeader  = "application/rss+xml, application/atom+xml, application/xml, text/xml, */*"
	entityPasses  = 2
	scanExcerpt   = 200
	excerptLength = 180
	maxBodyBytes  = 4 << 20
)

// Fetcher retrieves items from feed sources.
type Fetcher struct {
	client     *http.Client
	relevance  *feeds.Relevance
	maxEntries int
}

// NewFetcher creates a Fetcher with the given HTTP client timeout. Entries
// that fail relevance are dropped at parse time.
func NewFetcher(timeout time.Duration, relevance *feeds.Relevance) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
		},
		relevance:  relevance,
		maxEntries: DefaultMaxEntries,
	}
}

// WithClient replaces the HTTP client.
func (f *Fetcher) WithClient(c *http.Client) *Fetcher {
	f.client = c
	return f
}

// Fetch retrieves and parses one source. Failures wrap
// feeds.ErrSourceUnavailable or feeds.ErrSourceMalformed.
//
// Entries without a parseable date are stamped with now.
func (f *Fetcher) Fetch(ctx context.Context, src feeds.FeedSource, now time.Time) ([]feeds.NewsItem, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", feeds.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", feeds.ErrSourceUnavailable, resp.StatusCode)
	}

	return Parse(io.LimitReader(resp.Body, maxBodyBytes), src, f.relevance, now, f.maxEntries)
}

// Parse reads an RSS or Atom document and returns its relevant entries, in
// document order. At most maxEntries entries are examined.
func Parse(r io.Reader, src feeds.FeedSource, relevance *feeds.Relevance, now time.Time, maxEntries int) ([]feeds.NewsItem, error) {
	feed, err := gofeed.NewParser().Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", feeds.ErrSourceMalformed, err)
	}

	entries := feed.Items
	if maxEntries > 0 && len(entries) > maxEntries {
		entries = entries[:maxEntries]
	}

	items := make([]feeds.NewsItem, 0, len(entries))
	for _, entry := range entries {
		item, ok := convertEntry(entry, feed.FeedType, src, relevance, now)
		if ok {
			items = append(items, item)
		}
	}
	return items, nil
}

// convertEntry maps a parsed entry to a NewsItem. ok is false for untitled
// or irrelevant entries.
func convertEntry(entry *gofeed.Item, feedType string, src feeds.FeedSource, relevance *feeds.Relevance, now time.Time) (feeds.NewsItem, bool) {
	title := feeds.DecodeEntities(strings.TrimSpace(entry.Title), entityPasses)
	if title == "" {
		return feeds.NewsItem{}, false
	}

	desc := feeds.StripMarkup(entry.Description)
	desc = feeds.Cut(feeds.DecodeEntities(desc, entityPasses), scanExcerpt)

	if relevance != nil && !relevance.IsRelevant(title+" "+desc) {
		return feeds.NewsItem{}, false
	}

	link := strings.TrimSpace(entry.Link)
	tag := src.Tag
	if tag == "" {
		tag = feeds.TagBreaking
	}

	return feeds.NewsItem{
		ID:      feeds.HashID(title, link),
		Type:    feeds.TypeNews,
		Tag:     tag,
		Source:  src.Name,
		Title:   title,
		Excerpt: feeds.Cut(desc, excerptLength),
		URL:     link,
		Time:    entryTime(entry, feedType, now),
	}, true
}

// entryTime picks pubDate for RSS and updated-then-published for Atom. When
// the raw text is not in an accepted layout, the parser's own reading is
// used before falling back to now.
func entryTime(entry *gofeed.Item, feedType string, now time.Time) time.Time {
	raws := []string{entry.Published, entry.Updated}
	parsed := []*time.Time{entry.PublishedParsed, entry.UpdatedParsed}
	if feedType == "atom" {
		raws[0], raws[1] = raws[1], raws[0]
		parsed[0], parsed[1] = parsed[1], parsed[0]
	}

	for _, raw := range raws {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		if t, ok := feeds.NormalizeTime(raw); ok {
			return t
		}
		break
	}
	for _, p := range parsed {
		if p != nil {
			return p.UTC().Truncate(time.Second)
		}
	}
	return now.UTC().Truncate(time.Second)
}
