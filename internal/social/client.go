// Package social turns posts from a vetted set of accounts into OSINT news
// items.
//
// Posts come from the X recent-search API. Each one runs a short rejection
// ladder (author, length, keywords, age, engagement, score); survivors are
// capped per account and may be reranked by a language model.
package social

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/abelbrown/crisiswatch/internal/feeds"
)

// DefaultSearchURL is the X API v2 recent-search endpoint.
const DefaultSearchURL = "https://api.x.com/2/tweets/search/recent"

// Metrics are a post's public engagement counters.
type Metrics struct {
	Likes   int `json:"like_count"`
	Reposts int `json:"retweet_count"`
	Replies int `json:"reply_count"`
	Quotes  int `json:"quote_count"`
}

// Engagement weighs reposts double.
func (m Metrics) Engagement() int {
	return m.Likes + 2*m.Reposts + m.Replies + m.Quotes
}

// Post is one search hit.
type Post struct {
	ID        string  `json:"id"`
	AuthorID  string  `json:"author_id"`
	Text      string  `json:"text"`
	CreatedAt string  `json:"created_at"`
	Metrics   Metrics `json:"public_metrics"`
}

// User is an expanded author record.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Verified bool   `json:"verified"`
}

// SearchResponse is the subset of the recent-search reply we read.
type SearchResponse struct {
	Data     []Post `json:"data"`
	Includes struct {
		Users []User `json:"users"`
	} `json:"includes"`
}

// UsersByID indexes the expanded authors.
func (r SearchResponse) UsersByID() map[string]User {
	m := make(map[string]User, len(r.Includes.Users))
	for _, u := range r.Includes.Users {
		m[u.ID] = u
	}
	return m
}

// Client calls the recent-search endpoint with bearer auth.
type Client struct {
	token    string
	endpoint string
	client   *http.Client
}

// NewClient creates a search client. timeout bounds each call.
func NewClient(token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Client{
		token:    strings.TrimSpace(token),
		endpoint: DefaultSearchURL,
		client:   &http.Client{Timeout: timeout},
	}
}

// WithEndpoint points the client at another search URL.
func (c *Client) WithEndpoint(endpoint string) *Client {
	c.endpoint = endpoint
	return c
}

// Available returns true if a bearer token is configured.
func (c *Client) Available() bool {
	return c != nil && c.token != ""
}

// BuildQuery renders
// "(from:a OR from:b) (kw1 OR "two words") -is:retweet -is:reply -is:quote lang:en".
func BuildQuery(accounts, keywords []string) string {
	from := make([]string, 0, len(accounts))
	for _, a := range accounts {
		a = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(a)), "@")
		if a != "" {
			from = append(from, "from:"+a)
		}
	}

	terms := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if strings.Contains(kw, " ") {
			kw = `"` + kw + `"`
		}
		terms = append(terms, kw)
	}

	return fmt.Sprintf("(%s) (%s) -is:retweet -is:reply -is:quote lang:en",
		strings.Join(from, " OR "), strings.Join(terms, " OR "))
}

// clampResults keeps max_results inside the API's accepted range.
func clampResults(n int) int {
	return max(10, min(n, 100))
}

// Search runs one recent-search query. Failures wrap
// feeds.ErrCredentialMissing, feeds.ErrSourceUnavailable or
// feeds.ErrSourceMalformed.
func (c *Client) Search(ctx context.Context, query string, maxResults int) (SearchResponse, error) {
	if !c.Available() {
		return SearchResponse{}, feeds.ErrCredentialMissing
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("max_results", strconv.Itoa(clampResults(maxResults)))
	params.Set("tweet.fields", "created_at,author_id,text,public_metrics")
	params.Set("expansions", "author_id")
	params.Set("user.fields", "username,name,verified,public_metrics")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return SearchResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return SearchResponse{}, fmt.Errorf("%w: %v", feeds.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return SearchResponse{}, fmt.Errorf("%w: %v", feeds.ErrSourceUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return SearchResponse{}, fmt.Errorf("%w: HTTP %d", feeds.ErrSourceUnavailable, resp.StatusCode)
	}

	var out SearchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return SearchResponse{}, fmt.Errorf("%w: %v", feeds.ErrSourceMalformed, err)
	}
	return out, nil
}
