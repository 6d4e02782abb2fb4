package feeds

import (
	"fmt"
	"regexp"
	"strings"
)

// Relevance decides whether text is on-topic for the dashboard.
//
// A text is relevant when its lower-cased form contains any keyword as a
// plain substring. Matching is deliberately not tokenized so compound
// phrases ("strait of hormuz", "iran-israel") still hit. Market titles go
// through MarketTitle, which also rejects malformed placeholder titles.
type Relevance struct {
	keywords []string
	deny     []*regexp.Regexp
}

// NewRelevance builds a filter from keyword and denylist configuration.
// Keywords are lower-cased; empty entries are ignored. Every deny pattern
// must compile.
func NewRelevance(keywords, denyPatterns []string) (*Relevance, error) {
	r := &Relevance{keywords: make([]string, 0, len(keywords))}
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			r.keywords = append(r.keywords, kw)
		}
	}
	deny, err := compilePatterns(denyPatterns)
	if err != nil {
		return nil, err
	}
	r.deny = deny
	return r, nil
}

// MustRelevance is NewRelevance for static configuration.
func MustRelevance(keywords, denyPatterns []string) *Relevance {
	r, err := NewRelevance(keywords, denyPatterns)
	if err != nil {
		panic(err)
	}
	return r
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	result := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile deny pattern %q: %w", p, err)
		}
		result = append(result, re)
	}
	return result, nil
}

// IsRelevant reports whether text contains at least one keyword.
func (r *Relevance) IsRelevant(text string) bool {
	return r.Hits(text) > 0
}

// Hits counts how many distinct keywords occur in text.
func (r *Relevance) Hits(text string) int {
	lowered := strings.ToLower(text)
	n := 0
	for _, kw := range r.keywords {
		if strings.Contains(lowered, kw) {
			n++
		}
	}
	return n
}

// MarketTitle is the stricter market variant: the title must be relevant and
// must not match any deny pattern, even when a keyword matched.
func (r *Relevance) MarketTitle(title string) bool {
	lowered := strings.ToLower(strings.TrimSpace(title))
	if lowered == "" || !r.IsRelevant(lowered) {
		return false
	}
	for _, re := range r.deny {
		if re.MatchString(lowered) {
			return false
		}
	}
	return true
}

// Keywords returns a copy of the configured keywords.
func (r *Relevance) Keywords() []string {
	out := make([]string, len(r.keywords))
	copy(out, r.keywords)
	return out
}
