package social

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/abelbrown/crisiswatch/internal/feeds"
)

// Config holds the account allow-list and scoring thresholds.
type Config struct {
	Accounts      []string           `mapstructure:"accounts" yaml:"accounts"`
	Weights       map[string]float64 `mapstructure:"weights" yaml:"weights"`
	Keywords      []string           `mapstructure:"keywords" yaml:"keywords"`
	MaxResults    int                `mapstructure:"max_results" yaml:"max_results"`
	MaxItems      int                `mapstructure:"max_items" yaml:"max_items"`
	MaxPerAccount int                `mapstructure:"max_per_account" yaml:"max_per_account"`
	MaxAge        time.Duration      `mapstructure:"max_age" yaml:"max_age"`
	MinTextLength int                `mapstructure:"min_text_length" yaml:"min_text_length"`
	MinEngagement int                `mapstructure:"min_engagement" yaml:"min_engagement"`
	MinScore      float64            `mapstructure:"min_score" yaml:"min_score"`
}

// DefaultConfig returns the vetted account set and thresholds.
func DefaultConfig() Config {
	return Config{
		Accounts: []string{"auroraintel", "sentdefender", "intelcrab", "faytuks", "loaboringwar"},
		Weights: map[string]float64{
			"auroraintel":  1.25,
			"sentdefender": 1.15,
			"intelcrab":    1.05,
			"faytuks":      1.0,
			"loaboringwar": 1.0,
		},
		Keywords: []string{
			"iran", "tehran", "irgc", "hormuz", "strait of hormuz",
			"nuclear", "hezbollah", "israel", "us",
		},
		MaxResults:    40,
		MaxItems:      6,
		MaxPerAccount: 2,
		MaxAge:        12 * time.Hour,
		MinTextLength: 40,
		MinEngagement: 12,
		MinScore:      22,
	}
}

// Scorer applies the rejection ladder to posts.
type Scorer struct {
	cfg     Config
	allowed map[string]bool
	weights map[string]float64
}

// NewScorer creates a Scorer. Account names and weight keys are matched
// case-insensitively.
func NewScorer(cfg Config) *Scorer {
	s := &Scorer{
		cfg:     cfg,
		allowed: make(map[string]bool, len(cfg.Accounts)),
		weights: make(map[string]float64, len(cfg.Weights)),
	}
	for _, a := range cfg.Accounts {
		s.allowed[normalizeHandle(a)] = true
	}
	for k, w := range cfg.Weights {
		s.weights[normalizeHandle(k)] = w
	}
	s.cfg.Keywords = make([]string, len(cfg.Keywords))
	for i, kw := range cfg.Keywords {
		s.cfg.Keywords[i] = strings.ToLower(kw)
	}
	return s
}

// Config returns the scorer's configuration.
func (s *Scorer) Config() Config {
	return s.cfg
}

func normalizeHandle(h string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(h)), "@")
}

var urlRe = regexp.MustCompile(`https?://\S+`)

// SanitizeText removes links and collapses whitespace.
func SanitizeText(text string) string {
	return strings.Join(strings.Fields(urlRe.ReplaceAllString(text, "")), " ")
}

// Weight returns the account's weight, 1.0 when unlisted.
func (s *Scorer) Weight(username string) float64 {
	if w, ok := s.weights[normalizeHandle(username)]; ok {
		return w
	}
	return 1.0
}

// Score runs the rejection ladder. Rejected posts score 0. The composite
// score is engagement + 4 per keyword hit + 5 x account weight, rounded to
// two decimals.
func (s *Scorer) Score(post Post, username string, now time.Time) (accepted bool, score float64) {
	handle := normalizeHandle(username)
	if !s.allowed[handle] {
		return false, 0
	}

	cleaned := SanitizeText(post.Text)
	if utf8.RuneCountInString(cleaned) < s.cfg.MinTextLength {
		return false, 0
	}

	hits := s.keywordHits(strings.ToLower(cleaned))
	if hits == 0 {
		return false, 0
	}

	created, ok := feeds.NormalizeTime(post.CreatedAt)
	if !ok {
		return false, 0
	}
	if created.Before(now.Add(-s.cfg.MaxAge)) {
		return false, 0
	}

	engagement := post.Metrics.Engagement()
	if engagement < s.cfg.MinEngagement {
		return false, 0
	}

	score = float64(engagement) + float64(hits*4) + s.Weight(handle)*5
	if score < s.cfg.MinScore {
		return false, 0
	}
	return true, math.Round(score*100) / 100
}

func (s *Scorer) keywordHits(lower string) int {
	n := 0
	for _, kw := range s.cfg.Keywords {
		if kw != "" && strings.Contains(lower, kw) {
			n++
		}
	}
	return n
}

// Normalize converts an accepted post to an OSINT item. now stamps posts
// whose creation time cannot be read.
func Normalize(post Post, username string, now time.Time) feeds.NewsItem {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	postID := strings.TrimSpace(post.ID)
	cleaned := SanitizeText(post.Text)

	source := "X"
	if username != "" {
		source = "@" + username
	}
	link := "https://x.com"
	if username != "" && postID != "" {
		link = "https://x.com/" + username + "/status/" + postID
	}

	title := feeds.Truncate(cleaned, 160)
	id := "x-" + postID
	if postID == "" {
		id = "x-" + feeds.HashID(title, source, link)[:12]
	}

	return feeds.NewsItem{
		ID:      id,
		Type:    feeds.TypeOSINT,
		Tag:     feeds.TagOSINT,
		Source:  source,
		Title:   title,
		Excerpt: feeds.Truncate(cleaned, 180),
		URL:     link,
		Time:    feeds.NormalizeOr(post.CreatedAt, now),
	}
}

// Candidate is an accepted post awaiting selection.
type Candidate struct {
	Score    float64
	Username string
	Item     feeds.NewsItem
}

// Select orders candidates by (score desc, time desc) and greedily takes up
// to maxItems, at most perAccount from any one account. An account at its
// cap is skipped without consuming a slot.
func Select(candidates []Candidate, maxItems, perAccount int) []feeds.NewsItem {
	if maxItems <= 0 {
		return []feeds.NewsItem{}
	}
	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].Item.Time.After(sorted[j].Item.Time)
	})

	selected := make([]feeds.NewsItem, 0, min(maxItems, len(sorted)))
	counts := make(map[string]int)
	for _, c := range sorted {
		if len(selected) >= maxItems {
			break
		}
		if counts[c.Username] >= perAccount {
			continue
		}
		selected = append(selected, c.Item)
		counts[c.Username]++
	}
	return selected
}
