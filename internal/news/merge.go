// Package news merges feed and social items into the dashboard's news list.
package news

import (
	"sort"
	"strings"

	"github.com/abelbrown/crisiswatch/internal/feeds"
)

// Defaults for the dashboard list.
const (
	DefaultLimit       = 25
	DefaultSocialSlots = 5
	dedupeKeyLength    = 80
)

// DedupeKey is the item's lower-cased title reduced to [a-z0-9], cut to 80
// characters. Untitled items key on URL, then ID.
func DedupeKey(item feeds.NewsItem) string {
	var b strings.Builder
	for _, r := range strings.ToLower(item.Title) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if key := b.String(); key != "" {
		return feeds.Cut(key, dedupeKeyLength)
	}
	fallback := item.URL
	if fallback == "" {
		fallback = item.ID
	}
	return feeds.Cut(strings.ToLower(fallback), dedupeKeyLength)
}

// IsSocial reports whether an item came from a social post.
func IsSocial(item feeds.NewsItem) bool {
	return strings.HasPrefix(item.Source, "@") || strings.HasPrefix(item.URL, "https://x.com/")
}

// Dedupe drops items whose key was already seen. The first occurrence wins.
func Dedupe(items []feeds.NewsItem) []feeds.NewsItem {
	seen := make(map[string]bool, len(items))
	out := make([]feeds.NewsItem, 0, len(items))
	for _, it := range items {
		key := DedupeKey(it)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, it)
	}
	return out
}

func sortByTimeDesc(items []feeds.NewsItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Time.After(items[j].Time)
	})
}

// Merge combines primary (feed) and secondary (social) items into at most
// limit distinct items, newest first. When primary and secondary report
// the same story, the primary copy is kept. At least
// min(minSocial, distinct social items, limit) social items are included.
func Merge(primary, secondary []feeds.NewsItem, limit, minSocial int) []feeds.NewsItem {
	combined := make([]feeds.NewsItem, 0, len(primary)+len(secondary))
	combined = append(combined, primary...)
	combined = append(combined, secondary...)

	unique := Dedupe(combined)
	sortByTimeDesc(unique)
	if limit <= 0 {
		return []feeds.NewsItem{}
	}

	var social, other []int
	for i, it := range unique {
		if IsSocial(it) {
			social = append(social, i)
		} else {
			other = append(other, i)
		}
	}

	reserved := max(0, min(minSocial, len(social), limit))
	picked := make([]int, 0, limit)
	picked = append(picked, other[:min(len(other), limit-reserved)]...)
	picked = append(picked, social[:reserved]...)

	used := make(map[int]bool, len(picked))
	for _, i := range picked {
		used[i] = true
	}
	for i := range unique {
		if len(picked) >= limit {
			break
		}
		if !used[i] {
			picked = append(picked, i)
			used[i] = true
		}
	}

	// unique is already newest first, so index order is time order.
	sort.Ints(picked)
	out := make([]feeds.NewsItem, 0, len(picked))
	for _, i := range picked {
		out = append(out, unique[i])
	}
	return out
}
