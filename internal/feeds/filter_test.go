package feeds

import (
	"testing"
)

func testRelevance(t *testing.T) *Relevance {
	t.Helper()
	r, err := NewRelevance(DefaultKeywords, DefaultMarketDenyPatterns)
	if err != nil {
		t.Fatalf("NewRelevance: %v", err)
	}
	return r
}

func TestIsRelevant(t *testing.T) {
	r := testRelevance(t)

	tests := []struct {
		text string
		want bool
	}{
		{"Explosions reported near Tehran airport", true},
		{"IRGC navy seizes tanker in the STRAIT of Hormuz", true},
		{"Iran-Israel tensions rise", true},
		{"Houthis claim strike on Red Sea shipping", true},
		{"Local bakery wins award", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := r.IsRelevant(tt.text); got != tt.want {
			t.Errorf("IsRelevant(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestIsRelevantSubstringMatch(t *testing.T) {
	r := MustRelevance([]string{"iran"}, nil)
	// Substring matching is intentionally permissive.
	if !r.IsRelevant("Iranian officials respond") {
		t.Error("expected substring match for 'Iranian'")
	}
}

func TestHitsCountsDistinctKeywords(t *testing.T) {
	r := MustRelevance([]string{"iran", "tehran", "hormuz"}, nil)
	if got := r.Hits("Tehran says Iran will keep Hormuz open, Iran insists"); got != 3 {
		t.Errorf("Hits() = %d, want 3", got)
	}
	if got := r.Hits("nothing here"); got != 0 {
		t.Errorf("Hits() = %d, want 0", got)
	}
}

func TestMarketTitleRejectsPlaceholders(t *testing.T) {
	r := testRelevance(t)

	tests := []struct {
		title string
		want  bool
	}{
		{"US next strikes Iran on...?", false},
		{"Iran Strike on Israel by…?", false},
		{"Iran Strike on Israel byâ€¦?", false},
		{"Odds of Khamenei out by March 31 over__ in February?", false},
		{"Will Iran close the Strait of Hormuz by 2027?", true},
		{"Will the Iranian regime fall by March 31?", true},
		{"Will ETH be above $5,000?", false},
		{"   ", false},
	}

	for _, tt := range tests {
		if got := r.MarketTitle(tt.title); got != tt.want {
			t.Errorf("MarketTitle(%q) = %v, want %v", tt.title, got, tt.want)
		}
	}
}

func TestNewRelevanceBadPattern(t *testing.T) {
	if _, err := NewRelevance([]string{"iran"}, []string{"("}); err == nil {
		t.Error("expected error for invalid deny pattern")
	}
}

func TestRelevanceAlternateConfig(t *testing.T) {
	r := MustRelevance([]string{"  Taiwan Strait ", ""}, nil)
	if got := r.Keywords(); len(got) != 1 || got[0] != "taiwan strait" {
		t.Errorf("Keywords() = %v, want [taiwan strait]", got)
	}
	if !r.IsRelevant("PLA drills in the Taiwan Strait") {
		t.Error("expected match with regional keyword set")
	}
	if r.IsRelevant("Tehran") {
		t.Error("default keywords must not leak into a custom filter")
	}
}
