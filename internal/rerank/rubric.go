package rerank

import (
	"fmt"
	"strings"

	"github.com/abelbrown/crisiswatch/internal/feeds"
)

// Rubric holds the instruction text for one reranking use.
type Rubric struct {
	System       string // optional system prompt
	Instructions string // leads the user prompt
}

// Rubrics define ranking criteria for the two reranked lists.
var Rubrics = map[string]Rubric{
	// Social posts: numbers or NONE, no system prompt
	"social": {
		Instructions: `You are filtering X posts for an Iran crisis monitoring dashboard.
Include posts directly relevant to Iran military, nuclear, IRGC, Hormuz, Hezbollah, US-Iran-Israel escalation, or market impacts from Iran conflict.
Reply with ONLY tweet numbers, comma-separated, or NONE.`,
	},

	// Dashboard market cards
	"markets": {
		System: "You are selecting prediction markets for an Iran crisis dashboard. " +
			"Prioritize strategic, decision-relevant markets about Iran conflict escalation, " +
			"regional spillover, regime stability, and macro-energy impacts. " +
			"Reject malformed placeholder markets and low-signal date-picker trivia. " +
			"Return only a comma-separated list of item numbers.",
		Instructions: `Pick up to %d items that are most relevant for crisis monitoring.
Return only item numbers, comma-separated (example: 3,1,7,2).`,
	},
}

// GetRubric returns a rubric by name. ok is false for unknown names.
func GetRubric(name string) (Rubric, bool) {
	r, ok := Rubrics[name]
	return r, ok
}

// SocialPrompt renders the enumerated post list as "N. @handle: title".
func SocialPrompt(items []feeds.NewsItem, model string, maxTokens int) Prompt {
	rubric := Rubrics["social"]
	lines := make([]string, len(items))
	for i, item := range items {
		source := item.Source
		if source == "" {
			source = "X"
		}
		lines[i] = fmt.Sprintf("%d. %s: %s", i+1, source, item.Title)
	}
	return Prompt{
		System:    rubric.System,
		User:      rubric.Instructions + "\n\nTweets:\n" + strings.Join(lines, "\n"),
		Model:     model,
		MaxTokens: maxTokens,
	}
}

// MarketPrompt renders candidate markets as
// "N. question | resolves DATE | yes P% | volume $V" and asks for up to
// maxKeep of them.
func MarketPrompt(markets []feeds.MarketEvent, maxKeep int, model string, maxTokens int) Prompt {
	rubric := Rubrics["markets"]
	lines := make([]string, len(markets))
	for i, m := range markets {
		resolution := m.ResolutionDate
		if resolution == "" {
			resolution = "unknown"
		}
		yes := "n/a"
		if o, ok := m.ChartOutcome(); ok {
			yes = fmt.Sprintf("%.1f", o.Probability)
		}
		vol := m.VolumeFormatted
		if vol == "" {
			vol = "n/a"
		}
		lines[i] = fmt.Sprintf("%d. %s | resolves %s | yes %s%% | volume %s",
			i+1, strings.TrimSpace(m.Question), resolution, yes, vol)
	}
	return Prompt{
		System:    rubric.System,
		User:      fmt.Sprintf(rubric.Instructions, maxKeep) + "\n\n" + strings.Join(lines, "\n"),
		Model:     model,
		MaxTokens: maxTokens,
		MaxKeep:   maxKeep,
	}
}
