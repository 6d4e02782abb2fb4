package social

import (
	"context"
	"strings"
	"time"

	"github.com/abelbrown/crisiswatch/internal/feeds"
	"github.com/abelbrown/crisiswatch/internal/logging"
	"github.com/abelbrown/crisiswatch/internal/otel"
	"github.com/abelbrown/crisiswatch/internal/rerank"
)

// Status tags for Debug.Status.
const (
	StatusNotRun        = "not_run"
	StatusNoToken       = "no_x_token"
	StatusNoPostsOrUser = "no_posts_or_users"
	StatusSearchFailed  = "search_failed"
	StatusOK            = "ok"
)

// Debug is the per-run counter block reported as meta.xDebug.
type Debug struct {
	Enabled           bool        `json:"xEnabled"`
	Fetched           int         `json:"xFetched"`
	Users             int         `json:"xUsers"`
	PassedScore       int         `json:"xPassedScore"`
	SelectedBeforeLLM int         `json:"xSelectedBeforeLlm"`
	AfterLLM          int         `json:"xAfterLlm"`
	DroppedByLLM      int         `json:"xDroppedByLlm"`
	LLM               rerank.Meta `json:"xLlm"`
	Status            string      `json:"xStatus"`
	Error             string      `json:"xError,omitempty"`
}

// Source produces reranked OSINT items from the search client.
type Source struct {
	client    *Client
	scorer    *Scorer
	reranker  *rerank.Reranker
	model     string
	maxTokens int
	events    *otel.Logger
}

// NewSource wires a search client, scorer and optional reranker. model and
// maxTokens configure the rerank call.
func NewSource(client *Client, scorer *Scorer, reranker *rerank.Reranker, model string, maxTokens int, events *otel.Logger) *Source {
	return &Source{
		client:    client,
		scorer:    scorer,
		reranker:  reranker,
		model:     model,
		maxTokens: maxTokens,
		events:    events,
	}
}

// Fetch searches, scores, selects and reranks. It never fails: every
// problem is reported through Debug and yields fewer items.
func (s *Source) Fetch(ctx context.Context, now time.Time) ([]feeds.NewsItem, Debug) {
	res, debug := s.fetch(ctx, now)
	return res.Data, debug
}

func (s *Source) fetch(ctx context.Context, now time.Time) (feeds.Result[[]feeds.NewsItem], Debug) {
	debug := Debug{
		LLM:    rerank.Meta{Result: rerank.ResultNotRun},
		Status: StatusNotRun,
	}
	if !s.client.Available() {
		debug.Status = StatusNoToken
		return feeds.Degraded[[]feeds.NewsItem](StatusNoToken, feeds.ErrCredentialMissing), debug
	}
	debug.Enabled = true

	cfg := s.scorer.Config()
	start := time.Now()
	resp, err := s.client.Search(ctx, BuildQuery(cfg.Accounts, cfg.Keywords), cfg.MaxResults)
	s.events.EmitContext(ctx, otel.Event{
		Time:  time.Now(),
		Level: levelFor(err),
		Kind:  otel.KindSocialFetch,
		Comp:  "social",
		Dur:   time.Since(start),
		Count: len(resp.Data),
		Err:   errString(err),
	})
	if err != nil {
		logging.Warn("social search failed", "error", err)
		debug.Status = StatusSearchFailed
		debug.Error = err.Error()
		return feeds.Degraded[[]feeds.NewsItem](StatusSearchFailed, err), debug
	}

	debug.Fetched = len(resp.Data)
	debug.Users = len(resp.Includes.Users)
	if len(resp.Data) == 0 || len(resp.Includes.Users) == 0 {
		debug.Status = StatusNoPostsOrUser
		return feeds.Empty[[]feeds.NewsItem](StatusNoPostsOrUser), debug
	}

	users := resp.UsersByID()
	var candidates []Candidate
	for _, post := range resp.Data {
		username := users[post.AuthorID].Username
		ok, score := s.scorer.Score(post, username, now)
		if !ok {
			continue
		}
		debug.PassedScore++
		candidates = append(candidates, Candidate{
			Score:    score,
			Username: strings.ToLower(username),
			Item:     Normalize(post, username, now),
		})
	}
	s.events.EmitContext(ctx, otel.Event{
		Time:  time.Now(),
		Level: otel.LevelInfo,
		Kind:  otel.KindSocialScore,
		Comp:  "social",
		Count: debug.PassedScore,
		Extra: map[string]any{"fetched": debug.Fetched},
	})

	selected := Select(candidates, cfg.MaxItems, cfg.MaxPerAccount)
	debug.SelectedBeforeLLM = len(selected)

	rk := s.reranker.Rank(ctx, rerank.SocialPrompt(selected, s.model, s.maxTokens), len(selected))
	kept := rerank.Apply(selected, rk)

	debug.LLM = rk.Meta
	debug.AfterLLM = len(kept)
	debug.DroppedByLLM = len(selected) - len(kept)
	debug.Status = StatusOK

	if len(kept) == 0 {
		return feeds.Empty[[]feeds.NewsItem](rk.Meta.Result), debug
	}
	return feeds.OK(kept, rk.Meta.Result), debug
}

func levelFor(err error) otel.Level {
	if err != nil {
		return otel.LevelWarn
	}
	return otel.LevelInfo
}

func errString(err error) string {
	if err != nil {
		return err.Error()
	}
	return ""
}
