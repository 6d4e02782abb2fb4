// Package rerank asks a language model to pick and order candidates by
// enumerated index.
//
// The failure policy is fail-open: a missing credential, transport error,
// HTTP error or unreadable reply leaves the candidate list untouched. Only a
// literal "NONE" reply filters everything out.
package rerank

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/abelbrown/crisiswatch/internal/brain"
	"github.com/abelbrown/crisiswatch/internal/feeds"
	"github.com/abelbrown/crisiswatch/internal/logging"
	"github.com/abelbrown/crisiswatch/internal/otel"
	"golang.org/x/time/rate"
)

// Outcome tags recorded for every invocation.
const (
	ResultNotRun          = "not_run"
	ResultNoItems         = "no_items"
	ResultNoAPIKey        = "no_api_key"
	ResultNetworkError    = "network_error_passthrough"
	ResultRequestFailed   = "request_failed_passthrough"
	ResultParseFailed     = "parse_failed_passthrough"
	ResultUnparseable     = "unparseable_passthrough"
	ResultFilteredNone    = "filtered_none"
	ResultFilteredIndices = "filtered_indices"
)

const (
	errorDetailMax  = 180
	defaultTimeout  = 6 * time.Second
	limiterInterval = 250 * time.Millisecond
	limiterBurst    = 2
)

// HTTPResult returns the outcome tag for a non-200 model reply.
func HTTPResult(status int) string {
	return fmt.Sprintf("http_%d_passthrough", status)
}

// Kind classifies a Ranking.
type Kind int

const (
	// Passthrough keeps the candidates as given.
	Passthrough Kind = iota
	// None is an explicit judgement that no candidate qualifies.
	None
	// Indices selects and orders candidates by Ranking.Indices.
	Indices
)

func (k Kind) String() string {
	switch k {
	case Passthrough:
		return "passthrough"
	case None:
		return "none"
	case Indices:
		return "indices"
	default:
		return "unknown"
	}
}

// Meta describes one rerank invocation. It is serialized into the response
// document's debug counters.
type Meta struct {
	InputCount  int    `json:"inputCount"`
	OutputCount int    `json:"outputCount"`
	LLMEnabled  bool   `json:"llmEnabled"`
	LLMApplied  bool   `json:"llmApplied"`
	Result      string `json:"result"`
	Model       string `json:"model,omitempty"`
	HTTPStatus  int    `json:"httpStatus,omitempty"`
	ErrorDetail string `json:"errorDetail,omitempty"`
}

// Ranking is the reranker's verdict over n candidates.
type Ranking struct {
	Kind    Kind
	Indices []int // zero-based, distinct, in ranked order
	Meta    Meta
}

// Prompt is one rendered request.
type Prompt struct {
	System    string
	User      string
	Model     string
	MaxTokens int
	MaxKeep   int // upper bound on returned indices; 0 means all candidates
}

// Reranker wraps a brain.Provider with pacing and the fail-open policy.
type Reranker struct {
	provider brain.Provider
	limiter  *rate.Limiter
	timeout  time.Duration
	events   *otel.Logger
	comp     string
}

// New creates a Reranker. A nil or unavailable provider yields a reranker
// that always passes through with "no_api_key".
func New(provider brain.Provider, timeout time.Duration, events *otel.Logger) *Reranker {
	if provider == nil {
		provider = brain.Unavailable{}
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Reranker{
		provider: provider,
		limiter:  rate.NewLimiter(rate.Every(limiterInterval), limiterBurst),
		timeout:  timeout,
		events:   events,
		comp:     "rerank",
	}
}

// Available reports whether calls will reach a model.
func (r *Reranker) Available() bool {
	return r != nil && r.provider.Available()
}

// Name returns the backing provider name.
func (r *Reranker) Name() string {
	if r == nil {
		return "none"
	}
	return r.provider.Name()
}

// Rank asks the model to order n candidates described by p.
func (r *Reranker) Rank(ctx context.Context, p Prompt, n int) Ranking {
	start := time.Now()
	rk := r.rank(ctx, p, n)
	if r == nil {
		return rk
	}
	r.events.EmitContext(ctx, otel.Event{
		Time:   time.Now(),
		Level:  otel.LevelInfo,
		Kind:   otel.KindRerank,
		Comp:   r.comp,
		Dur:    time.Since(start),
		Count:  rk.Meta.OutputCount,
		Source: rk.Meta.Model,
		Reason: rk.Meta.Result,
		Err:    rk.Meta.ErrorDetail,
	})
	return rk
}

func (r *Reranker) rank(ctx context.Context, p Prompt, n int) Ranking {
	meta := Meta{InputCount: n, OutputCount: n, Result: ResultNotRun}
	if n == 0 {
		meta.Result = ResultNoItems
		return Ranking{Kind: Passthrough, Meta: meta}
	}
	if !r.Available() {
		meta.Result = ResultNoAPIKey
		return Ranking{Kind: Passthrough, Meta: meta}
	}

	meta.LLMEnabled = true
	meta.LLMApplied = true
	meta.Model = p.Model

	if err := r.limiter.Wait(ctx); err != nil {
		meta.Result = ResultRequestFailed
		meta.ErrorDetail = clip(err.Error())
		return Ranking{Kind: Passthrough, Meta: meta}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.provider.Generate(ctx, brain.Request{
		SystemPrompt: p.System,
		UserPrompt:   p.User,
		MaxTokens:    p.MaxTokens,
		Temperature:  0,
		Model:        p.Model,
	})
	if err != nil {
		classify(&meta, err)
		logging.Debug("rerank passthrough", "result", meta.Result, "error", err)
		return Ranking{Kind: Passthrough, Meta: meta}
	}
	if resp.Model != "" {
		meta.Model = resp.Model
	}

	text := strings.TrimSpace(resp.Content)
	maxKeep := p.MaxKeep
	if maxKeep <= 0 || maxKeep > n {
		maxKeep = n
	}
	ids := ExtractRankedIDs(text, maxKeep, n)
	if len(ids) == 0 {
		if strings.EqualFold(text, "NONE") {
			meta.OutputCount = 0
			meta.Result = ResultFilteredNone
			return Ranking{Kind: None, Meta: meta}
		}
		meta.Result = ResultUnparseable
		meta.ErrorDetail = clip(text)
		return Ranking{Kind: Passthrough, Meta: meta}
	}

	indices := make([]int, len(ids))
	for i, id := range ids {
		indices[i] = id - 1
	}
	meta.OutputCount = len(indices)
	meta.Result = ResultFilteredIndices
	return Ranking{Kind: Indices, Indices: indices, Meta: meta}
}

// classify maps a provider error onto its outcome tag.
func classify(meta *Meta, err error) {
	var httpErr *brain.HTTPError
	var urlErr *url.Error
	switch {
	case errors.As(err, &httpErr):
		meta.Result = HTTPResult(httpErr.Status)
		meta.HTTPStatus = httpErr.Status
		meta.ErrorDetail = clip(httpErr.Body)
	case errors.Is(err, brain.ErrNotConfigured):
		meta.LLMEnabled = false
		meta.LLMApplied = false
		meta.Result = ResultNoAPIKey
	case errors.Is(err, brain.ErrMalformedResponse):
		meta.Result = ResultParseFailed
		meta.ErrorDetail = clip(err.Error())
	case errors.As(err, &urlErr), errors.Is(err, context.DeadlineExceeded):
		meta.Result = ResultNetworkError
		meta.ErrorDetail = clip(err.Error())
	default:
		meta.Result = ResultRequestFailed
		meta.ErrorDetail = clip(err.Error())
	}
}

var digitsRe = regexp.MustCompile(`\d+`)

// ExtractRankedIDs pulls 1-based ids out of free-form model output. Ids
// outside [1, maxIndex] and repeats are skipped; first-seen order is kept;
// at most maxCount ids are returned.
func ExtractRankedIDs(text string, maxCount, maxIndex int) []int {
	if text == "" || maxCount <= 0 {
		return nil
	}
	var ranked []int
	seen := make(map[int]bool)
	for _, tok := range digitsRe.FindAllString(text, -1) {
		idx, err := strconv.Atoi(tok)
		if err != nil || idx < 1 || idx > maxIndex || seen[idx] {
			continue
		}
		seen[idx] = true
		ranked = append(ranked, idx)
		if len(ranked) >= maxCount {
			break
		}
	}
	return ranked
}

// Apply projects a Ranking onto the candidates it was computed for.
func Apply[T any](items []T, rk Ranking) []T {
	switch rk.Kind {
	case None:
		return []T{}
	case Indices:
		out := make([]T, 0, len(rk.Indices))
		for _, i := range rk.Indices {
			if i >= 0 && i < len(items) {
				out = append(out, items[i])
			}
		}
		return out
	default:
		return items
	}
}

func clip(s string) string {
	return feeds.Cut(strings.TrimSpace(s), errorDetailMax)
}
