package live

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/abelbrown/crisiswatch/internal/brain"
	"github.com/abelbrown/crisiswatch/internal/config"
	"github.com/abelbrown/crisiswatch/internal/feeds"
	"github.com/abelbrown/crisiswatch/internal/fetch"
	"github.com/abelbrown/crisiswatch/internal/markets"
	"github.com/abelbrown/crisiswatch/internal/metrics"
	"github.com/abelbrown/crisiswatch/internal/otel"
	"github.com/abelbrown/crisiswatch/internal/rerank"
	"github.com/abelbrown/crisiswatch/internal/social"
	"github.com/abelbrown/crisiswatch/internal/work"
)

// Provider picks the first configured model backend: Anthropic, then
// OpenAI. Without either it returns brain.Unavailable.
func Provider(cfg *config.Config) brain.Provider {
	claude := brain.NewClaudeProvider(cfg.Credentials.AnthropicKey, cfg.Models.SocialModel, cfg.Models.Timeout)
	if cfg.Models.AnthropicURL != "" {
		claude = claude.WithEndpoint(cfg.Models.AnthropicURL)
	}
	openai := brain.NewOpenAIProvider(cfg.Credentials.OpenAIKey, cfg.Models.OpenAIModel, cfg.Models.OpenAIBaseURL, cfg.Models.Timeout)
	return brain.Select(claude, openai)
}

// FromConfig wires every pipeline stage from cfg.
func FromConfig(cfg *config.Config, m *metrics.Metrics, events *otel.Logger) (*Builder, error) {
	relevance, err := feeds.NewRelevance(cfg.Feeds.Keywords, cfg.Feeds.MarketDenyPatterns)
	if err != nil {
		return nil, fmt.Errorf("relevance: %w", err)
	}

	pool := work.NewPool(cfg.Feeds.Workers, cfg.Feeds.Timeout, cfg.Feeds.Deadline)
	collector := fetch.NewCollector(fetch.NewFetcher(cfg.Feeds.Timeout, relevance), pool, events)

	provider := Provider(cfg)
	reranker := rerank.New(provider, cfg.Models.Timeout, events)

	client := social.NewClient(cfg.Credentials.XBearerToken, cfg.Feeds.SearchTimeout)
	if cfg.Feeds.SearchURL != "" {
		client = client.WithEndpoint(cfg.Feeds.SearchURL)
	}
	src := social.NewSource(client, social.NewScorer(cfg.Social), reranker,
		cfg.Models.SocialModel, cfg.Models.SocialMaxTokens, events)

	seed := cfg.Markets.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed>>1|1))

	return NewBuilder(Options{
		Sources:    cfg.Feeds.Sources,
		Collector:  collector,
		Social:     src,
		Ingestor:   markets.NewIngestor(markets.NewGammaClient(cfg.Markets.GammaURL, cfg.Markets.Timeout), relevance, events),
		Selector:   markets.NewSelector(reranker, cfg.Models.MarketModel, cfg.Models.MarketMaxTokens, events),
		Reconciler: markets.NewReconciler(markets.NewHistoryClient(cfg.Markets.ClobURL, cfg.Markets.HistoryTimeout), rng, events),

		NewsLimit:   cfg.News.Limit,
		SocialSlots: cfg.News.SocialSlots,
		MaxKeep:     cfg.Markets.MaxKeep,

		ModelProvider: provider.Name(),

		Metrics: m,
		Events:  events,
	}), nil
}
