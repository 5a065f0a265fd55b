package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/match-cli/internal/confidence"
	"github.com/sells-group/match-cli/internal/config"
	"github.com/sells-group/match-cli/internal/enrich"
	"github.com/sells-group/match-cli/internal/merge"
	"github.com/sells-group/match-cli/internal/scorer"
	"github.com/sells-group/match-cli/internal/semantic"
	"github.com/sells-group/match-cli/internal/store"
	"github.com/sells-group/match-cli/pkg/jina"
)

// engine wires the full scoring stack for a command invocation.
type engine struct {
	Store      store.Store
	Rules      *config.Rules
	Calculator *confidence.Calculator
	Merger     *merge.Merger
	Adapter    *semantic.Adapter
	Scorer     *scorer.Scorer
	Aggregator *scorer.Aggregator
	Ingestor   *enrich.Ingestor
}

// initEngine builds the engine from loaded configuration. The embedding
// client is optional: without an API key the semantic adapter runs on its
// lexical fallback.
func initEngine(ctx context.Context) (*engine, error) {
	rules, err := config.LoadRules(cfg.Rules.Path)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	var embedder semantic.Embedder
	if cfg.Jina.Key != "" {
		embedder = jina.NewClient(cfg.Jina.Key, cfg.Jina.Model,
			jina.WithBaseURL(cfg.Jina.BaseURL),
			jina.WithRateLimit(cfg.Jina.RatePerSec),
		)
	}
	adapter := semantic.NewAdapter(embedder, rules.Similarity,
		time.Duration(cfg.Jina.TimeoutSecs)*time.Second)

	calc := confidence.NewCalculator(rules.Confidence)
	merger := merge.NewMerger(calc, rules.Merge)
	sc := scorer.NewScorer(calc, adapter, rules.Scoring, rules.Merge)

	agg, err := scorer.NewAggregator(sc, rules.Aggregation)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "init aggregator")
	}

	return &engine{
		Store:      st,
		Rules:      rules,
		Calculator: calc,
		Merger:     merger,
		Adapter:    adapter,
		Scorer:     sc,
		Aggregator: agg,
		Ingestor:   enrich.NewIngestor(st, merger),
	}, nil
}

// Close releases engine resources.
func (e *engine) Close() {
	_ = e.Store.Close()
}
