package news

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/selivandex/sentiment-fusion/pkg/logger"
	"github.com/selivandex/sentiment-fusion/pkg/metrics"
	"github.com/selivandex/sentiment-fusion/pkg/models"
)

// CorpusWriter is the storage side of ingestion
type CorpusWriter interface {
	ExistingTitles(ctx context.Context, code string) (map[string]bool, error)
	InsertDocuments(ctx context.Context, docs []models.RawDocument) (int, error)
}

// IngestorConfig holds the fetch window and per-kind caps
type IngestorConfig struct {
	WindowDays int
	Limits     map[models.SourceKind]int
}

// DefaultLimits caps how many newest items of each kind one fetch keeps
func DefaultLimits() map[models.SourceKind]int {
	return map[models.SourceKind]int{
		models.SourceNews:   20,
		models.SourceReport: 10,
		models.SourceForum:  20,
	}
}

// Ingestor pulls documents from every enabled provider into the corpus
type Ingestor struct {
	providers []Provider
	store     CorpusWriter
	window    time.Duration
	limits    map[models.SourceKind]int
	now       func() time.Time
}

// NewIngestor creates new ingestor
func NewIngestor(providers []Provider, store CorpusWriter, cfg IngestorConfig) *Ingestor {
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 10
	}
	if cfg.Limits == nil {
		cfg.Limits = DefaultLimits()
	}

	return &Ingestor{
		providers: providers,
		store:     store,
		window:    time.Duration(cfg.WindowDays) * 24 * time.Hour,
		limits:    cfg.Limits,
		now:       time.Now,
	}
}

// FetchRaw fetches, filters and stores new documents for an instrument and
// returns how many were inserted. A failing provider is skipped; the fetch
// fails only when every enabled provider failed or the store errors.
func (ing *Ingestor) FetchRaw(ctx context.Context, code string) (int, error) {
	type result struct {
		provider Provider
		items    []Item
		err      error
	}

	enabled := make([]Provider, 0, len(ing.providers))
	for _, p := range ing.providers {
		if p.IsEnabled() {
			enabled = append(enabled, p)
		}
	}
	if len(enabled) == 0 {
		logger.Debug("no document providers enabled", zap.String("instrument", code))
		return 0, nil
	}

	results := make(chan result, len(enabled))
	for _, provider := range enabled {
		go func(p Provider) {
			items, err := p.Fetch(ctx, code)
			results <- result{provider: p, items: items, err: err}
		}(provider)
	}

	byKind := make(map[models.SourceKind][]Item)
	var errs []error
	for range enabled {
		res := <-results
		if res.err != nil {
			metrics.UpstreamErrors.WithLabelValues(res.provider.GetName()).Inc()
			logger.Warn("document provider failed",
				zap.String("provider", res.provider.GetName()),
				zap.String("instrument", code),
				zap.Error(res.err),
			)
			errs = append(errs, res.err)
			continue
		}
		byKind[res.provider.Kind()] = append(byKind[res.provider.Kind()], res.items...)
	}

	if len(errs) == len(enabled) {
		return 0, fmt.Errorf("all document providers failed: %w", errors.Join(errs...))
	}

	existing, err := ing.store.ExistingTitles(ctx, code)
	if err != nil {
		return 0, fmt.Errorf("failed to load existing titles: %w", err)
	}

	cutoff := ing.now().Add(-ing.window)
	seen := make(map[string]bool)
	var docs []models.RawDocument

	for _, kind := range []models.SourceKind{models.SourceNews, models.SourceReport, models.SourceForum} {
		items := recent(byKind[kind], cutoff, ing.limits[kind])
		for _, item := range items {
			if existing[item.Title] || seen[item.Title] {
				continue
			}
			seen[item.Title] = true

			docs = append(docs, models.RawDocument{
				ID:             uuid.NewString(),
				InstrumentCode: code,
				Title:          item.Title,
				Content:        item.Content,
				URL:            item.URL,
				Source:         kind,
				PublishedAt:    item.PublishedAt,
			})
		}
	}

	if len(docs) == 0 {
		logger.Info("no new documents", zap.String("instrument", code))
		return 0, nil
	}

	inserted, err := ing.store.InsertDocuments(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("failed to store documents: %w", err)
	}

	for _, doc := range docs {
		metrics.DocumentsIngested.WithLabelValues(string(doc.Source)).Inc()
	}

	logger.Info("documents ingested",
		zap.String("instrument", code),
		zap.Int("inserted", inserted),
		zap.Int("failed_providers", len(errs)),
	)

	return inserted, nil
}

// recent keeps titled items published after cutoff, newest first, at most limit
func recent(items []Item, cutoff time.Time, limit int) []Item {
	kept := make([]Item, 0, len(items))
	for _, item := range items {
		if item.Title == "" || item.PublishedAt.Before(cutoff) {
			continue
		}
		kept = append(kept, item)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].PublishedAt.After(kept[j].PublishedAt)
	})

	if limit > 0 && len(kept) > limit {
		kept = kept[:limit]
	}
	return kept
}
