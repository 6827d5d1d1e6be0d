package scoring

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/selivandex/sentiment-fusion/internal/adapters/ai"
	"github.com/selivandex/sentiment-fusion/pkg/logger"
	"github.com/selivandex/sentiment-fusion/pkg/models"
)

// DefaultConcurrency bounds parallel scorer calls within one batch
const DefaultConcurrency = 5

// Store loads documents and persists their results
type Store interface {
	GetByIDs(ctx context.Context, ids []string) ([]models.RawDocument, error)
	SaveResults(ctx context.Context, results []models.SentimentResult) error
}

// Service scores batches of stored documents
type Service struct {
	store       Store
	scorer      ai.Scorer
	concurrency int
}

// NewService creates new scoring service
func NewService(store Store, scorer ai.Scorer, concurrency int) *Service {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Service{store: store, scorer: scorer, concurrency: concurrency}
}

// AnalyzeBatch scores every document in ids and stores the results.
// Nothing is written unless every document scored successfully.
func (s *Service) AnalyzeBatch(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	start := time.Now()
	docs, err := s.store.GetByIDs(ctx, ids)
	if err != nil {
		return 0, err
	}

	results := make([]models.SentimentResult, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, doc := range docs {
		i, doc := i, doc
		g.Go(func() error {
			score, err := s.scorer.Score(gctx, doc)
			if err != nil {
				return fmt.Errorf("failed to score document %s: %w", doc.ID, err)
			}
			results[i] = ToResult(doc, score)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}

	if err := s.store.SaveResults(ctx, results); err != nil {
		return 0, err
	}

	logger.Debug("batch scored",
		zap.String("scorer", s.scorer.GetName()),
		zap.Int("documents", len(results)),
		zap.Duration("duration", time.Since(start)),
	)

	return len(results), nil
}

// ToResult places the score in the channel matching the document source:
// forum posts feed the forum score, everything else the news score
func ToResult(doc models.RawDocument, score ai.Score) models.SentimentResult {
	result := models.SentimentResult{
		DocumentID: doc.ID,
		Summary:    score.Summary,
	}
	if doc.Source.IsForum() {
		result.ForumScore = models.Float64Ptr(score.Value)
	} else {
		result.NewsScore = models.Float64Ptr(score.Value)
	}
	return result
}
