package cleanup

import (
	"context"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/selivandex/sentiment-fusion/internal/corpus"
	"github.com/selivandex/sentiment-fusion/pkg/logger"
	"github.com/selivandex/sentiment-fusion/pkg/models"
)

// Store is the slice of the corpus repository cleanup needs
type Store interface {
	DeleteDuplicates(ctx context.Context, code string) (int, error)
	ListSummaries(ctx context.Context, code string) ([]corpus.Summary, error)
	PurgeResults(ctx context.Context, documentIDs []string) (deleted int, reset int, err error)
}

// Service removes duplicate documents and analyses written in the wrong language
type Service struct {
	store Store
}

// NewService creates new cleanup service
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Cleanup deletes duplicate titles (keeping the newest copy), then drops
// results whose summary is mostly Latin text and queues those documents
// for another analysis
func (s *Service) Cleanup(ctx context.Context, code string) (*models.CleanupReport, error) {
	report := &models.CleanupReport{}

	deleted, err := s.store.DeleteDuplicates(ctx, code)
	if err != nil {
		return nil, err
	}
	report.DeletedDuplicates = deleted

	summaries, err := s.store.ListSummaries(ctx, code)
	if err != nil {
		return nil, err
	}

	var foreign []string
	for _, sm := range summaries {
		if IsForeignSummary(sm.Summary) {
			foreign = append(foreign, sm.DocumentID)
		}
	}

	if len(foreign) > 0 {
		purged, reset, err := s.store.PurgeResults(ctx, foreign)
		if err != nil {
			return nil, err
		}
		report.DeletedForeignSummaries = purged
		report.ResetForReanalysis = reset
	}

	logger.Info("corpus cleaned",
		zap.String("instrument", code),
		zap.Int("duplicates", report.DeletedDuplicates),
		zap.Int("foreign_summaries", report.DeletedForeignSummaries),
		zap.Int("reset", report.ResetForReanalysis),
	)

	return report, nil
}

// IsForeignSummary reports whether a summary longer than ten characters
// consists of more than half ASCII letters
func IsForeignSummary(summary string) bool {
	total := utf8.RuneCountInString(summary)
	if total <= 10 {
		return false
	}

	letters := 0
	for _, r := range summary {
		if r < utf8.RuneSelf && unicode.IsLetter(r) {
			letters++
		}
	}
	return float64(letters)/float64(total) > 0.5
}
