package scoring

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selivandex/sentiment-fusion/internal/adapters/ai"
	"github.com/selivandex/sentiment-fusion/pkg/models"
)

type memStore struct {
	mu      sync.Mutex
	docs    map[string]models.RawDocument
	saved   []models.SentimentResult
	loadErr error
}

func (m *memStore) GetByIDs(_ context.Context, ids []string) ([]models.RawDocument, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	out := make([]models.RawDocument, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.docs[id])
	}
	return out, nil
}

func (m *memStore) SaveResults(_ context.Context, results []models.SentimentResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, results...)
	return nil
}

type stubScorer struct {
	failOn   string
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (s *stubScorer) Score(_ context.Context, doc models.RawDocument) (ai.Score, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if doc.ID == s.failOn {
		return ai.Score{}, errors.New("model unavailable")
	}
	return ai.Score{Value: 0.4, Summary: "摘要 " + doc.Title}, nil
}

func (s *stubScorer) GetName() string { return "stub" }

func newStore(docs ...models.RawDocument) *memStore {
	m := &memStore{docs: make(map[string]models.RawDocument)}
	for _, d := range docs {
		m.docs[d.ID] = d
	}
	return m
}

func TestAnalyzeBatch_RoutesScoresBySource(t *testing.T) {
	store := newStore(
		models.RawDocument{ID: "n", Title: "news", Source: models.SourceNews},
		models.RawDocument{ID: "r", Title: "report", Source: models.SourceReport},
		models.RawDocument{ID: "f", Title: "forum", Source: models.SourceForum},
	)
	svc := NewService(store, &stubScorer{}, 2)

	n, err := svc.AnalyzeBatch(context.Background(), []string{"n", "r", "f"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, store.saved, 3)

	byID := make(map[string]models.SentimentResult)
	for _, r := range store.saved {
		byID[r.DocumentID] = r
	}
	assert.NotNil(t, byID["n"].NewsScore)
	assert.Nil(t, byID["n"].ForumScore)
	assert.NotNil(t, byID["r"].NewsScore)
	assert.Nil(t, byID["f"].NewsScore)
	assert.InDelta(t, 0.4, *byID["f"].ForumScore, 1e-9)
	assert.Equal(t, "摘要 forum", byID["f"].Summary)
}

func TestAnalyzeBatch_FailureWritesNothing(t *testing.T) {
	store := newStore(
		models.RawDocument{ID: "a", Source: models.SourceNews},
		models.RawDocument{ID: "b", Source: models.SourceNews},
	)
	svc := NewService(store, &stubScorer{failOn: "b"}, 5)

	n, err := svc.AnalyzeBatch(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model unavailable")
	assert.Zero(t, n)
	assert.Empty(t, store.saved)
}

func TestAnalyzeBatch_EmptyAndLoadError(t *testing.T) {
	store := newStore()
	svc := NewService(store, &stubScorer{}, 0)

	n, err := svc.AnalyzeBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	store.loadErr = errors.New("db down")
	_, err = svc.AnalyzeBatch(context.Background(), []string{"x"})
	assert.EqualError(t, err, "db down")
}

func TestAnalyzeBatch_BoundsConcurrency(t *testing.T) {
	var docs []models.RawDocument
	var ids []string
	for _, id := range []string{"1", "2", "3", "4", "5", "6", "7", "8"} {
		docs = append(docs, models.RawDocument{ID: id, Source: models.SourceNews})
		ids = append(ids, id)
	}
	scorer := &stubScorer{}
	svc := NewService(newStore(docs...), scorer, 3)

	_, err := svc.AnalyzeBatch(context.Background(), ids)
	require.NoError(t, err)
	assert.LessOrEqual(t, scorer.peak.Load(), int32(3))
}
