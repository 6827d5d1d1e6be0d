package corpus_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selivandex/sentiment-fusion/internal/corpus"
	"github.com/selivandex/sentiment-fusion/pkg/models"
	"github.com/selivandex/sentiment-fusion/test/testdb"
)

func TestRepository_InsertAndPending(t *testing.T) {
	db := testdb.Setup(t)
	repo := corpus.NewRepository(db)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	docs := []models.RawDocument{
		{ID: uuid.NewString(), InstrumentCode: "600519", Title: "older", Source: models.SourceNews, PublishedAt: now.Add(-2 * time.Hour)},
		{ID: uuid.NewString(), InstrumentCode: "600519", Title: "newer", Source: models.SourceForum, PublishedAt: now.Add(-time.Hour)},
		{ID: uuid.NewString(), InstrumentCode: "000001", Title: "other", Source: models.SourceReport, PublishedAt: now},
	}

	n, err := repo.InsertDocuments(ctx, docs)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// same ids again are skipped
	n, err = repo.InsertDocuments(ctx, docs[:1])
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	pending, err := repo.PendingIDs(ctx, "600519")
	require.NoError(t, err)
	assert.Equal(t, []string{docs[1].ID, docs[0].ID}, pending)

	titles, err := repo.ExistingTitles(ctx, "600519")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"older": true, "newer": true}, titles)
}

func TestRepository_SaveResultsMarksAnalyzed(t *testing.T) {
	db := testdb.Setup(t)
	repo := corpus.NewRepository(db)
	ctx := context.Background()

	a := testdb.InsertDocument(t, db, uuid.NewString(), "600519", "a", "news", "2024-03-01T10:00:00Z", false)
	b := testdb.InsertDocument(t, db, uuid.NewString(), "600519", "b", "forum", "2024-03-02T10:00:00Z", false)

	err := repo.SaveResults(ctx, []models.SentimentResult{
		{DocumentID: a, NewsScore: models.Float64Ptr(0.6), Summary: "利好"},
		{DocumentID: b, ForumScore: models.Float64Ptr(-0.4), Summary: "看空"},
	})
	require.NoError(t, err)

	pending, err := repo.PendingIDs(ctx, "600519")
	require.NoError(t, err)
	assert.Empty(t, pending)

	scored, err := repo.ListScored(ctx, "600519", corpus.ListOptions{})
	require.NoError(t, err)
	require.Len(t, scored, 2)
	assert.Equal(t, b, scored[0].Document.ID)
	require.NotNil(t, scored[0].Result)
	assert.Nil(t, scored[0].Result.NewsScore)
	assert.InDelta(t, -0.4, *scored[0].Result.ForumScore, 1e-9)
	assert.InDelta(t, 0.6, *scored[1].Result.NewsScore, 1e-9)
}

func TestRepository_SaveResultsIsAtomic(t *testing.T) {
	db := testdb.Setup(t)
	repo := corpus.NewRepository(db)
	ctx := context.Background()

	a := testdb.InsertDocument(t, db, uuid.NewString(), "600519", "a", "news", "2024-03-01T10:00:00Z", false)

	// the second result violates the score range check
	err := repo.SaveResults(ctx, []models.SentimentResult{
		{DocumentID: a, NewsScore: models.Float64Ptr(0.2)},
		{DocumentID: a, NewsScore: models.Float64Ptr(3)},
	})
	require.Error(t, err)

	pending, err := repo.PendingIDs(ctx, "600519")
	require.NoError(t, err)
	assert.Equal(t, []string{a}, pending)
}

func TestRepository_ListScoredFiltersAndLimits(t *testing.T) {
	db := testdb.Setup(t)
	repo := corpus.NewRepository(db)
	ctx := context.Background()

	testdb.InsertDocument(t, db, uuid.NewString(), "600519", "old", "news", "2024-02-01T10:00:00Z", false)
	recent := testdb.InsertDocument(t, db, uuid.NewString(), "600519", "recent", "news", "2024-03-05T10:00:00Z", true)
	testdb.InsertResult(t, db, recent, models.Float64Ptr(0.3), nil, "ok")
	testdb.InsertDocument(t, db, uuid.NewString(), "600519", "latest", "forum", "2024-03-06T10:00:00Z", false)

	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	scored, err := repo.ListScored(ctx, "600519", corpus.ListOptions{Since: since})
	require.NoError(t, err)
	require.Len(t, scored, 2)
	assert.Equal(t, "latest", scored[0].Document.Title)
	assert.Nil(t, scored[0].Result)
	assert.True(t, scored[1].Result.HasScore())

	limited, err := repo.ListScored(ctx, "600519", corpus.ListOptions{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "latest", limited[0].Document.Title)
}

func TestRepository_ListScoredAnalyzedOnlyOldestFirst(t *testing.T) {
	db := testdb.Setup(t)
	repo := corpus.NewRepository(db)
	ctx := context.Background()

	early := testdb.InsertDocument(t, db, uuid.NewString(), "600519", "A", "news", "2024-03-05T09:00:00Z", true)
	testdb.InsertResult(t, db, early, models.Float64Ptr(0.5), nil, "early summary")
	late := testdb.InsertDocument(t, db, uuid.NewString(), "600519", "B", "news", "2024-03-05T15:00:00Z", true)
	testdb.InsertResult(t, db, late, models.Float64Ptr(-0.5), nil, "late summary")
	testdb.InsertDocument(t, db, uuid.NewString(), "600519", "A", "news", "2024-03-06T10:00:00Z", false)

	analyzed, err := repo.ListScored(ctx, "600519", corpus.ListOptions{AnalyzedOnly: true})
	require.NoError(t, err)
	require.Len(t, analyzed, 2)
	assert.Equal(t, []string{late, early}, []string{analyzed[0].Document.ID, analyzed[1].Document.ID})

	ascending, err := repo.ListScored(ctx, "600519", corpus.ListOptions{AnalyzedOnly: true, OldestFirst: true})
	require.NoError(t, err)
	require.Len(t, ascending, 2)
	assert.Equal(t, "early summary", ascending[0].Result.Summary)
	assert.Equal(t, "late summary", ascending[1].Result.Summary)

	limited, err := repo.ListScored(ctx, "600519", corpus.ListOptions{AnalyzedOnly: true, Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, late, limited[0].Document.ID)
}

func TestRepository_GetByIDs(t *testing.T) {
	db := testdb.Setup(t)
	repo := corpus.NewRepository(db)
	ctx := context.Background()

	a := testdb.InsertDocument(t, db, uuid.NewString(), "600519", "a", "news", "2024-03-01T10:00:00Z", false)

	docs, err := repo.GetByIDs(ctx, []string{a})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, models.SourceNews, docs[0].Source)

	_, err = repo.GetByIDs(ctx, []string{a, uuid.NewString()})
	assert.ErrorIs(t, err, corpus.ErrNotFound)
}

func TestRepository_DeleteDuplicatesKeepsNewest(t *testing.T) {
	db := testdb.Setup(t)
	repo := corpus.NewRepository(db)
	ctx := context.Background()

	old := testdb.InsertDocument(t, db, uuid.NewString(), "600519", "dup", "news", "2024-03-01T10:00:00Z", true)
	testdb.InsertResult(t, db, old, models.Float64Ptr(0.1), nil, "old")
	newest := testdb.InsertDocument(t, db, uuid.NewString(), "600519", "dup", "news", "2024-03-03T10:00:00Z", false)
	testdb.InsertDocument(t, db, uuid.NewString(), "600519", "dup", "news", "2024-03-02T10:00:00Z", false)
	testdb.InsertDocument(t, db, uuid.NewString(), "000001", "dup", "news", "2024-03-01T10:00:00Z", false)

	n, err := repo.DeleteDuplicates(ctx, "600519")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	scored, err := repo.ListScored(ctx, "600519", corpus.ListOptions{})
	require.NoError(t, err)
	require.Len(t, scored, 1)
	assert.Equal(t, newest, scored[0].Document.ID)

	count, err := repo.Count(ctx, "000001")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRepository_PurgeResults(t *testing.T) {
	db := testdb.Setup(t)
	repo := corpus.NewRepository(db)
	ctx := context.Background()

	a := testdb.InsertDocument(t, db, uuid.NewString(), "600519", "a", "news", "2024-03-01T10:00:00Z", true)
	testdb.InsertResult(t, db, a, models.Float64Ptr(0.5), nil, "The company reported strong earnings")

	summaries, err := repo.ListSummaries(ctx, "600519")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, a, summaries[0].DocumentID)

	deleted, reset, err := repo.PurgeResults(ctx, []string{a})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	assert.Equal(t, 1, reset)

	pending, err := repo.PendingIDs(ctx, "600519")
	require.NoError(t, err)
	assert.Equal(t, []string{a}, pending)
}
