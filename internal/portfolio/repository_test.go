package portfolio_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selivandex/sentiment-fusion/internal/portfolio"
	"github.com/selivandex/sentiment-fusion/pkg/models"
	"github.com/selivandex/sentiment-fusion/test/testdb"
)

func TestValidCode(t *testing.T) {
	assert.True(t, portfolio.ValidCode("600519"))
	assert.True(t, portfolio.ValidCode("000001"))
	assert.False(t, portfolio.ValidCode("60051"))
	assert.False(t, portfolio.ValidCode("60051a"))
	assert.False(t, portfolio.ValidCode(""))
}

func TestRepository_AddListRemove(t *testing.T) {
	db := testdb.Setup(t)
	repo := portfolio.NewRepository(db)
	ctx := context.Background()

	item, err := repo.Add(ctx, "user-1", "600519")
	require.NoError(t, err)
	assert.Equal(t, "600519", item.InstrumentCode)

	_, err = repo.Add(ctx, "user-1", "600519")
	assert.ErrorIs(t, err, portfolio.ErrDuplicate)

	_, err = repo.Add(ctx, "user-1", "bad")
	assert.ErrorIs(t, err, portfolio.ErrInvalidCode)

	_, err = repo.Add(ctx, "user-2", "000001")
	require.NoError(t, err)

	items, err := repo.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, items, 1)

	codes, err := repo.TrackedCodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"000001", "600519"}, codes)

	require.NoError(t, repo.Remove(ctx, "user-1", "600519"))
	assert.ErrorIs(t, repo.Remove(ctx, "user-1", "600519"), portfolio.ErrNotFound)

	items, err = repo.List(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRepository_Weights(t *testing.T) {
	db := testdb.Setup(t)
	repo := portfolio.NewRepository(db)
	ctx := context.Background()

	w, err := repo.GetWeights(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultWeights(), w)

	require.NoError(t, repo.PutWeights(ctx, "user-1", models.WeightConfig{NewsWeight: 0.4, ForumWeight: 0.6}))
	w, err = repo.GetWeights(ctx, "user-1")
	require.NoError(t, err)
	assert.InDelta(t, 0.4, w.NewsWeight, 1e-9)
	assert.InDelta(t, 0.6, w.ForumWeight, 1e-9)

	err = repo.PutWeights(ctx, "user-1", models.WeightConfig{NewsWeight: 1.5})
	assert.Error(t, err)
}
