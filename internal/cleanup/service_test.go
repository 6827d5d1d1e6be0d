package cleanup

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selivandex/sentiment-fusion/internal/corpus"
)

type fakeStore struct {
	duplicates int
	summaries  []corpus.Summary
	purged     []string
	dupErr     error
}

func (f *fakeStore) DeleteDuplicates(context.Context, string) (int, error) {
	return f.duplicates, f.dupErr
}

func (f *fakeStore) ListSummaries(context.Context, string) ([]corpus.Summary, error) {
	return f.summaries, nil
}

func (f *fakeStore) PurgeResults(_ context.Context, ids []string) (int, int, error) {
	f.purged = append(f.purged, ids...)
	return len(ids), len(ids), nil
}

func TestIsForeignSummary(t *testing.T) {
	tests := []struct {
		name    string
		summary string
		want    bool
	}{
		{"empty", "", false},
		{"short english", "Good news", false},
		{"english sentence", "The company beat earnings expectations", true},
		{"chinese", "公司业绩超预期，市场情绪乐观", false},
		{"mixed mostly chinese", "公司发布Q3财报，营收同比增长明显", false},
		{"digits and punctuation", "12345, 67890! 2024-01-01", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsForeignSummary(tt.summary))
		})
	}
}

func TestCleanup_PurgesForeignSummaries(t *testing.T) {
	store := &fakeStore{
		duplicates: 2,
		summaries: []corpus.Summary{
			{DocumentID: "a", Summary: "Revenue grew strongly this quarter"},
			{DocumentID: "b", Summary: "营收增长强劲，利好"},
			{DocumentID: "c", Summary: "Analysts downgrade the stock to sell"},
		},
	}

	report, err := NewService(store).Cleanup(context.Background(), "600519")
	require.NoError(t, err)
	assert.Equal(t, 2, report.DeletedDuplicates)
	assert.Equal(t, 2, report.DeletedForeignSummaries)
	assert.Equal(t, 2, report.ResetForReanalysis)
	assert.Equal(t, []string{"a", "c"}, store.purged)
}

func TestCleanup_NothingToPurge(t *testing.T) {
	store := &fakeStore{summaries: []corpus.Summary{{DocumentID: "b", Summary: "利好"}}}

	report, err := NewService(store).Cleanup(context.Background(), "600519")
	require.NoError(t, err)
	assert.Zero(t, *report)
	assert.Empty(t, store.purged)
}

func TestCleanup_DuplicateError(t *testing.T) {
	store := &fakeStore{dupErr: errors.New("db down")}

	_, err := NewService(store).Cleanup(context.Background(), "600519")
	assert.EqualError(t, err, "db down")
}
