package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selivandex/sentiment-fusion/internal/adapters/config"
	"github.com/selivandex/sentiment-fusion/pkg/models"
	"github.com/selivandex/sentiment-fusion/pkg/templates"
)

type fakeCompleter struct {
	content string
	err     error
	system  string
	user    string
	opts    CompletionOptions
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string, opts CompletionOptions) (string, error) {
	f.system, f.user, f.opts = systemPrompt, userPrompt, opts
	return f.content, f.err
}

func renderer(t *testing.T) templates.Renderer {
	t.Helper()
	m, err := templates.Default()
	require.NoError(t, err)
	return m
}

func TestParseScore(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Score
	}{
		{"plain json", `{"score": 0.6, "summary": "业绩超预期"}`, Score{0.6, "业绩超预期"}},
		{"fenced json", "```json\n{\"score\": -0.3, \"summary\": \"减持\"}\n```", Score{-0.3, "减持"}},
		{"clamped high", `{"score": 3, "summary": "极度乐观"}`, Score{1, "极度乐观"}},
		{"clamped low", `{"score": -7, "summary": "极度悲观"}`, Score{-1, "极度悲观"}},
		{"missing summary", `{"score": 0.1}`, Score{0.1, "分析完成"}},
		{"prose around json", `分析如下 {"score": 0.2, "summary": "平稳"} 以上`, Score{0.2, "平稳"}},
		{"unparsable", "市场情绪偏中性，暂无明显方向", Score{0, "市场情绪偏中性，暂无明显方向"}},
		{"empty", "", Score{0, "解析失败"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseScore(tt.content))
		})
	}
}

func TestParseScoreTruncatesRawSummary(t *testing.T) {
	long := ""
	for i := 0; i < 80; i++ {
		long += "好"
	}
	got := parseScore(long)
	assert.Equal(t, 50, len([]rune(got.Summary)))
}

func TestKeywordScorer(t *testing.T) {
	s := NewKeywordScorer()
	ctx := context.Background()

	tests := []struct {
		title string
		want  float64
	}{
		{"大股东减持公告", -0.5},
		{"机构上调评级至买入", 0.5},
		{"股价下跌但机构增持", -0.5},
		{"公司召开年度股东大会", 0},
	}
	for _, tt := range tests {
		got, err := s.Score(ctx, models.RawDocument{Title: tt.title})
		require.NoError(t, err)
		assert.Equal(t, tt.want, got.Value, tt.title)
		assert.Contains(t, got.Summary, "关键词分析")
	}
}

func TestModelScorer(t *testing.T) {
	completer := &fakeCompleter{content: `{"score": 0.45, "summary": "提价利好"}`}
	s := NewModelScorer(completer, renderer(t))

	got, err := s.Score(context.Background(), models.RawDocument{ID: "d1", Title: "茅台提价", Content: "出厂价上调"})

	require.NoError(t, err)
	assert.Equal(t, Score{0.45, "提价利好"}, got)
	assert.Contains(t, completer.system, "金融情感分析师")
	assert.Contains(t, completer.user, "茅台提价")
	assert.True(t, completer.opts.JSON)
}

func TestModelScorerTransportError(t *testing.T) {
	s := NewModelScorer(&fakeCompleter{err: errors.New("429 rate limited")}, renderer(t))

	_, err := s.Score(context.Background(), models.RawDocument{ID: "d1"})
	assert.ErrorContains(t, err, "429")
}

func TestIndicatorNarrator(t *testing.T) {
	completer := &fakeCompleter{content: "  短期震荡，建议观望。 "}
	n := NewIndicatorNarrator(completer, renderer(t))
	rsi := 55.5

	text, err := n.Narrate(context.Background(), "600519",
		models.IndicatorValues{Close: 1690.5, RSI: &rsi},
		models.IndicatorSignals{MATrend: "震荡整理", MACDSignal: "持续多头", RSISignal: "中性", KDJSignal: "中性"})

	require.NoError(t, err)
	assert.Equal(t, "短期震荡，建议观望。", text)
	assert.Contains(t, completer.user, "600519")
	assert.Contains(t, completer.user, "RSI(14)：55.50 (中性)")
	assert.Contains(t, completer.user, "MA5=-")
}

func TestDeepSeekClientComplete(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "deepseek-chat",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"score\": 0.3}"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	}))
	t.Cleanup(srv.Close)

	client := NewDeepSeekClient(&config.AIConfig{APIKey: "sk-test", BaseURL: srv.URL, Model: "deepseek-chat", Timeout: time.Second})
	content, err := client.Complete(context.Background(), "sys", "user", CompletionOptions{JSON: true})

	require.NoError(t, err)
	assert.Equal(t, `{"score": 0.3}`, content)
	assert.Equal(t, "deepseek-chat", body["model"])
	assert.NotNil(t, body["response_format"])
}

func TestDeepSeekClientAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "invalid api key", "type": "authentication_error"}}`))
	}))
	t.Cleanup(srv.Close)

	client := NewDeepSeekClient(&config.AIConfig{APIKey: "bad", BaseURL: srv.URL, Timeout: time.Second})
	_, err := client.Complete(context.Background(), "sys", "user", CompletionOptions{})

	assert.ErrorContains(t, err, "401")
}

func TestNewFromConfig(t *testing.T) {
	scorer, narrator := NewFromConfig(&config.AIConfig{}, renderer(t))
	assert.Equal(t, "keyword", scorer.GetName())
	assert.Nil(t, narrator)

	scorer, narrator = NewFromConfig(&config.AIConfig{APIKey: "sk"}, renderer(t))
	assert.Equal(t, "model", scorer.GetName())
	assert.NotNil(t, narrator)
}

func TestSplitPrompt(t *testing.T) {
	sys, user := SplitPrompt("system part\n=== USER PROMPT ===\nuser part")
	assert.Equal(t, "system part", sys)
	assert.Equal(t, "user part", user)

	sys, user = SplitPrompt("only user")
	assert.Empty(t, sys)
	assert.Equal(t, "only user", user)
}
