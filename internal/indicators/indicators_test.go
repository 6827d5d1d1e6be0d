package indicators

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selivandex/sentiment-fusion/internal/adapters/market"
	"github.com/selivandex/sentiment-fusion/pkg/models"
)

// generateBars builds n daily bars whose close moves by step each day
func generateBars(n int, start, step float64) []models.PriceBar {
	bars := make([]models.PriceBar, n)
	price := start
	for i := range bars {
		bars[i] = models.PriceBar{
			Date:  fmt.Sprintf("2024-%02d-%02d", 1+i/28, 1+i%28),
			Open:  price,
			High:  price + 1,
			Low:   price - 1,
			Close: price,
		}
		price += step
	}
	return bars
}

func TestCalculate_WarmupIsNil(t *testing.T) {
	points := Calculate(generateBars(40, 100, 1))
	require.Len(t, points, 40)

	assert.Nil(t, points[3].MA5)
	require.NotNil(t, points[4].MA5)
	assert.InDelta(t, 102, *points[4].MA5, 1e-9)

	assert.Nil(t, points[18].MA20)
	assert.NotNil(t, points[19].MA20)

	assert.Nil(t, points[24].MACDDif)
	assert.NotNil(t, points[25].MACDDif)
	assert.Nil(t, points[32].MACDDea)
	assert.NotNil(t, points[33].MACDDea)
	assert.NotNil(t, points[33].MACDHist)

	assert.Nil(t, points[13].RSI)
	assert.NotNil(t, points[14].RSI)

	assert.Nil(t, points[7].K)
	assert.NotNil(t, points[8].K)
	assert.Nil(t, points[9].D)
	assert.NotNil(t, points[10].D)
	assert.NotNil(t, points[10].J)
}

func TestCalculate_ShortHistory(t *testing.T) {
	points := Calculate(generateBars(3, 100, 1))
	require.Len(t, points, 3)
	for _, p := range points {
		assert.Nil(t, p.MA5)
		assert.Nil(t, p.MACDDif)
		assert.Nil(t, p.RSI)
		assert.Nil(t, p.K)
	}
}

func TestCalculate_Uptrend(t *testing.T) {
	points := Calculate(generateBars(60, 100, 1))
	latest := points[len(points)-1]

	require.NotNil(t, latest.RSI)
	assert.InDelta(t, 100, *latest.RSI, 1e-9)
	assert.Greater(t, *latest.MACDDif, 0.0)
	assert.Greater(t, *latest.MA5, *latest.MA10)
	assert.Greater(t, *latest.MA10, *latest.MA20)

	// close sits one below the 9-bar high
	require.NotNil(t, latest.K)
	assert.InDelta(t, 100*9.0/10.0, *latest.K, 1e-9)
	assert.InDelta(t, 3*(*latest.K)-2*(*latest.D), *latest.J, 1e-9)
}

func TestCalculate_RSIBounds(t *testing.T) {
	bars := generateBars(50, 100, 0)
	for i := range bars {
		if i%2 == 0 {
			bars[i].Close += 2
		}
		if i%3 == 0 {
			bars[i].Close -= 3
		}
	}
	for _, p := range Calculate(bars) {
		if p.RSI == nil {
			continue
		}
		assert.GreaterOrEqual(t, *p.RSI, 0.0)
		assert.LessOrEqual(t, *p.RSI, 100.0)
	}
}

func TestCalculate_FlatRangeLeavesKNil(t *testing.T) {
	bars := make([]models.PriceBar, 12)
	for i := range bars {
		bars[i] = models.PriceBar{Date: fmt.Sprintf("2024-01-%02d", i+1), High: 10, Low: 10, Close: 10}
	}
	for _, p := range Calculate(bars) {
		assert.Nil(t, p.K)
		assert.Nil(t, p.J)
	}
}

func TestSignals(t *testing.T) {
	f := models.Float64Ptr

	tests := []struct {
		name   string
		latest models.IndicatorValues
		prev   models.IndicatorValues
		want   models.IndicatorSignals
	}{
		{
			name:   "bullish alignment with golden cross",
			latest: models.IndicatorValues{MA5: f(12), MA10: f(11), MA20: f(10), MACDDif: f(0.5), MACDDea: f(0.4), RSI: f(75), K: f(85), J: f(90)},
			prev:   models.IndicatorValues{MACDDif: f(0.3), MACDDea: f(0.4)},
			want:   models.IndicatorSignals{MATrend: TrendBullish, MACDSignal: MACDGoldenCross, RSISignal: ZoneOverbought, KDJSignal: ZoneOverbought},
		},
		{
			name:   "bearish alignment with death cross",
			latest: models.IndicatorValues{MA5: f(9), MA10: f(10), MA20: f(11), MACDDif: f(0.3), MACDDea: f(0.4), RSI: f(25), K: f(30), J: f(-5)},
			prev:   models.IndicatorValues{MACDDif: f(0.5), MACDDea: f(0.4)},
			want:   models.IndicatorSignals{MATrend: TrendBearish, MACDSignal: MACDDeathCross, RSISignal: ZoneOversold, KDJSignal: ZoneOversold},
		},
		{
			name:   "continuing trends",
			latest: models.IndicatorValues{MA5: f(10), MA10: f(11), MA20: f(10), MACDDif: f(0.5), MACDDea: f(0.4), RSI: f(50), K: f(50), J: f(50)},
			prev:   models.IndicatorValues{MACDDif: f(0.6), MACDDea: f(0.4)},
			want:   models.IndicatorSignals{MATrend: TrendRange, MACDSignal: MACDBullish, RSISignal: ZoneNeutral, KDJSignal: ZoneNeutral},
		},
		{
			name:   "missing readings",
			latest: models.IndicatorValues{},
			prev:   models.IndicatorValues{},
			want:   models.IndicatorSignals{MATrend: TrendRange, MACDSignal: MACDBearish, RSISignal: ZoneNeutral, KDJSignal: ZoneNeutral},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Signals(tt.latest, tt.prev))
		})
	}
}

type stubPrices struct {
	bars []models.PriceBar
	err  error
}

func (s *stubPrices) GetDailyBars(context.Context, string, int) ([]models.PriceBar, error) {
	return s.bars, s.err
}

func (s *stubPrices) GetName(context.Context, string) (string, error) {
	return "", market.ErrNotFound
}

type stubNarrator struct {
	text string
	err  error
	got  models.IndicatorValues
}

func (n *stubNarrator) Narrate(_ context.Context, _ string, values models.IndicatorValues, _ models.IndicatorSignals) (string, error) {
	n.got = values
	return n.text, n.err
}

func TestService_Report(t *testing.T) {
	narrator := &stubNarrator{text: "短期偏强"}
	svc := NewService(&stubPrices{bars: generateBars(60, 10.123, 0.01)}, narrator)

	report, err := svc.Report(context.Background(), "600519", 60)
	require.NoError(t, err)

	assert.Equal(t, "600519", report.Code)
	assert.Len(t, report.ChartData, ChartDays)
	assert.Equal(t, "短期偏强", report.Analysis)
	assert.Equal(t, Explanations, report.Explanations)
	assert.Equal(t, report.Indicators, narrator.got)

	// 10.123 + 59*0.01 rounds to two places
	assert.InDelta(t, 10.71, report.Indicators.Close, 1e-9)
	require.NotNil(t, report.Indicators.MACDDif)
	assert.InDelta(t, *report.Indicators.MACDDif, models.Round(*report.Indicators.MACDDif, 4), 1e-12)
}

func TestService_NarratorFailure(t *testing.T) {
	svc := NewService(&stubPrices{bars: generateBars(10, 10, 0.1)}, &stubNarrator{err: errors.New("timeout")})

	report, err := svc.Report(context.Background(), "600519", 0)
	require.NoError(t, err)
	assert.Equal(t, "AI分析暂不可用: timeout", report.Analysis)
	assert.Len(t, report.ChartData, 10)
}

func TestService_NoNarrator(t *testing.T) {
	svc := NewService(&stubPrices{bars: generateBars(1, 10, 0)}, nil)

	report, err := svc.Report(context.Background(), "600519", 30)
	require.NoError(t, err)
	assert.Empty(t, report.Analysis)
	assert.Equal(t, TrendRange, report.Signals.MATrend)
}

func TestService_NoBars(t *testing.T) {
	svc := NewService(&stubPrices{}, nil)
	_, err := svc.Report(context.Background(), "600519", 30)
	assert.ErrorIs(t, err, market.ErrNotFound)

	svc = NewService(&stubPrices{err: market.ErrNotFound}, nil)
	_, err = svc.Report(context.Background(), "600519", 30)
	assert.ErrorIs(t, err, market.ErrNotFound)
}
