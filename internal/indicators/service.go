package indicators

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/selivandex/sentiment-fusion/internal/adapters/market"
	"github.com/selivandex/sentiment-fusion/pkg/logger"
	"github.com/selivandex/sentiment-fusion/pkg/models"
)

// ChartDays is the number of trailing rows returned for charting
const ChartDays = 30

// DefaultDays is the price history used when the caller does not ask for a length
const DefaultDays = 60

// Narrator writes commentary for the latest readings
type Narrator interface {
	Narrate(ctx context.Context, code string, values models.IndicatorValues, signals models.IndicatorSignals) (string, error)
}

// Report is the technical analysis of one instrument
type Report struct {
	Code         string                  `json:"stock_code"`
	Indicators   models.IndicatorValues  `json:"indicators"`
	Signals      models.IndicatorSignals `json:"signals"`
	ChartData    []ChartPoint            `json:"chart_data"`
	Analysis     string                  `json:"ai_analysis"`
	Explanations map[string]string       `json:"indicator_explanations"`
}

// Service builds indicator reports from daily bars
type Service struct {
	prices   market.Provider
	narrator Narrator
}

// NewService creates new indicator service. narrator may be nil.
func NewService(prices market.Provider, narrator Narrator) *Service {
	return &Service{prices: prices, narrator: narrator}
}

// Report computes indicators over the last days bars and labels the latest reading
func (s *Service) Report(ctx context.Context, code string, days int) (*Report, error) {
	if days <= 0 {
		days = DefaultDays
	}

	bars, err := s.prices.GetDailyBars(ctx, code, days)
	if err != nil {
		return nil, fmt.Errorf("failed to load bars for %s: %w", code, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no bars for %s: %w", code, market.ErrNotFound)
	}

	points := Calculate(bars)
	latest := points[len(points)-1]
	prev := latest
	if len(points) > 1 {
		prev = points[len(points)-2]
	}

	report := &Report{
		Code:         code,
		Indicators:   roundValues(latest.IndicatorValues),
		Signals:      Signals(latest.IndicatorValues, prev.IndicatorValues),
		Explanations: Explanations,
	}

	start := max(len(points)-ChartDays, 0)
	report.ChartData = make([]ChartPoint, 0, len(points)-start)
	for _, p := range points[start:] {
		report.ChartData = append(report.ChartData, ChartPoint{Date: p.Date, IndicatorValues: roundValues(p.IndicatorValues)})
	}

	if s.narrator != nil {
		analysis, err := s.narrator.Narrate(ctx, code, report.Indicators, report.Signals)
		if err != nil {
			logger.Warn("indicator narrative failed", zap.String("instrument", code), zap.Error(err))
			analysis = "AI分析暂不可用: " + err.Error()
		}
		report.Analysis = analysis
	}

	return report, nil
}

// roundValues rounds prices and oscillators to 2 places and MACD to 4
func roundValues(v models.IndicatorValues) models.IndicatorValues {
	return models.IndicatorValues{
		Close:    models.Round(v.Close, 2),
		MA5:      roundPtr(v.MA5, 2),
		MA10:     roundPtr(v.MA10, 2),
		MA20:     roundPtr(v.MA20, 2),
		MACDDif:  roundPtr(v.MACDDif, 4),
		MACDDea:  roundPtr(v.MACDDea, 4),
		MACDHist: roundPtr(v.MACDHist, 4),
		RSI:      roundPtr(v.RSI, 2),
		K:        roundPtr(v.K, 2),
		D:        roundPtr(v.D, 2),
		J:        roundPtr(v.J, 2),
	}
}

func roundPtr(v *float64, places int32) *float64 {
	if v == nil {
		return nil
	}
	return models.Float64Ptr(models.Round(*v, places))
}
