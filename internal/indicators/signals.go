package indicators

import "github.com/selivandex/sentiment-fusion/pkg/models"

// Signal labels
const (
	TrendBullish = "多头排列"
	TrendBearish = "空头排列"
	TrendRange   = "震荡整理"

	MACDGoldenCross = "金叉"
	MACDDeathCross  = "死叉"
	MACDBullish     = "持续多头"
	MACDBearish     = "持续空头"

	ZoneOverbought = "超买"
	ZoneOversold   = "超卖"
	ZoneNeutral    = "中性"
)

// Explanations describe how each label is derived
var Explanations = map[string]string{
	"ma":   "移动平均线：MA5>MA10>MA20为多头排列，反之为空头排列",
	"macd": "MACD：DIF上穿DEA为金叉(买入信号)，下穿为死叉(卖出信号)",
	"rsi":  "RSI：>70超买可能回调，<30超卖可能反弹",
	"kdj":  "KDJ：K>80或J>100超买，K<20或J<0超卖",
}

// Signals labels the latest readings; prev is the bar before latest.
// Missing readings never satisfy a comparison.
func Signals(latest, prev models.IndicatorValues) models.IndicatorSignals {
	return models.IndicatorSignals{
		MATrend:    maTrend(latest),
		MACDSignal: macdSignal(latest, prev),
		RSISignal:  rsiZone(latest.RSI),
		KDJSignal:  kdjZone(latest.K, latest.J),
	}
}

func maTrend(v models.IndicatorValues) string {
	switch {
	case gt(v.MA5, v.MA10) && gt(v.MA10, v.MA20):
		return TrendBullish
	case gt(v.MA10, v.MA5) && gt(v.MA20, v.MA10):
		return TrendBearish
	}
	return TrendRange
}

func macdSignal(latest, prev models.IndicatorValues) string {
	switch {
	case gt(prev.MACDDea, prev.MACDDif) && gt(latest.MACDDif, latest.MACDDea):
		return MACDGoldenCross
	case gt(prev.MACDDif, prev.MACDDea) && gt(latest.MACDDea, latest.MACDDif):
		return MACDDeathCross
	case gt(latest.MACDDif, latest.MACDDea):
		return MACDBullish
	}
	return MACDBearish
}

func rsiZone(rsi *float64) string {
	switch {
	case rsi != nil && *rsi > 70:
		return ZoneOverbought
	case rsi != nil && *rsi < 30:
		return ZoneOversold
	}
	return ZoneNeutral
}

func kdjZone(k, j *float64) string {
	switch {
	case (k != nil && *k > 80) || (j != nil && *j > 100):
		return ZoneOverbought
	case (k != nil && *k < 20) || (j != nil && *j < 0):
		return ZoneOversold
	}
	return ZoneNeutral
}

// gt reports a > b, false when either is missing
func gt(a, b *float64) bool {
	return a != nil && b != nil && *a > *b
}
