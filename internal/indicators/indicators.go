package indicators

import (
	"math"

	"github.com/cinar/indicator"

	"github.com/selivandex/sentiment-fusion/pkg/models"
)

const (
	fastPeriod   = 12
	slowPeriod   = 26
	signalPeriod = 9
	rsiPeriod    = 14
	kdjPeriod    = 9
	kdjSmooth    = 3
)

// ChartPoint is one day of indicator readings
type ChartPoint struct {
	Date string `json:"date"`
	models.IndicatorValues
}

// Calculate computes MA5/10/20, MACD(12,26,9), RSI(14) and KDJ(9,3) for
// every bar. Readings inside an indicator's warm-up window are nil.
func Calculate(bars []models.PriceBar) []ChartPoint {
	n := len(bars)
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i, bar := range bars {
		closes[i] = bar.Close
		highs[i] = bar.High
		lows[i] = bar.Low
	}

	ma5 := sma(5, closes)
	ma10 := sma(10, closes)
	ma20 := sma(20, closes)
	dif, dea := macd(closes)
	rsi := wilderRSI(rsiPeriod, closes)
	k, d := stochastic(kdjPeriod, kdjSmooth, highs, lows, closes)

	points := make([]ChartPoint, n)
	for i, bar := range bars {
		p := ChartPoint{Date: bar.Date}
		p.Close = bar.Close
		p.MA5, p.MA10, p.MA20 = ma5[i], ma10[i], ma20[i]
		p.MACDDif, p.MACDDea = dif[i], dea[i]
		if dif[i] != nil && dea[i] != nil {
			p.MACDHist = models.Float64Ptr(*dif[i] - *dea[i])
		}
		p.RSI = rsi[i]
		p.K, p.D = k[i], d[i]
		if k[i] != nil && d[i] != nil {
			p.J = models.Float64Ptr(3*(*k[i]) - 2*(*d[i]))
		}
		points[i] = p
	}
	return points
}

// sma masks the partial averages cinar returns for the first period-1 values
func sma(period int, values []float64) []*float64 {
	out := make([]*float64, len(values))
	if len(values) < period {
		return out
	}
	avg := indicator.Sma(period, values)
	for i := period - 1; i < len(values); i++ {
		out[i] = models.Float64Ptr(avg[i])
	}
	return out
}

// ema masks readings until period observations have been seen
func ema(period int, values []float64) []*float64 {
	out := make([]*float64, len(values))
	if len(values) < period {
		return out
	}
	smoothed := indicator.Ema(period, values)
	for i := period - 1; i < len(values); i++ {
		out[i] = models.Float64Ptr(smoothed[i])
	}
	return out
}

func macd(closes []float64) (dif, dea []*float64) {
	n := len(closes)
	dif = make([]*float64, n)
	dea = make([]*float64, n)

	fast := ema(fastPeriod, closes)
	slow := ema(slowPeriod, closes)
	if n < slowPeriod {
		return dif, dea
	}

	line := make([]float64, 0, n-slowPeriod+1)
	for i := slowPeriod - 1; i < n; i++ {
		v := *fast[i] - *slow[i]
		dif[i] = models.Float64Ptr(v)
		line = append(line, v)
	}

	signal := ema(signalPeriod, line)
	for j, v := range signal {
		dea[slowPeriod-1+j] = v
	}
	return dif, dea
}

// wilderRSI smooths gains and losses with alpha 1/period, seeded at the first change
func wilderRSI(period int, closes []float64) []*float64 {
	out := make([]*float64, len(closes))
	if len(closes) <= period {
		return out
	}

	alpha := 1 / float64(period)
	var up, down float64
	for i := 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := math.Max(change, 0), math.Max(-change, 0)
		if i == 1 {
			up, down = gain, loss
		} else {
			up = alpha*gain + (1-alpha)*up
			down = alpha*loss + (1-alpha)*down
		}

		if i < period {
			continue
		}
		if down == 0 {
			out[i] = models.Float64Ptr(100)
			continue
		}
		out[i] = models.Float64Ptr(100 - 100/(1+up/down))
	}
	return out
}

// stochastic returns %K over the high-low range of the last period bars and
// %D as its smooth-bar simple average. A flat range leaves %K nil.
func stochastic(period, smooth int, highs, lows, closes []float64) (k, d []*float64) {
	n := len(closes)
	k = make([]*float64, n)
	d = make([]*float64, n)

	for i := period - 1; i < n; i++ {
		lo, hi := lows[i], highs[i]
		for j := i - period + 1; j < i; j++ {
			lo = math.Min(lo, lows[j])
			hi = math.Max(hi, highs[j])
		}
		if hi == lo {
			continue
		}
		k[i] = models.Float64Ptr(100 * (closes[i] - lo) / (hi - lo))
	}

	for i := smooth - 1; i < n; i++ {
		sum := 0.0
		complete := true
		for j := i - smooth + 1; j <= i; j++ {
			if k[j] == nil {
				complete = false
				break
			}
			sum += *k[j]
		}
		if complete {
			d[i] = models.Float64Ptr(sum / float64(smooth))
		}
	}
	return k, d
}
