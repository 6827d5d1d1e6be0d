package fusion

import "github.com/selivandex/sentiment-fusion/pkg/models"

// Merge left-joins the price series against daily sentiment.
// The output has exactly one point per bar in bar order; sentiment for dates
// without a bar is dropped.
func Merge(bars []models.PriceBar, daily map[string]DailySentiment) []models.FusedPoint {
	points := make([]models.FusedPoint, 0, len(bars))

	for _, bar := range bars {
		key, ok := DateKey(bar.Date)
		if !ok {
			key = bar.Date
		}

		point := models.FusedPoint{
			Date:  key,
			Close: models.Float64Ptr(bar.Close),
		}

		if day, found := daily[key]; found {
			point.Sentiment = models.Float64Ptr(day.Score)
			if day.Summary != "" {
				point.Summary = models.StringPtr(day.Summary)
			}
		}

		points = append(points, point)
	}

	return points
}

// Fuse aggregates docs under weights and merges the result onto bars
func Fuse(bars []models.PriceBar, docs []models.ScoredDocument, weights models.WeightConfig) []models.FusedPoint {
	return Merge(bars, Aggregate(docs, weights))
}
