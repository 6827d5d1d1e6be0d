package fusion

import "github.com/selivandex/sentiment-fusion/pkg/models"

// DailySentiment is the fused sentiment for one calendar date
type DailySentiment struct {
	Score   float64 `json:"score"`
	Count   int     `json:"count"`
	Summary string  `json:"summary,omitempty"`
}

type dayAccumulator struct {
	weighted float64
	weights  float64
	count    int
	summary  string
}

// Aggregate reduces scored documents to one weighted score per UTC calendar date.
//
// Every present source score contributes value*weight to the numerator and weight to
// the denominator of its document's date. Documents contributing no weight are skipped,
// so dates whose denominator would stay zero never appear in the result. Scores are rounded to two decimals; the summary is the first
// non-empty one in input order.
func Aggregate(docs []models.ScoredDocument, weights models.WeightConfig) map[string]DailySentiment {
	days := make(map[string]*dayAccumulator)

	for _, doc := range docs {
		res := doc.Result
		if !res.HasScore() {
			continue
		}

		var weighted, applied float64
		if res.NewsScore != nil {
			weighted += *res.NewsScore * weights.NewsWeight
			applied += weights.NewsWeight
		}
		if res.ForumScore != nil {
			weighted += *res.ForumScore * weights.ForumWeight
			applied += weights.ForumWeight
		}

		if applied == 0 {
			continue
		}

		key := DayOf(doc.Document.PublishedAt)
		acc, ok := days[key]
		if !ok {
			acc = &dayAccumulator{}
			days[key] = acc
		}

		acc.weighted += weighted
		acc.weights += applied
		acc.count++
		if acc.summary == "" && res.Summary != "" {
			acc.summary = res.Summary
		}
	}

	result := make(map[string]DailySentiment, len(days))
	for key, acc := range days {
		result[key] = DailySentiment{
			Score:   models.Round(acc.weighted/acc.weights, 2),
			Count:   acc.count,
			Summary: acc.summary,
		}
	}

	return result
}
