package fusion

import "github.com/selivandex/sentiment-fusion/pkg/models"

// DisplayCap is the maximum number of documents shown in the news list
const DisplayCap = 20

// Deduplicate keeps the first document for every distinct title, preserving order,
// and truncates the result to limit (DisplayCap when limit <= 0).
// Callers pass documents newest first so the newest copy of a headline survives.
func Deduplicate(docs []models.ScoredDocument, limit int) []models.ScoredDocument {
	if limit <= 0 {
		limit = DisplayCap
	}

	seen := make(map[string]struct{}, len(docs))
	unique := make([]models.ScoredDocument, 0, min(len(docs), limit))

	for _, doc := range docs {
		if len(unique) == limit {
			break
		}
		if _, dup := seen[doc.Document.Title]; dup {
			continue
		}
		seen[doc.Document.Title] = struct{}{}
		unique = append(unique, doc)
	}

	return unique
}
