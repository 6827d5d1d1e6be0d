package models

import "time"

// SourceKind identifies where a raw document came from
type SourceKind string

const (
	SourceNews   SourceKind = "news"   // primary news article
	SourceReport SourceKind = "report" // analyst research report
	SourceForum  SourceKind = "forum"  // investor forum post
)

// Valid reports whether the kind belongs to the closed set of known sources
func (k SourceKind) Valid() bool {
	switch k {
	case SourceNews, SourceReport, SourceForum:
		return true
	}
	return false
}

// IsForum reports whether scores for this source feed the forum channel
func (k SourceKind) IsForum() bool {
	return k == SourceForum
}

// RawDocument is an ingested article, report or forum post
type RawDocument struct {
	PublishedAt    time.Time  `json:"publish_time" db:"publish_time"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	ID             string     `json:"id" db:"id"`
	InstrumentCode string     `json:"stock_code" db:"stock_code"`
	Title          string     `json:"title" db:"title"`
	Content        string     `json:"content" db:"content"`
	URL            string     `json:"url,omitempty" db:"url"`
	Source         SourceKind `json:"source" db:"source"`
	IsAnalyzed     bool       `json:"is_analyzed" db:"is_analyzed"`
}

// ScoredDocument joins a document with its optional sentiment result
type ScoredDocument struct {
	Document RawDocument      `json:"document"`
	Result   *SentimentResult `json:"sentiment,omitempty"`
}
