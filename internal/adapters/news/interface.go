package news

import (
	"context"
	"time"

	"github.com/selivandex/sentiment-fusion/pkg/models"
)

// Item is a document as returned by a provider, before it is stored
type Item struct {
	PublishedAt time.Time
	Title       string
	Content     string
	URL         string
}

// Provider represents a document source for one source kind
type Provider interface {
	// GetName returns provider name
	GetName() string

	// Kind returns which scoring channel the provider's documents feed
	Kind() models.SourceKind

	// Fetch returns recent items mentioning the instrument
	Fetch(ctx context.Context, code string) ([]Item, error)

	// IsEnabled returns whether provider is enabled
	IsEnabled() bool
}
