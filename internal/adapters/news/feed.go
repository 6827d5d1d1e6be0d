package news

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/selivandex/sentiment-fusion/pkg/models"
)

// FeedProvider reads an RSS or Atom feed whose URL embeds the instrument code
type FeedProvider struct {
	name     string
	kind     models.SourceKind
	template string
	parser   *gofeed.Parser
}

// NewFeedProvider creates a provider for a URL template with one %s verb
func NewFeedProvider(kind models.SourceKind, template string, timeout time.Duration) *FeedProvider {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: timeout}

	return &FeedProvider{
		name:     fmt.Sprintf("%s:%s", kind, hostOf(template)),
		kind:     kind,
		template: template,
		parser:   parser,
	}
}

// NewFeedProviders builds one provider per template
func NewFeedProviders(kind models.SourceKind, templates []string, timeout time.Duration) []Provider {
	providers := make([]Provider, 0, len(templates))
	for _, tmpl := range templates {
		if strings.TrimSpace(tmpl) == "" {
			continue
		}
		providers = append(providers, NewFeedProvider(kind, strings.TrimSpace(tmpl), timeout))
	}
	return providers
}

func (p *FeedProvider) GetName() string {
	return p.name
}

func (p *FeedProvider) Kind() models.SourceKind {
	return p.kind
}

func (p *FeedProvider) IsEnabled() bool {
	return p.template != ""
}

func (p *FeedProvider) Fetch(ctx context.Context, code string) ([]Item, error) {
	url := p.template
	if strings.Contains(url, "%s") {
		url = fmt.Sprintf(p.template, code)
	}

	feed, err := p.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", p.name, err)
	}

	items := make([]Item, 0, len(feed.Items))
	for _, entry := range feed.Items {
		published := entry.PublishedParsed
		if published == nil {
			published = entry.UpdatedParsed
		}
		if published == nil {
			continue
		}

		content := entry.Content
		if content == "" {
			content = entry.Description
		}

		items = append(items, Item{
			PublishedAt: published.UTC(),
			Title:       strings.TrimSpace(entry.Title),
			Content:     strings.TrimSpace(content),
			URL:         entry.Link,
		})
	}

	return items, nil
}

func hostOf(template string) string {
	rest := template
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return rest
}
