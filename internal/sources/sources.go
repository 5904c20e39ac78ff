package sources

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"newsharvest/internal/domain"
	"newsharvest/internal/extract"
	"newsharvest/internal/fetch"
)

// ErrNotImplemented marks a source that is registered in configuration but
// whose adapter has not been built yet. The job runner records it instead
// of silently skipping the scope item.
var ErrNotImplemented = errors.New("source adapter is planned but not implemented")

// Candidate is one article URL discovered on a listing page.
type Candidate struct {
	URL   string
	Title string
}

// Adapter encapsulates one provider's quirks: listing URL patterns,
// category taxonomy and the markup variants its extractor chain handles.
type Adapter interface {
	Name() domain.Source
	ListCandidates(ctx context.Context, client *fetch.Client, category string, maxPages int) ([]Candidate, error)
	Extractor() *extract.Chain
}

// Registry keeps a mapping from source names to their adapters.
type Registry struct {
	adapters map[domain.Source]Adapter
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: map[domain.Source]Adapter{}}
}

// Register adds or replaces an adapter.
func (r *Registry) Register(adapter Adapter) {
	if r.adapters == nil {
		r.adapters = map[domain.Source]Adapter{}
	}
	r.adapters[adapter.Name()] = adapter
}

// Resolve returns an adapter by source name or an error if it is absent.
func (r *Registry) Resolve(source domain.Source) (Adapter, error) {
	if adapter, ok := r.adapters[source]; ok {
		return adapter, nil
	}
	return nil, fmt.Errorf("source %s is not registered", source)
}

// listPages walks bounded pagination and collects unique candidates.
// A fetch failure on the first page is a hard listing error; on later
// pages the pages collected so far are returned.
func listPages(ctx context.Context, client *fetch.Client, maxPages int, pageURL func(page int) string, parse func(doc *goquery.Document) []Candidate) ([]Candidate, error) {
	if maxPages < 1 {
		maxPages = 1
	}

	seen := map[string]struct{}{}
	var candidates []Candidate

	for page := 1; page <= maxPages; page++ {
		doc, err := client.FetchDocument(ctx, pageURL(page))
		if err != nil {
			if page == 1 {
				return nil, fmt.Errorf("listing page: %w", err)
			}
			break
		}

		found := parse(doc)
		if len(found) == 0 {
			break
		}

		for _, candidate := range found {
			if _, ok := seen[candidate.URL]; ok {
				continue
			}
			seen[candidate.URL] = struct{}{}
			candidates = append(candidates, candidate)
		}
	}

	return candidates, nil
}

func absoluteURL(base, href string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	return strings.TrimSuffix(base, "/") + href
}
