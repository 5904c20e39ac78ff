package sources

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"newsharvest/internal/domain"
	"newsharvest/internal/extract"
	"newsharvest/internal/fetch"
)

const liveMintBase = "https://www.livemint.com"

// LiveMint scrapes livemint.com listing pages. The logical category
// "latest" maps onto the provider's latest-news section.
type LiveMint struct {
	baseURL string
	chain   *extract.Chain
}

var _ Adapter = (*LiveMint)(nil)

// NewLiveMint builds the adapter with its extraction fallback chain.
func NewLiveMint(minBody int) *LiveMint {
	return &LiveMint{
		baseURL: liveMintBase,
		chain: extract.NewChain(minBody,
			extract.JSONLD(),
			extract.ParagraphsUnder("div.story-content", "div.contentSec", "div#mainContent"),
			extract.LargestTextBlock(),
		),
	}
}

// Name identifies the adapter inside the registry.
func (l *LiveMint) Name() domain.Source {
	return domain.SourceLiveMint
}

// Extractor returns the article-page fallback chain.
func (l *LiveMint) Extractor() *extract.Chain {
	return l.chain
}

// ListCandidates walks the section's page-<n> listing pages.
func (l *LiveMint) ListCandidates(ctx context.Context, client *fetch.Client, category string, maxPages int) ([]Candidate, error) {
	section := category
	if section == "latest" {
		section = "latest-news"
	}

	pageURL := func(page int) string {
		if page > 1 {
			return fmt.Sprintf("%s/%s/page-%d", l.baseURL, section, page)
		}
		return fmt.Sprintf("%s/%s", l.baseURL, section)
	}

	return listPages(ctx, client, maxPages, pageURL, l.parseListing)
}

func (l *LiveMint) parseListing(doc *goquery.Document) []Candidate {
	var candidates []Candidate

	doc.Find("div.headlineSec a").Each(func(_ int, link *goquery.Selection) {
		title := strings.TrimSpace(link.Text())
		href, ok := link.Attr("href")
		if title == "" || !ok || href == "" {
			return
		}
		candidates = append(candidates, Candidate{
			URL:   absoluteURL(l.baseURL, href),
			Title: title,
		})
	})

	return candidates
}
