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

const financialExpressBase = "https://www.financialexpress.com"

// FinancialExpress scrapes financialexpress.com category listings.
type FinancialExpress struct {
	baseURL string
	chain   *extract.Chain
}

var _ Adapter = (*FinancialExpress)(nil)

// NewFinancialExpress builds the adapter with its extraction fallback chain.
func NewFinancialExpress(minBody int) *FinancialExpress {
	return &FinancialExpress{
		baseURL: financialExpressBase,
		chain: extract.NewChain(minBody,
			extract.JSONLD(),
			extract.ParagraphsUnder("div.article-section", "div.post-content", "div.entry-content"),
			extract.LargestTextBlock(),
		),
	}
}

// Name identifies the adapter inside the registry.
func (f *FinancialExpress) Name() domain.Source {
	return domain.SourceFinancialExpress
}

// Extractor returns the article-page fallback chain.
func (f *FinancialExpress) Extractor() *extract.Chain {
	return f.chain
}

// ListCandidates walks /<category>/page/<n>/ listing pages.
func (f *FinancialExpress) ListCandidates(ctx context.Context, client *fetch.Client, category string, maxPages int) ([]Candidate, error) {
	pageURL := func(page int) string {
		if page > 1 {
			return fmt.Sprintf("%s/%s/page/%d/", f.baseURL, category, page)
		}
		return fmt.Sprintf("%s/%s/", f.baseURL, category)
	}

	return listPages(ctx, client, maxPages, pageURL, f.parseListing)
}

func (f *FinancialExpress) parseListing(doc *goquery.Document) []Candidate {
	var candidates []Candidate

	doc.Find("h2.entry-title a").Each(func(_ int, link *goquery.Selection) {
		title := strings.TrimSpace(link.Text())
		href, ok := link.Attr("href")
		if title == "" || !ok || href == "" {
			return
		}
		candidates = append(candidates, Candidate{
			URL:   absoluteURL(f.baseURL, href),
			Title: title,
		})
	})

	return candidates
}
