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

const moneyControlBase = "https://www.moneycontrol.com"

// MoneyControl scrapes moneycontrol.com category listings.
type MoneyControl struct {
	baseURL string
	chain   *extract.Chain
}

var _ Adapter = (*MoneyControl)(nil)

// NewMoneyControl builds the adapter with its extraction fallback chain.
func NewMoneyControl(minBody int) *MoneyControl {
	return &MoneyControl{
		baseURL: moneyControlBase,
		chain: extract.NewChain(minBody,
			extract.JSONLD(),
			extract.ParagraphsUnder("div.article_page", "div#contentdata"),
			extract.LargestTextBlock(),
		),
	}
}

// Name identifies the adapter inside the registry.
func (m *MoneyControl) Name() domain.Source {
	return domain.SourceMoneyControl
}

// Extractor returns the article-page fallback chain.
func (m *MoneyControl) Extractor() *extract.Chain {
	return m.chain
}

// ListCandidates walks /news/<category>/ listing pages.
func (m *MoneyControl) ListCandidates(ctx context.Context, client *fetch.Client, category string, maxPages int) ([]Candidate, error) {
	pageURL := func(page int) string {
		if page > 1 {
			return fmt.Sprintf("%s/news/%s/page-%d/", m.baseURL, category, page)
		}
		return fmt.Sprintf("%s/news/%s/", m.baseURL, category)
	}

	return listPages(ctx, client, maxPages, pageURL, m.parseListing)
}

func (m *MoneyControl) parseListing(doc *goquery.Document) []Candidate {
	var candidates []Candidate

	doc.Find("li.clearfix").Each(func(_ int, item *goquery.Selection) {
		title := strings.TrimSpace(item.Find("h2").First().Text())
		href, ok := item.Find("a").First().Attr("href")
		if title == "" || !ok || href == "" {
			return
		}
		candidates = append(candidates, Candidate{
			URL:   absoluteURL(m.baseURL, href),
			Title: title,
		})
	})

	return candidates
}
