package extract

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
)

// ErrNoMatchingStructure is returned when no strategy recognizes the page.
var ErrNoMatchingStructure = errors.New("no extraction strategy matched page structure")

// ErrEmptyContent is returned when the page matched a known structure but
// yielded only stub/placeholder content below the minimum body length.
var ErrEmptyContent = errors.New("extracted content below minimum length")

// Payload is the article material pulled out of a page.
type Payload struct {
	Title       string
	Body        string
	PublishedAt *time.Time
}

// Strategy is one pure extraction attempt over a parsed document.
type Strategy struct {
	Name  string
	Apply func(doc *goquery.Document) Payload
}

// Chain evaluates strategies in order and short-circuits on the first one
// that yields a non-empty title and a body above the minimum length. The
// order is fixed at construction, so results are deterministic.
type Chain struct {
	strategies []Strategy
	minBody    int
}

// NewChain builds an ordered fallback chain.
func NewChain(minBody int, strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies, minBody: minBody}
}

// Extract runs the chain and returns the winning payload and strategy name.
func (c *Chain) Extract(doc *goquery.Document) (Payload, string, error) {
	matchedButThin := false

	for _, s := range c.strategies {
		payload := s.Apply(doc)
		if payload.Title == "" || payload.Body == "" {
			continue
		}
		if len(payload.Body) < c.minBody {
			matchedButThin = true
			continue
		}
		return payload, s.Name, nil
	}

	if matchedButThin {
		return Payload{}, "", ErrEmptyContent
	}
	return Payload{}, "", ErrNoMatchingStructure
}

// JSONLD extracts from an application/ld+json NewsArticle block when the
// page embeds structured data.
func JSONLD() Strategy {
	return Strategy{
		Name: "jsonld",
		Apply: func(doc *goquery.Document) Payload {
			var payload Payload
			doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
				if p, ok := parseJSONLD(sel.Text()); ok {
					payload = p
					return false
				}
				return true
			})
			return payload
		},
	}
}

// ParagraphsUnder joins the <p> text inside the first container selector
// that matches, in the given order. This mirrors the per-source content
// containers the providers actually render.
func ParagraphsUnder(selectors ...string) Strategy {
	return Strategy{
		Name: "selectors",
		Apply: func(doc *goquery.Document) Payload {
			for _, selector := range selectors {
				container := doc.Find(selector).First()
				if container.Length() == 0 {
					continue
				}
				body := joinParagraphs(container)
				if body == "" {
					continue
				}
				return Payload{
					Title:       pageTitle(doc),
					Body:        body,
					PublishedAt: publishedAt(doc),
				}
			}
			return Payload{}
		},
	}
}

// LargestTextBlock is the last-resort heuristic: pick whichever block
// element carries the most paragraph text.
func LargestTextBlock() Strategy {
	return Strategy{
		Name: "largest-text-block",
		Apply: func(doc *goquery.Document) Payload {
			var best string
			doc.Find("article, section, div").Each(func(_ int, sel *goquery.Selection) {
				body := joinDirectParagraphs(sel)
				if len(body) > len(best) {
					best = body
				}
			})
			if best == "" {
				return Payload{}
			}
			return Payload{
				Title:       pageTitle(doc),
				Body:        best,
				PublishedAt: publishedAt(doc),
			}
		},
	}
}

func parseJSONLD(raw string) (Payload, bool) {
	var node any
	if err := json.Unmarshal([]byte(raw), &node); err != nil {
		return Payload{}, false
	}

	for _, obj := range flattenJSONLD(node) {
		if !isArticleType(obj["@type"]) {
			continue
		}

		title, _ := obj["headline"].(string)
		body, _ := obj["articleBody"].(string)
		if title == "" || body == "" {
			continue
		}

		payload := Payload{Title: strings.TrimSpace(title), Body: strings.TrimSpace(body)}
		if published, ok := obj["datePublished"].(string); ok {
			if parsed, err := dateparse.ParseAny(published); err == nil {
				utc := parsed.UTC()
				payload.PublishedAt = &utc
			}
		}
		return payload, true
	}

	return Payload{}, false
}

func flattenJSONLD(node any) []map[string]any {
	switch typed := node.(type) {
	case map[string]any:
		if graph, ok := typed["@graph"].([]any); ok {
			return flattenJSONLD(graph)
		}
		return []map[string]any{typed}
	case []any:
		var objs []map[string]any
		for _, item := range typed {
			objs = append(objs, flattenJSONLD(item)...)
		}
		return objs
	}
	return nil
}

func isArticleType(value any) bool {
	switch typed := value.(type) {
	case string:
		return typed == "NewsArticle" || typed == "Article"
	case []any:
		for _, item := range typed {
			if s, ok := item.(string); ok && (s == "NewsArticle" || s == "Article") {
				return true
			}
		}
	}
	return false
}

func joinParagraphs(sel *goquery.Selection) string {
	var parts []string
	sel.Find("p").Each(func(_ int, p *goquery.Selection) {
		if text := strings.TrimSpace(p.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n\n")
}

// joinDirectParagraphs only counts immediate children so nested wrappers
// do not all report the same text for the heuristic comparison.
func joinDirectParagraphs(sel *goquery.Selection) string {
	var parts []string
	sel.ChildrenFiltered("p").Each(func(_ int, p *goquery.Selection) {
		if text := strings.TrimSpace(p.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n\n")
}

func pageTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("h1").First().Text()); title != "" {
		return title
	}
	if title, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		return strings.TrimSpace(title)
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func publishedAt(doc *goquery.Document) *time.Time {
	candidates := []string{}
	if content, ok := doc.Find(`meta[property="article:published_time"]`).Attr("content"); ok {
		candidates = append(candidates, content)
	}
	if datetime, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		candidates = append(candidates, datetime)
	}

	for _, candidate := range candidates {
		if parsed, err := dateparse.ParseAny(strings.TrimSpace(candidate)); err == nil {
			utc := parsed.UTC()
			return &utc
		}
	}
	return nil
}
