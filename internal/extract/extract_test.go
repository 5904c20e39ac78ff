package extract

import (
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func docFromHTML(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

const articleBody = "Markets rallied on Friday as banking stocks led the charge across indices and investors digested the central bank commentary on rate expectations going into the next quarter."

func TestChainPicksFirstMatchingStrategy(t *testing.T) {
	t.Parallel()

	// Page matches the selector strategy but carries no JSON-LD, so the
	// result must come from strategy 2, never strategy 3.
	html := `<html><body>
		<h1>Banking stocks lead rally</h1>
		<div class="story-content"><p>` + articleBody + `</p></div>
		<div class="unrelated"><p>` + articleBody + articleBody + `</p></div>
	</body></html>`

	chain := NewChain(50,
		JSONLD(),
		ParagraphsUnder("div.story-content"),
		LargestTextBlock(),
	)

	payload, strategy, err := chain.Extract(docFromHTML(t, html))
	require.NoError(t, err)
	assert.Equal(t, "selectors", strategy)
	assert.Equal(t, "Banking stocks lead rally", payload.Title)
	assert.Equal(t, articleBody, payload.Body)
}

func TestChainJSONLDWins(t *testing.T) {
	t.Parallel()

	html := `<html><head>
		<script type="application/ld+json">
		{"@type":"NewsArticle","headline":"Rupee steadies","articleBody":"` + articleBody + `","datePublished":"2026-08-12T09:30:00Z"}
		</script>
	</head><body>
		<h1>Different on-page title</h1>
		<div class="story-content"><p>` + articleBody + `</p></div>
	</body></html>`

	chain := NewChain(50,
		JSONLD(),
		ParagraphsUnder("div.story-content"),
	)

	payload, strategy, err := chain.Extract(docFromHTML(t, html))
	require.NoError(t, err)
	assert.Equal(t, "jsonld", strategy)
	assert.Equal(t, "Rupee steadies", payload.Title)
	require.NotNil(t, payload.PublishedAt)
	assert.Equal(t, time.Date(2026, 8, 12, 9, 30, 0, 0, time.UTC), payload.PublishedAt.UTC())
}

func TestChainNoMatchingStructure(t *testing.T) {
	t.Parallel()

	html := `<html><body><span>nothing useful</span></body></html>`
	chain := NewChain(50, JSONLD(), ParagraphsUnder("div.story-content"))

	_, _, err := chain.Extract(docFromHTML(t, html))
	assert.ErrorIs(t, err, ErrNoMatchingStructure)
}

func TestChainRejectsStubContent(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<h1>Stub page</h1>
		<div class="story-content"><p>too short</p></div>
	</body></html>`
	chain := NewChain(200, ParagraphsUnder("div.story-content"))

	_, _, err := chain.Extract(docFromHTML(t, html))
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestLargestTextBlockFallback(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<h1>Fallback title</h1>
		<div class="sidebar"><p>short promo</p></div>
		<div class="main"><p>` + articleBody + `</p><p>` + articleBody + `</p></div>
	</body></html>`
	chain := NewChain(50, ParagraphsUnder("div.story-content"), LargestTextBlock())

	payload, strategy, err := chain.Extract(docFromHTML(t, html))
	require.NoError(t, err)
	assert.Equal(t, "largest-text-block", strategy)
	assert.Equal(t, "Fallback title", payload.Title)
	assert.Contains(t, payload.Body, articleBody)
}

func TestJSONLDGraphAndArrays(t *testing.T) {
	t.Parallel()

	html := `<html><head><script type="application/ld+json">
	{"@graph":[{"@type":"Organization","name":"x"},{"@type":["Thing","NewsArticle"],"headline":"Graph headline","articleBody":"` + articleBody + `"}]}
	</script></head><body></body></html>`

	payload := JSONLD().Apply(docFromHTML(t, html))
	assert.Equal(t, "Graph headline", payload.Title)
	assert.Equal(t, articleBody, payload.Body)
}

func TestPublishedAtFromMeta(t *testing.T) {
	t.Parallel()

	html := `<html><head>
		<meta property="article:published_time" content="2026-08-10T06:00:00+05:30"/>
	</head><body>
		<h1>Meta date</h1>
		<div class="story-content"><p>` + articleBody + `</p></div>
	</body></html>`
	chain := NewChain(50, ParagraphsUnder("div.story-content"))

	payload, _, err := chain.Extract(docFromHTML(t, html))
	require.NoError(t, err)
	require.NotNil(t, payload.PublishedAt)
	assert.Equal(t, time.Date(2026, 8, 10, 0, 30, 0, 0, time.UTC), payload.PublishedAt.UTC())
}
