package domain

import "time"

// Source identifies a supported news provider.
type Source string

const (
	SourceMoneyControl     Source = "moneycontrol"
	SourceFinancialExpress Source = "financialexpress"
	SourceLiveMint         Source = "livemint"
	SourceCNBC             Source = "cnbc"
	SourceBusinessStandard Source = "businessstandard"
)

// KnownSources lists every provider the pipeline understands, including
// ones whose adapters are still planned.
func KnownSources() []Source {
	return []Source{
		SourceMoneyControl,
		SourceFinancialExpress,
		SourceLiveMint,
		SourceCNBC,
		SourceBusinessStandard,
	}
}

// Valid reports whether s is a known provider name.
func (s Source) Valid() bool {
	for _, known := range KnownSources() {
		if s == known {
			return true
		}
	}
	return false
}

// Article is the normalized record produced by the pipeline. (Source, URL)
// is the unique key in storage; re-scraping an existing URL never creates
// a second row.
type Article struct {
	Source      Source
	Category    string
	URL         string
	Title       string
	Content     string
	PublishedAt *time.Time
	ScrapedAt   time.Time
}

// SaveResult reports what the persistence gateway did with an article.
type SaveResult int

const (
	Inserted SaveResult = iota
	DuplicateSkipped
)

// ArticleFilter narrows article queries on the read surface.
type ArticleFilter struct {
	Sources    []Source
	Categories []string
	From       *time.Time
	To         *time.Time
	Limit      int
}
