package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"newsharvest/internal/domain"
)

var csvHeader = []string{"title", "url", "category", "content", "source", "scraped_at", "published_at"}

// WriteCSV renders articles as CSV in the dashboard export column order.
func WriteCSV(w io.Writer, articles []domain.Article) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, article := range articles {
		published := ""
		if article.PublishedAt != nil {
			published = article.PublishedAt.UTC().Format(time.RFC3339)
		}

		record := []string{
			article.Title,
			article.URL,
			article.Category,
			article.Content,
			string(article.Source),
			article.ScrapedAt.UTC().Format(time.RFC3339),
			published,
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}
