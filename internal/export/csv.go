package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ggpdev/ggstore-crawler/internal/models"
)

var csvHeader = []string{"id", "name", "url", "price", "category", "image_count", "crawled_at"}

// WriteCSV renders the crawl result as a flat CSV table, one row per
// product. Image files themselves stay on disk; the column only counts them.
func WriteCSV(w io.Writer, result *models.CrawlResult) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, p := range result.Products {
		row := []string{
			p.ID,
			p.Name,
			p.URL,
			p.Price,
			p.Category,
			strconv.Itoa(len(p.Images)),
			p.CrawledAt.Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for %s: %w", p.ID, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteCSVFile writes the table to path, creating parent directories as
// needed.
func WriteCSVFile(path string, result *models.CrawlResult) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	return WriteCSV(f, result)
}
