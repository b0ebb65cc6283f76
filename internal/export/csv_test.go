package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ggpdev/ggstore-crawler/internal/models"
)

func TestWriteCSV(t *testing.T) {
	result := &models.CrawlResult{}
	result.AddProduct(models.Product{
		ID:       "classic-tee",
		Name:     "Classic T-Shirt",
		URL:      "https://ggstore.com/products/classic-tee",
		Price:    "$29.99",
		Category: "TEES",
		Images: []models.ImageRecord{
			{Filename: "classic-tee_01.jpg"},
			{Filename: "classic-tee_02.jpg"},
		},
		CrawledAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	})
	result.AddProduct(models.Product{
		ID:   "cap-red",
		Name: "Red Cap, Limited",
		URL:  "https://ggstore.com/products/cap-red",
	})

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, result))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{"id", "name", "url", "price", "category", "image_count", "crawled_at"}, rows[0])
	assert.Equal(t, "classic-tee", rows[1][0])
	assert.Equal(t, "2", rows[1][5])
	assert.Equal(t, "2026-08-01T12:00:00Z", rows[1][6])
	// Commas in names survive the round trip.
	assert.Equal(t, "Red Cap, Limited", rows[2][1])
	assert.Equal(t, "0", rows[2][5])
}

func TestWriteCSVEmptyResult(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, &models.CrawlResult{}))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestWriteCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "products.csv")

	result := &models.CrawlResult{}
	result.AddProduct(models.Product{ID: "tee", Name: "Tee"})

	require.NoError(t, WriteCSVFile(path, result))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "tee,Tee")
}
