package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ggpdev/ggstore-crawler/internal/models"
)

func sampleResult() *models.CrawlResult {
	result := &models.CrawlResult{}
	result.AddProduct(models.Product{
		ID:   "classic-tee",
		Name: "Classic T-Shirt",
		URL:  "https://ggstore.com/products/classic-tee",
		Images: []models.ImageRecord{
			{Filename: "classic-tee_01.jpg", OriginalURL: "https://ggstore.com/cdn/shop/products/a.jpg", DownloadedAt: time.Now()},
			{Filename: "classic-tee_02.jpg", OriginalURL: "https://ggstore.com/cdn/shop/products/b.jpg", DownloadedAt: time.Now()},
		},
	})
	result.AddProduct(models.Product{
		ID:   "empty-product",
		Name: "No Images Yet",
		URL:  "https://ggstore.com/products/empty-product",
	})
	return result
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.json")

	ms, err := NewMetadataStore(path)
	require.NoError(t, err)

	require.NoError(t, ms.Save(sampleResult()))

	// No leftover temp file after the atomic rename.
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	reloaded, err := NewMetadataStore(path)
	require.NoError(t, err)

	result := reloaded.Result()
	assert.Equal(t, 2, result.TotalProducts)
	assert.Equal(t, 2, result.TotalImages)
	require.Len(t, result.Products, 2)
	assert.Equal(t, "Classic T-Shirt", result.Products[0].Name)
}

func TestSaveRefreshesTotals(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.json")

	ms, err := NewMetadataStore(path)
	require.NoError(t, err)

	result := sampleResult()
	// Stale totals must be recomputed on save.
	result.TotalProducts = 99
	result.TotalImages = 99

	require.NoError(t, ms.Save(result))
	assert.Equal(t, 2, ms.Result().TotalProducts)
	assert.Equal(t, 2, ms.Result().TotalImages)
}

func TestMissingFileStartsEmpty(t *testing.T) {
	ms, err := NewMetadataStore(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	result := ms.Result()
	assert.Empty(t, result.Products)
	assert.Empty(t, ms.DownloadedProductIDs())
}

func TestCorruptFileFailsLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewMetadataStore(path)
	assert.Error(t, err)
}

func TestDownloadedProductIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.json")

	ms, err := NewMetadataStore(path)
	require.NoError(t, err)
	require.NoError(t, ms.Save(sampleResult()))

	ids := ms.DownloadedProductIDs()
	assert.True(t, ids["classic-tee"])
	// A product without images on disk is not "downloaded".
	assert.False(t, ids["empty-product"])
	assert.Len(t, ids, 1)
}

func TestGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.json")

	ms, err := NewMetadataStore(path)
	require.NoError(t, err)
	require.NoError(t, ms.Save(sampleResult()))

	product, ok := ms.Get("classic-tee")
	require.True(t, ok)
	assert.Equal(t, "Classic T-Shirt", product.Name)

	_, ok = ms.Get("nope")
	assert.False(t, ok)
}
