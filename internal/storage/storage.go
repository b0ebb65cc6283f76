package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ggpdev/ggstore-crawler/internal/models"
)

// MetadataStore persists the crawl metadata snapshot as pretty-printed JSON.
// The file is the source of truth for which products already have their
// images on disk, so incremental crawls read it before touching the site.
type MetadataStore struct {
	mu       sync.RWMutex
	result   *models.CrawlResult
	filename string
}

// NewMetadataStore opens the snapshot at filename, starting empty when the
// file does not exist yet.
func NewMetadataStore(filename string) (*MetadataStore, error) {
	ms := &MetadataStore{
		result:   &models.CrawlResult{},
		filename: filename,
	}

	if err := ms.Load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	return ms, nil
}

// Load replaces the in-memory snapshot with the file contents.
func (ms *MetadataStore) Load() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	data, err := os.ReadFile(ms.filename)
	if err != nil {
		return err
	}

	result := &models.CrawlResult{}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("failed to parse metadata: %w", err)
	}

	ms.result = result
	return nil
}

// Save writes the snapshot with refreshed totals and timestamp. The write
// goes through a temp file and rename so readers never see partial JSON.
func (ms *MetadataStore) Save(result *models.CrawlResult) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	result.CrawledAt = time.Now()
	result.TotalProducts = len(result.Products)
	result.TotalImages = result.CountImages()
	ms.result = result

	return ms.save()
}

func (ms *MetadataStore) save() error {
	data, err := json.MarshalIndent(ms.result, "", "  ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(ms.filename); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	tmpFile := ms.filename + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return err
	}

	return os.Rename(tmpFile, ms.filename)
}

// Result returns a copy of the current snapshot.
func (ms *MetadataStore) Result() models.CrawlResult {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	result := *ms.result
	result.Products = append([]models.Product(nil), ms.result.Products...)
	return result
}

// Get returns the product with the given identifier, if present.
func (ms *MetadataStore) Get(productID string) (models.Product, bool) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	for _, p := range ms.result.Products {
		if p.ID == productID {
			return p, true
		}
	}
	return models.Product{}, false
}

// DownloadedProductIDs is the skip set for incremental crawls: identifiers
// of products that already have at least one image on disk.
func (ms *MetadataStore) DownloadedProductIDs() map[string]bool {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	ids := make(map[string]bool)
	for _, p := range ms.result.Products {
		if len(p.Images) > 0 {
			ids[p.ID] = true
		}
	}
	return ids
}
