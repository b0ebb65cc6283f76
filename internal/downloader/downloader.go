package downloader

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ggpdev/ggstore-crawler/internal/metrics"
	"github.com/ggpdev/ggstore-crawler/internal/models"
)

// defaultExtension is used when a URL carries no recognized image extension.
const defaultExtension = ".jpg"

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

var knownExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
}

// Downloader fetches product images with bounded concurrency. One instance
// is shared across the whole crawl; per-product batches run through it
// sequentially.
type Downloader struct {
	client        *http.Client
	outputDir     string
	maxConcurrent int
	skipExisting  bool
	logger        *slog.Logger
}

type Options struct {
	OutputDir     string
	MaxConcurrent int
	SkipExisting  bool
	Timeout       time.Duration
	// Client overrides the HTTP client; tests inject a mock transport here.
	Client *http.Client
}

// Result is the outcome for one image URL. Results for a batch come back in
// the same order as the input URLs so the caller can rely on the 1-based
// index encoded in the filename.
type Result struct {
	URL     string
	Record  *models.ImageRecord
	Skipped bool
	Err     error
}

func New(opts Options) *Downloader {
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	return &Downloader{
		client:        client,
		outputDir:     opts.OutputDir,
		maxConcurrent: opts.MaxConcurrent,
		skipExisting:  opts.SkipExisting,
		logger:        slog.Default().With("component", "downloader"),
	}
}

// Filename derives the local name for an image: the product identifier, a
// 1-based zero-padded index, and the URL's extension when it is a known
// image type, defaulting to .jpg otherwise. Renaming on the site never
// changes the name; only gallery position does.
func Filename(productID string, index int, imageURL string) string {
	ext := defaultExtension

	raw := imageURL
	if parsed, err := url.Parse(imageURL); err == nil && parsed.Path != "" {
		raw = parsed.Path
	}
	if candidate := strings.ToLower(path.Ext(raw)); knownExtensions[candidate] {
		ext = candidate
	}

	return fmt.Sprintf("%s_%02d%s", productID, index, ext)
}

// DownloadProductImages fetches every URL in the batch concurrently, capped
// at the configured limit. A failed URL yields a Result with Err set and
// never aborts the rest of the batch.
func (d *Downloader) DownloadProductImages(ctx context.Context, productID string, urls []string) []Result {
	results := make([]Result, len(urls))

	sem := make(chan struct{}, d.maxConcurrent)
	var wg sync.WaitGroup

	for i, imageURL := range urls {
		wg.Add(1)
		go func(index int, imageURL string) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			results[index] = d.downloadOne(ctx, productID, index+1, imageURL)
		}(i, imageURL)
	}

	wg.Wait()
	return results
}

func (d *Downloader) downloadOne(ctx context.Context, productID string, index int, imageURL string) Result {
	result := Result{URL: imageURL}

	filename := Filename(productID, index, imageURL)
	localPath := filepath.Join(d.outputDir, filename)

	if d.skipExisting {
		if info, err := os.Stat(localPath); err == nil {
			result.Skipped = true
			result.Record = &models.ImageRecord{
				Filename:     filename,
				OriginalURL:  imageURL,
				LocalPath:    localPath,
				DownloadedAt: info.ModTime(),
			}
			metrics.ImagesSkipped.Inc()
			return result
		}
	}

	start := time.Now()
	if err := d.fetch(ctx, imageURL, localPath); err != nil {
		result.Err = err
		metrics.ImagesFailed.Inc()
		d.logger.Warn("image download failed", "product", productID, "url", imageURL, "error", err)
		return result
	}
	metrics.DownloadDuration.Observe(time.Since(start).Seconds())
	metrics.ImagesDownloaded.Inc()

	result.Record = &models.ImageRecord{
		Filename:     filename,
		OriginalURL:  imageURL,
		LocalPath:    localPath,
		DownloadedAt: time.Now(),
	}
	return result
}

// fetch writes the response body to a temp file and renames it into place,
// so an interrupted download never leaves a truncated image that a later
// skip-existing check would mistake for a finished one.
func (d *Downloader) fetch(ctx context.Context, imageURL, localPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmpPath := localPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	return os.Rename(tmpPath, localPath)
}
