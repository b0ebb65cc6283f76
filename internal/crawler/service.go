package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ggpdev/ggstore-crawler/internal/downloader"
	"github.com/ggpdev/ggstore-crawler/internal/ledger"
	"github.com/ggpdev/ggstore-crawler/internal/metrics"
	"github.com/ggpdev/ggstore-crawler/internal/models"
	"github.com/ggpdev/ggstore-crawler/internal/parser"
	"github.com/ggpdev/ggstore-crawler/internal/ratelimit"
	"github.com/ggpdev/ggstore-crawler/internal/storage"
)

// PageRenderer is the rendering capability the crawl depends on. The real
// implementation is the playwright browser; tests supply a fake serving
// canned markup.
type PageRenderer interface {
	RenderPage(ctx context.Context, url string) (string, error)
}

// Options tunes a single crawl run.
type Options struct {
	BaseURL string
	// MaxPages is the pagination circuit breaker.
	MaxPages int
	// CheckpointInterval is how many processed products sit between
	// metadata snapshots.
	CheckpointInterval int
	SkipExisting       bool
	JobType            ledger.JobType
	JobConfig          ledger.JobConfig
	Agent              string
}

func DefaultOptions() Options {
	return Options{
		BaseURL:            parser.DefaultBaseURL,
		MaxPages:           50,
		CheckpointInterval: 10,
		SkipExisting:       true,
		JobType:            ledger.JobFullCrawl,
		JobConfig:          ledger.DefaultJobConfig(),
		Agent:              "crawler-agent",
	}
}

// Service drives the whole pipeline: discover product URLs, render each
// product page, extract, download images, and record outcomes in the ledger
// and metadata store. Products are processed strictly one at a time;
// concurrency lives inside the downloader's image batches only.
type Service struct {
	renderer   PageRenderer
	parser     *parser.Parser
	downloader *downloader.Downloader
	store      *storage.MetadataStore
	ledger     *ledger.Manager
	limiter    ratelimit.Limiter
	opts       Options
	logger     *slog.Logger
}

func New(renderer PageRenderer, p *parser.Parser, dl *downloader.Downloader, store *storage.MetadataStore, lm *ledger.Manager, limiter ratelimit.Limiter, opts Options) *Service {
	if opts.MaxPages < 1 {
		opts.MaxPages = 50
	}
	if opts.CheckpointInterval < 1 {
		opts.CheckpointInterval = 10
	}
	if opts.BaseURL == "" {
		opts.BaseURL = parser.DefaultBaseURL
	}

	return &Service{
		renderer:   renderer,
		parser:     p,
		downloader: dl,
		store:      store,
		ledger:     lm,
		limiter:    limiter,
		opts:       opts,
		logger:     slog.Default().With("component", "crawler"),
	}
}

// DiscoverProductURLs walks the collection listing page by page and returns
// every product URL in first-seen order. Pagination stops when a page
// yields no product links at all, when a page contributes nothing new (the
// listing has started repeating itself), or at the page ceiling.
func (s *Service) DiscoverProductURLs(ctx context.Context) ([]string, error) {
	var productURLs []string
	seen := make(map[string]struct{})

	base := strings.TrimSuffix(s.opts.BaseURL, "/")

	for pageNum := 1; pageNum <= s.opts.MaxPages; pageNum++ {
		if err := ctx.Err(); err != nil {
			return productURLs, err
		}

		pageURL := fmt.Sprintf("%s/collections/all?page=%d", base, pageNum)
		s.logger.Info("fetching listing page", "page", pageNum, "url", pageURL)

		if err := s.limiter.Wait(ctx); err != nil {
			return productURLs, err
		}

		markup, err := s.renderer.RenderPage(ctx, pageURL)
		if err != nil {
			return productURLs, fmt.Errorf("failed to fetch listing page %d: %w", pageNum, err)
		}
		metrics.PagesFetched.Inc()

		links := s.parser.ExtractProductLinks(markup)
		if len(links) == 0 {
			s.logger.Info("no products on page, stopping", "page", pageNum)
			break
		}

		newCount := 0
		for _, link := range links {
			if _, ok := seen[link]; ok {
				continue
			}
			seen[link] = struct{}{}
			productURLs = append(productURLs, link)
			newCount++
		}

		if newCount == 0 {
			s.logger.Info("no new products on page, stopping", "page", pageNum)
			break
		}

		s.logger.Info("found products", "page", pageNum, "new", newCount)

		if err := s.ledger.UpdateProgress(ledger.ProgressUpdate{
			ProductsDiscovered: ledger.Int(len(productURLs)),
			CurrentPage:        ledger.Int(pageNum),
		}); err != nil {
			return productURLs, err
		}
	}

	return productURLs, nil
}

// Run executes one full crawl under a new job and session. Per-product
// failures are logged to the ledger and skipped; only setup failures or a
// broken discovery phase fail the job itself.
func (s *Service) Run(ctx context.Context) (*models.CrawlResult, error) {
	job, err := s.ledger.CreateJob(s.opts.JobType, s.opts.JobConfig, "high")
	if err != nil {
		return nil, err
	}
	if _, err := s.ledger.StartSession(s.opts.Agent); err != nil {
		return nil, err
	}
	if _, err := s.ledger.StartJob(job.ID, s.opts.Agent); err != nil {
		return nil, err
	}

	result, runErr := s.crawl(ctx, job.ID)

	jobResult := ledger.JobResult{
		Success:         runErr == nil,
		TotalProducts:   result.TotalProducts,
		TotalImages:     result.TotalImages,
		NewProducts:     result.newProducts,
		NewImages:       result.newImages,
		SkippedProducts: result.skipped,
		FailedDownloads: result.failedDownloads,
	}
	if runErr != nil {
		jobResult.ErrorMessage = runErr.Error()
	}

	if _, err := s.ledger.CompleteJob(job.ID, jobResult); err != nil {
		return &result.CrawlResult, err
	}

	if runErr != nil {
		if err := s.ledger.EndSession(ledger.StatusFailed); err != nil {
			return &result.CrawlResult, err
		}
		return &result.CrawlResult, runErr
	}

	if err := s.ledger.SyncFromMetadata(&result.CrawlResult); err != nil {
		return &result.CrawlResult, err
	}
	if err := s.ledger.EndSession(ledger.StatusCompleted); err != nil {
		return &result.CrawlResult, err
	}

	s.logger.Info("crawl complete",
		"products", result.TotalProducts,
		"images", result.TotalImages,
		"skipped", result.skipped)

	return &result.CrawlResult, nil
}

type runResult struct {
	models.CrawlResult
	newProducts     int
	newImages       int
	skipped         int
	failedDownloads int
}

func (s *Service) crawl(ctx context.Context, jobID string) (*runResult, error) {
	result := &runResult{CrawlResult: models.CrawlResult{CrawledAt: time.Now()}}

	var existingIDs map[string]bool
	if s.opts.SkipExisting {
		existingIDs = s.store.DownloadedProductIDs()
		if len(existingIDs) > 0 {
			s.logger.Info("found already downloaded products", "count", len(existingIDs))
		}
	}

	productURLs, err := s.DiscoverProductURLs(ctx)
	if err != nil {
		return result, err
	}
	s.logger.Info("discovery complete", "products", len(productURLs))

	for i, url := range productURLs {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		productID := s.parser.ExtractProductID(url)

		if existingIDs[productID] {
			s.logger.Info("skipping existing product",
				"position", fmt.Sprintf("%d/%d", i+1, len(productURLs)),
				"product", productID)
			// Carry the prior record forward so the snapshot written at the
			// end of this run keeps covering skipped products.
			if prior, ok := s.store.Get(productID); ok {
				result.AddProduct(prior)
			}
			result.skipped++
			metrics.ProductsSkipped.Inc()
			if err := s.ledger.UpdateProgress(ledger.ProgressUpdate{
				ProductsSkipped: ledger.Int(result.skipped),
				LastProductURL:  ledger.String(url),
			}); err != nil {
				return result, err
			}
			continue
		}

		s.logger.Info("processing product",
			"position", fmt.Sprintf("%d/%d", i+1, len(productURLs)),
			"product", productID)

		if err := s.processProduct(ctx, jobID, productID, url, result); err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			s.logger.Error("product failed", "product", productID, "error", err)
			s.recordProductFailure(jobID, productID, url, err)
			continue
		}
		if err := s.ledger.UpdateProgress(ledger.ProgressUpdate{
			ProductsCrawled:  ledger.Int(result.newProducts),
			ImagesDownloaded: ledger.Int(result.newImages),
			LastProductURL:   ledger.String(url),
		}); err != nil {
			return result, err
		}

		if (i+1)%s.opts.CheckpointInterval == 0 {
			if err := s.store.Save(&result.CrawlResult); err != nil {
				return result, fmt.Errorf("checkpoint save failed: %w", err)
			}
		}
	}

	if err := s.store.Save(&result.CrawlResult); err != nil {
		return result, fmt.Errorf("final save failed: %w", err)
	}

	return result, nil
}

func (s *Service) processProduct(ctx context.Context, jobID, productID, url string, result *runResult) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	markup, err := s.renderer.RenderPage(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to render product page: %w", err)
	}
	metrics.PagesFetched.Inc()

	candidate := s.parser.ParseProduct(markup, url)

	batch := s.downloader.DownloadProductImages(ctx, candidate.ID, candidate.ImageURLs)

	var images []models.ImageRecord
	failed := 0
	for _, r := range batch {
		if r.Record != nil {
			images = append(images, *r.Record)
		} else {
			failed++
		}
	}
	result.failedDownloads += failed

	product := models.Product{
		ID:        candidate.ID,
		Name:      candidate.Name,
		URL:       candidate.URL,
		Price:     candidate.Price,
		Category:  candidate.Category,
		Images:    images,
		CrawledAt: time.Now(),
	}
	result.AddProduct(product)
	result.newProducts++
	result.newImages += len(images)
	metrics.ProductsCrawled.Inc()

	if _, err := s.ledger.UpsertProduct(ledger.ProductUpdate{
		ID:               candidate.ID,
		Name:             candidate.Name,
		URL:              url,
		JobID:            jobID,
		Status:           ledger.StatusCompleted,
		ImagesTotal:      len(candidate.ImageURLs),
		ImagesDownloaded: len(images),
		ImagesFailed:     failed,
		Price:            candidate.Price,
		Category:         candidate.Category,
	}); err != nil {
		return err
	}

	s.logger.Info("downloaded images", "product", candidate.ID, "count", len(images), "name", candidate.Name)
	return nil
}

// recordProductFailure logs the error and marks the product entry failed so
// a retry_failed job can find it later. Ledger write errors here are logged
// and swallowed: isolation means one bad product never stops the run.
func (s *Service) recordProductFailure(jobID, productID, url string, cause error) {
	errType := classifyError(cause)
	metrics.CrawlErrors.WithLabelValues(string(errType)).Inc()

	if _, err := s.ledger.LogError(jobID, errType, cause.Error(), productID, url); err != nil {
		s.logger.Error("failed to log error", "product", productID, "error", err)
	}

	if _, err := s.ledger.UpsertProduct(ledger.ProductUpdate{
		ID:     productID,
		URL:    url,
		JobID:  jobID,
		Status: ledger.StatusFailed,
	}); err != nil {
		s.logger.Error("failed to record product failure", "product", productID, "error", err)
	}
}

func classifyError(err error) ledger.ErrorType {
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(strings.ToLower(err.Error()), "timeout") {
		return ledger.ErrTimeout
	}
	return ledger.ErrCrawlFailed
}
