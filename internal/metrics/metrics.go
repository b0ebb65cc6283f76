package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Crawl-side counters.
var (
	PagesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ggstore_pages_fetched_total",
		Help: "Collection and product pages rendered by the browser.",
	})

	ProductsCrawled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ggstore_products_crawled_total",
		Help: "Product pages successfully parsed into records.",
	})

	ProductsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ggstore_products_skipped_total",
		Help: "Products skipped because their images already exist locally.",
	})

	CrawlErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ggstore_crawl_errors_total",
		Help: "Per-product failures by error type.",
	}, []string{"type"})
)

// Download-side counters.
var (
	ImagesDownloaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ggstore_images_downloaded_total",
		Help: "Image files fetched and written to disk.",
	})

	ImagesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ggstore_images_failed_total",
		Help: "Image downloads that errored.",
	})

	ImagesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ggstore_images_skipped_total",
		Help: "Image downloads skipped because the file already exists.",
	})

	DownloadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ggstore_download_duration_seconds",
		Help:    "Wall time per image download.",
		Buckets: prometheus.DefBuckets,
	})
)
