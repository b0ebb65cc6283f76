package ledger

import "time"

// JobStatus tracks the lifecycle of jobs, sessions, and per-product work.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusInProgress JobStatus = "in_progress"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusPaused     JobStatus = "paused"
)

// JobType distinguishes the kinds of crawl a job performs.
type JobType string

const (
	JobFullCrawl     JobType = "full_crawl"
	JobIncremental   JobType = "incremental"
	JobRetryFailed   JobType = "retry_failed"
	JobSingleProduct JobType = "single_product"
)

// ErrorType classifies failures recorded in the error log.
type ErrorType string

const (
	ErrCrawlFailed    ErrorType = "crawl_failed"
	ErrParseFailed    ErrorType = "parse_failed"
	ErrDownloadFailed ErrorType = "download_failed"
	ErrTimeout        ErrorType = "timeout"
)

// SessionProgress is the live view of an in-progress crawl.
type SessionProgress struct {
	ProductsDiscovered int    `yaml:"products_discovered" json:"products_discovered"`
	ProductsCrawled    int    `yaml:"products_crawled" json:"products_crawled"`
	ProductsSkipped    int    `yaml:"products_skipped" json:"products_skipped"`
	ImagesDownloaded   int    `yaml:"images_downloaded" json:"images_downloaded"`
	ImagesFailed       int    `yaml:"images_failed" json:"images_failed"`
	CurrentPage        int    `yaml:"current_page" json:"current_page"`
	LastProductURL     string `yaml:"last_product_url,omitempty" json:"last_product_url,omitempty"`
}

// Session is the single active crawl session. Starting a new session
// replaces the previous one wholesale.
type Session struct {
	ID        string          `yaml:"id" json:"id"`
	StartedAt time.Time       `yaml:"started_at" json:"started_at"`
	Status    JobStatus       `yaml:"status" json:"status"`
	Agent     string          `yaml:"agent,omitempty" json:"agent,omitempty"`
	Progress  SessionProgress `yaml:"progress" json:"progress"`
}

// JobConfig snapshots the knobs a job ran with.
type JobConfig struct {
	Headless               bool          `yaml:"headless" json:"headless"`
	Delay                  time.Duration `yaml:"delay" json:"delay"`
	MaxConcurrentDownloads int           `yaml:"max_concurrent_downloads" json:"max_concurrent_downloads"`
	SkipExisting           bool          `yaml:"skip_existing" json:"skip_existing"`
	OutputDir              string        `yaml:"output_dir" json:"output_dir"`
	MetadataFile           string        `yaml:"metadata_file" json:"metadata_file"`
}

// DefaultJobConfig mirrors the crawl command defaults.
func DefaultJobConfig() JobConfig {
	return JobConfig{
		Headless:               true,
		Delay:                  1500 * time.Millisecond,
		MaxConcurrentDownloads: 5,
		SkipExisting:           true,
		OutputDir:              "data/images",
		MetadataFile:           "data/metadata.json",
	}
}

// JobExecution records who ran a job and when.
type JobExecution struct {
	Agent           string     `yaml:"agent,omitempty" json:"agent,omitempty"`
	StartedAt       *time.Time `yaml:"started_at,omitempty" json:"started_at,omitempty"`
	CompletedAt     *time.Time `yaml:"completed_at,omitempty" json:"completed_at,omitempty"`
	DurationSeconds int        `yaml:"duration_seconds,omitempty" json:"duration_seconds,omitempty"`
}

// JobResult summarizes a finished job.
type JobResult struct {
	Success         bool   `yaml:"success" json:"success"`
	TotalProducts   int    `yaml:"total_products" json:"total_products"`
	TotalImages     int    `yaml:"total_images" json:"total_images"`
	NewProducts     int    `yaml:"new_products" json:"new_products"`
	NewImages       int    `yaml:"new_images" json:"new_images"`
	SkippedProducts int    `yaml:"skipped_products" json:"skipped_products"`
	FailedDownloads int    `yaml:"failed_downloads" json:"failed_downloads"`
	ErrorMessage    string `yaml:"error_message,omitempty" json:"error_message,omitempty"`
}

// Job is one crawl job: pending -> in_progress -> completed|failed, with
// paused reachable from in_progress and returning to it.
type Job struct {
	ID        string       `yaml:"id" json:"id"`
	Type      JobType      `yaml:"type" json:"type"`
	Status    JobStatus    `yaml:"status" json:"status"`
	Priority  string       `yaml:"priority" json:"priority"`
	Execution JobExecution `yaml:"execution" json:"execution"`
	Config    JobConfig    `yaml:"config" json:"config"`
	Result    *JobResult   `yaml:"result,omitempty" json:"result,omitempty"`
}

// CrawlInfo is the crawl history of one product.
type CrawlInfo struct {
	FirstSeen   time.Time `yaml:"first_seen" json:"first_seen"`
	LastCrawled time.Time `yaml:"last_crawled" json:"last_crawled"`
	CrawlCount  int       `yaml:"crawl_count" json:"crawl_count"`
	JobID       string    `yaml:"job_id" json:"job_id"`
}

// ImageStatus tracks download outcomes for one product.
type ImageStatus struct {
	Total      int       `yaml:"total" json:"total"`
	Downloaded int       `yaml:"downloaded" json:"downloaded"`
	Failed     int       `yaml:"failed" json:"failed"`
	Status     JobStatus `yaml:"status" json:"status"`
}

// PriceInfo tracks the last observed price.
type PriceInfo struct {
	Current  string     `yaml:"current,omitempty" json:"current,omitempty"`
	LastSeen *time.Time `yaml:"last_seen,omitempty" json:"last_seen,omitempty"`
}

// ProductEntry is the long-lived per-product record. Identifier equality,
// not URL equality, decides whether a crawl updates an existing entry.
type ProductEntry struct {
	ID        string      `yaml:"id" json:"id"`
	Name      string      `yaml:"name" json:"name"`
	URL       string      `yaml:"url" json:"url"`
	Status    JobStatus   `yaml:"status" json:"status"`
	CrawlInfo CrawlInfo   `yaml:"crawl_info" json:"crawl_info"`
	Images    ImageStatus `yaml:"images" json:"images"`
	Price     PriceInfo   `yaml:"price" json:"price"`
	Category  string      `yaml:"category,omitempty" json:"category,omitempty"`
	Errors    []string    `yaml:"errors,omitempty" json:"errors,omitempty"`
}

// ErrorEntry is one append-only error log record. Resolution flips the flag
// but never deletes the entry.
type ErrorEntry struct {
	ID         string    `yaml:"id" json:"id"`
	Timestamp  time.Time `yaml:"timestamp" json:"timestamp"`
	JobID      string    `yaml:"job_id" json:"job_id"`
	ProductID  string    `yaml:"product_id,omitempty" json:"product_id,omitempty"`
	Type       ErrorType `yaml:"type" json:"type"`
	URL        string    `yaml:"url,omitempty" json:"url,omitempty"`
	Message    string    `yaml:"message" json:"message"`
	RetryCount int       `yaml:"retry_count" json:"retry_count"`
	Resolved   bool      `yaml:"resolved" json:"resolved"`
}

// JobStats counts jobs by outcome.
type JobStats struct {
	Total     int `yaml:"total" json:"total"`
	Completed int `yaml:"completed" json:"completed"`
	Failed    int `yaml:"failed" json:"failed"`
	Pending   int `yaml:"pending" json:"pending"`
}

// DownloadStats counts image download outcomes.
type DownloadStats struct {
	Successful int `yaml:"successful" json:"successful"`
	Failed     int `yaml:"failed" json:"failed"`
	Skipped    int `yaml:"skipped" json:"skipped"`
}

// Stats is the cached aggregate view over the ledger's collections. Derived
// fields are refreshed on every mutation so they never drift from the
// collections they summarize.
type Stats struct {
	TotalProducts   int            `yaml:"total_products" json:"total_products"`
	TotalImages     int            `yaml:"total_images" json:"total_images"`
	Jobs            JobStats       `yaml:"jobs" json:"jobs"`
	Downloads       DownloadStats  `yaml:"downloads" json:"downloads"`
	ByCategory      map[string]int `yaml:"by_category" json:"by_category"`
	LastFullCrawl   *time.Time     `yaml:"last_full_crawl,omitempty" json:"last_full_crawl,omitempty"`
	LastIncremental *time.Time     `yaml:"last_incremental,omitempty" json:"last_incremental,omitempty"`
}

// MetadataSync records how the ledger relates to the metadata snapshot.
type MetadataSync struct {
	File               string     `yaml:"file" json:"file"`
	LastSync           *time.Time `yaml:"last_sync,omitempty" json:"last_sync,omitempty"`
	ProductsInMetadata int        `yaml:"products_in_metadata" json:"products_in_metadata"`
	ImagesInMetadata   int        `yaml:"images_in_metadata" json:"images_in_metadata"`
	SyncStatus         string     `yaml:"sync_status" json:"sync_status"`
}

// State is the root ledger document, rewritten in full on every mutation.
type State struct {
	Version    string    `yaml:"version" json:"version"`
	Project    string    `yaml:"project" json:"project"`
	TargetSite string    `yaml:"target_site" json:"target_site"`
	Platform   string    `yaml:"platform" json:"platform"`
	CreatedAt  time.Time `yaml:"created_at" json:"created_at"`
	UpdatedAt  time.Time `yaml:"updated_at" json:"updated_at"`

	CurrentSession *Session        `yaml:"current_session,omitempty" json:"current_session,omitempty"`
	Jobs           []*Job          `yaml:"jobs" json:"jobs"`
	Products       []*ProductEntry `yaml:"products" json:"products"`
	Errors         []*ErrorEntry   `yaml:"errors" json:"errors"`
	Stats          Stats           `yaml:"stats" json:"stats"`
	MetadataSync   MetadataSync    `yaml:"metadata_sync" json:"metadata_sync"`
}

func newState() *State {
	now := time.Now()
	return &State{
		Version:    "1.0",
		Project:    "ggstore_crawler",
		TargetSite: "https://ggstore.com",
		Platform:   "Shopify",
		CreatedAt:  now,
		UpdatedAt:  now,
		Stats: Stats{
			ByCategory: make(map[string]int),
		},
		MetadataSync: MetadataSync{
			File:       "data/metadata.json",
			SyncStatus: "in_sync",
		},
	}
}
