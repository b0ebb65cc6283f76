package ledger

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/ggpdev/ggstore-crawler/internal/models"
)

// Manager owns the durable crawl ledger. Every mutating operation rewrites
// the whole document immediately, so a crash leaves the file consistent
// with the last completed logical operation.
type Manager struct {
	mu     sync.Mutex
	path   string
	state  *State
	logger *slog.Logger
}

// NewManager loads the ledger at path, or starts a fresh one when the file
// does not exist yet.
func NewManager(path string) (*Manager, error) {
	m := &Manager{
		path:   path,
		logger: slog.Default().With("component", "ledger"),
	}

	state, err := loadState(path)
	if err != nil {
		return nil, err
	}
	m.state = state

	return m, nil
}

func loadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return newState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}

	state := newState()
	if err := yaml.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("failed to parse ledger: %w", err)
	}
	if state.Stats.ByCategory == nil {
		state.Stats.ByCategory = make(map[string]int)
	}
	return state, nil
}

// save rewrites the whole document via a temp file + rename so readers
// never observe a partial write. Callers must hold m.mu.
func (m *Manager) save() error {
	m.state.UpdatedAt = time.Now()

	data, err := yaml.Marshal(m.state)
	if err != nil {
		return fmt.Errorf("failed to marshal ledger: %w", err)
	}

	if dir := filepath.Dir(m.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	return os.Rename(tmp, m.path)
}

// Snapshot returns a copy of the root document for read-only consumers.
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.state
}

// StartSession replaces the current session with a fresh in-progress one.
func (m *Manager) StartSession(agent string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session := &Session{
		ID:        "SESSION-" + strings.ToUpper(uuid.New().String()[:8]),
		StartedAt: time.Now(),
		Status:    StatusInProgress,
		Agent:     agent,
	}
	m.state.CurrentSession = session

	if err := m.save(); err != nil {
		return nil, err
	}
	m.logger.Info("session started", "id", session.ID, "agent", agent)
	return session, nil
}

// ProgressUpdate carries the session fields to change; nil fields are left
// untouched. The pointer helpers Int and String build literals inline.
type ProgressUpdate struct {
	ProductsDiscovered *int
	ProductsCrawled    *int
	ProductsSkipped    *int
	ImagesDownloaded   *int
	ImagesFailed       *int
	CurrentPage        *int
	LastProductURL     *string
}

// Int returns a pointer to i.
func Int(i int) *int { return &i }

// String returns a pointer to s.
func String(s string) *string { return &s }

// UpdateProgress applies a partial update to the active session's progress.
// A missing session is a no-op.
func (m *Manager) UpdateProgress(update ProgressUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session := m.state.CurrentSession
	if session == nil {
		return nil
	}

	progress := &session.Progress
	if update.ProductsDiscovered != nil {
		progress.ProductsDiscovered = *update.ProductsDiscovered
	}
	if update.ProductsCrawled != nil {
		progress.ProductsCrawled = *update.ProductsCrawled
	}
	if update.ProductsSkipped != nil {
		progress.ProductsSkipped = *update.ProductsSkipped
	}
	if update.ImagesDownloaded != nil {
		progress.ImagesDownloaded = *update.ImagesDownloaded
	}
	if update.ImagesFailed != nil {
		progress.ImagesFailed = *update.ImagesFailed
	}
	if update.CurrentPage != nil {
		progress.CurrentPage = *update.CurrentPage
	}
	if update.LastProductURL != nil {
		progress.LastProductURL = *update.LastProductURL
	}

	return m.save()
}

// EndSession marks the active session terminal.
func (m *Manager) EndSession(status JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.CurrentSession != nil {
		m.state.CurrentSession.Status = status
	}
	return m.save()
}

// CreateJob registers a new pending job and returns it.
func (m *Manager) CreateJob(jobType JobType, config JobConfig, priority string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job := &Job{
		ID:       fmt.Sprintf("JOB-%03d", len(m.state.Jobs)+1),
		Type:     jobType,
		Status:   StatusPending,
		Priority: priority,
		Config:   config,
	}
	m.state.Jobs = append(m.state.Jobs, job)
	m.state.Stats.Jobs.Total++
	m.state.Stats.Jobs.Pending++

	if err := m.save(); err != nil {
		return nil, err
	}
	m.logger.Info("job created", "id", job.ID, "type", jobType)
	return job, nil
}

// StartJob moves a pending job to in_progress and stamps the executor.
func (m *Manager) StartJob(jobID, agent string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job := m.findJob(jobID)
	if job == nil {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}

	now := time.Now()
	job.Status = StatusInProgress
	job.Execution.Agent = agent
	job.Execution.StartedAt = &now

	if m.state.Stats.Jobs.Pending > 0 {
		m.state.Stats.Jobs.Pending--
	}

	if err := m.save(); err != nil {
		return nil, err
	}
	m.logger.Info("job started", "id", jobID, "agent", agent)
	return job, nil
}

// PauseJob suspends an in-progress job. Pausing anything else is an error
// because completed and failed are terminal.
func (m *Manager) PauseJob(jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job := m.findJob(jobID)
	if job == nil {
		return fmt.Errorf("job not found: %s", jobID)
	}
	if job.Status != StatusInProgress {
		return fmt.Errorf("cannot pause job %s in status %s", jobID, job.Status)
	}

	job.Status = StatusPaused
	return m.save()
}

// ResumeJob returns a paused job to in_progress.
func (m *Manager) ResumeJob(jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job := m.findJob(jobID)
	if job == nil {
		return fmt.Errorf("job not found: %s", jobID)
	}
	if job.Status != StatusPaused {
		return fmt.Errorf("cannot resume job %s in status %s", jobID, job.Status)
	}

	job.Status = StatusInProgress
	return m.save()
}

// CompleteJob finishes a job, computes its duration, and stamps the
// crawl-kind specific "last completed" marker on success.
func (m *Manager) CompleteJob(jobID string, result JobResult) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job := m.findJob(jobID)
	if job == nil {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}

	now := time.Now()
	if result.Success {
		job.Status = StatusCompleted
	} else {
		job.Status = StatusFailed
	}
	job.Execution.CompletedAt = &now
	if job.Execution.StartedAt != nil {
		job.Execution.DurationSeconds = int(now.Sub(*job.Execution.StartedAt).Seconds())
	}
	job.Result = &result

	if result.Success {
		m.state.Stats.Jobs.Completed++
		switch job.Type {
		case JobFullCrawl:
			m.state.Stats.LastFullCrawl = &now
		case JobIncremental:
			m.state.Stats.LastIncremental = &now
		}
	} else {
		m.state.Stats.Jobs.Failed++
	}
	m.state.Stats.Downloads.Skipped += result.SkippedProducts

	if err := m.save(); err != nil {
		return nil, err
	}
	m.logger.Info("job completed", "id", jobID, "status", job.Status)
	return job, nil
}

// PendingJobs lists jobs still waiting to run.
func (m *Manager) PendingJobs() []*Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	var pending []*Job
	for _, job := range m.state.Jobs {
		if job.Status == StatusPending {
			pending = append(pending, job)
		}
	}
	return pending
}

func (m *Manager) findJob(jobID string) *Job {
	for _, job := range m.state.Jobs {
		if job.ID == jobID {
			return job
		}
	}
	return nil
}

// ProductUpdate is the input to UpsertProduct.
type ProductUpdate struct {
	ID               string
	Name             string
	URL              string
	JobID            string
	Status           JobStatus
	ImagesTotal      int
	ImagesDownloaded int
	ImagesFailed     int
	Price            string
	Category         string
}

// UpsertProduct creates or updates the entry keyed by product identifier.
// First encounter creates the entry with crawl-count 1; later crawls update
// mutable fields in place and increment the counter, so any number of
// re-runs converge on a single entry with accurate history.
func (m *Manager) UpsertProduct(update ProductUpdate) (*ProductEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	entry := m.findProduct(update.ID)

	if entry != nil {
		entry.Status = update.Status
		entry.CrawlInfo.LastCrawled = now
		entry.CrawlInfo.CrawlCount++
		entry.CrawlInfo.JobID = update.JobID
		entry.Images = ImageStatus{
			Total:      update.ImagesTotal,
			Downloaded: update.ImagesDownloaded,
			Failed:     update.ImagesFailed,
			Status:     update.Status,
		}
		if update.Name != "" {
			entry.Name = update.Name
		}
		if update.URL != "" {
			entry.URL = update.URL
		}
		if update.Price != "" {
			entry.Price.Current = update.Price
			entry.Price.LastSeen = &now
		}
		if update.Category != "" {
			entry.Category = update.Category
		}
	} else {
		entry = &ProductEntry{
			ID:     update.ID,
			Name:   update.Name,
			URL:    update.URL,
			Status: update.Status,
			CrawlInfo: CrawlInfo{
				FirstSeen:   now,
				LastCrawled: now,
				CrawlCount:  1,
				JobID:       update.JobID,
			},
			Images: ImageStatus{
				Total:      update.ImagesTotal,
				Downloaded: update.ImagesDownloaded,
				Failed:     update.ImagesFailed,
				Status:     update.Status,
			},
			Category: update.Category,
		}
		if update.Price != "" {
			entry.Price.Current = update.Price
			entry.Price.LastSeen = &now
		}
		m.state.Products = append(m.state.Products, entry)
	}

	m.refreshDerivedStats()
	// The ledger has moved ahead of the metadata snapshot until the next
	// explicit sync.
	m.state.MetadataSync.SyncStatus = "out_of_sync"

	if err := m.save(); err != nil {
		return nil, err
	}
	return entry, nil
}

func (m *Manager) findProduct(productID string) *ProductEntry {
	for _, entry := range m.state.Products {
		if entry.ID == productID {
			return entry
		}
	}
	return nil
}

// FailedProducts lists products whose last crawl failed, the input set for
// a retry_failed job.
func (m *Manager) FailedProducts() []*ProductEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	var failed []*ProductEntry
	for _, entry := range m.state.Products {
		if entry.Status == StatusFailed {
			failed = append(failed, entry)
		}
	}
	return failed
}

// LogError appends an entry to the error log.
func (m *Manager) LogError(jobID string, errType ErrorType, message, productID, url string) (*ErrorEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := &ErrorEntry{
		ID:        fmt.Sprintf("ERR-%03d", len(m.state.Errors)+1),
		Timestamp: time.Now(),
		JobID:     jobID,
		ProductID: productID,
		Type:      errType,
		URL:       url,
		Message:   message,
	}
	m.state.Errors = append(m.state.Errors, entry)

	if err := m.save(); err != nil {
		return nil, err
	}
	m.logger.Warn("error logged", "id", entry.ID, "type", errType, "product", productID)
	return entry, nil
}

// UnresolvedErrors lists errors not yet marked resolved.
func (m *Manager) UnresolvedErrors() []*ErrorEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	var unresolved []*ErrorEntry
	for _, entry := range m.state.Errors {
		if !entry.Resolved {
			unresolved = append(unresolved, entry)
		}
	}
	return unresolved
}

// ResolveError marks an error resolved. The entry is never deleted; the
// operation is idempotent. Returns false when the id is unknown.
func (m *Manager) ResolveError(errorID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, entry := range m.state.Errors {
		if entry.ID == errorID {
			entry.Resolved = true
			if err := m.save(); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

// SyncFromMetadata reconciles the ledger's sync block and aggregate image
// counts with a metadata snapshot.
func (m *Manager) SyncFromMetadata(result *models.CrawlResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.state.MetadataSync.LastSync = &now
	m.state.MetadataSync.ProductsInMetadata = result.TotalProducts
	m.state.MetadataSync.ImagesInMetadata = result.TotalImages
	m.state.MetadataSync.SyncStatus = "in_sync"

	return m.save()
}

// refreshDerivedStats recomputes the product-derived aggregates from the
// entries themselves. Callers must hold m.mu.
func (m *Manager) refreshDerivedStats() {
	derived := recomputeFromProducts(m.state.Products)
	m.state.Stats.TotalProducts = derived.TotalProducts
	m.state.Stats.TotalImages = derived.TotalImages
	m.state.Stats.ByCategory = derived.ByCategory
	m.state.Stats.Downloads.Successful = derived.Downloads.Successful
	m.state.Stats.Downloads.Failed = derived.Downloads.Failed
}

// RecomputeStats rebuilds the aggregate counts from the underlying
// collections. The cached Stats must always match this for the derived
// fields; the test suite enforces it.
func (m *Manager) RecomputeStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := recomputeFromProducts(m.state.Products)
	for _, job := range m.state.Jobs {
		stats.Jobs.Total++
		switch job.Status {
		case StatusPending:
			stats.Jobs.Pending++
		case StatusCompleted:
			stats.Jobs.Completed++
		case StatusFailed:
			stats.Jobs.Failed++
		}
	}
	stats.Downloads.Skipped = m.state.Stats.Downloads.Skipped
	stats.LastFullCrawl = m.state.Stats.LastFullCrawl
	stats.LastIncremental = m.state.Stats.LastIncremental
	return stats
}

func recomputeFromProducts(products []*ProductEntry) Stats {
	stats := Stats{ByCategory: make(map[string]int)}
	for _, entry := range products {
		stats.TotalProducts++
		stats.TotalImages += entry.Images.Total
		stats.Downloads.Successful += entry.Images.Downloaded
		stats.Downloads.Failed += entry.Images.Failed
		if entry.Category != "" {
			stats.ByCategory[entry.Category]++
		}
	}
	return stats
}

// StatusText renders the operator-facing summary used by the status
// command.
func (m *Manager) StatusText() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := m.state
	var b strings.Builder

	fmt.Fprintf(&b, "=== %s Ledger Status ===\n", state.Project)
	fmt.Fprintf(&b, "Target: %s\n", state.TargetSite)
	fmt.Fprintf(&b, "Updated: %s\n\n", state.UpdatedAt.Format(time.RFC3339))

	b.WriteString("Session:\n")
	if session := state.CurrentSession; session != nil {
		fmt.Fprintf(&b, "  ID: %s\n", session.ID)
		fmt.Fprintf(&b, "  Status: %s\n", session.Status)
		fmt.Fprintf(&b, "  Crawled: %d  Skipped: %d  Images: %d\n",
			session.Progress.ProductsCrawled,
			session.Progress.ProductsSkipped,
			session.Progress.ImagesDownloaded)
	} else {
		b.WriteString("  No active session\n")
	}

	unresolved := 0
	for _, entry := range state.Errors {
		if !entry.Resolved {
			unresolved++
		}
	}

	b.WriteString("\nStatistics:\n")
	fmt.Fprintf(&b, "  Products: %d\n", state.Stats.TotalProducts)
	fmt.Fprintf(&b, "  Images: %d\n", state.Stats.TotalImages)
	fmt.Fprintf(&b, "  Jobs: %d/%d\n", state.Stats.Jobs.Completed, state.Stats.Jobs.Total)
	fmt.Fprintf(&b, "  Errors: %d unresolved\n", unresolved)

	b.WriteString("\nMetadata Sync:\n")
	fmt.Fprintf(&b, "  Status: %s\n", state.MetadataSync.SyncStatus)
	if state.MetadataSync.LastSync != nil {
		fmt.Fprintf(&b, "  Last Sync: %s\n", state.MetadataSync.LastSync.Format(time.RFC3339))
	} else {
		b.WriteString("  Last Sync: Never\n")
	}

	return b.String()
}
