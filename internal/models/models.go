package models

import "time"

// ImageRecord describes a single product image that exists on disk, either
// because this run fetched it or because a previous run already had.
type ImageRecord struct {
	Filename     string    `json:"filename"`
	OriginalURL  string    `json:"original_url"`
	LocalPath    string    `json:"local_path"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

// Product is the full record produced by crawling one product page.
type Product struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	URL       string        `json:"url"`
	Price     string        `json:"price,omitempty"`
	Category  string        `json:"category,omitempty"`
	Images    []ImageRecord `json:"images"`
	CrawledAt time.Time     `json:"crawled_at"`
}

// CrawlResult aggregates everything a single run produced. The totals are
// always recomputed from the product list, never tracked independently.
type CrawlResult struct {
	Products      []Product `json:"products"`
	CrawledAt     time.Time `json:"crawled_at"`
	TotalProducts int       `json:"total_products"`
	TotalImages   int       `json:"total_images"`
}

// AddProduct appends a product and refreshes the derived totals.
func (r *CrawlResult) AddProduct(p Product) {
	r.Products = append(r.Products, p)
	r.TotalProducts = len(r.Products)
	r.TotalImages = r.CountImages()
}

// CountImages sums images across all products.
func (r *CrawlResult) CountImages() int {
	total := 0
	for _, p := range r.Products {
		total += len(p.Images)
	}
	return total
}

// ProductCandidate is the extractor's output before any download happens.
// ImageURLs are already canonical and duplicate-free.
type ProductCandidate struct {
	ID        string
	Name      string
	URL       string
	Price     string
	Category  string
	ImageURLs []string
}
