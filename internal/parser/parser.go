package parser

import (
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ggpdev/ggstore-crawler/internal/models"
)

const (
	// DefaultBaseURL is the storefront root used to resolve relative URLs.
	DefaultBaseURL = "https://ggstore.com"

	// UnknownProductName is returned when no name heuristic matches.
	UnknownProductName = "Unknown Product"

	cdnPathMarker = "cdn/shop/"
)

// imageExtensions is the allow-list for product image files.
var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".gif"}

// Parser extracts product data from GGStore page markup. All methods are
// pure: malformed or partial markup degrades to empty fields, never errors.
type Parser struct {
	baseURL *url.URL

	pricePatterns     []*regexp.Regexp
	srcsetPattern     *regexp.Regexp
	srcPattern        *regexp.Regexp
	dataSrcPattern    *regexp.Regexp
	jsonSrcPattern    *regexp.Regexp
	collectionPattern *regexp.Regexp
}

// New builds a parser resolving relative URLs against baseURL. An empty or
// unparseable baseURL falls back to DefaultBaseURL.
func New(baseURL string) *Parser {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		base, _ = url.Parse(DefaultBaseURL)
	}

	return &Parser{
		baseURL: base,
		pricePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)<span[^>]*class=["'][^"']*price[^"']*["'][^>]*>\s*\$?([\d,.]+)`),
			regexp.MustCompile(`(?i)"price":\s*"?\$?([\d,.]+)`),
			regexp.MustCompile(`(?i)data-price=["'](\d+)`),
		},
		srcsetPattern:     regexp.MustCompile(`(?i)srcset=["']([^"']+)["']`),
		srcPattern:        regexp.MustCompile(`(?i)src=["']([^"']+cdn/shop/(?:files|products)/[^"']+)["']`),
		dataSrcPattern:    regexp.MustCompile(`(?i)data-src=["']([^"']+)["']`),
		jsonSrcPattern:    regexp.MustCompile(`(?i)"src":\s*"([^"]+cdn/shop/[^"]+)"`),
		collectionPattern: regexp.MustCompile(`/collections/([^/"'?\s]+)`),
	}
}

// ParseProduct extracts a candidate record from page markup. The identifier
// depends only on pageURL so repeated crawls of the same page converge on
// one ledger entry.
func (p *Parser) ParseProduct(markup, pageURL string) *models.ProductCandidate {
	candidate := &models.ProductCandidate{
		ID:        p.ExtractProductID(pageURL),
		Name:      UnknownProductName,
		URL:       pageURL,
		Price:     p.extractPrice(markup),
		Category:  p.extractCategory(markup),
		ImageURLs: p.ExtractImageURLs(markup),
	}

	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup)); err == nil {
		if name := p.extractName(doc); name != "" {
			candidate.Name = name
		}
	}

	return candidate
}

// ExtractProductLinks collects product page URLs from collection-page
// markup: every anchor whose href references the products route, resolved
// to an absolute URL, first-seen order, duplicates dropped.
func (p *Parser) ExtractProductLinks(markup string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var links []string

	doc.Find(`a[href*="/products/"]`).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || !strings.Contains(href, "/products/") {
			return
		}

		full := href
		if !strings.HasPrefix(href, "http") {
			if parsed, err := url.Parse(href); err == nil {
				full = p.baseURL.ResolveReference(parsed).String()
			} else {
				full = strings.TrimSuffix(p.baseURL.String(), "/") + href
			}
		}

		if _, ok := seen[full]; ok {
			return
		}
		seen[full] = struct{}{}
		links = append(links, full)
	})

	return links
}

// ExtractProductID derives the identifier from the URL path segment that
// follows "products". Without that marker it falls back to the sanitized
// full path. Pure function of the URL; query and fragment are ignored.
func (p *Parser) ExtractProductID(pageURL string) string {
	parsed, err := url.Parse(pageURL)
	path := pageURL
	if err == nil {
		path = parsed.Path
	}

	trimmed := strings.Trim(path, "/")
	parts := strings.Split(trimmed, "/")
	for i, part := range parts {
		if part == "products" && i+1 < len(parts) {
			return parts[i+1]
		}
	}

	fallback := strings.ReplaceAll(trimmed, "/", "-")
	if fallback == "" {
		return "unknown"
	}
	return fallback
}

// extractName tries og:title, then the document title with the site-name
// suffix stripped, then the first h1.
func (p *Parser) extractName(doc *goquery.Document) string {
	if content, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok {
		if name := strings.TrimSpace(content); name != "" {
			return name
		}
	}

	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		if before, _, found := strings.Cut(title, "|"); found {
			title = strings.TrimSpace(before)
		}
		if before, _, found := strings.Cut(title, "–"); found {
			title = strings.TrimSpace(before)
		}
		if title != "" {
			return title
		}
	}

	if heading := strings.TrimSpace(doc.Find("h1").First().Text()); heading != "" {
		return heading
	}

	return ""
}

// extractPrice tries the literal price patterns in priority order and
// formats the first hit as a dollar-prefixed string. Empty means no price.
func (p *Parser) extractPrice(markup string) string {
	for _, pattern := range p.pricePatterns {
		matches := pattern.FindStringSubmatch(markup)
		if len(matches) > 1 {
			price := strings.TrimSpace(matches[1])
			if price != "" {
				return "$" + price
			}
		}
	}
	return ""
}

// extractCategory picks the first collection path fragment in the markup.
// The generic "all" collection does not count as a category. This can latch
// onto an unrelated collection link (e.g. a related-products block) when it
// appears before the breadcrumb; known heuristic limitation.
func (p *Parser) extractCategory(markup string) string {
	matches := p.collectionPattern.FindStringSubmatch(markup)
	if len(matches) < 2 {
		return ""
	}

	category := matches[1]
	if strings.EqualFold(category, "all") {
		return ""
	}
	return strings.ToUpper(strings.ReplaceAll(category, "-", " "))
}

// ExtractImageURLs harvests product image URLs with four independent
// patterns: srcset candidate lists, direct CDN src attributes, lazy-load
// data-src attributes, and JSON-embedded src fields. Candidates pass the
// admission filter, are canonicalized, and are collected in first-seen
// order with duplicates rejected, so the index-based filenames derived
// downstream stay stable across re-runs of the same markup.
func (p *Parser) ExtractImageURLs(markup string) []string {
	seen := make(map[string]struct{})
	var urls []string

	add := func(raw string) {
		if !p.IsProductImage(raw) {
			return
		}
		canonical := p.NormalizeURL(raw)
		if _, ok := seen[canonical]; ok {
			return
		}
		seen[canonical] = struct{}{}
		urls = append(urls, canonical)
	}

	for _, match := range p.srcsetPattern.FindAllStringSubmatch(markup, -1) {
		for _, entry := range strings.Split(match[1], ",") {
			fields := strings.Fields(entry)
			if len(fields) > 0 {
				add(fields[0])
			}
		}
	}

	for _, match := range p.srcPattern.FindAllStringSubmatch(markup, -1) {
		add(match[1])
	}

	for _, match := range p.dataSrcPattern.FindAllStringSubmatch(markup, -1) {
		add(match[1])
	}

	for _, match := range p.jsonSrcPattern.FindAllStringSubmatch(markup, -1) {
		add(strings.ReplaceAll(match[1], `\/`, "/"))
	}

	return urls
}

// IsProductImage reports whether a URL points at a product image: it must
// reference the CDN path and carry a recognized image extension, checked as
// a path suffix, before query parameters, or anywhere in the path.
func (p *Parser) IsProductImage(rawURL string) bool {
	if rawURL == "" {
		return false
	}

	if !strings.Contains(rawURL, cdnPathMarker) {
		return false
	}

	path := rawURL
	if parsed, err := url.Parse(html.UnescapeString(rawURL)); err == nil && parsed.Path != "" {
		path = parsed.Path
	}
	path = strings.ToLower(path)

	for _, ext := range imageExtensions {
		if strings.HasSuffix(path, ext) || strings.Contains(path, ext+"?") || strings.Contains(path, ext) {
			return true
		}
	}
	return false
}

// NormalizeURL canonicalizes an image URL: HTML entities decoded,
// protocol-relative URLs upgraded to https, other relative forms resolved
// against the base URL, and all query parameters stripped. The CDN serves
// the original-resolution image when no width/quality parameters are
// present, so stripping doubles as a full-resolution upgrade.
func (p *Parser) NormalizeURL(rawURL string) string {
	decoded := html.UnescapeString(rawURL)

	if strings.HasPrefix(decoded, "//") {
		decoded = "https:" + decoded
	}

	parsed, err := url.Parse(decoded)
	if err != nil {
		before, _, _ := strings.Cut(decoded, "?")
		return before
	}

	if !parsed.IsAbs() {
		parsed = p.baseURL.ResolveReference(parsed)
	}

	parsed.RawQuery = ""
	parsed.ForceQuery = false
	return parsed.String()
}

// Dedupe drops exact repeats from a list of already-canonical URLs,
// preserving first-seen order. Order matters: it fixes the 1-based image
// index used in filenames.
func Dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	var out []string
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
