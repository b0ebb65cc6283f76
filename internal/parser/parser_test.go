package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractProductID(t *testing.T) {
	p := New("")

	tests := []struct {
		name string
		url  string
		want string
	}{
		{"standard url", "https://ggstore.com/products/classic-tee", "classic-tee"},
		{"query params ignored", "https://ggstore.com/products/hoodie-black?variant=123", "hoodie-black"},
		{"trailing slash", "https://ggstore.com/products/cap-red/", "cap-red"},
		{"collection-scoped product", "https://ggstore.com/collections/tees/products/logo-tee", "logo-tee"},
		{"no route marker falls back to sanitized path", "https://ggstore.com/pages/about-us", "pages-about-us"},
		{"empty path", "https://ggstore.com/", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.ExtractProductID(tt.url))
		})
	}
}

func TestExtractProductIDStable(t *testing.T) {
	p := New("")
	url := "https://ggstore.com/some/odd/path"

	first := p.ExtractProductID(url)
	assert.Equal(t, first, p.ExtractProductID(url))
}

func TestParseProductName(t *testing.T) {
	p := New("")

	tests := []struct {
		name   string
		markup string
		want   string
	}{
		{"og:title preferred", `<meta property="og:title" content="Classic T-Shirt"><title>Wrong | GGStore</title>`, "Classic T-Shirt"},
		{"title with pipe suffix", `<title>Premium Hoodie | GGStore</title>`, "Premium Hoodie"},
		{"title with dash suffix", `<title>Premium Hoodie – GGStore</title>`, "Premium Hoodie"},
		{"h1 fallback", `<h1 class="product-title">Limited Edition Cap</h1>`, "Limited Edition Cap"},
		{"nothing usable", `<div>No product name here</div>`, UnknownProductName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.ParseProduct(tt.markup, "https://ggstore.com/products/x")
			assert.Equal(t, tt.want, got.Name)
		})
	}
}

func TestParseProductPrice(t *testing.T) {
	p := New("")

	tests := []struct {
		name   string
		markup string
		want   string
	}{
		{"price class span", `<span class="product-price">$29.99</span>`, "$29.99"},
		{"json price field", `{"price": "49.00"}`, "$49.00"},
		{"data-price attribute", `<div data-price="1999">`, "$1999"},
		{"no price", `<div>sold out</div>`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.ParseProduct(tt.markup, "https://ggstore.com/products/x")
			assert.Equal(t, tt.want, got.Price)
		})
	}
}

func TestParseProductCategory(t *testing.T) {
	p := New("")

	tests := []struct {
		name   string
		markup string
		want   string
	}{
		{"first collection match", `<a href="/collections/summer-tees/products/x">tee</a>`, "SUMMER TEES"},
		{"all sentinel excluded", `<a href="/collections/all?page=2">next</a>`, ""},
		{"no collection", `<div></div>`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.ParseProduct(tt.markup, "https://ggstore.com/products/x")
			assert.Equal(t, tt.want, got.Category)
		})
	}
}

func TestIsProductImage(t *testing.T) {
	p := New("")

	tests := []struct {
		name string
		url  string
		want bool
	}{
		{"cdn image", "https://ggstore.com/cdn/shop/products/tee.jpg", true},
		{"cdn image with query", "https://ggstore.com/cdn/shop/files/hero.png?v=123", true},
		{"non-cdn url", "https://example.com/image.jpg", false},
		{"cdn non-image", "https://ggstore.com/cdn/shop/products/data.json", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.IsProductImage(tt.url))
		})
	}
}

func TestNormalizeURL(t *testing.T) {
	p := New("https://ggstore.com")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"protocol relative", "//ggstore.com/cdn/shop/products/tee.jpg", "https://ggstore.com/cdn/shop/products/tee.jpg"},
		{"query stripped", "https://ggstore.com/cdn/shop/products/tee.jpg?width=500", "https://ggstore.com/cdn/shop/products/tee.jpg"},
		{"entities decoded", "https://ggstore.com/cdn/shop/products/tee.jpg?a=1&amp;b=2", "https://ggstore.com/cdn/shop/products/tee.jpg"},
		{"relative resolved", "/cdn/shop/products/tee.jpg", "https://ggstore.com/cdn/shop/products/tee.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.NormalizeURL(tt.in))
		})
	}
}

func TestNormalizeURLIdempotent(t *testing.T) {
	p := New("")
	in := "//ggstore.com/cdn/shop/products/tee.jpg?width=500"

	once := p.NormalizeURL(in)
	assert.Equal(t, once, p.NormalizeURL(once))
}

func TestExtractImageURLs(t *testing.T) {
	p := New("https://ggstore.com")

	t.Run("all four patterns contribute", func(t *testing.T) {
		markup := `
			<img srcset="//ggstore.com/cdn/shop/products/a.jpg?width=300 300w, //ggstore.com/cdn/shop/products/a.jpg?width=600 600w">
			<img src="https://ggstore.com/cdn/shop/files/b.png?v=1">
			<img data-src="/cdn/shop/products/c.webp?width=200">
			<script>{"src": "https:\/\/ggstore.com/cdn/shop/products/d.jpg?v=9"}</script>
		`
		got := p.ExtractImageURLs(markup)
		require.Len(t, got, 4)
		assert.Equal(t, []string{
			"https://ggstore.com/cdn/shop/products/a.jpg",
			"https://ggstore.com/cdn/shop/files/b.png",
			"https://ggstore.com/cdn/shop/products/c.webp",
			"https://ggstore.com/cdn/shop/products/d.jpg",
		}, got)
	})

	t.Run("duplicates across patterns collapse", func(t *testing.T) {
		markup := `
			<img srcset="//ggstore.com/cdn/shop/products/a.jpg?width=300 300w">
			<img data-src="https://ggstore.com/cdn/shop/products/a.jpg?width=900">
		`
		got := p.ExtractImageURLs(markup)
		assert.Equal(t, []string{"https://ggstore.com/cdn/shop/products/a.jpg"}, got)
	})

	t.Run("non-cdn candidates rejected", func(t *testing.T) {
		markup := `<img src="https://tracker.example.com/pixel.jpg" data-src="https://example.com/banner.png">`
		assert.Empty(t, p.ExtractImageURLs(markup))
	})

	t.Run("order is first-seen", func(t *testing.T) {
		markup := `
			<img data-src="/cdn/shop/products/z.jpg">
			<img data-src="/cdn/shop/products/a.jpg">
		`
		got := p.ExtractImageURLs(markup)
		assert.Equal(t, []string{
			"https://ggstore.com/cdn/shop/products/z.jpg",
			"https://ggstore.com/cdn/shop/products/a.jpg",
		}, got)
	})
}

func TestExtractProductLinks(t *testing.T) {
	p := New("https://ggstore.com")

	t.Run("relative and absolute links", func(t *testing.T) {
		markup := `
			<a href="/products/classic-tee">Classic Tee</a>
			<a href="https://ggstore.com/products/hoodie-black">Hoodie</a>
			<a href="/collections/all?page=2">Next</a>
		`
		got := p.ExtractProductLinks(markup)
		assert.Equal(t, []string{
			"https://ggstore.com/products/classic-tee",
			"https://ggstore.com/products/hoodie-black",
		}, got)
	})

	t.Run("duplicates dropped", func(t *testing.T) {
		markup := `
			<a href="/products/classic-tee"><img></a>
			<a href="/products/classic-tee">Classic Tee</a>
		`
		got := p.ExtractProductLinks(markup)
		assert.Len(t, got, 1)
	})

	t.Run("no links", func(t *testing.T) {
		assert.Empty(t, p.ExtractProductLinks(`<div>empty collection</div>`))
	})
}

func TestParseProductIdempotent(t *testing.T) {
	p := New("https://ggstore.com")

	markup := `
		<meta property="og:title" content="Classic T-Shirt">
		<span class="price">$29.99</span>
		<a href="/collections/summer-tees/products/classic-tee">breadcrumb</a>
		<img srcset="//ggstore.com/cdn/shop/products/front.jpg?width=300 300w">
		<img data-src="/cdn/shop/products/back.jpg?width=300">
	`
	url := "https://ggstore.com/products/classic-tee?variant=9"

	first := p.ParseProduct(markup, url)
	second := p.ParseProduct(markup, url)

	assert.Equal(t, first, second)
	assert.Equal(t, "classic-tee", first.ID)
	assert.Equal(t, "Classic T-Shirt", first.Name)
	assert.Equal(t, "$29.99", first.Price)
	assert.Equal(t, "SUMMER TEES", first.Category)
	assert.Equal(t, []string{
		"https://ggstore.com/cdn/shop/products/front.jpg",
		"https://ggstore.com/cdn/shop/products/back.jpg",
	}, first.ImageURLs)
}

func TestDedupe(t *testing.T) {
	in := []string{"a", "b", "a", "c", "b"}
	assert.Equal(t, []string{"a", "b", "c"}, Dedupe(in))
	assert.Nil(t, Dedupe(nil))
}
