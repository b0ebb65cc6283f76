package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddProductRefreshesTotals(t *testing.T) {
	result := &CrawlResult{}

	result.AddProduct(Product{
		ID:     "classic-tee",
		Images: []ImageRecord{{Filename: "classic-tee_01.jpg"}, {Filename: "classic-tee_02.jpg"}},
	})
	assert.Equal(t, 1, result.TotalProducts)
	assert.Equal(t, 2, result.TotalImages)

	result.AddProduct(Product{ID: "cap-red"})
	assert.Equal(t, 2, result.TotalProducts)
	assert.Equal(t, 2, result.TotalImages)
}

func TestCrawlResultJSONRoundTrip(t *testing.T) {
	result := &CrawlResult{CrawledAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)}
	result.AddProduct(Product{
		ID:    "classic-tee",
		Name:  "Classic T-Shirt",
		Price: "$29.99",
		Images: []ImageRecord{{
			Filename:    "classic-tee_01.jpg",
			OriginalURL: "https://ggstore.com/cdn/shop/products/a.jpg",
			LocalPath:   "data/images/classic-tee_01.jpg",
		}},
	})

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded CrawlResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, result.TotalProducts, decoded.TotalProducts)
	assert.Equal(t, "Classic T-Shirt", decoded.Products[0].Name)
	assert.Equal(t, "classic-tee_01.jpg", decoded.Products[0].Images[0].Filename)
}
