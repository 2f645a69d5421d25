// Package models defines data structures for the scraper.
package models

import (
	"net/http"
	"strconv"
)

// Product represents one product entry from the listing page.
type Product struct {
	Title       string  `csv:"title" json:"title"`
	Link        string  `csv:"-" json:"-"`
	UnitPrice   float64 `csv:"unit_price" json:"unit_price"`
	Size        string  `csv:"size" json:"size"`
	Description string  `csv:"description" json:"description"`
}

// Report holds the overall result of parsing a listing page.
type Report struct {
	Results []*Product `json:"results"`
	Total   float64    `json:"total"`
}

// Page is a single fetched response.
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
	Header     http.Header
}

// Size reports the Content-Length header when the server sent one and
// the number of body bytes read otherwise.
func (p *Page) Size() (int, error) {
	if p.Header != nil {
		if value := p.Header.Get("Content-Length"); value != "" {
			size, err := strconv.Atoi(value)
			if err != nil {
				return 0, err
			}
			return size, nil
		}
	}
	return len(p.Body), nil
}
