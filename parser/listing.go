package parser

import (
	"fmt"
	"strings"

	"github.com/aluiziolira/go-scrape-groceries/document"
	"github.com/aluiziolira/go-scrape-groceries/models"
)

var (
	productEntry = document.MustSelector("div", "product")
	productTitle = document.MustSelector("h3", "")
	productLink  = document.MustSelector("a", "")
	productPrice = document.MustSelector("p", "pricePerUnit")
)

// Fetcher retrieves a single page.
type Fetcher interface {
	Fetch(rawURL string) (*models.Page, error)
}

// FetcherFactory returns a Fetcher with a fresh session.
type FetcherFactory func() (Fetcher, error)

// ListingParser extracts products from a listing page and follows each
// product link to its detail page.
type ListingParser struct {
	doc        *document.Document
	newFetcher FetcherFactory
}

// NewListingParser parses a listing page body. newFetcher is called once per
// detail page.
func NewListingParser(body []byte, newFetcher FetcherFactory) (*ListingParser, error) {
	if newFetcher == nil {
		return nil, fmt.Errorf("listing parser: fetcher factory is nil")
	}
	doc, err := document.New(body)
	if err != nil {
		return nil, err
	}
	return &ListingParser{doc: doc, newFetcher: newFetcher}, nil
}

// Products returns every product entry in document order.
func (p *ListingParser) Products() []*document.Element {
	return p.doc.FindAll(productEntry)
}

// ProductTitle returns the trimmed text of the entry's first h3.
func (p *ListingParser) ProductTitle(entry *document.Element) (string, error) {
	heading, err := entry.Find(productTitle)
	if err != nil {
		return "", fmt.Errorf("title: %w", err)
	}
	return strings.TrimSpace(heading.Text()), nil
}

// ProductLink returns the trimmed href of the anchor inside the entry's h3.
func (p *ListingParser) ProductLink(entry *document.Element) (string, error) {
	heading, err := entry.Find(productTitle)
	if err != nil {
		return "", fmt.Errorf("link: %w", err)
	}
	anchor, err := heading.Find(productLink)
	if err != nil {
		return "", fmt.Errorf("link: %w", err)
	}
	href, err := anchor.Attr("href")
	if err != nil {
		return "", fmt.Errorf("link: %w", err)
	}
	return strings.TrimSpace(href), nil
}

// ProductPrice parses the first text node of the entry's pricePerUnit.
func (p *ListingParser) ProductPrice(entry *document.Element) (float64, error) {
	pricing, err := entry.Find(productPrice)
	if err != nil {
		return 0, fmt.Errorf("price: %w", err)
	}
	text, err := pricing.FirstText()
	if err != nil {
		return 0, fmt.Errorf("price: %w", err)
	}
	return ParsePrice(text)
}

// DescriptionInfo fetches productURL with a new session and returns the body
// with its size.
func (p *ListingParser) DescriptionInfo(productURL string) ([]byte, int, error) {
	fetcher, err := p.newFetcher()
	if err != nil {
		return nil, 0, fmt.Errorf("create fetcher: %w", err)
	}
	page, err := fetcher.Fetch(productURL)
	if err != nil {
		return nil, 0, err
	}
	size, err := page.Size()
	if err != nil {
		return nil, 0, fmt.Errorf("content length for %s: %w", productURL, err)
	}
	return page.Body, size, nil
}

// ParseProduct builds the record for one entry, fetching its detail page.
func (p *ListingParser) ParseProduct(entry *document.Element) (*models.Product, error) {
	link, err := p.ProductLink(entry)
	if err != nil {
		return nil, err
	}
	body, size, err := p.DescriptionInfo(link)
	if err != nil {
		return nil, err
	}

	title, err := p.ProductTitle(entry)
	if err != nil {
		return nil, err
	}
	price, err := p.ProductPrice(entry)
	if err != nil {
		return nil, err
	}

	details, err := NewDescriptionParser(body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", link, err)
	}
	description, err := details.Description()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", link, err)
	}

	return &models.Product{
		Title:       title,
		Link:        link,
		UnitPrice:   price,
		Size:        FormatFileSize(float64(size)),
		Description: description,
	}, nil
}

// Parse returns every product on the listing with the summed unit price.
// The first failing entry aborts the whole parse.
func (p *ListingParser) Parse() (*models.Report, error) {
	entries := p.Products()
	report := &models.Report{Results: make([]*models.Product, 0, len(entries))}

	for i, entry := range entries {
		product, err := p.ParseProduct(entry)
		if err != nil {
			return nil, fmt.Errorf("product %d: %w", i, err)
		}
		report.Results = append(report.Results, product)
	}

	for _, product := range report.Results {
		report.Total += product.UnitPrice
	}
	return report, nil
}
