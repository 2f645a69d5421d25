package parser

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aluiziolira/go-scrape-groceries/document"
	"github.com/aluiziolira/go-scrape-groceries/models"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var (
	listingFixture     = filepath.Join("..", "testdata", "listing.html")
	descriptionFixture = filepath.Join("..", "testdata", "description.html")
)

var expectedTitles = []string{
	"Sainsbury's Apricot Ripe & Ready 320g",
	"Sainsbury's Avocado Ripe & Ready XL Loose 300g",
	"Sainsbury's Avocado, Ripe & Ready x2",
	"Sainsbury's Avocados, Ripe & Ready x4",
	"Sainsbury's Conference Pears, Ripe & Ready x4 (minimum)",
	"Sainsbury's Kiwi Fruit, Ripe & Ready x4",
	"Sainsbury's Mango, Ripe & Ready x2",
	"Sainsbury's Nectarines, Ripe & Ready x4",
	"Sainsbury's Peaches Ripe & Ready x4",
	"Sainsbury's Pears, Ripe & Ready x4 (minimum)",
	"Sainsbury's Plums Ripe & Ready x5",
	"Sainsbury's White Flesh Nectarines, Ripe & Ready x4",
}

var expectedPrices = []float64{3.0, 1.5, 1.8, 3.2, 2.0, 1.8, 2.0, 2.0, 2.0, 2.0, 2.5, 2.0}

// fileFetcher serves one fixture for every URL and records what was asked for.
type fileFetcher struct {
	path   string
	header http.Header
	calls  *[]string
}

func (f *fileFetcher) Fetch(rawURL string) (*models.Page, error) {
	*f.calls = append(*f.calls, rawURL)
	body, err := os.ReadFile(f.path)
	if err != nil {
		return nil, err
	}
	return &models.Page{URL: rawURL, StatusCode: http.StatusOK, Body: body, Header: f.header.Clone()}, nil
}

func fixtureFactory(path string, header http.Header) (FetcherFactory, *[]string) {
	calls := &[]string{}
	return func() (Fetcher, error) {
		return &fileFetcher{path: path, header: header, calls: calls}, nil
	}, calls
}

type failingFetcher struct {
	failOn string
	next   Fetcher
}

func (f *failingFetcher) Fetch(rawURL string) (*models.Page, error) {
	if rawURL == f.failOn {
		return nil, fmt.Errorf("fetch %s: connection refused", rawURL)
	}
	return f.next.Fetch(rawURL)
}

func readFixture(t *testing.T, path string) []byte {
	t.Helper()
	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return body
}

func newTestListingParser(t *testing.T, factory FetcherFactory) *ListingParser {
	t.Helper()
	p, err := NewListingParser(readFixture(t, listingFixture), factory)
	if err != nil {
		t.Fatalf("new listing parser: %v", err)
	}
	return p
}

func expectedProducts(size string) []*models.Product {
	products := make([]*models.Product, 0, len(expectedTitles))
	for i, title := range expectedTitles {
		products = append(products, &models.Product{
			Title:       title,
			UnitPrice:   expectedPrices[i],
			Size:        size,
			Description: "Ripe & ready",
		})
	}
	return products
}

func TestParserFindsAllProducts(t *testing.T) {
	factory, _ := fixtureFactory(descriptionFixture, nil)
	p := newTestListingParser(t, factory)

	if got := len(p.Products()); got != 12 {
		t.Fatalf("products=%d, want 12", got)
	}
}

func TestProductTitles(t *testing.T) {
	factory, _ := fixtureFactory(descriptionFixture, nil)
	p := newTestListingParser(t, factory)

	var titles []string
	for _, entry := range p.Products() {
		title, err := p.ProductTitle(entry)
		if err != nil {
			t.Fatalf("title: %v", err)
		}
		titles = append(titles, title)
	}
	if diff := cmp.Diff(expectedTitles, titles); diff != "" {
		t.Fatalf("titles mismatch (-want +got):\n%s", diff)
	}
}

func TestProductLinks(t *testing.T) {
	factory, _ := fixtureFactory(descriptionFixture, nil)
	p := newTestListingParser(t, factory)

	const prefix = "http://www.sainsburys.co.uk/shop/gb/groceries/ripe---ready/"
	expected := []string{
		prefix + "sainsburys-apricot-ripe---ready-320g",
		prefix + "sainsburys-avocado-xl-pinkerton-loose-300g",
		prefix + "sainsburys-avocado--ripe---ready-x2",
		prefix + "sainsburys-avocados--ripe---ready-x4",
		prefix + "sainsburys-conference-pears--ripe---ready-x4-%28minimum%29",
		prefix + "sainsburys-kiwi-fruit--ripe---ready-x4",
		prefix + "sainsburys-mango--ripe---ready-x2",
		prefix + "sainsburys-nectarines--ripe---ready-x4",
		prefix + "sainsburys-peaches-ripe---ready-x4",
		prefix + "sainsburys-pears--ripe---ready-x4-%28minimum%29",
		prefix + "sainsburys-plums--firm---sweet-x4-%28minimum%29",
		prefix + "sainsburys-white-flesh-nectarines--ripe---ready-x4",
	}

	var links []string
	for _, entry := range p.Products() {
		link, err := p.ProductLink(entry)
		if err != nil {
			t.Fatalf("link: %v", err)
		}
		links = append(links, link)
	}
	if diff := cmp.Diff(expected, links); diff != "" {
		t.Fatalf("links mismatch (-want +got):\n%s", diff)
	}
}

func TestProductPrices(t *testing.T) {
	factory, _ := fixtureFactory(descriptionFixture, nil)
	p := newTestListingParser(t, factory)

	var prices []float64
	for _, entry := range p.Products() {
		price, err := p.ProductPrice(entry)
		if err != nil {
			t.Fatalf("price: %v", err)
		}
		prices = append(prices, price)
	}
	if diff := cmp.Diff(expectedPrices, prices); diff != "" {
		t.Fatalf("prices mismatch (-want +got):\n%s", diff)
	}
}

func TestDescriptionInfoFallsBackToBodyLength(t *testing.T) {
	factory, calls := fixtureFactory(descriptionFixture, nil)
	p := newTestListingParser(t, factory)

	body, size, err := p.DescriptionInfo("http://example.test/product")
	if err != nil {
		t.Fatalf("description info: %v", err)
	}
	want := readFixture(t, descriptionFixture)
	if !bytes.Equal(body, want) {
		t.Fatalf("body differs from fixture (%d bytes vs %d)", len(body), len(want))
	}
	if size != len(want) {
		t.Fatalf("size=%d, want %d", size, len(want))
	}
	if len(*calls) != 1 || (*calls)[0] != "http://example.test/product" {
		t.Fatalf("calls=%v, want one call for the product url", *calls)
	}
}

func TestDescriptionInfoPrefersContentLength(t *testing.T) {
	header := http.Header{}
	header.Set("Content-Length", "2048")
	factory, _ := fixtureFactory(descriptionFixture, header)
	p := newTestListingParser(t, factory)

	_, size, err := p.DescriptionInfo("http://example.test/product")
	if err != nil {
		t.Fatalf("description info: %v", err)
	}
	if size != 2048 {
		t.Fatalf("size=%d, want 2048", size)
	}
}

func TestDescriptionInfoBadContentLength(t *testing.T) {
	header := http.Header{}
	header.Set("Content-Length", "lots")
	factory, _ := fixtureFactory(descriptionFixture, header)
	p := newTestListingParser(t, factory)

	if _, _, err := p.DescriptionInfo("http://example.test/product"); err == nil {
		t.Fatalf("expected error for malformed content length")
	}
}

func TestProductDescription(t *testing.T) {
	details, err := NewDescriptionParser(readFixture(t, descriptionFixture))
	if err != nil {
		t.Fatalf("new description parser: %v", err)
	}
	description, err := details.Description()
	if err != nil {
		t.Fatalf("description: %v", err)
	}
	if description != "Ripe & ready" {
		t.Fatalf("description=%q, want %q", description, "Ripe & ready")
	}
}

func TestDescriptionJoinsParagraphs(t *testing.T) {
	body := []byte(`<div class="productText">
		<p>  Ripe
		   &amp; ready </p>
		<p></p>
		<p>Eat within <b>2 days</b></p>
	</div>`)

	details, err := NewDescriptionParser(body)
	if err != nil {
		t.Fatalf("new description parser: %v", err)
	}
	description, err := details.Description()
	if err != nil {
		t.Fatalf("description: %v", err)
	}
	if want := "Ripe & ready  Eat within 2 days"; description != want {
		t.Fatalf("description=%q, want %q", description, want)
	}
}

func TestDescriptionMissingContainer(t *testing.T) {
	details, err := NewDescriptionParser([]byte(`<div class="productInfo"><p>nothing here</p></div>`))
	if err != nil {
		t.Fatalf("new description parser: %v", err)
	}
	if _, err := details.Description(); !errors.Is(err, document.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestParseProduct(t *testing.T) {
	factory, calls := fixtureFactory(descriptionFixture, nil)
	p := newTestListingParser(t, factory)

	var parsed []*models.Product
	for _, entry := range p.Products() {
		product, err := p.ParseProduct(entry)
		if err != nil {
			t.Fatalf("parse product: %v", err)
		}
		parsed = append(parsed, product)
	}

	if diff := cmp.Diff(expectedProducts("52.9kb"), parsed, cmpopts.IgnoreFields(models.Product{}, "Link")); diff != "" {
		t.Fatalf("products mismatch (-want +got):\n%s", diff)
	}
	if len(*calls) != 12 {
		t.Fatalf("fetches=%d, want 12", len(*calls))
	}
	if parsed[0].Link != (*calls)[0] {
		t.Fatalf("link=%q, fetched %q", parsed[0].Link, (*calls)[0])
	}
}

func TestFullParse(t *testing.T) {
	factory, calls := fixtureFactory(descriptionFixture, nil)
	p := newTestListingParser(t, factory)

	report, err := p.Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if report.Total != 25.8 {
		t.Fatalf("total=%v, want 25.8", report.Total)
	}
	if diff := cmp.Diff(expectedProducts("52.9kb"), report.Results, cmpopts.IgnoreFields(models.Product{}, "Link")); diff != "" {
		t.Fatalf("results mismatch (-want +got):\n%s", diff)
	}
	if len(report.Results) != len(p.Products()) {
		t.Fatalf("results=%d, products=%d", len(report.Results), len(p.Products()))
	}
	if len(*calls) != 12 {
		t.Fatalf("fetches=%d, want 12", len(*calls))
	}
}

func TestParseUsesFreshFetcherPerProduct(t *testing.T) {
	created := 0
	inner, _ := fixtureFactory(descriptionFixture, nil)
	factory := func() (Fetcher, error) {
		created++
		return inner()
	}
	p := newTestListingParser(t, factory)

	if _, err := p.Parse(); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if created != 12 {
		t.Fatalf("fetchers created=%d, want 12", created)
	}
}

func TestParseFailsFast(t *testing.T) {
	const broken = "http://www.sainsburys.co.uk/shop/gb/groceries/ripe---ready/sainsburys-mango--ripe---ready-x2"
	inner, calls := fixtureFactory(descriptionFixture, nil)
	factory := func() (Fetcher, error) {
		next, err := inner()
		if err != nil {
			return nil, err
		}
		return &failingFetcher{failOn: broken, next: next}, nil
	}
	p := newTestListingParser(t, factory)

	report, err := p.Parse()
	if err == nil {
		t.Fatalf("expected error from broken product")
	}
	if report != nil {
		t.Fatalf("expected no partial report, got %d results", len(report.Results))
	}
	if !strings.Contains(err.Error(), "product 6") {
		t.Fatalf("error should name the failing entry, got %v", err)
	}
	if len(*calls) != 6 {
		t.Fatalf("fetches before abort=%d, want 6", len(*calls))
	}
}

func TestStructuralErrors(t *testing.T) {
	body := []byte(`
		<div class="product"><p class="pricePerUnit">&pound;1.00</p></div>
		<div class="product"><h3>No link</h3><p class="pricePerUnit">&pound;1.00</p></div>
		<div class="product"><h3><a>No href</a></h3><p class="pricePerUnit">&pound;1.00</p></div>
		<div class="product"><h3><a href="/x">No price</a></h3></div>
		<div class="product"><h3><a href="/x">Bad price</a></h3><p class="pricePerUnit">&pound;free</p></div>`)
	factory, _ := fixtureFactory(descriptionFixture, nil)
	p, err := NewListingParser(body, factory)
	if err != nil {
		t.Fatalf("new listing parser: %v", err)
	}
	entries := p.Products()
	if len(entries) != 5 {
		t.Fatalf("entries=%d, want 5", len(entries))
	}

	if _, err := p.ProductTitle(entries[0]); !errors.Is(err, document.ErrNotFound) {
		t.Errorf("title without h3: got %v, want ErrNotFound", err)
	}
	if _, err := p.ProductLink(entries[1]); !errors.Is(err, document.ErrNotFound) {
		t.Errorf("link without anchor: got %v, want ErrNotFound", err)
	}
	if _, err := p.ProductLink(entries[2]); !errors.Is(err, document.ErrNoAttribute) {
		t.Errorf("link without href: got %v, want ErrNoAttribute", err)
	}
	if _, err := p.ProductPrice(entries[3]); !errors.Is(err, document.ErrNotFound) {
		t.Errorf("missing price: got %v, want ErrNotFound", err)
	}
	if _, err := p.ProductPrice(entries[4]); !errors.Is(err, ErrPriceFormat) {
		t.Errorf("bad price: got %v, want ErrPriceFormat", err)
	}
}

func TestNewListingParserRequiresFactory(t *testing.T) {
	if _, err := NewListingParser([]byte("<html></html>"), nil); err == nil {
		t.Fatalf("expected error for nil factory")
	}
}
