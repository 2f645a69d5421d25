package scraper

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/aluiziolira/go-scrape-groceries/config"
	"github.com/aluiziolira/go-scrape-groceries/models"
	"github.com/gocolly/colly/v2"
)

const (
	startKey    = "start"
	responseKey = "response"
	statusKey   = "status"
)

// Fetcher issues GET requests over a single cookie session. A Fetcher is not
// safe for concurrent use.
type Fetcher struct {
	collector *colly.Collector
	transport http.RoundTripper
	raw       *rawBodyRecorder
	jar       http.CookieJar
	metrics   *Metrics
}

// FetcherOption customises a Fetcher.
type FetcherOption func(*Fetcher)

// WithTransport replaces the transport used for every request.
func WithTransport(rt http.RoundTripper) FetcherOption {
	return func(f *Fetcher) {
		if rt != nil {
			f.transport = rt
		}
	}
}

// NewTransport returns an HTTP transport that also serves file:// URLs from
// the local filesystem.
func NewTransport(cfg *config.Config) *http.Transport {
	dialTimeout := 30 * time.Second
	if cfg.Timeout > 0 {
		dialTimeout = cfg.Timeout
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   dialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	transport.RegisterProtocol("file", http.NewFileTransport(http.Dir("/")))
	return transport
}

// NewFetcher builds a synchronous collector with its own empty cookie jar.
func NewFetcher(cfg *config.Config, metrics *Metrics, opts ...FetcherOption) (*Fetcher, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
		colly.MaxBodySize(cfg.MaxBodySize),
	)
	collector.SetCookieJar(jar)

	f := &Fetcher{
		collector: collector,
		transport: NewTransport(cfg),
		jar:       jar,
		metrics:   metrics,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.raw = &rawBodyRecorder{base: f.transport}
	collector.WithTransport(f.raw)
	if cfg.Timeout > 0 {
		collector.SetRequestTimeout(cfg.Timeout)
	}
	f.configureHandlers()
	return f, nil
}

func (f *Fetcher) configureHandlers() {
	f.collector.OnRequest(func(r *colly.Request) {
		r.Ctx.Put(startKey, time.Now())
		f.metrics.IncRequest("started")
		slog.Debug("fetching page", slog.String("url", r.URL.String()))
	})

	f.collector.OnResponse(func(r *colly.Response) {
		if start, ok := r.Ctx.GetAny(startKey).(time.Time); ok {
			f.metrics.ObserveDuration(time.Since(start))
		}
		f.metrics.IncRequest("completed")
		f.metrics.ObserveBytes(f.raw.Len())
		r.Ctx.Put(responseKey, r)
	})

	f.collector.OnError(func(r *colly.Response, err error) {
		if r == nil || r.Ctx == nil {
			return
		}
		r.Ctx.Put(statusKey, r.StatusCode)
		if start, ok := r.Ctx.GetAny(startKey).(time.Time); ok {
			f.metrics.ObserveDuration(time.Since(start))
		}
	})
}

// Fetch retrieves rawURL. Cookies set by earlier responses of this Fetcher
// are sent along. Page.Body holds the bytes as read from the wire, before any
// charset conversion. Failures are returned as *FetchError and never retried.
func (f *Fetcher) Fetch(rawURL string) (*models.Page, error) {
	f.raw.Reset()
	ctx := colly.NewContext()
	if err := f.collector.Request(http.MethodGet, rawURL, nil, ctx, nil); err != nil {
		status, _ := ctx.GetAny(statusKey).(int)
		return nil, f.fail(rawURL, status, classifyError(err, status))
	}

	resp, ok := ctx.GetAny(responseKey).(*colly.Response)
	if !ok {
		return nil, f.fail(rawURL, 0, errors.New("no response received"))
	}

	header := http.Header{}
	if resp.Headers != nil {
		header = resp.Headers.Clone()
	}
	return &models.Page{
		URL:        rawURL,
		StatusCode: resp.StatusCode,
		Body:       f.raw.Bytes(),
		Header:     header,
	}, nil
}

// Cookies returns the cookies the session would send to rawURL.
func (f *Fetcher) Cookies(rawURL string) []*http.Cookie {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	return f.jar.Cookies(u)
}

func (f *Fetcher) fail(rawURL string, status int, err error) error {
	fetchErr := &FetchError{URL: rawURL, StatusCode: status, Err: err}
	category := errorTypeLabel(fetchErr)
	f.metrics.IncError(category)
	slog.Error("fetch failed",
		slog.String("url", rawURL),
		slog.Int("status", status),
		slog.String("category", category),
		slog.Any("error", err),
	)
	return fetchErr
}

// rawBodyRecorder copies the body of the latest response as colly reads it.
// colly re-encodes bodies declared in a non-UTF-8 charset, so its Response.Body
// is not the payload that was received.
type rawBodyRecorder struct {
	base http.RoundTripper
	buf  bytes.Buffer
}

func (r *rawBodyRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := r.base.RoundTrip(req)
	if err != nil || resp == nil || resp.Body == nil {
		return resp, err
	}
	// Redirect hops land here too; only the final body is kept.
	r.buf.Reset()
	resp.Body = teeBody{Reader: io.TeeReader(resp.Body, &r.buf), Closer: resp.Body}
	return resp, nil
}

// Reset drops the recorded body.
func (r *rawBodyRecorder) Reset() {
	r.buf.Reset()
}

// Len reports the number of bytes recorded so far.
func (r *rawBodyRecorder) Len() int {
	return r.buf.Len()
}

// Bytes returns a copy of the recorded body.
func (r *rawBodyRecorder) Bytes() []byte {
	return bytes.Clone(r.buf.Bytes())
}

type teeBody struct {
	io.Reader
	io.Closer
}
