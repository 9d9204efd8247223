package marketplace

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/rs/zerolog"
	"golang.org/x/net/html/charset"

	"github.com/fhsinchy/geb-deals/internal/domain"
	"github.com/fhsinchy/geb-deals/internal/infrastructure/metrics"
)

// maxBodyBytes caps how much of a results page is read
const maxBodyBytes = 10 << 20

// errBodyTooLarge is returned instead of a truncated page
var errBodyTooLarge = errors.New("results page exceeds size limit")

// ClientConfig holds configuration for the search page fetcher
type ClientConfig struct {
	BaseURL     string
	SearchPath  string
	Category    string
	Timeout     time.Duration
	Headers     map[string]string
	Fingerprint Fingerprint
}

// Client fetches marketplace search-results pages. It makes exactly one
// request per call; it does not retry or throttle.
type Client struct {
	httpClient *http.Client
	searchURL  string
	category   string
	timeout    time.Duration
	headers    map[string]string
	maxBody    int64
	metrics    *metrics.Metrics
}

// NewClient creates a new marketplace client
func NewClient(cfg ClientConfig, m *metrics.Metrics) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid marketplace base URL %q", cfg.BaseURL)
	}

	searchPath := cfg.SearchPath
	if searchPath == "" {
		searchPath = "/s"
	}
	if !strings.HasPrefix(searchPath, "/") {
		searchPath = "/" + searchPath
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	fingerprint := cfg.Fingerprint
	if fingerprint == "" {
		fingerprint = FingerprintChrome
	}
	transport, err := newTransport(fingerprint)
	if err != nil {
		return nil, fmt.Errorf("failed to set up transport: %w", err)
	}

	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		if v != "" {
			headers[k] = v
		}
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		searchURL: base.String() + searchPath,
		category:  cfg.Category,
		timeout:   timeout,
		headers:   headers,
		maxBody:   maxBodyBytes,
		metrics:   m,
	}, nil
}

// SearchURL returns the results page URL for an already normalized query
func (c *Client) SearchURL(query string) string {
	params := url.Values{}
	params.Set("k", query)
	if c.category != "" {
		params.Set("i", c.category)
	}
	return c.searchURL + "?" + params.Encode()
}

// FetchSearchPage downloads the results page for query. Transport errors,
// timeouts and non-2xx statuses all wrap domain.ErrFetchFailure.
func (c *Client) FetchSearchPage(ctx context.Context, query string) (*domain.RawDocument, error) {
	log := zerolog.Ctx(ctx)
	reqURL := c.SearchURL(query)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", domain.ErrFetchFailure, err)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordFetch(0, time.Since(start), 0)
		log.Warn().Err(err).Str("url", reqURL).Msg("Marketplace request failed")
		return nil, fmt.Errorf("%w: %v", domain.ErrFetchFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.metrics.RecordFetch(resp.StatusCode, time.Since(start), 0)
		log.Warn().Int("status", resp.StatusCode).Str("url", reqURL).Msg("Marketplace returned non-success status")
		return nil, fmt.Errorf("%w: status %d", domain.ErrFetchFailure, resp.StatusCode)
	}

	body, err := readBody(resp, c.maxBody)
	c.metrics.RecordFetch(resp.StatusCode, time.Since(start), len(body))
	if err != nil {
		log.Warn().Err(err).Str("url", reqURL).Msg("Marketplace response unreadable")
		return nil, fmt.Errorf("%w: failed to read body: %w", domain.ErrFetchFailure, err)
	}

	log.Debug().
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Dur("elapsed", time.Since(start)).
		Msg("Fetched marketplace search page")

	return &domain.RawDocument{
		URL:         reqURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// readBody reads at most limit decoded bytes and converts the page to
// UTF-8. A page over the limit is an error, never a truncated document.
func readBody(resp *http.Response, limit int64) ([]byte, error) {
	r, err := contentReader(resp)
	if err != nil {
		return nil, err
	}

	raw, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", errBodyTooLarge, limit)
	}

	utf8Reader, err := charset.NewReader(bytes.NewReader(raw), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(utf8Reader)
}

// contentReader undoes the Content-Encoding of resp. net/http only
// decompresses on its own when it chose Accept-Encoding itself, so an
// explicitly configured header means the body arrives encoded.
func contentReader(resp *http.Response) (io.Reader, error) {
	if resp.Uncompressed {
		return resp.Body, nil
	}

	switch enc := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))); enc {
	case "", "identity":
		return resp.Body, nil
	case "gzip", "x-gzip":
		return gzip.NewReader(resp.Body)
	case "deflate":
		return zlib.NewReader(resp.Body)
	case "br":
		return brotli.NewReader(resp.Body), nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", enc)
	}
}
