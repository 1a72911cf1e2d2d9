package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/parser"
	"github.com/gocolly/colly/v2"
)

// BFF endpoint names, used as metric labels and in errors.
const (
	EndpointListing = "listing"
	EndpointDetails = "details"
	EndpointPrices  = "prices"
)

const (
	listingPath = "/bff/products/listing"
	detailsPath = "/bff/product-details/list"
	pricesPath  = "/bff/products/prices"
)

// API is the set of BFF calls the fetch phases depend on.
type API interface {
	Listing(ctx context.Context, offset int) (*models.ListingResponse, error)
	Details(ctx context.Context, ids []string) (models.DetailPage, error)
	Prices(ctx context.Context, ids []string) ([]models.MaterialPrice, error)
}

// ClientStats summarises the requests a client has issued.
type ClientStats struct {
	Requests     int
	Retries      int
	ErrorsByType map[string]int
}

// Client talks to the BFF through a single synchronous colly collector so
// the cookie jar and headers are shared by every call of a run.
type Client struct {
	cfg       *config.Config
	baseURL   string
	collector *colly.Collector
	headers   http.Header
	retry     *retrier
	metrics   *Metrics

	requestCount int
	errorsByType map[string]int
}

// NewClient builds a client configured from cfg.
func NewClient(cfg *config.Config, metrics *Metrics) (*Client, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	headers := sessionHeaders(cfg)
	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Hostname()),
		colly.UserAgent(headers.Get("User-Agent")),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = true
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if len(cfg.Cookies) > 0 {
		if err := collector.SetCookies(cfg.BaseURL, sessionCookies(cfg.Cookies)); err != nil {
			return nil, fmt.Errorf("set session cookies: %w", err)
		}
	}

	return &Client{
		cfg:          cfg,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		collector:    collector,
		headers:      headers,
		retry:        newRetrier(cfg, metrics),
		metrics:      metrics,
		errorsByType: make(map[string]int),
	}, nil
}

// WithTransport swaps the HTTP transport, e.g. for a mock in tests.
func (c *Client) WithTransport(rt http.RoundTripper) {
	c.collector.WithTransport(rt)
}

// Listing requests one page of the category listing.
func (c *Client) Listing(ctx context.Context, offset int) (*models.ListingResponse, error) {
	params := url.Values{}
	params.Set("categoryId", c.cfg.CategoryID)
	params.Set("offset", strconv.Itoa(offset))
	params.Set("limit", strconv.Itoa(c.cfg.PageSize))
	for _, token := range c.cfg.FilterParams {
		params.Add("filterParams", token)
	}
	params.Set("doTranslit", "true")

	reqURL := c.baseURL + listingPath + "?" + params.Encode()
	body, err := c.fetch(ctx, EndpointListing, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := parser.DecodeListing(body)
	if err != nil {
		return nil, c.fail(EndpointListing, reqURL, err)
	}
	return resp, nil
}

// Details requests the product-details blob for ids.
func (c *Client) Details(ctx context.Context, ids []string) (models.DetailPage, error) {
	reqURL := c.baseURL + detailsPath
	payload, err := json.Marshal(models.NewDetailsRequest(ids))
	if err != nil {
		return nil, fmt.Errorf("encode details request: %w", err)
	}
	body, err := c.fetch(ctx, EndpointDetails, http.MethodPost, reqURL, payload)
	if err != nil {
		return nil, err
	}
	page, err := parser.DecodeDetails(body)
	if err != nil {
		return nil, c.fail(EndpointDetails, reqURL, err)
	}
	return page, nil
}

// Prices requests price entries for ids in a single call.
func (c *Client) Prices(ctx context.Context, ids []string) ([]models.MaterialPrice, error) {
	params := url.Values{}
	params.Set("productIds", strings.Join(ids, ","))
	params.Set("addBonusRubles", "true")
	params.Set("isPromoApplied", "true")

	reqURL := c.baseURL + pricesPath + "?" + params.Encode()
	body, err := c.fetch(ctx, EndpointPrices, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	prices, err := parser.DecodePrices(body)
	if err != nil {
		return nil, c.fail(EndpointPrices, reqURL, err)
	}
	return prices, nil
}

// Stats reports request, retry and error counts so far.
func (c *Client) Stats() ClientStats {
	out := make(map[string]int, len(c.errorsByType))
	for k, v := range c.errorsByType {
		out[k] = v
	}
	return ClientStats{
		Requests:     c.requestCount,
		Retries:      c.retry.TotalRetries(),
		ErrorsByType: out,
	}
}

func (c *Client) fetch(ctx context.Context, endpoint, method, reqURL string, payload []byte) ([]byte, error) {
	var body []byte
	err := c.retry.Do(ctx, reqURL, func() error {
		var err error
		body, err = c.do(endpoint, method, reqURL, payload)
		if err != nil {
			label := errorTypeLabel(err)
			c.errorsByType[label]++
			c.metrics.IncError(label)
			slog.Error("request error",
				slog.String("endpoint", endpoint),
				slog.String("url", reqURL),
				slog.String("category", label),
				slog.Any("error", err),
			)
		}
		return err
	})
	if err != nil {
		var te *TransportError
		if errors.As(err, &te) {
			return nil, err
		}
		return nil, &TransportError{Endpoint: endpoint, URL: reqURL, Page: -1, Err: err}
	}
	return body, nil
}

// do issues one request on a clone of the shared collector. Clones share the
// HTTP backend and cookie jar but not callbacks.
func (c *Client) do(endpoint, method, reqURL string, payload []byte) ([]byte, error) {
	var (
		body   []byte
		reqErr error
	)

	col := c.collector.Clone()
	col.OnRequest(func(r *colly.Request) {
		r.Ctx.Put("start", time.Now())
		c.requestCount++
		c.metrics.IncRequest(endpoint)
		slog.Debug("bff request",
			slog.String("method", r.Method),
			slog.String("url", r.URL.String()),
		)
	})
	col.OnResponse(func(r *colly.Response) {
		if start, ok := r.Request.Ctx.GetAny("start").(time.Time); ok {
			c.metrics.ObserveDuration(endpoint, time.Since(start))
		}
		body = r.Body
	})
	col.OnError(func(r *colly.Response, err error) {
		statusCode := 0
		if r != nil {
			statusCode = r.StatusCode
		}
		reqErr = classifyError(err, statusCode)
	})

	hdr := c.headers.Clone()
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
		hdr.Set("Content-Type", "application/json")
	}

	err := col.Request(method, reqURL, reader, nil, hdr)
	if reqErr != nil {
		return nil, reqErr
	}
	if err != nil {
		return nil, classifyError(err, 0)
	}
	return body, nil
}

func (c *Client) fail(endpoint, reqURL string, err error) error {
	label := errorTypeLabel(err)
	c.errorsByType[label]++
	c.metrics.IncError(label)
	return &TransportError{Endpoint: endpoint, URL: reqURL, Page: -1, Err: err}
}

// sessionHeaders builds the header set sent on every call. Headers from the
// config map (and so from the session file) win over the single-value
// settings, which only fill in what is missing.
func sessionHeaders(cfg *config.Config) http.Header {
	hdr := http.Header{}
	for k, v := range cfg.Headers {
		hdr.Set(k, v)
	}
	if hdr.Get("User-Agent") == "" {
		hdr.Set("User-Agent", cfg.UserAgent)
	}
	if hdr.Get("Referer") == "" {
		referer := cfg.Referer
		if referer == "" {
			referer = strings.TrimRight(cfg.BaseURL, "/") + "/"
		}
		hdr.Set("Referer", referer)
	}
	if cfg.AppID != "" && hdr.Get("x-set-application-id") == "" {
		hdr.Set("x-set-application-id", cfg.AppID)
	}
	return hdr
}

func sessionCookies(values map[string]string) []*http.Cookie {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	cookies := make([]*http.Cookie, 0, len(names))
	for _, name := range names {
		cookies = append(cookies, &http.Cookie{Name: name, Value: values[name]})
	}
	return cookies
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}

	if statusCode != 0 {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		switch {
		case statusCode == http.StatusForbidden:
			return ErrForbidden{Err: wrapped}
		case statusCode == http.StatusNotFound:
			return ErrNotFound{Err: wrapped}
		case statusCode == http.StatusTooManyRequests:
			return ErrRateLimited{Err: wrapped}
		case statusCode >= http.StatusInternalServerError:
			return ErrServer{StatusCode: statusCode, Err: wrapped}
		case statusCode >= http.StatusBadRequest:
			return fmt.Errorf("http status %d: %w", statusCode, wrapped)
		}
	}

	if err == nil {
		return nil
	}
	return err
}
