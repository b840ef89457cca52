package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"PanelSync/internal/domain/models"
	drepo "PanelSync/internal/domain/repository"
	"PanelSync/internal/service/cache"
	xhttp "PanelSync/pkg/http"
	applogger "PanelSync/pkg/logger"
)

// ErrEmptyQuery is returned for blank search text.
var ErrEmptyQuery = errors.New("search: empty query")

// Recorder receives every instrument a search returns.
type Recorder interface {
	PutAll(ctx context.Context, res *models.SearchResult) error
}

// Option configures Client.
type Option func(*Client)

// WithCacheTTL caches results per normalized query.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.ttl = ttl
	}
}

// WithRecorder stores search results so later lookups by id or symbol
// resolve without another search.
func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		c.recorder = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *applogger.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// Client calls the external instrument search service:
// GET {baseURL}/search?q=<text> returning a SearchResult document.
type Client struct {
	baseURL  string
	http     *xhttp.Client
	ttl      time.Duration
	cache    *cache.TTLCache[*models.SearchResult]
	recorder Recorder
	log      *applogger.Logger
}

// NewClient creates a search client.
func NewClient(baseURL string, hc *xhttp.Client, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
		ttl:     time.Minute,
		log:     applogger.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = xhttp.NewClient()
	}
	c.cache = cache.NewTTLCache[*models.SearchResult](c.ttl, 1024)
	return c
}

// Search returns instruments matching text.
func (c *Client) Search(ctx context.Context, text string) (*models.SearchResult, error) {
	q := strings.TrimSpace(text)
	if q == "" {
		return nil, ErrEmptyQuery
	}
	key := strings.ToLower(q)
	if res, ok := c.cache.Get(key); ok {
		return res, nil
	}

	var res models.SearchResult
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL + "/search",
		QueryParams: map[string][]string{"q": {q}},
	}, &res)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", q, err)
	}
	if res.SymbolMatches == nil {
		res.SymbolMatches = []models.Instrument{}
	}
	if res.NameMatches == nil {
		res.NameMatches = []models.Instrument{}
	}
	c.cache.Set(key, &res)

	if c.recorder != nil {
		if err := c.recorder.PutAll(ctx, &res); err != nil {
			c.log.Warn("search: record results", applogger.String("query", q), applogger.Error(err))
		}
	}
	return &res, nil
}

var _ drepo.InstrumentSearch = (*Client)(nil)
