// Package gosplan talks to the GosPlan procurement search API and turns its
// two regime schemas into domain tenders.
package gosplan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrSnakeDoc/tenders/internal/domain"
	"github.com/MrSnakeDoc/tenders/internal/logger"
	"github.com/MrSnakeDoc/tenders/internal/ratelimit"
)

const (
	DefaultBaseURL   = "https://v2.gosplan.info/api/v2"
	DefaultUserAgent = "TenderTracker/1.0"
	DefaultTimeout   = 30 * time.Second
	DefaultLimit     = 100

	basicLimit   = 50
	maxBodyBytes = 32 << 20
)

// Options configures the upstream client.
type Options struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration

	// MaxRetries is accepted from configuration but not acted on: a failed
	// regime request is reported once and the next cycle tries again.
	MaxRetries int

	// HTTPClient overrides the default client. Its Timeout is left as is.
	HTTPClient *http.Client
}

// SearchOptions narrows a search. Zero values are not sent.
type SearchOptions struct {
	DeadlineFrom *time.Time
	DeadlineTo   *time.Time
	MinPrice     *decimal.Decimal
	MaxPrice     *decimal.Decimal
	Region       string

	// Limit caps results per regime. 0 means DefaultLimit.
	Limit int
}

// Client queries both regime endpoints through a shared Spacer.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	spacer    *ratelimit.Spacer
	logger    logger.Logger
}

// NewClient builds a client. The spacer must be shared by every client in
// the process for the upstream budget to hold.
func NewClient(opts Options, spacer *ratelimit.Spacer, log logger.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.NewNop()
	}
	if spacer == nil {
		spacer = ratelimit.NewSpacer(ratelimit.DefaultSpacing, nil, log)
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		userAgent: opts.UserAgent,
		http:      hc,
		spacer:    spacer,
		logger:    log,
	}
}

// Search runs keyword against every regime, 44-FZ first, and returns the
// normalized tenders of both, each stamped with queryID. The first failing
// regime aborts the search with a *domain.TransportError or
// *domain.MalformedResponseError.
func (c *Client) Search(ctx context.Context, keyword string, queryID *int64, opts SearchOptions) ([]*domain.Tender, error) {
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}

	var tenders []*domain.Tender
	for _, regime := range domain.Regimes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		records, err := c.fetch(ctx, regime, keyword, opts)
		if err != nil {
			c.logger.Warn("upstream search failed",
				logger.String("keyword", keyword),
				logger.Stringer("regime", regime),
				logger.Error(err))
			return nil, err
		}
		for _, rec := range records {
			tenders = append(tenders, Normalize(rec, queryID))
		}
		c.logger.Debug("upstream regime searched",
			logger.String("keyword", keyword),
			logger.Stringer("regime", regime),
			logger.Int("records", len(records)))
	}
	return tenders, nil
}

// SearchBasic is Search with a smaller page and no filters.
func (c *Client) SearchBasic(ctx context.Context, keyword string, queryID *int64) ([]*domain.Tender, error) {
	return c.Search(ctx, keyword, queryID, SearchOptions{Limit: basicLimit})
}

func (c *Client) fetch(ctx context.Context, regime domain.Regime, keyword string, opts SearchOptions) ([]RawRecord, error) {
	transportErr := func(status int, err error) error {
		return &domain.TransportError{Keyword: keyword, Regime: regime, StatusCode: status, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.searchURL(regime, keyword, opts), nil)
	if err != nil {
		return nil, transportErr(0, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	release, err := c.spacer.Acquire(ctx)
	if err != nil {
		return nil, transportErr(0, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		release()
		return nil, transportErr(0, err)
	}
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	_ = resp.Body.Close()
	release()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, transportErr(resp.StatusCode, errors.New(http.StatusText(resp.StatusCode)))
	}
	if readErr != nil {
		return nil, transportErr(resp.StatusCode, fmt.Errorf("read body: %w", readErr))
	}

	records, err := decodeRecords(regime, body)
	if err != nil {
		return nil, &domain.MalformedResponseError{Keyword: keyword, Regime: regime, Err: err}
	}
	return records, nil
}

func (c *Client) searchURL(regime domain.Regime, keyword string, opts SearchOptions) string {
	q := url.Values{}
	q.Set("search_description", keyword)
	q.Set("limit", strconv.Itoa(opts.Limit))
	if opts.DeadlineFrom != nil {
		q.Set("deadline_from", opts.DeadlineFrom.UTC().Format(time.RFC3339))
	}
	if opts.DeadlineTo != nil {
		q.Set("deadline_to", opts.DeadlineTo.UTC().Format(time.RFC3339))
	}
	if opts.MinPrice != nil {
		q.Set("max_price_from", opts.MinPrice.String())
	}
	if opts.MaxPrice != nil {
		q.Set("max_price_to", opts.MaxPrice.String())
	}
	if opts.Region != "" {
		q.Set("region", opts.Region)
	}
	return fmt.Sprintf("%s/%s/purchases?%s", c.baseURL, regime.Path(), q.Encode())
}
