// Package edgar fetches the latest periodic filing for a ticker from SEC EDGAR.
package edgar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/edgarsignals/internal/common"
	"github.com/ternarybob/edgarsignals/internal/models"
)

const (
	// DefaultSubmissionsURL is the base URL for company submission indexes
	DefaultSubmissionsURL = "https://data.sec.gov/submissions"

	// DefaultArchivesURL is the base URL for filing documents
	DefaultArchivesURL = "https://www.sec.gov/Archives/edgar/data"

	// DefaultTimeout is the default HTTP timeout
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit stays under SEC's 10 requests/second fair-access ceiling
	DefaultRateLimit = 5

	// DefaultMaxRetries is the number of retries for 429/5xx responses
	DefaultMaxRetries = 2

	defaultUserAgent = "edgarsignals (ops@example.com)"
	maxBodyBytes     = 64 << 20
)

// Client is an EDGAR filing client
type Client struct {
	submissionsURL string
	archivesURL    string
	userAgent      string
	httpClient     *http.Client
	logger         arbor.ILogger
	limiter        *rate.Limiter
	cik            map[string]string
	maxRetries     int
	retryDelay     time.Duration
	retry          retrypolicy.RetryPolicy[[]byte]
}

// ClientOption configures the Client
type ClientOption func(*Client)

// WithSubmissionsURL sets a custom submissions base URL
func WithSubmissionsURL(u string) ClientOption {
	return func(c *Client) {
		c.submissionsURL = strings.TrimRight(u, "/")
	}
}

// WithArchivesURL sets a custom archives base URL
func WithArchivesURL(u string) ClientOption {
	return func(c *Client) {
		c.archivesURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets a custom rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithRetry sets the retry count and base backoff for transient responses
func WithRetry(maxRetries int, baseDelay time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.retryDelay = baseDelay
	}
}

// WithCIK adds ticker -> CIK mappings on top of DefaultCIK
func WithCIK(extra map[string]string) ClientOption {
	return func(c *Client) {
		c.cik = mergeCIK(extra)
	}
}

// NewClient creates a new EDGAR client. userAgent must identify the operator;
// SEC rejects anonymous traffic.
func NewClient(userAgent string, opts ...ClientOption) *Client {
	if strings.TrimSpace(userAgent) == "" {
		userAgent = defaultUserAgent
	}

	c := &Client{
		submissionsURL: DefaultSubmissionsURL,
		archivesURL:    DefaultArchivesURL,
		userAgent:      userAgent,
		httpClient:     &http.Client{Timeout: DefaultTimeout},
		limiter:        rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		cik:            mergeCIK(nil),
		maxRetries:     DefaultMaxRetries,
		retryDelay:     500 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.retry = retrypolicy.NewBuilder[[]byte]().
		WithBackoff(c.retryDelay, 10*c.retryDelay).
		WithMaxRetries(c.maxRetries).
		WithJitterFactor(0.1).
		HandleIf(func(_ []byte, err error) bool {
			return isTransient(err)
		}).
		ReturnLastFailure().
		Build()

	return c
}

// NewClientFromConfig builds a Client from the [edgar] config section
func NewClientFromConfig(config *common.EdgarConfig, logger arbor.ILogger) *Client {
	return NewClient(config.UserAgent,
		WithSubmissionsURL(config.SubmissionsURL),
		WithArchivesURL(config.ArchivesURL),
		WithHTTPClient(&http.Client{Timeout: common.ParseDuration(config.RequestTimeout, DefaultTimeout)}),
		WithRateLimit(config.RateLimit),
		WithRetry(config.MaxRetries, 500*time.Millisecond),
		WithCIK(config.CIK),
		WithLogger(logger),
	)
}

// FetchLatestFiling resolves the most recent 10-Q or 10-K for ticker and
// downloads its primary document. Every failure is a *models.FetchError.
func (c *Client) FetchLatestFiling(ctx context.Context, ticker string) (*models.Filing, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	cik, ok := c.cik[ticker]
	if !ok {
		return nil, &models.FetchError{Ticker: ticker, Err: ErrUnknownTicker}
	}

	submissionsURL := fmt.Sprintf("%s/CIK%s.json", c.submissionsURL, cik)
	body, err := c.get(ctx, submissionsURL, "application/json")
	if err != nil {
		return nil, fetchError(ticker, submissionsURL, err)
	}

	var sub submissions
	if err := json.Unmarshal(body, &sub); err != nil {
		return nil, &models.FetchError{Ticker: ticker, URL: submissionsURL, Err: fmt.Errorf("failed to decode submissions: %w", err)}
	}

	ref, err := c.latestPeriodic(ticker, cik, sub.Filings.Recent)
	if err != nil {
		return nil, &models.FetchError{Ticker: ticker, URL: submissionsURL, Err: err}
	}

	raw, err := c.get(ctx, ref.SourceURL, "text/html")
	if err != nil {
		return nil, fetchError(ticker, ref.SourceURL, err)
	}

	if c.logger != nil {
		c.logger.Debug().
			Str("ticker", ticker).
			Str("form", ref.Form).
			Str("filing_date", ref.FilingDate).
			Str("accession", ref.AccessionNumber).
			Int("bytes", len(raw)).
			Msg("Fetched latest filing")
	}

	return &models.Filing{FilingRef: *ref, RawContent: raw}, nil
}

func (c *Client) latestPeriodic(ticker, cik string, recent recentFilings) (*models.FilingRef, error) {
	for i, form := range recent.Form {
		if form != models.FormQuarterly && form != models.FormAnnual {
			continue
		}
		if i >= len(recent.FilingDate) || i >= len(recent.AccessionNumber) || i >= len(recent.PrimaryDocument) {
			return nil, fmt.Errorf("recent filings arrays are misaligned at index %d", i)
		}

		accession := strings.ReplaceAll(recent.AccessionNumber[i], "-", "")
		primary := recent.PrimaryDocument[i]
		return &models.FilingRef{
			Ticker:          ticker,
			Form:            form,
			FilingDate:      recent.FilingDate[i],
			AccessionNumber: accession,
			PrimaryDocument: primary,
			SourceURL:       fmt.Sprintf("%s/%s/%s/%s", c.archivesURL, archiveCIK(cik), accession, primary),
		}, nil
	}
	return nil, ErrNoPeriodicFiling
}

// get performs a rate limited GET, retrying 429/5xx and network errors
func (c *Client) get(ctx context.Context, url, accept string) ([]byte, error) {
	return failsafe.With[[]byte](c.retry).WithContext(ctx).Get(func() ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", accept)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to execute request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
			if c.logger != nil {
				c.logger.Warn().Int("status", resp.StatusCode).Str("url", url).Msg("SEC request failed")
			}
			return nil, &StatusError{StatusCode: resp.StatusCode, URL: url}
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}
		return body, nil
	})
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	return true
}

func fetchError(ticker, url string, err error) *models.FetchError {
	fe := &models.FetchError{Ticker: ticker, URL: url, Err: err}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		fe.StatusCode = statusErr.StatusCode
	}
	return fe
}
