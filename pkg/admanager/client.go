// Package admanager provides the HTTP client for the Ad Manager paginated
// sites endpoint, with error classification, retry, and quota gating.
package admanager

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pubops/admanager-site-export/pkg/statement"
)

// Prometheus metrics for Ad Manager client operations.
var (
	gamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gam_requests_total",
		Help: "Total Ad Manager requests by endpoint and status",
	}, []string{"endpoint", "status"})

	gamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gam_request_duration_seconds",
		Help:    "Ad Manager request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	gamErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gam_errors_total",
		Help: "Total Ad Manager errors by class",
	}, []string{"class"})
)

// QuotaGuard gates requests against a shared error budget. Implemented by
// pkg/quota; nil disables gating.
type QuotaGuard interface {
	ShouldAllowRequest(ctx context.Context, networkCode string) (bool, error)
	RecordFault(ctx context.Context, networkCode string) error
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the Ad Manager API.
	BaseURL string

	// NetworkCode of the parent publisher network.
	NetworkCode string

	// APIVersion selects the endpoint version, e.g. "v202502".
	APIVersion string

	// UserAgent header sent with every request.
	UserAgent string

	// Timeout for a single HTTP request.
	Timeout time.Duration

	// Retry holds the backoff policy for transient faults.
	// A zero value derives the policy from the first failure's error class.
	Retry RetryConfig

	// Quota optionally gates requests against the shared error budget.
	Quota QuotaGuard
}

// DefaultConfig returns a safe default configuration for a network.
func DefaultConfig(networkCode string) Config {
	return Config{
		BaseURL:     "https://admanager.googleapis.com",
		NetworkCode: networkCode,
		APIVersion:  "v202502",
		UserAgent:   "admanager-site-export/0.1.0",
		Timeout:     30 * time.Second,
	}
}

// Client is the Ad Manager sites client.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a new Ad Manager client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.NetworkCode == "" {
		return nil, fmt.Errorf("network code is required")
	}
	if cfg.APIVersion == "" {
		return nil, fmt.Errorf("api version is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		logger: log.With().Str("component", "admanager-client").Logger(),
	}, nil
}

// GetSitesByStatement executes a filter statement against the sites endpoint.
// Transient faults (5xx, 429, network) are retried up to the configured
// budget; 4xx errors surface immediately.
func (c *Client) GetSitesByStatement(ctx context.Context, stmt statement.Statement) (*SitePage, error) {
	endpoint := fmt.Sprintf("/%s/networks/%s/sites:getByStatement",
		c.config.APIVersion, c.config.NetworkCode)

	if c.config.Quota != nil {
		allowed, err := c.config.Quota.ShouldAllowRequest(ctx, c.config.NetworkCode)
		if err != nil {
			return nil, fmt.Errorf("quota check: %w", err)
		}
		if !allowed {
			c.logger.Warn().
				Str("endpoint", endpoint).
				Msg("Request blocked by quota guard")
			gamRequestsTotal.WithLabelValues(endpoint, "quota_blocked").Inc()
			return nil, ErrQuotaBlocked
		}
	}

	var page *SitePage
	err := retryWithConfig(ctx, c.config.Retry, func() error {
		p, err := c.getByStatementOnce(ctx, endpoint, stmt)
		if err != nil {
			return err
		}
		page = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// CountByStatement probes the statement's total result-set size by fetching
// a single record. Implements the planner's Counter interface.
func (c *Client) CountByStatement(ctx context.Context, stmt statement.Statement) (int, error) {
	page, err := c.GetSitesByStatement(ctx, stmt.WithPagination(1, 0))
	if err != nil {
		return 0, err
	}
	return page.TotalResultSetSize, nil
}

// getByStatementOnce performs a single statement request without retry.
func (c *Client) getByStatementOnce(ctx context.Context, endpoint string, stmt statement.Statement) (*SitePage, error) {
	body, err := json.Marshal(statementRequest{Query: stmt.Query, Values: stmt.Values})
	if err != nil {
		return nil, fmt.Errorf("marshal statement: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	gamRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())

	if err != nil {
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		gamErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		gamRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		c.recordFault(ctx)
		return nil, &APIError{
			ErrorClass: ErrorClassNetwork,
			Message:    "request failed",
			Err:        err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		errClass := classifyStatus(resp.StatusCode)
		gamErrorsTotal.WithLabelValues(string(errClass)).Inc()
		gamRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("Ad Manager request error")

		if errClass != ErrorClassClient {
			c.recordFault(ctx)
		}
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Message:    resp.Status,
		}
	}

	gamRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	var page SitePage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, &APIError{
			ErrorClass: ErrorClassNetwork,
			Message:    "decode response",
			Err:        err,
		}
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Int("results", len(page.Results)).
		Int("total_result_set_size", page.TotalResultSetSize).
		Msg("Statement executed")

	return &page, nil
}

// recordFault reports one upstream fault to the quota guard, if configured.
func (c *Client) recordFault(ctx context.Context) {
	if c.config.Quota == nil {
		return
	}
	if err := c.config.Quota.RecordFault(ctx, c.config.NetworkCode); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to record quota fault")
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
