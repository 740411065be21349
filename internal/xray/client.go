package xray

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/plattops/xviol/internal/network"
)

// maxErrorBodyBytes caps how much of an error response body ends up in logs
// and error strings. Proxies and gateways love returning HTML pages.
const maxErrorBodyBytes = 512

// Client talks to the Xray REST API of a JFrog platform instance.
// It is safe for concurrent use.
type Client struct {
	baseURL    string
	token      string
	httpClient *network.Client
	logger     *zap.Logger
}

// NewClient builds an Xray client for the platform at baseURL. The token is
// sent as a Bearer credential on every request.
func NewClient(baseURL, token string, httpClient *network.Client, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
		logger:     logger.Named("xray"),
	}
}

// GetWatch fetches a single watch by name. A missing watch is reported as
// ErrWatchNotFound so callers can distinguish it from transport failures.
func (c *Client) GetWatch(ctx context.Context, name string) (*Watch, error) {
	endpoint := c.baseURL + "/xray/api/v2/watches/" + url.PathEscape(name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create watch request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch watch %q: %w", name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read watch response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("watch %q: %w", name, ErrWatchNotFound)
	default:
		return nil, &APIError{Status: resp.StatusCode, Endpoint: endpoint, Body: snippet(body)}
	}

	var watch Watch
	if err := json.Unmarshal(body, &watch); err != nil {
		return nil, fmt.Errorf("failed to decode watch %q: %w", name, err)
	}
	return &watch, nil
}

// ListWatches returns every watch defined on the instance.
func (c *Client) ListWatches(ctx context.Context) ([]Watch, error) {
	endpoint := c.baseURL + "/xray/api/v2/watches"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create watches request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list watches: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read watches response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Endpoint: endpoint, Body: snippet(body)}
	}

	var watches []Watch
	if err := json.Unmarshal(body, &watches); err != nil {
		return nil, fmt.Errorf("failed to decode watches: %w", err)
	}
	return watches, nil
}

// Ping checks that the Xray service is up and answering.
func (c *Client) Ping(ctx context.Context) error {
	endpoint := c.baseURL + "/xray/api/v1/system/ping"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create ping request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read ping response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &APIError{Status: resp.StatusCode, Endpoint: endpoint, Body: snippet(body)}
	}

	var pong pingResponse
	if err := json.Unmarshal(body, &pong); err == nil && pong.Status != "" {
		c.logger.Debug("Xray ping answered", zap.String("status", pong.Status))
	}
	return nil
}

// Violations fetches one page of violations for the request.
func (c *Client) Violations(ctx context.Context, req ViolationsRequest) (*ViolationsResponse, error) {
	endpoint := c.baseURL + "/xray/api/v1/violations"

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal violations request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create violations request: %w", err)
	}
	c.setHeaders(httpReq)

	startTime := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch violations: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read violations response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Endpoint: endpoint, Body: snippet(body)}
	}

	var page ViolationsResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("failed to decode violations response: %w", err)
	}

	c.logger.Debug("Fetched violations page",
		zap.String("watch", req.Filters.WatchName),
		zap.Int("offset", req.Pagination.Offset),
		zap.Int("count", len(page.Violations)),
		zap.Int("total", page.TotalViolations),
		zap.Duration("duration", time.Since(startTime)),
	)
	return &page, nil
}

// PageFunc consumes one fetched page of violations. Returning an error stops
// the walk and surfaces the error to the FetchAllViolations caller.
type PageFunc func(page int, violations []Violation) error

// FetchStats summarizes a completed pagination walk.
type FetchStats struct {
	Total   int
	Fetched int
	Pages   int
}

// FetchAllViolations walks every violations page for the watch and hands each
// page to fn in order.
//
// The first request is sent with offset 0 and its total_violations field
// determines the page count. Every later request sends the page NUMBER as the
// offset, matching how the endpoint actually interprets the field (0 and 1
// both mean the first page, so offset 1 is never requested).
//
// A failure on the first page aborts the walk. A failure on a later page is
// logged and the rows gathered so far are kept, unless the context itself was
// canceled. A page that comes back empty before the last page also stops the
// walk early.
func (c *Client) FetchAllViolations(ctx context.Context, watch string, pageSize int, includeDetails bool, fn PageFunc) (*FetchStats, error) {
	req := ViolationsRequest{
		Filters: Filters{
			WatchName:      watch,
			IncludeDetails: includeDetails,
		},
		Pagination: Pagination{Limit: pageSize, Offset: 0},
	}

	first, err := c.Violations(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch first violations page: %w", err)
	}

	stats := &FetchStats{Total: first.TotalViolations}
	if first.TotalViolations == 0 {
		c.logger.Info("No violations found for watch", zap.String("watch", watch))
		return stats, nil
	}

	totalPages := (first.TotalViolations + pageSize - 1) / pageSize
	c.logger.Info("Fetching violations",
		zap.String("watch", watch),
		zap.Int("total", first.TotalViolations),
		zap.Int("pages", totalPages),
	)

	if err := fn(1, first.Violations); err != nil {
		return stats, err
	}
	stats.Fetched += len(first.Violations)
	stats.Pages++

	for page := 2; page <= totalPages; page++ {
		req.Pagination.Offset = page

		resp, err := c.Violations(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			c.logger.Warn("Failed to fetch violations page, continuing with partial results",
				zap.Int("page", page),
				zap.Error(err),
			)
			return stats, nil
		}

		if len(resp.Violations) == 0 {
			c.logger.Warn("Violations page came back empty before pagination end",
				zap.Int("page", page),
				zap.Int("expected_pages", totalPages),
			)
			return stats, nil
		}

		if err := fn(page, resp.Violations); err != nil {
			return stats, err
		}
		stats.Fetched += len(resp.Violations)
		stats.Pages++
	}

	return stats, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
}

// snippet trims an error body down to something loggable.
func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBodyBytes {
		return s[:maxErrorBodyBytes] + "..."
	}
	return s
}
