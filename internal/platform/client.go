package platform

import (
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

const maxErrorBodyBytes = 512

// APIError carries the status and body of a non-2xx platform response.
type APIError struct {
	Status   int
	Endpoint string
	Body     string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("request to %s failed with status %d", e.Endpoint, e.Status)
	}
	return fmt.Sprintf("request to %s failed with status %d: %s", e.Endpoint, e.Status, e.Body)
}

// PermissionsInfo is the storage API's view of who can touch a repository.
type PermissionsInfo struct {
	Principals Principals `json:"principals"`
}

// Principals maps user and group names to their effective permission flags.
type Principals struct {
	Users  map[string][]string `json:"users"`
	Groups map[string][]string `json:"groups"`
}

// groupResponse is the Access API group resource. Only members are consumed.
type groupResponse struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

// Client talks to the Artifactory storage API and the Access API of a JFrog
// platform instance. It is safe for concurrent use.
type Client struct {
	baseURL    string
	token      string
	timeout    time.Duration
	httpClient *network.Client
	logger     *zap.Logger
}

// NewClient builds a platform client. A non-zero timeout bounds every
// individual lookup; the enrichment loop makes many small requests and one
// hung call should not stall the rest.
func NewClient(baseURL, token string, timeout time.Duration, httpClient *network.Client, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		timeout:    timeout,
		httpClient: httpClient,
		logger:     logger.Named("platform"),
	}
}

// RepoPermissions fetches the effective permission principals of a repository.
func (c *Client) RepoPermissions(ctx context.Context, repo string) (*PermissionsInfo, error) {
	endpoint := c.baseURL + "/artifactory/api/storage/" + url.PathEscape(repo) + "?permissions"

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch permissions for repo %q: %w", repo, err)
	}

	var info PermissionsInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to decode permissions for repo %q: %w", repo, err)
	}
	return &info, nil
}

// GroupMembers fetches the member list of an Access group.
func (c *Client) GroupMembers(ctx context.Context, group string) ([]string, error) {
	endpoint := c.baseURL + "/access/api/v2/groups/" + url.PathEscape(group)

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch group %q: %w", group, err)
	}

	var resp groupResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode group %q: %w", group, err)
	}
	return resp.Members, nil
}

// get performs a bounded, authenticated GET and returns the response body.
func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Endpoint: endpoint, Body: snippet(body)}
	}
	return body, nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBodyBytes {
		return s[:maxErrorBodyBytes] + "..."
	}
	return s
}
