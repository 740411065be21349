// internal/platform/client_test.go
package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/plattops/xviol/internal/network"
)

const testToken = "platform-token"

func newTestClient(t *testing.T, serverURL string, timeout time.Duration) *Client {
	t.Helper()
	cfg := network.NewDefaultClientConfig()
	cfg.Logger = zap.NewNop()
	httpClient := network.NewClient(cfg)
	t.Cleanup(httpClient.CloseIdleConnections)
	return NewClient(serverURL, testToken, timeout, httpClient, zaptest.NewLogger(t))
}

func TestRepoPermissions(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/artifactory/api/storage/libs-release-local", r.URL.Path)
			assert.Equal(t, "permissions", r.URL.RawQuery)
			assert.Equal(t, "Bearer "+testToken, r.Header.Get("Authorization"))
			fmt.Fprint(w, `{
				"principals": {
					"users":  {"alice": ["m", "r"]},
					"groups": {"readers": ["r"], "libs-manage": ["m", "d", "w", "r"]}
				}
			}`)
		}))
		defer server.Close()

		client := newTestClient(t, server.URL, 0)
		info, err := client.RepoPermissions(context.Background(), "libs-release-local")
		require.NoError(t, err)
		require.NotNil(t, info)
		assert.Contains(t, info.Principals.Groups, "libs-manage")
		assert.Contains(t, info.Principals.Groups, "readers")
		assert.Contains(t, info.Principals.Users, "alice")
	})

	t.Run("Repo Missing", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"errors":[{"status":404,"message":"Unable to find item"}]}`, http.StatusNotFound)
		}))
		defer server.Close()

		client := newTestClient(t, server.URL, 0)
		info, err := client.RepoPermissions(context.Background(), "nope")
		assert.Nil(t, info)
		require.Error(t, err)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusNotFound, apiErr.Status)
		assert.Contains(t, err.Error(), `"nope"`)
	})

	t.Run("Request Timeout Applies", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-time.After(2 * time.Second):
			case <-r.Context().Done():
			}
		}))
		defer server.Close()

		client := newTestClient(t, server.URL, 50*time.Millisecond)
		start := time.Now()
		_, err := client.RepoPermissions(context.Background(), "slow-repo")
		require.Error(t, err)
		assert.Less(t, time.Since(start), time.Second, "per-request timeout should bound the call")
	})
}

func TestGroupMembers(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/access/api/v2/groups/libs-manage", r.URL.Path)
			assert.Equal(t, "Bearer "+testToken, r.Header.Get("Authorization"))
			fmt.Fprint(w, `{"name":"libs-manage","description":"owners","members":["alice","bob"]}`)
		}))
		defer server.Close()

		client := newTestClient(t, server.URL, 0)
		members, err := client.GroupMembers(context.Background(), "libs-manage")
		require.NoError(t, err)
		assert.Equal(t, []string{"alice", "bob"}, members)
	})

	t.Run("Empty Group", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"name":"ghost-manage","members":[]}`)
		}))
		defer server.Close()

		client := newTestClient(t, server.URL, 0)
		members, err := client.GroupMembers(context.Background(), "ghost-manage")
		require.NoError(t, err)
		assert.Empty(t, members)
	})

	t.Run("Group Missing", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "group not found", http.StatusNotFound)
		}))
		defer server.Close()

		client := newTestClient(t, server.URL, 0)
		members, err := client.GroupMembers(context.Background(), "absent")
		assert.Nil(t, members)
		require.Error(t, err)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusNotFound, apiErr.Status)
	})
}
