package cmd

import (
	"fmt"
	"net/url"

	"github.com/plattops/xviol/internal/config"
	"github.com/plattops/xviol/internal/network"
	"github.com/plattops/xviol/internal/observability"
	"github.com/plattops/xviol/internal/xray"
)

// newHTTPClient builds the shared outbound HTTP client from configuration.
// One client serves both the Xray and platform APIs so connections to the
// JFrog host are pooled.
func newHTTPClient(cfg *config.Config) (*network.Client, error) {
	netCfg := network.NewDefaultClientConfig()
	netCfg.IgnoreTLSErrors = cfg.HTTP.IgnoreTLSErrors
	netCfg.ForceHTTP2 = cfg.HTTP.ForceHTTP2
	netCfg.RequestTimeout = cfg.Server.Timeout
	netCfg.Logger = observability.GetLogger().Named("httpclient")

	if cfg.HTTP.Proxy != "" {
		proxyURL, err := url.Parse(cfg.HTTP.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid http.proxy URL %q: %w", cfg.HTTP.Proxy, err)
		}
		netCfg.ProxyURL = proxyURL
	}

	return network.NewClient(netCfg), nil
}

// newXrayClient builds an Xray API client on top of the shared HTTP client.
func newXrayClient(cfg *config.Config, httpClient *network.Client) *xray.Client {
	return xray.NewClient(cfg.Server.BaseURL(), cfg.Server.AccessToken, httpClient, observability.GetLogger())
}
