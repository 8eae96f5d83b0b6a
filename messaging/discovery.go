// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/bureau-foundation/sms-bridge/lib/netutil"
	"github.com/bureau-foundation/sms-bridge/lib/ref"
)

// DiscoverHomeserver returns the client-server API base URL for a
// server name. It reads https://<server>/.well-known/matrix/client and
// returns m.homeserver.base_url. When the server publishes no document
// (HTTP 404), the server name itself is assumed to host the API and
// "https://<server>" is returned. Any other failure is an error: a
// present but broken document means the deployment is misconfigured.
func DiscoverHomeserver(ctx context.Context, httpClient *http.Client, server ref.ServerName) (string, error) {
	if server.IsZero() {
		return "", fmt.Errorf("messaging: server name is required for discovery")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	fallback := "https://" + server.String()
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, fallback+"/.well-known/matrix/client", nil)
	if err != nil {
		return "", fmt.Errorf("messaging: creating discovery request for %s: %w", server, err)
	}

	response, err := httpClient.Do(request)
	if err != nil {
		return "", fmt.Errorf("messaging: discovery for %s failed: %w", server, err)
	}
	defer response.Body.Close()

	if response.StatusCode == http.StatusNotFound {
		return fallback, nil
	}
	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("messaging: discovery for %s: unexpected HTTP %d: %s",
			server, response.StatusCode, netutil.ErrorBody(response.Body))
	}

	var document WellKnownClient
	if err := netutil.DecodeResponse(response.Body, &document); err != nil {
		return "", fmt.Errorf("messaging: discovery for %s: %w", server, err)
	}

	baseURL := strings.TrimRight(document.Homeserver.BaseURL, "/")
	if baseURL == "" {
		return "", fmt.Errorf("messaging: discovery for %s: m.homeserver.base_url is missing", server)
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", fmt.Errorf("messaging: discovery for %s: invalid m.homeserver.base_url %q", server, baseURL)
	}
	return baseURL, nil
}
