// Package console builds requests against the JBoss JMX management console.
package console

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/fgeck/jmx-restart/internal/models"
)

// HTTPClient sends requests to the console.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewHTTPClient returns a client that opens a fresh connection for every request.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:             http.ProxyFromEnvironment,
			DisableKeepAlives: true,
		},
	}
}

// ErrInvalidEndpoint is returned when the settings do not compose into a
// well-formed console URL.
var ErrInvalidEndpoint = errors.New("invalid management endpoint")

// BuildTriggerEndpoint resolves the restart-trigger URL.
func BuildTriggerEndpoint(s models.RestartSettings) (models.ManagementEndpoint, error) {
	return buildEndpoint(s, pathOrDefault(s.TriggerPath, models.DefaultTriggerPath))
}

// BuildInspectEndpoint resolves the liveness-inspect URL.
func BuildInspectEndpoint(s models.RestartSettings) (models.ManagementEndpoint, error) {
	return buildEndpoint(s, pathOrDefault(s.InspectPath, models.DefaultInspectPath))
}

// NewRequest creates a GET request for the endpoint, carrying its
// authorization header when one is set.
func NewRequest(ctx context.Context, ep models.ManagementEndpoint) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.URL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if ep.Authorization != "" {
		req.Header.Set("Authorization", ep.Authorization)
	}
	return req, nil
}

// BasicAuth returns the Authorization header value for the credentials.
func BasicAuth(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

func buildEndpoint(s models.RestartSettings, path string) (models.ManagementEndpoint, error) {
	host := strings.TrimSpace(s.Host)
	if host == "" || strings.ContainsAny(host, "/?#@ ") {
		return models.ManagementEndpoint{}, fmt.Errorf("%w: malformed host %q", ErrInvalidEndpoint, s.Host)
	}
	if strings.Contains(host, ":") && net.ParseIP(host) == nil {
		return models.ManagementEndpoint{}, fmt.Errorf("%w: host %q must not carry a port or scheme", ErrInvalidEndpoint, s.Host)
	}

	port, err := strconv.Atoi(strings.TrimSpace(s.Port))
	if err != nil || port < 1 || port > 65535 {
		return models.ManagementEndpoint{}, fmt.Errorf("%w: malformed port %q", ErrInvalidEndpoint, s.Port)
	}

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	raw := "http://" + net.JoinHostPort(host, strconv.Itoa(port)) + path
	u, err := url.Parse(raw)
	if err != nil {
		return models.ManagementEndpoint{}, fmt.Errorf("%w: %w", ErrInvalidEndpoint, err)
	}
	if u.Scheme == "" || u.Hostname() != host {
		return models.ManagementEndpoint{}, fmt.Errorf("%w: %s", ErrInvalidEndpoint, raw)
	}

	ep := models.ManagementEndpoint{URL: u}
	if s.Username != "" {
		ep.Authorization = BasicAuth(s.Username, s.Password)
	}
	return ep, nil
}

func pathOrDefault(path, def string) string {
	if strings.TrimSpace(path) == "" {
		return def
	}
	return path
}
