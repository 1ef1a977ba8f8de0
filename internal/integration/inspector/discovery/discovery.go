// Package discovery lists the debuggable targets of a remote debugging endpoint.
package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Target describes one debuggable target (usually a browser tab).
type Target struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	Description          string `json:"description,omitempty"`
	DevtoolsFrontendURL  string `json:"devtoolsFrontendUrl,omitempty"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// Usable reports whether the target is a page that accepts a debugger connection.
// A target already attached to another client has no WebSocket URL.
func (t Target) Usable() bool {
	return t.Type == "page" && t.WebSocketDebuggerURL != ""
}

// ErrNoTarget is returned when no usable target matches.
var ErrNoTarget = errors.New("no debuggable page target")

// StatusError is returned when the endpoint answers with a non-success status.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("discovery %s: unexpected status %s", e.URL, e.Status)
}

// Client queries the /json listing of a remote debugging endpoint.
type Client struct {
	host string
	port int
	http *http.Client
}

// NewClient creates a discovery client for host:port. A nil httpClient uses a
// client with a short timeout.
func NewClient(host string, port int, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{host: host, port: port, http: httpClient}
}

// Endpoint returns the listing URL.
func (c *Client) Endpoint() string {
	return "http://" + net.JoinHostPort(c.host, strconv.Itoa(c.port)) + "/json"
}

// Targets fetches every target the endpoint reports.
func (c *Client) Targets(ctx context.Context) ([]Target, error) {
	endpoint := c.Endpoint()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create discovery request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("discovery %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: endpoint, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	var targets []Target
	if err := json.NewDecoder(resp.Body).Decode(&targets); err != nil {
		return nil, fmt.Errorf("decode discovery response: %w", err)
	}
	return targets, nil
}

// Pages fetches the targets and keeps only usable pages.
func (c *Client) Pages(ctx context.Context) ([]Target, error) {
	targets, err := c.Targets(ctx)
	if err != nil {
		return nil, err
	}
	return Usable(targets), nil
}

// Usable filters targets down to usable pages, keeping their order.
func Usable(targets []Target) []Target {
	out := make([]Target, 0, len(targets))
	for _, t := range targets {
		if t.Usable() {
			out = append(out, t)
		}
	}
	return out
}

// Selector chooses one target among usable pages.
type Selector func(pages []Target) (Target, error)

// SelectFirst picks the first usable page.
func SelectFirst(pages []Target) (Target, error) {
	if len(pages) == 0 {
		return Target{}, ErrNoTarget
	}
	return pages[0], nil
}

// SelectMatching returns a selector that picks the first page whose URL or
// title contains pattern. An empty pattern behaves like SelectFirst.
func SelectMatching(pattern string) Selector {
	if pattern == "" {
		return SelectFirst
	}
	return func(pages []Target) (Target, error) {
		for _, p := range pages {
			if strings.Contains(p.URL, pattern) || strings.Contains(p.Title, pattern) {
				return p, nil
			}
		}
		return Target{}, fmt.Errorf("%w matching %q", ErrNoTarget, pattern)
	}
}
