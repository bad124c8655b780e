// Package docker provides read-only container state queries for the health
// engine. The media stack's containers are observed, never restarted here;
// container recovery policy belongs to the operator.
package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// apiVersion is the minimum Docker API version this client targets.
const apiVersion = "v1.41"

// Container is a summary of one container as reported by the daemon.
type Container struct {
	ID      string
	Name    string
	Image   string
	State   string // "running", "exited", "paused", etc.
	Status  string // human-readable, e.g. "Exited (1) 2 hours ago"
	Created time.Time
}

// Lister lists containers known to the container runtime.
type Lister interface {
	ListContainers(ctx context.Context, all bool) ([]Container, error)
}

// Compile-time interface check.
var _ Lister = (*Client)(nil)

// Client talks to the Docker daemon over its Unix socket using the HTTP API.
type Client struct {
	client  *http.Client
	baseURL string
}

// NewClient returns a Client connected to the daemon at socketPath.
func NewClient(socketPath string) (*Client, error) {
	if socketPath == "" {
		return nil, fmt.Errorf("docker: socket path is required")
	}

	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(ctx, "unix", socketPath)
		},
	}

	return &Client{
		client: &http.Client{Transport: transport, Timeout: 30 * time.Second},
		// The host is ignored when dialing a Unix socket.
		baseURL: fmt.Sprintf("http://localhost/%s", apiVersion),
	}, nil
}

// dockerContainer is the JSON shape returned by /containers/json.
type dockerContainer struct {
	ID      string   `json:"Id"`
	Names   []string `json:"Names"`
	Image   string   `json:"Image"`
	State   string   `json:"State"`
	Status  string   `json:"Status"`
	Created int64    `json:"Created"`
}

// ListContainers returns the daemon's container list. If all is false, only
// running containers are returned.
func (c *Client) ListContainers(ctx context.Context, all bool) ([]Container, error) {
	allParam := "false"
	if all {
		allParam = "true"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/containers/json?all="+allParam, nil)
	if err != nil {
		return nil, fmt.Errorf("docker: build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("docker: list containers: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("docker: read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("docker: %s", apiErr.Message)
		}
		return nil, fmt.Errorf("docker: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var raw []dockerContainer
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("docker: decode container list: %w", err)
	}

	containers := make([]Container, 0, len(raw))
	for _, ct := range raw {
		name := ""
		if len(ct.Names) > 0 {
			name = strings.TrimPrefix(ct.Names[0], "/")
		}
		containers = append(containers, Container{
			ID:      ct.ID,
			Name:    name,
			Image:   ct.Image,
			State:   ct.State,
			Status:  ct.Status,
			Created: time.Unix(ct.Created, 0),
		})
	}
	return containers, nil
}

// ListExited returns the names of containers in the "exited" state.
func ListExited(ctx context.Context, lister Lister) ([]string, error) {
	containers, err := lister.ListContainers(ctx, true)
	if err != nil {
		return nil, err
	}
	var exited []string
	for _, ct := range containers {
		if ct.State == "exited" {
			exited = append(exited, ct.Name)
		}
	}
	return exited, nil
}
