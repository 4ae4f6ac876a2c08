package state

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RemoteStateConfig configures the HTTP client for a remote problem-state
// service.
type RemoteStateConfig struct {
	// BaseURL is the service root, e.g. "http://localhost:8080".
	BaseURL string

	// Client is the HTTP client to use. Defaults to a client with a
	// 10-second timeout.
	Client *http.Client
}

// RemoteState queries and mutates the state held by a problem-state
// service over its HTTP API.
type RemoteState struct {
	baseURL string
	client  *http.Client
}

// NewRemoteState creates a client for the service at cfg.BaseURL.
func NewRemoteState(cfg RemoteStateConfig) *RemoteState {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RemoteState{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  client,
	}
}

func (s *RemoteState) ExistsPredicate(ctx context.Context, p Predicate) (bool, error) {
	q := url.Values{}
	q.Set("name", p.Name)
	for _, arg := range p.Args {
		q.Add("arg", arg)
	}
	var out struct {
		Exists bool `json:"exists"`
	}
	if err := s.do(ctx, http.MethodGet, "/v1/predicates/exists?"+q.Encode(), nil, &out); err != nil {
		return false, err
	}
	return out.Exists, nil
}

func (s *RemoteState) AddPredicate(ctx context.Context, p Predicate) error {
	return s.do(ctx, http.MethodPost, "/v1/predicates", p, nil)
}

func (s *RemoteState) RemovePredicate(ctx context.Context, p Predicate) error {
	return s.do(ctx, http.MethodPost, "/v1/predicates/remove", p, nil)
}

func (s *RemoteState) Function(ctx context.Context, ref Predicate) (float64, bool, error) {
	q := url.Values{}
	q.Set("name", ref.Name)
	for _, arg := range ref.Args {
		q.Add("arg", arg)
	}
	var out struct {
		Found bool    `json:"found"`
		Value float64 `json:"value"`
	}
	if err := s.do(ctx, http.MethodGet, "/v1/functions?"+q.Encode(), nil, &out); err != nil {
		return 0, false, err
	}
	return out.Value, out.Found, nil
}

func (s *RemoteState) UpdateFunction(ctx context.Context, f Function) error {
	return s.do(ctx, http.MethodPut, "/v1/functions", f, nil)
}

// AddObject registers an object in the remote universe.
func (s *RemoteState) AddObject(ctx context.Context, name, typ string) error {
	body := struct {
		Name string `json:"name"`
		Type string `json:"type,omitempty"`
	}{Name: name, Type: typ}
	return s.do(ctx, http.MethodPost, "/v1/objects", body, nil)
}

func (s *RemoteState) Objects(ctx context.Context) ([]string, error) {
	var out struct {
		Objects []string `json:"objects"`
	}
	if err := s.do(ctx, http.MethodGet, "/v1/objects", nil, &out); err != nil {
		return nil, err
	}
	return out.Objects, nil
}

// do performs one request against the service, encoding body as JSON when
// present and decoding the response into out when non-nil.
func (s *RemoteState) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("remotestate: encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("remotestate: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("remotestate: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("remotestate: %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("remotestate: decode response: %w", err)
		}
	}
	return nil
}

// Compile-time interface check.
var _ Store = (*RemoteState)(nil)
