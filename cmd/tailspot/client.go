package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tailspot/internal/api"
)

// pingTimeout bounds how long a command waits to learn whether a daemon is
// listening before falling back to the store.
const pingTimeout = 2 * time.Second

// apiClient speaks the daemon's JSON API over HTTP.
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(address string) *apiClient {
	base := strings.TrimSpace(address)
	if base == "" {
		base = "127.0.0.1:7445"
	}
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &apiClient{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

// Ping reports whether a daemon answers on the configured address.
func (a *apiClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return a.get(ctx, "/healthz", nil, nil)
}

func (a *apiClient) Status(ctx context.Context) (*api.StatusResponse, error) {
	var resp api.StatusResponse
	if err := a.get(ctx, "/api/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *apiClient) Queue(ctx context.Context, statuses []string) (*api.QueueResponse, error) {
	query := url.Values{}
	for _, status := range statuses {
		query.Add("status", status)
	}
	var resp api.QueueResponse
	if err := a.get(ctx, "/api/queue", query, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *apiClient) Runs(ctx context.Context, limit int) (*api.RunsResponse, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var resp api.RunsResponse
	if err := a.get(ctx, "/api/queue/runs", query, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *apiClient) Pause(ctx context.Context) (*api.PausedResponse, error) {
	var resp api.PausedResponse
	if err := a.post(ctx, "/api/queue/pause", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *apiClient) Resume(ctx context.Context) (*api.PausedResponse, error) {
	var resp api.PausedResponse
	if err := a.post(ctx, "/api/queue/resume", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *apiClient) SetConcurrency(ctx context.Context, limit int) (*api.ConcurrencyResponse, error) {
	var resp api.ConcurrencyResponse
	if err := a.post(ctx, "/api/queue/concurrency", api.ConcurrencyRequest{Concurrency: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *apiClient) Retry(ctx context.Context, registration string) (*api.CountResponse, error) {
	var resp api.CountResponse
	if err := a.post(ctx, "/api/queue/retry", api.RegistrationRequest{Registration: registration}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *apiClient) Rescan(ctx context.Context, registration string) (*api.CountResponse, error) {
	var resp api.CountResponse
	if err := a.post(ctx, "/api/queue/rescan", api.RegistrationRequest{Registration: registration}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *apiClient) Review(ctx context.Context, lowConfidence bool) (*api.ReviewResponse, error) {
	query := url.Values{}
	if lowConfidence {
		query.Set("low_confidence", "1")
	}
	var resp api.ReviewResponse
	if err := a.get(ctx, "/api/review", query, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *apiClient) Approve(ctx context.Context, id int64) (*api.CandidateView, error) {
	return a.decide(ctx, id, "approve")
}

func (a *apiClient) Reject(ctx context.Context, id int64) (*api.CandidateView, error) {
	return a.decide(ctx, id, "reject")
}

func (a *apiClient) decide(ctx context.Context, id int64, action string) (*api.CandidateView, error) {
	var resp api.CandidateView
	if err := a.post(ctx, fmt.Sprintf("/api/review/%d/%s", id, action), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeletePhoto removes a candidate. The bool reports whether the photo
// existed.
func (a *apiClient) DeletePhoto(ctx context.Context, id int64) (bool, error) {
	err := a.do(ctx, http.MethodDelete, fmt.Sprintf("/api/photos/%d", id), nil, nil, nil)
	if err != nil {
		var apiErr *daemonError
		if errors.As(err, &apiErr) && apiErr.status == http.StatusNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (a *apiClient) Library(ctx context.Context, registration string, year int, route string) (*api.LibraryResponse, error) {
	query := url.Values{}
	if registration != "" {
		query.Set("registration", registration)
	}
	if year > 0 {
		query.Set("year", strconv.Itoa(year))
	}
	if route != "" {
		query.Set("route", route)
	}
	var resp api.LibraryResponse
	if err := a.get(ctx, "/api/library", query, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *apiClient) Flights(ctx context.Context, registration string, year int) (*api.FlightsResponse, error) {
	query := url.Values{}
	if registration != "" {
		query.Set("registration", registration)
	}
	if year > 0 {
		query.Set("year", strconv.Itoa(year))
	}
	var resp api.FlightsResponse
	if err := a.get(ctx, "/api/flights", query, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *apiClient) get(ctx context.Context, path string, query url.Values, out any) error {
	return a.do(ctx, http.MethodGet, path, query, nil, out)
}

func (a *apiClient) post(ctx context.Context, path string, body, out any) error {
	return a.do(ctx, http.MethodPost, path, nil, body, out)
}

func (a *apiClient) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := a.base + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newDaemonError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// daemonError carries the HTTP status so callers can distinguish not-found
// from real failures.
type daemonError struct {
	status  int
	message string
}

func newDaemonError(resp *http.Response) *daemonError {
	e := &daemonError{status: resp.StatusCode}
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&payload); err == nil && payload.Error != "" {
		e.message = payload.Error
	}
	return e
}

func (e *daemonError) Error() string {
	if e.message != "" {
		return "daemon: " + e.message
	}
	return fmt.Sprintf("daemon: unexpected status %d", e.status)
}
