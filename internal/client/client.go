// Package client talks to a running appclock daemon over its HTTP API.
package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/actionsum/appclock/internal/models"
	"github.com/actionsum/appclock/internal/tracker"
	"github.com/actionsum/appclock/pkg/window"
)

// APIError is a non-2xx reply from the daemon.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon returned HTTP %d", e.Status)
	}
	return fmt.Sprintf("daemon returned HTTP %d: %s", e.Status, e.Message)
}

type errorBody struct {
	Error string `json:"error"`
}

// Client is a typed wrapper around the daemon API.
type Client struct {
	resty *resty.Client
}

// New creates a client for the daemon at baseURL, e.g. http://localhost:11000.
func New(baseURL string, timeout time.Duration) *Client {
	r := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(100*time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "appclock-cli")
	return &Client{resty: r}
}

func (c *Client) do(ctx context.Context, method, path string, query map[string]string, body, out any) (*resty.Response, error) {
	req := c.resty.R().SetContext(ctx).SetError(&errorBody{})
	if query != nil {
		req.SetQueryParams(query)
	}
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	if resp.IsError() {
		apiErr := &APIError{Status: resp.StatusCode()}
		if e, ok := resp.Error().(*errorBody); ok && e != nil {
			apiErr.Message = e.Error
		}
		return resp, apiErr
	}
	return resp, nil
}

func dateQuery(date string) map[string]string {
	if date == "" {
		return nil
	}
	return map[string]string{"date": date}
}

// StartTracking registers apps with the daemon.
func (c *Client) StartTracking(ctx context.Context, apps []string) (tracker.StartResult, error) {
	var out tracker.StartResult
	_, err := c.do(ctx, http.MethodPost, "/api/tracking/start", nil, map[string][]string{"apps": apps}, &out)
	return out, err
}

// StopTracking stops tracking on the daemon.
func (c *Client) StopTracking(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/api/tracking/stop", nil, nil, nil)
	return err
}

// ActiveSessions returns the open sessions.
func (c *Client) ActiveSessions(ctx context.Context) ([]models.SessionSnapshot, error) {
	var out []models.SessionSnapshot
	_, err := c.do(ctx, http.MethodGet, "/api/sessions/active", nil, nil, &out)
	return out, err
}

// Sessions returns every session of a day.
func (c *Client) Sessions(ctx context.Context, date string) ([]models.SessionSnapshot, error) {
	var out []models.SessionSnapshot
	_, err := c.do(ctx, http.MethodGet, "/api/sessions", dateQuery(date), nil, &out)
	return out, err
}

// Chart returns the chart rows of a day. Minute values decode as float64.
func (c *Client) Chart(ctx context.Context, date string) ([]models.ChartRow, error) {
	var out []models.ChartRow
	_, err := c.do(ctx, http.MethodGet, "/api/chart", dateQuery(date), nil, &out)
	return out, err
}

// Breakdown returns the hourly per-category breakdown of a day.
func (c *Client) Breakdown(ctx context.Context, date string) (models.Breakdown, error) {
	var out models.Breakdown
	_, err := c.do(ctx, http.MethodGet, "/api/breakdown", dateQuery(date), nil, &out)
	return out, err
}

// Report returns the daily report.
func (c *Client) Report(ctx context.Context, date string) (*models.Report, error) {
	var out models.Report
	if _, err := c.do(ctx, http.MethodGet, "/api/report", dateQuery(date), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ActiveWindow returns the focused window, or nil when none is known.
func (c *Client) ActiveWindow(ctx context.Context) (*window.WindowInfo, error) {
	var out window.WindowInfo
	resp, err := c.do(ctx, http.MethodGet, "/api/window", nil, nil, &out)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == http.StatusNoContent {
		return nil, nil
	}
	return &out, nil
}

// Totals returns today's tracked seconds per executable.
func (c *Client) Totals(ctx context.Context) ([]models.AppTotal, error) {
	var rows [][]any
	if _, err := c.do(ctx, http.MethodGet, "/api/totals", nil, nil, &rows); err != nil {
		return nil, err
	}

	out := make([]models.AppTotal, 0, len(rows))
	for _, row := range rows {
		if len(row) != 2 {
			return nil, fmt.Errorf("malformed totals row %v", row)
		}
		exe, ok := row[0].(string)
		secs, ok2 := row[1].(float64)
		if !ok || !ok2 {
			return nil, fmt.Errorf("malformed totals row %v", row)
		}
		out = append(out, models.AppTotal{ExeName: exe, TotalSeconds: int64(secs)})
	}
	return out, nil
}

// Status returns the daemon status.
func (c *Client) Status(ctx context.Context) (tracker.Status, error) {
	var out tracker.Status
	_, err := c.do(ctx, http.MethodGet, "/api/status", nil, nil, &out)
	return out, err
}

// Health reports whether the daemon answers.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
	return err
}
