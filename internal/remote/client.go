package remote

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

	appLog "timetrack/internal/log"
	"timetrack/internal/model"
)

const (
	// DefaultBaseURL is where the development events server listens.
	DefaultBaseURL = "http://localhost:3001"

	// RequestIDHeader carries the operation id from the client to the server.
	RequestIDHeader = "X-Request-Id"

	defaultTimeout = 15 * time.Second
	eventsPath     = "/events"
)

// StatusError is returned when the remote store answers with a non-2xx
// status.
type StatusError struct {
	Op         string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %s", e.Op, e.Status)
}

// IsNotFound reports whether err is a 404 from the remote store.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

type requestIDKey struct{}

// WithRequestID attaches an operation id that is sent as X-Request-Id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Client talks to the remote events collection:
//
//	GET    /events       list
//	POST   /events       create (server assigns id)
//	PUT    /events/{id}  replace
//	DELETE /events/{id}  delete
type Client struct {
	client  *http.Client
	baseURL string
}

// NewClient creates a Client for baseURL. An empty baseURL falls back to
// DefaultBaseURL; a non-positive timeout uses 15s.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// NewClientWithHTTP lets callers supply their own http.Client, e.g. one
// from httptest.
func NewClientWithHTTP(baseURL string, hc *http.Client) *Client {
	c := NewClient(baseURL, 0)
	if hc != nil {
		c.client = hc
	}
	return c
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// List fetches the full collection.
func (c *Client) List(ctx context.Context) ([]model.Event, error) {
	var out []model.Event
	if err := c.do(ctx, "list events", http.MethodGet, eventsPath, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.Event{}
	}
	return out, nil
}

// Create posts a draft and returns the stored event with its assigned id.
func (c *Client) Create(ctx context.Context, d model.Draft) (model.Event, error) {
	var out model.Event
	if err := c.do(ctx, "create event", http.MethodPost, eventsPath, d, &out); err != nil {
		return model.Event{}, err
	}
	return out, nil
}

// Replace overwrites the event stored under e.ID.
func (c *Client) Replace(ctx context.Context, e model.Event) (model.Event, error) {
	var out model.Event
	if err := c.do(ctx, "replace event", http.MethodPut, eventPath(e.ID), e, &out); err != nil {
		return model.Event{}, err
	}
	return out, nil
}

// Delete removes the event. Success is signalled by the status code only;
// the response body is ignored.
func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, "delete event", http.MethodDelete, eventPath(id), nil, nil)
}

func eventPath(id int64) string {
	return eventsPath + "/" + url.PathEscape(strconv.FormatInt(id, 10))
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}
	reqID := requestIDFrom(ctx)
	if reqID != "" {
		req.Header.Set(RequestIDHeader, reqID)
	}

	appLog.Debug("remote request", "op", op, "method", method, "path", path, "request_id", reqID)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}
