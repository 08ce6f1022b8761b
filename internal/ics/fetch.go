package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	appLog "timetrack/internal/log"
)

const maxFeedSize = 16 << 20

// Reader loads ICS payloads for import, either from a local file or from an
// http(s) subscription URL.
type Reader struct {
	client *http.Client
}

// NewReader creates a Reader. A nil client gets a 15s timeout.
func NewReader(client *http.Client) *Reader {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Reader{client: client}
}

// Read returns the raw ICS body found at src.
func (r *Reader) Read(ctx context.Context, src string) ([]byte, error) {
	if src == "" {
		return nil, errors.New("ics source is empty")
	}
	if isURL(src) {
		return r.fetch(ctx, src)
	}

	body, err := os.ReadFile(src)
	if err != nil {
		return nil, fmt.Errorf("read ics file: %w", err)
	}
	appLog.Debug("ics file read", "path", src, "bytes", len(body))
	return body, nil
}

func (r *Reader) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/calendar")

	appLog.Info("ics fetch start", "url", redactURL(url))

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch ics: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch ics: unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return nil, fmt.Errorf("fetch ics: %w", err)
	}

	appLog.Info("ics fetch success", "url", redactURL(url), "bytes", len(body))
	return body, nil
}

func isURL(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

// redactURL hides the path and query of a subscription URL, which often
// embed private tokens.
//
//	https://example.com/private/abc.ics?token=x -> https://example.com/...(redacted)
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := strings.Index(u, "://")
	if i == -1 {
		return "ics://...(redacted)"
	}
	host := u[i+3:]
	if j := strings.IndexByte(host, '/'); j != -1 {
		host = host[:j]
	}
	return u[:i+3] + host + redactedSuffix
}
