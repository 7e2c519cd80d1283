package main

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	platformerrors "github.com/jmgilman/go/errors"

	"github.com/utkarsh5026/taskflow/resource"
	"github.com/utkarsh5026/taskflow/task"
)

// maxBody bounds how much of a response is read.
const maxBody = 4 << 20

// Page is the result of fetching one URL.
type Page struct {
	URL       string `json:"url"`
	Status    int    `json:"status"`
	Bytes     int64  `json:"bytes"`
	Title     string `json:"title,omitempty"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

// BlockedError means the server refused us; retrying will not help.
type BlockedError struct {
	URL    string
	Status int
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("blocked by %s (status %d)", e.URL, e.Status)
}

// session is the pooled resource: an HTTP client plus the last response it
// saw, kept for failure reports.
type session struct {
	client *http.Client

	mu         sync.Mutex
	lastURL    string
	lastStatus int
	lastBody   []byte
}

func (s *session) remember(url string, status int, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastURL, s.lastStatus, s.lastBody = url, status, body
}

// Inspect returns the last response for the failure bundle.
func (s *session) Inspect(context.Context) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastURL == "" {
		return nil, nil
	}
	return map[string][]byte{
		"response.txt":  fmt.Appendf(nil, "url: %s\nstatus: %d\n", s.lastURL, s.lastStatus),
		"response.html": s.lastBody,
	}, nil
}

var _ resource.Inspector = (*session)(nil)

// sessionFactory creates clients with a per-request timeout.
func sessionFactory(timeout time.Duration) resource.Factory[*session] {
	return resource.FactoryFunc(
		func(context.Context) (*session, error) {
			return &session{client: &http.Client{Timeout: timeout}}, nil
		},
		func(_ context.Context, s *session) error {
			s.client.CloseIdleConnections()
			return nil
		},
	)
}

// fetchPage GETs url. Server errors are retryable, 401/403/429 are treated
// as blocking, and other client errors are returned without being cached.
func fetchPage(ctx context.Context, s *session, url string) (task.Output[Page], error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return task.Output[Page]{}, platformerrors.Wrap(err, platformerrors.CodeInvalidInput, "build request")
	}
	req.Header.Set("User-Agent", "taskflow/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return task.Output[Page]{}, ctxErr
		}
		return task.Output[Page]{}, platformerrors.WrapWithContext(err, platformerrors.CodeNetwork,
			"request failed", map[string]interface{}{"url": url})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	s.remember(url, resp.StatusCode, body)
	if err != nil {
		return task.Output[Page]{}, platformerrors.WrapWithContext(err, platformerrors.CodeNetwork,
			"read body", map[string]interface{}{"url": url})
	}

	page := Page{
		URL:       url,
		Status:    resp.StatusCode,
		Bytes:     int64(len(body)),
		Title:     extractTitle(body),
		ElapsedMS: time.Since(start).Milliseconds(),
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusTooManyRequests:
		return task.Output[Page]{}, &BlockedError{URL: url, Status: resp.StatusCode}
	case resp.StatusCode >= 500:
		return task.Output[Page]{}, platformerrors.WithContext(
			platformerrors.Newf(platformerrors.CodeNetwork, "server error %d", resp.StatusCode),
			"url", url)
	case resp.StatusCode >= 400:
		return task.DontCache(page), nil
	}
	return task.Done(page), nil
}

// extractTitle returns the text of the first <title> element. Tags are
// matched on an ASCII-lowered copy, which keeps byte offsets valid for any
// encoding; invalid UTF-8 in the title is replaced.
func extractTitle(body []byte) string {
	lower := asciiLower(body)
	start := bytes.Index(lower, []byte("<title"))
	if start < 0 {
		return ""
	}
	open := bytes.IndexByte(lower[start:], '>')
	if open < 0 {
		return ""
	}
	start += open + 1
	end := bytes.Index(lower[start:], []byte("</title>"))
	if end < 0 {
		return ""
	}
	title := strings.ToValidUTF8(string(body[start:start+end]), "\uFFFD")
	return strings.Join(strings.Fields(html.UnescapeString(title)), " ")
}

func asciiLower(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return out
}
