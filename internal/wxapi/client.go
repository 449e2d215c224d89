// Package wxapi is a client for the fire weather API that serves stations,
// HFI results and weather indeterminates.
package wxapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"

	"github.com/lox/firecast/internal/htmlutil"
	"github.com/lox/firecast/internal/httputil"
	"github.com/lox/firecast/internal/metrics"
	"github.com/lox/firecast/internal/store"
)

// Recorder keeps an audit trail of API calls. *store.Store implements it.
type Recorder interface {
	StartFetchRun(endpoint string) (*store.FetchRun, error)
	CompleteFetchRun(run *store.FetchRun) error
	StoreFetchPayload(runID int64, endpoint string, payload []byte) (int64, error)
}

type Config struct {
	BaseURL string
	// Token is forwarded as a bearer token. Authentication itself happens
	// at the identity provider.
	Token           string
	Timeout         time.Duration
	MaxRetryElapsed time.Duration
	ArchivePayloads bool
}

// StatusError is returned for non-success responses from the API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	maxElapsed time.Duration
	archive    bool
	recorder   Recorder
}

// NewClient creates a client. recorder may be nil.
func NewClient(cfg Config, recorder Recorder) *Client {
	maxElapsed := cfg.MaxRetryElapsed
	if maxElapsed <= 0 {
		maxElapsed = 2 * time.Minute
	}
	return &Client{
		httpClient: httputil.NewClientWithTimeout(cfg.Timeout),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		maxElapsed: maxElapsed,
		archive:    cfg.ArchivePayloads,
		recorder:   recorder,
	}
}

func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

type response struct {
	status int
	header http.Header
	body   []byte
}

// call performs a request with retries and records it. endpoint is a stable
// label for metrics and auditing; decode parses the body and returns how many
// records it held.
func (c *Client) call(ctx context.Context, method, endpoint, path string, in any, decode func(response) (int, error)) error {
	var reqBody []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", endpoint, err)
		}
		reqBody = b
	}

	run := c.startRun(endpoint)
	started := time.Now()

	var resp response
	attempts := 0
	operation := func() error {
		attempts++
		var body io.Reader
		if reqBody != nil {
			body = bytes.NewReader(reqBody)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "firecast/1.0")
		if reqBody != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		r, err := c.httpClient.Do(req)
		if err != nil {
			metrics.UpstreamCallsTotal.WithLabelValues(endpoint, "error").Inc()
			return backoff.Permanent(fmt.Errorf("%s %s: %w", method, endpoint, err))
		}
		defer r.Body.Close()
		metrics.UpstreamCallsTotal.WithLabelValues(endpoint, strconv.Itoa(r.StatusCode)).Inc()

		b, err := io.ReadAll(r.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		resp = response{status: r.StatusCode, header: r.Header, body: b}

		if r.StatusCode >= 200 && r.StatusCode < 300 {
			return nil
		}
		statusErr := &StatusError{StatusCode: r.StatusCode, Body: errorBody(r.Header, b)}
		if retryable(r.StatusCode) {
			return statusErr
		}
		return backoff.Permanent(statusErr)
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.maxElapsed
	err := backoff.Retry(operation, backoff.WithContext(bo, ctx))
	metrics.UpstreamLatency.WithLabelValues(endpoint).Observe(time.Since(started).Seconds())

	records := 0
	if err == nil {
		records, err = decode(resp)
		if err != nil {
			err = fmt.Errorf("decode %s: %w", endpoint, err)
		}
	}
	c.completeRun(run, resp, attempts, records, err)
	return err
}

func (c *Client) startRun(endpoint string) *store.FetchRun {
	if c.recorder == nil {
		return nil
	}
	run, err := c.recorder.StartFetchRun(endpoint)
	if err != nil {
		log.Printf("wxapi: start fetch run: %v", err)
		return nil
	}
	return run
}

func (c *Client) completeRun(run *store.FetchRun, resp response, attempts, records int, callErr error) {
	if run == nil {
		return
	}
	if resp.status != 0 {
		run.HTTPStatus.Int64, run.HTTPStatus.Valid = int64(resp.status), true
		run.ResponseSizeBytes.Int64, run.ResponseSizeBytes.Valid = int64(len(resp.body)), true
	}
	run.Attempts.Int64, run.Attempts.Valid = int64(attempts), true
	run.Success = callErr == nil
	if callErr != nil {
		run.ErrorMessage.String, run.ErrorMessage.Valid = callErr.Error(), true
	} else {
		run.Records.Int64, run.Records.Valid = int64(records), true
	}
	if err := c.recorder.CompleteFetchRun(run); err != nil {
		log.Printf("wxapi: complete fetch run: %v", err)
	}

	if c.archive && callErr == nil && isJSON(resp.header) {
		if _, err := c.recorder.StoreFetchPayload(run.ID, run.Endpoint, resp.body); err != nil {
			log.Printf("wxapi: archive payload: %v", err)
		}
	}
}

func (c *Client) getJSON(ctx context.Context, endpoint, path string, out any, count func() int) error {
	return c.call(ctx, http.MethodGet, endpoint, path, nil, jsonDecoder(out, count))
}

func (c *Client) postJSON(ctx context.Context, endpoint, path string, in, out any, count func() int) error {
	return c.call(ctx, http.MethodPost, endpoint, path, in, jsonDecoder(out, count))
}

func jsonDecoder(out any, count func() int) func(response) (int, error) {
	return func(resp response) (int, error) {
		if err := json.Unmarshal(resp.body, out); err != nil {
			return 0, err
		}
		if count == nil {
			return 1, nil
		}
		return count(), nil
	}
}

func isJSON(h http.Header) bool {
	return h != nil && strings.Contains(h.Get("Content-Type"), "json")
}

// errorBody renders an error response for logs, flattening the HTML pages
// gateways return.
func errorBody(h http.Header, b []byte) string {
	body := string(b)
	if strings.Contains(h.Get("Content-Type"), "html") {
		body = htmlutil.OneLine(body)
	}
	return truncate(body, 200)
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

// IsStatus reports whether err is a StatusError with the given status code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
