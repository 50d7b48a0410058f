// Package sdk provides the Tradernet SDK client implementation.
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL is the public Tradernet endpoint
	DefaultBaseURL = "https://freedom24.com"

	rateLimitDelay   = 1500 * time.Millisecond // 1.5 seconds between requests
	requestQueueSize = 100
)

var (
	// ErrClientClosed is returned for requests made after Close
	ErrClientClosed = errors.New("client is closed")
	// ErrQueueFull is returned when the rate limiting queue cannot accept more requests
	ErrQueueFull = errors.New("request queue is full")
	// ErrInvalidKeypair is returned when credentials are missing
	ErrInvalidKeypair = errors.New("keypair is not valid")
)

// APIError is an error message reported inside a successful HTTP response
type APIError struct {
	Cmd     string
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: API error %d: %s", e.Cmd, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: API error: %s", e.Cmd, e.Message)
}

// requestJob represents a job in the rate limiting queue
type requestJob struct {
	ctx      context.Context
	cmd      string
	params   interface{}
	resultCh chan requestResult
}

// requestResult represents the result of a request
type requestResult struct {
	data map[string]interface{}
	err  error
}

// Client represents the Tradernet SDK client.
// Requests are serialised through a single worker with a fixed delay between them.
type Client struct {
	publicKey    string
	privateKey   string
	baseURL      string
	rateLimit    time.Duration
	httpClient   *http.Client
	log          zerolog.Logger
	requestQueue chan requestJob
	stopChan     chan struct{}
	workerDone   chan struct{}
	once         sync.Once
}

// NewClient creates a new Tradernet SDK client. An empty baseURL selects DefaultBaseURL.
func NewClient(publicKey, privateKey, baseURL string, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		publicKey:    publicKey,
		privateKey:   privateKey,
		baseURL:      strings.TrimRight(baseURL, "/"),
		rateLimit:    rateLimitDelay,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		log:          log.With().Str("component", "tradernet-sdk").Logger(),
		requestQueue: make(chan requestJob, requestQueueSize),
		stopChan:     make(chan struct{}),
		workerDone:   make(chan struct{}),
	}

	go c.worker()

	return c
}

// authorizedRequest queues a signed request and waits for its result
func (c *Client) authorizedRequest(ctx context.Context, cmd string, params interface{}) (map[string]interface{}, error) {
	resultCh := make(chan requestResult, 1)

	job := requestJob{
		ctx:      ctx,
		cmd:      cmd,
		params:   params,
		resultCh: resultCh,
	}

	select {
	case <-c.stopChan:
		return nil, ErrClientClosed
	default:
	}

	select {
	case c.requestQueue <- job:
	case <-c.stopChan:
		return nil, ErrClientClosed
	default:
		return nil, ErrQueueFull
	}

	select {
	case result := <-resultCh:
		return result.data, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.workerDone:
		select {
		case result := <-resultCh:
			return result.data, result.err
		default:
			return nil, ErrClientClosed
		}
	}
}

// worker processes requests from the queue sequentially with rate limiting
func (c *Client) worker() {
	defer close(c.workerDone)

	var lastRequestTime time.Time
	firstRequest := true

	processJob := func(job requestJob) {
		if err := job.ctx.Err(); err != nil {
			job.resultCh <- requestResult{err: err}
			return
		}

		// Wait for rate limit delay (except before first request)
		if !firstRequest {
			elapsed := time.Since(lastRequestTime)
			if elapsed < c.rateLimit {
				time.Sleep(c.rateLimit - elapsed)
			}
		}
		firstRequest = false

		var result requestResult
		result.data, result.err = c.authorizedRequestInternal(job.ctx, job.cmd, job.params)

		lastRequestTime = time.Now()
		job.resultCh <- result
	}

	for {
		select {
		case <-c.stopChan:
			// Drain remaining jobs from queue before exiting
			for {
				select {
				case job, ok := <-c.requestQueue:
					if !ok {
						return
					}
					processJob(job)
				default:
					return
				}
			}
		case job, ok := <-c.requestQueue:
			if !ok {
				return
			}
			processJob(job)
		}
	}
}

// Close gracefully shuts down the rate limiting worker
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.stopChan)
		<-c.workerDone
	})
}

// authorizedRequestInternal makes an authenticated request without rate limiting
func (c *Client) authorizedRequestInternal(ctx context.Context, cmd string, params interface{}) (map[string]interface{}, error) {
	if c.publicKey == "" || c.privateKey == "" {
		return nil, ErrInvalidKeypair
	}

	payload, err := stringify(params)
	if err != nil {
		return nil, fmt.Errorf("failed to stringify params: %w", err)
	}

	// Timestamp in seconds; the signature covers payload followed by timestamp
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	signature := sign(c.privateKey, payload+timestamp)

	requestURL := fmt.Sprintf("%s/api/%s", c.baseURL, cmd)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader([]byte(payload)))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; TradernetSDK/2.0)")
	req.Header.Set("X-NtApi-PublicKey", c.publicKey)
	req.Header.Set("X-NtApi-Timestamp", timestamp)
	req.Header.Set("X-NtApi-Sig", signature)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.log.Error().
			Int("status_code", resp.StatusCode).
			Str("status", resp.Status).
			Str("response_body", truncate(string(body), 500)).
			Str("url", requestURL).
			Msg("API returned non-200 status")
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, resp.Status)
	}

	var rawResult interface{}
	if err := json.Unmarshal(body, &rawResult); err != nil {
		bodyStr := truncate(string(body), 500)
		c.log.Error().
			Err(err).
			Str("response_body", bodyStr).
			Str("url", requestURL).
			Msg("Failed to parse JSON response")
		return nil, fmt.Errorf("failed to parse response: %w (body: %s)", err, bodyStr)
	}

	// Arrays and scalars are wrapped so callers always see an object
	var result map[string]interface{}
	switch v := rawResult.(type) {
	case map[string]interface{}:
		result = v
	default:
		result = map[string]interface{}{"result": v}
	}

	if errMsg, ok := result["errMsg"].(string); ok && errMsg != "" {
		code := 0
		if f, ok := result["code"].(float64); ok {
			code = int(f)
		}
		c.log.Warn().Str("err_msg", errMsg).Str("cmd", cmd).Msg("API returned error message")
		return result, &APIError{Cmd: cmd, Code: code, Message: errMsg}
	}

	return result, nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
