package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"spaceremit/internal/config"
)

const (
	requestTimeout = 30 * time.Second
	connectTimeout = 10 * time.Second
	maxRetries     = 3
	// rawBodyPreview bounds how much of a bad response is kept for diagnostics.
	rawBodyPreview = 500
)

// APIError describes a failed exchange with the SpaceRemit API.
type APIError struct {
	Message    string
	HTTPStatus int
	RawBody    string
}

func (e *APIError) Error() string {
	return e.Message
}

// Client sends signed JSON requests to the SpaceRemit API with retry on
// transient failures.
type Client struct {
	baseURL    string
	serverKey  string
	testMode   bool
	httpClient *http.Client
	backoff    func(retry int) time.Duration
	logger     zerolog.Logger
}

// NewClient creates an API client for the mode configured in cfg.
func NewClient(cfg *config.Config, logger zerolog.Logger) *Client {
	transport := &http.Transport{
		DialContext:         (&net.Dialer{Timeout: connectTimeout}).DialContext,
		TLSHandshakeTimeout: connectTimeout,
	}
	return &Client{
		baseURL:   cfg.APIBaseURL,
		serverKey: cfg.ServerKey(),
		testMode:  cfg.TestMode,
		httpClient: &http.Client{
			Timeout:   requestTimeout,
			Transport: transport,
		},
		backoff: func(retry int) time.Duration {
			return time.Duration(1<<retry) * time.Second
		},
		logger: logger.With().Str("component", "spaceremit_api").Logger(),
	}
}

// Send posts payload to the API and returns the decoded JSON body. The server
// key, a generated request id, and the test-mode flag are attached to every
// request. Transient transport errors and 5xx responses are retried up to
// three times with exponential backoff; 4xx and malformed bodies fail
// immediately.
func (c *Client) Send(ctx context.Context, payload map[string]interface{}) (map[string]interface{}, error) {
	if c.serverKey == "" {
		mode := "live"
		if c.testMode {
			mode = "test"
		}
		return nil, &APIError{Message: fmt.Sprintf("server key is not configured for %s mode", mode)}
	}

	body := make(map[string]interface{}, len(payload)+3)
	for k, v := range payload {
		body[k] = v
	}
	body["private_key"] = c.serverKey
	requestID := uuid.New().String()
	body["request_id"] = requestID
	if c.testMode {
		body["test_mode"] = true
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, &APIError{Message: "encode request: " + err.Error()}
	}

	var lastErr *APIError
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, &APIError{Message: "request cancelled: " + ctx.Err().Error()}
			case <-time.After(c.backoff(attempt - 1)):
			}
		}

		decoded, retryable, apiErr := c.do(ctx, requestID, raw)
		if apiErr == nil {
			c.logger.Debug().
				Str("request_id", requestID).
				Int("attempt", attempt).
				Msg("api request succeeded")
			return decoded, nil
		}

		c.logger.Warn().
			Str("request_id", requestID).
			Int("attempt", attempt).
			Int("http_status", apiErr.HTTPStatus).
			Bool("retryable", retryable).
			Str("error", apiErr.Message).
			Msg("api request failed")

		lastErr = apiErr
		if !retryable {
			break
		}
	}
	return nil, lastErr
}

// do performs a single attempt. The second return value reports whether the
// failure is worth retrying.
func (c *Client) do(ctx context.Context, requestID string, raw []byte) (map[string]interface{}, bool, *APIError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(raw))
	if err != nil {
		return nil, false, &APIError{Message: "build request: " + err.Error()}
	}

	mode := "live"
	modeFlag := "0"
	if c.testMode {
		mode = "test"
		modeFlag = "1"
	}
	req.Header.Set("authorization", c.serverKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "SpaceRemit-Go/1.0-"+mode)
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("X-Test-Mode", modeFlag)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, isTransient(err), &APIError{Message: "request failed: " + err.Error()}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, true, &APIError{Message: "read response: " + err.Error(), HTTPStatus: resp.StatusCode}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode >= 500, &APIError{
			Message:    fmt.Sprintf("HTTP error %d", resp.StatusCode),
			HTTPStatus: resp.StatusCode,
			RawBody:    preview(bodyBytes),
		}
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(bodyBytes, &decoded); err != nil {
		return nil, false, &APIError{
			Message:    "failed to decode response JSON: " + err.Error(),
			HTTPStatus: resp.StatusCode,
			RawBody:    preview(bodyBytes),
		}
	}
	return decoded, false, nil
}

// isTransient classifies transport errors that are worth retrying: timeouts,
// connect failures, and connections dropped mid-flight.
func isTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	return false
}

func preview(body []byte) string {
	if len(body) > rawBodyPreview {
		body = body[:rawBodyPreview]
	}
	return string(body)
}
