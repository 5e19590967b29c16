package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	defaultDispatchTimeout = 15 * time.Second
	minDispatchTimeout     = 250 * time.Millisecond
	maxDispatchTimeout     = 60 * time.Second

	defaultMaxAttempts = 2
	maxMaxAttempts     = 4
)

// DispatcherConfig controls how commands are sent to the runtime service.
// Zero values fall back to the defaults; out-of-range values are clamped.
type DispatcherConfig struct {
	BaseURL     string
	Token       string
	Timeout     time.Duration
	MaxAttempts int
	Logger      *slog.Logger
}

// Dispatcher sends validated commands to a remote runtime endpoint over
// HTTP/JSON, retrying transient failures a bounded number of times.
type Dispatcher struct {
	baseURL     string
	token       string
	timeout     time.Duration
	maxAttempts int
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewDispatcher builds a dispatcher from cfg. BaseURL may be empty; the
// misconfiguration is surfaced on the first Dispatch call so a partially
// wired service still starts.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultDispatchTimeout
	}
	if timeout < minDispatchTimeout {
		timeout = minDispatchTimeout
	}
	if timeout > maxDispatchTimeout {
		timeout = maxDispatchTimeout
	}

	attempts := cfg.MaxAttempts
	if attempts == 0 {
		attempts = defaultMaxAttempts
	}
	if attempts < 1 {
		attempts = 1
	}
	if attempts > maxMaxAttempts {
		attempts = maxMaxAttempts
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		token:       cfg.Token,
		timeout:     timeout,
		maxAttempts: attempts,
		httpClient:  &http.Client{},
		logger:      logger,
	}
}

// Dispatch validates cmd, posts it to the runtime path for its type, and
// returns the accepted result envelope. Transport failures and HTTP
// 500/502/503/504 are retried up to the configured attempt count; every
// other failure returns immediately.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) (*Result, error) {
	if d.baseURL == "" {
		return nil, &ConfigurationError{Message: "runtime base URL is not configured"}
	}
	if err := ValidateCommand(cmd); err != nil {
		return nil, err
	}

	body, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("runtime: marshal command: %w", err)
	}

	url := d.baseURL + commandPath(cmd.Type)

	var lastErr *DispatchError
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		result, dispatchErr := d.attempt(ctx, url, body)
		if dispatchErr == nil {
			return result, nil
		}
		lastErr = dispatchErr
		if !dispatchErr.Retryable {
			return nil, dispatchErr
		}
		d.logger.Warn("runtime dispatch attempt failed",
			"type", string(cmd.Type),
			"requestId", cmd.Context.RequestID,
			"attempt", attempt,
			"maxAttempts", d.maxAttempts,
			"error", dispatchErr.Message)
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("runtime: dispatch canceled: %w", err)
		}
	}
	return nil, lastErr
}

// attempt performs a single request bounded by the per-attempt timeout.
func (d *Dispatcher) attempt(ctx context.Context, url string, body []byte) (*Result, *DispatchError) {
	attemptCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &DispatchError{Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	if d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, &DispatchError{Message: err.Error(), Retryable: true}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &DispatchError{Message: "reading response: " + err.Error(), Retryable: true}
	}

	if resp.StatusCode >= 400 {
		dispatchErr := &DispatchError{
			StatusCode: resp.StatusCode,
			Retryable:  retryableStatus(resp.StatusCode),
		}
		var errResp ErrorResult
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Message != "" {
			dispatchErr.Message = errResp.Message
			dispatchErr.Code = errResp.Code
		} else {
			dispatchErr.Message = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		}
		return nil, dispatchErr
	}

	result, err := ParseResult(respBody)
	if err != nil {
		return nil, &DispatchError{StatusCode: resp.StatusCode, Message: "invalid response envelope: " + err.Error()}
	}
	return &result, nil
}

func retryableStatus(status int) bool {
	switch status {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
