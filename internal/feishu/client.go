package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"
)

// DefaultBaseURL is the Feishu/Lark open-platform API root.
const DefaultBaseURL = "https://open.feishu.cn/open-apis"

// Retry tuning, carried forward from the teacher's HTTP client constants.
const (
	maxRetries     = 5
	baseBackoff    = 1 * time.Second
	maxBackoff     = 60 * time.Second
	backoffFactor  = 2.0
	jitterFraction = 0.25
)

// TokenSource returns the current best bearer token for outgoing requests.
type TokenSource interface {
	Token(ctx context.Context) (Token, error)
}

// Client is the shared HTTP plumbing for every Feishu Drive endpoint: it
// attaches auth, retries RemoteTransient failures with jittered exponential
// backoff, and decodes Feishu's {code, msg, data} response envelope.
type Client struct {
	baseURL   string
	http      *http.Client
	tokens    TokenSource
	logger    *slog.Logger
	userAgent string
}

// NewClient builds a Client. httpClient controls per-request timeouts; the
// caller picks a longer (or zero) timeout for upload/download transfers, as
// the teacher's newTransferGraphClient does.
func NewClient(baseURL string, httpClient *http.Client, tokens TokenSource, logger *slog.Logger, userAgent string) *Client {
	return &Client{baseURL: baseURL, http: httpClient, tokens: tokens, logger: logger, userAgent: userAgent}
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// do issues an HTTP request with JSON body (if non-nil), retries transient
// failures, and unmarshals the response's "data" field into out.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var bodyData []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyData = data
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return err
			}
		}

		// A fresh reader per attempt, so a retry resends the whole body.
		var bodyReader io.Reader
		if bodyData != nil {
			bodyReader = bytes.NewReader(bodyData)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return fmt.Errorf("building request: %w", err)
		}
		if bodyReader != nil {
			req.Header.Set("Content-Type", "application/json; charset=utf-8")
		}
		req.Header.Set("User-Agent", c.userAgent)

		tok, err := c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrAuthUnavailable, err)
		}
		req.Header.Set("Authorization", "Bearer "+tok.Value)

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = &APIError{Kind: KindRemoteTransient, Err: fmt.Errorf("%w: %v", ErrRemoteTransient, err)}
			c.logger.Warn("feishu request failed, will retry", slog.String("path", path), slog.Int("attempt", attempt), slog.Any("err", err))
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("reading response body: %w", readErr)
			continue
		}

		if apiErr := classify(resp.StatusCode, 0, string(respBody)); apiErr != nil {
			if apiErr.Kind == KindRemoteTransient && attempt < maxRetries {
				lastErr = apiErr
				continue
			}
			return apiErr
		}

		var env envelope
		if err := json.Unmarshal(respBody, &env); err != nil {
			return fmt.Errorf("decoding feishu envelope: %w", err)
		}
		if env.Code != 0 {
			apiErr := classify(resp.StatusCode, env.Code, env.Msg)
			if apiErr == nil {
				apiErr = &APIError{Kind: KindRemotePermanent, StatusCode: resp.StatusCode, Code: env.Code, Message: env.Msg, Err: ErrRemotePermanent}
			}
			if apiErr.Kind == KindRemoteTransient && attempt < maxRetries {
				lastErr = apiErr
				continue
			}
			return apiErr
		}

		if out != nil && len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, out); err != nil {
				return fmt.Errorf("decoding feishu data payload: %w", err)
			}
		}
		return nil
	}

	return lastErr
}

// sleepBackoff waits base*factor^(attempt-1) capped at maxBackoff, jittered
// by ±jitterFraction, or returns ctx.Err() if cancelled first.
func sleepBackoff(ctx context.Context, attempt int) error {
	d := float64(baseBackoff)
	for i := 1; i < attempt; i++ {
		d *= backoffFactor
	}
	capped := time.Duration(d)
	if capped > maxBackoff {
		capped = maxBackoff
	}

	jitter := (rand.Float64()*2 - 1) * jitterFraction * float64(capped)
	wait := capped + time.Duration(jitter)
	if wait < 0 {
		wait = 0
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
