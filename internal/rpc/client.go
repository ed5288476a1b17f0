// Package rpc implements a JSON-RPC 2.0 client over HTTP that retries transient failures.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/yy-analytics/yyptp-apr-calculation/internal/metrics"
)

// Options configures a Client.
type Options struct {
	// Endpoint is the JSON-RPC URL.
	Endpoint string

	// RetryDelay is the fixed wait between attempts after a transient failure.
	RetryDelay time.Duration

	// MaxAttempts caps the attempts of one request. Zero or less retries forever.
	MaxAttempts int

	// RequestTimeout bounds a single attempt; an attempt that times out is transient.
	RequestTimeout time.Duration

	Logger  *logrus.Logger
	Metrics *metrics.Collector
}

// Client sends JSON-RPC requests to a single endpoint.
type Client struct {
	endpoint string
	http     *retryablehttp.Client
	logger   *logrus.Logger
	metrics  *metrics.Collector
}

type request struct {
	ID      int           `json:"id"`
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type response struct {
	ID      json.RawMessage `json:"id"`
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *RemoteError    `json:"error"`
}

type attemptsKey struct{}

type callInfo struct {
	method   string
	attempts int32
}

// NewClient creates a Client from opts.
func NewClient(opts Options) *Client {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	c := &Client{
		endpoint: opts.Endpoint,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Timeout = opts.RequestTimeout
	retryClient.RetryMax = opts.MaxAttempts - 1
	if opts.MaxAttempts <= 0 {
		retryClient.RetryMax = math.MaxInt32
	}
	retryClient.RetryWaitMin = opts.RetryDelay
	retryClient.RetryWaitMax = opts.RetryDelay
	retryClient.Backoff = fixedBackoff
	retryClient.CheckRetry = checkRetry
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.RequestLogHook = c.logAttempt
	retryClient.Logger = nil
	c.http = retryClient

	return c
}

// Send issues method with params and returns the raw result.
//
// Transient failures are retried with a fixed delay until the attempt ceiling is hit. Any other
// failure returns at once, is logged exactly once and carries KindOther.
func (c *Client) Send(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	if params == nil {
		params = []interface{}{}
	}
	body, err := json.Marshal(request{ID: 1, JSONRPC: "2.0", Method: method, Params: params})
	if err != nil {
		return nil, c.fail(method, KindOther, 0, fmt.Errorf("marshal request: %w", err))
	}

	info := &callInfo{method: method}
	req, err := retryablehttp.NewRequestWithContext(context.WithValue(ctx, attemptsKey{}, info), http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, c.fail(method, KindOther, 0, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	attempts := int(atomic.LoadInt32(&info.attempts))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		kind := KindOther
		if IsTransient(err) {
			kind = KindTransient
		}
		return nil, c.fail(method, kind, attempts, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		kind := KindOther
		if transientStatus(resp.StatusCode) {
			kind = KindTransient
		}
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, c.fail(method, kind, attempts, fmt.Errorf("status %d, body: %s", resp.StatusCode, string(snippet)))
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, c.fail(method, KindOther, attempts, fmt.Errorf("decode response: %w", err))
	}
	if out.Error != nil {
		return nil, c.fail(method, KindOther, attempts, out.Error)
	}
	if len(out.Result) == 0 || string(out.Result) == "null" {
		return nil, c.fail(method, KindOther, attempts, fmt.Errorf("response has no result"))
	}

	c.metrics.RPCResult(method, metrics.OutcomeOK)
	return out.Result, nil
}

func (c *Client) fail(method string, kind Kind, attempts int, err error) error {
	outcome := metrics.OutcomeOther
	if kind == KindTransient {
		outcome = metrics.OutcomeTransient
	}
	c.metrics.RPCResult(method, outcome)

	c.logger.WithFields(logrus.Fields{
		"method":   method,
		"kind":     kind.String(),
		"attempts": attempts,
	}).Errorf("Error calling %s: %v", method, err)

	return &Error{Kind: kind, Method: method, Attempts: attempts, Err: err}
}

// logAttempt counts every attempt of a request and notes retries.
func (c *Client) logAttempt(_ retryablehttp.Logger, req *http.Request, retry int) {
	info, ok := req.Context().Value(attemptsKey{}).(*callInfo)
	if !ok {
		return
	}
	atomic.AddInt32(&info.attempts, 1)
	c.metrics.RPCAttempt(info.method)
	if retry > 0 {
		c.logger.WithFields(logrus.Fields{
			"method": info.method,
			"retry":  retry,
		}).Debug("Retrying request after transient failure")
	}
}

func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return IsTransient(err), nil
	}
	return transientStatus(resp.StatusCode), nil
}

func fixedBackoff(wait, _ time.Duration, _ int, _ *http.Response) time.Duration {
	return wait
}
