package client

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"

	"secevents/pkg/errors"
	"secevents/pkg/logger"
	"secevents/pkg/metrics"
	"secevents/pkg/models"
	"secevents/pkg/retry"
)

// DefaultTimeout bounds a single attempt, including reading the body
const DefaultTimeout = 30 * time.Second

// Requester issues one logical HTTP request, retrying it after a timeout when
// the last status seen is in the retry set
type Requester struct {
	httpClient *http.Client
	maxRetries int
	backoff    retry.BackoffStrategy
	sleep      retry.Sleeper
	logger     logger.Logger
	metrics    *metrics.Collector
	endpoint   string

	apiCalls int
}

// Option configures a Requester
type Option func(*Requester)

// WithHTTPClient replaces the HTTP client. Its Timeout is the per-attempt timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Requester) {
		r.httpClient = c
	}
}

// WithTimeout sets the per-attempt timeout
func WithTimeout(timeout time.Duration) Option {
	return func(r *Requester) {
		r.httpClient.Timeout = timeout
	}
}

// WithBackoff replaces the backoff strategy
func WithBackoff(b retry.BackoffStrategy) Option {
	return func(r *Requester) {
		r.backoff = b
	}
}

// WithSleeper replaces the function used to wait between attempts
func WithSleeper(s retry.Sleeper) Option {
	return func(r *Requester) {
		r.sleep = s
	}
}

// WithMetrics records attempts, retries and failures under the endpoint label
func WithMetrics(c *metrics.Collector, endpoint string) Option {
	return func(r *Requester) {
		r.metrics = c
		r.endpoint = endpoint
	}
}

// NewRequester creates a Requester allowing session.MaxRetries retries after
// the first attempt. log must not be nil.
func NewRequester(session models.Session, log logger.Logger, opts ...Option) *Requester {
	r := &Requester{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		maxRetries: session.MaxRetries,
		backoff:    retry.DefaultExponentialBackoff(),
		sleep:      retry.Wait,
		logger:     log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// APICallCount returns the number of attempts dispatched over the lifetime
// of the Requester
func (r *Requester) APICallCount() int {
	return r.apiCalls
}

// Send performs req. A timeout is retried after 2^attempt seconds when the
// last status received is 429, 500, 502, 503 or 504 and tries remain. An
// HTTP status >= 400 delivered in full, a connection error and any other
// transport error are terminal on the first occurrence.
func (r *Requester) Send(ctx context.Context, req models.Request) (*models.Response, error) {
	maxAttempts := r.maxRetries + 1
	lastStatus := 0

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		httpReq, err := buildRequest(ctx, req)
		if err != nil {
			return nil, r.fail(&errors.Error{
				Type:    errors.ErrorTypeRequest,
				Message: "failed to build request",
				URL:     logger.StripQuery(req.URI),
				Err:     err,
			})
		}
		strippedURL := logger.StripQuery(httpReq.URL.String())

		r.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
			"method":  httpReq.Method,
			"url":     strippedURL,
			"attempt": attempt,
		})

		resp, status, err := r.dispatch(httpReq)
		if status != 0 {
			lastStatus = status
		}

		if err == nil {
			if resp.StatusCode >= 400 {
				return nil, r.fail(&errors.Error{
					Type:        errors.ErrorTypeHTTPStatus,
					Message:     fmt.Sprintf("Received HTTP status %d", resp.StatusCode),
					Code:        resp.StatusCode,
					URL:         strippedURL,
					Attempt:     attempt,
					MaxAttempts: maxAttempts,
				})
			}
			return resp, nil
		}

		switch classify(ctx, err) {
		case errors.ErrorTypeTimeout:
			mustRetry := errors.IsRetryableStatusCode(lastStatus)
			canRetry := attempt < maxAttempts
			if mustRetry && canRetry {
				delay := r.backoff.NextDelay(attempt)
				r.logger.WarnWithFields("retrying HTTP request", map[string]interface{}{
					"url":     strippedURL,
					"status":  lastStatus,
					"attempt": attempt,
					"delay":   delay,
				})
				r.metrics.Retry(r.endpoint, delay)
				if err := r.sleep(ctx, delay); err != nil {
					return nil, r.fail(&errors.Error{
						Type:    errors.ErrorTypeRequest,
						Message: "Received cancellation during backoff",
						URL:     strippedURL,
						Attempt: attempt,
						Err:     err,
					})
				}
				continue
			}

			errorType := errors.ErrorTypeTimeout
			if mustRetry {
				errorType = errors.ErrorTypeRetryExhausted
			}
			return nil, r.fail(&errors.Error{
				Type:        errorType,
				Message:     fmt.Sprintf("Status code %d for %s on try %d of %d allowed tries", lastStatus, strippedURL, attempt, maxAttempts),
				Code:        lastStatus,
				URL:         strippedURL,
				Attempt:     attempt,
				MaxAttempts: maxAttempts,
				Err:         err,
			})

		case errors.ErrorTypeConnection:
			return nil, r.fail(&errors.Error{
				Type:        errors.ErrorTypeConnection,
				Message:     "Received connection error",
				URL:         strippedURL,
				Attempt:     attempt,
				MaxAttempts: maxAttempts,
				Err:         err,
			})

		default:
			return nil, r.fail(&errors.Error{
				Type:        errors.ErrorTypeRequest,
				Message:     "Received request error",
				URL:         strippedURL,
				Attempt:     attempt,
				MaxAttempts: maxAttempts,
				Err:         err,
			})
		}
	}

	return nil, r.fail(&errors.Error{
		Type:    errors.ErrorTypeRequest,
		Message: fmt.Sprintf("no attempts allowed with max retries %d", r.maxRetries),
		URL:     logger.StripQuery(req.URI),
	})
}

// dispatch performs one attempt and reads the whole body. The returned status
// is non-zero whenever response headers arrived, even if the body read failed.
func (r *Requester) dispatch(httpReq *http.Request) (*models.Response, int, error) {
	start := time.Now()
	resp, err := r.httpClient.Do(httpReq)

	r.apiCalls++
	defer func() {
		r.metrics.APICall(r.endpoint, time.Since(start))
	}()

	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}

	r.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"url":      logger.StripQuery(httpReq.URL.String()),
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	})

	return &models.Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		URL:        resp.Request.URL.String(),
	}, resp.StatusCode, nil
}

func (r *Requester) fail(err *errors.Error) error {
	fields := map[string]interface{}{
		"error_type": string(err.Type),
		"url":        err.URL,
		"code":       err.Code,
		"attempt":    err.Attempt,
	}
	if err.Err != nil {
		fields["cause"] = err.Err.Error()
	}
	r.logger.ErrorWithFields(err.Message, fields)
	r.metrics.Error(string(err.Type))
	return err
}

func buildRequest(ctx context.Context, req models.Request) (*http.Request, error) {
	u, err := url.Parse(req.URI)
	if err != nil {
		return nil, err
	}
	if len(req.Params) > 0 {
		query := u.Query()
		for key, values := range req.Params {
			for _, v := range values {
				query.Add(key, v)
			}
		}
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	for key, values := range req.Headers {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	return httpReq, nil
}

// classify maps a transport error to timeout, connection or request. A
// cancelled or expired caller context is never treated as a timeout.
func classify(ctx context.Context, err error) errors.ErrorType {
	if ctx.Err() != nil {
		return errors.ErrorTypeRequest
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return errors.ErrorTypeTimeout
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.ErrorTypeTimeout
	}

	var opErr *net.OpError
	if stderrors.As(err, &opErr) && opErr.Op == "dial" {
		return errors.ErrorTypeConnection
	}
	var dnsErr *net.DNSError
	if stderrors.As(err, &dnsErr) {
		return errors.ErrorTypeConnection
	}
	if stderrors.Is(err, syscall.ECONNREFUSED) || stderrors.Is(err, syscall.ECONNRESET) {
		return errors.ErrorTypeConnection
	}

	return errors.ErrorTypeRequest
}
