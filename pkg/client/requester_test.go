package client

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secevents/internal/testutil"
	"secevents/pkg/errors"
	"secevents/pkg/logger"
	"secevents/pkg/metrics"
	"secevents/pkg/models"
)

const (
	eventsPath  = "api/v1/secureEvents"
	testTimeout = 100 * time.Millisecond
	longStall   = 5 * time.Second
)

// recordingSleeper captures backoff delays instead of sleeping
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
	err    error
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return s.err
}

func (s *recordingSleeper) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

func newTestRequester(t *testing.T, maxRetries int, opts ...Option) (*Requester, *recordingSleeper, *logger.TestLogger) {
	t.Helper()
	sleeper := &recordingSleeper{}
	log := logger.NewTestLogger()
	session := models.Session{AccessToken: "token", MaxRetries: maxRetries}

	opts = append([]Option{WithTimeout(testTimeout), WithSleeper(sleeper.Sleep)}, opts...)
	return NewRequester(session, log, opts...), sleeper, log
}

func eventsRequest(api *testutil.MockSecureAPI) models.Request {
	return models.Request{
		Method: http.MethodGet,
		URI:    api.URL(eventsPath),
		Params: url.Values{"from": {"1"}, "to": {"2"}, "limit": {"10"}},
		Headers: http.Header{
			"Authorization": {"Bearer token"},
			"Content-Type":  {"application/json"},
		},
	}
}

func stalled(status int) testutil.Step {
	return testutil.Step{Status: status, Stall: longStall}
}

func TestSendSuccess(t *testing.T) {
	api := testutil.NewMockSecureAPI()
	defer api.Close()
	api.EnqueuePage(eventsPath, []string{"a"}, nil)

	r, sleeper, _ := newTestRequester(t, 3)
	resp, err := r.Send(context.Background(), eventsRequest(api))

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"data":["a"],"page":{}}`, string(resp.Body))
	assert.Equal(t, 1, r.APICallCount())
	assert.Empty(t, sleeper.Delays())

	requests := api.Requests(eventsPath)
	require.Len(t, requests, 1)
	assert.Equal(t, "1", requests[0].Query.Get("from"))
	assert.Equal(t, "2", requests[0].Query.Get("to"))
	assert.Equal(t, "10", requests[0].Query.Get("limit"))
	assert.Equal(t, "Bearer token", requests[0].Header.Get("Authorization"))
	assert.Equal(t, "application/json", requests[0].Header.Get("Content-Type"))
}

func TestSendTimeoutWithRetryableStatusThenSuccess(t *testing.T) {
	api := testutil.NewMockSecureAPI()
	defer api.Close()
	api.Enqueue(eventsPath, stalled(http.StatusServiceUnavailable))
	api.EnqueuePage(eventsPath, []string{"a"}, nil)

	r, sleeper, log := newTestRequester(t, 3)
	resp, err := r.Send(context.Background(), eventsRequest(api))

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []time.Duration{2 * time.Second}, sleeper.Delays())
	assert.Equal(t, 2, r.APICallCount())
	assert.True(t, log.HasMessage("retrying HTTP request"))
	assert.False(t, log.HasError())
}

func TestSendBackoffDoublesPerAttempt(t *testing.T) {
	api := testutil.NewMockSecureAPI()
	defer api.Close()
	for _, status := range []int{429, 500, 502, 504} {
		api.Enqueue(eventsPath, stalled(status))
	}
	api.EnqueuePage(eventsPath, []string{}, nil)

	r, sleeper, _ := newTestRequester(t, 4)
	_, err := r.Send(context.Background(), eventsRequest(api))

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}, sleeper.Delays())
	assert.Equal(t, 5, r.APICallCount())
}

func TestSendRetryExhausted(t *testing.T) {
	api := testutil.NewMockSecureAPI()
	defer api.Close()
	for i := 0; i < 3; i++ {
		api.Enqueue(eventsPath, stalled(http.StatusServiceUnavailable))
	}

	r, sleeper, log := newTestRequester(t, 2)
	_, err := r.Send(context.Background(), eventsRequest(api))

	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeRetryExhausted, errors.TypeOf(err))

	var fetchErr *errors.Error
	require.True(t, stderrors.As(err, &fetchErr))
	assert.Equal(t, "Status code 503 for "+api.URL(eventsPath)+" on try 3 of 3 allowed tries", fetchErr.Message)
	assert.Equal(t, 503, fetchErr.Code)
	assert.Equal(t, 3, fetchErr.Attempt)
	assert.Equal(t, 3, fetchErr.MaxAttempts)
	assert.NotContains(t, fetchErr.Message, "from=")

	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, sleeper.Delays())
	assert.Equal(t, 3, r.APICallCount())
	assert.Len(t, api.Requests(eventsPath), 3)
	assert.True(t, log.HasError())
}

func TestSendZeroRetriesMakesOneAttempt(t *testing.T) {
	api := testutil.NewMockSecureAPI()
	defer api.Close()
	api.Enqueue(eventsPath, stalled(http.StatusServiceUnavailable))

	r, sleeper, _ := newTestRequester(t, 0)
	_, err := r.Send(context.Background(), eventsRequest(api))

	assert.Equal(t, errors.ErrorTypeRetryExhausted, errors.TypeOf(err))
	assert.Contains(t, err.Error(), "on try 1 of 1 allowed tries")
	assert.Empty(t, sleeper.Delays())
	assert.Equal(t, 1, r.APICallCount())
}

func TestSendTimeoutWithNonRetryableStatus(t *testing.T) {
	api := testutil.NewMockSecureAPI()
	defer api.Close()
	api.Enqueue(eventsPath, stalled(http.StatusOK))

	r, sleeper, _ := newTestRequester(t, 3)
	_, err := r.Send(context.Background(), eventsRequest(api))

	assert.Equal(t, errors.ErrorTypeTimeout, errors.TypeOf(err))
	assert.Contains(t, err.Error(), "Status code 200 for "+api.URL(eventsPath)+" on try 1 of 4 allowed tries")
	assert.Empty(t, sleeper.Delays())
	assert.Equal(t, 1, r.APICallCount())
}

func TestSendTimeoutBeforeHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(longStall):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	r, sleeper, _ := newTestRequester(t, 3)
	_, err := r.Send(context.Background(), models.Request{Method: http.MethodGet, URI: server.URL + "/" + eventsPath})

	// No status was ever received, so the timeout is not retried
	assert.Equal(t, errors.ErrorTypeTimeout, errors.TypeOf(err))
	assert.Contains(t, err.Error(), "Status code 0 for")
	assert.Empty(t, sleeper.Delays())
	assert.Equal(t, 1, r.APICallCount())
}

func TestSendHTTPStatusIsNeverRetried(t *testing.T) {
	for _, status := range []int{400, 401, 404, 429, 500, 503} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			api := testutil.NewMockSecureAPI()
			defer api.Close()
			api.Enqueue(eventsPath, testutil.Step{Status: status, Body: `{"message":"nope"}`})

			r, sleeper, log := newTestRequester(t, 3)
			_, err := r.Send(context.Background(), eventsRequest(api))

			assert.Equal(t, errors.ErrorTypeHTTPStatus, errors.TypeOf(err))
			var fetchErr *errors.Error
			require.True(t, stderrors.As(err, &fetchErr))
			assert.Equal(t, status, fetchErr.Code)
			assert.Empty(t, sleeper.Delays())
			assert.Equal(t, 1, r.APICallCount())
			assert.Len(t, api.Requests(eventsPath), 1)
			assert.True(t, log.HasError())
		})
	}
}

func TestSendConnectionError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	uri := server.URL + "/" + eventsPath
	server.Close()

	r, sleeper, _ := newTestRequester(t, 3)
	_, err := r.Send(context.Background(), models.Request{Method: http.MethodGet, URI: uri})

	assert.Equal(t, errors.ErrorTypeConnection, errors.TypeOf(err))
	assert.Contains(t, err.Error(), "Received connection error")
	assert.Empty(t, sleeper.Delays())
	assert.Equal(t, 1, r.APICallCount())
}

func TestSendCancelledContext(t *testing.T) {
	api := testutil.NewMockSecureAPI()
	defer api.Close()
	api.EnqueuePage(eventsPath, []string{"a"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, _, _ := newTestRequester(t, 3)
	_, err := r.Send(ctx, eventsRequest(api))

	assert.Equal(t, errors.ErrorTypeRequest, errors.TypeOf(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSendCancelledDuringBackoff(t *testing.T) {
	api := testutil.NewMockSecureAPI()
	defer api.Close()
	api.Enqueue(eventsPath, stalled(http.StatusServiceUnavailable))

	r, sleeper, _ := newTestRequester(t, 3)
	sleeper.err = context.Canceled

	_, err := r.Send(context.Background(), eventsRequest(api))

	assert.Equal(t, errors.ErrorTypeRequest, errors.TypeOf(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, r.APICallCount())
}

func TestSendInvalidURI(t *testing.T) {
	r, _, _ := newTestRequester(t, 3)
	_, err := r.Send(context.Background(), models.Request{Method: http.MethodGet, URI: "://missing-scheme"})

	assert.Equal(t, errors.ErrorTypeRequest, errors.TypeOf(err))
	assert.Equal(t, 0, r.APICallCount())
}

func TestAPICallCountIsLifetime(t *testing.T) {
	api := testutil.NewMockSecureAPI()
	defer api.Close()
	api.EnqueuePage(eventsPath, []string{"a"}, "c1")
	api.Enqueue(eventsPath, stalled(http.StatusBadGateway))
	api.EnqueuePage(eventsPath, []string{"b"}, nil)

	r, _, _ := newTestRequester(t, 3)
	for i := 0; i < 2; i++ {
		_, err := r.Send(context.Background(), eventsRequest(api))
		require.NoError(t, err)
	}

	assert.Equal(t, 3, r.APICallCount())
}

func TestSendRecordsMetrics(t *testing.T) {
	api := testutil.NewMockSecureAPI()
	defer api.Close()
	api.Enqueue(eventsPath, stalled(http.StatusServiceUnavailable))
	api.Enqueue(eventsPath, testutil.Step{Status: http.StatusInternalServerError})

	collector := metrics.New()
	r, _, _ := newTestRequester(t, 3, WithMetrics(collector, "list_events"))
	_, err := r.Send(context.Background(), eventsRequest(api))
	require.Error(t, err)

	expected := `
# HELP secevents_api_calls_total Total HTTP attempts dispatched by endpoint
# TYPE secevents_api_calls_total counter
secevents_api_calls_total{endpoint="list_events"} 2
# HELP secevents_errors_total Total terminal failures by error type
# TYPE secevents_errors_total counter
secevents_errors_total{type="http_status"} 1
# HELP secevents_retries_total Total retries after a timeout by endpoint
# TYPE secevents_retries_total counter
secevents_retries_total{endpoint="list_events"} 1
`
	err = promtestutil.GatherAndCompare(collector.Registry(), strings.NewReader(expected),
		"secevents_api_calls_total", "secevents_errors_total", "secevents_retries_total")
	assert.NoError(t, err)
}
