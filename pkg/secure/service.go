// Package secure fetches the security event collections and reports their
// record counts.
package secure

import (
	"context"
	"net/http"

	"secevents/pkg/client"
	"secevents/pkg/logger"
	"secevents/pkg/metrics"
	"secevents/pkg/models"
	"secevents/pkg/pagination"
	"secevents/pkg/storage"
)

// Summary is the outcome of a complete run
type Summary struct {
	SecureEvents int
	AuditEvents  int
	APICalls     int
}

// Service fetches endpoints with a fresh Requester and Paginator per call
type Service struct {
	session       models.Session
	store         storage.PageStore
	logger        logger.Logger
	metrics       *metrics.Collector
	clientOptions []client.Option

	apiCalls int
}

// Option configures a Service
type Option func(*Service)

// WithMetrics records every fetch in c
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Service) {
		s.metrics = c
	}
}

// WithClientOptions passes options to every Requester the service builds
func WithClientOptions(opts ...client.Option) Option {
	return func(s *Service) {
		s.clientOptions = append(s.clientOptions, opts...)
	}
}

// NewService creates a Service. log must not be nil.
func NewService(session models.Session, store storage.PageStore, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		session: session,
		store:   store,
		logger:  log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// APICallCount returns the attempts dispatched by all fetches of this service
func (s *Service) APICallCount() int {
	return s.apiCalls
}

// Count fetches every page of endpoint into files prefixed per FilePrefix and
// returns the number of records
func (s *Service) Count(ctx context.Context, endpoint Endpoint, filename string) (int, error) {
	uri := endpoint.URI(s.session.BaseURL)
	log := s.logger.WithField("endpoint", endpoint.Prefix)
	log.InfoWithFields("Fetching "+endpoint.Name, map[string]interface{}{"uri": uri})

	opts := append([]client.Option{client.WithMetrics(s.metrics, endpoint.Prefix)}, s.clientOptions...)
	requester := client.NewRequester(s.session, log, opts...)
	paginator := pagination.NewPaginator(s.session, requester, s.store, log,
		pagination.WithMetrics(s.metrics, endpoint.Prefix))

	count, err := paginator.FetchAll(ctx, http.MethodGet, uri, endpoint.FilePrefix(filename))
	s.apiCalls += requester.APICallCount()

	log.InfoWithFields("API calls made", map[string]interface{}{
		"api_calls": requester.APICallCount(),
	})
	return count, err
}

// SecureEventsCount fetches the secure events into "<filename>_list_events_<n>"
func (s *Service) SecureEventsCount(ctx context.Context, filename string) (int, error) {
	return s.Count(ctx, SecureEvents, filename)
}

// ActivityAuditEventsCount fetches the audit events into "<filename>_audit_events_<n>"
func (s *Service) ActivityAuditEventsCount(ctx context.Context, filename string) (int, error) {
	return s.Count(ctx, ActivityAuditEvents, filename)
}

// Run fetches the secure events, then the audit events, stopping at the first
// failure. The summary holds the counts reached so far.
func (s *Service) Run(ctx context.Context, filename string) (Summary, error) {
	var summary Summary

	s.logger.Info("Starting to get list of SecureEvents")
	count, err := s.SecureEventsCount(ctx, filename)
	summary.SecureEvents = count
	summary.APICalls = s.apiCalls
	if err != nil {
		return summary, err
	}
	s.logger.InfoWithFields("Got the Secure events count", map[string]interface{}{"count": count})

	s.logger.Info("Starting to get list of audit activity events")
	count, err = s.ActivityAuditEventsCount(ctx, filename)
	summary.AuditEvents = count
	summary.APICalls = s.apiCalls
	if err != nil {
		return summary, err
	}
	s.logger.InfoWithFields("Got the audit activity events count", map[string]interface{}{"count": count})

	logger.LogMetrics(s.logger, "run", map[string]interface{}{
		"secure_events": summary.SecureEvents,
		"audit_events":  summary.AuditEvents,
		"api_calls":     summary.APICalls,
	})
	return summary, nil
}
