package pagination

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"unicode/utf8"

	"secevents/pkg/errors"
	"secevents/pkg/logger"
	"secevents/pkg/metrics"
	"secevents/pkg/models"
	"secevents/pkg/storage"
)

// Sender performs one logical request, retries included
type Sender interface {
	Send(ctx context.Context, req models.Request) (*models.Response, error)
}

// Paginator walks the cursor chain of one endpoint, persisting the data array
// of every page and counting its items
type Paginator struct {
	session  models.Session
	sender   Sender
	store    storage.PageStore
	logger   logger.Logger
	metrics  *metrics.Collector
	endpoint string
}

// Option configures a Paginator
type Option func(*Paginator)

// WithMetrics records pages and records under the endpoint label
func WithMetrics(c *metrics.Collector, endpoint string) Option {
	return func(p *Paginator) {
		p.metrics = c
		p.endpoint = endpoint
	}
}

// NewPaginator creates a Paginator. log must not be nil.
func NewPaginator(session models.Session, sender Sender, store storage.PageStore, log logger.Logger, opts ...Option) *Paginator {
	p := &Paginator{
		session: session,
		sender:  sender,
		store:   store,
		logger:  log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FetchAll requests uri page by page until page.next is falsy, writing each
// page's data to "<prefix>_<n>" and returning the total item count. The first
// request carries from/to/limit; every later one carries cursor/limit. Pages
// written before a failure are kept.
func (p *Paginator) FetchAll(ctx context.Context, method, uri, prefix string) (int, error) {
	state := State{
		Mode: TimeWindow{
			From:  p.session.StartTime,
			To:    p.session.EndTime,
			Limit: p.session.PageSizeLimit,
		},
	}

	p.logger.DebugWithFields("Pagination Start date", map[string]interface{}{"from": p.session.StartTime})
	p.logger.DebugWithFields("Pagination End date", map[string]interface{}{"to": p.session.EndTime})

	if p.session.AccessToken == "" {
		err := errors.Wrap(errors.ErrorTypeMissingCredential, "No access token", errors.ErrMissingCredential)
		p.metrics.Error(string(err.Type))
		return 0, err
	}

	headers := http.Header{
		"Authorization": {"Bearer " + p.session.AccessToken},
		"Content-Type":  {"application/json"},
	}

	for {
		state.PageIndex++

		resp, err := p.sender.Send(ctx, models.Request{
			Method:  method,
			URI:     uri,
			Params:  state.Mode.Values(),
			Headers: headers,
		})
		if err != nil {
			return state.RecordCount, err
		}
		p.logger.Info("Got the response")
		p.logger.DebugWithFields("Response received", map[string]interface{}{
			"page":  state.PageIndex,
			"bytes": len(resp.Body),
		})

		page, schemaErr := decodePage(resp.Body)
		if schemaErr != nil {
			return state.RecordCount, p.fail(schemaErr)
		}

		fileName := fmt.Sprintf("%s_%d", prefix, state.PageIndex)
		p.logger.InfoWithFields("Dumping the response in file", map[string]interface{}{"file": fileName})
		if err := p.store.SavePage(ctx, fileName, page.Data); err != nil {
			return state.RecordCount, p.fail(errors.Wrap(errors.ErrorTypeStorage, "failed to save page "+fileName, err))
		}
		p.logger.Info("Finished Dumping the response")

		n, schemaErr := countItems(page.Data)
		if schemaErr != nil {
			return state.RecordCount, p.fail(schemaErr)
		}
		state.RecordCount += n
		p.metrics.Page(p.endpoint, n)

		if page.Next == "" {
			return state.RecordCount, nil
		}

		state.Mode = Cursor{Cursor: page.Next, Limit: p.session.PageSizeLimit}
		p.logger.Info("Got the next page cursor")
	}
}

func (p *Paginator) fail(err *errors.Error) error {
	p.logger.ErrorWithFields(err.Message, map[string]interface{}{
		"error_type": string(err.Type),
	})
	p.metrics.Error(string(err.Type))
	return err
}

var jsonNull = json.RawMessage("null")

// decodePage splits a response body into its data array and next cursor. A
// body that is not a JSON object is a schema error. A missing data field is
// returned as JSON null.
func decodePage(body []byte) (*models.Page, *errors.Error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil || envelope == nil {
		return nil, errors.Wrap(errors.ErrorTypeSchema, "Invalid Response", errors.ErrInvalidResponse)
	}

	data, ok := envelope["data"]
	if !ok {
		data = jsonNull
	}

	return &models.Page{Data: data, Next: nextCursor(envelope["page"])}, nil
}

// nextCursor returns page.next as a cursor string, or "" when it is absent or
// falsy (null, false, 0, "", [] or {})
func nextCursor(rawPage json.RawMessage) string {
	var page map[string]json.RawMessage
	if err := json.Unmarshal(rawPage, &page); err != nil {
		return ""
	}
	raw, ok := page["next"]
	if !ok {
		return ""
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var value interface{}
	if err := decoder.Decode(&value); err != nil {
		return ""
	}

	switch v := value.(type) {
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
	case json.Number:
		if f, err := v.Float64(); err == nil && f != 0 {
			return v.String()
		}
	case []interface{}:
		if len(v) > 0 {
			return string(bytes.TrimSpace(raw))
		}
	case map[string]interface{}:
		if len(v) > 0 {
			return string(bytes.TrimSpace(raw))
		}
	}
	return ""
}

// countItems returns the length of data: element count of an array, key
// count of an object, character count of a string. Any other value is a
// schema error.
func countItems(data json.RawMessage) (int, *errors.Error) {
	var value interface{}
	if err := json.Unmarshal(data, &value); err != nil {
		return 0, errors.Wrap(errors.ErrorTypeSchema, "Invalid data field", errors.ErrInvalidResponse)
	}

	switch v := value.(type) {
	case []interface{}:
		return len(v), nil
	case map[string]interface{}:
		return len(v), nil
	case string:
		return utf8.RuneCountInString(v), nil
	default:
		return 0, errors.Wrap(errors.ErrorTypeSchema, fmt.Sprintf("data field has no length: %s", data), errors.ErrInvalidResponse)
	}
}
