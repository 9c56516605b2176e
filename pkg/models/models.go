package models

import (
	"encoding/json"
	"net/http"
	"net/url"
)

const (
	// DefaultPageSizeLimit is the number of items requested per page
	DefaultPageSizeLimit = 10

	// DefaultMaxRetries is the number of retries after the first attempt
	DefaultMaxRetries = 3
)

// Session holds everything a fetch needs to talk to the API. It is built once
// by the caller and never modified during a fetch.
type Session struct {
	AccessToken   string
	BaseURL       string
	StartTime     string
	EndTime       string
	PageSizeLimit int
	MaxRetries    int
}

// Request describes one HTTP call issued by the requester
type Request struct {
	Method  string
	URI     string
	Params  url.Values
	Headers http.Header
	Body    []byte
}

// Response is a fully read HTTP response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URL        string
}

// Page is one decoded response envelope: {"data": ..., "page": {"next": ...}}
type Page struct {
	Data json.RawMessage
	Next string
}
