package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// HeaderProvider supplies the authorization headers for an outgoing request.
// The session authority implements it; the client never reads session storage.
type HeaderProvider interface {
	AuthHeader() http.Header
}

// HeaderProviderFunc adapts a function to HeaderProvider
type HeaderProviderFunc func() http.Header

func (f HeaderProviderFunc) AuthHeader() http.Header { return f() }

// noAuth sends every request unauthenticated
type noAuth struct{}

func (noAuth) AuthHeader() http.Header { return http.Header{} }

// Client represents an HTTP client for the temple management API
type Client struct {
	baseURL    string
	httpClient *http.Client
	headers    HeaderProvider
	logger     zerolog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHeaderProvider sets where authorization headers come from
func WithHeaderProvider(p HeaderProvider) Option {
	return func(c *Client) {
		if p != nil {
			c.headers = p
		}
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a new API client for the given base URL, e.g. http://localhost:8080/api
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		headers:    noAuth{},
		logger:     zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BaseURL returns the API base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Request describes one API call
type Request struct {
	Method string
	Path   string
	Query  url.Values
	// Body is sent as multipart/form-data when it is a *Form, as JSON otherwise.
	// A nil body sends no payload.
	Body any
}

// Response is a successful API response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON response body into v
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// APIError is returned for non-2xx responses
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request failed (status %d): %s", e.StatusCode, e.Message)
}

// Do sends the request with the current authorization headers
func (c *Client) Do(ctx context.Context, r Request) (*Response, error) {
	endpoint := c.baseURL + r.Path
	if len(r.Query) > 0 {
		endpoint += "?" + r.Query.Encode()
	}

	body, contentType, err := encodeBody(r.Body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	requestID := ulid.Make().String()
	req.Header.Set("X-Request-ID", requestID)

	for name, values := range c.headers.AuthHeader() {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}

	log := c.logger.With().
		Str("request_id", requestID).
		Str("method", r.Method).
		Str("path", r.Path).
		Logger()

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error().Err(err).Msg("Request failed")
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	log.Debug().
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Request completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.StatusCode, data),
			Body:       data,
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

// encodeBody picks the wire encoding for a request payload
func encodeBody(body any) (io.Reader, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case *Form:
		return b.encode()
	case json.RawMessage:
		return bytes.NewReader(b), "application/json", nil
	default:
		jsonData, err := json.Marshal(b)
		if err != nil {
			return nil, "", fmt.Errorf("failed to marshal request: %w", err)
		}
		return bytes.NewReader(jsonData), "application/json", nil
	}
}

// errorMessage extracts a message from an error body, falling back to the status text
func errorMessage(status int, body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return http.StatusText(status)
}

// Form is a multipart payload: plain fields plus file parts
type Form struct {
	Fields map[string]string
	Files  []FormFile
}

// FormFile is one file part of a Form
type FormFile struct {
	Field    string
	Filename string
	Content  io.Reader
}

// NewForm creates an empty multipart payload
func NewForm() *Form {
	return &Form{Fields: make(map[string]string)}
}

// Set adds a plain field
func (f *Form) Set(name, value string) *Form {
	f.Fields[name] = value
	return f
}

// AddFile adds a file part
func (f *Form) AddFile(field, filename string, content io.Reader) *Form {
	f.Files = append(f.Files, FormFile{Field: field, Filename: filename, Content: content})
	return f
}

func (f *Form) encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for name, value := range f.Fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("failed to write form field %s: %w", name, err)
		}
	}

	for _, file := range f.Files {
		part, err := w.CreateFormFile(file.Field, file.Filename)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create form file %s: %w", file.Field, err)
		}
		if _, err := io.Copy(part, file.Content); err != nil {
			return nil, "", fmt.Errorf("failed to write form file %s: %w", file.Field, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish form: %w", err)
	}

	return &buf, w.FormDataContentType(), nil
}

// DecodeList decodes a list response that is either a bare JSON array or an
// object wrapping the array under key. Any other shape yields an empty list.
func DecodeList[T any](resp *Response, key string) ([]T, error) {
	trimmed := bytes.TrimSpace(resp.Body)

	if bytes.HasPrefix(trimmed, []byte("[")) {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("failed to decode list: %w", err)
		}
		return items, nil
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return []T{}, nil
	}

	raw, ok := wrapped[key]
	if !ok || !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("[")) {
		return []T{}, nil
	}

	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return items, nil
}
