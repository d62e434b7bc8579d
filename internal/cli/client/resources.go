package client

import (
	"context"
	"net/http"
	"net/url"
)

// Collection is a REST resource collection: GET|POST|PUT|DELETE /{collection}[/{id}]
type Collection struct {
	client *Client
	path   string
}

func (r Collection) item(id string) string {
	return r.path + "/" + url.PathEscape(id)
}

// List returns all items, filtered by the optional query parameters
func (r Collection) List(ctx context.Context, params url.Values) (*Response, error) {
	return r.client.Do(ctx, Request{Method: http.MethodGet, Path: r.path, Query: params})
}

// Get returns a single item
func (r Collection) Get(ctx context.Context, id string) (*Response, error) {
	return r.client.Do(ctx, Request{Method: http.MethodGet, Path: r.item(id)})
}

// Create adds an item. body may be a *Form for file uploads.
func (r Collection) Create(ctx context.Context, body any) (*Response, error) {
	return r.client.Do(ctx, Request{Method: http.MethodPost, Path: r.path, Body: body})
}

// Update replaces an item. body may be a *Form for file uploads.
func (r Collection) Update(ctx context.Context, id string, body any) (*Response, error) {
	return r.client.Do(ctx, Request{Method: http.MethodPut, Path: r.item(id), Body: body})
}

// Delete removes an item
func (r Collection) Delete(ctx context.Context, id string) (*Response, error) {
	return r.client.Do(ctx, Request{Method: http.MethodDelete, Path: r.item(id)})
}

// Events returns the events collection
func (c *Client) Events() Collection {
	return Collection{client: c, path: "/events"}
}

// Services returns the services collection
func (c *Client) Services() Collection {
	return Collection{client: c, path: "/services"}
}

// Staff returns the staff collection
func (c *Client) Staff() Collection {
	return Collection{client: c, path: "/staff"}
}

// DonorsAPI is the donors collection plus its reporting endpoints
type DonorsAPI struct {
	Collection
}

// Donors returns the donors collection
func (c *Client) Donors() DonorsAPI {
	return DonorsAPI{Collection{client: c, path: "/donors"}}
}

// Statistics returns donation statistics
func (d DonorsAPI) Statistics(ctx context.Context) (*Response, error) {
	return d.client.Do(ctx, Request{Method: http.MethodGet, Path: d.path + "/statistics"})
}

// Export downloads the donor list; the body is returned as-is
func (d DonorsAPI) Export(ctx context.Context) (*Response, error) {
	return d.client.Do(ctx, Request{Method: http.MethodGet, Path: d.path + "/export"})
}

// ImagesAPI manages the home page images
type ImagesAPI struct {
	Collection
}

// Images returns the home images collection
func (c *Client) Images() ImagesAPI {
	return ImagesAPI{Collection{client: c, path: "/images/home"}}
}

// Upload sends a new image as multipart form data
func (i ImagesAPI) Upload(ctx context.Context, form *Form) (*Response, error) {
	return i.client.Do(ctx, Request{Method: http.MethodPost, Path: i.path, Body: form})
}

// Download fetches the raw image bytes
func (i ImagesAPI) Download(ctx context.Context, id string) (*Response, error) {
	return i.client.Do(ctx, Request{Method: http.MethodGet, Path: i.item(id) + "/download"})
}

// TimingsAPI manages the weekly temple timings and holidays
type TimingsAPI struct {
	client *Client
}

// Timings returns the timings API
func (c *Client) Timings() TimingsAPI {
	return TimingsAPI{client: c}
}

// List returns all timings
func (t TimingsAPI) List(ctx context.Context) (*Response, error) {
	return t.client.Do(ctx, Request{Method: http.MethodGet, Path: "/timings"})
}

// Update replaces the timing of a day
func (t TimingsAPI) Update(ctx context.Context, day string, body any) (*Response, error) {
	return t.client.Do(ctx, Request{Method: http.MethodPut, Path: "/timings/" + url.PathEscape(day), Body: body})
}

// AddHoliday adds a holiday
func (t TimingsAPI) AddHoliday(ctx context.Context, body any) (*Response, error) {
	return t.client.Do(ctx, Request{Method: http.MethodPost, Path: "/timings/holidays", Body: body})
}

// RemoveHoliday deletes a holiday
func (t TimingsAPI) RemoveHoliday(ctx context.Context, id string) (*Response, error) {
	return t.client.Do(ctx, Request{Method: http.MethodDelete, Path: "/timings/holidays/" + url.PathEscape(id)})
}

// AuthAPI exposes the backend auth endpoints as plain calls. Session state is
// owned by the session authority, not by these calls.
type AuthAPI struct {
	client *Client
}

// Auth returns the auth API
func (c *Client) Auth() AuthAPI {
	return AuthAPI{client: c}
}

// Credentials is the login request body
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login posts credentials to /auth/login
func (a AuthAPI) Login(ctx context.Context, creds Credentials) (*Response, error) {
	return a.client.Do(ctx, Request{Method: http.MethodPost, Path: "/auth/login", Body: creds})
}

// Logout calls /auth/logout
func (a AuthAPI) Logout(ctx context.Context) (*Response, error) {
	return a.client.Do(ctx, Request{Method: http.MethodPost, Path: "/auth/logout"})
}

// Refresh calls /auth/refresh
func (a AuthAPI) Refresh(ctx context.Context) (*Response, error) {
	return a.client.Do(ctx, Request{Method: http.MethodPost, Path: "/auth/refresh"})
}

// Me returns the current user
func (a AuthAPI) Me(ctx context.Context) (*Response, error) {
	return a.client.Do(ctx, Request{Method: http.MethodGet, Path: "/auth/me"})
}
