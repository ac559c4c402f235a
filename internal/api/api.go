// Package api talks to the remote inventory service: product search, login and the
// locations list. Calls are plain request/response with no retries or caching.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/awnumar/memguard"
	"github.com/google/uuid"
)

// maxResponseBodySize caps the response body read to prevent memory exhaustion.
const maxResponseBodySize = 8 << 20 // 8 MB

// Client performs requests against endpoint URLs supplied per call.
type Client struct {
	httpClient *http.Client
}

// NewClient returns a Client with a 30 second request timeout.
func NewClient() *Client {
	return &Client{httpClient: &http.Client{Timeout: 30 * time.Second}}
}

// ---------------------------------------------------------------------------
// Error types
// ---------------------------------------------------------------------------

// Error is a non-2xx response from the remote service.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return e.Message
}

// IsConnectionError reports whether err is a transport failure, i.e. the request
// never produced an HTTP response. *Error values are never connection errors.
func IsConnectionError(err error) bool {
	var (
		apiErr *Error
		netErr net.Error
	)
	if err == nil || errors.As(err, &apiErr) {
		return false
	}
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.As(err, &netErr)
}

func (c *Client) do(req *http.Request) ([]byte, int, error) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.New().String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response body: %w", err)
	}
	return body, resp.StatusCode, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// ---------------------------------------------------------------------------
// Search
// ---------------------------------------------------------------------------

// SearchProducts queries searchURL with ?search=term. token, when non-empty, is sent
// as a bearer credential. The body may be a bare array or an object with a "data"
// array; anything else yields no products.
func (c *Client) SearchProducts(ctx context.Context, searchURL, term, token string) ([]Product, error) {
	u, err := url.Parse(searchURL)
	if err != nil {
		return nil, fmt.Errorf("parse search url: %w", err)
	}
	q := u.Query()
	q.Set("search", term)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	body, status, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	if !isSuccess(status) {
		return nil, &Error{StatusCode: status, Message: fmt.Sprintf("request failed with status: %d %s", status, http.StatusText(status))}
	}
	return decodeProducts(body)
}

func decodeProducts(body []byte) ([]Product, error) {
	var raw json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse search response: %w", err)
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("parse search response: %w", err)
		}
		if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
			return []Product{}, nil
		}
		trimmed = envelope.Data
	} else if len(trimmed) == 0 || trimmed[0] != '[' {
		return []Product{}, nil
	}

	var products []Product
	if err := json.Unmarshal(trimmed, &products); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	if products == nil {
		products = []Product{}
	}
	return products, nil
}

// ---------------------------------------------------------------------------
// Login
// ---------------------------------------------------------------------------

// LoginRequest carries the credentials for Login. Password is held in locked memory;
// the holder calls Destroy once the request is done.
type LoginRequest struct {
	Name     string                 `json:"name" validate:"required"`
	Password *memguard.LockedBuffer `json:"-" validate:"required"`
	Location string                 `json:"location,omitempty"`
}

// NewLoginRequest moves password into locked memory and wipes the given slice. An
// empty password leaves Password nil.
func NewLoginRequest(name string, password []byte, location string) LoginRequest {
	lr := LoginRequest{Name: name, Location: location}
	if len(password) > 0 {
		lr.Password = memguard.NewBufferFromBytes(password)
	}
	return lr
}

// UnmarshalJSON decodes {"name", "password", "location"}. An unescaped password is
// copied straight from the raw JSON into locked memory and the raw copy is wiped.
func (lr *LoginRequest) UnmarshalJSON(data []byte) error {
	var aux struct {
		Name     string          `json:"name"`
		Password json.RawMessage `json:"password"`
		Location string          `json:"location"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	defer memguard.WipeBytes(aux.Password)

	raw := bytes.TrimSpace(aux.Password)
	var plain []byte
	switch {
	case len(raw) == 0 || string(raw) == "null":
	case len(raw) >= 2 && raw[0] == '"' && bytes.IndexByte(raw, '\\') < 0:
		plain = raw[1 : len(raw)-1]
	default:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("password: %w", err)
		}
		plain = []byte(s)
	}
	*lr = NewLoginRequest(aux.Name, plain, aux.Location)
	return nil
}

// Destroy wipes the password.
func (lr LoginRequest) Destroy() {
	if lr.Password != nil {
		lr.Password.Destroy()
	}
}

// Login posts the credentials to loginURL and returns the raw JSON response. When a
// location is given it is sent as both "location" and "loca_code". The password is
// read from locked memory and the request body is wiped once the call returns.
func (c *Client) Login(ctx context.Context, loginURL string, lr LoginRequest) (json.RawMessage, error) {
	if lr.Password == nil || lr.Password.Size() == 0 {
		return nil, errors.New("password is required")
	}

	payload := loginPayload(lr)
	defer memguard.WipeBytes(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	respBody, status, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	if !isSuccess(status) {
		return nil, &Error{StatusCode: status, Message: loginErrorMessage(respBody)}
	}
	if !json.Valid(respBody) {
		return nil, errors.New("login response is not valid JSON")
	}
	return json.RawMessage(respBody), nil
}

// loginPayload builds the JSON body in a slice sized for the worst-case escaping, so
// appending never leaves a reallocated copy of the password behind.
func loginPayload(lr LoginRequest) []byte {
	password := lr.Password.Bytes()
	size := 64 + 6*(len(lr.Name)+len(password)+2*len(lr.Location))
	b := make([]byte, 0, size)

	b = append(b, `{"name":`...)
	b = appendJSONString(b, []byte(lr.Name))
	b = append(b, `,"password":`...)
	b = appendJSONString(b, password)
	if lr.Location != "" {
		b = append(b, `,"location":`...)
		b = appendJSONString(b, []byte(lr.Location))
		b = append(b, `,"loca_code":`...)
		b = appendJSONString(b, []byte(lr.Location))
	}
	return append(b, '}')
}

// appendJSONString appends s as a quoted JSON string without going through a Go string.
func appendJSONString(dst, s []byte) []byte {
	const hex = "0123456789abcdef"
	dst = append(dst, '"')
	for _, c := range s {
		switch {
		case c == '"' || c == '\\':
			dst = append(dst, '\\', c)
		case c < 0x20:
			dst = append(dst, '\\', 'u', '0', '0', hex[c>>4], hex[c&0xf])
		default:
			dst = append(dst, c)
		}
	}
	return append(dst, '"')
}

func loginErrorMessage(body []byte) string {
	var resp struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.Message == "" {
		return "Login failed"
	}
	return resp.Message
}

// ---------------------------------------------------------------------------
// Locations
// ---------------------------------------------------------------------------

// Locations fetches locationsURL and returns the body unmodified.
func (c *Client) Locations(ctx context.Context, locationsURL string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locationsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build locations request: %w", err)
	}

	body, status, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("locations request failed: %w", err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("locations response (status %d) is not valid JSON", status)
	}
	return json.RawMessage(body), nil
}
