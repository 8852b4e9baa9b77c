package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	// ErrAuthRequired is returned for 401/403 responses.
	ErrAuthRequired = errors.New("storefront: authentication required")
	// ErrUnavailable is returned for transport failures and 5xx responses.
	ErrUnavailable = errors.New("storefront: service unavailable")
	// ErrRejected is matched by every other non-2xx response.
	ErrRejected = errors.New("storefront: request rejected")
	// ErrUnsupported is returned for operations a resource does not expose.
	ErrUnsupported = errors.New("storefront: operation not supported")
)

// APIError is a non-2xx response that is neither an auth nor a server failure.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("storefront: status %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return ErrRejected }

// Config holds collection API configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client is a minimal HTTP client for the storefront collection API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	debug      bool
}

// NewClient constructs a new client with sane defaults.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		debug:      os.Getenv("ENV") == "development",
	}
}

// WithToken returns a copy of the client that authenticates as the bearer of token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// Cart returns the cart resource.
func (c *Client) Cart() *Resource {
	return &Resource{client: c, path: "/cart", updatable: true, sizedRemove: true}
}

// Wishlist returns the wishlist resource.
func (c *Client) Wishlist() *Resource {
	return &Resource{client: c, path: "/wishlist"}
}

// Resource is one collection endpoint family (cart or wishlist).
type Resource struct {
	client      *Client
	path        string
	updatable   bool
	sizedRemove bool
}

// Fetch returns the authoritative collection.
func (r *Resource) Fetch(ctx context.Context) (*CollectionResponse, error) {
	var resp CollectionResponse
	if err := r.client.doRequest(ctx, http.MethodGet, r.path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Add adds quantity of a product (and size) to the collection.
func (r *Resource) Add(ctx context.Context, productID, size string, quantity int) (*AddResponse, error) {
	req := AddRequest{ProductID: productID, Size: size, Quantity: quantity}
	var resp AddResponse
	if err := r.client.doRequest(ctx, http.MethodPost, r.path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Update sets the quantity of a line.
func (r *Resource) Update(ctx context.Context, productID, size string, quantity int) error {
	if !r.updatable {
		return ErrUnsupported
	}
	req := UpdateRequest{Size: size, Quantity: quantity}
	return r.client.doRequest(ctx, http.MethodPut, r.path+"/"+url.PathEscape(productID), req, nil)
}

// Remove deletes a line.
func (r *Resource) Remove(ctx context.Context, productID, size string) error {
	endpoint := r.path + "/" + url.PathEscape(productID)
	if r.sizedRemove && size != "" {
		endpoint += "?size=" + url.QueryEscape(size)
	}
	return r.client.doRequest(ctx, http.MethodDelete, endpoint, nil, nil)
}

// Clear empties the collection.
func (r *Resource) Clear(ctx context.Context) error {
	return r.client.doRequest(ctx, http.MethodDelete, r.path, nil, nil)
}

// doRequest performs the HTTP call with an optional JSON body and decodes the
// JSON response into result when result is non-nil.
func (c *Client) doRequest(ctx context.Context, method, endpoint string, body any, result any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	if c.debug {
		ev := log.Debug().Str("method", method).Str("endpoint", c.baseURL+endpoint)
		if payload != nil {
			ev = ev.RawJSON("request", payload)
		}
		ev.Msg("[STOREFRONT] Outgoing request")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", ErrUnavailable, err)
	}

	if c.debug {
		log.Debug().
			Str("endpoint", endpoint).
			Int("status_code", resp.StatusCode).
			Int("bytes", len(respBody)).
			Msg("[STOREFRONT] Incoming response")
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrAuthRequired
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= 300:
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}

	if result == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func errorMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Message != "" {
		return eb.Message
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return string(body)
}
