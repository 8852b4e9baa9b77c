package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL}).WithToken("tok")
}

func TestResource_FetchSendsBearerAndDecodes(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/cart", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"productId":"p1","size":"7","quantity":2,"price":99.5,
			"product":{"_id":"p1","name":"Runner","price":120}}],"totalItems":2,"totalAmount":199}`))
	})

	resp, err := client.Cart().Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	item := resp.Items[0]
	assert.Equal(t, "p1", item.ProductID)
	assert.Equal(t, "7", item.Size)
	assert.Equal(t, 2, item.Quantity)
	require.NotNil(t, item.Price)
	assert.Equal(t, "99.5", item.Price.String())
	assert.Equal(t, "Runner", item.Product.Name)
	assert.Equal(t, 2, resp.TotalItems)
}

func TestResource_AddPostsBody(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/wishlist", r.URL.Path)
		var req AddRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, AddRequest{ProductID: "p1", Quantity: 1}, req)
		_, _ = w.Write([]byte(`{"productId":"p1","quantity":1}`))
	})

	resp, err := client.Wishlist().Add(context.Background(), "p1", "", 1)
	require.NoError(t, err)
	q, ok := resp.QuantityFor("p1", "")
	assert.True(t, ok)
	assert.Equal(t, 1, q)
}

func TestResource_UpdateAndRemovePaths(t *testing.T) {
	var seen []string
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.RequestURI())
		w.WriteHeader(http.StatusNoContent)
	})

	ctx := context.Background()
	require.NoError(t, client.Cart().Update(ctx, "p 1", "7", 3))
	require.NoError(t, client.Cart().Remove(ctx, "p1", "7"))
	require.NoError(t, client.Wishlist().Remove(ctx, "p1", "7"))
	require.NoError(t, client.Cart().Clear(ctx))

	assert.Equal(t, []string{
		"PUT /cart/p%201",
		"DELETE /cart/p1?size=7",
		"DELETE /wishlist/p1",
		"DELETE /cart",
	}, seen)
}

func TestResource_WishlistUpdateUnsupported(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://unused"})
	err := client.Wishlist().Update(context.Background(), "p1", "", 2)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestClient_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrAuthRequired},
		{http.StatusForbidden, ErrAuthRequired},
		{http.StatusInternalServerError, ErrUnavailable},
		{http.StatusBadGateway, ErrUnavailable},
		{http.StatusUnprocessableEntity, ErrRejected},
		{http.StatusNotFound, ErrRejected},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"message":"nope"}`))
			})
			_, err := client.Cart().Fetch(context.Background())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClient_APIErrorCarriesMessage(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"Only 1 left in stock"}`))
	})

	_, err := client.Cart().Add(context.Background(), "p1", "", 5)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "Only 1 left in stock", apiErr.Message)
}

func TestClient_TransportFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(Config{BaseURL: url}).Cart().Fetch(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestAddResponse_QuantityFor(t *testing.T) {
	resp := &AddResponse{Items: []RemoteLine{
		{ProductID: "p1", Size: "7", Quantity: 2},
		{ProductID: "p1", Size: "8", Quantity: 5},
	}}
	q, ok := resp.QuantityFor("p1", "8")
	assert.True(t, ok)
	assert.Equal(t, 5, q)

	_, ok = resp.QuantityFor("p2", "")
	assert.False(t, ok)

	var empty *AddResponse
	_, ok = empty.QuantityFor("p1", "")
	assert.False(t, ok)
}
