package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newCatalogServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/products", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":1,"title":"Backpack","price":109.95,"description":"Fits laptops","category":"bags","image":"https://img/1.jpg"},
			{"id":2,"title":"Shirt","price":"22.3","category":"clothing","image":"https://img/2.jpg"},
			{"id":3,"title":"Broken","price":null}
		]`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestClientListProducts(t *testing.T) {
	server := newCatalogServer(t)
	client := NewClient(server.URL+"/", time.Second, zap.NewNop())

	products, err := client.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)

	assert.Equal(t, int64(1), products[0].ExternalID)
	assert.Equal(t, "Backpack", products[0].Title)
	assert.Equal(t, "109.95", products[0].Price.String())
	assert.Equal(t, "https://img/1.jpg", products[0].ImageURL)
	assert.Equal(t, "22.3", products[1].Price.String())
}

func TestClientListProductsUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)
	client := NewClient(server.URL, time.Second, zap.NewNop())

	_, err := client.ListProducts(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestNullableDecimalUnmarshal(t *testing.T) {
	tests := []struct {
		input   string
		valid   bool
		value   string
		wantErr bool
	}{
		{input: `12.5`, valid: true, value: "12.5"},
		{input: `"12.5"`, valid: true, value: "12.5"},
		{input: `null`, valid: false},
		{input: `""`, valid: false},
		{input: `"abc"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var n NullableDecimal
			err := n.UnmarshalJSON([]byte(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.valid, n.Valid)
			if tt.valid {
				assert.Equal(t, tt.value, n.Decimal.String())
			}
		})
	}
}
