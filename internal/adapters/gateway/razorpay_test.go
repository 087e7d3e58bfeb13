package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"sangam-memberhub/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrder(t *testing.T) {
	t.Run("converts rupees to paise and authenticates", func(t *testing.T) {
		var gotPath, gotUser, gotPass string
		var gotPayload map[string]interface{}

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotUser, gotPass, _ = r.BasicAuth()
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
			json.NewEncoder(w).Encode(Order{
				ID:       "order_abc",
				Amount:   20000,
				Currency: "INR",
				Receipt:  gotPayload["receipt"].(string),
				Status:   "created",
			})
		}))
		defer srv.Close()

		client := NewClient(Config{KeyID: "key_id", KeySecret: "key_secret", BaseURL: srv.URL})

		order, err := client.CreateOrder(context.Background(), 200, "INR", "memb_1_abcd1234")
		require.NoError(t, err)
		assert.Equal(t, "order_abc", order.ID)
		assert.Equal(t, "/orders", gotPath)
		assert.Equal(t, "key_id", gotUser)
		assert.Equal(t, "key_secret", gotPass)
		assert.Equal(t, float64(20000), gotPayload["amount"])
		assert.Equal(t, "INR", gotPayload["currency"])
		assert.Equal(t, "memb_1_abcd1234", gotPayload["receipt"])
	})

	t.Run("non-2xx response surfaces as gateway unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		client := NewClient(Config{KeyID: "k", KeySecret: "s", BaseURL: srv.URL})

		_, err := client.CreateOrder(context.Background(), 200, "INR", "r1")
		assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
	})

	t.Run("unreachable host surfaces as gateway unavailable", func(t *testing.T) {
		client := NewClient(Config{KeyID: "k", KeySecret: "s", BaseURL: "http://127.0.0.1:1"})

		_, err := client.CreateOrder(context.Background(), 200, "INR", "r1")
		assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
	})

	t.Run("breaker opens after consecutive failures", func(t *testing.T) {
		var hits int
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits++
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		client := NewClient(Config{KeyID: "k", KeySecret: "s", BaseURL: srv.URL})

		for i := 0; i < 5; i++ {
			_, err := client.CreateOrder(context.Background(), 200, "INR", "r1")
			assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
		}

		// After three consecutive failures the breaker is open and later
		// calls fail fast without reaching the server.
		assert.Equal(t, 3, hits)
	})

	t.Run("malformed response surfaces as gateway unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}))
		defer srv.Close()

		client := NewClient(Config{KeyID: "k", KeySecret: "s", BaseURL: srv.URL})

		_, err := client.CreateOrder(context.Background(), 200, "INR", "r1")
		assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
	})
}
