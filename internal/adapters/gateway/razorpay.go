package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"sangam-memberhub/internal/core/domain"

	"github.com/sony/gobreaker"
)

// Config holds payment gateway configuration
type Config struct {
	KeyID     string
	KeySecret string
	BaseURL   string
	Timeout   time.Duration
}

// Order represents a gateway-side charge handle. Amount is in paise; the
// core works in whole rupees and converts only at this boundary.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// Client talks to the Razorpay Orders API. All calls happen strictly
// outside the local DB transaction: a slow gateway must never hold a row
// lock.
type Client struct {
	config  Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewClient creates a new gateway client
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.razorpay.com/v1"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "razorpay",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("⚠️ Gateway breaker %s: %s -> %s", name, from, to)
		},
	})

	return &Client{
		config:  cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
	}
}

// CreateOrder creates a gateway order for the given amount in whole rupees.
// Any transport failure, non-2xx response or open breaker surfaces as
// domain.ErrGatewayUnavailable so the caller can leave local state untouched
// and retry later.
func (c *Client) CreateOrder(ctx context.Context, amountRupees int64, currency, receipt string) (*Order, error) {
	payload := map[string]interface{}{
		"amount":   amountRupees * 100, // rupees -> paise
		"currency": currency,
		"receipt":  receipt,
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.postOrder(ctx, payload)
	})
	if err != nil {
		log.Printf("❌ Gateway order create failed: %v", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}

	return result.(*Order), nil
}

func (c *Client) postOrder(ctx context.Context, payload map[string]interface{}) (*Order, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.config.KeyID, c.config.KeySecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var order Order
	if err := json.Unmarshal(respBody, &order); err != nil {
		return nil, fmt.Errorf("invalid gateway response: %w", err)
	}

	return &order, nil
}
