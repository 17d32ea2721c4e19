package clients

import (
	"net/http"
	"time"

	"github.com/hirokisan/bybit/v2"
)

// NewBybitClient creates a Bybit client, authenticated only when credentials are given.
// Requests are bounded by HTTPTimeout since the SDK takes no context.
func NewBybitClient(apiKey, apiSecret string) *bybit.Client {
	return newBybitClient(apiKey, apiSecret, HTTPTimeout)
}

func newBybitClient(apiKey, apiSecret string, timeout time.Duration) *bybit.Client {
	client := bybit.NewClient().WithHTTPClient(&http.Client{Timeout: timeout})
	if apiKey != "" && apiSecret != "" {
		client = client.WithAuth(apiKey, apiSecret)
	}

	return client
}
