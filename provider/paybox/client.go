package paybox

import (
	"context"
	"fmt"
	"time"

	"github.com/mstgnz/paybox/provider"
)

const providerName = "paybox"

// Client posts signed parameter sets to the provider and reads the XML answer.
// Calls are made once; retrying is left to the caller.
type Client struct {
	cfg      Config
	http     *provider.ProviderHTTPClient
	recorder Recorder
}

// NewClient creates a provider client with the configured timeout
func NewClient(cfg Config, recorder Recorder) *Client {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Client{
		cfg:      cfg,
		http:     provider.NewProviderHTTPClient(provider.CreateHTTPClientConfig(cfg.APIURL, cfg.timeout())),
		recorder: recorder,
	}
}

// HTTP exposes the transport, mainly for tests
func (c *Client) HTTP() *provider.ProviderHTTPClient {
	return c.http
}

// InitPayment calls init_payment.php
func (c *Client) InitPayment(ctx context.Context, params map[string]string) (map[string]string, error) {
	return c.post(ctx, OpInitPayment, "/"+OpInitPayment, params)
}

// CardInit calls the saved-card init endpoint
func (c *Client) CardInit(ctx context.Context, params map[string]string) (map[string]string, error) {
	return c.post(ctx, OpCardInit, fmt.Sprintf("/v1/merchant/%s/card/init", c.cfg.MerchantID), params)
}

// CardDirect calls the saved-card direct endpoint
func (c *Client) CardDirect(ctx context.Context, params map[string]string) (map[string]string, error) {
	return c.post(ctx, OpCardDirect, fmt.Sprintf("/v1/merchant/%s/card/direct", c.cfg.MerchantID), params)
}

func (c *Client) post(ctx context.Context, operation, endpoint string, params map[string]string) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.timeout())
	defer cancel()

	start := time.Now()
	resp, err := c.http.SendForm(ctx, &provider.HTTPRequest{
		Endpoint: endpoint,
		FormData: params,
	})
	if err != nil {
		c.recorder.ProviderCall(operation, "network_error", time.Since(start))
		return nil, networkError(operation, err)
	}

	fields, err := ParseXMLFields(resp.Body)
	if err != nil {
		c.recorder.ProviderCall(operation, "malformed", time.Since(start))
		return nil, ProtocolViolation(fmt.Sprintf("%s: %v", operation, err))
	}

	c.recorder.ProviderCall(operation, statusOf(fields), time.Since(start))
	return fields, nil
}

func statusOf(fields map[string]string) string {
	if s := fields["pg_status"]; s != "" {
		return s
	}
	return "unknown"
}
