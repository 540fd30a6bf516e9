package opensearch

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/mstgnz/paybox/infra/config"
	"github.com/mstgnz/paybox/infra/logger"
)

const eventIndex = "paybox-payment-events"

// Client wraps the OpenSearch client
type Client struct {
	client  *opensearch.Client
	enabled bool
	index   string
}

// NewClient creates a new OpenSearch client and makes sure the event index exists
func NewClient(cfg *config.AppConfig) (*Client, error) {
	opensearchConfig := opensearch.Config{
		Addresses: []string{cfg.OpenSearchURL},
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
		MaxRetries:    3,
		RetryOnStatus: []int{502, 503, 504, 429},
		RetryBackoff: func(i int) time.Duration {
			return time.Duration(i) * 100 * time.Millisecond
		},
	}

	if cfg.OpenSearchUser != "" && cfg.OpenSearchPass != "" {
		opensearchConfig.Username = cfg.OpenSearchUser
		opensearchConfig.Password = cfg.OpenSearchPass
	}

	client, err := opensearch.NewClient(opensearchConfig)
	if err != nil {
		return nil, err
	}

	osClient := &Client{
		client:  client,
		enabled: cfg.EnableLogging,
		index:   eventIndex,
	}

	if osClient.enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := osClient.EnsureIndex(ctx); err != nil {
			logger.Warn("Failed to set up OpenSearch index", logger.LogContext{
				Fields: map[string]any{"index": osClient.index, "error": err.Error()},
			})
		}
	}

	return osClient, nil
}

// GetClient returns the underlying OpenSearch client
func (c *Client) GetClient() *opensearch.Client {
	return c.client
}

// IsEnabled returns whether OpenSearch logging is enabled
func (c *Client) IsEnabled() bool {
	return c.enabled
}

// IndexName is the index payment events are written to
func (c *Client) IndexName() string {
	return c.index
}

// EnsureIndex creates the event index with its mapping when missing
func (c *Client) EnsureIndex(ctx context.Context) error {
	exists := opensearchapi.IndicesExistsRequest{Index: []string{c.index}}
	res, err := exists.Do(ctx, c.client)
	if err != nil {
		return err
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	create := opensearchapi.IndicesCreateRequest{
		Index: c.index,
		Body:  strings.NewReader(eventMapping),
	}
	res, err = create.Do(ctx, c.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index creation error: %s", res.String())
	}

	logger.Info("Created OpenSearch index", logger.LogContext{Fields: map[string]any{"index": c.index}})
	return nil
}

const eventMapping = `{
	"mappings": {
		"properties": {
			"timestamp":     {"type": "date", "format": "strict_date_optional_time||epoch_millis"},
			"kind":          {"type": "keyword"},
			"provider":      {"type": "keyword"},
			"operation_id":  {"type": "keyword"},
			"payment_id":    {"type": "keyword"},
			"account_id":    {"type": "long"},
			"amount":        {"type": "double"},
			"currency":      {"type": "keyword"},
			"status":        {"type": "keyword"},
			"error":         {"type": "text"},
			"processing_ms": {"type": "long"},
			"params":        {"type": "object", "enabled": false}
		}
	},
	"settings": {
		"number_of_shards": 1,
		"number_of_replicas": 0
	}
}`
