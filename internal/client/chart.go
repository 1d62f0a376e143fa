package client

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"

	"fargoat/internal/models"
)

// ChartClient fetches chart data from the analytics endpoint
type ChartClient struct {
	endpoint string
	client   *http.Client
}

func NewChartClient(endpoint string, client *http.Client) *ChartClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &ChartClient{
		endpoint: endpoint,
		client:   client,
	}
}

// FetchChartData GETs {timestamp, values:[tvl, dau, trx]} and remaps it
func (c *ChartClient) FetchChartData(ctx context.Context) (*models.ChartData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build chart request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chart request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chart endpoint returned %s", resp.Status)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read chart response: %w", err)
	}

	return ParseChartData(payload)
}

// ParseChartData remaps a chart payload to models.ChartData
func ParseChartData(payload []byte) (*models.ChartData, error) {
	if !gjson.ValidBytes(payload) {
		return nil, fmt.Errorf("chart response is not valid JSON")
	}

	timestamp := gjson.GetBytes(payload, "timestamp")
	if timestamp.Type != gjson.Number {
		return nil, fmt.Errorf("chart response has no numeric timestamp")
	}

	values := gjson.GetBytes(payload, "values")
	if !values.IsArray() || len(values.Array()) < 3 {
		return nil, fmt.Errorf("chart response needs 3 values, got %s", values.Raw)
	}

	var parsed [3]float64
	for i, v := range values.Array()[:3] {
		if v.Type != gjson.Number {
			return nil, fmt.Errorf("chart value %d is not a number", i)
		}
		parsed[i] = v.Float()
	}

	return &models.ChartData{
		Timestamp: timestamp.Int(),
		TVL:       parsed[0],
		DAU:       parsed[1],
		TRX:       parsed[2],
	}, nil
}
