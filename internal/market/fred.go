package market

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type FredClient struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

type fredResp struct {
	ErrorCode    int               `json:"error_code"`
	ErrorMessage string            `json:"error_message"`
	Observations []fredObservation `json:"observations"`
}

type fredObservation struct {
	Date  string `json:"date"`
	Value string `json:"value"`
}

func NewFredClient(timeout time.Duration) *FredClient {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &FredClient{
		baseURL: "https://api.stlouisfed.org/fred/series/observations",
		client: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
	}
}

func (c *FredClient) FetchLatestRate(ctx context.Context, seriesID, apiKey string) (MacroRate, FetchResult) {
	if apiKey == "" {
		return MacroRate{}, keyMissingResult()
	}

	timeout := c.timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return MacroRate{}, transportError(fmt.Errorf("invalid base url: %w", err))
	}
	params := url.Values{}
	params.Set("series_id", seriesID)
	params.Set("api_key", apiKey)
	params.Set("file_type", "json")
	params.Set("sort_order", "desc")
	params.Set("limit", "1")
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return MacroRate{}, transportError(fmt.Errorf("build request: %w", err))
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return MacroRate{}, transportError(fmt.Errorf("request fred: %w", err))
	}
	defer resp.Body.Close()

	var payload fredResp
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return MacroRate{}, transportError(fmt.Errorf("decode fred: %w", err))
	}
	if payload.ErrorMessage != "" {
		return MacroRate{}, vendorError(payload.ErrorMessage)
	}
	if resp.StatusCode != http.StatusOK {
		return MacroRate{}, transportError(fmt.Errorf("fred status %d", resp.StatusCode))
	}
	if len(payload.Observations) == 0 {
		return MacroRate{}, okResult()
	}

	obs := payload.Observations[0]
	v, err := strconv.ParseFloat(strings.TrimSpace(obs.Value), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		// FRED publishes "." on days without an observation
		return MacroRate{AsOf: obs.Date}, okResult()
	}
	return MacroRate{Value: v, Available: true, AsOf: obs.Date}, okResult()
}
