package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

type AlphaVantageClient struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	timeout time.Duration
}

type overviewResp struct {
	ErrorMessage         string `json:"Error Message"`
	Note                 string `json:"Note"`
	Information          string `json:"Information"`
	Symbol               string `json:"Symbol"`
	Name                 string `json:"Name"`
	Sector               string `json:"Sector"`
	MarketCapitalization string `json:"MarketCapitalization"`
	PERatio              string `json:"PERatio"`
	ReturnOnEquityTTM    string `json:"ReturnOnEquityTTM"`
	DebtToEquityRatio    string `json:"DebtToEquityRatio"`
	Beta                 string `json:"Beta"`
}

type dailyResp struct {
	ErrorMessage string              `json:"Error Message"`
	Note         string              `json:"Note"`
	Information  string              `json:"Information"`
	TimeSeries   map[string]dailyBar `json:"Time Series (Daily)"`
}

type dailyBar struct {
	Close string `json:"4. close"`
}

func NewAlphaVantageClient(timeout time.Duration) *AlphaVantageClient {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &AlphaVantageClient{
		baseURL: "https://www.alphavantage.co/query",
		client: &http.Client{
			Timeout: timeout,
		},
		// free tier allows 5 requests per minute
		limiter: rate.NewLimiter(rate.Every(12*time.Second), 5),
		timeout: timeout,
	}
}

func (c *AlphaVantageClient) FetchOverview(ctx context.Context, ticker, apiKey string) (Fundamentals, FetchResult) {
	if apiKey == "" {
		return Fundamentals{}, keyMissingResult()
	}

	params := url.Values{}
	params.Set("function", "OVERVIEW")
	params.Set("symbol", ticker)
	params.Set("apikey", apiKey)

	var payload overviewResp
	if err := c.doQuery(ctx, params, &payload); err != nil {
		return Fundamentals{}, transportError(err)
	}
	if msg := vendorNotice(payload.ErrorMessage, payload.Note, payload.Information); msg != "" {
		return Fundamentals{}, vendorError(msg)
	}

	return Fundamentals{
		Symbol:               payload.Symbol,
		Name:                 payload.Name,
		Sector:               payload.Sector,
		MarketCapitalization: payload.MarketCapitalization,
		PERatio:              payload.PERatio,
		ReturnOnEquityTTM:    payload.ReturnOnEquityTTM,
		DebtToEquityRatio:    payload.DebtToEquityRatio,
		Beta:                 payload.Beta,
	}, okResult()
}

func (c *AlphaVantageClient) FetchDailySeries(ctx context.Context, ticker, apiKey string) ([]PricePoint, FetchResult) {
	if apiKey == "" {
		return nil, keyMissingResult()
	}

	params := url.Values{}
	params.Set("function", "TIME_SERIES_DAILY_ADJUSTED")
	params.Set("symbol", ticker)
	params.Set("outputsize", "compact")
	params.Set("apikey", apiKey)

	var payload dailyResp
	if err := c.doQuery(ctx, params, &payload); err != nil {
		return nil, transportError(err)
	}
	if msg := vendorNotice(payload.ErrorMessage, payload.Note, payload.Information); msg != "" {
		return nil, vendorError(msg)
	}

	return parseDailySeries(payload.TimeSeries), okResult()
}

func (c *AlphaVantageClient) doQuery(ctx context.Context, params url.Values, out any) error {
	timeout := c.timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("invalid base url: %w", err)
	}
	u.RawQuery = params.Encode()

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		resp, err := c.client.Do(req)
		if err != nil {
			if shouldRetry(err) && attempt < 2 {
				lastErr = err
				time.Sleep(150 * time.Millisecond)
				continue
			}
			return fmt.Errorf("request alphavantage: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return fmt.Errorf("alphavantage status %d", resp.StatusCode)
		}
		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			if shouldRetry(err) && attempt < 2 {
				lastErr = err
				time.Sleep(150 * time.Millisecond)
				continue
			}
			return fmt.Errorf("decode alphavantage: %w", err)
		}
		lastErr = nil
		break
	}
	if lastErr != nil {
		return fmt.Errorf("request alphavantage: %w", lastErr)
	}
	return nil
}

func parseDailySeries(ts map[string]dailyBar) []PricePoint {
	out := make([]PricePoint, 0, len(ts))
	for date, bar := range ts {
		if _, err := time.Parse("2006-01-02", date); err != nil {
			continue
		}
		closeVal, err := strconv.ParseFloat(strings.TrimSpace(bar.Close), 64)
		if err != nil || math.IsNaN(closeVal) || math.IsInf(closeVal, 0) {
			continue
		}
		out = append(out, PricePoint{Date: date, Close: closeVal})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) {
		return true
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "connection reset") || strings.Contains(msg, "reset by peer") {
		return true
	}
	return false
}
