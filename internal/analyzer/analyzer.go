package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"stock-analyzer/internal/analystagent"
	"stock-analyzer/internal/cache"
	"stock-analyzer/internal/market"
	"stock-analyzer/internal/quant"
)

const (
	keyOverview = "overview:"
	keyDaily    = "daily:"
	keyMacro    = "macro:"
)

type FundamentalsFetcher interface {
	FetchOverview(ctx context.Context, ticker, apiKey string) (market.Fundamentals, market.FetchResult)
	FetchDailySeries(ctx context.Context, ticker, apiKey string) ([]market.PricePoint, market.FetchResult)
}

type MacroFetcher interface {
	FetchLatestRate(ctx context.Context, seriesID, apiKey string) (market.MacroRate, market.FetchResult)
}

type Config struct {
	AlphaVantageKey string
	FredKey         string
	CacheTTL        time.Duration
	MacroSeriesID   string
}

type Service struct {
	cfg   Config
	av    FundamentalsFetcher
	fred  MacroFetcher
	cache cache.Cache
	agent *analystagent.Agent
}

type Metrics struct {
	PE        float64 `json:"pe"`
	ROEPct    float64 `json:"roe_pct"`
	DebtRatio float64 `json:"debt_ratio"`
	Beta      float64 `json:"beta"`
}

type FetchStatuses struct {
	Fundamentals market.FetchResult `json:"fundamentals"`
	Prices       market.FetchResult `json:"prices"`
	Macro        market.FetchResult `json:"macro"`
}

type Report struct {
	Ticker             string                  `json:"ticker"`
	GeneratedAt        string                  `json:"generated_at"`
	Fundamentals       market.Fundamentals     `json:"fundamentals"`
	Metrics            Metrics                 `json:"metrics"`
	Factors            []quant.Factor          `json:"factors"`
	QuantScore         int                     `json:"quant_score"`
	Prices             []market.PricePoint     `json:"prices"`
	Macro              market.MacroRate        `json:"macro"`
	Statuses           FetchStatuses           `json:"statuses"`
	Warnings           []string                `json:"warnings"`
	Commentary         analystagent.Commentary `json:"commentary"`
	CommentaryMode     string                  `json:"commentary_mode"`
	CommentaryMarkdown string                  `json:"commentary_markdown"`
}

func New(cfg Config, av FundamentalsFetcher, fred MacroFetcher, c cache.Cache, agent *analystagent.Agent) *Service {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	if cfg.MacroSeriesID == "" {
		cfg.MacroSeriesID = "DGS10"
	}
	return &Service{
		cfg:   cfg,
		av:    av,
		fred:  fred,
		cache: c,
		agent: agent,
	}
}

func (s *Service) GetFundamentals(ctx context.Context, ticker string) (market.Fundamentals, market.FetchResult) {
	key := keyOverview + ticker
	if b, ok := s.cacheGet(key); ok {
		var rec market.Fundamentals
		if err := json.Unmarshal(b, &rec); err == nil {
			return rec, market.FetchResult{Status: market.StatusOK, Cached: true}
		}
	}
	rec, res := s.av.FetchOverview(ctx, ticker, s.cfg.AlphaVantageKey)
	if res.Status == market.StatusOK {
		s.cachePut(key, rec)
	}
	return rec, res
}

func (s *Service) GetPrices(ctx context.Context, ticker string) ([]market.PricePoint, market.FetchResult) {
	key := keyDaily + ticker
	if b, ok := s.cacheGet(key); ok {
		var series []market.PricePoint
		if err := json.Unmarshal(b, &series); err == nil {
			return series, market.FetchResult{Status: market.StatusOK, Cached: true}
		}
	}
	series, res := s.av.FetchDailySeries(ctx, ticker, s.cfg.AlphaVantageKey)
	if res.Status == market.StatusOK {
		s.cachePut(key, series)
	}
	return series, res
}

func (s *Service) GetMacroRate(ctx context.Context) (market.MacroRate, market.FetchResult) {
	key := keyMacro + s.cfg.MacroSeriesID
	if b, ok := s.cacheGet(key); ok {
		var rate market.MacroRate
		if err := json.Unmarshal(b, &rate); err == nil {
			return rate, market.FetchResult{Status: market.StatusOK, Cached: true}
		}
	}
	rate, res := s.fred.FetchLatestRate(ctx, s.cfg.MacroSeriesID, s.cfg.FredKey)
	if res.Status == market.StatusOK {
		s.cachePut(key, rate)
	}
	return rate, res
}

// Analyze runs the three fetches concurrently; none of them depends on
// another and a failure in one never blocks the rest.
func (s *Service) Analyze(ctx context.Context, ticker string) Report {
	var (
		rec      market.Fundamentals
		recRes   market.FetchResult
		prices   []market.PricePoint
		priceRes market.FetchResult
		macro    market.MacroRate
		macroRes market.FetchResult
	)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		rec, recRes = s.GetFundamentals(ctx, ticker)
	}()
	go func() {
		defer wg.Done()
		prices, priceRes = s.GetPrices(ctx, ticker)
	}()
	go func() {
		defer wg.Done()
		macro, macroRes = s.GetMacroRate(ctx)
	}()
	wg.Wait()

	metrics := Metrics{
		PE:        quant.CoerceFloat(rec.PERatio, 0),
		ROEPct:    quant.NormalizeROE(quant.CoerceFloat(rec.ReturnOnEquityTTM, 0)),
		DebtRatio: quant.CoerceFloat(rec.DebtToEquityRatio, 0),
		Beta:      quant.CoerceFloat(rec.Beta, 1),
	}
	score, factors := quant.Evaluate(quant.Inputs{
		PE:        metrics.PE,
		ROEPct:    metrics.ROEPct,
		DebtRatio: metrics.DebtRatio,
		Beta:      metrics.Beta,
	})

	statuses := FetchStatuses{
		Fundamentals: recRes,
		Prices:       priceRes,
		Macro:        macroRes,
	}
	warnings := buildWarnings(statuses, rec, prices, macro)

	report := Report{
		Ticker:       ticker,
		GeneratedAt:  time.Now().Format(time.RFC3339),
		Fundamentals: rec,
		Metrics:      metrics,
		Factors:      factors,
		QuantScore:   score,
		Prices:       prices,
		Macro:        macro,
		Statuses:     statuses,
		Warnings:     warnings,
	}

	in := analystagent.Input{
		Ticker:       ticker,
		QuantScore:   score,
		PE:           metrics.PE,
		ROEPct:       metrics.ROEPct,
		DebtRatio:    metrics.DebtRatio,
		Beta:         metrics.Beta,
		PassedChecks: factorNames(factors, true),
		FailedChecks: factorNames(factors, false),
		DataWarnings: warnings,
	}
	if macro.Available {
		in.TenYearYield = macro.Value
	}
	report.Commentary = analystagent.FallbackCommentary(in)
	report.CommentaryMode = "fallback"
	if s.agent.Enabled() {
		if c, err := s.agent.Evaluate(ctx, in); err == nil {
			report.Commentary = c
			report.CommentaryMode = "llm"
		} else {
			log.Printf("analyst eval error: %v", err)
		}
	}
	report.CommentaryMarkdown = analystagent.FormatMarkdown(ticker, report.Commentary)

	return report
}

// WarmLoop refreshes the cache for a fixed ticker list until ctx ends.
// Entries go through NormalizeTicker so warmed keys match request keys;
// invalid entries are skipped.
func (s *Service) WarmLoop(ctx context.Context, tickers []string, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	watchlist := make([]string, 0, len(tickers))
	for _, raw := range tickers {
		t, err := NormalizeTicker(raw)
		if err != nil {
			log.Printf("watchlist entry skipped: %v", err)
			continue
		}
		watchlist = append(watchlist, t)
	}
	for {
		for _, t := range watchlist {
			if ctx.Err() != nil {
				return
			}
			report := s.Analyze(ctx, t)
			log.Printf("warm refresh %s: score=%d warnings=%d", t, report.QuantScore, len(report.Warnings))
		}
		if s.cache != nil {
			s.cache.Prune()
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

func (s *Service) cacheGet(key string) ([]byte, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.Get(key)
}

func (s *Service) cachePut(key string, v any) {
	if s.cache == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("cache marshal error: %v", err)
		return
	}
	s.cache.Set(key, b, s.cfg.CacheTTL)
}

func buildWarnings(st FetchStatuses, rec market.Fundamentals, prices []market.PricePoint, macro market.MacroRate) []string {
	warnings := []string{}

	switch st.Fundamentals.Status {
	case market.StatusKeyMissing:
		warnings = append(warnings, "fundamentals skipped: ALPHAVANTAGE_KEY not configured")
	case market.StatusTransportError:
		warnings = append(warnings, fmt.Sprintf("fundamentals fetch failed: %s", st.Fundamentals.Reason))
	case market.StatusVendorError:
		warnings = append(warnings, fmt.Sprintf("fundamentals provider says: %s", st.Fundamentals.Reason))
	default:
		if rec.Empty() {
			warnings = append(warnings, "fundamentals empty, score uses defaults")
		}
	}

	switch st.Prices.Status {
	case market.StatusKeyMissing:
		warnings = append(warnings, "price data unavailable: ALPHAVANTAGE_KEY not configured")
	case market.StatusTransportError:
		warnings = append(warnings, fmt.Sprintf("price data unavailable: %s", st.Prices.Reason))
	case market.StatusVendorError:
		warnings = append(warnings, fmt.Sprintf("price provider says: %s", st.Prices.Reason))
	default:
		if len(prices) == 0 {
			warnings = append(warnings, "price data unavailable")
		}
	}

	switch st.Macro.Status {
	case market.StatusKeyMissing:
		warnings = append(warnings, "10-year yield skipped: FRED_KEY not configured")
	case market.StatusTransportError:
		warnings = append(warnings, fmt.Sprintf("10-year yield fetch failed: %s", st.Macro.Reason))
	case market.StatusVendorError:
		warnings = append(warnings, fmt.Sprintf("macro provider says: %s", st.Macro.Reason))
	default:
		if !macro.Available {
			warnings = append(warnings, "10-year yield unavailable")
		}
	}

	return warnings
}

func factorNames(factors []quant.Factor, passed bool) []string {
	var out []string
	for _, f := range factors {
		if f.Passed == passed {
			out = append(out, f.Name)
		}
	}
	return out
}

func NormalizeTicker(raw string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(raw))
	if t == "" {
		return "", fmt.Errorf("ticker is required")
	}
	if len(t) > 10 {
		return "", fmt.Errorf("ticker too long: %q", raw)
	}
	for i := 0; i < len(t); i++ {
		c := t[i]
		if (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '.' || c == '-' {
			continue
		}
		return "", fmt.Errorf("invalid ticker: %q", raw)
	}
	return t, nil
}
