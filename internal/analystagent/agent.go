package analystagent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/schema"
)

type Config struct {
	Enabled    bool   `yaml:"enabled"`
	Model      string `yaml:"model"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	ByAzure    bool   `yaml:"by_azure"`
	APIVersion string `yaml:"api_version"`
	TimeoutMs  int    `yaml:"timeout_ms"`
}

type Input struct {
	Ticker       string   `json:"ticker"`
	QuantScore   int      `json:"quant_score"`
	PE           float64  `json:"pe"`
	ROEPct       float64  `json:"roe_pct"`
	DebtRatio    float64  `json:"debt_ratio"`
	Beta         float64  `json:"beta"`
	TenYearYield float64  `json:"ten_year_yield,omitempty"`
	PassedChecks []string `json:"passed_checks,omitempty"`
	FailedChecks []string `json:"failed_checks,omitempty"`
	DataWarnings []string `json:"data_warnings,omitempty"`
}

type Commentary struct {
	Summary    string   `json:"summary"`
	Strengths  []string `json:"strengths"`
	Risks      []string `json:"risks"`
	Confidence float64  `json:"confidence"`
}

type Agent struct {
	enabled        bool
	model          *openai.ChatModel
	modelName      string
	disabledReason string
}

func New(cfg Config) *Agent {
	if !cfg.Enabled {
		return &Agent{enabled: false, disabledReason: "disabled by config"}
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Model == "" {
		cfg.Model = os.Getenv("OPENAI_MODEL")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("OPENAI_BASE_URL")
	}
	if cfg.APIKey == "" || cfg.Model == "" {
		log.Printf("analystagent disabled: missing api key or model")
		return &Agent{enabled: false, disabledReason: "api_key or model missing"}
	}

	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	model, err := openai.NewChatModel(context.Background(), &openai.ChatModelConfig{
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		BaseURL:    cfg.BaseURL,
		ByAzure:    cfg.ByAzure,
		APIVersion: cfg.APIVersion,
		Timeout:    timeout,
	})
	if err != nil {
		log.Printf("analystagent init error: %v", err)
		return &Agent{enabled: false, disabledReason: "init failed"}
	}

	return &Agent{enabled: true, model: model, modelName: cfg.Model}
}

func (a *Agent) Enabled() bool {
	return a != nil && a.enabled && a.model != nil
}

func (a *Agent) Ping(ctx context.Context) (map[string]any, error) {
	if !a.Enabled() {
		reason := a.disabledReason
		if reason == "" {
			reason = "not configured"
		}
		return map[string]any{
			"ok":     true,
			"mode":   "fallback",
			"reason": reason,
		}, nil
	}

	start := time.Now()
	messages := []*schema.Message{
		schema.SystemMessage("Return ONLY valid JSON: {\"ok\":true}. No other text."),
		schema.UserMessage("ping"),
	}
	_, err := a.model.Generate(ctx, messages)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		logLLMError(err)
		return map[string]any{
			"ok":     true,
			"mode":   "fallback",
			"reason": "llm error",
		}, err
	}
	return map[string]any{
		"ok":         true,
		"mode":       "llm",
		"model":      a.modelName,
		"latency_ms": latency,
	}, nil
}

func (a *Agent) Evaluate(ctx context.Context, in Input) (Commentary, error) {
	if !a.Enabled() {
		return FallbackCommentary(in), nil
	}

	payload, _ := json.Marshal(in)

	system := `You are an equity analyst assistant. Output ONLY valid JSON.
Rules:
- Comment only on the ratios and checks supplied; never invent numbers.
- No buy/sell calls, no price targets, no return forecasts.
- Keys: summary (one sentence), strengths (1-3 short strings), risks (1-3 short strings), confidence (0.0-1.0).
- When data_warnings is non-empty, mention the data gaps in risks and lower confidence.`

	messages := []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(fmt.Sprintf("Report: %s", string(payload))),
	}

	resp, err := a.model.Generate(ctx, messages)
	if err != nil {
		logLLMErrorOnce(err)
		return FallbackCommentary(in), err
	}
	text := strings.TrimSpace(resp.Content)
	logLLMOutput(text)

	out, err := parseCommentary(text)
	if err != nil {
		return FallbackCommentary(in), err
	}
	return sanitize(out), nil
}

func FormatMarkdown(ticker string, c Commentary) string {
	if ticker == "" {
		ticker = "analysis"
	}
	lines := []string{
		fmt.Sprintf("### %s", ticker),
		c.Summary,
		"",
		"**Strengths**:",
	}
	for _, s := range c.Strengths {
		lines = append(lines, fmt.Sprintf("- %s", s))
	}
	lines = append(lines, "", "**Risks**:")
	for _, r := range c.Risks {
		lines = append(lines, fmt.Sprintf("- %s", r))
	}
	lines = append(lines, "", fmt.Sprintf("**Confidence**: %.2f", c.Confidence))
	return strings.Join(lines, "\n")
}

var strengthPhrases = map[string]string{
	"pe":   "earnings multiple sits below the value ceiling of 20",
	"roe":  "return on equity clears the 15% profitability bar",
	"debt": "leverage stays under the 120 debt/equity ceiling",
	"beta": "beta under 1.3 keeps volatility close to the market",
}

var riskPhrases = map[string]string{
	"pe":   "earnings multiple failed the value check or had no usable data",
	"roe":  "return on equity is below the bar or missing",
	"debt": "leverage is above the comfort ceiling or missing",
	"beta": "the shares swing harder than the market or beta is missing",
}

func FallbackCommentary(in Input) Commentary {
	summary := fmt.Sprintf("%s passed %d of 4 quantitative checks for a score of %d.",
		strings.ToUpper(in.Ticker), len(in.PassedChecks), in.QuantScore)
	conf := 0.4
	if in.QuantScore >= 75 {
		conf = 0.6
	} else if in.QuantScore == 50 {
		conf = 0.5
	}

	var strengths []string
	for _, name := range in.PassedChecks {
		if p, ok := strengthPhrases[name]; ok {
			strengths = append(strengths, p)
		}
	}
	var risks []string
	for _, name := range in.FailedChecks {
		if p, ok := riskPhrases[name]; ok {
			risks = append(risks, p)
		}
	}
	if len(in.DataWarnings) > 0 {
		risks = append(risks, "data gaps reduced the reliability of this screen")
		conf -= 0.1
	}

	return sanitize(Commentary{
		Summary:    summary,
		Strengths:  strengths,
		Risks:      risks,
		Confidence: conf,
	})
}

func sanitize(in Commentary) Commentary {
	out := in
	if out.Summary == "" {
		out.Summary = "quantitative screen updated"
	}
	if len(out.Strengths) == 0 {
		out.Strengths = []string{"no checks passed"}
	}
	if len(out.Strengths) > 3 {
		out.Strengths = out.Strengths[:3]
	}
	if len(out.Risks) == 0 {
		out.Risks = []string{"no red flags from the four checks; verify with fuller research"}
	}
	if len(out.Risks) > 3 {
		out.Risks = out.Risks[:3]
	}
	if out.Confidence < 0 {
		out.Confidence = 0
	}
	if out.Confidence > 1 {
		out.Confidence = 1
	}
	return out
}

func parseCommentary(text string) (Commentary, error) {
	var out Commentary
	if err := json.Unmarshal([]byte(text), &out); err == nil {
		return out, nil
	}
	jsonStr := extractFirstJSONObject(text)
	if jsonStr == "" {
		return Commentary{}, fmt.Errorf("no json object found")
	}
	if err := json.Unmarshal([]byte(jsonStr), &out); err != nil {
		return Commentary{}, fmt.Errorf("parse commentary: %w", err)
	}
	return out, nil
}

func extractFirstJSONObject(s string) string {
	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func logLLMError(err error) {
	apiErr := &openai.APIError{}
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if len(msg) > 300 {
			msg = msg[:300] + "..."
		}
		log.Printf("analystagent api error: status=%d message=%s", apiErr.HTTPStatusCode, msg)
		return
	}
	log.Printf("analystagent error: %v", err)
}

// lastLLMLog is the unix nanos of the last logged llm error. The CAS keeps
// concurrent callers to one line per window.
var lastLLMLog atomic.Int64

func logLLMErrorOnce(err error) {
	now := time.Now().UnixNano()
	last := lastLLMLog.Load()
	if now-last < int64(5*time.Second) {
		return
	}
	if !lastLLMLog.CompareAndSwap(last, now) {
		return
	}
	logLLMError(err)
}

func logLLMOutput(text string) {
	const maxLen = 800
	out := text
	if len(out) > maxLen {
		out = out[:maxLen] + "..."
	}
	log.Printf("analystagent output: %s", out)
}
