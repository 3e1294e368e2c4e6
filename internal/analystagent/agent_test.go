package analystagent

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"strings"
	"sync"
	"testing"
)

func TestNewDisabledByConfig(t *testing.T) {
	agent := New(Config{Enabled: false})
	if agent == nil {
		t.Fatal("New should never return nil")
	}
	if agent.Enabled() {
		t.Fatal("agent should be disabled")
	}
}

func TestNewMissingCredentials(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENAI_MODEL", "")
	agent := New(Config{Enabled: true})
	if agent.Enabled() {
		t.Fatal("agent without key and model should be disabled")
	}
}

func TestDisabledEvaluateFallsBack(t *testing.T) {
	agent := New(Config{Enabled: false})
	in := Input{
		Ticker:       "aapl",
		QuantScore:   75,
		PassedChecks: []string{"pe", "debt", "beta"},
		FailedChecks: []string{"roe"},
	}
	c, err := agent.Evaluate(context.Background(), in)
	if err != nil {
		t.Fatalf("disabled evaluate: %v", err)
	}
	if !strings.Contains(c.Summary, "AAPL") || !strings.Contains(c.Summary, "75") {
		t.Fatalf("summary = %q", c.Summary)
	}
	if len(c.Strengths) != 3 {
		t.Fatalf("strengths = %v, want 3 entries", c.Strengths)
	}
	if len(c.Risks) != 1 {
		t.Fatalf("risks = %v, want 1 entry", c.Risks)
	}
}

func TestFallbackCommentaryWithWarnings(t *testing.T) {
	c := FallbackCommentary(Input{
		Ticker:       "msft",
		QuantScore:   0,
		FailedChecks: []string{"pe", "roe", "debt", "beta"},
		DataWarnings: []string{"price data unavailable"},
	})
	if c.Confidence >= 0.4 {
		t.Fatalf("confidence = %v, data warnings should lower it", c.Confidence)
	}
	if len(c.Risks) != 3 {
		t.Fatalf("risks = %v, want capped at 3", c.Risks)
	}
	if len(c.Strengths) == 0 {
		t.Fatal("sanitize should fill empty strengths")
	}
}

func TestParseCommentaryPlainJSON(t *testing.T) {
	c, err := parseCommentary(`{"summary":"solid screen","strengths":["cheap"],"risks":["levered"],"confidence":0.8}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Summary != "solid screen" || c.Confidence != 0.8 {
		t.Fatalf("got %+v", c)
	}
}

func TestParseCommentaryWrappedInProse(t *testing.T) {
	text := "Here is the assessment:\n```json\n{\"summary\":\"mixed\",\"strengths\":[],\"risks\":[],\"confidence\":0.5}\n```\nDone."
	c, err := parseCommentary(text)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Summary != "mixed" {
		t.Fatalf("got %+v", c)
	}
}

func TestParseCommentaryNoJSON(t *testing.T) {
	if _, err := parseCommentary("I cannot answer that."); err == nil {
		t.Fatal("expected error when no json object present")
	}
}

func TestExtractFirstJSONObject(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{`noise {"a":{"b":2}} trailing {"c":3}`, `{"a":{"b":2}}`},
		{`no braces`, ``},
		{`{"unterminated":`, ``},
	}
	for _, tc := range cases {
		if got := extractFirstJSONObject(tc.in); got != tc.want {
			t.Fatalf("extractFirstJSONObject(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitizeClamps(t *testing.T) {
	c := sanitize(Commentary{
		Summary:    "",
		Strengths:  []string{"a", "b", "c", "d", "e"},
		Risks:      nil,
		Confidence: 1.7,
	})
	if c.Summary == "" {
		t.Fatal("empty summary should be replaced")
	}
	if len(c.Strengths) != 3 {
		t.Fatalf("strengths = %v, want capped at 3", c.Strengths)
	}
	if len(c.Risks) == 0 {
		t.Fatal("empty risks should be filled")
	}
	if c.Confidence != 1 {
		t.Fatalf("confidence = %v, want clamped to 1", c.Confidence)
	}

	c = sanitize(Commentary{Confidence: -0.5})
	if c.Confidence != 0 {
		t.Fatalf("confidence = %v, want clamped to 0", c.Confidence)
	}
}

func TestFormatMarkdown(t *testing.T) {
	md := FormatMarkdown("AAPL", Commentary{
		Summary:    "three of four checks passed",
		Strengths:  []string{"cheap", "profitable"},
		Risks:      []string{"levered"},
		Confidence: 0.6,
	})
	for _, want := range []string{"### AAPL", "- cheap", "- levered", "0.60"} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestLogLLMErrorOnceThrottles(t *testing.T) {
	lastLLMLog.Store(0)
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logLLMErrorOnce(errors.New("model unreachable"))
		}()
	}
	wg.Wait()

	if got := strings.Count(buf.String(), "model unreachable"); got != 1 {
		t.Fatalf("logged %d lines, want 1 inside the throttle window", got)
	}
}
