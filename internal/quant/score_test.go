package quant

import (
	"encoding/json"
	"math"
	"testing"
)

func TestCoerceFloatNumeric(t *testing.T) {
	cases := []struct {
		name string
		in   any
		def  float64
		want float64
	}{
		{"float64", 29.31, 0, 29.31},
		{"float32", float32(1.5), 0, 1.5},
		{"int", 42, 0, 42},
		{"int64", int64(-7), 0, -7},
		{"json number", json.Number("4.25"), 0, 4.25},
		{"numeric string", "18.4", 0, 18.4},
		{"padded string", "  0.147 ", 0, 0.147},
		{"negative string", "-3.2", 0, -3.2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CoerceFloat(tc.in, tc.def); got != tc.want {
				t.Fatalf("CoerceFloat(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestCoerceFloatReturnsDefault(t *testing.T) {
	cases := []struct {
		name string
		in   any
	}{
		{"nil", nil},
		{"none sentinel", "None"},
		{"dash", "-"},
		{"empty string", ""},
		{"garbage", "12abc"},
		{"bool", true},
		{"slice", []string{"1"}},
		{"map", map[string]any{"v": 1}},
		{"nan value", math.NaN()},
		{"inf value", math.Inf(1)},
		{"nan string", "NaN"},
		{"inf string", "+Inf"},
		{"bad json number", json.Number("abc")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CoerceFloat(tc.in, 7.5); got != 7.5 {
				t.Fatalf("CoerceFloat(%v) = %v, want default 7.5", tc.in, got)
			}
			if got := CoerceFloat(tc.in, 0); got != 0 {
				t.Fatalf("CoerceFloat(%v) = %v, want default 0", tc.in, got)
			}
		})
	}
}

func TestNormalizeROE(t *testing.T) {
	cases := []struct {
		name string
		raw  float64
		want float64
	}{
		{"fraction", 0.18, 18},
		{"percent", 18, 18},
		{"boundary one is fraction", 1.0, 100},
		{"just above one stays percent", 1.01, 1.01},
		{"zero", 0, 0},
		{"negative fraction", -0.05, -5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeROE(tc.raw); math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("NormalizeROE(%v) = %v, want %v", tc.raw, got, tc.want)
			}
		})
	}
}

func TestScoreScenarios(t *testing.T) {
	cases := []struct {
		name string
		in   Inputs
		want int
	}{
		{"all pass", Inputs{PE: 10, ROEPct: 20, DebtRatio: 50, Beta: 0.9}, 100},
		{"all fail", Inputs{PE: 30, ROEPct: 5, DebtRatio: 200, Beta: 2.0}, 0},
		{"zero pe earns nothing", Inputs{PE: 0, ROEPct: 20, DebtRatio: 50, Beta: 0.8}, 75},
		{"zero roe earns nothing", Inputs{PE: 10, ROEPct: 0, DebtRatio: 50, Beta: 0.8}, 75},
		{"zero debt earns nothing", Inputs{PE: 10, ROEPct: 20, DebtRatio: 0, Beta: 0.8}, 75},
		{"zero beta earns nothing", Inputs{PE: 10, ROEPct: 20, DebtRatio: 50, Beta: 0}, 75},
		{"defaulted record scores beta only", Inputs{PE: 0, ROEPct: 0, DebtRatio: 0, Beta: 1}, 25},
		{"thresholds are strict", Inputs{PE: 20, ROEPct: 15, DebtRatio: 120, Beta: 1.3}, 0},
		{"negative pe still counts as data", Inputs{PE: -5, ROEPct: 5, DebtRatio: 200, Beta: 2.0}, 25},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Score(tc.in); got != tc.want {
				t.Fatalf("Score(%+v) = %d, want %d", tc.in, got, tc.want)
			}
		})
	}
}

func TestScoreAlwaysMultipleOf25(t *testing.T) {
	values := []float64{-100, -1.3, 0, 0.5, 1, 15, 19.99, 20, 25, 119, 120, 1000}
	for _, pe := range values {
		for _, roe := range values {
			for _, debt := range values {
				for _, beta := range values {
					got := Score(Inputs{PE: pe, ROEPct: roe, DebtRatio: debt, Beta: beta})
					if got < 0 || got > 100 || got%25 != 0 {
						t.Fatalf("Score(pe=%v roe=%v debt=%v beta=%v) = %d, outside {0,25,50,75,100}",
							pe, roe, debt, beta, got)
					}
				}
			}
		}
	}
}

func TestEvaluateFactorBreakdown(t *testing.T) {
	score, factors := Evaluate(Inputs{PE: 12.5, ROEPct: 8, DebtRatio: 80, Beta: 1.1})
	if score != 75 {
		t.Fatalf("score = %d, want 75", score)
	}
	if len(factors) != 4 {
		t.Fatalf("got %d factors, want 4", len(factors))
	}
	wantPassed := map[string]bool{"pe": true, "roe": false, "debt": true, "beta": true}
	total := 0
	for _, f := range factors {
		passed, ok := wantPassed[f.Name]
		if !ok {
			t.Fatalf("unexpected factor %q", f.Name)
		}
		if f.Passed != passed {
			t.Fatalf("factor %q passed = %v, want %v", f.Name, f.Passed, passed)
		}
		if f.Passed && f.Points != 25 {
			t.Fatalf("factor %q points = %d, want 25", f.Name, f.Points)
		}
		if !f.Passed && f.Points != 0 {
			t.Fatalf("factor %q points = %d, want 0", f.Name, f.Points)
		}
		total += f.Points
	}
	if total != score {
		t.Fatalf("factor points sum %d != score %d", total, score)
	}
}
