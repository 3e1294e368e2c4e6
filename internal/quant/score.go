package quant

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

const (
	peLimit      = 20.0
	roeFloorPct  = 15.0
	debtLimit    = 120.0
	betaLimit    = 1.3
	factorPoints = 25
)

type Inputs struct {
	PE        float64 `json:"pe"`
	ROEPct    float64 `json:"roe_pct"`
	DebtRatio float64 `json:"debt_ratio"`
	Beta      float64 `json:"beta"`
}

type Factor struct {
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	Passed bool    `json:"passed"`
	Points int     `json:"points"`
}

// CoerceFloat converts an arbitrary decoded JSON value to a finite float.
// Anything that does not convert cleanly yields def, never an error.
func CoerceFloat(v any, def float64) float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return def
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return def
		}
		f = parsed
	default:
		return def
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}

// NormalizeROE maps a raw vendor ROE to percent. Values at or below 1 are
// read as decimal fractions and scaled by 100; larger values are assumed to
// be percent already. A true sub-1% ROE gets misread by this rule; there is
// no format flag from the vendor to disambiguate.
func NormalizeROE(raw float64) float64 {
	if raw <= 1 {
		return raw * 100
	}
	return raw
}

// Evaluate scores four pass/fail checks worth 25 points each. A zero input
// never earns points even when the threshold would admit it: zero marks
// missing or unparseable data, not a measured value.
func Evaluate(in Inputs) (int, []Factor) {
	factors := []Factor{
		{Name: "pe", Value: in.PE, Passed: in.PE != 0 && in.PE < peLimit},
		{Name: "roe", Value: in.ROEPct, Passed: in.ROEPct != 0 && in.ROEPct > roeFloorPct},
		{Name: "debt", Value: in.DebtRatio, Passed: in.DebtRatio != 0 && in.DebtRatio < debtLimit},
		{Name: "beta", Value: in.Beta, Passed: in.Beta != 0 && in.Beta < betaLimit},
	}
	score := 0
	for i := range factors {
		if factors[i].Passed {
			factors[i].Points = factorPoints
			score += factorPoints
		}
	}
	return score, factors
}

func Score(in Inputs) int {
	score, _ := Evaluate(in)
	return score
}
