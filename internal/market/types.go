package market

type FetchStatus string

const (
	StatusOK             FetchStatus = "ok"
	StatusKeyMissing     FetchStatus = "key_missing"
	StatusTransportError FetchStatus = "transport_error"
	StatusVendorError    FetchStatus = "vendor_error"
)

// FetchResult describes how a single vendor fetch ended. Vendor trouble is
// carried here as data; fetch methods never return a Go error.
type FetchResult struct {
	Status FetchStatus `json:"status"`
	Reason string      `json:"reason,omitempty"`
	Cached bool        `json:"cached,omitempty"`
}

type Fundamentals struct {
	Symbol               string `json:"Symbol,omitempty"`
	Name                 string `json:"Name,omitempty"`
	Sector               string `json:"Sector,omitempty"`
	MarketCapitalization string `json:"MarketCapitalization,omitempty"`
	PERatio              string `json:"PERatio,omitempty"`
	ReturnOnEquityTTM    string `json:"ReturnOnEquityTTM,omitempty"`
	DebtToEquityRatio    string `json:"DebtToEquityRatio,omitempty"`
	Beta                 string `json:"Beta,omitempty"`
}

func (f Fundamentals) Empty() bool {
	return f.PERatio == "" && f.ReturnOnEquityTTM == "" && f.DebtToEquityRatio == "" && f.Beta == ""
}

type PricePoint struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

type MacroRate struct {
	Value     float64 `json:"value"`
	Available bool    `json:"available"`
	AsOf      string  `json:"as_of,omitempty"`
}

func okResult() FetchResult {
	return FetchResult{Status: StatusOK}
}

func keyMissingResult() FetchResult {
	return FetchResult{Status: StatusKeyMissing, Reason: "api key not configured"}
}

func transportError(err error) FetchResult {
	return FetchResult{Status: StatusTransportError, Reason: err.Error()}
}

func vendorError(msg string) FetchResult {
	return FetchResult{Status: StatusVendorError, Reason: msg}
}

func vendorNotice(fields ...string) string {
	for _, f := range fields {
		if f != "" {
			return f
		}
	}
	return ""
}
