package models

// TickerReason pairs a ticker with a short explanation
type TickerReason struct {
	Ticker string `json:"ticker"`
	Why    string `json:"why"`
}

// GuidanceChange describes a guidance change for one ticker
type GuidanceChange struct {
	Ticker string `json:"ticker"`
	What   string `json:"what"`
}

// OneLiner is a single summary line for one ticker
type OneLiner struct {
	Ticker string `json:"ticker"`
	Line   string `json:"line"`
}

// Digest modes
const (
	DigestModeLLM          = "llm"
	DigestModeFallback     = "fallback"
	DigestModeNoNewFilings = "no_new_filings"
)

// Alert is the daily digest, either model-written or built deterministically
type Alert struct {
	Date            string           `json:"date"`
	Subject         string           `json:"subject"`
	TopPositive     []TickerReason   `json:"topPositive"`
	TopNegative     []TickerReason   `json:"topNegative"`
	GuidanceChanges []GuidanceChange `json:"guidanceChanges"`
	Watchlist       []TickerReason   `json:"watchlist"`
	NoNewFilings    []string         `json:"noNewFilings"`
	Missing         []string         `json:"missing"`
	OneLiners       []OneLiner       `json:"oneLiners"`
	Markdown        string           `json:"markdown"`

	Mode string `json:"-"` // how the digest was produced
}
