// Package common provides shared utilities across the application.
package common

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultMaxTickers caps the number of tickers processed in one run
const DefaultMaxTickers = 10

// DefaultTickers is used when no ticker list is configured anywhere
var DefaultTickers = []string{"AAPL", "MSFT", "AMZN", "GOOGL", "NVDA"}

// Ticker represents a parsed, optionally exchange-qualified US ticker.
// Format: EXCHANGE:CODE (e.g., "NASDAQ:AAPL") or just CODE ("BRK.B").
type Ticker struct {
	// Exchange is the exchange code when given (e.g., "NYSE", "NASDAQ")
	Exchange string
	// Code is the upper-case symbol (e.g., "AAPL", "BRK.B")
	Code string
	// Raw is the original ticker string
	Raw string
}

// ParseTicker parses a ticker string.
// Supports formats:
//   - "NASDAQ:AAPL" -> Exchange="NASDAQ", Code="AAPL"
//   - "aapl" -> Code="AAPL"
//   - "BRK.B" -> Code="BRK.B" (share classes keep their dot)
func ParseTicker(ticker string) Ticker {
	ticker = strings.TrimSpace(ticker)
	if ticker == "" {
		return Ticker{}
	}

	if idx := strings.Index(ticker, ":"); idx > 0 {
		return Ticker{
			Exchange: strings.ToUpper(ticker[:idx]),
			Code:     strings.ToUpper(strings.TrimSpace(ticker[idx+1:])),
			Raw:      ticker,
		}
	}

	return Ticker{
		Code: strings.ToUpper(ticker),
		Raw:  ticker,
	}
}

// String returns the exchange-qualified ticker, or the code alone
func (t Ticker) String() string {
	if t.Exchange == "" || t.Code == "" {
		return t.Code
	}
	return t.Exchange + ":" + t.Code
}

// NormalizeTickers parses, upper-cases and de-duplicates tickers preserving order,
// then caps the list at max entries.
func NormalizeTickers(tickers []string, max int) []string {
	if max <= 0 {
		max = DefaultMaxTickers
	}
	seen := make(map[string]bool, len(tickers))
	result := make([]string, 0, len(tickers))
	for _, raw := range tickers {
		code := ParseTicker(raw).Code
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		result = append(result, code)
		if len(result) == max {
			break
		}
	}
	return result
}

// LoadTickersFile reads a ticker list from a YAML or JSON file.
// Accepts either a bare list or an object with a "tickers" key.
func LoadTickersFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tickers file %s: %w", path, err)
	}

	var list []string
	if err := yaml.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var wrapped struct {
		Tickers []string `yaml:"tickers"`
	}
	if err := yaml.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse tickers file %s: %w", path, err)
	}
	return wrapped.Tickers, nil
}

// ResolveTickers picks the ticker list for a run.
// Priority: explicit list -> configured list (config file or env) -> tickers file -> defaults.
func ResolveTickers(explicit []string, runner RunnerConfig) ([]string, error) {
	switch {
	case len(explicit) > 0:
		return NormalizeTickers(explicit, runner.MaxTickers), nil
	case len(runner.Tickers) > 0:
		return NormalizeTickers(runner.Tickers, runner.MaxTickers), nil
	case runner.TickersFile != "":
		list, err := LoadTickersFile(runner.TickersFile)
		if err != nil {
			return nil, err
		}
		return NormalizeTickers(list, runner.MaxTickers), nil
	default:
		return NormalizeTickers(DefaultTickers, runner.MaxTickers), nil
	}
}
