package edgar

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultCIK maps the built-in watchlist to SEC central index keys
var DefaultCIK = map[string]string{
	"AAPL":  "0000320193",
	"MSFT":  "0000789019",
	"AMZN":  "0001018724",
	"GOOGL": "0001652044",
	"NVDA":  "0001045810",
	"META":  "0001326801",
	"TSLA":  "0001318605",
	"BRK.B": "0001067983",
	"JPM":   "0000019617",
	"XOM":   "0000034088",
}

// mergeCIK overlays extra mappings on the defaults. Keys are upper-cased and
// CIKs zero-padded to 10 digits.
func mergeCIK(extra map[string]string) map[string]string {
	merged := make(map[string]string, len(DefaultCIK)+len(extra))
	for k, v := range DefaultCIK {
		merged[k] = v
	}
	for k, v := range extra {
		ticker := strings.ToUpper(strings.TrimSpace(k))
		cik := padCIK(v)
		if ticker == "" || cik == "" {
			continue
		}
		merged[ticker] = cik
	}
	return merged
}

func padCIK(cik string) string {
	n, err := strconv.Atoi(strings.TrimSpace(cik))
	if err != nil || n <= 0 {
		return ""
	}
	return fmt.Sprintf("%010d", n)
}

// archiveCIK is the CIK as used in archive paths: no leading zeros
func archiveCIK(cik string) string {
	n, err := strconv.Atoi(cik)
	if err != nil {
		return strings.TrimLeft(cik, "0")
	}
	return strconv.Itoa(n)
}
