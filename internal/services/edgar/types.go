package edgar

import (
	"errors"
	"fmt"
)

// ErrUnknownTicker is returned when no CIK is mapped for a ticker
var ErrUnknownTicker = errors.New("no CIK mapped for ticker")

// ErrNoPeriodicFiling is returned when the recent filings hold no 10-Q or 10-K
var ErrNoPeriodicFiling = errors.New("no 10-Q/10-K in recent filings")

// submissions is the subset of data.sec.gov/submissions/CIK##########.json we read.
// The recent block is column oriented: index i across all slices is one filing.
type submissions struct {
	CIK     string `json:"cik"`
	Name    string `json:"name"`
	Filings struct {
		Recent recentFilings `json:"recent"`
	} `json:"filings"`
}

type recentFilings struct {
	AccessionNumber []string `json:"accessionNumber"`
	FilingDate      []string `json:"filingDate"`
	Form            []string `json:"form"`
	PrimaryDocument []string `json:"primaryDocument"`
}

// StatusError is a non-2xx response from SEC
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("SEC fetch failed %d %s", e.StatusCode, e.URL)
}

// Retryable reports whether the status is worth another attempt
func (e *StatusError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
