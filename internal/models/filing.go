package models

import (
	"fmt"
	"strings"
	"time"
)

// Supported SEC form types
const (
	FormQuarterly = "10-Q"
	FormAnnual    = "10-K"
)

// FilingRef identifies one disclosure document. Immutable once fetched.
type FilingRef struct {
	Ticker          string `json:"ticker"`
	Form            string `json:"form"`
	FilingDate      string `json:"filingDate"`      // YYYY-MM-DD
	AccessionNumber string `json:"accessionNumber"` // dashes removed
	PrimaryDocument string `json:"primaryDocument"`
	SourceURL       string `json:"sourceUrl"`
}

// DocKey returns the composite document key for the filing
func (f FilingRef) DocKey() string {
	return DocKey(f.Form, f.FilingDate, f.AccessionNumber)
}

// ObjectName returns the form#date#accession name used for raw and text blobs
func (f FilingRef) ObjectName() string {
	return fmt.Sprintf("%s#%s#%s", f.Form, f.FilingDate, f.AccessionNumber)
}

// Filing is a FilingRef plus the raw document body returned by the filing source
type Filing struct {
	FilingRef
	RawContent []byte `json:"-"`
}

// DocRecord is the persisted "have we seen / processed this filing" state.
// ProcessedAt only ever moves from nil to set.
type DocRecord struct {
	ID              string     `json:"id" badgerhold:"key"`
	PK              string     `json:"pk"`
	SK              string     `json:"sk"`
	Ticker          string     `json:"ticker" badgerhold:"index"`
	Form            string     `json:"form"`
	FilingDate      string     `json:"filingDate"`
	AccessionNumber string     `json:"accessionNumber"`
	SourceURL       string     `json:"sourceUrl"`
	RawKey          string     `json:"rawKey"`
	TextKey         string     `json:"textKey"`
	CreatedAt       time.Time  `json:"createdAt"`
	ProcessedAt     *time.Time `json:"processedAt,omitempty"`
}

// IsProcessed reports whether extraction has completed for this document
func (d *DocRecord) IsProcessed() bool {
	return d != nil && d.ProcessedAt != nil
}

// TickerPK returns the partition key for a ticker
func TickerPK(ticker string) string {
	return "TICKER#" + strings.ToUpper(strings.TrimSpace(ticker))
}

// DocKey builds the sort key DOC#form#filingDate#accession
func DocKey(form, filingDate, accession string) string {
	return fmt.Sprintf("DOC#%s#%s#%s", form, filingDate, accession)
}

// RunKey builds the sort key RUN#runDate
func RunKey(runDate string) string {
	return "RUN#" + runDate
}

// RecordID joins a partition key and sort key into a single storage key
func RecordID(pk, sk string) string {
	return pk + "|" + sk
}

// Chunk is one window of filing text. Not persisted.
type Chunk struct {
	ChunkID string `json:"chunkId"`
	Text    string `json:"text"`
}
