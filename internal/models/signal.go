package models

import "time"

// Driver directions
const (
	DirectionUp    = "up"
	DirectionDown  = "down"
	DirectionMixed = "mixed"
)

// Change event types
const (
	ChangeGuidanceCount = "guidance_count"
	ChangeRiskAdded     = "risk_added"
)

// SkipReasonNoNewFiling marks a signal that reused the prior snapshot
const SkipReasonNoNewFiling = "no_new_filing"

// ExtractedDoc is the filing metadata echoed back by the model
type ExtractedDoc struct {
	Form       string `json:"form"`
	FilingDate string `json:"filingDate"`
	SourceURL  string `json:"sourceUrl"`
}

// Guidance is one forward-looking guidance statement
type Guidance struct {
	Metric   string `json:"metric"`
	Period   string `json:"period"`
	Value    string `json:"value"`
	RawQuote string `json:"rawQuote"`
	ChunkID  string `json:"chunkId"`
}

// ForwardDriver is a stated driver of future results
type ForwardDriver struct {
	Driver    string   `json:"driver"`
	Direction string   `json:"direction" validate:"omitempty,oneof=up down mixed"`
	Timeframe string   `json:"timeframe"`
	Evidence  []string `json:"evidence"`
}

// NotableRisk is a risk called out in the filing. Severity is optional.
type NotableRisk struct {
	Risk     string   `json:"risk"`
	Severity *float64 `json:"severity,omitempty" validate:"omitempty,gte=0,lte=1"`
	Evidence []string `json:"evidence"`
}

// ExtractedSignal is the structured extraction for one filing
type ExtractedSignal struct {
	Ticker         string          `json:"ticker"`
	Doc            ExtractedDoc    `json:"doc"`
	Guidance       []Guidance      `json:"guidance" validate:"dive"`
	ForwardDrivers []ForwardDriver `json:"forwardDrivers" validate:"dive"`
	NotableRisks   []NotableRisk   `json:"notableRisks" validate:"dive"`
}

// IsEmpty reports whether the extraction carries no statements at all
func (e *ExtractedSignal) IsEmpty() bool {
	return e == nil || (len(e.Guidance) == 0 && len(e.ForwardDrivers) == 0 && len(e.NotableRisks) == 0)
}

// ChangeEvent is a typed difference between two consecutive extractions
type ChangeEvent struct {
	Type     string  `json:"type"`
	Delta    int     `json:"delta"`
	Severity float64 `json:"severity"`
}

// ScoreSet is the bounded score quad derived from an extraction
type ScoreSet struct {
	Confidence int `json:"confidence"` // 0..100
	Risk       int `json:"risk"`       // 0..100
	Trajectory int `json:"trajectory"` // -50..50
	Overall    int `json:"overall"`    // 0..100
}

// SignalRecord is the per (ticker, runDate) snapshot. Written once, never mutated.
type SignalRecord struct {
	ID         string           `json:"id" badgerhold:"key"`
	PK         string           `json:"pk"`
	SK         string           `json:"sk"`
	Ticker     string           `json:"ticker" badgerhold:"index"`
	RunDate    string           `json:"runDate" badgerhold:"index"`
	Extracted  *ExtractedSignal `json:"extracted,omitempty"`
	ChangeLog  []ChangeEvent    `json:"changeLog"`
	Scores     *ScoreSet        `json:"scores,omitempty"`
	Skipped    bool             `json:"skipped"`
	SkipReason string           `json:"skipReason,omitempty"`
	DocRef     *FilingRef       `json:"docRef,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
}

// OutcomeStatus classifies a ticker's result for one run
type OutcomeStatus string

const (
	OutcomeProcessed OutcomeStatus = "processed"
	OutcomeSkipped   OutcomeStatus = "skipped"
	OutcomeMissing   OutcomeStatus = "missing"
	OutcomeFailed    OutcomeStatus = "failed"
)

// RunOutcome is the transient per-ticker result of one pipeline invocation
type RunOutcome struct {
	Ticker     string        `json:"ticker"`
	Status     OutcomeStatus `json:"status"`
	SkipReason string        `json:"skipReason,omitempty"`
	Scores     *ScoreSet     `json:"scores,omitempty"`
	DocRef     *FilingRef    `json:"docRef,omitempty"`
	Err        error         `json:"-"`
}
