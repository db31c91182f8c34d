package common

import (
	"time"

	"github.com/google/uuid"
)

// RunDateLayout is the calendar date format used for run dates and filing dates
const RunDateLayout = "2006-01-02"

// NewRunID generates a unique run ID with the "run_" prefix
// Format: run_<uuid>
func NewRunID() string {
	return "run_" + uuid.New().String()
}

// TodayRunDate returns the current UTC calendar date as YYYY-MM-DD
func TodayRunDate() string {
	return time.Now().UTC().Format(RunDateLayout)
}

// ValidRunDate reports whether s is a YYYY-MM-DD date
func ValidRunDate(s string) bool {
	_, err := time.Parse(RunDateLayout, s)
	return err == nil
}
