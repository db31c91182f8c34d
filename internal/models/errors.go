package models

import (
	"errors"
	"fmt"
)

// ErrSignalExists is returned when a signal was already written for a ticker and run date
var ErrSignalExists = errors.New("signal already exists for run")

// FetchError reports that the filing source was unreachable or returned malformed data
type FetchError struct {
	Ticker     string
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s (%s): status %d: %v", e.Ticker, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s (%s): %v", e.Ticker, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// StoreError reports a persistence failure other than an insert-if-absent race
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
