package quote

import "fmt"

// FetchError reports a provider failure: network, non-2xx status or a
// payload that cannot be read. The next scheduled run is the retry.
type FetchError struct {
	Endpoint string
	Status   int
	Err      error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.Endpoint, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Endpoint, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ValidationError reports an observation that must not reach the store.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid observation: %s %s", e.Field, e.Reason)
}

// PersistenceError reports a history store that cannot be read or written.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("history %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// AnalysisError signals malformed input reaching the analyzer, which means an
// upstream invariant was broken.
type AnalysisError struct {
	Index  int
	Reason string
}

func (e *AnalysisError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("analysis: %s", e.Reason)
	}
	return fmt.Sprintf("analysis: record %d: %s", e.Index, e.Reason)
}

// ReportError reports a chart or notification failure.
type ReportError struct {
	Op  string
	Err error
}

func (e *ReportError) Error() string {
	return fmt.Sprintf("report %s: %v", e.Op, e.Err)
}

func (e *ReportError) Unwrap() error { return e.Err }
