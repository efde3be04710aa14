package main

import "time"

// Session is the browser capability the checkout engine drives. The engine
// never launches or owns a browser itself; it receives a Session at run
// start and releases it exactly once when the run ends.
//
// Every blocking call takes an explicit timeout and fails instead of
// waiting forever.
type Session interface {
	// Navigate loads url and waits for the load event.
	Navigate(url string, timeout time.Duration) error

	// Locate waits up to timeout for the first element matching selector.
	Locate(selector string, timeout time.Duration) (Element, error)

	// Exists reports whether selector matches a visible element right now,
	// without waiting.
	Exists(selector string) bool

	// WaitVisible blocks until selector matches a visible element or the
	// timeout elapses.
	WaitVisible(selector string, timeout time.Duration) error

	// Frame resolves an iframe by selector and returns its content scope.
	Frame(selector string, timeout time.Duration) (Frame, error)

	// Snapshot captures the current page state for offline inspection.
	Snapshot() (screenshot []byte, html string, err error)

	// Release tears the session down. Safe to call more than once; only
	// the first call does work.
	Release()
}

// Element is one interactive page element.
type Element interface {
	Fill(text string) error
	Click() error
	Visible() (bool, error)
	Enabled() (bool, error)
	Attribute(name string) (string, error)
	Text() (string, error)
}

// Frame is a document scope inside an iframe. The payment iframe is
// cross-origin, so lookups against it may fail wholesale.
type Frame interface {
	// Elements returns every element matching selector, in DOM order,
	// without waiting.
	Elements(selector string) ([]Element, error)

	// Locate waits up to timeout for the first match.
	Locate(selector string, timeout time.Duration) (Element, error)
}

// ResultSink receives exactly one terminal callback per run.
type ResultSink interface {
	OnComplete(result RunResult)
	OnError(result RunResult)
}

// RunResult is the structured outcome delivered to the sink.
type RunResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
