// Package output provides JSONL output for reconciliation runs.
//
// Every line is a typed envelope around one payload: a folder decision, an
// application, an error, or the closing summary. Lines parse independently.
package output

import (
	"encoding/json"
	"errors"
	"time"
)

// Record type constants, following appdeploy.<type>.v<version>.
const (
	// TypeFolder identifies folder marker records.
	TypeFolder = "appdeploy.folder.v1"

	// TypeApp identifies application records.
	TypeApp = "appdeploy.app.v1"

	// TypeError identifies error records.
	TypeError = "appdeploy.error.v1"

	// TypeSummary identifies final summary records.
	TypeSummary = "appdeploy.summary.v1"

	// TypePreflight identifies bucket capability check records.
	TypePreflight = "appdeploy.preflight.v1"
)

// Record is the envelope for all JSONL output.
type Record struct {
	// Type identifies the record type (e.g., "appdeploy.folder.v1").
	Type string `json:"type"`

	// TS is the timestamp when the record was created (RFC3339Nano).
	TS time.Time `json:"ts"`

	// RunID correlates all records of one run.
	RunID string `json:"run_id"`

	// Bucket is the configuration bucket, empty for offline plans.
	Bucket string `json:"bucket,omitempty"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// Folder actions.
const (
	ActionCreated = "created"
	ActionExists  = "exists"
	ActionPlanned = "planned"
)

// FolderRecord is the payload for one folder marker decision.
type FolderRecord struct {
	Key    string `json:"key"`
	Depth  int    `json:"depth"`
	Action string `json:"action"`
}

// AppRecord is the payload for one deployable application.
type AppRecord struct {
	// Name is the application name without separator.
	Name string `json:"name"`

	// Key is the application's folder marker.
	Key string `json:"key"`
}

// ErrorRecord is the payload for a failure that ended the run.
type ErrorRecord struct {
	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	// Key is the object key related to this error, if applicable.
	Key string `json:"key,omitempty"`

	// Details contains additional error context.
	Details any `json:"details,omitempty"`
}

// Error codes for ErrorRecord.
const (
	ErrCodePrecondition  = "PRECONDITION"
	ErrCodeConfiguration = "CONFIGURATION"
	ErrCodeUsage         = "USAGE"
	ErrCodeStorage       = "STORAGE"
	ErrCodeInternal      = "INTERNAL"
	ErrCodeAccessDenied  = "ACCESS_DENIED"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeThrottled     = "THROTTLED"
)

// PreflightRecord reports which bucket capabilities the current principal has.
type PreflightRecord struct {
	// Results lists the checks in the order they ran.
	Results []PreflightCheckResult `json:"results"`
}

// PreflightCheckResult is the outcome of one capability check.
type PreflightCheckResult struct {
	Capability string `json:"capability"`
	Allowed    bool   `json:"allowed"`
	Method     string `json:"method"`
	ErrorCode  string `json:"error_code,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

// SummaryRecord closes a run.
type SummaryRecord struct {
	// Objects is the number of keys in the listing.
	Objects int `json:"objects"`

	// Folders is the number of folders considered.
	Folders int `json:"folders"`

	// Created is the number of markers written (or planned in dry-run).
	Created int `json:"created"`

	// Apps is the number of applications found.
	Apps int `json:"apps"`

	// DryRun is true when nothing was written.
	DryRun bool `json:"dry_run"`

	// Duration is the total run duration.
	Duration time.Duration `json:"duration_ns"`

	// DurationHuman is a human-readable duration string.
	DurationHuman string `json:"duration"`
}

// Writer errors.
var (
	// ErrWriterClosed is returned when writing to a closed writer.
	ErrWriterClosed = errors.New("writer is closed")
)

// WriteError wraps errors that occur during write operations.
type WriteError struct {
	Op  string // Operation that failed (e.g., "marshal_data", "write")
	Err error  // Underlying error
}

func (e *WriteError) Error() string {
	return "output: " + e.Op + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
