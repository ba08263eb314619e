// Package preflight checks, without writing anything, that the current
// principal can use the configuration bucket.
package preflight

import (
	"context"
	"fmt"

	"github.com/3leaps/appdeploy/pkg/output"
	"github.com/3leaps/appdeploy/pkg/provider"
)

// Capability names are stable strings used in JSONL output.
const (
	CapBucketExists = "bucket.exists"
	CapObjectsList  = "objects.list"
)

// Target is a provider that can also report whether its bucket exists.
type Target interface {
	provider.Provider
	provider.BucketChecker
}

// Bucket runs the capability checks against target using only read calls.
// The returned record lists every check attempted; err is the first failure.
// Checks stop at the first failure.
func Bucket(ctx context.Context, target Target) (*output.PreflightRecord, error) {
	rec := &output.PreflightRecord{Results: []output.PreflightCheckResult{}}

	exists, err := target.BucketExists(ctx)
	if err == nil && !exists {
		err = provider.ErrBucketNotFound
	}
	if !record(rec, CapBucketExists, "HeadBucket", err) {
		return rec, err
	}

	_, err = target.List(ctx, provider.ListOptions{MaxKeys: 1})
	if !record(rec, CapObjectsList, fmt.Sprintf("List(prefix=%q,maxKeys=1)", ""), err) {
		return rec, err
	}
	return rec, nil
}

// record appends one result and reports whether the check passed.
func record(rec *output.PreflightRecord, capability, method string, err error) bool {
	res := output.PreflightCheckResult{
		Capability: capability,
		Allowed:    err == nil,
		Method:     method,
	}
	if err != nil {
		res.ErrorCode = ErrorCode(err)
		res.Detail = err.Error()
	}
	rec.Results = append(rec.Results, res)
	return err == nil
}

// ErrorCode maps a provider error to an output error code.
func ErrorCode(err error) string {
	switch {
	case provider.IsAccessDenied(err), provider.IsInvalidCredentials(err), provider.IsMissingCredentials(err):
		return output.ErrCodeAccessDenied
	case provider.IsBucketNotFound(err), provider.IsNotFound(err):
		return output.ErrCodeNotFound
	case provider.IsThrottled(err):
		return output.ErrCodeThrottled
	default:
		return output.ErrCodeInternal
	}
}
