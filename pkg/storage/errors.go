package storage

import (
	"errors"
	"fmt"
	"strings"

	"bucketdeck/pkg/common"
)

// Error kinds. Every error returned by a Backend, the transfer engine or the
// client facade matches exactly one of these with errors.Is
var (
	ErrConfig             = errors.New("invalid configuration")
	ErrUnsupportedService = common.ErrUnsupportedService
	ErrTransport          = errors.New("transport failure")
	ErrNotFound           = errors.New("not found")
	ErrPermission         = errors.New("permission denied")
	ErrPartialBatch       = errors.New("batch partially failed")
	ErrIO                 = errors.New("local i/o failure")
	ErrPresign            = errors.New("presign failed")
	ErrInvalidKey         = errors.New("invalid object key")
	// ErrMoveIncomplete means the copy of a move succeeded but deleting the source did not,
	// so both objects exist
	ErrMoveIncomplete = errors.New("move incomplete: source still exists")
)

// OpError attaches the failing operation and key to an error kind
type OpError struct {
	Op   string
	Key  string
	Kind error
	Err  error
}

func (e *OpError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Op)
	if e.Key != "" {
		sb.WriteString(" ")
		sb.WriteString(e.Key)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Kind.Error())
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewOpError wraps err with the given kind. An error that already carries a kind is returned as is
func NewOpError(op, key string, kind, err error) error {
	var existing *OpError
	if errors.As(err, &existing) {
		return err
	}
	return &OpError{Op: op, Key: key, Kind: kind, Err: err}
}

// DeleteResult is the outcome for one key of a batch delete
type DeleteResult struct {
	Key string
	Err error
}

// BatchError reports a batch delete where at least one key failed
type BatchError struct {
	Results []DeleteResult
}

func (e *BatchError) Error() string {
	failed := e.Failed()
	keys := make([]string, 0, len(failed))
	for _, r := range failed {
		keys = append(keys, r.Key)
	}
	return fmt.Sprintf("%s: %d of %d keys failed (%s)", ErrPartialBatch, len(failed), len(e.Results), strings.Join(keys, ", "))
}

func (e *BatchError) Is(target error) bool {
	return target == ErrPartialBatch
}

// Failed returns only the results that carry an error
func (e *BatchError) Failed() []DeleteResult {
	var failed []DeleteResult
	for _, r := range e.Results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}

// BatchResult turns per-key results into the aggregate error of a batch delete
func BatchResult(results []DeleteResult) error {
	for _, r := range results {
		if r.Err != nil {
			return &BatchError{Results: results}
		}
	}
	return nil
}

// ErrorKind returns the sentinel kind carried by err, or nil when it has none
func ErrorKind(err error) error {
	if err == nil {
		return nil
	}
	// Composite kinds first: a failed move usually also wraps the delete's own kind
	for _, kind := range []error{
		ErrMoveIncomplete, ErrPartialBatch, ErrConfig, ErrUnsupportedService,
		ErrInvalidKey, ErrNotFound, ErrPermission, ErrIO, ErrPresign, ErrTransport,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
