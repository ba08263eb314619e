package output

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Writer outputs JSONL records for a run.
//
// Implementations must be safe for concurrent use. Each Write* method emits
// one complete line.
type Writer interface {
	WriteFolder(ctx context.Context, folder *FolderRecord) error
	WriteApp(ctx context.Context, app *AppRecord) error
	WriteError(ctx context.Context, err *ErrorRecord) error
	WriteSummary(ctx context.Context, sum *SummaryRecord) error

	// Close marks the writer closed. The underlying io.Writer is left open.
	Close() error
}

// JSONLWriter writes records as newline-delimited JSON to an io.Writer.
//
// Writes are serialized with a mutex so lines never interleave.
type JSONLWriter struct {
	w      io.Writer
	runID  string
	bucket string
	now    func() time.Time
	mu     sync.Mutex
	closed bool
}

// NewJSONLWriter creates a JSONL writer stamping every record with runID and
// bucket.
func NewJSONLWriter(w io.Writer, runID, bucket string) *JSONLWriter {
	return &JSONLWriter{
		w:      w,
		runID:  runID,
		bucket: bucket,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WriteFolder emits a folder record.
func (jw *JSONLWriter) WriteFolder(ctx context.Context, folder *FolderRecord) error {
	return jw.writeRecord(ctx, TypeFolder, folder)
}

// WriteApp emits an application record.
func (jw *JSONLWriter) WriteApp(ctx context.Context, app *AppRecord) error {
	return jw.writeRecord(ctx, TypeApp, app)
}

// WriteError emits an error record.
func (jw *JSONLWriter) WriteError(ctx context.Context, err *ErrorRecord) error {
	return jw.writeRecord(ctx, TypeError, err)
}

// WriteSummary emits a summary record.
func (jw *JSONLWriter) WriteSummary(ctx context.Context, sum *SummaryRecord) error {
	return jw.writeRecord(ctx, TypeSummary, sum)
}

// Close marks the writer as closed.
func (jw *JSONLWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	jw.closed = true
	return nil
}

func (jw *JSONLWriter) writeRecord(ctx context.Context, recordType string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dataBytes, err := json.Marshal(data)
	if err != nil {
		return &WriteError{Op: "marshal_data", Err: err}
	}

	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.closed {
		return ErrWriterClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	record := Record{
		Type:   recordType,
		TS:     jw.now(),
		RunID:  jw.runID,
		Bucket: jw.bucket,
		Data:   dataBytes,
	}

	recordBytes, err := json.Marshal(record)
	if err != nil {
		return &WriteError{Op: "marshal_record", Err: err}
	}

	// io.Writer may report a short write with a nil error; a truncated line
	// would corrupt the stream.
	recordBytes = append(recordBytes, '\n')
	if err := writeAll(jw.w, recordBytes); err != nil {
		return &WriteError{Op: "write", Err: err}
	}
	return nil
}

// writeAll writes all bytes to w, looping over short writes.
func writeAll(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

var _ Writer = (*JSONLWriter)(nil)
