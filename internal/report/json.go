package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/wonny/aegis/taa/internal/contracts"
)

// JSONWriter writes each run as one JSON document
// 같은 입력 → 바이트 단위로 같은 출력
type JSONWriter struct {
	mu     sync.Mutex
	w      io.Writer
	indent bool
}

// NewJSONWriter creates a JSON sink on w
func NewJSONWriter(w io.Writer, indent bool) *JSONWriter {
	return &JSONWriter{w: w, indent: indent}
}

// Publish implements contracts.ReportSink
func (j *JSONWriter) Publish(ctx context.Context, run contracts.RunInfo, records []contracts.DecisionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	enc := json.NewEncoder(j.w)
	if j.indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(Run{Info: run, Records: records}); err != nil {
		return fmt.Errorf("encode run %s: %w", run.RunID, err)
	}
	return nil
}
