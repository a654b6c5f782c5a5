package report

import (
	"context"
	"sync"

	"github.com/wonny/aegis/taa/internal/contracts"
)

// Run is one published run
type Run struct {
	Info    contracts.RunInfo          `json:"run"`
	Records []contracts.DecisionRecord `json:"records"`
}

// MemorySink collects published runs in memory
type MemorySink struct {
	mu   sync.Mutex
	runs []Run
}

// NewMemorySink creates an empty collector
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Publish implements contracts.ReportSink
func (s *MemorySink) Publish(ctx context.Context, run contracts.RunInfo, records []contracts.DecisionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cp := make([]contracts.DecisionRecord, len(records))
	copy(cp, records)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, Run{Info: run, Records: cp})
	return nil
}

// Runs returns every published run in publish order
func (s *MemorySink) Runs() []Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Run, len(s.runs))
	copy(out, s.runs)
	return out
}

// Last returns the most recent run
func (s *MemorySink) Last() (Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.runs) == 0 {
		return Run{}, false
	}
	return s.runs[len(s.runs)-1], true
}
