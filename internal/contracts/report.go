package contracts

import (
	"context"
	"time"
)

// RunInfo identifies one engine run
type RunInfo struct {
	RunID       string    `json:"run_id"`
	StrategyID  string    `json:"strategy_id"`
	ConfigHash  string    `json:"config_hash"`
	AsOf        time.Time `json:"as_of"`
	GeneratedAt time.Time `json:"generated_at"`
}

// ReportSink consumes the ordered decision sequence of a run
// ⭐ SSOT: 결과 출력 계약 (엑셀/대시보드 등은 이 인터페이스 뒤에 위치)
type ReportSink interface {
	Publish(ctx context.Context, run RunInfo, records []DecisionRecord) error
}
