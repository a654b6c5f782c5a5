package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/aegis/taa/internal/contracts"
)

// ErrRunNotFound is returned when a run id has no stored row
var ErrRunNotFound = errors.New("run not found")

// DecisionRepository persists engine runs and their decision records
// ⭐ SSOT: 판단 이력 저장/조회는 여기서만
type DecisionRepository struct {
	pool *pgxpool.Pool
}

// NewDecisionRepository creates a new decision repository
func NewDecisionRepository(pool *pgxpool.Pool) *DecisionRepository {
	return &DecisionRepository{pool: pool}
}

// StoredRun is one run with its decisions, as read back from the store
type StoredRun struct {
	Info    contracts.RunInfo          `json:"run"`
	Records []contracts.DecisionRecord `json:"records"`
}

// Publish implements contracts.ReportSink
// run + decisions 를 하나의 트랜잭션으로 저장
func (r *DecisionRepository) Publish(ctx context.Context, run contracts.RunInfo, records []contracts.DecisionRecord) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO taa.runs (
			run_id, strategy_id, config_hash, as_of, generated_at, decisions
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (run_id) DO NOTHING
	`, run.RunID, run.StrategyID, run.ConfigHash, run.AsOf, run.GeneratedAt, len(records))
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	batch := &pgx.Batch{}
	for _, rec := range records {
		positionsJSON, err := json.Marshal(rec.Positions)
		if err != nil {
			return fmt.Errorf("failed to marshal positions: %w", err)
		}
		tiersJSON, err := json.Marshal(rec.Tiers)
		if err != nil {
			return fmt.Errorf("failed to marshal tiers: %w", err)
		}

		batch.Queue(`
			INSERT INTO taa.decisions (
				run_id, month, label, regime, positions, tiers, cash, cash_symbol
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (run_id, month) DO UPDATE SET
				regime = EXCLUDED.regime,
				positions = EXCLUDED.positions,
				tiers = EXCLUDED.tiers,
				cash = EXCLUDED.cash,
				cash_symbol = EXCLUDED.cash_symbol
		`, run.RunID, rec.Month, rec.Label, string(rec.Regime), positionsJSON, tiersJSON, rec.Cash, rec.CashSymbol)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to save decisions for run %s: %w", run.RunID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", run.RunID, err)
	}
	return nil
}

// GetRun retrieves a run and all of its decisions in month order
func (r *DecisionRepository) GetRun(ctx context.Context, runID string) (*StoredRun, error) {
	var stored StoredRun
	err := r.pool.QueryRow(ctx, `
		SELECT run_id, strategy_id, config_hash, as_of, generated_at
		FROM taa.runs
		WHERE run_id = $1
	`, runID).Scan(
		&stored.Info.RunID, &stored.Info.StrategyID, &stored.Info.ConfigHash,
		&stored.Info.AsOf, &stored.Info.GeneratedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT month, label, regime, positions, tiers, cash, cash_symbol
		FROM taa.decisions
		WHERE run_id = $1
		ORDER BY month ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer rows.Close()

	stored.Records = make([]contracts.DecisionRecord, 0)
	for rows.Next() {
		rec, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		stored.Records = append(stored.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate decisions: %w", err)
	}

	return &stored, nil
}

// ListRuns returns the newest runs of a strategy (all strategies if empty)
func (r *DecisionRepository) ListRuns(ctx context.Context, strategyID string, limit int) ([]contracts.RunInfo, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.pool.Query(ctx, `
		SELECT run_id, strategy_id, config_hash, as_of, generated_at
		FROM taa.runs
		WHERE ($1 = '' OR strategy_id = $1)
		ORDER BY generated_at DESC
		LIMIT $2
	`, strategyID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]contracts.RunInfo, 0)
	for rows.Next() {
		var info contracts.RunInfo
		if err := rows.Scan(&info.RunID, &info.StrategyID, &info.ConfigHash, &info.AsOf, &info.GeneratedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return runs, nil
}

// PurgeBefore deletes runs generated before cutoff (decisions cascade)
func (r *DecisionRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM taa.runs WHERE generated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge runs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanDecision(rows pgx.Rows) (contracts.DecisionRecord, error) {
	var rec contracts.DecisionRecord
	var regime string
	var positionsJSON, tiersJSON []byte

	if err := rows.Scan(&rec.Month, &rec.Label, &regime, &positionsJSON, &tiersJSON, &rec.Cash, &rec.CashSymbol); err != nil {
		return rec, fmt.Errorf("failed to scan decision: %w", err)
	}
	rec.Regime = contracts.Regime(regime)
	rec.Month = rec.Month.UTC()

	if err := json.Unmarshal(positionsJSON, &rec.Positions); err != nil {
		return rec, fmt.Errorf("failed to unmarshal positions: %w", err)
	}
	if err := json.Unmarshal(tiersJSON, &rec.Tiers); err != nil {
		return rec, fmt.Errorf("failed to unmarshal tiers: %w", err)
	}
	return rec, nil
}
