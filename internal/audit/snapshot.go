package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wonny/aegis/taa/internal/strategyconfig"
)

// SaveConfigSnapshot stores the exact YAML a run was produced from
// config_hash 기준 1회만 저장 (같은 해시 = 같은 설정)
func (r *DecisionRepository) SaveConfigSnapshot(ctx context.Context, snap *strategyconfig.DecisionSnapshot) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO taa.config_snapshots (
			config_hash, strategy_id, version, config_yaml, created_at
		) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (config_hash) DO NOTHING
	`, snap.ConfigHash, snap.StrategyID, snap.Version, snap.ConfigYAML, snap.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save config snapshot: %w", err)
	}
	return nil
}

// GetConfigSnapshot retrieves the YAML stored for a config hash
func (r *DecisionRepository) GetConfigSnapshot(ctx context.Context, hash string) (*strategyconfig.DecisionSnapshot, error) {
	var snap strategyconfig.DecisionSnapshot
	err := r.pool.QueryRow(ctx, `
		SELECT config_hash, strategy_id, version, config_yaml, created_at
		FROM taa.config_snapshots
		WHERE config_hash = $1
	`, hash).Scan(&snap.ConfigHash, &snap.StrategyID, &snap.Version, &snap.ConfigYAML, &snap.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("config snapshot %s not found", hash)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get config snapshot: %w", err)
	}
	return &snap, nil
}
