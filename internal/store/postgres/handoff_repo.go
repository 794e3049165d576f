package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/agoramarket/indexer/internal/domain/model"
)

type HandoffRepo struct {
	db *DB
}

func NewHandoffRepo(db *DB) *HandoffRepo {
	return &HandoffRepo{db: db}
}

func (r *HandoffRepo) Upsert(ctx context.Context, handoff *model.Handoff) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO handoffs (handoff_id, from_agent_id, to_agent_id, status, block_number, tx_hash, initiated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (handoff_id) DO UPDATE SET
			from_agent_id = EXCLUDED.from_agent_id,
			to_agent_id = EXCLUDED.to_agent_id,
			status = CASE
				WHEN handoffs.status = 'COMPLETED' THEN handoffs.status
				ELSE EXCLUDED.status
			END,
			block_number = EXCLUDED.block_number,
			tx_hash = EXCLUDED.tx_hash,
			initiated_at = COALESCE(handoffs.initiated_at, EXCLUDED.initiated_at),
			updated_at = now()
	`, handoff.HandoffID, handoff.FromAgentID, handoff.ToAgentID, handoff.Status,
		handoff.BlockNumber, handoff.TxHash, handoff.InitiatedAt)
	if err != nil {
		return fmt.Errorf("upsert handoff %s: %w", handoff.HandoffID, err)
	}
	return nil
}

func (r *HandoffRepo) Complete(ctx context.Context, handoffID string, blockNumber int64, txHash string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO handoffs (handoff_id, from_agent_id, to_agent_id, status, block_number, tx_hash)
		VALUES ($1, 0, 0, 'COMPLETED', $2, $3)
		ON CONFLICT (handoff_id) DO UPDATE SET
			status = 'COMPLETED',
			block_number = EXCLUDED.block_number,
			tx_hash = EXCLUDED.tx_hash,
			updated_at = now()
	`, handoffID, blockNumber, txHash)
	if err != nil {
		return fmt.Errorf("complete handoff %s: %w", handoffID, err)
	}
	return nil
}

func (r *HandoffRepo) ExpireStale(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE handoffs
		SET status = 'EXPIRED', updated_at = now()
		WHERE status = 'PENDING' AND initiated_at IS NOT NULL AND initiated_at < $1
	`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("expire stale handoffs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expire stale handoffs rows affected: %w", err)
	}
	return n, nil
}

func (r *HandoffRepo) Get(ctx context.Context, handoffID string) (*model.Handoff, error) {
	var h model.Handoff
	err := r.db.QueryRowContext(ctx, `
		SELECT handoff_id, from_agent_id, to_agent_id, status, block_number, tx_hash, initiated_at, created_at, updated_at
		FROM handoffs
		WHERE handoff_id = $1
	`, handoffID).Scan(
		&h.HandoffID, &h.FromAgentID, &h.ToAgentID, &h.Status,
		&h.BlockNumber, &h.TxHash, &h.InitiatedAt, &h.CreatedAt, &h.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get handoff %s: %w", handoffID, err)
	}
	return &h, nil
}
