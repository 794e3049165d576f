package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/agoramarket/indexer/internal/domain/model"
)

type EscrowRepo struct {
	db *DB
}

func NewEscrowRepo(db *DB) *EscrowRepo {
	return &EscrowRepo{db: db}
}

func (r *EscrowRepo) Upsert(ctx context.Context, session *model.EscrowSession) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO escrow_sessions (session_id, payer, payee, amount, status, block_number, tx_hash, opened_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (session_id) DO UPDATE SET
			payer = EXCLUDED.payer,
			payee = EXCLUDED.payee,
			amount = EXCLUDED.amount,
			status = EXCLUDED.status,
			block_number = EXCLUDED.block_number,
			tx_hash = EXCLUDED.tx_hash,
			opened_at = COALESCE(escrow_sessions.opened_at, EXCLUDED.opened_at),
			updated_at = now()
	`, session.SessionID, session.Payer, session.Payee, session.Amount, session.Status,
		session.BlockNumber, session.TxHash, session.OpenedAt)
	if err != nil {
		return fmt.Errorf("upsert escrow session %s: %w", session.SessionID, err)
	}
	return nil
}

func (r *EscrowRepo) SetStatus(ctx context.Context, sessionID string, status model.EscrowStatus, blockNumber int64, txHash string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO escrow_sessions (session_id, payer, payee, amount, status, block_number, tx_hash)
		VALUES ($1, '', '', '0', $2, $3, $4)
		ON CONFLICT (session_id) DO UPDATE SET
			status = EXCLUDED.status,
			block_number = EXCLUDED.block_number,
			tx_hash = EXCLUDED.tx_hash,
			updated_at = now()
	`, sessionID, status, blockNumber, txHash)
	if err != nil {
		return fmt.Errorf("set escrow session %s status %s: %w", sessionID, status, err)
	}
	return nil
}

func (r *EscrowRepo) Get(ctx context.Context, sessionID string) (*model.EscrowSession, error) {
	var s model.EscrowSession
	err := r.db.QueryRowContext(ctx, `
		SELECT session_id, payer, payee, amount, status, block_number, tx_hash, opened_at, created_at, updated_at
		FROM escrow_sessions
		WHERE session_id = $1
	`, sessionID).Scan(
		&s.SessionID, &s.Payer, &s.Payee, &s.Amount, &s.Status,
		&s.BlockNumber, &s.TxHash, &s.OpenedAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get escrow session %s: %w", sessionID, err)
	}
	return &s, nil
}
