package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/agoramarket/indexer/internal/domain/model"
)

type PaymentRepo struct {
	db *DB
}

func NewPaymentRepo(db *DB) *PaymentRepo {
	return &PaymentRepo{db: db}
}

func (r *PaymentRepo) Upsert(ctx context.Context, payment *model.Payment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (payment_id, payer, payee, token, amount, block_number, tx_hash, log_index, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (payment_id) DO UPDATE SET
			payer = EXCLUDED.payer,
			payee = EXCLUDED.payee,
			token = EXCLUDED.token,
			amount = EXCLUDED.amount,
			block_number = EXCLUDED.block_number,
			tx_hash = EXCLUDED.tx_hash,
			log_index = EXCLUDED.log_index,
			paid_at = COALESCE(payments.paid_at, EXCLUDED.paid_at),
			updated_at = now()
	`, payment.PaymentID, payment.Payer, payment.Payee, payment.Token, payment.Amount,
		payment.BlockNumber, payment.TxHash, payment.LogIndex, payment.PaidAt)
	if err != nil {
		return fmt.Errorf("upsert payment %s: %w", payment.PaymentID, err)
	}
	return nil
}

func (r *PaymentRepo) Get(ctx context.Context, paymentID string) (*model.Payment, error) {
	var p model.Payment
	err := r.db.QueryRowContext(ctx, `
		SELECT payment_id, payer, payee, token, amount, block_number, tx_hash, log_index, paid_at, created_at, updated_at
		FROM payments
		WHERE payment_id = $1
	`, paymentID).Scan(
		&p.PaymentID, &p.Payer, &p.Payee, &p.Token, &p.Amount,
		&p.BlockNumber, &p.TxHash, &p.LogIndex, &p.PaidAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get payment %s: %w", paymentID, err)
	}
	return &p, nil
}
