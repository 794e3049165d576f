package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/agoramarket/indexer/internal/domain/model"
)

type TradeRepo struct {
	db *DB
}

func NewTradeRepo(db *DB) *TradeRepo {
	return &TradeRepo{db: db}
}

func (r *TradeRepo) Upsert(ctx context.Context, trade *model.Trade) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO trades (trade_id, listing_id, buyer, seller, price, block_number, tx_hash, log_index, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (trade_id) DO UPDATE SET
			listing_id = EXCLUDED.listing_id,
			buyer = EXCLUDED.buyer,
			seller = EXCLUDED.seller,
			price = EXCLUDED.price,
			block_number = EXCLUDED.block_number,
			tx_hash = EXCLUDED.tx_hash,
			log_index = EXCLUDED.log_index,
			executed_at = COALESCE(trades.executed_at, EXCLUDED.executed_at),
			updated_at = now()
	`, trade.TradeID, trade.ListingID, trade.Buyer, trade.Seller, trade.Price,
		trade.BlockNumber, trade.TxHash, trade.LogIndex, trade.ExecutedAt)
	if err != nil {
		return fmt.Errorf("upsert trade %s: %w", trade.TradeID, err)
	}
	return nil
}

func (r *TradeRepo) Get(ctx context.Context, tradeID string) (*model.Trade, error) {
	var t model.Trade
	err := r.db.QueryRowContext(ctx, `
		SELECT trade_id, listing_id, buyer, seller, price, block_number, tx_hash, log_index, executed_at, created_at, updated_at
		FROM trades
		WHERE trade_id = $1
	`, tradeID).Scan(
		&t.TradeID, &t.ListingID, &t.Buyer, &t.Seller, &t.Price,
		&t.BlockNumber, &t.TxHash, &t.LogIndex, &t.ExecutedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get trade %s: %w", tradeID, err)
	}
	return &t, nil
}
