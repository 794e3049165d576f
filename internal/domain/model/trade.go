package model

import "time"

// Trade is an executed marketplace exchange between a buyer and a
// seller, keyed by the exchange contract's bytes32 trade identifier.
type Trade struct {
	TradeID     string     `db:"trade_id"`
	ListingID   string     `db:"listing_id"`
	Buyer       string     `db:"buyer"`
	Seller      string     `db:"seller"`
	Price       string     `db:"price"` // NUMERIC(78,0) as string
	BlockNumber int64      `db:"block_number"`
	TxHash      string     `db:"tx_hash"`
	LogIndex    int64      `db:"log_index"`
	ExecutedAt  *time.Time `db:"executed_at"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}
