package model

import "time"

// Payment is a settled transfer routed through the payment router.
// PaymentID is the router-assigned bytes32 identifier, hex-encoded.
type Payment struct {
	PaymentID   string     `db:"payment_id"`
	Payer       string     `db:"payer"`
	Payee       string     `db:"payee"`
	Token       string     `db:"token"`
	Amount      string     `db:"amount"` // NUMERIC(78,0) as string
	BlockNumber int64      `db:"block_number"`
	TxHash      string     `db:"tx_hash"`
	LogIndex    int64      `db:"log_index"`
	PaidAt      *time.Time `db:"paid_at"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}
