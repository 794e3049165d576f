package model

import "time"

type EscrowStatus string

const (
	EscrowStatusCreated  EscrowStatus = "CREATED"
	EscrowStatusFunded   EscrowStatus = "FUNDED"
	EscrowStatusReleased EscrowStatus = "RELEASED"
	EscrowStatusRefunded EscrowStatus = "REFUNDED"
	EscrowStatusDisputed EscrowStatus = "DISPUTED"
)

// EscrowSession tracks the lifecycle of a funds-holding session between
// a payer and a payee. SessionID is the escrow contract's bytes32
// identifier, hex-encoded.
type EscrowSession struct {
	SessionID   string       `db:"session_id"`
	Payer       string       `db:"payer"`
	Payee       string       `db:"payee"`
	Amount      string       `db:"amount"` // NUMERIC(78,0) as string
	Status      EscrowStatus `db:"status"`
	BlockNumber int64        `db:"block_number"`
	TxHash      string       `db:"tx_hash"`
	OpenedAt    *time.Time   `db:"opened_at"`
	CreatedAt   time.Time    `db:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at"`
}
