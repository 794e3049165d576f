package model

import "time"

// Agent is the indexed view of an identity-registry registration.
// Keyed by the on-chain agent ID; deactivation flips IsActive rather
// than deleting the row.
type Agent struct {
	AgentID      int64      `db:"agent_id"`
	Owner        string     `db:"owner"`
	Domain       string     `db:"domain"`
	MetadataURI  string     `db:"metadata_uri"`
	IsActive     bool       `db:"is_active"`
	RegisteredAt *time.Time `db:"registered_at"`
	BlockNumber  int64      `db:"block_number"`
	TxHash       string     `db:"tx_hash"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}
