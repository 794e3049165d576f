package model

import "time"

type HandoffStatus string

const (
	HandoffStatusPending   HandoffStatus = "PENDING"
	HandoffStatusCompleted HandoffStatus = "COMPLETED"
	HandoffStatusExpired   HandoffStatus = "EXPIRED"
)

// Handoff records a task delegation between two agents. Pending rows
// that never see a completion event are swept to EXPIRED by the
// handoff job's cleanup pass.
type Handoff struct {
	HandoffID   string        `db:"handoff_id"`
	FromAgentID int64         `db:"from_agent_id"`
	ToAgentID   int64         `db:"to_agent_id"`
	Status      HandoffStatus `db:"status"`
	BlockNumber int64         `db:"block_number"`
	TxHash      string        `db:"tx_hash"`
	InitiatedAt *time.Time    `db:"initiated_at"`
	CreatedAt   time.Time     `db:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at"`
}
