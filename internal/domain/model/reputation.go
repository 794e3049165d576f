package model

import "time"

// Feedback is a single on-chain rating submitted for an agent. The
// (tx_hash, log_index) pair makes re-delivered events idempotent.
type Feedback struct {
	AgentID     int64      `db:"agent_id"`
	Client      string     `db:"client"`
	Rating      int16      `db:"rating"`
	Tag         string     `db:"tag"`
	BlockNumber int64      `db:"block_number"`
	TxHash      string     `db:"tx_hash"`
	LogIndex    int64      `db:"log_index"`
	SubmittedAt *time.Time `db:"submitted_at"`
	CreatedAt   time.Time  `db:"created_at"`
}

// ReputationScore is the running aggregate over an agent's feedback.
// Count and sum are maintained incrementally so the average never
// requires a full rescan.
type ReputationScore struct {
	AgentID       int64     `db:"agent_id"`
	FeedbackCount int64     `db:"feedback_count"`
	RatingSum     int64     `db:"rating_sum"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// Average returns the mean rating, or 0 when no feedback exists.
func (s ReputationScore) Average() float64 {
	if s.FeedbackCount == 0 {
		return 0
	}
	return float64(s.RatingSum) / float64(s.FeedbackCount)
}
