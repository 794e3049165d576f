package store

import (
	"context"
	"time"

	"github.com/agoramarket/indexer/internal/domain/model"
)

// CursorRepository tracks the last processed block per named job.
type CursorRepository interface {
	// Get returns the stored cursor; ok is false when the job has
	// never recorded one.
	Get(ctx context.Context, jobName string) (lastBlock int64, ok bool, err error)
	Set(ctx context.Context, jobName string, lastBlock int64) error
}

// AgentRepository provides access to indexed agent records.
type AgentRepository interface {
	Upsert(ctx context.Context, agent *model.Agent) error
	// UpdateMetadata rewrites the mutable profile fields without
	// touching the active flag.
	UpdateMetadata(ctx context.Context, agentID int64, domain, metadataURI string, blockNumber int64, txHash string) error
	// SetActive flips the active flag by agent ID, creating a stub row
	// if the registration event predates the indexing lookback.
	SetActive(ctx context.Context, agentID int64, active bool, blockNumber int64, txHash string) error
	Get(ctx context.Context, agentID int64) (*model.Agent, error)
}

// PaymentRepository provides access to indexed payment records.
type PaymentRepository interface {
	Upsert(ctx context.Context, payment *model.Payment) error
	Get(ctx context.Context, paymentID string) (*model.Payment, error)
}

// EscrowRepository provides access to escrow session records.
type EscrowRepository interface {
	Upsert(ctx context.Context, session *model.EscrowSession) error
	// SetStatus transitions a session, creating a stub row when the
	// creation event predates the indexing lookback.
	SetStatus(ctx context.Context, sessionID string, status model.EscrowStatus, blockNumber int64, txHash string) error
	Get(ctx context.Context, sessionID string) (*model.EscrowSession, error)
}

// ReputationRepository stores per-event feedback and the running
// aggregate score.
type ReputationRepository interface {
	// RecordFeedback inserts the feedback row and folds it into the
	// agent's aggregate in one transaction. Re-delivered events
	// (same tx hash + log index) are ignored and reported applied=false.
	RecordFeedback(ctx context.Context, feedback *model.Feedback) (applied bool, err error)
	GetScore(ctx context.Context, agentID int64) (*model.ReputationScore, error)
}

// TradeRepository provides access to executed trade records.
type TradeRepository interface {
	Upsert(ctx context.Context, trade *model.Trade) error
	Get(ctx context.Context, tradeID string) (*model.Trade, error)
}

// HandoffRepository provides access to agent handoff records.
type HandoffRepository interface {
	Upsert(ctx context.Context, handoff *model.Handoff) error
	// Complete marks a handoff COMPLETED, creating a stub row when the
	// initiation event predates the indexing lookback.
	Complete(ctx context.Context, handoffID string, blockNumber int64, txHash string) error
	// ExpireStale flips PENDING handoffs initiated before the given
	// time to EXPIRED and returns how many rows changed.
	ExpireStale(ctx context.Context, olderThan time.Time) (int64, error)
	Get(ctx context.Context, handoffID string) (*model.Handoff, error)
}
