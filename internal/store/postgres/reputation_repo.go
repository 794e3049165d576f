package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/agoramarket/indexer/internal/domain/model"
)

type ReputationRepo struct {
	db *DB
}

func NewReputationRepo(db *DB) *ReputationRepo {
	return &ReputationRepo{db: db}
}

// RecordFeedback inserts the feedback row and folds it into the
// agent's running aggregate in one transaction. The (tx_hash,
// log_index) conflict target makes re-delivered events a no-op, so the
// aggregate is bumped exactly once per distinct on-chain event.
func (r *ReputationRepo) RecordFeedback(ctx context.Context, feedback *model.Feedback) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin feedback tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO feedback (agent_id, client, rating, tag, block_number, tx_hash, log_index, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tx_hash, log_index) DO NOTHING
	`, feedback.AgentID, feedback.Client, feedback.Rating, feedback.Tag,
		feedback.BlockNumber, feedback.TxHash, feedback.LogIndex, feedback.SubmittedAt)
	if err != nil {
		return false, fmt.Errorf("insert feedback %s:%d: %w", feedback.TxHash, feedback.LogIndex, err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("feedback rows affected: %w", err)
	}
	if inserted == 0 {
		// Already indexed by an earlier (possibly overlapping) run.
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO reputation_scores (agent_id, feedback_count, rating_sum, updated_at)
		VALUES ($1, 1, $2, now())
		ON CONFLICT (agent_id) DO UPDATE SET
			feedback_count = reputation_scores.feedback_count + 1,
			rating_sum = reputation_scores.rating_sum + EXCLUDED.rating_sum,
			updated_at = now()
	`, feedback.AgentID, feedback.Rating); err != nil {
		return false, fmt.Errorf("bump reputation for agent %d: %w", feedback.AgentID, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit feedback tx: %w", err)
	}
	return true, nil
}

func (r *ReputationRepo) GetScore(ctx context.Context, agentID int64) (*model.ReputationScore, error) {
	var s model.ReputationScore
	err := r.db.QueryRowContext(ctx, `
		SELECT agent_id, feedback_count, rating_sum, updated_at
		FROM reputation_scores
		WHERE agent_id = $1
	`, agentID).Scan(&s.AgentID, &s.FeedbackCount, &s.RatingSum, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reputation for agent %d: %w", agentID, err)
	}
	return &s, nil
}
