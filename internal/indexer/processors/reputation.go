package processors

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/agoramarket/indexer/internal/chain"
	"github.com/agoramarket/indexer/internal/domain/model"
	"github.com/agoramarket/indexer/internal/indexer"
	"github.com/agoramarket/indexer/internal/store"
)

// Reputation indexes feedback submissions and maintains the running
// per-agent aggregate. The repository dedupes on (tx_hash, log_index)
// so overlapping windows never double-count a rating.
type Reputation struct {
	repo   store.ReputationRepository
	times  *indexer.TimestampResolver
	logger *slog.Logger
}

func NewReputation(repo store.ReputationRepository, times *indexer.TimestampResolver, logger *slog.Logger) *Reputation {
	return &Reputation{repo: repo, times: times, logger: logger}
}

func (p *Reputation) Name() string { return "reputation" }

func (p *Reputation) Apply(ctx context.Context, event chain.Event) error {
	if event.Name != "FeedbackSubmitted" {
		return fmt.Errorf("reputation: unhandled event %s", event.Name)
	}

	agentID, err := event.Int64("agentId")
	if err != nil {
		return err
	}
	client, err := event.Address("client")
	if err != nil {
		return err
	}
	rating, err := event.Uint8("rating")
	if err != nil {
		return err
	}
	tag, err := event.Bytes32Hex("tag")
	if err != nil {
		return err
	}

	applied, err := p.repo.RecordFeedback(ctx, &model.Feedback{
		AgentID:     agentID,
		Client:      client,
		Rating:      int16(rating),
		Tag:         tag,
		BlockNumber: event.BlockNumber,
		TxHash:      event.TxHash,
		LogIndex:    event.LogIndex,
		SubmittedAt: p.times.Resolve(ctx, event.BlockNumber),
	})
	if err != nil {
		return err
	}
	if !applied {
		p.logger.Debug("feedback already indexed",
			"agent_id", agentID,
			"tx_hash", event.TxHash,
			"log_index", event.LogIndex,
		)
	}
	return nil
}
