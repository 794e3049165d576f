package processors

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/agoramarket/indexer/internal/chain"
	"github.com/agoramarket/indexer/internal/domain/model"
	"github.com/agoramarket/indexer/internal/indexer"
	"github.com/agoramarket/indexer/internal/metrics"
	"github.com/agoramarket/indexer/internal/store"
)

// Handoffs indexes task delegations between agents. The completed
// status wins over a re-delivered initiation (upsert keeps COMPLETED
// sticky); pending rows that never complete are swept by ExpirePending.
type Handoffs struct {
	repo   store.HandoffRepository
	times  *indexer.TimestampResolver
	ttl    time.Duration
	logger *slog.Logger
}

func NewHandoffs(repo store.HandoffRepository, times *indexer.TimestampResolver, ttl time.Duration, logger *slog.Logger) *Handoffs {
	return &Handoffs{repo: repo, times: times, ttl: ttl, logger: logger}
}

func (p *Handoffs) Name() string { return "handoffs" }

func (p *Handoffs) Apply(ctx context.Context, event chain.Event) error {
	handoffID, err := event.Bytes32Hex("handoffId")
	if err != nil {
		return err
	}

	switch event.Name {
	case "HandoffInitiated":
		fromAgentID, err := event.Int64("fromAgentId")
		if err != nil {
			return err
		}
		toAgentID, err := event.Int64("toAgentId")
		if err != nil {
			return err
		}
		return p.repo.Upsert(ctx, &model.Handoff{
			HandoffID:   handoffID,
			FromAgentID: fromAgentID,
			ToAgentID:   toAgentID,
			Status:      model.HandoffStatusPending,
			BlockNumber: event.BlockNumber,
			TxHash:      event.TxHash,
			InitiatedAt: p.times.Resolve(ctx, event.BlockNumber),
		})

	case "HandoffCompleted":
		return p.repo.Complete(ctx, handoffID, event.BlockNumber, event.TxHash)

	default:
		return fmt.Errorf("handoffs: unhandled event %s", event.Name)
	}
}

// ExpirePending sweeps PENDING handoffs older than the configured TTL
// to EXPIRED. Wired as the handoff job's after-run hook.
func (p *Handoffs) ExpirePending(ctx context.Context) error {
	expired, err := p.repo.ExpireStale(ctx, time.Now().Add(-p.ttl))
	if err != nil {
		return err
	}
	if expired > 0 {
		metrics.HandoffsExpired.Add(float64(expired))
		p.logger.Info("expired stale handoffs", "count", expired, "ttl", p.ttl.String())
	}
	return nil
}
