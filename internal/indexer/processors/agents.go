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

// Agents indexes the identity registry: registrations, profile
// updates, and deactivations, keyed by the registry-assigned agent ID.
type Agents struct {
	repo   store.AgentRepository
	times  *indexer.TimestampResolver
	logger *slog.Logger
}

func NewAgents(repo store.AgentRepository, times *indexer.TimestampResolver, logger *slog.Logger) *Agents {
	return &Agents{repo: repo, times: times, logger: logger}
}

func (p *Agents) Name() string { return "agents" }

func (p *Agents) Apply(ctx context.Context, event chain.Event) error {
	agentID, err := event.Int64("agentId")
	if err != nil {
		return err
	}

	switch event.Name {
	case "AgentRegistered":
		owner, err := event.Address("owner")
		if err != nil {
			return err
		}
		domain, err := event.String("domain")
		if err != nil {
			return err
		}
		metadataURI, err := event.String("metadataURI")
		if err != nil {
			return err
		}
		return p.repo.Upsert(ctx, &model.Agent{
			AgentID:      agentID,
			Owner:        owner,
			Domain:       domain,
			MetadataURI:  metadataURI,
			IsActive:     true,
			RegisteredAt: p.times.Resolve(ctx, event.BlockNumber),
			BlockNumber:  event.BlockNumber,
			TxHash:       event.TxHash,
		})

	case "AgentUpdated":
		domain, err := event.String("domain")
		if err != nil {
			return err
		}
		metadataURI, err := event.String("metadataURI")
		if err != nil {
			return err
		}
		return p.repo.UpdateMetadata(ctx, agentID, domain, metadataURI, event.BlockNumber, event.TxHash)

	case "AgentDeactivated":
		return p.repo.SetActive(ctx, agentID, false, event.BlockNumber, event.TxHash)

	default:
		return fmt.Errorf("agents: unhandled event %s", event.Name)
	}
}
