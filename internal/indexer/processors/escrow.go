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

// Escrow indexes the session lifecycle of the escrow contract. Status
// transitions rely on the ascending event order the chain client
// guarantees within a batch.
type Escrow struct {
	repo   store.EscrowRepository
	times  *indexer.TimestampResolver
	logger *slog.Logger
}

func NewEscrow(repo store.EscrowRepository, times *indexer.TimestampResolver, logger *slog.Logger) *Escrow {
	return &Escrow{repo: repo, times: times, logger: logger}
}

func (p *Escrow) Name() string { return "escrow" }

func (p *Escrow) Apply(ctx context.Context, event chain.Event) error {
	sessionID, err := event.Bytes32Hex("sessionId")
	if err != nil {
		return err
	}

	switch event.Name {
	case "SessionCreated":
		payer, err := event.Address("payer")
		if err != nil {
			return err
		}
		payee, err := event.Address("payee")
		if err != nil {
			return err
		}
		amount, err := event.Amount("amount")
		if err != nil {
			return err
		}
		return p.repo.Upsert(ctx, &model.EscrowSession{
			SessionID:   sessionID,
			Payer:       payer,
			Payee:       payee,
			Amount:      amount,
			Status:      model.EscrowStatusCreated,
			BlockNumber: event.BlockNumber,
			TxHash:      event.TxHash,
			OpenedAt:    p.times.Resolve(ctx, event.BlockNumber),
		})

	case "SessionFunded":
		return p.repo.SetStatus(ctx, sessionID, model.EscrowStatusFunded, event.BlockNumber, event.TxHash)
	case "SessionReleased":
		return p.repo.SetStatus(ctx, sessionID, model.EscrowStatusReleased, event.BlockNumber, event.TxHash)
	case "SessionRefunded":
		return p.repo.SetStatus(ctx, sessionID, model.EscrowStatusRefunded, event.BlockNumber, event.TxHash)
	case "SessionDisputed":
		return p.repo.SetStatus(ctx, sessionID, model.EscrowStatusDisputed, event.BlockNumber, event.TxHash)

	default:
		return fmt.Errorf("escrow: unhandled event %s", event.Name)
	}
}
