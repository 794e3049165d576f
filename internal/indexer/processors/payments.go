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

// Payments indexes settled transfers from the payment router, keyed by
// the router-assigned payment ID.
type Payments struct {
	repo   store.PaymentRepository
	times  *indexer.TimestampResolver
	logger *slog.Logger
}

func NewPayments(repo store.PaymentRepository, times *indexer.TimestampResolver, logger *slog.Logger) *Payments {
	return &Payments{repo: repo, times: times, logger: logger}
}

func (p *Payments) Name() string { return "payments" }

func (p *Payments) Apply(ctx context.Context, event chain.Event) error {
	if event.Name != "PaymentSent" {
		return fmt.Errorf("payments: unhandled event %s", event.Name)
	}

	paymentID, err := event.Bytes32Hex("paymentId")
	if err != nil {
		return err
	}
	payer, err := event.Address("payer")
	if err != nil {
		return err
	}
	payee, err := event.Address("payee")
	if err != nil {
		return err
	}
	token, err := event.Address("token")
	if err != nil {
		return err
	}
	amount, err := event.Amount("amount")
	if err != nil {
		return err
	}

	return p.repo.Upsert(ctx, &model.Payment{
		PaymentID:   paymentID,
		Payer:       payer,
		Payee:       payee,
		Token:       token,
		Amount:      amount,
		BlockNumber: event.BlockNumber,
		TxHash:      event.TxHash,
		LogIndex:    event.LogIndex,
		PaidAt:      p.times.Resolve(ctx, event.BlockNumber),
	})
}
