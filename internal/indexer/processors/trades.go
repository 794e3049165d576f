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

// Trades indexes executed exchanges from the marketplace exchange
// contract, keyed by trade ID.
type Trades struct {
	repo   store.TradeRepository
	times  *indexer.TimestampResolver
	logger *slog.Logger
}

func NewTrades(repo store.TradeRepository, times *indexer.TimestampResolver, logger *slog.Logger) *Trades {
	return &Trades{repo: repo, times: times, logger: logger}
}

func (p *Trades) Name() string { return "trades" }

func (p *Trades) Apply(ctx context.Context, event chain.Event) error {
	if event.Name != "TradeExecuted" {
		return fmt.Errorf("trades: unhandled event %s", event.Name)
	}

	tradeID, err := event.Bytes32Hex("tradeId")
	if err != nil {
		return err
	}
	listingID, err := event.Bytes32Hex("listingId")
	if err != nil {
		return err
	}
	buyer, err := event.Address("buyer")
	if err != nil {
		return err
	}
	seller, err := event.Address("seller")
	if err != nil {
		return err
	}
	price, err := event.Amount("price")
	if err != nil {
		return err
	}

	return p.repo.Upsert(ctx, &model.Trade{
		TradeID:     tradeID,
		ListingID:   listingID,
		Buyer:       buyer,
		Seller:      seller,
		Price:       price,
		BlockNumber: event.BlockNumber,
		TxHash:      event.TxHash,
		LogIndex:    event.LogIndex,
		ExecutedAt:  p.times.Resolve(ctx, event.BlockNumber),
	})
}
