package indexer

import (
	"context"

	"github.com/agoramarket/indexer/internal/chain"
)

// Processor maps one decoded chain event to idempotent writes in the
// state store. Applying the same event twice must leave the store as
// if it was applied once; processors guarantee this by upserting on
// the event's natural domain key.
type Processor interface {
	Name() string
	Apply(ctx context.Context, event chain.Event) error
}
