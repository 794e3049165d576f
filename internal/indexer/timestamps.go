package indexer

import (
	"context"
	"log/slog"
	"time"
)

// TimestampSource is the block time lookup processors depend on;
// satisfied by *chain.Client.
type TimestampSource interface {
	BlockTimestamp(ctx context.Context, blockNumber int64) (time.Time, error)
}

// TimestampResolver resolves an event's wall-clock time from its block
// number, falling back to indexing time when the lookup fails. A
// timestamp fetch failure must never fail the event, let alone the
// batch.
type TimestampResolver struct {
	source TimestampSource
	logger *slog.Logger
	nowFn  func() time.Time
}

func NewTimestampResolver(source TimestampSource, logger *slog.Logger) *TimestampResolver {
	return &TimestampResolver{
		source: source,
		logger: logger,
		nowFn:  time.Now,
	}
}

func (r *TimestampResolver) Resolve(ctx context.Context, blockNumber int64) *time.Time {
	ts, err := r.source.BlockTimestamp(ctx, blockNumber)
	if err != nil {
		r.logger.Warn("block timestamp lookup failed, using indexing time",
			"block_number", blockNumber,
			"error", err,
		)
		now := r.nowFn().UTC()
		return &now
	}
	return &ts
}
