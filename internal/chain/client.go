package chain

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/agoramarket/indexer/internal/cache"
	"github.com/agoramarket/indexer/internal/chain/ratelimit"
	"github.com/agoramarket/indexer/internal/chain/rpc"
	"github.com/agoramarket/indexer/internal/circuitbreaker"
	"github.com/agoramarket/indexer/internal/metrics"
	"github.com/agoramarket/indexer/internal/retry"
)

// RPC is the transport surface the client needs; satisfied by
// *rpc.Client and by test fakes.
type RPC interface {
	BlockNumber(ctx context.Context) (int64, error)
	BlockByNumber(ctx context.Context, blockNumber int64) (*rpc.Block, error)
	Logs(ctx context.Context, filter rpc.LogFilter) ([]*rpc.Log, error)
}

// Client is the indexer's view of the chain: current height, block
// timestamps, and filtered event queries. All calls pass through the
// shared rate limiter and circuit breaker, with a small bounded
// in-place retry for transient provider errors; whole-run retry is the
// scheduler's job.
type Client struct {
	rpc        RPC
	limiter    *ratelimit.Limiter
	breaker    *circuitbreaker.Breaker
	attempts   int
	retryDelay time.Duration
	timestamps *cache.LRU[int64, time.Time]
	logger     *slog.Logger
}

type ClientConfig struct {
	RetryAttempts     int
	RetryDelay        time.Duration
	TimestampCacheCap int
	TimestampCacheTTL time.Duration
}

func NewClient(transport RPC, limiter *ratelimit.Limiter, breaker *circuitbreaker.Breaker, cfg ClientConfig, logger *slog.Logger) *Client {
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.TimestampCacheCap <= 0 {
		cfg.TimestampCacheCap = 4096
	}
	if cfg.TimestampCacheTTL <= 0 {
		cfg.TimestampCacheTTL = time.Hour
	}
	return &Client{
		rpc:        transport,
		limiter:    limiter,
		breaker:    breaker,
		attempts:   cfg.RetryAttempts,
		retryDelay: cfg.RetryDelay,
		timestamps: cache.NewLRU[int64, time.Time](cfg.TimestampCacheCap, cfg.TimestampCacheTTL),
		logger:     logger,
	}
}

// CurrentHeight returns the chain head block number.
func (c *Client) CurrentHeight(ctx context.Context) (int64, error) {
	var height int64
	err := c.do(ctx, "eth_blockNumber", func(ctx context.Context) error {
		var callErr error
		height, callErr = c.rpc.BlockNumber(ctx)
		return callErr
	})
	if err != nil {
		return 0, err
	}
	metrics.ChainHeight.Set(float64(height))
	return height, nil
}

// BlockTimestamp returns the wall-clock time of a block, served from
// the LRU cache when possible. Mined blocks never change timestamps,
// so the cache TTL only bounds memory, not staleness.
func (c *Client) BlockTimestamp(ctx context.Context, blockNumber int64) (time.Time, error) {
	if ts, ok := c.timestamps.Get(blockNumber); ok {
		metrics.TimestampCacheHits.Inc()
		return ts, nil
	}

	var block *rpc.Block
	err := c.do(ctx, "eth_getBlockByNumber", func(ctx context.Context) error {
		var callErr error
		block, callErr = c.rpc.BlockByNumber(ctx, blockNumber)
		return callErr
	})
	if err != nil {
		return time.Time{}, err
	}
	if block == nil {
		return time.Time{}, retry.Transient(fmt.Errorf("block %d not available yet", blockNumber))
	}

	unix, err := rpc.ParseHexInt64(block.Timestamp)
	if err != nil {
		return time.Time{}, retry.Terminal(fmt.Errorf("block %d timestamp: %w", blockNumber, err))
	}

	ts := time.Unix(unix, 0).UTC()
	c.timestamps.Set(blockNumber, ts)
	return ts, nil
}

// QueryEvents fetches and decodes the contract's configured events in
// [fromBlock, toBlock), returned in ascending (blockNumber, logIndex)
// order. Logs flagged Removed by the provider (reorged away inside the
// response) are skipped; undecodable logs are logged and skipped so
// one malformed log cannot stall the job's cursor forever.
func (c *Client) QueryEvents(ctx context.Context, contract *Contract, fromBlock, toBlock int64) ([]Event, error) {
	filter := rpc.LogFilter{
		FromBlock: rpc.FormatHexInt64(fromBlock),
		ToBlock:   rpc.FormatHexInt64(toBlock - 1), // eth_getLogs bounds are inclusive
		Address:   contract.Address.Hex(),
		Topics:    [][]string{contract.EventTopics()},
	}

	var logs []*rpc.Log
	err := c.do(ctx, "eth_getLogs", func(ctx context.Context) error {
		var callErr error
		logs, callErr = c.rpc.Logs(ctx, filter)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(logs))
	for _, lg := range logs {
		if lg.Removed {
			continue
		}
		event, decodeErr := contract.DecodeLog(lg)
		if decodeErr != nil {
			c.logger.Warn("skipping undecodable log",
				"contract", contract.Name,
				"tx_hash", lg.TransactionHash,
				"log_index", lg.LogIndex,
				"error", decodeErr,
			)
			continue
		}
		events = append(events, event)
	}

	sort.Slice(events, func(i, j int) bool {
		if events[i].BlockNumber != events[j].BlockNumber {
			return events[i].BlockNumber < events[j].BlockNumber
		}
		return events[i].LogIndex < events[j].LogIndex
	})

	return events, nil
}

// do wraps one RPC method with rate limiting, the circuit breaker, and
// bounded transient retry. Limiter and breaker rejections are not
// recorded as provider failures.
func (c *Client) do(ctx context.Context, method string, fn func(context.Context) error) error {
	return retry.Do(ctx, c.attempts, c.retryDelay, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		if err := c.breaker.Allow(); err != nil {
			return retry.Transient(err)
		}

		callErr := fn(ctx)
		ratelimit.RecordCall(method, callErr)
		if callErr != nil {
			c.breaker.RecordFailure()
			return callErr
		}
		c.breaker.RecordSuccess()
		return nil
	})
}
