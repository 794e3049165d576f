package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/agoramarket/indexer/internal/chain"
	"github.com/agoramarket/indexer/internal/cursor"
	"github.com/agoramarket/indexer/internal/metrics"
	"github.com/agoramarket/indexer/internal/retry"
	"github.com/agoramarket/indexer/internal/store"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ChainReader is the slice of the chain client the runner uses.
type ChainReader interface {
	CurrentHeight(ctx context.Context) (int64, error)
	QueryEvents(ctx context.Context, contract *chain.Contract, fromBlock, toBlock int64) ([]chain.Event, error)
}

// Windower computes the next block window for a job; satisfied by
// *cursor.Manager.
type Windower interface {
	NextWindow(ctx context.Context, jobName string, head, confirmations, maxBlocks int64) (cursor.Window, bool, error)
}

type Config struct {
	JobName         string
	Confirmations   int64
	MaxBlocksPerRun int64
}

// Summary describes one trigger of a job.
type Summary struct {
	RunID     uuid.UUID
	Job       string
	FromBlock int64
	ToBlock   int64
	Indexed   int
	Failed    int
	Duration  time.Duration
	Skipped   bool // single-flight guard rejected the trigger
	Noop      bool // no safe window to index
}

// Runner executes one job: compute window, fetch events, apply each
// through the processor, advance the cursor. At most one run per
// runner instance is in flight at a time; overlapping triggers are
// counted no-ops. A failing event is logged and counted but never
// aborts the batch nor holds the cursor back — reprocessing is only
// possible per window, and stalling on one bad event would park the
// job forever.
type Runner struct {
	cfg       Config
	chain     ChainReader
	contract  *chain.Contract
	windows   Windower
	cursors   store.CursorRepository
	processor Processor
	afterRun  func(ctx context.Context) error
	logger    *slog.Logger

	running atomic.Bool
}

type Option func(*Runner)

// WithAfterRun registers a store-side maintenance hook executed after
// a successful cursor advance (e.g. the handoff expiry sweep). Hook
// errors are logged, not propagated: the indexing work of the run is
// already durable.
func WithAfterRun(fn func(ctx context.Context) error) Option {
	return func(r *Runner) {
		r.afterRun = fn
	}
}

func NewRunner(
	cfg Config,
	chainReader ChainReader,
	contract *chain.Contract,
	windows Windower,
	cursors store.CursorRepository,
	processor Processor,
	logger *slog.Logger,
	opts ...Option,
) *Runner {
	r := &Runner{
		cfg:       cfg,
		chain:     chainReader,
		contract:  contract,
		windows:   windows,
		cursors:   cursors,
		processor: processor,
		logger:    logger.With("job", cfg.JobName),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) JobName() string {
	return r.cfg.JobName
}

// Run executes one trigger of the job. Errors are returned after the
// failure has been logged and counted; the caller (scheduler) does not
// retry — the next cadence tick re-reads the unadvanced cursor and
// retries the identical window.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	summary := Summary{RunID: uuid.New(), Job: r.cfg.JobName}

	if !r.running.CompareAndSwap(false, true) {
		metrics.RunsSkipped.WithLabelValues(r.cfg.JobName).Inc()
		r.logger.Debug("trigger skipped, run already in flight")
		summary.Skipped = true
		return summary, nil
	}
	defer r.running.Store(false)

	ctx, span := otel.Tracer("indexer").Start(ctx, "job.run",
		trace.WithAttributes(attribute.String("job", r.cfg.JobName)))
	defer span.End()

	start := time.Now()

	head, err := r.chain.CurrentHeight(ctx)
	if err != nil {
		return summary, r.abort(summary, fmt.Errorf("current height: %w", err))
	}

	window, ok, err := r.windows.NextWindow(ctx, r.cfg.JobName, head, r.cfg.Confirmations, r.cfg.MaxBlocksPerRun)
	if err != nil {
		return summary, r.abort(summary, fmt.Errorf("next window: %w", err))
	}
	if !ok {
		metrics.RunsNoop.WithLabelValues(r.cfg.JobName).Inc()
		summary.Noop = true
		return summary, nil
	}
	summary.FromBlock = window.FromBlock
	summary.ToBlock = window.ToBlock
	span.SetAttributes(
		attribute.Int64("from_block", window.FromBlock),
		attribute.Int64("to_block", window.ToBlock),
	)

	events, err := r.chain.QueryEvents(ctx, r.contract, window.FromBlock, window.ToBlock)
	if err != nil {
		// Cursor untouched: the identical window is retried on the
		// next trigger with no partial progress claimed.
		return summary, r.abort(summary, fmt.Errorf("query events [%d, %d): %w", window.FromBlock, window.ToBlock, err))
	}

	for _, event := range events {
		if applyErr := r.applyEvent(ctx, event); applyErr != nil {
			summary.Failed++
			metrics.EventsFailed.WithLabelValues(r.cfg.JobName).Inc()
			r.logger.Error("event processing failed",
				"run_id", summary.RunID,
				"event", event.Name,
				"tx_hash", event.TxHash,
				"log_index", event.LogIndex,
				"block_number", event.BlockNumber,
				"error", applyErr,
			)
			continue
		}
		summary.Indexed++
		metrics.EventsIndexed.WithLabelValues(r.cfg.JobName).Inc()
	}

	// Advance to ToBlock unconditionally, not to the last successful
	// event: cursor granularity is per-run. If the store rejects the
	// write the run fails closed and the window is retried whole.
	if err := r.cursors.Set(ctx, r.cfg.JobName, window.ToBlock); err != nil {
		return summary, r.abort(summary, fmt.Errorf("advance cursor to %d: %w", window.ToBlock, err))
	}
	metrics.CursorBlock.WithLabelValues(r.cfg.JobName).Set(float64(window.ToBlock))

	summary.Duration = time.Since(start)
	metrics.RunsTotal.WithLabelValues(r.cfg.JobName).Inc()
	metrics.RunDuration.WithLabelValues(r.cfg.JobName).Observe(summary.Duration.Seconds())
	span.SetAttributes(
		attribute.Int("events_indexed", summary.Indexed),
		attribute.Int("events_failed", summary.Failed),
	)

	r.logger.Info("run completed",
		"run_id", summary.RunID,
		"from_block", window.FromBlock,
		"to_block", window.ToBlock,
		"indexed", summary.Indexed,
		"failed", summary.Failed,
		"elapsed", summary.Duration.String(),
	)

	if r.afterRun != nil {
		if hookErr := r.afterRun(ctx); hookErr != nil {
			r.logger.Warn("after-run hook failed", "run_id", summary.RunID, "error", hookErr)
		}
	}

	return summary, nil
}

// applyEvent isolates one event's processing; a panicking processor is
// converted to an error so the rest of the batch still runs.
func (r *Runner) applyEvent(ctx context.Context, event chain.Event) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("processor panic: %v", rec)
		}
	}()
	return r.processor.Apply(ctx, event)
}

func (r *Runner) abort(summary Summary, err error) error {
	class := retry.Classify(err)
	metrics.RunErrors.WithLabelValues(r.cfg.JobName, string(class.Class)).Inc()
	r.logger.Error("run aborted, cursor not advanced",
		"run_id", summary.RunID,
		"from_block", summary.FromBlock,
		"to_block", summary.ToBlock,
		"class", string(class.Class),
		"reason", class.Reason,
		"error", err,
	)
	return err
}
