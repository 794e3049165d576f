package cursor

import (
	"context"
	"fmt"

	"github.com/agoramarket/indexer/internal/store"
)

// Window is a half-open block range [FromBlock, ToBlock) to index.
type Window struct {
	FromBlock int64
	ToBlock   int64
}

func (w Window) Size() int64 {
	return w.ToBlock - w.FromBlock
}

// Manager computes the next indexing window for a job from its stored
// cursor, the chain head, a confirmation-depth safety margin, and a
// per-run block cap. It never writes the cursor; advancement belongs
// to the job runner.
type Manager struct {
	cursors         store.CursorRepository
	defaultLookback int64
}

func NewManager(cursors store.CursorRepository, defaultLookback int64) *Manager {
	return &Manager{
		cursors:         cursors,
		defaultLookback: defaultLookback,
	}
}

// NextWindow returns the job's next window, or ok=false when there is
// nothing safe to index: either caught up, or within the confirmation
// margin of the head. A job with no stored cursor bootstraps from
// head - defaultLookback rather than genesis.
func (m *Manager) NextWindow(ctx context.Context, jobName string, head, confirmations, maxBlocks int64) (Window, bool, error) {
	from, found, err := m.cursors.Get(ctx, jobName)
	if err != nil {
		return Window{}, false, fmt.Errorf("read cursor for %s: %w", jobName, err)
	}
	if !found {
		from = head - m.defaultLookback
		if from < 0 {
			from = 0
		}
	}

	to := head - confirmations
	if capped := from + maxBlocks; capped < to {
		to = capped
	}

	if from >= to {
		return Window{}, false, nil
	}
	return Window{FromBlock: from, ToBlock: to}, true, nil
}
