package cursor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCursors struct {
	blocks map[string]int64
	err    error
}

func (f *fakeCursors) Get(ctx context.Context, jobName string) (int64, bool, error) {
	if f.err != nil {
		return 0, false, f.err
	}
	block, ok := f.blocks[jobName]
	return block, ok, nil
}

func (f *fakeCursors) Set(ctx context.Context, jobName string, block int64) error {
	if f.blocks == nil {
		f.blocks = make(map[string]int64)
	}
	f.blocks[jobName] = block
	return nil
}

func TestNextWindow_BootstrapFromLookback(t *testing.T) {
	m := NewManager(&fakeCursors{}, 10000)

	// Head well below the lookback: bootstrap clamps to genesis, the
	// confirmation margin trims the top, and the cap trims it further.
	w, ok, err := m.NextWindow(context.Background(), "agents", 1000, 6, 100)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(0), w.FromBlock)
	assert.Equal(t, int64(100), w.ToBlock)
	assert.Equal(t, int64(100), w.Size())
}

func TestNextWindow_BootstrapAboveGenesis(t *testing.T) {
	m := NewManager(&fakeCursors{}, 1000)

	w, ok, err := m.NextWindow(context.Background(), "agents", 50000, 6, 10000)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(49000), w.FromBlock)
	assert.Equal(t, int64(49994), w.ToBlock)
}

func TestNextWindow_ResumesFromCursor(t *testing.T) {
	m := NewManager(&fakeCursors{blocks: map[string]int64{"agents": 500}}, 10000)

	w, ok, err := m.NextWindow(context.Background(), "agents", 1000, 6, 100)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(500), w.FromBlock)
	assert.Equal(t, int64(600), w.ToBlock)
}

func TestNextWindow_CapDoesNotOvershootHead(t *testing.T) {
	m := NewManager(&fakeCursors{blocks: map[string]int64{"agents": 980}}, 10000)

	w, ok, err := m.NextWindow(context.Background(), "agents", 1000, 6, 100)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(980), w.FromBlock)
	assert.Equal(t, int64(994), w.ToBlock)
}

func TestNextWindow_CaughtUp(t *testing.T) {
	m := NewManager(&fakeCursors{blocks: map[string]int64{"agents": 994}}, 10000)

	_, ok, err := m.NextWindow(context.Background(), "agents", 1000, 6, 100)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNextWindow_WithinConfirmationMargin(t *testing.T) {
	m := NewManager(&fakeCursors{blocks: map[string]int64{"agents": 998}}, 10000)

	_, ok, err := m.NextWindow(context.Background(), "agents", 1000, 6, 100)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNextWindow_CursorReadError(t *testing.T) {
	m := NewManager(&fakeCursors{err: errors.New("db down")}, 10000)

	_, _, err := m.NextWindow(context.Background(), "agents", 1000, 6, 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read cursor")
}

func TestNextWindow_ZeroConfirmations(t *testing.T) {
	m := NewManager(&fakeCursors{blocks: map[string]int64{"agents": 990}}, 10000)

	w, ok, err := m.NextWindow(context.Background(), "agents", 1000, 0, 100)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1000), w.ToBlock)
}
