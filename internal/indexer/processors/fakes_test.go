package processors

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/agoramarket/indexer/internal/chain"
	"github.com/agoramarket/indexer/internal/domain/model"
	"github.com/agoramarket/indexer/internal/indexer"
)

var blockTime = time.Unix(1700000000, 0).UTC()

type fixedTimestampSource struct{}

func (fixedTimestampSource) BlockTimestamp(ctx context.Context, blockNumber int64) (time.Time, error) {
	return blockTime, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedResolver() *indexer.TimestampResolver {
	return indexer.NewTimestampResolver(fixedTimestampSource{}, testLogger())
}

func testEvent(t *testing.T, name string, args map[string]interface{}) chain.Event {
	t.Helper()
	return chain.Event{
		Contract:    "test",
		Name:        name,
		BlockNumber: 120,
		TxHash:      "0xtx1",
		LogIndex:    3,
		Args:        args,
	}
}

type fakeAgentRepo struct {
	upserts      []*model.Agent
	updates      []string // "domain|uri" per UpdateMetadata call
	activeStates []bool
	err          error
}

func (f *fakeAgentRepo) Upsert(ctx context.Context, agent *model.Agent) error {
	if f.err != nil {
		return f.err
	}
	f.upserts = append(f.upserts, agent)
	return nil
}

func (f *fakeAgentRepo) UpdateMetadata(ctx context.Context, agentID int64, domain, metadataURI string, blockNumber int64, txHash string) error {
	if f.err != nil {
		return f.err
	}
	f.updates = append(f.updates, domain+"|"+metadataURI)
	return nil
}

func (f *fakeAgentRepo) SetActive(ctx context.Context, agentID int64, active bool, blockNumber int64, txHash string) error {
	if f.err != nil {
		return f.err
	}
	f.activeStates = append(f.activeStates, active)
	return nil
}

func (f *fakeAgentRepo) Get(ctx context.Context, agentID int64) (*model.Agent, error) {
	return nil, nil
}

type fakePaymentRepo struct {
	upserts []*model.Payment
	err     error
}

func (f *fakePaymentRepo) Upsert(ctx context.Context, payment *model.Payment) error {
	if f.err != nil {
		return f.err
	}
	f.upserts = append(f.upserts, payment)
	return nil
}

func (f *fakePaymentRepo) Get(ctx context.Context, paymentID string) (*model.Payment, error) {
	return nil, nil
}

type fakeEscrowRepo struct {
	upserts  []*model.EscrowSession
	statuses []model.EscrowStatus
	err      error
}

func (f *fakeEscrowRepo) Upsert(ctx context.Context, session *model.EscrowSession) error {
	if f.err != nil {
		return f.err
	}
	f.upserts = append(f.upserts, session)
	return nil
}

func (f *fakeEscrowRepo) SetStatus(ctx context.Context, sessionID string, status model.EscrowStatus, blockNumber int64, txHash string) error {
	if f.err != nil {
		return f.err
	}
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeEscrowRepo) Get(ctx context.Context, sessionID string) (*model.EscrowSession, error) {
	return nil, nil
}

type fakeReputationRepo struct {
	feedback []*model.Feedback
	applied  bool
	err      error
}

func (f *fakeReputationRepo) RecordFeedback(ctx context.Context, feedback *model.Feedback) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.feedback = append(f.feedback, feedback)
	return f.applied, nil
}

func (f *fakeReputationRepo) GetScore(ctx context.Context, agentID int64) (*model.ReputationScore, error) {
	return nil, nil
}

type fakeTradeRepo struct {
	upserts []*model.Trade
	err     error
}

func (f *fakeTradeRepo) Upsert(ctx context.Context, trade *model.Trade) error {
	if f.err != nil {
		return f.err
	}
	f.upserts = append(f.upserts, trade)
	return nil
}

func (f *fakeTradeRepo) Get(ctx context.Context, tradeID string) (*model.Trade, error) {
	return nil, nil
}

type fakeHandoffRepo struct {
	upserts   []*model.Handoff
	completed []string
	expired   int64
	sweepCut  time.Time
	err       error
}

func (f *fakeHandoffRepo) Upsert(ctx context.Context, handoff *model.Handoff) error {
	if f.err != nil {
		return f.err
	}
	f.upserts = append(f.upserts, handoff)
	return nil
}

func (f *fakeHandoffRepo) Complete(ctx context.Context, handoffID string, blockNumber int64, txHash string) error {
	if f.err != nil {
		return f.err
	}
	f.completed = append(f.completed, handoffID)
	return nil
}

func (f *fakeHandoffRepo) ExpireStale(ctx context.Context, olderThan time.Time) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.sweepCut = olderThan
	return f.expired, nil
}

func (f *fakeHandoffRepo) Get(ctx context.Context, handoffID string) (*model.Handoff, error) {
	return nil, nil
}
