package processors

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/agoramarket/indexer/internal/chain"
	"github.com/agoramarket/indexer/internal/domain/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// In-memory repositories mirroring the ON CONFLICT semantics of the
// postgres implementations, so the at-least-once delivery contract can
// be checked end to end: applying the same event twice must leave the
// store exactly as a single delivery would.

type memAgentRepo struct{ rows map[int64]model.Agent }

func newMemAgentRepo() *memAgentRepo { return &memAgentRepo{rows: map[int64]model.Agent{}} }

func (m *memAgentRepo) Upsert(ctx context.Context, agent *model.Agent) error {
	row := *agent
	if existing, ok := m.rows[agent.AgentID]; ok && existing.RegisteredAt != nil {
		row.RegisteredAt = existing.RegisteredAt
	}
	m.rows[agent.AgentID] = row
	return nil
}

func (m *memAgentRepo) UpdateMetadata(ctx context.Context, agentID int64, domain, metadataURI string, blockNumber int64, txHash string) error {
	row, ok := m.rows[agentID]
	if !ok {
		row = model.Agent{AgentID: agentID, IsActive: true}
	}
	row.Domain = domain
	row.MetadataURI = metadataURI
	row.BlockNumber = blockNumber
	row.TxHash = txHash
	m.rows[agentID] = row
	return nil
}

func (m *memAgentRepo) SetActive(ctx context.Context, agentID int64, active bool, blockNumber int64, txHash string) error {
	row, ok := m.rows[agentID]
	if !ok {
		row = model.Agent{AgentID: agentID}
	}
	row.IsActive = active
	row.BlockNumber = blockNumber
	row.TxHash = txHash
	m.rows[agentID] = row
	return nil
}

func (m *memAgentRepo) Get(ctx context.Context, agentID int64) (*model.Agent, error) {
	if row, ok := m.rows[agentID]; ok {
		return &row, nil
	}
	return nil, nil
}

type memPaymentRepo struct{ rows map[string]model.Payment }

func newMemPaymentRepo() *memPaymentRepo { return &memPaymentRepo{rows: map[string]model.Payment{}} }

func (m *memPaymentRepo) Upsert(ctx context.Context, payment *model.Payment) error {
	row := *payment
	if existing, ok := m.rows[payment.PaymentID]; ok && existing.PaidAt != nil {
		row.PaidAt = existing.PaidAt
	}
	m.rows[payment.PaymentID] = row
	return nil
}

func (m *memPaymentRepo) Get(ctx context.Context, paymentID string) (*model.Payment, error) {
	if row, ok := m.rows[paymentID]; ok {
		return &row, nil
	}
	return nil, nil
}

type memEscrowRepo struct{ rows map[string]model.EscrowSession }

func newMemEscrowRepo() *memEscrowRepo { return &memEscrowRepo{rows: map[string]model.EscrowSession{}} }

func (m *memEscrowRepo) Upsert(ctx context.Context, session *model.EscrowSession) error {
	row := *session
	if existing, ok := m.rows[session.SessionID]; ok && existing.OpenedAt != nil {
		row.OpenedAt = existing.OpenedAt
	}
	m.rows[session.SessionID] = row
	return nil
}

func (m *memEscrowRepo) SetStatus(ctx context.Context, sessionID string, status model.EscrowStatus, blockNumber int64, txHash string) error {
	row, ok := m.rows[sessionID]
	if !ok {
		row = model.EscrowSession{SessionID: sessionID, Amount: "0"}
	}
	row.Status = status
	row.BlockNumber = blockNumber
	row.TxHash = txHash
	m.rows[sessionID] = row
	return nil
}

func (m *memEscrowRepo) Get(ctx context.Context, sessionID string) (*model.EscrowSession, error) {
	if row, ok := m.rows[sessionID]; ok {
		return &row, nil
	}
	return nil, nil
}

type memReputationRepo struct {
	feedback map[string]model.Feedback
	scores   map[int64]model.ReputationScore
}

func newMemReputationRepo() *memReputationRepo {
	return &memReputationRepo{
		feedback: map[string]model.Feedback{},
		scores:   map[int64]model.ReputationScore{},
	}
}

func (m *memReputationRepo) RecordFeedback(ctx context.Context, feedback *model.Feedback) (bool, error) {
	key := fmt.Sprintf("%s:%d", feedback.TxHash, feedback.LogIndex)
	if _, ok := m.feedback[key]; ok {
		return false, nil
	}
	m.feedback[key] = *feedback

	score := m.scores[feedback.AgentID]
	score.AgentID = feedback.AgentID
	score.FeedbackCount++
	score.RatingSum += int64(feedback.Rating)
	m.scores[feedback.AgentID] = score
	return true, nil
}

func (m *memReputationRepo) GetScore(ctx context.Context, agentID int64) (*model.ReputationScore, error) {
	if score, ok := m.scores[agentID]; ok {
		return &score, nil
	}
	return nil, nil
}

type memTradeRepo struct{ rows map[string]model.Trade }

func newMemTradeRepo() *memTradeRepo { return &memTradeRepo{rows: map[string]model.Trade{}} }

func (m *memTradeRepo) Upsert(ctx context.Context, trade *model.Trade) error {
	row := *trade
	if existing, ok := m.rows[trade.TradeID]; ok && existing.ExecutedAt != nil {
		row.ExecutedAt = existing.ExecutedAt
	}
	m.rows[trade.TradeID] = row
	return nil
}

func (m *memTradeRepo) Get(ctx context.Context, tradeID string) (*model.Trade, error) {
	if row, ok := m.rows[tradeID]; ok {
		return &row, nil
	}
	return nil, nil
}

type memHandoffRepo struct{ rows map[string]model.Handoff }

func newMemHandoffRepo() *memHandoffRepo { return &memHandoffRepo{rows: map[string]model.Handoff{}} }

func (m *memHandoffRepo) Upsert(ctx context.Context, handoff *model.Handoff) error {
	row := *handoff
	if existing, ok := m.rows[handoff.HandoffID]; ok {
		if existing.Status == model.HandoffStatusCompleted {
			row.Status = existing.Status
		}
		if existing.InitiatedAt != nil {
			row.InitiatedAt = existing.InitiatedAt
		}
	}
	m.rows[handoff.HandoffID] = row
	return nil
}

func (m *memHandoffRepo) Complete(ctx context.Context, handoffID string, blockNumber int64, txHash string) error {
	row, ok := m.rows[handoffID]
	if !ok {
		row = model.Handoff{HandoffID: handoffID}
	}
	row.Status = model.HandoffStatusCompleted
	row.BlockNumber = blockNumber
	row.TxHash = txHash
	m.rows[handoffID] = row
	return nil
}

func (m *memHandoffRepo) ExpireStale(ctx context.Context, olderThan time.Time) (int64, error) {
	var n int64
	for id, row := range m.rows {
		if row.Status == model.HandoffStatusPending && row.InitiatedAt != nil && row.InitiatedAt.Before(olderThan) {
			row.Status = model.HandoffStatusExpired
			m.rows[id] = row
			n++
		}
	}
	return n, nil
}

func (m *memHandoffRepo) Get(ctx context.Context, handoffID string) (*model.Handoff, error) {
	if row, ok := m.rows[handoffID]; ok {
		return &row, nil
	}
	return nil, nil
}

// copyMap snapshots repository state so the post-redelivery comparison
// does not alias the live map.
func copyMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func applyTwice(t *testing.T, apply func(context.Context, chain.Event) error, event chain.Event, snapshot func() interface{}) {
	t.Helper()
	require.NoError(t, apply(context.Background(), event))
	once := snapshot()
	require.NoError(t, apply(context.Background(), event))
	assert.Equal(t, once, snapshot(), "second delivery must not change the store")
}

func TestAgents_RedeliveryIsIdempotent(t *testing.T) {
	repo := newMemAgentRepo()
	p := NewAgents(repo, fixedResolver(), testLogger())

	event := testEvent(t, "AgentRegistered", map[string]interface{}{
		"agentId":     big.NewInt(7),
		"owner":       common.HexToAddress("0x00000000000000000000000000000000DeaDBeef"),
		"domain":      "translation",
		"metadataURI": "ipfs://meta/7",
	})
	applyTwice(t, p.Apply, event, func() interface{} { return copyMap(repo.rows) })
	assert.Len(t, repo.rows, 1)

	deactivate := testEvent(t, "AgentDeactivated", map[string]interface{}{
		"agentId": big.NewInt(7),
	})
	applyTwice(t, p.Apply, deactivate, func() interface{} { return copyMap(repo.rows) })

	agent, err := repo.Get(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, agent)
	assert.False(t, agent.IsActive)
	assert.Equal(t, "translation", agent.Domain, "deactivation must not clobber profile fields")
}

func TestPayments_RedeliveryIsIdempotent(t *testing.T) {
	repo := newMemPaymentRepo()
	p := NewPayments(repo, fixedResolver(), testLogger())

	applyTwice(t, p.Apply, testEvent(t, "PaymentSent", paymentSentEvent(t)),
		func() interface{} { return copyMap(repo.rows) })
	assert.Len(t, repo.rows, 1)
}

func TestEscrow_RedeliveryIsIdempotent(t *testing.T) {
	repo := newMemEscrowRepo()
	p := NewEscrow(repo, fixedResolver(), testLogger())

	created := testEvent(t, "SessionCreated", map[string]interface{}{
		"sessionId": common.HexToHash("0xbb"),
		"payer":     common.HexToAddress("0x2222222222222222222222222222222222222222"),
		"payee":     common.HexToAddress("0x3333333333333333333333333333333333333333"),
		"amount":    big.NewInt(1000),
	})
	applyTwice(t, p.Apply, created, func() interface{} { return copyMap(repo.rows) })
	assert.Len(t, repo.rows, 1)

	funded := testEvent(t, "SessionFunded", map[string]interface{}{
		"sessionId": common.HexToHash("0xbb"),
	})
	applyTwice(t, p.Apply, funded, func() interface{} { return copyMap(repo.rows) })

	session, err := repo.Get(context.Background(), "0x00000000000000000000000000000000000000000000000000000000000000bb")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, model.EscrowStatusFunded, session.Status)
	assert.Equal(t, "1000", session.Amount)
}

func TestReputation_RedeliveryIsIdempotent(t *testing.T) {
	repo := newMemReputationRepo()
	p := NewReputation(repo, fixedResolver(), testLogger())

	event := testEvent(t, "FeedbackSubmitted", feedbackEvent())
	require.NoError(t, p.Apply(context.Background(), event))
	require.NoError(t, p.Apply(context.Background(), event))

	assert.Len(t, repo.feedback, 1)
	score, err := repo.GetScore(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, score)
	assert.Equal(t, int64(1), score.FeedbackCount, "aggregate must be bumped once per distinct event")
	assert.Equal(t, int64(5), score.RatingSum)
}

func TestTrades_RedeliveryIsIdempotent(t *testing.T) {
	repo := newMemTradeRepo()
	p := NewTrades(repo, fixedResolver(), testLogger())

	event := testEvent(t, "TradeExecuted", map[string]interface{}{
		"tradeId":   common.HexToHash("0xdd"),
		"listingId": common.HexToHash("0xee"),
		"buyer":     common.HexToAddress("0x5555555555555555555555555555555555555555"),
		"seller":    common.HexToAddress("0x6666666666666666666666666666666666666666"),
		"price":     big.NewInt(42000),
	})
	applyTwice(t, p.Apply, event, func() interface{} { return copyMap(repo.rows) })
	assert.Len(t, repo.rows, 1)
}

func TestHandoffs_RedeliveryIsIdempotent(t *testing.T) {
	repo := newMemHandoffRepo()
	p := NewHandoffs(repo, fixedResolver(), time.Hour, testLogger())

	initiated := testEvent(t, "HandoffInitiated", map[string]interface{}{
		"handoffId":   common.HexToHash("0xff"),
		"fromAgentId": big.NewInt(7),
		"toAgentId":   big.NewInt(9),
	})
	applyTwice(t, p.Apply, initiated, func() interface{} { return copyMap(repo.rows) })
	assert.Len(t, repo.rows, 1)

	completed := testEvent(t, "HandoffCompleted", map[string]interface{}{
		"handoffId": common.HexToHash("0xff"),
	})
	applyTwice(t, p.Apply, completed, func() interface{} { return copyMap(repo.rows) })

	// A re-delivered initiation after completion must not rewind the
	// status: COMPLETED is sticky.
	require.NoError(t, p.Apply(context.Background(), initiated))
	handoff, err := repo.Get(context.Background(), "0x00000000000000000000000000000000000000000000000000000000000000ff")
	require.NoError(t, err)
	require.NotNil(t, handoff)
	assert.Equal(t, model.HandoffStatusCompleted, handoff.Status)
}
