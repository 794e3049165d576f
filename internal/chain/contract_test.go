package chain

import (
	"encoding/hex"
	"math/big"
	"strings"
	"testing"

	"github.com/agoramarket/indexer/internal/chain/rpc"
	"github.com/agoramarket/indexer/internal/retry"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const registryABI = `[
	{"type":"event","name":"AgentRegistered","inputs":[
		{"name":"agentId","type":"uint256","indexed":true},
		{"name":"owner","type":"address","indexed":true},
		{"name":"domain","type":"string","indexed":false},
		{"name":"metadataURI","type":"string","indexed":false}]},
	{"type":"event","name":"AgentDeactivated","inputs":[
		{"name":"agentId","type":"uint256","indexed":true}]},
	{"type":"event","name":"PaymentSent","inputs":[
		{"name":"paymentId","type":"bytes32","indexed":true},
		{"name":"payer","type":"address","indexed":true},
		{"name":"payee","type":"address","indexed":true},
		{"name":"token","type":"address","indexed":false},
		{"name":"amount","type":"uint256","indexed":false}]}
]`

const registryAddr = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

func mustParseABI(t *testing.T) abi.ABI {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(registryABI))
	require.NoError(t, err)
	return parsed
}

// registeredLog builds a raw log for AgentRegistered the way a provider
// would return it: topic0 plus indexed topics, non-indexed args packed
// into data.
func registeredLog(t *testing.T, agentID int64, owner common.Address, domain, uri string, block, logIndex int64) *rpc.Log {
	t.Helper()
	parsed := mustParseABI(t)
	ev := parsed.Events["AgentRegistered"]

	data, err := ev.Inputs.NonIndexed().Pack(domain, uri)
	require.NoError(t, err)

	return &rpc.Log{
		Address: registryAddr,
		Topics: []string{
			ev.ID.Hex(),
			common.BigToHash(big.NewInt(agentID)).Hex(),
			common.BytesToHash(owner.Bytes()).Hex(),
		},
		Data:            "0x" + hex.EncodeToString(data),
		BlockNumber:     rpc.FormatHexInt64(block),
		TransactionHash: "0xtx1",
		LogIndex:        rpc.FormatHexInt64(logIndex),
	}
}

func TestNewContract_Validation(t *testing.T) {
	_, err := NewContract("registry", "not-an-address", registryABI, []string{"AgentRegistered"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid address")

	_, err = NewContract("registry", registryAddr, `{broken`, []string{"AgentRegistered"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse abi")

	_, err = NewContract("registry", registryAddr, registryABI, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no events configured")

	_, err = NewContract("registry", registryAddr, registryABI, []string{"NoSuchEvent"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown event")
}

func TestEventTopics(t *testing.T) {
	c, err := NewContract("registry", registryAddr, registryABI, []string{"AgentRegistered", "AgentDeactivated"})
	require.NoError(t, err)

	parsed := mustParseABI(t)
	topics := c.EventTopics()
	assert.Len(t, topics, 2)
	assert.Contains(t, topics, parsed.Events["AgentRegistered"].ID.Hex())
	assert.Contains(t, topics, parsed.Events["AgentDeactivated"].ID.Hex())
}

func TestDecodeLog_AgentRegistered(t *testing.T) {
	c, err := NewContract("registry", registryAddr, registryABI, []string{"AgentRegistered"})
	require.NoError(t, err)

	owner := common.HexToAddress("0x00000000000000000000000000000000DeaDBeef")
	lg := registeredLog(t, 7, owner, "translation", "ipfs://meta/7", 120, 3)

	event, err := c.DecodeLog(lg)
	require.NoError(t, err)

	assert.Equal(t, "registry", event.Contract)
	assert.Equal(t, "AgentRegistered", event.Name)
	assert.Equal(t, int64(120), event.BlockNumber)
	assert.Equal(t, "0xtx1", event.TxHash)
	assert.Equal(t, int64(3), event.LogIndex)
	assert.Equal(t, "0xtx1:3", event.ID())

	agentID, err := event.Int64("agentId")
	require.NoError(t, err)
	assert.Equal(t, int64(7), agentID)

	gotOwner, err := event.Address("owner")
	require.NoError(t, err)
	assert.Equal(t, strings.ToLower(owner.Hex()), gotOwner)

	domain, err := event.String("domain")
	require.NoError(t, err)
	assert.Equal(t, "translation", domain)

	uri, err := event.String("metadataURI")
	require.NoError(t, err)
	assert.Equal(t, "ipfs://meta/7", uri)
}

func TestDecodeLog_IndexedBytes32AndAmount(t *testing.T) {
	c, err := NewContract("payments", registryAddr, registryABI, []string{"PaymentSent"})
	require.NoError(t, err)

	parsed := mustParseABI(t)
	ev := parsed.Events["PaymentSent"]

	token := common.HexToAddress("0x1111111111111111111111111111111111111111")
	amount, ok := new(big.Int).SetString("123456789012345678901234567890", 10)
	require.True(t, ok)
	data, err := ev.Inputs.NonIndexed().Pack(token, amount)
	require.NoError(t, err)

	paymentID := common.HexToHash("0x00000000000000000000000000000000000000000000000000000000000000aa")
	payer := common.HexToAddress("0x2222222222222222222222222222222222222222")
	payee := common.HexToAddress("0x3333333333333333333333333333333333333333")

	event, err := c.DecodeLog(&rpc.Log{
		Address: registryAddr,
		Topics: []string{
			ev.ID.Hex(),
			paymentID.Hex(),
			common.BytesToHash(payer.Bytes()).Hex(),
			common.BytesToHash(payee.Bytes()).Hex(),
		},
		Data:            "0x" + hex.EncodeToString(data),
		BlockNumber:     "0x10",
		TransactionHash: "0xtx2",
		LogIndex:        "0x0",
	})
	require.NoError(t, err)

	gotID, err := event.Bytes32Hex("paymentId")
	require.NoError(t, err)
	assert.Equal(t, strings.ToLower(paymentID.Hex()), gotID)

	gotAmount, err := event.Amount("amount")
	require.NoError(t, err)
	assert.Equal(t, "123456789012345678901234567890", gotAmount)
}

func TestDecodeLog_UnknownTopicIsTerminal(t *testing.T) {
	c, err := NewContract("registry", registryAddr, registryABI, []string{"AgentRegistered"})
	require.NoError(t, err)

	_, err = c.DecodeLog(&rpc.Log{
		Topics:          []string{common.HexToHash("0xff").Hex()},
		TransactionHash: "0xtx",
	})
	require.Error(t, err)
	assert.Equal(t, retry.ClassTerminal, retry.Classify(err).Class)
}

func TestDecodeLog_TopicCountMismatch(t *testing.T) {
	c, err := NewContract("registry", registryAddr, registryABI, []string{"AgentRegistered"})
	require.NoError(t, err)

	parsed := mustParseABI(t)
	_, err = c.DecodeLog(&rpc.Log{
		Topics:          []string{parsed.Events["AgentRegistered"].ID.Hex()}, // missing indexed topics
		Data:            "0x",
		BlockNumber:     "0x1",
		TransactionHash: "0xtx",
		LogIndex:        "0x0",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "topic count mismatch")
}

func TestDecodeLog_NoTopics(t *testing.T) {
	c, err := NewContract("registry", registryAddr, registryABI, []string{"AgentRegistered"})
	require.NoError(t, err)

	_, err = c.DecodeLog(&rpc.Log{TransactionHash: "0xtx"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no topics")
}
