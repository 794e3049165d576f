package chain

import (
	"fmt"
	"strings"

	"github.com/agoramarket/indexer/internal/chain/rpc"
	"github.com/agoramarket/indexer/internal/retry"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Contract binds a deployed address to the event fragments the indexer
// decodes. The ABI is static configuration: only the events named at
// construction are filtered and decoded.
type Contract struct {
	Name    string
	Address common.Address

	abi    abi.ABI
	topics map[common.Hash]string // topic0 -> event name
}

func NewContract(name, address, abiJSON string, events []string) (*Contract, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("contract %s: invalid address %q", name, address)
	}

	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("contract %s: parse abi: %w", name, err)
	}

	if len(events) == 0 {
		return nil, fmt.Errorf("contract %s: no events configured", name)
	}

	topics := make(map[common.Hash]string, len(events))
	for _, eventName := range events {
		ev, ok := parsed.Events[eventName]
		if !ok {
			return nil, fmt.Errorf("contract %s: unknown event %q in abi", name, eventName)
		}
		topics[ev.ID] = eventName
	}

	return &Contract{
		Name:    name,
		Address: common.HexToAddress(address),
		abi:     parsed,
		topics:  topics,
	}, nil
}

// EventTopics returns the topic0 hashes of all configured events, for
// use in the eth_getLogs filter.
func (c *Contract) EventTopics() []string {
	out := make([]string, 0, len(c.topics))
	for topic := range c.topics {
		out = append(out, topic.Hex())
	}
	return out
}

// DecodeLog turns a raw filtered log into a typed Event. Logs whose
// topic0 is not one of the configured events are a terminal error:
// the filter should never have returned them.
func (c *Contract) DecodeLog(lg *rpc.Log) (Event, error) {
	if len(lg.Topics) == 0 {
		return Event{}, retry.Terminal(fmt.Errorf("contract %s: log %s has no topics", c.Name, lg.TransactionHash))
	}

	topic0 := common.HexToHash(lg.Topics[0])
	name, ok := c.topics[topic0]
	if !ok {
		return Event{}, retry.Terminal(fmt.Errorf("contract %s: unknown event topic %s", c.Name, topic0.Hex()))
	}
	ev := c.abi.Events[name]

	args := make(map[string]interface{}, len(ev.Inputs))

	if nonIndexed := ev.Inputs.NonIndexed(); len(nonIndexed) > 0 {
		if err := nonIndexed.UnpackIntoMap(args, common.FromHex(lg.Data)); err != nil {
			return Event{}, retry.Terminal(fmt.Errorf("contract %s: unpack %s data: %w", c.Name, name, err))
		}
	}

	var indexed abi.Arguments
	for _, input := range ev.Inputs {
		if input.Indexed {
			indexed = append(indexed, input)
		}
	}
	if len(indexed) != len(lg.Topics)-1 {
		return Event{}, retry.Terminal(fmt.Errorf("contract %s: %s topic count mismatch: want %d got %d", c.Name, name, len(indexed), len(lg.Topics)-1))
	}
	if len(indexed) > 0 {
		topics := make([]common.Hash, 0, len(indexed))
		for _, t := range lg.Topics[1:] {
			topics = append(topics, common.HexToHash(t))
		}
		if err := abi.ParseTopicsIntoMap(args, indexed, topics); err != nil {
			return Event{}, retry.Terminal(fmt.Errorf("contract %s: parse %s topics: %w", c.Name, name, err))
		}
	}

	blockNumber, err := rpc.ParseHexInt64(lg.BlockNumber)
	if err != nil {
		return Event{}, retry.Terminal(fmt.Errorf("contract %s: log block number: %w", c.Name, err))
	}
	logIndex, err := rpc.ParseHexInt64(lg.LogIndex)
	if err != nil {
		return Event{}, retry.Terminal(fmt.Errorf("contract %s: log index: %w", c.Name, err))
	}

	return Event{
		Contract:    c.Name,
		Name:        name,
		BlockNumber: blockNumber,
		TxHash:      lg.TransactionHash,
		LogIndex:    logIndex,
		Args:        args,
	}, nil
}
