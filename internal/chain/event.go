package chain

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Event is one decoded contract event. Consumed exactly once per
// (TxHash, LogIndex) pair per job; re-delivery across overlapping runs
// is expected and handled by idempotent upserts downstream.
type Event struct {
	Contract    string
	Name        string
	BlockNumber int64
	TxHash      string
	LogIndex    int64
	Args        map[string]interface{}
}

// ID returns the stable per-job identity of the event.
func (e Event) ID() string {
	return fmt.Sprintf("%s:%d", e.TxHash, e.LogIndex)
}

// BigInt returns a uint256/int256 argument.
func (e Event) BigInt(name string) (*big.Int, error) {
	v, ok := e.Args[name]
	if !ok {
		return nil, fmt.Errorf("event %s: missing arg %q", e.Name, name)
	}
	n, ok := v.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("event %s: arg %q is %T, not *big.Int", e.Name, name, v)
	}
	return n, nil
}

// Int64 returns a uint256 argument that is expected to fit in int64
// (registry-assigned identifiers, not token amounts).
func (e Event) Int64(name string) (int64, error) {
	n, err := e.BigInt(name)
	if err != nil {
		return 0, err
	}
	if !n.IsInt64() {
		return 0, fmt.Errorf("event %s: arg %q overflows int64", e.Name, name)
	}
	return n.Int64(), nil
}

// Amount returns a uint256 argument as its decimal string form, the
// shape the store keeps NUMERIC(78,0) columns in.
func (e Event) Amount(name string) (string, error) {
	n, err := e.BigInt(name)
	if err != nil {
		return "", err
	}
	return n.String(), nil
}

// Address returns an address argument in lowercase hex.
func (e Event) Address(name string) (string, error) {
	v, ok := e.Args[name]
	if !ok {
		return "", fmt.Errorf("event %s: missing arg %q", e.Name, name)
	}
	addr, ok := v.(common.Address)
	if !ok {
		return "", fmt.Errorf("event %s: arg %q is %T, not address", e.Name, name, v)
	}
	return strings.ToLower(addr.Hex()), nil
}

// String returns a string argument.
func (e Event) String(name string) (string, error) {
	v, ok := e.Args[name]
	if !ok {
		return "", fmt.Errorf("event %s: missing arg %q", e.Name, name)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("event %s: arg %q is %T, not string", e.Name, name, v)
	}
	return s, nil
}

// Uint8 returns a uint8 argument (ratings, small enums).
func (e Event) Uint8(name string) (uint8, error) {
	v, ok := e.Args[name]
	if !ok {
		return 0, fmt.Errorf("event %s: missing arg %q", e.Name, name)
	}
	n, ok := v.(uint8)
	if !ok {
		return 0, fmt.Errorf("event %s: arg %q is %T, not uint8", e.Name, name, v)
	}
	return n, nil
}

// Bytes32Hex returns a bytes32 argument as 0x-prefixed lowercase hex,
// the canonical form for identifiers like session and payment IDs.
func (e Event) Bytes32Hex(name string) (string, error) {
	v, ok := e.Args[name]
	if !ok {
		return "", fmt.Errorf("event %s: missing arg %q", e.Name, name)
	}
	b, ok := v.([32]byte)
	if !ok {
		if h, isHash := v.(common.Hash); isHash {
			return strings.ToLower(h.Hex()), nil
		}
		return "", fmt.Errorf("event %s: arg %q is %T, not bytes32", e.Name, name, v)
	}
	return "0x" + hex.EncodeToString(b[:]), nil
}
