// Package marketplace is the closed registry of order sources the
// aggregator can settle against. Each source carries the metadata the
// planner needs (aggregator group id, fulfiller conduit key, approval
// operator) and the byte framing the aggregator contract consumes.
package marketplace

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lootex/aggregatord/internal/seaport"
)

// Source tags the marketplace an order originates from.
type Source uint16

const (
	Lootex  Source = 0
	OpenSea Source = 1
)

var ErrUnknownSource = errors.New("marketplace: unknown source")

// descriptor is one registry row; the table below is the only place a
// new marketplace gets wired in.
type descriptor struct {
	name       string
	conduitKey common.Hash
	// approvalOperator is what token approvals must target; zero means
	// the order's own exchange address.
	approvalOperator common.Address
}

var registry = map[Source]descriptor{
	Lootex: {
		name:       "Lootex",
		conduitKey: common.Hash{},
	},
	OpenSea: {
		name:             "OpenSea",
		conduitKey:       seaport.OpenSeaConduitKey,
		approvalOperator: seaport.OpenSeaConduitAddress,
	},
}

// Known reports whether the source is registered.
func Known(s Source) bool {
	_, ok := registry[s]
	return ok
}

func (s Source) String() string {
	if d, ok := registry[s]; ok {
		return d.name
	}
	return fmt.Sprintf("marketplace(%d)", uint16(s))
}

// ConduitKey is the fulfiller conduit key for groups of this source.
func (s Source) ConduitKey() common.Hash {
	return registry[s].conduitKey
}

// ApprovalOperator resolves the address token approvals must target for
// an order of this source; exchangeAddress is used when the source has
// no dedicated conduit.
func (s Source) ApprovalOperator(exchangeAddress common.Address) common.Address {
	if op := registry[s].approvalOperator; op != (common.Address{}) {
		return op
	}
	return exchangeAddress
}

// Group is one marketplace's slice of a batched fulfillment: the
// settlement calldata plus the native value it needs.
type Group struct {
	Source      Source
	NativeValue *big.Int
	Calldata    []byte
}

// Frame packs one group into the aggregator's byte framing: uint16
// source id, uint8 continue-if-failed, 21-byte native value, uint32
// payload length, then the settlement calldata.
func Frame(g Group) ([]byte, error) {
	if !Known(g.Source) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSource, g.Source)
	}

	value := g.NativeValue
	if value == nil {
		value = new(big.Int)
	}
	if value.Sign() < 0 || value.BitLen() > 21*8 {
		return nil, fmt.Errorf("marketplace: native value out of range: %s", value)
	}

	out := make([]byte, 0, 2+1+21+4+len(g.Calldata))

	var id [2]byte
	binary.BigEndian.PutUint16(id[:], uint16(g.Source))
	out = append(out, id[:]...)

	out = append(out, 1) // continue if failed

	valueBytes := make([]byte, 21)
	value.FillBytes(valueBytes)
	out = append(out, valueBytes...)

	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(g.Calldata)))
	out = append(out, length[:]...)

	return append(out, g.Calldata...), nil
}

// FrameAll frames every group and concatenates them in ascending source
// id order, the layout the aggregator contract walks.
func FrameAll(groups []Group) ([]byte, error) {
	sorted := make([]Group, len(groups))
	copy(sorted, groups)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Source < sorted[j].Source
	})

	var out []byte
	for _, g := range sorted {
		framed, err := Frame(g)
		if err != nil {
			return nil, err
		}
		out = append(out, framed...)
	}
	return out, nil
}
