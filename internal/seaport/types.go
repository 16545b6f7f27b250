// Package seaport implements the subset of the Seaport 1.6 settlement
// protocol the aggregation engine depends on: order types, structured
// hashing, bulk-order merkle signing and the ABI surface of the
// settlement, aggregator and token contracts.
package seaport

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ItemType identifies what kind of asset an order item moves.
type ItemType uint8

const (
	ItemNative ItemType = iota
	ItemERC20
	ItemERC721
	ItemERC1155
	ItemERC721WithCriteria
	ItemERC1155WithCriteria
)

// IsCurrency reports whether the item is a payment token.
func (t ItemType) IsCurrency() bool {
	return t == ItemNative || t == ItemERC20
}

// IsWithCriteria reports whether the item resolves its identifier through
// a criteria proof.
func (t ItemType) IsWithCriteria() bool {
	return t == ItemERC721WithCriteria || t == ItemERC1155WithCriteria
}

// WithCriteria maps ERC721/ERC1155 to their criteria variants. Other
// types are returned unchanged.
func (t ItemType) WithCriteria() ItemType {
	if t == ItemERC721 || t == ItemERC1155 {
		return t + 2
	}
	return t
}

// WithoutCriteria is the inverse of WithCriteria.
func (t ItemType) WithoutCriteria() ItemType {
	if t.IsWithCriteria() {
		return t - 2
	}
	return t
}

func (t ItemType) String() string {
	switch t {
	case ItemNative:
		return "NATIVE"
	case ItemERC20:
		return "ERC20"
	case ItemERC721:
		return "ERC721"
	case ItemERC1155:
		return "ERC1155"
	case ItemERC721WithCriteria:
		return "ERC721_WITH_CRITERIA"
	case ItemERC1155WithCriteria:
		return "ERC1155_WITH_CRITERIA"
	}
	return "UNKNOWN"
}

// OrderType encodes the fill and zone restrictions of an order.
type OrderType uint8

const (
	FullOpen OrderType = iota
	PartialOpen
	FullRestricted
	PartialRestricted
)

// AllowsPartialFill reports whether the order may be filled in fractions.
func (t OrderType) AllowsPartialFill() bool {
	return t == PartialOpen || t == PartialRestricted
}

// Side distinguishes the two item lists of an order.
type Side uint8

const (
	SideOffer Side = iota
	SideConsideration
)

// OfferItem is something the order's maker gives up.
type OfferItem struct {
	ItemType             ItemType
	Token                common.Address
	IdentifierOrCriteria *big.Int
	StartAmount          *big.Int
	EndAmount            *big.Int
}

// ConsiderationItem is something the order demands in return, paid to
// Recipient.
type ConsiderationItem struct {
	ItemType             ItemType
	Token                common.Address
	IdentifierOrCriteria *big.Int
	StartAmount          *big.Int
	EndAmount            *big.Int
	Recipient            common.Address
}

// OrderParameters is the on-chain order body minus the counter.
type OrderParameters struct {
	Offerer       common.Address
	Zone          common.Address
	Offer         []OfferItem
	Consideration []ConsiderationItem
	OrderType     OrderType
	StartTime     *big.Int
	EndTime       *big.Int
	ZoneHash      common.Hash
	Salt          *big.Int
	ConduitKey    common.Hash
	// TotalOriginalConsiderationItems pins how many consideration items
	// the signature covers; tips appended later are not signed over.
	TotalOriginalConsiderationItems *big.Int
}

// OrderComponents is what gets signed: the parameters plus the offerer's
// replay-protection counter.
type OrderComponents struct {
	OrderParameters
	Counter *big.Int
}

// Components attaches a counter to the parameters.
func (p OrderParameters) Components(counter *big.Int) OrderComponents {
	return OrderComponents{OrderParameters: p, Counter: counter}
}

// Order is a signed order ready for submission.
type Order struct {
	Parameters OrderParameters
	Signature  []byte
}

// AdvancedOrder augments an order with a fill fraction for partial fills.
type AdvancedOrder struct {
	Parameters  OrderParameters
	Numerator   *big.Int
	Denominator *big.Int
	Signature   []byte
	ExtraData   []byte
}

// CriteriaResolver supplies the concrete identifier (and membership
// proof) for a criteria-based item at fulfillment time.
type CriteriaResolver struct {
	OrderIndex    *big.Int
	Side          Side
	Index         *big.Int
	Identifier    *big.Int
	CriteriaProof []common.Hash
}

// FulfillmentComponent points at one item of one order within a batch
// fulfillment.
type FulfillmentComponent struct {
	OrderIndex *big.Int
	ItemIndex  *big.Int
}

// OrderStatus mirrors the settlement contract's getOrderStatus return.
type OrderStatus struct {
	IsValidated bool
	IsCancelled bool
	TotalFilled *big.Int
	TotalSize   *big.Int
}

// FullyFilled reports whether the whole order size has been consumed.
func (s OrderStatus) FullyFilled() bool {
	if s.TotalSize == nil || s.TotalSize.Sign() == 0 {
		return false
	}
	return s.TotalFilled != nil && s.TotalFilled.Cmp(s.TotalSize) >= 0
}

// SpentItem is an offer item as reported by an OrderFulfilled log.
type SpentItem struct {
	ItemType   ItemType
	Token      common.Address
	Identifier *big.Int
	Amount     *big.Int
}

// ReceivedItem is a consideration item as reported by an OrderFulfilled
// log.
type ReceivedItem struct {
	ItemType   ItemType
	Token      common.Address
	Identifier *big.Int
	Amount     *big.Int
	Recipient  common.Address
}

// FulfilledOrder is one decoded OrderFulfilled event.
type FulfilledOrder struct {
	OrderHash     common.Hash
	Offerer       common.Address
	Zone          common.Address
	Recipient     common.Address
	Offer         []SpentItem
	Consideration []ReceivedItem
}
