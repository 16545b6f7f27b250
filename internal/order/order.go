// Package order defines the canonical order wrapper shared by the
// builder, planner, validator and reconciler, together with the derived
// views (quantities, fill fractions, token summaries) and consideration
// netting.
package order

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lootex/aggregatord/internal/marketplace"
	"github.com/lootex/aggregatord/internal/seaport"
)

// Category tells what the order is from the maker's point of view.
type Category string

const (
	CategoryListing         Category = "listing"
	CategoryOffer           Category = "offer"
	CategoryCollectionOffer Category = "collection_offer"
)

// IsOffer reports whether the order pays currency for an asset.
func (c Category) IsOffer() bool {
	return c == CategoryOffer || c == CategoryCollectionOffer
}

// Order wraps the protocol-level components with everything the engine
// tracks alongside them. Hash is derived from the components and never
// mutated independently.
type Order struct {
	Hash            common.Hash
	ChainID         uint64
	ExchangeAddress common.Address
	Offerer         common.Address
	Parameters      seaport.OrderParameters
	Counter         *big.Int
	Signature       []byte
	Category        Category
	Platform        marketplace.Source

	// UnitsToFill caps how much of a partial-fill order this invocation
	// consumes; nil means the whole order.
	UnitsToFill *big.Int

	// CriteriaIdentifiers carries the concrete token ids chosen for
	// criteria-based consideration items, index-aligned with the
	// consideration list entries that need resolving.
	CriteriaIdentifiers []*big.Int
}

// Components attaches the stored counter to the parameters.
func (o *Order) Components() seaport.OrderComponents {
	return o.Parameters.Components(o.Counter)
}

// Signed reports whether the order carries a signature.
func (o *Order) Signed() bool {
	return len(o.Signature) > 0
}

// Expired reports whether the order's end time has passed.
func (o *Order) Expired(now time.Time) bool {
	if o.Parameters.EndTime == nil {
		return false
	}
	return o.Parameters.EndTime.Cmp(big.NewInt(now.Unix())) <= 0
}

// Quantity is the order's asset unit count: the first offer item for
// listings, the first consideration item for offers.
func (o *Order) Quantity() *big.Int {
	if o.Category == CategoryListing {
		if len(o.Parameters.Offer) == 0 || o.Parameters.Offer[0].StartAmount == nil {
			return big.NewInt(1)
		}
		return o.Parameters.Offer[0].StartAmount
	}
	if len(o.Parameters.Consideration) == 0 || o.Parameters.Consideration[0].StartAmount == nil {
		return big.NewInt(1)
	}
	return o.Parameters.Consideration[0].StartAmount
}

// FillFraction reduces unitsToFill/totalSize to lowest terms for the
// advanced-order numerator and denominator. A nil unitsToFill means a
// full fill.
func FillFraction(totalSize, unitsToFill *big.Int) (numerator, denominator *big.Int) {
	if unitsToFill == nil || unitsToFill.Sign() == 0 || totalSize == nil || totalSize.Sign() == 0 {
		return big.NewInt(1), big.NewInt(1)
	}
	gcd := new(big.Int).GCD(nil, nil, unitsToFill, totalSize)
	return new(big.Int).Quo(unitsToFill, gcd), new(big.Int).Quo(totalSize, gcd)
}

// Advanced converts the order into the advanced form carrying its fill
// fraction.
func (o *Order) Advanced() seaport.AdvancedOrder {
	numerator, denominator := FillFraction(o.Quantity(), o.UnitsToFill)
	return seaport.AdvancedOrder{
		Parameters:  o.Parameters,
		Numerator:   numerator,
		Denominator: denominator,
		Signature:   o.Signature,
		ExtraData:   []byte{},
	}
}

// PrimaryAsset returns the NFT item the order is about: the first offer
// item for listings, the first consideration item for offers.
func (o *Order) PrimaryAsset() (token common.Address, identifier *big.Int, itemType seaport.ItemType) {
	if o.Category == CategoryListing {
		if len(o.Parameters.Offer) == 0 {
			return common.Address{}, nil, seaport.ItemNative
		}
		item := o.Parameters.Offer[0]
		return item.Token, item.IdentifierOrCriteria, item.ItemType
	}
	if len(o.Parameters.Consideration) == 0 {
		return common.Address{}, nil, seaport.ItemNative
	}
	item := o.Parameters.Consideration[0]
	return item.Token, item.IdentifierOrCriteria, item.ItemType
}

// IsPrivateListing detects a directed sale: a listing whose
// consideration includes an asset item addressed to a specific
// recipient rather than a plain currency payout.
func IsPrivateListing(params seaport.OrderParameters) bool {
	for _, item := range params.Consideration {
		if !item.ItemType.IsCurrency() && item.Recipient != (common.Address{}) {
			return true
		}
	}
	return false
}
