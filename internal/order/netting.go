package order

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lootex/aggregatord/internal/numeric"
	"github.com/lootex/aggregatord/internal/seaport"
)

// AggregatedConsideration is one netted consideration group: every item
// across the batch sharing (token, itemType, identifier) summed into a
// single entry. One approval or transfer then covers the whole batch.
type AggregatedConsideration struct {
	ItemType             seaport.ItemType
	Token                common.Address
	IdentifierOrCriteria *big.Int
	StartAmount          *big.Int
	EndAmount            *big.Int
	// AvailableAmount is summed only when every contributing item
	// carried one; nil otherwise.
	AvailableAmount *big.Int
}

type netKey struct {
	token    common.Address
	itemType seaport.ItemType
	id       string
}

func keyOf(item seaport.ConsiderationItem) netKey {
	id := ""
	if item.IdentifierOrCriteria != nil {
		id = item.IdentifierOrCriteria.String()
	}
	return netKey{token: item.Token, itemType: item.ItemType, id: id}
}

// netGroup accumulates one group with exact fraction sums. Amounts enter
// as integers but are summed through fractions so later callers mixing
// decimal-derived values lose nothing.
type netGroup struct {
	out            *AggregatedConsideration
	start          numeric.Fraction
	end            numeric.Fraction
	available      numeric.Fraction
	allHaveAvail   bool
}

// NetConsiderations groups the consideration items of all orders by
// (token, itemType, identifier) and sums each group. Group order follows
// first appearance.
func NetConsiderations(orders []*Order) []AggregatedConsideration {
	items := make([]seaport.ConsiderationItem, 0)
	avail := make([]*big.Int, 0)
	for _, o := range orders {
		for _, item := range o.Parameters.Consideration {
			items = append(items, item)
			avail = append(avail, nil)
		}
	}
	return NetConsiderationItems(items, avail)
}

// NetConsiderationItems is the item-level netting primitive. available
// is index-aligned with items; nil entries mean the item's available
// amount is unknown.
func NetConsiderationItems(items []seaport.ConsiderationItem, available []*big.Int) []AggregatedConsideration {
	groups := make(map[netKey]*netGroup)
	ordered := make([]*netGroup, 0, len(items))

	for i, item := range items {
		key := keyOf(item)
		group, ok := groups[key]
		if !ok {
			group = &netGroup{
				out: &AggregatedConsideration{
					ItemType:             item.ItemType,
					Token:                item.Token,
					IdentifierOrCriteria: item.IdentifierOrCriteria,
				},
				allHaveAvail: true,
			}
			groups[key] = group
			ordered = append(ordered, group)
		}

		group.start = group.start.Add(fractionOf(item.StartAmount))
		group.end = group.end.Add(fractionOf(item.EndAmount))
		if i < len(available) && available[i] != nil {
			group.available = group.available.Add(numeric.FromBig(available[i]))
		} else {
			group.allHaveAvail = false
		}
	}

	out := make([]AggregatedConsideration, len(ordered))
	for i, group := range ordered {
		group.out.StartAmount = group.start.Quotient()
		group.out.EndAmount = group.end.Quotient()
		if group.allHaveAvail {
			group.out.AvailableAmount = group.available.Quotient()
		}
		out[i] = *group.out
	}
	return out
}

// PaidByFulfiller drops currency groups when accepting offers: the offer
// itself pays the currency, the fulfiller only delivers the asset.
func PaidByFulfiller(aggregated []AggregatedConsideration, fulfillingOffers bool) []AggregatedConsideration {
	if !fulfillingOffers {
		return aggregated
	}
	out := make([]AggregatedConsideration, 0, len(aggregated))
	for _, item := range aggregated {
		if item.ItemType == seaport.ItemERC20 {
			continue
		}
		out = append(out, item)
	}
	return out
}

func fractionOf(v *big.Int) numeric.Fraction {
	if v == nil {
		return numeric.NewInt(0)
	}
	return numeric.FromBig(v)
}
