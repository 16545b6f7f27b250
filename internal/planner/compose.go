package planner

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lootex/aggregatord/internal/marketplace"
	"github.com/lootex/aggregatord/internal/order"
	"github.com/lootex/aggregatord/internal/seaport"
)

// composeGroups splits a chunk by originating marketplace and encodes
// each group's settlement calldata. FrameAll later sorts the groups by
// source id.
func composeGroups(chunk []*order.Order, recipient common.Address) ([]marketplace.Group, error) {
	bySource := make(map[marketplace.Source][]*order.Order)
	var sources []marketplace.Source
	for _, o := range chunk {
		if _, ok := bySource[o.Platform]; !ok {
			sources = append(sources, o.Platform)
		}
		bySource[o.Platform] = append(bySource[o.Platform], o)
	}

	groups := make([]marketplace.Group, 0, len(sources))
	for _, source := range sources {
		group := bySource[source]
		calldata, err := settlementCalldata(group, source.ConduitKey(), recipient)
		if err != nil {
			return nil, err
		}
		groups = append(groups, marketplace.Group{
			Source:      source,
			NativeValue: nativeValue(group),
			Calldata:    calldata,
		})
	}
	return groups, nil
}

// settlementCalldata encodes one marketplace group: a direct
// fulfillAdvancedOrder for a single order, fulfillAvailable for more.
func settlementCalldata(group []*order.Order, conduitKey common.Hash, recipient common.Address) ([]byte, error) {
	if len(group) == 1 {
		return seaport.EncodeFulfillAdvancedOrder(
			group[0].Advanced(), criteriaResolvers(group), conduitKey, recipient)
	}

	advanced := make([]seaport.AdvancedOrder, len(group))
	for i, o := range group {
		advanced[i] = o.Advanced()
	}

	return seaport.EncodeFulfillAvailableAdvancedOrders(
		advanced,
		criteriaResolvers(group),
		offerFulfillments(group),
		considerationFulfillments(group),
		conduitKey,
		recipient,
		big.NewInt(int64(len(group))),
	)
}

// criteriaResolvers supplies the chosen identifier for every
// criteria-based consideration item in the group. A zero criteria root
// accepts any identifier, so the proof stays empty.
func criteriaResolvers(group []*order.Order) []seaport.CriteriaResolver {
	var resolvers []seaport.CriteriaResolver
	for orderIndex, o := range group {
		next := 0
		for itemIndex, item := range o.Parameters.Consideration {
			if !item.ItemType.IsWithCriteria() {
				continue
			}
			identifier := new(big.Int)
			if next < len(o.CriteriaIdentifiers) && o.CriteriaIdentifiers[next] != nil {
				identifier = o.CriteriaIdentifiers[next]
			}
			next++
			resolvers = append(resolvers, seaport.CriteriaResolver{
				OrderIndex: big.NewInt(int64(orderIndex)),
				Side:       seaport.SideConsideration,
				Index:      big.NewInt(int64(itemIndex)),
				Identifier: identifier,
			})
		}
	}
	return resolvers
}

// offerFulfillments keeps every offer item its own singleton; offer
// sides never aggregate across orders.
func offerFulfillments(group []*order.Order) [][]seaport.FulfillmentComponent {
	var out [][]seaport.FulfillmentComponent
	for orderIndex, o := range group {
		for itemIndex := range o.Parameters.Offer {
			out = append(out, []seaport.FulfillmentComponent{{
				OrderIndex: big.NewInt(int64(orderIndex)),
				ItemIndex:  big.NewInt(int64(itemIndex)),
			}})
		}
	}
	return out
}

type componentKey struct {
	token     common.Address
	itemType  seaport.ItemType
	id        string
	recipient common.Address
}

// considerationFulfillments aggregates matching consideration items
// across the group so one transfer settles each (token, recipient)
// lane. Lane order follows first appearance.
func considerationFulfillments(group []*order.Order) [][]seaport.FulfillmentComponent {
	lanes := make(map[componentKey]int)
	var out [][]seaport.FulfillmentComponent

	for orderIndex, o := range group {
		for itemIndex, item := range o.Parameters.Consideration {
			id := ""
			if item.IdentifierOrCriteria != nil {
				id = item.IdentifierOrCriteria.String()
			}
			key := componentKey{item.Token, item.ItemType, id, item.Recipient}
			component := seaport.FulfillmentComponent{
				OrderIndex: big.NewInt(int64(orderIndex)),
				ItemIndex:  big.NewInt(int64(itemIndex)),
			}
			if lane, ok := lanes[key]; ok {
				out[lane] = append(out[lane], component)
				continue
			}
			lanes[key] = len(out)
			out = append(out, []seaport.FulfillmentComponent{component})
		}
	}
	return out
}

// nativeValue totals the native currency one group's fills require,
// scaled by each order's fill fraction.
func nativeValue(group []*order.Order) *big.Int {
	total := new(big.Int)
	for _, o := range group {
		numerator, denominator := order.FillFraction(o.Quantity(), o.UnitsToFill)
		for _, item := range o.Parameters.Consideration {
			if item.ItemType != seaport.ItemNative || item.StartAmount == nil {
				continue
			}
			scaled := new(big.Int).Mul(item.StartAmount, numerator)
			scaled.Quo(scaled, denominator)
			total.Add(total, scaled)
		}
	}
	return total
}
