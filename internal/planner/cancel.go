package planner

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lootex/aggregatord/internal/order"
	"github.com/lootex/aggregatord/internal/seaport"
)

// PlanCancellations filters out orders already dead on chain and
// encodes one settlement cancel call per exchange address for the rest.
func (p *Planner) PlanCancellations(ctx context.Context, orders []*order.Order) (*Plan, error) {
	if len(orders) == 0 {
		return nil, ErrNoOrders
	}

	byExchange := make(map[common.Address][]*order.Order)
	var exchanges []common.Address
	var live []*order.Order

	for _, o := range orders {
		status, err := p.reader.OrderStatus(ctx, o.ExchangeAddress, o.Hash)
		if err != nil {
			return nil, fmt.Errorf("status for %s: %w", o.Hash.Hex(), err)
		}
		if status.IsCancelled || status.FullyFilled() {
			p.warn("skipping dead order in cancellation plan",
				"hash", o.Hash.Hex(), "cancelled", status.IsCancelled)
			continue
		}
		if _, ok := byExchange[o.ExchangeAddress]; !ok {
			exchanges = append(exchanges, o.ExchangeAddress)
		}
		byExchange[o.ExchangeAddress] = append(byExchange[o.ExchangeAddress], o)
		live = append(live, o)
	}

	plan := &Plan{Orders: live, store: p.store}
	for _, exchange := range exchanges {
		group := byExchange[exchange]
		components := make([]seaport.OrderComponents, len(group))
		hashes := make([]common.Hash, len(group))
		for i, o := range group {
			components[i] = o.Components()
			hashes[i] = o.Hash
		}
		data, err := seaport.EncodeCancel(components)
		if err != nil {
			return nil, err
		}
		plan.Actions = append(plan.Actions, &ExchangeAction{To: exchange, Data: data, OrderHashes: hashes})
	}
	return plan, nil
}
