package order

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lootex/aggregatord/internal/seaport"
)

// TokenSummary is the total of one payment token across a batch of
// orders being filled together.
type TokenSummary struct {
	ItemType seaport.ItemType
	Token    common.Address
	Amount   *big.Int
}

// SummarizeTokens totals what filling the batch moves in payment tokens.
// For offers the price sits in the first offer item; for listings it is
// the consideration sum scaled by the order's fill fraction.
func SummarizeTokens(orders []*Order) []TokenSummary {
	totals := make(map[common.Address]*TokenSummary)
	ordered := make([]*TokenSummary, 0, len(orders))

	add := func(itemType seaport.ItemType, token common.Address, amount *big.Int) {
		entry, ok := totals[token]
		if !ok {
			entry = &TokenSummary{ItemType: itemType, Token: token, Amount: new(big.Int)}
			totals[token] = entry
			ordered = append(ordered, entry)
		}
		entry.Amount.Add(entry.Amount, amount)
	}

	for _, o := range orders {
		if len(o.Parameters.Offer) > 0 && o.Parameters.Offer[0].ItemType == seaport.ItemERC20 {
			item := o.Parameters.Offer[0]
			add(seaport.ItemERC20, item.Token, bigOr(item.StartAmount))
			continue
		}

		if len(o.Parameters.Consideration) == 0 {
			continue
		}
		numerator, denominator := FillFraction(o.Quantity(), o.UnitsToFill)
		first := o.Parameters.Consideration[0]
		total := new(big.Int)
		for _, item := range o.Parameters.Consideration {
			scaled := new(big.Int).Mul(bigOr(item.StartAmount), numerator)
			scaled.Quo(scaled, denominator)
			total.Add(total, scaled)
		}
		add(first.ItemType, first.Token, total)
	}

	out := make([]TokenSummary, len(ordered))
	for i, entry := range ordered {
		out[i] = *entry
	}
	return out
}

// FindSummary picks the first summary of the given item type, if any.
func FindSummary(summaries []TokenSummary, itemType seaport.ItemType) (TokenSummary, bool) {
	for _, s := range summaries {
		if s.ItemType == itemType {
			return s, true
		}
	}
	return TokenSummary{}, false
}

func bigOr(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
