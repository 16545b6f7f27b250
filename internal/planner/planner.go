// Package planner turns a batch of signed orders into the on-chain
// action sequence that fills or cancels them: missing-approval
// detection over netted considerations, per-marketplace settlement
// calldata, and the aggregator call wrapping it all.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lootex/aggregatord/internal/chain"
	"github.com/lootex/aggregatord/internal/marketplace"
	"github.com/lootex/aggregatord/internal/numeric"
	"github.com/lootex/aggregatord/internal/order"
	"github.com/lootex/aggregatord/internal/seaport"
)

var (
	ErrNoOrders            = errors.New("planner: no orders")
	ErrNoAggregatorAddress = errors.New("planner: aggregator contract address not configured")
	ErrMixedCategories     = errors.New("planner: cannot mix listings and offers in one fill")
	ErrUnsignedOrder       = errors.New("planner: order has no signature on record")
)

const tipDenominator = 10_000

// Store is the slice of the order-store surface the planner needs:
// signature backfill before encoding and hash sync after broadcast.
type Store interface {
	OrderSignature(ctx context.Context, hash common.Hash) ([]byte, error)
	RecordTxHashes(ctx context.Context, orderHashes []common.Hash, txHash common.Hash) error
}

// Tip is an in-band gratuity added on top of every order's price,
// expressed in basis points.
type Tip struct {
	Recipient   common.Address
	BasisPoints uint32
}

// Request describes one fill.
type Request struct {
	Orders    []*order.Order
	Fulfiller common.Address
	// Recipient receives the purchased assets; zero means the fulfiller.
	Recipient common.Address
	// MaxOrdersPerTx splits large batches; zero means one transaction.
	MaxOrdersPerTx int
	Tips           []Tip
}

// Plan is the ordered action list for one request: approvals first,
// then aggregator calls. SyncTxHashes should be invoked once per
// broadcast transaction.
type Plan struct {
	Actions []Action
	Orders  []*order.Order

	store Store
}

// SyncTxHashes pushes a broadcast transaction hash back to the order
// store for confirmation tracking.
func (p *Plan) SyncTxHashes(ctx context.Context, txHash common.Hash) error {
	if p.store == nil {
		return nil
	}
	hashes := make([]common.Hash, len(p.Orders))
	for i, o := range p.Orders {
		hashes[i] = o.Hash
	}
	return p.store.RecordTxHashes(ctx, hashes, txHash)
}

// Planner plans fills and cancellations against one aggregator
// deployment.
type Planner struct {
	reader     chain.Reader
	store      Store
	aggregator common.Address
	logger     *slog.Logger
}

func New(reader chain.Reader, store Store, aggregator common.Address, logger *slog.Logger) *Planner {
	return &Planner{reader: reader, store: store, aggregator: aggregator, logger: logger}
}

// Fulfill builds the action plan that fills the requested orders. A
// failed approval probe includes the approval rather than aborting the
// plan; a missing signature that the store cannot supply does abort.
func (p *Planner) Fulfill(ctx context.Context, req Request) (*Plan, error) {
	if len(req.Orders) == 0 {
		return nil, ErrNoOrders
	}
	if p.aggregator == (common.Address{}) {
		return nil, ErrNoAggregatorAddress
	}

	fulfillingOffers := req.Orders[0].Category.IsOffer()
	for _, o := range req.Orders {
		if o.Category.IsOffer() != fulfillingOffers {
			return nil, ErrMixedCategories
		}
	}

	orders := make([]*order.Order, len(req.Orders))
	for i, o := range req.Orders {
		orders[i] = cloneOrder(o)
	}

	if err := p.backfillSignatures(ctx, orders); err != nil {
		return nil, err
	}
	applyTips(orders, req.Tips)

	plan := &Plan{Orders: orders, store: p.store}

	// When accepting offers the netted set keeps the NFT lanes and drops
	// the currency ones, so the probe below covers delivered assets too.
	aggregated := order.PaidByFulfiller(order.NetConsiderations(orders), fulfillingOffers)
	for _, item := range aggregated {
		if approve := p.missingApproval(ctx, req.Fulfiller, item); approve != nil {
			plan.Actions = append(plan.Actions, approve)
		}
	}

	if fulfillingOffers {
		hops, err := p.aggregatorHops(ctx, orders)
		if err != nil {
			return nil, err
		}
		plan.Actions = append(plan.Actions, hops...)
	}

	recipient := req.Recipient
	if recipient == (common.Address{}) {
		recipient = req.Fulfiller
	}
	settleTo := recipient
	if fulfillingOffers {
		// Payment routes through the aggregator, which forwards the
		// currency to the fulfiller after fees.
		settleTo = p.aggregator
	}

	for _, chunk := range chunkOrders(orders, req.MaxOrdersPerTx) {
		action, err := p.exchangeAction(chunk, fulfillingOffers, settleTo)
		if err != nil {
			return nil, err
		}
		plan.Actions = append(plan.Actions, action)
	}
	return plan, nil
}

func (p *Planner) backfillSignatures(ctx context.Context, orders []*order.Order) error {
	for _, o := range orders {
		if o.Signed() {
			continue
		}
		if p.store == nil {
			return fmt.Errorf("%w: %s", ErrUnsignedOrder, o.Hash.Hex())
		}
		sig, err := p.store.OrderSignature(ctx, o.Hash)
		if err != nil {
			return fmt.Errorf("backfill signature for %s: %w", o.Hash.Hex(), err)
		}
		if len(sig) == 0 {
			return fmt.Errorf("%w: %s", ErrUnsignedOrder, o.Hash.Hex())
		}
		o.Signature = sig
	}
	return nil
}

// applyTips appends one consideration item per tip to every order. Tips
// sit past totalOriginalConsiderationItems, so signatures stay valid.
func applyTips(orders []*order.Order, tips []Tip) {
	if len(tips) == 0 {
		return
	}
	for _, o := range orders {
		summaries := order.SummarizeTokens([]*order.Order{o})
		if len(summaries) == 0 {
			continue
		}
		payment := summaries[0]
		for _, tip := range tips {
			amount := numeric.NewFraction(
				new(big.Int).Mul(payment.Amount, big.NewInt(int64(tip.BasisPoints))),
				big.NewInt(tipDenominator),
			).Quotient()
			if amount.Sign() == 0 {
				continue
			}
			o.Parameters.Consideration = append(o.Parameters.Consideration, seaport.ConsiderationItem{
				ItemType:    payment.ItemType,
				Token:       payment.Token,
				StartAmount: amount,
				EndAmount:   amount,
				Recipient:   tip.Recipient,
			})
		}
	}
}

// missingApproval probes the fulfiller's allowance for one aggregated
// item and returns the approve action when it falls short. A probe
// error includes the approval instead of aborting.
func (p *Planner) missingApproval(ctx context.Context, fulfiller common.Address, item order.AggregatedConsideration) *ApproveAction {
	switch item.ItemType.WithoutCriteria() {
	case seaport.ItemNative:
		return nil

	case seaport.ItemERC20:
		allowance, err := p.reader.ERC20Allowance(ctx, item.Token, fulfiller, p.aggregator)
		if err != nil {
			p.warn("allowance probe failed, including approval", "token", item.Token.Hex(), "error", err)
		} else if allowance.Cmp(bigOrZero(item.StartAmount)) >= 0 {
			return nil
		}
		return &ApproveAction{Token: item.Token, ItemType: seaport.ItemERC20, Operator: p.aggregator}

	default:
		approved, err := p.reader.IsApprovedForAll(ctx, item.Token, fulfiller, p.aggregator)
		if err != nil {
			p.warn("approval probe failed, including approval", "token", item.Token.Hex(), "error", err)
		} else if approved {
			return nil
		}
		return &ApproveAction{Token: item.Token, ItemType: item.ItemType.WithoutCriteria(), Operator: p.aggregator}
	}
}

// aggregatorHops checks the aggregator's own approval toward each
// order's settlement operator and emits the approveERC721/1155 calls
// still missing.
func (p *Planner) aggregatorHops(ctx context.Context, orders []*order.Order) ([]Action, error) {
	type hopKey struct {
		token    common.Address
		operator common.Address
	}
	seen := make(map[hopKey]bool)
	var hops []Action

	for _, o := range orders {
		token, _, itemType := o.PrimaryAsset()
		if itemType.IsCurrency() {
			continue
		}
		operator := o.Platform.ApprovalOperator(o.ExchangeAddress)
		key := hopKey{token, operator}
		if seen[key] {
			continue
		}
		seen[key] = true

		approved, err := p.reader.IsApprovedForAll(ctx, token, p.aggregator, operator)
		if err != nil {
			p.warn("aggregator hop probe failed, including approval", "token", token.Hex(), "error", err)
		} else if approved {
			continue
		}

		var data []byte
		if itemType.WithoutCriteria() == seaport.ItemERC1155 {
			data, err = seaport.EncodeApproveERC1155(token, operator, true)
		} else {
			data, err = seaport.EncodeApproveERC721(token, operator, true)
		}
		if err != nil {
			return nil, err
		}
		hops = append(hops, &ExchangeAction{To: p.aggregator, Data: data})
	}
	return hops, nil
}

// exchangeAction composes one aggregator call covering a chunk of
// orders: per-marketplace settlement calldata framed and concatenated,
// wrapped in the variant the payment shape demands.
func (p *Planner) exchangeAction(chunk []*order.Order, fulfillingOffers bool, recipient common.Address) (*ExchangeAction, error) {
	groups, err := composeGroups(chunk, recipient)
	if err != nil {
		return nil, err
	}
	tradeBytes, err := marketplace.FrameAll(groups)
	if err != nil {
		return nil, err
	}

	hashes := make([]common.Hash, len(chunk))
	for i, o := range chunk {
		hashes[i] = o.Hash
	}

	if fulfillingOffers {
		data, err := acceptCalldata(chunk, tradeBytes)
		if err != nil {
			return nil, err
		}
		return &ExchangeAction{To: p.aggregator, Data: data, OrderHashes: hashes}, nil
	}

	summaries := order.SummarizeTokens(chunk)
	var value *big.Int
	if native, ok := order.FindSummary(summaries, seaport.ItemNative); ok {
		value = native.Amount
	}

	var erc20s []seaport.ERC20Detail
	var dust []common.Address
	for _, s := range summaries {
		if s.ItemType == seaport.ItemERC20 {
			erc20s = append(erc20s, seaport.ERC20Detail{Token: s.Token, Amount: s.Amount})
			dust = append(dust, s.Token)
		}
	}

	var data []byte
	if len(erc20s) > 0 {
		data, err = seaport.EncodeBatchBuyWithERC20s(erc20s, tradeBytes, dust)
	} else {
		data, err = seaport.EncodeBatchBuyWithETH(tradeBytes)
	}
	if err != nil {
		return nil, err
	}
	return &ExchangeAction{To: p.aggregator, Value: value, Data: data, OrderHashes: hashes}, nil
}

// acceptCalldata picks the accept-offer variant from the delivered
// asset kind and lists the NFTs plus the offered ERC20s to sweep back.
func acceptCalldata(orders []*order.Order, tradeBytes []byte) ([]byte, error) {
	var nfts []seaport.NFTDetail
	var dust []common.Address
	seenDust := make(map[common.Address]bool)
	erc1155 := false

	for _, o := range orders {
		token, id, itemType := o.PrimaryAsset()
		if itemType.WithoutCriteria() == seaport.ItemERC1155 {
			erc1155 = true
		}
		if itemType.IsWithCriteria() && len(o.CriteriaIdentifiers) > 0 {
			id = o.CriteriaIdentifiers[0]
		}
		nfts = append(nfts, seaport.NFTDetail{Token: token, Identifier: id, Amount: o.Quantity()})

		if len(o.Parameters.Offer) > 0 && o.Parameters.Offer[0].ItemType == seaport.ItemERC20 {
			paid := o.Parameters.Offer[0].Token
			if !seenDust[paid] {
				seenDust[paid] = true
				dust = append(dust, paid)
			}
		}
	}

	if erc1155 {
		return seaport.EncodeAcceptWithERC1155(nfts, nil, dust, tradeBytes)
	}
	return seaport.EncodeAcceptWithERC721(nfts, nil, dust, tradeBytes)
}

func (p *Planner) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}

func cloneOrder(o *order.Order) *order.Order {
	clone := *o
	clone.Parameters.Consideration = append([]seaport.ConsiderationItem(nil), o.Parameters.Consideration...)
	return &clone
}

func chunkOrders(orders []*order.Order, max int) [][]*order.Order {
	if max <= 0 || max >= len(orders) {
		return [][]*order.Order{orders}
	}
	var chunks [][]*order.Order
	for start := 0; start < len(orders); start += max {
		end := start + max
		if end > len(orders) {
			end = len(orders)
		}
		chunks = append(chunks, orders[start:end])
	}
	return chunks
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
