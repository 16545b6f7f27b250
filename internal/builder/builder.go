// Package builder turns high-level maker intents into fully parameterized
// Seaport orders plus the action sequence (approvals, signatures,
// submission) needed to put them on the books.
package builder

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/lootex/aggregatord/internal/chain"
	"github.com/lootex/aggregatord/internal/marketplace"
	"github.com/lootex/aggregatord/internal/numeric"
	"github.com/lootex/aggregatord/internal/order"
	"github.com/lootex/aggregatord/internal/seaport"
)

var (
	ErrNoIntents            = errors.New("builder: no intents")
	ErrNoSettlementAddress  = errors.New("builder: settlement contract address not configured")
	ErrInsufficientBalance  = errors.New("builder: offerer balance below offered amount")
	ErrZeroPrice            = errors.New("builder: order price must be positive")
	ErrBadTimeRange         = errors.New("builder: end time not after start time")
	ErrUnsupportedItemType  = errors.New("builder: asset must be ERC721 or ERC1155")
	ErrCollectionNeedsERC20 = errors.New("builder: offers must be priced in an ERC20 token")
)

const feeDenominator = 10_000

// Fee is a protocol or royalty cut expressed in basis points of the
// order's total price.
type Fee struct {
	Recipient   common.Address
	BasisPoints uint32
}

// Intent is what a maker asks for before any protocol detail is filled
// in. TotalPrice is in the currency's raw units and covers the whole
// Quantity.
type Intent struct {
	Category   order.Category
	Token      common.Address
	TokenID    *big.Int
	TokenKind  seaport.ItemType
	Quantity   *big.Int
	Currency   numeric.Currency
	TotalPrice *big.Int
	StartTime  time.Time
	EndTime    time.Time
	Fees       []Fee
}

// Options tunes a single Build call.
type Options struct {
	// BulkSign collapses multi-order batches into one signature over a
	// merkle root instead of one signature per order.
	BulkSign bool
	// SaltTag, when set, pins the first four salt bytes to the tag's
	// keccak prefix so orders created by this deployment are
	// recognizable on chain.
	SaltTag string
}

// Plan is the ordered action list for one Build call. Actions must be
// resolved front to back: approvals first, then signatures, then
// submission.
type Plan struct {
	Actions []Action
	Orders  []*order.Order
}

// Builder assembles orders against one settlement deployment.
type Builder struct {
	reader   chain.Reader
	chainID  *big.Int
	exchange common.Address
	operator common.Address
	logger   *slog.Logger

	now  func() time.Time
	rand io.Reader
}

// New returns a builder for the given chain. The operator is the
// address granted token approvals, normally the settlement contract
// itself or its conduit.
func New(reader chain.Reader, chainID uint64, exchange, operator common.Address, logger *slog.Logger) *Builder {
	if operator == (common.Address{}) {
		operator = exchange
	}
	return &Builder{
		reader:   reader,
		chainID:  new(big.Int).SetUint64(chainID),
		exchange: exchange,
		operator: operator,
		logger:   logger,
		now:      time.Now,
		rand:     rand.Reader,
	}
}

// Build expands the intents into orders, verifies the maker can back
// them, and returns the plan of remaining steps. Missing approvals
// become approve actions rather than errors; missing balance aborts the
// whole batch.
func (b *Builder) Build(ctx context.Context, offerer common.Address, intents []Intent, opts Options) (*Plan, error) {
	if len(intents) == 0 {
		return nil, ErrNoIntents
	}
	if b.exchange == (common.Address{}) {
		return nil, ErrNoSettlementAddress
	}

	counter, err := b.reader.Counter(ctx, b.exchange, offerer)
	if err != nil {
		return nil, fmt.Errorf("read counter: %w", err)
	}

	orders := make([]*order.Order, 0, len(intents))
	for i, intent := range intents {
		o, err := b.expand(offerer, counter, intent, opts.SaltTag)
		if err != nil {
			return nil, fmt.Errorf("intent %d: %w", i, err)
		}
		orders = append(orders, o)
	}

	plan := &Plan{Orders: orders}

	approvals, err := b.checkFunding(ctx, offerer, orders)
	if err != nil {
		return nil, err
	}
	for _, a := range approvals {
		plan.Actions = append(plan.Actions, a)
	}

	if opts.BulkSign && len(orders) > 1 {
		components := make([]seaport.OrderComponents, len(orders))
		for i, o := range orders {
			components[i] = o.Components()
		}
		tree, err := seaport.NewBulkTree(components)
		if err != nil {
			return nil, fmt.Errorf("bulk tree: %w", err)
		}
		plan.Actions = append(plan.Actions, &SignBulkAction{
			Orders: orders,
			Digest: tree.SignDigest(seaport.DomainSeparator(b.chainID, b.exchange)),
			tree:   tree,
		})
	} else {
		for _, o := range orders {
			plan.Actions = append(plan.Actions, &SignOrderAction{
				Order:  o,
				Digest: seaport.OrderSignDigest(b.chainID, b.exchange, o.Components()),
			})
		}
	}

	plan.Actions = append(plan.Actions, &SubmitOrdersAction{Orders: orders})
	return plan, nil
}

func (b *Builder) expand(offerer common.Address, counter *big.Int, intent Intent, saltTag string) (*order.Order, error) {
	if intent.TokenKind != seaport.ItemERC721 && intent.TokenKind != seaport.ItemERC1155 {
		return nil, ErrUnsupportedItemType
	}
	if intent.TotalPrice == nil || intent.TotalPrice.Sign() <= 0 {
		return nil, ErrZeroPrice
	}
	if !intent.EndTime.After(intent.StartTime) {
		return nil, ErrBadTimeRange
	}
	if intent.Category.IsOffer() && intent.Currency.Address == (common.Address{}) {
		// Native currency cannot be escrowed by the maker, so every
		// offer must be denominated in a wrapped token.
		return nil, ErrCollectionNeedsERC20
	}

	quantity := intent.Quantity
	if quantity == nil || quantity.Sign() == 0 {
		quantity = big.NewInt(1)
	}

	salt, err := b.salt(saltTag)
	if err != nil {
		return nil, err
	}

	params := seaport.OrderParameters{
		Offerer:   offerer,
		OrderType: orderTypeFor(intent.TokenKind, quantity),
		StartTime: big.NewInt(intent.StartTime.Unix()),
		EndTime:   big.NewInt(intent.EndTime.Unix()),
		Salt:      salt,
	}

	currencyItemType := seaport.ItemNative
	if intent.Currency.Address != (common.Address{}) {
		currencyItemType = seaport.ItemERC20
	}

	switch {
	case intent.Category == order.CategoryListing:
		params.Offer = []seaport.OfferItem{{
			ItemType:             intent.TokenKind,
			Token:                intent.Token,
			IdentifierOrCriteria: intent.TokenID,
			StartAmount:          quantity,
			EndAmount:            quantity,
		}}
		maker, fees := splitFees(intent.TotalPrice, intent.Fees)
		items := []seaport.ConsiderationItem{{
			ItemType:    currencyItemType,
			Token:       intent.Currency.Address,
			StartAmount: maker,
			EndAmount:   maker,
			Recipient:   offerer,
		}}
		params.Consideration = sortConsiderations(append(items, feeItems(currencyItemType, intent.Currency.Address, intent.Fees, fees)...))

	default:
		params.Offer = []seaport.OfferItem{{
			ItemType:    seaport.ItemERC20,
			Token:       intent.Currency.Address,
			StartAmount: intent.TotalPrice,
			EndAmount:   intent.TotalPrice,
		}}
		assetType := intent.TokenKind
		identifier := intent.TokenID
		if intent.Category == order.CategoryCollectionOffer {
			assetType = assetType.WithCriteria()
			identifier = big.NewInt(0)
		}
		items := []seaport.ConsiderationItem{{
			ItemType:             assetType,
			Token:                intent.Token,
			IdentifierOrCriteria: identifier,
			StartAmount:          quantity,
			EndAmount:            quantity,
			Recipient:            offerer,
		}}
		_, fees := splitFees(intent.TotalPrice, intent.Fees)
		params.Consideration = sortConsiderations(append(items, feeItems(seaport.ItemERC20, intent.Currency.Address, intent.Fees, fees)...))
	}

	params.TotalOriginalConsiderationItems = big.NewInt(int64(len(params.Consideration)))

	o := &order.Order{
		ChainID:         b.chainID.Uint64(),
		ExchangeAddress: b.exchange,
		Offerer:         offerer,
		Parameters:      params,
		Counter:         counter,
		Category:        intent.Category,
		Platform:        marketplace.Lootex,
	}
	o.Hash = seaport.OrderHash(o.Components())
	return o, nil
}

// splitFees divides a total price into the maker's share and the per-fee
// amounts. Fee rounding goes down, so dust stays with the maker.
func splitFees(total *big.Int, fees []Fee) (maker *big.Int, amounts []*big.Int) {
	maker = new(big.Int).Set(total)
	amounts = make([]*big.Int, len(fees))
	for i, fee := range fees {
		cut := numeric.NewFraction(
			new(big.Int).Mul(total, big.NewInt(int64(fee.BasisPoints))),
			big.NewInt(feeDenominator),
		).Quotient()
		amounts[i] = cut
		maker.Sub(maker, cut)
	}
	return maker, amounts
}

func feeItems(itemType seaport.ItemType, token common.Address, fees []Fee, amounts []*big.Int) []seaport.ConsiderationItem {
	items := make([]seaport.ConsiderationItem, 0, len(amounts))
	for i, amount := range amounts {
		if amount.Sign() == 0 {
			continue
		}
		items = append(items, seaport.ConsiderationItem{
			ItemType:    itemType,
			Token:       token,
			StartAmount: amount,
			EndAmount:   amount,
			Recipient:   fees[i].Recipient,
		})
	}
	return items
}

func orderTypeFor(kind seaport.ItemType, quantity *big.Int) seaport.OrderType {
	if kind == seaport.ItemERC1155 && quantity.Cmp(big.NewInt(1)) > 0 {
		return seaport.PartialOpen
	}
	return seaport.FullOpen
}

// salt is 12 bytes: an optional 4-byte tag prefix plus 8 random bytes.
func (b *Builder) salt(tag string) (*big.Int, error) {
	var buf [12]byte
	if tag != "" {
		copy(buf[:4], crypto.Keccak256([]byte(tag))[:4])
	}
	if _, err := io.ReadFull(b.rand, buf[4:]); err != nil {
		return nil, fmt.Errorf("salt entropy: %w", err)
	}
	return new(big.Int).SetBytes(buf[:]), nil
}

// checkFunding verifies the offerer holds every offered item and
// collects the approvals still missing.
func (b *Builder) checkFunding(ctx context.Context, offerer common.Address, orders []*order.Order) ([]*ApproveAction, error) {
	type approvalKey struct {
		token    common.Address
		itemType seaport.ItemType
	}
	seen := make(map[approvalKey]bool)
	var approvals []*ApproveAction

	for _, o := range orders {
		for _, item := range o.Parameters.Offer {
			ok, approved, err := b.checkOfferItem(ctx, offerer, item)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, fmt.Errorf("%w: %s %s", ErrInsufficientBalance, item.ItemType, item.Token.Hex())
			}
			key := approvalKey{item.Token, item.ItemType.WithoutCriteria()}
			if !approved && !seen[key] {
				seen[key] = true
				approvals = append(approvals, &ApproveAction{
					Token:                item.Token,
					ItemType:             key.itemType,
					IdentifierOrCriteria: item.IdentifierOrCriteria,
					Operator:             b.operator,
				})
			}
		}
	}
	return approvals, nil
}

func (b *Builder) checkOfferItem(ctx context.Context, offerer common.Address, item seaport.OfferItem) (funded, approved bool, err error) {
	switch item.ItemType.WithoutCriteria() {
	case seaport.ItemNative:
		balance, err := b.reader.NativeBalance(ctx, offerer)
		if err != nil {
			return false, false, fmt.Errorf("native balance: %w", err)
		}
		return balance.Cmp(item.StartAmount) >= 0, true, nil

	case seaport.ItemERC20:
		balance, err := b.reader.ERC20Balance(ctx, item.Token, offerer)
		if err != nil {
			return false, false, fmt.Errorf("erc20 balance: %w", err)
		}
		allowance, err := b.reader.ERC20Allowance(ctx, item.Token, offerer, b.operator)
		if err != nil {
			return false, false, fmt.Errorf("erc20 allowance: %w", err)
		}
		return balance.Cmp(item.StartAmount) >= 0, allowance.Cmp(item.StartAmount) >= 0, nil

	case seaport.ItemERC721:
		owner, err := b.reader.ERC721Owner(ctx, item.Token, item.IdentifierOrCriteria)
		if err != nil {
			return false, false, fmt.Errorf("erc721 owner: %w", err)
		}
		approvedAll, err := b.reader.IsApprovedForAll(ctx, item.Token, offerer, b.operator)
		if err != nil {
			return false, false, fmt.Errorf("erc721 approval: %w", err)
		}
		return owner == offerer, approvedAll, nil

	case seaport.ItemERC1155:
		balance, err := b.reader.ERC1155Balance(ctx, item.Token, offerer, item.IdentifierOrCriteria)
		if err != nil {
			return false, false, fmt.Errorf("erc1155 balance: %w", err)
		}
		approvedAll, err := b.reader.IsApprovedForAll(ctx, item.Token, offerer, b.operator)
		if err != nil {
			return false, false, fmt.Errorf("erc1155 approval: %w", err)
		}
		return balance.Cmp(item.StartAmount) >= 0, approvedAll, nil
	}
	return false, false, fmt.Errorf("builder: unexpected offer item type %s", item.ItemType)
}

// sortConsiderations orders items by item type descending, then amount
// descending, then recipient ascending, so equivalent orders hash
// identically regardless of intent fee ordering.
func sortConsiderations(items []seaport.ConsiderationItem) []seaport.ConsiderationItem {
	sorted := make([]seaport.ConsiderationItem, len(items))
	copy(sorted, items)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && considerationLess(sorted[j], sorted[j-1]); j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	return sorted
}

func considerationLess(a, b seaport.ConsiderationItem) bool {
	if a.ItemType != b.ItemType {
		return a.ItemType > b.ItemType
	}
	if c := a.StartAmount.Cmp(b.StartAmount); c != 0 {
		return c > 0
	}
	return a.Recipient.Cmp(b.Recipient) < 0
}
