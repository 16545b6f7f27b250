// Package validate checks order fillability against live chain state.
// Checks are independent, run concurrently, and report structured
// results; a failed or errored check contributes a reason string, never
// an exception to the caller.
package validate

import (
	"context"
	"log/slog"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/lootex/aggregatord/internal/chain"
	"github.com/lootex/aggregatord/internal/order"
	"github.com/lootex/aggregatord/internal/seaport"
)

// Fixed reason strings; callers match on them.
const (
	ReasonExpired             = "Order expired"
	ReasonInsufficientBalance = "Insufficient balance"
	ReasonMissingApproval     = "Missing approval"
	ReasonCancelled           = "Order cancelled"
	ReasonFullyFilled         = "Order fully filled"
)

// Result is the per-order outcome of the strict pipeline.
type Result struct {
	Hash           common.Hash
	IsValid        bool
	InvalidReasons []string
}

// Pipeline runs the four fillability checks.
type Pipeline struct {
	reader chain.Reader
	logger *slog.Logger
	now    func() time.Time
}

// New builds a pipeline over the given chain reader.
func New(reader chain.Reader, logger *slog.Logger) *Pipeline {
	return &Pipeline{reader: reader, logger: logger, now: time.Now}
}

// ValidateOrders runs balance, approval, status and expiry checks for
// every order, all checks concurrently per order. All checks always run;
// every failure lands in the result. A check that errors fails closed
// with its reason.
func (p *Pipeline) ValidateOrders(ctx context.Context, orders []*order.Order) []Result {
	results := make([]Result, len(orders))

	var wg sync.WaitGroup
	for i, o := range orders {
		wg.Add(1)
		go func(i int, o *order.Order) {
			defer wg.Done()
			results[i] = p.validateOne(ctx, o)
		}(i, o)
	}
	wg.Wait()

	return results
}

func (p *Pipeline) validateOne(ctx context.Context, o *order.Order) Result {
	var (
		mu      sync.Mutex
		reasons []string
	)
	report := func(reason string) {
		mu.Lock()
		defer mu.Unlock()
		for _, r := range reasons {
			if r == reason {
				return
			}
		}
		reasons = append(reasons, reason)
	}

	// One status read serves the fill check and scales the balance and
	// approval requirements for partially filled orders.
	status, statusErr := p.reader.OrderStatus(ctx, o.ExchangeAddress, o.Hash)

	var wg sync.WaitGroup
	checks := []func(){
		func() { p.checkBalance(ctx, o, status, report) },
		func() { p.checkApproval(ctx, o, status, report) },
		func() { p.checkStatus(o, status, statusErr, report) },
		func() { p.checkExpiry(o, report) },
	}
	for _, check := range checks {
		wg.Add(1)
		go func(check func()) {
			defer wg.Done()
			check()
		}(check)
	}
	wg.Wait()

	sort.Strings(reasons)
	return Result{Hash: o.Hash, IsValid: len(reasons) == 0, InvalidReasons: reasons}
}

func (p *Pipeline) checkBalance(ctx context.Context, o *order.Order, status seaport.OrderStatus, report func(string)) {
	for _, item := range o.Parameters.Offer {
		start := item.StartAmount
		if start == nil {
			start = big.NewInt(1)
		}
		required := requiredAmount(start, status)

		switch item.ItemType {
		case seaport.ItemNative:
			balance, err := p.reader.NativeBalance(ctx, o.Offerer)
			if err != nil {
				p.warn("balance check failed", o, err)
				report(ReasonInsufficientBalance)
				return
			}
			if balance.Cmp(required) < 0 {
				report(ReasonInsufficientBalance)
				return
			}

		case seaport.ItemERC20:
			balance, err := p.reader.ERC20Balance(ctx, item.Token, o.Offerer)
			if err != nil {
				p.warn("balance check failed", o, err)
				report(ReasonInsufficientBalance)
				return
			}
			if balance.Cmp(required) < 0 {
				report(ReasonInsufficientBalance)
				return
			}

		case seaport.ItemERC721:
			owner, err := p.reader.ERC721Owner(ctx, item.Token, item.IdentifierOrCriteria)
			if err != nil {
				p.warn("owner check failed", o, err)
				report(ReasonInsufficientBalance)
				return
			}
			if owner != o.Offerer {
				report(ReasonInsufficientBalance)
				return
			}

		case seaport.ItemERC1155:
			balance, err := p.reader.ERC1155Balance(ctx, item.Token, o.Offerer, item.IdentifierOrCriteria)
			if err != nil {
				p.warn("balance check failed", o, err)
				report(ReasonInsufficientBalance)
				return
			}
			if balance.Cmp(required) < 0 {
				report(ReasonInsufficientBalance)
				return
			}
		}
		// Criteria items have no concrete id to check against.
	}
}

func (p *Pipeline) checkApproval(ctx context.Context, o *order.Order, status seaport.OrderStatus, report func(string)) {
	operator := o.Platform.ApprovalOperator(o.ExchangeAddress)

	for _, item := range o.Parameters.Offer {
		switch item.ItemType {
		case seaport.ItemNative:
			// Nothing to approve.

		case seaport.ItemERC20:
			start := item.StartAmount
			if start == nil {
				start = big.NewInt(0)
			}
			required := requiredAmount(start, status)
			allowance, err := p.reader.ERC20Allowance(ctx, item.Token, o.Offerer, operator)
			if err != nil {
				p.warn("allowance check failed", o, err)
				report(ReasonMissingApproval)
				return
			}
			if allowance.Cmp(required) < 0 {
				report(ReasonMissingApproval)
				return
			}

		default:
			approved, err := p.reader.IsApprovedForAll(ctx, item.Token, o.Offerer, operator)
			if err != nil {
				p.warn("approval check failed", o, err)
				report(ReasonMissingApproval)
				return
			}
			if !approved {
				report(ReasonMissingApproval)
				return
			}
		}
	}
}

func (p *Pipeline) checkStatus(o *order.Order, status seaport.OrderStatus, err error, report func(string)) {
	if err != nil {
		p.warn("status check failed", o, err)
		report(ReasonCancelled)
		return
	}
	if status.IsCancelled {
		report(ReasonCancelled)
	}
	if status.FullyFilled() {
		report(ReasonFullyFilled)
	}
}

func (p *Pipeline) checkExpiry(o *order.Order, report func(string)) {
	if o.Expired(p.now()) {
		report(ReasonExpired)
	}
}

// requiredAmount scales the offered amount by the order's unfilled
// fraction: remaining = start * (size - filled) / size. A missing or
// zero total size leaves the start amount untouched.
func requiredAmount(start *big.Int, status seaport.OrderStatus) *big.Int {
	if status.TotalSize == nil || status.TotalSize.Sign() == 0 {
		return start
	}
	filled := status.TotalFilled
	if filled == nil {
		filled = new(big.Int)
	}
	unfilled := new(big.Int).Sub(status.TotalSize, filled)
	if unfilled.Sign() <= 0 {
		return new(big.Int)
	}
	remaining := new(big.Int).Mul(start, unfilled)
	return remaining.Div(remaining, status.TotalSize)
}

func (p *Pipeline) warn(msg string, o *order.Order, err error) {
	if p.logger != nil {
		p.logger.Warn(msg, "order", o.Hash, "err", err)
	}
}

// Certify is the lightweight variant: it simulates the settlement
// validate call per exchange group and reports a plain pass/fail per
// order hash.
func (p *Pipeline) Certify(ctx context.Context, from common.Address, orders []*order.Order) (map[common.Hash]bool, error) {
	byExchange := make(map[common.Address][]*order.Order)
	for _, o := range orders {
		byExchange[o.ExchangeAddress] = append(byExchange[o.ExchangeAddress], o)
	}

	out := make(map[common.Hash]bool, len(orders))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for exchange, group := range byExchange {
		g.Go(func() error {
			signed := make([]seaport.Order, len(group))
			for i, o := range group {
				signed[i] = seaport.Order{Parameters: o.Parameters, Signature: o.Signature}
			}
			err := p.reader.SimulateValidate(ctx, exchange, from, signed)

			mu.Lock()
			defer mu.Unlock()
			for _, o := range group {
				out[o.Hash] = err == nil
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
