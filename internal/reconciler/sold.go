package reconciler

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/lootex/aggregatord/internal/chain"
	"github.com/lootex/aggregatord/internal/numeric"
	"github.com/lootex/aggregatord/internal/opensea"
	"github.com/lootex/aggregatord/internal/seaport"
	"github.com/lootex/aggregatord/internal/store"
)

// HandleSold reconciles a fill. The pushed payload alone is not
// trusted: the fill set comes from the transaction's settlement logs
// and the remaining amounts from the on-chain order status. A
// short-lived marker keyed by (chain, contract, token) drops
// redelivered notifications for the same fill.
func (r *Reconciler) HandleSold(ctx context.Context, ev *opensea.Event) error {
	chainID, ok := opensea.ChainID(ev.Chain)
	if !ok {
		r.logger.Warn("sale on unknown chain", "chain", ev.Chain, "hash", ev.OrderHash)
		return nil
	}
	reader, ok := r.readers[chainID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownChain, chainID)
	}
	if ev.NFT == nil || ev.Transaction == "" {
		r.logger.Warn("sale event missing nft or transaction", "hash", ev.OrderHash)
		return nil
	}

	marker := fmt.Sprintf("%d:%s:%s", chainID, strings.ToLower(ev.NFT.Contract), ev.NFT.Identifier)
	if _, seen := r.soldSeen.Get(marker); seen {
		r.logger.Debug("dropping redelivered sale", "marker", marker)
		return nil
	}
	r.soldSeen.Add(marker, struct{}{})

	txHash := common.HexToHash(ev.Transaction)
	receipt, err := reader.Receipt(ctx, txHash)
	if err != nil {
		// Let a later redelivery retry the receipt fetch.
		r.soldSeen.Remove(marker)
		return fmt.Errorf("reconciler: receipt %s: %w", ev.Transaction, err)
	}

	touched := make(map[assetKey]bool)
	for _, lg := range receipt.Logs {
		if len(lg.Topics) == 0 || lg.Topics[0] != seaport.OrderFulfilledTopic {
			continue
		}
		fulfilled, err := seaport.ParseOrderFulfilled(lg.Topics, lg.Data)
		if err != nil {
			r.logger.Warn("bad OrderFulfilled log", "tx", ev.Transaction, "err", err)
			continue
		}
		if err := r.applyFill(ctx, chainID, reader, receipt, ev, fulfilled, touched); err != nil {
			return err
		}
	}

	return r.recomputeAssets(ctx, touched)
}

func (r *Reconciler) applyFill(ctx context.Context, chainID uint64, reader chain.Reader, receipt *types.Receipt, ev *opensea.Event, fulfilled seaport.FulfilledOrder, touched map[assetKey]bool) error {
	hash := strings.ToLower(fulfilled.OrderHash.Hex())
	row, err := r.store.Orders().Get(ctx, chainID, hash)
	if errors.Is(err, store.ErrOrderNotFound) {
		r.logger.Info("fill for unmirrored order", "chain", chainID, "hash", hash)
		return nil
	}
	if err != nil {
		return err
	}

	status, err := reader.OrderStatus(ctx, common.HexToAddress(row.ExchangeAddress), fulfilled.OrderHash)
	if err != nil {
		return fmt.Errorf("reconciler: order status %s: %w", hash, err)
	}

	if err := r.updateAvailableAmounts(ctx, chainID, hash, status); err != nil {
		return err
	}

	now := r.now().Unix()
	if status.FullyFilled() {
		if err := r.store.Orders().MarkFulfilled(ctx, chainID, hash, now); err != nil {
			return err
		}
	}
	if status.IsCancelled {
		if err := r.store.Orders().MarkCancelled(ctx, chainID, hash, now); err != nil {
			return err
		}
	}

	price := new(big.Int)
	for _, item := range fulfilled.Consideration {
		if item.ItemType.IsCurrency() && item.Amount != nil {
			price.Add(price, item.Amount)
		}
	}
	if err := r.store.History().Insert(ctx, &store.HistoryRow{
		OrderHash: hash,
		TxHash:    strings.ToLower(ev.Transaction),
		ChainID:   chainID,
		Category:  store.HistorySale,
		Price:     store.SortableInt(price),
		Maker:     row.Offerer,
		Taker:     strings.ToLower(fulfilled.Recipient.Hex()),
		CreatedAt: now,
	}); err != nil {
		return err
	}

	if err := r.applyOwnership(ctx, chainID, reader, receipt, row, fulfilled); err != nil {
		return err
	}

	touched[assetKey{chainID, row.AssetToken, row.AssetIdentifier, row.Category}] = true
	return nil
}

// updateAvailableAmounts scales every item's remaining amount by the
// on-chain unfilled fraction: remaining = start * (size - filled) / size.
func (r *Reconciler) updateAvailableAmounts(ctx context.Context, chainID uint64, hash string, status seaport.OrderStatus) error {
	if status.TotalSize == nil || status.TotalSize.Sign() == 0 {
		return nil
	}
	unfilled := new(big.Int).Sub(status.TotalSize, bigOrZero(status.TotalFilled))
	if unfilled.Sign() < 0 {
		unfilled.SetInt64(0)
	}
	fraction := numeric.NewFraction(unfilled, status.TotalSize)

	items, err := r.store.Orders().Items(ctx, chainID, hash)
	if err != nil {
		return err
	}
	for _, item := range items {
		start, ok := new(big.Int).SetString(item.StartAmount, 10)
		if !ok {
			continue
		}
		remaining := numeric.FromBig(start).Mul(fraction).Quotient()
		if remaining.String() == item.AvailableAmount {
			continue
		}
		if err := r.store.Orders().SetAvailableAmount(ctx, chainID, hash, item.Side, item.Idx, remaining.String()); err != nil {
			return err
		}
	}
	return nil
}

// applyOwnership moves the mirrored ownership to the fill's recipient.
// The new owner is recovered from the transfer logs when present; the
// event payload's taker may be a relayer contract.
func (r *Reconciler) applyOwnership(ctx context.Context, chainID uint64, reader chain.Reader, receipt *types.Receipt, row *store.OrderRow, fulfilled seaport.FulfilledOrder) error {
	token := common.HexToAddress(row.AssetToken)
	identifier, ok := new(big.Int).SetString(row.AssetIdentifier, 10)
	if !ok {
		return nil
	}
	now := r.now().Unix()

	from, to, standard := transferParties(receipt, token, identifier)
	switch standard {
	case seaport.ItemERC721:
		return r.store.Assets().SetSoleOwner(ctx, chainID, row.AssetToken, row.AssetIdentifier,
			strings.ToLower(to.Hex()), now)
	case seaport.ItemERC1155:
		for _, holder := range []common.Address{from, to} {
			balance, err := reader.ERC1155Balance(ctx, token, holder, identifier)
			if err != nil {
				return fmt.Errorf("reconciler: erc1155 balance of %s: %w", holder, err)
			}
			if err := r.store.Assets().SetBalance(ctx, chainID, row.AssetToken, row.AssetIdentifier,
				strings.ToLower(holder.Hex()), balance.String(), now); err != nil {
				return err
			}
		}
		return nil
	}

	// No transfer log for the asset; fall back to the settlement
	// recipient for single-unit assets.
	if fulfilled.Recipient != (common.Address{}) {
		return r.store.Assets().SetSoleOwner(ctx, chainID, row.AssetToken, row.AssetIdentifier,
			strings.ToLower(fulfilled.Recipient.Hex()), now)
	}
	return nil
}

// transferParties scans the receipt for the ERC721 Transfer or ERC1155
// TransferSingle log moving the given asset.
func transferParties(receipt *types.Receipt, token common.Address, identifier *big.Int) (from, to common.Address, standard seaport.ItemType) {
	for _, lg := range receipt.Logs {
		if lg.Address != token || len(lg.Topics) == 0 {
			continue
		}
		switch lg.Topics[0] {
		case seaport.TransferTopic:
			// ERC721 indexes all three arguments; the ERC20 Transfer
			// shares the signature but only indexes two.
			if len(lg.Topics) != 4 {
				continue
			}
			if new(big.Int).SetBytes(lg.Topics[3].Bytes()).Cmp(identifier) != 0 {
				continue
			}
			from = common.BytesToAddress(lg.Topics[1].Bytes())
			to = common.BytesToAddress(lg.Topics[2].Bytes())
			return from, to, seaport.ItemERC721
		case seaport.TransferSingleTopic:
			if len(lg.Topics) != 4 || len(lg.Data) < 64 {
				continue
			}
			if new(big.Int).SetBytes(lg.Data[:32]).Cmp(identifier) != 0 {
				continue
			}
			from = common.BytesToAddress(lg.Topics[2].Bytes())
			to = common.BytesToAddress(lg.Topics[3].Bytes())
			return from, to, seaport.ItemERC1155
		}
	}
	return common.Address{}, common.Address{}, seaport.ItemNative
}

// HandleTransferred disables listings the mover can no longer honor.
// Coverage is re-derived from on-chain truth rather than the payload:
// an ERC721 listing survives only while the offerer still owns the
// token, an ERC1155 listing only while the offerer's balance covers
// the still-locked amount.
func (r *Reconciler) HandleTransferred(ctx context.Context, ev *opensea.Event) error {
	chainID, ok := opensea.ChainID(ev.Chain)
	if !ok {
		r.logger.Warn("transfer on unknown chain", "chain", ev.Chain)
		return nil
	}
	reader, ok := r.readers[chainID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownChain, chainID)
	}
	if ev.NFT == nil {
		r.logger.Warn("transfer event missing nft")
		return nil
	}

	token := strings.ToLower(ev.NFT.Contract)
	identifier := ev.NFT.Identifier
	idBig, ok := new(big.Int).SetString(identifier, 10)
	if !ok {
		r.logger.Warn("transfer with bad identifier", "identifier", identifier)
		return nil
	}
	tokenAddr := common.HexToAddress(token)
	erc1155 := strings.EqualFold(ev.NFT.TokenStandard, "erc1155")
	now := r.now().Unix()

	listings, err := r.store.Orders().FillableByAsset(ctx, chainID, token, identifier, "listing")
	if err != nil {
		return err
	}

	disabled := false
	for _, row := range listings {
		covered, err := r.offererCovers(ctx, reader, tokenAddr, idBig, row, erc1155)
		if err != nil {
			r.logger.Warn("coverage check failed, disabling order",
				"hash", row.Hash, "err", err)
			covered = false
		}
		if covered {
			continue
		}
		if err := r.store.Orders().Disable(ctx, chainID, row.Hash, now); err != nil {
			return err
		}
		disabled = true
	}

	if err := r.syncHolders(ctx, chainID, reader, tokenAddr, token, identifier, idBig, ev, erc1155, now); err != nil {
		return err
	}

	if !disabled {
		return nil
	}
	return r.recomputeAssets(ctx, map[assetKey]bool{
		{chainID, token, identifier, "listing"}: true,
	})
}

func (r *Reconciler) offererCovers(ctx context.Context, reader chain.Reader, token common.Address, identifier *big.Int, row store.OrderRow, erc1155 bool) (bool, error) {
	offerer := common.HexToAddress(row.Offerer)
	if !erc1155 {
		owner, err := reader.ERC721Owner(ctx, token, identifier)
		if err != nil {
			return false, err
		}
		return owner == offerer, nil
	}

	balance, err := reader.ERC1155Balance(ctx, token, offerer, identifier)
	if err != nil {
		return false, err
	}
	locked, ok := new(big.Int).SetString(row.Quantity, 10)
	if !ok {
		locked = store.BigFromSortable(row.Quantity)
	}
	return balance.Cmp(locked) >= 0, nil
}

func (r *Reconciler) syncHolders(ctx context.Context, chainID uint64, reader chain.Reader, tokenAddr common.Address, token, identifier string, idBig *big.Int, ev *opensea.Event, erc1155 bool, now int64) error {
	if !erc1155 {
		owner, err := reader.ERC721Owner(ctx, tokenAddr, idBig)
		if err != nil {
			return fmt.Errorf("reconciler: owner of %s/%s: %w", token, identifier, err)
		}
		return r.store.Assets().SetSoleOwner(ctx, chainID, token, identifier,
			strings.ToLower(owner.Hex()), now)
	}

	for _, account := range []string{ev.FromAccount, ev.ToAccount} {
		if account == "" {
			continue
		}
		balance, err := reader.ERC1155Balance(ctx, tokenAddr, common.HexToAddress(account), idBig)
		if err != nil {
			return fmt.Errorf("reconciler: erc1155 balance of %s: %w", account, err)
		}
		if err := r.store.Assets().SetBalance(ctx, chainID, token, identifier,
			strings.ToLower(account), balance.String(), now); err != nil {
			return err
		}
	}
	return nil
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
