package reconciler

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"

	"github.com/lootex/aggregatord/internal/marketplace"
	"github.com/lootex/aggregatord/internal/numeric"
	"github.com/lootex/aggregatord/internal/opensea"
	"github.com/lootex/aggregatord/internal/order"
	"github.com/lootex/aggregatord/internal/seaport"
	"github.com/lootex/aggregatord/internal/store"
)

// HandleListed imports one external listing into the mirror. A listing
// whose hash is already mirrored is a no-op unless force is set, in
// which case a disabled-but-still-live order is flipped back to
// fillable. Cancelled, fulfilled and expired orders are never revived.
func (r *Reconciler) HandleListed(ctx context.Context, listing *opensea.Listing, force bool) error {
	chainID, ok := opensea.ChainID(listing.Chain)
	if !ok {
		r.logger.Warn("listing on unknown chain", "chain", listing.Chain, "hash", listing.OrderHash)
		return nil
	}

	params, err := listing.ProtocolData.Parameters.ToParameters()
	if err != nil {
		r.logger.Warn("listing with bad parameters", "hash", listing.OrderHash, "err", err)
		return nil
	}

	if order.IsPrivateListing(params) {
		r.logger.Debug("skipping private listing", "hash", listing.OrderHash)
		return nil
	}

	currency, err := paymentCurrency(params)
	if err != nil {
		r.logger.Info("skipping listing", "hash", listing.OrderHash, "reason", err)
		return nil
	}
	allowed, err := r.store.Currencies().Allowed(ctx, chainID, currency)
	if err != nil {
		return err
	}
	if !allowed {
		r.logger.Info("skipping listing: illegal price unit",
			"hash", listing.OrderHash, "currency", currency)
		return nil
	}

	hash := strings.ToLower(listing.OrderHash)
	exists, err := r.store.Orders().Exists(ctx, chainID, hash)
	if err != nil {
		return err
	}
	if exists {
		if !force {
			return nil
		}
		return r.reactivate(ctx, chainID, hash)
	}

	return r.importListing(ctx, chainID, hash, listing, params)
}

// reactivate flips a disabled order back to fillable. The store applies
// the conditional update, so a cancelled, fulfilled or expired order
// stays terminal no matter how often it is re-observed.
func (r *Reconciler) reactivate(ctx context.Context, chainID uint64, hash string) error {
	reactivated, err := r.store.Orders().Reactivate(ctx, chainID, hash, r.now().Unix())
	if err != nil {
		return err
	}
	if !reactivated {
		return nil
	}
	row, err := r.store.Orders().Get(ctx, chainID, hash)
	if err != nil {
		return err
	}
	r.logger.Info("reactivated order", "chain", chainID, "hash", hash)
	return r.recomputeAssets(ctx, map[assetKey]bool{
		{chainID, row.AssetToken, row.AssetIdentifier, row.Category}: true,
	})
}

func (r *Reconciler) importListing(ctx context.Context, chainID uint64, hash string, listing *opensea.Listing, params seaport.OrderParameters) error {
	if len(params.Offer) == 0 {
		r.logger.Warn("listing without offer items", "hash", hash)
		return nil
	}
	asset := params.Offer[0]
	if asset.ItemType != seaport.ItemERC721 && asset.ItemType != seaport.ItemERC1155 {
		r.logger.Warn("listing does not offer an asset", "hash", hash, "itemType", asset.ItemType.String())
		return nil
	}

	counter, err := listing.ProtocolData.Parameters.CounterValue()
	if err != nil {
		r.logger.Warn("listing with bad counter", "hash", hash, "err", err)
		return nil
	}

	token := strings.ToLower(asset.Token.Hex())
	identifier := asset.IdentifierOrCriteria.String()
	quantity := asset.StartAmount
	if quantity == nil || quantity.Sign() == 0 {
		quantity = big.NewInt(1)
	}

	total := new(big.Int)
	currency := ""
	for _, item := range params.Consideration {
		if !item.ItemType.IsCurrency() {
			continue
		}
		if item.StartAmount != nil {
			total.Add(total, item.StartAmount)
		}
		if item.ItemType == seaport.ItemERC20 {
			currency = strings.ToLower(item.Token.Hex())
		}
	}
	perPrice := numeric.FromBig(total).Div(numeric.FromBig(quantity))

	now := r.now().Unix()
	row := &store.OrderRow{
		Hash:            hash,
		ChainID:         chainID,
		ExchangeAddress: strings.ToLower(listing.ProtocolAddress),
		Offerer:         strings.ToLower(params.Offerer.Hex()),
		Category:        string(order.CategoryListing),
		Platform:        uint16(marketplace.OpenSea),
		AssetToken:      token,
		AssetIdentifier: identifier,
		CurrencyAddress: currency,
		TotalPrice:      store.SortableInt(total),
		PerPrice:        store.SortableAmount(perPrice),
		Quantity:        quantity.String(),
		StartTime:       params.StartTime.Int64(),
		EndTime:         params.EndTime.Int64(),
		Counter:         counter.String(),
		Salt:            params.Salt.String(),
		Signature:       listing.ProtocolData.Signature,
		IsFillable:      true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	items := itemRows(hash, chainID, params)

	// Listed events carry no transaction, so the history key gets a
	// surrogate id; the order primary key is the real dedup guard.
	history := &store.HistoryRow{
		OrderHash: hash,
		TxHash:    uuid.NewString(),
		ChainID:   chainID,
		Category:  store.HistoryListed,
		Price:     store.SortableInt(total),
		Maker:     row.Offerer,
		CreatedAt: now,
	}

	if err := r.store.Assets().Upsert(ctx, &store.AssetRow{
		ChainID:    chainID,
		Token:      token,
		Identifier: identifier,
		Kind:       int(asset.ItemType),
	}); err != nil {
		return err
	}

	err = r.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.Orders.Insert(ctx, row); err != nil {
			return err
		}
		if err := tx.Orders.InsertItems(ctx, items); err != nil {
			return err
		}
		return tx.History.Insert(ctx, history)
	})
	if errors.Is(err, store.ErrOrderExists) {
		// Raced with another delivery of the same listing.
		return nil
	}
	if err != nil {
		return err
	}

	// Index recomputation reads the rows the transaction just wrote,
	// so it has to run after the commit.
	return r.recomputeAssets(ctx, map[assetKey]bool{
		{chainID, token, identifier, row.Category}: true,
	})
}

// HandleCancelled marks the order cancelled and records the
// cancellation once per (hash, tx, chain). Cancellation is terminal.
func (r *Reconciler) HandleCancelled(ctx context.Context, ev *opensea.Event) error {
	chainID, ok := opensea.ChainID(ev.Chain)
	if !ok {
		r.logger.Warn("cancellation on unknown chain", "chain", ev.Chain, "hash", ev.OrderHash)
		return nil
	}
	hash := strings.ToLower(ev.OrderHash)

	row, err := r.store.Orders().Get(ctx, chainID, hash)
	if errors.Is(err, store.ErrOrderNotFound) {
		r.logger.Debug("cancellation for unknown order", "chain", chainID, "hash", hash)
		return nil
	}
	if err != nil {
		return err
	}

	if err := r.store.Orders().MarkCancelled(ctx, chainID, hash, r.now().Unix()); err != nil {
		return err
	}

	// Off-chain cancellations carry no transaction. The surrogate must
	// be deterministic so the (hash, tx, chain) key still dedupes a
	// redelivery.
	txHash := strings.ToLower(ev.Transaction)
	if txHash == "" {
		txHash = "cancelled:" + hash
	}
	if err := r.store.History().Insert(ctx, &store.HistoryRow{
		OrderHash: hash,
		TxHash:    txHash,
		ChainID:   chainID,
		Category:  store.HistoryCancelled,
		Maker:     row.Offerer,
		CreatedAt: r.now().Unix(),
	}); err != nil {
		return err
	}

	return r.recomputeAssets(ctx, map[assetKey]bool{
		{chainID, row.AssetToken, row.AssetIdentifier, row.Category}: true,
	})
}

// paymentCurrency resolves the single currency a listing is priced in:
// "" for native, the lowercase token address for ERC20. Mixed payment
// tokens are rejected.
func paymentCurrency(params seaport.OrderParameters) (string, error) {
	currency := ""
	seen := false
	for _, item := range params.Consideration {
		if !item.ItemType.IsCurrency() {
			continue
		}
		addr := ""
		if item.ItemType == seaport.ItemERC20 {
			addr = strings.ToLower(item.Token.Hex())
		}
		if seen && addr != currency {
			return "", fmt.Errorf("mixed payment tokens")
		}
		currency = addr
		seen = true
	}
	if !seen {
		return "", fmt.Errorf("no payment items")
	}
	return currency, nil
}

func itemRows(hash string, chainID uint64, params seaport.OrderParameters) []store.ItemRow {
	rows := make([]store.ItemRow, 0, len(params.Offer)+len(params.Consideration))
	for i, item := range params.Offer {
		rows = append(rows, store.ItemRow{
			OrderHash:       hash,
			ChainID:         chainID,
			Side:            store.SideOffer,
			Idx:             i,
			ItemType:        int(item.ItemType),
			Token:           strings.ToLower(item.Token.Hex()),
			Identifier:      item.IdentifierOrCriteria.String(),
			StartAmount:     item.StartAmount.String(),
			EndAmount:       item.EndAmount.String(),
			AvailableAmount: item.StartAmount.String(),
		})
	}
	for i, item := range params.Consideration {
		rows = append(rows, store.ItemRow{
			OrderHash:       hash,
			ChainID:         chainID,
			Side:            store.SideConsideration,
			Idx:             i,
			ItemType:        int(item.ItemType),
			Token:           strings.ToLower(item.Token.Hex()),
			Identifier:      item.IdentifierOrCriteria.String(),
			StartAmount:     item.StartAmount.String(),
			EndAmount:       item.EndAmount.String(),
			AvailableAmount: item.StartAmount.String(),
			Recipient:       strings.ToLower(item.Recipient.Hex()),
		})
	}
	return rows
}
