package reconciler

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lootex/aggregatord/internal/marketplace"
	"github.com/lootex/aggregatord/internal/opensea"
)

// errJobStopped ends a paginated walk early when the job's stop flag
// was raised; it never leaves the package.
var errJobStopped = errors.New("reconciler: job stopped")

var allEventTypes = []string{
	opensea.EventItemListed,
	opensea.EventItemCancelled,
	opensea.EventItemSold,
	opensea.EventItemTransferred,
}

// SweepExpired marks fillable orders past their end time expired and
// refreshes the indices they backed.
func (r *Reconciler) SweepExpired(ctx context.Context) error {
	now := r.now().Unix()
	touched := make(map[assetKey]bool)
	for chainID := range r.readers {
		rows, err := r.store.Orders().ExpireDue(ctx, chainID, now)
		if err != nil {
			return err
		}
		for _, row := range rows {
			touched[assetKey{chainID, row.AssetToken, row.AssetIdentifier, row.Category}] = true
		}
		if len(rows) > 0 {
			r.logger.Info("expired orders", "chain", chainID, "count", len(rows))
		}
	}
	return r.recomputeAssets(ctx, touched)
}

// SweepReactivations re-imports the best listings of every selected
// watched collection with force set, reviving disabled-but-live
// orders. Each collection import is a stoppable job.
func (r *Reconciler) SweepReactivations(ctx context.Context) error {
	if r.api == nil {
		return nil
	}
	for _, wc := range r.Watched() {
		if !wc.Selected || wc.Slug == "" {
			continue
		}
		if _, err := r.ImportCollection(ctx, wc.Slug, ""); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			r.logger.Warn("collection import failed", "slug", wc.Slug, "err", err)
		}
	}
	return nil
}

// ImportCollection walks a collection's best listings and imports each
// page with force set. It returns the job id under which the walk ran;
// raising that id's stop flag ends the walk between pages. An empty
// jobID gets a fresh one assigned.
func (r *Reconciler) ImportCollection(ctx context.Context, slug, jobID string) (string, error) {
	if r.api == nil {
		return "", ErrNoMarketAPI
	}
	if jobID == "" {
		jobID = uuid.NewString()
	}
	err := r.api.BestListingsByCollection(ctx, slug, func(page []opensea.Listing) error {
		if r.jobStopped(jobID) {
			return errJobStopped
		}
		for i := range page {
			if err := r.HandleListed(ctx, &page[i], true); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, errJobStopped) {
		r.logger.Info("collection import stopped", "slug", slug, "job", jobID)
		err = nil
	}
	if r.chk != nil {
		if clearErr := r.chk.ClearStop(jobID); clearErr != nil {
			r.logger.Warn("clear stop flag failed", "job", jobID, "err", clearErr)
		}
	}
	return jobID, err
}

func (r *Reconciler) jobStopped(jobID string) bool {
	return r.chk != nil && r.chk.Stopped(jobID)
}

// SweepRepairs replays the event backfill of every pending repair row
// and flips it to done.
func (r *Reconciler) SweepRepairs(ctx context.Context) error {
	if r.api == nil {
		return nil
	}
	for chainID := range r.readers {
		repairs, err := r.store.Watch().PendingRepairs(ctx, chainID)
		if err != nil {
			return err
		}
		for i := range repairs {
			repair := &repairs[i]
			slug := r.slugFor(repair.ChainID, repair.Token)
			if slug == "" {
				r.logger.Warn("repair for unwatched collection",
					"chain", repair.ChainID, "token", repair.Token)
				continue
			}
			if err := r.backfillEvents(ctx, slug,
				time.Unix(repair.FromTime, 0), time.Unix(repair.ToTime, 0)); err != nil {
				return err
			}
			if err := r.store.Watch().MarkRepairDone(ctx, repair); err != nil {
				return err
			}
			r.logger.Info("repair done", "slug", slug,
				"from", repair.FromTime, "to", repair.ToTime)
		}
	}
	return nil
}

// Backfill replays missed events for every watched collection, from
// each collection's checkpoint (or the configured window) to now, then
// advances the checkpoint. Called once on startup before the live
// stream takes over.
func (r *Reconciler) Backfill(ctx context.Context) error {
	if r.api == nil {
		return nil
	}
	now := r.now()
	for _, wc := range r.Watched() {
		if !wc.Selected || wc.Slug == "" {
			continue
		}
		since := now.Add(-r.opts.BackfillWindow)
		if r.chk != nil {
			if last, ok := r.chk.LastEvent(wc.ChainID, wc.Token); ok {
				since = last
			}
		}
		if err := r.backfillEvents(ctx, wc.Slug, since, now); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			r.logger.Warn("backfill failed", "slug", wc.Slug, "err", err)
			continue
		}
		if r.chk != nil {
			if err := r.chk.SetLastEvent(wc.ChainID, wc.Token, now); err != nil {
				r.logger.Warn("checkpoint write failed", "slug", wc.Slug, "err", err)
			}
		}
	}
	return nil
}

func (r *Reconciler) backfillEvents(ctx context.Context, slug string, after, before time.Time) error {
	if r.api == nil {
		return ErrNoMarketAPI
	}
	return r.api.EventsByCollection(ctx, slug, after, before, allEventTypes, func(page []opensea.Event) error {
		for i := range page {
			ev := &page[i]
			if err := r.HandleEvent(ctx, ev.EventType, ev); err != nil {
				return err
			}
		}
		return nil
	})
}

// SyncAsset reconciles one token against the live listing set: mirror
// orders absent from the live set are disabled, live listings are
// imported with force set.
func (r *Reconciler) SyncAsset(ctx context.Context, chainTag, contract, identifier string) error {
	chainID, ok := opensea.ChainID(chainTag)
	if !ok {
		return ErrUnknownChain
	}
	token := strings.ToLower(contract)

	if r.api == nil {
		return ErrNoMarketAPI
	}
	live, err := r.api.ListingsByNFT(ctx, chainTag, contract, identifier)
	if err != nil {
		return err
	}
	liveSet := make(map[string]bool, len(live))
	for _, listing := range live {
		liveSet[strings.ToLower(listing.OrderHash)] = true
	}

	mirror, err := r.store.Orders().FillableByAsset(ctx, chainID, token, identifier, "listing")
	if err != nil {
		return err
	}
	now := r.now().Unix()
	for _, row := range mirror {
		if row.Platform != uint16(marketplace.OpenSea) || liveSet[row.Hash] {
			continue
		}
		if err := r.store.Orders().Disable(ctx, chainID, row.Hash, now); err != nil {
			return err
		}
	}

	for i := range live {
		if err := r.HandleListed(ctx, &live[i], true); err != nil {
			return err
		}
	}

	return r.recomputeAssets(ctx, map[assetKey]bool{
		{chainID, token, identifier, "listing"}: true,
	})
}

// RemoveCollection drops a collection from the watch list and disables
// its fillable listings. An in-flight marker absorbs a concurrent
// second removal of the same collection.
func (r *Reconciler) RemoveCollection(ctx context.Context, chainID uint64, contract string) error {
	token := strings.ToLower(contract)
	marker := removalMarker(chainID, token)
	if _, busy := r.removals.Get(marker); busy {
		r.logger.Info("collection removal already in flight", "chain", chainID, "token", token)
		return nil
	}
	r.removals.Add(marker, struct{}{})

	if err := r.store.Watch().Delete(ctx, chainID, token); err != nil {
		return err
	}

	rows, err := r.store.Orders().DisableCollection(ctx, chainID, token, r.now().Unix())
	if err != nil {
		return err
	}
	touched := make(map[assetKey]bool, len(rows))
	for _, row := range rows {
		touched[assetKey{chainID, row.AssetToken, row.AssetIdentifier, row.Category}] = true
	}
	if err := r.recomputeAssets(ctx, touched); err != nil {
		return err
	}

	r.logger.Info("collection removed", "chain", chainID, "token", token, "orders", len(rows))
	return r.ReloadWatched(ctx)
}

func removalMarker(chainID uint64, token string) string {
	return strconv.FormatUint(chainID, 10) + ":" + token
}
