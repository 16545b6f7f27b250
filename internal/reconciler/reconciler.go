// Package reconciler keeps the local order mirror consistent with
// external marketplace events and on-chain truth. It consumes pushed
// events (listed, cancelled, sold, transferred), imports listings from
// API backfills, and recomputes the per-asset best-order indices after
// every write.
package reconciler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/errgroup"

	"github.com/lootex/aggregatord/internal/chain"
	"github.com/lootex/aggregatord/internal/opensea"
	"github.com/lootex/aggregatord/internal/store"
)

var (
	ErrUnknownChain = errors.New("reconciler: unknown chain")
	ErrNoStore      = errors.New("reconciler: store is required")
	ErrNoMarketAPI  = errors.New("reconciler: no marketplace api configured")
)

// MarketAPI is the slice of the marketplace REST client the reconciler
// consumes.
type MarketAPI interface {
	BestListingsByCollection(ctx context.Context, slug string, fn func([]opensea.Listing) error) error
	EventsByCollection(ctx context.Context, slug string, after, before time.Time, eventTypes []string, fn func([]opensea.Event) error) error
	ListingsByNFT(ctx context.Context, chain, contract, identifier string) ([]opensea.Listing, error)
}

// Options tunes the reconciler's sweeps and markers.
type Options struct {
	// SoldMarkerTTL is the redelivery window inside which a second
	// sold notification for the same (chain, contract, token) is
	// dropped.
	SoldMarkerTTL time.Duration
	// RemovalTTL guards a collection removal against a concurrent
	// second removal of the same collection.
	RemovalTTL time.Duration

	ExpiryInterval time.Duration
	RepairInterval time.Duration
	ReloadInterval time.Duration

	// BackfillWindow bounds the initial event backfill when no
	// checkpoint exists for a collection.
	BackfillWindow time.Duration

	// RecomputeParallelism caps concurrent best-order recomputations
	// inside one sweep.
	RecomputeParallelism int
}

func (o Options) withDefaults() Options {
	if o.SoldMarkerTTL <= 0 {
		o.SoldMarkerTTL = 2 * time.Minute
	}
	if o.RemovalTTL <= 0 {
		o.RemovalTTL = 15 * time.Minute
	}
	if o.ExpiryInterval <= 0 {
		o.ExpiryInterval = time.Minute
	}
	if o.RepairInterval <= 0 {
		o.RepairInterval = 5 * time.Minute
	}
	if o.ReloadInterval <= 0 {
		o.ReloadInterval = 30 * time.Minute
	}
	if o.BackfillWindow <= 0 {
		o.BackfillWindow = 24 * time.Hour
	}
	if o.RecomputeParallelism <= 0 {
		o.RecomputeParallelism = 4
	}
	return o
}

// Reconciler applies marketplace events to the order store.
type Reconciler struct {
	store   *store.Store
	readers map[uint64]chain.Reader
	api     MarketAPI
	chk     *Checkpoints
	logger  *slog.Logger
	opts    Options
	now     func() time.Time

	soldSeen *expirable.LRU[string, struct{}]
	removals *expirable.LRU[string, struct{}]
	watched  atomic.Pointer[[]store.WatchedCollection]
}

// New wires a reconciler. readers maps chain id to the chain read
// surface for that network; chk may be nil when no checkpoint
// persistence is wanted.
func New(st *store.Store, readers map[uint64]chain.Reader, api MarketAPI, chk *Checkpoints, logger *slog.Logger, opts Options) (*Reconciler, error) {
	if st == nil {
		return nil, ErrNoStore
	}
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()

	r := &Reconciler{
		store:    st,
		readers:  readers,
		api:      api,
		chk:      chk,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
		soldSeen: expirable.NewLRU[string, struct{}](4096, nil, opts.SoldMarkerTTL),
		removals: expirable.NewLRU[string, struct{}](256, nil, opts.RemovalTTL),
	}
	empty := []store.WatchedCollection{}
	r.watched.Store(&empty)
	return r, nil
}

// Watched returns the current immutable watch-list snapshot.
func (r *Reconciler) Watched() []store.WatchedCollection {
	return *r.watched.Load()
}

// ReloadWatched swaps in a fresh watch-list snapshot from the store.
func (r *Reconciler) ReloadWatched(ctx context.Context) error {
	list, err := r.store.Watch().List(ctx)
	if err != nil {
		return err
	}
	r.watched.Store(&list)
	return nil
}

func (r *Reconciler) slugFor(chainID uint64, token string) string {
	for _, wc := range r.Watched() {
		if wc.ChainID == chainID && wc.Token == token {
			return wc.Slug
		}
	}
	return ""
}

// Run drives the periodic sweeps until ctx is cancelled. Individual
// sweep failures are logged and retried on the next tick; only context
// cancellation ends the loop.
func (r *Reconciler) Run(ctx context.Context) error {
	if err := r.ReloadWatched(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.every(ctx, r.opts.ExpiryInterval, "expiry sweep", r.SweepExpired)
	})
	g.Go(func() error {
		return r.every(ctx, r.opts.RepairInterval, "repair sweep", r.SweepRepairs)
	})
	g.Go(func() error {
		return r.every(ctx, r.opts.ReloadInterval, "reactivation sweep", func(ctx context.Context) error {
			if err := r.ReloadWatched(ctx); err != nil {
				return err
			}
			return r.SweepReactivations(ctx)
		})
	})
	return g.Wait()
}

func (r *Reconciler) every(ctx context.Context, interval time.Duration, name string, fn func(context.Context) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := fn(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				r.logger.Warn(name+" failed", "err", err)
			}
		}
	}
}

// HandleEvent dispatches one pushed marketplace event. Anomalies are
// logged and swallowed so a bad event never stops the stream; only
// infrastructure errors propagate.
func (r *Reconciler) HandleEvent(ctx context.Context, eventType string, ev *opensea.Event) error {
	var err error
	switch eventType {
	case opensea.EventItemListed:
		var listing opensea.Listing
		listing, err = listingFromEvent(ev)
		if err == nil {
			err = r.HandleListed(ctx, &listing, false)
		}
	case opensea.EventItemCancelled:
		err = r.HandleCancelled(ctx, ev)
	case opensea.EventItemSold:
		err = r.HandleSold(ctx, ev)
	case opensea.EventItemTransferred:
		err = r.HandleTransferred(ctx, ev)
	default:
		r.logger.Debug("ignoring event", "type", eventType)
		return nil
	}
	if err != nil {
		return err
	}
	r.checkpointEvent(ev)
	return nil
}

func (r *Reconciler) checkpointEvent(ev *opensea.Event) {
	if r.chk == nil || ev.NFT == nil || ev.EventTimestamp <= 0 {
		return
	}
	chainID, ok := opensea.ChainID(ev.Chain)
	if !ok {
		return
	}
	token := strings.ToLower(ev.NFT.Contract)
	if err := r.chk.SetLastEvent(chainID, token, time.Unix(ev.EventTimestamp, 0)); err != nil {
		r.logger.Warn("checkpoint write failed", "chain", chainID, "token", token, "err", err)
	}
}

// listingFromEvent lifts a pushed item_listed payload into the REST
// listing shape the importer works with.
func listingFromEvent(ev *opensea.Event) (opensea.Listing, error) {
	listing := opensea.Listing{
		OrderHash:       ev.OrderHash,
		Chain:           ev.Chain,
		ProtocolAddress: ev.ProtocolAddress,
	}
	if len(ev.ProtocolData) == 0 {
		return listing, fmt.Errorf("reconciler: listed event %s has no protocol data", ev.OrderHash)
	}
	if err := json.Unmarshal(ev.ProtocolData, &listing.ProtocolData); err != nil {
		return listing, fmt.Errorf("reconciler: decode protocol data: %w", err)
	}
	return listing, nil
}

type assetKey struct {
	chainID    uint64
	token      string
	identifier string
	category   string
}

// recomputeAssets recomputes the best-order index of every touched
// asset. Each asset's recomputation reads committed rows only, so the
// fan-out is safe to run concurrently.
func (r *Reconciler) recomputeAssets(ctx context.Context, keys map[assetKey]bool) error {
	if len(keys) == 0 {
		return nil
	}
	now := r.now().Unix()
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.RecomputeParallelism)
	for key := range keys {
		g.Go(func() error {
			return r.store.Orders().RecomputeBestOrder(ctx, key.chainID, key.token, key.identifier, key.category, now)
		})
	}
	return g.Wait()
}
