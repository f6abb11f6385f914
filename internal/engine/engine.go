// Package engine implements the arbitrage engine: the single consumer
// of the event bus and the sole owner of the snapshot cache, the
// persistence buffer, and the alert dispatcher.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ffxivarb/gilarb/internal/board"
	"github.com/ffxivarb/gilarb/internal/bus"
	"github.com/ffxivarb/gilarb/internal/domain"
	"github.com/ffxivarb/gilarb/internal/naming"
	"github.com/ffxivarb/gilarb/internal/notify"
	"github.com/ffxivarb/gilarb/internal/persist"
)

// flushTimeout bounds the final persistence flush during shutdown.
const flushTimeout = 10 * time.Second

// Config holds the profit evaluation parameters.
type Config struct {
	HomeWorld       domain.WorldID
	SellTax         float64
	BuyTax          float64
	ProfitThreshold int64
}

// Engine consumes typed events, keeps the snapshot cache current,
// persists sales, requests refreshes for stale home-world prices, and
// emits arbitrage alerts.
type Engine struct {
	cfg        Config
	cache      *board.Cache
	bus        *bus.Bus
	dispatcher *notify.Dispatcher
	buf        *persist.Buffer        // nil when persistence is disabled
	prices     domain.HomePriceCache  // nil when the live price cache is disabled
	names      *naming.Resolver
	logger     *slog.Logger
	printer    *message.Printer
}

// New creates an Engine. buf and prices may be nil to disable
// persistence and live price publication respectively.
func New(
	cfg Config,
	cache *board.Cache,
	b *bus.Bus,
	dispatcher *notify.Dispatcher,
	buf *persist.Buffer,
	prices domain.HomePriceCache,
	names *naming.Resolver,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		cfg:        cfg,
		cache:      cache,
		bus:        b,
		dispatcher: dispatcher,
		buf:        buf,
		prices:     prices,
		names:      names,
		logger:     logger.With(slog.String("component", "engine")),
		printer:    message.NewPrinter(language.English),
	}
}

// Profit computes the resale profit of buying qty units at listPrice
// and reselling them at homePrice, after the buy and sell taxes.
func Profit(homePrice, listPrice, qty int64, sellTax, buyTax float64) float64 {
	return (1-sellTax)*float64(homePrice)*float64(qty) - (1+buyTax)*float64(listPrice)*float64(qty)
}

// Run consumes events until ctx is cancelled or a fatal error occurs.
// Only persistence failures are fatal; every other condition is logged
// and the loop continues. The persistence buffer is flushed
// unconditionally as the loop exits, success or failure.
func (e *Engine) Run(ctx context.Context) (err error) {
	e.logger.Info("arbitrage engine started",
		slog.Int("home_world", int(e.cfg.HomeWorld)),
		slog.Int64("profit_threshold", e.cfg.ProfitThreshold),
		slog.Int("cached_items", e.cache.Len()),
	)

	defer func() {
		if e.buf != nil {
			// The run context is already cancelled on shutdown; give the
			// final flush its own deadline.
			flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
			defer cancel()
			if ferr := e.buf.Flush(flushCtx); ferr != nil {
				e.logger.Error("final flush failed", slog.String("error", ferr.Error()))
				if err == nil || err == ctx.Err() {
					err = ferr
				}
			}
		}
		e.logger.Info("arbitrage engine stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-e.bus.Ingest:
			if err := e.handle(ctx, ev); err != nil {
				return err
			}
		case ev := <-e.bus.RefreshResults:
			if err := e.handle(ctx, ev); err != nil {
				return err
			}
		}
	}
}

// handle dispatches one event by variant. The returned error is fatal
// for the engine loop and is only non-nil for persistence failures.
func (e *Engine) handle(ctx context.Context, ev domain.Event) error {
	switch ev := ev.(type) {
	case domain.SnapshotUpdate:
		e.handleSnapshotUpdate(ctx, ev)
	case domain.SaleEvent:
		return e.handleSale(ctx, ev)
	case domain.ListingEvent:
		e.handleListing(ctx, ev)
	default:
		e.logger.Warn("unhandled event variant", slog.String("type", fmt.Sprintf("%T", ev)))
	}
	return nil
}

func (e *Engine) handleSnapshotUpdate(ctx context.Context, ev domain.SnapshotUpdate) {
	for _, snap := range ev.Snapshots {
		e.cache.Put(snap)

		nq := e.cache.MinPrice(snap.ItemID, e.cfg.HomeWorld, false)
		hq := e.cache.MinPrice(snap.ItemID, e.cfg.HomeWorld, true)
		e.logger.Info("market board updated",
			slog.String("item", e.names.ItemName(ctx, snap.ItemID)),
			slog.String("home_world", e.names.WorldName(e.cfg.HomeWorld)),
			slog.Int64("min_price_nq", nq),
			slog.Int64("min_price_hq", hq),
		)

		if e.prices != nil {
			if err := e.prices.SetHomePrices(ctx, snap.ItemID, nq, hq, time.Now()); err != nil {
				e.logger.Warn("price cache publish failed",
					slog.Int("item", int(snap.ItemID)),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

func (e *Engine) handleSale(ctx context.Context, ev domain.SaleEvent) error {
	for _, line := range ev.Sales {
		if e.buf != nil {
			rec := domain.SaleRecord{
				Time:         time.Unix(line.Timestamp, 0).UTC(),
				WorldID:      ev.World,
				ItemID:       ev.Item,
				PricePerUnit: line.PricePerUnit,
				Quantity:     line.Quantity,
				HQ:           line.HQ,
			}
			if err := e.buf.Insert(ctx, rec); err != nil {
				// Losing audit rows silently is unacceptable; shut the
				// pipeline down.
				return err
			}
		}

		e.logger.Info("sale",
			slog.String("buyer", line.BuyerName),
			slog.String("world", e.names.WorldName(ev.World)),
			slog.String("item", e.names.ItemName(ctx, ev.Item)),
			slog.Bool("hq", line.HQ),
			slog.Int64("quantity", line.Quantity),
			slog.Int64("price_per_unit", line.PricePerUnit),
			slog.Int64("total", line.Total),
		)
	}

	// A sale at home means the cached home minimum may now be stale;
	// ask for a refresh before the next listing evaluation uses it.
	if ev.World == e.cfg.HomeWorld {
		select {
		case e.bus.RefreshRequests <- domain.RefreshRequest{Item: ev.Item}:
		default:
			e.logger.Warn("refresh queue full, dropping request",
				slog.Int("item", int(ev.Item)),
			)
		}
	}
	return nil
}

func (e *Engine) handleListing(ctx context.Context, ev domain.ListingEvent) {
	snap, err := e.cache.Get(ev.Item)
	if err != nil {
		e.logger.Warn("listing for item missing from market board",
			slog.String("item", e.names.ItemName(ctx, ev.Item)),
			slog.Int("item_id", int(ev.Item)),
			slog.String("world", e.names.WorldName(ev.World)),
		)
		return
	}

	for _, l := range ev.Listings {
		e.logger.Info("listing",
			slog.String("retainer", l.RetainerName),
			slog.String("world", e.names.WorldName(ev.World)),
			slog.String("item", e.names.ItemName(ctx, ev.Item)),
			slog.Bool("hq", l.HQ),
			slog.Int64("quantity", l.Quantity),
			slog.Int64("price_per_unit", l.PricePerUnit),
			slog.Int64("total", l.Total),
		)

		homePrice := snap.MinListing(e.cfg.HomeWorld, l.HQ)
		profit := Profit(homePrice, l.PricePerUnit, l.Quantity, e.cfg.SellTax, e.cfg.BuyTax)
		if profit < float64(e.cfg.ProfitThreshold) {
			continue
		}

		avg := snap.AveragePrice(l.HQ)
		ratio := 0.0
		if avg > 0 {
			ratio = float64(homePrice) / avg
		}

		opp := domain.ArbitrageOpportunity{
			Item:        ev.Item,
			HQ:          l.HQ,
			SourceWorld: ev.World,
			HomeWorld:   e.cfg.HomeWorld,
			BuyPrice:    l.PricePerUnit,
			SellPrice:   homePrice,
			Quantity:    l.Quantity,
			Profit:      profit,
			PriceRatio:  ratio,
		}

		msg := e.formatAlert(ctx, opp, l.RetainerName)
		e.logger.Info("arbitrage opportunity", slog.String("alert", msg))
		e.dispatcher.Dispatch(ctx, msg)
	}
}

// formatAlert renders the Discord-markdown alert text for an
// opportunity.
func (e *Engine) formatAlert(ctx context.Context, opp domain.ArbitrageOpportunity, retainer string) string {
	hqSuffix := ""
	if opp.HQ {
		hqSuffix = " (high-quality)"
	}
	return e.printer.Sprintf(
		"%d × **[%s%s](https://universalis.app/market/%d)** can be bought on **%s** from %s for %d gil each and sold on %s for %d gil each (%.1f%%), resulting in **%.0f gil** profit.",
		opp.Quantity,
		e.names.ItemName(ctx, opp.Item),
		hqSuffix,
		int(opp.Item),
		e.names.WorldName(opp.SourceWorld),
		retainer,
		opp.BuyPrice,
		e.names.WorldName(opp.HomeWorld),
		opp.SellPrice,
		(opp.PriceRatio-1)*100,
		opp.Profit,
	)
}
