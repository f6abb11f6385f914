package universalis

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ffxivarb/gilarb/internal/domain"
)

// ---------------------------------------------------------------------------
// REST payloads
// ---------------------------------------------------------------------------

type listingJSON struct {
	LastReviewTime int64  `json:"lastReviewTime"`
	RetainerName   string `json:"retainerName"`
	PricePerUnit   int64  `json:"pricePerUnit"`
	Quantity       int64  `json:"quantity"`
	WorldID        int    `json:"worldID"`
	Total          int64  `json:"total"`
	Tax            int64  `json:"tax"`
	HQ             bool   `json:"hq"`
}

type recentHistoryJSON struct {
	HQ           bool   `json:"hq"`
	PricePerUnit int64  `json:"pricePerUnit"`
	Quantity     int64  `json:"quantity"`
	WorldID      int    `json:"worldID"`
	BuyerName    string `json:"buyerName"`
	Total        int64  `json:"total"`
	Timestamp    int64  `json:"timestamp"`
}

// currentDataJSON is the per-item shape of the aggregated market data
// endpoint. The same shape appears as the values of the "items" map in
// batch responses and as the whole body (with hasData set) when exactly
// one id matched.
type currentDataJSON struct {
	ItemID         int                 `json:"itemID"`
	HasData        bool                `json:"hasData"`
	NQAveragePrice float64             `json:"averagePriceNQ"`
	HQAveragePrice float64             `json:"averagePriceHQ"`
	NQSaleVelocity float64             `json:"nqSaleVelocity"`
	HQSaleVelocity float64             `json:"hqSaleVelocity"`
	Listings       []listingJSON       `json:"listings"`
	RecentHistory  []recentHistoryJSON `json:"recentHistory"`
}

type batchResponseJSON struct {
	Items map[string]currentDataJSON `json:"items"`
}

func (d *currentDataJSON) toDomain(capturedAt int64) domain.MarketSnapshot {
	snap := domain.MarketSnapshot{
		ItemID:         domain.ItemID(d.ItemID),
		NQAveragePrice: d.NQAveragePrice,
		HQAveragePrice: d.HQAveragePrice,
		NQSaleVelocity: d.NQSaleVelocity,
		HQSaleVelocity: d.HQSaleVelocity,
		Listings:       make([]domain.Listing, 0, len(d.Listings)),
		RecentHistory:  make([]domain.RecentSale, 0, len(d.RecentHistory)),
		CapturedAt:     capturedAt,
	}
	for _, l := range d.Listings {
		snap.Listings = append(snap.Listings, domain.Listing{
			LastReviewTime: l.LastReviewTime,
			RetainerName:   l.RetainerName,
			PricePerUnit:   l.PricePerUnit,
			Quantity:       l.Quantity,
			WorldID:        domain.WorldID(l.WorldID),
			Total:          l.Total,
			Tax:            l.Tax,
			HQ:             l.HQ,
		})
	}
	for _, h := range d.RecentHistory {
		snap.RecentHistory = append(snap.RecentHistory, domain.RecentSale{
			HQ:           h.HQ,
			PricePerUnit: h.PricePerUnit,
			Quantity:     h.Quantity,
			WorldID:      domain.WorldID(h.WorldID),
			BuyerName:    h.BuyerName,
			Total:        h.Total,
			Timestamp:    h.Timestamp,
		})
	}
	return snap
}

// parseCurrentData normalizes both response shapes of the aggregated
// market data endpoint into a flat snapshot list: a map keyed by item id
// when several ids matched, or a single flat object when exactly one id
// has data.
func parseCurrentData(body []byte, now time.Time) ([]domain.MarketSnapshot, error) {
	capturedAt := now.Unix()

	var batch batchResponseJSON
	if err := json.Unmarshal(body, &batch); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedMessage, err)
	}
	if len(batch.Items) > 0 {
		snaps := make([]domain.MarketSnapshot, 0, len(batch.Items))
		for _, item := range batch.Items {
			snaps = append(snaps, item.toDomain(capturedAt))
		}
		return snaps, nil
	}

	var single currentDataJSON
	if err := json.Unmarshal(body, &single); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedMessage, err)
	}
	if single.HasData {
		return []domain.MarketSnapshot{single.toDomain(capturedAt)}, nil
	}

	return nil, nil
}

// ---------------------------------------------------------------------------
// Streaming frames (the feed speaks BSON)
// ---------------------------------------------------------------------------

type subscribeCommand struct {
	Event   string `bson:"event"`
	Channel string `bson:"channel"`
}

type frameEnvelope struct {
	Event string `bson:"event"`
}

type saleLineBSON struct {
	HQ           bool   `bson:"hq"`
	PricePerUnit int64  `bson:"pricePerUnit"`
	Quantity     int64  `bson:"quantity"`
	Total        int64  `bson:"total"`
	Timestamp    int64  `bson:"timestamp"`
	BuyerName    string `bson:"buyerName"`
}

type saleFrameBSON struct {
	Event string         `bson:"event"`
	Item  int            `bson:"item"`
	World int            `bson:"world"`
	Sales []saleLineBSON `bson:"sales"`
}

type listingLineBSON struct {
	PricePerUnit int64  `bson:"pricePerUnit"`
	Quantity     int64  `bson:"quantity"`
	HQ           bool   `bson:"hq"`
	RetainerName string `bson:"retainerName"`
	Total        int64  `bson:"total"`
	Tax          int64  `bson:"tax"`
}

type listingFrameBSON struct {
	Event    string            `bson:"event"`
	Item     int               `bson:"item"`
	World    int               `bson:"world"`
	Listings []listingLineBSON `bson:"listings"`
}

func (f *saleFrameBSON) toDomain() domain.SaleEvent {
	ev := domain.SaleEvent{
		Item:  domain.ItemID(f.Item),
		World: domain.WorldID(f.World),
		Sales: make([]domain.SaleLine, 0, len(f.Sales)),
	}
	for _, s := range f.Sales {
		ev.Sales = append(ev.Sales, domain.SaleLine{
			HQ:           s.HQ,
			PricePerUnit: s.PricePerUnit,
			Quantity:     s.Quantity,
			Total:        s.Total,
			Timestamp:    s.Timestamp,
			BuyerName:    s.BuyerName,
		})
	}
	return ev
}

func (f *listingFrameBSON) toDomain() domain.ListingEvent {
	ev := domain.ListingEvent{
		Item:     domain.ItemID(f.Item),
		World:    domain.WorldID(f.World),
		Listings: make([]domain.ListingLine, 0, len(f.Listings)),
	}
	for _, l := range f.Listings {
		ev.Listings = append(ev.Listings, domain.ListingLine{
			PricePerUnit: l.PricePerUnit,
			Quantity:     l.Quantity,
			HQ:           l.HQ,
			RetainerName: l.RetainerName,
			Total:        l.Total,
			Tax:          l.Tax,
		})
	}
	return ev
}
