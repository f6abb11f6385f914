// Package domain defines the core market-board types shared across the
// ingestion, refresh, and arbitrage components.
package domain

import "time"

// ItemID identifies a tradeable good on the market board.
type ItemID int

// WorldID identifies a world (a market partition with its own listings
// and prices).
type WorldID int

// Listing is a standing sell offer attached to a market snapshot.
type Listing struct {
	LastReviewTime int64   `json:"lastReviewTime"`
	RetainerName   string  `json:"retainerName"`
	PricePerUnit   int64   `json:"pricePerUnit"`
	Quantity       int64   `json:"quantity"`
	WorldID        WorldID `json:"worldID"`
	Total          int64   `json:"total"`
	Tax            int64   `json:"tax"`
	HQ             bool    `json:"hq"`
}

// RecentSale is a historical sale attached to a market snapshot.
type RecentSale struct {
	HQ           bool    `json:"hq"`
	PricePerUnit int64   `json:"pricePerUnit"`
	Quantity     int64   `json:"quantity"`
	WorldID      WorldID `json:"worldID"`
	BuyerName    string  `json:"buyerName"`
	Total        int64   `json:"total"`
	Timestamp    int64   `json:"timestamp"`
}

// MarketSnapshot is the latest known aggregate state for one item:
// per-quality average prices and sale velocities, the full current
// listing set, and recent sale history. CapturedAt is the unix time the
// snapshot was captured; within one process lifetime it only moves
// forward for a given item, except when the cache is reloaded from disk.
type MarketSnapshot struct {
	ItemID         ItemID       `json:"itemID"`
	NQAveragePrice float64      `json:"averagePriceNQ"`
	HQAveragePrice float64      `json:"averagePriceHQ"`
	NQSaleVelocity float64      `json:"nqSaleVelocity"`
	HQSaleVelocity float64      `json:"hqSaleVelocity"`
	Listings       []Listing    `json:"listings"`
	RecentHistory  []RecentSale `json:"recentHistory"`
	CapturedAt     int64        `json:"capturedAt"`
}

// MinListing returns the lowest per-unit price among listings on the
// given world with the given quality, or 0 when no listing matches.
func (s *MarketSnapshot) MinListing(world WorldID, hq bool) int64 {
	var min int64
	for _, l := range s.Listings {
		if l.WorldID != world || l.HQ != hq {
			continue
		}
		if min == 0 || l.PricePerUnit < min {
			min = l.PricePerUnit
		}
	}
	return min
}

// AveragePrice returns the average sale price for the given quality tier.
func (s *MarketSnapshot) AveragePrice(hq bool) float64 {
	if hq {
		return s.HQAveragePrice
	}
	return s.NQAveragePrice
}

// SaleRecord is one persisted sale row. Time is the authoritative event
// time reported by the upstream feed, normalized to UTC.
type SaleRecord struct {
	Time         time.Time `json:"time"`
	WorldID      WorldID   `json:"worldID"`
	ItemID       ItemID    `json:"itemID"`
	PricePerUnit int64     `json:"pricePerUnit"`
	Quantity     int64     `json:"quantity"`
	HQ           bool      `json:"hq"`
}
