package domain

// ArbitrageOpportunity is a listing that can be bought on one world and
// resold at the home world's current minimum price for a profit above
// the configured threshold. It is derived per listing event and
// discarded after alerting; nothing persists it.
type ArbitrageOpportunity struct {
	Item        ItemID
	HQ          bool
	SourceWorld WorldID
	HomeWorld   WorldID
	BuyPrice    int64
	SellPrice   int64
	Quantity    int64
	Profit      float64
	// PriceRatio is the home minimum listing price divided by the
	// snapshot's average price for the same quality tier.
	PriceRatio float64
}
