package domain

// Event is the closed set of messages flowing between the stream
// ingestor, the refresh worker, and the arbitrage engine. Events are
// immutable once constructed; ownership transfers through the queue that
// carries them.
type Event interface {
	event()
}

// SaleLine is one completed purchase inside a SaleEvent.
type SaleLine struct {
	HQ           bool
	PricePerUnit int64
	Quantity     int64
	Total        int64
	Timestamp    int64
	BuyerName    string
}

// SaleEvent reports completed purchases for one item on one world.
type SaleEvent struct {
	Item  ItemID
	World WorldID
	Sales []SaleLine
}

// ListingLine is one new sell offer inside a ListingEvent.
type ListingLine struct {
	PricePerUnit int64
	Quantity     int64
	HQ           bool
	RetainerName string
	Total        int64
	Tax          int64
}

// ListingEvent reports new listings for one item on one world.
type ListingEvent struct {
	Item     ItemID
	World    WorldID
	Listings []ListingLine
}

// RefreshRequest asks the refresh worker to re-fetch the current market
// data for one item.
type RefreshRequest struct {
	Item ItemID
}

// SnapshotUpdate carries freshly fetched snapshots back to the engine.
type SnapshotUpdate struct {
	Snapshots []MarketSnapshot
}

func (SaleEvent) event()      {}
func (ListingEvent) event()   {}
func (RefreshRequest) event() {}
func (SnapshotUpdate) event() {}
