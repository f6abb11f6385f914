package universalis

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/ffxivarb/gilarb/internal/domain"
)

// wsTestServer accepts one connection, records the subscribe commands it
// receives, and then pushes the given frames to the client.
func wsTestServer(t *testing.T, frames [][]byte, channels chan<- string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Error(err)
			return
		}
		defer conn.Close()

		// One sales and one listings subscription per world.
		for i := 0; i < cap(channels); i++ {
			_, data, err := conn.ReadMessage()
			if err != nil {
				t.Error(err)
				return
			}
			var cmd subscribeCommand
			if err := bson.Unmarshal(data, &cmd); err != nil {
				t.Error(err)
				return
			}
			channels <- cmd.Channel
		}

		for _, frame := range frames {
			if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				t.Error(err)
				return
			}
		}

		// Hold the connection open until the client hangs up.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func mustBSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := bson.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestIngestorSubscribesAndDecodesFrames(t *testing.T) {
	frames := [][]byte{
		mustBSON(t, saleFrameBSON{
			Event: "sales/add",
			Item:  5,
			World: 66,
			Sales: []saleLineBSON{
				{PricePerUnit: 120, Quantity: 2, Total: 240, Timestamp: 1_700_000_000, BuyerName: "A Buyer"},
			},
		}),
		// Unknown channel: dropped, never surfaces downstream.
		mustBSON(t, frameEnvelope{Event: "bogus/channel"}),
		mustBSON(t, listingFrameBSON{
			Event: "listings/add",
			Item:  5,
			World: 33,
			Listings: []listingLineBSON{
				{PricePerUnit: 90, Quantity: 4, HQ: true, RetainerName: "Retainer", Total: 360},
			},
		}),
	}

	channels := make(chan string, 2)
	srv := wsTestServer(t, frames, channels)
	defer srv.Close()

	out := make(chan domain.Event, 16)
	ing := NewIngestor(IngestorConfig{
		Addr:           "ws" + strings.TrimPrefix(srv.URL, "http"),
		Worlds:         []domain.WorldID{66},
		Out:            out,
		ReconnectDelay: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ing.Run(ctx) }()

	// Both channels for the configured world are subscribed.
	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case ch := <-channels:
			got[ch] = true
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for subscriptions")
		}
	}
	require.True(t, got["sales/add{world=66}"])
	require.True(t, got["listings/add{world=66}"])

	recv := func() domain.Event {
		select {
		case ev := <-out:
			return ev
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for event")
			return nil
		}
	}

	sale, ok := recv().(domain.SaleEvent)
	require.True(t, ok)
	require.Equal(t, domain.ItemID(5), sale.Item)
	require.Equal(t, domain.WorldID(66), sale.World)
	require.Len(t, sale.Sales, 1)
	require.Equal(t, "A Buyer", sale.Sales[0].BuyerName)

	listing, ok := recv().(domain.ListingEvent)
	require.True(t, ok)
	require.Equal(t, domain.WorldID(33), listing.World)
	require.Len(t, listing.Listings, 1)
	require.True(t, listing.Listings[0].HQ)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("ingestor did not stop")
	}
}

func TestDecodeFrameRejectsUnknownChannel(t *testing.T) {
	data := mustBSON(t, frameEnvelope{Event: "prices/update"})

	_, err := decodeFrame(data)
	require.ErrorIs(t, err, domain.ErrMalformedMessage)
}

func TestDecodeFrameRejectsGarbage(t *testing.T) {
	_, err := decodeFrame([]byte{0x01, 0x02, 0x03})
	require.ErrorIs(t, err, domain.ErrMalformedMessage)
}
