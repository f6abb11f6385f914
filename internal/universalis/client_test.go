package universalis

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ffxivarb/gilarb/internal/domain"
	"github.com/ffxivarb/gilarb/internal/ratelimit"
)

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c := NewClient(ClientConfig{
		RestHost:      srv.URL,
		Region:        "europe",
		Limiter:       ratelimit.New(1000),
		FetchRateCost: 2,
		HTTPClient:    srv.Client(),
	})
	// Fail fast instead of waiting out real backoff delays.
	c.sleep = func(context.Context, time.Duration) error { return nil }
	return c
}

func TestFetchBatchResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/europe/5,6", r.URL.Path)
		w.Write([]byte(`{
			"items": {
				"5": {
					"itemID": 5,
					"averagePriceNQ": 120.5,
					"listings": [
						{"pricePerUnit": 100, "quantity": 3, "worldID": 66, "hq": false}
					]
				},
				"6": {"itemID": 6, "averagePriceNQ": 40}
			}
		}`))
	}))
	defer srv.Close()

	snaps, err := newTestClient(t, srv).Fetch(context.Background(), []domain.ItemID{5, 6})
	require.NoError(t, err)
	require.Len(t, snaps, 2)

	byID := map[domain.ItemID]domain.MarketSnapshot{}
	for _, s := range snaps {
		byID[s.ItemID] = s
	}
	require.Equal(t, 120.5, byID[5].NQAveragePrice)
	snap5 := byID[5]
	require.Equal(t, int64(100), snap5.MinListing(66, false))
	require.Equal(t, 40.0, byID[6].NQAveragePrice)
}

func TestFetchSingleItemResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"itemID": 5,
			"hasData": true,
			"averagePriceHQ": 900,
			"listings": [{"pricePerUnit": 850, "quantity": 1, "worldID": 66, "hq": true}]
		}`))
	}))
	defer srv.Close()

	snaps, err := newTestClient(t, srv).Fetch(context.Background(), []domain.ItemID{5})
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	require.Equal(t, domain.ItemID(5), snaps[0].ItemID)
	require.Equal(t, int64(850), snaps[0].MinListing(66, true))
}

func TestFetchNoDataReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"itemID": 5, "hasData": false}`))
	}))
	defer srv.Close()

	snaps, err := newTestClient(t, srv).Fetch(context.Background(), []domain.ItemID{5})
	require.NoError(t, err)
	require.Empty(t, snaps)
}

func TestFetchRejectsBadBatchSizes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))
	defer srv.Close()
	client := newTestClient(t, srv)

	_, err := client.Fetch(context.Background(), nil)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	tooMany := make([]domain.ItemID, MaxBatchSize+1)
	_, err = client.Fetch(context.Background(), tooMany)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestFetchRetriesWithExponentialBackoff(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	var delays []time.Duration
	client.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	_, err := client.Fetch(context.Background(), []domain.ItemID{5})
	require.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	require.Equal(t, 7, attempts)
	require.Equal(t, []time.Duration{
		2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 32 * time.Second, 64 * time.Second,
	}, delays)
}

func TestFetchRecoversMidRetry(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"itemID": 5, "hasData": true}`))
	}))
	defer srv.Close()

	snaps, err := newTestClient(t, srv).Fetch(context.Background(), []domain.ItemID{5})
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	require.Equal(t, 3, attempts)
}

func TestFetchSucceedsOnFinalAttempt(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 7 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"itemID": 5, "hasData": true}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	var total time.Duration
	client.sleep = func(_ context.Context, d time.Duration) error {
		total += d
		return nil
	}

	snaps, err := client.Fetch(context.Background(), []domain.ItemID{5})
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	require.Equal(t, 7, attempts)
	require.Equal(t, 126*time.Second, total)
}

func TestFetchMalformedBodyNotRetried(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.Write([]byte(`this is not json`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Fetch(context.Background(), []domain.ItemID{5})
	require.ErrorIs(t, err, domain.ErrMalformedMessage)
	require.Equal(t, 1, attempts)
}

func TestMarketable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/marketable", r.URL.Path)
		w.Write([]byte(`[2, 3, 5]`))
	}))
	defer srv.Close()

	ids, err := newTestClient(t, srv).Marketable(context.Background())
	require.NoError(t, err)
	require.Equal(t, []domain.ItemID{2, 3, 5}, ids)
}
