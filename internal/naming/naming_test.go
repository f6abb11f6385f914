package naming

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ffxivarb/gilarb/internal/domain"
)

func TestItemNameLoadsDumpOnce(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"5": {"en": "Copper Ore"}, "7": {"en": ""}}`))
	}))
	defer srv.Close()

	r := NewResolver(srv.URL, nil, slog.Default())
	ctx := context.Background()

	require.Equal(t, "Copper Ore", r.ItemName(ctx, 5))
	require.Equal(t, "Copper Ore", r.ItemName(ctx, 5))
	require.Equal(t, int32(1), hits.Load())

	// Unknown ids and empty names fall back to the undefined form.
	require.Equal(t, "Undefined (42)", r.ItemName(ctx, 42))
	require.Equal(t, "Undefined (7)", r.ItemName(ctx, 7))
}

func TestItemNameSurvivesFailedLoad(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := NewResolver(srv.URL, nil, slog.Default())
	require.Equal(t, "Undefined (5)", r.ItemName(context.Background(), 5))
}

func TestWorldName(t *testing.T) {
	r := NewResolver("", map[domain.WorldID]string{66: "Odin"}, slog.Default())

	require.Equal(t, "Odin", r.WorldName(66))
	require.Equal(t, "Undefined (9)", r.WorldName(9))
}
