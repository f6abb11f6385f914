// Package naming translates numeric item and world identifiers into
// display names for logs and alerts. Item names come from the Teamcraft
// data dump, fetched lazily on first use; world names come from the
// configured worlds table.
package naming

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ffxivarb/gilarb/internal/domain"
)

// itemEntry is the per-item shape of the Teamcraft items JSON.
type itemEntry struct {
	EN string `json:"en"`
}

// Resolver resolves item and world ids to names. Unknown ids render as
// "Undefined (<id>)" rather than failing, so a stale name dump never
// blocks ingestion.
type Resolver struct {
	itemsURL string
	worlds   map[domain.WorldID]string
	client   *http.Client
	logger   *slog.Logger

	once  sync.Once
	items map[string]itemEntry
}

// NewResolver creates a Resolver loading item names from itemsURL and
// world names from the given table.
func NewResolver(itemsURL string, worlds map[domain.WorldID]string, logger *slog.Logger) *Resolver {
	return &Resolver{
		itemsURL: itemsURL,
		worlds:   worlds,
		client:   &http.Client{Timeout: 60 * time.Second},
		logger:   logger.With(slog.String("component", "naming")),
	}
}

// ItemName returns the English display name for an item id, fetching
// the name dump on first use. A failed fetch is logged once and every
// lookup falls back to the undefined form.
func (r *Resolver) ItemName(ctx context.Context, id domain.ItemID) string {
	r.once.Do(func() { r.load(ctx) })

	if entry, ok := r.items[strconv.Itoa(int(id))]; ok && entry.EN != "" {
		return entry.EN
	}
	return fmt.Sprintf("Undefined (%d)", id)
}

// WorldName returns the display name for a world id from the configured
// table.
func (r *Resolver) WorldName(id domain.WorldID) string {
	if name, ok := r.worlds[id]; ok {
		return name
	}
	return fmt.Sprintf("Undefined (%d)", id)
}

func (r *Resolver) load(ctx context.Context) {
	r.logger.Info("loading item names", slog.String("url", r.itemsURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.itemsURL, nil)
	if err != nil {
		r.logger.Warn("item name load failed", slog.String("error", err.Error()))
		return
	}
	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Warn("item name load failed", slog.String("error", err.Error()))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.logger.Warn("item name load failed", slog.Int("status", resp.StatusCode))
		return
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		r.logger.Warn("item name load failed", slog.String("error", err.Error()))
		return
	}

	var items map[string]itemEntry
	if err := json.Unmarshal(body, &items); err != nil {
		r.logger.Warn("item name load failed", slog.String("error", err.Error()))
		return
	}

	r.items = items
	r.logger.Info("item names loaded", slog.Int("count", len(items)))
}
