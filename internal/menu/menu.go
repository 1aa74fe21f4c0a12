// Package menu fetches and parses a tenant's menu from its published
// spreadsheet. The sheet is an unreliable external feed, so results are
// cached per tenant with a staleness window and the last good copy is
// served while the cache is warm.
package menu

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNoSheetURL      = errors.New("tenant has no menu sheet configured")
	ErrInvalidSheetURL = errors.New("invalid sheet URL format")
)

// Item is one typed menu row.
type Item struct {
	ItemID      string          `json:"item_id"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Veg         bool            `json:"veg"`
	ImageURL    string          `json:"image_url"`
	Available   bool            `json:"available"`
	Description string          `json:"description,omitempty"`
}

var sheetIDPattern = regexp.MustCompile(`/d/([a-zA-Z0-9-_]+)`)

// SheetCSVURL converts a Google Sheet share link into its CSV export URL.
func SheetCSVURL(sheetURL string) (string, error) {
	m := sheetIDPattern.FindStringSubmatch(sheetURL)
	if m == nil {
		return "", ErrInvalidSheetURL
	}
	return fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/gviz/tq?tqx=out:csv&sheet=Sheet1", m[1]), nil
}

type cacheEntry struct {
	items     []Item
	fetchedAt time.Time
}

// Fetcher loads menus with a per-tenant TTL cache.
type Fetcher struct {
	client *http.Client
	ttl    time.Duration

	mu    sync.Mutex
	cache map[uuid.UUID]cacheEntry
}

// NewFetcher creates a Fetcher with the given staleness window.
func NewFetcher(ttl time.Duration) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: 15 * time.Second},
		ttl:    ttl,
		cache:  make(map[uuid.UUID]cacheEntry),
	}
}

// Menu returns the availability-filtered menu for a tenant, fetching from
// the sheet only when the cached copy is older than the TTL.
func (f *Fetcher) Menu(ctx context.Context, tenantID uuid.UUID, sheetURL string) ([]Item, error) {
	if sheetURL == "" {
		return nil, ErrNoSheetURL
	}

	f.mu.Lock()
	entry, ok := f.cache[tenantID]
	f.mu.Unlock()
	if ok && time.Since(entry.fetchedAt) < f.ttl {
		return entry.items, nil
	}

	csvURL, err := SheetCSVURL(sheetURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, csvURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch menu sheet: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch menu sheet: unexpected status %d", resp.StatusCode)
	}

	items, err := Parse(resp.Body)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.cache[tenantID] = cacheEntry{items: items, fetchedAt: time.Now()}
	f.mu.Unlock()

	return items, nil
}

// Invalidate drops the cached menu for a tenant, used when staff change the
// sheet URL.
func (f *Fetcher) Invalidate(tenantID uuid.UUID) {
	f.mu.Lock()
	delete(f.cache, tenantID)
	f.mu.Unlock()
}

// Parse reads the sheet CSV into typed items. Rows marked unavailable are
// dropped; malformed rows are skipped rather than failing the whole menu.
func Parse(r io.Reader) ([]Item, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read menu header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}

	field := func(record []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var items []Item
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read menu row: %w", err)
		}

		name := field(record, "Item")
		if name == "" {
			continue
		}
		price, err := decimal.NewFromString(field(record, "Price"))
		if err != nil {
			continue
		}

		item := Item{
			ItemID:      field(record, "Item Id"),
			Name:        name,
			Category:    field(record, "Category"),
			Price:       price,
			Veg:         parseBool(field(record, "Veg")),
			ImageURL:    field(record, "Image URL"),
			Available:   parseBool(field(record, "Available")),
			Description: field(record, "description"),
		}
		if item.Available {
			items = append(items, item)
		}
	}
	return items, nil
}

func parseBool(s string) bool {
	return strings.EqualFold(s, "true")
}

// Category groups items under one heading, preserving sheet order.
type Category struct {
	Name  string `json:"name"`
	Items []Item `json:"items"`
}

// GroupByCategory buckets items by category in first-seen order.
func GroupByCategory(items []Item) []Category {
	index := make(map[string]int)
	var groups []Category
	for _, item := range items {
		i, ok := index[item.Category]
		if !ok {
			i = len(groups)
			index[item.Category] = i
			groups = append(groups, Category{Name: item.Category})
		}
		groups[i].Items = append(groups[i].Items, item)
	}
	return groups
}
