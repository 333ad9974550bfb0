package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	// MaxWatchlistSymbols is the number of symbols one watchlist may hold.
	MaxWatchlistSymbols = 10
	// MaxWatchlists is the number of watchlist slots per user.
	MaxWatchlists = 5

	watchlistKeyPrefix = "watchlist_"
)

// Watchlists maps "watchlist_<slot>" to the ordered symbols in that slot,
// exactly as the trading API returns them.
type Watchlists map[string][]string

// WatchlistKey returns the map key used for slot id.
func WatchlistKey(id int) string {
	return fmt.Sprintf("%s%d", watchlistKeyPrefix, id)
}

// IDs returns the slot numbers present, ascending.
func (w Watchlists) IDs() []int {
	ids := make([]int, 0, len(w))
	for key := range w {
		n, err := strconv.Atoi(strings.TrimPrefix(key, watchlistKeyPrefix))
		if err != nil || !strings.HasPrefix(key, watchlistKeyPrefix) {
			continue
		}
		ids = append(ids, n)
	}
	sort.Ints(ids)
	return ids
}

// Has reports whether slot id exists.
func (w Watchlists) Has(id int) bool {
	_, ok := w[WatchlistKey(id)]
	return ok
}

// Symbols returns the symbols of slot id.
func (w Watchlists) Symbols(id int) []string {
	return w[WatchlistKey(id)]
}

// ValidWatchlistID reports whether id is a usable slot number.
func ValidWatchlistID(id int) bool {
	return id >= 1 && id <= MaxWatchlists
}

// NormalizeSymbol trims and upper-cases a ticker symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
