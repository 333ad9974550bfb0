// Package pricefx tracks per-symbol price moves and reports short-lived
// up/down highlights for rows whose price jumped.
package pricefx

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradezone-dashboard/internal/metrics"
)

// Direction of a highlighted move.
type Direction int

const (
	None Direction = iota
	Up
	Down
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return "none"
	}
}

// Class is the style name renderers attach to a flashing row.
func (d Direction) Class() string {
	switch d {
	case Up:
		return "flash-up"
	case Down:
		return "flash-down"
	default:
		return ""
	}
}

// Flash is the highlight state of one symbol. Symbol is the key given to
// Observe, which may carry a source prefix.
type Flash struct {
	Symbol    string          `json:"symbol"`
	Direction Direction       `json:"-"`
	Active    bool            `json:"active"`
	From      decimal.Decimal `json:"from"`
	To        decimal.Decimal `json:"to"`
	Started   time.Time       `json:"started"`
}

type flashing struct {
	flash Flash
	timer *time.Timer
}

// Tracker remembers the last price per symbol. A move larger than the
// threshold starts a flash that lasts for duration; while it lasts further
// observations of the symbol are ignored. When it ends the price that
// triggered it becomes the remembered price.
type Tracker struct {
	mu        sync.Mutex
	threshold decimal.Decimal
	duration  time.Duration
	prev      map[string]decimal.Decimal
	active    map[string]*flashing
	onChange  func(Flash)
	logger    *zap.Logger
}

// NewTracker creates a Tracker.
func NewTracker(threshold float64, duration time.Duration, logger *zap.Logger) *Tracker {
	return &Tracker{
		threshold: decimal.NewFromFloat(threshold),
		duration:  duration,
		prev:      make(map[string]decimal.Decimal),
		active:    make(map[string]*flashing),
		logger:    logger,
	}
}

// OnChange sets a callback invoked when a flash starts or ends.
func (t *Tracker) OnChange(fn func(Flash)) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

// Observe records price for symbol and returns the symbol's flash state.
func (t *Tracker) Observe(symbol string, price decimal.Decimal) Flash {
	t.mu.Lock()

	if f, ok := t.active[symbol]; ok {
		t.mu.Unlock()
		return f.flash
	}

	previous, seen := t.prev[symbol]
	if !seen || price.Sub(previous).Abs().LessThanOrEqual(t.threshold) {
		t.prev[symbol] = price
		t.mu.Unlock()
		return Flash{Symbol: symbol}
	}

	dir := Up
	if price.LessThan(previous) {
		dir = Down
	}
	f := &flashing{flash: Flash{
		Symbol:    symbol,
		Direction: dir,
		Active:    true,
		From:      previous,
		To:        price,
		Started:   time.Now(),
	}}
	f.timer = time.AfterFunc(t.duration, func() { t.expire(symbol, f) })
	t.active[symbol] = f
	cb := t.onChange
	t.mu.Unlock()

	metrics.PriceFlashesTotal.WithLabelValues(dir.String()).Inc()
	t.logger.Debug("Price flash started",
		zap.String("symbol", symbol),
		zap.String("direction", dir.String()),
		zap.String("from", previous.String()),
		zap.String("to", price.String()),
	)
	if cb != nil {
		cb(f.flash)
	}
	return f.flash
}

func (t *Tracker) expire(symbol string, f *flashing) {
	t.mu.Lock()
	if t.active[symbol] != f {
		t.mu.Unlock()
		return
	}
	t.clear(symbol, f)
	cb := t.onChange
	t.mu.Unlock()

	if cb != nil {
		cb(Flash{Symbol: symbol, To: f.flash.To})
	}
}

// clear ends f; the caller holds t.mu.
func (t *Tracker) clear(symbol string, f *flashing) {
	f.timer.Stop()
	delete(t.active, symbol)
	t.prev[symbol] = f.flash.To
}

// State returns the current flash of symbol.
func (t *Tracker) State(symbol string) Flash {
	t.mu.Lock()
	defer t.mu.Unlock()
	if f, ok := t.active[symbol]; ok {
		return f.flash
	}
	return Flash{Symbol: symbol}
}

// Active returns every symbol currently flashing.
func (t *Tracker) Active() []Flash {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Flash, 0, len(t.active))
	for _, f := range t.active {
		out = append(out, f.flash)
	}
	return out
}

// Reset ends the flash of symbol early.
func (t *Tracker) Reset(symbol string) {
	t.mu.Lock()
	f, ok := t.active[symbol]
	if ok {
		t.clear(symbol, f)
	}
	cb := t.onChange
	t.mu.Unlock()

	if ok && cb != nil {
		cb(Flash{Symbol: symbol, To: f.flash.To})
	}
}

// Stop cancels every pending flash timer.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for symbol, f := range t.active {
		t.clear(symbol, f)
	}
}
