package trader

import (
	"sort"
	"sync"
)

// Book is the single shared mutable resource of the core: the cached account
// balance plus the open position per symbol. The executor writes during a
// cycle, the monitor writes on closure detection; both first acquire the
// per-symbol guard so their writes never interleave.
type Book struct {
	mu        sync.RWMutex
	balance   float64
	positions map[string]*Position

	guardMu sync.Mutex
	guards  map[string]*sync.Mutex
}

func NewBook() *Book {
	return &Book{
		positions: make(map[string]*Position),
		guards:    make(map[string]*sync.Mutex),
	}
}

// Acquire takes the symbol guard without blocking. It returns false when a
// cycle or a monitor reconciliation is already holding the symbol.
func (b *Book) Acquire(symbol string) bool {
	return b.guard(symbol).TryLock()
}

func (b *Book) Release(symbol string) {
	b.guard(symbol).Unlock()
}

func (b *Book) guard(symbol string) *sync.Mutex {
	b.guardMu.Lock()
	defer b.guardMu.Unlock()
	g, ok := b.guards[symbol]
	if !ok {
		g = &sync.Mutex{}
		b.guards[symbol] = g
	}
	return g
}

func (b *Book) Balance() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.balance
}

func (b *Book) SetBalance(v float64) {
	b.mu.Lock()
	b.balance = v
	b.mu.Unlock()
}

// Position returns a copy of the tracked position for the symbol.
func (b *Book) Position(symbol string) (Position, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	pos, ok := b.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

func (b *Book) SetPosition(pos Position) {
	b.mu.Lock()
	cp := pos
	b.positions[pos.Symbol] = &cp
	b.mu.Unlock()
}

// ClearPosition removes the tracked position and reports whether one was
// present, so closure handling stays idempotent across repeated zero-reads.
func (b *Book) ClearPosition(symbol string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.positions[symbol]; !ok {
		return false
	}
	delete(b.positions, symbol)
	return true
}

func (b *Book) UpdateUnrealized(symbol string, pnl float64) {
	b.mu.Lock()
	if pos, ok := b.positions[symbol]; ok {
		pos.UnrealizedPnL = pnl
	}
	b.mu.Unlock()
}

// OpenSymbols lists symbols with a tracked position, sorted for stable
// iteration order.
func (b *Book) OpenSymbols() []string {
	b.mu.RLock()
	out := make([]string, 0, len(b.positions))
	for sym := range b.positions {
		out = append(out, sym)
	}
	b.mu.RUnlock()
	sort.Strings(out)
	return out
}
