package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// bookEntry is the book's non-owning reference to a resting order, carrying
// only the keys needed to keep price-time priority.
type bookEntry struct {
	id        string
	side      Side
	price     decimal.Decimal
	createdAt time.Time
	seq       uint64
}

func (e bookEntry) before(other bookEntry) bool {
	if cmp := e.price.Cmp(other.price); cmp != 0 {
		if e.side == Buy {
			return cmp > 0
		}
		return cmp < 0
	}
	if !e.createdAt.Equal(other.createdAt) {
		return e.createdAt.Before(other.createdAt)
	}
	return e.seq < other.seq
}

// OrderBook holds one rune's resting order ids. Bids are sorted by price
// descending, asks by price ascending; ties go to the earlier order. The best
// order of each side is always at index 0.
type OrderBook struct {
	runeID      string
	bids        []bookEntry
	asks        []bookEntry
	index       map[string]Side
	lastUpdated time.Time
}

// NewOrderBook creates an empty book for runeID
func NewOrderBook(runeID string) *OrderBook {
	return &OrderBook{
		runeID: runeID,
		bids:   make([]bookEntry, 0),
		asks:   make([]bookEntry, 0),
		index:  make(map[string]Side),
	}
}

// RuneID returns the rune this book belongs to
func (b *OrderBook) RuneID() string {
	return b.runeID
}

// LastUpdated returns the time of the last insert or removal
func (b *OrderBook) LastUpdated() time.Time {
	return b.lastUpdated
}

// Insert places the order id on its side keeping priority order
func (b *OrderBook) Insert(order *Order) {
	if _, ok := b.index[order.ID()]; ok {
		return
	}

	entry := bookEntry{
		id:        order.ID(),
		side:      order.Side(),
		price:     order.Price(),
		createdAt: order.CreatedAt(),
		seq:       order.Seq(),
	}

	side := b.sideOf(entry.side)
	i := sort.Search(len(*side), func(i int) bool {
		return entry.before((*side)[i])
	})
	*side = append(*side, bookEntry{})
	copy((*side)[i+1:], (*side)[i:])
	(*side)[i] = entry

	b.index[entry.id] = entry.side
	b.touch()
}

// Remove drops the order id from the book. It reports whether the id was present.
func (b *OrderBook) Remove(orderID string) bool {
	s, ok := b.index[orderID]
	if !ok {
		return false
	}

	side := b.sideOf(s)
	for i, e := range *side {
		if e.id == orderID {
			*side = append((*side)[:i], (*side)[i+1:]...)
			break
		}
	}
	delete(b.index, orderID)
	b.touch()
	return true
}

// Contains reports whether the order id is resting in the book
func (b *OrderBook) Contains(orderID string) bool {
	_, ok := b.index[orderID]
	return ok
}

// BidIDs returns resting bid ids, best first
func (b *OrderBook) BidIDs() []string {
	return ids(b.bids)
}

// AskIDs returns resting ask ids, best first
func (b *OrderBook) AskIDs() []string {
	return ids(b.asks)
}

// Depth returns the number of resting bids and asks
func (b *OrderBook) Depth() (bids, asks int) {
	return len(b.bids), len(b.asks)
}

// prune removes every id for which keep returns false
func (b *OrderBook) prune(keep func(orderID string) bool) {
	removed := false
	filter := func(side []bookEntry) []bookEntry {
		out := side[:0]
		for _, e := range side {
			if keep(e.id) {
				out = append(out, e)
				continue
			}
			delete(b.index, e.id)
			removed = true
		}
		return out
	}
	b.bids = filter(b.bids)
	b.asks = filter(b.asks)
	if removed {
		b.touch()
	}
}

func (b *OrderBook) sideOf(s Side) *[]bookEntry {
	if s == Buy {
		return &b.bids
	}
	return &b.asks
}

func (b *OrderBook) touch() {
	b.lastUpdated = time.Now()
}

func ids(side []bookEntry) []string {
	out := make([]string, len(side))
	for i, e := range side {
		out[i] = e.id
	}
	return out
}
