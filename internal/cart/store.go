package cart

import (
	"errors"
	"sync"
)

var ErrNegativePrice = errors.New("price must not be negative")

// Product is what a purchase action hands to the cart. The caller picks the
// price (discounted or original); the cart only freezes it.
type Product struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Price int64  `json:"price"`
}

// Item is one line of the cart. Title and Price are copied at first add and
// never change afterwards.
type Item struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

type Op string

const (
	OpAdd    Op = "add"
	OpRemove Op = "remove"
	OpUpdate Op = "update"
	OpClear  Op = "clear"
	OpMerge  Op = "merge"

	// OpCheckout empties the cart the way OpClear does, for lines handed to
	// an order.
	OpCheckout Op = "checkout"
)

// Change is delivered to observers after a committed mutation.
type Change struct {
	Op     Op
	ItemID int // zero for clear, merge and checkout
	Items  []Item
	Total  int64
}

type Observer func(Change)

// Store owns the line items of one cart. Mutations are serialised and each
// one that changes state is followed by a synchronous notification of every
// observer, in subscription order, before the mutator returns. Observers may
// read the store but must not mutate it.
type Store struct {
	// writeMu serialises mutate+notify so observers see changes in commit order.
	writeMu sync.Mutex

	mu    sync.RWMutex
	items []Item

	obsMu     sync.Mutex
	observers []subscription
	nextObsID uint64
}

type subscription struct {
	id uint64
	fn Observer
}

func NewStore() *Store {
	return &Store{}
}

// NewStoreFrom rebuilds a store from persisted items. Repeated ids are folded
// into the first occurrence and lines with a non-positive quantity or a
// negative price are dropped.
func NewStoreFrom(items []Item) *Store {
	s := &Store{items: make([]Item, 0, len(items))}
	for _, it := range items {
		if it.Quantity <= 0 || it.Price < 0 {
			continue
		}
		if i := s.indexOf(it.ID); i >= 0 {
			s.items[i].Quantity += it.Quantity
			continue
		}
		s.items = append(s.items, it)
	}
	return s
}

// AddItem inserts p with quantity 1, or bumps the quantity of the existing
// line for p.ID leaving its title and price untouched.
func (s *Store) AddItem(p Product) error {
	if p.Price < 0 {
		return ErrNegativePrice
	}

	s.mutate(OpAdd, p.ID, func() bool {
		if i := s.indexOf(p.ID); i >= 0 {
			s.items[i].Quantity++
			return true
		}
		s.items = append(s.items, Item{ID: p.ID, Title: p.Title, Price: p.Price, Quantity: 1})
		return true
	})
	return nil
}

// RemoveItem deletes the line for id. Absent ids are ignored.
func (s *Store) RemoveItem(id int) {
	s.mutate(OpRemove, id, func() bool {
		return s.removeAt(s.indexOf(id))
	})
}

// UpdateQuantity sets the quantity of id to exactly q. A q of zero or less
// removes the line. Absent ids are ignored.
func (s *Store) UpdateQuantity(id, q int) {
	op := OpUpdate
	if q <= 0 {
		op = OpRemove
	}

	s.mutate(op, id, func() bool {
		i := s.indexOf(id)
		if i < 0 {
			return false
		}
		if q <= 0 {
			return s.removeAt(i)
		}
		if s.items[i].Quantity == q {
			return false
		}
		s.items[i].Quantity = q
		return true
	})
}

func (s *Store) Clear() {
	s.mutate(OpClear, 0, func() bool {
		if len(s.items) == 0 {
			return false
		}
		s.items = nil
		return true
	})
}

// Take atomically empties the cart and returns what it held.
func (s *Store) Take() []Item {
	var taken []Item
	s.mutate(OpCheckout, 0, func() bool {
		if len(s.items) == 0 {
			return false
		}
		taken = s.items
		s.items = nil
		return true
	})
	return taken
}

// Merge puts items back into the cart. Lines already present keep their own
// title and price and gain the merged quantity.
func (s *Store) Merge(items []Item) {
	s.mutate(OpMerge, 0, func() bool {
		changed := false
		for _, it := range items {
			if it.Quantity <= 0 || it.Price < 0 {
				continue
			}
			if i := s.indexOf(it.ID); i >= 0 {
				s.items[i].Quantity += it.Quantity
			} else {
				s.items = append(s.items, it)
			}
			changed = true
		}
		return changed
	})
}

// Items returns a copy of the lines in order of first add.
func (s *Store) Items() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyItems()
}

func (s *Store) Item(id int) (Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexOf(id); i >= 0 {
		return s.items[i], true
	}
	return Item{}, false
}

// Len is the number of distinct lines, which is what the header badge shows.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Total is recomputed from the current lines on every call.
func (s *Store) Total() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return total(s.items)
}

// Subscribe registers fn for change notifications. The returned func
// unregisters it and is safe to call more than once.
func (s *Store) Subscribe(fn Observer) func() {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()

	s.nextObsID++
	id := s.nextObsID
	s.observers = append(s.observers, subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { s.unsubscribe(id) })
	}
}

func (s *Store) unsubscribe(id uint64) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()

	for i, sub := range s.observers {
		if sub.id == id {
			s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
			return
		}
	}
}

func (s *Store) mutate(op Op, id int, fn func() bool) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	changed := fn()
	var ch Change
	if changed {
		ch = Change{Op: op, ItemID: id, Items: s.copyItems(), Total: total(s.items)}
	}
	s.mu.Unlock()

	if changed {
		s.notify(ch)
	}
}

func (s *Store) notify(ch Change) {
	s.obsMu.Lock()
	subs := make([]subscription, len(s.observers))
	copy(subs, s.observers)
	s.obsMu.Unlock()

	for _, sub := range subs {
		sub.fn(ch)
	}
}

func (s *Store) indexOf(id int) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) removeAt(i int) bool {
	if i < 0 {
		return false
	}
	s.items = append(s.items[:i:i], s.items[i+1:]...)
	return true
}

func (s *Store) copyItems() []Item {
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

func total(items []Item) int64 {
	var sum int64
	for _, it := range items {
		sum += it.Price * int64(it.Quantity)
	}
	return sum
}
