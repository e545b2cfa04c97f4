package dhash

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"strings"

	"go.uber.org/zap"
)

const (
	// DefaultCapacity is the initial number of slots used by NewDefault.
	DefaultCapacity = 10
	// DefaultMaxLoadFactor is the occupancy ratio above which NewDefault
	// tables grow.
	DefaultMaxLoadFactor = 0.75

	minCapacity = 2
	maxRetries  = 3
)

type slotState uint8

const (
	slotEmpty slotState = iota
	slotOccupied
	slotTombstone
)

type slot[K, V any] struct {
	state slotState
	key   K
	value V
}

// Table is an open-addressing hash table with double hashing. Removed slots
// are kept as tombstones until the next resize so that probe chains passing
// through them stay intact.
//
// A Table is not safe for concurrent use; see package concurrent.
type Table[K, V any] struct {
	hasher        Hasher[K]
	slots         []slot[K, V]
	occupied      int
	tombstones    int
	resizes       int
	maxLoadFactor float64
	maxCapacity   int
	log           *zap.Logger
}

// Stats is a point-in-time summary of a table's occupancy.
type Stats struct {
	Len        int
	Capacity   int
	Tombstones int
	Resizes    int
	LoadFactor float64
}

// New creates a table with initialCapacity slots that doubles in size
// whenever more than maxLoadFactor of its slots are occupied.
func New[K, V any](hasher Hasher[K], initialCapacity int, maxLoadFactor float64, opts ...Option) (*Table[K, V], error) {
	if hasher == nil {
		return nil, ErrNilHasher
	}
	if initialCapacity < minCapacity {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, initialCapacity)
	}
	if math.IsNaN(maxLoadFactor) || maxLoadFactor <= 0 || maxLoadFactor >= 1 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidLoadFactor, maxLoadFactor)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxCapacity != 0 && o.maxCapacity < initialCapacity {
		return nil, fmt.Errorf("%w: max capacity %d is below initial capacity %d",
			ErrInvalidCapacity, o.maxCapacity, initialCapacity)
	}

	return &Table[K, V]{
		hasher:        hasher,
		slots:         make([]slot[K, V], initialCapacity),
		maxLoadFactor: maxLoadFactor,
		maxCapacity:   o.maxCapacity,
		log:           o.logger,
	}, nil
}

// NewDefault creates a table with DefaultCapacity and DefaultMaxLoadFactor.
func NewDefault[K, V any](hasher Hasher[K], opts ...Option) (*Table[K, V], error) {
	return New[K, V](hasher, DefaultCapacity, DefaultMaxLoadFactor, opts...)
}

// probe returns the first index and the step of the probe sequence for hash
// in a table of capacity slots. The step is never zero.
func probe(hash uint64, capacity int) (uint64, uint64) {
	c := uint64(capacity)
	return hash % c, 1 + hash%(c-1)
}

// Insert adds the pair or replaces the value of an existing key.
func (t *Table[K, V]) Insert(key K, value V) error {
	for retry := 0; ; retry++ {
		idx, exists := t.findInsertSlot(t.slots, key)
		if idx >= 0 {
			s := &t.slots[idx]
			if exists {
				s.value = value
				return nil
			}
			if s.state == slotTombstone {
				t.tombstones--
			}
			*s = slot[K, V]{state: slotOccupied, key: key, value: value}
			t.occupied++
			t.checkLoad()
			return nil
		}

		if retry >= maxRetries {
			return fmt.Errorf("%w: exceeded maximum retry count (%d) at capacity %d",
				ErrTableFull, retry, len(t.slots))
		}
		// The probe sequence of this key visits only occupied slots. This
		// happens when its step shares a factor with the capacity.
		if err := t.grow(); err != nil {
			return fmt.Errorf("%w: %w", ErrTableFull, err)
		}
	}
}

// findInsertSlot returns the slot where key lives or should be placed, and
// whether the key is already present. It returns -1 when the probe sequence
// holds neither the key nor a usable slot.
func (t *Table[K, V]) findInsertSlot(slots []slot[K, V], key K) (int, bool) {
	n := len(slots)
	idx, step := probe(t.hasher.Hash(key), n)
	tomb := -1

	for i := 0; i < n; i++ {
		s := &slots[idx]
		switch s.state {
		case slotEmpty:
			if tomb >= 0 {
				return tomb, false
			}
			return int(idx), false
		case slotTombstone:
			if tomb < 0 {
				tomb = int(idx)
			}
		case slotOccupied:
			if t.hasher.Equal(s.key, key) {
				return int(idx), true
			}
		}
		idx = (idx + step) % uint64(n)
	}

	return tomb, false
}

// find returns the index of the occupied slot holding key, or -1.
func (t *Table[K, V]) find(key K) int {
	n := len(t.slots)
	idx, step := probe(t.hasher.Hash(key), n)

	for i := 0; i < n; i++ {
		s := &t.slots[idx]
		switch s.state {
		case slotEmpty:
			return -1
		case slotOccupied:
			if t.hasher.Equal(s.key, key) {
				return int(idx)
			}
		}
		idx = (idx + step) % uint64(n)
	}

	return -1
}

// checkLoad grows the table once the occupancy exceeds the load factor.
func (t *Table[K, V]) checkLoad() {
	if float64(t.occupied)/float64(len(t.slots)) <= t.maxLoadFactor {
		return
	}
	if err := t.grow(); err != nil {
		t.log.Warn("table stays above max load factor",
			zap.Int("len", t.occupied),
			zap.Int("capacity", len(t.slots)),
			zap.Float64("max-load-factor", t.maxLoadFactor),
			zap.Error(err))
	}
}

// grow doubles the capacity, doubling again until every key can be placed in
// the new slots. It stops only at the capacity ceiling or when the capacity
// cannot double without overflowing.
func (t *Table[K, V]) grow() error {
	newCap := len(t.slots)
	for {
		if newCap > math.MaxInt/2 {
			return fmt.Errorf("%w: capacity %d cannot double", ErrCapacityLimit, newCap)
		}
		newCap *= 2
		if t.maxCapacity > 0 && newCap > t.maxCapacity {
			return fmt.Errorf("%w: %d slots would exceed %d", ErrCapacityLimit, newCap, t.maxCapacity)
		}
		err := t.resize(newCap)
		if err == nil || !errors.Is(err, ErrTableFull) {
			return err
		}
		t.log.Debug("resize could not place every key, doubling again",
			zap.Int("new-capacity", newCap),
			zap.Error(err))
	}
}

// resize rehashes every occupied slot into newCap fresh slots, dropping
// tombstones. The table is left untouched if any key cannot be placed.
func (t *Table[K, V]) resize(newCap int) error {
	t.log.Debug("resize started",
		zap.Int("capacity", len(t.slots)),
		zap.Int("new-capacity", newCap),
		zap.Int("len", t.occupied),
		zap.Int("tombstones", t.tombstones))

	slots := make([]slot[K, V], newCap)
	for i := range t.slots {
		s := &t.slots[i]
		if s.state != slotOccupied {
			continue
		}
		idx, _ := t.findInsertSlot(slots, s.key)
		if idx < 0 {
			return fmt.Errorf("failed to find slot for key during resize to %d slots: %w", newCap, ErrTableFull)
		}
		slots[idx] = *s
	}

	t.slots = slots
	t.tombstones = 0
	t.resizes++

	t.log.Debug("resize complete",
		zap.Int("capacity", newCap),
		zap.Int("len", t.occupied))
	return nil
}

// Get returns the value stored for key and whether it was found.
func (t *Table[K, V]) Get(key K) (V, bool) {
	if idx := t.find(key); idx >= 0 {
		return t.slots[idx].value, true
	}
	var zero V
	return zero, false
}

// Contains reports whether key is present.
func (t *Table[K, V]) Contains(key K) bool {
	return t.find(key) >= 0
}

// Remove deletes key and returns the key as it was stored. The second result
// is false when the key was not present.
func (t *Table[K, V]) Remove(key K) (K, bool) {
	idx := t.find(key)
	if idx < 0 {
		var zero K
		return zero, false
	}

	s := &t.slots[idx]
	removed := s.key
	*s = slot[K, V]{state: slotTombstone}
	t.occupied--
	t.tombstones++
	return removed, true
}

// Entries returns an iterator over the stored pairs in slot order. The
// iterator reads the table when it runs, so it may be reused after further
// mutations. The table must not be modified during iteration.
func (t *Table[K, V]) Entries() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for i := range t.slots {
			s := &t.slots[i]
			if s.state == slotOccupied && !yield(s.key, s.value) {
				return
			}
		}
	}
}

// Keys returns an iterator over the stored keys in slot order.
func (t *Table[K, V]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		for k := range t.Entries() {
			if !yield(k) {
				return
			}
		}
	}
}

// Len returns the number of stored pairs.
func (t *Table[K, V]) Len() int { return t.occupied }

// Cap returns the number of slots.
func (t *Table[K, V]) Cap() int { return len(t.slots) }

// LoadFactor returns the ratio of occupied slots to capacity.
func (t *Table[K, V]) LoadFactor() float64 {
	return float64(t.occupied) / float64(len(t.slots))
}

// Stats returns the current occupancy of the table.
func (t *Table[K, V]) Stats() Stats {
	return Stats{
		Len:        t.occupied,
		Capacity:   len(t.slots),
		Tombstones: t.tombstones,
		Resizes:    t.resizes,
		LoadFactor: t.LoadFactor(),
	}
}

// String renders one "(key, value)" line per stored pair in slot order.
func (t *Table[K, V]) String() string {
	var sb strings.Builder
	for k, v := range t.Entries() {
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "(%v, %v)", k, v)
	}
	return sb.String()
}
