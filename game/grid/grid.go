package grid

import (
	"errors"
	"fmt"
	"slices"
)

// ErrStaleKey is returned by Revive when the key cannot be restored: the
// slot was reused, is still live, or the target square is taken.
var ErrStaleKey = errors.New("stale grid key")

// slot holds one chain. chain[0] is the tail, chain[len-1] the head.
// A slot whose chain emptied keeps its value and generation as a
// tombstone until it is revived or reused.
type slot[T any] struct {
	gen   uint32
	live  bool
	value T
	chain []Point
}

// Grid is an occupancy grid of keyed multi-cell chains. Every open square
// belongs to at most one chain.
type Grid[T any] struct {
	bounds Bounds
	closed []bool
	cells  []uint32 // slot index + 1, 0 means empty
	slots  []slot[T]
	free   []uint32
}

// Entry is one live occupant.
type Entry[T any] struct {
	Key   Key
	Value T
}

// New returns an all-open grid.
func New[T any](b Bounds) *Grid[T] {
	return &Grid[T]{
		bounds: b,
		closed: make([]bool, b.Area()),
		cells:  make([]uint32, b.Area()),
	}
}

// Bounds returns the grid size.
func (g *Grid[T]) Bounds() Bounds {
	return g.bounds
}

// PutItem places value on a new length-1 chain at p. It fails without
// mutating the grid when p is out of bounds, closed or occupied.
func (g *Grid[T]) PutItem(p Point, value T) (Key, bool) {
	if !g.SquareIsFree(p) {
		return Key{}, false
	}
	var idx uint32
	if n := len(g.free); n > 0 {
		idx = g.free[n-1]
		g.free = g.free[:n-1]
		s := &g.slots[idx]
		s.gen++
		s.live = true
		s.value = value
		s.chain = []Point{p}
	} else {
		idx = uint32(len(g.slots))
		g.slots = append(g.slots, slot[T]{gen: 1, live: true, value: value, chain: []Point{p}})
	}
	g.cells[g.bounds.index(p)] = idx + 1
	return Key{index: idx, gen: g.slots[idx].gen}, true
}

// PushFront extends the chain for key at its head. p must be adjacent to
// the head and either free or already part of the chain, in which case it
// is moved to the head and the length is unchanged.
func (g *Grid[T]) PushFront(p Point, key Key) bool {
	s := g.live(key)
	if s == nil {
		return false
	}
	head := s.chain[len(s.chain)-1]
	if !head.Adjacent(p) {
		return false
	}
	if owner, ok := g.ItemKeyAt(p); ok {
		if owner != key {
			return false
		}
		s.chain = slices.DeleteFunc(s.chain, func(q Point) bool { return q == p })
	} else if !g.SquareIsFree(p) {
		return false
	}
	s.chain = append(s.chain, p)
	g.cells[g.bounds.index(p)] = key.index + 1
	return true
}

// PushBack extends the chain for key at its tail. The rules mirror PushFront.
func (g *Grid[T]) PushBack(p Point, key Key) bool {
	s := g.live(key)
	if s == nil {
		return false
	}
	if !s.chain[0].Adjacent(p) {
		return false
	}
	if owner, ok := g.ItemKeyAt(p); ok {
		if owner != key {
			return false
		}
		s.chain = slices.DeleteFunc(s.chain, func(q Point) bool { return q == p })
	} else if !g.SquareIsFree(p) {
		return false
	}
	s.chain = slices.Insert(s.chain, 0, p)
	g.cells[g.bounds.index(p)] = key.index + 1
	return true
}

// PopFront removes the head of the chain. Removing the last cell
// invalidates the key.
func (g *Grid[T]) PopFront(key Key) (Point, bool) {
	s := g.live(key)
	if s == nil {
		return Point{}, false
	}
	head := s.chain[len(s.chain)-1]
	s.chain = s.chain[:len(s.chain)-1]
	g.cells[g.bounds.index(head)] = 0
	if len(s.chain) == 0 {
		g.tombstone(key)
	}
	return head, true
}

// PopBackN removes up to n cells from the tail and returns them in
// removal order. Removing every cell invalidates the key.
func (g *Grid[T]) PopBackN(key Key, n int) []Point {
	s := g.live(key)
	if s == nil || n <= 0 {
		return nil
	}
	n = min(n, len(s.chain))
	popped := slices.Clone(s.chain[:n])
	for _, p := range popped {
		g.cells[g.bounds.index(p)] = 0
	}
	s.chain = slices.Delete(s.chain, 0, n)
	if len(s.chain) == 0 {
		g.tombstone(key)
	}
	return popped
}

// ListBackN returns the cells PopBackN(key, n) would remove, without
// removing them.
func (g *Grid[T]) ListBackN(key Key, n int) []Point {
	s := g.live(key)
	if s == nil || n <= 0 {
		return nil
	}
	n = min(n, len(s.chain))
	return slices.Clone(s.chain[:n])
}

// Reinsert puts p back into the chain at index, counted from the tail.
// It undoes a relocation made by PushFront or PushBack and does not check
// adjacency.
func (g *Grid[T]) Reinsert(key Key, p Point, index int) bool {
	s := g.live(key)
	if s == nil || !g.SquareIsFree(p) {
		return false
	}
	index = max(0, min(index, len(s.chain)))
	s.chain = slices.Insert(s.chain, index, p)
	g.cells[g.bounds.index(p)] = key.index + 1
	return true
}

// Remove takes the whole chain off the grid and returns its cells tail
// first. The key becomes invalid but can be revived.
func (g *Grid[T]) Remove(key Key) []Point {
	s := g.live(key)
	if s == nil {
		return nil
	}
	points := s.chain
	for _, p := range points {
		g.cells[g.bounds.index(p)] = 0
	}
	s.chain = nil
	g.tombstone(key)
	return points
}

// Revive restores a removed chain as a single cell at p under its
// original key. Only undo logic should call it.
func (g *Grid[T]) Revive(key Key, p Point) error {
	if key.IsZero() || int(key.index) >= len(g.slots) {
		return fmt.Errorf("%w: %s not issued", ErrStaleKey, key)
	}
	s := &g.slots[key.index]
	if s.gen != key.gen {
		return fmt.Errorf("%w: %s reused as generation %d", ErrStaleKey, key, s.gen)
	}
	if s.live {
		return fmt.Errorf("%w: %s is live", ErrStaleKey, key)
	}
	if !g.SquareIsFree(p) {
		return fmt.Errorf("%w: square %s is not free", ErrStaleKey, p)
	}
	g.free = slices.DeleteFunc(g.free, func(i uint32) bool { return i == key.index })
	s.live = true
	s.chain = []Point{p}
	g.cells[g.bounds.index(p)] = key.index + 1
	return nil
}

// ItemAt returns the value occupying p.
func (g *Grid[T]) ItemAt(p Point) (T, bool) {
	key, ok := g.ItemKeyAt(p)
	if !ok {
		var zero T
		return zero, false
	}
	return g.slots[key.index].value, true
}

// ItemKeyAt returns the key of the chain occupying p.
func (g *Grid[T]) ItemKeyAt(p Point) (Key, bool) {
	if !g.bounds.Contains(p) {
		return Key{}, false
	}
	c := g.cells[g.bounds.index(p)]
	if c == 0 {
		return Key{}, false
	}
	return Key{index: c - 1, gen: g.slots[c-1].gen}, true
}

// Item returns the value stored under key.
func (g *Grid[T]) Item(key Key) (T, bool) {
	s := g.live(key)
	if s == nil {
		var zero T
		return zero, false
	}
	return s.value, true
}

// Contains reports whether key refers to a live chain.
func (g *Grid[T]) Contains(key Key) bool {
	return g.live(key) != nil
}

// Head returns the most recently added cell of the chain.
func (g *Grid[T]) Head(key Key) (Point, bool) {
	s := g.live(key)
	if s == nil {
		return Point{}, false
	}
	return s.chain[len(s.chain)-1], true
}

// Points returns the chain head first.
func (g *Grid[T]) Points(key Key) []Point {
	s := g.live(key)
	if s == nil {
		return nil
	}
	points := slices.Clone(s.chain)
	slices.Reverse(points)
	return points
}

// LenOf returns the chain length, 0 for an invalid key.
func (g *Grid[T]) LenOf(key Key) int {
	s := g.live(key)
	if s == nil {
		return 0
	}
	return len(s.chain)
}

// SquareIsFree reports whether p is in bounds, open and unoccupied.
func (g *Grid[T]) SquareIsFree(p Point) bool {
	if !g.bounds.Contains(p) {
		return false
	}
	i := g.bounds.index(p)
	return !g.closed[i] && g.cells[i] == 0
}

// SquareIsClosed reports whether p is closed. Squares outside the grid
// count as closed.
func (g *Grid[T]) SquareIsClosed(p Point) bool {
	if !g.bounds.Contains(p) {
		return true
	}
	return g.closed[g.bounds.index(p)]
}

// FilteredKeys returns the live keys whose value satisfies pred, in slot order.
func (g *Grid[T]) FilteredKeys(pred func(Key, T) bool) []Key {
	var keys []Key
	for i := range g.slots {
		s := &g.slots[i]
		if !s.live {
			continue
		}
		key := Key{index: uint32(i), gen: s.gen}
		if pred == nil || pred(key, s.value) {
			keys = append(keys, key)
		}
	}
	return keys
}

// Entries returns every live occupant in slot order.
func (g *Grid[T]) Entries() []Entry[T] {
	entries := make([]Entry[T], 0, len(g.slots))
	for i := range g.slots {
		s := &g.slots[i]
		if s.live {
			entries = append(entries, Entry[T]{Key: Key{index: uint32(i), gen: s.gen}, Value: s.value})
		}
	}
	return entries
}

// Clone deep-copies the grid. copyValue copies each stored value,
// tombstones included; nil copies values by assignment.
func (g *Grid[T]) Clone(copyValue func(T) T) *Grid[T] {
	out := &Grid[T]{
		bounds: g.bounds,
		closed: slices.Clone(g.closed),
		cells:  slices.Clone(g.cells),
		slots:  make([]slot[T], len(g.slots)),
		free:   slices.Clone(g.free),
	}
	for i, s := range g.slots {
		v := s.value
		if copyValue != nil {
			v = copyValue(v)
		}
		out.slots[i] = slot[T]{gen: s.gen, live: s.live, value: v, chain: slices.Clone(s.chain)}
	}
	return out
}

func (g *Grid[T]) live(key Key) *slot[T] {
	if key.IsZero() || int(key.index) >= len(g.slots) {
		return nil
	}
	s := &g.slots[key.index]
	if !s.live || s.gen != key.gen {
		return nil
	}
	return s
}

func (g *Grid[T]) tombstone(key Key) {
	s := &g.slots[key.index]
	s.live = false
	s.chain = nil
	g.free = append(g.free, key.index)
}
