// Package rbtree provides an ordered map backed by a red-black tree whose
// nodes live in an index-addressed arena.
//
// Keys are kept in ascending order at all times; lookup, insertion and
// deletion are O(log n). The arena replaces parent pointers with indices, so
// the upward walks of the rebalancing code never form reference cycles, and
// an idle arena can be compressed in place with Allocator.Hibernate.
//
// A Tree is single-writer: it performs no locking, and readers must be
// excluded while a mutation is in progress.
package rbtree

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"reflect"
	"sync/atomic"
)

// Sentinel errors.
var (
	// ErrEmptyTree is returned by Min, Max, RemoveMin and RemoveMax on an empty tree.
	ErrEmptyTree = errors.New("tree is empty")
	// ErrDuplicateKey is returned by Insert when the key is already present.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrInvalidArgument is returned for nil keys or values and bad CopyTo bounds.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound is returned by Set when the key is absent.
	ErrNotFound = errors.New("key not found")
	// ErrCorrupted is returned by Verify when a red-black invariant is broken.
	ErrCorrupted = errors.New("tree invariant violated")
)

// Entry is a key-value pair held by a Tree.
type Entry[K, V any] struct {
	Key   K
	Value V
}

// Tree is an ordered map from K to V.
type Tree[K, V any] struct {
	alloc     *Allocator[K, V]
	compare   func(a, b K) int

	root handle

	// lastFound caches the most recent successful lookup. It is a hint, not
	// a reference: delete and Clear reset it to sentinel.
	lastFound handle

	// count is atomic so that Len can be polled from another goroutine,
	// for example by a metrics collector. It does not make the tree itself
	// safe for concurrent access.
	count atomic.Int64

	observers []subscription[K, V]
	nextSubID uint64

	logger *slog.Logger
	id     uint64

	keyNillable   bool
	valueNillable bool

	stats counters
}

// Option configures a Tree.
type Option[K, V any] func(*Tree[K, V])

// WithAllocator binds the tree to a shared arena instead of a private one.
func WithAllocator[K, V any](alloc *Allocator[K, V]) Option[K, V] {
	return func(tree *Tree[K, V]) {
		tree.alloc = alloc
	}
}

// WithObserver subscribes an observer at construction time.
func WithObserver[K, V any](obs Observer[K, V]) Option[K, V] {
	return func(tree *Tree[K, V]) {
		tree.Subscribe(obs)
	}
}

// WithLogger sets the logger used to report observer panics and arena
// maintenance. The default discards everything.
func WithLogger[K, V any](logger *slog.Logger) Option[K, V] {
	return func(tree *Tree[K, V]) {
		if logger != nil {
			tree.logger = logger
		}
	}
}

// New creates an empty tree ordered by the natural order of K.
func New[K cmp.Ordered, V any](opts ...Option[K, V]) *Tree[K, V] {
	return NewFunc(cmp.Compare[K], opts...)
}

// NewFunc creates an empty tree ordered by compare, which must return a
// negative number, zero or a positive number as a is less than, equal to or
// greater than b, and must be a total order.
func NewFunc[K, V any](compare func(a, b K) int, opts ...Option[K, V]) *Tree[K, V] {
	if compare == nil {
		panic("rbtree: nil compare function")
	}

	tree := &Tree[K, V]{
		alloc:         NewAllocator[K, V](),
		compare:       compare,
		root:          sentinel,
		lastFound:     sentinel,
		logger:        slog.New(slog.DiscardHandler),
		id:            rand.Uint64(),
		keyNillable:   nillable(reflect.TypeFor[K]()),
		valueNillable: nillable(reflect.TypeFor[V]()),
	}

	for _, opt := range opts {
		opt(tree)
	}

	return tree
}

// ID returns the random identifier assigned to the tree at construction.
func (tree *Tree[K, V]) ID() uint64 {
	return tree.id
}

// Allocator returns the bound node arena.
func (tree *Tree[K, V]) Allocator() *Allocator[K, V] {
	return tree.alloc
}

// Len returns the number of entries in the tree.
func (tree *Tree[K, V]) Len() int {
	return int(tree.count.Load())
}

// IsEmpty reports whether the tree holds no entries.
func (tree *Tree[K, V]) IsEmpty() bool {
	return tree.root == sentinel
}

// Clear removes every entry and notifies observers. Clearing an empty tree
// still notifies and still counts in Stats().Clears.
//
// When the tree holds every live slot of its arena Clear is O(1); otherwise
// another tree shares the arena and each node is returned individually.
func (tree *Tree[K, V]) Clear() {
	if tree.alloc.Used()-1 == tree.Len() {
		tree.alloc.reset()
	} else {
		tree.freeSubtree(tree.root)
	}

	tree.root = sentinel
	tree.lastFound = sentinel
	tree.count.Store(0)
	tree.stats.clears.Add(1)

	tree.notifyClear()
}

// Clone returns a deep copy of the tree in a fresh private arena. The copy
// has the same shape and colors; observers are not copied.
func (tree *Tree[K, V]) Clone() *Tree[K, V] {
	clone := NewFunc(tree.compare, WithLogger[K, V](tree.logger))

	origin := tree.nodes()
	remap := make(map[handle]handle, tree.Len())
	remap[sentinel] = sentinel
	remap[noParent] = noParent

	for cur := extreme(tree.root, leftSide, origin); cur != sentinel; cur = step(cur, rightSide, origin) {
		remap[cur] = clone.alloc.malloc()
	}

	target := clone.nodes()

	for from, to := range remap {
		if from == sentinel || from == noParent {
			continue
		}

		src := &origin[from]
		target[to] = node[K, V]{
			key:    src.key,
			value:  src.value,
			parent: remap[src.parent],
			left:   remap[src.left],
			right:  remap[src.right],
			color:  src.color,
		}
	}

	clone.root = remap[tree.root]
	clone.count.Store(tree.count.Load())

	return clone
}

func (tree *Tree[K, V]) nodes() []node[K, V] {
	return tree.alloc.live()
}

func (tree *Tree[K, V]) freeSubtree(h handle) {
	if h == sentinel {
		return
	}

	nodes := tree.nodes()
	left, right := nodes[h].left, nodes[h].right

	tree.freeSubtree(left)
	tree.freeSubtree(right)
	tree.alloc.free(h)
}

// checkArgs rejects nil keys and values of nillable types.
func (tree *Tree[K, V]) checkArgs(key K, value V) error {
	if tree.keyNillable && isNil(key) {
		return fmt.Errorf("%w: nil key", ErrInvalidArgument)
	}

	if tree.valueNillable && isNil(value) {
		return fmt.Errorf("%w: nil value for key %v", ErrInvalidArgument, key)
	}

	return nil
}

func nillable(typ reflect.Type) bool {
	switch typ.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return true
	default:
		return false
	}
}

func isNil[T any](val T) bool {
	rv := reflect.ValueOf(any(val))
	if !rv.IsValid() {
		return true
	}

	switch rv.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return rv.IsNil()
	default:
		return false
	}
}

// Hibernate compresses the tree's arena while the tree is idle. Any use of
// the tree other than Len, IsEmpty, ID and Stats panics until Boot.
func (tree *Tree[K, V]) Hibernate() error {
	slots := tree.alloc.Size()

	err := tree.alloc.Hibernate()
	if err != nil {
		return err
	}

	tree.logger.Debug("rbtree: arena hibernated", "tree", tree.id, "slots", slots, "compressed", tree.alloc.Hibernated())

	return nil
}

// Boot restores an arena compressed by Hibernate.
func (tree *Tree[K, V]) Boot() error {
	err := tree.alloc.Boot()
	if err != nil {
		return err
	}

	tree.logger.Debug("rbtree: arena booted", "tree", tree.id, "slots", tree.alloc.Size())

	return nil
}
