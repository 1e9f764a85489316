package rbtree

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// growCapacityNumerator and growCapacityDenominator define the 3/2 growth
// factor applied to storage restored by Boot.
const (
	growCapacityNumerator   = 3
	growCapacityDenominator = 2
)

// Hibernated arena columns, in storage order, followed by the free list.
const (
	columnParent = iota
	columnLeft
	columnRight
	columnColor
	columnFree
	columnCount
)

// Allocator is the node arena behind one or more Trees. Nodes are addressed
// by index; slot 0 is the black sentinel and is never handed out.
//
// An Allocator is not safe for concurrent use. Trees sharing an Allocator
// must be driven from one goroutine.
type Allocator[K, V any] struct {
	storage []node[K, V]
	gaps    []handle
	frozen  *frozenArena[K, V]

	// HibernationThreshold is the minimum number of slots before Hibernate
	// does any work. Smaller arenas stay live.
	HibernationThreshold int
}

// frozenArena is the compressed form of a hibernated Allocator. Link and
// color columns are LZ4 blocks; keys and values are kept as-is because their
// layout is opaque to the allocator.
type frozenArena[K, V any] struct {
	keys       []K
	values     []V
	columns    [columnCount][]byte
	storageLen int
	freeLen    int
}

// NewAllocator creates an empty arena holding only the sentinel.
func NewAllocator[K, V any]() *Allocator[K, V] {
	return &Allocator[K, V]{
		storage: []node[K, V]{newSentinel[K, V]()},
		gaps:    []handle{},
	}
}

func newSentinel[K, V any]() node[K, V] {
	return node[K, V]{parent: noParent, left: sentinel, right: sentinel, color: black}
}

// Size returns the number of slots, including the sentinel and freed slots.
// A hibernated allocator reports 0.
func (allocator *Allocator[K, V]) Size() int {
	return len(allocator.storage)
}

// Used returns the number of occupied slots, including the sentinel.
func (allocator *Allocator[K, V]) Used() int {
	return len(allocator.live()) - len(allocator.gaps)
}

// Hibernated reports whether the arena is currently compressed.
func (allocator *Allocator[K, V]) Hibernated() bool {
	return allocator.frozen != nil
}

// Clone copies the arena. Trees bound to the original keep pointing at it.
func (allocator *Allocator[K, V]) Clone() *Allocator[K, V] {
	if allocator.frozen != nil {
		panic("cannot clone a hibernated allocator")
	}

	return &Allocator[K, V]{
		storage:              slices.Clone(allocator.storage),
		gaps:                 slices.Clone(allocator.gaps),
		HibernationThreshold: allocator.HibernationThreshold,
	}
}

// Hibernate compresses the link and color columns of the arena. Trees bound
// to the allocator panic on use until Boot is called. Arenas smaller than
// HibernationThreshold are left alone.
func (allocator *Allocator[K, V]) Hibernate() error {
	if allocator.frozen != nil {
		panic("cannot hibernate an already hibernated Allocator")
	}

	if len(allocator.storage) < allocator.HibernationThreshold {
		return nil
	}

	// Columns are deinterleaved for a better compression ratio.
	buffers := [columnCount][]uint32{}
	for idx := range columnFree {
		buffers[idx] = make([]uint32, len(allocator.storage))
	}

	frozen := &frozenArena[K, V]{
		keys:       make([]K, len(allocator.storage)),
		values:     make([]V, len(allocator.storage)),
		storageLen: len(allocator.storage),
		freeLen:    len(allocator.gaps),
	}

	for idx := range allocator.storage {
		nd := &allocator.storage[idx]
		frozen.keys[idx] = nd.key
		frozen.values[idx] = nd.value
		buffers[columnParent][idx] = nd.parent
		buffers[columnLeft][idx] = nd.left
		buffers[columnRight][idx] = nd.right

		if nd.color == black {
			buffers[columnColor][idx] = 1
		}
	}

	// Free slots are order-independent: sorted deltas compress to almost nothing.
	buffers[columnFree] = slices.Clone(allocator.gaps)
	slices.Sort(buffers[columnFree])
	deltaEncode(buffers[columnFree])

	var (
		wg   sync.WaitGroup
		errs [columnCount]error
	)

	wg.Add(columnCount)

	for idx := range buffers {
		go func(col int) {
			defer wg.Done()

			frozen.columns[col], errs[col] = compressColumn(buffers[col])
		}(idx)
	}

	wg.Wait()

	err := errors.Join(errs[:]...)
	if err != nil {
		return fmt.Errorf("hibernate: %w", err)
	}

	allocator.frozen = frozen
	allocator.storage = nil
	allocator.gaps = nil

	return nil
}

// Boot performs the opposite of Hibernate: it decompresses and restores the
// arena. Booting a live allocator is a no-op.
func (allocator *Allocator[K, V]) Boot() error {
	frozen := allocator.frozen
	if frozen == nil {
		return nil
	}

	var (
		wg      sync.WaitGroup
		buffers [columnCount][]uint32
		errs    [columnCount]error
	)

	wg.Add(columnCount)

	for idx := range frozen.columns {
		go func(col int) {
			defer wg.Done()

			count := frozen.storageLen
			if col == columnFree {
				count = frozen.freeLen
			}

			buffers[col], errs[col] = decompressColumn(frozen.columns[col], count)
		}(idx)
	}

	wg.Wait()

	err := errors.Join(errs[:]...)
	if err != nil {
		return fmt.Errorf("boot: %w", err)
	}

	capSize := (frozen.storageLen * growCapacityNumerator) / growCapacityDenominator
	storage := make([]node[K, V], frozen.storageLen, capSize)

	for idx := range storage {
		nd := &storage[idx]
		nd.key = frozen.keys[idx]
		nd.value = frozen.values[idx]
		nd.parent = buffers[columnParent][idx]
		nd.left = buffers[columnLeft][idx]
		nd.right = buffers[columnRight][idx]
		nd.color = color(buffers[columnColor][idx] > 0)
	}

	deltaDecode(buffers[columnFree])

	allocator.storage = storage
	allocator.gaps = buffers[columnFree]

	if allocator.gaps == nil {
		allocator.gaps = []handle{}
	}

	allocator.frozen = nil

	return nil
}

func (allocator *Allocator[K, V]) live() []node[K, V] {
	if allocator.frozen != nil {
		panic("hibernated allocators cannot be used")
	}

	return allocator.storage
}

func (allocator *Allocator[K, V]) malloc() handle {
	allocator.live()

	if last := len(allocator.gaps) - 1; last >= 0 {
		nodeIdx := allocator.gaps[last]
		allocator.gaps = allocator.gaps[:last]

		return nodeIdx
	}

	nodeLen := len(allocator.storage)
	if nodeLen >= int(noParent) {
		// [math.MaxUint32] is reserved for noParent.
		panic("the size of the allocator has reached the maximum value for uint32")
	}

	allocator.storage = append(allocator.storage, node[K, V]{})

	return handle(nodeLen)
}

func (allocator *Allocator[K, V]) free(nodeIdx handle) {
	allocator.live()

	if nodeIdx == sentinel {
		panic("node #0 is special and cannot be deallocated")
	}

	// Zeroing drops references held by the key and value.
	allocator.storage[nodeIdx] = node[K, V]{}
	allocator.gaps = append(allocator.gaps, nodeIdx)
}

// reset drops every node except the sentinel. Only valid when a single tree
// owns the allocator.
func (allocator *Allocator[K, V]) reset() {
	allocator.live()

	clear(allocator.storage[1:])
	allocator.storage = allocator.storage[:1]
	allocator.gaps = allocator.gaps[:0]
}
