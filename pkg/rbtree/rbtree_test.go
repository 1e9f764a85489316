package rbtree //nolint:testpackage // tests require access to unexported fields (storage, gaps, root, etc.)

import (
	"maps"
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// oracle mirrors a Tree[int, int] with a plain map.
type oracle map[int]int

func (o oracle) sortedKeys() []int {
	return slices.Sorted(maps.Keys(o))
}

func (o oracle) randomKey(rng *rand.Rand) int {
	keys := o.sortedKeys()

	return keys[rng.IntN(len(keys))]
}

func compareWithOracle(tb testing.TB, orc oracle, tree *Tree[int, int]) {
	tb.Helper()

	require.NoError(tb, tree.Verify())
	require.Equal(tb, len(orc), tree.Len())

	keys := orc.sortedKeys()
	require.Equal(tb, keys, tree.Keys())

	for _, key := range keys {
		value, ok := tree.Get(key)
		require.True(tb, ok, "key %d", key)
		require.Equal(tb, orc[key], value)
	}

	backward := make([]int, 0, len(keys))
	for key := range tree.Backward() {
		backward = append(backward, key)
	}

	slices.Reverse(keys)
	require.Equal(tb, keys, backward)
}

func TestRandomized(t *testing.T) {
	t.Parallel()

	const numKeys = 500

	orc := oracle{}
	tree := New[int, int]()
	rng := rand.New(rand.NewPCG(1, 2))

	for step := range 20000 {
		op := rng.IntN(100)

		switch {
		case op < 45:
			key := rng.IntN(numKeys)
			_, exists := orc[key]

			err := tree.Insert(key, step)
			if exists {
				require.ErrorIs(t, err, ErrDuplicateKey)
			} else {
				require.NoError(t, err)

				orc[key] = step
			}
		case op < 80 && len(orc) > 0:
			key := orc.randomKey(rng)
			delete(orc, key)
			require.True(t, tree.Remove(key), "remove %d", key)
		case op < 85 && len(orc) > 0:
			entry, err := tree.RemoveMin()
			require.NoError(t, err)
			require.Equal(t, orc.sortedKeys()[0], entry.Key)
			require.Equal(t, orc[entry.Key], entry.Value)
			delete(orc, entry.Key)
		case op < 90 && len(orc) > 0:
			entry, err := tree.RemoveMax()
			require.NoError(t, err)

			keys := orc.sortedKeys()
			require.Equal(t, keys[len(keys)-1], entry.Key)
			delete(orc, entry.Key)
		default:
			key := rng.IntN(numKeys)
			_, want := orc[key]
			require.Equal(t, want, tree.ContainsKey(key))
			require.Equal(t, want, tree.Remove(key))

			delete(orc, key)
		}

		if step%97 == 0 {
			compareWithOracle(t, orc, tree)
		}
	}

	compareWithOracle(t, orc, tree)
}

func TestHeightBound(t *testing.T) {
	t.Parallel()

	tree := New[int, int]()

	// Ascending inserts are the worst case for an unbalanced tree.
	for key := range 4096 {
		require.NoError(t, tree.Insert(key, key))
	}

	bound := 2 * math.Log2(float64(tree.Len()+1))
	assert.LessOrEqual(t, float64(tree.Height()), bound)
	require.NoError(t, tree.Verify())

	for key := range 4000 {
		require.True(t, tree.Remove(key))
	}

	bound = 2 * math.Log2(float64(tree.Len()+1))
	assert.LessOrEqual(t, float64(tree.Height()), bound)
	require.NoError(t, tree.Verify())
}

func TestSentinelNeverWritten(t *testing.T) {
	t.Parallel()

	tree := New[int, int]()
	rng := rand.New(rand.NewPCG(7, 7))

	for range 3000 {
		key := rng.IntN(200)
		if !tree.Remove(key) {
			require.NoError(t, tree.Insert(key, key))
		}
	}

	assert.Equal(t, newSentinel[int, int](), tree.nodes()[sentinel])
}

func TestRotatePreservesOrder(t *testing.T) {
	t.Parallel()

	tree := New[int, int]()
	// Three-node chain 1 -> 2 -> 3 built by hand, bypassing the fixup.
	one, two, three := tree.alloc.malloc(), tree.alloc.malloc(), tree.alloc.malloc()
	nodes := tree.nodes()
	nodes[one] = node[int, int]{key: 1, parent: noParent, left: sentinel, right: two, color: black}
	nodes[two] = node[int, int]{key: 2, parent: one, left: sentinel, right: three, color: black}
	nodes[three] = node[int, int]{key: 3, parent: two, left: sentinel, right: sentinel, color: black}
	tree.root = one
	tree.count.Store(3)

	tree.rotate(one, leftSide)

	assert.Equal(t, two, tree.root)
	assert.Equal(t, noParent, nodes[two].parent)
	assert.Equal(t, one, nodes[two].left)
	assert.Equal(t, three, nodes[two].right)
	assert.Equal(t, two, nodes[one].parent)
	assert.Equal(t, sentinel, nodes[one].right)
	assert.Equal(t, []int{1, 2, 3}, tree.Keys())

	tree.rotate(two, rightSide)

	assert.Equal(t, one, tree.root)
	assert.Equal(t, two, nodes[one].right)
	assert.Equal(t, []int{1, 2, 3}, tree.Keys())
	assert.Equal(t, int64(2), tree.stats.rotations.Load())
}

func TestVerifyDetectsCorruption(t *testing.T) {
	t.Parallel()

	build := func() *Tree[int, int] {
		tree := New[int, int]()
		for _, key := range []int{4, 2, 6, 1, 3, 5, 7, 8} {
			require.NoError(t, tree.Insert(key, key))
		}

		require.NoError(t, tree.Verify())

		return tree
	}

	tree := build()
	tree.nodes()[tree.root].color = red
	require.ErrorIs(t, tree.Verify(), ErrCorrupted)

	tree = build()
	tree.nodes()[sentinel].color = red
	require.ErrorIs(t, tree.Verify(), ErrCorrupted)

	tree = build()
	leftmost := extreme(tree.root, leftSide, tree.nodes())
	tree.nodes()[leftmost].key = 100
	require.ErrorIs(t, tree.Verify(), ErrCorrupted)

	tree = build()
	tree.count.Add(1)
	require.ErrorIs(t, tree.Verify(), ErrCorrupted)

	tree = build()
	nodes := tree.nodes()
	root := &nodes[tree.root]
	nodes[root.left].color = !nodes[root.left].color
	require.ErrorIs(t, tree.Verify(), ErrCorrupted)

	tree = build()
	nodes = tree.nodes()
	nodes[nodes[tree.root].left].parent = noParent
	require.ErrorIs(t, tree.Verify(), ErrCorrupted)
}

func TestLastFoundCache(t *testing.T) {
	t.Parallel()

	tree := New[int, int]()
	for key := range 10 {
		require.NoError(t, tree.Insert(key, key))
	}

	_, ok := tree.Get(4)
	require.True(t, ok)
	assert.Equal(t, 4, tree.nodes()[tree.lastFound].key)

	_, err := tree.Max()
	require.NoError(t, err)
	assert.Equal(t, 9, tree.nodes()[tree.lastFound].key)

	tree.Remove(3)
	assert.Equal(t, sentinel, tree.lastFound)

	require.NoError(t, tree.Insert(3, 3))
	assert.Equal(t, 3, tree.nodes()[tree.lastFound].key)

	tree.Clear()
	assert.Equal(t, sentinel, tree.lastFound)
}

func TestDeleteCapturesRemovedPair(t *testing.T) {
	t.Parallel()

	tree := New[int, string]()
	for _, key := range []int{20, 10, 30, 25, 35} {
		require.NoError(t, tree.Insert(key, "v"))
	}

	target := tree.lookup(20)
	tree.nodes()[target].value = "root"

	removed := tree.deleteNode(target)
	assert.Equal(t, Entry[int, string]{Key: 20, Value: "root"}, removed)

	// The successor's pair moved into the surviving slot.
	assert.Equal(t, 25, tree.nodes()[target].key)
	require.NoError(t, tree.Verify())
}

func TestAllocatorFreeZero(t *testing.T) {
	t.Parallel()

	alloc := NewAllocator[int, string]()
	assert.PanicsWithValue(t, "node #0 is special and cannot be deallocated", func() { alloc.free(sentinel) })

	idx := alloc.malloc()
	alloc.storage[idx].key = 5
	alloc.storage[idx].value = "five"
	alloc.free(idx)

	assert.Equal(t, node[int, string]{}, alloc.storage[idx])
	assert.Equal(t, idx, alloc.malloc())
}

func TestAllocatorClone(t *testing.T) {
	t.Parallel()

	alloc := NewAllocator[int, int]()
	alloc.HibernationThreshold = 7

	first := alloc.malloc()
	alloc.malloc()
	alloc.free(first)

	clone := alloc.Clone()
	assert.Equal(t, alloc.storage, clone.storage)
	assert.Equal(t, alloc.gaps, clone.gaps)
	assert.Equal(t, 7, clone.HibernationThreshold)

	clone.malloc()
	assert.Len(t, alloc.gaps, 1)
	assert.Empty(t, clone.gaps)
}

func TestAllocatorHibernateBoot(t *testing.T) {
	t.Parallel()

	alloc := NewAllocator[int, int]()

	for idx := range 10000 {
		nd := alloc.malloc()
		alloc.storage[nd] = node[int, int]{
			key:    idx,
			value:  -idx,
			parent: handle(idx),
			left:   handle(idx),
			right:  handle(idx),
			color:  color(idx%2 == 0),
		}
	}

	for idx := 1; idx <= 10000; idx += 2 {
		alloc.gaps = append(alloc.gaps, handle(idx)) // Makes no sense, only to test.
	}

	require.NoError(t, alloc.Hibernate())
	assert.PanicsWithValue(t, "cannot hibernate an already hibernated Allocator", func() { _ = alloc.Hibernate() })
	assert.Nil(t, alloc.storage)
	assert.Nil(t, alloc.gaps)
	assert.True(t, alloc.Hibernated())
	assert.Equal(t, 0, alloc.Size())
	assert.Equal(t, 10001, alloc.frozen.storageLen)
	assert.Equal(t, 5000, alloc.frozen.freeLen)
	assert.PanicsWithValue(t, "hibernated allocators cannot be used", func() { alloc.Used() })
	assert.PanicsWithValue(t, "hibernated allocators cannot be used", func() { alloc.malloc() })
	assert.PanicsWithValue(t, "hibernated allocators cannot be used", func() { alloc.free(1) })
	assert.PanicsWithValue(t, "cannot clone a hibernated allocator", func() { alloc.Clone() })

	require.NoError(t, alloc.Boot())
	assert.False(t, alloc.Hibernated())
	assert.Equal(t, newSentinel[int, int](), alloc.storage[sentinel])

	for nd := 1; nd <= 10000; nd++ {
		assert.Equal(t, nd-1, alloc.storage[nd].key)
		assert.Equal(t, 1-nd, alloc.storage[nd].value)
		assert.Equal(t, handle(nd-1), alloc.storage[nd].left)
		assert.Equal(t, handle(nd-1), alloc.storage[nd].right)
		assert.Equal(t, handle(nd-1), alloc.storage[nd].parent)
		assert.Equal(t, color((nd-1)%2 == 0), alloc.storage[nd].color)
	}

	assert.Len(t, alloc.gaps, 5000)
	assert.True(t, slices.IsSorted(alloc.gaps))
	assert.Equal(t, handle(1), alloc.gaps[0])
	assert.Equal(t, handle(9999), alloc.gaps[4999])
}

func TestAllocatorHibernateBootEmpty(t *testing.T) {
	t.Parallel()

	alloc := NewAllocator[string, string]()
	require.NoError(t, alloc.Hibernate())
	require.NoError(t, alloc.Boot())
	require.NoError(t, alloc.Boot())
	assert.NotNil(t, alloc.gaps)
	assert.Equal(t, 1, alloc.Size())
	assert.Equal(t, 1, alloc.Used())
}

func TestAllocatorHibernateBootThreshold(t *testing.T) {
	t.Parallel()

	alloc := NewAllocator[int, int]()
	alloc.malloc()
	alloc.HibernationThreshold = 3

	require.NoError(t, alloc.Hibernate())
	assert.False(t, alloc.Hibernated())

	alloc.malloc()
	require.NoError(t, alloc.Hibernate())
	assert.True(t, alloc.Hibernated())
	assert.Equal(t, 0, alloc.frozen.freeLen)
	assert.Equal(t, 3, alloc.frozen.storageLen)

	require.NoError(t, alloc.Boot())
	assert.Equal(t, 3, alloc.Size())
	assert.Equal(t, 3, alloc.Used())
	assert.NotNil(t, alloc.gaps)
}

func TestAllocatorBootCorrupt(t *testing.T) {
	t.Parallel()

	alloc := NewAllocator[int, int]()
	for range 100 {
		alloc.malloc()
	}

	require.NoError(t, alloc.Hibernate())

	alloc.frozen.columns[columnLeft] = []byte{1, 0xff}
	require.Error(t, alloc.Boot())
	assert.True(t, alloc.Hibernated())
}

func BenchmarkInsert(b *testing.B) {
	keys := rand.New(rand.NewPCG(3, 4)).Perm(100000)

	for b.Loop() {
		tree := New[int, int]()
		for _, key := range keys {
			_ = tree.Insert(key, key)
		}
	}
}

func BenchmarkGet(b *testing.B) {
	tree := New[int, int]()
	keys := rand.New(rand.NewPCG(5, 6)).Perm(100000)

	for _, key := range keys {
		_ = tree.Insert(key, key)
	}

	idx := 0

	for b.Loop() {
		tree.Get(keys[idx%len(keys)])
		idx++
	}
}

func BenchmarkInsertRemove(b *testing.B) {
	tree := New[int, int]()
	rng := rand.New(rand.NewPCG(8, 9))

	for b.Loop() {
		key := rng.IntN(1 << 16)
		if !tree.Remove(key) {
			_ = tree.Insert(key, key)
		}
	}
}
