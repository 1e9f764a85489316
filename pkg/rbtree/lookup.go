package rbtree

import "fmt"

// lookup returns the node holding key, or sentinel. The last-found cache is
// consulted first so read-modify-write sequences on one key cost a single
// comparison.
func (tree *Tree[K, V]) lookup(key K) handle {
	tree.stats.lookups.Add(1)

	nodes := tree.nodes()

	if tree.lastFound != sentinel && tree.compare(key, nodes[tree.lastFound].key) == 0 {
		tree.stats.cacheHits.Add(1)

		return tree.lastFound
	}

	cur := tree.root
	for cur != sentinel {
		comp := tree.compare(key, nodes[cur].key)

		switch {
		case comp == 0:
			tree.lastFound = cur

			return cur
		case comp < 0:
			cur = nodes[cur].left
		default:
			cur = nodes[cur].right
		}
	}

	return sentinel
}

// Get returns the value stored under key. The boolean is false when the key
// is absent; a miss is not an error.
func (tree *Tree[K, V]) Get(key K) (V, bool) {
	found := tree.lookup(key)
	if found == sentinel {
		var zero V

		return zero, false
	}

	return tree.nodes()[found].value, true
}

// ContainsKey reports whether key is present.
func (tree *Tree[K, V]) ContainsKey(key K) bool {
	return tree.lookup(key) != sentinel
}

// Set replaces the value stored under an existing key. It never inserts:
// an absent key yields ErrNotFound. Observers are not notified.
func (tree *Tree[K, V]) Set(key K, value V) error {
	err := tree.checkArgs(key, value)
	if err != nil {
		return err
	}

	found := tree.lookup(key)
	if found == sentinel {
		return fmt.Errorf("%w: %v", ErrNotFound, key)
	}

	tree.nodes()[found].value = value

	return nil
}

// ContainsValue reports whether any entry's value equals value under eq.
// It scans the whole tree.
func (tree *Tree[K, V]) ContainsValue(value V, eq func(a, b V) bool) bool {
	for _, val := range tree.All() {
		if eq(val, value) {
			return true
		}
	}

	return false
}

// edge returns the leftmost (leftSide) or rightmost (rightSide) node and
// caches it as the last found node.
func (tree *Tree[K, V]) edge(s side) (handle, error) {
	if tree.root == sentinel {
		return sentinel, ErrEmptyTree
	}

	found := extreme(tree.root, s, tree.nodes())
	tree.lastFound = found

	return found, nil
}

func (tree *Tree[K, V]) entryAt(h handle) Entry[K, V] {
	nd := &tree.nodes()[h]

	return Entry[K, V]{Key: nd.key, Value: nd.value}
}

// Min returns the entry with the smallest key.
func (tree *Tree[K, V]) Min() (Entry[K, V], error) {
	found, err := tree.edge(leftSide)
	if err != nil {
		return Entry[K, V]{}, err
	}

	return tree.entryAt(found), nil
}

// Max returns the entry with the largest key.
func (tree *Tree[K, V]) Max() (Entry[K, V], error) {
	found, err := tree.edge(rightSide)
	if err != nil {
		return Entry[K, V]{}, err
	}

	return tree.entryAt(found), nil
}

// MinKey returns the smallest key.
func (tree *Tree[K, V]) MinKey() (K, error) {
	entry, err := tree.Min()

	return entry.Key, err
}

// MaxKey returns the largest key.
func (tree *Tree[K, V]) MaxKey() (K, error) {
	entry, err := tree.Max()

	return entry.Key, err
}

// MinValue returns the value stored under the smallest key.
func (tree *Tree[K, V]) MinValue() (V, error) {
	entry, err := tree.Min()

	return entry.Value, err
}

// MaxValue returns the value stored under the largest key.
func (tree *Tree[K, V]) MaxValue() (V, error) {
	entry, err := tree.Max()

	return entry.Value, err
}
