package rbtree

import (
	"fmt"
	"iter"
)

// All returns an iterator over the entries in ascending key order. Each
// call starts a fresh pass. The tree must not be mutated while a pass is in
// progress.
func (tree *Tree[K, V]) All() iter.Seq2[K, V] {
	return tree.walk(rightSide)
}

// Backward returns an iterator over the entries in descending key order.
func (tree *Tree[K, V]) Backward() iter.Seq2[K, V] {
	return tree.walk(leftSide)
}

// walk follows in-order neighbour links in direction dir starting from the
// opposite extreme. It needs no stack: parent links lead back up.
func (tree *Tree[K, V]) walk(dir side) iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		nodes := tree.nodes()

		for cur := extreme(tree.root, !dir, nodes); cur != sentinel; cur = step(cur, dir, nodes) {
			if !yield(nodes[cur].key, nodes[cur].value) {
				return
			}
		}
	}
}

// Keys returns every key in ascending order.
func (tree *Tree[K, V]) Keys() []K {
	keys := make([]K, 0, tree.Len())
	for key := range tree.All() {
		keys = append(keys, key)
	}

	return keys
}

// Values returns every value in ascending key order.
func (tree *Tree[K, V]) Values() []V {
	values := make([]V, 0, tree.Len())
	for _, value := range tree.All() {
		values = append(values, value)
	}

	return values
}

// Entries returns every entry in ascending key order.
func (tree *Tree[K, V]) Entries() []Entry[K, V] {
	entries := make([]Entry[K, V], 0, tree.Len())
	for key, value := range tree.All() {
		entries = append(entries, Entry[K, V]{Key: key, Value: value})
	}

	return entries
}

// CopyTo writes the entries in ascending order into dst starting at index.
func (tree *Tree[K, V]) CopyTo(dst []Entry[K, V], index int) error {
	if index < 0 {
		return fmt.Errorf("%w: negative index %d", ErrInvalidArgument, index)
	}

	if len(dst)-index < tree.Len() {
		return fmt.Errorf("%w: destination has %d slots from index %d, need %d",
			ErrInvalidArgument, max(len(dst)-index, 0), index, tree.Len())
	}

	for key, value := range tree.All() {
		dst[index] = Entry[K, V]{Key: key, Value: value}
		index++
	}

	return nil
}
