package rbtree

// Remove deletes key and reports whether it was present.
func (tree *Tree[K, V]) Remove(key K) bool {
	found := tree.lookup(key)
	if found == sentinel {
		return false
	}

	tree.deleteNode(found)

	return true
}

// RemoveMin deletes and returns the entry with the smallest key.
func (tree *Tree[K, V]) RemoveMin() (Entry[K, V], error) {
	return tree.removeEdge(leftSide)
}

// RemoveMax deletes and returns the entry with the largest key.
func (tree *Tree[K, V]) RemoveMax() (Entry[K, V], error) {
	return tree.removeEdge(rightSide)
}

func (tree *Tree[K, V]) removeEdge(s side) (Entry[K, V], error) {
	if tree.root == sentinel {
		return Entry[K, V]{}, ErrEmptyTree
	}

	return tree.deleteNode(extreme(tree.root, s, tree.nodes())), nil
}

// deleteNode unlinks target and returns the pair it held.
//
// A node with two children is not unlinked itself: its in-order successor
// is, after the successor's pair has been copied into target.
func (tree *Tree[K, V]) deleteNode(target handle) Entry[K, V] {
	nodes := tree.nodes()
	removed := Entry[K, V]{Key: nodes[target].key, Value: nodes[target].value}

	spliced := target
	if nodes[target].left != sentinel && nodes[target].right != sentinel {
		spliced = extreme(nodes[target].right, leftSide, nodes)
	}

	// spliced has at most one child.
	orphan := nodes[spliced].left
	if orphan == sentinel {
		orphan = nodes[spliced].right
	}

	parent := nodes[spliced].parent
	orphanSide := leftSide

	if parent == noParent {
		tree.root = orphan
	} else {
		orphanSide = sideOf(spliced, nodes)
		nodes[parent].setChild(orphanSide, orphan)
	}

	if orphan != sentinel {
		nodes[orphan].parent = parent
	}

	if spliced != target {
		nodes[target].key = nodes[spliced].key
		nodes[target].value = nodes[spliced].value
	}

	if nodes[spliced].color == black {
		tree.deleteFixup(orphan, parent, orphanSide)
	}

	tree.alloc.free(spliced)

	tree.lastFound = sentinel
	tree.count.Add(-1)
	tree.stats.removes.Add(1)

	tree.notifyRemove(removed.Key, removed.Value)

	return removed
}

// deleteFixup repairs the black-height deficit left on the path through cur,
// which hangs on curSide of parent. cur may be the sentinel; the sentinel is
// never written, which is why parent and curSide are passed explicitly.
func (tree *Tree[K, V]) deleteFixup(cur, parent handle, curSide side) {
	nodes := tree.nodes()

	for cur != tree.root && nodes[cur].color == black {
		sibling := nodes[parent].child(!curSide)
		// The deficit side is one black short, so the sibling subtree has
		// black-height of at least one.
		doAssert(sibling != sentinel)

		if nodes[sibling].color == red {
			nodes[sibling].color = black
			nodes[parent].color = red
			tree.rotate(parent, curSide)
			sibling = nodes[parent].child(!curSide)
		}

		near := nodes[sibling].child(curSide)
		far := nodes[sibling].child(!curSide)

		if nodes[near].color == black && nodes[far].color == black {
			nodes[sibling].color = red
			cur = parent
			parent = nodes[cur].parent

			if parent != noParent {
				curSide = sideOf(cur, nodes)
			}

			continue
		}

		if nodes[far].color == black {
			nodes[near].color = black
			nodes[sibling].color = red
			tree.rotate(sibling, !curSide)
			sibling = nodes[parent].child(!curSide)
			far = nodes[sibling].child(!curSide)
		}

		nodes[sibling].color = nodes[parent].color
		nodes[parent].color = black
		nodes[far].color = black
		tree.rotate(parent, curSide)

		cur = tree.root
	}

	if cur != sentinel {
		nodes[cur].color = black
	}
}
