package rbtree

// rotate turns the subtree rooted at pivot towards dir: the child on the
// opposite side takes pivot's place and pivot becomes that child's dir child.
//
//	rotate(x, leftSide):      x              y
//	                         / \            / \
//	                        a   y    =>    x   c
//	                           / \        / \
//	                          b   c      a   b
//
// Keys and values never move; only links change, so handles held by the
// last-found cache remain valid.
func (tree *Tree[K, V]) rotate(pivot handle, dir side) {
	nodes := tree.nodes()

	up := nodes[pivot].child(!dir)
	doAssert(up != sentinel)

	inner := nodes[up].child(dir)
	nodes[pivot].setChild(!dir, inner)

	if inner != sentinel {
		nodes[inner].parent = pivot
	}

	parent := nodes[pivot].parent
	nodes[up].parent = parent

	if parent == noParent {
		tree.root = up
	} else {
		nodes[parent].setChild(sideOf(pivot, nodes), up)
	}

	nodes[up].setChild(dir, pivot)
	nodes[pivot].parent = up

	tree.stats.rotations.Add(1)
}
