package rbtree

import "fmt"

// Verify checks every structural invariant of the tree and returns the first
// violation wrapped in ErrCorrupted. It is O(n) and meant for tests and
// diagnostics.
func (tree *Tree[K, V]) Verify() error {
	nodes := tree.nodes()

	if nodes[sentinel].color != black {
		return fmt.Errorf("%w: sentinel is %s", ErrCorrupted, nodes[sentinel].color)
	}

	if tree.root == sentinel {
		if tree.Len() != 0 {
			return fmt.Errorf("%w: empty tree reports %d entries", ErrCorrupted, tree.Len())
		}

		return nil
	}

	if nodes[tree.root].color != black {
		return fmt.Errorf("%w: root is red", ErrCorrupted)
	}

	if nodes[tree.root].parent != noParent {
		return fmt.Errorf("%w: root has parent #%d", ErrCorrupted, nodes[tree.root].parent)
	}

	size, _, err := tree.verifySubtree(tree.root, nil, nil)
	if err != nil {
		return err
	}

	if size != tree.Len() {
		return fmt.Errorf("%w: counted %d nodes, size counter says %d", ErrCorrupted, size, tree.Len())
	}

	return nil
}

// verifySubtree returns the node count and black-height of the subtree at h.
// lower and upper are exclusive key bounds; nil means unbounded.
func (tree *Tree[K, V]) verifySubtree(h handle, lower, upper *K) (int, int, error) {
	if h == sentinel {
		return 0, 1, nil
	}

	nodes := tree.nodes()
	nd := &nodes[h]

	if lower != nil && tree.compare(nd.key, *lower) <= 0 {
		return 0, 0, fmt.Errorf("%w: key %v at #%d is not above %v", ErrCorrupted, nd.key, h, *lower)
	}

	if upper != nil && tree.compare(nd.key, *upper) >= 0 {
		return 0, 0, fmt.Errorf("%w: key %v at #%d is not below %v", ErrCorrupted, nd.key, h, *upper)
	}

	for _, s := range [...]side{leftSide, rightSide} {
		child := nd.child(s)
		if child == sentinel {
			continue
		}

		if nodes[child].parent != h {
			return 0, 0, fmt.Errorf("%w: #%d does not point back to parent #%d", ErrCorrupted, child, h)
		}

		if nd.color == red && nodes[child].color == red {
			return 0, 0, fmt.Errorf("%w: red #%d has red child #%d", ErrCorrupted, h, child)
		}
	}

	leftSize, leftHeight, err := tree.verifySubtree(nd.left, lower, &nd.key)
	if err != nil {
		return 0, 0, err
	}

	rightSize, rightHeight, err := tree.verifySubtree(nd.right, &nd.key, upper)
	if err != nil {
		return 0, 0, err
	}

	if leftHeight != rightHeight {
		return 0, 0, fmt.Errorf("%w: black-height mismatch at #%d: %d left, %d right",
			ErrCorrupted, h, leftHeight, rightHeight)
	}

	if nd.color == black {
		leftHeight++
	}

	return leftSize + rightSize + 1, leftHeight, nil
}

// Height returns the number of nodes on the longest path from the root to a
// leaf. An empty tree has height 0.
func (tree *Tree[K, V]) Height() int {
	return tree.height(tree.root, tree.nodes())
}

func (tree *Tree[K, V]) height(h handle, nodes []node[K, V]) int {
	if h == sentinel {
		return 0
	}

	return 1 + max(tree.height(nodes[h].left, nodes), tree.height(nodes[h].right, nodes))
}
