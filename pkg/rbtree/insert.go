package rbtree

import "fmt"

// Insert adds key with value. An existing key is never overwritten: the call
// fails with ErrDuplicateKey and the tree is unchanged. Use Set to replace
// the value of a present key.
func (tree *Tree[K, V]) Insert(key K, value V) error {
	err := tree.checkArgs(key, value)
	if err != nil {
		return err
	}

	nodes := tree.nodes()
	parent := noParent
	cur := tree.root
	comp := 0

	for cur != sentinel {
		parent = cur
		comp = tree.compare(key, nodes[cur].key)

		switch {
		case comp == 0:
			return fmt.Errorf("%w: %v", ErrDuplicateKey, key)
		case comp < 0:
			cur = nodes[cur].left
		default:
			cur = nodes[cur].right
		}
	}

	fresh := tree.alloc.malloc()
	nodes = tree.nodes()
	nodes[fresh] = node[K, V]{
		key:    key,
		value:  value,
		parent: parent,
		left:   sentinel,
		right:  sentinel,
		color:  red,
	}

	switch {
	case parent == noParent:
		tree.root = fresh
	case comp < 0:
		nodes[parent].left = fresh
	default:
		nodes[parent].right = fresh
	}

	tree.insertFixup(fresh)

	tree.lastFound = fresh
	tree.count.Add(1)
	tree.stats.inserts.Add(1)

	tree.notifyInsert(key, value)

	return nil
}

// insertFixup restores the red-black properties after cur was attached as a
// red leaf. Only a red-red edge between cur and its parent can be broken.
func (tree *Tree[K, V]) insertFixup(cur handle) {
	nodes := tree.nodes()

	// Case A (cur is the root) and case B (black parent) end the loop.
	for cur != tree.root && nodes[nodes[cur].parent].color == red {
		parent := nodes[cur].parent
		// A red parent is never the root, so the grandparent exists.
		grandparent := nodes[parent].parent
		parentSide := sideOf(parent, nodes)
		uncle := nodes[grandparent].child(!parentSide)

		// Case C: red uncle. Push the red up to the grandparent and retry there.
		if nodes[uncle].color == red {
			nodes[parent].color = black
			nodes[uncle].color = black
			nodes[grandparent].color = red
			cur = grandparent

			continue
		}

		// Case D: cur is the inner grandchild. Rotate it to the outside.
		if sideOf(cur, nodes) != parentSide {
			cur = parent
			tree.rotate(cur, parentSide)
			parent = nodes[cur].parent
		}

		// Case E: cur is the outer grandchild.
		nodes[parent].color = black
		nodes[grandparent].color = red
		tree.rotate(grandparent, !parentSide)
	}

	nodes[tree.root].color = black
}
