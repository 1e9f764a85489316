package rbtree

import "math"

// handle addresses a node inside an Allocator.
type handle = uint32

const (
	// sentinel is the shared black leaf. Every missing child points here and
	// the slot is never written after the allocator is created.
	sentinel handle = 0

	// noParent marks the root's parent link. It is distinct from sentinel so
	// that an upward walk can never mistake a leaf for the top of the tree.
	noParent handle = math.MaxUint32
)

type color bool

const (
	red   color = false
	black color = true
)

func (c color) String() string {
	if c == black {
		return "black"
	}

	return "red"
}

// side selects a child link. Rotations and both fixups are written once
// against a side and mirrored by negating it.
type side bool

const (
	leftSide  side = true
	rightSide side = false
)

type node[K, V any] struct {
	key                 K
	value               V
	parent, left, right handle
	color               color
}

func (nd *node[K, V]) child(s side) handle {
	if s == leftSide {
		return nd.left
	}

	return nd.right
}

func (nd *node[K, V]) setChild(s side, h handle) {
	if s == leftSide {
		nd.left = h
	} else {
		nd.right = h
	}
}

// sideOf reports which side of its parent h hangs on.
//
// REQUIRES: nodes[h].parent != noParent.
func sideOf[K, V any](h handle, nodes []node[K, V]) side {
	parent := nodes[h].parent
	doAssert(parent != noParent)

	if nodes[parent].left == h {
		return leftSide
	}

	return rightSide
}

// extreme descends from h as far as possible towards s.
func extreme[K, V any](h handle, s side, nodes []node[K, V]) handle {
	if h == sentinel {
		return sentinel
	}

	for nodes[h].child(s) != sentinel {
		h = nodes[h].child(s)
	}

	return h
}

// step returns the in-order neighbour of h in direction s: the successor for
// rightSide, the predecessor for leftSide. Returns sentinel past either end.
func step[K, V any](h handle, s side, nodes []node[K, V]) handle {
	if nodes[h].child(s) != sentinel {
		return extreme(nodes[h].child(s), !s, nodes)
	}

	for {
		parent := nodes[h].parent
		if parent == noParent {
			return sentinel
		}

		if nodes[parent].child(!s) == h {
			return parent
		}

		h = parent
	}
}

func doAssert(condition bool) {
	if !condition {
		panic("rbtree internal assertion failed")
	}
}
