package rbtree

import (
	"fmt"
	"slices"
)

// Observer receives change notifications from a Tree. Callbacks run
// synchronously on the mutating goroutine, after the tree has been updated.
// They must not mutate the tree that is notifying them.
type Observer[K, V any] interface {
	OnInsert(key K, value V)
	OnRemove(key K, value V)
	OnClear()
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs[K, V any] struct {
	Insert func(key K, value V)
	Remove func(key K, value V)
	Clear  func()
}

// OnInsert implements Observer.
func (funcs ObserverFuncs[K, V]) OnInsert(key K, value V) {
	if funcs.Insert != nil {
		funcs.Insert(key, value)
	}
}

// OnRemove implements Observer.
func (funcs ObserverFuncs[K, V]) OnRemove(key K, value V) {
	if funcs.Remove != nil {
		funcs.Remove(key, value)
	}
}

// OnClear implements Observer.
func (funcs ObserverFuncs[K, V]) OnClear() {
	if funcs.Clear != nil {
		funcs.Clear()
	}
}

type subscription[K, V any] struct {
	id  uint64
	obs Observer[K, V]
}

// Subscribe attaches obs and returns a function that detaches it. Calling
// the returned function more than once is harmless.
func (tree *Tree[K, V]) Subscribe(obs Observer[K, V]) func() {
	if obs == nil {
		return func() {}
	}

	tree.nextSubID++
	id := tree.nextSubID

	tree.observers = append(slices.Clip(tree.observers), subscription[K, V]{id: id, obs: obs})

	return func() {
		idx := slices.IndexFunc(tree.observers, func(sub subscription[K, V]) bool { return sub.id == id })
		if idx < 0 {
			return
		}

		// Copy so that a dispatch loop ranging over the old slice is unaffected.
		tree.observers = slices.Delete(slices.Clone(tree.observers), idx, idx+1)
	}
}

func (tree *Tree[K, V]) notifyInsert(key K, value V) {
	for _, sub := range tree.observers {
		tree.dispatch("insert", func() { sub.obs.OnInsert(key, value) })
	}
}

func (tree *Tree[K, V]) notifyRemove(key K, value V) {
	for _, sub := range tree.observers {
		tree.dispatch("remove", func() { sub.obs.OnRemove(key, value) })
	}
}

func (tree *Tree[K, V]) notifyClear() {
	for _, sub := range tree.observers {
		tree.dispatch("clear", sub.obs.OnClear)
	}
}

// dispatch runs one callback and contains its panic. The tree is already
// consistent when observers run, so a failing observer only loses its own
// notification.
func (tree *Tree[K, V]) dispatch(event string, callback func()) {
	defer func() {
		if rec := recover(); rec != nil {
			tree.logger.Error("rbtree: observer panicked",
				"tree", tree.id,
				"event", event,
				"panic", fmt.Sprint(rec),
			)
		}
	}()

	callback()
}
