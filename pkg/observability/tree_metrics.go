package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Sumatoshi-tech/ordmap/pkg/rbtree"
)

const (
	metricInserts   = "ordmap.tree.inserts"
	metricRemoves   = "ordmap.tree.removes"
	metricClears    = "ordmap.tree.clears"
	metricSize      = "ordmap.tree.size"
	metricLookups   = "ordmap.tree.lookups"
	metricCacheHits = "ordmap.tree.cache_hits"
	metricRotations = "ordmap.tree.rotations"

	attrTree = "tree"
)

// TreeMetrics exports the activity of one tree as OTel instruments. Change
// counters are driven by observer callbacks; size, lookups, cache hits and
// rotations are read from the tree's Stats at collection time.
type TreeMetrics[K, V any] struct {
	inserts metric.Int64Counter
	removes metric.Int64Counter
	clears  metric.Int64Counter

	attrs        metric.MeasurementOption
	registration metric.Registration
	unsubscribe  func()
}

// NewTreeMetrics creates the instruments on meter and subscribes to tree.
// name labels every data point. Call Close to detach.
func NewTreeMetrics[K, V any](meter metric.Meter, name string, tree *rbtree.Tree[K, V]) (*TreeMetrics[K, V], error) {
	set := &instrumentSet{meter: meter}

	tm := &TreeMetrics[K, V]{
		inserts: set.counter(metricInserts, "Entries inserted", "{entry}"),
		removes: set.counter(metricRemoves, "Entries removed", "{entry}"),
		clears:  set.counter(metricClears, "Clear calls", "{call}"),
		attrs:   metric.WithAttributes(attribute.String(attrTree, name)),
	}

	size := set.gauge(metricSize, "Entries currently held", "{entry}")
	lookups := set.cumulative(metricLookups, "Key lookups", "{lookup}")
	cacheHits := set.cumulative(metricCacheHits, "Lookups answered by the last-found cache", "{lookup}")
	rotations := set.cumulative(metricRotations, "Rebalancing rotations", "{rotation}")

	err := set.err()
	if err != nil {
		return nil, err
	}

	reg, err := meter.RegisterCallback(func(_ context.Context, obs metric.Observer) error {
		stats := tree.Stats()

		obs.ObserveInt64(size, int64(stats.Len), tm.attrs)
		obs.ObserveInt64(lookups, stats.Lookups, tm.attrs)
		obs.ObserveInt64(cacheHits, stats.CacheHits, tm.attrs)
		obs.ObserveInt64(rotations, stats.Rotations, tm.attrs)

		return nil
	}, size, lookups, cacheHits, rotations)
	if err != nil {
		return nil, fmt.Errorf("register tree callback: %w", err)
	}

	tm.registration = reg
	tm.unsubscribe = tree.Subscribe(tm)

	return tm, nil
}

// OnInsert implements rbtree.Observer.
func (tm *TreeMetrics[K, V]) OnInsert(K, V) {
	tm.inserts.Add(context.Background(), 1, tm.attrs)
}

// OnRemove implements rbtree.Observer.
func (tm *TreeMetrics[K, V]) OnRemove(K, V) {
	tm.removes.Add(context.Background(), 1, tm.attrs)
}

// OnClear implements rbtree.Observer.
func (tm *TreeMetrics[K, V]) OnClear() {
	tm.clears.Add(context.Background(), 1, tm.attrs)
}

// Close unsubscribes from the tree and unregisters the collection callback.
func (tm *TreeMetrics[K, V]) Close() error {
	tm.unsubscribe()

	err := tm.registration.Unregister()
	if err != nil {
		return fmt.Errorf("unregister tree callback: %w", err)
	}

	return nil
}
