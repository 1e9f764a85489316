package observability_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Sumatoshi-tech/ordmap/pkg/observability"
	"github.com/Sumatoshi-tech/ordmap/pkg/rbtree"
)

func setupTreeMetrics(t *testing.T) (*rbtree.Tree[int, string], *observability.TreeMetrics[int, string], *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	tree := rbtree.New[int, string]()

	tm, err := observability.NewTreeMetrics(mp.Meter("test"), "primary", tree)
	require.NoError(t, err)

	return tree, tm, reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics

	require.NoError(t, reader.Collect(context.Background(), &rm))

	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for idx := range rm.ScopeMetrics {
		for midx := range rm.ScopeMetrics[idx].Metrics {
			if rm.ScopeMetrics[idx].Metrics[midx].Name == name {
				return &rm.ScopeMetrics[idx].Metrics[midx]
			}
		}
	}

	return nil
}

func sumValue(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()

	found := findMetric(rm, name)
	require.NotNil(t, found, "%s metric not found", name)

	sum, ok := found.Data.(metricdata.Sum[int64])
	require.True(t, ok, "%s is not an int64 sum", name)
	require.Len(t, sum.DataPoints, 1)

	tree, ok := sum.DataPoints[0].Attributes.Value("tree")
	require.True(t, ok)
	assert.Equal(t, "primary", tree.AsString())

	return sum.DataPoints[0].Value
}

func gaugeValue(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()

	found := findMetric(rm, name)
	require.NotNil(t, found, "%s metric not found", name)

	gauge, ok := found.Data.(metricdata.Gauge[int64])
	require.True(t, ok, "%s is not an int64 gauge", name)
	require.Len(t, gauge.DataPoints, 1)

	return gauge.DataPoints[0].Value
}

func TestTreeMetrics_CountsChanges(t *testing.T) {
	t.Parallel()

	tree, _, reader := setupTreeMetrics(t)

	for key := range 5 {
		require.NoError(t, tree.Insert(key, "v"))
	}

	require.Error(t, tree.Insert(0, "dup"))
	assert.True(t, tree.Remove(3))

	_, err := tree.RemoveMin()
	require.NoError(t, err)

	rm := collectMetrics(t, reader)

	assert.Equal(t, int64(5), sumValue(t, rm, "ordmap.tree.inserts"))
	assert.Equal(t, int64(2), sumValue(t, rm, "ordmap.tree.removes"))
	assert.Equal(t, int64(3), gaugeValue(t, rm, "ordmap.tree.size"))
	assert.Equal(t, tree.Stats().Rotations, sumValue(t, rm, "ordmap.tree.rotations"))
}

func TestTreeMetrics_Lookups(t *testing.T) {
	t.Parallel()

	tree, _, reader := setupTreeMetrics(t)
	require.NoError(t, tree.Insert(1, "one"))

	tree.Get(1)
	tree.Get(2)

	rm := collectMetrics(t, reader)

	assert.Equal(t, int64(2), sumValue(t, rm, "ordmap.tree.lookups"))
	assert.Equal(t, int64(1), sumValue(t, rm, "ordmap.tree.cache_hits"))
}

func TestTreeMetrics_Clear(t *testing.T) {
	t.Parallel()

	tree, _, reader := setupTreeMetrics(t)
	require.NoError(t, tree.Insert(1, "one"))
	tree.Clear()
	tree.Clear()

	rm := collectMetrics(t, reader)

	assert.Equal(t, int64(2), sumValue(t, rm, "ordmap.tree.clears"))
	assert.Equal(t, int64(0), gaugeValue(t, rm, "ordmap.tree.size"))
}

func TestTreeMetrics_Close(t *testing.T) {
	t.Parallel()

	tree, tm, reader := setupTreeMetrics(t)
	require.NoError(t, tree.Insert(1, "one"))
	require.NoError(t, tm.Close())
	require.NoError(t, tree.Insert(2, "two"))

	rm := collectMetrics(t, reader)

	assert.Equal(t, int64(1), sumValue(t, rm, "ordmap.tree.inserts"))
	assert.Nil(t, findMetric(rm, "ordmap.tree.size"))
}
