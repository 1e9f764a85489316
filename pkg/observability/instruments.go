package observability

import (
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// instrumentSet creates instruments on one meter and collects every creation
// error, so callers check once after building the whole set.
type instrumentSet struct {
	meter metric.Meter
	errs  []error
}

func (set *instrumentSet) counter(name, desc, unit string) metric.Int64Counter {
	inst, err := set.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))

	return keep(set, name, inst, err)
}

func (set *instrumentSet) gauge(name, desc, unit string) metric.Int64ObservableGauge {
	inst, err := set.meter.Int64ObservableGauge(name, metric.WithDescription(desc), metric.WithUnit(unit))

	return keep(set, name, inst, err)
}

func (set *instrumentSet) cumulative(name, desc, unit string) metric.Int64ObservableCounter {
	inst, err := set.meter.Int64ObservableCounter(name, metric.WithDescription(desc), metric.WithUnit(unit))

	return keep(set, name, inst, err)
}

func (set *instrumentSet) err() error {
	return errors.Join(set.errs...)
}

func keep[T any](set *instrumentSet, name string, inst T, err error) T {
	if err != nil {
		set.errs = append(set.errs, fmt.Errorf("instrument %s: %w", name, err))
	}

	return inst
}
