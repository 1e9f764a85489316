package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/ordmap/pkg/config"
	"github.com/Sumatoshi-tech/ordmap/pkg/rbtree"
)

// ErrOracleMismatch is returned when the tree disagrees with the map oracle.
var ErrOracleMismatch = errors.New("tree disagrees with oracle")

// plotSamples is the number of height samples taken over a run.
const plotSamples = 200

// Shares of the remove budget taken by RemoveMin and RemoveMax; the rest
// removes random keys.
const (
	removeMinShare = 0.1
	removeMaxShare = 0.1
)

// heightSample is one point of the height-versus-size chart.
type heightSample struct {
	Op     int     `json:"op"     yaml:"op"`
	Len    int     `json:"len"    yaml:"len"`
	Height int     `json:"height" yaml:"height"`
	Bound  float64 `json:"bound"  yaml:"bound"`
}

// workloadResult summarises a bench run.
type workloadResult struct {
	Ops           int            `json:"ops"            yaml:"ops"`
	Seed          uint64         `json:"seed"           yaml:"seed"`
	Duration      time.Duration  `json:"duration_ns"    yaml:"duration_ns"`
	Stats         rbtree.Stats   `json:"stats"          yaml:"stats"`
	FinalHeight   int            `json:"final_height"   yaml:"final_height"`
	Verifications int            `json:"verifications"  yaml:"verifications"`
	Hibernation   *hibernateStat `json:"hibernation"    yaml:"hibernation"`
	Samples       []heightSample `json:"samples"        yaml:"-"`
}

type hibernateStat struct {
	Slots    int           `json:"slots"      yaml:"slots"`
	Freeze   time.Duration `json:"freeze_ns"  yaml:"freeze_ns"`
	Thaw     time.Duration `json:"thaw_ns"    yaml:"thaw_ns"`
	Skipped  bool          `json:"skipped"    yaml:"skipped"`
	Verified bool          `json:"verified"   yaml:"verified"`
}

// workload replays a seeded random operation mix against a tree and a plain
// map, failing on the first disagreement.
type workload struct {
	cfg    config.WorkloadConfig
	tree   *rbtree.Tree[int, int]
	oracle map[int]int
	rng    *rand.Rand
	tracer trace.Tracer
	logger *slog.Logger
}

func newWorkload(cfg config.WorkloadConfig, tree *rbtree.Tree[int, int], tracer trace.Tracer, logger *slog.Logger) *workload {
	return &workload{
		cfg:    cfg,
		tree:   tree,
		oracle: make(map[int]int, cfg.KeySpace),
		rng:    rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		tracer: tracer,
		logger: logger,
	}
}

func (wl *workload) run(ctx context.Context) (*workloadResult, error) {
	ctx, span := wl.tracer.Start(ctx, "ordmap.bench.run", trace.WithAttributes(
		attribute.Int("ops", wl.cfg.Ops),
		attribute.Int("key_space", wl.cfg.KeySpace),
		attribute.Int64("seed", int64(wl.cfg.Seed)), //nolint:gosec // seed is reported, not used for arithmetic
	))
	defer span.End()

	result := &workloadResult{Ops: wl.cfg.Ops, Seed: wl.cfg.Seed}
	sampleEvery := max(wl.cfg.Ops/plotSamples, 1)
	start := time.Now()

	for op := 1; op <= wl.cfg.Ops; op++ {
		err := wl.step(op)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "oracle mismatch")

			return nil, fmt.Errorf("op %d: %w", op, err)
		}

		if wl.cfg.VerifyEvery > 0 && op%wl.cfg.VerifyEvery == 0 {
			err = wl.verify(ctx, op)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "verification failed")

				return nil, err
			}

			result.Verifications++
		}

		if op%sampleEvery == 0 {
			result.Samples = append(result.Samples, wl.sample(op))
		}

		if op%1024 == 0 && ctx.Err() != nil {
			return nil, fmt.Errorf("bench interrupted: %w", ctx.Err())
		}
	}

	result.Duration = time.Since(start)

	err := wl.verify(ctx, wl.cfg.Ops)
	if err != nil {
		return nil, err
	}

	result.Verifications++
	result.Stats = wl.tree.Stats()
	result.FinalHeight = wl.tree.Height()

	span.SetAttributes(
		attribute.Int("final_len", result.Stats.Len),
		attribute.Int("final_height", result.FinalHeight),
		attribute.Int64("rotations", result.Stats.Rotations),
	)

	return result, nil
}

func (wl *workload) step(op int) error {
	roll := wl.rng.Float64()

	switch {
	case roll < wl.cfg.RemoveRatio:
		return wl.remove(roll / wl.cfg.RemoveRatio)
	case roll < wl.cfg.RemoveRatio+wl.cfg.LookupRatio:
		return wl.lookup()
	default:
		return wl.insert(op)
	}
}

func (wl *workload) insert(value int) error {
	key := wl.rng.IntN(wl.cfg.KeySpace)
	_, exists := wl.oracle[key]

	err := wl.tree.Insert(key, value)

	switch {
	case exists && !errors.Is(err, rbtree.ErrDuplicateKey):
		return fmt.Errorf("%w: insert of present key %d returned %v", ErrOracleMismatch, key, err)
	case !exists && err != nil:
		return fmt.Errorf("%w: insert of new key %d: %w", ErrOracleMismatch, key, err)
	case !exists:
		wl.oracle[key] = value
	}

	return nil
}

func (wl *workload) lookup() error {
	key := wl.rng.IntN(wl.cfg.KeySpace)
	want, wantOK := wl.oracle[key]

	got, ok := wl.tree.Get(key)
	if ok != wantOK || got != want {
		return fmt.Errorf("%w: get %d = (%d, %t), want (%d, %t)", ErrOracleMismatch, key, got, ok, want, wantOK)
	}

	return nil
}

// remove picks a removal flavour from share, a uniform value in [0, 1).
func (wl *workload) remove(share float64) error {
	switch {
	case share < removeMinShare:
		return wl.removeEdge(wl.tree.RemoveMin, func(a, b int) bool { return a < b })
	case share < removeMinShare+removeMaxShare:
		return wl.removeEdge(wl.tree.RemoveMax, func(a, b int) bool { return a > b })
	}

	key := wl.rng.IntN(wl.cfg.KeySpace)
	_, exists := wl.oracle[key]

	if wl.tree.Remove(key) != exists {
		return fmt.Errorf("%w: remove %d reported %t", ErrOracleMismatch, key, !exists)
	}

	delete(wl.oracle, key)

	return nil
}

func (wl *workload) removeEdge(removeFn func() (rbtree.Entry[int, int], error), better func(a, b int) bool) error {
	entry, err := removeFn()
	if len(wl.oracle) == 0 {
		if !errors.Is(err, rbtree.ErrEmptyTree) {
			return fmt.Errorf("%w: remove on empty tree returned %v", ErrOracleMismatch, err)
		}

		return nil
	}

	if err != nil {
		return fmt.Errorf("%w: %w", ErrOracleMismatch, err)
	}

	for key := range wl.oracle {
		if better(key, entry.Key) {
			return fmt.Errorf("%w: removed %d but %d is more extreme", ErrOracleMismatch, entry.Key, key)
		}
	}

	if wl.oracle[entry.Key] != entry.Value {
		return fmt.Errorf("%w: removed %d with value %d, want %d", ErrOracleMismatch, entry.Key, entry.Value, wl.oracle[entry.Key])
	}

	delete(wl.oracle, entry.Key)

	return nil
}

func (wl *workload) verify(ctx context.Context, op int) error {
	_, span := wl.tracer.Start(ctx, "ordmap.bench.verify", trace.WithAttributes(attribute.Int("op", op)))
	defer span.End()

	err := wl.tree.Verify()
	if err != nil {
		span.RecordError(err)

		return fmt.Errorf("verify at op %d: %w", op, err)
	}

	if wl.tree.Len() != len(wl.oracle) {
		return fmt.Errorf("%w: len %d, oracle holds %d", ErrOracleMismatch, wl.tree.Len(), len(wl.oracle))
	}

	wl.logger.DebugContext(ctx, "tree verified", "op", op, "len", wl.tree.Len())

	return nil
}

func (wl *workload) sample(op int) heightSample {
	size := wl.tree.Len()

	return heightSample{
		Op:     op,
		Len:    size,
		Height: wl.tree.Height(),
		Bound:  2 * math.Log2(float64(size+1)),
	}
}

// hibernate freezes and thaws the arena once and checks the tree survived.
func (wl *workload) hibernate(ctx context.Context) (*hibernateStat, error) {
	_, span := wl.tracer.Start(ctx, "ordmap.bench.hibernate")
	defer span.End()

	stat := &hibernateStat{Slots: wl.tree.Allocator().Size()}

	start := time.Now()

	err := wl.tree.Hibernate()
	if err != nil {
		return nil, fmt.Errorf("hibernate: %w", err)
	}

	stat.Freeze = time.Since(start)
	stat.Skipped = !wl.tree.Allocator().Hibernated()

	start = time.Now()

	err = wl.tree.Boot()
	if err != nil {
		return nil, fmt.Errorf("boot: %w", err)
	}

	stat.Thaw = time.Since(start)

	err = wl.verify(ctx, wl.cfg.Ops)
	if err != nil {
		return nil, err
	}

	stat.Verified = true

	return stat, nil
}
