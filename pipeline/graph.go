// Package pipeline wires the volume visualization stages into an explicit
// directed acyclic graph and runs them in topological order.
//
// # Architecture
//
// A [Graph] holds named stages, each a function of the outputs of the stages
// it names as dependencies. [Graph.Run] executes the stages needed for the
// requested targets exactly once each, in a deterministic topological order,
// and returns the memoized outputs as [Results]. Typed access is through [Get].
//
// The standard graph built by [Build] is:
//
//	volume → subsample → skin, bone
//	skin, bone → overview
//	skin → contours → sections
//	skin, sphere → clipped; sphere → boundary
//	bone, skin → distance (cached)
//	all views → scene
//
// # Usage
//
//	cfg := pipeline.DefaultConfig()
//	cfg.Volume = "data/vw_knee.slc"
//	g, err := pipeline.Build(cfg, pipeline.Env{Cache: dc, Logger: logger})
//	if err != nil {
//	    return err
//	}
//	res, err := g.Run(ctx)
//	if err != nil {
//	    return err
//	}
//	sc, err := pipeline.Get[*scene.Scene](res, pipeline.StageScene)
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// ErrCycle is returned when stage dependencies form a cycle.
var ErrCycle = errors.New("pipeline: dependency cycle")

// StageFunc computes a stage output from the outputs of its dependencies.
type StageFunc func(ctx context.Context, in *Results) (any, error)

type stage struct {
	name string
	deps []string
	fn   StageFunc
	// seq is the insertion index, used to break ordering ties.
	seq int
}

// Graph is a set of named stages and their dependencies.
type Graph struct {
	stages map[string]*stage
	logger *log.Logger
}

// NewGraph returns an empty graph logging stage progress to logger.
// A nil logger discards messages.
func NewGraph(logger *log.Logger) *Graph {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Graph{stages: make(map[string]*stage), logger: logger}
}

// Add registers a stage. Dependencies need not be registered yet but must be
// by the time the graph is ordered.
func (g *Graph) Add(name string, fn StageFunc, deps ...string) error {
	if name == "" {
		return errors.New("empty stage name")
	}
	if fn == nil {
		return fmt.Errorf("stage %q: nil function", name)
	}
	if _, ok := g.stages[name]; ok {
		return fmt.Errorf("stage %q already registered", name)
	}
	g.stages[name] = &stage{name: name, deps: append([]string(nil), deps...), fn: fn, seq: len(g.stages)}
	return nil
}

// Stages returns stage names in insertion order.
func (g *Graph) Stages() []string {
	list := g.sorted()
	names := make([]string, len(list))
	for i, s := range list {
		names[i] = s.name
	}
	return names
}

// Deps returns the dependencies of the named stage.
func (g *Graph) Deps(name string) []string {
	s, ok := g.stages[name]
	if !ok {
		return nil
	}
	return append([]string(nil), s.deps...)
}

func (g *Graph) sorted() []*stage {
	list := make([]*stage, 0, len(g.stages))
	for _, s := range g.stages {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].seq < list[j].seq })
	return list
}

// Order returns the stages needed by targets, or every stage if no target is
// given, in topological order. Among stages ready at the same time the one
// added first comes first.
func (g *Graph) Order(targets ...string) ([]string, error) {
	needed := make(map[string]bool)
	if len(targets) == 0 {
		for name := range g.stages {
			needed[name] = true
		}
	}
	var mark func(name, from string) error
	mark = func(name, from string) error {
		if needed[name] {
			return nil
		}
		s, ok := g.stages[name]
		if !ok {
			if from == "" {
				return fmt.Errorf("unknown stage %q", name)
			}
			return fmt.Errorf("stage %q depends on unknown stage %q", from, name)
		}
		needed[name] = true
		for _, dep := range s.deps {
			if err := mark(dep, name); err != nil {
				return err
			}
		}
		return nil
	}
	if len(targets) == 0 {
		for _, s := range g.sorted() {
			for _, dep := range s.deps {
				if _, ok := g.stages[dep]; !ok {
					return nil, fmt.Errorf("stage %q depends on unknown stage %q", s.name, dep)
				}
			}
		}
	}
	for _, t := range targets {
		if err := mark(t, ""); err != nil {
			return nil, err
		}
	}

	// Kahn's algorithm over the needed subgraph.
	indegree := make(map[string]int)
	dependents := make(map[string][]*stage)
	var ready []*stage
	for _, s := range g.sorted() {
		if !needed[s.name] {
			continue
		}
		seen := make(map[string]bool)
		for _, dep := range s.deps {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			indegree[s.name]++
			dependents[dep] = append(dependents[dep], s)
		}
		if indegree[s.name] == 0 {
			ready = append(ready, s)
		}
	}
	var order []string
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return ready[i].seq < ready[j].seq })
		s := ready[0]
		ready = ready[1:]
		order = append(order, s.name)
		for _, d := range dependents[s.name] {
			indegree[d.name]--
			if indegree[d.name] == 0 {
				ready = append(ready, d)
			}
		}
	}
	if len(order) != len(needed) {
		var stuck []string
		for _, s := range g.sorted() {
			if needed[s.name] && indegree[s.name] > 0 {
				stuck = append(stuck, s.name)
			}
		}
		return nil, fmt.Errorf("%w among stages %s", ErrCycle, strings.Join(stuck, ", "))
	}
	return order, nil
}

// Results holds the outputs of the stages of a run.
type Results struct {
	// RunID identifies the run in log messages.
	RunID   string
	values  map[string]any
	elapsed map[string]time.Duration
}

// Has reports whether the named stage produced an output.
func (r *Results) Has(name string) bool {
	_, ok := r.values[name]
	return ok
}

// Elapsed returns the time spent computing the named stage.
func (r *Results) Elapsed(name string) time.Duration { return r.elapsed[name] }

// Get returns the output of the named stage converted to T.
func Get[T any](r *Results, name string) (T, error) {
	var zero T
	v, ok := r.values[name]
	if !ok {
		return zero, fmt.Errorf("stage %q has no output", name)
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("stage %q output is %T, not %T", name, v, zero)
	}
	return t, nil
}

// Run executes the stages needed by targets, or all stages, once each in
// topological order. The first failing stage aborts the run.
func (g *Graph) Run(ctx context.Context, targets ...string) (*Results, error) {
	order, err := g.Order(targets...)
	if err != nil {
		return nil, err
	}
	res := &Results{
		RunID:   uuid.NewString(),
		values:  make(map[string]any, len(order)),
		elapsed: make(map[string]time.Duration, len(order)),
	}
	logger := g.logger.With("run", res.RunID)
	start := time.Now()
	for _, name := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t := time.Now()
		out, err := g.stages[name].fn(ctx, res)
		if err != nil {
			logger.Error("stage failed", "stage", name, "err", err)
			return nil, fmt.Errorf("stage %q: %w", name, err)
		}
		res.values[name] = out
		res.elapsed[name] = time.Since(t)
		logger.Debug("stage done", "stage", name, "elapsed", res.elapsed[name].Round(time.Millisecond))
	}
	logger.Info("pipeline done", "stages", len(order), "elapsed", time.Since(start).Round(time.Millisecond))
	return res, nil
}
