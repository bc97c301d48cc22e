package pipeline

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func constStage(v any) StageFunc {
	return func(context.Context, *Results) (any, error) { return v, nil }
}

func TestOrder(t *testing.T) {
	g := NewGraph(nil)
	mustAdd(t, g, "c", constStage(3), "a", "b")
	mustAdd(t, g, "a", constStage(1))
	mustAdd(t, g, "b", constStage(2), "a")
	mustAdd(t, g, "d", constStage(4))
	got, err := g.Order()
	if err != nil {
		t.Fatal(err)
	}
	// Ready stages run in insertion order, so c overtakes d once unblocked.
	want := []string{"a", "b", "c", "d"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order: got %v, want %v", got, want)
	}
	got, err = g.Order("b")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("targeted order: got %v", got)
	}
}

func TestStagesDeps(t *testing.T) {
	g := NewGraph(nil)
	mustAdd(t, g, "volume", constStage(1))
	mustAdd(t, g, "skin", constStage(2), "volume")
	mustAdd(t, g, "scene", constStage(3), "skin", "volume")
	if got := g.Stages(); !reflect.DeepEqual(got, []string{"volume", "skin", "scene"}) {
		t.Errorf("stages: got %v", got)
	}
	if got := g.Deps("scene"); !reflect.DeepEqual(got, []string{"skin", "volume"}) {
		t.Errorf("deps: got %v", got)
	}
	deps := g.Deps("skin")
	deps[0] = "mutated"
	if got := g.Deps("skin"); got[0] != "volume" {
		t.Errorf("deps alias internal state: %v", got)
	}
	if got := g.Deps("missing"); got != nil {
		t.Errorf("unknown stage deps: %v", got)
	}
}

func TestOrderCycle(t *testing.T) {
	g := NewGraph(nil)
	mustAdd(t, g, "a", constStage(1), "c")
	mustAdd(t, g, "b", constStage(2), "a")
	mustAdd(t, g, "c", constStage(3), "b")
	mustAdd(t, g, "free", constStage(0))
	_, err := g.Order()
	if !errors.Is(err, ErrCycle) {
		t.Fatalf("want ErrCycle, got %v", err)
	}
	if strings.Contains(err.Error(), "free") {
		t.Errorf("stage outside the cycle reported: %v", err)
	}
	if _, err := g.Run(context.Background()); !errors.Is(err, ErrCycle) {
		t.Errorf("run: want ErrCycle, got %v", err)
	}
}

func TestOrderUnknown(t *testing.T) {
	g := NewGraph(nil)
	mustAdd(t, g, "a", constStage(1), "missing")
	if _, err := g.Order(); err == nil || !strings.Contains(err.Error(), "missing") {
		t.Errorf("unknown dependency: got %v", err)
	}
	if _, err := g.Order("nope"); err == nil {
		t.Error("unknown target accepted")
	}
}

func TestAddErrors(t *testing.T) {
	g := NewGraph(nil)
	mustAdd(t, g, "a", constStage(1))
	if err := g.Add("a", constStage(1)); err == nil {
		t.Error("duplicate stage accepted")
	}
	if err := g.Add("", constStage(1)); err == nil {
		t.Error("empty name accepted")
	}
	if err := g.Add("b", nil); err == nil {
		t.Error("nil function accepted")
	}
}

func TestRun(t *testing.T) {
	g := NewGraph(nil)
	calls := make(map[string]int)
	mustAdd(t, g, "a", func(context.Context, *Results) (any, error) {
		calls["a"]++
		return 2, nil
	})
	square := func(ctx context.Context, in *Results) (any, error) {
		calls["square"]++
		a, err := Get[int](in, "a")
		return a * a, err
	}
	mustAdd(t, g, "square", square, "a")
	mustAdd(t, g, "sum", func(ctx context.Context, in *Results) (any, error) {
		a, _ := Get[int](in, "a")
		s, err := Get[int](in, "square")
		return a + s, err
	}, "a", "square")
	res, err := g.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	sum, err := Get[int](res, "sum")
	if err != nil {
		t.Fatal(err)
	}
	if sum != 6 {
		t.Errorf("sum: got %d, want 6", sum)
	}
	if calls["a"] != 1 || calls["square"] != 1 {
		t.Errorf("stages not run exactly once: %v", calls)
	}
	if res.RunID == "" {
		t.Error("empty run id")
	}
	if _, err := Get[string](res, "sum"); err == nil {
		t.Error("type mismatch not reported")
	}
	if _, err := Get[int](res, "nope"); err == nil {
		t.Error("missing stage not reported")
	}
}

func TestRunErrors(t *testing.T) {
	boom := errors.New("boom")
	g := NewGraph(nil)
	ran := false
	mustAdd(t, g, "fail", func(context.Context, *Results) (any, error) { return nil, boom })
	mustAdd(t, g, "after", func(context.Context, *Results) (any, error) {
		ran = true
		return nil, nil
	}, "fail")
	_, err := g.Run(context.Background())
	if !errors.Is(err, boom) || !strings.Contains(err.Error(), `"fail"`) {
		t.Errorf("got %v", err)
	}
	if ran {
		t.Error("dependent of failed stage ran")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g = NewGraph(nil)
	mustAdd(t, g, "a", constStage(1))
	if _, err := g.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("canceled run: got %v", err)
	}
}

func TestDOT(t *testing.T) {
	g := NewGraph(nil)
	mustAdd(t, g, "volume", constStage(1))
	mustAdd(t, g, "skin", constStage(2), "volume")
	dot := g.DOT(nil)
	for _, want := range []string{"digraph pipeline", `"volume" -> "skin";`, `"skin" [label="skin"];`} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %q:\n%s", want, dot)
		}
	}
	res, err := g.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if dot := g.DOT(res); !strings.Contains(dot, `label="skin\n`) {
		t.Errorf("DOT lacks elapsed labels:\n%s", dot)
	}
}

func mustAdd(t *testing.T, g *Graph, name string, fn StageFunc, deps ...string) {
	t.Helper()
	if err := g.Add(name, fn, deps...); err != nil {
		t.Fatal(err)
	}
}
