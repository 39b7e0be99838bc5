package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// setVar is a tiny test executor.  An action's Source is
// "name=value"; values parse as numbers when they look numeric.
func setVar(recorded *[]string) ActionExecutor {
	return ActionExecutorFunc(func(ctx context.Context, action *ActionSpec, vars *ContextStore) error {
		src, is := action.Source.(string)
		if !is {
			return errors.New("bad action source")
		}
		if recorded != nil {
			*recorded = append(*recorded, src)
		}
		var name string
		var val float64
		if _, err := fmt.Sscanf(src, "%s %f", &name, &val); err == nil {
			vars.Set(name, val)
		}
		return nil
	})
}

func counterDef() *CartridgeDefinition {
	return &CartridgeDefinition{
		Name:    "counter",
		Initial: "idle",
		Memory: []VarDecl{
			{Name: "count", Type: VarNumber, Default: float64(2)},
		},
		States: map[string]*StateDef{
			"idle": {
				Transitions: []*TransitionDef{
					{
						Event:  "START",
						Target: "active",
						Guard:  &Condition{Left: "count", Op: Lt, Right: Literal{3}},
					},
				},
			},
			"active": {
				Transitions: []*TransitionDef{
					{Event: "STOP", Target: "idle"},
				},
			},
		},
	}
}

func startEngine(t *testing.T, def *CartridgeDefinition, executor ActionExecutor) *Engine {
	t.Helper()
	e, err := NewEngine(def, executor)
	if err != nil {
		t.Fatal(err)
	}
	if err = e.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	return e
}

func TestEngineGuardedTransition(t *testing.T) {
	ctx := context.Background()

	t.Run("guard passes", func(t *testing.T) {
		e := startEngine(t, counterDef(), nil)
		r, err := e.Send(ctx, "START")
		if err != nil {
			t.Fatal(err)
		}
		if r.Outcome != Transitioned || r.Current != "active" {
			t.Fatalf("got %v at %s", r.Outcome, r.Current)
		}
	})

	t.Run("guard rejects", func(t *testing.T) {
		def := counterDef()
		def.Memory[0].Default = float64(5)
		e := startEngine(t, def, nil)
		r, err := e.Send(ctx, "START")
		if err != nil {
			t.Fatal(err)
		}
		if r.Outcome != GuardRejected {
			t.Fatalf("got %v", r.Outcome)
		}
		if e.Current() != "idle" {
			t.Fatalf("state moved to %s", e.Current())
		}
	})
}

func TestEngineOutcomeDistinctions(t *testing.T) {
	ctx := context.Background()
	e := startEngine(t, counterDef(), nil)

	// STOP exists on "active" but not on the current state "idle".
	r, err := e.Send(ctx, "STOP")
	if err != nil {
		t.Fatal(err)
	}
	if r.Outcome != NoMatchingTransition {
		t.Fatalf("got %v", r.Outcome)
	}

	// Nothing anywhere declares BANANA.
	if r, err = e.Send(ctx, "BANANA"); err != nil {
		t.Fatal(err)
	}
	if r.Outcome != UnknownEvent {
		t.Fatalf("got %v", r.Outcome)
	}
}

func TestEngineFirstMatchWins(t *testing.T) {
	def := &CartridgeDefinition{
		Name:    "race",
		Initial: "start",
		Memory:  []VarDecl{{Name: "n", Type: VarNumber, Default: float64(1)}},
		States: map[string]*StateDef{
			"start": {
				Transitions: []*TransitionDef{
					{
						Event:  "GO",
						Target: "first",
						Guard:  &Condition{Left: "n", Op: Eq, Right: Literal{1}},
					},
					{
						// Also matches; must not be taken.
						Event:  "GO",
						Target: "second",
					},
				},
			},
			"first":  {},
			"second": {},
		},
	}

	e := startEngine(t, def, nil)
	r, err := e.Send(context.Background(), "GO")
	if err != nil {
		t.Fatal(err)
	}
	if r.Current != "first" {
		t.Fatalf("took %s, wanted first declared match", r.Current)
	}
}

func TestEngineActionOrder(t *testing.T) {
	var order []string
	def := &CartridgeDefinition{
		Name:    "ordered",
		Initial: "a",
		States: map[string]*StateDef{
			"a": {
				OnEntry: []ActionSpec{{Source: "enter-a"}},
				OnExit:  []ActionSpec{{Source: "exit-a"}},
				Transitions: []*TransitionDef{
					{
						Event:   "GO",
						Target:  "b",
						Actions: []ActionSpec{{Source: "move-1"}, {Source: "move-2"}},
					},
				},
			},
			"b": {
				OnEntry: []ActionSpec{{Source: "enter-b"}},
			},
		},
	}

	e := startEngine(t, def, setVar(&order))
	if _, err := e.Send(context.Background(), "GO"); err != nil {
		t.Fatal(err)
	}

	want := []string{"enter-a", "exit-a", "move-1", "move-2", "enter-b"}
	if len(order) != len(want) {
		t.Fatalf("got %v", order)
	}
	for i, s := range want {
		if order[i] != s {
			t.Fatalf("step %d: got %v", i, order)
		}
	}
}

func TestEngineActionsMutateContext(t *testing.T) {
	def := counterDef()
	def.States["idle"].Transitions[0].Actions = []ActionSpec{{Source: "count 10"}}

	e := startEngine(t, def, setVar(nil))
	if _, err := e.Send(context.Background(), "START"); err != nil {
		t.Fatal(err)
	}
	snap := e.SnapshotContext()
	if snap["count"] != float64(10) {
		t.Fatalf("count = %#v", snap["count"])
	}
}

func TestEngineStartOnce(t *testing.T) {
	var order []string
	def := counterDef()
	def.States["idle"].OnEntry = []ActionSpec{{Source: "boot"}}

	e, err := NewEngine(def, setVar(&order))
	if err != nil {
		t.Fatal(err)
	}
	if err = e.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err = e.Start(context.Background()); err != AlreadyStarted {
		t.Fatalf("second Start: %v", err)
	}
	if len(order) != 1 {
		t.Fatalf("initial entry ran %d times", len(order))
	}
}

func TestEngineNotifications(t *testing.T) {
	e, err := NewEngine(counterDef(), nil)
	if err != nil {
		t.Fatal(err)
	}

	var ns []Notification
	e.Subscribe(func(n Notification) {
		ns = append(ns, n)
	})

	ctx := context.Background()
	if err = e.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err = e.Send(ctx, "START"); err != nil {
		t.Fatal(err)
	}

	if len(ns) != 2 {
		t.Fatalf("got %d notifications", len(ns))
	}
	if ns[0].Previous != "" || ns[0].Current != "idle" {
		t.Fatalf("start notification: %+v", ns[0])
	}
	if ns[1].Previous != "idle" || ns[1].Current != "active" {
		t.Fatalf("transition notification: %+v", ns[1])
	}
	if ns[1].Context["count"] != float64(2) {
		t.Fatalf("context snapshot: %#v", ns[1].Context)
	}
}

func TestEngineUnsubscribeDuringNotify(t *testing.T) {
	e, err := NewEngine(counterDef(), nil)
	if err != nil {
		t.Fatal(err)
	}

	var first, second, third int
	var unsub func()
	e.Subscribe(func(Notification) { first++ })
	unsub = e.Subscribe(func(Notification) {
		second++
		unsub()
	})
	e.Subscribe(func(Notification) { third++ })

	ctx := context.Background()
	if err = e.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err = e.Send(ctx, "START"); err != nil {
		t.Fatal(err)
	}

	if first != 2 || third != 2 {
		t.Fatalf("other subscribers starved: %d %d", first, third)
	}
	if second != 1 {
		t.Fatalf("unsubscribed callback ran %d times", second)
	}
}

func TestEngineSubscriberPanicIsolated(t *testing.T) {
	e, err := NewEngine(counterDef(), nil)
	if err != nil {
		t.Fatal(err)
	}

	var after int
	e.Subscribe(func(Notification) { panic("subscriber bug") })
	e.Subscribe(func(Notification) { after++ })

	if err = e.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if after != 1 {
		t.Fatal("panicking subscriber starved the next one")
	}
}

func TestEngineRejectsUndeclaredTarget(t *testing.T) {
	def := counterDef()
	def.States["idle"].Transitions[0].Target = "nowhere"

	_, err := NewEngine(def, nil)
	var want *TargetStateUndeclared
	if !errors.As(err, &want) {
		t.Fatalf("got %v", err)
	}
}

func TestEngineActionError(t *testing.T) {
	def := counterDef()
	def.States["idle"].Transitions[0].Actions = []ActionSpec{{Source: 42}}

	e := startEngine(t, def, setVar(nil))
	_, err := e.Send(context.Background(), "START")
	var failed *ActionFailed
	if !errors.As(err, &failed) {
		t.Fatalf("got %v", err)
	}
	if failed.Phase != "transition" {
		t.Fatalf("phase %s", failed.Phase)
	}
}

func TestEngineStopDisposes(t *testing.T) {
	e := startEngine(t, counterDef(), nil)
	e.Stop()
	if _, err := e.Send(context.Background(), "START"); err != Disposed {
		t.Fatalf("got %v", err)
	}
}
