package ecmascript

import (
	"context"
	"testing"

	"github.com/cartos-io/cartos/core"
)

func store() *core.ContextStore {
	return core.NewContextStore([]core.VarDecl{
		{Name: "count", Type: core.VarNumber, Default: float64(2)},
		{Name: "name", Type: core.VarString, Default: "queso"},
	})
}

func exec(t *testing.T, e *Executor, src interface{}, vars *core.ContextStore) {
	t.Helper()
	action := &core.ActionSpec{Interpreter: "ecmascript", Source: src}
	if err := e.Execute(context.Background(), action, vars); err != nil {
		t.Fatal(err)
	}
}

func TestExecuteSet(t *testing.T) {
	vars := store()
	exec(t, NewExecutor(), `set("count", vars.count + 1);`, vars)

	if x, _ := vars.Lookup("count"); x != float64(3) {
		t.Fatalf("count = %#v", x)
	}
}

func TestVarsIsACopy(t *testing.T) {
	vars := store()
	exec(t, NewExecutor(), `vars.name = "tacos";`, vars)

	if x, _ := vars.Lookup("name"); x != "queso" {
		t.Fatalf("mutating vars leaked: %#v", x)
	}
}

func TestGet(t *testing.T) {
	vars := store()
	exec(t, NewExecutor(), `set("name", get("name") + "!");`, vars)

	if x, _ := vars.Lookup("name"); x != "queso!" {
		t.Fatalf("name = %#v", x)
	}
}

func TestRequires(t *testing.T) {
	e := NewExecutor()
	e.LibraryProvider = MakeMapLibraryProvider(map[string]string{
		"doubler": `double = function(n) { return n + n; };`,
	})

	vars := store()
	exec(t, e, map[string]interface{}{
		"requires": "doubler",
		"code":     `set("count", double(vars.count));`,
	}, vars)

	if x, _ := vars.Lookup("count"); x != float64(4) {
		t.Fatalf("count = %#v", x)
	}
}

func TestBadSource(t *testing.T) {
	action := &core.ActionSpec{Source: 42}
	if err := NewExecutor().Execute(context.Background(), action, store()); err == nil {
		t.Fatal("expected an error")
	}
}

func TestInterrupt(t *testing.T) {
	e := NewExecutor()
	e.Testing = true

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	action := &core.ActionSpec{Source: `while (true) { sleep(1); }`}
	if err := e.Execute(ctx, action, store()); err != Interrupted {
		t.Fatalf("got %v", err)
	}
}
