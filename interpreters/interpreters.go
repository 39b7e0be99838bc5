// Package interpreters assembles the standard action executors.
package interpreters

import (
	"context"

	"github.com/cartos-io/cartos/core"
	"github.com/cartos-io/cartos/interpreters/ecmascript"
	"github.com/cartos-io/cartos/interpreters/noop"
)

// Map dispatches an action to an executor by the action's Interpreter
// name.  An empty name uses the "" entry, so a host can register its
// default executor under "".
type Map map[string]core.ActionExecutor

func (m Map) Execute(ctx context.Context, action *core.ActionSpec, vars *core.ContextStore) error {
	executor, have := m[action.Interpreter]
	if !have {
		return &UnknownInterpreter{action.Interpreter}
	}
	return executor.Execute(ctx, action, vars)
}

// UnknownInterpreter occurs when an action names an executor that
// isn't registered.
type UnknownInterpreter struct {
	Name string
}

func (e *UnknownInterpreter) Error() string {
	return `interpreter "` + e.Name + `" not found`
}

// Standard returns the stock executors: ECMAScript (also the
// default) and noop.
func Standard() Map {
	es := ecmascript.NewExecutor()
	return Map{
		"":           es,
		"ecmascript": es,
		"noop":       noop.NewExecutor(),
	}
}
