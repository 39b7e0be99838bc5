// Package noop provides an ActionExecutor that does nothing, which is
// useful for tests and for cartridges whose actions are pure
// documentation.
package noop

import (
	"context"
	"log"

	"github.com/cartos-io/cartos/core"
)

// Executor is a core.ActionExecutor that leaves the context store
// unmodified.
type Executor struct {
	// Silent suppresses the warning log message.
	Silent bool
}

func NewExecutor() *Executor {
	return &Executor{Silent: true}
}

func (e *Executor) Execute(ctx context.Context, action *core.ActionSpec, vars *core.ContextStore) error {
	if !e.Silent {
		log.Printf("warning: noop executor ignoring action")
	}
	return nil
}
