package core

import (
	"context"
	"log"
	"sync"
)

// ActionExecutor runs an ActionSpec against an instance's live
// context.  The host supplies one when it creates an Engine; the
// engine only dispatches, it never looks inside an action's Source.
type ActionExecutor interface {
	Execute(ctx context.Context, action *ActionSpec, vars *ContextStore) error
}

// ActionExecutorFunc adapts a function to an ActionExecutor.
type ActionExecutorFunc func(ctx context.Context, action *ActionSpec, vars *ContextStore) error

func (f ActionExecutorFunc) Execute(ctx context.Context, action *ActionSpec, vars *ContextStore) error {
	return f(ctx, action, vars)
}

// Outcome classifies what Send did with an event.
type Outcome int

const (
	// Transitioned means a transition fired and the state changed
	// (possibly to the same state id, via a self-transition).
	Transitioned Outcome = iota

	// GuardRejected means the current state declares the event but
	// every candidate's guard failed.  The state is unchanged.
	// This is a normal outcome, not a failure.
	GuardRejected

	// NoMatchingTransition means the current state declares no
	// transition for the event, though some other state does.
	NoMatchingTransition

	// UnknownEvent means no state in the cartridge declares the
	// event at all.
	UnknownEvent
)

func (o Outcome) String() string {
	switch o {
	case Transitioned:
		return "transitioned"
	case GuardRejected:
		return "guardRejected"
	case NoMatchingTransition:
		return "noMatchingTransition"
	case UnknownEvent:
		return "unknownEvent"
	}
	return "unknown"
}

// Result reports what an event did to an instance.
type Result struct {
	Outcome  Outcome `json:"outcome"`
	Event    string  `json:"event"`
	Previous string  `json:"previous,omitempty"`
	Current  string  `json:"current"`
}

// Notification is delivered synchronously to subscribers after the
// initial entry (Previous empty) and after every successful
// transition.
type Notification struct {
	Cartridge string                 `json:"cartridge"`
	Previous  string                 `json:"previous,omitempty"`
	Current   string                 `json:"current"`
	Context   map[string]interface{} `json:"context"`
}

// Subscriber receives state notifications.  A panicking subscriber is
// isolated: the rest still get notified.
type Subscriber func(n Notification)

type subscription struct {
	fn Subscriber // nil once unsubscribed
}

// Engine interprets one mounted instance of a cartridge definition.
//
// An Engine owns its RuntimeState: the current state id and the
// ContextStore built from the definition's memory schema.  All
// mutation goes through Send (and the initial Start); the store is
// never exposed except as snapshots.
//
// Engines serialize their operations with an internal lock, so a
// concurrent host gets per-instance exclusive access for free.  Don't
// call Send from inside a subscriber; operations run to completion
// before the next is accepted.  Subscribers are invoked while the
// engine's lock is held (so they see a consistent snapshot); they
// must not call back into the engine, except to unsubscribe.
type Engine struct {
	mu sync.Mutex

	def      *CartridgeDefinition
	executor ActionExecutor

	current  string
	vars     *ContextStore
	started  bool
	disposed bool

	// subMu guards subs independently of mu so that unsubscribing
	// from within a notification callback cannot deadlock.
	subMu sync.Mutex
	subs  []*subscription
}

// NewEngine creates an engine for a validated definition.  The
// definition is validated again here so that an engine constructed
// directly (outside a router) still fails closed on undeclared
// targets.
func NewEngine(def *CartridgeDefinition, executor ActionExecutor) (*Engine, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		def:      def,
		executor: executor,
		current:  def.Initial,
		vars:     NewContextStore(def.Memory),
	}, nil
}

// Definition returns the engine's (immutable) definition.
func (e *Engine) Definition() *CartridgeDefinition {
	return e.def
}

// Current returns the current state id.
func (e *Engine) Current() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// SnapshotContext returns a copy of the instance's memory.
func (e *Engine) SnapshotContext() map[string]interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.vars.Snapshot()
}

// Start runs the initial state's entry actions exactly once and
// notifies subscribers with an empty previous state.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return Disposed
	}
	if e.started {
		return AlreadyStarted
	}

	initial := e.def.States[e.def.Initial]
	if err := e.runActions(ctx, initial.OnEntry, e.def.Initial, "entry"); err != nil {
		return err
	}
	e.started = true

	e.notify(Notification{
		Cartridge: e.def.Name,
		Current:   e.current,
		Context:   e.vars.Snapshot(),
	})
	return nil
}

// Send offers an event to the machine.
//
// Candidates are the current state's transitions whose Event matches,
// considered in declaration order; the first whose guard passes wins.
// On a transition: source OnExit, then the transition's own actions,
// then the state change, then target OnEntry, then synchronous
// notification.
//
// A nil error with a non-Transitioned outcome is the normal "nothing
// applied here" case; errors are reserved for structural or executor
// failures.
func (e *Engine) Send(ctx context.Context, event string) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return nil, Disposed
	}
	if !e.started {
		return nil, NotStarted
	}

	state, have := e.def.States[e.current]
	if !have {
		// Validated definitions can't get here.
		return nil, &UnknownState{e.def.Name, e.current}
	}

	candidates := 0
	for _, t := range state.Transitions {
		if t.Event != event {
			continue
		}
		candidates++

		if t.Guard != nil && !Evaluate(t.Guard, e.vars) {
			continue
		}

		// Fail closed if the target went missing somehow.
		if _, have := e.def.States[t.Target]; !have {
			return nil, &UnknownState{e.def.Name, t.Target}
		}

		return e.fire(ctx, state, t, event)
	}

	r := &Result{
		Event:    event,
		Previous: e.current,
		Current:  e.current,
	}
	switch {
	case 0 < candidates:
		r.Outcome = GuardRejected
	case e.eventDeclared(event):
		r.Outcome = NoMatchingTransition
	default:
		r.Outcome = UnknownEvent
	}
	return r, nil
}

// fire performs a transition whose guard has already passed.
func (e *Engine) fire(ctx context.Context, from *StateDef, t *TransitionDef, event string) (*Result, error) {
	previous := e.current

	if err := e.runActions(ctx, from.OnExit, previous, "exit"); err != nil {
		return nil, err
	}
	if err := e.runActions(ctx, t.Actions, previous, "transition"); err != nil {
		return nil, err
	}

	e.current = t.Target

	target := e.def.States[t.Target]
	if err := e.runActions(ctx, target.OnEntry, t.Target, "entry"); err != nil {
		return nil, err
	}

	e.notify(Notification{
		Cartridge: e.def.Name,
		Previous:  previous,
		Current:   e.current,
		Context:   e.vars.Snapshot(),
	})

	return &Result{
		Outcome:  Transitioned,
		Event:    event,
		Previous: previous,
		Current:  e.current,
	}, nil
}

// eventDeclared reports whether any state has a transition for the
// event.
func (e *Engine) eventDeclared(event string) bool {
	for _, s := range e.def.States {
		for _, t := range s.Transitions {
			if t.Event == event {
				return true
			}
		}
	}
	return false
}

func (e *Engine) runActions(ctx context.Context, actions []ActionSpec, state, phase string) error {
	for i := range actions {
		if e.executor == nil {
			continue
		}
		if err := e.executor.Execute(ctx, &actions[i], e.vars); err != nil {
			return &ActionFailed{e.def.Name, state, phase, err}
		}
	}
	return nil
}

// Subscribe registers a callback for state notifications and returns
// its unsubscribe function.  Unsubscribing is safe from within a
// callback; other engine methods are not.
func (e *Engine) Subscribe(fn Subscriber) func() {
	sub := &subscription{fn: fn}

	e.subMu.Lock()
	e.subs = append(e.subs, sub)
	e.subMu.Unlock()

	return func() {
		e.subMu.Lock()
		sub.fn = nil
		for i, s := range e.subs {
			if s == sub {
				e.subs = append(e.subs[:i], e.subs[i+1:]...)
				break
			}
		}
		e.subMu.Unlock()
	}
}

// notify delivers synchronously in registration order.  The list is
// snapshotted first, so unsubscribe-during-notify can't invalidate
// the iteration.
func (e *Engine) notify(n Notification) {
	e.subMu.Lock()
	snapshot := make([]*subscription, len(e.subs))
	copy(snapshot, e.subs)
	e.subMu.Unlock()

	for _, sub := range snapshot {
		e.subMu.Lock()
		fn := sub.fn
		e.subMu.Unlock()
		if fn == nil {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("engine %s subscriber panic: %v", e.def.Name, r)
				}
			}()
			fn(n)
		}()
	}
}

// Stop disposes the instance's runtime state.  Further Start or Send
// calls return Disposed.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.disposed = true
	e.vars = NewContextStore(nil)
	e.mu.Unlock()

	e.subMu.Lock()
	e.subs = nil
	e.subMu.Unlock()
}
