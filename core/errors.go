package core

// These errors are structural (cartridge) errors, which surface at
// load or mount time, plus engine lifecycle errors.  Evaluation-time
// anomalies never become errors: the guard language absorbs them into
// a false result.

import "errors"

var (
	// AlreadyStarted occurs when Engine.Start is called twice.
	AlreadyStarted = errors.New("engine already started")

	// NotStarted occurs when Send is called before Start.
	NotStarted = errors.New("engine not started")

	// Disposed occurs when an engine is used after Stop.
	Disposed = errors.New("engine disposed")
)

// BadDefinition occurs when a cartridge definition is structurally
// unsound in some way other than an undeclared target state.
type BadDefinition struct {
	Cartridge string
	Problem   string
}

func (e *BadDefinition) Error() string {
	return `bad cartridge "` + e.Cartridge + `": ` + e.Problem
}

// BadGuard occurs when a deserialized guard has an unrepresentable
// shape (empty group, unknown operator).
type BadGuard struct {
	Problem string
}

func (e *BadGuard) Error() string {
	return "bad guard: " + e.Problem
}

// TargetStateUndeclared occurs when a transition (or the initial
// state) points at a state id absent from the definition.  Rejected
// at mount time, never at transition time.
type TargetStateUndeclared struct {
	Cartridge string
	State     string // source state; empty for the initial state
	Target    string
}

func (e *TargetStateUndeclared) Error() string {
	if e.State == "" {
		return `initial state "` + e.Target + `" not declared in cartridge "` + e.Cartridge + `"`
	}
	return `state "` + e.State + `" in cartridge "` + e.Cartridge +
		`" targets undeclared state "` + e.Target + `"`
}

// UnknownState occurs when an engine finds its current state id
// missing from the definition.  Should be unreachable for validated
// definitions; the engine fails closed anyway.
type UnknownState struct {
	Cartridge string
	State     string
}

func (e *UnknownState) Error() string {
	return `state "` + e.State + `" not found in cartridge "` + e.Cartridge + `"`
}

// ActionFailed wraps an ActionExecutor error with where it happened.
type ActionFailed struct {
	Cartridge string
	State     string
	Phase     string // "entry", "exit", or "transition"
	Err       error
}

func (e *ActionFailed) Error() string {
	return e.Phase + ` action failed in state "` + e.State + `" of cartridge "` +
		e.Cartridge + `": ` + e.Err.Error()
}

func (e *ActionFailed) Unwrap() error { return e.Err }
