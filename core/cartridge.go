package core

// CartridgeDefinition gives the structure of a cartridge: states,
// transitions, declared memory, and declared commands and events.
//
// A definition holds no runtime state and is treated as immutable
// once loaded.  One definition can back any number of mounted
// instances.
type CartridgeDefinition struct {
	// Name is the generic name for this cartridge.  Something
	// like "door-chime".
	Name string `json:"name" yaml:"name"`

	// Version is the version of this cartridge.  Something like
	// "1.2".
	Version string `json:"version,omitempty" yaml:",omitempty"`

	// Doc is general documentation about what this cartridge does.
	Doc string `json:"doc,omitempty" yaml:",omitempty"`

	// Initial names the state a fresh instance starts in.
	Initial string `json:"initial" yaml:"initial"`

	// States is the structure of the machine.
	States map[string]*StateDef `json:"states" yaml:"states"`

	// Memory declares the instance's context variables.
	Memory []VarDecl `json:"memory,omitempty" yaml:",omitempty"`

	// Commands are the operations this cartridge exposes to a
	// router.  Each resolves to an event sent to the instance.
	Commands []CommandDecl `json:"commands,omitempty" yaml:",omitempty"`

	// Events documents event names this cartridge responds to or
	// emits, for catalogs and consoles.
	Events []EventDecl `json:"events,omitempty" yaml:",omitempty"`
}

// StateDef is one state: its lifecycle actions and outbound
// transitions.
type StateDef struct {
	Doc string `json:"doc,omitempty" yaml:",omitempty"`

	// OnEntry actions run after the machine arrives at this state.
	OnEntry []ActionSpec `json:"onEntry,omitempty" yaml:"onEntry,omitempty"`

	// OnExit actions run before the machine leaves this state.
	OnExit []ActionSpec `json:"onExit,omitempty" yaml:"onExit,omitempty"`

	// Transitions is the ordered list of ways out of this state.
	Transitions []*TransitionDef `json:"transitions,omitempty" yaml:",omitempty"`
}

// TransitionDef is one candidate transition out of a state.
type TransitionDef struct {
	// Event names the event that makes this transition a
	// candidate.
	Event string `json:"event" yaml:"event"`

	// Target is the id of the next state.
	Target string `json:"target" yaml:"target"`

	// Guard, when present, must evaluate true for the transition
	// to fire.  An absent guard always passes.
	Guard GuardExpression `json:"-" yaml:"-"`

	// Actions run after the source state's OnExit and before the
	// state change.
	Actions []ActionSpec `json:"actions,omitempty" yaml:",omitempty"`
}

// ActionSpec is an opaque instruction executed during a transition or
// on state entry/exit.  The engine dispatches these in order to the
// host's ActionExecutor and does not interpret Source itself.
type ActionSpec struct {
	// Interpreter optionally names the executor that should run
	// this action (when the host's executor is a dispatch map).
	Interpreter string `json:"interpreter,omitempty" yaml:",omitempty"`

	// Source is the instruction payload in whatever representation
	// the executor expects.
	Source interface{} `json:"source" yaml:"source"`
}

// CommandDecl declares a command for catalogs and command routing.
type CommandDecl struct {
	ID      string   `json:"id" yaml:"id"`
	Doc     string   `json:"doc,omitempty" yaml:",omitempty"`
	Aliases []string `json:"aliases,omitempty" yaml:",omitempty"`

	// Event is the event sent to the instance when this command is
	// executed.  Defaults to ID.
	Event string `json:"event,omitempty" yaml:",omitempty"`
}

// EventName resolves the event this command sends.
func (c *CommandDecl) EventName() string {
	if c.Event != "" {
		return c.Event
	}
	return c.ID
}

// EventDecl documents an event name.
type EventDecl struct {
	ID      string   `json:"id" yaml:"id"`
	Doc     string   `json:"doc,omitempty" yaml:",omitempty"`
	Aliases []string `json:"aliases,omitempty" yaml:",omitempty"`
}

// Validate checks a definition's structural soundness: a declared
// initial state, every transition target declared, well-formed guard
// shapes, and known memory types.  A router should refuse to mount a
// definition that fails this check, so that a mounted cartridge is
// always structurally sound thereafter.
func (d *CartridgeDefinition) Validate() error {
	if len(d.States) == 0 {
		return &BadDefinition{d.Name, "no states"}
	}

	if _, have := d.States[d.Initial]; !have {
		return &TargetStateUndeclared{d.Name, "", d.Initial}
	}

	for name, s := range d.States {
		if s == nil {
			return &BadDefinition{d.Name, `state "` + name + `" is empty`}
		}
		for _, t := range s.Transitions {
			if t.Event == "" {
				return &BadDefinition{d.Name, `transition in state "` + name + `" has no event`}
			}
			if _, have := d.States[t.Target]; !have {
				return &TargetStateUndeclared{d.Name, name, t.Target}
			}
			if err := checkGuardShape(t.Guard); err != nil {
				return &BadDefinition{d.Name, `guard in state "` + name + `": ` + err.Error()}
			}
		}
	}

	for i := range d.Memory {
		if !KnownVarType(d.Memory[i].Type) {
			return &BadDefinition{d.Name, `variable "` + d.Memory[i].Name + `" has unknown type`}
		}
	}

	return nil
}

// checkGuardShape rejects empty groups and unknown operators.  These
// shapes are unrepresentable for guards built with this package's
// types but can arrive via deserialization.
func checkGuardShape(g GuardExpression) error {
	switch e := g.(type) {
	case nil:
		return nil
	case *Condition:
		if !KnownOp(e.Op) {
			return &BadGuard{`unknown operator "` + string(e.Op) + `"`}
		}
		if e.Left == "" {
			return &BadGuard{"condition has no left key"}
		}
		if e.Right == nil {
			return &BadGuard{"condition has no right operand"}
		}
	case *Group:
		if !KnownGroupOp(e.Op) {
			return &BadGuard{`unknown group operator "` + string(e.Op) + `"`}
		}
		if len(e.Children) == 0 {
			return &BadGuard{"empty group"}
		}
		for _, child := range e.Children {
			if err := checkGuardShape(child); err != nil {
				return err
			}
		}
	}
	return nil
}
