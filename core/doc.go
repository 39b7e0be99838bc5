// Package core implements cartridge execution: guard expression
// evaluation, typed context memory, and the state machine engine that
// drives a single mounted cartridge.
//
// A CartridgeDefinition gives the structure of a machine: its states,
// transitions, guards, and declared memory.  A definition carries no
// runtime state.  An Engine owns the runtime state (current state id
// and a ContextStore) for one mounted instance of a definition.
//
// Guards are closed expression trees (Condition and Group nodes), not
// executable code.  Actions, by contrast, are opaque to this package:
// an Engine dispatches each ActionSpec to an injected ActionExecutor
// supplied by the host.
package core
