/* Copyright 2026 The cartos Authors
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package tools has utilities for authoring cartridges: static
// analysis, graph exports, and HTML rendering.  None of this runs at
// execution time.
package tools

import (
	"sort"

	"github.com/cartos-io/cartos/core"
)

// Analysis reports the structure (and structural problems) of a
// cartridge definition.
type Analysis struct {
	StateCount  int `json:"states"`
	Transitions int `json:"transitions"`
	Guards      int `json:"guards"`
	Actions     int `json:"actions"`

	// Terminal states have no outbound transitions.
	Terminal []string `json:"terminal,omitempty"`

	// Orphans are states no transition targets, excluding the
	// initial state.
	Orphans []string `json:"orphans,omitempty"`

	// MissingTargets are transition targets that aren't declared
	// states.  Validate rejects these; analysis reports them for
	// authoring surfaces working with unvalidated definitions.
	MissingTargets []string `json:"missingTargets,omitempty"`

	// Events is the sorted set of event names used by transitions.
	Events []string `json:"events,omitempty"`

	// GuardProblems aggregates ValidateGuard results across all
	// transitions.
	GuardErrors   []string `json:"guardErrors,omitempty"`
	GuardWarnings []string `json:"guardWarnings,omitempty"`
}

// Analyze inspects a cartridge definition.
func Analyze(def *core.CartridgeDefinition) *Analysis {
	a := &Analysis{
		StateCount: len(def.States),
	}

	targeted := make(map[string]bool, len(def.States))
	missing := make(map[string]bool)
	events := make(map[string]bool)

	for _, name := range sortedStates(def) {
		s := def.States[name]
		if len(s.Transitions) == 0 {
			a.Terminal = append(a.Terminal, name)
		}
		a.Actions += len(s.OnEntry) + len(s.OnExit)
		for _, t := range s.Transitions {
			a.Transitions++
			a.Actions += len(t.Actions)
			targeted[t.Target] = true
			events[t.Event] = true
			if _, have := def.States[t.Target]; !have {
				missing[t.Target] = true
			}
			if t.Guard != nil {
				a.Guards++
				v := core.ValidateGuard(t.Guard, def.Memory)
				a.GuardErrors = append(a.GuardErrors, v.Errors...)
				a.GuardWarnings = append(a.GuardWarnings, v.Warnings...)
			}
		}
	}

	for _, name := range sortedStates(def) {
		if name != def.Initial && !targeted[name] {
			a.Orphans = append(a.Orphans, name)
		}
	}
	a.MissingTargets = sortedKeys(missing)
	a.Events = sortedKeys(events)

	return a
}

func sortedStates(def *core.CartridgeDefinition) []string {
	names := make([]string, 0, len(def.States))
	for name := range def.States {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedKeys(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	acc := make([]string, 0, len(m))
	for k := range m {
		acc = append(acc, k)
	}
	sort.Strings(acc)
	return acc
}
