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

// Package cartfile parses cartridge definitions from YAML.
//
// The execution core consumes already-parsed CartridgeDefinitions;
// this package is the loader that produces them.  Parsed definitions
// are validated structurally before they're returned, so a definition
// from this package is mountable (or you got an error).
package cartfile

import (
	"errors"
	"fmt"
	"io/ioutil"

	"github.com/cartos-io/cartos/core"

	// This fork returns map[string]interface{} instead of
	// map[interface{}]interface{}, which spares us conversions
	// everywhere guards and action sources appear.
	"github.com/jsccast/yaml"
)

// file is the wire shape of a cartridge file.  Guards arrive as
// loosely-typed maps with a "type" discriminator and are rebuilt into
// the core's closed guard types.
type file struct {
	Name     string             `yaml:"name"`
	Version  string             `yaml:"version"`
	Doc      string             `yaml:"doc"`
	Initial  string             `yaml:"initial"`
	Memory   []core.VarDecl     `yaml:"memory"`
	Commands []core.CommandDecl `yaml:"commands"`
	Events   []core.EventDecl   `yaml:"events"`
	States   map[string]*fstate `yaml:"states"`
}

type fstate struct {
	Doc         string            `yaml:"doc"`
	OnEntry     []core.ActionSpec `yaml:"onEntry"`
	OnExit      []core.ActionSpec `yaml:"onExit"`
	Transitions []*ftransition    `yaml:"transitions"`
}

type ftransition struct {
	Event   string            `yaml:"event"`
	Target  string            `yaml:"target"`
	Guard   interface{}       `yaml:"guard"`
	Actions []core.ActionSpec `yaml:"actions"`
}

// Parse reads a cartridge definition from YAML and validates it.
func Parse(bs []byte) (*core.CartridgeDefinition, error) {
	var f file
	if err := yaml.Unmarshal(bs, &f); err != nil {
		return nil, err
	}

	def := &core.CartridgeDefinition{
		Name:     f.Name,
		Version:  f.Version,
		Doc:      f.Doc,
		Initial:  f.Initial,
		Memory:   f.Memory,
		Commands: f.Commands,
		Events:   f.Events,
		States:   make(map[string]*core.StateDef, len(f.States)),
	}

	for name, fs := range f.States {
		if fs == nil {
			fs = &fstate{}
		}
		s := &core.StateDef{
			Doc:     fs.Doc,
			OnEntry: fs.OnEntry,
			OnExit:  fs.OnExit,
		}
		for _, ft := range fs.Transitions {
			guard, err := ParseGuard(ft.Guard)
			if err != nil {
				return nil, fmt.Errorf("state %q: %w", name, err)
			}
			s.Transitions = append(s.Transitions, &core.TransitionDef{
				Event:   ft.Event,
				Target:  ft.Target,
				Guard:   guard,
				Actions: ft.Actions,
			})
		}
		def.States[name] = s
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}

// Read loads and parses a cartridge file.
func Read(filename string) (*core.CartridgeDefinition, error) {
	bs, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return Parse(bs)
}

// ParseGuard rebuilds a guard expression from its loosely-typed wire
// form.  nil means no guard.
func ParseGuard(x interface{}) (core.GuardExpression, error) {
	if x == nil {
		return nil, nil
	}
	m, is := x.(map[string]interface{})
	if !is {
		return nil, fmt.Errorf("bad guard (%T)", x)
	}

	negated, _ := m["negated"].(bool)

	switch t, _ := m["type"].(string); t {
	case "condition":
		left, is := m["left"].(string)
		if !is {
			return nil, errors.New("condition needs a left key")
		}
		op, is := m["op"].(string)
		if !is {
			return nil, errors.New("condition needs an op")
		}
		right, err := parseOperand(m)
		if err != nil {
			return nil, err
		}
		return &core.Condition{
			Left:    left,
			Op:      core.CompareOp(op),
			Right:   right,
			Negated: negated,
		}, nil

	case "group":
		op, _ := m["op"].(string)
		if op == "" {
			op = string(core.And)
		}
		if !core.KnownGroupOp(core.GroupOp(op)) {
			return nil, errors.New(`unknown group op "` + op + `"`)
		}
		children, is := m["children"].([]interface{})
		if !is || len(children) == 0 {
			return nil, errors.New("group needs children")
		}
		g := &core.Group{
			Op:      core.GroupOp(op),
			Negated: negated,
		}
		for _, c := range children {
			child, err := ParseGuard(c)
			if err != nil {
				return nil, err
			}
			g.Children = append(g.Children, child)
		}
		return g, nil

	default:
		return nil, fmt.Errorf("unknown guard type %q", t)
	}
}

// parseOperand reads a condition's right-hand side: either a scalar
// literal or a {var: name} reference.
func parseOperand(m map[string]interface{}) (core.Operand, error) {
	x, have := m["right"]
	if !have {
		return nil, errors.New("condition needs a right operand")
	}
	if ref, is := x.(map[string]interface{}); is {
		name, is := ref["var"].(string)
		if !is {
			return nil, errors.New("bad variable reference")
		}
		return &core.VariableRef{Key: name}, nil
	}
	return core.Literal{Value: x}, nil
}
