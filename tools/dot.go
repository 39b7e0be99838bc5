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

package tools

// dot -Tpng cartridge.dot > cartridge.png

import (
	"fmt"
	"io"
	"strings"

	"github.com/cartos-io/cartos/core"

	"gopkg.in/yaml.v2"
)

// DotOpts controls Graphviz rendering.
type DotOpts struct {
	// ShowGuards labels guarded edges with the guard's YAML
	// representation.
	ShowGuards bool `json:"showGuards"`

	// InitialFill is the fill color for the initial state.
	InitialFill string `json:"initialFill,omitempty"`
}

// Dot writes a Graphviz representation of a cartridge's state graph.
func Dot(def *core.CartridgeDefinition, w io.Writer, opts *DotOpts) error {
	if opts == nil {
		opts = &DotOpts{
			ShowGuards:  true,
			InitialFill: "#bcf2db",
		}
	}

	fmt.Fprintf(w, "digraph %q {\n", def.Name)
	fmt.Fprintf(w, "  rankdir=LR;\n")

	for _, name := range sortedStates(def) {
		if name == def.Initial && opts.InitialFill != "" {
			fmt.Fprintf(w, "  %q [style=filled,fillcolor=%q];\n", name, opts.InitialFill)
		} else {
			fmt.Fprintf(w, "  %q;\n", name)
		}
	}

	for _, name := range sortedStates(def) {
		for _, t := range def.States[name].Transitions {
			label := t.Event
			if opts.ShowGuards && t.Guard != nil {
				label += "\n" + guardLabel(t.Guard)
			}
			fmt.Fprintf(w, "  %q -> %q [label=%q];\n", name, t.Target, label)
		}
	}

	fmt.Fprintf(w, "}\n")
	return nil
}

// guardLabel renders a guard compactly for graph edges.
func guardLabel(g core.GuardExpression) string {
	bs, err := yaml.Marshal(GuardDoc(g))
	if err != nil {
		return "?"
	}
	return strings.TrimSpace(string(bs))
}

// GuardDoc converts a guard expression back to its loosely-typed
// document form, for labels and HTML rendering.
func GuardDoc(g core.GuardExpression) interface{} {
	switch e := g.(type) {
	case *core.Condition:
		m := map[string]interface{}{
			"left": e.Left,
			"op":   string(e.Op),
		}
		switch r := e.Right.(type) {
		case core.Literal:
			m["right"] = r.Value
		case *core.VariableRef:
			m["right"] = map[string]interface{}{"var": r.Key}
		case core.VariableRef:
			m["right"] = map[string]interface{}{"var": r.Key}
		}
		if e.Negated {
			m["negated"] = true
		}
		return m
	case *core.Group:
		children := make([]interface{}, 0, len(e.Children))
		for _, c := range e.Children {
			children = append(children, GuardDoc(c))
		}
		m := map[string]interface{}{
			"op":       string(e.Op),
			"children": children,
		}
		if e.Negated {
			m["negated"] = true
		}
		return m
	}
	return nil
}
