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

import (
	"fmt"
	"io"
	"strings"

	"github.com/cartos-io/cartos/core"
)

// Mermaid makes a Mermaid (https://mermaidjs.github.io/) state
// diagram for the cartridge's graph.
func Mermaid(def *core.CartridgeDefinition, w io.Writer) error {
	fmt.Fprintf(w, "stateDiagram-v2\n")
	fmt.Fprintf(w, "  [*] --> %s\n", mermaidID(def.Initial))

	for _, name := range sortedStates(def) {
		for _, t := range def.States[name].Transitions {
			label := t.Event
			if t.Guard != nil {
				label += " [guarded]"
			}
			fmt.Fprintf(w, "  %s --> %s : %s\n",
				mermaidID(name), mermaidID(t.Target), label)
		}
	}

	return nil
}

// mermaidID keeps state ids inside Mermaid's identifier syntax.
func mermaidID(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z', '0' <= r && r <= '9', r == '_':
			return r
		}
		return '_'
	}, name)
}
