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
	"encoding/json"
	"fmt"
	"io"

	"github.com/cartos-io/cartos/cartfile"
	"github.com/cartos-io/cartos/core"

	md "github.com/russross/blackfriday/v2"
)

// RenderCartridgeHTML writes an HTML documentation fragment for a
// cartridge: its doc (as Markdown), memory schema, commands, and
// states with transitions.
func RenderCartridgeHTML(def *core.CartridgeDefinition, out io.Writer) error {
	f := func(format string, args ...interface{}) {
		fmt.Fprintf(out, format+"\n", args...)
	}

	f(`<h1 class="cartName">%s <span class="cartVersion">%s</span></h1>`, def.Name, def.Version)
	if def.Doc != "" {
		f(`<div class="cartDoc doc">%s</div>`, md.Run([]byte(def.Doc)))
	}

	if 0 < len(def.Memory) {
		f(`<div class="memory"><h2>Memory</h2><table>`)
		for i := range def.Memory {
			d := &def.Memory[i]
			f(`<tr><td><code>%s</code></td><td>%s</td><td><code>%s</code></td></tr>`,
				d.Name, d.Type, js(d.Default))
		}
		f(`</table></div>`)
	}

	if 0 < len(def.Commands) {
		f(`<div class="commands"><h2>Commands</h2><table>`)
		for i := range def.Commands {
			c := &def.Commands[i]
			f(`<tr><td><code>%s</code></td><td>%s</td><td><code>%s</code></td></tr>`,
				c.ID, c.Doc, c.EventName())
		}
		f(`</table></div>`)
	}

	f(`<div class="states"><h2>States</h2><table>`)
	fn := func(id string, s *core.StateDef) {
		f(`<tr class="state"><td><span id="%s" class="stateName">%s</span></td><td>`, id, id)
		if s.Doc != "" {
			f(`<div class="stateDoc doc">%s</div>`, md.Run([]byte(s.Doc)))
		}
		for _, t := range s.Transitions {
			f(`<div class="transition">`)
			f(`<div>event <code>%s</code></div>`, t.Event)
			if t.Guard != nil {
				f(`<div>guard <code>%s</code></div>`, js(GuardDoc(t.Guard)))
			}
			f(`<div>target <a href="#%s"><code>%s</code></a></div>`, t.Target, t.Target)
			f(`</div>`)
		}
		f(`</td></tr>`)
	}
	if s, has := def.States[def.Initial]; has {
		fn(def.Initial, s)
	}
	for _, id := range sortedStates(def) {
		if id == def.Initial {
			continue
		}
		fn(id, def.States[id])
	}
	f(`</table></div>`)

	return nil
}

// RenderCartridgePage wraps RenderCartridgeHTML in a complete HTML
// page.  When includeGraph is true, the page inlines a Mermaid state
// diagram rendered client-side.
func RenderCartridgePage(def *core.CartridgeDefinition, out io.Writer, cssFiles []string, includeGraph bool) error {
	if cssFiles == nil {
		cssFiles = []string{"/static/cartridge.css"}
	}

	fmt.Fprintf(out, `<!DOCTYPE html>
<meta charset="utf-8">
<html>
  <head>
  <title>%s</title>
`, def.Name)

	if includeGraph {
		fmt.Fprintf(out, `
  <script src="https://cdn.jsdelivr.net/npm/mermaid/dist/mermaid.min.js"></script>
  <script>mermaid.initialize({startOnLoad:true});</script>
`)
	}

	for _, cssFile := range cssFiles {
		fmt.Fprintf(out, "  <link href=\"%s\" rel=\"stylesheet\">\n", cssFile)
	}

	fmt.Fprintf(out, `
  </head>
  <body>
`)

	if includeGraph {
		fmt.Fprintf(out, `<div class="mermaid">`+"\n")
		if err := Mermaid(def, out); err != nil {
			return err
		}
		fmt.Fprintf(out, `</div>`+"\n")
	}

	if err := RenderCartridgeHTML(def, out); err != nil {
		return err
	}

	fmt.Fprintf(out, `
  </body>
</html>
`)

	return nil
}

// ReadAndRenderCartridgePage parses the cartridge file and renders
// its documentation page.
func ReadAndRenderCartridgePage(filename string, cssFiles []string, out io.Writer, includeGraph bool) error {
	def, err := cartfile.Read(filename)
	if err != nil {
		return err
	}
	return RenderCartridgePage(def, out, cssFiles, includeGraph)
}

func js(x interface{}) string {
	bs, err := json.Marshal(&x)
	if err != nil {
		return fmt.Sprintf("%#v", x)
	}
	return string(bs)
}
