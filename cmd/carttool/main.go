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

// carttool works on cartridge files: graph exports, analysis, and
// documentation.
//
//	carttool dot FILE       Graphviz state graph
//	carttool mermaid FILE   Mermaid state diagram
//	carttool html FILE      HTML documentation page
//	carttool analyze FILE   structural analysis as JSON
//	carttool json FILE      the parsed definition as JSON
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cartos-io/cartos/cartfile"
	"github.com/cartos-io/cartos/tools"
)

func main() {
	if len(os.Args) < 3 {
		Usage()
		os.Exit(1)
	}

	var (
		verb     = os.Args[1]
		filename = os.Args[2]
	)

	def, err := cartfile.Read(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	switch verb {
	case "dot":
		err = tools.Dot(def, os.Stdout, nil)

	case "mermaid":
		err = tools.Mermaid(def, os.Stdout)

	case "html":
		err = tools.RenderCartridgePage(def, os.Stdout, nil, true)

	case "analyze":
		a := tools.Analyze(def)
		var bs []byte
		if bs, err = json.MarshalIndent(a, "", "  "); err == nil {
			fmt.Printf("%s\n", bs)
		}

	case "json":
		var bs []byte
		if bs, err = json.MarshalIndent(def, "", "  "); err == nil {
			fmt.Printf("%s\n", bs)
		}

	default:
		Usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func Usage() {
	fmt.Fprintf(os.Stderr, "usage: carttool dot|mermaid|html|analyze|json FILE\n")
}
