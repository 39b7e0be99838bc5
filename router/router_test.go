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

package router

import (
	"context"
	"errors"
	"testing"

	"github.com/cartos-io/cartos/core"
)

// pingDef makes a two-state cartridge that answers "ping".
func pingDef(name string) *core.CartridgeDefinition {
	return &core.CartridgeDefinition{
		Name:    name,
		Initial: "idle",
		Commands: []core.CommandDecl{
			{ID: "ping", Doc: "bounce between states", Event: "PING"},
		},
		States: map[string]*core.StateDef{
			"idle": {
				Transitions: []*core.TransitionDef{
					{Event: "PING", Target: "ponged"},
				},
			},
			"ponged": {
				Transitions: []*core.TransitionDef{
					{Event: "PING", Target: "idle"},
				},
			},
		},
	}
}

func mount(t *testing.T, r *Router, def *core.CartridgeDefinition, ns string, opts Options) {
	t.Helper()
	if err := r.Mount(context.Background(), def, ns, opts); err != nil {
		t.Fatal(err)
	}
}

func TestMountDuplicateNamespace(t *testing.T) {
	r := New(nil)
	mount(t, r, pingDef("a"), "a", Options{})

	err := r.Mount(context.Background(), pingDef("b"), "a", Options{})
	var dup *NamespaceAlreadyMounted
	if !errors.As(err, &dup) {
		t.Fatalf("got %v", err)
	}
}

func TestMountRejectsBadDefinition(t *testing.T) {
	def := pingDef("broken")
	def.States["idle"].Transitions[0].Target = "nowhere"

	r := New(nil)
	err := r.Mount(context.Background(), def, "ns", Options{})
	var undeclared *core.TargetStateUndeclared
	if !errors.As(err, &undeclared) {
		t.Fatalf("got %v", err)
	}
	if len(r.Path()) != 0 {
		t.Fatal("failed mount left residue")
	}
}

func TestBootFlagUnique(t *testing.T) {
	r := New(nil)
	mount(t, r, pingDef("a"), "a", Options{AsBoot: true})
	mount(t, r, pingDef("b"), "b", Options{Priority: 1, AsBoot: true})

	if ns, have := r.Boot(); !have || ns != "b" {
		t.Fatalf("boot = %q", ns)
	}
	boots := 0
	for _, m := range r.Mounts() {
		if m.Boot {
			boots++
		}
	}
	if boots != 1 {
		t.Fatalf("%d boot records", boots)
	}
}

func TestPathOrdering(t *testing.T) {
	r := New(nil)
	mount(t, r, pingDef("c"), "c", Options{Priority: 5})
	mount(t, r, pingDef("a"), "a", Options{Priority: 0})
	mount(t, r, pingDef("b"), "b", Options{Priority: 0})

	want := []string{"a", "b", "c"} // priority asc, ties by mount order
	path := r.Path()
	if len(path) != len(want) {
		t.Fatalf("path %v", path)
	}
	for i, ns := range want {
		if path[i] != ns {
			t.Fatalf("path %v", path)
		}
	}

	// Idempotent without intervening mount/unmount.
	again := r.Path()
	for i := range path {
		if again[i] != path[i] {
			t.Fatalf("path changed: %v then %v", path, again)
		}
	}
}

func TestExecuteBareCommandWalksPath(t *testing.T) {
	r := New(nil)
	mount(t, r, pingDef("a"), "a", Options{Priority: 0, AsBoot: true})
	mount(t, r, pingDef("b"), "b", Options{Priority: 1})

	res, err := r.Execute(context.Background(), "ping")
	if err != nil {
		t.Fatal(err)
	}
	if res.Namespace != "a" {
		t.Fatalf("resolved to %s", res.Namespace)
	}
	if res.Outcome != core.Transitioned || res.Current != "ponged" {
		t.Fatalf("got %+v", res)
	}

	// b was untouched.
	if state, _, _ := r.Snapshot("b"); state != "idle" {
		t.Fatalf("b moved to %s", state)
	}
}

func TestExecuteQualified(t *testing.T) {
	r := New(nil)
	mount(t, r, pingDef("a"), "a", Options{})
	mount(t, r, pingDef("b"), "b", Options{Priority: 1})

	res, err := r.Execute(context.Background(), "b:ping")
	if err != nil {
		t.Fatal(err)
	}
	if res.Namespace != "b" || res.Current != "ponged" {
		t.Fatalf("got %+v", res)
	}
}

func TestExecuteResolutionErrors(t *testing.T) {
	r := New(nil)
	mount(t, r, pingDef("a"), "a", Options{})
	ctx := context.Background()

	t.Run("namespace not found", func(t *testing.T) {
		_, err := r.Execute(ctx, "z:ping")
		var nf *NamespaceNotFound
		if !errors.As(err, &nf) || nf.Namespace != "z" {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("command not found in namespace", func(t *testing.T) {
		_, err := r.Execute(ctx, "a:warble")
		var uc *UnknownCommand
		if !errors.As(err, &uc) || uc.Namespace != "a" {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("bare command misses whole path", func(t *testing.T) {
		_, err := r.Execute(ctx, "warble")
		var uc *UnknownCommand
		if !errors.As(err, &uc) || uc.Namespace != "" {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("leading colon is malformed", func(t *testing.T) {
		// ":ping" must not fall back to bare-name resolution.
		_, err := r.Execute(ctx, ":ping")
		var uc *UnknownCommand
		if !errors.As(err, &uc) || uc.Command != ":ping" {
			t.Fatalf("got %v", err)
		}
	})
}

func TestExecuteSurfacesEngineOutcomes(t *testing.T) {
	def := pingDef("guarded")
	def.Memory = []core.VarDecl{{Name: "count", Type: core.VarNumber, Default: float64(5)}}
	def.States["idle"].Transitions[0].Guard = &core.Condition{
		Left: "count", Op: core.Lt, Right: core.Literal{Value: 3},
	}

	r := New(nil)
	mount(t, r, def, "g", Options{})

	res, err := r.Execute(context.Background(), "g:ping")
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != core.GuardRejected {
		t.Fatalf("got %v", res.Outcome)
	}
	if res.Current != "idle" {
		t.Fatalf("state moved to %s", res.Current)
	}
}

func TestUnmountRemovesCatalogResidue(t *testing.T) {
	a := pingDef("a")
	a.Commands = append(a.Commands, core.CommandDecl{ID: "only-a"})

	r := New(nil)
	mount(t, r, a, "ns", Options{})
	if err := r.Unmount("ns"); err != nil {
		t.Fatal(err)
	}

	b := pingDef("b")
	b.Commands = append(b.Commands, core.CommandDecl{ID: "only-b"})
	mount(t, r, b, "ns", Options{})

	for _, e := range r.SearchCatalog("") {
		if e.Cartridge == "a" {
			t.Fatalf("residue from a: %+v", e)
		}
	}
	if got := r.SearchCatalog("only-b"); len(got) != 1 {
		t.Fatalf("got %v", got)
	}
	if got := r.SearchCatalog("only-a"); len(got) != 0 {
		t.Fatalf("got %v", got)
	}
}

func TestUnmountDisposesInstance(t *testing.T) {
	r := New(nil)
	mount(t, r, pingDef("a"), "a", Options{})

	if err := r.Unmount("a"); err != nil {
		t.Fatal(err)
	}
	if err := r.Unmount("a"); err == nil {
		t.Fatal("second unmount should fail")
	}
	_, err := r.Execute(context.Background(), "a:ping")
	var nf *NamespaceNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("got %v", err)
	}
}

func TestSubscribeThroughRouter(t *testing.T) {
	r := New(nil)
	mount(t, r, pingDef("a"), "a", Options{})

	var ns []core.Notification
	unsub, err := r.Subscribe("a", func(n core.Notification) {
		ns = append(ns, n)
	})
	if err != nil {
		t.Fatal(err)
	}
	defer unsub()

	if _, err = r.Execute(context.Background(), "ping"); err != nil {
		t.Fatal(err)
	}
	if len(ns) != 1 || ns[0].Previous != "idle" || ns[0].Current != "ponged" {
		t.Fatalf("got %+v", ns)
	}
}

func TestRouterLifecycleEmptyActiveEmpty(t *testing.T) {
	r := New(nil)
	if len(r.Path()) != 0 {
		t.Fatal("unexpectedly non-empty")
	}
	mount(t, r, pingDef("a"), "a", Options{})
	mount(t, r, pingDef("b"), "b", Options{Priority: 1})
	if err := r.Unmount("a"); err != nil {
		t.Fatal(err)
	}
	if err := r.Unmount("b"); err != nil {
		t.Fatal(err)
	}
	if len(r.Path()) != 0 || len(r.SearchCatalog("")) != 0 {
		t.Fatal("router did not return to empty")
	}
	// Still usable afterward.
	mount(t, r, pingDef("c"), "c", Options{})
	if len(r.Path()) != 1 {
		t.Fatal("remount failed")
	}
}
