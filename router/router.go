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

// Package router maintains a set of mounted cartridges and resolves
// command strings to their engines, PATH-style.
//
// Bare commands walk the mounted namespaces in priority order and go
// to the first cartridge that declares the command, the way a shell
// resolves an executable.  "ns:cmd" goes straight at a namespace.
package router

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/cartos-io/cartos/catalog"
	"github.com/cartos-io/cartos/core"
)

// MountRecord describes one mounted cartridge.
type MountRecord struct {
	Cartridge string `json:"cartridge"`
	Namespace string `json:"namespace"`
	Priority  int    `json:"priority"`

	// Boot marks the default cartridge.  At most one record has it
	// set.
	Boot bool `json:"boot,omitempty"`
}

// Options configures a mount.
type Options struct {
	// Priority orders PATH resolution, ascending.  Ties resolve by
	// mount order.
	Priority int

	// AsBoot makes this mount the boot cartridge, clearing any
	// prior boot flag.
	AsBoot bool
}

// Mounted pairs a mount record with its running engine.
type Mounted struct {
	Record MountRecord
	Engine *core.Engine
}

// CommandResult is what Execute reports back to the caller.  The
// engine's outcome is surfaced verbatim: callers can distinguish a
// state change, a normal no-op (guard rejected / not applicable), and
// a resolution failure (which arrives as an error instead).
type CommandResult struct {
	Namespace string       `json:"namespace"`
	Command   string       `json:"command"`
	Event     string       `json:"event"`
	Outcome   core.Outcome `json:"outcome"`
	Previous  string       `json:"previous,omitempty"`
	Current   string       `json:"current"`
}

// Router owns the mount table.  Its lock covers the table and the
// catalog only; each engine serializes itself, so command dispatch
// does not hold the router's lock.
type Router struct {
	mu sync.Mutex

	// mounts in insertion order; the map backs namespace lookup.
	order   []*Mounted
	byNS    map[string]*Mounted
	catalog *catalog.Catalog

	executor core.ActionExecutor
}

// New creates an empty router.  The executor is handed to every
// engine the router creates.
func New(executor core.ActionExecutor) *Router {
	return &Router{
		byNS:     make(map[string]*Mounted, 8),
		catalog:  catalog.Build(nil),
		executor: executor,
	}
}

// Mount validates the definition, creates and starts an engine for
// it, and adds it to the mount table under the namespace.  The
// catalog is rebuilt before Mount returns.
//
// Mounting over an existing namespace is an error, never a silent
// overwrite.
func (r *Router) Mount(ctx context.Context, def *core.CartridgeDefinition, namespace string, opts Options) error {
	if namespace == "" || strings.Contains(namespace, ":") {
		return &BadNamespace{namespace}
	}

	engine, err := core.NewEngine(def, r.executor)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if _, have := r.byNS[namespace]; have {
		r.mu.Unlock()
		return &NamespaceAlreadyMounted{namespace}
	}

	if opts.AsBoot {
		for _, m := range r.order {
			m.Record.Boot = false
		}
	}

	m := &Mounted{
		Record: MountRecord{
			Cartridge: def.Name,
			Namespace: namespace,
			Priority:  opts.Priority,
			Boot:      opts.AsBoot,
		},
		Engine: engine,
	}
	r.order = append(r.order, m)
	r.byNS[namespace] = m
	r.rebuildCatalog()
	r.mu.Unlock()

	// Start outside the table lock: initial entry actions may be
	// slow, and subscribers may want to look at the router.
	if err := engine.Start(ctx); err != nil {
		r.mu.Lock()
		r.remove(namespace)
		r.mu.Unlock()
		engine.Stop()
		return err
	}
	return nil
}

// Unmount removes a namespace and disposes its instance's runtime
// state.  The catalog is rebuilt before Unmount returns.
func (r *Router) Unmount(namespace string) error {
	r.mu.Lock()
	m, have := r.byNS[namespace]
	if !have {
		r.mu.Unlock()
		return &NamespaceNotFound{namespace}
	}
	r.remove(namespace)
	r.mu.Unlock()

	m.Engine.Stop()
	return nil
}

// remove drops a namespace and rebuilds the catalog.  Caller holds
// r.mu.
func (r *Router) remove(namespace string) {
	delete(r.byNS, namespace)
	for i, m := range r.order {
		if m.Record.Namespace == namespace {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.rebuildCatalog()
}

// rebuildCatalog builds a fresh catalog from the current table.
// Caller holds r.mu.
func (r *Router) rebuildCatalog() {
	sources := make([]catalog.Source, 0, len(r.order))
	for _, m := range r.pathOrder() {
		sources = append(sources, catalog.Source{
			Namespace:  m.Record.Namespace,
			Definition: m.Engine.Definition(),
		})
	}
	r.catalog = catalog.Build(sources)
}

// pathOrder returns mounts by ascending priority, ties by insertion
// order.  Caller holds r.mu.
func (r *Router) pathOrder() []*Mounted {
	acc := make([]*Mounted, len(r.order))
	copy(acc, r.order)
	sort.SliceStable(acc, func(i, j int) bool {
		return acc[i].Record.Priority < acc[j].Record.Priority
	})
	return acc
}

// Path returns the mounted namespaces in resolution order.
func (r *Router) Path() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc := make([]string, 0, len(r.order))
	for _, m := range r.pathOrder() {
		acc = append(acc, m.Record.Namespace)
	}
	return acc
}

// Mounts returns a copy of the mount table in insertion order.
func (r *Router) Mounts() []MountRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc := make([]MountRecord, 0, len(r.order))
	for _, m := range r.order {
		acc = append(acc, m.Record)
	}
	return acc
}

// Boot returns the boot cartridge's namespace, if any.
func (r *Router) Boot() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.order {
		if m.Record.Boot {
			return m.Record.Namespace, true
		}
	}
	return "", false
}

// Execute resolves a command string and forwards it to the target
// engine as an event.
//
// A command is either namespace-qualified ("ns:cmd") or bare.  Bare
// commands resolve against the PATH.  Resolution errors are typed:
// NamespaceNotFound, UnknownCommand (which knows whether a namespace
// was named), and NamespaceGone when an unmount won the race between
// resolution and dispatch.
func (r *Router) Execute(ctx context.Context, command string) (*CommandResult, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil, &UnknownCommand{Command: command}
	}

	var nsWanted, name string
	switch i := strings.Index(command, ":"); {
	case i == 0:
		// ":cmd" is malformed, not a bare command.
		return nil, &UnknownCommand{Command: command}
	case 0 < i:
		nsWanted, name = command[:i], command[i+1:]
	default:
		name = command
	}

	r.mu.Lock()
	var entry catalog.Entry
	var have bool
	if nsWanted != "" {
		if _, mounted := r.byNS[nsWanted]; !mounted {
			r.mu.Unlock()
			return nil, &NamespaceNotFound{nsWanted}
		}
		if entry, have = r.catalog.Command(nsWanted, name); !have {
			r.mu.Unlock()
			return nil, &UnknownCommand{Namespace: nsWanted, Command: name}
		}
	} else {
		path := make([]string, 0, len(r.order))
		for _, m := range r.pathOrder() {
			path = append(path, m.Record.Namespace)
		}
		if entry, have = r.catalog.Resolve(path, name); !have {
			r.mu.Unlock()
			return nil, &UnknownCommand{Command: name}
		}
	}

	// Re-validate before dispatch: an unmount may not race us into
	// a disposed instance.
	m, still := r.byNS[entry.Namespace]
	r.mu.Unlock()
	if !still {
		return nil, &NamespaceGone{entry.Namespace}
	}

	res, err := m.Engine.Send(ctx, entry.Event)
	if err == core.Disposed {
		return nil, &NamespaceGone{entry.Namespace}
	}
	if err != nil {
		return nil, err
	}

	return &CommandResult{
		Namespace: entry.Namespace,
		Command:   entry.ID,
		Event:     entry.Event,
		Outcome:   res.Outcome,
		Previous:  res.Previous,
		Current:   res.Current,
	}, nil
}

// Subscribe registers a callback for one namespace's state
// notifications.
func (r *Router) Subscribe(namespace string, fn core.Subscriber) (func(), error) {
	r.mu.Lock()
	m, have := r.byNS[namespace]
	r.mu.Unlock()
	if !have {
		return nil, &NamespaceNotFound{namespace}
	}
	return m.Engine.Subscribe(fn), nil
}

// SearchCatalog searches the current catalog.
func (r *Router) SearchCatalog(query string) []catalog.Entry {
	r.mu.Lock()
	c := r.catalog
	r.mu.Unlock()
	return c.Search(query)
}

// Snapshot returns a namespace's current state and memory for
// consoles and persistence glue.
func (r *Router) Snapshot(namespace string) (string, map[string]interface{}, error) {
	r.mu.Lock()
	m, have := r.byNS[namespace]
	r.mu.Unlock()
	if !have {
		return "", nil, &NamespaceNotFound{namespace}
	}
	return m.Engine.Current(), m.Engine.SnapshotContext(), nil
}
