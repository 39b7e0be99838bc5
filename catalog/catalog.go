// Package catalog builds a static index of the commands and events
// declared by mounted cartridges.
//
// A catalog is rebuilt in full whenever a router's mount table
// changes; it is never patched incrementally, so a stale entry can't
// survive an unmount.
package catalog

import (
	"strings"

	"github.com/cartos-io/cartos/core"
)

// Kind says whether an entry indexes a command or an event.
type Kind string

const (
	KindCommand Kind = "command"
	KindEvent   Kind = "event"
)

// Entry is one indexed command or event.
type Entry struct {
	Cartridge string   `json:"cartridge"`
	Namespace string   `json:"namespace"`
	ID        string   `json:"id"`
	Kind      Kind     `json:"kind"`
	Doc       string   `json:"doc,omitempty"`
	Aliases   []string `json:"aliases,omitempty"`

	// Event is the event a command entry resolves to.
	Event string `json:"event,omitempty"`
}

// Source is one mounted cartridge's contribution to a catalog.
type Source struct {
	Namespace  string
	Definition *core.CartridgeDefinition
}

// Catalog is an immutable index.  Entries keep per-cartridge then
// per-entry declaration order.
type Catalog struct {
	entries []Entry
}

// Build walks the mounted cartridges in mount order and indexes their
// declared commands and events.
func Build(sources []Source) *Catalog {
	var entries []Entry
	for _, src := range sources {
		def := src.Definition
		for i := range def.Commands {
			c := &def.Commands[i]
			entries = append(entries, Entry{
				Cartridge: def.Name,
				Namespace: src.Namespace,
				ID:        c.ID,
				Kind:      KindCommand,
				Doc:       c.Doc,
				Aliases:   c.Aliases,
				Event:     c.EventName(),
			})
		}
		for i := range def.Events {
			ev := &def.Events[i]
			entries = append(entries, Entry{
				Cartridge: def.Name,
				Namespace: src.Namespace,
				ID:        ev.ID,
				Kind:      KindEvent,
				Doc:       ev.Doc,
				Aliases:   ev.Aliases,
			})
		}
	}
	return &Catalog{entries: entries}
}

// Entries returns all entries in declaration order.
func (c *Catalog) Entries() []Entry {
	acc := make([]Entry, len(c.entries))
	copy(acc, c.entries)
	return acc
}

// Search finds entries whose id, doc, or aliases contain the query,
// case-insensitively.  An empty query returns the full catalog.  The
// result preserves declaration order; there is no relevance ranking.
func (c *Catalog) Search(query string) []Entry {
	if query == "" {
		return c.Entries()
	}
	q := strings.ToLower(query)
	var acc []Entry
	for _, e := range c.entries {
		if matches(&e, q) {
			acc = append(acc, e)
		}
	}
	return acc
}

func matches(e *Entry, q string) bool {
	if strings.Contains(strings.ToLower(e.ID), q) {
		return true
	}
	if strings.Contains(strings.ToLower(e.Doc), q) {
		return true
	}
	for _, a := range e.Aliases {
		if strings.Contains(strings.ToLower(a), q) {
			return true
		}
	}
	return false
}

// Command finds the command entry (exact id or alias match) declared
// under a namespace.
func (c *Catalog) Command(namespace, id string) (Entry, bool) {
	for _, e := range c.entries {
		if e.Kind != KindCommand || e.Namespace != namespace {
			continue
		}
		if commandNamed(&e, id) {
			return e, true
		}
	}
	return Entry{}, false
}

// Resolve walks the given namespaces in order and returns the first
// that declares the command.  This is PATH-style resolution for bare
// commands.
func (c *Catalog) Resolve(path []string, id string) (Entry, bool) {
	for _, ns := range path {
		if e, have := c.Command(ns, id); have {
			return e, true
		}
	}
	return Entry{}, false
}

func commandNamed(e *Entry, id string) bool {
	if e.ID == id {
		return true
	}
	for _, a := range e.Aliases {
		if a == id {
			return true
		}
	}
	return false
}
