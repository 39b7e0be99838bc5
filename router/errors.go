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

// Resolution and mount-table errors.  These are the router's half of
// the error taxonomy; the engine-side errors live in package core.

// NamespaceAlreadyMounted occurs when Mount is given a namespace
// that's already in the table.
type NamespaceAlreadyMounted struct {
	Namespace string
}

func (e *NamespaceAlreadyMounted) Error() string {
	return `namespace "` + e.Namespace + `" already mounted`
}

// NamespaceNotFound occurs when a qualified command, Unmount, or
// Subscribe names a namespace that isn't mounted.
type NamespaceNotFound struct {
	Namespace string
}

func (e *NamespaceNotFound) Error() string {
	return `namespace "` + e.Namespace + `" not found`
}

// NamespaceGone occurs when an unmount raced a command between
// resolution and dispatch.
type NamespaceGone struct {
	Namespace string
}

func (e *NamespaceGone) Error() string {
	return `namespace "` + e.Namespace + `" no longer mounted`
}

// UnknownCommand occurs when no mounted cartridge (or the named
// namespace) declares the command.
type UnknownCommand struct {
	// Namespace is empty for a bare command that missed the whole
	// PATH.
	Namespace string
	Command   string
}

func (e *UnknownCommand) Error() string {
	if e.Namespace == "" {
		return `unknown command "` + e.Command + `"`
	}
	return `command "` + e.Command + `" not found in namespace "` + e.Namespace + `"`
}

// BadNamespace occurs when a mount namespace is empty or contains a
// colon (which would collide with command qualification).
type BadNamespace struct {
	Namespace string
}

func (e *BadNamespace) Error() string {
	return `bad namespace "` + e.Namespace + `"`
}
