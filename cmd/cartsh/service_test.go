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

package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cartos-io/cartos/router"
)

func testService(ctx context.Context, t *testing.T) *Service {
	dbFile := filepath.Join(t.TempDir(), "test.db")

	s, err := NewService(ctx, "../../cartridges", dbFile, "")
	if err != nil {
		t.Fatal(err)
	}

	s.Emitted = make(chan interface{}, 8)
	s.Errors = make(chan interface{}, 8)

	return s
}

func eval(ctx context.Context, t *testing.T, s *Service, line string) string {
	out := bytes.NewBuffer(nil)
	if err := s.Eval(ctx, line, out); err != nil {
		t.Fatalf("eval %q: %s", line, err)
	}
	return out.String()
}

func TestServiceBasic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := testService(ctx, t)
	defer s.Close(ctx)

	eval(ctx, t, s, "mount music jukebox 10 boot")

	if got := eval(ctx, t, s, "path"); strings.TrimSpace(got) != "music" {
		t.Fatal(got)
	}

	eval(ctx, t, s, "deposit")
	eval(ctx, t, s, "pick")

	if got := eval(ctx, t, s, "play"); !strings.Contains(got, `"current":"playing"`) {
		t.Fatal(got)
	}

	if got := eval(ctx, t, s, "show music"); !strings.Contains(got, `"state":"playing"`) {
		t.Fatal(got)
	}

	if got := eval(ctx, t, s, "search play"); !strings.Contains(got, `"id":"play"`) {
		t.Fatal(got)
	}

	// Comments and blanks are ignored.
	eval(ctx, t, s, "# nothing to see")
	eval(ctx, t, s, "   ")

	out := bytes.NewBuffer(nil)
	if err := s.Eval(ctx, "nonesuch", out); err == nil {
		t.Fatal("wanted an unknown command error")
	}

	select {
	case <-s.Emitted:
	default:
		t.Fatal("nothing emitted")
	}
}

func TestServiceUnmount(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := testService(ctx, t)
	defer s.Close(ctx)

	eval(ctx, t, s, "mount door turnstile")
	eval(ctx, t, s, "coin")
	eval(ctx, t, s, "unmount door")

	if err := s.Eval(ctx, "coin", bytes.NewBuffer(nil)); err == nil {
		t.Fatal("wanted an unknown command error after unmount")
	}
}

func TestServiceRestore(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbFile := filepath.Join(t.TempDir(), "test.db")

	s, err := NewService(ctx, "../../cartridges", dbFile, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Mount(ctx, "music", "jukebox", router.Options{Priority: 5}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatal(err)
	}

	s, err = NewService(ctx, "../../cartridges", dbFile, "")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close(ctx)

	if err := s.Restore(ctx); err != nil {
		t.Fatal(err)
	}

	state, _, err := s.Router.Snapshot("music")
	if err != nil {
		t.Fatal(err)
	}
	if state != "idle" {
		t.Fatal(state)
	}
}
