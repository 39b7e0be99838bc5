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
	"context"
	"path/filepath"
	"testing"
)

func TestStorage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := NewStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Open(ctx); err != nil {
		t.Fatal(err)
	}
	defer s.Close(ctx)

	if err := s.WriteMount(ctx, &MountState{
		Namespace: "music",
		Cartridge: "jukebox",
		Priority:  10,
		State:     "idle",
		Context:   map[string]interface{}{"credit": 2},
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteMount(ctx, &MountState{
		Namespace: "door",
		Cartridge: "turnstile",
		Boot:      true,
		State:     "locked",
	}); err != nil {
		t.Fatal(err)
	}

	mss, err := s.Mounts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(mss) != 2 {
		t.Fatal(len(mss))
	}

	// Upsert, not append.
	if err := s.WriteMount(ctx, &MountState{
		Namespace: "music",
		Cartridge: "jukebox",
		Priority:  10,
		State:     "playing",
	}); err != nil {
		t.Fatal(err)
	}

	mss, err = s.Mounts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(mss) != 2 {
		t.Fatal(len(mss))
	}
	for _, ms := range mss {
		if ms.Namespace == "music" && ms.State != "playing" {
			t.Fatal(ms.State)
		}
	}

	if err := s.RemMount(ctx, "music"); err != nil {
		t.Fatal(err)
	}

	mss, err = s.Mounts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(mss) != 1 || mss[0].Namespace != "door" {
		t.Fatal(mss)
	}
}

func TestStorageNil(t *testing.T) {
	ctx := context.Background()

	var s *Storage
	if err := s.WriteMount(ctx, &MountState{Namespace: "x"}); err != nil {
		t.Fatal(err)
	}
	if mss, err := s.Mounts(ctx); err != nil || mss != nil {
		t.Fatal(mss, err)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatal(err)
	}
}
