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
	"testing"
	"time"
)

func TestTimersBasic(t *testing.T) {
	c := make(chan string)

	emitter := func(ctx context.Context, command string) error {
		c <- command
		return nil
	}

	ts := NewTimers(emitter)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	then := time.Now()

	if err := ts.Add(ctx, "1", "ping", "1s"); err != nil {
		t.Fatal(err)
	}

	if err := ts.Add(ctx, "1", "ping", "1s"); err != Exists {
		t.Fatal(err)
	}

	if x := <-c; x != "ping" {
		t.Fatal(x)
	}
	elapsed := time.Now().Sub(then)

	if 2*time.Second < elapsed {
		t.Fatal(elapsed)
	} else if elapsed < 990*time.Millisecond {
		t.Fatal(elapsed)
	}

	if err := ts.Add(ctx, "2", "ping", "1s"); err != nil {
		t.Fatal(err)
	}

	if err := ts.Rem(ctx, "2"); err != nil {
		t.Fatal(err)
	}

	if err := ts.Rem(ctx, "2"); err != NotFound {
		t.Fatal(err)
	}

	timeout := time.NewTimer(1200 * time.Millisecond)
	select {
	case x := <-c:
		t.Fatal(x)
	case <-timeout.C:
	}

}

func TestTimersIdReuse(t *testing.T) {
	c := make(chan string)

	emitter := func(ctx context.Context, command string) error {
		c <- command
		return nil
	}

	ts := NewTimers(emitter)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ts.Add(ctx, "1", "ping", "10ms"); err != nil {
		t.Fatal(err)
	}

	<-c

	if err := ts.Add(ctx, "1", "ping", "10ms"); err != nil {
		t.Fatal(err)
	}

	<-c
}

func TestTimersBadSpec(t *testing.T) {
	ts := NewTimers(func(ctx context.Context, command string) error {
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ts.Add(ctx, "1", "ping", "not a schedule"); err == nil {
		t.Fatal("wanted a parse error")
	}
}

func TestTimersCron(t *testing.T) {
	c := make(chan string)

	ts := NewTimers(func(ctx context.Context, command string) error {
		c <- command
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Fires at the top of every second.
	if err := ts.Add(ctx, "1", "tick", "* * * * * * *"); err != nil {
		t.Fatal(err)
	}

	timeout := time.NewTimer(3 * time.Second)
	for i := 0; i < 2; i++ {
		select {
		case <-timeout.C:
			t.Fatal("timeout")
		case x := <-c:
			if x != "tick" {
				t.Fatal(x)
			}
		}
	}

	if err := ts.Rem(ctx, "1"); err != nil {
		t.Fatal(err)
	}
}
