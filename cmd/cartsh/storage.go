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
	"encoding/json"
	"log"
	"time"

	. "github.com/cartos-io/cartos/util/testutil"

	bolt "go.etcd.io/bbolt"
)

var mountsBucket = []byte("mounts")

// MountState is the persisted record of one mount: where its
// cartridge came from, how it was mounted, and the last observed
// state and memory.
//
// The state and context are observational.  On restore, cartridges
// are mounted fresh from their files and start at their initial
// states; the execution core doesn't resume from snapshots.
type MountState struct {
	Namespace string `json:"namespace"`
	Cartridge string `json:"cartridge"`
	Priority  int    `json:"priority,omitempty"`
	Boot      bool   `json:"boot,omitempty"`

	State   string                 `json:"state,omitempty"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Storage persists mount records in a bbolt file.
type Storage struct {
	Debug    bool
	filename string
	db       *bolt.DB
}

func NewStorage(filename string) (*Storage, error) {
	return &Storage{
		filename: filename,
	}, nil
}

func (s *Storage) Open(ctx context.Context) error {
	opts := &bolt.Options{
		Timeout: time.Second,
	}

	db, err := bolt.Open(s.filename, 0644, opts)
	if err != nil {
		return err
	}
	s.db = db
	return nil
}

// Close is a no-op on a nil Storage so hosts can run without
// persistence.
func (s *Storage) Close(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Storage) logf(format string, args ...interface{}) {
	if s == nil {
		return
	}
	if s.Debug {
		log.Printf("BoltDB "+format, args...)
	}
}

// WriteMount upserts a mount record keyed by namespace.
func (s *Storage) WriteMount(ctx context.Context, ms *MountState) error {
	if s == nil {
		return nil
	}
	js, err := json.Marshal(ms)
	if err != nil {
		return err
	}
	s.logf("WriteMount %s %s", ms.Namespace, JS(ms))
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(mountsBucket)
		if err != nil {
			return err
		}
		return b.Put([]byte(ms.Namespace), js)
	})
}

// RemMount deletes a mount record.
func (s *Storage) RemMount(ctx context.Context, namespace string) error {
	if s == nil {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(mountsBucket)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(namespace))
	})
}

// Mounts returns all persisted mount records.
func (s *Storage) Mounts(ctx context.Context) ([]*MountState, error) {
	if s == nil {
		return nil, nil
	}
	mss := make([]*MountState, 0, 8)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(mountsBucket)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for ns, bs := c.First(); ns != nil; ns, bs = c.Next() {
			var ms MountState
			if err := json.Unmarshal(bs, &ms); err != nil {
				return err
			}
			ms.Namespace = string(ns)
			s.logf("Mounts %s", JS(ms))
			mss = append(mss, &ms)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logf("Mounts found %d records", len(mss))

	return mss, nil
}
