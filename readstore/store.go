// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// Package readstore supplies read bases and qualities to the consensus engine
// by dense integer ID.
package readstore

import (
	"github.com/pkg/errors"
)

// Mem is an in-memory read store.  Reads get IDs 0, 1, 2, ... in the order
// they are added, and can be looked up by name.
type Mem struct {
	names []string
	bases [][]byte
	quals [][]byte
	ids   map[string]uint32
}

// NewMem creates an empty store.
func NewMem() *Mem {
	return &Mem{ids: make(map[string]uint32)}
}

// Add stores a read and returns its ID.  The slices are retained.  Names must
// be unique.
func (m *Mem) Add(name string, bases, quals []byte) (uint32, error) {
	if len(bases) != len(quals) {
		return 0, errors.Errorf("read %s: %d bases but %d quals", name, len(bases), len(quals))
	}
	if _, ok := m.ids[name]; ok {
		return 0, errors.Errorf("duplicate read name %s", name)
	}
	id := uint32(len(m.names))
	m.names = append(m.names, name)
	m.bases = append(m.bases, bases)
	m.quals = append(m.quals, quals)
	m.ids[name] = id
	return id, nil
}

// Len returns the number of reads.
func (m *Mem) Len() int { return len(m.names) }

// FetchRead implements abacus.Fetcher.  The returned slices must not be
// modified.
func (m *Mem) FetchRead(id uint32) ([]byte, []byte, error) {
	if int(id) >= len(m.names) {
		return nil, nil, errors.Errorf("read %d not in store of %d reads", id, len(m.names))
	}
	return m.bases[id], m.quals[id], nil
}

// Name returns the name of read id, or "" if there is no such read.
func (m *Mem) Name(id uint32) string {
	if int(id) >= len(m.names) {
		return ""
	}
	return m.names[id]
}

// ID returns the ID of the read with the given name.
func (m *Mem) ID(name string) (uint32, bool) {
	id, ok := m.ids[name]
	return id, ok
}
