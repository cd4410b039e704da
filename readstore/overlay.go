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
package readstore

import (
	"github.com/grailbio/cns/abacus"
	"github.com/pkg/errors"
)

var errNoBacking = errors.New("read not in overlay, and no backing store")

// Overlay serves reads from a per-tig cache in front of a backing store.
// Reads can be put in the cache directly, for reads that are not in the
// store, or prefetched from it.  An Overlay is not safe for concurrent use;
// give each worker its own.
type Overlay struct {
	backing abacus.Fetcher
	cache   map[uint32]cachedRead
}

type cachedRead struct {
	bases, quals []byte
}

// NewOverlay creates an empty overlay over backing, which may be nil.
func NewOverlay(backing abacus.Fetcher) *Overlay {
	return &Overlay{backing: backing, cache: make(map[uint32]cachedRead)}
}

// Put caches a read under id, hiding any read with the same ID in the
// backing store.
func (o *Overlay) Put(id uint32, bases, quals []byte) {
	o.cache[id] = cachedRead{bases, quals}
}

// Prefetch copies the given reads from the backing store into the cache.
func (o *Overlay) Prefetch(ids []uint32) error {
	for _, id := range ids {
		if _, ok := o.cache[id]; ok {
			continue
		}
		if o.backing == nil {
			return errors.Wrapf(errNoBacking, "prefetch read %d", id)
		}
		bases, quals, err := o.backing.FetchRead(id)
		if err != nil {
			return err
		}
		o.cache[id] = cachedRead{bases, quals}
	}
	return nil
}

// Reset empties the cache.
func (o *Overlay) Reset() {
	for id := range o.cache {
		delete(o.cache, id)
	}
}

// FetchRead implements abacus.Fetcher.
func (o *Overlay) FetchRead(id uint32) ([]byte, []byte, error) {
	if r, ok := o.cache[id]; ok {
		return r.bases, r.quals, nil
	}
	if o.backing == nil {
		return nil, nil, errors.Wrapf(errNoBacking, "read %d", id)
	}
	return o.backing.FetchRead(id)
}
