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
package abacus

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

// Check verifies the structure of the multialignment: the spine is a proper
// doubly linked list, every bead sits in the slot of the column it names, and
// every aligned read has exactly one bead in each column from its first to
// its last, with its bases in order and no gap at either end.  A non-nil
// error has kind errors.Integrity; the Abacus must not be used after that.
func (a *Abacus) Check() error {
	var (
		n         int
		prev      = NoColumn
		nColBeads int
	)
	for c := a.firstCol; c != NoColumn; c = a.cols[c].next {
		col := &a.cols[c]
		if col.dead {
			return errors.E(errors.Integrity, fmt.Sprintf("abacus: removed column %d is on the spine", c))
		}
		if col.prev != prev {
			return errors.E(errors.Integrity, fmt.Sprintf("abacus: column %d links back to %d, not %d", c, col.prev, prev))
		}
		for i, b := range col.beads {
			if bd := &a.beads[b]; bd.col != c || int(bd.link) != i {
				return errors.E(errors.Integrity, fmt.Sprintf("abacus: bead in column %d slot %d claims column %d slot %d", c, i, bd.col, bd.link))
			}
		}
		nColBeads += len(col.beads)
		prev = c
		n++
		if n > len(a.cols) {
			return errors.E(errors.Integrity, "abacus: spine has a cycle")
		}
	}
	if prev != a.lastCol || n != a.nLive {
		return errors.E(errors.Integrity, fmt.Sprintf("abacus: spine ends at %d after %d columns; want %d after %d", prev, n, a.lastCol, a.nLive))
	}

	nChainBeads := 0
	for i := range a.reads {
		r := &a.reads[i]
		if r.first == noBead {
			if r.last != noBead {
				return errors.E(errors.Integrity, fmt.Sprintf("abacus: read %d has a last bead but no first", i))
			}
			continue
		}
		if a.beads[r.first].isGap() || a.beads[r.last].isGap() {
			return errors.E(errors.Integrity, fmt.Sprintf("abacus: read %d starts or ends with a gap", i))
		}
		nBases := 0
		pb := noBead
		for b := r.first; b != noBead; b = a.beads[b].next {
			bd := &a.beads[b]
			if int(bd.seq) != i || bd.prev != pb || bd.col == NoColumn {
				return errors.E(errors.Integrity, fmt.Sprintf("abacus: read %d chain is broken at column %d", i, bd.col))
			}
			if pb != noBead && a.cols[a.beads[pb].col].next != bd.col {
				return errors.E(errors.Integrity, fmt.Sprintf("abacus: read %d skips from column %d to %d", i, a.beads[pb].col, bd.col))
			}
			if !bd.isGap() {
				if nBases >= r.Len() || r.Bases[nBases] != bd.base {
					return errors.E(errors.Integrity, fmt.Sprintf("abacus: read %d base %d differs from its bead", i, nBases))
				}
				nBases++
			}
			nChainBeads++
			if nChainBeads > nColBeads {
				return errors.E(errors.Integrity, fmt.Sprintf("abacus: read %d chain has a cycle", i))
			}
			pb = b
		}
		if pb != r.last {
			return errors.E(errors.Integrity, fmt.Sprintf("abacus: read %d chain does not end at its last bead", i))
		}
		if nBases != r.Len() {
			return errors.E(errors.Integrity, fmt.Sprintf("abacus: read %d has %d base beads; want %d", i, nBases, r.Len()))
		}
	}
	if nChainBeads != nColBeads {
		return errors.E(errors.Integrity, fmt.Sprintf("abacus: columns hold %d beads but read chains hold %d", nColBeads, nChainBeads))
	}
	return nil
}
