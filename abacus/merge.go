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

// MergeColumns compacts the spine and returns the number of columns removed.
//
// Columns holding only gap beads are dropped first.  Then each pair of
// adjacent columns crossed by the same reads is folded into one when no read
// has a base in both and all their bases agree: every read keeps its base
// (or its gap) in the left column and the right column is removed.  Merged
// columns are recalled with the given quality mode.  The number of non-gap
// beads never changes.
func (a *Abacus) MergeColumns(highQuality bool) int {
	removed := 0
	for c := a.firstCol; c != NoColumn; {
		next := a.cols[c].next
		if a.allGaps(c) {
			for len(a.cols[c].beads) > 0 {
				a.deleteBead(a.cols[c].beads[len(a.cols[c].beads)-1])
			}
			a.removeColumn(c)
			removed++
		}
		c = next
	}
	for c := a.firstCol; c != NoColumn; {
		r := a.cols[c].next
		if r != NoColumn && a.mergeable(c, r) {
			a.mergeInto(c, r)
			a.baseCall(c, highQuality)
			removed++
			// c may now merge with its new neighbor.
			continue
		}
		c = r
	}
	a.RefreshColumns()
	return removed
}

func (a *Abacus) allGaps(c ColumnID) bool {
	for _, b := range a.cols[c].beads {
		if !a.beads[b].isGap() {
			return false
		}
	}
	return true
}

// mergeable reports whether columns l and r, l right before r, can be folded
// into one column.
func (a *Abacus) mergeable(l, r ColumnID) bool {
	lc, rc := &a.cols[l], &a.cols[r]
	if len(lc.beads) != len(rc.beads) || len(lc.beads) == 0 {
		return false
	}
	var sym byte
	vote := func(b *bead) bool {
		if b.isGap() {
			return true
		}
		if sym == 0 {
			sym = b.base
		}
		return b.base == sym
	}
	for _, b := range lc.beads {
		lb := &a.beads[b]
		if lb.next == noBead {
			return false
		}
		rb := &a.beads[lb.next]
		if rb.col != r {
			return false
		}
		if !lb.isGap() && !rb.isGap() {
			return false
		}
		if !vote(lb) || !vote(rb) {
			return false
		}
	}
	return true
}

// mergeInto moves r's bases into l and removes r.  mergeable(l, r) must hold.
// A base bead in r takes the slot of its read's gap bead in l, keeping its
// chain links; the gap bead is dropped.
func (a *Abacus) mergeInto(l, r ColumnID) {
	for _, b := range a.cols[l].beads {
		rb := a.beads[b].next
		if a.beads[b].isGap() && !a.beads[rb].isGap() {
			a.replaceBead(b, rb)
			continue
		}
		a.deleteBead(rb)
	}
	a.removeColumn(r)
}
