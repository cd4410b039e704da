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

	"github.com/biogo/store/llrb"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

// ColumnID identifies a column in the Abacus' column arena.  IDs stay valid
// until the column is removed by MergeColumns.
type ColumnID int32

// NoColumn is the nil ColumnID.
const NoColumn ColumnID = -1

// column is one position of the multi-alignment.
type column struct {
	beads    []beadIdx // one per read crossing the column, insertion order
	prev     ColumnID
	next     ColumnID
	position int32 // spine index, valid after RefreshColumns
	base     byte  // consensus call
	qual     byte
	dead     bool
}

func (a *Abacus) newColumn() ColumnID {
	c := ColumnID(len(a.cols))
	a.cols = append(a.cols, column{
		prev:     NoColumn,
		next:     NoColumn,
		position: -1,
		base:     Gap,
	})
	a.nLive++
	return c
}

// spliceColumn creates an empty column between left and right, either of
// which may be NoColumn at the spine ends, and gives every read crossing
// from left to right a gap bead in it.
func (a *Abacus) spliceColumn(left, right ColumnID) ColumnID {
	c := a.newColumn()
	col := &a.cols[c]
	col.prev, col.next = left, right
	if left != NoColumn {
		a.cols[left].next = c
		if right != NoColumn {
			// Reads crossing the insertion point get a gap.  Only c grows
			// here, so ranging over left's beads is safe.
			for _, lb := range a.cols[left].beads {
				if next := a.beads[lb].next; next != noBead && a.beads[next].col == right {
					a.insertGapAfter(c, lb)
				}
			}
		}
	} else {
		a.firstCol = c
	}
	if right != NoColumn {
		a.cols[right].prev = c
	} else {
		a.lastCol = c
	}
	return c
}

// insertColumnBefore splices a new column right before c; c == NoColumn
// appends at the end of the spine.
func (a *Abacus) insertColumnBefore(c ColumnID) ColumnID {
	left := a.lastCol
	if c != NoColumn {
		left = a.cols[c].prev
	}
	return a.spliceColumn(left, c)
}

// insertColumnAfter splices a new column right after c.
func (a *Abacus) insertColumnAfter(c ColumnID) ColumnID {
	return a.spliceColumn(c, a.cols[c].next)
}

// removeColumn unlinks an empty column from the spine.
func (a *Abacus) removeColumn(c ColumnID) {
	col := &a.cols[c]
	if len(col.beads) != 0 {
		log.Panicf("abacus: removing column %d with %d beads", c, len(col.beads))
	}
	if col.prev != NoColumn {
		a.cols[col.prev].next = col.next
	} else {
		a.firstCol = col.next
	}
	if col.next != NoColumn {
		a.cols[col.next].prev = col.prev
	} else {
		a.lastCol = col.prev
	}
	col.prev, col.next = NoColumn, NoColumn
	col.dead = true
	a.nLive--
}

// RefreshColumns renumbers the spine, rebuilds the column index and resizes
// the consensus buffers.  It must be called after any structural change and
// before GetColumn, the exports, or Column lookups.
func (a *Abacus) RefreshColumns() {
	a.columns = a.columns[:0]
	for c := a.firstCol; c != NoColumn; c = a.cols[c].next {
		a.cols[c].position = int32(len(a.columns))
		a.columns = append(a.columns, c)
	}
	n := len(a.columns)
	if cap(a.cnsBases) < n {
		a.cnsBases = make([]byte, n)
		a.cnsQuals = make([]byte, n)
	}
	a.cnsBases = a.cnsBases[:n]
	a.cnsQuals = a.cnsQuals[:n]
	for i, c := range a.columns {
		a.cnsBases[i] = a.cols[c].base
		a.cnsQuals[i] = a.cols[c].qual
	}

	a.readToFBead = a.readToFBead[:0]
	a.readToLBead = a.readToLBead[:0]
	a.fbeadToRead = llrb.Tree{}
	a.lbeadToRead = llrb.Tree{}
	for i := range a.reads {
		f := a.beadID(a.reads[i].first)
		l := a.beadID(a.reads[i].last)
		a.readToFBead = append(a.readToFBead, f)
		a.readToLBead = append(a.readToLBead, l)
		if f != NoBead {
			a.fbeadToRead.Insert(beadKey{f, i})
			a.lbeadToRead.Insert(beadKey{l, i})
		}
	}
}

// NumColumns returns the number of columns as of the last RefreshColumns.
func (a *Abacus) NumColumns() int { return len(a.columns) }

// Column returns the ID of the column at spine position pos.
func (a *Abacus) Column(pos int) (ColumnID, error) {
	if pos < 0 || pos >= len(a.columns) {
		return NoColumn, errors.E(errors.Invalid, fmt.Sprintf("abacus: column %d out of range; have %d columns", pos, len(a.columns)))
	}
	return a.columns[pos], nil
}

// FirstColumn returns the first column of the spine, or NoColumn.
func (a *Abacus) FirstColumn() ColumnID { return a.firstCol }

// LastColumn returns the last column of the spine, or NoColumn.
func (a *Abacus) LastColumn() ColumnID { return a.lastCol }

// ColumnDepth returns the number of beads in column c.
func (a *Abacus) ColumnDepth(c ColumnID) int { return len(a.cols[c].beads) }

// ColumnBases returns the beads' bases of column c in insertion order.
func (a *Abacus) ColumnBases(c ColumnID) []byte {
	col := &a.cols[c]
	out := make([]byte, len(col.beads))
	for i, b := range col.beads {
		out[i] = a.beads[b].base
	}
	return out
}

// ReadFirstBead returns the handle of read seqIdx's first bead as of the last
// RefreshColumns.
func (a *Abacus) ReadFirstBead(seqIdx int) BeadID { return a.readToFBead[seqIdx] }

// ReadLastBead returns the handle of read seqIdx's last bead as of the last
// RefreshColumns.
func (a *Abacus) ReadLastBead(seqIdx int) BeadID { return a.readToLBead[seqIdx] }

// ReadStartingAt returns the index of the read whose first bead is id, or -1.
func (a *Abacus) ReadStartingAt(id BeadID) int {
	if k := a.fbeadToRead.Get(beadKey{id: id}); k != nil {
		return k.(beadKey).seq
	}
	return -1
}

// ReadEndingAt returns the index of the read whose last bead is id, or -1.
func (a *Abacus) ReadEndingAt(id BeadID) int {
	if k := a.lbeadToRead.Get(beadKey{id: id}); k != nil {
		return k.(beadKey).seq
	}
	return -1
}

// GetColumn returns the spine position holding base pos (0-based, gaps not
// counted) of read seqIdx.  Positions past the read's last bead are
// extrapolated as if the read continued ungapped.  Requires RefreshColumns.
func (a *Abacus) GetColumn(seqIdx, pos int) (int, error) {
	if err := a.checkSeqIdx(seqIdx); err != nil {
		return -1, err
	}
	b := a.reads[seqIdx].first
	if b == noBead {
		return -1, errors.E(errors.Invalid, fmt.Sprintf("abacus.GetColumn: read %d has no beads", seqIdx))
	}
	cur := 0
	for {
		bd := &a.beads[b]
		if !bd.isGap() {
			if cur == pos {
				return int(a.cols[bd.col].position), nil
			}
			cur++
		}
		if bd.next == noBead {
			break
		}
		b = bd.next
	}
	return int(a.cols[a.beads[b].col].position) + 1 + pos - cur, nil
}
