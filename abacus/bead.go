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
	"github.com/biogo/store/llrb"
)

type beadIdx int32

const noBead beadIdx = -1

// bead is one read's base (or gap) in one column.
type bead struct {
	col  ColumnID
	link int32   // index in cols[col].beads
	seq  int32   // read index
	prev beadIdx // previous bead of the same read
	next beadIdx // next bead of the same read
	base byte
	qual byte
}

func (b *bead) isGap() bool { return b.base == Gap }

// BeadID addresses a bead by its column and its slot in that column.
// BeadIDs are only stable until the next structural change.
type BeadID struct {
	Column ColumnID
	Link   int32
}

// NoBead is the BeadID of a read that has no beads.
var NoBead = BeadID{Column: NoColumn, Link: -1}

// Compare orders BeadIDs by column, then link.
func (b BeadID) Compare(c llrb.Comparable) int {
	b2 := c.(BeadID)
	if b.Column != b2.Column {
		return int(b.Column) - int(b2.Column)
	}
	return int(b.Link) - int(b2.Link)
}

// beadKey is the llrb entry mapping a BeadID to a read.
type beadKey struct {
	id  BeadID
	seq int
}

func (k beadKey) Compare(c llrb.Comparable) int {
	return k.id.Compare(c.(beadKey).id)
}

func (a *Abacus) beadID(b beadIdx) BeadID {
	if b == noBead {
		return NoBead
	}
	bd := &a.beads[b]
	return BeadID{Column: bd.col, Link: bd.link}
}

// beadAt resolves a BeadID to an arena index.
func (a *Abacus) beadAt(id BeadID) beadIdx {
	if id.Column < 0 || int(id.Column) >= len(a.cols) {
		return noBead
	}
	c := &a.cols[id.Column]
	if c.dead || id.Link < 0 || int(id.Link) >= len(c.beads) {
		return noBead
	}
	return c.beads[id.Link]
}

// newBead allocates a bead and places it in column c.  It is not linked into
// any read chain.
func (a *Abacus) newBead(c ColumnID, seq int32, base, qual byte) beadIdx {
	b := beadIdx(len(a.beads))
	col := &a.cols[c]
	a.beads = append(a.beads, bead{
		col:  c,
		link: int32(len(col.beads)),
		seq:  seq,
		prev: noBead,
		next: noBead,
		base: base,
		qual: qual,
	})
	col.beads = append(col.beads, b)
	return b
}

// appendBead places a new bead in column c and links it at the end of read
// seq's chain.
func (a *Abacus) appendBead(c ColumnID, seq int32, base, qual byte) beadIdx {
	b := a.newBead(c, seq, base, qual)
	r := &a.reads[seq]
	if r.last != noBead {
		a.beads[r.last].next = b
		a.beads[b].prev = r.last
	} else {
		r.first = b
	}
	r.last = b
	return b
}

// insertGapAfter places a gap bead for prev's read in column c and links it
// right after prev in the chain.
func (a *Abacus) insertGapAfter(c ColumnID, prev beadIdx) beadIdx {
	seq := a.beads[prev].seq
	g := a.newBead(c, seq, Gap, 0)
	next := a.beads[prev].next
	a.beads[g].prev = prev
	a.beads[g].next = next
	a.beads[prev].next = g
	if next != noBead {
		a.beads[next].prev = g
	} else {
		a.reads[seq].last = g
	}
	return g
}

// insertGapBefore places a gap bead for next's read in column c and links it
// right before next in the chain.
func (a *Abacus) insertGapBefore(c ColumnID, next beadIdx) beadIdx {
	seq := a.beads[next].seq
	g := a.newBead(c, seq, Gap, 0)
	prev := a.beads[next].prev
	a.beads[g].prev = prev
	a.beads[g].next = next
	a.beads[next].prev = g
	if prev != noBead {
		a.beads[prev].next = g
	} else {
		a.reads[seq].first = g
	}
	return g
}

// unlinkBead removes b from its read's chain.  Its column is not changed.
func (a *Abacus) unlinkBead(b beadIdx) {
	bd := &a.beads[b]
	r := &a.reads[bd.seq]
	if bd.prev != noBead {
		a.beads[bd.prev].next = bd.next
	} else {
		r.first = bd.next
	}
	if bd.next != noBead {
		a.beads[bd.next].prev = bd.prev
	} else {
		r.last = bd.prev
	}
	bd.prev, bd.next = noBead, noBead
}

// detachBead removes b from its column, keeping the other beads in insertion
// order.
func (a *Abacus) detachBead(b beadIdx) {
	bd := &a.beads[b]
	col := &a.cols[bd.col]
	link := bd.link
	copy(col.beads[link:], col.beads[link+1:])
	col.beads = col.beads[:len(col.beads)-1]
	for i := int(link); i < len(col.beads); i++ {
		a.beads[col.beads[i]].link = int32(i)
	}
	bd.col, bd.link = NoColumn, -1
}

// deleteBead removes b from its chain and its column.  The arena slot is
// abandoned.
func (a *Abacus) deleteBead(b beadIdx) {
	a.unlinkBead(b)
	a.detachBead(b)
}

// replaceBead moves bead b into the column slot of g, which must be the bead
// right before b in the same read, and drops g.
func (a *Abacus) replaceBead(g, b beadIdx) {
	c, link := a.beads[g].col, a.beads[g].link
	a.unlinkBead(g)
	a.detachBead(b)
	a.beads[g].col, a.beads[g].link = NoColumn, -1
	a.cols[c].beads[link] = b
	a.beads[b].col, a.beads[b].link = c, link
}
