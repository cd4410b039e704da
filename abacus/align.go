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

// alignOp is one step of an alignment walk.
type alignOp uint8

const (
	opMatch   alignOp = iota // read base into an existing column
	opReadGap                // gap bead for the read in an existing column
	opInsert                 // read base into a new column
)

// alignStep is a run of n identical ops.
type alignStep struct {
	op alignOp
	n  int
}

// alignWindow describes the part of the spine and the read covered by an
// alignment.  Spine coordinates index the spine as it was before the read was
// applied.
type alignWindow struct {
	aBgn, aEnd int // spine columns [aBgn, aEnd)
	bBgn, bEnd int // read bases [bBgn, bEnd)
}

func newAlignWindow(nCols, readLen, ahang, bhang int) alignWindow {
	w := alignWindow{bEnd: readLen, aEnd: nCols}
	if ahang >= 0 {
		w.aBgn = ahang
	} else {
		w.bBgn = -ahang
	}
	if bhang >= 0 {
		w.bEnd = readLen - bhang
	} else {
		w.aEnd = nCols + bhang
	}
	return w
}

// parseTrace checks trace against the window and converts it into a list of
// steps.  Nothing is modified.
//
// Trace entries are 1-based positions inside the window.  A negative entry -p
// says spine column p of the window is opposite a gap in the read; a positive
// entry p says read base p of the window is opposite a gap in the spine.
// Entries never move backwards.  Bases between entries are matched, and after
// the last entry the rest of the window must match base for base.
func parseTrace(w alignWindow, trace []int32) ([]alignStep, error) {
	if w.aBgn < 0 || w.aBgn > w.aEnd || w.bBgn < 0 || w.bBgn > w.bEnd {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("abacus.ApplyAlignment: overhangs leave no aligned window %+v", w))
	}
	var steps []alignStep
	add := func(op alignOp, n int) {
		if n <= 0 {
			return
		}
		if len(steps) > 0 && steps[len(steps)-1].op == op {
			steps[len(steps)-1].n += n
			return
		}
		steps = append(steps, alignStep{op, n})
	}
	apos, bpos := w.aBgn, w.bBgn
	for i, t := range trace {
		switch {
		case t < 0:
			target := w.aBgn + int(-t) - 1
			if target < apos || target >= w.aEnd {
				return nil, errors.E(errors.Invalid, fmt.Sprintf("abacus.ApplyAlignment: trace entry %d = %d outside spine window %+v", i, t, w))
			}
			n := target - apos
			if bpos+n > w.bEnd {
				return nil, errors.E(errors.Invalid, fmt.Sprintf("abacus.ApplyAlignment: trace entry %d = %d runs past the read window %+v", i, t, w))
			}
			add(opMatch, n)
			add(opReadGap, 1)
			apos, bpos = target+1, bpos+n
		case t > 0:
			target := w.bBgn + int(t) - 1
			if target < bpos || target >= w.bEnd {
				return nil, errors.E(errors.Invalid, fmt.Sprintf("abacus.ApplyAlignment: trace entry %d = %d outside read window %+v", i, t, w))
			}
			n := target - bpos
			if apos+n > w.aEnd {
				return nil, errors.E(errors.Invalid, fmt.Sprintf("abacus.ApplyAlignment: trace entry %d = %d runs past the spine window %+v", i, t, w))
			}
			add(opMatch, n)
			add(opInsert, 1)
			apos, bpos = apos+n, target+1
		default:
			return nil, errors.E(errors.Invalid, fmt.Sprintf("abacus.ApplyAlignment: zero trace entry at %d", i))
		}
	}
	if w.aEnd-apos != w.bEnd-bpos {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("abacus.ApplyAlignment: trace leaves %d spine columns but %d read bases unaligned in %+v",
			w.aEnd-apos, w.bEnd-bpos, w))
	}
	add(opMatch, w.aEnd-apos)
	return steps, nil
}

// ApplyAlignment places the beads of read seqIdx into the multi-alignment.
//
// ahang is the read's offset from the start of the spine: positive means the
// read starts at column ahang, negative means its first -ahang bases hang off
// the left end and become new columns.  bhang is the same at the right end:
// positive means the last bhang bases become new trailing columns, negative
// means the read stops -bhang columns before the end.  See parseTrace for the
// trace encoding.
//
// The first read applied to an empty Abacus seeds the spine; its hangs are
// ignored and its trace must be empty.  Columns are only added here, never
// removed.  Call RefreshColumns afterwards.
func (a *Abacus) ApplyAlignment(seqIdx int, ahang, bhang int, trace []int32) error {
	if err := a.checkSeqIdx(seqIdx); err != nil {
		return err
	}
	r := &a.reads[seqIdx]
	if r.first != noBead {
		return errors.E(errors.Invalid, fmt.Sprintf("abacus.ApplyAlignment: read %d is already aligned", seqIdx))
	}
	if a.nLive == 0 {
		if len(trace) != 0 {
			return errors.E(errors.Invalid, "abacus.ApplyAlignment: the first read must have an empty trace")
		}
		return a.AppendBases(seqIdx, 0, r.Len())
	}

	spine := make([]ColumnID, 0, a.nLive)
	for c := a.firstCol; c != NoColumn; c = a.cols[c].next {
		spine = append(spine, c)
	}
	w := newAlignWindow(len(spine), r.Len(), ahang, bhang)
	steps, err := parseTrace(w, trace)
	if err != nil {
		return err
	}
	seq := int32(seqIdx)

	// Leading overhang.
	for bpos := 0; bpos < w.bBgn; bpos++ {
		c := a.insertColumnBefore(spine[0])
		a.appendBead(c, seq, r.Bases[bpos], r.Quals[bpos])
	}
	apos, bpos := w.aBgn, w.bBgn
	for _, s := range steps {
		for i := 0; i < s.n; i++ {
			switch s.op {
			case opMatch:
				a.appendBead(spine[apos], seq, r.Bases[bpos], r.Quals[bpos])
				apos++
				bpos++
			case opReadGap:
				// A read never starts with a gap bead.
				if a.reads[seqIdx].first != noBead {
					a.appendBead(spine[apos], seq, Gap, 0)
				}
				apos++
			case opInsert:
				right := NoColumn
				if apos < len(spine) {
					right = spine[apos]
				}
				c := a.insertColumnBefore(right)
				a.appendBead(c, seq, r.Bases[bpos], r.Quals[bpos])
				bpos++
			}
		}
	}
	if bpos == r.Len() {
		// A read never ends with a gap bead either.
		for b := a.reads[seqIdx].last; b != noBead && a.beads[b].isGap(); b = a.reads[seqIdx].last {
			a.deleteBead(b)
		}
	}
	// Trailing overhang.
	for ; bpos < r.Len(); bpos++ {
		c := a.insertColumnBefore(NoColumn)
		a.appendBead(c, seq, r.Bases[bpos], r.Quals[bpos])
	}
	return nil
}

// AppendBases places bases [bgn, end) of read seqIdx into new columns at the
// end of the spine, continuing the read's chain.
func (a *Abacus) AppendBases(seqIdx, bgn, end int) error {
	if err := a.checkSeqIdx(seqIdx); err != nil {
		return err
	}
	r := &a.reads[seqIdx]
	if bgn < 0 || end > r.Len() || bgn > end {
		return errors.E(errors.Invalid, fmt.Sprintf("abacus.AppendBases: range [%d,%d) outside read %d of length %d", bgn, end, seqIdx, r.Len()))
	}
	if r.last != noBead && a.beads[r.last].col != a.lastCol {
		return errors.E(errors.Invalid, fmt.Sprintf("abacus.AppendBases: read %d does not end at the last column", seqIdx))
	}
	for i := bgn; i < end; i++ {
		c := a.insertColumnBefore(NoColumn)
		a.appendBead(c, int32(seqIdx), r.Bases[i], r.Quals[i])
	}
	return nil
}
