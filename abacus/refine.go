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
	"github.com/grailbio/base/log"
)

// Refine improves the multi-alignment between spine positions from and to
// (inclusive; to < 0 means the last column) and returns the number of changes
// made.  Each pass recalls the consensus and then runs the selected levels in
// the order Smooth, PolyX, Indel.  Passes repeat until one makes no change or
// Opts.MaxRefinePasses is reached.  The consensus is recalled before
// returning, so a second call on a refined Abacus returns 0.
func (a *Abacus) Refine(level RefineLevel, from, to int) (int, error) {
	a.RefreshColumns()
	n := len(a.columns)
	if n == 0 {
		return 0, nil
	}
	if to < 0 {
		to = n - 1
	}
	if from < 0 || from > to || to >= n {
		return 0, errors.E(errors.Invalid, fmt.Sprintf("abacus.Refine: bad column range [%d,%d] with %d columns", from, to, n))
	}
	r := refineRange{bgn: a.columns[from], end: a.columns[to]}
	total := 0
	pass := 0
	for ; pass < a.opts.MaxRefinePasses; pass++ {
		a.RecallBases(false)
		changed := 0
		if level&Smooth != 0 {
			changed += a.smooth(&r)
		}
		if level&PolyX != 0 {
			changed += a.polyX(&r)
		}
		if level&Indel != 0 {
			changed += a.splitIndels(&r)
		}
		total += changed
		if changed == 0 {
			break
		}
	}
	if pass == a.opts.MaxRefinePasses {
		log.Debug.Printf("abacus: refine level %d stopped after %d passes, %d changes", level, pass, total)
	}
	a.RecallBases(false)
	return total, nil
}

// refineRange is an inclusive span of the spine.  end moves right when a
// column is split at the end of the range.
type refineRange struct {
	bgn, end ColumnID
}

// rangeColumns returns the columns of r in spine order.
func (a *Abacus) rangeColumns(r *refineRange) []ColumnID {
	var out []ColumnID
	for c := r.bgn; c != NoColumn; c = a.cols[c].next {
		out = append(out, c)
		if c == r.end {
			break
		}
	}
	return out
}

// smooth realigns the reads around every column whose beads disagree.  Each
// such column gets one column of context on either side, and overlapping
// windows are joined, up to Opts.MaxWindow columns.
func (a *Abacus) smooth(r *refineRange) int {
	cols := a.rangeColumns(r)
	changed := 0
	bgn, end := -1, -1
	flush := func() {
		for s := bgn; s < end; s += a.opts.MaxWindow {
			e := s + a.opts.MaxWindow
			if e > end {
				e = end
			}
			changed += a.realign(cols[s:e], false)
		}
	}
	for i, c := range cols {
		if a.uniform(c) {
			continue
		}
		lo, hi := i-1, i+2
		if lo < 0 {
			lo = 0
		}
		if hi > len(cols) {
			hi = len(cols)
		}
		if bgn >= 0 && lo <= end {
			end = hi
			continue
		}
		if bgn >= 0 {
			flush()
		}
		bgn, end = lo, hi
	}
	if bgn >= 0 {
		flush()
	}
	return changed
}

// uniform reports whether all beads of column c hold the same symbol.
func (a *Abacus) uniform(c ColumnID) bool {
	beads := a.cols[c].beads
	if len(beads) == 0 {
		return true
	}
	for _, b := range beads[1:] {
		if a.beads[b].base != a.beads[beads[0]].base {
			return false
		}
	}
	return true
}

// polyX realigns every consensus homopolymer run, together with the gap
// consensus columns inside it or next to it, so that the indels of each read
// sit at the left edge of the run.
func (a *Abacus) polyX(r *refineRange) int {
	cols := a.rangeColumns(r)
	changed := 0
	for i := 0; i < len(cols); {
		x := a.cols[cols[i]].base
		if x == Gap || x == 'N' {
			i++
			continue
		}
		bgn := i
		for bgn > 0 && a.cols[cols[bgn-1]].base == Gap {
			bgn--
		}
		end, nx := i, 0
		for end < len(cols) && (a.cols[cols[end]].base == x || a.cols[cols[end]].base == Gap) {
			if a.cols[cols[end]].base == x {
				nx++
			}
			end++
		}
		if nx >= 2 {
			changed += a.realign(cols[bgn:end], true)
		}
		// Trailing gap columns may start the next run's left context.
		next := end
		for next > i+1 && a.cols[cols[next-1]].base == Gap {
			next--
		}
		i = next
	}
	return changed
}

// splitIndels splits every gap consensus column whose bases disagree into one
// column per base symbol, in symbol order.
func (a *Abacus) splitIndels(r *refineRange) int {
	changed := 0
	for _, c := range a.rangeColumns(r) {
		if a.cols[c].base != Gap {
			continue
		}
		var present [nSymbol]bool
		nsym := 0
		for _, b := range a.cols[c].beads {
			if bd := &a.beads[b]; !bd.isGap() && !present[baseToIndex[bd.base]] {
				present[baseToIndex[bd.base]] = true
				nsym++
			}
		}
		if nsym < 2 {
			continue
		}
		var syms []byte
		for sym := symA; sym < nSymbol; sym++ {
			if present[sym] {
				syms = append(syms, indexToBase[sym])
			}
		}
		last := c
		// Each new column is inserted right after c, so walk the symbols
		// backwards to leave them in symbol order.
		for k := len(syms) - 1; k >= 1; k-- {
			n := a.splitColumn(c, syms[k])
			if k == len(syms)-1 {
				last = n
			}
			a.baseCall(n, false)
		}
		a.baseCall(c, false)
		if c == r.end {
			r.end = last
		}
		changed++
	}
	return changed
}

// splitColumn moves the bases equal to sym out of column c into a new column
// right after it and returns the new column.  Each moved read is left with a
// gap in c, or with no bead at all if that gap would start its chain.
func (a *Abacus) splitColumn(c ColumnID, sym byte) ColumnID {
	var moving []beadIdx
	for _, b := range a.cols[c].beads {
		if a.beads[b].base == sym {
			moving = append(moving, b)
		}
	}
	n := a.insertColumnAfter(c)
	for _, b := range moving {
		g := a.beads[b].next
		if g == noBead || a.beads[g].col != n {
			g = a.insertGapAfter(n, b)
		}
		a.beads[g].base, a.beads[g].qual = a.beads[b].base, a.beads[b].qual
		if a.beads[b].prev == noBead {
			a.deleteBead(b)
		} else {
			a.beads[b].base, a.beads[b].qual = Gap, 0
		}
	}
	return n
}

// RefineWindow realigns the reads that span the columns from bgn up to, but
// not including, ter (NoColumn means the end of the spine) and returns the
// number of reads whose beads changed.  A read spans the window if it has
// beads on both sides of it.  Each such read is placed, in turn, at the
// position that minimizes its sum-of-pairs cost against every other bead in
// the window; it only moves if that strictly reduces the cost.  Reads keep
// their beads: only the bases and gaps inside the window are rewritten.
func (a *Abacus) RefineWindow(bgn, ter ColumnID) (int, error) {
	if !a.liveColumn(bgn) || (ter != NoColumn && !a.liveColumn(ter)) {
		return 0, errors.E(errors.Invalid, fmt.Sprintf("abacus.RefineWindow: bad window [%d,%d)", bgn, ter))
	}
	var cols []ColumnID
	c := bgn
	for ; c != NoColumn && c != ter; c = a.cols[c].next {
		cols = append(cols, c)
	}
	if c != ter || len(cols) == 0 {
		return 0, errors.E(errors.Invalid, fmt.Sprintf("abacus.RefineWindow: column %d does not follow column %d", ter, bgn))
	}
	n := a.realign(cols, false)
	a.RefreshColumns()
	return n, nil
}

func (a *Abacus) liveColumn(c ColumnID) bool {
	return c >= 0 && int(c) < len(a.cols) && !a.cols[c].dead
}

// mismatchCost is the cost of two different bases in one column; a base
// opposite a gap costs 1.  It must exceed 2, or realignment folds the columns
// made by splitIndels back together.
const mismatchCost = 3

// pairCost returns the summed cost of placing sym in a column against the
// other beads, whose symbol counts are counts and whose number is others.
func pairCost(counts [nSymbol]int, others int, sym byte) int {
	gaps := counts[symGap]
	if sym == symGap {
		return others - gaps
	}
	return gaps + mismatchCost*(others-gaps-counts[sym])
}

// realign runs one realignment sweep over the window cols.  In canonical mode
// a read also moves when its new placement is as good as the old one but
// different, which packs each read's bases to the right of the window.
func (a *Abacus) realign(cols []ColumnID, canonical bool) int {
	w := len(cols)
	if w < 2 {
		return 0
	}
	counts := make([][nSymbol]int, w)
	for j, c := range cols {
		for _, b := range a.cols[c].beads {
			counts[j][baseToIndex[a.beads[b].base]]++
		}
	}
	var (
		row   = make([]beadIdx, w)
		bases []beadIdx
		cost  = make([]int, (w+1)*(w+1))
		moved int
	)
	first := cols[0]
	// The bead list of the first column is stable during the sweep.
reads:
	for _, fb := range a.cols[first].beads {
		if a.beads[fb].prev == noBead {
			continue
		}
		b := fb
		for j := 0; j < w; j++ {
			if b == noBead {
				// The read ends inside the window.
				continue reads
			}
			if a.beads[b].col != cols[j] {
				log.Panicf("abacus: read %d chain skips column %d", a.beads[b].seq, cols[j])
			}
			row[j] = b
			b = a.beads[b].next
		}
		if b == noBead {
			continue
		}
		bases = bases[:0]
		oldCost := 0
		for j, rb := range row {
			sym := baseToIndex[a.beads[rb].base]
			counts[j][sym]--
			if sym != symGap {
				bases = append(bases, rb)
			}
		}
		colCost := func(j int, sym byte) int {
			return pairCost(counts[j], len(a.cols[cols[j]].beads)-1, sym)
		}
		for j, rb := range row {
			oldCost += colCost(j, baseToIndex[a.beads[rb].base])
		}
		placement, newCost := a.placeBases(bases, w, colCost, cost)
		changed := newCost < oldCost
		if !changed && canonical && newCost == oldCost {
			for j, rb := range row {
				if a.beads[rb].isGap() != (placement[j] < 0) {
					changed = true
					break
				}
			}
		}
		if changed {
			// Read the bases out before rewriting the row in place.
			type bq struct{ base, qual byte }
			vals := make([]bq, len(bases))
			for i, bb := range bases {
				vals[i] = bq{a.beads[bb].base, a.beads[bb].qual}
			}
			for j, rb := range row {
				if k := placement[j]; k >= 0 {
					a.beads[rb].base, a.beads[rb].qual = vals[k].base, vals[k].qual
				} else {
					a.beads[rb].base, a.beads[rb].qual = Gap, 0
				}
			}
			moved++
		}
		for j, rb := range row {
			counts[j][baseToIndex[a.beads[rb].base]]++
		}
	}
	if moved > 0 {
		for _, c := range cols {
			a.baseCall(c, false)
		}
	}
	return moved
}

// placeBases finds the cheapest order-preserving placement of bases into w
// columns.  placement[j] is the index in bases of the base put in column j,
// or -1 for a gap.  Among equally cheap placements the one with its bases
// furthest right wins.  scratch must hold at least (w+1)^2 entries.
func (a *Abacus) placeBases(bases []beadIdx, w int, colCost func(j int, sym byte) int, scratch []int) ([]int, int) {
	l := len(bases)
	stride := w + 1
	const inf = int(^uint(0) >> 2)
	f := scratch[:(l+1)*stride]
	at := func(i, j int) *int { return &f[i*stride+j] }
	for i := 0; i <= l; i++ {
		for j := 0; j <= w; j++ {
			v := inf
			switch {
			case i == 0 && j == 0:
				v = 0
			case j < i:
			default:
				if j > i {
					if g := *at(i, j-1); g < inf {
						v = g + colCost(j-1, symGap)
					}
				}
				if i > 0 {
					if d := *at(i-1, j-1); d < inf {
						if d += colCost(j-1, baseToIndex[a.beads[bases[i-1]].base]); d < v {
							v = d
						}
					}
				}
			}
			*at(i, j) = v
		}
	}
	placement := make([]int, w)
	i := l
	for j := w; j > 0; j-- {
		if i > 0 {
			d := *at(i-1, j-1)
			if d < inf && d+colCost(j-1, baseToIndex[a.beads[bases[i-1]].base]) == *at(i, j) {
				i--
				placement[j-1] = i
				continue
			}
		}
		placement[j-1] = -1
	}
	return placement, *at(l, w)
}
