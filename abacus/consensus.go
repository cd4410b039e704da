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
	"math"
)

// minLogOdds keeps a high-quality vote positive when HighQualityMinQV is set
// below the point where a base is more likely wrong than right.
const minLogOdds = 1e-3

// RecallBases calls the consensus base and quality of every column and
// refreshes the consensus buffers.
//
// Each base bead votes for its symbol with weight prob[q].  In high-quality
// mode, bases below Opts.HighQualityMinQV are ignored (unless that would
// ignore all of them) and the weight is log10(prob[q]/eProb[q]).  Gap beads
// vote with Opts.GapFraction times the lowest base weight in the column.  The
// heaviest symbol wins; ties go to the earlier of - A C G T N.
func (a *Abacus) RecallBases(highQuality bool) {
	for c := a.firstCol; c != NoColumn; c = a.cols[c].next {
		a.baseCall(c, highQuality)
	}
	a.RefreshColumns()
}

// baseCall computes the consensus of column c.
func (a *Abacus) baseCall(c ColumnID, highQuality bool) {
	col := &a.cols[c]
	var (
		weights   [nSymbol]float64
		nGap      int
		minWeight = math.Inf(1)
	)
	minQV := byte(MinQV)
	if highQuality {
		minQV = byte(a.opts.HighQualityMinQV)
		strong := false
		for _, b := range col.beads {
			if bd := &a.beads[b]; !bd.isGap() && bd.qual >= minQV {
				strong = true
				break
			}
		}
		if !strong {
			// Nothing passes; fall back to ordinary weights.
			highQuality = false
			minQV = MinQV
		}
	}
	for _, b := range col.beads {
		bd := &a.beads[b]
		if bd.isGap() {
			nGap++
			continue
		}
		if bd.qual < minQV {
			continue
		}
		w := prob[bd.qual]
		if highQuality {
			w = math.Max(logOdds[bd.qual], minLogOdds)
		}
		weights[baseToIndex[bd.base]] += w
		if w < minWeight {
			minWeight = w
		}
	}
	if math.IsInf(minWeight, 1) {
		// No base votes at all.
		col.base, col.qual = Gap, 0
		return
	}
	weights[symGap] = a.opts.GapFraction * minWeight * float64(nGap)

	best := symGap
	total := 0.0
	for sym := byte(0); sym < nSymbol; sym++ {
		total += weights[sym]
		if weights[sym] > weights[best] {
			best = sym
		}
	}
	perr := 1 - weights[best]/total
	if best != symGap {
		support := 1.0
		for _, b := range col.beads {
			if bd := &a.beads[b]; baseToIndex[bd.base] == best && bd.qual >= minQV {
				support *= eProb[bd.qual]
			}
		}
		if support > perr {
			perr = support
		}
	}
	col.base = indexToBase[best]
	col.qual = errorProbToQV(perr)
}
