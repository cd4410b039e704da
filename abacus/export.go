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
	"github.com/grailbio/cns/tig"
)

// The exports below read the state left by the last RecallBases (or
// RefreshColumns) and never modify the Abacus.

// GetConsensus stores the gap-free consensus and its qualities in t.
func (a *Abacus) GetConsensus(t *tig.Tig) {
	t.Consensus = t.Consensus[:0]
	t.Quals = t.Quals[:0]
	for i, b := range a.cnsBases {
		if b == Gap {
			continue
		}
		t.Consensus = append(t.Consensus, b)
		t.Quals = append(t.Quals, a.cnsQuals[i])
	}
}

// ungappedOffsets returns, for every spine position p, the number of non-gap
// consensus calls before p.  It has one extra trailing entry.
func (a *Abacus) ungappedOffsets() []int32 {
	offs := make([]int32, len(a.cnsBases)+1)
	for i, b := range a.cnsBases {
		offs[i+1] = offs[i]
		if b != Gap {
			offs[i+1]++
		}
	}
	return offs
}

// GetPositions stores one child per read, in the order the reads were added,
// in t.Children.  Reads that were never aligned are an error.
func (a *Abacus) GetPositions(t *tig.Tig) error {
	offs := a.ungappedOffsets()
	t.Children = t.Children[:0]
	for i := range a.reads {
		r := &a.reads[i]
		if r.first == noBead {
			return errors.E(errors.Invalid, fmt.Sprintf("abacus.GetPositions: read %d is not aligned", i))
		}
		bgn := offs[a.cols[a.beads[r.first].col].position]
		end := offs[a.cols[a.beads[r.last].col].position+1]
		if r.Complemented {
			bgn, end = end, bgn
		}
		deltas, err := a.GetSequenceDeltas(i)
		if err != nil {
			return err
		}
		t.Children = append(t.Children, tig.Child{
			ReadID: r.ID,
			Bgn:    bgn,
			End:    end,
			Deltas: deltas,
		})
	}
	return nil
}

// GetSequenceDeltas returns the gap-free consensus coordinates at which read
// seqIdx has a gap opposite a consensus base, in increasing order.
func (a *Abacus) GetSequenceDeltas(seqIdx int) ([]int32, error) {
	if err := a.checkSeqIdx(seqIdx); err != nil {
		return nil, err
	}
	var (
		offs   = a.ungappedOffsets()
		deltas []int32
	)
	for b := a.reads[seqIdx].first; b != noBead; b = a.beads[b].next {
		bd := &a.beads[b]
		pos := a.cols[bd.col].position
		if bd.isGap() && a.cnsBases[pos] != Gap {
			deltas = append(deltas, offs[pos])
		}
	}
	return deltas, nil
}

// AlignedRow returns read seqIdx's row of the multialignment: the spine
// position of its first bead and one byte per column from there to its last
// bead, Gap where the read has a gap.
func (a *Abacus) AlignedRow(seqIdx int) (int, []byte, error) {
	if err := a.checkSeqIdx(seqIdx); err != nil {
		return -1, nil, err
	}
	first := a.reads[seqIdx].first
	if first == noBead {
		return -1, nil, errors.E(errors.Invalid, fmt.Sprintf("abacus.AlignedRow: read %d is not aligned", seqIdx))
	}
	var row []byte
	for b := first; b != noBead; b = a.beads[b].next {
		row = append(row, a.beads[b].base)
	}
	return int(a.cols[a.beads[first].col].position), row, nil
}
