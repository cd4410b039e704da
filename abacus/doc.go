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

// Package abacus computes the consensus sequence of one unitig from reads
// whose pairwise alignments to the growing multi-alignment are already known.
//
// The multi-alignment is a chain of columns (the spine).  Every read places
// one bead in every column between its first and last base; a bead holds
// either one of the read's bases or a gap.  The beads of one read are linked
// in read order, so walking a read's chain reproduces its bases.
//
// Typical use:
//
//   a := abacus.New(abacus.DefaultOpts)
//   for _, r := range layout.Reads {
//     seqIdx, err := a.AddRead(store, r.ReadID, r.ASkip, r.BSkip, r.Complemented)
//     ...
//   }
//   for i, r := range layout.Reads {
//     err := a.ApplyAlignment(i, r.AHang, r.BHang, r.Trace)
//     ...
//   }
//   a.RefreshColumns()
//   a.RecallBases(false)
//   a.Refine(abacus.Smooth|abacus.PolyX|abacus.Indel, 0, -1)
//   a.MergeColumns(true)
//   a.RecallBases(true)
//   a.GetConsensus(&t)
//   a.GetPositions(&t)
//
// An Abacus is not safe for concurrent use.  Distinct Abacus objects share
// only the read-only probability tables, so many unitigs can be processed in
// parallel, one Abacus per goroutine.
//
// Columns and beads live in arenas owned by the Abacus and are addressed by
// integer IDs, so there are no pointers between them.
package abacus
