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
// Package utgcns computes the consensus sequences of tigs from their
// layouts.  Generate runs the consensus pipeline on one tig; Run processes
// many tigs in parallel and delivers them in layout order.
package utgcns

import (
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/cns/abacus"
	"github.com/grailbio/cns/tig"
	"github.com/grailbio/hts/sam"
)

// Opts controls consensus generation.
type Opts struct {
	// Abacus holds the base calling and refinement options.
	Abacus abacus.Opts
	// RefineLevel selects the refinement passes; 0 disables refinement.
	RefineLevel abacus.RefineLevel
	// Parallelism is the number of tigs processed concurrently by Run.
	// Values <= 0 mean runtime.NumCPU().
	Parallelism int
	// TempDir holds Run's per-job spill files.  "" means the system default.
	TempDir string
	// HighQuality selects high-quality base calls for the final consensus.
	HighQuality bool
	// SkipMerge disables the final column merge.
	SkipMerge bool
}

// DefaultOpts holds the default options.
var DefaultOpts = Opts{
	Abacus:      abacus.DefaultOpts,
	RefineLevel: abacus.Smooth | abacus.PolyX | abacus.Indel,
	HighQuality: true,
}

// ReadAlignment is one read of a tig aligned to the tig's consensus.
type ReadAlignment struct {
	ReadID uint32
	// Pos is the 0-based consensus position of the read's first aligned base.
	Pos int
	// Reverse is set if Bases is the reverse complement of the stored read.
	Reverse bool
	Cigar   sam.Cigar
	// Bases and Quals are the part of the read that was aligned, in
	// consensus orientation.
	Bases, Quals []byte
}

// Result is the outcome of one tig.
type Result struct {
	Tig   *tig.Tig
	Reads []ReadAlignment
}

// Generate computes the consensus of one layout.  The reads are added and
// merged in layout order, then the multialignment is refined and compacted
// and the consensus is called.  The Abacus is returned for callers that
// want to inspect or display the multialignment.
func Generate(store abacus.Fetcher, layout tig.Layout, opts Opts) (*tig.Tig, *abacus.Abacus, error) {
	if len(layout.Reads) == 0 {
		return nil, nil, errors.E(errors.Invalid, fmt.Sprintf("tig %d has no reads", layout.TigID))
	}
	a := abacus.New(opts.Abacus)
	for _, r := range layout.Reads {
		if _, err := a.AddRead(store, r.ReadID, r.ASkip, r.BSkip, r.Complemented); err != nil {
			return nil, nil, errors.E(err, fmt.Sprintf("tig %d", layout.TigID))
		}
	}
	for i, r := range layout.Reads {
		if err := a.ApplyAlignment(i, r.AHang, r.BHang, r.Trace); err != nil {
			return nil, nil, errors.E(err, fmt.Sprintf("tig %d read %d", layout.TigID, r.ReadID))
		}
	}
	a.RefreshColumns()
	a.RecallBases(false)
	if opts.RefineLevel != 0 {
		n, err := a.Refine(opts.RefineLevel, 0, -1)
		if err != nil {
			return nil, nil, errors.E(err, fmt.Sprintf("tig %d", layout.TigID))
		}
		log.Debug.Printf("tig %d: %d refinement changes", layout.TigID, n)
	}
	if !opts.SkipMerge {
		n := a.MergeColumns(opts.HighQuality)
		log.Debug.Printf("tig %d: merged away %d columns", layout.TigID, n)
	}
	a.RefreshColumns()
	a.RecallBases(opts.HighQuality)
	if err := a.Check(); err != nil {
		return nil, nil, errors.E(err, fmt.Sprintf("tig %d", layout.TigID))
	}
	t := &tig.Tig{ID: layout.TigID}
	a.GetConsensus(t)
	if err := a.GetPositions(t); err != nil {
		return nil, nil, errors.E(err, fmt.Sprintf("tig %d", layout.TigID))
	}
	return t, a, nil
}

// Alignments returns the reads of a, in the order they were added, as
// alignments to its gap-free consensus.
func Alignments(a *abacus.Abacus) ([]ReadAlignment, error) {
	cns := a.Bases()
	offs := make([]int, len(cns)+1)
	for i, b := range cns {
		offs[i+1] = offs[i]
		if b != abacus.Gap {
			offs[i+1]++
		}
	}
	out := make([]ReadAlignment, a.NumSequences())
	for i := range out {
		r, err := a.Sequence(i)
		if err != nil {
			return nil, err
		}
		first, row, err := a.AlignedRow(i)
		if err != nil {
			return nil, err
		}
		out[i] = ReadAlignment{
			ReadID:  r.ID,
			Pos:     offs[first],
			Reverse: r.Complemented,
			Cigar:   rowCigar(row, cns[first:first+len(row)]),
			Bases:   r.Bases,
			Quals:   r.Quals,
		}
	}
	return out, nil
}

// rowCigar describes a read row against the gapped consensus under it.
// Columns where both are gaps are dropped.
func rowCigar(row, cns []byte) sam.Cigar {
	var cigar sam.Cigar
	add := func(t sam.CigarOpType) {
		if n := len(cigar); n > 0 && cigar[n-1].Type() == t {
			cigar[n-1] = sam.NewCigarOp(t, cigar[n-1].Len()+1)
			return
		}
		cigar = append(cigar, sam.NewCigarOp(t, 1))
	}
	for i, b := range row {
		switch {
		case b != abacus.Gap && cns[i] != abacus.Gap:
			add(sam.CigarMatch)
		case b != abacus.Gap:
			add(sam.CigarInsertion)
		case cns[i] != abacus.Gap:
			add(sam.CigarDeletion)
		}
	}
	return cigar
}
