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
)

// Opts controls base calling and refinement.
type Opts struct {
	// GapFraction is the vote weight of a gap bead, as a fraction of the
	// lowest base weight in the same column.
	GapFraction float64
	// HighQualityMinQV is the lowest base quality that votes in high-quality
	// recalls.  If no base in a column reaches it, every base votes.
	HighQualityMinQV int
	// MaxRefinePasses bounds the number of passes Refine makes while looking
	// for a fixed point.
	MaxRefinePasses int
	// MaxWindow caps the width, in columns, of one smoothing window.
	MaxWindow int
}

// DefaultOpts holds the default options.
var DefaultOpts = Opts{
	GapFraction:      0.75,
	HighQualityMinQV: 20,
	MaxRefinePasses:  8,
	MaxWindow:        64,
}

// RefineLevel is a bitmask selecting refinement passes.
type RefineLevel uint8

const (
	// Smooth removes artifacts of the order in which pairwise alignments were
	// merged.
	Smooth RefineLevel = 1 << iota
	// PolyX moves indels inside homopolymer runs to the left edge of the run.
	PolyX
	// Indel splits columns that mix two independent single-base insertions.
	Indel
)

// Read is one read participating in the multi-alignment.  Bases and Quals
// are the usable part of the read, already trimmed and oriented; they are
// never modified after AddRead.
type Read struct {
	// ID is the read's ID in the read store.
	ID uint32
	// Bases holds upper-case A/C/G/T/N.
	Bases []byte
	// Quals holds qualities in [MinQV, MaxQV].
	Quals []byte
	// Complemented is true if Bases is the reverse complement of the stored
	// read.
	Complemented bool

	first, last beadIdx
}

// Len returns the number of usable bases.
func (r *Read) Len() int { return len(r.Bases) }

// Fetcher supplies raw reads.  Implementations must return the same data for
// an ID for the lifetime of an Abacus.
type Fetcher interface {
	FetchRead(id uint32) (bases, quals []byte, err error)
}

// Abacus is a multi-alignment of reads and its consensus.
type Abacus struct {
	opts Opts

	reads []Read
	beads []bead
	cols  []column

	firstCol ColumnID
	lastCol  ColumnID
	nLive    int // number of columns on the spine

	// columns is the spine in order, rebuilt by RefreshColumns.
	columns  []ColumnID
	cnsBases []byte
	cnsQuals []byte

	// readToFBead and readToLBead hold the handles of each read's first and
	// last bead, as of the last RefreshColumns.
	readToFBead []BeadID
	readToLBead []BeadID
	// fbeadToRead and lbeadToRead map those handles back to read indexes.
	fbeadToRead llrb.Tree
	lbeadToRead llrb.Tree
}

// New creates an empty Abacus.
func New(opts Opts) *Abacus {
	InitializeGlobals()
	if opts.MaxRefinePasses <= 0 {
		opts.MaxRefinePasses = DefaultOpts.MaxRefinePasses
	}
	if opts.MaxWindow < 2 {
		opts.MaxWindow = DefaultOpts.MaxWindow
	}
	return &Abacus{
		opts:     opts,
		firstCol: NoColumn,
		lastCol:  NoColumn,
	}
}

// NumSequences returns the number of reads added.
func (a *Abacus) NumSequences() int { return len(a.reads) }

// Sequence returns read seqIdx.  The returned value must not be modified.
func (a *Abacus) Sequence(seqIdx int) (*Read, error) {
	if err := a.checkSeqIdx(seqIdx); err != nil {
		return nil, err
	}
	return &a.reads[seqIdx], nil
}

// Bases returns the consensus buffer, one byte per column.  It is valid after
// RecallBases and until the next structural change.
func (a *Abacus) Bases() []byte { return a.cnsBases }

// Quals returns the consensus quality buffer, parallel to Bases.
func (a *Abacus) Quals() []byte { return a.cnsQuals }

// AddRead copies read readID from the store into a new read record.  askip
// and bskip bases are removed from the beginning and end of the stored read;
// the rest is reverse complemented if complemented is set.  No beads are
// placed until ApplyAlignment.  It returns the read's index.
func (a *Abacus) AddRead(store Fetcher, readID uint32, askip, bskip int, complemented bool) (int, error) {
	if askip < 0 || bskip < 0 {
		return -1, errors.E(errors.Invalid, fmt.Sprintf("abacus.AddRead: negative skip for read %d", readID))
	}
	bases, quals, err := store.FetchRead(readID)
	if err != nil {
		return -1, fetchError(err, readID)
	}
	if len(quals) != len(bases) {
		return -1, errors.E(errors.Invalid, fmt.Sprintf("abacus.AddRead: read %d has %d bases but %d quals", readID, len(bases), len(quals)))
	}
	n := len(bases) - askip - bskip
	if n <= 0 {
		return -1, errors.E(errors.Invalid, fmt.Sprintf("abacus.AddRead: read %d has no usable bases", readID))
	}
	r := Read{
		ID:           readID,
		Bases:        make([]byte, n),
		Quals:        make([]byte, n),
		Complemented: complemented,
		first:        noBead,
		last:         noBead,
	}
	for i := 0; i < n; i++ {
		b := normalizeBase(bases[askip+i])
		if b == Gap {
			b = 'N'
		}
		r.Bases[i] = b
		r.Quals[i] = byte(clampQV(int(quals[askip+i])))
	}
	if complemented {
		ReverseComplement(r.Bases, r.Quals)
	}
	a.reads = append(a.reads, r)
	return len(a.reads) - 1, nil
}

// fetchError wraps a read store error.  Errors that carry a kind keep it;
// others are Invalid.
func fetchError(err error, readID uint32) error {
	msg := fmt.Sprintf("abacus.AddRead: fetch read %d", readID)
	if e, ok := err.(*errors.Error); ok && e.Kind != errors.Other {
		return errors.E(err, msg)
	}
	return errors.E(errors.Invalid, err, msg)
}

func (a *Abacus) checkSeqIdx(seqIdx int) error {
	if seqIdx < 0 || seqIdx >= len(a.reads) {
		return errors.E(errors.Invalid, fmt.Sprintf("abacus: read index %d out of range; have %d reads", seqIdx, len(a.reads)))
	}
	return nil
}
