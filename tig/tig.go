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
// Package tig holds the records exchanged with the consensus engine: layouts
// describing which reads make up a tig and how they align, and tigs carrying
// the resulting consensus and read placements.  It also reads and writes them
// in the TSV, FASTQ and recordio formats used by bio-utgcns.
package tig

import (
	"github.com/dgryski/go-farm"
)

// LayoutRead places one read in a layout.
type LayoutRead struct {
	// ReadID is the read's ID in the read store.
	ReadID uint32
	// ASkip and BSkip are the number of bases trimmed from the start and the
	// end of the stored read.
	ASkip, BSkip int
	// Complemented is set if the read aligns as its reverse complement.
	Complemented bool
	// AHang and BHang are the read's overhangs relative to the multialignment
	// built from the reads before it.
	AHang, BHang int
	// Trace is the edit trace of that alignment.
	Trace []int32
}

// Layout lists the reads of one tig in the order they are merged.  The first
// read seeds the multialignment.
type Layout struct {
	TigID uint32
	Reads []LayoutRead
}

// Child is the placement of one read on a tig's consensus.
type Child struct {
	ReadID uint32
	// Bgn and End are half-open gap-free consensus coordinates.  Bgn > End for
	// reads placed as their reverse complement.
	Bgn, End int32
	// Deltas lists the consensus coordinates where the read has a gap.
	Deltas []int32
}

// Min returns the smaller of Bgn and End.
func (c Child) Min() int32 {
	if c.Bgn < c.End {
		return c.Bgn
	}
	return c.End
}

// Max returns the larger of Bgn and End.
func (c Child) Max() int32 {
	if c.Bgn > c.End {
		return c.Bgn
	}
	return c.End
}

// Complemented reports whether the read is placed as its reverse complement.
func (c Child) Complemented() bool { return c.Bgn > c.End }

// Tig is a computed consensus.
type Tig struct {
	ID        uint32
	Consensus []byte
	Quals     []byte // raw quality values, parallel to Consensus
	Children  []Child
}

// Len returns the consensus length.
func (t *Tig) Len() int { return len(t.Consensus) }

// Fingerprint returns a stable 64-bit hash of the consensus sequence.
func (t *Tig) Fingerprint() uint64 {
	return farm.Fingerprint64(t.Consensus)
}
