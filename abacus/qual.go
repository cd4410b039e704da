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
	"sync"
)

// This file holds the quality-value math and symbol tables shared by every
// Abacus in the process.

const (
	// MinQV is the lowest base quality the engine represents.
	MinQV = 0
	// MaxQV is the highest base quality the engine represents.  Qualities are
	// clamped into [MinQV, MaxQV] when a read is added.
	MaxQV = 60

	nQV = MaxQV - MinQV + 1
)

// Symbol indices, in the order used to break voting ties.
const (
	symGap byte = iota
	symA
	symC
	symG
	symT
	symN
	nSymbol
)

// Gap is the character stored in gap beads and emitted for gap consensus
// calls.
const Gap = '-'

// A base call can't be less reliable than a uniformly random guess.
const maxErrorProb = 0.75

var (
	globalsOnce sync.Once

	// eProb[q] is the probability that a base with quality q is wrong.
	eProb [nQV]float64
	// prob[q] is 1 - eProb[q].
	prob [nQV]float64
	// logOdds[q] is log10(prob[q] / eProb[q]), the high-quality vote weight.
	logOdds [nQV]float64

	indexToBase = [nSymbol]byte{'-', 'A', 'C', 'G', 'T', 'N'}
	baseToIndex [256]byte
)

// InitializeGlobals fills the process-wide probability and symbol tables.
// Only the first call does any work; New calls it, so direct calls are only
// needed by code that reads the tables before creating an Abacus.
func InitializeGlobals() {
	globalsOnce.Do(func() {
		for q := 0; q < nQV; q++ {
			e := math.Exp(float64(q+MinQV) * (-0.1 * math.Ln10))
			if e > maxErrorProb {
				e = maxErrorProb
			}
			eProb[q] = e
			prob[q] = 1 - e
			logOdds[q] = math.Log10(prob[q] / e)
		}
		for i := range baseToIndex {
			baseToIndex[i] = symN
		}
		for sym, b := range indexToBase {
			baseToIndex[b] = byte(sym)
			baseToIndex[b|0x20] = byte(sym) // lower case
		}
	})
}

// ErrorProb returns the probability that a base of quality q is wrong.
func ErrorProb(q int) float64 {
	InitializeGlobals()
	return eProb[clampQV(q)]
}

// CorrectProb returns the probability that a base of quality q is right.
func CorrectProb(q int) float64 {
	InitializeGlobals()
	return prob[clampQV(q)]
}

func clampQV(q int) int {
	if q < MinQV {
		return MinQV
	}
	if q > MaxQV {
		return MaxQV
	}
	return q
}

// errorProbToQV converts an error probability to a quality value in
// [MinQV, MaxQV].
func errorProbToQV(p float64) byte {
	if p <= 0 {
		return MaxQV
	}
	q := math.Round(math.Log10(p) * -10.0)
	if q > MaxQV {
		return MaxQV
	}
	if q < MinQV {
		return MinQV
	}
	return byte(q)
}

// normalizeBase maps an input byte to one of -ACGTN, upper case.
func normalizeBase(b byte) byte {
	return indexToBase[baseToIndex[b]]
}

var complementTable = [256]byte{}

func init() {
	for i := range complementTable {
		complementTable[i] = 'N'
	}
	for _, p := range [][2]byte{{'A', 'T'}, {'C', 'G'}, {'G', 'C'}, {'T', 'A'}, {'-', '-'}} {
		complementTable[p[0]] = p[1]
		complementTable[p[0]|0x20] = p[1]
	}
}

// ReverseComplement reverse-complements bases in place and reverses quals to
// match.
func ReverseComplement(bases, quals []byte) {
	for i, j := 0, len(bases)-1; i < j; i, j = i+1, j-1 {
		bases[i], bases[j] = complementTable[bases[j]], complementTable[bases[i]]
		quals[i], quals[j] = quals[j], quals[i]
	}
	if len(bases)%2 == 1 {
		mid := len(bases) / 2
		bases[mid] = complementTable[bases[mid]]
	}
}
