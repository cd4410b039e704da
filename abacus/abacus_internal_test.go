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
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestProbabilityTables(t *testing.T) {
	InitializeGlobals()
	InitializeGlobals()
	expect.EQ(t, eProb[0], maxErrorProb)
	expect.True(t, math.Abs(eProb[10]-0.1) < 1e-12)
	expect.True(t, math.Abs(eProb[30]-0.001) < 1e-12)
	for q := MinQV; q <= MaxQV; q++ {
		expect.True(t, math.Abs(prob[q]+eProb[q]-1) < 1e-12)
		if q > MinQV {
			expect.True(t, prob[q] >= prob[q-1], "q=%d", q)
			expect.True(t, logOdds[q] >= logOdds[q-1], "q=%d", q)
		}
	}
	expect.EQ(t, ErrorProb(-5), eProb[0])
	expect.EQ(t, CorrectProb(99), prob[MaxQV])

	expect.EQ(t, errorProbToQV(0), byte(MaxQV))
	expect.EQ(t, errorProbToQV(1e-3), byte(30))
	expect.EQ(t, errorProbToQV(1), byte(0))
	expect.EQ(t, errorProbToQV(1e-9), byte(MaxQV))
}

func TestNormalize(t *testing.T) {
	InitializeGlobals()
	for in, want := range map[byte]byte{
		'a': 'A', 'C': 'C', 'g': 'G', 't': 'T', 'n': 'N', 'R': 'N', '*': 'N', '-': '-',
	} {
		expect.EQ(t, normalizeBase(in), want, "%c", in)
	}
	bases, quals := []byte("AACGTN"), []byte{1, 2, 3, 4, 5, 6}
	ReverseComplement(bases, quals)
	expect.EQ(t, string(bases), "NACGTT")
	expect.EQ(t, quals, []byte{6, 5, 4, 3, 2, 1})
	bases, quals = []byte("ACG"), []byte{1, 2, 3}
	ReverseComplement(bases, quals)
	expect.EQ(t, string(bases), "CGT")
}

func TestParseTrace(t *testing.T) {
	for _, test := range []struct {
		w     alignWindow
		trace []int32
		want  []alignStep
	}{
		{alignWindow{0, 5, 0, 5}, nil, []alignStep{{opMatch, 5}}},
		{alignWindow{0, 5, 0, 6}, []int32{3}, []alignStep{{opMatch, 2}, {opInsert, 1}, {opMatch, 3}}},
		{alignWindow{0, 6, 0, 5}, []int32{-1}, []alignStep{{opReadGap, 1}, {opMatch, 5}}},
		{alignWindow{2, 8, 0, 5}, []int32{2, -4, -5}, []alignStep{
			{opMatch, 1}, {opInsert, 1}, {opMatch, 2}, {opReadGap, 2}, {opMatch, 1}}},
		{alignWindow{0, 3, 0, 5}, []int32{1, 2}, []alignStep{{opInsert, 2}, {opMatch, 3}}},
	} {
		steps, err := parseTrace(test.w, test.trace)
		assert.NoError(t, err)
		expect.EQ(t, steps, test.want, "%+v %v", test.w, test.trace)
	}

	for _, test := range []struct {
		w     alignWindow
		trace []int32
	}{
		{alignWindow{0, 5, 0, 4}, nil},
		{alignWindow{0, 5, 0, 5}, []int32{0}},
		{alignWindow{0, 5, 0, 5}, []int32{6}},
		{alignWindow{0, 5, 0, 5}, []int32{-6}},
		{alignWindow{0, 5, 0, 5}, []int32{3, 2}},
		{alignWindow{4, 3, 0, 0}, nil},
	} {
		_, err := parseTrace(test.w, test.trace)
		expect.True(t, errors.Is(errors.Invalid, err), "%+v %v", test.w, test.trace)
	}
}

func TestNewAlignWindow(t *testing.T) {
	expect.EQ(t, newAlignWindow(10, 4, 3, -3), alignWindow{3, 7, 0, 4})
	expect.EQ(t, newAlignWindow(10, 6, -2, 2), alignWindow{0, 10, 2, 4})
	expect.EQ(t, newAlignWindow(10, 6, 7, 3), alignWindow{7, 10, 0, 3})
}

// TestPlaceBases checks the placement DP against exhaustive search.
func TestPlaceBases(t *testing.T) {
	a := New(DefaultOpts)
	c := a.newColumn()
	var bases []beadIdx
	for _, b := range []byte("ACA") {
		bases = append(bases, a.newBead(c, 0, b, 30))
	}
	// Profile of the other reads, column by column.
	profile := []string{"AA", "A-", "CC", "--", "AA"}
	colCost := func(j int, sym byte) int {
		n := 0
		for _, b := range []byte(profile[j]) {
			if baseToIndex[b] != sym {
				n++
			}
		}
		return n
	}
	w := len(profile)
	placement, cost := a.placeBases(bases, w, colCost, make([]int, (w+1)*(w+1)))

	best := math.MaxInt32
	for mask := 0; mask < 1<<uint(w); mask++ {
		k, total := 0, 0
		for j := 0; j < w; j++ {
			if mask&(1<<uint(j)) != 0 {
				if k == len(bases) {
					total = math.MaxInt32
					break
				}
				total += colCost(j, baseToIndex[a.beads[bases[k]].base])
				k++
			} else {
				total += colCost(j, symGap)
			}
		}
		if k == len(bases) && total < best {
			best = total
		}
	}
	expect.EQ(t, cost, best)
	expect.EQ(t, cost, 1)
	expect.EQ(t, placement, []int{0, -1, 1, -1, 2})
}

func TestBaseCallEmptyColumn(t *testing.T) {
	a := New(DefaultOpts)
	c := a.newColumn()
	a.baseCall(c, false)
	expect.EQ(t, a.cols[c].base, byte(Gap))
	expect.EQ(t, a.cols[c].qual, byte(0))

	a.newBead(c, 0, 'A', 40)
	a.newBead(c, 1, 'A', 40)
	a.newBead(c, 2, 'C', 5)
	a.baseCall(c, true)
	expect.EQ(t, a.cols[c].base, byte('A'))
	expect.True(t, a.cols[c].qual >= 40)
	a.baseCall(c, false)
	expect.EQ(t, a.cols[c].base, byte('A'))
	expect.True(t, a.cols[c].qual < 10)
}

type fixedQualStore []string

func (s fixedQualStore) FetchRead(id uint32) ([]byte, []byte, error) {
	if int(id) >= len(s) {
		return nil, nil, errors.E(errors.NotExist, "no such read")
	}
	quals := make([]byte, len(s[id]))
	for i := range quals {
		quals[i] = 30
	}
	return []byte(s[id]), quals, nil
}

func newTwoReadAbacus(t *testing.T) *Abacus {
	store := fixedQualStore{"ACGT", "ACGT"}
	a := New(DefaultOpts)
	for id := range store {
		_, err := a.AddRead(store, uint32(id), 0, 0, false)
		assert.NoError(t, err)
		assert.NoError(t, a.ApplyAlignment(id, 0, 0, nil))
	}
	a.RefreshColumns()
	assert.NoError(t, a.Check())
	return a
}

func TestCheckIntegrity(t *testing.T) {
	for _, test := range []struct {
		corrupt func(a *Abacus)
		want    string
	}{
		{func(a *Abacus) { a.beads[a.reads[0].first].link = 5 }, "slot 0 claims column 0 slot 5"},
		{func(a *Abacus) { a.beads[a.beads[a.reads[1].first].next].base = 'T' }, "read 1 base 1 differs from its bead"},
		{func(a *Abacus) { a.cols[a.lastCol].prev = NoColumn }, "links back to -1"},
		{func(a *Abacus) { a.beads[a.reads[0].last].base = Gap }, "read 0 starts or ends with a gap"},
	} {
		a := newTwoReadAbacus(t)
		test.corrupt(a)
		err := a.Check()
		assert.True(t, err != nil, test.want)
		expect.True(t, errors.Is(errors.Integrity, err), "%v", err)
		assert.HasSubstr(t, err.Error(), test.want)
	}
}

func TestPairCost(t *testing.T) {
	// Other beads: two gaps, one A, one T.
	var counts [nSymbol]int
	counts[symGap] = 2
	counts[baseToIndex['A']] = 1
	counts[baseToIndex['T']] = 1
	expect.EQ(t, pairCost(counts, 4, symGap), 2)
	expect.EQ(t, pairCost(counts, 4, baseToIndex['A']), 2+mismatchCost)
	expect.EQ(t, pairCost(counts, 4, baseToIndex['G']), 2+2*mismatchCost)

	// A base moved from its own column into a column holding a different
	// base, next to an otherwise empty column, must not get cheaper.
	var own, squashed [nSymbol]int
	own[symGap] = 4
	squashed[symGap] = 3
	squashed[baseToIndex['A']] = 1
	apart := pairCost(squashed, 4, symGap) + pairCost(own, 4, baseToIndex['T'])
	together := pairCost(squashed, 4, baseToIndex['T']) + pairCost(own, 4, symGap)
	expect.True(t, together > apart, "together %d apart %d", together, apart)
}

func TestMergeRelocatesBeads(t *testing.T) {
	store := fixedQualStore{"ACGT", "ACGT"}
	a := New(DefaultOpts)
	for id := range store {
		_, err := a.AddRead(store, uint32(id), 0, 0, false)
		assert.NoError(t, err)
	}
	assert.NoError(t, a.ApplyAlignment(0, 0, 0, nil))
	assert.NoError(t, a.ApplyAlignment(1, 0, 0, []int32{3, -3}))
	a.RefreshColumns()
	assert.EQ(t, len(a.columns), 5)
	left := a.columns[2]

	// Read 0 is AC-GT: its G sits in the column after left.
	chain := func(seq int) []beadIdx {
		var out []beadIdx
		for b := a.reads[seq].first; b != noBead; b = a.beads[b].next {
			out = append(out, b)
		}
		return out
	}
	before := chain(0)
	assert.EQ(t, len(before), 5)
	c, g := before[1], before[3]
	expect.EQ(t, a.beads[g].base, byte('G'))

	a.RecallBases(false)
	expect.EQ(t, a.MergeColumns(false), 1)
	assert.NoError(t, a.Check())

	after := chain(0)
	expect.EQ(t, after, []beadIdx{before[0], c, g, before[4]})
	expect.EQ(t, a.beads[g].col, left)
	expect.EQ(t, a.beads[g].prev, c)
	expect.EQ(t, a.cols[left].beads[a.beads[g].link], g)
}
