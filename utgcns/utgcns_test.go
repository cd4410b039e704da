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
package utgcns_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/cns/readstore"
	"github.com/grailbio/cns/tig"
	"github.com/grailbio/cns/utgcns"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestMain(m *testing.M) {
	shutdown := grail.Init()
	defer shutdown()
	os.Exit(m.Run())
}

func addRead(t *testing.T, m *readstore.Mem, name, bases string) uint32 {
	q := bytes.Repeat([]byte{30}, len(bases))
	id, err := m.Add(name, []byte(bases), q)
	assert.NoError(t, err)
	return id
}

// insertionLayout returns a tig of two copies of ACGTACGTAC and one read
// with an extra G after the fifth base.
func insertionLayout(t *testing.T, m *readstore.Mem, tigID uint32) tig.Layout {
	prefix := fmt.Sprintf("t%d/", tigID)
	r0 := addRead(t, m, prefix+"r0", "ACGTACGTAC")
	r1 := addRead(t, m, prefix+"r1", "ACGTACGTAC")
	r2 := addRead(t, m, prefix+"r2", "ACGTAGCGTAC")
	return tig.Layout{
		TigID: tigID,
		Reads: []tig.LayoutRead{
			{ReadID: r0},
			{ReadID: r1},
			{ReadID: r2, Trace: []int32{6}},
		},
	}
}

func TestGenerate(t *testing.T) {
	m := readstore.NewMem()
	layout := insertionLayout(t, m, 3)
	tg, a, err := utgcns.Generate(m, layout, utgcns.DefaultOpts)
	assert.NoError(t, err)
	expect.EQ(t, tg.ID, uint32(3))
	expect.EQ(t, string(tg.Consensus), "ACGTACGTAC")
	expect.EQ(t, len(tg.Quals), len(tg.Consensus))
	assert.EQ(t, len(tg.Children), 3)
	for i, c := range tg.Children {
		expect.EQ(t, c.ReadID, layout.Reads[i].ReadID)
		expect.EQ(t, c.Bgn, int32(0))
		expect.EQ(t, c.End, int32(10))
		expect.EQ(t, len(c.Deltas), 0)
	}

	reads, err := utgcns.Alignments(a)
	assert.NoError(t, err)
	assert.EQ(t, len(reads), 3)
	expect.EQ(t, reads[0].Cigar.String(), "10M")
	expect.EQ(t, reads[1].Cigar.String(), "10M")
	expect.EQ(t, reads[2].Cigar.String(), "5M1I5M")
	for _, r := range reads {
		expect.EQ(t, r.Pos, 0)
		expect.False(t, r.Reverse)
	}
	expect.EQ(t, string(reads[2].Bases), "ACGTAGCGTAC")
}

func TestGenerateErrors(t *testing.T) {
	m := readstore.NewMem()
	_, _, err := utgcns.Generate(m, tig.Layout{TigID: 1}, utgcns.DefaultOpts)
	expect.True(t, errors.Is(errors.Invalid, err))

	_, _, err = utgcns.Generate(m, tig.Layout{TigID: 2, Reads: []tig.LayoutRead{{ReadID: 7}}}, utgcns.DefaultOpts)
	expect.NotNil(t, err)

	id := addRead(t, m, "r", "ACGT")
	// A trace entry past the end of the spine.
	_, _, err = utgcns.Generate(m, tig.Layout{TigID: 3, Reads: []tig.LayoutRead{
		{ReadID: id},
		{ReadID: id, Trace: []int32{-9}},
	}}, utgcns.DefaultOpts)
	expect.NotNil(t, err)
}

func TestRowCigar(t *testing.T) {
	for _, test := range []struct {
		row, cns, want string
	}{
		{"ACGT", "ACGT", "4M"},
		{"AC-GT", "ACTG-", "2M1D1M1I"},
		{"A--C", "A-GC", "1M1D1M"},
		{"AG-C", "A--C", "1M1I1M"},
	} {
		expect.EQ(t, utgcns.RowCigar([]byte(test.row), []byte(test.cns)).String(), test.want, test)
	}
}

// runLayouts returns layouts interleaving good tigs with tigs that fail:
// one with no reads and one naming a missing read.
func runLayouts(t *testing.T, m *readstore.Mem) (layouts []tig.Layout, good []uint32) {
	for i := uint32(0); i < 8; i++ {
		switch i % 4 {
		case 1:
			layouts = append(layouts, tig.Layout{TigID: i})
		case 3:
			layouts = append(layouts, tig.Layout{TigID: i, Reads: []tig.LayoutRead{{ReadID: 1 << 20}}})
		default:
			layouts = append(layouts, insertionLayout(t, m, i))
			good = append(good, i)
		}
	}
	return
}

func TestRun(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "utgcns")
	defer cleanup()
	m := readstore.NewMem()
	layouts, good := runLayouts(t, m)

	for _, parallelism := range []int{1, 3, 16} {
		opts := utgcns.DefaultOpts
		opts.Parallelism = parallelism
		opts.TempDir = tempDir
		var results []*utgcns.Result
		stats, err := utgcns.Run(context.Background(), m, layouts, opts, func(r *utgcns.Result) error {
			results = append(results, r)
			return nil
		})
		assert.NoError(t, err)
		expect.EQ(t, stats.Tigs, len(good))
		expect.EQ(t, stats.Failed, len(layouts)-len(good))
		assert.EQ(t, len(results), len(good))
		for i, r := range results {
			expect.EQ(t, r.Tig.ID, good[i])
			expect.EQ(t, string(r.Tig.Consensus), "ACGTACGTAC")
			assert.EQ(t, len(r.Tig.Children), 3)
			assert.EQ(t, len(r.Reads), 3)
			expect.EQ(t, r.Reads[2].Cigar.String(), "5M1I5M")
			expect.EQ(t, string(r.Reads[2].Bases), "ACGTAGCGTAC")
			expect.EQ(t, len(r.Reads[2].Quals), 11)
		}
	}

	// Spill files are removed.
	f, err := os.Open(tempDir)
	assert.NoError(t, err)
	names, err := f.Readdirnames(-1)
	assert.NoError(t, err)
	assert.NoError(t, f.Close())
	expect.EQ(t, len(names), 0)
}

func TestRunErrors(t *testing.T) {
	m := readstore.NewMem()
	layouts, _ := runLayouts(t, m)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := utgcns.Run(ctx, m, layouts, utgcns.DefaultOpts, func(*utgcns.Result) error { return nil })
	expect.NotNil(t, err)

	sinkErr := errors.E("sink full")
	_, err = utgcns.Run(context.Background(), m, layouts, utgcns.DefaultOpts, func(*utgcns.Result) error { return sinkErr })
	expect.EQ(t, err, sinkErr)

	stats, err := utgcns.Run(context.Background(), m, nil, utgcns.DefaultOpts, nil)
	assert.NoError(t, err)
	expect.EQ(t, stats, utgcns.Stats{})
}

func TestWriteBAM(t *testing.T) {
	m := readstore.NewMem()
	var results []*utgcns.Result
	for _, id := range []uint32{4, 9} {
		tg, a, err := utgcns.Generate(m, insertionLayout(t, m, id), utgcns.DefaultOpts)
		assert.NoError(t, err)
		reads, err := utgcns.Alignments(a)
		assert.NoError(t, err)
		results = append(results, &utgcns.Result{Tig: tg, Reads: reads})
	}
	results = append(results, &utgcns.Result{Tig: &tig.Tig{ID: 11}})

	var buf bytes.Buffer
	assert.NoError(t, utgcns.WriteBAM(&buf, results, m.Name))

	r, err := bam.NewReader(&buf, 1)
	assert.NoError(t, err)
	refs := r.Header().Refs()
	assert.EQ(t, len(refs), 2)
	expect.EQ(t, refs[0].Name(), tig.TigName(4))
	expect.EQ(t, refs[1].Name(), tig.TigName(9))
	expect.EQ(t, refs[0].Len(), 10)

	var got []string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		assert.NoError(t, err)
		got = append(got, fmt.Sprintf("%s %s %d %s %s", rec.Name, rec.Ref.Name(), rec.Pos, rec.Cigar, rec.Seq.Expand()))
	}
	assert.NoError(t, r.Close())
	expect.EQ(t, got, []string{
		"t4/r0 tig00000004 0 10M ACGTACGTAC",
		"t4/r1 tig00000004 0 10M ACGTACGTAC",
		"t4/r2 tig00000004 0 5M1I5M ACGTAGCGTAC",
		"t9/r0 tig00000009 0 10M ACGTACGTAC",
		"t9/r1 tig00000009 0 10M ACGTACGTAC",
		"t9/r2 tig00000009 0 5M1I5M ACGTAGCGTAC",
	})
}
