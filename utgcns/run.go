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
package utgcns

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"runtime"
	"sync/atomic"

	"github.com/golang/snappy"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/cns/abacus"
	"github.com/grailbio/cns/readstore"
	"github.com/grailbio/cns/tig"
	"github.com/grailbio/hts/sam"
)

// Stats summarizes a Run.
type Stats struct {
	// Tigs is the number of tigs whose consensus was computed.
	Tigs int
	// Failed is the number of tigs skipped because of an error.
	Failed int
}

// Run computes the consensus of every layout and passes the results to
// sink in layout order.  The layouts are split into opts.Parallelism
// contiguous ranges, each processed by one goroutine with a private Abacus
// per tig.  Results are spilled to snappy-compressed temp files and replayed
// once every range is done.  A tig that fails is logged and counted, and
// does not stop the run; errors from sink, the spill files or ctx do.
func Run(ctx context.Context, store abacus.Fetcher, layouts []tig.Layout, opts Opts, sink func(*Result) error) (stats Stats, err error) {
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	if parallelism > len(layouts) {
		parallelism = len(layouts)
	}
	if parallelism == 0 {
		return
	}

	tmpFiles := make([]*os.File, parallelism)
	defer func() {
		for _, f := range tmpFiles {
			if f == nil {
				continue
			}
			if e := f.Close(); e != nil && err == nil {
				err = e
			}
			if e := os.Remove(f.Name()); e != nil && err == nil {
				err = e
			}
		}
	}()
	for jobIdx := range tmpFiles {
		if tmpFiles[jobIdx], err = ioutil.TempFile(opts.TempDir, "utgcns_*.spill"); err != nil {
			return
		}
	}

	var nFailed int64
	log.Printf("utgcns: computing %d tigs (%d jobs)", len(layouts), parallelism)
	err = traverse.Each(parallelism, func(jobIdx int) error {
		startIdx := (jobIdx * len(layouts)) / parallelism
		endIdx := ((jobIdx + 1) * len(layouts)) / parallelism
		w := newSpillWriter(tmpFiles[jobIdx])
		overlay := readstore.NewOverlay(store)
		for _, layout := range layouts[startIdx:endIdx] {
			if e := ctx.Err(); e != nil {
				return e
			}
			res, e := generate(overlay, layout, opts)
			if e != nil {
				log.Error.Printf("utgcns: %v", e)
				atomic.AddInt64(&nFailed, 1)
				continue
			}
			if e := w.write(res); e != nil {
				return e
			}
		}
		return w.close()
	})
	if err != nil {
		return
	}

	stats.Failed = int(nFailed)
	for _, f := range tmpFiles {
		if _, err = f.Seek(0, io.SeekStart); err != nil {
			return
		}
		r := newSpillReader(f)
		for {
			var res *Result
			if res, err = r.read(); err != nil {
				if err == io.EOF {
					err = nil
					break
				}
				return
			}
			if err = sink(res); err != nil {
				return
			}
			stats.Tigs++
		}
	}
	log.Printf("utgcns: %d tigs done, %d failed", stats.Tigs, stats.Failed)
	return
}

// generate runs Generate on one layout with its reads prefetched into the
// overlay.
func generate(overlay *readstore.Overlay, layout tig.Layout, opts Opts) (*Result, error) {
	ids := make([]uint32, len(layout.Reads))
	for i, r := range layout.Reads {
		ids[i] = r.ReadID
	}
	overlay.Reset()
	if err := overlay.Prefetch(ids); err != nil {
		return nil, errors.E(err, fmt.Sprintf("tig %d", layout.TigID))
	}
	t, a, err := Generate(overlay, layout, opts)
	if err != nil {
		return nil, err
	}
	reads, err := Alignments(a)
	if err != nil {
		return nil, errors.E(err, fmt.Sprintf("tig %d", layout.TigID))
	}
	return &Result{Tig: t, Reads: reads}, nil
}

// A spill file is a snappy stream of records, each a little-endian uint32
// length followed by an encoded Result.
type spillWriter struct {
	w   *snappy.Writer
	buf []byte
}

func newSpillWriter(f io.Writer) *spillWriter {
	return &spillWriter{w: snappy.NewBufferedWriter(f)}
}

func (s *spillWriter) write(res *Result) error {
	data, err := res.Tig.MarshalBinary()
	if err != nil {
		return err
	}
	s.buf = s.buf[:0]
	s.buf = appendUint32(s.buf, 0) // length, filled in below
	s.buf = appendUint32(s.buf, uint32(len(data)))
	s.buf = append(s.buf, data...)
	s.buf = appendUint32(s.buf, uint32(len(res.Reads)))
	for _, r := range res.Reads {
		s.buf = appendUint32(s.buf, r.ReadID)
		s.buf = appendUint32(s.buf, uint32(r.Pos))
		rev := uint32(0)
		if r.Reverse {
			rev = 1
		}
		s.buf = appendUint32(s.buf, rev)
		s.buf = appendUint32(s.buf, uint32(len(r.Cigar)))
		for _, op := range r.Cigar {
			s.buf = appendUint32(s.buf, uint32(op))
		}
		s.buf = appendUint32(s.buf, uint32(len(r.Bases)))
		s.buf = append(s.buf, r.Bases...)
		s.buf = append(s.buf, r.Quals...)
	}
	binary.LittleEndian.PutUint32(s.buf, uint32(len(s.buf)-4))
	_, err = s.w.Write(s.buf)
	return err
}

func (s *spillWriter) close() error {
	return s.w.Close()
}

func appendUint32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

type spillReader struct {
	r   *bufio.Reader
	buf []byte
}

func newSpillReader(f io.Reader) *spillReader {
	return &spillReader{r: bufio.NewReader(snappy.NewReader(f))}
}

// minSpillReadSize is the encoded size of a read alignment with no CIGAR
// and no bases.
const minSpillReadSize = 5 * 4

// maxSpillRecordSize bounds the length prefix of a spill record.
const maxSpillRecordSize = 1 << 30

var errCorruptSpill = errors.E(errors.Integrity, "utgcns: corrupt spill record")

// read returns the next result, or io.EOF.
func (s *spillReader) read() (*Result, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(s.r, hdr[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, errCorruptSpill
		}
		return nil, err
	}
	n := binary.LittleEndian.Uint32(hdr[:])
	if n > maxSpillRecordSize {
		return nil, errCorruptSpill
	}
	if uint32(cap(s.buf)) < n {
		s.buf = make([]byte, n)
	}
	in := s.buf[:n]
	if _, err := io.ReadFull(s.r, in); err != nil {
		return nil, errCorruptSpill
	}
	get := func() uint32 {
		if len(in) < 4 {
			in = nil
			return 0
		}
		v := binary.LittleEndian.Uint32(in)
		in = in[4:]
		return v
	}
	take := func(n uint32) []byte {
		if uint32(len(in)) < n {
			in = nil
			return nil
		}
		b := append([]byte(nil), in[:n]...)
		in = in[n:]
		return b
	}
	res := &Result{Tig: &tig.Tig{}}
	if err := res.Tig.UnmarshalBinary(take(get())); err != nil {
		return nil, errCorruptSpill
	}
	nReads := get()
	if in == nil || uint64(nReads)*minSpillReadSize > uint64(len(in)) {
		return nil, errCorruptSpill
	}
	res.Reads = make([]ReadAlignment, nReads)
	for i := range res.Reads {
		r := &res.Reads[i]
		r.ReadID = get()
		r.Pos = int(int32(get()))
		r.Reverse = get() != 0
		nOps := get()
		for j := uint32(0); j < nOps && in != nil; j++ {
			r.Cigar = append(r.Cigar, sam.CigarOp(get()))
		}
		n := get()
		r.Bases = take(n)
		r.Quals = take(n)
		if in == nil {
			return nil, errCorruptSpill
		}
	}
	return res, nil
}
