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
package tig

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/grailbio/base/recordio"
	"github.com/grailbio/base/recordio/recordiozstd"
)

const (
	tigCountHeader = "TigCount"
	trailerVersion = 1
)

func init() {
	recordiozstd.Init()
}

// RioWriter writes tigs to a zstd-compressed recordio file.
type RioWriter struct {
	w recordio.Writer
	n int64
}

// NewRioWriter creates a tig store writer on out.  Finish must be called to
// complete the file.
func NewRioWriter(out io.Writer) *RioWriter {
	w := recordio.NewWriter(out, recordio.WriterOpts{
		Marshal:      marshalTig,
		Transformers: []string{recordiozstd.Name},
	})
	w.AddHeader(recordio.KeyTrailer, true)
	return &RioWriter{w: w}
}

// Append adds a tig.  t must not change until Finish returns.
func (r *RioWriter) Append(t *Tig) {
	r.w.Append(t)
	r.n++
}

// Finish writes the trailer, which records the number of tigs, and flushes
// the file.
func (r *RioWriter) Finish() error {
	r.w.SetTrailer(rioTrailer(r.n))
	return r.w.Finish()
}

func rioTrailer(n int64) []byte {
	var buffer bytes.Buffer
	if err := binary.Write(&buffer, binary.LittleEndian, int64(trailerVersion)); err != nil {
		panic("couldn't write trailer version")
	}
	if err := binary.Write(&buffer, binary.LittleEndian, n); err != nil {
		panic("couldn't write tig count to trailer")
	}
	return buffer.Bytes()
}

func parseRioTrailer(trailer []byte) (int64, error) {
	r := bytes.NewReader(trailer)
	var version, n int64
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return 0, err
	}
	if version != trailerVersion {
		return 0, fmt.Errorf("unrecognized trailer version: got %d, want %d", version, trailerVersion)
	}
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return 0, err
	}
	return n, nil
}

// ReadRio reads every tig of a store written by RioWriter.
func ReadRio(rs io.ReadSeeker) ([]*Tig, error) {
	scanner := recordio.NewScanner(rs, recordio.ScannerOpts{Unmarshal: unmarshalTig})
	var tigs []*Tig
	if len(scanner.Trailer()) != 0 {
		n, err := parseRioTrailer(scanner.Trailer())
		if err != nil {
			return nil, err
		}
		tigs = make([]*Tig, 0, n)
	}
	for scanner.Scan() {
		tigs = append(tigs, scanner.Get().(*Tig))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return tigs, nil
}

// The record layout is little-endian:
//
//   id, n uint32; consensus, quals [n]byte; nchild uint32;
//   nchild x (read uint32; bgn, end int32; ndelta uint32; deltas [ndelta]int32)
func marshalTig(scratch []byte, v interface{}) ([]byte, error) {
	t := v.(*Tig)
	if len(t.Quals) != len(t.Consensus) {
		return nil, fmt.Errorf("tig %d: %d bases but %d quals", t.ID, len(t.Consensus), len(t.Quals))
	}
	size := 12 + 2*len(t.Consensus)
	for _, c := range t.Children {
		size += 16 + 4*len(c.Deltas)
	}
	b := scratch[:0]
	if cap(b) < size {
		b = make([]byte, 0, size)
	}
	var tmp [4]byte
	put := func(v uint32) {
		binary.LittleEndian.PutUint32(tmp[:], v)
		b = append(b, tmp[:]...)
	}
	put(t.ID)
	put(uint32(len(t.Consensus)))
	b = append(b, t.Consensus...)
	b = append(b, t.Quals...)
	put(uint32(len(t.Children)))
	for _, c := range t.Children {
		put(c.ReadID)
		put(uint32(c.Bgn))
		put(uint32(c.End))
		put(uint32(len(c.Deltas)))
		for _, d := range c.Deltas {
			put(uint32(d))
		}
	}
	return b, nil
}

var errShortRecord = fmt.Errorf("tig record is truncated")

func unmarshalTig(in []byte) (interface{}, error) {
	get := func() (uint32, error) {
		if len(in) < 4 {
			return 0, errShortRecord
		}
		v := binary.LittleEndian.Uint32(in)
		in = in[4:]
		return v, nil
	}
	t := &Tig{}
	var (
		n   uint32
		err error
	)
	if t.ID, err = get(); err != nil {
		return nil, err
	}
	if n, err = get(); err != nil {
		return nil, err
	}
	if uint64(len(in)) < 2*uint64(n) {
		return nil, errShortRecord
	}
	t.Consensus = append([]byte(nil), in[:n]...)
	t.Quals = append([]byte(nil), in[n:2*n]...)
	in = in[2*n:]
	if n, err = get(); err != nil {
		return nil, err
	}
	if n > 0 {
		t.Children = make([]Child, n)
	}
	for i := range t.Children {
		c := &t.Children[i]
		var v [4]uint32
		for j := range v {
			if v[j], err = get(); err != nil {
				return nil, err
			}
		}
		c.ReadID, c.Bgn, c.End = v[0], int32(v[1]), int32(v[2])
		if v[3] > 0 {
			c.Deltas = make([]int32, v[3])
		}
		for j := range c.Deltas {
			d, err := get()
			if err != nil {
				return nil, err
			}
			c.Deltas[j] = int32(d)
		}
	}
	if len(in) != 0 {
		return nil, fmt.Errorf("tig %d: %d trailing bytes in record", t.ID, len(in))
	}
	return t, nil
}

// MarshalBinary encodes t in the tig store's record format.
func (t *Tig) MarshalBinary() ([]byte, error) {
	return marshalTig(nil, t)
}

// UnmarshalBinary decodes a record produced by MarshalBinary.
func (t *Tig) UnmarshalBinary(data []byte) error {
	v, err := unmarshalTig(data)
	if err != nil {
		return err
	}
	*t = *v.(*Tig)
	return nil
}
