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

// Package fastq reads and writes FASTQ records with phred+33 qualities.
package fastq

import (
	"bufio"
	"bytes"
	"io"

	"github.com/pkg/errors"
)

var (
	// ErrShort is returned when a truncated FASTQ file is encountered.
	ErrShort = errors.New("short FASTQ file")
	// ErrInvalid is returned when an invalid FASTQ file is encountered.
	ErrInvalid = errors.New("invalid FASTQ file")
)

const (
	// PhredOffset is added to a quality value to get its FASTQ character.
	PhredOffset = 33
	// MaxQual is the highest quality a FASTQ character can carry.
	MaxQual = '~' - PhredOffset

	maxLine = 64 << 20
)

// A Read is a FASTQ record.  Name is the first word of the header line,
// without the '@'.  Qual holds decoded phred values, one per base.
type Read struct {
	Name      string
	Seq, Qual []byte
}

// Scanner reads FASTQ records.  It requires the header to begin with '@',
// the third line to begin with '+', and the quality line to match the
// sequence in length.  Scanners are not threadsafe.
type Scanner struct {
	b    *bufio.Scanner
	err  error
	line int
}

// NewScanner constructs a Scanner that reads raw FASTQ data from r.
func NewScanner(r io.Reader) *Scanner {
	s := &Scanner{b: bufio.NewScanner(r)}
	s.b.Buffer(nil, maxLine)
	return s
}

// Scan reads the next record into read.  Seq and Qual are fresh slices that
// the caller may keep.  Once Scan returns false, it never returns true
// again; the caller should then check Err.
func (f *Scanner) Scan(read *Read) bool {
	if f.err != nil {
		return false
	}
	if !f.b.Scan() {
		f.err = f.b.Err()
		if f.err == nil {
			f.err = io.EOF
		}
		return false
	}
	f.line++
	hdr := f.b.Bytes()
	if len(hdr) == 0 || hdr[0] != '@' {
		f.err = errors.Wrapf(ErrInvalid, "line %d: header does not start with '@'", f.line)
		return false
	}
	name := firstWord(hdr[1:])
	if !f.scan() {
		return false
	}
	seq := append([]byte(nil), f.b.Bytes()...)
	if !f.scan() {
		return false
	}
	if sep := f.b.Bytes(); len(sep) == 0 || sep[0] != '+' {
		f.err = errors.Wrapf(ErrInvalid, "line %d: separator does not start with '+'", f.line)
		return false
	}
	if !f.scan() {
		return false
	}
	raw := f.b.Bytes()
	if len(raw) != len(seq) {
		f.err = errors.Wrapf(ErrInvalid, "read %s: %d bases but %d quals", name, len(seq), len(raw))
		return false
	}
	qual := make([]byte, len(raw))
	for i, q := range raw {
		if q < PhredOffset {
			f.err = errors.Wrapf(ErrInvalid, "read %s: quality character %q below '!'", name, q)
			return false
		}
		qual[i] = q - PhredOffset
	}
	read.Name, read.Seq, read.Qual = name, seq, qual
	return true
}

func (f *Scanner) scan() bool {
	if !f.b.Scan() {
		if f.err = f.b.Err(); f.err == nil {
			f.err = errors.Wrapf(ErrShort, "line %d", f.line)
		}
		return false
	}
	f.line++
	return true
}

// Err returns the scanning error, if any.
func (f *Scanner) Err() error {
	if f.err == io.EOF {
		return nil
	}
	return f.err
}

func firstWord(b []byte) string {
	if i := bytes.IndexAny(b, " \t"); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
