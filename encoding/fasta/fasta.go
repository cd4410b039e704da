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

// Package fasta parses FASTA files held in memory.  FASTA files consist of a
// number of named sequences that may be interrupted by newlines.  For
// example:
//
// >read1 some description
// ACGTAC
// GAGGAC
// >read2
// ACGT
//
// A sequence name is the stretch of characters after '>' up to the first
// space or tab.
package fasta

import (
	"bufio"
	"bytes"
	"io"

	"github.com/pkg/errors"
)

const maxLine = 300 << 20

// Fasta represents FASTA-formatted data, consisting of a set of named
// sequences.
type Fasta interface {
	// Get returns the bases of seqName in [start, end).
	Get(seqName string, start, end uint64) ([]byte, error)

	// Len returns the length of the given sequence.
	Len(seqName string) (uint64, error)

	// SeqNames returns the names of all sequences, in the order of
	// appearance in the FASTA file.
	SeqNames() []string
}

type fasta struct {
	seqs     map[string][]byte
	seqNames []string
}

// New reads all the FASTA data from r into memory.  Blank lines are
// skipped.  It is an error for sequence data to precede the first header or
// for two sequences to share a name.
func New(r io.Reader) (Fasta, error) {
	f := &fasta{seqs: make(map[string][]byte)}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, maxLine)
	var (
		seqName string
		seq     []byte
		have    bool
		line    int
	)
	flush := func() error {
		if !have {
			return nil
		}
		if _, ok := f.seqs[seqName]; ok {
			return errors.Errorf("malformed FASTA file: duplicate sequence %s", seqName)
		}
		if seq == nil {
			seq = []byte{}
		}
		f.seqs[seqName] = seq
		f.seqNames = append(f.seqNames, seqName)
		seq = nil
		return nil
	}
	for scanner.Scan() {
		line++
		text := scanner.Bytes()
		if len(text) == 0 {
			continue
		}
		if text[0] == '>' {
			if err := flush(); err != nil {
				return nil, err
			}
			seqName, have = firstWord(text[1:]), true
			continue
		}
		if !have {
			return nil, errors.Errorf("malformed FASTA file: line %d: sequence before the first header", line)
		}
		seq = append(seq, text...)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "couldn't read FASTA data")
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return f, nil
}

// Get implements Fasta.Get().  The returned slice aliases the stored
// sequence and must not be modified.
func (f *fasta) Get(seqName string, start, end uint64) ([]byte, error) {
	s, ok := f.seqs[seqName]
	if !ok {
		return nil, errors.Errorf("sequence not found: %s", seqName)
	}
	if end < start || end > uint64(len(s)) {
		return nil, errors.Errorf("invalid query range %d - %d for sequence %s with length %d",
			start, end, seqName, len(s))
	}
	return s[start:end:end], nil
}

// Len implements Fasta.Len().
func (f *fasta) Len(seqName string) (uint64, error) {
	s, ok := f.seqs[seqName]
	if !ok {
		return 0, errors.Errorf("sequence not found: %s", seqName)
	}
	return uint64(len(s)), nil
}

// SeqNames implements Fasta.SeqNames().
func (f *fasta) SeqNames() []string {
	return f.seqNames
}

func firstWord(b []byte) string {
	if i := bytes.IndexAny(b, " \t"); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
