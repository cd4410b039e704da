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
package readstore

import (
	"bytes"
	"io"

	"github.com/grailbio/cns/encoding/fasta"
	"github.com/grailbio/cns/encoding/fastq"
	"github.com/pkg/errors"
)

// ReadFASTQ adds every record of a FASTQ stream to m.  Qualities are
// phred+33; names are the first word of each header.
func (m *Mem) ReadFASTQ(r io.Reader) error {
	sc := fastq.NewScanner(r)
	var read fastq.Read
	for sc.Scan(&read) {
		if _, err := m.Add(read.Name, read.Seq, read.Qual); err != nil {
			return err
		}
	}
	return errors.Wrap(sc.Err(), "couldn't read FASTQ data")
}

// ReadFASTA adds every record of a FASTA stream to m, giving each base the
// quality qual.  Sequences may span several lines.
func (m *Mem) ReadFASTA(r io.Reader, qual byte) error {
	fa, err := fasta.New(r)
	if err != nil {
		return err
	}
	for _, name := range fa.SeqNames() {
		n, err := fa.Len(name)
		if err != nil {
			return err
		}
		seq, err := fa.Get(name, 0, n)
		if err != nil {
			return err
		}
		if _, err := m.Add(name, seq, bytes.Repeat([]byte{qual}, len(seq))); err != nil {
			return err
		}
	}
	return nil
}
