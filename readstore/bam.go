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
	"io"

	"github.com/grailbio/cns/abacus"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/pkg/errors"
)

// ReadBAM adds the primary records of a BAM stream to m.  Reads mapped to
// the reverse strand are turned back to the orientation they were sequenced
// in.  Records without qualities get qual for every base.  The mates of a pair
// are named NAME/1 and NAME/2.
func (m *Mem) ReadBAM(r io.Reader, qual byte) error {
	br, err := bam.NewReader(r, 1)
	if err != nil {
		return errors.Wrap(err, "couldn't open BAM data")
	}
	defer br.Close() // nolint: errcheck
	for {
		rec, err := br.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "couldn't read BAM record")
		}
		if rec.Flags&(sam.Secondary|sam.Supplementary) != 0 {
			sam.PutInFreePool(rec)
			continue
		}
		name := rec.Name
		switch {
		case rec.Flags&sam.Read1 != 0:
			name += "/1"
		case rec.Flags&sam.Read2 != 0:
			name += "/2"
		}
		seq := rec.Seq.Expand()
		quals := append([]byte(nil), rec.Qual...)
		if len(quals) != len(seq) || (len(quals) > 0 && quals[0] == 0xff) {
			quals = make([]byte, len(seq))
			for i := range quals {
				quals[i] = qual
			}
		}
		if rec.Flags&sam.Reverse != 0 {
			abacus.ReverseComplement(seq, quals)
		}
		sam.PutInFreePool(rec)
		if _, err := m.Add(name, seq, quals); err != nil {
			return err
		}
	}
	return nil
}
