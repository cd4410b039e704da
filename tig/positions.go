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
	"io"
	"strconv"

	"github.com/grailbio/base/tsv"
)

// WritePositions writes one TSV line per child of each tig: the tig, its
// consensus fingerprint, the read, its half-open placement on the consensus,
// its orientation and the number of gaps in it.
func WritePositions(w io.Writer, tigs []*Tig) error {
	tw := tsv.NewWriter(w)
	tw.WriteString("#TIG\tFINGERPRINT\tREAD\tBGN\tEND\tORIENT\tNDELTAS")
	if err := tw.EndLine(); err != nil {
		return err
	}
	for _, t := range tigs {
		fp := strconv.FormatUint(t.Fingerprint(), 16)
		for _, c := range t.Children {
			tw.WriteUint32(t.ID)
			tw.WriteString(fp)
			tw.WriteUint32(c.ReadID)
			tw.WriteUint32(uint32(c.Min()))
			tw.WriteUint32(uint32(c.Max()))
			if c.Complemented() {
				tw.WriteString("-")
			} else {
				tw.WriteString("+")
			}
			tw.WriteUint32(uint32(len(c.Deltas)))
			if err := tw.EndLine(); err != nil {
				return err
			}
		}
	}
	return tw.Flush()
}
