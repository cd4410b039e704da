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
	"bufio"
	"fmt"
	"io"
)

const displayWidth = 100

// Display writes the multialignment to w in pages of 100 columns.  Each page
// starts with the consensus; below it every read crossing the page gets one
// line, showing '.' where it agrees with the consensus.  Requires
// RefreshColumns.
func (a *Abacus) Display(w io.Writer) error {
	type row struct {
		first int
		bases []byte
	}
	rows := make([]row, len(a.reads))
	for i := range a.reads {
		if a.reads[i].first == noBead {
			rows[i].first = -1
			continue
		}
		rows[i].first, rows[i].bases, _ = a.AlignedRow(i)
	}
	bw := bufio.NewWriter(w)
	line := make([]byte, displayWidth)
	for pg := 0; pg < len(a.columns); pg += displayWidth {
		end := pg + displayWidth
		if end > len(a.columns) {
			end = len(a.columns)
		}
		fmt.Fprintf(bw, "%-10d %s\n", pg, a.cnsBases[pg:end])
		for i, r := range rows {
			if r.first < 0 || r.first >= end || r.first+len(r.bases) <= pg {
				continue
			}
			line = line[:end-pg]
			for p := pg; p < end; p++ {
				c := byte(' ')
				if k := p - r.first; k >= 0 && k < len(r.bases) {
					c = r.bases[k]
					if c == a.cnsBases[p] {
						c = '.'
					}
				}
				line[p-pg] = c
			}
			orient := 'F'
			if a.reads[i].Complemented {
				orient = 'R'
			}
			fmt.Fprintf(bw, "%-10d %s %c %d\n", i, line, orient, a.reads[i].ID)
		}
		fmt.Fprintln(bw)
	}
	return bw.Flush()
}
