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
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/tsv"
)

// layoutRow is one line of a layout TSV file.  The reads of one tig are on
// consecutive lines, in merge order.
type layoutRow struct {
	Tig        int64  `tsv:"TIG"`
	Read       int64  `tsv:"READ"`
	ASkip      int64  `tsv:"ASKIP"`
	BSkip      int64  `tsv:"BSKIP"`
	Complement int64  `tsv:"COMPLEMENT"` // 1 if the read aligns reverse complemented
	AHang      int64  `tsv:"AHANG"`
	BHang      int64  `tsv:"BHANG"`
	Trace      string `tsv:"TRACE"` // comma-separated, "." if empty
}

// ReadLayouts parses a layout TSV file.  Layouts are returned in file order.
func ReadLayouts(r io.Reader) ([]Layout, error) {
	tr := tsv.NewReader(r)
	tr.HasHeaderRow = true
	tr.UseHeaderNames = true
	tr.Comment = '#'

	var (
		layouts []Layout
		row     layoutRow
		line    = 1
	)
	for {
		if err := tr.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.E(err, fmt.Sprintf("layout line %d", line+1))
		}
		line++
		if row.Tig < 0 || row.Read < 0 || row.ASkip < 0 || row.BSkip < 0 {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("layout line %d: negative ID or skip", line))
		}
		trace, err := ParseTrace(row.Trace)
		if err != nil {
			return nil, errors.E(err, fmt.Sprintf("layout line %d", line))
		}
		if n := len(layouts); n == 0 || layouts[n-1].TigID != uint32(row.Tig) {
			layouts = append(layouts, Layout{TigID: uint32(row.Tig)})
		}
		l := &layouts[len(layouts)-1]
		l.Reads = append(l.Reads, LayoutRead{
			ReadID:       uint32(row.Read),
			ASkip:        int(row.ASkip),
			BSkip:        int(row.BSkip),
			Complemented: row.Complement != 0,
			AHang:        int(row.AHang),
			BHang:        int(row.BHang),
			Trace:        trace,
		})
	}
	return layouts, nil
}

// WriteLayouts writes layouts in the format read by ReadLayouts.
func WriteLayouts(w io.Writer, layouts []Layout) error {
	tw := tsv.NewRowWriter(w)
	for _, l := range layouts {
		for _, r := range l.Reads {
			row := layoutRow{
				Tig:   int64(l.TigID),
				Read:  int64(r.ReadID),
				ASkip: int64(r.ASkip),
				BSkip: int64(r.BSkip),
				AHang: int64(r.AHang),
				BHang: int64(r.BHang),
				Trace: FormatTrace(r.Trace),
			}
			if r.Complemented {
				row.Complement = 1
			}
			if err := tw.Write(&row); err != nil {
				return err
			}
		}
	}
	return tw.Flush()
}

// ParseTrace parses a comma-separated edit trace; "." and "" are empty.
func ParseTrace(s string) ([]int32, error) {
	if s == "" || s == "." {
		return nil, nil
	}
	fields := strings.Split(s, ",")
	trace := make([]int32, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseInt(f, 10, 32)
		if err != nil {
			return nil, errors.E(errors.Invalid, err, fmt.Sprintf("bad trace entry %q", f))
		}
		trace[i] = int32(v)
	}
	return trace, nil
}

// FormatTrace is the inverse of ParseTrace.
func FormatTrace(trace []int32) string {
	if len(trace) == 0 {
		return "."
	}
	buf := make([]byte, 0, 4*len(trace))
	for i, v := range trace {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendInt(buf, int64(v), 10)
	}
	return string(buf)
}
