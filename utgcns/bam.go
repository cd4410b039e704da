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
	"io"
	"sort"
	"strconv"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/cns/tig"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
)

// WriteBAM writes the read alignments of results as a BAM file with one
// reference per non-empty tig, named by tig.TigName.  names maps a read ID
// to the record name; nil uses the decimal ID.  Records of a tig are sorted
// by position.
func WriteBAM(w io.Writer, results []*Result, names func(uint32) string) (err error) {
	if names == nil {
		names = func(id uint32) string { return strconv.FormatUint(uint64(id), 10) }
	}
	var refs []*sam.Reference
	refOf := make([]*sam.Reference, len(results))
	for i, res := range results {
		if res.Tig.Len() == 0 {
			continue
		}
		ref, err := sam.NewReference(tig.TigName(res.Tig.ID), "", "", res.Tig.Len(), nil, nil)
		if err != nil {
			return err
		}
		refs = append(refs, ref)
		refOf[i] = ref
	}
	header, err := sam.NewHeader(nil, refs)
	if err != nil {
		return err
	}
	header.SortOrder = sam.Coordinate
	bw, err := bam.NewWriter(w, header, 1)
	if err != nil {
		return err
	}
	defer func() {
		if e := bw.Close(); e != nil && err == nil {
			err = e
		}
	}()

	var recs []*sam.Record
	for i, res := range results {
		ref := refOf[i]
		if ref == nil {
			continue
		}
		recs = recs[:0]
		for _, r := range res.Reads {
			if len(r.Cigar) == 0 {
				continue
			}
			var flags sam.Flags
			if r.Reverse {
				flags |= sam.Reverse
			}
			quals := make([]byte, len(r.Quals))
			copy(quals, r.Quals)
			recs = append(recs, &sam.Record{
				Name:    names(r.ReadID),
				Ref:     ref,
				Pos:     r.Pos,
				MapQ:    255,
				Cigar:   r.Cigar,
				Flags:   flags,
				MatePos: -1,
				Seq:     sam.NewSeq(r.Bases),
				Qual:    quals,
			})
		}
		sort.SliceStable(recs, func(i, j int) bool { return recs[i].Pos < recs[j].Pos })
		for _, rec := range recs {
			if err := bw.Write(rec); err != nil {
				return errors.E(err, "write read "+rec.Name)
			}
		}
	}
	return nil
}
