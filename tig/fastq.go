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
	"strings"

	"github.com/grailbio/cns/encoding/fastq"
)

// FASTQWriter writes consensus sequences as FASTQ records named tigNNNNNNNN,
// with phred+33 qualities.
type FASTQWriter struct {
	w *fastq.Writer
}

// NewFASTQWriter creates a writer on w.  Output is gzipped if path ends in
// ".gz"; path is not otherwise used.
func NewFASTQWriter(w io.Writer, path string) *FASTQWriter {
	if strings.HasSuffix(path, ".gz") {
		return &FASTQWriter{fastq.NewGzipWriter(w)}
	}
	return &FASTQWriter{fastq.NewWriter(w)}
}

// Write appends one tig.
func (w *FASTQWriter) Write(t *Tig) error {
	return w.w.Write(&fastq.Read{Name: TigName(t.ID), Seq: t.Consensus, Qual: t.Quals})
}

// Close flushes the compressor, if any.  It does not close the underlying
// writer.
func (w *FASTQWriter) Close() error { return w.w.Close() }

// TigName returns the FASTQ record name of tig id.
func TigName(id uint32) string {
	s := strconv.FormatUint(uint64(id), 10)
	if len(s) < 8 {
		s = strings.Repeat("0", 8-len(s)) + s
	}
	return "tig" + s
}
