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

package fastq

import (
	"io"

	"github.com/klauspost/compress/gzip"
)

var newline = []byte{'\n'}

// Writer is a FASTQ file writer.
type Writer struct {
	w   io.Writer
	gz  *gzip.Writer
	buf []byte
	err error
}

// NewWriter constructs a new FASTQ writer that writes reads to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// NewGzipWriter is like NewWriter, but gzips its output.  Close must be
// called to flush the compressor.
func NewGzipWriter(w io.Writer) *Writer {
	gz := gzip.NewWriter(w)
	return &Writer{w: gz, gz: gz}
}

// Write writes the read r in FASTQ format.  Qualities above MaxQual are
// written as MaxQual.
func (w *Writer) Write(r *Read) error {
	w.buf = append(append(w.buf[:0], '@'), r.Name...)
	w.writeln(w.buf)
	w.writeln(r.Seq)
	w.writeln([]byte{'+'})
	w.buf = w.buf[:0]
	for _, q := range r.Qual {
		if q > MaxQual {
			q = MaxQual
		}
		w.buf = append(w.buf, q+PhredOffset)
	}
	w.writeln(w.buf)
	return w.err
}

// Close flushes the compressor, if any.  It does not close the underlying
// writer.
func (w *Writer) Close() error {
	if w.gz != nil {
		if err := w.gz.Close(); err != nil && w.err == nil {
			w.err = err
		}
		w.gz = nil
	}
	return w.err
}

func (w *Writer) writeln(line []byte) {
	if w.err != nil {
		return
	}
	_, w.err = w.w.Write(line)
	if w.err == nil {
		_, w.err = w.w.Write(newline)
	}
}
