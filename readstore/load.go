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
	"context"
	"io"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/pkg/errors"
)

// Load reads a FASTQ, FASTA or BAM file into a new store.  The format is
// chosen by the extension after removing any compression suffix; FASTA and
// quality-less BAM records get quality qual.
func Load(ctx context.Context, path string, qual byte) (m *Mem, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer file.CloseAndReport(ctx, in, &err)

	m = NewMem()
	if strings.HasSuffix(path, ".bam") {
		err = m.ReadBAM(in.Reader(ctx), qual)
	} else {
		var r io.Reader = in.Reader(ctx)
		if u, _ := compress.NewReaderPath(r, path); u != nil {
			defer u.Close() // nolint: errcheck
			r = u
		}
		switch ext := baseExt(path); ext {
		case ".fastq", ".fq":
			err = m.ReadFASTQ(r)
		case ".fasta", ".fa", ".fna":
			err = m.ReadFASTA(r, qual)
		default:
			return nil, errors.Errorf("%s: unknown read file extension %q", path, ext)
		}
	}
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	log.Debug.Printf("%s: loaded %d reads", path, m.Len())
	return m, nil
}

// baseExt returns the extension of path, ignoring a trailing compression
// suffix.
func baseExt(path string) string {
	for _, s := range []string{".gz", ".bz2", ".zst"} {
		path = strings.TrimSuffix(path, s)
	}
	if i := strings.LastIndexByte(path, '.'); i >= 0 && !strings.ContainsRune(path[i:], '/') {
		return path[i:]
	}
	return ""
}
