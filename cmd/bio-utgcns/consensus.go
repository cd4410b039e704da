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
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/cns/readstore"
	"github.com/grailbio/cns/tig"
	"github.com/grailbio/cns/utgcns"
)

type consensusFlags struct {
	reads, layout string
	fastaQual     byte
	out           string
	bam, gzip     bool
}

// outputFile is a buffered file created by file.Create.
type outputFile struct {
	f file.File
	w *bufio.Writer
}

func createOutput(ctx context.Context, path string) (*outputFile, error) {
	f, err := file.Create(ctx, path)
	if err != nil {
		return nil, err
	}
	return &outputFile{f: f, w: bufio.NewWriterSize(f.Writer(ctx), 1<<20)}, nil
}

func (o *outputFile) close(ctx context.Context) error {
	err := o.w.Flush()
	if e := o.f.Close(ctx); e != nil && err == nil {
		err = e
	}
	return err
}

func readLayouts(ctx context.Context, path string) (layouts []tig.Layout, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer file.CloseAndReport(ctx, in, &err)
	var r io.Reader = in.Reader(ctx)
	if u, _ := compress.NewReaderPath(r, path); u != nil {
		defer u.Close() // nolint: errcheck
		r = u
	}
	if layouts, err = tig.ReadLayouts(r); err != nil {
		return nil, errors.E(err, path)
	}
	log.Printf("%s: read %d layouts", path, len(layouts))
	return layouts, nil
}

func consensus(ctx context.Context, flags consensusFlags, opts utgcns.Opts) (err error) {
	store, err := readstore.Load(ctx, flags.reads, flags.fastaQual)
	if err != nil {
		return err
	}
	layouts, err := readLayouts(ctx, flags.layout)
	if err != nil {
		return err
	}

	fastqPath := flags.out + ".fastq"
	if flags.gzip {
		fastqPath += ".gz"
	}
	fastqOut, err := createOutput(ctx, fastqPath)
	if err != nil {
		return err
	}
	rioOut, err := createOutput(ctx, flags.out+".tig.rio")
	if err != nil {
		return err
	}
	fq := tig.NewFASTQWriter(fastqOut.w, fastqPath)
	rio := tig.NewRioWriter(rioOut.w)

	var (
		tigs    []*tig.Tig
		results []*utgcns.Result
		once    errors.Once
	)
	stats, err := utgcns.Run(ctx, store, layouts, opts, func(res *utgcns.Result) error {
		tigs = append(tigs, res.Tig)
		if flags.bam {
			results = append(results, res)
		}
		rio.Append(res.Tig)
		return fq.Write(res.Tig)
	})
	once.Set(err)
	once.Set(fq.Close())
	once.Set(fastqOut.close(ctx))
	once.Set(rio.Finish())
	once.Set(rioOut.close(ctx))
	if err := once.Err(); err != nil {
		return err
	}

	posOut, err := createOutput(ctx, flags.out+".positions.tsv")
	if err != nil {
		return err
	}
	err = tig.WritePositions(posOut.w, tigs)
	if e := posOut.close(ctx); e != nil && err == nil {
		err = e
	}
	if err != nil {
		return err
	}

	if flags.bam {
		bamOut, err := createOutput(ctx, flags.out+".bam")
		if err != nil {
			return err
		}
		err = utgcns.WriteBAM(bamOut.w, results, store.Name)
		if e := bamOut.close(ctx); e != nil && err == nil {
			err = e
		}
		if err != nil {
			return err
		}
	}
	log.Printf("%s: wrote %d tigs, %d failed", flags.out, stats.Tigs, stats.Failed)
	return nil
}

func display(ctx context.Context, w io.Writer, readsPath, layoutPath string, fastaQual byte, tigID uint32, opts utgcns.Opts) error {
	layouts, err := readLayouts(ctx, layoutPath)
	if err != nil {
		return err
	}
	var layout *tig.Layout
	for i := range layouts {
		if layouts[i].TigID == tigID {
			layout = &layouts[i]
			break
		}
	}
	if layout == nil {
		return errors.E(errors.NotExist, fmt.Sprintf("tig %d not in %s", tigID, layoutPath))
	}
	store, err := readstore.Load(ctx, readsPath, fastaQual)
	if err != nil {
		return err
	}
	_, a, err := utgcns.Generate(store, *layout, opts)
	if err != nil {
		return err
	}
	return a.Display(w)
}

func checksum(ctx context.Context, path string) (sum []byte, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer file.CloseAndReport(ctx, in, &err)
	return tig.Checksum(in.Reader(ctx))
}
