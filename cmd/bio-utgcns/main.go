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
// bio-utgcns computes tig consensus sequences from reads and tig layouts.
//
// Usage:
//
//   bio-utgcns consensus -reads reads.fastq.gz -layout tigs.layout.tsv -out PREFIX
//
// writes PREFIX.fastq.gz (the consensus sequences), PREFIX.positions.tsv (the
// placement of each read on its tig) and PREFIX.tig.rio (the tig store read
// by "bio-utgcns checksum" and downstream tools).  With -bam, the reads are
// also written as PREFIX.bam, aligned to the consensus sequences.
//
//   bio-utgcns display -reads reads.fastq.gz -layout tigs.layout.tsv -tig 12
//
// prints the refined multialignment of one tig.
//
//   bio-utgcns checksum PREFIX.tig.rio
//
// prints a checksum of a tig store.
package main

import (
	"fmt"
	"log"
	"strings"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/cns/abacus"
	"github.com/grailbio/cns/utgcns"
	"v.io/x/lib/cmdline"
)

// commonFlags are shared by the commands that build multialignments.
type commonFlags struct {
	reads, layout        *string
	fastaQual            *int
	refine               *string
	gapFraction          *float64
	highQualityMinQV     *int
	maxRefinePasses      *int
	maxWindow            *int
	highQuality, noMerge *bool
}

func addCommonFlags(cmd *cmdline.Command) commonFlags {
	return commonFlags{
		reads:            cmd.Flags.String("reads", "", "FASTQ, FASTA or BAM file of reads, optionally compressed"),
		layout:           cmd.Flags.String("layout", "", "TSV file of tig layouts"),
		fastaQual:        cmd.Flags.Int("fasta-qual", 20, "Base quality assigned to reads without qualities"),
		refine:           cmd.Flags.String("refine", "smooth,polyx,indel", `Comma-separated refinement passes: any of "smooth", "polyx" and "indel", or "none"`),
		gapFraction:      cmd.Flags.Float64("gap-fraction", abacus.DefaultOpts.GapFraction, "Weight of a gap vote relative to the weakest base vote in its column"),
		highQualityMinQV: cmd.Flags.Int("high-quality-min-qv", abacus.DefaultOpts.HighQualityMinQV, "Minimum base quality voting in high-quality consensus calls"),
		maxRefinePasses:  cmd.Flags.Int("max-refine-passes", abacus.DefaultOpts.MaxRefinePasses, "Maximum number of refinement passes"),
		maxWindow:        cmd.Flags.Int("max-window", abacus.DefaultOpts.MaxWindow, "Maximum width of a realignment window"),
		highQuality:      cmd.Flags.Bool("high-quality", true, "Call the final consensus from high-quality bases only"),
		noMerge:          cmd.Flags.Bool("no-merge", false, "Do not merge compatible adjacent columns before the final call"),
	}
}

func (f commonFlags) opts() (utgcns.Opts, error) {
	opts := utgcns.DefaultOpts
	level, err := parseRefineLevel(*f.refine)
	if err != nil {
		return opts, err
	}
	if *f.fastaQual < 0 || *f.fastaQual > 255 {
		return opts, fmt.Errorf("-fasta-qual %d out of range", *f.fastaQual)
	}
	opts.RefineLevel = level
	opts.HighQuality = *f.highQuality
	opts.SkipMerge = *f.noMerge
	opts.Abacus = abacus.Opts{
		GapFraction:      *f.gapFraction,
		HighQualityMinQV: *f.highQualityMinQV,
		MaxRefinePasses:  *f.maxRefinePasses,
		MaxWindow:        *f.maxWindow,
	}
	return opts, nil
}

func parseRefineLevel(s string) (abacus.RefineLevel, error) {
	var level abacus.RefineLevel
	if s == "" || s == "none" {
		return 0, nil
	}
	for _, name := range strings.Split(s, ",") {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "smooth":
			level |= abacus.Smooth
		case "polyx":
			level |= abacus.PolyX
		case "indel":
			level |= abacus.Indel
		default:
			return 0, fmt.Errorf("unknown refinement pass %q", name)
		}
	}
	return level, nil
}

func newCmdConsensus() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "consensus",
		Short: "Compute tig consensus sequences",
	}
	common := addCommonFlags(cmd)
	out := cmd.Flags.String("out", "", "Output path prefix")
	parallelism := cmd.Flags.Int("parallelism", 0, "Number of tigs processed concurrently; 0 means the number of CPUs")
	tempDir := cmd.Flags.String("temp-dir", "", "Directory for intermediate files")
	writeBAM := cmd.Flags.Bool("bam", false, "Also write the reads, aligned to the consensus, as PREFIX.bam")
	gzip := cmd.Flags.Bool("gzip", true, "Gzip the consensus FASTQ")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 0 {
			return fmt.Errorf("consensus takes no arguments, but got %v", argv)
		}
		if *common.reads == "" || *common.layout == "" || *out == "" {
			return fmt.Errorf("consensus requires -reads, -layout and -out")
		}
		opts, err := common.opts()
		if err != nil {
			return err
		}
		opts.Parallelism = *parallelism
		opts.TempDir = *tempDir
		return consensus(vcontext.Background(), consensusFlags{
			reads:     *common.reads,
			layout:    *common.layout,
			fastaQual: byte(*common.fastaQual),
			out:       *out,
			bam:       *writeBAM,
			gzip:      *gzip,
		}, opts)
	})
	return cmd
}

func newCmdDisplay() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "display",
		Short: "Print the multialignment of one tig",
	}
	common := addCommonFlags(cmd)
	tigID := cmd.Flags.Uint("tig", 0, "ID of the tig to display")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 0 {
			return fmt.Errorf("display takes no arguments, but got %v", argv)
		}
		if *common.reads == "" || *common.layout == "" {
			return fmt.Errorf("display requires -reads and -layout")
		}
		opts, err := common.opts()
		if err != nil {
			return err
		}
		return display(vcontext.Background(), env.Stdout, *common.reads, *common.layout, byte(*common.fastaQual), uint32(*tigID), opts)
	})
	return cmd
}

func newCmdChecksum() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "checksum",
		Short:    "Print a checksum of a tig store",
		ArgsName: "path",
	}
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("checksum takes one pathname argument, but got %v", argv)
		}
		sum, err := checksum(vcontext.Background(), argv[0])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(env.Stdout, "%x\t%s\n", sum, argv[0])
		return err
	})
	return cmd
}

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(
		&cmdline.Command{
			Name:     "bio-utgcns",
			Short:    "Compute tig consensus sequences",
			LookPath: false,
			Children: []*cmdline.Command{
				newCmdConsensus(),
				newCmdDisplay(),
				newCmdChecksum(),
			},
		})
}
