package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/klauspost/pgzip"
	log "github.com/sirupsen/logrus"

	"github.com/ont-tools/marginphase/align"
	"github.com/ont-tools/marginphase/bubble"
	"github.com/ont-tools/marginphase/config"
	"github.com/ont-tools/marginphase/consensus"
	"github.com/ont-tools/marginphase/internal/concurrency"
	"github.com/ont-tools/marginphase/phase"
	"github.com/ont-tools/marginphase/poa"
	"github.com/ont-tools/marginphase/profile"
	"github.com/ont-tools/marginphase/readio"
	"github.com/ont-tools/marginphase/rescue"
	"github.com/ont-tools/marginphase/vcfmodel"
)

// phaseCmd implements the "phase" subcommand: read a JSON array of chunks
// (a POA, its reads, and an optional VCF guide per chunk), phase each one,
// and emit the JSON phasing record per chunk.
type phaseCmd struct{}

func (phaseCmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet(prog, flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "YAML config file overriding config.Default()")
	inputPath := fs.String("input", "-", "JSON chunk array input path, or - for stdin")
	outputPath := fs.String("output", "-", "output path, or - for stdout")
	gzipOut := fs.Bool("gzip", false, "parallel-gzip the combined JSON output stream")
	polish := fs.Bool("polish", false, "also stitch and emit the two haplotype consensus sequences per chunk")
	vcfPath := fs.String("vcf", "", "also write the phased heterozygous calls as a phased VCF to this path")
	sampleName := fs.String("sample", "sample", "sample column name for -vcf output")
	jobs := fs.Int("j", 1, "number of chunks to phase concurrently")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	params := config.Default()
	if *configPath != "" {
		f, err := os.Open(*configPath)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		defer f.Close()
		params, err = config.Load(f)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
	}

	in := stdin
	if *inputPath != "-" {
		f, err := os.Open(*inputPath)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		defer f.Close()
		in = f
	}
	chunks, err := decodeChunks(in)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	var out io.Writer = stdout
	if *outputPath != "-" {
		f, err := os.Create(*outputPath)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		defer f.Close()
		out = f
	}
	var gzw io.WriteCloser
	if *gzipOut {
		gzw = pgzip.NewWriter(out)
		defer gzw.Close()
		out = gzw
	}

	smForward := align.NewStateMachine(params.MatchProbability, params.GapOpenProbability, params.GapExtendProbability)
	smReverse := align.NewStateMachine(params.MatchProbability, params.GapOpenProbability, params.GapExtendProbability)
	if err := sanityCheckStateMachine(smForward); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if err := sanityCheckStateMachine(smReverse); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	records := make([]PhasingRecord, len(chunks))
	chunkVariants := make([][]*vcfmodel.PhasedVariant, len(chunks))
	throttle := &concurrency.Throttle{Max: *jobs}
	for i, c := range chunks {
		i, c := i, c
		throttle.Acquire()
		go func() {
			defer throttle.Release()
			rec, vs, err := phaseOneChunk(c, params, *polish, smForward, smReverse)
			if err != nil {
				log.WithFields(log.Fields{"chunk": c.RefName}).Warnf("phasing failed: %s", err)
				throttle.Report(err)
				return
			}
			records[i] = rec
			chunkVariants[i] = vs
		}()
	}
	if err := throttle.Wait(); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	if *vcfPath != "" {
		var all []*vcfmodel.PhasedVariant
		for _, vs := range chunkVariants {
			all = append(all, vs...)
		}
		f, err := os.Create(*vcfPath)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		err = vcfmodel.WritePhasedVCF(f, *sampleName, all)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
	}

	enc := json.NewEncoder(out)
	if err := enc.Encode(records); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

// sanityCheckStateMachine rejects a substitution model whose mean match
// log-probability is non-negative or NaN, which would make every forward
// probability downstream meaningless.
func sanityCheckStateMachine(sm *align.StateMachine) error {
	m := sm.MeanMatchLogProb([]byte("ACGT"))
	if math.IsNaN(m) || m >= 0 {
		return fmt.Errorf("%w: degenerate pair-HMM match model (mean match log-prob %g)", config.ErrConfig, m)
	}
	return nil
}

// phaseOneChunk runs the full chunk pipeline: bubble-graph construction,
// profile building, phasing, and filtered-read rescue, then renders the
// JSON phasing record and the chunk's phased heterozygous calls. With
// polish set it also stitches the two haplotype consensus sequences into
// the record.
func phaseOneChunk(c chunkDTO, params config.Params, polish bool, smForward, smReverse *align.StateMachine) (PhasingRecord, []*vcfmodel.PhasedVariant, error) {
	p := c.Poa.toPoa()
	reads := c.toReads()
	vcfEntries := c.toVCFEntries()

	g := bubble.Build(p, reads, vcfEntries, params, true, smForward, smReverse)
	if len(g.Bubbles) == 0 {
		return PhasingRecord{}, nil, nil
	}
	pseqs := profile.Build(g, params)
	gf := phase.Run(g, pseqs, params)

	primary := rescue.FromGenomeFragment(g, gf, nil)
	rescued, acc1, acc2 := rescue.RescuePOAScores(p, primary, reads, params, smForward)

	filteredAt := filteredReadsPerBubble(p, primary, reads, rescued, params)

	rec := buildPhasingRecord(c.RefStart, g, gf, pseqs, rescued, acc1, acc2, filteredAt, params)
	if polish {
		if err := stitchHaplotypes(&rec, g, gf, params); err != nil {
			log.WithFields(log.Fields{"chunk": c.RefName}).Warnf("consensus stitching failed: %s", err)
		}
	}
	return rec, phasedVariants(c, g, gf), nil
}

// phasedVariants converts the heterozygous bubbles of a phased chunk into
// PhasedVariant records for -vcf output, one phase set per chunk (the
// phasing HMM never links haplotypes across chunk boundaries).
func phasedVariants(c chunkDTO, g *bubble.BubbleGraph, gf *phase.GenomeFragment) []*vcfmodel.PhasedVariant {
	expandedPos := expandedPositions(g)
	ps := strconv.Itoa(c.RefStart)
	var out []*vcfmodel.PhasedVariant
	for i, b := range g.Bubbles {
		if i >= len(gf.Haplotype1) || i >= len(gf.Haplotype2) {
			continue
		}
		a1, a2 := gf.Haplotype1[i], gf.Haplotype2[i]
		if a1 == a2 {
			continue
		}
		alleles := []string{string(b.RefAllele.Expand())}
		idx := func(s string) int {
			for k, a := range alleles {
				if a == s {
					return k
				}
			}
			alleles = append(alleles, s)
			return len(alleles) - 1
		}
		gt1 := idx(string(b.Alleles[a1].Expand()))
		gt2 := idx(string(b.Alleles[a2].Expand()))
		out = append(out, &vcfmodel.PhasedVariant{
			RefSeqName: c.RefName,
			RefPos:     c.RefStart + expandedPos[b.RefStart],
			Quality:    phredQuality(gf.SiteProbs[i]),
			Alleles:    alleles,
			GT1:        gt1,
			GT2:        gt2,
			PhaseSet:   ps,
		})
	}
	return out
}

// phredQuality converts a posterior call probability to a phred-scaled
// quality, capped so a probability of exactly 1 stays finite.
func phredQuality(p float64) float64 {
	if p >= 1 {
		return 60
	}
	if p <= 0 {
		return 0
	}
	q := -10 * math.Log10(1-p)
	if q > 60 {
		q = 60
	}
	return q
}

// stitchHaplotypes fills rec's consensus fields by running the consensus
// stitcher once per haplotype over the phased allele path.
func stitchHaplotypes(rec *PhasingRecord, g *bubble.BubbleGraph, gf *phase.GenomeFragment, params config.Params) error {
	res1, err := consensus.Stitch(g, gf.Haplotype1, params.UseRunLengthEncoding)
	if err != nil {
		return err
	}
	res2, err := consensus.Stitch(g, gf.Haplotype2, params.UseRunLengthEncoding)
	if err != nil {
		return err
	}
	rec.ConsensusHap1 = string(res1.Consensus)
	rec.ConsensusHap2 = string(res2.Consensus)
	return nil
}

// filteredReadsPerBubble re-extracts (unfiltered) which rescued
// reads actually span each heterozygous primary bubble, so the JSON
// phasing record's "filtered" rows only list reads genuinely observed at
// that bubble rather than every rescued read in the chunk.
func filteredReadsPerBubble(p *poa.Poa, primary []rescue.PrimaryBubble, reads map[int]*readio.Read, rescued map[*readio.Read]rescue.Assignment, params config.Params) map[int]map[*readio.Read]bool {
	out := make(map[int]map[*readio.Read]bool, len(primary))
	for _, pb := range primary {
		substrings := bubble.GetReadSubstrings(p, reads, pb.RefStart, pb.RefEnd, false, params)
		at := map[*readio.Read]bool{}
		for _, rs := range substrings {
			if rescued[rs.Read] != rescue.Unclassified {
				at[rs.Read] = true
			}
		}
		if len(at) > 0 {
			out[pb.Index] = at
		}
	}
	return out
}
