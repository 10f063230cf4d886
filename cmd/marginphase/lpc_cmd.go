package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/ont-tools/marginphase/lpc"
	"github.com/ont-tools/marginphase/vcfmodel"
)

// lpcCmd implements the "lpc" subcommand: the local phasing correctness
// metric between a query and a truth phased VCF.
type lpcCmd struct{}

func (lpcCmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet(prog, flag.ContinueOnError)
	fs.SetOutput(stderr)
	queryPath := fs.String("query", "", "phased query VCF path (required)")
	truthPath := fs.String("truth", "", "phased truth VCF path (required)")
	decay := fs.Float64("decay", 0.9, "exponential decay rate d in [0,1]; 0 reduces to switch-correctness")
	switchOnly := fs.Bool("switch", false, "report only the switch-correctness limit (d=0), skipping the decayed sweep")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *queryPath == "" || *truthPath == "" {
		fmt.Fprintln(stderr, "lpc: -query and -truth are required")
		return 2
	}

	query, err := readVCF(*queryPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	truth, err := readVCF(*truthPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	if *switchOnly {
		correctness, n := lpc.SwitchCorrectness(query, truth)
		fmt.Fprintf(stdout, "%g\t%d\n", correctness, n)
		return 0
	}
	correctness, n, err := lpc.Correctness(query, truth, *decay)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	fmt.Fprintf(stdout, "%g\t%d\n", correctness, n)
	return 0
}

func readVCF(path string) ([]*vcfmodel.PhasedVariant, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	vs, err := vcfmodel.ReadPhasedVariants(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return vs, nil
}
