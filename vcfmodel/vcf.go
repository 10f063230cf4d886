// Package vcfmodel models VCF records as consumed and produced by the
// phasing engine: VcfEntry (a minimal stand-in for an externally supplied
// VCF-parsing layer) and PhasedVariant (owned by the
// local-phasing-correctness scorer). Text I/O is hand-formatted
// (tab-separated columns, AC= INFO, GT/PS FORMAT columns) rather than
// shelling out to bcftools.
package vcfmodel

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// VcfEntry is the minimal VCF-record shape the bubble-graph builder
// consumes: a reference name, 0-based position, quality, the allele
// strings (index 0 is REF), and two genotype allele indices.
type VcfEntry struct {
	RefSeqName string
	RefPos     int // 0-based
	Quality    float64
	Alleles    []string
	GT1, GT2   int
}

// PhasedVariant is a phased heterozygous VCF record as consumed by the
// local phasing correctness scorer.
type PhasedVariant struct {
	RefSeqName string
	RefPos     int
	Quality    float64
	Alleles    []string
	GT1, GT2   int // distinct allele indices
	PhaseSet   string
}

func (v *PhasedVariant) positionCmp(o *PhasedVariant) int {
	switch {
	case v.RefPos < o.RefPos:
		return -1
	case v.RefPos > o.RefPos:
		return 1
	default:
		return 0
	}
}

// SortPhasedVariants sorts in place by reference position. Insertion sort:
// input is expected nearly sorted already.
func SortPhasedVariants(vs []*PhasedVariant) {
	for i := 1; i < len(vs); i++ {
		for j := i; j > 0 && vs[j-1].positionCmp(vs[j]) > 0; j-- {
			vs[j-1], vs[j] = vs[j], vs[j-1]
		}
	}
}

// header column indices for a parsed VCF line.
const (
	colChrom = iota
	colPos
	colID
	colRef
	colAlt
	colQual
	colFilter
	colInfo
	colFormat
	colSample
)

// psTagKind records whether the VCF header declares the PS FORMAT field as
// an Integer or a String. The type is detected once from the header and
// held fixed; a PS value appearing in a record without a header
// declaration of either type is a fatal parse error.
type psTagKind int

const (
	psUnknown psTagKind = iota
	psInteger
	psString
)

// parsePSHeaderKind inspects a ##FORMAT header line and returns the PS
// tag's declared type, or psUnknown if the line declares some other tag.
func parsePSHeaderKind(line string) (psTagKind, error) {
	if !strings.HasPrefix(line, "##FORMAT=<") || !strings.Contains(line, "ID=PS") {
		return psUnknown, nil
	}
	switch {
	case strings.Contains(line, "Type=Integer"):
		return psInteger, nil
	case strings.Contains(line, "Type=String"):
		return psString, nil
	}
	return psUnknown, fmt.Errorf("%w: PS FORMAT declared with a type that is neither Integer nor String: %q", ErrVCFParse, line)
}

// ReadPhasedVariants parses a phased VCF stream into an ordered,
// per-contig-agnostic list of PhasedVariant, keeping records whose FILTER
// is PASS or "." and skipping homozygous and unphased ("/") genotypes; only
// phased heterozygous records carry phasing information.
func ReadPhasedVariants(r io.Reader) ([]*PhasedVariant, error) {
	var out []*PhasedVariant
	kind := psUnknown
	skippedHom, skippedFilter := 0, 0
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1<<20), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		if len(line) == 0 || line[0] == '#' {
			if kind == psUnknown {
				k, err := parsePSHeaderKind(line)
				if err != nil {
					return nil, err
				}
				if k != psUnknown {
					kind = k
				}
			}
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) <= colSample {
			return nil, fmt.Errorf("%w: malformed VCF record: %q", ErrVCFParse, line)
		}
		if cols[colFilter] != "PASS" && cols[colFilter] != "." {
			skippedFilter++
			continue
		}
		pos, err := strconv.Atoi(cols[colPos])
		if err != nil {
			return nil, fmt.Errorf("%w: bad POS %q: %s", ErrVCFParse, cols[colPos], err)
		}
		qual, _ := strconv.ParseFloat(cols[colQual], 64)
		alleles := append([]string{cols[colRef]}, strings.Split(cols[colAlt], ",")...)

		fmtKeys := strings.Split(cols[colFormat], ":")
		fmtVals := strings.Split(cols[colSample], ":")
		gtIdx, psIdx := -1, -1
		for i, k := range fmtKeys {
			switch k {
			case "GT":
				gtIdx = i
			case "PS":
				psIdx = i
			}
		}
		if gtIdx < 0 || gtIdx >= len(fmtVals) {
			return nil, fmt.Errorf("%w: no GT field in record at pos %d", ErrVCFParse, pos)
		}
		gt1, gt2, phased, err := parseGT(fmtVals[gtIdx])
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrVCFParse, err)
		}
		if !phased || gt1 == gt2 {
			skippedHom++
			continue
		}
		ps := ""
		if psIdx >= 0 && psIdx < len(fmtVals) {
			raw := fmtVals[psIdx]
			if kind == psUnknown {
				return nil, fmt.Errorf("%w: PS value at pos %d but no Integer or String PS FORMAT declaration in header", ErrVCFParse, pos)
			}
			if kind == psInteger {
				if _, err := strconv.Atoi(raw); err != nil {
					return nil, fmt.Errorf("%w: malformed integer PS tag %q at pos %d", ErrVCFParse, raw, pos)
				}
			}
			ps = raw
		} else {
			ps = strconv.Itoa(pos) // default: each variant its own phase set
		}
		out = append(out, &PhasedVariant{
			RefSeqName: cols[colChrom],
			RefPos:     pos - 1, // VCF POS is 1-based
			Quality:    qual,
			Alleles:    alleles,
			GT1:        gt1,
			GT2:        gt2,
			PhaseSet:   ps,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"kept": len(out), "skippedHom": skippedHom, "skippedFilter": skippedFilter,
	}).Debug("parsed phased VCF records")
	SortPhasedVariants(out)
	return out, nil
}

func parseGT(s string) (gt1, gt2 int, phased bool, err error) {
	sep := strings.IndexAny(s, "|/")
	if sep < 0 {
		return 0, 0, false, fmt.Errorf("unparseable GT %q", s)
	}
	phased = s[sep] == '|'
	gt1, err = strconv.Atoi(s[:sep])
	if err != nil {
		return 0, 0, false, err
	}
	gt2, err = strconv.Atoi(s[sep+1:])
	return gt1, gt2, phased, err
}

// GetSharedContigs returns the set of reference names present in both
// lists.
func GetSharedContigs(a, b []*PhasedVariant) map[string]bool {
	seen := map[string]bool{}
	for _, v := range a {
		seen[v.RefSeqName] = true
	}
	shared := map[string]bool{}
	for _, v := range b {
		if seen[v.RefSeqName] {
			shared[v.RefSeqName] = true
		}
	}
	return shared
}

// WriteVCF renders entries as an unphased VCF: one line per distinct REF
// with its ALT alleles pooled into an AC= INFO tally.
func WriteVCF(w io.Writer, refSeqName string, entries []VcfEntry) error {
	bw := bufio.NewWriter(w)
	fmt.Fprint(bw, "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n")
	byRef := map[string]map[string]int{}
	order := map[string]int{}
	for i, e := range entries {
		if len(e.Alleles) < 2 {
			continue
		}
		ref := e.Alleles[0]
		alts, ok := byRef[ref]
		if !ok {
			alts = map[string]int{}
			byRef[ref] = alts
			order[ref] = i
		}
		for _, alt := range e.Alleles[1:] {
			alts[alt]++
		}
	}
	for ref, alts := range byRef {
		altSlice := make([]string, 0, len(alts))
		for a := range alts {
			altSlice = append(altSlice, a)
		}
		info := "AC="
		for i, a := range altSlice {
			if i > 0 {
				info += ","
			}
			info += strconv.Itoa(alts[a])
		}
		fmt.Fprintf(bw, "%s\t%d\t.\t%s\t%s\t.\t.\t%s\n", refSeqName, entries[order[ref]].RefPos+1, ref, strings.Join(altSlice, ","), info)
	}
	return bw.Flush()
}

// WritePhasedVCF renders phased genotypes as a phased VCF (GT+PS FORMAT
// columns). Each variant's own RefSeqName is used, so a multi-contig list
// writes correctly.
func WritePhasedVCF(w io.Writer, sampleName string, vs []*PhasedVariant) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, `##FORMAT=<ID=GT,Number=1,Type=String,Description="Genotype">`)
	fmt.Fprintln(bw, `##FORMAT=<ID=PS,Number=1,Type=String,Description="Phase set">`)
	fmt.Fprintf(bw, "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\t%s\n", sampleName)
	for _, v := range vs {
		if len(v.Alleles) < 2 {
			continue
		}
		fmt.Fprintf(bw, "%s\t%d\t.\t%s\t%s\t%s\t.\t.\tGT:PS\t%d|%d:%s\n",
			v.RefSeqName, v.RefPos+1, v.Alleles[0], strings.Join(v.Alleles[1:], ","),
			formatQual(v.Quality), v.GT1, v.GT2, v.PhaseSet)
	}
	return bw.Flush()
}

func formatQual(q float64) string {
	if q == 0 {
		return "."
	}
	return strconv.FormatFloat(q, 'f', 2, 64)
}
