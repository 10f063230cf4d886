// Package config defines the tuning-parameter struct shared by every
// component of the phasing engine: a single struct with `yaml` field tags,
// read with gopkg.in/yaml.v2 and defaulted before validation.
package config

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v2"
)

// Params holds the engine's tuning parameters, including the bounds that
// keep the phasing HMM's state space tractable.
type Params struct {
	UseRunLengthEncoding bool `yaml:"useRunLengthEncoding"`

	// Candidate-allele enumeration
	CandidateVariantWeight    float64 `yaml:"candidateVariantWeight"`
	ColumnAnchorTrim          int     `yaml:"columnAnchorTrim"`
	MaxConsensusStrings       int     `yaml:"maxConsensusStrings"`
	MinSubstitutionWeight     float64 `yaml:"minSubstitutionWeight"`
	MaxCandidateDeleteLength  int     `yaml:"maxCandidateDeleteLength"`

	// Read-substring extraction and filtering
	UseReadAlleles          bool    `yaml:"useReadAlleles"`
	UseReadAllelesInPhasing bool    `yaml:"useReadAllelesInPhasing"`
	MinAvgBaseQuality       float64 `yaml:"minAvgBaseQuality"`

	// Coverage control
	FilterReadsWhileHaveAtLeastThisCoverage int `yaml:"filterReadsWhileHaveAtLeastThisCoverage"`
	MaxCoverageDepth                        int `yaml:"maxCoverageDepth"`

	// Phasing HMM
	HetSubstitutionProbability float64 `yaml:"hetSubstitutionProbability"`
	RoundsOfIterativeRefinement int    `yaml:"roundsOfIterativeRefinement"`
	IncludeAncestorSubProb      bool   `yaml:"includeAncestorSubProb"`
	MaxPartitionsPerColumn       int   `yaml:"maxPartitionsPerColumn"`

	// Profile quantization
	ProfileProbScalar float64 `yaml:"profileProbScalar"`

	// Local phasing correctness
	DecayRate float64 `yaml:"decayRate"`

	// Pair-HMM substitution model (align.StateMachine)
	MatchProbability      float64 `yaml:"matchProbability"`
	GapOpenProbability     float64 `yaml:"gapOpenProbability"`
	GapExtendProbability   float64 `yaml:"gapExtendProbability"`
}

// Default returns the stock parameter set.
func Default() Params {
	return Params{
		UseRunLengthEncoding:                     true,
		CandidateVariantWeight:                   2.0,
		ColumnAnchorTrim:                         5,
		MaxConsensusStrings:                      100,
		MinSubstitutionWeight:                    1.0,
		MaxCandidateDeleteLength:                 30,
		UseReadAlleles:                           true,
		UseReadAllelesInPhasing:                  true,
		MinAvgBaseQuality:                        10.0,
		FilterReadsWhileHaveAtLeastThisCoverage:  64,
		MaxCoverageDepth:                         64,
		HetSubstitutionProbability:               0.01,
		RoundsOfIterativeRefinement:              4,
		IncludeAncestorSubProb:                   true,
		MaxPartitionsPerColumn:                   128,
		ProfileProbScalar:                        255.0,
		DecayRate:                                0.9,
		MatchProbability:                         0.95,
		GapOpenProbability:                       0.01,
		GapExtendProbability:                     0.2,
	}
}

// Load reads a YAML document from r on top of Default(), so a config file
// only needs to mention the parameters it overrides.
func Load(r io.Reader) (Params, error) {
	p := Default()
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&p); err != nil && err != io.EOF {
		return p, fmt.Errorf("%w: %s", ErrConfig, err)
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

// Validate rejects out-of-range parameters before any phasing runs.
func (p Params) Validate() error {
	if p.DecayRate <= 0 || p.DecayRate >= 1 {
		return fmt.Errorf("%w: decayRate must be in (0,1), got %g", ErrConfig, p.DecayRate)
	}
	if p.MaxPartitionsPerColumn <= 0 {
		return fmt.Errorf("%w: maxPartitionsPerColumn must be positive", ErrConfig)
	}
	if p.FilterReadsWhileHaveAtLeastThisCoverage <= 0 {
		return fmt.Errorf("%w: filterReadsWhileHaveAtLeastThisCoverage must be positive", ErrConfig)
	}
	if p.HetSubstitutionProbability <= 0 || p.HetSubstitutionProbability >= 1 {
		return fmt.Errorf("%w: hetSubstitutionProbability must be in (0,1)", ErrConfig)
	}
	if p.MatchProbability <= 0 || p.MatchProbability >= 1 {
		return fmt.Errorf("%w: matchProbability must be in (0,1)", ErrConfig)
	}
	return nil
}
