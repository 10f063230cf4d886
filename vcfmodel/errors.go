package vcfmodel

import "errors"

// ErrVCFParse is the sentinel for malformed VCF input.
var ErrVCFParse = errors.New("vcf parse")
