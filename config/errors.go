package config

import "errors"

// ErrConfig is the sentinel for configuration-error conditions:
// malformed YAML, out-of-range parameters, or an inconsistent combination
// of settings.
var ErrConfig = errors.New("config")
