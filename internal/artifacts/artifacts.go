package artifacts

import _ "embed"

// DefaultConfig is the annotated config file written by `cabinet init`.
//
//go:embed default_config.yaml
var DefaultConfig []byte
