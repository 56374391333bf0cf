// Package templates contains embedded template files.
package templates

import (
	_ "embed"
)

// ConfigYAML contains the embedded configuration template.
//go:embed config.template
var ConfigYAML []byte

// EnvFile contains the embedded environment file template.
//go:embed env.template
var EnvFile []byte
