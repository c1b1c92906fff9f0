// Package configs provides embedded configuration templates for synexpand.
//
// Templates are embedded at build time with //go:embed, so they ship with
// every binary. They are written by:
//   - cmd/synexpand/cmd/init.go: .synexpand.yaml and synonyms.yaml
//   - cmd/synexpand/cmd/config.go: ~/.config/synexpand/config.yaml
//
// Configuration hierarchy (see internal/config/config.go Load()):
//  1. Hardcoded defaults (internal/config/config.go NewConfig())
//  2. User config (~/.config/synexpand/config.yaml)
//  3. Project config (.synexpand.yaml)
//  4. Environment variables (SYNEXPAND_*)
package configs

import _ "embed"

// UserConfigTemplate is the template for user/machine-level configuration.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate is the template for project-level configuration.
// It selects the yaml synonyms source pointing at synonyms.yaml.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string

// SynonymsTemplate is a starter synonyms file in the YAML source format.
//
//go:embed synonyms.example.yaml
var SynonymsTemplate string
