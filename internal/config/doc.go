// Package config assembles varlens settings from layered sources.
//
// Layers, lowest priority first:
//
//	builtin defaults
//	user file        ~/.config/varlens/config.toml
//	workspace file   ./.varlens.toml
//	environment      VARLENS_* variables
//	arguments        command line flags
//
// Files are TOML. The merged tree decodes into Config, the typed view
// used by the rest of the program.
package config
