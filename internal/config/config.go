// Package config loads optional YAML configuration files and merges
// them under cobra/pflag-sourced values, with flags always taking
// precedence over file defaults.
package config

import (
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Load reads path (if non-empty and present) as YAML into a fresh koanf
// instance, then layers flags on top so explicit command-line values
// always win over file defaults.
func Load(path string, flags *pflag.FlagSet) (*koanf.Koanf, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, err
		}
	}

	return k, nil
}
