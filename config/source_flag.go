package config

import (
	"github.com/spf13/pflag"
)

// FlagSource command line flags mapped onto config keys
//
// Only flags the user actually set are loaded, so flag defaults never mask file values.
type FlagSource struct {
	flags    *pflag.FlagSet
	bindings map[string]string // flag name -> config key
	priority int
}

// NewFlagSource bindings maps flag names to keys, e.g. "addr" -> "http.addr"
func NewFlagSource(flags *pflag.FlagSet, bindings map[string]string, priority int) *FlagSource {
	return &FlagSource{flags: flags, bindings: bindings, priority: priority}
}

func (s *FlagSource) Name() string {
	return "flags"
}

func (s *FlagSource) Priority() int {
	return s.priority
}

func (s *FlagSource) Load() (map[string]interface{}, error) {
	result := make(map[string]interface{})
	if s.flags == nil {
		return result, nil
	}

	for name, key := range s.bindings {
		f := s.flags.Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		result[key] = f.Value.String()
	}
	return result, nil
}
