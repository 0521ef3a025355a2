package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
)

// LoaderBuilder assembles the standard source stack
type LoaderBuilder struct {
	configFile   string
	envPrefix    string
	flags        *pflag.FlagSet
	flagBindings map[string]string
}

func NewLoaderBuilder() *LoaderBuilder {
	return &LoaderBuilder{}
}

// WithConfigFile base file, e.g. configs/quotad.yaml
//
// An overlay next to it named after the environment (configs/quotad.prod.yaml) is loaded on top.
func (b *LoaderBuilder) WithConfigFile(path string) *LoaderBuilder {
	b.configFile = path
	return b
}

func (b *LoaderBuilder) WithEnvPrefix(prefix string) *LoaderBuilder {
	b.envPrefix = prefix
	return b
}

// WithFlags bindings maps flag names to config keys
func (b *LoaderBuilder) WithFlags(flags *pflag.FlagSet, bindings map[string]string) *LoaderBuilder {
	b.flags = flags
	b.flagBindings = bindings
	return b
}

func (b *LoaderBuilder) Build() (*Loader, error) {
	loader := NewLoader()

	if b.configFile != "" {
		loader.AddSource(NewFileSource(b.configFile, 10))
		if env := GetEnv(); env != "" {
			loader.AddSource(NewFileSource(overlayPath(b.configFile, env), 20))
		}
	}
	if b.envPrefix != "" {
		loader.AddSource(NewEnvSource(b.envPrefix, 50))
	}
	if b.flags != nil {
		loader.AddSource(NewFlagSource(b.flags, b.flagBindings, 100))
	}

	if err := loader.Load(); err != nil {
		return nil, err
	}
	return loader, nil
}

// overlayPath configs/quotad.yaml + prod -> configs/quotad.prod.yaml
func overlayPath(base, env string) string {
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "." + env + ext
}

// GetEnv APP_ENV, then ENV, then "dev"
func GetEnv() string {
	if env := os.Getenv("APP_ENV"); env != "" {
		return env
	}
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "dev"
}
