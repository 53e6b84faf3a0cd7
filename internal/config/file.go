package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix = "TSQLGEN_"

	// ConfigFileEnv names an optional YAML file whose keys are the variable
	// names without the TSQLGEN_ prefix, in lower case (db_host, ai_api_key).
	ConfigFileEnv = "TSQLGEN_CONFIG_FILE"
)

// LayeredLookup returns a lookup over the YAML file at path (skipped when
// empty) overlaid by TSQLGEN_* environment variables.
func LayeredLookup(path string) (LookupFunc, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(envPrefix, ".", keyFromEnv), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	return func(name string) (string, bool) {
		key := keyFromEnv(name)
		if !k.Exists(key) {
			return "", false
		}
		return k.String(key), true
	}, nil
}

func keyFromEnv(name string) string {
	return strings.ToLower(strings.TrimPrefix(name, envPrefix))
}
