package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment key.
const EnvPrefix = "WARDEN_"

// ConfigFileEnv names the YAML config file when no path is passed explicitly.
const ConfigFileEnv = EnvPrefix + "CONFIG_FILE"

// LoadConfig builds Config from, in increasing priority:
//  1. DefaultConfig
//  2. the YAML file at path (or $WARDEN_CONFIG_FILE)
//  3. WARDEN_* environment variables
//
// Env keys map to the first dot only: WARDEN_SESSION_SWEEP_INTERVAL is
// session.sweep_interval. The result is validated with Check.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		path = os.Getenv(ConfigFileEnv)
	}

	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	cfg := DefaultConfig()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Check(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// envKey turns WARDEN_TOKEN_CLOCK_SKEW into token.clock_skew.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, rest, ok := strings.Cut(s, "_")
	if !ok {
		return s
	}
	return section + "." + rest
}
