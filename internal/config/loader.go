package config

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/turtacn/ClaimLens/internal/infrastructure/monitoring/logging"
)

// envPrefix prefixes every environment override, e.g.
// CLAIMLENS_DATABASE_POSTGRES_HOST for database.postgres.host.
const envPrefix = "CLAIMLENS"

func newViper() (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Seeding every key lets environment variables override keys the config
	// file does not mention.
	seed, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("config: failed to encode defaults: %w", err)
	}
	if err := v.ReadConfig(bytes.NewReader(seed)); err != nil {
		return nil, fmt.Errorf("config: failed to seed defaults: %w", err)
	}
	return v, nil
}

// LoadDotEnv exports the variables of each file that exists. Variables
// already present in the environment are kept. With no arguments ".env" in
// the working directory is tried.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads the YAML file at configPath over the defaults, applies .env and
// CLAIMLENS_* overrides, and validates the result.
func Load(configPath string) (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}
	v, err := newViper()
	if err != nil {
		return nil, err
	}
	v.SetConfigFile(configPath)
	if err := v.MergeInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}
	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds the configuration from defaults and environment
// variables alone.
func LoadFromEnv() (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}
	v, err := newViper()
	if err != nil {
		return nil, err
	}
	return unmarshalAndFinalize(v)
}

// LoadOrEnv loads configPath when it is set and falls back to LoadFromEnv.
func LoadOrEnv(configPath string) (*Config, error) {
	if configPath == "" {
		return LoadFromEnv()
	}
	return Load(configPath)
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}
	ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

// Watch reloads configPath whenever it changes on disk and passes each valid
// result to onChange. Invalid edits are logged and skipped. Only settings
// that are safe to change at runtime, such as the log level, should be
// applied by the callback.
func Watch(configPath string, log logging.Logger, onChange func(*Config)) error {
	log = logging.OrNop(log)
	v, err := newViper()
	if err != nil {
		return err
	}
	v.SetConfigFile(configPath)
	if err := v.MergeInConfig(); err != nil {
		return fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			log.Warn("ignoring invalid configuration change",
				logging.String("file", e.Name), logging.Err(err))
			return
		}
		log.Info("configuration reloaded", logging.String("file", e.Name))
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

// MustLoad is Load for main packages; it panics on error.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}
