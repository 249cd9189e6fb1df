// Package config loads dossier settings from config.yaml, .env files and
// DOSSIER_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/dossier/internal/cluegen"
	"github.com/mesh-intelligence/dossier/internal/logging"
	"github.com/mesh-intelligence/dossier/internal/paths"
	"github.com/mesh-intelligence/dossier/internal/recognition"
	"github.com/mesh-intelligence/dossier/pkg/types"
)

// EnvPrefix prefixes every environment override, e.g. DOSSIER_STORE_BACKEND.
const EnvPrefix = "DOSSIER"

// Defaults.
const (
	DefaultServeAddr  = ":3001"
	DefaultACRTimeout = 20 * time.Second
)

// Config is the full runtime configuration.
type Config struct {
	Store  types.Config       `mapstructure:"store"`
	Log    logging.Config     `mapstructure:"log"`
	Gemini cluegen.Config     `mapstructure:"gemini"`
	ACR    recognition.Config `mapstructure:"acr"`
	Serve  Serve              `mapstructure:"serve"`
}

// Serve configures the HTTP endpoint started by "dossier serve".
type Serve struct {
	Addr string `mapstructure:"addr"`
}

// secrets maps config keys to the plain variable names used in .env files.
var secrets = map[string]string{
	"acr.host":          "ACR_HOST",
	"acr.access_key":    "ACR_ACCESS_KEY",
	"acr.access_secret": "ACR_ACCESS_SECRET",
	"gemini.api_key":    "GEMINI_API_KEY",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.backend", types.BackendSQLite)
	v.SetDefault("store.data_dir", "")
	v.SetDefault("store.name", types.DefaultStoreName)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("gemini.model", cluegen.DefaultModel)
	v.SetDefault("gemini.base_url", cluegen.DefaultBaseURL)
	v.SetDefault("gemini.timeout", cluegen.DefaultTimeout)
	v.SetDefault("gemini.max_retries", cluegen.DefaultMaxRetries)
	v.SetDefault("acr.base_url", "")
	v.SetDefault("acr.timeout", DefaultACRTimeout)
	v.SetDefault("serve.addr", DefaultServeAddr)
}

// Load reads configuration for configDir. It creates the directory and a
// default config.yaml on first run, loads configDir/.env and ./.env into
// the environment without overriding variables already set, then applies
// DOSSIER_* overrides. The store data directory is resolved with
// paths.ResolveDataDir(dataDirFlag, store.data_dir).
func Load(configDir, dataDirFlag string) (*Config, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultFile(paths.ConfigFile(configDir)); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}
	if err := loadEnvFiles(paths.EnvFile(configDir), paths.EnvFileName); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(paths.ConfigFile(configDir))
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, plain := range secrets {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), plain); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	dataDir, err := paths.ResolveDataDir(dataDirFlag, cfg.Store.DataDir)
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}
	cfg.Store.DataDir = dataDir
	return &cfg, nil
}

func loadEnvFiles(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ensureDefaultFile writes DefaultYAML to path unless a file is already there.
func ensureDefaultFile(path string) error {
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat config file: %w", err)
	}
	data, err := DefaultYAML()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// DefaultYAML renders the config.yaml written on first run. Credentials are
// left out; they belong in .env or the environment.
func DefaultYAML() ([]byte, error) {
	doc := map[string]any{
		"store": map[string]any{
			"backend": types.BackendSQLite,
			"name":    types.DefaultStoreName,
		},
		"log": map[string]any{
			"level":  "info",
			"format": "console",
		},
		"gemini": map[string]any{
			"model":       cluegen.DefaultModel,
			"timeout":     cluegen.DefaultTimeout.String(),
			"max_retries": cluegen.DefaultMaxRetries,
		},
		"acr": map[string]any{
			"host":    "",
			"timeout": DefaultACRTimeout.String(),
		},
		"serve": map[string]any{
			"addr": DefaultServeAddr,
		},
	}

	var buf bytes.Buffer
	buf.WriteString("# dossier configuration\n")
	buf.WriteString("# API keys (GEMINI_API_KEY, ACR_ACCESS_KEY, ACR_ACCESS_SECRET) go in .env next to this file.\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
