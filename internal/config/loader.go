package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "NESTFIND"

// Loader reads a config file and overlays NESTFIND_* environment
// variables. Priority: defaults, then file, then environment.
type Loader struct {
	path string
}

func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load reads the default config file. A missing file yields defaults.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return NewLoader(path).Load()
}

func (l *Loader) Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if l.path != "" {
		if _, err := os.Stat(l.path); err == nil {
			v.SetConfigFile(l.path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.ApplyDefaults()

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults registers every key so that AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("search.index_names", d.Search.IndexNames)
	v.SetDefault("search.placeholder", d.Search.Placeholder)
	v.SetDefault("search.debounce_delay_ms", d.Search.DebounceDelayMS)
	v.SetDefault("search.page_size", d.Search.PageSize)
	v.SetDefault("search.fetch_timeout_ms", d.Search.FetchTimeoutMS)
	v.SetDefault("search.backend", d.Search.Backend)

	v.SetDefault("remote.base_url", d.Remote.BaseURL)
	v.SetDefault("remote.api_key", d.Remote.APIKey)
	v.SetDefault("remote.timeout_seconds", d.Remote.TimeoutSeconds)
	v.SetDefault("remote.retry_max", d.Remote.RetryMax)

	v.SetDefault("site.base_url", d.Site.BaseURL)

	v.SetDefault("local.data_dir", d.Local.DataDir)
	v.SetDefault("local.include", d.Local.Include)
	v.SetDefault("local.semantic", d.Local.Semantic)

	v.SetDefault("cohere.api_key", d.Cohere.APIKey)
	v.SetDefault("cohere.embed_model", d.Cohere.EmbedModel)
	v.SetDefault("cohere.rerank_model", d.Cohere.RerankModel)
	v.SetDefault("cohere.embed_dim", d.Cohere.EmbedDim)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)
}
