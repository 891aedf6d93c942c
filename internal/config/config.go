package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mgomes/nestfind/internal/search"
)

const (
	BackendRemote = "remote"
	BackendLocal  = "local"
)

type Config struct {
	Search SearchConfig `json:"search" mapstructure:"search"`
	Remote RemoteConfig `json:"remote" mapstructure:"remote"`
	Site   SiteConfig   `json:"site" mapstructure:"site"`
	Local  LocalConfig  `json:"local" mapstructure:"local"`
	Cohere CohereConfig `json:"cohere" mapstructure:"cohere"`
	Log    LogConfig    `json:"log" mapstructure:"log"`
}

type SearchConfig struct {
	IndexNames      []string `json:"index_names" mapstructure:"index_names"`
	Placeholder     string   `json:"placeholder" mapstructure:"placeholder"`
	DebounceDelayMS int      `json:"debounce_delay_ms" mapstructure:"debounce_delay_ms"`
	PageSize        int      `json:"page_size" mapstructure:"page_size"`
	FetchTimeoutMS  int      `json:"fetch_timeout_ms" mapstructure:"fetch_timeout_ms"`
	Backend         string   `json:"backend" mapstructure:"backend"`
}

type RemoteConfig struct {
	BaseURL        string `json:"base_url" mapstructure:"base_url"`
	APIKey         string `json:"api_key" mapstructure:"api_key"`
	TimeoutSeconds int    `json:"timeout_seconds" mapstructure:"timeout_seconds"`
	RetryMax       int    `json:"retry_max" mapstructure:"retry_max"`
}

type SiteConfig struct {
	BaseURL string `json:"base_url" mapstructure:"base_url"`
}

type LocalConfig struct {
	DataDir  string   `json:"data_dir" mapstructure:"data_dir"`
	Include  []string `json:"include" mapstructure:"include"`
	Semantic bool     `json:"semantic" mapstructure:"semantic"`
}

type CohereConfig struct {
	APIKey      string `json:"api_key" mapstructure:"api_key"`
	EmbedModel  string `json:"embed_model" mapstructure:"embed_model"`
	RerankModel string `json:"rerank_model" mapstructure:"rerank_model"`
	EmbedDim    int    `json:"embed_dim" mapstructure:"embed_dim"`
}

type LogConfig struct {
	Level  string `json:"level" mapstructure:"level"`
	Format string `json:"format" mapstructure:"format"`
	File   string `json:"file" mapstructure:"file"`
}

func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "nestfind"), nil
}

// Path is the default config file location.
func Path() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

func DBPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "nestfind.db"), nil
}

func Default() *Config {
	return &Config{
		Search: SearchConfig{
			IndexNames:      append([]string(nil), search.DefaultIndexNames...),
			Placeholder:     search.DefaultPlaceholder,
			DebounceDelayMS: int(search.DefaultDebounceDelay / time.Millisecond),
			PageSize:        search.DefaultPageSize,
			FetchTimeoutMS:  10000,
			Backend:         BackendRemote,
		},
		Remote: RemoteConfig{
			TimeoutSeconds: 10,
			RetryMax:       2,
		},
		Local: LocalConfig{
			Include: []string{"**/*.json"},
		},
		Cohere: CohereConfig{
			EmbedModel:  "embed-v4.0",
			RerankModel: "rerank-v3.5",
			EmbedDim:    1024,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// ApplyDefaults fills zero values from Default.
func (c *Config) ApplyDefaults() {
	d := Default()

	if len(c.Search.IndexNames) == 0 {
		c.Search.IndexNames = d.Search.IndexNames
	}
	if c.Search.Placeholder == "" {
		c.Search.Placeholder = d.Search.Placeholder
	}
	if c.Search.PageSize == 0 {
		c.Search.PageSize = d.Search.PageSize
	}
	if c.Search.Backend == "" {
		c.Search.Backend = d.Search.Backend
	}
	if c.Remote.TimeoutSeconds == 0 {
		c.Remote.TimeoutSeconds = d.Remote.TimeoutSeconds
	}
	if len(c.Local.Include) == 0 {
		c.Local.Include = d.Local.Include
	}
	if c.Cohere.EmbedModel == "" {
		c.Cohere.EmbedModel = d.Cohere.EmbedModel
	}
	if c.Cohere.RerankModel == "" {
		c.Cohere.RerankModel = d.Cohere.RerankModel
	}
	if c.Cohere.EmbedDim == 0 {
		c.Cohere.EmbedDim = d.Cohere.EmbedDim
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
}

// NeedsSetup reports whether the configured backend is missing what it
// needs to answer a query.
func (c *Config) NeedsSetup() bool {
	switch c.Search.Backend {
	case BackendLocal:
		return c.Local.DataDir == ""
	default:
		return c.Remote.BaseURL == ""
	}
}

// SemanticEnabled reports whether the local backend should rank by
// embeddings instead of keywords.
func (c *Config) SemanticEnabled() bool {
	return c.Local.Semantic && c.Cohere.APIKey != ""
}

// EngineOptions converts the search section into engine options.
func (c *Config) EngineOptions() search.Options {
	return search.Options{
		IndexNames:    append([]string(nil), c.Search.IndexNames...),
		Placeholder:   c.Search.Placeholder,
		DebounceDelay: time.Duration(c.Search.DebounceDelayMS) * time.Millisecond,
		PageSize:      c.Search.PageSize,
		FetchTimeout:  time.Duration(c.Search.FetchTimeoutMS) * time.Millisecond,
	}
}

func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	data = append(data, '\n')
	return os.WriteFile(path, data, 0600)
}
