package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/mgomes/nestfind/internal/search"
)

var (
	ErrInvalidBackend = errors.New("invalid search backend")
	ErrInvalidIndexes = errors.New("invalid index names")
	ErrInvalidTiming  = errors.New("invalid timing")
	ErrInvalidURL     = errors.New("invalid url")
	ErrInvalidLog     = errors.New("invalid log settings")
)

// Validate checks the configuration and reports every problem at once.
func Validate(cfg *Config) error {
	var errs []error

	switch cfg.Search.Backend {
	case BackendRemote, BackendLocal:
	default:
		errs = append(errs, fmt.Errorf("%w: must be %q or %q, got %q", ErrInvalidBackend, BackendRemote, BackendLocal, cfg.Search.Backend))
	}

	seen := make(map[string]bool, len(cfg.Search.IndexNames))
	for _, name := range cfg.Search.IndexNames {
		name = strings.TrimSpace(name)
		if name == "" {
			errs = append(errs, fmt.Errorf("%w: empty name", ErrInvalidIndexes))
			continue
		}
		if !slices.Contains(search.DefaultIndexNames, name) {
			errs = append(errs, fmt.Errorf("%w: unknown index %q, must be one of %s", ErrInvalidIndexes, name, strings.Join(search.DefaultIndexNames, ", ")))
		}
		if seen[name] {
			errs = append(errs, fmt.Errorf("%w: %q listed twice", ErrInvalidIndexes, name))
		}
		seen[name] = true
	}

	if cfg.Search.DebounceDelayMS < 0 {
		errs = append(errs, fmt.Errorf("%w: debounce_delay_ms must not be negative", ErrInvalidTiming))
	}
	if cfg.Search.FetchTimeoutMS < 0 {
		errs = append(errs, fmt.Errorf("%w: fetch_timeout_ms must not be negative", ErrInvalidTiming))
	}
	if cfg.Search.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: page_size must be positive", ErrInvalidTiming))
	}
	if cfg.Remote.RetryMax < 0 {
		errs = append(errs, fmt.Errorf("%w: retry_max must not be negative", ErrInvalidTiming))
	}

	for key, raw := range map[string]string{"remote.base_url": cfg.Remote.BaseURL, "site.base_url": cfg.Site.BaseURL} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("%w: %s %q", ErrInvalidURL, key, raw))
		}
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("%w: level %q", ErrInvalidLog, cfg.Log.Level))
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("%w: format %q", ErrInvalidLog, cfg.Log.Format))
	}

	return errors.Join(errs...)
}
