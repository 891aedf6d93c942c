package navigate

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os/exec"
	"runtime"
	"strings"
)

var ErrInvalidTarget = errors.New("invalid navigation target")

// Browser opens selections in the system browser. In-app paths are
// resolved against the site's base URL.
type Browser struct {
	base *url.URL
	open func(target string) error
	log  *slog.Logger
}

type Option func(*Browser)

// WithOpener replaces the system browser launcher.
func WithOpener(fn func(target string) error) Option {
	return func(b *Browser) {
		b.open = fn
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(b *Browser) {
		b.log = log
	}
}

func New(baseURL string, opts ...Option) (*Browser, error) {
	base, err := url.Parse(baseURL)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("%w: site base url %q", ErrInvalidTarget, baseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
		base.RawPath = ""
	}

	b := &Browser{base: base, open: systemOpen, log: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// URL returns the absolute URL for an in-app path.
func (b *Browser) URL(path string) (string, error) {
	if !strings.HasPrefix(path, "/") {
		return "", fmt.Errorf("%w: path %q is not absolute", ErrInvalidTarget, path)
	}
	ref, err := url.Parse(strings.TrimLeft(path, "/"))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	return b.base.ResolveReference(ref).String(), nil
}

func (b *Browser) NavigateTo(path string) error {
	target, err := b.URL(path)
	if err != nil {
		return err
	}
	b.log.Debug("navigating", "path", path, "url", target)
	return b.launch(target)
}

func (b *Browser) OpenExternal(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: external url %q", ErrInvalidTarget, raw)
	}
	b.log.Debug("opening external url", "url", raw)
	return b.launch(u.String())
}

func (b *Browser) launch(target string) error {
	if err := b.open(target); err != nil {
		return fmt.Errorf("failed to open %s: %w", target, err)
	}
	return nil
}

func systemOpen(target string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", target)
	case "linux":
		cmd = exec.Command("xdg-open", target)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", "", target)
	default:
		return fmt.Errorf("no browser launcher for %s", runtime.GOOS)
	}
	return cmd.Start()
}
