// Package browser drives a Chrome instance over CDP for agent navigation.
// Pages are read back as accessibility snapshots whose elements carry refs
// ("e3") that later click and type actions address.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

var ErrNotRunning = errors.New("browser not running")

// Config selects how Chrome is obtained. A ControlURL attaches to an
// existing instance; otherwise a local Chrome is launched.
type Config struct {
	Headless   bool
	ControlURL string
	MaxChars   int
}

// Browser owns one Chrome connection shared by all pages.
type Browser struct {
	cfg Config

	mu       sync.Mutex
	rod      *rod.Browser
	launcher *launcher.Launcher
}

func New(cfg Config) *Browser {
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = defaultMaxChars
	}
	return &Browser{cfg: cfg}
}

// Start connects to Chrome, launching it when no control URL is configured.
func (b *Browser) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.rod != nil {
		return errors.New("browser already running")
	}

	controlURL := b.cfg.ControlURL
	if controlURL == "" {
		l := launcher.New().
			Context(ctx).
			Headless(b.cfg.Headless).
			Set("disable-gpu").
			Set("no-first-run").
			Set("no-default-browser-check")
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = u
		b.launcher = l
		slog.Info("chrome launched", "headless", b.cfg.Headless)
	}

	r := rod.New().ControlURL(controlURL)
	if err := r.Connect(); err != nil {
		b.killLauncher()
		return fmt.Errorf("connect to chrome: %w", err)
	}
	b.rod = r
	return nil
}

// Close disconnects and stops a launched Chrome. Safe to call twice.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.rod == nil {
		return nil
	}
	var err error
	if b.launcher != nil {
		err = b.rod.Close()
	}
	b.rod = nil
	b.killLauncher()
	return err
}

func (b *Browser) killLauncher() {
	if b.launcher != nil {
		b.launcher.Kill()
		b.launcher = nil
	}
}

// Running reports whether Start succeeded and Close has not been called.
func (b *Browser) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rod != nil
}

// OpenPage opens a blank tab. The caller owns the page and must Close it.
// The tab is not bound to ctx so it can still be closed after cancellation.
func (b *Browser) OpenPage(ctx context.Context) (*Page, error) {
	b.mu.Lock()
	r := b.rod
	b.mu.Unlock()
	if r == nil {
		return nil, ErrNotRunning
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, err := r.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("open tab: %w", err)
	}
	return &Page{page: p, maxChars: b.cfg.MaxChars}, nil
}
