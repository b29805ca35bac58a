// internal/browser/allocator.go
package browser

import (
	"strings"

	"github.com/chromedp/chromedp"
	"github.com/xkilldash9x/fastwork-cli/internal/config"
)

const (
	defaultWindowWidth  = 1366
	defaultWindowHeight = 768
)

// allocatorFlags translates the browser config into Chrome command line flags.
// Keys are flag names without the leading dashes.
func allocatorFlags(cfg config.BrowserConfig) map[string]interface{} {
	flags := map[string]interface{}{
		// Hardened container hosts refuse the sandbox.
		"no-sandbox":            true,
		"disable-dev-shm-usage": true,
		"headless":              cfg.Headless,
	}
	if cfg.DisableGPU {
		flags["disable-gpu"] = true
	}
	if cfg.Stealth.Enabled {
		flags["disable-blink-features"] = "AutomationControlled"
		if len(cfg.Stealth.Languages) > 0 {
			flags["lang"] = cfg.Stealth.Languages[0]
		}
	}

	for _, arg := range cfg.Args {
		arg = strings.TrimLeft(strings.TrimSpace(arg), "-")
		if arg == "" {
			continue
		}
		if key, value, ok := strings.Cut(arg, "="); ok {
			flags[key] = value
			continue
		}
		flags[arg] = true
	}
	return flags
}

func windowSize(cfg config.BrowserConfig) (int, int) {
	w, h := cfg.Viewport["width"], cfg.Viewport["height"]
	if w <= 0 {
		w = defaultWindowWidth
	}
	if h <= 0 {
		h = defaultWindowHeight
	}
	return w, h
}

// DefaultAllocatorOptions builds the exec allocator options for a live browser.
func DefaultAllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	for key, value := range allocatorFlags(cfg) {
		opts = append(opts, chromedp.Flag(key, value))
	}

	w, h := windowSize(cfg)
	opts = append(opts, chromedp.WindowSize(w, h))

	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.Stealth.Enabled && cfg.Stealth.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.Stealth.UserAgent))
	}
	return opts
}
