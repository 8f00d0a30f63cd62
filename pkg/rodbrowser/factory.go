// Package rodbrowser is the reference browserpool.Factory/
// orchestrator.Renderer implementation built on go-rod and
// go-rod/stealth. Nothing in internal/ imports this package directly;
// cmd/printeer wires it in, keeping the pool and orchestrator
// renderer-agnostic.
package rodbrowser

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"

	"github.com/printeer-go/printeer/internal/browserpool"
	"github.com/printeer-go/printeer/internal/config"
)

// LaunchOptions is this package's concrete browserpool.LaunchOptions
// payload: which of the two launch profiles to apply.
type LaunchOptions struct {
	Headless   bool
	DisableGPU bool
}

// Factory launches and manages Chrome/Chromium processes through Rod.
type Factory struct {
	cfg config.BrowserConfig
	log zerolog.Logger
}

// New constructs a Factory bound to the browser section of the
// effective configuration.
func New(cfg config.BrowserConfig, log zerolog.Logger) *Factory {
	return &Factory{cfg: cfg, log: log}
}

// OptimalLaunchOptions returns the preferred launch profile: headless
// unless the operator explicitly configured headed mode, which only
// makes sense with a display server attached.
func (f *Factory) OptimalLaunchOptions() browserpool.LaunchOptions {
	return LaunchOptions{Headless: f.cfg.Headless != "false"}
}

// FallbackLaunchOptions returns profiles tried in order after the
// optimal one fails to launch:
// force headless, then additionally disable GPU for environments
// where SwiftShader itself is unavailable.
func (f *Factory) FallbackLaunchOptions() []browserpool.LaunchOptions {
	return []browserpool.LaunchOptions{
		LaunchOptions{Headless: true},
		LaunchOptions{Headless: true, DisableGPU: true},
	}
}

// createLauncher builds a Rod launcher tuned the way a real desktop
// Chrome is tuned, so sites that gate rendering behind bot-detection
// heuristics don't serve an interstitial instead of the page being
// converted.
func (f *Factory) createLauncher(opts LaunchOptions) *launcher.Launcher {
	l := launcher.New()

	if f.cfg.ExecutablePath != "" {
		l = l.Bin(f.cfg.ExecutablePath)
	}

	if opts.Headless {
		l = l.Set("headless", "new")
	} else {
		l = l.Headless(false)
	}

	l = l.Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-dev-shm-usage").
		Set("force-webrtc-ip-handling-policy", "disable_non_proxied_udp").
		Set("disable-blink-features", "AutomationControlled").
		Delete("enable-automation").
		Set("disable-features", "Translate,TranslateUI,BlinkGenPropertyTrees,WebRtcHideLocalIpsWithMdns").
		Set("enable-features", "NetworkService,NetworkServiceInProcess").
		Set("accept-lang", "en-US,en;q=0.9").
		Set("no-first-run").
		Set("no-default-browser-check").
		Set("disable-infobars").
		Set("disable-search-engine-choice-screen").
		Set("disable-background-networking").
		Set("disable-default-apps").
		Set("disable-extensions").
		Set("disable-sync").
		Set("mute-audio").
		Set("no-zygote").
		Set("safebrowsing-disable-auto-update")

	if opts.DisableGPU {
		l = l.Set("disable-gpu")
	} else {
		l = l.Set("use-gl", "swiftshader").
			Set("use-angle", "swiftshader").
			Set("enable-unsafe-swiftshader").
			Set("enable-webgl").
			Set("enable-webgl2").
			Set("disable-gpu-sandbox")
		if isARM() {
			l = l.Set("disable-gpu-compositing")
		}
	}

	for _, arg := range f.cfg.Argv {
		l = l.Set(arg)
	}

	return l
}

// handle bundles the connected browser with the launcher that spawned
// it; the launcher is kept only so KillProcess can reach the process
// after Close fails to shut it down gracefully.
type handle struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
}

// Create launches a fresh browser process and connects over CDP.
func (f *Factory) Create(ctx context.Context, opts browserpool.LaunchOptions) (browserpool.Handle, error) {
	launchOpts, ok := opts.(LaunchOptions)
	if !ok {
		return nil, fmt.Errorf("rodbrowser: unexpected launch options type %T", opts)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	l := f.createLauncher(launchOpts)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().Context(ctx).ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to browser: %w", err)
	}

	return &handle{browser: browser, launcher: l}, nil
}

// Validate probes liveness with a cheap about:blank navigation,
// exposed through the Factory interface so browserpool owns the
// polling policy.
func (f *Factory) Validate(h browserpool.Handle) bool {
	entry, ok := h.(*handle)
	if !ok {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	page, err := entry.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return false
	}
	defer page.Close()

	return page.Context(ctx).Navigate("about:blank") == nil
}

// Close performs a graceful CDP-level shutdown.
func (f *Factory) Close(h browserpool.Handle) error {
	entry, ok := h.(*handle)
	if !ok {
		return fmt.Errorf("rodbrowser: unexpected handle type %T", h)
	}
	return entry.browser.Close()
}

// KillProcess force-terminates the underlying process when Close
// hangs.
func (f *Factory) KillProcess(h browserpool.Handle) error {
	entry, ok := h.(*handle)
	if !ok {
		return fmt.Errorf("rodbrowser: unexpected handle type %T", h)
	}
	entry.launcher.Kill()
	return nil
}

// GetVersion reports the browser's CDP-advertised product string.
func (f *Factory) GetVersion(h browserpool.Handle) string {
	entry, ok := h.(*handle)
	if !ok {
		return ""
	}
	v, err := entry.browser.Version()
	if err != nil {
		return ""
	}
	return v.Product
}

func isARM() bool {
	arch := runtime.GOARCH
	return arch == "arm" || arch == "arm64"
}
