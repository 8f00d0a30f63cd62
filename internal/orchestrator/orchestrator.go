// Package orchestrator implements the conversion engine's single
// public entry point: resolve config, pick a strategy, obtain a
// browser, call the renderer adapter, and guarantee release.
package orchestrator

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/printeer-go/printeer/internal/browserpool"
	"github.com/printeer-go/printeer/internal/config"
	"github.com/printeer-go/printeer/internal/errs"
	"github.com/printeer-go/printeer/internal/security"
	"github.com/printeer-go/printeer/internal/strategy"
)

// RenderParams are the deep-merged render parameters for a single
// conversion.
type RenderParams = config.RenderConfig

// OutputDescriptor is the result of a successful conversion.
type OutputDescriptor struct {
	Path      string
	MediaType string
	Bytes     int64
	Metrics   map[string]any
}

// Renderer is the consumed renderer-adapter interface.
type Renderer interface {
	Render(ctx context.Context, handle browserpool.Handle, url, output string, params RenderParams, deadline time.Time) (OutputDescriptor, error)
}

var supportedExtensions = map[string]string{
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
}

// Orchestrator wires the configuration, pool, strategy, and renderer collaborators together.
type Orchestrator struct {
	Pool     *browserpool.Pool
	Factory  browserpool.Factory
	Renderer Renderer
	Log      zerolog.Logger
}

// Convert is the public conversion entry point.
func (o *Orchestrator) Convert(ctx context.Context, url, output string, cfg config.EffectiveConfig, overrides *RenderParams, signals strategy.Signals) (OutputDescriptor, error) {
	mediaType, err := mediaTypeFor(output)
	if err != nil {
		return OutputDescriptor{}, err
	}

	if err := security.CheckDomain(url, cfg.Security.AllowedDomains, cfg.Security.BlockedDomains); err != nil {
		return OutputDescriptor{}, errs.NewURLBlockedError(url, err.Error())
	}

	params := cfg.Render
	if overrides != nil {
		params = mergeRenderParams(params, *overrides)
	}

	mode := strategy.Select(signals)

	deadline := time.Now().Add(params.Wait.Timeout)
	renderCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	if mode == strategy.Pool {
		desc, err := o.convertPooled(renderCtx, url, params, deadline, mediaType, output)
		if err == nil {
			return desc, nil
		}
		if !isAcquisitionFailure(err) {
			return OutputDescriptor{}, err
		}
		o.Log.Warn().Err(err).Str("url", url).Msg("pool acquisition failed, retrying as oneshot")
	}

	return o.convertOneshot(renderCtx, url, params, deadline, mediaType, output)
}

func (o *Orchestrator) convertPooled(ctx context.Context, url string, params RenderParams, deadline time.Time, mediaType, output string) (OutputDescriptor, error) {
	inst, err := o.Pool.GetBrowser(ctx)
	if err != nil {
		return OutputDescriptor{}, err
	}

	desc, renderErr := o.render(ctx, inst.Handle, url, params, deadline, mediaType, output)
	o.Pool.ReleaseBrowser(inst) // unconditional, never throws to caller
	return desc, renderErr
}

func (o *Orchestrator) convertOneshot(ctx context.Context, url string, params RenderParams, deadline time.Time, mediaType, output string) (OutputDescriptor, error) {
	opts := o.Factory.OptimalLaunchOptions()
	handle, err := o.Factory.Create(ctx, opts)
	if err != nil {
		return OutputDescriptor{}, errs.NewRendererFailedError(url, err)
	}

	desc, renderErr := o.render(ctx, handle, url, params, deadline, mediaType, output)
	o.destroyOneshot(handle)
	return desc, renderErr
}

func (o *Orchestrator) render(ctx context.Context, handle browserpool.Handle, url string, params RenderParams, deadline time.Time, mediaType, output string) (OutputDescriptor, error) {
	desc, err := o.Renderer.Render(ctx, handle, url, output, params, deadline)
	if err != nil {
		return OutputDescriptor{}, errs.NewRendererFailedError(url, err)
	}
	if desc.MediaType == "" {
		desc.MediaType = mediaType
	}
	if desc.Path == "" {
		desc.Path = output
	}
	return desc, nil
}

// destroyOneshot tears down a non-pooled browser with the same
// process-level certainty as the pool's aggressive destruction,
// logging (never surfacing) any cleanup failure.
func (o *Orchestrator) destroyOneshot(handle browserpool.Handle) {
	done := make(chan error, 1)
	go func() { done <- o.Factory.Close(handle) }()

	select {
	case err := <-done:
		if err == nil {
			return
		}
	case <-time.After(10 * time.Second):
	}

	for attempt := 1; attempt <= 3; attempt++ {
		if killErr := o.Factory.KillProcess(handle); killErr != nil {
			o.Log.Warn().Err(killErr).Msg("failed to force-kill oneshot browser process")
		}
		if !o.Factory.Validate(handle) {
			return
		}
	}
	o.Log.Warn().Msg("oneshot browser termination could not be verified after bounded retries")
}

func mediaTypeFor(output string) (string, error) {
	ext := strings.ToLower(filepath.Ext(output))
	mt, ok := supportedExtensions[ext]
	if !ok {
		return "", errs.NewBadOutputPathError(output)
	}
	return mt, nil
}

func isAcquisitionFailure(err error) bool {
	return errs.AsPoolError(err) != nil
}

func mergeRenderParams(base, overrides RenderParams) RenderParams {
	merged := base
	if overrides.PDF.Format != "" {
		merged.PDF = overrides.PDF
	}
	if overrides.Image.Type != "" {
		merged.Image = overrides.Image
	}
	if overrides.Viewport.Width != 0 {
		merged.Viewport = overrides.Viewport
	}
	if overrides.Wait.Timeout != 0 {
		merged.Wait = overrides.Wait
	}
	if overrides.Auth.Username != "" {
		merged.Auth = overrides.Auth
	}
	if overrides.Emulation.UserAgent != "" {
		merged.Emulation = overrides.Emulation
	}
	if overrides.Performance.BlockResources != nil {
		merged.Performance = overrides.Performance
	}
	if overrides.Page.Width != 0 {
		merged.Page = overrides.Page
	}
	return merged
}
