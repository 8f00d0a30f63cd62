package rodbrowser

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/rs/zerolog"

	"github.com/printeer-go/printeer/internal/browserpool"
	"github.com/printeer-go/printeer/internal/config"
	"github.com/printeer-go/printeer/internal/orchestrator"
	"github.com/printeer-go/printeer/pkg/version"
)

// Renderer implements orchestrator.Renderer against a live Rod
// connection.
type Renderer struct {
	log zerolog.Logger
}

// NewRenderer constructs a Renderer.
func NewRenderer(log zerolog.Logger) *Renderer {
	return &Renderer{log: log}
}

// Render opens a stealth-patched page on the given handle's browser,
// applies the render parameters, navigates, waits, captures output,
// and writes it to output.
func (r *Renderer) Render(ctx context.Context, h browserpool.Handle, url, output string, params orchestrator.RenderParams, deadline time.Time) (orchestrator.OutputDescriptor, error) {
	entry, ok := h.(*handle)
	if !ok {
		return orchestrator.OutputDescriptor{}, fmt.Errorf("rodbrowser: unexpected handle type %T", h)
	}

	page, err := stealth.Page(entry.browser.Context(ctx))
	if err != nil {
		return orchestrator.OutputDescriptor{}, fmt.Errorf("open stealth page: %w", err)
	}
	defer page.Close()
	page = page.Context(ctx)

	if err := configurePage(page, params); err != nil {
		return orchestrator.OutputDescriptor{}, fmt.Errorf("configure page: %w", err)
	}

	if params.Auth.Username != "" {
		wait := page.HandleAuth(params.Auth.Username, params.Auth.Password)
		go func() { _ = wait() }()
	}

	if err := page.Navigate(url); err != nil {
		return orchestrator.OutputDescriptor{}, fmt.Errorf("navigate: %w", err)
	}
	if err := waitFor(page, params.Wait.Until); err != nil {
		return orchestrator.OutputDescriptor{}, fmt.Errorf("wait for %s: %w", params.Wait.Until, err)
	}

	var data []byte
	var mediaType string
	if strings.ToLower(filepath.Ext(output)) == ".pdf" {
		data, err = capturePDF(page, params.PDF, params.Page)
		mediaType = "application/pdf"
	} else {
		data, mediaType, err = captureImage(page, params.Image)
	}
	if err != nil {
		return orchestrator.OutputDescriptor{}, fmt.Errorf("capture output: %w", err)
	}

	if err := os.WriteFile(output, data, 0o644); err != nil {
		return orchestrator.OutputDescriptor{}, fmt.Errorf("write output: %w", err)
	}

	return orchestrator.OutputDescriptor{
		Path:      output,
		MediaType: mediaType,
		Bytes:     int64(len(data)),
	}, nil
}

func configurePage(page *rod.Page, params orchestrator.RenderParams) error {
	if params.Viewport.Width > 0 && params.Viewport.Height > 0 {
		scale := params.Viewport.DeviceScaleFactor
		if scale == 0 {
			scale = 1
		}
		if err := (proto.EmulationSetDeviceMetricsOverride{
			Width:             params.Viewport.Width,
			Height:            params.Viewport.Height,
			DeviceScaleFactor: scale,
			Mobile:            false,
		}).Call(page); err != nil {
			return err
		}
	}

	ua := params.Emulation.UserAgent
	if ua == "" {
		ua = version.UserAgent
	}
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
		return err
	}

	if params.Emulation.TimezoneID != "" {
		if err := (proto.EmulationSetTimezoneOverride{TimezoneID: params.Emulation.TimezoneID}).Call(page); err != nil {
			return err
		}
	}

	if len(params.Performance.BlockResources) > 0 {
		if err := (proto.NetworkSetBlockedURLs{Urls: params.Performance.BlockResources}).Call(page); err != nil {
			return err
		}
	}

	return nil
}

func waitFor(page *rod.Page, until string) error {
	switch until {
	case "domcontentloaded":
		return page.WaitEvent(&proto.PageDomContentEventFired{})()
	case "networkidle0", "networkidle2":
		return page.WaitIdle(10 * time.Second)
	default: // "load"
		return page.WaitLoad()
	}
}

func capturePDF(page *rod.Page, pdf config.PDFConfig, pg config.PageConfig) ([]byte, error) {
	req := &proto.PagePrintToPDF{
		Landscape:       pdf.Landscape,
		PrintBackground: pdf.PrintBackground,
		MarginTop:       marginInches(pdf.MarginTop),
		MarginBottom:    marginInches(pdf.MarginBottom),
		MarginLeft:      marginInches(pdf.MarginLeft),
		MarginRight:     marginInches(pdf.MarginRight),
	}
	if pg.Width > 0 {
		req.PaperWidth = pixelsToInches(pg.Width)
	}
	if pg.Height > 0 {
		req.PaperHeight = pixelsToInches(pg.Height)
	}

	stream, err := page.PDF(req)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(stream)
}

func captureImage(page *rod.Page, img config.ImageConfig) ([]byte, string, error) {
	format := proto.PageCaptureScreenshotFormatPng
	mediaType := "image/png"
	switch img.Type {
	case "jpeg":
		format = proto.PageCaptureScreenshotFormatJpeg
		mediaType = "image/jpeg"
	case "webp":
		format = proto.PageCaptureScreenshotFormatWebp
		mediaType = "image/webp"
	}

	req := &proto.PageCaptureScreenshot{Format: format}
	if img.Quality > 0 {
		req.Quality = &img.Quality
	}

	var data []byte
	var err error
	if img.FullPage {
		data, err = page.Screenshot(true, req)
	} else {
		data, err = page.Screenshot(false, req)
	}
	return data, mediaType, err
}

// marginInches converts a margin expressed in CSS inches ("1in"),
// CSS pixels ("96px", 96 per inch) or bare inches ("1") to the float64
// PagePrintToPDF expects; empty stays at Chrome's default.
func marginInches(v string) float64 {
	if v == "" {
		return 0
	}
	trimmed := v
	perInch := 1.0
	for _, suffix := range []string{"in", "px"} {
		if len(v) > len(suffix) && v[len(v)-len(suffix):] == suffix {
			trimmed = v[:len(v)-len(suffix)]
			if suffix == "px" {
				perInch = 96.0
			}
			break
		}
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0
	}
	return f / perInch
}

func pixelsToInches(px int) float64 {
	return float64(px) / 96.0
}
