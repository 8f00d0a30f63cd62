// Package config resolves the engine's effective configuration from
// layered defaults, files, environment variables, and CLI flags.
package config

import "time"

// Mode selects whether the engine expects one invocation or a
// long-running process.
type Mode string

const (
	ModeSingleShot   Mode = "single-shot"
	ModeLongRunning  Mode = "long-running"
)

// Environment is the auto-detected or explicitly-set deployment tier.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
	EnvTest        Environment = "test"
)

// PoolConfig bounds the browser pool's size and lifecycle timings.
type PoolConfig struct {
	Min               int `mapstructure:"min" validate:"min=0"`
	Max               int `mapstructure:"max" validate:"min=1"`
	IdleTimeoutMs     int `mapstructure:"idleTimeoutMs" validate:"min=1"`
	CleanupIntervalMs int `mapstructure:"cleanupIntervalMs" validate:"min=1"`
}

// BrowserConfig describes how browser processes are launched and pooled.
type BrowserConfig struct {
	ExecutablePath string     `mapstructure:"executablePath"`
	Headless       string     `mapstructure:"headless" validate:"oneof=true false auto"`
	TimeoutMs      int        `mapstructure:"timeoutMs" validate:"min=1"`
	Argv           []string   `mapstructure:"argv"`
	Pool           PoolConfig `mapstructure:"pool"`
}

// ResourcesConfig names the hard ceilings the limit enforcer watches.
type ResourcesConfig struct {
	MaxMemoryMB           int `mapstructure:"maxMemoryMB" validate:"min=1"`
	MaxCPUPercent         int `mapstructure:"maxCpuPercent" validate:"min=1"`
	MaxDiskMB             int `mapstructure:"maxDiskMB" validate:"min=1"`
	MaxConcurrentRequests int `mapstructure:"maxConcurrentRequests" validate:"min=1"`
	MaxBrowserInstances   int `mapstructure:"maxBrowserInstances" validate:"min=1"`
}

// ThresholdsConfig names the warn/critical fractions the resource
// monitor compares samples against. All fields are fractions in (0,1).
type ThresholdsConfig struct {
	MemoryWarn     float64 `mapstructure:"memoryWarn" validate:"gt=0,lt=1"`
	MemoryCritical float64 `mapstructure:"memoryCritical" validate:"gt=0,lt=1"`
	CPUWarn        float64 `mapstructure:"cpuWarn" validate:"gt=0,lt=1"`
	CPUCritical    float64 `mapstructure:"cpuCritical" validate:"gt=0,lt=1"`
	DiskWarn       float64 `mapstructure:"diskWarn" validate:"gt=0,lt=1"`
	DiskCritical   float64 `mapstructure:"diskCritical" validate:"gt=0,lt=1"`
}

// LoggingConfig controls the ambient logger (internal/logging).
type LoggingConfig struct {
	Level       string `mapstructure:"level" validate:"oneof=trace debug info warn error"`
	Format      string `mapstructure:"format" validate:"oneof=text json"`
	Destination string `mapstructure:"destination"`
}

// SecurityConfig bounds which origins a conversion may navigate to.
type SecurityConfig struct {
	AllowedDomains []string `mapstructure:"allowedDomains"`
	BlockedDomains []string `mapstructure:"blockedDomains"`
	MaxFileSize    int64    `mapstructure:"maxFileSize" validate:"min=1"`
	SanitizeInput  bool     `mapstructure:"sanitizeInput"`
}

// ViewportConfig sizes the virtual browser viewport.
type ViewportConfig struct {
	Width             int     `mapstructure:"width" validate:"min=1"`
	Height            int     `mapstructure:"height" validate:"min=1"`
	DeviceScaleFactor float64 `mapstructure:"deviceScaleFactor" validate:"gt=0"`
}

// WaitConfig bounds how long a single render may run.
type WaitConfig struct {
	Until   string        `mapstructure:"until" validate:"oneof=load domcontentloaded networkidle0 networkidle2"`
	Timeout time.Duration `mapstructure:"timeout" validate:"min=1"`
}

// AuthConfig carries optional HTTP basic-auth credentials for a render.
type AuthConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// EmulationConfig tunes browser fingerprint for a render.
type EmulationConfig struct {
	UserAgent  string `mapstructure:"userAgent"`
	TimezoneID string `mapstructure:"timezoneId"`
}

// PerformanceConfig tunes render-time resource usage.
type PerformanceConfig struct {
	BlockResources []string `mapstructure:"blockResources"`
	CacheEnabled   bool     `mapstructure:"cacheEnabled"`
}

// PDFConfig controls PDF-specific render output.
type PDFConfig struct {
	Format          string `mapstructure:"format"`
	Landscape       bool   `mapstructure:"landscape"`
	PrintBackground bool   `mapstructure:"printBackground"`
	MarginTop       string `mapstructure:"marginTop"`
	MarginBottom    string `mapstructure:"marginBottom"`
	MarginLeft      string `mapstructure:"marginLeft"`
	MarginRight     string `mapstructure:"marginRight"`
}

// ImageConfig controls raster-image render output.
type ImageConfig struct {
	Type     string `mapstructure:"type" validate:"oneof=png jpeg webp"`
	Quality  int    `mapstructure:"quality" validate:"min=1,max=100"`
	FullPage bool   `mapstructure:"fullPage"`
}

// PageConfig describes the logical page being rendered.
type PageConfig struct {
	Width  int `mapstructure:"width" validate:"min=1"`
	Height int `mapstructure:"height" validate:"min=1"`
}

// RenderConfig collects the per-conversion render parameters. A
// conversion's overrides are merged onto this base one sub-record at a
// time: an override sub-record replaces the base's whole sub-record
// when its key field is set (PDF.Format, Image.Type, Viewport.Width,
// Wait.Timeout, Auth.Username, Emulation.UserAgent,
// Performance.BlockResources, Page.Width); fields inside a sub-record
// are not merged individually.
type RenderConfig struct {
	Page        PageConfig        `mapstructure:"page"`
	PDF         PDFConfig         `mapstructure:"pdf"`
	Image       ImageConfig       `mapstructure:"image"`
	Viewport    ViewportConfig    `mapstructure:"viewport"`
	Wait        WaitConfig        `mapstructure:"wait"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Emulation   EmulationConfig   `mapstructure:"emulation"`
	Performance PerformanceConfig `mapstructure:"performance"`
}

// EffectiveConfig is the immutable, fully-resolved and validated
// configuration produced by Load/Reload.
type EffectiveConfig struct {
	Mode        Mode            `mapstructure:"mode" validate:"oneof=single-shot long-running"`
	Environment Environment     `mapstructure:"environment" validate:"oneof=development production test"`
	Browser     BrowserConfig   `mapstructure:"browser"`
	Resources   ResourcesConfig `mapstructure:"resources"`
	Thresholds  ThresholdsConfig `mapstructure:"thresholds"`
	Logging     LoggingConfig   `mapstructure:"logging"`
	Security    SecurityConfig  `mapstructure:"security"`
	Render      RenderConfig    `mapstructure:"render"`
}

// Clone returns a deep copy so callers holding a pointer from a prior
// Load/Reload never observe a later swap's mutations.
func (c EffectiveConfig) Clone() EffectiveConfig {
	clone := c
	clone.Browser.Argv = append([]string(nil), c.Browser.Argv...)
	clone.Security.AllowedDomains = append([]string(nil), c.Security.AllowedDomains...)
	clone.Security.BlockedDomains = append([]string(nil), c.Security.BlockedDomains...)
	clone.Render.Performance.BlockResources = append([]string(nil), c.Render.Performance.BlockResources...)
	return clone
}
