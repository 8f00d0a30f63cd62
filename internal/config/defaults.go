package config

import "time"

// defaultsFor returns the built-in defaults for an environment. These
// are the lowest-precedence layer; file/env/CLI values override them
// field by field through viper.
func defaultsFor(env Environment) EffectiveConfig {
	base := EffectiveConfig{
		Environment: env,
		Mode:        ModeSingleShot,
		Browser: BrowserConfig{
			Headless:  "auto",
			TimeoutMs: 30000,
			Argv:      nil,
			Pool: PoolConfig{
				Min:               0,
				Max:               2,
				IdleTimeoutMs:     60000,
				CleanupIntervalMs: 30000,
			},
		},
		Resources: ResourcesConfig{
			MaxMemoryMB:           512,
			MaxCPUPercent:         80,
			MaxDiskMB:             1024,
			MaxConcurrentRequests: 10,
			MaxBrowserInstances:   2,
		},
		Thresholds: ThresholdsConfig{
			MemoryWarn: 0.7, MemoryCritical: 0.9,
			CPUWarn: 0.7, CPUCritical: 0.9,
			DiskWarn: 0.7, DiskCritical: 0.9,
		},
		Logging: LoggingConfig{Level: "debug", Format: "text", Destination: "stdout"},
		Security: SecurityConfig{
			MaxFileSize:   50 * 1024 * 1024,
			SanitizeInput: true,
		},
		Render: RenderConfig{
			Page:     PageConfig{Width: 1280, Height: 720},
			PDF:      PDFConfig{Format: "A4", PrintBackground: true},
			Image:    ImageConfig{Type: "png", Quality: 90, FullPage: true},
			Viewport: ViewportConfig{Width: 1280, Height: 720, DeviceScaleFactor: 1.0},
			Wait:     WaitConfig{Until: "networkidle0", Timeout: 30 * time.Second},
		},
	}

	switch env {
	case EnvProduction:
		base.Browser.Headless = "true"
		base.Browser.Pool.Min = 1
		base.Browser.Pool.Max = 5
		base.Resources.MaxMemoryMB = 1024
		base.Logging.Level = "info"
		base.Logging.Format = "json"
		base.Browser.Argv = append(base.Browser.Argv, "--no-sandbox", "--disable-dev-shm-usage")
	case EnvTest:
		base.Browser.Headless = "true"
		base.Browser.TimeoutMs = 10000
		base.Browser.Pool.Min = 0
		base.Browser.Pool.Max = 1
		base.Browser.Pool.IdleTimeoutMs = 5000
		base.Resources.MaxMemoryMB = 256
		base.Resources.MaxConcurrentRequests = 2
		base.Render.Wait.Timeout = 5 * time.Second
	}

	return base
}
