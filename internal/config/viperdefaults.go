package config

import "github.com/spf13/viper"

// setViperDefaults seeds viper's lowest-precedence layer from the
// environment-specific built-in defaults so that any field a file/env
// source omits still resolves to a valid value.
func setViperDefaults(v *viper.Viper, base EffectiveConfig) {
	v.SetDefault("mode", string(base.Mode))
	v.SetDefault("environment", string(base.Environment))

	v.SetDefault("browser.executablePath", base.Browser.ExecutablePath)
	v.SetDefault("browser.headless", base.Browser.Headless)
	v.SetDefault("browser.timeoutMs", base.Browser.TimeoutMs)
	v.SetDefault("browser.argv", base.Browser.Argv)
	v.SetDefault("browser.pool.min", base.Browser.Pool.Min)
	v.SetDefault("browser.pool.max", base.Browser.Pool.Max)
	v.SetDefault("browser.pool.idleTimeoutMs", base.Browser.Pool.IdleTimeoutMs)
	v.SetDefault("browser.pool.cleanupIntervalMs", base.Browser.Pool.CleanupIntervalMs)

	v.SetDefault("resources.maxMemoryMB", base.Resources.MaxMemoryMB)
	v.SetDefault("resources.maxCpuPercent", base.Resources.MaxCPUPercent)
	v.SetDefault("resources.maxDiskMB", base.Resources.MaxDiskMB)
	v.SetDefault("resources.maxConcurrentRequests", base.Resources.MaxConcurrentRequests)
	v.SetDefault("resources.maxBrowserInstances", base.Resources.MaxBrowserInstances)

	v.SetDefault("thresholds.memoryWarn", base.Thresholds.MemoryWarn)
	v.SetDefault("thresholds.memoryCritical", base.Thresholds.MemoryCritical)
	v.SetDefault("thresholds.cpuWarn", base.Thresholds.CPUWarn)
	v.SetDefault("thresholds.cpuCritical", base.Thresholds.CPUCritical)
	v.SetDefault("thresholds.diskWarn", base.Thresholds.DiskWarn)
	v.SetDefault("thresholds.diskCritical", base.Thresholds.DiskCritical)

	v.SetDefault("logging.level", base.Logging.Level)
	v.SetDefault("logging.format", base.Logging.Format)
	v.SetDefault("logging.destination", base.Logging.Destination)

	v.SetDefault("security.allowedDomains", base.Security.AllowedDomains)
	v.SetDefault("security.blockedDomains", base.Security.BlockedDomains)
	v.SetDefault("security.maxFileSize", base.Security.MaxFileSize)
	v.SetDefault("security.sanitizeInput", base.Security.SanitizeInput)

	v.SetDefault("render.page.width", base.Render.Page.Width)
	v.SetDefault("render.page.height", base.Render.Page.Height)
	v.SetDefault("render.pdf.format", base.Render.PDF.Format)
	v.SetDefault("render.pdf.landscape", base.Render.PDF.Landscape)
	v.SetDefault("render.pdf.printBackground", base.Render.PDF.PrintBackground)
	v.SetDefault("render.image.type", base.Render.Image.Type)
	v.SetDefault("render.image.quality", base.Render.Image.Quality)
	v.SetDefault("render.image.fullPage", base.Render.Image.FullPage)
	v.SetDefault("render.viewport.width", base.Render.Viewport.Width)
	v.SetDefault("render.viewport.height", base.Render.Viewport.Height)
	v.SetDefault("render.viewport.deviceScaleFactor", base.Render.Viewport.DeviceScaleFactor)
	v.SetDefault("render.wait.until", base.Render.Wait.Until)
	v.SetDefault("render.wait.timeout", base.Render.Wait.Timeout)
	v.SetDefault("render.performance.cacheEnabled", base.Render.Performance.CacheEnabled)
}
