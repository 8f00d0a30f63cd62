package config

import (
	"fmt"
	"strconv"
	"strings"
)

// FlagSpec binds one CLI flag ("--path=value") to a dotted path in
// EffectiveConfig with a parse/serialize pair, so ParseCLI and
// SerializeCLI share one source of truth.
//
// Scope: the table covers mode, environment, the browser launch and
// pool-size fields, the resource limits other than
// maxBrowserInstances, logging, and security. Thresholds,
// browser.pool.cleanupIntervalMs, resources.maxBrowserInstances and
// the render parameters have no flag. PRINTEER_ environment variables
// are not read through this table; the resolver binds them with
// viper's AutomaticEnv.
type FlagSpec struct {
	Path      string
	Get       func(*EffectiveConfig) string
	Set       func(*EffectiveConfig, string) error
}

// Flags is the CLI-flag binding table.
var Flags = []FlagSpec{
	{"mode", func(c *EffectiveConfig) string { return string(c.Mode) }, func(c *EffectiveConfig, v string) error {
		c.Mode = Mode(v)
		return nil
	}},
	{"environment", func(c *EffectiveConfig) string { return string(c.Environment) }, func(c *EffectiveConfig, v string) error {
		c.Environment = Environment(v)
		return nil
	}},
	{"browser.executablePath", func(c *EffectiveConfig) string { return c.Browser.ExecutablePath }, func(c *EffectiveConfig, v string) error {
		c.Browser.ExecutablePath = v
		return nil
	}},
	{"browser.headless", func(c *EffectiveConfig) string { return c.Browser.Headless }, func(c *EffectiveConfig, v string) error {
		c.Browser.Headless = v
		return nil
	}},
	{"browser.timeoutMs", intGet(func(c *EffectiveConfig) *int { return &c.Browser.TimeoutMs }), intSet(func(c *EffectiveConfig) *int { return &c.Browser.TimeoutMs })},
	{"browser.argv", func(c *EffectiveConfig) string { return strings.Join(c.Browser.Argv, ",") }, func(c *EffectiveConfig, v string) error {
		c.Browser.Argv = splitCSV(v)
		return nil
	}},
	{"browser.pool.min", intGet(func(c *EffectiveConfig) *int { return &c.Browser.Pool.Min }), intSet(func(c *EffectiveConfig) *int { return &c.Browser.Pool.Min })},
	{"browser.pool.max", intGet(func(c *EffectiveConfig) *int { return &c.Browser.Pool.Max }), intSet(func(c *EffectiveConfig) *int { return &c.Browser.Pool.Max })},
	{"browser.pool.idleTimeoutMs", intGet(func(c *EffectiveConfig) *int { return &c.Browser.Pool.IdleTimeoutMs }), intSet(func(c *EffectiveConfig) *int { return &c.Browser.Pool.IdleTimeoutMs })},
	{"resources.maxMemoryMB", intGet(func(c *EffectiveConfig) *int { return &c.Resources.MaxMemoryMB }), intSet(func(c *EffectiveConfig) *int { return &c.Resources.MaxMemoryMB })},
	{"resources.maxCpuPercent", intGet(func(c *EffectiveConfig) *int { return &c.Resources.MaxCPUPercent }), intSet(func(c *EffectiveConfig) *int { return &c.Resources.MaxCPUPercent })},
	{"resources.maxDiskMB", intGet(func(c *EffectiveConfig) *int { return &c.Resources.MaxDiskMB }), intSet(func(c *EffectiveConfig) *int { return &c.Resources.MaxDiskMB })},
	{"resources.maxConcurrentRequests", intGet(func(c *EffectiveConfig) *int { return &c.Resources.MaxConcurrentRequests }), intSet(func(c *EffectiveConfig) *int { return &c.Resources.MaxConcurrentRequests })},
	{"logging.level", func(c *EffectiveConfig) string { return c.Logging.Level }, func(c *EffectiveConfig, v string) error {
		c.Logging.Level = v
		return nil
	}},
	{"logging.format", func(c *EffectiveConfig) string { return c.Logging.Format }, func(c *EffectiveConfig, v string) error {
		c.Logging.Format = v
		return nil
	}},
	{"logging.destination", func(c *EffectiveConfig) string { return c.Logging.Destination }, func(c *EffectiveConfig, v string) error {
		c.Logging.Destination = v
		return nil
	}},
	{"security.allowedDomains", func(c *EffectiveConfig) string { return strings.Join(c.Security.AllowedDomains, ",") }, func(c *EffectiveConfig, v string) error {
		c.Security.AllowedDomains = splitCSV(v)
		return nil
	}},
	{"security.blockedDomains", func(c *EffectiveConfig) string { return strings.Join(c.Security.BlockedDomains, ",") }, func(c *EffectiveConfig, v string) error {
		c.Security.BlockedDomains = splitCSV(v)
		return nil
	}},
	{"security.maxFileSize", func(c *EffectiveConfig) string { return strconv.FormatInt(c.Security.MaxFileSize, 10) }, func(c *EffectiveConfig, v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("security.maxFileSize: %w", err)
		}
		c.Security.MaxFileSize = n
		return nil
	}},
	{"security.sanitizeInput", boolGet(func(c *EffectiveConfig) *bool { return &c.Security.SanitizeInput }), boolSet(func(c *EffectiveConfig) *bool { return &c.Security.SanitizeInput })},
}

func intGet(field func(*EffectiveConfig) *int) func(*EffectiveConfig) string {
	return func(c *EffectiveConfig) string { return strconv.Itoa(*field(c)) }
}

func intSet(field func(*EffectiveConfig) *int) func(*EffectiveConfig, string) error {
	return func(c *EffectiveConfig, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func boolGet(field func(*EffectiveConfig) *bool) func(*EffectiveConfig) string {
	return func(c *EffectiveConfig) string { return strconv.FormatBool(*field(c)) }
}

func boolSet(field func(*EffectiveConfig) *bool) func(*EffectiveConfig, string) error {
	return func(c *EffectiveConfig, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(c) = b
		return nil
	}
}

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// SerializeCLI renders every bound field of c as "--path=value" flags,
// in table order, so ParseCLI(SerializeCLI(c)) round-trips.
func SerializeCLI(c *EffectiveConfig) []string {
	args := make([]string, 0, len(Flags))
	for _, f := range Flags {
		args = append(args, fmt.Sprintf("--%s=%s", f.Path, f.Get(c)))
	}
	return args
}

// ParseCLI applies "--path=value" arguments onto a copy of base,
// returning the updated config. Unrecognized flags are ignored (the
// CLI surface may pass through flags this table doesn't bind).
func ParseCLI(base EffectiveConfig, args []string) (EffectiveConfig, error) {
	c := base.Clone()
	byPath := make(map[string]FlagSpec, len(Flags))
	for _, f := range Flags {
		byPath[f.Path] = f
	}
	for _, a := range args {
		a = strings.TrimPrefix(a, "--")
		eq := strings.IndexByte(a, '=')
		if eq < 0 {
			continue
		}
		path, value := a[:eq], a[eq+1:]
		spec, ok := byPath[path]
		if !ok {
			continue
		}
		if err := spec.Set(&c, value); err != nil {
			return EffectiveConfig{}, fmt.Errorf("parsing --%s: %w", path, err)
		}
	}
	return c, nil
}
