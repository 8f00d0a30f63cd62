package config

import (
	"os"
	"runtime"
	"strings"
)

// DetectEnvironment picks the running environment by priority:
// explicit env var, then CI/test markers, then container/orchestrator
// markers, defaulting to development.
func DetectEnvironment() Environment {
	if v := explicitEnvVar(); v != "" {
		return v
	}
	if looksLikeTest() {
		return EnvTest
	}
	if looksLikeContainer() {
		return EnvProduction
	}
	return EnvDevelopment
}

func explicitEnvVar() Environment {
	raw := os.Getenv("PRINTEER_ENV")
	if raw == "" {
		raw = os.Getenv("NODE_ENV")
	}
	switch strings.ToLower(raw) {
	case "dev", "development":
		return EnvDevelopment
	case "prod", "production":
		return EnvProduction
	case "test":
		return EnvTest
	default:
		return ""
	}
}

func looksLikeTest() bool {
	if os.Getenv("CI") != "" {
		return true
	}
	for _, key := range []string{"JEST_WORKER_ID", "GO_TEST", "TEST_MODE"} {
		if os.Getenv(key) != "" {
			return true
		}
	}
	return strings.HasSuffix(os.Args[0], ".test")
}

func looksLikeContainer() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return true
	}
	if os.Getenv("PM2_HOME") != "" {
		return true
	}
	for _, key := range []string{"AWS_EXECUTION_ENV", "AWS_LAMBDA_FUNCTION_NAME", "GOOGLE_CLOUD_PROJECT", "WEBSITE_INSTANCE_ID"} {
		if os.Getenv(key) != "" {
			return true
		}
	}
	return false
}

// ResolveHeadless resolves the "auto" headless setting: on
// Linux, "auto" resolves to true only when no display server is
// discoverable (no DISPLAY/WAYLAND_DISPLAY); on every other platform
// there is no in-scope display-server concept, so "auto" always
// resolves to true.
func ResolveHeadless(mode string) bool {
	switch mode {
	case "true":
		return true
	case "false":
		return false
	case "auto":
		if runtime.GOOS != "linux" {
			return true
		}
		return os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == ""
	default:
		return true
	}
}
