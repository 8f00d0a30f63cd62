package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultsAreValid(t *testing.T) {
	r, err := Load(nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	cfg := r.Get()
	if cfg.Browser.Pool.Min > cfg.Browser.Pool.Max {
		t.Fatalf("pool.min (%d) > pool.max (%d)", cfg.Browser.Pool.Min, cfg.Browser.Pool.Max)
	}
	if cfg.Thresholds.MemoryWarn >= cfg.Thresholds.MemoryCritical {
		t.Fatalf("memoryWarn >= memoryCritical")
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	defer os.Chdir(wd)
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	content := `{"resources": {"maxMemoryMB": 4096}}`
	if err := os.WriteFile(filepath.Join(dir, "printeer.config.json"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := Load(nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got := r.Get().Resources.MaxMemoryMB; got != 4096 {
		t.Fatalf("expected file override to win, got maxMemoryMB=%d", got)
	}
}

func TestLoad_YAMLFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	defer os.Chdir(wd)
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	content := "resources:\n  maxMemoryMB: 2048\n"
	if err := os.WriteFile(filepath.Join(dir, "printeer.config.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := Load(nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got := r.Get().Resources.MaxMemoryMB; got != 2048 {
		t.Fatalf("expected yaml file override to win, got maxMemoryMB=%d", got)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	defer os.Chdir(wd)
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	content := `{"resources": {"maxMemoryMB": 4096}}`
	if err := os.WriteFile(filepath.Join(dir, "printeer.config.json"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	os.Setenv("PRINTEER_RESOURCES_MAXMEMORYMB", "8192")
	defer os.Unsetenv("PRINTEER_RESOURCES_MAXMEMORYMB")

	r, err := Load(nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got := r.Get().Resources.MaxMemoryMB; got != 8192 {
		t.Fatalf("expected env override to win over file, got maxMemoryMB=%d", got)
	}
}

func TestLoad_CLIOverridesEnv(t *testing.T) {
	os.Setenv("PRINTEER_RESOURCES_MAXMEMORYMB", "8192")
	defer os.Unsetenv("PRINTEER_RESOURCES_MAXMEMORYMB")

	r, err := Load([]string{"--resources.maxMemoryMB=2048"})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got := r.Get().Resources.MaxMemoryMB; got != 2048 {
		t.Fatalf("expected CLI override to win over env, got maxMemoryMB=%d", got)
	}
}

func TestLoad_InvalidPoolBoundsIsFatal(t *testing.T) {
	_, err := Load([]string{"--browser.pool.min=5", "--browser.pool.max=1"})
	if err == nil {
		t.Fatal("expected fatal validation error for pool.min > pool.max")
	}
}

func TestReload_RejectedReloadKeepsPreviousConfig(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	defer os.Chdir(wd)
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(dir, "printeer.config.json")
	if err := os.WriteFile(configPath, []byte(`{"resources": {"maxMemoryMB": 1024}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := Load(nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	before := r.Get()

	if err := os.WriteFile(configPath, []byte(`{"browser": {"pool": {"min": 9, "max": 1}}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := r.Reload(); err == nil {
		t.Fatal("expected reload to be rejected")
	}

	after := r.Get()
	if after.Resources.MaxMemoryMB != before.Resources.MaxMemoryMB {
		t.Fatalf("expected previous config to stay in force, got maxMemoryMB=%d", after.Resources.MaxMemoryMB)
	}
}

func TestOnChange_InvokedOnSuccessfulReload(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	defer os.Chdir(wd)
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(dir, "printeer.config.json")
	if err := os.WriteFile(configPath, []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := Load(nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	changed := make(chan error, 1)
	r.OnChange(func(_ EffectiveConfig, err error) { changed <- err })

	if err := os.WriteFile(configPath, []byte(`{"resources": {"maxMemoryMB": 777}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := r.Reload(); err != nil {
		t.Fatalf("Reload returned error: %v", err)
	}

	select {
	case err := <-changed:
		if err != nil {
			t.Fatalf("subscriber received unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber was not invoked")
	}
}

func TestWatch_DebouncesRapidChangesAndReloads(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	defer os.Chdir(wd)
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(dir, "printeer.config.json")
	if err := os.WriteFile(configPath, []byte(`{"resources": {"maxMemoryMB": 1024}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := Load(nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	defer r.Close()

	if err := r.StartWatch(); err != nil {
		t.Fatalf("StartWatch returned error: %v", err)
	}

	for i := 0; i < 3; i++ {
		os.WriteFile(configPath, []byte(`{"resources": {"maxMemoryMB": 2048}}`), 0o644)
		time.Sleep(20 * time.Millisecond)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r.Get().Resources.MaxMemoryMB == 2048 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("expected debounced reload to pick up maxMemoryMB=2048, got %d", r.Get().Resources.MaxMemoryMB)
}

func TestRoundTrip_ParseCLISerializeCLI(t *testing.T) {
	r, err := Load(nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	original := r.Get()

	serialized := SerializeCLI(&original)
	roundTripped, err := ParseCLI(EffectiveConfig{}, serialized)
	if err != nil {
		t.Fatalf("ParseCLI returned error: %v", err)
	}

	for _, f := range Flags {
		got, want := f.Get(&roundTripped), f.Get(&original)
		if got != want {
			t.Fatalf("round-trip mismatch on %s: got %q, want %q", f.Path, got, want)
		}
	}
}

func TestResolveHeadless(t *testing.T) {
	cases := []struct {
		mode string
		want bool
	}{
		{"true", true},
		{"false", false},
	}
	for _, c := range cases {
		if got := ResolveHeadless(c.mode); got != c.want {
			t.Errorf("ResolveHeadless(%q) = %v, want %v", c.mode, got, c.want)
		}
	}
}
