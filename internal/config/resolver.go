package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/printeer-go/printeer/internal/errs"
)

const reloadDebounce = 500 * time.Millisecond

// searchPaths are tried in increasing precedence; the first
// one that exists does not stop the search — viper merges all of them,
// later entries overriding earlier ones.
func searchPaths() []string {
	paths := []string{
		"./.printeerrc.json",
		"./printeer.config.json",
		"./printeer.config.yaml",
		"./printeer.config.yml",
		"./config.json",
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "printeer", "config.json"))
	}
	return paths
}

// mergeConfigFile merges one discovered source into v, picking a
// decoder by extension. JSON sources go through viper's own decoder;
// YAML sources are decoded with gopkg.in/yaml.v3 into a plain map
// first and merged with MergeConfigMap.
func mergeConfigFile(v *viper.Viper, p string) error {
	ext := strings.ToLower(filepath.Ext(p))
	if ext != ".yaml" && ext != ".yml" {
		v.SetConfigType("json")
		v.SetConfigFile(p)
		return v.MergeInConfig()
	}

	raw, err := os.ReadFile(p)
	if err != nil {
		return err
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parsing yaml: %w", err)
	}
	return v.MergeConfigMap(doc)
}

// Resolver owns the process-lifetime effective configuration, publishing
// it through a lock-free atomic swap.
type Resolver struct {
	current      atomic.Value // EffectiveConfig
	mu           sync.Mutex   // serializes Reload/Close
	cliArgs      []string
	discoveredFiles []string
	watcher      *fsnotify.Watcher
	stopCh       chan struct{}
	wg           sync.WaitGroup
	closed       bool
	subscribers  []func(EffectiveConfig, error)
	subMu        sync.Mutex
}

// Load resolves the effective configuration from defaults, discovered
// files, environment variables, and cliArgs. A validation failure here
// is fatal, returned as an error rather than falling back to defaults.
func Load(cliArgs []string) (*Resolver, error) {
	r := &Resolver{cliArgs: cliArgs, stopCh: make(chan struct{})}
	cfg, files, err := r.resolve(cliArgs)
	if err != nil {
		return nil, err
	}
	r.discoveredFiles = files
	r.current.Store(cfg)
	return r, nil
}

// Get returns the current effective configuration. Lock-free, safe for
// concurrent use from any number of readers.
func (r *Resolver) Get() EffectiveConfig {
	return r.current.Load().(EffectiveConfig)
}

// Reload re-resolves the configuration. On validation failure the
// previous config stays in force and the error is surfaced to
// subscribers, never to the caller as a state change.
func (r *Resolver) Reload() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, files, err := r.resolve(r.cliArgs)
	if err != nil {
		rejected := errs.NewReloadRejectedError(err.Error())
		r.notify(r.Get(), rejected)
		return rejected
	}
	r.discoveredFiles = files
	r.current.Store(cfg)
	r.notify(cfg, nil)
	return nil
}

// OnChange registers a subscriber invoked after every successful or
// failed Reload. Invocation is synchronous on the reload call; a
// panicking subscriber is recovered and logged, not propagated.
func (r *Resolver) OnChange(cb func(EffectiveConfig, error)) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	r.subscribers = append(r.subscribers, cb)
}

func (r *Resolver) notify(cfg EffectiveConfig, err error) {
	r.subMu.Lock()
	subs := append([]func(EffectiveConfig, error){}, r.subscribers...)
	r.subMu.Unlock()

	for _, cb := range subs {
		func() {
			defer func() {
				if p := recover(); p != nil {
					log.Error().Interface("panic", p).Msg("config change subscriber panicked")
				}
			}()
			cb(cfg, err)
		}()
	}
}

// resolve performs the full defaults<-file<-env<-CLI merge and
// validates the result.
func (r *Resolver) resolve(cliArgs []string) (EffectiveConfig, []string, error) {
	env := DetectEnvironment()
	base := defaultsFor(env)

	v := viper.New()
	setViperDefaults(v, base)

	var foundFiles []string
	for _, p := range searchPaths() {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := mergeConfigFile(v, p); err != nil {
			log.Warn().Err(err).Str("path", p).Msg("skipping unreadable configuration source")
			continue
		}
		foundFiles = append(foundFiles, p)
	}

	v.SetEnvPrefix("PRINTEER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg EffectiveConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return EffectiveConfig{}, nil, errs.NewSchemaError("merged", err.Error())
	}

	merged, err := ParseCLI(cfg, cliArgs)
	if err != nil {
		return EffectiveConfig{}, nil, errs.NewSchemaError("cli", err.Error())
	}
	cfg = merged

	warnings, verr := Validate(&cfg)
	if verr != nil {
		return EffectiveConfig{}, nil, verr
	}
	for _, w := range warnings {
		log.Warn().Str("reason", w).Msg("suspicious configuration value")
	}

	return cfg, foundFiles, nil
}

// StartWatch begins watching every discovered configuration file and
// debounces rapid changes by reloadDebounce before triggering Reload.
func (r *Resolver) StartWatch() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.discoveredFiles) == 0 {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting config watcher: %w", err)
	}
	for _, f := range r.discoveredFiles {
		if err := watcher.Add(f); err != nil {
			watcher.Close()
			return fmt.Errorf("watching %s: %w", f, err)
		}
	}
	r.watcher = watcher
	r.wg.Add(1)
	go r.watchLoop()
	return nil
}

func (r *Resolver) watchLoop() {
	defer r.wg.Done()

	var debounceTimer *time.Timer
	var debouncing bool

	for {
		select {
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debouncing {
				if !debounceTimer.Stop() {
					select {
					case <-debounceTimer.C:
					default:
					}
				}
				debounceTimer.Reset(reloadDebounce)
			} else {
				debouncing = true
				debounceTimer = time.AfterFunc(reloadDebounce, func() {
					if err := r.Reload(); err != nil {
						log.Warn().Err(err).Msg("hot-reload failed, keeping previous configuration")
					}
					debouncing = false
				})
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("configuration file watcher error")
		case <-r.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return
		}
	}
}

// Close stops the file watcher. Idempotent.
func (r *Resolver) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	close(r.stopCh)
	r.wg.Wait()
	if r.watcher != nil {
		return r.watcher.Close()
	}
	return nil
}
