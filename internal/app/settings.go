package app

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Settings represents configuration loaded from config.yaml.
// Field names match snake_case YAML keys.
type Settings struct {
	DBPath                    string `yaml:"db_path"`
	BindHost                  string `yaml:"bind_host"`
	BindPort                  int    `yaml:"bind_port"`
	LogLevel                  string `yaml:"log_level"`
	SprintEnabled             bool   `yaml:"sprint_enabled"` // reserved; gates nothing yet
	OutputClipBytes           int    `yaml:"output_clip_bytes"`
	AgentOfflineAfterMs       int64  `yaml:"agent_offline_after_ms"`
	DefaultClaimTTLSeconds    int    `yaml:"default_claim_ttl_seconds"`
	MaxClaimTTLSeconds        int    `yaml:"max_claim_ttl_seconds"`
	MinClaimTTLSeconds        int    `yaml:"min_claim_ttl_seconds"`
	ClaimExtendDefaultSeconds int    `yaml:"claim_extend_default_seconds"`
	DepClosureMaxDepth        int    `yaml:"dep_closure_max_depth"`
}

// Defaults for the coordination contract. The agent-offline window and the
// claim TTL bounds are part of the protocol, not tuning knobs; changing them
// changes observable behavior.
const (
	DefaultBindHost                  = "127.0.0.1"
	DefaultBindPort                  = 4177
	DefaultOutputClipBytes           = 64 * 1024
	DefaultAgentOfflineAfterMs       = 300_000
	DefaultClaimTTLSeconds           = 900
	DefaultMaxClaimTTLSeconds        = 3600
	DefaultMinClaimTTLSeconds        = 5
	DefaultClaimExtendDefaultSeconds = 300
	DefaultDepClosureMaxDepth        = 100
)

// withDefaults fills zero values with protocol defaults.
func (s Settings) withDefaults() Settings {
	if s.BindHost == "" {
		s.BindHost = DefaultBindHost
	}
	if s.BindPort == 0 {
		s.BindPort = DefaultBindPort
	}
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
	if s.OutputClipBytes <= 0 {
		s.OutputClipBytes = DefaultOutputClipBytes
	}
	if s.AgentOfflineAfterMs <= 0 {
		s.AgentOfflineAfterMs = DefaultAgentOfflineAfterMs
	}
	if s.DefaultClaimTTLSeconds <= 0 {
		s.DefaultClaimTTLSeconds = DefaultClaimTTLSeconds
	}
	if s.MaxClaimTTLSeconds <= 0 {
		s.MaxClaimTTLSeconds = DefaultMaxClaimTTLSeconds
	}
	if s.MinClaimTTLSeconds <= 0 {
		s.MinClaimTTLSeconds = DefaultMinClaimTTLSeconds
	}
	if s.ClaimExtendDefaultSeconds <= 0 {
		s.ClaimExtendDefaultSeconds = DefaultClaimExtendDefaultSeconds
	}
	if s.DepClosureMaxDepth <= 0 {
		s.DepClosureMaxDepth = DefaultDepClosureMaxDepth
	}
	return s
}

// settingsOnce, settings, settingsErr implement the sync.Once lazy-load singleton for config.
// dbPathOverrideMu and dbPathOverride implement a mutex-protected process-wide override for CLI --db-path.
//
//nolint:gochecknoglobals // sync.Once singleton + RWMutex override are intentional process-wide state
var (
	settingsOnce sync.Once
	settings     Settings
	settingsErr  error

	dbPathOverrideMu sync.RWMutex
	dbPathOverride   string
)

// SetDBPathOverride sets a process-wide database path override.
// Intended for CLI flag support (e.g. --db-path).
func SetDBPathOverride(path string) {
	dbPathOverrideMu.Lock()
	dbPathOverride = path
	dbPathOverrideMu.Unlock()
}

func getDBPathOverride() string {
	dbPathOverrideMu.RLock()
	v := dbPathOverride
	dbPathOverrideMu.RUnlock()
	return v
}

// LoadSettings loads configuration once using the documented lookup order.
// Lookup order (first found wins):
// 1) ~/.config/scrum/config.yaml
// 2) /etc/scrum/config.yaml
// 3) ./config.yaml (lowest priority; allows repo-local overrides if desired)
// Environment variables are handled separately. Missing keys get defaults.
func LoadSettings() (Settings, error) {
	settingsOnce.Do(func() {
		settings = Settings{}.withDefaults()

		// 1) User config (~/.config/scrum/config.yaml)
		dir, err := ConfigDir()
		if err != nil {
			settingsErr = err
			return
		}
		if s, err := loadSettingsFile(filepath.Join(dir, "config.yaml")); err == nil {
			settings = s.withDefaults()
			return
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			settingsErr = err
			return
		}

		// 2) /etc
		if s, err := loadSettingsFile(filepath.Join(string(os.PathSeparator), "etc", "scrum", "config.yaml")); err == nil {
			settings = s.withDefaults()
			return
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			settingsErr = err
			return
		}

		// 3) Local ./config.yaml (lowest priority)
		if s, err := loadSettingsFile("config.yaml"); err == nil {
			settings = s.withDefaults()
			return
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			settingsErr = err
			return
		}
	})

	return settings, settingsErr
}

func loadSettingsFile(path string) (Settings, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, err
	}

	var s Settings
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Settings{}, err
	}
	return s, nil
}
