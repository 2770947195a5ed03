package app

import (
	"os"
	"path/filepath"
)

// ConfigDir returns ~/.config/scrum/ on all platforms.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "scrum"), nil
}

// EnsureConfigDir creates the config directory and default config.yaml if missing.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	configFile := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return os.WriteFile(configFile, []byte(defaultConfig), 0600)
	}
	return nil
}

const defaultConfig = `# scrum configuration
# Run: scrum --help

# Optional: override the SQLite database location.
# Can also be set via SCRUM_DB_PATH or --db-path.
# db_path: ~/.config/scrum/scrum.db

# bind_host: 127.0.0.1
# bind_port: 4177
# log_level: info
# sprint_enabled: false
# output_clip_bytes: 65536
# agent_offline_after_ms: 300000
# default_claim_ttl_seconds: 900
# max_claim_ttl_seconds: 3600
# min_claim_ttl_seconds: 5
# claim_extend_default_seconds: 300
# dep_closure_max_depth: 100
`
