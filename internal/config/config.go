// SPDX-License-Identifier: MIT

// Package config loads and validates the opgate daemon configuration from
// defaults, an optional YAML file, and OPGATE_* environment overrides, in
// that order.
package config

// SourceKind names the event source implementations an operation can bind to.
type SourceKind string

const (
	SourceManual SourceKind = "manual"
	SourceFile   SourceKind = "file"
	SourceStatic SourceKind = "static"
)

// Operation binds one tracked operation name to its event source.
type Operation struct {
	Name   string     `yaml:"name"`
	Source SourceKind `yaml:"source"`
	Path   string     `yaml:"path,omitempty"`   // marker path for file sources
	Active bool       `yaml:"active,omitempty"` // initial state for manual/static sources
}

// Redis configures the optional Redis notification sink.
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Channel  string `yaml:"channel,omitempty"`
}

// Config is the complete daemon configuration.
type Config struct {
	ListenAddr  string      `yaml:"listen"`
	MetricsAddr string      `yaml:"metrics_listen,omitempty"` // optional separate metrics listener
	LogLevel    string      `yaml:"log_level,omitempty"`
	Operations  []Operation `yaml:"operations"`
	Redis       *Redis      `yaml:"redis,omitempty"`
	JournalPath string      `yaml:"journal_path,omitempty"`
	StateFile   string      `yaml:"state_file,omitempty"`
}

// Defaults returns the configuration used when no file and no environment
// overrides are present: the three classic global operations on manual
// sources, API on :8686.
func Defaults() Config {
	return Config{
		ListenAddr: ":8686",
		LogLevel:   "info",
		Operations: []Operation{
			{Name: "Building", Source: SourceManual},
			{Name: "Opening", Source: SourceManual},
			{Name: "Closing", Source: SourceManual},
		},
	}
}
