package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override of Settings.
const EnvPrefix = "ANLCHAIN_"

// Settings holds the command-line tool settings. Values come from a YAML
// file, then from ANLCHAIN_* environment variables.
type Settings struct {
	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL" validate:"oneof=trace debug info warn error fatal"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT" validate:"oneof=console json"`

	// NumLoop and DisplayFrequency are used when neither the command line nor
	// the pipeline gives one.
	NumLoop          int `yaml:"num_loop" env:"NUM_LOOP" validate:"gte=-1"`
	DisplayFrequency int `yaml:"display_frequency" env:"DISPLAY_FREQUENCY" validate:"gte=0"`

	// HistoryDB is the SQLite file recording runs. Empty disables history.
	HistoryDB string `yaml:"history_db" env:"HISTORY_DB"`

	// PolicyDir holds additional .rego policies for the pre-run gate.
	PolicyDir string `yaml:"policy_dir" env:"POLICY_DIR"`

	// ModuleDir holds WASM modules with their .yaml manifests.
	ModuleDir string `yaml:"module_dir" env:"MODULE_DIR"`

	Script    ScriptSettings    `yaml:"script" envPrefix:"SCRIPT_"`
	Telemetry TelemetrySettings `yaml:"telemetry" envPrefix:"TELEMETRY_"`
}

// ScriptSettings are the defaults of generated scripts.
type ScriptSettings struct {
	Package   string `yaml:"package" env:"PACKAGE" validate:"required"`
	Namespace string `yaml:"namespace" env:"NAMESPACE" validate:"required"`
	AppName   string `yaml:"app_name" env:"APP_NAME" validate:"required"`
}

// TelemetrySettings select tracing and metrics exporters.
type TelemetrySettings struct {
	Tracing     bool   `yaml:"tracing" env:"TRACING"`
	Exporter    string `yaml:"exporter" env:"EXPORTER" validate:"oneof=stdout otlp none"`
	Endpoint    string `yaml:"endpoint" env:"ENDPOINT" validate:"required_if=Exporter otlp"`
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME" validate:"required"`
	MetricsAddr string `yaml:"metrics_addr" env:"METRICS_ADDR"`
}

// DefaultSettings returns the settings used when no file is present.
func DefaultSettings() *Settings {
	return &Settings{
		LogLevel:         "info",
		LogFormat:        "console",
		NumLoop:          100000,
		DisplayFrequency: 0,
		HistoryDB:        defaultHistoryDB(),
		Script: ScriptSettings{
			Package:   "mypackage",
			Namespace: "MyPackage",
			AppName:   "MyApp",
		},
		Telemetry: TelemetrySettings{
			Exporter:    "stdout",
			ServiceName: "anlchain",
		},
	}
}

func defaultHistoryDB() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "anlchain", "history.db")
}

// LoadSettings reads settings from path (skipped when empty or missing),
// applies environment overrides and validates the result.
func LoadSettings(path string) (*Settings, error) {
	s := DefaultSettings()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read settings %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, s); err != nil {
				return nil, fmt.Errorf("failed to parse settings %s: %w", path, err)
			}
		}
	}

	if err := env.ParseWithOptions(s, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(s); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return s, nil
}
