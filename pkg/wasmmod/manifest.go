package wasmmod

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Hook names accepted as keys of Manifest.Exports.
var hookNames = []string{"startup", "prepare", "initialize", "begin_run", "analyze", "end_run", "exit"}

// Manifest describes a WASM module class.
type Manifest struct {
	// Name is the class name used in pipelines.
	Name        string `yaml:"name" validate:"required"`
	Version     string `yaml:"version" validate:"required"`
	Description string `yaml:"description"`

	// Module is the path of the .wasm file, relative to the manifest.
	Module string `yaml:"module" validate:"required"`

	// Checksum is the hex SHA-256 of the .wasm file. Empty skips verification.
	Checksum string `yaml:"checksum" validate:"omitempty,len=64,hexadecimal"`

	// MemoryLimitPages caps guest memory in 64KiB pages. Zero uses the default.
	MemoryLimitPages uint32 `yaml:"memory_limit_pages"`

	// Timeout bounds a single hook call. Zero uses the default.
	Timeout time.Duration `yaml:"timeout"`

	Parameters []ParameterSpec `yaml:"parameters" validate:"dive"`

	// Exports maps hook names to export names when they differ.
	Exports map[string]string `yaml:"exports"`
}

// ParameterSpec declares one parameter of a WASM module class. Guests read
// parameters by their position in the manifest.
type ParameterSpec struct {
	Name        string  `yaml:"name" validate:"required"`
	Type        string  `yaml:"type" validate:"required,oneof=int float string bool"`
	Default     string  `yaml:"default"`
	Unit        string  `yaml:"unit"`
	Scale       float64 `yaml:"scale"`
	Description string  `yaml:"description"`
}

// ExportName returns the export implementing a hook.
func (m *Manifest) ExportName(hook string) string {
	if name, ok := m.Exports[hook]; ok && name != "" {
		return name
	}
	return hook
}

// ParseManifest decodes and validates a YAML manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest YAML: %w", err)
	}
	if err := validateManifest(&m); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return &m, nil
}

func validateManifest(m *Manifest) error {
	if err := validator.New().Struct(m); err != nil {
		return err
	}

	seen := make(map[string]bool, len(m.Parameters))
	for _, p := range m.Parameters {
		if seen[p.Name] {
			return fmt.Errorf("parameter %s declared twice", p.Name)
		}
		seen[p.Name] = true
	}

	for hook := range m.Exports {
		if !isHook(hook) {
			return fmt.Errorf("unknown hook %q in exports (want one of %s)", hook, strings.Join(hookNames, ", "))
		}
	}
	return nil
}

func isHook(name string) bool {
	for _, h := range hookNames {
		if h == name {
			return true
		}
	}
	return false
}

// VerifyChecksum compares the module bytes with the manifest checksum.
func (m *Manifest) VerifyChecksum(wasm []byte) error {
	if m.Checksum == "" {
		return nil
	}
	hash := sha256.Sum256(wasm)
	computed := hex.EncodeToString(hash[:])
	if !strings.EqualFold(computed, m.Checksum) {
		return fmt.Errorf("WASM module checksum mismatch: expected %s, got %s", m.Checksum, computed)
	}
	return nil
}

// LoadManifest reads a manifest and the module it points to.
func LoadManifest(path string) (*Manifest, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read manifest file: %w", err)
	}

	m, err := ParseManifest(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}

	wasmPath := m.Module
	if !filepath.IsAbs(wasmPath) {
		wasmPath = filepath.Join(filepath.Dir(path), wasmPath)
	}
	wasm, err := os.ReadFile(wasmPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read WASM module: %w", err)
	}

	if err := m.VerifyChecksum(wasm); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, wasm, nil
}
