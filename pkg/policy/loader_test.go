package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/openfroyo/anlchain/pkg/chain"
)

const maxModules = `# Chains longer than three modules are rejected.
# severity: error
package anlchain.test.size

import rego.v1

deny contains "chain has more than three modules" if {
	count(input.chain.modules) > 3
}
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
}

func TestLoadFromFile_Rego(t *testing.T) {
	loader := NewLoader(zerolog.Nop())
	path := filepath.Join(t.TempDir(), "max-modules.rego")
	writeFile(t, path, maxModules)

	policy, err := loader.loadFromFile(context.Background(), path)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}

	if policy.Name != "max-modules" {
		t.Errorf("Expected name 'max-modules', got '%s'", policy.Name)
	}
	if policy.Description != "Chains longer than three modules are rejected." {
		t.Errorf("unexpected description %q", policy.Description)
	}
	if policy.Severity != SeverityError {
		t.Errorf("Expected severity error, got %s", policy.Severity)
	}
	if policy.Source != path || !policy.Enabled {
		t.Errorf("unexpected policy: %+v", policy)
	}
}

func TestLoadFromFile_JSON(t *testing.T) {
	loader := NewLoader(zerolog.Nop())
	dir := t.TempDir()

	data, err := json.Marshal(Policy{
		Name:    "json-policy",
		Rego:    maxModules,
		Enabled: true,
		Tags:    []string{"size"},
	})
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "policy.json")
	writeFile(t, path, string(data))

	loaded, err := loader.loadFromFile(context.Background(), path)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}
	if loaded.Name != "json-policy" || loaded.Severity != SeverityWarning {
		t.Errorf("unexpected policy: %+v", loaded)
	}

	bad := filepath.Join(dir, "bad.json")
	writeFile(t, bad, `{"rego": "package x"}`)
	if _, err := loader.loadFromFile(context.Background(), bad); err == nil {
		t.Error("expected an error for a JSON policy without name")
	}
}

func TestLoadFromFile_Cache(t *testing.T) {
	loader := NewLoader(zerolog.Nop())
	path := filepath.Join(t.TempDir(), "p.rego")
	writeFile(t, path, maxModules)

	first, err := loader.loadFromFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	first.Name = "mutated"

	second, err := loader.loadFromFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if second.Name != "p" {
		t.Errorf("cache returned a shared policy: %s", second.Name)
	}

	writeFile(t, path, "# Replaced.\n"+maxModules)
	later := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}
	third, err := loader.loadFromFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if third.Description != "Replaced. Chains longer than three modules are rejected." {
		t.Errorf("modified file served from cache: %q", third.Description)
	}
}

func TestLoadFromPaths_Directory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.rego"), maxModules)
	writeFile(t, filepath.Join(dir, "nested", "b.rego"), maxModules)
	writeFile(t, filepath.Join(dir, "README.md"), "not a policy")
	writeFile(t, filepath.Join(dir, "broken.json"), "{")

	policies, err := NewLoader(zerolog.Nop()).LoadFromPaths(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("LoadFromPaths failed: %v", err)
	}
	if len(policies) != 2 {
		t.Errorf("expected 2 policies, got %d", len(policies))
	}

	if _, err := NewLoader(zerolog.Nop()).LoadFromPaths(context.Background(), []string{filepath.Join(dir, "missing")}); err == nil {
		t.Error("expected error for missing path")
	}
}

func TestEngine_LoadAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "max-modules.rego")
	writeFile(t, path, maxModules)

	eng := newTestEngine(t)
	ctx := context.Background()
	if err := eng.LoadPolicies(ctx, []string{dir}); err != nil {
		t.Fatalf("LoadPolicies failed: %v", err)
	}

	var five []chain.ModuleSnapshot
	for i := 0; i < 5; i++ {
		five = append(five, snapshot(fmt.Sprintf("m%d", i), "1.0", true))
	}
	result, err := eng.Evaluate(ctx, five)
	if err != nil {
		t.Fatal(err)
	}
	if result.Allowed {
		t.Fatal("five modules must be rejected")
	}
	if result.Violations[0].Message != "chain has more than three modules" {
		t.Errorf("unexpected violation: %+v", result.Violations[0])
	}

	if err := eng.AddPolicy(ctx, Policy{Name: "extra", Rego: gainLimit, Enabled: true}); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if err := eng.ReloadPolicies(ctx); err != nil {
		t.Fatalf("ReloadPolicies failed: %v", err)
	}
	if _, err := eng.GetPolicy("max-modules"); err == nil {
		t.Error("removed policy survived the reload")
	}
	if _, err := eng.GetPolicy("extra"); err == nil {
		t.Error("policies added in memory are dropped by a reload")
	}
	if _, err := eng.GetPolicy("chain-not-empty"); err != nil {
		t.Error("built-in policy lost by the reload")
	}
}

func TestEngine_Watch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "max-modules.rego"), maxModules)

	eng := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := eng.Watch(ctx); err == nil {
		t.Error("Watch without loaded paths must fail")
	}
	if err := eng.LoadPolicies(ctx, []string{dir}); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- eng.Watch(ctx) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, filepath.Join(dir, "added.rego"), maxModules)

	deadline := time.After(5 * time.Second)
	for {
		if _, err := eng.GetPolicy("added"); err == nil {
			break
		}
		select {
		case <-deadline:
			t.Fatal("new policy file was not picked up")
		case <-time.After(50 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch returned %v", err)
	}
}
