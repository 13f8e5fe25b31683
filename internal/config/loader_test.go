package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// newTestLoader returns a loader on a private viper instance, isolated from
// the caller's home and working directory.
func newTestLoader(t *testing.T) *Loader {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, ".config"))
	t.Chdir(dir)
	return NewIsolatedLoader()
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "goctc.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestNewLoader(t *testing.T) {
	loader := NewLoader()
	if loader == nil || loader.v == nil {
		t.Fatal("NewLoader() returned loader without viper instance")
	}
	if loader.GetViper() != viper.GetViper() {
		t.Error("NewLoader() should use the global viper instance")
	}
}

func TestLoadWithNoConfigFile(t *testing.T) {
	loader := newTestLoader(t)

	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected default log level 'info', got %s", cfg.LogLevel)
	}
	if !cfg.CTC.Strict {
		t.Error("Expected strict mode by default")
	}
	if loader.GetConfigFileUsed() != "" {
		t.Errorf("Expected no config file, got %s", loader.GetConfigFileUsed())
	}
}

func TestLoadFromWorkingDirectory(t *testing.T) {
	loader := newTestLoader(t)
	if err := os.WriteFile("goctc.yaml", []byte("log_level: warn\nctc:\n  max_time_steps: 77\n"), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("Expected log level 'warn', got %s", cfg.LogLevel)
	}
	if cfg.CTC.MaxTimeSteps != 77 {
		t.Errorf("Expected max_time_steps 77, got %d", cfg.CTC.MaxTimeSteps)
	}
	// Unset keys keep their defaults.
	if cfg.CTC.MaxLabelLength != 1000 {
		t.Errorf("Expected default max_label_length 1000, got %d", cfg.CTC.MaxLabelLength)
	}
}

func TestLoadWithValidYAMLFile(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
verbose: true
ctc:
  strict: false
  row_sum_tolerance: 0.001
  normalize_labels: true
output:
  format: json
  precision: 3
server:
  port: 9090
  rate_limit:
    enabled: true
    requests_per_minute: 5
batch:
  workers: 2
  continue_on_error: true
`)
	loader := newTestLoader(t)

	cfg, err := loader.LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile() unexpected error: %v", err)
	}
	if cfg.LogLevel != "debug" || !cfg.Verbose {
		t.Errorf("Global settings not loaded: %+v", cfg)
	}
	if cfg.CTC.Strict || !cfg.CTC.NormalizeLabels || cfg.CTC.RowSumTolerance != 0.001 {
		t.Errorf("CTC settings not loaded: %+v", cfg.CTC)
	}
	if cfg.Output.Format != "json" || cfg.Output.Precision != 3 {
		t.Errorf("Output settings not loaded: %+v", cfg.Output)
	}
	if cfg.Server.Port != 9090 || !cfg.Server.RateLimit.Enabled || cfg.Server.RateLimit.RequestsPerMinute != 5 {
		t.Errorf("Server settings not loaded: %+v", cfg.Server)
	}
	if cfg.Batch.Workers != 2 || !cfg.Batch.ContinueOnError {
		t.Errorf("Batch settings not loaded: %+v", cfg.Batch)
	}
	if loader.GetConfigFileUsed() != path {
		t.Errorf("Expected config file %s, got %s", path, loader.GetConfigFileUsed())
	}
}

func TestLoadWithInvalidYAMLFile(t *testing.T) {
	path := writeConfig(t, "log_level: [unclosed\n")
	if _, err := newTestLoader(t).LoadWithFile(path); err == nil {
		t.Error("Expected error for invalid YAML")
	}
}

func TestLoadWithNonExistentFile(t *testing.T) {
	_, err := newTestLoader(t).LoadWithFile("/nonexistent/goctc.yaml")
	if err == nil || !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("Expected missing file error, got %v", err)
	}
}

func TestLoadWithValidationFailure(t *testing.T) {
	path := writeConfig(t, "batch:\n  workers: 0\n")

	_, err := newTestLoader(t).LoadWithFile(path)
	if err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Errorf("Expected validation error, got %v", err)
	}

	cfg, err := newTestLoader(t).LoadWithFileWithoutValidation(path)
	if err != nil {
		t.Fatalf("LoadWithFileWithoutValidation() unexpected error: %v", err)
	}
	if cfg.Batch.Workers != 0 {
		t.Errorf("Expected workers 0, got %d", cfg.Batch.Workers)
	}
}

func TestEnvironmentVariableOverride(t *testing.T) {
	loader := newTestLoader(t)
	t.Setenv("GOCTC_LOG_LEVEL", "error")
	t.Setenv("GOCTC_CTC_MAX_TIME_STEPS", "123")
	t.Setenv("GOCTC_CTC_STRICT", "false")
	t.Setenv("GOCTC_SERVER_RATE_LIMIT_REQUESTS_PER_HOUR", "9")

	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("Expected log level from env, got %s", cfg.LogLevel)
	}
	if cfg.CTC.MaxTimeSteps != 123 {
		t.Errorf("Expected max_time_steps 123 from env, got %d", cfg.CTC.MaxTimeSteps)
	}
	if cfg.CTC.Strict {
		t.Error("Expected strict=false from env")
	}
	if cfg.Server.RateLimit.RequestsPerHour != 9 {
		t.Errorf("Expected requests_per_hour 9 from env, got %d", cfg.Server.RateLimit.RequestsPerHour)
	}
}

func TestGetSetConfigValues(t *testing.T) {
	loader := newTestLoader(t)
	loader.Set("output.format", "csv")
	if got := loader.Get("output.format"); got != "csv" {
		t.Errorf("Expected csv, got %v", got)
	}
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.Output.Format != "csv" {
		t.Errorf("Set value should win over defaults, got %s", cfg.Output.Format)
	}
	if _, ok := loader.GetResolvedConfig()["ctc"]; !ok {
		t.Error("Resolved config should include the ctc section")
	}
}

func TestGenerateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "generated.yaml")
	if err := GenerateDefaultConfigFile(path); err != nil {
		t.Fatalf("GenerateDefaultConfigFile() unexpected error: %v", err)
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: test file in a temp dir
	if err != nil {
		t.Fatalf("Failed to read generated file: %v", err)
	}
	var got Config
	if err := yaml.Unmarshal(data, &got); err != nil {
		t.Fatalf("Generated file is not valid YAML: %v", err)
	}
	if got != DefaultConfig() {
		t.Errorf("Generated config differs from defaults:\n got %+v\nwant %+v", got, DefaultConfig())
	}
}

func TestGenerateDefaultConfigFileWithEmptyFilename(t *testing.T) {
	t.Chdir(t.TempDir())
	if err := GenerateDefaultConfigFile(""); err != nil {
		t.Fatalf("GenerateDefaultConfigFile() unexpected error: %v", err)
	}
	if _, err := os.Stat("goctc.yaml"); err != nil {
		t.Errorf("Expected goctc.yaml in working directory: %v", err)
	}
}

func TestGetConfigSearchPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	paths := GetConfigSearchPaths()
	if paths[0] != "." {
		t.Errorf("Expected working directory first, got %s", paths[0])
	}
	if paths[len(paths)-1] != "/etc/goctc" {
		t.Errorf("Expected /etc/goctc last, got %s", paths[len(paths)-1])
	}
	found := false
	for _, p := range paths {
		if p == filepath.Join("/xdg", "goctc") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected XDG path in %v", paths)
	}
}
