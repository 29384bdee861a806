package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("webapp")

	if cfg.Project != "webapp" {
		t.Errorf("Project = %v, want webapp", cfg.Project)
	}
	if cfg.Venv != "venv" {
		t.Errorf("Venv = %v, want venv", cfg.Venv)
	}
	if cfg.Entrypoint != "main.py" {
		t.Errorf("Entrypoint = %v, want main.py", cfg.Entrypoint)
	}
	if diff := cmp.Diff(DefaultPackages, cfg.Packages); diff != "" {
		t.Errorf("Packages mismatch (-want +got):\n%s", diff)
	}
	if cfg.App.Host != "127.0.0.1" || cfg.App.Port != 5000 {
		t.Errorf("App = %+v, want 127.0.0.1:5000", cfg.App)
	}
	if !cfg.PauseEnabled() {
		t.Error("PauseEnabled() = false, want true")
	}
}

func TestDefaultConfig_PackagesAreACopy(t *testing.T) {
	cfg := DefaultConfig("webapp")
	cfg.Packages[0] = "django"

	if DefaultPackages[0] != "flask" {
		t.Error("mutating a config's packages changed DefaultPackages")
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	content := `project: webapp
`
	if err := os.WriteFile(filepath.Join(tmpDir, ConfigFileName), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Venv != "venv" {
		t.Errorf("Venv default = %v, want venv", cfg.Venv)
	}
	if cfg.Entrypoint != "main.py" {
		t.Errorf("Entrypoint default = %v, want main.py", cfg.Entrypoint)
	}
	if len(cfg.Packages) != 3 {
		t.Errorf("Packages default = %v, want the 3 flask packages", cfg.Packages)
	}
	if cfg.App.Host != "127.0.0.1" || cfg.App.Port != 5000 {
		t.Errorf("App default = %+v, want 127.0.0.1:5000", cfg.App)
	}
	if !cfg.PauseEnabled() {
		t.Error("PauseEnabled() default = false, want true")
	}
}

func TestLoad_ProjectDefaultsToDirectoryName(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "webapp")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create project dir: %v", err)
	}
	// No project key at all, only an override
	content := `entrypoint: app.py
`
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Project != "webapp" {
		t.Errorf("Project = %q, want the directory name %q", cfg.Project, "webapp")
	}
	if cfg.Entrypoint != "app.py" {
		t.Errorf("Entrypoint = %q, want the override app.py", cfg.Entrypoint)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v, want a loadable config without a project key", err)
	}
}

func TestLoad_PauseDisabled(t *testing.T) {
	tmpDir := t.TempDir()
	content := `project: webapp
pause: false
`
	if err := os.WriteFile(filepath.Join(tmpDir, ConfigFileName), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PauseEnabled() {
		t.Error("PauseEnabled() = true with pause: false")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(t.TempDir())
	if err == nil {
		t.Fatal("Load() error = nil for missing file")
	}
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := DefaultConfig("webapp")
	cfg.Python = "python3.12"
	cfg.Packages = []string{"flask==3.0.2"}

	if err := Save(tmpDir, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff(cfg, loaded); diff != "" {
		t.Errorf("round trip mismatch (-saved +loaded):\n%s", diff)
	}
}

func TestExists(t *testing.T) {
	tmpDir := t.TempDir()

	if Exists(tmpDir) {
		t.Error("Exists() = true before save")
	}
	if err := Save(tmpDir, DefaultConfig("webapp")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !Exists(tmpDir) {
		t.Error("Exists() = false after save")
	}
}

func TestCreateStateDir(t *testing.T) {
	tmpDir := t.TempDir()

	if err := CreateStateDir(tmpDir); err != nil {
		t.Fatalf("CreateStateDir() error = %v", err)
	}

	info, err := os.Stat(filepath.Join(tmpDir, StateDir))
	if err != nil {
		t.Fatalf("state dir not created: %v", err)
	}
	if !info.IsDir() {
		t.Error("state dir is not a directory")
	}
}

func TestFindProjectRoot(t *testing.T) {
	tmpDir := t.TempDir()
	nested := filepath.Join(tmpDir, "src", "handlers")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("failed to create nested dirs: %v", err)
	}
	if err := Save(tmpDir, DefaultConfig("webapp")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	root, err := FindProjectRoot(nested)
	if err != nil {
		t.Fatalf("FindProjectRoot() error = %v", err)
	}
	if root != tmpDir {
		t.Errorf("FindProjectRoot() = %v, want %v", root, tmpDir)
	}
}

func TestFindProjectRoot_NotFound(t *testing.T) {
	_, err := FindProjectRoot(t.TempDir())
	if err == nil {
		t.Fatal("FindProjectRoot() error = nil outside a project")
	}
}
