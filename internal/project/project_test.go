package project

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadMissing(t *testing.T) {
	s, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.Path != "" || s.TestCommand != "" || s.LintConfigured() {
		t.Errorf("expected zero settings, got %+v", s)
	}
	if s.OnCreate() != nil || s.OnClose() != nil {
		t.Error("hooks should be empty")
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".wtmcp.yaml", `
base_branch: develop
test_command: make check
lint_commands:
  - golangci-lint run
hooks:
  on_create:
    - npm install
  on_close:
    - rm -rf node_modules
`)

	s, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.BaseBranch != "develop" || s.TestCommand != "make check" {
		t.Errorf("settings = %+v", s)
	}
	if !s.LintConfigured() || len(s.LintCommands) != 1 {
		t.Errorf("lint = %v (configured %v)", s.LintCommands, s.LintConfigured())
	}
	if len(s.OnCreate()) != 1 || s.OnCreate()[0] != "npm install" {
		t.Errorf("OnCreate = %v", s.OnCreate())
	}
	if len(s.OnClose()) != 1 {
		t.Errorf("OnClose = %v", s.OnClose())
	}
	if s.Path != filepath.Join(dir, ".wtmcp.yaml") {
		t.Errorf("Path = %q", s.Path)
	}
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".wtmcp.toml", `
test_command = "go test ./..."
lint_commands = []

[hooks]
on_create = ["make deps"]
`)

	s, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.TestCommand != "go test ./..." {
		t.Errorf("TestCommand = %q", s.TestCommand)
	}
	if !s.LintConfigured() || len(s.LintCommands) != 0 {
		t.Error("explicit empty lint_commands should count as configured")
	}
	if len(s.OnCreate()) != 1 || s.OnCreate()[0] != "make deps" {
		t.Errorf("OnCreate = %v", s.OnCreate())
	}
}

func TestLoadPrefersYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".wtmcp.yaml", "test_command: from-yaml\n")
	writeFile(t, dir, ".wtmcp.toml", "test_command = \"from-toml\"\n")

	s, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.TestCommand != "from-yaml" {
		t.Errorf("TestCommand = %q, want from-yaml", s.TestCommand)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	tests := []struct {
		file, content string
	}{
		{".wtmcp.yaml", "test_comand: typo\n"},
		{".wtmcp.toml", "test_comand = \"typo\"\n"},
		{".wtmcp.yml", "hooks: [not, a, map]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, tt.file, tt.content)
			if _, err := Load(dir); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}

func TestLoadEmptyYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".wtmcp.yaml", "")
	s, err := Load(dir)
	if err != nil {
		t.Fatalf("empty file should load: %v", err)
	}
	if s.Path == "" {
		t.Error("Path should be set")
	}
}
