// Package project reads per-repository settings from the main repository
// root. Settings live in .wtmcp.yaml, .wtmcp.yml or .wtmcp.toml; the first
// one found wins. A repository without a settings file gets zero Settings.
package project

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// FileNames are probed in order.
var FileNames = []string{".wtmcp.yaml", ".wtmcp.yml", ".wtmcp.toml"}

// Settings configures how worktrees of one repository are created, checked
// and closed.
type Settings struct {
	// BaseBranch overrides the branch new worktrees start from.
	BaseBranch string `yaml:"base_branch" toml:"base_branch"`
	// TestCommand replaces test discovery. "none" disables tests.
	TestCommand string `yaml:"test_command" toml:"test_command"`
	// LintCommands replace lint discovery. An explicit empty list disables lint.
	LintCommands []string `yaml:"lint_commands" toml:"lint_commands"`
	Hooks        *Hooks   `yaml:"hooks" toml:"hooks"`

	// Path is the file the settings were read from, empty when none.
	Path string `yaml:"-" toml:"-"`
	// lintSet records whether lint_commands appeared in the file.
	lintSet bool
}

// Hooks contains lifecycle hook commands, run with sh -c inside the worktree.
type Hooks struct {
	OnCreate []string `yaml:"on_create" toml:"on_create"`
	OnClose  []string `yaml:"on_close" toml:"on_close"`
}

// LintConfigured reports whether the file set lint_commands, even to an
// empty list.
func (s *Settings) LintConfigured() bool {
	return s.lintSet
}

// OnCreate returns the on_create hooks.
func (s *Settings) OnCreate() []string {
	if s.Hooks == nil {
		return nil
	}
	return s.Hooks.OnCreate
}

// OnClose returns the on_close hooks.
func (s *Settings) OnClose() []string {
	if s.Hooks == nil {
		return nil
	}
	return s.Hooks.OnClose
}

// Load reads the settings file from root.
func Load(root string) (*Settings, error) {
	for _, name := range FileNames {
		path := filepath.Join(root, name)
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		s, err := parse(name, data)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		s.Path = path
		return s, nil
	}
	return &Settings{}, nil
}

func parse(name string, data []byte) (*Settings, error) {
	s := &Settings{}
	probe := map[string]any{}

	if filepath.Ext(name) == ".toml" {
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(s); err != nil {
			return nil, err
		}
		if err := toml.Unmarshal(data, &probe); err != nil {
			return nil, err
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(s); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &probe); err != nil {
			return nil, err
		}
	}

	_, s.lintSet = probe["lint_commands"]
	return s, nil
}
