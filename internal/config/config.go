// Package config loads process-wide settings once at startup.
//
// Values come from built-in defaults, an optional commented-JSON file at
// ~/.config/wtmcp/config.json, and WORKTREE_MCP_* environment variables, in
// increasing order of precedence.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/tidwall/jsonc"
)

// EnvPrefix is prepended to every key when reading the environment,
// e.g. WORKTREE_MCP_CLAUDE_SKIP_PERMISSIONS.
const EnvPrefix = "WORKTREE_MCP"

// Open locations for new tabs.
const (
	LocationNewTab       = "new_tab"
	LocationNewWindow    = "new_window"
	LocationNewPaneRight = "new_pane_right"
	LocationNewPaneBelow = "new_pane_below"
)

// Terminal backends.
const (
	TerminalAuto    = "auto"
	TerminalTmux    = "tmux"
	TerminalWezTerm = "wezterm"
)

const (
	keySkipPermissions = "claude_skip_permissions"
	keySessionSharing  = "claude_enable_session_sharing"
	keySessionID       = "claude_session_id"
	keyAdditionalArgs  = "claude_additional_args"
	keyMCPConfigPath   = "claude_mcp_config_path"
	keyClaudeCommand   = "claude_command"
	keyServerName      = "server_name"
	keyTerminal        = "terminal"
	keyOpenLocation    = "open_location"
	keySwitchBack      = "switch_back"
	keyCommandTimeout  = "command_timeout"
	keyTestTimeout     = "test_timeout"
	keyLintTimeout     = "lint_timeout"
	keyPushAfterMerge  = "push_after_merge"
	keyNotify          = "notify"
	keyLogPath         = "log_path"
	keyDebug           = "debug"
)

// Config holds the effective settings.
type Config struct {
	// Delegated session launch options. These only affect how create
	// starts an assistant session in a new tab.
	SkipPermissions      bool   `json:"claude_skip_permissions"`
	EnableSessionSharing bool   `json:"claude_enable_session_sharing"`
	SessionID            string `json:"claude_session_id,omitempty"`
	AdditionalArgs       string `json:"claude_additional_args,omitempty"`
	MCPConfigPath        string `json:"claude_mcp_config_path,omitempty"`
	ClaudeCommand        string `json:"claude_command"`
	ServerName           string `json:"server_name"`

	// Terminal selects the backend: auto, tmux or wezterm.
	Terminal     string `json:"terminal"`
	OpenLocation string `json:"open_location"`
	SwitchBack   bool   `json:"switch_back"`

	CommandTimeout time.Duration `json:"command_timeout"`
	TestTimeout    time.Duration `json:"test_timeout"`
	LintTimeout    time.Duration `json:"lint_timeout"`

	PushAfterMerge bool `json:"push_after_merge"`
	Notify         bool `json:"notify"`

	LogPath string `json:"log_path,omitempty"`
	Debug   bool   `json:"debug"`

	configDir string
}

// Load reads configuration from the default directory.
func Load() (*Config, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, err
	}
	return LoadFromDir(configDir)
}

// LoadFromDir reads configuration using configDir for the optional file.
// A missing directory or file is not an error.
func LoadFromDir(configDir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	configPath := filepath.Join(configDir, "config.json")
	data, err := os.ReadFile(configPath)
	if err == nil {
		v.SetConfigType("json")
		if err := v.ReadConfig(bytes.NewReader(jsonc.ToJSON(data))); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", configPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	cfg := &Config{
		SkipPermissions:      v.GetBool(keySkipPermissions),
		EnableSessionSharing: v.GetBool(keySessionSharing),
		SessionID:            strings.TrimSpace(v.GetString(keySessionID)),
		AdditionalArgs:       strings.TrimSpace(v.GetString(keyAdditionalArgs)),
		MCPConfigPath:        expandPath(v.GetString(keyMCPConfigPath)),
		ClaudeCommand:        v.GetString(keyClaudeCommand),
		ServerName:           v.GetString(keyServerName),
		Terminal:             strings.ToLower(v.GetString(keyTerminal)),
		OpenLocation:         v.GetString(keyOpenLocation),
		SwitchBack:           v.GetBool(keySwitchBack),
		CommandTimeout:       v.GetDuration(keyCommandTimeout),
		TestTimeout:          v.GetDuration(keyTestTimeout),
		LintTimeout:          v.GetDuration(keyLintTimeout),
		PushAfterMerge:       v.GetBool(keyPushAfterMerge),
		Notify:               v.GetBool(keyNotify),
		LogPath:              expandPath(v.GetString(keyLogPath)),
		Debug:                v.GetBool(keyDebug),
		configDir:            configDir,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(keySkipPermissions, false)
	v.SetDefault(keySessionSharing, false)
	v.SetDefault(keySessionID, "")
	v.SetDefault(keyAdditionalArgs, "")
	v.SetDefault(keyMCPConfigPath, "")
	v.SetDefault(keyClaudeCommand, "claude")
	v.SetDefault(keyServerName, "worktree")
	v.SetDefault(keyTerminal, TerminalAuto)
	v.SetDefault(keyOpenLocation, LocationNewTab)
	v.SetDefault(keySwitchBack, true)
	v.SetDefault(keyCommandTimeout, "30s")
	v.SetDefault(keyTestTimeout, "5m")
	v.SetDefault(keyLintTimeout, "1m")
	v.SetDefault(keyPushAfterMerge, false)
	v.SetDefault(keyNotify, true)
	v.SetDefault(keyLogPath, "")
	v.SetDefault(keyDebug, false)
}

// Validate rejects values no component can act on.
func (c *Config) Validate() error {
	switch c.Terminal {
	case TerminalAuto, TerminalTmux, TerminalWezTerm:
	default:
		return fmt.Errorf("invalid terminal %q: must be auto, tmux or wezterm", c.Terminal)
	}
	if !ValidLocation(c.OpenLocation) {
		return fmt.Errorf("invalid open_location %q", c.OpenLocation)
	}
	if c.CommandTimeout <= 0 {
		return fmt.Errorf("command_timeout must be positive, got %s", c.CommandTimeout)
	}
	if c.TestTimeout <= 0 || c.LintTimeout <= 0 {
		return fmt.Errorf("test_timeout and lint_timeout must be positive")
	}
	if c.ClaudeCommand == "" {
		return fmt.Errorf("claude_command must not be empty")
	}
	return nil
}

// ValidLocation reports whether loc names a supported open location.
func ValidLocation(loc string) bool {
	switch loc {
	case LocationNewTab, LocationNewWindow, LocationNewPaneRight, LocationNewPaneBelow:
		return true
	}
	return false
}

// ConfigDir returns the directory the optional config file is read from.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// ConfigPath returns the path of the optional config file.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.configDir, "config.json")
}

// ConfigExists returns true if the config file exists.
func (c *Config) ConfigExists() bool {
	_, err := os.Stat(c.ConfigPath())
	return err == nil
}

func getConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "wtmcp"), nil
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
