// Package setup registers the stdio MCP server with desktop MCP clients.
package setup

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/gdmt-engine/internal/config"
)

// ServerName is the key the server is registered under.
const ServerName = "gdmt-engine"

// dataDirEnv is read by config.LoadLiteConfig.
const dataDirEnv = "GDMT_DATA_DIR"

// ClientConfig is the mcpServers document read by Claude Desktop and compatible clients.
// Unknown top-level keys are preserved on save.
type ClientConfig struct {
	MCPServers map[string]ServerEntry `json:"mcpServers"`
	extra      map[string]json.RawMessage
}

// ServerEntry launches one MCP server.
type ServerEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Options controls Register.
type Options struct {
	ConfigPath string // empty selects DefaultClientConfigPath
	BinaryPath string // empty searches PATH and the usual install locations
	DataDir    string // empty leaves the server on its default data directory
}

// Status describes the registration found in a client config.
type Status struct {
	ConfigPath   string   `json:"configPath"`
	Registered   bool     `json:"registered"`
	BinaryPath   string   `json:"binaryPath,omitempty"`
	DataDir      string   `json:"dataDir"`
	FeedbackData bool     `json:"feedbackData"`
	Issues       []string `json:"issues,omitempty"`
}

// DefaultClientConfigPath returns the per-OS location of claude_desktop_config.json.
func DefaultClientConfigPath() (string, error) {
	var dir string
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, "Library", "Application Support", "Claude")
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			dir = filepath.Join(xdg, "Claude")
			break
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, ".config", "Claude")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", errors.New("APPDATA environment variable not set")
		}
		dir = filepath.Join(appData, "Claude")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
	return filepath.Join(dir, "claude_desktop_config.json"), nil
}

// LoadClientConfig reads a client config. A missing file yields an empty config.
func LoadClientConfig(path string) (*ClientConfig, error) {
	cfg := &ClientConfig{MCPServers: map[string]ServerEntry{}, extra: map[string]json.RawMessage{}}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read client config: %w", err)
	}

	if err := json.Unmarshal(data, &cfg.extra); err != nil {
		return nil, fmt.Errorf("failed to parse client config: %w", err)
	}
	if raw, ok := cfg.extra["mcpServers"]; ok {
		if err := json.Unmarshal(raw, &cfg.MCPServers); err != nil {
			return nil, fmt.Errorf("failed to parse mcpServers: %w", err)
		}
		delete(cfg.extra, "mcpServers")
	}
	if cfg.MCPServers == nil {
		cfg.MCPServers = map[string]ServerEntry{}
	}
	return cfg, nil
}

// Save writes the config, creating its directory.
func (c *ClientConfig) Save(path string) error {
	doc := make(map[string]interface{}, len(c.extra)+1)
	for k, v := range c.extra {
		doc[k] = v
	}
	doc["mcpServers"] = c.MCPServers

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal client config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write client config: %w", err)
	}
	return nil
}

// Register adds or replaces the server entry and returns the config path written.
func Register(opts Options) (string, error) {
	path, err := resolveConfigPath(opts.ConfigPath)
	if err != nil {
		return "", err
	}

	cfg, err := LoadClientConfig(path)
	if err != nil {
		return "", err
	}

	binary := opts.BinaryPath
	if binary == "" {
		if binary, err = FindBinary(); err != nil {
			return "", err
		}
	}

	entry := ServerEntry{Command: binary}
	if opts.DataDir != "" {
		entry.Env = map[string]string{dataDirEnv: opts.DataDir}
	}
	cfg.MCPServers[ServerName] = entry

	if err := cfg.Save(path); err != nil {
		return "", err
	}
	return path, nil
}

// Unregister removes the server entry. It reports whether an entry existed.
func Unregister(configPath string) (bool, error) {
	path, err := resolveConfigPath(configPath)
	if err != nil {
		return false, err
	}

	cfg, err := LoadClientConfig(path)
	if err != nil {
		return false, err
	}
	if _, ok := cfg.MCPServers[ServerName]; !ok {
		return false, nil
	}
	delete(cfg.MCPServers, ServerName)
	return true, cfg.Save(path)
}

// GetStatus inspects the registration and the data directory it points at.
func GetStatus(configPath string) (*Status, error) {
	path, err := resolveConfigPath(configPath)
	if err != nil {
		return nil, err
	}

	cfg, err := LoadClientConfig(path)
	if err != nil {
		return nil, err
	}

	lite := config.DefaultLiteConfig()
	status := &Status{ConfigPath: path, DataDir: lite.DataDir}

	entry, ok := cfg.MCPServers[ServerName]
	if !ok {
		status.Issues = append(status.Issues, fmt.Sprintf("%s is not registered in %s", ServerName, path))
	} else {
		status.Registered = true
		status.BinaryPath = entry.Command
		if dir := entry.Env[dataDirEnv]; dir != "" {
			status.DataDir = dir
		}
		if info, err := os.Stat(entry.Command); err != nil {
			status.Issues = append(status.Issues, fmt.Sprintf("server binary not found: %s", entry.Command))
		} else if info.Mode()&0111 == 0 {
			status.Issues = append(status.Issues, fmt.Sprintf("server binary is not executable: %s", entry.Command))
		}
	}

	lite.DataDir = status.DataDir
	if _, err := os.Stat(lite.FeedbackDBPath()); err == nil {
		status.FeedbackData = true
	}
	return status, nil
}

// FindBinary locates the mcp-server binary on PATH or in the usual install locations.
func FindBinary() (string, error) {
	const name = "mcp-server"

	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	candidates := []string{
		filepath.Join(".", name),
		filepath.Join(".", "build", name),
		"/usr/local/bin/" + name,
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".local", "bin", name))
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			if abs, err := filepath.Abs(candidate); err == nil {
				return abs, nil
			}
			return candidate, nil
		}
	}
	return "", fmt.Errorf("binary %q not found on PATH or in common locations", name)
}

func resolveConfigPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return DefaultClientConfigPath()
}
