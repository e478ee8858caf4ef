package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultOutput is the report name used when no output path is configured.
const DefaultOutput = "network-printers-checked.csv"

// Backends understood by the query package.
const (
	BackendPowerShell = "powershell"
	BackendSSH        = "ssh"
	BackendSNMP       = "snmp"
	BackendMock       = "mock"
)

// Query modes for the PowerShell backend.
const (
	ModePaired = "paired"
	ModeTable  = "table"
)

// Error policies applied when a host query fails.
const (
	OnErrorAbort    = "abort"
	OnErrorSentinel = "sentinel"
)

// Config represents the audit configuration file.
type Config struct {
	Input       string           `json:"input" yaml:"input"`
	Output      string           `json:"output" yaml:"output"`
	Interactive bool             `json:"interactive" yaml:"interactive"`
	Backend     string           `json:"backend" yaml:"backend"`
	Query       QueryConfig      `json:"query" yaml:"query"`
	PowerShell  PowerShellConfig `json:"powershell" yaml:"powershell"`
	SSH         SSHConfig        `json:"ssh" yaml:"ssh"`
	SNMP        SNMPConfig       `json:"snmp" yaml:"snmp"`
	Denylist    DenylistConfig   `json:"denylist" yaml:"denylist"`
	History     HistoryConfig    `json:"history" yaml:"history"`
	Scheduler   SchedulerConfig  `json:"scheduler" yaml:"scheduler"`
	GLPI        GLPIConfig       `json:"glpi" yaml:"glpi"`
	Logging     LoggingConfig    `json:"logging" yaml:"logging"`
}

// QueryConfig controls how hosts are queried.
type QueryConfig struct {
	Mode        string `json:"mode" yaml:"mode"`
	TimeoutMS   int    `json:"timeout_ms" yaml:"timeout_ms"`
	MaxWorkers  int    `json:"max_workers" yaml:"max_workers"`
	OnError     string `json:"on_error" yaml:"on_error"`
	HeaderLines int    `json:"header_lines" yaml:"header_lines"`
}

// PowerShellConfig locates the shell used for Get-Printer.
type PowerShellConfig struct {
	Executable string `json:"executable" yaml:"executable"`
}

// SSHConfig stores credentials for lpstat over SSH.
type SSHConfig struct {
	User           string `json:"user" yaml:"user"`
	Port           int    `json:"port" yaml:"port"`
	KeyFile        string `json:"key_file" yaml:"key_file"`
	Password       string `json:"password" yaml:"password"`
	KnownHostsFile string `json:"known_hosts_file" yaml:"known_hosts_file"`
}

// SNMPConfig stores SNMP v2c settings.
type SNMPConfig struct {
	Community string `json:"community" yaml:"community"`
	Port      int    `json:"port" yaml:"port"`
	Retries   int    `json:"retries" yaml:"retries"`
}

// DenylistConfig lists printer names and ports treated as noise.
type DenylistConfig struct {
	Names        []string `json:"names" yaml:"names"`
	Ports        []string `json:"ports" yaml:"ports"`
	NamePatterns []string `json:"name_patterns" yaml:"name_patterns"`
	PortPatterns []string `json:"port_patterns" yaml:"port_patterns"`
}

// HistoryConfig enables the sqlite run history.
type HistoryConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"`
}

// SchedulerConfig configures repeated runs.
type SchedulerConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	Tick       string `json:"tick" yaml:"tick"`
	WatchInput bool   `json:"watch_input" yaml:"watch_input"`
}

// GLPIConfig stores API information.
type GLPIConfig struct {
	BaseURL   string           `json:"base_url" yaml:"base_url"`
	AppToken  string           `json:"app_token" yaml:"app_token"`
	UserToken string           `json:"user_token" yaml:"user_token"`
	OAuth     *GLPIOAuthConfig `json:"oauth" yaml:"oauth"`
}

// GLPIOAuthConfig stores OAuth2 credentials for the high-level API.
type GLPIOAuthConfig struct {
	ClientID     string `json:"client_id" yaml:"client_id"`
	ClientSecret string `json:"client_secret" yaml:"client_secret"`
	Username     string `json:"username" yaml:"username"`
	Password     string `json:"password" yaml:"password"`
	Scope        string `json:"scope" yaml:"scope"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Path   string `json:"path" yaml:"path"`
	Format string `json:"format" yaml:"format"`
}

// Default returns the built-in settings: sequential PowerShell queries and
// the stock virtual-printer denylists.
func Default() *Config {
	return &Config{
		Output:      DefaultOutput,
		Interactive: true,
		Backend:     BackendPowerShell,
		Query: QueryConfig{
			Mode:        ModePaired,
			MaxWorkers:  1,
			OnError:     OnErrorAbort,
			HeaderLines: 3,
		},
		PowerShell: PowerShellConfig{Executable: "powershell"},
		SSH:        SSHConfig{Port: 22},
		SNMP:       SNMPConfig{Community: "public", Port: 161, Retries: 1},
		Denylist: DenylistConfig{
			Names: []string{
				"",
				"Send To OneNote 2013",
				"Send to Microsoft",
				"Microsoft XPS Document Writer",
				"Microsoft Print to PDF",
				"Fax",
				"Adobe PDF",
			},
			Ports: []string{
				"",
				"nul:",
				"PORTPROMPT:",
				"SHRFAX:",
				`Documents"\"*.pdf`,
			},
		},
		History:   HistoryConfig{Path: "printaudit.db"},
		Scheduler: SchedulerConfig{Tick: "1h"},
		Logging:   LoggingConfig{Level: "info", Format: "console"},
	}
}

// Load reads INI, JSON or YAML configuration on top of the defaults. An empty
// path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if strings.EqualFold(filepath.Ext(path), ".ini") {
		if err := cfg.loadINI(path); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err == nil {
		return cfg, nil
	}
	cfg = Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks enumerated values and denylist patterns.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendPowerShell, BackendSSH, BackendSNMP, BackendMock:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	switch c.Query.Mode {
	case ModePaired, ModeTable:
	default:
		return fmt.Errorf("unknown query mode %q", c.Query.Mode)
	}
	switch c.Query.OnError {
	case OnErrorAbort, OnErrorSentinel:
	default:
		return fmt.Errorf("unknown on_error policy %q", c.Query.OnError)
	}
	if c.Query.MaxWorkers < 0 {
		return fmt.Errorf("max_workers must not be negative")
	}
	if c.Query.TimeoutMS < 0 {
		return fmt.Errorf("timeout_ms must not be negative")
	}
	if c.Query.HeaderLines < 0 {
		return fmt.Errorf("header_lines must not be negative")
	}
	if c.Backend == BackendSSH && c.SSH.User == "" {
		return fmt.Errorf("ssh backend requires ssh.user")
	}
	if err := checkPort("ssh.port", c.SSH.Port); err != nil {
		return err
	}
	if err := checkPort("snmp.port", c.SNMP.Port); err != nil {
		return err
	}
	for _, p := range append(append([]string{}, c.Denylist.NamePatterns...), c.Denylist.PortPatterns...) {
		if _, err := path.Match(p, ""); err != nil {
			return fmt.Errorf("denylist pattern %q: %w", p, err)
		}
	}
	return nil
}

// checkPort accepts a TCP/UDP port; 0 leaves the backend default.
func checkPort(key string, port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("%s %d out of range", key, port)
	}
	return nil
}

// OutputPath returns the configured report path or the default name.
func (c *Config) OutputPath() string {
	if strings.TrimSpace(c.Output) == "" {
		return DefaultOutput
	}
	return c.Output
}
