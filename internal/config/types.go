package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/jbweber/vmchat/internal/command"
)

// Provider names accepted by llm.provider.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// DefaultOllamaURL is used when the ollama provider has no base URL.
const DefaultOllamaURL = "http://localhost:11434"

const defaultSystemPrompt = `You are an assistant that manages Multipass virtual machines.
When the user asks for a VM operation, answer with exactly one multipass command
in a fenced code block, for example:

` + "```bash\nmultipass launch 22.04 --name web1 --memory 2G --disk 10G --cpus 2\n```" + `

Supported operations are launch, start, stop, delete, purge, recover, list and info.
Use only letters, digits, hyphens and underscores in VM names.`

// Config is the complete service configuration.
type Config struct {
	Multipass MultipassConfig  `yaml:"multipass"`
	Executor  ExecutorConfig   `yaml:"executor"`
	LLM       LLMConfig        `yaml:"llm"`
	Server    ServerConfig     `yaml:"server"`
	Chat      ChatConfig       `yaml:"chat"`
	Log       LogConfig        `yaml:"log"`
	CloudInit *CloudInitConfig `yaml:"cloud_init,omitempty"`
}

// MultipassConfig locates the control binary.
type MultipassConfig struct {
	Binary         string `yaml:"binary" env:"MULTIPASS_BIN"`
	DefaultRelease string `yaml:"default_release" env:"MULTIPASS_DEFAULT_RELEASE"`
	LibvirtSocket  string `yaml:"libvirt_socket,omitempty" env:"LIBVIRT_SOCKET"` // Optional hypervisor probe for health checks
}

// ExecutorConfig bounds subprocess execution.
type ExecutorConfig struct {
	Workers          int      `yaml:"workers" env:"EXEC_WORKERS"`
	ControlTimeout   Duration `yaml:"control_timeout" env:"EXEC_TIMEOUT"`
	InfoTimeout      Duration `yaml:"info_timeout" env:"INFO_TIMEOUT"`
	CreateTimeout    Duration `yaml:"create_timeout" env:"CREATE_TIMEOUT"`
	SettleDelay      Duration `yaml:"settle_delay" env:"SETTLE_DELAY"`
	CleanupOnFailure bool     `yaml:"cleanup_on_failure" env:"CLEANUP_ON_FAILURE"`
}

// LLMConfig selects the chat model.
type LLMConfig struct {
	Provider       string   `yaml:"provider" env:"LLM_PROVIDER"`
	BaseURL        string   `yaml:"base_url,omitempty" env:"OLLAMA_URL"` // Empty means the provider's default endpoint
	Model          string   `yaml:"model" env:"OLLAMA_MODEL"`
	APIKey         string   `yaml:"api_key,omitempty" env:"LLM_API_KEY"`
	RequestTimeout Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
	MaxTokens      int      `yaml:"max_tokens" env:"LLM_MAX_TOKENS"`
	SystemPrompt   string   `yaml:"system_prompt"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host            string   `yaml:"host" env:"SERVER_HOST"`
	Port            int      `yaml:"port" env:"PROXY_SERVER_PORT"`
	CORSOrigins     []string `yaml:"cors_origins" env:"CORS_ORIGINS" envSeparator:","`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// ChatConfig configures chat sessions.
type ChatConfig struct {
	HistoryLimit int `yaml:"history_limit" env:"HISTORY_LIMIT"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// CloudInitConfig contains cloud-init configuration applied to every launch.
// Follows cloud-init spec: https://cloudinit.readthedocs.io/
// Note: Hostname is derived from FQDN (everything before the first dot).
type CloudInitConfig struct {
	FQDN             string   `yaml:"fqdn,omitempty"`
	SSHKeys          []string `yaml:"ssh_keys,omitempty"`
	RootPasswordHash string   `yaml:"root_password_hash,omitempty"`
	SSHPwAuth        *bool    `yaml:"ssh_pwauth,omitempty"` // Pointer to distinguish unset vs false
	Packages         []string `yaml:"packages,omitempty"`
	Dir              string   `yaml:"dir,omitempty"` // Where user-data files are written
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Multipass: MultipassConfig{
			Binary:         command.Binary,
			DefaultRelease: command.DefaultRelease,
		},
		Executor: ExecutorConfig{
			Workers:        3,
			ControlTimeout: Duration(120 * time.Second),
			InfoTimeout:    Duration(30 * time.Second),
			CreateTimeout:  Duration(600 * time.Second),
			SettleDelay:    Duration(3 * time.Second),
		},
		LLM: LLMConfig{
			Provider:       ProviderOllama,
			Model:          "mistral-faiss-rag:latest",
			RequestTimeout: Duration(120 * time.Second),
			MaxTokens:      1024,
			SystemPrompt:   defaultSystemPrompt,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            5001,
			CORSOrigins:     []string{"*"},
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Chat: ChatConfig{HistoryLimit: 10},
		Log:  LogConfig{Level: "info", Format: "text"},
	}
}

// Normalize sanitizes user input to consistent formats.
// This is called automatically by Load before validation.
func (c *Config) Normalize() {
	c.Multipass.Binary = strings.TrimSpace(c.Multipass.Binary)
	if c.Multipass.Binary == "" {
		c.Multipass.Binary = command.Binary
	}
	c.Multipass.DefaultRelease = strings.ToLower(strings.TrimSpace(c.Multipass.DefaultRelease))
	if c.Multipass.DefaultRelease == "" {
		c.Multipass.DefaultRelease = command.DefaultRelease
	}
	if rel, ok := command.CanonicalRelease(c.Multipass.DefaultRelease); ok {
		c.Multipass.DefaultRelease = rel
	}

	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	c.LLM.BaseURL = strings.TrimRight(strings.TrimSpace(c.LLM.BaseURL), "/")
	if c.LLM.BaseURL == "" && c.LLM.Provider == ProviderOllama {
		c.LLM.BaseURL = DefaultOllamaURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.SystemPrompt == "" {
		c.LLM.SystemPrompt = defaultSystemPrompt
	}

	c.Server.Host = strings.TrimSpace(c.Server.Host)
	origins := c.Server.CORSOrigins[:0]
	for _, o := range c.Server.CORSOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.Server.CORSOrigins = origins
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"*"}
	}

	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))

	// Normalize cloud-init FQDN to lowercase (hostname will be derived from this)
	if c.CloudInit != nil {
		c.CloudInit.FQDN = strings.ToLower(strings.TrimSpace(c.CloudInit.FQDN))
		if c.CloudInit.Dir == "" {
			c.CloudInit.Dir = filepath.Join(os.TempDir(), "vmchat")
		}
	}
}

// Validate checks the configuration for errors.
// Does not check that multipass or the LLM are reachable - only config structure.
func (c *Config) Validate() error {
	if _, ok := command.CanonicalRelease(c.Multipass.DefaultRelease); !ok {
		return fmt.Errorf("multipass.default_release %q is not a recognized release", c.Multipass.DefaultRelease)
	}

	if c.Executor.Workers <= 0 {
		return fmt.Errorf("executor.workers must be > 0, got %d", c.Executor.Workers)
	}
	timeouts := []struct {
		name  string
		value Duration
	}{
		{"executor.control_timeout", c.Executor.ControlTimeout},
		{"executor.info_timeout", c.Executor.InfoTimeout},
		{"executor.create_timeout", c.Executor.CreateTimeout},
		{"llm.request_timeout", c.LLM.RequestTimeout},
		{"server.shutdown_timeout", c.Server.ShutdownTimeout},
	}
	for _, to := range timeouts {
		if to.value <= 0 {
			return fmt.Errorf("%s must be > 0, got %s", to.name, to.value)
		}
	}
	if c.Executor.SettleDelay < 0 {
		return fmt.Errorf("executor.settle_delay must not be negative, got %s", c.Executor.SettleDelay)
	}

	switch c.LLM.Provider {
	case ProviderOllama, ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("llm.provider must be one of %s, %s or %s, got %q",
			ProviderOllama, ProviderOpenAI, ProviderAnthropic, c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm.max_tokens must be > 0, got %d", c.LLM.MaxTokens)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Chat.HistoryLimit < 2 {
		return fmt.Errorf("chat.history_limit must be >= 2, got %d", c.Chat.HistoryLimit)
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if !slices.Contains([]string{"text", "json"}, c.Log.Format) {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	// Validate cloud-init config if present
	if c.CloudInit != nil {
		if err := c.CloudInit.Validate(); err != nil {
			return fmt.Errorf("cloud_init: %w", err)
		}
	}

	return nil
}

// Validate checks cloud-init configuration.
func (c *CloudInitConfig) Validate() error {
	// Validate FQDN format if provided
	if c.FQDN != "" {
		// RFC 952/1123: alphanumeric and hyphens, labels separated by dots
		// Each label: 1-63 chars, start/end with alphanumeric
		fqdnPattern := `^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?(\.[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?)+$`
		matched, err := regexp.MatchString(fqdnPattern, c.FQDN)
		if err != nil {
			return fmt.Errorf("fqdn validation error: %w", err)
		}
		if !matched {
			return fmt.Errorf("fqdn must be a valid hostname with domain (e.g., host.example.com), got %q", c.FQDN)
		}
	}

	for i, key := range c.SSHKeys {
		if _, _, _, _, err := ssh.ParseAuthorizedKey([]byte(key)); err != nil {
			return fmt.Errorf("ssh_keys[%d] is not a valid SSH public key: %w", i, err)
		}
	}

	if c.RootPasswordHash != "" {
		if len(c.RootPasswordHash) < 10 || c.RootPasswordHash[0] != '$' {
			return fmt.Errorf("root_password_hash must be a valid crypt hash (should start with $)")
		}
	}

	for i, pkg := range c.Packages {
		if strings.TrimSpace(pkg) == "" || strings.ContainsAny(pkg, " \t\n") {
			return fmt.Errorf("packages[%d] must be a single package name, got %q", i, pkg)
		}
	}

	return nil
}

// ParseLevel maps a log level name onto slog.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown level %q (want debug, info, warn or error)", s)
	}
}

// Addr returns the HTTP listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
