package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/KaramelBytes/insightloom/internal/ai"
	"github.com/KaramelBytes/insightloom/internal/engine"
	"github.com/samber/lo"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Credential sources reported by config show.
const (
	SourceConfig   = "config"
	SourceEnv      = "env"
	SourceDotEnv   = ".env"
	SourceKeychain = "keychain"
)

// Global configuration structure. It is built once at startup and passed by
// pointer; nothing mutates it after the command starts running.
type Global struct {
	APIKey      string  `mapstructure:"api_key" yaml:"api_key,omitempty"`
	Provider    string  `mapstructure:"provider" yaml:"provider"`
	Model       string  `mapstructure:"model" yaml:"model"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`

	// Engine behavior
	EnableCache       bool   `mapstructure:"enable_cache" yaml:"enable_cache"`
	SaveCharts        bool   `mapstructure:"save_charts" yaml:"save_charts"`
	SaveCode          bool   `mapstructure:"save_code" yaml:"save_code"`
	Verbose           bool   `mapstructure:"verbose" yaml:"verbose"`
	ChartsDir         string `mapstructure:"charts_dir" yaml:"charts_dir"`
	SampleRows        int    `mapstructure:"sample_rows" yaml:"sample_rows"`
	PromptTokenBudget int    `mapstructure:"prompt_token_budget" yaml:"prompt_token_budget"`

	// Web surface
	Listen         string `mapstructure:"listen" yaml:"listen"`
	MaxUploadMB    int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
	SessionIdleMin int    `mapstructure:"session_idle_min" yaml:"session_idle_min"`

	// Models catalog auto-sync
	ModelsCatalogURL string `mapstructure:"models_catalog_url" yaml:"models_catalog_url,omitempty"`
	ModelsAutoSync   bool   `mapstructure:"models_auto_sync" yaml:"models_auto_sync"`
	ModelsMerge      bool   `mapstructure:"models_merge" yaml:"models_merge"`

	// HTTP; 0 leaves the client library default
	HTTPTimeoutSec int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`

	// Local runtimes (Ollama)
	OllamaHost string `mapstructure:"ollama_host" yaml:"ollama_host"`

	// CredentialSource tells where APIKey came from. Not persisted.
	CredentialSource string `mapstructure:"-" yaml:"-"`
}

// Dir returns ~/.insightloom.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".insightloom"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.insightloom/config.yaml, creating the directory if necessary.
// A credential that did not come from the config file is not written.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		path = filepath.Join(dir, "config.yaml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	out := *c
	if out.CredentialSource != "" && out.CredentialSource != SourceConfig {
		out.APIKey = ""
	}
	b, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, .env in the working directory, and
// defaults.
// Precedence: flags (applied by the caller) > env > config file > defaults.
// The credential falls back to the provider's env var and then to .env.
func Load(cfgFile string) (*Global, error) {
	return load(cfgFile, ".env")
}

func load(cfgFile, dotEnvPath string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("INSIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("provider", ai.ProviderGroq)
	v.SetDefault("model", "")
	v.SetDefault("max_tokens", 1024)
	v.SetDefault("temperature", 0.0)
	v.SetDefault("enable_cache", false)
	v.SetDefault("save_charts", false)
	v.SetDefault("save_code", true)
	v.SetDefault("verbose", true)
	v.SetDefault("charts_dir", "charts")
	v.SetDefault("sample_rows", 5)
	v.SetDefault("prompt_token_budget", 3000)
	v.SetDefault("listen", "127.0.0.1:8501")
	v.SetDefault("max_upload_mb", 200)
	v.SetDefault("session_idle_min", 30)
	v.SetDefault("models_auto_sync", false)
	v.SetDefault("models_merge", true)
	v.SetDefault("http_timeout_sec", 0)
	v.SetDefault("ollama_host", ai.DefaultOllamaHost)
	// api_key needs a default so AutomaticEnv sees it during Unmarshal
	v.SetDefault("api_key", "")
	v.SetDefault("models_catalog_url", "")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// optional read
		_ = v.ReadInConfig()
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Model == "" {
		c.Model = ai.DefaultModel(c.Provider)
	}

	switch {
	case c.APIKey != "":
		c.CredentialSource = SourceConfig
		if os.Getenv("INSIGHT_API_KEY") != "" {
			c.CredentialSource = SourceEnv
		}
	default:
		name := ai.APIKeyEnv(c.Provider)
		if name == "" {
			break
		}
		if val := strings.TrimSpace(os.Getenv(name)); val != "" {
			c.APIKey, c.CredentialSource = val, SourceEnv
			break
		}
		env := readDotEnv(dotEnvPath)
		for _, k := range []string{name, "INSIGHT_API_KEY"} {
			if val := env[k]; val != "" {
				c.APIKey, c.CredentialSource = val, SourceDotEnv
				break
			}
		}
	}
	return &c, nil
}

// readDotEnv parses a KEY=VALUE file. A missing or unreadable file yields an
// empty map.
func readDotEnv(path string) map[string]string {
	out := map[string]string{}
	if path == "" {
		return out
	}
	if _, err := os.Stat(path); err != nil {
		return out
	}
	dv := viper.New()
	dv.SetConfigFile(path)
	dv.SetConfigType("env")
	if err := dv.ReadInConfig(); err != nil {
		return out
	}
	for _, k := range dv.AllKeys() {
		out[strings.ToUpper(k)] = strings.TrimSpace(dv.GetString(k))
	}
	return out
}

// Validate checks values that would otherwise fail late.
func (c *Global) Validate() error {
	if !lo.Contains(ai.Providers(), c.Provider) {
		return fmt.Errorf("invalid provider: %q (use one of %s)", c.Provider, strings.Join(ai.Providers(), ", "))
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("max_upload_mb must be positive")
	}
	if c.SampleRows < 0 || c.PromptTokenBudget < 0 || c.MaxTokens < 0 || c.HTTPTimeoutSec < 0 {
		return fmt.Errorf("sample_rows, prompt_token_budget, max_tokens and http_timeout_sec must not be negative")
	}
	return nil
}

// HTTPTimeout converts HTTPTimeoutSec; 0 means no explicit timeout.
func (c *Global) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSec) * time.Second
}

// RuntimeConfig is what the ai registry needs to build this provider's client.
func (c *Global) RuntimeConfig() ai.RuntimeConfig {
	return ai.RuntimeConfig{
		HTTPTimeout: c.HTTPTimeout(),
		APIKey:      c.APIKey,
		Host:        c.OllamaHost,
	}
}

// EngineOptions maps the configuration onto the analysis engine.
func (c *Global) EngineOptions() engine.Options {
	return engine.Options{
		Model:             c.Model,
		Temperature:       c.Temperature,
		MaxTokens:         c.MaxTokens,
		EnableCache:       c.EnableCache,
		SaveCharts:        c.SaveCharts,
		SaveCode:          c.SaveCode,
		Verbose:           c.Verbose,
		ChartsDir:         c.ChartsDir,
		PromptTokenBudget: c.PromptTokenBudget,
		SampleRows:        c.SampleRows,
	}
}

// SessionIdle converts SessionIdleMin.
func (c *Global) SessionIdle() time.Duration {
	return time.Duration(c.SessionIdleMin) * time.Minute
}

// MaxUploadBytes converts MaxUploadMB.
func (c *Global) MaxUploadBytes() int64 { return int64(c.MaxUploadMB) << 20 }
