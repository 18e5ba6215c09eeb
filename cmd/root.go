package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/KaramelBytes/insightloom/internal/ai"
	"github.com/KaramelBytes/insightloom/internal/apperr"
	cfgpkg "github.com/KaramelBytes/insightloom/internal/config"
	"github.com/KaramelBytes/insightloom/internal/engine"
	"github.com/KaramelBytes/insightloom/internal/keychain"
	"github.com/KaramelBytes/insightloom/internal/logging"
	"github.com/KaramelBytes/insightloom/internal/render"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile  string
	debug    bool
	jsonLogs bool
	// Provider/HTTP flags (override config if set)
	flagProvider       string
	flagModel          string
	flagHTTPTimeoutSec int
	// Engine flags (override config if set)
	flagEnableCache bool
	flagSaveCharts  bool
	flagSaveCode    bool
	flagVerbose     bool

	// Loaded configuration
	cfg    *cfgpkg.Global
	logger = logging.Discard()

	// openKeychain is swapped by tests.
	openKeychain = keychain.Open
)

var rootCmd = &cobra.Command{
	Use:   "insightloom",
	Short: "InsightLoom: ask questions about CSV and Excel files in plain language",
	Long: `InsightLoom loads a CSV or Excel file and answers natural-language questions about it.
A language model plans the analysis; the plan runs locally on the table and comes back
as a table, a text answer, or a chart. Use "serve" for the browser UI or "ask" from the shell.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	cobra.OnInitialize(loadConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", errorText(err))
		os.Exit(1)
	}
}

// errorText prefers the user-facing message for classified failures.
func errorText(err error) string {
	if apperr.KindOf(err) != "" {
		return render.Message(err)
	}
	return logging.Mask(err.Error())
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is ~/.insightloom/config.yaml)")
	pf.BoolVar(&debug, "debug", false, "enable debug output (prompts and raw model replies)")
	pf.BoolVar(&jsonLogs, "json-logs", false, "emit logs as JSON")
	pf.StringVar(&flagProvider, "provider", "", "model provider: "+fmt.Sprint(ai.Providers())+" (overrides config)")
	pf.StringVar(&flagModel, "model", "", "model name (overrides config)")
	pf.IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "HTTP client timeout in seconds (overrides config)")
	pf.BoolVar(&flagEnableCache, "enable-cache", false, "reuse answers for repeated questions (overrides config)")
	pf.BoolVar(&flagSaveCharts, "save-charts", false, "write generated charts to the charts directory (overrides config)")
	pf.BoolVar(&flagSaveCode, "save-code", true, "show the analysis plan used by the model (overrides config)")
	pf.BoolVar(&flagVerbose, "verbose", true, "log engine activity (overrides config)")
}

func loadConfig() {
	logger = logging.New(logging.Options{Debug: debug, JSON: jsonLogs})
	if err := initConfig(); err != nil {
		// Non-fatal: allow running commands that don't need config
		logger.Warn("failed to load config", logger.Args("error", err.Error()))
	}
}

// initConfig loads cfg, applies flag overrides and resolves the credential.
func initConfig() error {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return err
	}
	cfg = c
	applyFlagOverrides(rootCmd.PersistentFlags().Changed)

	if cfg.APIKey == "" && ai.APIKeyEnv(cfg.Provider) != "" {
		if key, err := keychainKey(cfg.Provider); err == nil {
			cfg.APIKey, cfg.CredentialSource = key, cfgpkg.SourceKeychain
		} else if !errors.Is(err, keychain.ErrNotFound) {
			logger.Debug("credential store unavailable", logger.Args("error", err.Error()))
		}
	}

	// Optional: auto-sync model catalog at startup
	if cfg.ModelsAutoSync && cfg.ModelsCatalogURL != "" {
		if err := fetchAndApplyCatalog(cfg.ModelsCatalogURL, cfg.ModelsMerge); err != nil {
			logger.Warn("models auto-sync failed", logger.Args("error", err.Error()))
		}
	}
	return nil
}

// applyFlagOverrides copies changed persistent flags onto cfg.
func applyFlagOverrides(changed func(string) bool) {
	if changed("provider") && flagProvider != "" {
		cfg.Provider = strings.ToLower(strings.TrimSpace(flagProvider))
		if !changed("model") {
			cfg.Model = ai.DefaultModel(cfg.Provider)
		}
	}
	if changed("model") && flagModel != "" {
		cfg.Model = flagModel
	}
	if changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		cfg.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	if changed("enable-cache") {
		cfg.EnableCache = flagEnableCache
	}
	if changed("save-charts") {
		cfg.SaveCharts = flagSaveCharts
	}
	if changed("save-code") {
		cfg.SaveCode = flagSaveCode
	}
	if changed("verbose") {
		cfg.Verbose = flagVerbose
	}
}

func keychainKey(provider string) (string, error) {
	ks, err := openKeychain()
	if err != nil {
		return "", err
	}
	return ks.APIKey(provider)
}

// requireConfig returns the loaded config or loads it on demand (tests call
// commands without OnInitialize).
func requireConfig() (*cfgpkg.Global, error) {
	if cfg == nil {
		if err := initConfig(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// newEngine builds the provider runtime and the analysis engine from cfg.
func newEngine(ctx context.Context) (*engine.Engine, error) {
	c, err := requireConfig()
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.APIKey == "" && ai.APIKeyEnv(c.Provider) != "" {
		return nil, fmt.Errorf("no API key for %s: set %s, run 'insightloom config set-key %s', or set api_key in the config file",
			c.Provider, ai.APIKeyEnv(c.Provider), c.Provider)
	}
	rt, err := ai.GetRuntime(ctx, c.Provider, c.RuntimeConfig())
	if err != nil {
		return nil, err
	}
	logger.Debug("runtime ready", logger.Args(
		"provider", c.Provider,
		"model", c.Model,
		"credential", c.CredentialSource,
	))
	return engine.New(rt, c.EngineOptions(), engineLogger(c)), nil
}

// engineLogger silences engine activity unless verbose or debug is on.
func engineLogger(c *cfgpkg.Global) *pterm.Logger {
	if c.Verbose || debug {
		return logger
	}
	return logging.Discard()
}

// fetchAndApplyCatalog downloads a JSON catalog and applies it in-memory.
func fetchAndApplyCatalog(url string, merge bool) error {
	m, err := fetchCatalog(url)
	if err != nil {
		return err
	}
	if merge {
		ai.MergeCatalog(m)
	} else {
		ai.OverrideCatalog(m)
	}
	return nil
}

func fetchCatalog(url string) (map[string]ai.ModelInfo, error) {
	client := &http.Client{Timeout: 20 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("fetch: unexpected status %s: %s", resp.Status, string(b))
	}
	var m map[string]ai.ModelInfo
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return m, nil
}
