package cmd

import (
	"bufio"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/KaramelBytes/insightloom/internal/ai"
	cfgpkg "github.com/KaramelBytes/insightloom/internal/config"
	"github.com/KaramelBytes/insightloom/internal/logging"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set InsightLoom configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		source := c.CredentialSource
		if source == "" {
			source = "none"
		}
		fmt.Fprintf(w, "api_key: %s (source: %s)\n", logging.MaskKey(c.APIKey), source)
		fmt.Fprintf(w, "provider: %s\n", c.Provider)
		fmt.Fprintf(w, "model: %s\n", c.Model)
		fmt.Fprintf(w, "max_tokens: %d\n", c.MaxTokens)
		fmt.Fprintf(w, "temperature: %.3f\n", c.Temperature)
		fmt.Fprintf(w, "enable_cache: %t\n", c.EnableCache)
		fmt.Fprintf(w, "save_charts: %t\n", c.SaveCharts)
		fmt.Fprintf(w, "save_code: %t\n", c.SaveCode)
		fmt.Fprintf(w, "verbose: %t\n", c.Verbose)
		fmt.Fprintf(w, "charts_dir: %s\n", c.ChartsDir)
		fmt.Fprintf(w, "sample_rows: %d\n", c.SampleRows)
		fmt.Fprintf(w, "prompt_token_budget: %d\n", c.PromptTokenBudget)
		fmt.Fprintf(w, "listen: %s\n", c.Listen)
		fmt.Fprintf(w, "max_upload_mb: %d\n", c.MaxUploadMB)
		fmt.Fprintf(w, "session_idle_min: %d\n", c.SessionIdleMin)
		fmt.Fprintf(w, "http_timeout_sec: %d\n", c.HTTPTimeoutSec)
		if c.Provider == ai.ProviderOllama {
			fmt.Fprintf(w, "ollama_host: %s\n", c.OllamaHost)
		}
		if c.ModelsCatalogURL != "" {
			fmt.Fprintf(w, "models_catalog_url: %s\n", c.ModelsCatalogURL)
			fmt.Fprintf(w, "models_auto_sync: %t\n", c.ModelsAutoSync)
			fmt.Fprintf(w, "models_merge: %t\n", c.ModelsMerge)
		}
		return nil
	},
}

type setter func(c *cfgpkg.Global, val string) error

func intSetter(dst func(c *cfgpkg.Global) *int) setter {
	return func(c *cfgpkg.Global, val string) error {
		i, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid int: %w", err)
		}
		*dst(c) = i
		return nil
	}
}

func boolSetter(dst func(c *cfgpkg.Global) *bool) setter {
	return func(c *cfgpkg.Global, val string) error {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid bool: %w", err)
		}
		*dst(c) = b
		return nil
	}
}

func stringSetter(dst func(c *cfgpkg.Global) *string) setter {
	return func(c *cfgpkg.Global, val string) error {
		*dst(c) = strings.TrimSpace(val)
		return nil
	}
}

var configSetters = map[string]setter{
	"api_key": func(c *cfgpkg.Global, val string) error {
		c.APIKey = strings.TrimSpace(val)
		c.CredentialSource = cfgpkg.SourceConfig
		return nil
	},
	"provider": func(c *cfgpkg.Global, val string) error {
		c.Provider = strings.ToLower(strings.TrimSpace(val))
		return nil
	},
	"model": stringSetter(func(c *cfgpkg.Global) *string { return &c.Model }),
	"temperature": func(c *cfgpkg.Global, val string) error {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid float: %w", err)
		}
		c.Temperature = f
		return nil
	},
	"max_tokens":          intSetter(func(c *cfgpkg.Global) *int { return &c.MaxTokens }),
	"enable_cache":        boolSetter(func(c *cfgpkg.Global) *bool { return &c.EnableCache }),
	"save_charts":         boolSetter(func(c *cfgpkg.Global) *bool { return &c.SaveCharts }),
	"save_code":           boolSetter(func(c *cfgpkg.Global) *bool { return &c.SaveCode }),
	"verbose":             boolSetter(func(c *cfgpkg.Global) *bool { return &c.Verbose }),
	"charts_dir":          stringSetter(func(c *cfgpkg.Global) *string { return &c.ChartsDir }),
	"sample_rows":         intSetter(func(c *cfgpkg.Global) *int { return &c.SampleRows }),
	"prompt_token_budget": intSetter(func(c *cfgpkg.Global) *int { return &c.PromptTokenBudget }),
	"listen":              stringSetter(func(c *cfgpkg.Global) *string { return &c.Listen }),
	"max_upload_mb":       intSetter(func(c *cfgpkg.Global) *int { return &c.MaxUploadMB }),
	"session_idle_min":    intSetter(func(c *cfgpkg.Global) *int { return &c.SessionIdleMin }),
	"http_timeout_sec":    intSetter(func(c *cfgpkg.Global) *int { return &c.HTTPTimeoutSec }),
	"ollama_host":         stringSetter(func(c *cfgpkg.Global) *string { return &c.OllamaHost }),
	"models_catalog_url":  stringSetter(func(c *cfgpkg.Global) *string { return &c.ModelsCatalogURL }),
	"models_auto_sync":    boolSetter(func(c *cfgpkg.Global) *bool { return &c.ModelsAutoSync }),
	"models_merge":        boolSetter(func(c *cfgpkg.Global) *bool { return &c.ModelsMerge }),
}

func configKeys() []string {
	keys := make([]string, 0, len(configSetters))
	for k := range configSetters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		set, ok := configSetters[key]
		if !ok {
			return fmt.Errorf("unknown key: %s (known: %s)", key, strings.Join(configKeys(), ", "))
		}
		c, err := requireConfig()
		if err != nil {
			return err
		}
		next := *c
		if err := set(&next, val); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if err := next.Validate(); err != nil {
			return err
		}
		if err := cfgpkg.Save(&next, cfgFile); err != nil {
			return err
		}
		*c = next
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

var configSetKeyCmd = &cobra.Command{
	Use:   "set-key <provider> [key]",
	Short: "Store a provider API key in the OS credential store",
	Long: `Store a provider API key in the OS keychain instead of the config file.
Without a key argument the key is read from the first line of stdin.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		provider := strings.ToLower(strings.TrimSpace(args[0]))
		if ai.APIKeyEnv(provider) == "" {
			return fmt.Errorf("provider %q does not use an API key", provider)
		}
		var key string
		if len(args) == 2 {
			key = args[1]
		} else {
			sc := bufio.NewScanner(cmd.InOrStdin())
			if sc.Scan() {
				key = sc.Text()
			}
		}
		ks, err := openKeychain()
		if err != nil {
			return err
		}
		if err := ks.SetAPIKey(provider, key); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Stored %s API key in the credential store\n", provider)
		return nil
	},
}

var configDeleteKeyCmd = &cobra.Command{
	Use:   "delete-key <provider>",
	Short: "Remove a provider API key from the OS credential store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ks, err := openKeychain()
		if err != nil {
			return err
		}
		provider := strings.ToLower(strings.TrimSpace(args[0]))
		if err := ks.DeleteAPIKey(provider); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed %s API key\n", provider)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configSetKeyCmd)
	configCmd.AddCommand(configDeleteKeyCmd)
}
