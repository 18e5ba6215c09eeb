package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/KaramelBytes/insightloom/internal/ai"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect the model catalog and pricing",
	Example: `  insightloom models list --for openai
  insightloom models show
  insightloom models sync --file ./models.json --merge
  insightloom models fetch --url https://example.com/models.json --output models.json
  insightloom models local
  insightloom models recommend --for gemini --tier high-context`,
}

var modelsListProvider string

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog models for a provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		provider := modelsListProvider
		if provider == "" {
			if c, err := requireConfig(); err == nil {
				provider = c.Provider
			}
		}
		list := ai.ModelsFor(provider)
		if len(list) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No catalog entries for provider %q\n", provider)
			return nil
		}
		data := pterm.TableData{{"Model", "Context", "$/1K in", "$/1K out", "Default"}}
		def := ai.DefaultModel(provider)
		for _, m := range list {
			mark := ""
			if m.Name == def {
				mark = "✓"
			}
			data = append(data, []string{
				m.Name,
				strconv.Itoa(m.ContextTokens),
				strconv.FormatFloat(m.InputPerK, 'f', -1, 64),
				strconv.FormatFloat(m.OutputPerK, 'f', -1, 64),
				mark,
			})
		}
		s, err := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Srender()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), s)
		return nil
	},
}

var modelsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current model catalog as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat := ai.Catalog()
		keys := make([]string, 0, len(cat))
		for k := range cat {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		m := make(map[string]ai.ModelInfo, len(keys))
		for _, k := range keys {
			m[k] = cat[k]
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	},
}

var (
	syncPath  string
	syncMerge bool
)

var modelsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Load model catalog/pricing from a JSON file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if syncPath == "" {
			return fmt.Errorf("--file is required")
		}
		m, err := ai.LoadCatalogFromJSON(syncPath)
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
		applyCatalog(cmd, m, syncMerge, "file")
		return nil
	},
}

var (
	fetchURL    string
	fetchOutput string
	fetchMerge  bool
)

var modelsFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch model catalog/pricing JSON from a URL and apply it",
	RunE: func(cmd *cobra.Command, args []string) error {
		url := fetchURL
		if url == "" {
			if c, err := requireConfig(); err == nil {
				url = c.ModelsCatalogURL
			}
		}
		if url == "" {
			return fmt.Errorf("--url is required (or set models_catalog_url in the config)")
		}
		m, err := fetchCatalog(url)
		if err != nil {
			return err
		}
		if fetchOutput != "" {
			data, err := json.MarshalIndent(m, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal: %w", err)
			}
			if err := os.WriteFile(fetchOutput, data, 0o644); err != nil {
				return fmt.Errorf("write file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved catalog to %s\n", fetchOutput)
		}
		applyCatalog(cmd, m, fetchMerge, "fetched")
		return nil
	},
}

var modelsLocalCmd = &cobra.Command{
	Use:   "local",
	Short: "List models pulled into the local Ollama daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		names, err := ai.NewOllamaClient(c.OllamaHost, c.HTTPTimeout()).ListModels(cmd.Context())
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No models found at %s (try 'ollama pull %s')\n", c.OllamaHost, ai.DefaultModel(ai.ProviderOllama))
			return nil
		}
		for _, n := range names {
			fmt.Fprintln(cmd.OutOrStdout(), n)
		}
		return nil
	},
}

var (
	recommendTier     string
	recommendProvider string
)

var modelsRecommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Suggest a model for a provider and tier (cheap|balanced|high-context)",
	RunE: func(cmd *cobra.Command, args []string) error {
		provider := recommendProvider
		if provider == "" {
			if c, err := requireConfig(); err == nil {
				provider = c.Provider
			}
		}
		name, ok := ai.RecommendModel(provider, recommendTier)
		if !ok {
			return fmt.Errorf("no %s recommendation for provider %q", recommendTier, provider)
		}
		fmt.Fprintln(cmd.OutOrStdout(), name)
		return nil
	},
}

func applyCatalog(cmd *cobra.Command, m map[string]ai.ModelInfo, merge bool, from string) {
	if merge {
		ai.MergeCatalog(m)
		fmt.Fprintf(cmd.OutOrStdout(), "Merged %s catalog (%d entries) into in-memory catalog\n", from, len(m))
		return
	}
	ai.OverrideCatalog(m)
	fmt.Fprintf(cmd.OutOrStdout(), "Replaced in-memory catalog with %s catalog (%d entries)\n", from, len(m))
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsListCmd)
	modelsCmd.AddCommand(modelsShowCmd)
	modelsCmd.AddCommand(modelsSyncCmd)
	modelsCmd.AddCommand(modelsFetchCmd)
	modelsCmd.AddCommand(modelsLocalCmd)
	modelsCmd.AddCommand(modelsRecommendCmd)

	modelsListCmd.Flags().StringVar(&modelsListProvider, "for", "", "provider to list (default: configured provider)")

	modelsRecommendCmd.Flags().StringVar(&recommendTier, "tier", "balanced", "cheap | balanced | high-context")
	modelsRecommendCmd.Flags().StringVar(&recommendProvider, "for", "", "provider (default: configured provider)")

	modelsSyncCmd.Flags().StringVar(&syncPath, "file", "", "path to JSON catalog file")
	modelsSyncCmd.Flags().BoolVar(&syncMerge, "merge", false, "merge into existing catalog instead of replacing")

	modelsFetchCmd.Flags().StringVar(&fetchURL, "url", "", "URL to JSON catalog file (default: models_catalog_url)")
	modelsFetchCmd.Flags().StringVar(&fetchOutput, "output", "", "optional path to save the fetched JSON")
	modelsFetchCmd.Flags().BoolVar(&fetchMerge, "merge", false, "merge into existing catalog instead of replacing")
}
