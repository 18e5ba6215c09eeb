package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/KaramelBytes/insightloom/internal/analysis"
	"github.com/KaramelBytes/insightloom/internal/parser"
	"github.com/KaramelBytes/insightloom/internal/utils"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var (
	descOutputPath string
	descOutputDir  string
	descSampleRows int
	descMaxRows    int
	descCorr       bool
	descOutliers   bool
	descOutlierThr float64
	descSheetName  string
	descSheetIndex int
	descQuiet      bool
)

var describeCmd = &cobra.Command{
	Use:   "describe <files...>",
	Short: "Profile CSV/XLSX/XLS files the way the model sees them",
	Long: `Describe prints the dataset profile (column kinds, statistics, sample rows)
that is sent to the model with every question. Globs are expanded; with
--output-dir each file gets its own <name>.summary.md.`,
	Example: `  insightloom describe sales.csv
  insightloom describe "data/*.xlsx" --output-dir summaries --sheet-name Q3`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files := expandInputs(args)
		if len(files) == 0 {
			return fmt.Errorf("no input files matched")
		}
		if descOutputPath != "" && len(files) > 1 {
			return fmt.Errorf("--output takes a single file; use --output-dir for several")
		}

		opt := analysis.DefaultOptions()
		if descSampleRows >= 0 {
			opt.SampleRows = descSampleRows
		}
		if descMaxRows >= 0 {
			opt.MaxRows = descMaxRows
		}
		opt.Correlations = descCorr
		opt.Outliers = descOutliers
		if descOutlierThr > 0 {
			opt.OutlierThreshold = descOutlierThr
		}

		w := cmd.OutOrStdout()
		total := len(files)
		for i, path := range files {
			if !descQuiet && total > 1 {
				fmt.Fprintf(cmd.ErrOrStderr(), "[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
			}
			md, err := describeFile(path, opt)
			if err != nil {
				return err
			}
			switch {
			case descOutputPath != "":
				if err := utils.SafeWriteFile(descOutputPath, []byte(md)); err != nil {
					return fmt.Errorf("write output: %w", err)
				}
				fmt.Fprintf(w, "✓ Wrote profile to %s\n", descOutputPath)
			case descOutputDir != "":
				out := summaryPath(descOutputDir, path)
				if err := utils.SafeWriteFile(out, []byte(md)); err != nil {
					return fmt.Errorf("write output: %w", err)
				}
				if !descQuiet {
					fmt.Fprintf(w, "✓ Wrote profile to %s\n", out)
				}
			default:
				fmt.Fprintln(w, md)
			}
		}
		return nil
	},
}

func describeFile(path string, opt analysis.Options) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	t, err := parser.ParseSheet(content, filepath.Base(path), descSheetName, descSheetIndex)
	if err != nil {
		return "", err
	}
	return analysis.Profile(t, opt).Markdown(), nil
}

// expandInputs resolves globs, keeps literal paths that exist, drops
// duplicates and sorts. Glob matches with unsupported extensions are skipped.
func expandInputs(args []string) []string {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if strings.ContainsAny(arg, "*?[") {
			matches = lo.Filter(matches, func(m string, _ int) bool { return parser.Supported(m) })
		}
		if len(matches) == 0 {
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files
}

// summaryPath picks <dir>/<base>.summary.md, adding __2, __3... instead of
// overwriting an existing file.
func summaryPath(dir, src string) string {
	base := filepath.Base(src)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	out := filepath.Join(dir, stem+".summary.md")
	for idx := 2; ; idx++ {
		if _, err := os.Stat(out); os.IsNotExist(err) {
			return out
		}
		out = filepath.Join(dir, fmt.Sprintf("%s__%d.summary.md", stem, idx))
	}
}

func init() {
	rootCmd.AddCommand(describeCmd)
	describeCmd.Flags().StringVarP(&descOutputPath, "output", "o", "", "write the profile (Markdown) to this file")
	describeCmd.Flags().StringVar(&descOutputDir, "output-dir", "", "write one <name>.summary.md per input into this directory")
	describeCmd.Flags().IntVar(&descSampleRows, "sample-rows", 5, "number of sample rows to include")
	describeCmd.Flags().IntVar(&descMaxRows, "max-rows", 100000, "maximum rows to process (0 = unlimited)")
	describeCmd.Flags().BoolVar(&descCorr, "correlations", true, "compute Pearson correlations among numeric columns")
	describeCmd.Flags().BoolVar(&descOutliers, "outliers", true, "compute robust outlier counts (MAD)")
	describeCmd.Flags().Float64Var(&descOutlierThr, "outlier-threshold", 3.5, "robust |z| threshold for outliers (MAD-based)")
	describeCmd.Flags().StringVar(&descSheetName, "sheet-name", "", "XLSX: sheet name to profile")
	describeCmd.Flags().IntVar(&descSheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
	describeCmd.Flags().BoolVarP(&descQuiet, "quiet", "q", false, "suppress progress lines")
}
