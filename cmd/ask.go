package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/insightloom/internal/engine"
	"github.com/KaramelBytes/insightloom/internal/render"
	"github.com/KaramelBytes/insightloom/internal/session"
	"github.com/KaramelBytes/insightloom/internal/utils"
	"github.com/spf13/cobra"
)

var (
	askVisual     bool
	askText       bool
	askChartOut   string
	askSheetName  string
	askSheetIndex int
	askMaxRows    int
)

var askCmd = &cobra.Command{
	Use:   "ask <file> [question...]",
	Short: "Ask a question about a CSV or Excel file from the terminal",
	Long: `Ask loads the file and answers one question. Without a question it reads
questions from stdin, one per line, until EOF or "quit". Lines starting with
":visual" or ":text" switch the intent for the following questions.`,
	Example: `  insightloom ask sales.csv "average sales by country"
  insightloom ask sales.xlsx --sheet-name Q3 --visual "bar chart of revenue by region" --chart-out revenue.html
  insightloom ask sales.csv`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if askVisual && askText {
			return fmt.Errorf("--visual and --text are mutually exclusive")
		}
		intent := engine.IntentTextual
		if askVisual {
			intent = engine.IntentVisual
		}

		path := args[0]
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		eng, err := newEngine(cmd.Context())
		if err != nil {
			return err
		}

		out := render.NewTerminal(cmd.OutOrStdout())
		if askMaxRows >= 0 && cmd.Flags().Changed("max-rows") {
			out.MaxRows = askMaxRows
		}
		h := session.NewHandler(eng, logger)
		if _, err := h.LoadSheet(content, filepath.Base(path), askSheetName, askSheetIndex); err != nil {
			return err
		}

		if len(args) > 1 {
			res, err := h.Submit(cmd.Context(), strings.Join(args[1:], " "), intent)
			if err != nil {
				return err
			}
			if err := out.Render(res); err != nil {
				return err
			}
			return writeChartOut(cmd, res)
		}
		return askLoop(cmd, h, out, cmd.InOrStdin(), intent)
	},
}

// askLoop answers questions from in until EOF. Failures are printed and the
// loop keeps going.
func askLoop(cmd *cobra.Command, h *session.Handler, out *render.Terminal, in io.Reader, intent engine.Intent) error {
	w := cmd.OutOrStdout()
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprintf(w, "%s> ", intent)
		if !sc.Scan() {
			fmt.Fprintln(w)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			continue
		case line == "quit" || line == "exit":
			return nil
		case strings.HasPrefix(line, ":"):
			next, err := engine.ParseIntent(strings.TrimPrefix(line, ":"))
			if err != nil {
				fmt.Fprintln(w, err)
				continue
			}
			intent = next
			continue
		}
		res, err := h.Submit(cmd.Context(), line, intent)
		if err != nil {
			out.Error(err)
			continue
		}
		if err := out.Render(res); err != nil {
			return err
		}
		if err := writeChartOut(cmd, res); err != nil {
			out.Error(err)
		}
	}
}

func writeChartOut(cmd *cobra.Command, res engine.Result) error {
	if askChartOut == "" || res.Kind != engine.KindChart || res.Chart == nil {
		return nil
	}
	if err := utils.SafeWriteFile(askChartOut, res.Chart.HTML); err != nil {
		return fmt.Errorf("write chart: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote chart to %s\n", askChartOut)
	return nil
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().BoolVar(&askVisual, "visual", false, "ask for a chart (Visual Insights)")
	askCmd.Flags().BoolVar(&askText, "text", false, "ask for a table or text answer (Text Analysis, default)")
	askCmd.Flags().StringVar(&askChartOut, "chart-out", "", "write a chart result to this HTML file")
	askCmd.Flags().StringVar(&askSheetName, "sheet-name", "", "XLSX: sheet name to load")
	askCmd.Flags().IntVar(&askSheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
	askCmd.Flags().IntVar(&askMaxRows, "max-rows", 50, "table rows to print (0 = all)")
}
