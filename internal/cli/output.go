package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"

	"eve-hullscout/internal/engine"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	summaryStyle = lipgloss.NewStyle().Faint(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// formatISK renders an amount with thousands separators and two decimals.
func formatISK(d decimal.Decimal) string {
	f, _ := d.Round(2).Float64()
	return humanize.FormatFloat("#,###.##", f)
}

func printDeals(w io.Writer, res *engine.Result, originName, baselineName string) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Deals near %s (baseline %s)", originName, baselineName)))

	if len(res.Deals) == 0 {
		fmt.Fprintln(w, "No listings at or below the baseline price.")
	} else {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "#\tHULL\tCLASS\tSYSTEM\tJUMPS\tPRICE\tBASELINE\tSAVINGS\tPCT")
		for i, d := range res.Deals {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s%%\n",
				i+1, d.TypeName, d.Category, d.SystemName, d.Jumps,
				formatISK(d.Price), formatISK(d.BaselinePrice), formatISK(d.Savings),
				d.SavingsPercent.StringFixed(2))
		}
		tw.Flush()
	}

	s := res.Summary
	fmt.Fprintln(w, summaryStyle.Render(fmt.Sprintf(
		"run %s: %d systems, %d types, %d/%d fetches failed, %s",
		s.RunID, s.SystemsScanned, s.TypesScanned, s.PairsFailed, s.PairsTotal, s.Duration.Round(time.Millisecond))))
	if len(s.ExcludedTypes) > 0 {
		fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("no baseline listing for %d type(s): %v", len(s.ExcludedTypes), s.ExcludedTypes)))
	}
	if s.Cancelled {
		fmt.Fprintln(w, warnStyle.Render("scan cancelled, results are partial"))
	}
}

type exportDoc struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Origin      string            `json:"origin"`
	Baseline    string            `json:"baseline"`
	Prices      engine.Baseline   `json:"baseline_prices"`
	Summary     engine.RunSummary `json:"summary"`
	Deals       []engine.Deal     `json:"deals"`
}

// exportJSON writes res to dir as deals_YYYYMMDD_HHMMSS.json and returns
// the file path.
func exportJSON(dir string, res *engine.Result, originName, baselineName string, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("export: %w", err)
	}
	doc := exportDoc{
		GeneratedAt: now.UTC(),
		Origin:      originName,
		Baseline:    baselineName,
		Prices:      res.Baseline,
		Summary:     res.Summary,
		Deals:       res.Deals,
	}
	if doc.Deals == nil {
		doc.Deals = []engine.Deal{}
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("export: %w", err)
	}
	path := filepath.Join(dir, "deals_"+now.Format("20060102_150405")+".json")
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", fmt.Errorf("export: %w", err)
	}
	return path, nil
}
