package main

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/patina-dev/patina/internal/output"
	"github.com/patina-dev/patina/internal/progress"
	"github.com/patina-dev/patina/internal/scanner"
	"github.com/patina-dev/patina/pkg/config"
	"github.com/patina-dev/patina/pkg/engine"
	"github.com/patina-dev/patina/pkg/models"
	"github.com/patina-dev/patina/pkg/rule"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan [path...]",
	Short: "Match the rule catalog against unit documents",
	Long: `Scan loads every unit document under the given paths (current
directory by default), matches the rule catalog against each unit, then
aggregates repeated structures across units and reports the surviving
matches in canonical order.

Exit codes: 0 on success, 1 on error, 2 when --fail-on-severity is set
and a finding at or above the threshold survives.`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().String("catalog", "", "Rule catalog file (YAML, JSON, or TOML; default: embedded catalog)")
	scanCmd.Flags().Int("workers", 0, "Matching worker count (default: one per CPU)")
	scanCmd.Flags().Int("unit-timeout", 0, "Per-unit matching timeout in milliseconds")
	scanCmd.Flags().Int("min-severity", 0, "Drop matches below this severity from the report")
	scanCmd.Flags().Int("fail-on-severity", 0, "Exit with code 2 when a finding at or above this severity survives")
	scanCmd.Flags().Bool("show-suppressed", false, "Include suppressed matches in the report")

	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyScanFlags(cmd, cfg)

	catalogPath, _ := cmd.Flags().GetString("catalog")
	if catalogPath == "" {
		catalogPath = cfg.Catalog.Path
	}
	cat, err := loadCatalog(catalogPath)
	if err != nil {
		return err
	}

	spinner := progress.NewSpinner("Discovering unit documents...")
	files, err := scanner.New(cfg).ScanPaths(args)
	if err != nil {
		spinner.FinishError(err)
		return err
	}
	spinner.FinishSuccess()
	if len(files) == 0 {
		color.Yellow("No unit documents found")
		return nil
	}

	tracker := progress.NewTracker("Matching units...", len(files))
	eng := engine.New(cat,
		engine.WithWorkers(cfg.Scan.Workers),
		engine.WithUnitTimeout(time.Duration(cfg.Scan.UnitTimeoutMS)*time.Millisecond),
		engine.WithMinSeverity(cfg.Scan.MinSeverity),
		engine.WithShowSuppressed(cfg.Scan.ShowSuppressed || cfg.Output.Verbose),
		engine.WithProgress(tracker.Tick),
	)

	report, err := eng.Scan(cmd.Context(), files)
	if err != nil {
		tracker.FinishError(err)
		return err
	}
	tracker.FinishSuccess()

	formatter, err := output.NewFormatter(output.ParseFormat(cfg.Output.Format), getOutputFile(cmd), cfg.Output.Color)
	if err != nil {
		return err
	}
	defer formatter.Close()

	if err := formatter.Output(renderReport(report, formatter.Colored())); err != nil {
		return err
	}

	if report.ExceedsSeverity(cfg.Scan.FailOnSeverity) {
		return severityExceededError{threshold: cfg.Scan.FailOnSeverity}
	}
	return nil
}

// applyScanFlags overlays explicitly set scan flags onto the config.
func applyScanFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("workers") {
		cfg.Scan.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if cmd.Flags().Changed("unit-timeout") {
		cfg.Scan.UnitTimeoutMS, _ = cmd.Flags().GetInt("unit-timeout")
	}
	if cmd.Flags().Changed("min-severity") {
		cfg.Scan.MinSeverity, _ = cmd.Flags().GetInt("min-severity")
	}
	if cmd.Flags().Changed("fail-on-severity") {
		cfg.Scan.FailOnSeverity, _ = cmd.Flags().GetInt("fail-on-severity")
	}
	if cmd.Flags().Changed("show-suppressed") {
		cfg.Scan.ShowSuppressed, _ = cmd.Flags().GetBool("show-suppressed")
	}
}

// loadCatalog loads the catalog at path, or the embedded seed catalog when
// path is empty.
func loadCatalog(path string) (*rule.Catalog, error) {
	if path == "" {
		return rule.Default()
	}
	return rule.Load(path)
}

// renderReport builds the Renderable view of a scan report: the match table,
// skipped units, and the summary section. JSON and TOON formats serialize
// the report struct itself.
func renderReport(report *models.Report, colored bool) output.Renderable {
	var rows [][]string
	for _, m := range report.Matches {
		sev := strconv.Itoa(m.Severity)
		if colored {
			sev = output.SeverityColor(m.Severity, sev)
		}
		ruleID := m.RuleID
		if m.Suppressed {
			ruleID = fmt.Sprintf("%s (suppressed by %s)", m.RuleID, m.SuppressedBy)
		}
		rows = append(rows, []string{
			m.UnitPath,
			fmt.Sprintf("%d-%d", m.Span.Start, m.Span.End),
			ruleID,
			sev,
			fmt.Sprintf("%.2f", m.Confidence),
			m.RefactorText,
		})
	}

	sections := []output.Renderable{
		output.NewTable(
			"Findings",
			[]string{"Unit", "Span", "Rule", "Severity", "Confidence", "Suggestion"},
			rows,
			[]string{
				fmt.Sprintf("Matches: %d", report.Summary.TotalMatches),
				fmt.Sprintf("Suppressed: %d", report.Summary.SuppressedCount),
				fmt.Sprintf("Max Severity: %d", report.Summary.MaxSeverity),
				"",
				fmt.Sprintf("Mean Conf: %.2f", report.Summary.MeanConfidence),
				"",
			},
			nil,
		),
	}

	if len(report.SkippedUnits) > 0 {
		var skippedRows [][]string
		for _, s := range report.SkippedUnits {
			skippedRows = append(skippedRows, []string{s.Path, s.Reason})
		}
		sections = append(sections, output.NewTable(
			"Skipped Units",
			[]string{"Unit", "Reason"},
			skippedRows,
			nil,
			nil,
		))
	}

	sections = append(sections, &output.Section{
		Title:   "Summary",
		Content: summaryContent(report),
	})

	return &output.Report{
		Title:    "Patina Scan",
		Sections: sections,
		Data:     report,
	}
}

func summaryContent(report *models.Report) string {
	s := report.Summary
	content := fmt.Sprintf("Units scanned: %d, skipped: %d\nCatalog digest: %s",
		s.UnitsScanned, s.UnitsSkipped, report.CatalogDigest)
	if len(s.ByCategory) > 0 {
		cats := make([]string, 0, len(s.ByCategory))
		for c := range s.ByCategory {
			cats = append(cats, c)
		}
		sort.Strings(cats)
		for _, c := range cats {
			content += fmt.Sprintf("\n  %s: %d", c, s.ByCategory[c])
		}
	}
	return content
}
