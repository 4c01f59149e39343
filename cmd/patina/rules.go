package main

import (
	"fmt"
	"strconv"

	"github.com/patina-dev/patina/internal/output"
	"github.com/patina-dev/patina/pkg/rule"
	"github.com/spf13/cobra"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the rules in the active catalog",
	RunE:  runRules,
}

func init() {
	rulesCmd.Flags().String("catalog", "", "Rule catalog file (default: embedded catalog)")
	rulesCmd.Flags().String("category", "", "Only show rules in this category")

	rootCmd.AddCommand(rulesCmd)
}

func runRules(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	catalogPath, _ := cmd.Flags().GetString("catalog")
	if catalogPath == "" {
		catalogPath = cfg.Catalog.Path
	}
	cat, err := loadCatalog(catalogPath)
	if err != nil {
		return err
	}

	categoryFilter, _ := cmd.Flags().GetString("category")

	var rows [][]string
	crossUnit := 0
	for _, r := range cat.Rules() {
		if categoryFilter != "" && string(r.Category) != categoryFilter {
			continue
		}
		scope := "local"
		if r.Signature.CrossUnit() {
			scope = "cross-unit"
			crossUnit++
		}
		rows = append(rows, []string{
			r.ID,
			string(r.Category),
			strconv.Itoa(r.Severity),
			fmt.Sprintf("%.2f", r.EffectiveConfidence()),
			scope,
			r.Refactor,
		})
	}

	formatter, err := output.NewFormatter(output.ParseFormat(cfg.Output.Format), getOutputFile(cmd), cfg.Output.Color)
	if err != nil {
		return err
	}
	defer formatter.Close()

	table := output.NewTable(
		"Rule Catalog",
		[]string{"Rule", "Category", "Severity", "Confidence", "Scope", "Suggestion"},
		rows,
		[]string{
			fmt.Sprintf("Rules: %d", len(rows)),
			"",
			"",
			"",
			fmt.Sprintf("Cross-Unit: %d", crossUnit),
			fmt.Sprintf("Digest: %s", cat.Digest()),
		},
		catalogListing(cat, categoryFilter),
	)
	return formatter.Output(table)
}

// catalogListing is the structured form for JSON/TOON output.
func catalogListing(cat *rule.Catalog, categoryFilter string) any {
	type entry struct {
		ID         string   `json:"id"`
		Category   string   `json:"category"`
		Severity   int      `json:"severity"`
		Confidence float64  `json:"confidence"`
		CrossUnit  bool     `json:"cross_unit"`
		Refactor   string   `json:"refactor"`
		Supersedes []string `json:"supersedes,omitempty"`
	}
	entries := make([]entry, 0, cat.Len())
	for _, r := range cat.Rules() {
		if categoryFilter != "" && string(r.Category) != categoryFilter {
			continue
		}
		entries = append(entries, entry{
			ID:         r.ID,
			Category:   string(r.Category),
			Severity:   r.Severity,
			Confidence: r.EffectiveConfidence(),
			CrossUnit:  r.Signature.CrossUnit(),
			Refactor:   r.Refactor,
			Supersedes: r.Supersedes,
		})
	}
	return map[string]any{
		"digest": cat.Digest(),
		"rules":  entries,
	}
}
