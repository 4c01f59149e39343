package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/patina-dev/patina/pkg/rule"
	"github.com/spf13/cobra"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect and validate rule catalogs",
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate <catalog>",
	Short: "Validate a rule catalog without scanning",
	Long: `Validate loads a catalog file and reports every schema or
cross-reference problem. Catalog loading is all-or-nothing: a scan with a
broken catalog produces no partial results, so validate it in CI before
shipping rule changes.`,
	Args: cobra.ExactArgs(1),
	RunE: runCatalogValidate,
}

func init() {
	catalogCmd.AddCommand(catalogValidateCmd)
	rootCmd.AddCommand(catalogCmd)
}

func runCatalogValidate(cmd *cobra.Command, args []string) error {
	cat, err := rule.Load(args[0])
	if err != nil {
		var loadErr *rule.RuleLoadError
		if errors.As(err, &loadErr) {
			if loadErr.RuleID != "" {
				return fmt.Errorf("catalog invalid at rule %q: %s", loadErr.RuleID, loadErr.Reason)
			}
			return fmt.Errorf("catalog invalid: %s", loadErr.Reason)
		}
		return err
	}

	crossUnit := len(cat.CrossUnitRules())
	color.Green("Catalog valid: %d rules (%d cross-unit)", cat.Len(), crossUnit)
	fmt.Printf("Digest: %s\n", cat.Digest())
	return nil
}
