package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/spf13/cobra"

	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/catalog"
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/config"
)

var catalogJSON bool

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the actions available to workflows",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, span := tracer.Start(cmd.Context(), "catalog")
		defer span.End()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cat, err := buildCatalogSource(cfg, clock.New()).Load(ctx)
		if err != nil {
			return fmt.Errorf("loading catalog from %s: %w", cfg.CatalogSource, err)
		}

		out := cmd.OutOrStdout()
		if catalogJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]interface{}{
				"total":      cat.Len(),
				"categories": cat.ByCategory(),
			})
		}
		printCatalog(out, cat)
		return nil
	},
}

func init() {
	catalogCmd.Flags().BoolVar(&catalogJSON, "json", false, "print the catalog as JSON")
	rootCmd.AddCommand(catalogCmd)
}

func printCatalog(w io.Writer, cat *catalog.Catalog) {
	fmt.Fprintf(w, "%d actions\n", cat.Len())
	byCategory := cat.ByCategory()
	for _, category := range cat.Categories() {
		fmt.Fprintf(w, "\n%s\n", category)
		for _, a := range byCategory[category] {
			fmt.Fprintf(w, "  %-26s %s", a.ID, a.Name)
			if len(a.RequiredParams) > 0 {
				fmt.Fprintf(w, " (requires %s)", strings.Join(a.RequiredParams, ", "))
			}
			if a.IsBranching() {
				fmt.Fprint(w, " [branching]")
			}
			fmt.Fprintln(w)
		}
	}
}
