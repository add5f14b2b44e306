package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/screen"
)

var screenJSON bool

var screenCmd = &cobra.Command{
	Use:   "screen <text>",
	Short: "Run the security screen against a message",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, span := tracer.Start(cmd.Context(), "screen")
		defer span.End()

		s, err := screen.NewDefault()
		if err != nil {
			return fmt.Errorf("loading screen rules: %w", err)
		}
		v := s.Check(strings.Join(args, " "))

		out := cmd.OutOrStdout()
		if screenJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(v)
		}
		if !v.IsThreat {
			fmt.Fprintln(out, "clean")
			return nil
		}
		fmt.Fprintf(out, "blocked: %s (family=%s rule=%s severity=%d)\n", v.Reason, v.Family, v.Rule, v.Severity)
		return nil
	},
}

func init() {
	screenCmd.Flags().BoolVar(&screenJSON, "json", false, "print the verdict as JSON")
	rootCmd.AddCommand(screenCmd)
}
