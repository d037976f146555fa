package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"statement-import-backend/internal/parser"
)

func newParseCmd() *cobra.Command {
	var src sourceFlags
	cmd := &cobra.Command{
		Use:   "parse FILE",
		Short: "Parse a statement offline and report staged and skipped rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, cfg, err := src.resolve(args[0])
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			res, err := parser.Parse(cmd.Context(), data, format, cfg)
			if err != nil {
				return fmt.Errorf("parsing %s: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			header(out, fmt.Sprintf("%s (%s)", args[0], format))
			printRecords(out, res.Records)
			printSkipped(out, res.Skipped)
			printParseSummary(out, res.Summary)
			return nil
		},
	}
	src.register(cmd)
	return cmd
}
