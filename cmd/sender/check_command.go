package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"render-sender/internal/core"
	"render-sender/internal/domain"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run environment diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := ctx.ensureSettings()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			c := core.New(settings, logger)
			defer c.Close()
			report := c.Diagnose(cmd.Context(), settings)

			rows := make([][]string, 0, len(report.Items))
			for _, item := range report.Items {
				message := item.Message
				if item.Status == domain.DiagnosticStatusFail && item.Hint != "" {
					message += " " + item.Hint
				}
				rows = append(rows, []string{item.Name, string(item.Status), message})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Check", "Status", "Details"}, rows, nil))

			if failed := report.Failed(); len(failed) > 0 {
				return fmt.Errorf("%d check(s) failed", len(failed))
			}
			return nil
		},
	}
}
