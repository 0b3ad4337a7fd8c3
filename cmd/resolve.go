package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	resolveAllowResellers bool
	resolveConcurrency    int
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <row-id> [row-id...]",
	Short: "Resolve one or more match rows to manufacturer product pages",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if resolveAllowResellers {
			cfg.Resolver.AllowResellers = true
		}

		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		if len(args) == 1 {
			row, err := env.engine.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s: status=%s url=%s confidence=%.2f\n",
				row.ID, row.Status, row.ResolvedURL, row.Confidence)
			return nil
		}

		resolved, failed := env.engine.ResolveAll(cmd.Context(), args, resolveConcurrency)
		zap.L().Info("batch resolve complete",
			zap.Int("resolved", resolved),
			zap.Int("failed", failed),
		)
		fmt.Printf("resolved %d of %d rows (%d failed)\n", resolved, len(args), failed)
		return nil
	},
}

func init() {
	resolveCmd.Flags().BoolVar(&resolveAllowResellers, "allow-resellers", false, "accept candidates on any host, not just the manufacturer domain")
	resolveCmd.Flags().IntVar(&resolveConcurrency, "concurrency", 4, "concurrent row resolutions for batch mode")
	rootCmd.AddCommand(resolveCmd)
}
