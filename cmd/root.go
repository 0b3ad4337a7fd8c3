package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/medicalexcom/sourcematch/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "sourcematch",
	Short: "Manufacturer URL resolution engine",
	Long:  "Resolves sparse product rows (SKU, name, supplier) to the canonical product page on the manufacturer's own domain, with a confidence score and reseller filtering.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
