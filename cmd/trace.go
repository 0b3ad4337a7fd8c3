package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var traceCmd = &cobra.Command{
	Use:   "trace <row-id>",
	Short: "Dry-run a row and print every intermediate decision as JSON",
	Long:  "Runs the full resolution pipeline for a row without writing to the row store or source index, and prints the recorded trace. Use this to diagnose why a row resolved or didn't.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		trace, err := env.engine.Trace(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(trace, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(traceCmd)
}
