package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the state store's mapping counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd.Context())
			defer a.store.Close()

			counts, err := a.store.MappingCounts(cmd.Context())
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}

			if flagJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(counts)
			}
			for status, n := range counts {
				fmt.Printf("%-12s %d\n", status, n)
			}
			return nil
		},
	}
}
