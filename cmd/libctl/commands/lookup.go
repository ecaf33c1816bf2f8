package commands

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"library-backend/internal/lookup"
)

// lookupCmd queries the external catalog without touching the database
var lookupCmd = &cobra.Command{
	Use:   "lookup <isbn>",
	Short: "Look up book metadata by ISBN",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		info, err := lookup.NewClient(cfg.Lookup).Lookup(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(info, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lookupCmd)
}
