package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"library-backend/internal/platform/db"
)

var dryRun bool

// migrateCmd applies the embedded schema
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Long: `埋め込みのスキーマ（CREATE TABLE IF NOT EXISTS）を順に適用する。何度実行してもよい。

Examples:
  libctl migrate             # 適用
  libctl migrate --dry-run   # 実行する SQL を表示するだけ`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if dryRun {
			for _, stmt := range db.Statements() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s;\n\n", stmt)
			}
			return nil
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		conn, err := connect(cfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		if err := db.Migrate(cmd.Context(), conn); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "applied %d statements to %s\n", len(db.Statements()), cfg.DB.DBName)
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print statements without executing")
	rootCmd.AddCommand(migrateCmd)
}
