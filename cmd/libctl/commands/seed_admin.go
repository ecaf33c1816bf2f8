package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"library-backend/internal/platform/auth"
)

// seedAdminCmd creates (or promotes) the initial administrator
var seedAdminCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "Create the initial administrator",
	Long: `INITIAL_ADMIN_EMAIL / INITIAL_ADMIN_NAME / INITIAL_ADMIN_PASSWORD から管理者を作る。
同じメールアドレスの利用者がいれば管理者に昇格するだけ。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		email := os.Getenv("INITIAL_ADMIN_EMAIL")
		name := os.Getenv("INITIAL_ADMIN_NAME")
		password := os.Getenv("INITIAL_ADMIN_PASSWORD")
		if email == "" {
			return fmt.Errorf("INITIAL_ADMIN_EMAIL is required")
		}
		if name == "" {
			name = "admin"
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

		u, created, err := auth.NewService(conn, cfg.Auth).EnsureAdmin(cmd.Context(), email, name, password)
		if err != nil {
			return err
		}
		if created {
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (id=%d)\n", u.EmailAddress, u.ID)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s (id=%d) is admin\n", u.EmailAddress, u.ID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedAdminCmd)
}
