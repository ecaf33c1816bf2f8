package commands

import (
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"library-backend/internal/platform/config"
	"library-backend/internal/platform/db"
)

var (
	// Global flags
	configPath string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "libctl",
	Short: "Library backend operator tool",
	Long: `libctl は蔵書管理バックエンドの運用コマンド。

  migrate     スキーマを適用する
  seed-admin  初期管理者を作成する
  lookup      外部カタログで ISBN を引く`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env は任意
		_ = godotenv.Load()
		return nil
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	def := os.Getenv("LIBRARY_CONFIG")
	if def == "" {
		def = config.DefaultPath
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", def, "config file")
}

func loadConfig() (*config.Config, error) {
	return config.LoadConfig(configPath)
}

func connect(cfg *config.Config) (*sqlx.DB, error) {
	return db.Connect(cfg.DB)
}
