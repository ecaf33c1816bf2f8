package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/config.yaml"

type DatabaseConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Username    string `yaml:"user"`
	Password    string `yaml:"password"`
	DBName      string `yaml:"dbname"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

type Certs struct {
	Cert string `yaml:"cert"`
	Key  string `yaml:"key"`
}

type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type LookupConfig struct {
	BaseURL        string        `yaml:"base_url"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	UserAgent      string        `yaml:"user_agent"`
}

type CatalogConfig struct {
	PerPage        int    `yaml:"per_page"`
	TitleCollation string `yaml:"title_collation"`
}

type LendingConfig struct {
	LoanPeriod time.Duration `yaml:"loan_period"`
}

type Config struct {
	Version     string         `yaml:"version"`
	Mode        string         `yaml:"mode"`
	Server      ServerConfig   `yaml:"server"`
	DB          DatabaseConfig `yaml:"database"`
	Certificate Certs          `yaml:"certificate"`
	Auth        AuthConfig     `yaml:"auth"`
	Lookup      LookupConfig   `yaml:"lookup"`
	Catalog     CatalogConfig  `yaml:"catalog"`
	Lending     LendingConfig  `yaml:"lending"`
}

// Default は設定ファイルで省略された項目の既定値
func Default() Config {
	return Config{
		Mode:   "dev",
		Server: ServerConfig{Addr: ":8080", CORSOrigins: []string{"http://localhost:3000"}},
		DB:     DatabaseConfig{Host: "127.0.0.1", Port: 3306, Username: "library", DBName: "library"},
		Auth:   AuthConfig{TokenTTL: 24 * time.Hour},
		Lookup: LookupConfig{
			BaseURL:        "https://www.googleapis.com/books/v1/volumes",
			ConnectTimeout: 500 * time.Millisecond,
			ReadTimeout:    1500 * time.Millisecond,
			UserAgent:      "LibraryManagementApp/1.0",
		},
		Catalog: CatalogConfig{PerPage: 6, TitleCollation: "utf8mb4_ja_0900_as_cs"},
		Lending: LendingConfig{LoanPeriod: 14 * 24 * time.Hour},
	}
}

func LoadConfig(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("設定ファイルの読み込み失敗: %w", err)
	}
	return Parse(buf)
}

// Parse は YAML を既定値の上に重ね、環境変数で上書きして検証する
func Parse(buf []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return nil, fmt.Errorf("設定ファイルのパース失敗: %w", err)
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("LIBRARY_DB_PASSWORD"); v != "" {
		cfg.DB.Password = v
	}
	if v := os.Getenv("LIBRARY_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("GOOGLE_BOOKS_API_URL"); v != "" {
		cfg.Lookup.BaseURL = v
	}
}

// SQL にそのまま埋め込むため識別子だけ許可する（空は照合順序指定なし）
var collationName = regexp.MustCompile(`^[A-Za-z0-9_]*$`)

func (c *Config) Validate() error {
	if c.Mode != "dev" && c.Mode != "release" {
		return fmt.Errorf("mode must be dev or release: %q", c.Mode)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required (or LIBRARY_JWT_SECRET)")
	}
	if c.Lookup.ConnectTimeout <= 0 || c.Lookup.ReadTimeout <= 0 {
		return fmt.Errorf("lookup timeouts must be > 0")
	}
	if c.Catalog.PerPage <= 0 {
		return fmt.Errorf("catalog.per_page must be > 0")
	}
	if !collationName.MatchString(c.Catalog.TitleCollation) {
		return fmt.Errorf("catalog.title_collation is not a collation name: %q", c.Catalog.TitleCollation)
	}
	if c.Lending.LoanPeriod <= 0 {
		return fmt.Errorf("lending.loan_period must be > 0")
	}
	return nil
}
