package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"muserver/internal/lookup"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server ServerConfig `yaml:"server" toml:"server"`
	Tables TablesConfig `yaml:"tables" toml:"tables"`
	Admin  AdminConfig  `yaml:"admin" toml:"admin"`
}

// ServerConfig はファイルサーバー本体の設定
type ServerConfig struct {
	Host string `yaml:"host" toml:"host"`                                 // リッスンするホスト
	Port int    `yaml:"port" toml:"port" validate:"min=1,max=65535"`      // リッスンするポート番号
	Root string `yaml:"root" toml:"root" validate:"required"`             // "/" に対応する物理ディレクトリ
	// MimeSniff が有効な場合、Mimeテーブルに無い拡張子はファイル内容から判定する
	MimeSniff bool `yaml:"mime_sniff" toml:"mime_sniff"`
}

// TablesConfig は仮想ディレクトリ等のテーブルファイルの設定
type TablesConfig struct {
	DataDir     string `yaml:"data_dir" toml:"data_dir" validate:"required"`
	DirectDirs  string `yaml:"direct_dirs" toml:"direct_dirs" validate:"required"`   // 直接ディレクトリ (プレフィックス一致)
	VirtualDirs string `yaml:"virtual_dirs" toml:"virtual_dirs" validate:"required"` // 仮想ディレクトリ (完全一致)
	Mime        string `yaml:"mime" toml:"mime" validate:"required"`                 // 拡張子とMIMEタイプ
	Defaults    string `yaml:"defaults" toml:"defaults" validate:"required"`         // デフォルトファイル名
}

// AdminConfig は管理用HTTP APIの設定
type AdminConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Host    string `yaml:"host" toml:"host"`
	Port    int    `yaml:"port" toml:"port" validate:"omitempty,min=1,max=65535"`

	// タイムアウト設定（管理APIのみ。ファイル配信側にはタイムアウトを設けない）
	ReadTimeout  time.Duration `yaml:"read_timeout" toml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" toml:"write_timeout"`
}

// Default はデフォルト設定を返す
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 5050,
			Root: "www",
		},
		Tables: TablesConfig{
			DataDir:     "data",
			DirectDirs:  "DDirs.Dat",
			VirtualDirs: "VDirs.Dat",
			Mime:        "Mime.Dat",
			Defaults:    "Default.Dat",
		},
		Admin: AdminConfig{
			Enabled:      true,
			Host:         "127.0.0.1",
			Port:         5051,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Load は設定を読み込む
// path が空の場合はデフォルト値と環境変数のみを使う
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	// 環境変数で上書き
	cfg.Server.Host = getEnvOrDefault("SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvAsIntOrDefault("PORT", cfg.Server.Port)
	cfg.Server.Root = getEnvOrDefault("SERVER_ROOT", cfg.Server.Root)
	cfg.Tables.DataDir = getEnvOrDefault("DATA_DIR", cfg.Tables.DataDir)
	cfg.Admin.Port = getEnvAsIntOrDefault("ADMIN_PORT", cfg.Admin.Port)

	// 設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// readFile は拡張子に応じてYAMLまたはTOMLの設定ファイルを読み込む
func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	case ".toml":
		err = toml.Unmarshal(data, c)
	default:
		return fmt.Errorf("未対応の設定ファイル形式です: %s", path)
	}
	if err != nil {
		return fmt.Errorf("設定ファイルの解析に失敗 (%s): %w", path, err)
	}

	return nil
}

var validate = validator.New()

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("無効な設定値: %s (%s)", verrs[0].Namespace(), verrs[0].Tag())
		}
		return err
	}

	if c.Admin.Enabled && c.Admin.Port == 0 {
		return fmt.Errorf("管理APIのポートが設定されていません")
	}
	if c.Admin.Enabled && c.Admin.Port == c.Server.Port && c.Admin.Host == c.Server.Host {
		return fmt.Errorf("管理APIとサーバーのアドレスが重複しています: %d", c.Admin.Port)
	}

	return nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// AdminAddress は管理APIのリッスンアドレスを返す
func (c *Config) AdminAddress() string {
	return fmt.Sprintf("%s:%d", c.Admin.Host, c.Admin.Port)
}

// LookupTables はデータディレクトリを基準にしたテーブルファイルのパスを返す
func (c *Config) LookupTables() lookup.Tables {
	join := func(name string) string {
		if filepath.IsAbs(name) {
			return name
		}
		return filepath.Join(c.Tables.DataDir, name)
	}

	return lookup.Tables{
		DirectDirs:  join(c.Tables.DirectDirs),
		VirtualDirs: join(c.Tables.VirtualDirs),
		Mime:        join(c.Tables.Mime),
		Defaults:    join(c.Tables.Defaults),
	}
}

// getEnvOrDefault は環境変数を取得し、設定されていない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault は環境変数を整数として取得し、設定されていない場合はデフォルト値を返す
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}
