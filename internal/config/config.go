package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	PostgresUser     string // DBユーザー
	PostgresPassword string // DBパスワード
	PostgresDB       string // DB名
	PostgresHost     string // DBホスト（localhost）
	PostgresPort     int    // DBポート（5432）

	JWTSecret string // JWT署名シークレット

	RedisAddr    string   // 決済セッションキャッシュ
	KafkaBrokers []string // 注文イベント
	StripeAPIKey string   // 決済ゲートウェイ

	GoEnv       string // dev/prod
	ServiceName string // イベントのproducer名
}

// Loadは環境変数
func Load() (Config, error) {
	pgPort, err := mustAtoi("POSTGRES_PORT")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port: os.Getenv("PORT"),

		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresPort:     pgPort,

		JWTSecret: os.Getenv("JWT_SECRET"),

		RedisAddr:    getenvDefault("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers: splitCSV(getenvDefault("KAFKA_BROKERS", "localhost:9092")),
		StripeAPIKey: os.Getenv("STRIPE_API_KEY"),

		GoEnv:       os.Getenv("GO_ENV"),
		ServiceName: getenvDefault("SERVICE_NAME", "storefront-api"),
	}

	//必須チェック
	if cfg.Port == "" {
		return Config{}, fmt.Errorf("PORT is required")
	}
	if cfg.PostgresUser == "" {
		return Config{}, fmt.Errorf("POSTGRES_USER is required")
	}
	if cfg.PostgresPassword == "" {
		return Config{}, fmt.Errorf("POSTGRES_PASSWORD is required")
	}
	if cfg.PostgresDB == "" {
		return Config{}, fmt.Errorf("POSTGRES_DB is required")
	}
	if cfg.PostgresHost == "" {
		return Config{}, fmt.Errorf("POSTGRES_HOST is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.StripeAPIKey == "" {
		return Config{}, fmt.Errorf("STRIPE_API_KEY is required")
	}
	if cfg.GoEnv == "" {
		return Config{}, fmt.Errorf("GO_ENV is required")
	}

	return cfg, nil
}

func mustAtoi(key string) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func getenvDefault(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
