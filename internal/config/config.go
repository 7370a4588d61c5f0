package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Fallback used when JWT_SECRET is unset. Fine for local development,
// a real deployment must override it; main logs a warning when it is in use.
const InsecureDefaultSecret = "defaultsecret"

type Config struct {
	Env   string
	Port  int
	DBURL string

	JWTSecret     string
	JWTExpiry     time.Duration
	AdminUsername string
	AdminEmail    string
	AdminPassword string

	UploadDir      string
	MaxUploadBytes int64
	WebPQuality    int
	MaxImageWidth  int
	MaxImageHeight int

	RedisAddr   string
	CORSOrigins []string

	OTLPEndpoint string
}

func Load() Config {
	// .env is optional; deployments set the environment directly.
	_ = godotenv.Load()

	return Config{
		Env:   getEnv("APP_ENV", "dev"),
		Port:  getEnvInt("PORT", 8080),
		DBURL: buildDBURL(),

		JWTSecret:     getEnv("JWT_SECRET", InsecureDefaultSecret),
		JWTExpiry:     time.Duration(getEnvInt("JWT_EXPIRES_IN_DAYS", 7)) * 24 * time.Hour,
		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminEmail:    getEnv("ADMIN_EMAIL", "admin@example.com"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),

		UploadDir:      getEnv("UPLOAD_DIR", "uploads"),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 5*1024*1024)),
		WebPQuality:    getEnvInt("WEBP_QUALITY", 80),
		MaxImageWidth:  getEnvInt("MAX_IMAGE_WIDTH", 1920),
		MaxImageHeight: getEnvInt("MAX_IMAGE_HEIGHT", 1080),

		RedisAddr:   os.Getenv("REDIS_ADDR"),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:5173")),

		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}
}

func (c Config) UsingDefaultSecret() bool {
	return c.JWTSecret == InsecureDefaultSecret
}

func buildDBURL() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "buildhub")
	pass := getEnv("DB_PASSWORD", "buildhub")
	name := getEnv("DB_NAME", "buildhub")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			fmt.Println(err)
			return fallback
		}

		return num
	}
	return fallback
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}

	return out
}
