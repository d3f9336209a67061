package config

import (
	"crypto/rand"
	"encoding/base64"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port       string
	DBPath     string
	CSRFKey    []byte
	SessionKey []byte

	CookieDomain string
	CookieSecure bool

	// Payment gateways. An empty token disables the gateway.
	MercadoPagoToken   string
	MercadoPagoBaseURL string
	PagarMeAPIKey      string
	PagarMeBaseURL     string
	GatewayTimeout     time.Duration

	// Mail. Empty host disables SMTP delivery (emails are still
	// written to EmailDir and logged).
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	MailFrom     string
	OperatorMail string
	EmailDir     string

	UploadDir string
}

func LoadConfig() (*Config, error) {
	// Secrets come from a local .env in development. Missing file is
	// not an error.
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}

	cfg := &Config{
		Port:         getEnv("PORT", "3000"),
		DBPath:       getEnv("DB_PATH", "./teodorofit.db"),
		CookieDomain: getEnv("COOKIE_DOMAIN", ""),
		CookieSecure: getEnv("COOKIE_SECURE", "false") == "true",

		MercadoPagoToken:   os.Getenv("MERCADO_PAGO_TOKEN"),
		MercadoPagoBaseURL: getEnv("MERCADO_PAGO_BASE_URL", "https://api.mercadopago.com"),
		PagarMeAPIKey:      os.Getenv("PAGAR_ME_API_KEY"),
		PagarMeBaseURL:     getEnv("PAGAR_ME_BASE_URL", "https://api.pagar.me"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		MailFrom:     getEnv("MAIL_FROM", "pedidos@teodorofit.com.br"),
		OperatorMail: getEnv("OPERATOR_MAIL", ""),
		EmailDir:     getEnv("EMAIL_DIR", "./sent-emails"),

		UploadDir: getEnv("UPLOAD_DIR", "./static/uploads"),
	}

	cfg.SMTPPort = getEnvInt("SMTP_PORT", 587)

	timeoutSec := getEnvInt("GATEWAY_TIMEOUT_SECONDS", 30)
	cfg.GatewayTimeout = time.Duration(timeoutSec) * time.Second

	cfg.CSRFKey = loadKey("CSRF_KEY")
	cfg.SessionKey = loadKey("SESSION_KEY")

	if _, err := strconv.Atoi(cfg.Port); err != nil {
		slog.Error("Invalid PORT environment variable. Falling back to default.", "PORT", os.Getenv("PORT"))
		cfg.Port = "3000"
	}

	return cfg, nil
}

// loadKey decodes a base64 key from the environment, generating a random
// one for development when it is missing or too short.
func loadKey(name string) []byte {
	raw := os.Getenv(name)
	if raw == "" {
		slog.Warn(name + " not set. Generating a random key for development. PLEASE SET " + name + " IN PRODUCTION!")
		return generateRandomBytes(32)
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil || len(decoded) < 32 {
		slog.Warn(name + " is invalid or too short (min 32 bytes). Generating a random key for development.")
		return generateRandomBytes(32)
	}
	return decoded
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		slog.Error("Invalid integer environment variable. Falling back to default.", "key", key, "value", raw)
		return defaultValue
	}
	return v
}

func generateRandomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		slog.Error("Failed to read random bytes", "error", err)
		fallbackKey := "fallback-insecure-key-" + strconv.FormatInt(time.Now().UnixNano(), 10)
		if len(fallbackKey) < n {
			paddedKey := make([]byte, n)
			copy(paddedKey, fallbackKey)
			return paddedKey
		}
		return []byte(fallbackKey)[:n]
	}
	return b
}
