package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	RedisAddr   string
	RedisDB     int

	JWTSecret         string
	JWTExpiresMinutes int

	OTP      OTPConfig
	Payout   PayoutConfig
	Paystack PaystackConfig
	Supplier SupplierConfig
	Notify   NotifyConfig
	Lookup   LookupConfig
}

type OTPConfig struct {
	ResendCooldown time.Duration
	MaxAttempts    int
	LockWindow     time.Duration
	PayTTL         time.Duration
	CancelTTL      time.Duration
	DeliveryTTL    time.Duration
}

// PayoutConfig is handed by value to the payout engine at construction time.
// TrialMode performs all bookkeeping but skips the external transfer call;
// it must never be re-read from the environment at release time.
type PayoutConfig struct {
	TrialMode           bool
	PhysicalPayoutPct   int
	OnlineCommissionPct int
}

type PaystackConfig struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
}

type SupplierConfig struct {
	Timeout time.Duration
}

type NotifyConfig struct {
	BaseURL  string
	APIKey   string
	SenderID string
	Timeout  time.Duration
}

type LookupConfig struct {
	MaxPerWindow int
	Window       time.Duration
	CACBaseURL   string
	CACAPIKey    string
}

func Load() Config {
	_ = godotenv.Load()

	dbURL := getEnv("DATABASE_URL", "")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	return Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: dbURL,
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:     getEnvInt("REDIS_DB", 0),

		JWTSecret:         getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTExpiresMinutes: getEnvInt("JWT_EXPIRES_MINUTES", 60),

		OTP: OTPConfig{
			ResendCooldown: getEnvDuration("OTP_RESEND_COOLDOWN", time.Minute),
			MaxAttempts:    getEnvInt("OTP_MAX_ATTEMPTS", 5),
			LockWindow:     getEnvDuration("OTP_LOCK_WINDOW", 30*time.Minute),
			PayTTL:         getEnvDuration("OTP_PAY_TTL", 5*time.Minute),
			CancelTTL:      getEnvDuration("OTP_CANCEL_TTL", 5*time.Minute),
			DeliveryTTL:    getEnvDuration("OTP_DELIVERY_TTL", 10*time.Minute),
		},
		Payout: PayoutConfig{
			TrialMode:           getEnvBool("PAYOUT_TRIAL_MODE", false),
			PhysicalPayoutPct:   getEnvInt("PHYSICAL_PAYOUT_PCT", 70),
			OnlineCommissionPct: getEnvInt("ONLINE_COMMISSION_PCT", 30),
		},
		Paystack: PaystackConfig{
			BaseURL:   getEnv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
			SecretKey: getEnv("PAYSTACK_SECRET_KEY", ""),
			Timeout:   getEnvDuration("PAYSTACK_TIMEOUT", 15*time.Second),
		},
		Supplier: SupplierConfig{
			Timeout: getEnvDuration("SUPPLIER_API_TIMEOUT", 15*time.Second),
		},
		Notify: NotifyConfig{
			BaseURL:  getEnv("TERMII_BASE_URL", "https://api.ng.termii.com"),
			APIKey:   getEnv("TERMII_API_KEY", ""),
			SenderID: getEnv("TERMII_SENDER_ID", "YemisShop"),
			Timeout:  getEnvDuration("TERMII_TIMEOUT", 15*time.Second),
		},
		Lookup: LookupConfig{
			MaxPerWindow: getEnvInt("RC_LOOKUP_MAX", 3),
			Window:       getEnvDuration("RC_LOOKUP_WINDOW", 24*time.Hour),
			CACBaseURL:   getEnv("CAC_BASE_URL", "https://postapp.cac.gov.ng/postapp/api/front-office"),
			CACAPIKey:    getEnv("CAC_API_KEY", ""),
		},
	}
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
