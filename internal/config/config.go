package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Calendar failure policies. fail_closed refuses to book when the external
// calendar cannot be reached; assume_free treats an outage as "no conflict".
const (
	CalendarPolicyFailClosed = "fail_closed"
	CalendarPolicyAssumeFree = "assume_free"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Backends: memory, redis or postgres (slots); memory or redis (conversations, locks)
	SlotStore         string
	ConversationStore string
	LockStore         string
	LedgerStore       string
	DedupStore        string
	DedupTTL          time.Duration
	AuditStore        string

	// LINE Messaging API
	LineChannelSecret      string
	LineChannelAccessToken string
	LineAPIBaseURL         string

	// Salon rules
	SalonName         string
	SalonDataFile     string
	SalonTimezone     string
	BusinessStartHour int
	BusinessEndHour   int
	SlotInterval      time.Duration
	SlotDuration      time.Duration
	BookingWindowDays int
	TimesPerPage      int
	ConversationTTL   time.Duration
	ConversationSweep time.Duration
	LockTTL           time.Duration
	LockWait          time.Duration

	// External calendar
	CalendarProvider       string
	CalendarFailurePolicy  string
	CalendarTimeout        time.Duration
	GoogleCalendarID       string
	GoogleCredentialsFile  string
	GoogleCredentialsJSON  string
	GoogleCalendarEndpoint string

	// Admin API
	AdminJWTSecret      string
	AdminRateLimitRPS   float64
	AdminRateLimitBurst int

	// Salon notifications
	NotifyEmail         string
	EmailProvider       string
	SendGridAPIKey      string
	SendGridFromEmail   string
	SendGridFromName    string
	SESFromEmail        string
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		SlotStore:         getEnvLower("SLOT_STORE", "memory"),
		ConversationStore: getEnvLower("CONVERSATION_STORE", "memory"),
		LockStore:         getEnvLower("LOCK_STORE", "memory"),
		LedgerStore:       getEnvLower("LEDGER_STORE", "memory"),
		DedupStore:        getEnvLower("DEDUP_STORE", "memory"),
		DedupTTL:          getEnvAsDuration("WEBHOOK_DEDUP_TTL", 24*time.Hour),
		AuditStore:        getEnvLower("AUDIT_STORE", "memory"),

		LineChannelSecret:      getEnv("LINE_CHANNEL_SECRET", ""),
		LineChannelAccessToken: getEnv("LINE_CHANNEL_ACCESS_TOKEN", ""),
		LineAPIBaseURL:         getEnv("LINE_API_BASE_URL", "https://api.line.me"),

		SalonName:         getEnv("SALON_NAME", "Polish & Co. Nail Studio"),
		SalonDataFile:     getEnv("SALON_DATA_FILE", ""),
		SalonTimezone:     getEnv("SALON_TIMEZONE", "Asia/Taipei"),
		BusinessStartHour: getEnvAsInt("BUSINESS_START_HOUR", 10),
		BusinessEndHour:   getEnvAsInt("BUSINESS_END_HOUR", 20),
		SlotInterval:      getEnvAsDuration("SLOT_INTERVAL", 30*time.Minute),
		SlotDuration:      getEnvAsDuration("SLOT_DURATION", 30*time.Minute),
		BookingWindowDays: getEnvAsInt("BOOKING_WINDOW_DAYS", 30),
		TimesPerPage:      getEnvAsInt("TIMES_PER_PAGE", 4),
		ConversationTTL:   getEnvAsDuration("CONVERSATION_TTL", 30*time.Minute),
		ConversationSweep: getEnvAsDuration("CONVERSATION_SWEEP_INTERVAL", 5*time.Minute),
		LockTTL:           getEnvAsDuration("LOCK_TTL", 30*time.Second),
		LockWait:          getEnvAsDuration("LOCK_WAIT", 10*time.Second),

		CalendarProvider:       getEnvLower("CALENDAR_PROVIDER", "google"),
		CalendarFailurePolicy:  getEnvLower("CALENDAR_FAILURE_POLICY", CalendarPolicyFailClosed),
		CalendarTimeout:        getEnvAsDuration("CALENDAR_TIMEOUT", 5*time.Second),
		GoogleCalendarID:       getEnv("GOOGLE_CALENDAR_ID", ""),
		GoogleCredentialsFile:  getEnv("GOOGLE_CREDENTIALS_FILE", ""),
		GoogleCredentialsJSON:  getEnv("GOOGLE_CREDENTIALS_JSON", ""),
		GoogleCalendarEndpoint: getEnv("GOOGLE_CALENDAR_ENDPOINT", ""),

		AdminJWTSecret:      getEnv("ADMIN_JWT_SECRET", ""),
		AdminRateLimitRPS:   getEnvAsFloat("ADMIN_RATE_LIMIT_RPS", 5),
		AdminRateLimitBurst: getEnvAsInt("ADMIN_RATE_LIMIT_BURST", 20),

		NotifyEmail:         getEnv("SALON_NOTIFY_EMAIL", ""),
		EmailProvider:       getEnvLower("EMAIL_PROVIDER", "auto"),
		SendGridAPIKey:      getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail:   getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:    getEnv("SENDGRID_FROM_NAME", "Salon Booking Assistant"),
		SESFromEmail:        getEnv("SES_FROM_EMAIL", ""),
		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
	}
}

// FailClosed reports whether calendar outages should block bookings.
func (c *Config) FailClosed() bool {
	return c.CalendarFailurePolicy != CalendarPolicyAssumeFree
}

// Location resolves SalonTimezone, falling back to UTC when it is unknown.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.SalonTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvLower(key, defaultValue string) string {
	return strings.ToLower(strings.TrimSpace(getEnv(key, defaultValue)))
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
