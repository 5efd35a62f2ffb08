package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile              = ".env"
	defaultPort                 = "8080"
	defaultReadTimeout          = 15 * time.Second
	defaultWriteTimeout         = 30 * time.Second
	defaultIdleTimeout          = 120 * time.Second
	defaultCurrency             = "GBP"
	defaultDeliveryFee          = int64(499)
	defaultFreeShippingAbove    = int64(3000)
	defaultPriceTolerance       = int64(1)
	defaultIdempotencyHeader    = "Idempotency-Key"
	defaultIdempotencyTTL       = 24 * time.Hour
	defaultIdempotencyInterval  = time.Hour
	defaultIdempotencyBatchSize = 200
	defaultAdminCookieName      = "admin_session"
	defaultMailSenderName       = "Roastline Coffee"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server      ServerConfig
	Firestore   FirestoreConfig
	PSP         PSPConfig
	Shipping    ShippingConfig
	Mail        MailConfig
	Events      EventsConfig
	Security    SecurityConfig
	Idempotency IdempotencyConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// PSPConfig collects credentials for the payment processor.
type PSPConfig struct {
	StripeAPIKey        string
	StripeWebhookSecret string
}

// ShippingConfig holds the static fallbacks for checkout totals; the
// Firestore-backed settings document overrides these at runtime.
type ShippingConfig struct {
	Currency                string
	DeliveryFeeMinorUnits   int64
	FreeShippingThreshold   int64
	FreeShippingEnabled     bool
	PriceToleranceMinorUnit int64
}

// MailConfig configures the transactional email sender.
type MailConfig struct {
	BrevoAPIKey string
	SenderEmail string
	SenderName  string
}

// EventsConfig names the Pub/Sub topic receiving order lifecycle events.
type EventsConfig struct {
	ProjectID       string
	OrderEventTopic string
}

// SecurityConfig groups the admin authentication settings. AdminAPIKey is the
// bootstrap credential exchanged for a session cookie at /auth/login.
type SecurityConfig struct {
	Environment    string
	AdminJWTSecret string
	AdminCookie    string
	AdminAPIKey    string
}

// IdempotencyConfig controls idempotency middleware behaviour.
type IdempotencyConfig struct {
	Header           string
	TTL              time.Duration
	CleanupInterval  time.Duration
	CleanupBatchSize int
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises config loading.
type Option func(*loader)

type loader struct {
	envFile string
	lookup  func(string) (string, bool)
}

// WithEnvFile overrides the dotenv file consulted before the process environment.
func WithEnvFile(path string) Option {
	return func(l *loader) {
		l.envFile = path
	}
}

// WithLookup overrides the environment lookup function (used by tests).
func WithLookup(fn func(string) (string, bool)) Option {
	return func(l *loader) {
		if fn != nil {
			l.lookup = fn
		}
	}
}

// Load reads configuration from the dotenv file and process environment,
// applying defaults and validating required fields.
func Load(opts ...Option) (Config, error) {
	l := &loader{
		envFile: defaultEnvFile,
		lookup:  os.LookupEnv,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}

	fileValues := readEnvFile(l.envFile)
	get := func(key string) string {
		if value, ok := l.lookup(key); ok {
			return strings.TrimSpace(value)
		}
		return strings.TrimSpace(fileValues[key])
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         valueOrDefault(get("API_SERVER_PORT"), defaultPort),
			ReadTimeout:  durationOrDefault(get("API_SERVER_READ_TIMEOUT"), defaultReadTimeout),
			WriteTimeout: durationOrDefault(get("API_SERVER_WRITE_TIMEOUT"), defaultWriteTimeout),
			IdleTimeout:  durationOrDefault(get("API_SERVER_IDLE_TIMEOUT"), defaultIdleTimeout),
		},
		Firestore: FirestoreConfig{
			ProjectID:    get("API_FIRESTORE_PROJECT_ID"),
			EmulatorHost: get("API_FIRESTORE_EMULATOR_HOST"),
		},
		PSP: PSPConfig{
			StripeAPIKey:        get("API_PSP_STRIPE_API_KEY"),
			StripeWebhookSecret: get("API_PSP_STRIPE_WEBHOOK_SECRET"),
		},
		Shipping: ShippingConfig{
			Currency:                strings.ToUpper(valueOrDefault(get("API_SHIPPING_CURRENCY"), defaultCurrency)),
			DeliveryFeeMinorUnits:   int64OrDefault(get("API_SHIPPING_DELIVERY_FEE"), defaultDeliveryFee),
			FreeShippingThreshold:   int64OrDefault(get("API_SHIPPING_FREE_THRESHOLD"), defaultFreeShippingAbove),
			FreeShippingEnabled:     boolOrDefault(get("API_SHIPPING_FREE_ENABLED"), true),
			PriceToleranceMinorUnit: int64OrDefault(get("API_SHIPPING_PRICE_TOLERANCE"), defaultPriceTolerance),
		},
		Mail: MailConfig{
			BrevoAPIKey: get("API_MAIL_BREVO_API_KEY"),
			SenderEmail: get("API_MAIL_SENDER_EMAIL"),
			SenderName:  valueOrDefault(get("API_MAIL_SENDER_NAME"), defaultMailSenderName),
		},
		Events: EventsConfig{
			ProjectID:       valueOrDefault(get("API_EVENTS_PROJECT_ID"), get("API_FIRESTORE_PROJECT_ID")),
			OrderEventTopic: get("API_EVENTS_ORDER_TOPIC"),
		},
		Security: SecurityConfig{
			Environment:    valueOrDefault(get("API_SECURITY_ENVIRONMENT"), "local"),
			AdminJWTSecret: get("API_SECURITY_ADMIN_JWT_SECRET"),
			AdminCookie:    valueOrDefault(get("API_SECURITY_ADMIN_COOKIE"), defaultAdminCookieName),
			AdminAPIKey:    get("API_SECURITY_ADMIN_API_KEY"),
		},
		Idempotency: IdempotencyConfig{
			Header:           valueOrDefault(get("API_IDEMPOTENCY_HEADER"), defaultIdempotencyHeader),
			TTL:              durationOrDefault(get("API_IDEMPOTENCY_TTL"), defaultIdempotencyTTL),
			CleanupInterval:  durationOrDefault(get("API_IDEMPOTENCY_CLEANUP_INTERVAL"), defaultIdempotencyInterval),
			CleanupBatchSize: intOrDefault(get("API_IDEMPOTENCY_CLEANUP_BATCH"), defaultIdempotencyBatchSize),
		},
	}

	var missing []string
	if cfg.Firestore.ProjectID == "" {
		missing = append(missing, "Firestore.ProjectID")
	}
	if cfg.PSP.StripeAPIKey == "" {
		missing = append(missing, "PSP.StripeAPIKey")
	}
	if cfg.PSP.StripeWebhookSecret == "" {
		missing = append(missing, "PSP.StripeWebhookSecret")
	}
	if cfg.Shipping.DeliveryFeeMinorUnits < 0 {
		missing = append(missing, "Shipping.DeliveryFeeMinorUnits")
	}
	if cfg.Shipping.FreeShippingThreshold < 0 {
		missing = append(missing, "Shipping.FreeShippingThreshold")
	}
	if len(missing) > 0 {
		return Config{}, &ValidationError{fields: missing}
	}

	return cfg, nil
}

func readEnvFile(path string) map[string]string {
	values := make(map[string]string)
	if strings.TrimSpace(path) == "" {
		return values
	}
	file, err := os.Open(path)
	if err != nil {
		return values
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), `"`)
		if key == "" {
			continue
		}
		values[key] = value
	}
	return values
}

func valueOrDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func durationOrDefault(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func int64OrDefault(value string, fallback int64) int64 {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func intOrDefault(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func boolOrDefault(value string, fallback bool) bool {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
