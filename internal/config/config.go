package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Config holds runtime configuration values for the landing page server.
type Config struct {
	DBDriver      string
	DBPath        string
	DatabaseURL   string
	ServerPort    int
	LogLevel      string
	LogFile       string
	SentryDSN     string
	Environment   string
	ShutdownGrace time.Duration

	PublicBaseURL string
	JWTSecret     string
	JWTIssuer     string
	WebhookSecret string

	DirectoryURL     string
	DirectoryToken   string
	DirectoryTimeout time.Duration

	RedisAddr     string
	RedisPassword string

	AMQPURL   string
	AMQPQueue string

	Minio        MinioSettings
	AssetBaseURL string

	ResendAPIKey string
	NotifyFrom   string

	Branding  BrandingDefaults
	RateLimit RateLimitSettings
}

// MinioSettings configures the object store holding branding assets.
type MinioSettings struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Enabled reports whether an object store endpoint has been configured.
func (m MinioSettings) Enabled() bool {
	return m.Endpoint != ""
}

// BrandingDefaults are the site-wide fallbacks used when a portal has no override.
type BrandingDefaults struct {
	PrimaryColor       string
	SecondaryColor     string
	LogoRef            string
	BackgroundVideoRef string
}

// RateLimitSettings configures the per-client HTTP token bucket.
type RateLimitSettings struct {
	Burst             int
	RequestsPerSecond float64
	ClientTTL         time.Duration
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const (
	defaultDBDriver           = DriverSQLite
	defaultDBPath             = "./data/pagegen.db"
	defaultServerPort         = 8080
	defaultLogLevel           = "info"
	defaultEnvironment        = "development"
	defaultShutdownGrace      = 10 * time.Second
	defaultPublicBaseURL      = "http://localhost:8080"
	defaultJWTIssuer          = "pagegen"
	defaultDirectoryTimeout   = 3 * time.Second
	defaultAMQPQueue          = "pagegen.events"
	defaultMinioBucket        = "branding"
	defaultNotifyFrom         = "Landing Pages <noreply@localhost>"
	defaultPrimaryColor       = "#2563eb"
	defaultSecondaryColor     = "#2dd4da"
	defaultRateLimitBurst     = 30
	defaultRateLimitRPS       = 10.0
	defaultRateLimitClientTTL = 10 * time.Minute
)

// Load reads configuration values from environment variables, applying defaults where necessary.
func Load() (*Config, error) {
	cfg := &Config{
		DBDriver:      strings.ToLower(getEnv("DB_DRIVER", defaultDBDriver)),
		DBPath:        getEnv("DB_PATH", defaultDBPath),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		LogLevel:      getEnv("LOG_LEVEL", defaultLogLevel),
		LogFile:       os.Getenv("LOG_FILE"),
		SentryDSN:     os.Getenv("SENTRY_DSN"),
		Environment:   getEnv("ENV", defaultEnvironment),
		ShutdownGrace: defaultShutdownGrace,

		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", defaultPublicBaseURL), "/"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		JWTIssuer:     getEnv("JWT_ISSUER", defaultJWTIssuer),
		WebhookSecret: os.Getenv("WEBHOOK_SECRET"),

		DirectoryURL:   strings.TrimRight(os.Getenv("DIRECTORY_URL"), "/"),
		DirectoryToken: os.Getenv("DIRECTORY_TOKEN"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		AMQPURL:   os.Getenv("AMQP_URL"),
		AMQPQueue: getEnv("AMQP_QUEUE", defaultAMQPQueue),

		Minio: MinioSettings{
			Endpoint:  os.Getenv("MINIO_ENDPOINT"),
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			Bucket:    getEnv("MINIO_BUCKET", defaultMinioBucket),
		},
		AssetBaseURL: strings.TrimRight(os.Getenv("ASSET_BASE_URL"), "/"),

		ResendAPIKey: os.Getenv("RESEND_API_KEY"),
		NotifyFrom:   getEnv("NOTIFY_FROM", defaultNotifyFrom),

		Branding: BrandingDefaults{
			PrimaryColor:       getEnv("BRANDING_PRIMARY_COLOR", defaultPrimaryColor),
			SecondaryColor:     getEnv("BRANDING_SECONDARY_COLOR", defaultSecondaryColor),
			LogoRef:            os.Getenv("BRANDING_LOGO_REF"),
			BackgroundVideoRef: os.Getenv("BRANDING_BACKGROUND_VIDEO_REF"),
		},
		RateLimit: RateLimitSettings{ClientTTL: defaultRateLimitClientTTL},
	}

	switch cfg.DBDriver {
	case DriverSQLite:
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, eris.New("DATABASE_URL is required when DB_DRIVER is postgres")
		}
	default:
		return nil, eris.Errorf("invalid DB_DRIVER value: %s", cfg.DBDriver)
	}

	portValue := getEnv("SERVER_PORT", strconv.Itoa(defaultServerPort))
	port, err := strconv.Atoi(portValue)
	if err != nil {
		return nil, eris.Wrapf(err, "invalid SERVER_PORT value: %s", portValue)
	}
	cfg.ServerPort = port

	timeoutValue := getEnv("DIRECTORY_TIMEOUT", defaultDirectoryTimeout.String())
	timeout, err := time.ParseDuration(timeoutValue)
	if err != nil {
		return nil, eris.Wrapf(err, "invalid DIRECTORY_TIMEOUT value: %s", timeoutValue)
	}
	if timeout <= 0 {
		return nil, eris.Errorf("invalid DIRECTORY_TIMEOUT value: %s", timeoutValue)
	}
	cfg.DirectoryTimeout = timeout

	sslValue := getEnv("MINIO_USE_SSL", "false")
	useSSL, err := strconv.ParseBool(sslValue)
	if err != nil {
		return nil, eris.Wrapf(err, "invalid MINIO_USE_SSL value: %s", sslValue)
	}
	cfg.Minio.UseSSL = useSSL

	burstValue := getEnv("RATE_LIMIT_BURST", strconv.Itoa(defaultRateLimitBurst))
	burst, err := strconv.Atoi(burstValue)
	if err != nil || burst <= 0 {
		return nil, eris.Errorf("invalid RATE_LIMIT_BURST value: %s", burstValue)
	}
	cfg.RateLimit.Burst = burst

	rpsValue := getEnv("RATE_LIMIT_RPS", strconv.FormatFloat(defaultRateLimitRPS, 'f', -1, 64))
	rps, err := strconv.ParseFloat(rpsValue, 64)
	if err != nil || rps <= 0 {
		return nil, eris.Errorf("invalid RATE_LIMIT_RPS value: %s", rpsValue)
	}
	cfg.RateLimit.RequestsPerSecond = rps

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
