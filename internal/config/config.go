package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by ETL_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("ETL_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Missing files are fine; the environment may already be populated.
	_ = godotenv.Load(envFile)
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

// DatabaseURL is a direct connection string for local runs. When set it
// takes precedence over DBSecretID.
func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

func DBSecretID() string {
	return getOr("DB_SECRET_ID", "qivr/analytics/readonly-db")
}

func DataLakeBucket() string {
	return getOr("DATA_LAKE_BUCKET", "qivr-analytics-data-lake")
}

// OutputPrefix is prepended to every object key. Empty by default.
func OutputPrefix() string {
	return strings.Trim(os.Getenv("OUTPUT_PREFIX"), "/")
}

func LookbackDays() int {
	return positiveInt("LOOKBACK_DAYS", 30)
}

// KAnonymityThreshold defaults to 10.
func KAnonymityThreshold() int {
	return positiveInt("K_ANONYMITY_THRESHOLD", 10)
}

func PseudonymSalt() string {
	return os.Getenv("PSEUDONYM_SALT")
}

func PseudonymSaltSecretID() string {
	return os.Getenv("PSEUDONYM_SALT_SECRET_ID")
}

// AgeBracketScheme is standard or adult.
func AgeBracketScheme() string {
	return strings.ToLower(getOr("AGE_BRACKET_SCHEME", "standard"))
}

// OutcomesMode is aggregate or individual.
func OutcomesMode() string {
	return strings.ToLower(getOr("OUTCOMES_MODE", "aggregate"))
}

// OutputFormat is parquet or ndjson.
func OutputFormat() string {
	return strings.ToLower(getOr("OUTPUT_FORMAT", "parquet"))
}

// OutputCompression is none or snappy; it applies to ndjson output only.
func OutputCompression() string {
	return strings.ToLower(getOr("OUTPUT_COMPRESSION", "none"))
}

func StatementTimeout() time.Duration {
	d, err := time.ParseDuration(os.Getenv("STATEMENT_TIMEOUT"))
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

func ParallelDomains() bool {
	v, err := strconv.ParseBool(os.Getenv("PARALLEL_DOMAINS"))
	return err == nil && v
}

func PushgatewayURL() string {
	return os.Getenv("PUSHGATEWAY_URL")
}

func AWSRegion() string {
	return getOr("AWS_REGION", "ap-southeast-2")
}

// S3Endpoint overrides the S3 endpoint for S3-compatible stores such as MinIO.
func S3Endpoint() string {
	return os.Getenv("S3_ENDPOINT")
}

// TriggerToken is the bearer token required by POST /v1/runs.
func TriggerToken() string {
	return os.Getenv("TRIGGER_TOKEN")
}

// RateLimitRPS returns requests per second limit.
// Defaults to 5 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 5
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 10 if not set.
func RateLimitBurst() int {
	return positiveInt("RATE_LIMIT_BURST", 10)
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set, or "debug" with LOG_DEV=1.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		if LogDev() {
			return "debug"
		}
		return "info"
	}
	return level
}

func LogDev() bool {
	return os.Getenv("LOG_DEV") == "1"
}

func getOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func positiveInt(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
