package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	// Input and Output are storage roots, e.g. s3a://bucket/prefix/ or a
	// local directory.
	Input       string
	Output      string
	SongPattern string
	LogPattern  string

	CredentialsFile string
	AWS             AWSConfig

	SnowflakeNode  int64
	PushgatewayURL string
	OTLPEndpoint   string

	RunLogEnabled     bool
	DBMetricsEnabled  bool
	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
}

type AWSConfig struct {
	Region          string
	Endpoint        string
	ForcePathStyle  bool
	AccessKeyID     string
	SecretAccessKey string
}

// Load loads configuration from environment variables, the .env file and
// the credentials file.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		AppName:         getenv("APP_SERVICE", "songlake"),
		AppVersion:      getenv("APP_VERSION", "0.1.0"),
		Environment:     getenv("ENVIRONMENT", "development"),
		Input:           getenv("SONGLAKE_INPUT", "s3a://udacity-dend/"),
		Output:          getenv("SONGLAKE_OUTPUT", "./output"),
		SongPattern:     getenv("SONGLAKE_SONG_PATTERN", "song_data/*/*/*/*.json"),
		LogPattern:      getenv("SONGLAKE_LOG_PATTERN", "log_data/*/*/*-events.json"),
		CredentialsFile: getenv("SONGLAKE_CREDENTIALS_FILE", "dl.cfg"),
		AWS: AWSConfig{
			Region:         getenv("AWS_REGION", "us-west-2"),
			Endpoint:       strings.TrimSpace(getenv("AWS_S3_ENDPOINT", "")),
			ForcePathStyle: getenvBool("AWS_S3_FORCE_PATH_STYLE", false),
		},
		SnowflakeNode:     getenvInt64("SNOWFLAKE_NODE", 1),
		PushgatewayURL:    strings.TrimSpace(getenv("PUSHGATEWAY_URL", "")),
		OTLPEndpoint:      getenv("OTLP_ENDPOINT", "localhost:4317"),
		RunLogEnabled:     getenvBool("RUNLOG_ENABLED", true),
		DBMetricsEnabled:  getenvBool("DATABASE_METRICS_ENABLED", false),
		DBType:            getenv("DATABASE_TYPE", "sqlite"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "songlake.db"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 2)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 4)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 300)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 60)),
	}

	creds, err := LoadCredentials(cfg.CredentialsFile)
	if err != nil {
		return cfg, err
	}
	cfg.AWS.AccessKeyID = getenv("AWS_ACCESS_KEY_ID", creds.AccessKeyID)
	cfg.AWS.SecretAccessKey = getenv("AWS_SECRET_ACCESS_KEY", creds.SecretAccessKey)

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}
