package configuration

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/211-Connect/silobuster-resources/pkg/logging"
)

const Production = "production"

var singleton = sync.OnceValue(func() *Configuration {
	c, err := New([]string{".env", ".env.local"})
	if err != nil {
		panic(err)
	}
	return c
})

func LoadEnv(envFiles []string) (int, error) {
	existingFiles := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if path, ok := findEnvFile(file); ok {
			existingFiles = append(existingFiles, path)
		}
	}

	if len(existingFiles) == 0 {
		return 0, nil
	}

	return len(existingFiles), godotenv.Load(existingFiles...)
}

// findEnvFile looks for file in the working directory first and then walks up
// to the nearest directory holding a go.mod.
func findEnvFile(file string) (string, bool) {
	if fileExists(file) {
		return file, true
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for dir := wd; ; {
		if fileExists(filepath.Join(dir, "go.mod")) {
			candidate := filepath.Join(dir, file)
			return candidate, fileExists(candidate)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

type DatabaseOptions struct {
	Opts     string `env:"-"`
	Name     string `env:"DB_NAME" envDefault:"directory"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
}

func (d *DatabaseOptions) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.Password, d.SSLMode,
	)
}

// RelationalOptions points at the operational store holding the translation
// tables. An empty DSN reuses the target database.
type RelationalOptions struct {
	DSN string `env:"RELATIONAL_DSN"`
}

type WarehouseOptions struct {
	Project         string `env:"BIGQUERY_PROJECT"`
	Dataset         string `env:"BIGQUERY_DATASET"`
	CredentialsFile string `env:"BIGQUERY_CREDENTIALS_FILE"`
	Location        string `env:"BIGQUERY_LOCATION"`
}

func (w *WarehouseOptions) Validate() error {
	if strings.TrimSpace(w.Project) == "" {
		return fmt.Errorf("BIGQUERY_PROJECT is required")
	}
	if strings.TrimSpace(w.Dataset) == "" {
		return fmt.Errorf("BIGQUERY_DATASET is required")
	}
	return nil
}

type SyncOptions struct {
	TenantID         string        `env:"DIRECTORY_TENANT_ID"`
	MappingPath      string        `env:"MAPPING_PATH"`
	FetchTimeout     time.Duration `env:"FETCH_TIMEOUT" envDefault:"5m"`
	FetchAttempts    int           `env:"FETCH_ATTEMPTS" envDefault:"3"`
	FetchMaxBackoff  time.Duration `env:"FETCH_MAX_BACKOFF" envDefault:"30s"`
	FetchConcurrency int           `env:"FETCH_CONCURRENCY" envDefault:"8"`
	WriteRPS         int           `env:"WRITE_RPS" envDefault:"0"`
}

func (s *SyncOptions) Validate() error {
	if s.FetchAttempts < 1 {
		return fmt.Errorf("FETCH_ATTEMPTS must be at least 1, got %d", s.FetchAttempts)
	}
	if s.FetchConcurrency < 1 {
		return fmt.Errorf("FETCH_CONCURRENCY must be at least 1, got %d", s.FetchConcurrency)
	}
	if s.WriteRPS < 0 {
		return fmt.Errorf("WRITE_RPS must be non-negative, got %d", s.WriteRPS)
	}
	if s.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT must be positive, got %s", s.FetchTimeout)
	}
	if raw := strings.TrimSpace(s.TenantID); raw != "" {
		if _, err := uuid.Parse(raw); err != nil {
			return fmt.Errorf("invalid DIRECTORY_TENANT_ID=%q: %w", s.TenantID, err)
		}
	}
	return nil
}

type QuarantineOptions struct {
	Dir    string `env:"QUARANTINE_DIR" envDefault:"./quarantine"`
	Format string `env:"QUARANTINE_FORMAT" envDefault:"csv"` // csv or xlsx
	Bucket string `env:"QUARANTINE_BUCKET"`
}

func (q *QuarantineOptions) Validate() error {
	switch q.Format {
	case "csv", "xlsx":
	default:
		return fmt.Errorf("QUARANTINE_FORMAT must be 'csv' or 'xlsx', got '%s'", q.Format)
	}
	return nil
}

type MinioOptions struct {
	Endpoint  string `env:"MINIO_ENDPOINT"`
	AccessKey string `env:"MINIO_ACCESS_KEY"`
	SecretKey string `env:"MINIO_SECRET_KEY"`
	Region    string `env:"MINIO_REGION"`
	UseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"true"`
}

type RunLockOptions struct {
	Backend  string        `env:"RUN_LOCK_BACKEND" envDefault:"postgres"` // postgres, redis or none
	RedisURL string        `env:"REDIS_URL" envDefault:"localhost:6379"`
	TTL      time.Duration `env:"RUN_LOCK_TTL" envDefault:"2h"`
}

func (r *RunLockOptions) Validate() error {
	switch r.Backend {
	case "postgres", "none":
	case "redis":
		if r.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when RUN_LOCK_BACKEND is 'redis'")
		}
	default:
		return fmt.Errorf("RUN_LOCK_BACKEND must be 'postgres', 'redis' or 'none', got '%s'", r.Backend)
	}
	return nil
}

type OpenTelemetryOptions struct {
	Enabled     bool   `env:"OTEL_ENABLED" envDefault:"false"`
	TempoURL    string `env:"OTEL_TEMPO_URL" envDefault:"localhost:4318"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"directory-sync"`
}

type PrometheusOptions struct {
	PushgatewayURL string `env:"PROMETHEUS_PUSHGATEWAY_URL"`
	Job            string `env:"PROMETHEUS_JOB" envDefault:"directory_sync"`
}

type Configuration struct {
	Database      DatabaseOptions
	Relational    RelationalOptions
	Warehouse     WarehouseOptions
	Sync          SyncOptions
	Quarantine    QuarantineOptions
	Minio         MinioOptions
	RunLock       RunLockOptions
	OpenTelemetry OpenTelemetryOptions
	Prometheus    PrometheusOptions

	GoAppEnvironment string `env:"GO_APP_ENV" envDefault:"development"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`
	LogPath          string `env:"LOG_PATH"`

	logFile *os.File
	logger  *logrus.Logger
}

// New loads env files, parses the environment and builds the logger.
func New(envFiles []string) (*Configuration, error) {
	c := &Configuration{}
	if err := c.load(envFiles); err != nil {
		c.Unload()
		return nil, err
	}
	return c, nil
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch c.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.ErrorLevel
	}
}

// RelationalDSN returns the operational store DSN, falling back to the
// target database.
func (c *Configuration) RelationalDSN() string {
	if dsn := strings.TrimSpace(c.Relational.DSN); dsn != "" {
		return dsn
	}
	return c.Database.Opts
}

func Use() *Configuration {
	return singleton()
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 {
		wd, _ := os.Getwd()
		log.Println("No .env files found. Tried:")
		for _, file := range envFiles {
			log.Println(filepath.Join(wd, file))
		}
	}
	if err := env.Parse(c); err != nil {
		return err
	}

	if err := c.Sync.Validate(); err != nil {
		return fmt.Errorf("sync configuration error: %w", err)
	}
	if err := c.Quarantine.Validate(); err != nil {
		return fmt.Errorf("quarantine configuration error: %w", err)
	}
	if err := c.RunLock.Validate(); err != nil {
		return fmt.Errorf("run lock configuration error: %w", err)
	}

	f, logger, err := logging.FileLogger(c.LogrusLogLevel(), c.LogPath)
	if err != nil {
		return err
	}
	c.logFile = f
	c.logger = logger

	c.Database.Opts = c.Database.ConnectionString()
	return nil
}

// Unload handles a graceful shutdown.
func (c *Configuration) Unload() {
	if c.logFile != nil {
		if err := c.logFile.Close(); err != nil {
			log.Printf("Failed to close log file: %v", err)
		}
		c.logFile = nil
	}
}
