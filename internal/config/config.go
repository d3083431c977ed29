package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"

	ArchiveNone = "none"
	ArchiveFS   = "fs"
	ArchiveS3   = "s3"

	RetentionKeep   = "keep"
	RetentionDelete = "delete"
)

type Config struct {
	DB       *DBconfig
	RabbitMq *RabbitMqconfig
	Srv      *Serviceconfig
	App      *Appconfig
	Log      *Loggerconfig
	Store    *Storeconfig
	Sweep    *Sweepconfig
	Archive  *Archiveconfig
	Tracing  *Tracingconfig
}

type DBconfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	MaxConns int    `yaml:"max_conns"`
}

type RabbitMqconfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	VHost    string `yaml:"vhost"`
}

type Serviceconfig struct {
	RequestServicePort string `yaml:"request_service"`
}

type Appconfig struct {
	PublicJwtSecret string `yaml:"public_jwt_secret"`
	HospitalsFile   string `yaml:"hospitals_file"`
}

type Loggerconfig struct {
	Level string `yaml:"level"`
}

type Storeconfig struct {
	Driver     string `yaml:"driver"`
	SQLitePath string `yaml:"sqlite_path"`
}

type Sweepconfig struct {
	Interval          time.Duration `yaml:"interval"`
	TrackingInterval  time.Duration `yaml:"tracking_interval"`
	ExpiredRetention  string        `yaml:"expired_retention"`
	MaxAvailableKm    float64       `yaml:"max_available_km"`
	MaxEligibleDonors int           `yaml:"max_eligible_donors"`
}

type Archiveconfig struct {
	Driver    string `yaml:"driver"`
	Dir       string `yaml:"dir"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

type Tracingconfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

func New() (*Config, error) {
	getEnv := func(key, def string) string {
		val := os.Getenv(key)
		if val == "" {
			return def
		}
		return val
	}

	getEnvInt := func(key string, def int) int {
		valStr := os.Getenv(key)
		if valStr == "" {
			return def
		}
		val, err := strconv.Atoi(valStr)
		if err != nil {
			fmt.Printf("cannot parse %s, using default %v\n", key, def)
			return def
		}
		return val
	}

	getEnvBool := func(key string, def bool) bool {
		valStr := os.Getenv(key)
		if valStr == "" {
			return def
		}
		val, err := strconv.ParseBool(valStr)
		if err != nil {
			fmt.Printf("cannot parse %s, using default %v\n", key, def)
			return def
		}
		return val
	}

	getEnvFloat := func(key string, def float64) float64 {
		valStr := os.Getenv(key)
		if valStr == "" {
			return def
		}
		val, err := strconv.ParseFloat(valStr, 64)
		if err != nil {
			fmt.Printf("cannot parse %s, using default %v\n", key, def)
			return def
		}
		return val
	}

	getEnvDuration := func(key string, def time.Duration) time.Duration {
		valStr := os.Getenv(key)
		if valStr == "" {
			return def
		}
		val, err := time.ParseDuration(valStr)
		if err != nil {
			fmt.Printf("cannot parse %s, using default %v\n", key, def)
			return def
		}
		return val
	}

	cnf := &Config{
		DB: &DBconfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "bloodlink_user"),
			Password: getEnv("DB_PASSWORD", "bloodlink_pass"),
			Database: getEnv("DB_NAME", "bloodlink_db"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 10),
		},
		RabbitMq: &RabbitMqconfig{
			Enabled:  getEnvBool("RABBITMQ_ENABLED", true),
			Host:     getEnv("RABBITMQ_HOST", "localhost"),
			Port:     getEnvInt("RABBITMQ_PORT", 5672),
			User:     getEnv("RABBITMQ_USER", "guest"),
			Password: getEnv("RABBITMQ_PASSWORD", "guest"),
			VHost:    getEnv("RABBITMQ_VHOST", ""),
		},
		Srv: &Serviceconfig{
			RequestServicePort: getEnv("REQUEST_SERVICE_PORT", "3000"),
		},
		App: &Appconfig{
			PublicJwtSecret: getEnv("JWT_SECRET", "supersecret"),
			HospitalsFile:   getEnv("HOSPITALS_FILE", "hospitals.json"),
		},
		Log: &Loggerconfig{
			Level: getEnv("LOG_LEVEL", "INFO"),
		},
		Store: &Storeconfig{
			Driver:     strings.ToLower(getEnv("STORE_DRIVER", StorePostgres)),
			SQLitePath: getEnv("SQLITE_PATH", "data/bloodlink.db"),
		},
		Sweep: &Sweepconfig{
			Interval:          getEnvDuration("SWEEP_INTERVAL", 5*time.Minute),
			TrackingInterval:  getEnvDuration("TRACKING_SWEEP_INTERVAL", 30*time.Second),
			ExpiredRetention:  strings.ToLower(getEnv("EXPIRED_RETENTION", RetentionKeep)),
			MaxAvailableKm:    getEnvFloat("MAX_AVAILABLE_KM", 15),
			MaxEligibleDonors: getEnvInt("MAX_ELIGIBLE_DONORS", 50),
		},
		Archive: &Archiveconfig{
			Driver:    strings.ToLower(getEnv("ARCHIVE_DRIVER", ArchiveNone)),
			Dir:       getEnv("ARCHIVE_DIR", "data/archive"),
			Bucket:    getEnv("ARCHIVE_S3_BUCKET", ""),
			Region:    getEnv("ARCHIVE_S3_REGION", "us-east-1"),
			Endpoint:  getEnv("ARCHIVE_S3_ENDPOINT", ""),
			PathStyle: getEnvBool("ARCHIVE_S3_PATH_STYLE", false),
		},
		Tracing: &Tracingconfig{
			Enabled:     getEnvBool("TRACING_ENABLED", false),
			ServiceName: getEnv("TRACING_SERVICE_NAME", "request-service"),
			SampleRatio: getEnvFloat("TRACING_SAMPLE_RATIO", 1),
		},
	}

	if err := cnf.validate(); err != nil {
		return nil, err
	}
	return cnf, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case StoreMemory, StoreSQLite, StorePostgres:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	switch c.Archive.Driver {
	case ArchiveNone, ArchiveFS:
	case ArchiveS3:
		if c.Archive.Bucket == "" {
			return fmt.Errorf("ARCHIVE_S3_BUCKET required for s3 archive")
		}
	default:
		return fmt.Errorf("unknown ARCHIVE_DRIVER %q", c.Archive.Driver)
	}
	switch c.Sweep.ExpiredRetention {
	case RetentionKeep, RetentionDelete:
	default:
		return fmt.Errorf("unknown EXPIRED_RETENTION %q", c.Sweep.ExpiredRetention)
	}
	if c.Sweep.Interval <= 0 || c.Sweep.TrackingInterval <= 0 {
		return fmt.Errorf("sweep intervals must be positive")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("TRACING_SAMPLE_RATIO must be in [0, 1]")
	}
	return nil
}
