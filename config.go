package sweet

import (
	"strings"
	"time"
)

// Config holds every setting of the schema service.
type Config struct {
	Database   DatabaseConfig   `json:"database" yaml:"database" envPrefix:"DB_"`
	SQLite     SQLiteConfig     `json:"sqlite" yaml:"sqlite" envPrefix:"SQLITE_"`
	DuckDB     DuckDBConfig     `json:"duckdb" yaml:"duckdb" envPrefix:"DUCKDB_"`
	MetaSchema MetaSchemaConfig `json:"metaSchema" yaml:"metaSchema" envPrefix:"METASCHEMA_"`
	Storage    StorageConfig    `json:"storage" yaml:"storage" envPrefix:"STORAGE_"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging" envPrefix:"LOG_"`
	Metrics    MetricsConfig    `json:"metrics" yaml:"metrics" envPrefix:"METRICS_"`
	Server     ServerConfig     `json:"server" yaml:"server" envPrefix:"SERVER_"`
}

// DatabaseConfig selects the dialect and, for PostgreSQL, the connection settings.
type DatabaseConfig struct {
	Dialect         string        `json:"dialect" yaml:"dialect" env:"DIALECT"`
	Driver          string        `json:"driver" yaml:"driver" env:"DRIVER"` // pgx or pq
	Host            string        `json:"host" yaml:"host" env:"HOST"`
	Port            int           `json:"port" yaml:"port" env:"PORT"`
	Database        string        `json:"database" yaml:"database" env:"NAME"`
	Username        string        `json:"username" yaml:"username" env:"USER"`
	Password        string        `json:"password" yaml:"password" env:"PASSWORD"`
	SSLMode         string        `json:"sslMode" yaml:"sslMode" env:"SSL_MODE"`
	MaxConnections  int           `json:"maxConnections" yaml:"maxConnections" env:"MAX_CONNECTIONS"`
	MaxIdleConns    int           `json:"maxIdleConns" yaml:"maxIdleConns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime" yaml:"connMaxLifetime" env:"CONN_MAX_LIFETIME"`
	ConnMaxIdleTime time.Duration `json:"connMaxIdleTime" yaml:"connMaxIdleTime" env:"CONN_MAX_IDLE_TIME"`
	Timeout         time.Duration `json:"timeout" yaml:"timeout" env:"TIMEOUT"`
	SchemaTable     string        `json:"schemaTable" yaml:"schemaTable" env:"SCHEMA_TABLE"`
	// IAMAuth replaces the password with an Aurora DSQL IAM token on every connect.
	IAMAuth bool   `json:"iamAuth" yaml:"iamAuth" env:"IAM_AUTH"`
	Region  string `json:"region" yaml:"region" env:"REGION"`
}

// SQLiteConfig contains settings for the embedded dialect.
type SQLiteConfig struct {
	Path        string        `json:"path" yaml:"path" env:"PATH"`
	BusyTimeout time.Duration `json:"busyTimeout" yaml:"busyTimeout" env:"BUSY_TIMEOUT"`
}

// DuckDBConfig contains settings for the DuckDB dialect.
type DuckDBConfig struct {
	Path           string `json:"path" yaml:"path" env:"PATH"` // empty means in-memory
	MemoryLimitMB  int    `json:"memoryLimitMB" yaml:"memoryLimitMB" env:"MEMORY_LIMIT_MB"`
	MaxParallelism int    `json:"maxParallelism" yaml:"maxParallelism" env:"MAX_PARALLELISM"`
	MaxConnections int    `json:"maxConnections" yaml:"maxConnections" env:"MAX_CONNECTIONS"`
}

// MetaSchemaConfig points at custom meta-schemas. Empty values use the
// embedded Frictionless base and SWEET extension.
type MetaSchemaConfig struct {
	BasePath       string   `json:"basePath" yaml:"basePath" env:"BASE_PATH"`
	ExtensionPaths []string `json:"extensionPaths" yaml:"extensionPaths" env:"EXTENSION_PATHS"`
	// DisableDefaultExtension validates against the base only when no
	// extension paths are configured.
	DisableDefaultExtension bool `json:"disableDefaultExtension" yaml:"disableDefaultExtension" env:"DISABLE_DEFAULT_EXTENSION"`
}

// StorageConfig configures the archive of raw schema uploads.
type StorageConfig struct {
	Backend         string `json:"backend" yaml:"backend" env:"BACKEND"` // none, local or s3
	LocalPath       string `json:"localPath" yaml:"localPath" env:"LOCAL_PATH"`
	Prefix          string `json:"prefix" yaml:"prefix" env:"PREFIX"`
	Bucket          string `json:"bucket" yaml:"bucket" env:"BUCKET"`
	Region          string `json:"region" yaml:"region" env:"REGION"`
	Endpoint        string `json:"endpoint" yaml:"endpoint" env:"ENDPOINT"`
	AccessKeyID     string `json:"accessKeyId" yaml:"accessKeyId" env:"ACCESS_KEY_ID"`
	SecretAccessKey string `json:"secretAccessKey" yaml:"secretAccessKey" env:"SECRET_ACCESS_KEY"`
	UsePathStyle    bool   `json:"usePathStyle" yaml:"usePathStyle" env:"USE_PATH_STYLE"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `json:"level" yaml:"level" env:"LEVEL"`
	Format     string `json:"format" yaml:"format" env:"FORMAT"` // json or console
	File       string `json:"file" yaml:"file" env:"FILE"`
	MaxSizeMB  int    `json:"maxSizeMB" yaml:"maxSizeMB" env:"MAX_SIZE_MB"`
	MaxBackups int    `json:"maxBackups" yaml:"maxBackups" env:"MAX_BACKUPS"`
	MaxAgeDays int    `json:"maxAgeDays" yaml:"maxAgeDays" env:"MAX_AGE_DAYS"`
	Compress   bool   `json:"compress" yaml:"compress" env:"COMPRESS"`
}

// MetricsConfig contains metrics collection settings
type MetricsConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled" env:"ENABLED"`
	Namespace string `json:"namespace" yaml:"namespace" env:"NAMESPACE"`
	Path      string `json:"path" yaml:"path" env:"PATH"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port            string        `json:"port" yaml:"port" env:"PORT"`
	ReadTimeout     time.Duration `json:"readTimeout" yaml:"readTimeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `json:"writeTimeout" yaml:"writeTimeout" env:"WRITE_TIMEOUT"`
	MaxUploadBytes  int64         `json:"maxUploadBytes" yaml:"maxUploadBytes" env:"MAX_UPLOAD_BYTES"`
	DefaultIDColumn string        `json:"defaultIdColumn" yaml:"defaultIdColumn" env:"DEFAULT_ID_COLUMN"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Dialect:         string(DialectSQLite),
			Driver:          "pgx",
			Host:            "localhost",
			Port:            5432,
			Database:        "sweet",
			Username:        "postgres",
			SSLMode:         "disable",
			MaxConnections:  25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			Timeout:         30 * time.Second,
			SchemaTable:     "sweet_schemas",
		},
		SQLite: SQLiteConfig{
			Path:        "sweet.db",
			BusyTimeout: 5 * time.Second,
		},
		DuckDB: DuckDBConfig{
			MaxConnections: 1,
		},
		Storage: StorageConfig{
			Backend:   "none",
			LocalPath: "data/schemas",
			Prefix:    "schemas/",
			Region:    "us-east-1",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
			Compress:   true,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "sweet",
			Path:      "/metrics",
		},
		Server: ServerConfig{
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			MaxUploadBytes:  10 << 20,
			DefaultIDColumn: "id_",
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	dialect, err := ParseDialect(c.Database.Dialect)
	if err != nil {
		return &ConfigError{Field: "database.dialect", Message: "must be one of sqlite, postgresql, duckdb"}
	}

	if c.Database.SchemaTable == "" {
		return &ConfigError{Field: "database.schemaTable", Message: "must not be empty"}
	}

	switch dialect {
	case DialectPostgreSQL:
		if c.Database.Driver != "pgx" && c.Database.Driver != "pq" {
			return &ConfigError{Field: "database.driver", Message: "must be pgx or pq"}
		}
		if c.Database.Host == "" {
			return &ConfigError{Field: "database.host", Message: "is required"}
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			return &ConfigError{Field: "database.port", Message: "must be a valid TCP port"}
		}
		if c.Database.MaxConnections <= 0 {
			return &ConfigError{Field: "database.maxConnections", Message: "must be greater than 0"}
		}
		if c.Database.IAMAuth && c.Database.Region == "" {
			return &ConfigError{Field: "database.region", Message: "is required when iamAuth is enabled"}
		}
	case DialectSQLite:
		if c.SQLite.Path == "" {
			return &ConfigError{Field: "sqlite.path", Message: "must not be empty"}
		}
	case DialectDuckDB:
		if c.DuckDB.MaxConnections < 1 {
			return &ConfigError{Field: "duckdb.maxConnections", Message: "must be at least 1"}
		}
		if c.DuckDB.MemoryLimitMB < 0 {
			return &ConfigError{Field: "duckdb.memoryLimitMB", Message: "must be >= 0"}
		}
	}

	switch c.Storage.Backend {
	case "", "none":
	case "local":
		if c.Storage.LocalPath == "" {
			return &ConfigError{Field: "storage.localPath", Message: "is required for the local backend"}
		}
	case "s3":
		if c.Storage.Bucket == "" {
			return &ConfigError{Field: "storage.bucket", Message: "is required for the s3 backend"}
		}
		if (c.Storage.AccessKeyID == "") != (c.Storage.SecretAccessKey == "") {
			return &ConfigError{Field: "storage.accessKeyId", Message: "accessKeyId and secretAccessKey must be set together"}
		}
	default:
		return &ConfigError{Field: "storage.backend", Message: "must be none, local or s3"}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return &ConfigError{Field: "logging.level", Message: "must be debug, info, warn or error"}
	}

	if c.Server.MaxUploadBytes <= 0 {
		return &ConfigError{Field: "server.maxUploadBytes", Message: "must be greater than 0"}
	}

	return nil
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ConfigError) Error() string {
	return "config validation error for field '" + e.Field + "': " + e.Message
}
