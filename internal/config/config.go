package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tiendc/go-deepcopy"
)

// Config represents the application configuration
type Config struct {
	Log     LogConfig
	Server  ServerConfig
	Save    SaveConfig
	Codec   CodecConfig
	Cloud   CloudConfig
	Schema  SchemaConfig
	Watch   WatchConfig
	Metrics MetricsConfig
	Tracing TracingConfig
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level  string
	Format string
}

// ServerConfig contains admin HTTP server configuration
type ServerConfig struct {
	Host string
	Port int
}

// SaveConfig contains save file and lifecycle configuration
type SaveConfig struct {
	Path                string
	BackupDir           string // empty means "backups" next to the save file
	MaxBackupFiles      int
	CreateBackup        bool
	SyncWrites          bool
	DefaultVersion      string // version assumed when a document carries none
	TargetVersion       string
	AutoMigrate         bool
	BackupBeforeMigrate bool
	LoadFromCloud       bool
	FlushInterval       time.Duration // background flush period in serve mode; 0 disables
}

// CodecConfig contains compression and encryption configuration
type CodecConfig struct {
	Compression      bool
	CompressionLevel int
	Encryption       bool
	Key              string // raw bytes, or "base64:" followed by base64
	RandomIV         bool
}

// CloudConfig contains remote slot configuration
type CloudConfig struct {
	Enabled         bool
	Backend         string // "memory", "badger", "gcs"
	DataDir         string
	Bucket          string
	Prefix          string
	CredentialsFile string
	Key             string
	PushOnSave      bool
	RetryMax        int
	RetryInitial    time.Duration
	SyncInterval    time.Duration // background sync period in serve mode; 0 disables
	GCInterval      time.Duration // badger slot value log GC period in serve mode; 0 disables
}

// SchemaConfig contains schema rule configuration
type SchemaConfig struct {
	Builtins   bool
	RulesFiles []string
}

// WatchConfig contains observer configuration
type WatchConfig struct {
	BufferSize  int
	MaxWatchers int
}

// MetricsConfig contains Prometheus configuration
type MetricsConfig struct {
	Enabled bool
}

// TracingConfig contains OpenTelemetry tracing configuration
type TracingConfig struct {
	Enabled        bool
	Endpoint       string
	ServiceName    string
	ServiceVersion string
	Environment    string
	SamplingRatio  float64
	InsecureConn   bool
}

// Load loads configuration from environment variables with defaults
func Load() (*Config, error) {
	config := &Config{
		Log: LogConfig{
			Level:  getEnvString("SAVEKIT_LOG_LEVEL", "info"),
			Format: getEnvString("SAVEKIT_LOG_FORMAT", "text"),
		},
		Server: ServerConfig{
			Host: getEnvString("SAVEKIT_HOST", "127.0.0.1"),
			Port: getEnvInt("SAVEKIT_PORT", 8787),
		},
		Save: SaveConfig{
			Path:                getEnvString("SAVEKIT_SAVE_PATH", "./saves/progress.sav"),
			BackupDir:           getEnvString("SAVEKIT_BACKUP_DIR", ""),
			MaxBackupFiles:      getEnvInt("SAVEKIT_MAX_BACKUP_FILES", 5),
			CreateBackup:        getEnvBool("SAVEKIT_CREATE_BACKUP", true),
			SyncWrites:          getEnvBool("SAVEKIT_SYNC_WRITES", true),
			DefaultVersion:      getEnvString("SAVEKIT_DEFAULT_VERSION", "1.0.0"),
			TargetVersion:       getEnvString("SAVEKIT_TARGET_VERSION", "1.0.0"),
			AutoMigrate:         getEnvBool("SAVEKIT_AUTO_MIGRATE", true),
			BackupBeforeMigrate: getEnvBool("SAVEKIT_BACKUP_BEFORE_MIGRATE", true),
			LoadFromCloud:       getEnvBool("SAVEKIT_LOAD_FROM_CLOUD", true),
			FlushInterval:       getEnvDuration("SAVEKIT_FLUSH_INTERVAL", 30*time.Second),
		},
		Codec: CodecConfig{
			Compression:      getEnvBool("SAVEKIT_COMPRESSION", true),
			CompressionLevel: getEnvInt("SAVEKIT_COMPRESSION_LEVEL", -1),
			Encryption:       getEnvBool("SAVEKIT_ENCRYPTION", false),
			Key:              getEnvString("SAVEKIT_ENCRYPTION_KEY", ""),
			RandomIV:         getEnvBool("SAVEKIT_RANDOM_IV", false),
		},
		Cloud: CloudConfig{
			Enabled:         getEnvBool("SAVEKIT_CLOUD_ENABLED", false),
			Backend:         getEnvString("SAVEKIT_CLOUD_BACKEND", "badger"),
			DataDir:         getEnvString("SAVEKIT_CLOUD_DATA_DIR", "./cloud"),
			Bucket:          getEnvString("SAVEKIT_CLOUD_BUCKET", ""),
			Prefix:          getEnvString("SAVEKIT_CLOUD_PREFIX", ""),
			CredentialsFile: getEnvString("SAVEKIT_CLOUD_CREDENTIALS_FILE", ""),
			Key:             getEnvString("SAVEKIT_CLOUD_KEY", "player_save"),
			PushOnSave:      getEnvBool("SAVEKIT_CLOUD_PUSH_ON_SAVE", true),
			RetryMax:        getEnvInt("SAVEKIT_CLOUD_RETRY_MAX", 3),
			RetryInitial:    getEnvDuration("SAVEKIT_CLOUD_RETRY_INITIAL", 200*time.Millisecond),
			SyncInterval:    getEnvDuration("SAVEKIT_CLOUD_SYNC_INTERVAL", 0),
			GCInterval:      getEnvDuration("SAVEKIT_CLOUD_GC_INTERVAL", 10*time.Minute),
		},
		Schema: SchemaConfig{
			Builtins:   getEnvBool("SAVEKIT_SCHEMA_BUILTINS", true),
			RulesFiles: getEnvStringSlice("SAVEKIT_SCHEMA_RULES_FILES", nil),
		},
		Watch: WatchConfig{
			BufferSize:  getEnvInt("SAVEKIT_WATCH_BUFFER_SIZE", 16),
			MaxWatchers: getEnvInt("SAVEKIT_WATCH_MAX_WATCHERS", 0),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("SAVEKIT_METRICS_ENABLED", false),
		},
		Tracing: TracingConfig{
			Enabled:        getEnvBool("SAVEKIT_TRACING_ENABLED", false),
			Endpoint:       getEnvString("SAVEKIT_TRACING_ENDPOINT", "otel-collector:4318"),
			ServiceName:    getEnvString("SAVEKIT_TRACING_SERVICE_NAME", "savekit"),
			ServiceVersion: getEnvString("SAVEKIT_TRACING_SERVICE_VERSION", "1.0.0"),
			Environment:    getEnvString("SAVEKIT_TRACING_ENVIRONMENT", "development"),
			SamplingRatio:  getEnvFloat("SAVEKIT_TRACING_SAMPLING_RATIO", 1.0),
			InsecureConn:   getEnvBool("SAVEKIT_TRACING_INSECURE", true),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate validates the configuration. An encryption key of the wrong
// length is not a configuration error: the engine disables encryption
// for the session instead.
func (c *Config) Validate() error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level)
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Log.Format)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", c.Server.Port)
	}

	if c.Save.Path == "" {
		return fmt.Errorf("save path must be specified")
	}
	if c.Save.MaxBackupFiles <= 0 {
		return fmt.Errorf("invalid max backup files: %d (must be positive)", c.Save.MaxBackupFiles)
	}
	if c.Save.DefaultVersion == "" || c.Save.TargetVersion == "" {
		return fmt.Errorf("default and target versions must be specified")
	}

	if c.Save.FlushInterval < 0 {
		return fmt.Errorf("flush interval must not be negative")
	}

	if c.Codec.CompressionLevel < -2 || c.Codec.CompressionLevel > 9 {
		return fmt.Errorf("invalid compression level: %d (must be -2 to 9)", c.Codec.CompressionLevel)
	}

	// Validate cloud configuration if enabled
	if c.Cloud.Enabled {
		validBackends := map[string]bool{
			"memory": true,
			"badger": true,
			"gcs":    true,
		}
		if !validBackends[c.Cloud.Backend] {
			return fmt.Errorf("invalid cloud backend: %s (must be memory, badger, or gcs)", c.Cloud.Backend)
		}
		if c.Cloud.Backend == "badger" && c.Cloud.DataDir == "" {
			return fmt.Errorf("cloud data directory must be specified for the badger backend")
		}
		if c.Cloud.Backend == "gcs" && c.Cloud.Bucket == "" {
			return fmt.Errorf("cloud bucket must be specified for the gcs backend")
		}
		if c.Cloud.Key == "" {
			return fmt.Errorf("cloud slot key must be specified when cloud is enabled")
		}
		if c.Cloud.RetryMax < 0 {
			return fmt.Errorf("cloud retry max must not be negative")
		}
		if c.Cloud.SyncInterval < 0 {
			return fmt.Errorf("cloud sync interval must not be negative")
		}
		if c.Cloud.GCInterval < 0 {
			return fmt.Errorf("cloud gc interval must not be negative")
		}
	}

	if c.Tracing.Enabled {
		if c.Tracing.SamplingRatio < 0 || c.Tracing.SamplingRatio > 1 {
			return fmt.Errorf("invalid tracing sampling ratio: %v (must be 0-1)", c.Tracing.SamplingRatio)
		}
	}

	return nil
}

// Address returns the admin server listen address.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	var clone Config
	if err := deepcopy.Copy(&clone, c); err != nil {
		// Config holds only plain values; fall back to a shallow copy.
		clone = *c
		clone.Schema.RulesFiles = append([]string(nil), c.Schema.RulesFiles...)
	}
	return &clone
}

// getEnvString gets a string environment variable with a default value
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration environment variable with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float environment variable with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvStringSlice gets a comma-separated string environment variable as a slice with a default value
func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		result := []string{}
		for _, v := range strings.Split(value, ",") {
			if v = strings.TrimSpace(v); v != "" {
				result = append(result, v)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
