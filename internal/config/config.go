package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all settings for the backup daemon. Values are read from an
// optional YAML file (BACKUPD_CONFIG) first, then overridden by environment
// variables so container deployments can tweak single values.
type Config struct {
	DatabaseURL string `yaml:"database_url"`

	HTTPListenAddr    string `yaml:"http_listen_addr"`
	MetricsListenAddr string `yaml:"metrics_listen_addr"`
	LogLevel          string `yaml:"log_level"`
	ServiceName       string `yaml:"service_name"`

	// BackupRoot is where job directories are created; SourceRoot is the
	// production tree that files backups archive.
	BackupRoot string `yaml:"backup_root"`
	SourceRoot string `yaml:"source_root"`

	// Application MySQL database that database backups dump.
	MySQLHost     string `yaml:"mysql_host"`
	MySQLUser     string `yaml:"mysql_user"`
	MySQLPassword string `yaml:"mysql_password"`
	MySQLDatabase string `yaml:"mysql_database"`

	// External tool binaries. Overridable mainly for tests.
	TarBin       string `yaml:"tar_bin"`
	GzipBin      string `yaml:"gzip_bin"`
	GunzipBin    string `yaml:"gunzip_bin"`
	MysqldumpBin string `yaml:"mysqldump_bin"`
	MysqlBin     string `yaml:"mysql_bin"`
	BorgBin      string `yaml:"borg_bin"`

	// BorgScript is the operator-provided wrapper script run for kind=borg
	// jobs. BorgRepoPath is passed to borg list/info.
	BorgScript   string `yaml:"borg_script"`
	BorgRepoPath string `yaml:"borg_repo_path"`

	WorkerCount    int           `yaml:"worker_count"`
	QueueSize      int           `yaml:"queue_size"`
	ProcessTimeout time.Duration `yaml:"process_timeout"`
	StaleAfter     time.Duration `yaml:"stale_after"`
	SweepInterval  time.Duration `yaml:"sweep_interval"`

	// Optional offsite replication target (S3-compatible). Disabled when
	// the bucket is empty.
	S3Endpoint  string `yaml:"s3_endpoint"`
	S3Region    string `yaml:"s3_region"`
	S3Bucket    string `yaml:"s3_bucket"`
	S3AccessKey string `yaml:"s3_access_key"`
	S3SecretKey string `yaml:"s3_secret_key"`
}

func defaults() *Config {
	return &Config{
		HTTPListenAddr:    ":8095",
		MetricsListenAddr: ":9095",
		LogLevel:          "info",
		ServiceName:       "backupd",
		BackupRoot:        "/var/backups/churchadmin",
		SourceRoot:        "/var/www/churchadmin/prod",
		MySQLHost:         "localhost",
		TarBin:            "tar",
		GzipBin:           "gzip",
		GunzipBin:         "gunzip",
		MysqldumpBin:      "mysqldump",
		MysqlBin:          "mysql",
		BorgBin:           "borg",
		BorgRepoPath:      "/var/backups/churchadmin/repo",
		WorkerCount:       2,
		QueueSize:         16,
		ProcessTimeout:    20 * time.Minute,
		StaleAfter:        2 * time.Hour,
		SweepInterval:     5 * time.Minute,
		S3Region:          "us-east-1",
	}
}

// Load builds the config from defaults, the optional YAML file named by
// BACKUPD_CONFIG, and finally environment variables.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("BACKUPD_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.HTTPListenAddr = getEnv("HTTP_LISTEN_ADDR", cfg.HTTPListenAddr)
	cfg.MetricsListenAddr = getEnv("METRICS_LISTEN_ADDR", cfg.MetricsListenAddr)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.ServiceName = getEnv("SERVICE_NAME", cfg.ServiceName)
	cfg.BackupRoot = getEnv("BACKUP_ROOT", cfg.BackupRoot)
	cfg.SourceRoot = getEnv("SOURCE_ROOT", cfg.SourceRoot)
	cfg.MySQLHost = getEnv("MYSQL_HOST", cfg.MySQLHost)
	cfg.MySQLUser = getEnv("MYSQL_USER", cfg.MySQLUser)
	cfg.MySQLPassword = getEnv("MYSQL_PASSWORD", cfg.MySQLPassword)
	cfg.MySQLDatabase = getEnv("MYSQL_DATABASE", cfg.MySQLDatabase)
	cfg.BorgScript = getEnv("BORG_SCRIPT", cfg.BorgScript)
	cfg.BorgRepoPath = getEnv("BORG_REPO_PATH", cfg.BorgRepoPath)
	cfg.S3Endpoint = getEnv("S3_ENDPOINT", cfg.S3Endpoint)
	cfg.S3Region = getEnv("S3_REGION", cfg.S3Region)
	cfg.S3Bucket = getEnv("S3_BUCKET", cfg.S3Bucket)
	cfg.S3AccessKey = getEnv("S3_ACCESS_KEY", cfg.S3AccessKey)
	cfg.S3SecretKey = getEnv("S3_SECRET_KEY", cfg.S3SecretKey)

	var err error
	if cfg.WorkerCount, err = getEnvInt("WORKER_COUNT", cfg.WorkerCount); err != nil {
		return nil, err
	}
	if cfg.QueueSize, err = getEnvInt("QUEUE_SIZE", cfg.QueueSize); err != nil {
		return nil, err
	}
	if cfg.ProcessTimeout, err = getEnvDuration("PROCESS_TIMEOUT", cfg.ProcessTimeout); err != nil {
		return nil, err
	}
	if cfg.StaleAfter, err = getEnvDuration("STALE_AFTER", cfg.StaleAfter); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = getEnvDuration("SWEEP_INTERVAL", cfg.SweepInterval); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required settings for the daemon are present.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.BackupRoot == "" {
		return fmt.Errorf("BACKUP_ROOT is required")
	}
	if c.SourceRoot == "" {
		return fmt.Errorf("SOURCE_ROOT is required")
	}
	if c.MySQLDatabase == "" {
		return fmt.Errorf("MYSQL_DATABASE is required")
	}
	if c.WorkerCount < 1 {
		return fmt.Errorf("WORKER_COUNT must be at least 1")
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("QUEUE_SIZE must be at least 1")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
