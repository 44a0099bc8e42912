package config

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultJWTSecret signs tokens when nothing else is configured. Fine for a
// laptop, never for a shared deployment.
const DefaultJWTSecret = "megvie-dev-secret"

// wellKnownSecrets are the values shipped in defaults and sample files.
var wellKnownSecrets = []string{DefaultJWTSecret, "change-me", ""}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Redis    RedisConfig    `yaml:"redis"`
	Storage  StorageConfig  `yaml:"storage"`
	SMS      SMSConfig      `yaml:"sms"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	Console    bool   `yaml:"console"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type ServerConfig struct {
	Port        int      `yaml:"port"`
	PublicURL   string   `yaml:"public_url"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	Driver      string `yaml:"driver"` // mysql | sqlite
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	Name        string `yaml:"name"`
	Path        string `yaml:"path"` // sqlite file
	AutoMigrate bool   `yaml:"auto_migrate"`
}

type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret"`
	TokenTTLHours int    `yaml:"token_ttl_hours"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type StorageConfig struct {
	Type       string `yaml:"type"` // local | s3
	LocalDir   string `yaml:"local_dir"`
	URLPrefix  string `yaml:"url_prefix"`
	S3Region   string `yaml:"s3_region"`
	S3Bucket   string `yaml:"s3_bucket"`
	S3Prefix   string `yaml:"s3_prefix"`
	S3Endpoint string `yaml:"s3_endpoint"`
	S3URL      string `yaml:"s3_public_url"`
}

type SMSConfig struct {
	APIKey                   string `yaml:"api_key"`
	APIURL                   string `yaml:"api_url"`
	DefaultCountryCode       string `yaml:"default_country_code"`
	TimeoutSeconds           int    `yaml:"timeout_seconds"`
	SimulateWhenUnconfigured bool   `yaml:"simulate_when_unconfigured"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

func Load(configFile string) *Config {
	c := &Config{
		Server:   ServerConfig{Port: 9871, PublicURL: "http://localhost:9871", CORSOrigins: []string{"*"}},
		Log:      LogConfig{Level: "info", Console: true, MaxSizeMB: 100, MaxBackups: 3, MaxAgeDays: 30},
		Database: DatabaseConfig{Driver: "mysql", Host: "127.0.0.1", Port: 3306, Name: "megvie", Path: "megvie.db", AutoMigrate: true},
		Auth:     AuthConfig{JWTSecret: DefaultJWTSecret, TokenTTLHours: 7 * 24},
		Storage:  StorageConfig{Type: "local", LocalDir: "storage/app/public", URLPrefix: "/storage"},
		SMS:      SMSConfig{DefaultCountryCode: "+225", TimeoutSeconds: 15},
		Metrics:  MetricsConfig{Enabled: true, Path: "/metrics"},
	}

	paths := []string{"etc/config-dev.yaml", "/etc/megvie/config.yaml"}
	if configFile != "" {
		paths = []string{configFile}
	}
	for _, path := range paths {
		if data, err := os.ReadFile(path); err == nil {
			yaml.Unmarshal(data, c)
			break
		}
	}

	envOverride(&c.Database.Driver, "DB_CONNECTION")
	envOverride(&c.Database.Host, "DB_HOST")
	envOverride(&c.Database.User, "DB_USERNAME")
	envOverride(&c.Database.Password, "DB_PASSWORD")
	envOverride(&c.Database.Name, "DB_DATABASE")
	envOverride(&c.Database.Path, "DB_PATH")
	envOverride(&c.Auth.JWTSecret, "JWT_SECRET")
	envOverride(&c.Redis.Addr, "REDIS_ADDR")
	envOverride(&c.Redis.Password, "REDIS_PASSWORD")
	envOverride(&c.Storage.Type, "STORAGE_TYPE")
	envOverride(&c.Storage.S3Bucket, "S3_BUCKET")
	envOverride(&c.Storage.S3Region, "AWS_REGION")
	envOverride(&c.SMS.APIKey, "SMS_API_KEY")
	envOverride(&c.SMS.APIURL, "SMS_API_URL")
	envOverride(&c.SMS.DefaultCountryCode, "SMS_DEFAULT_COUNTRY_CODE")
	envOverride(&c.Server.PublicURL, "APP_URL")
	envOverride(&c.Log.Level, "LOG_LEVEL")
	envOverride(&c.Log.File, "LOG_FILE")
	envOverrideInt(&c.Server.Port, "PORT")
	envOverrideInt(&c.Database.Port, "DB_PORT")
	envOverrideInt(&c.Redis.DB, "REDIS_DB")
	envOverrideBool(&c.SMS.SimulateWhenUnconfigured, "SMS_SIMULATE_WHEN_UNCONFIGURED")
	envOverrideBool(&c.Database.AutoMigrate, "DB_AUTO_MIGRATE")

	return c
}

// WellKnownJWTSecret reports whether tokens would be signed with a secret
// anyone can read in this repository.
func (c *Config) WellKnownJWTSecret() bool {
	secret := strings.TrimSpace(c.Auth.JWTSecret)
	for _, s := range wellKnownSecrets {
		if secret == s {
			return true
		}
	}
	return false
}

// CheckJWTSecret refuses a well-known secret unless the log level is debug.
func (c *Config) CheckJWTSecret() error {
	if c.WellKnownJWTSecret() && !strings.EqualFold(c.Log.Level, "debug") {
		return fmt.Errorf("auth.jwt_secret is a well-known value; set JWT_SECRET or run with log level debug")
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLHours) * time.Hour
}

func (c *Config) SMSTimeout() time.Duration {
	return time.Duration(c.SMS.TimeoutSeconds) * time.Second
}

// StorageURL is the absolute URL prefix under which local photos are served.
func (c *Config) StorageURL() string {
	return strings.TrimRight(c.Server.PublicURL, "/") + "/" + strings.Trim(c.Storage.URLPrefix, "/")
}

func (c *Config) OpenGormDB() (*gorm.DB, error) {
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	if strings.EqualFold(c.Log.Level, "debug") {
		gcfg.Logger = logger.Default.LogMode(logger.Info)
	}

	switch c.Database.Driver {
	case "sqlite":
		return gorm.Open(sqlite.Open(c.Database.Path), gcfg)
	case "mysql", "":
	default:
		return nil, fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	cfg := gomysql.NewConfig()
	cfg.User = c.Database.User
	cfg.Passwd = c.Database.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port)
	cfg.DBName = c.Database.Name
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.Params = map[string]string{"charset": "utf8mb4"}

	connector, err := gomysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("create connector: %w", err)
	}
	sqlDB := sql.OpenDB(connector)
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return gorm.Open(mysql.New(mysql.Config{Conn: sqlDB}), gcfg)
}

func envOverride(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envOverrideInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envOverrideBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
