package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/chachabrian/mooveit-fleet/pkg/logger"
)

type Config struct {
	App      *AppConfig      `yaml:"app"`
	Database *DatabaseConfig `yaml:"database"`
	Redis    *RedisConfig    `yaml:"redis"`
	Security *SecurityConfig `yaml:"security"`
	Storage  *StorageConfig  `yaml:"storage"`
	Push     *PushConfig     `yaml:"push"`
	MQTT     *MQTTConfig     `yaml:"mqtt"`
	Mongo    *MongoConfig    `yaml:"mongo"`
	Log      *logger.Config  `yaml:"log"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Port        string `yaml:"port"`
	BaseURL     string `yaml:"base_url"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
}

// DSN builds the postgres connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode,
	)
}

type RedisConfig struct {
	URL     string `yaml:"url"`
	Channel string `yaml:"channel"`
}

type SecurityConfig struct {
	JWTSecret          string        `yaml:"jwt_secret"`
	JWTTTL             time.Duration `yaml:"jwt_ttl"`
	CORSAllowedOrigins []string      `yaml:"cors_allowed_origins"`

	// AdminRegistrationKey gates POST /api/auth/register. Empty disables it.
	AdminRegistrationKey string `yaml:"admin_registration_key"`
}

type StorageConfig struct {
	S3Bucket string `yaml:"s3_bucket"`
	S3Region string `yaml:"s3_region"`
	LocalDir string `yaml:"local_dir"`
}

type PushConfig struct {
	FirebaseServiceAccountPath string `yaml:"firebase_service_account_path"`
}

type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
}

type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

func defaults() *Config {
	return &Config{
		App: &AppConfig{
			Name:        "mooveit-fleet",
			Environment: "development",
			Port:        "8080",
			BaseURL:     "http://localhost:8080",
		},
		Database: &DatabaseConfig{
			Host:     "localhost",
			Port:     "5432",
			User:     "postgres",
			Name:     "mooveit_fleet",
			SSLMode:  "disable",
			MaxConns: 20,
		},
		Redis: &RedisConfig{Channel: "fleet"},
		Security: &SecurityConfig{
			JWTTTL:             24 * time.Hour,
			CORSAllowedOrigins: []string{"*"},
		},
		Storage: &StorageConfig{LocalDir: "uploads"},
		Push:    &PushConfig{},
		MQTT:    &MQTTConfig{ClientID: "mooveit-fleet-api", TopicPrefix: "fleet"},
		Mongo:   &MongoConfig{Database: "mooveit_fleet", Collection: "audit_logs"},
		Log:     &logger.Config{Level: logger.InfoLevel, Format: "text", Output: "stdout"},
	}
}

// Load builds the configuration from defaults, then the optional YAML file at
// path, then a .env file if present, then the process environment.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// .env is optional
	_ = godotenv.Load()

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.App.Environment = getEnv("APP_ENV", cfg.App.Environment)
	cfg.App.Port = getEnv("PORT", cfg.App.Port)
	cfg.App.BaseURL = getEnv("BASE_URL", cfg.App.BaseURL)

	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnv("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Name = getEnv("DB_NAME", cfg.Database.Name)
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", cfg.Database.SSLMode)
	cfg.Database.MaxConns = getEnvAsInt("DB_MAX_CONNS", cfg.Database.MaxConns)

	cfg.Redis.URL = getEnv("REDIS_URL", cfg.Redis.URL)
	cfg.Redis.Channel = getEnv("REDIS_CHANNEL", cfg.Redis.Channel)

	cfg.Security.JWTSecret = getEnv("JWT_SECRET", cfg.Security.JWTSecret)
	cfg.Security.JWTTTL = getEnvAsDuration("JWT_TTL", cfg.Security.JWTTTL)
	cfg.Security.CORSAllowedOrigins = getEnvAsSlice("CORS_ALLOWED_ORIGINS", cfg.Security.CORSAllowedOrigins)
	cfg.Security.AdminRegistrationKey = getEnv("ADMIN_REGISTRATION_KEY", cfg.Security.AdminRegistrationKey)

	cfg.Storage.S3Bucket = getEnv("AWS_S3_BUCKET", cfg.Storage.S3Bucket)
	cfg.Storage.S3Region = getEnv("AWS_REGION", cfg.Storage.S3Region)
	cfg.Storage.LocalDir = getEnv("UPLOAD_DIR", cfg.Storage.LocalDir)

	cfg.Push.FirebaseServiceAccountPath = getEnv("FIREBASE_SERVICE_ACCOUNT_PATH", cfg.Push.FirebaseServiceAccountPath)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", cfg.MQTT.Broker)
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", cfg.MQTT.ClientID)
	cfg.MQTT.TopicPrefix = getEnv("MQTT_TOPIC_PREFIX", cfg.MQTT.TopicPrefix)

	cfg.Mongo.URI = getEnv("MONGO_URI", cfg.Mongo.URI)
	cfg.Mongo.Database = getEnv("MONGO_DB", cfg.Mongo.Database)

	cfg.Log.Level = logger.LogLevel(getEnv("LOG_LEVEL", string(cfg.Log.Level)))
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)
}

func (c *Config) Validate() error {
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Security.JWTTTL <= 0 {
		return fmt.Errorf("jwt ttl must be positive")
	}
	if c.App.Port == "" {
		return fmt.Errorf("port is required")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
