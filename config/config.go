package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Config is built once at startup and passed to every component that needs it.
// Nothing below internal/ reads the environment directly.
type Config struct {
	Env      string
	Ports    PortsConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Defaults DefaultsConfig
	HTTP     HTTPConfig
	Mail     MailConfig
	MQ       MQConfig
	Storage  StorageConfig
	Audit    AuditConfig
	Log      LogConfig

	// StoreBackend selects "postgres" (default) or "memory" for the users service.
	StoreBackend string
}

type PortsConfig struct {
	Users  int
	Agenda int
	Diary  int
}

type DatabaseConfig struct {
	URL          string
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	UseSSL       bool
	MaxOpenConns int
}

type AuthConfig struct {
	JWTSecret    string
	TokenTTL     time.Duration
	Disabled     bool
	BcryptCost   int
	Pepper       string
	CodeTTL      time.Duration
	MaxFailed    int
	SystemUserID string

	// AdminUserTypeCode is the user type allowed to run account and audit
	// administration.
	AdminUserTypeCode string
}

// DefaultsConfig holds the lookup rows used by self-registration.
type DefaultsConfig struct {
	UserTypeCode string
	UserTypeName string
}

type HTTPConfig struct {
	CORSOrigins    []string
	RateLimitRPS   int
	RateLimitBurst int
}

type MailConfig struct {
	Transport    string
	From         string
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	Queue        string
}

type MQConfig struct {
	Backend  string
	RabbitMQ RabbitMQConfig
	PubSub   PubSubConfig
}

type RabbitMQConfig struct {
	URL             string
	QueueDurable    bool
	QueueAutoDelete bool
	PrefetchCount   int
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
}

type StorageConfig struct {
	Backend string
	Minio   MinioConfig
	GCS     GCSConfig
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type GCSConfig struct {
	Bucket          string
	ProjectID       string
	CredentialsFile string
}

type AuditConfig struct {
	Backend       string
	MongoURI      string
	MongoDatabase string
}

type LogConfig struct {
	Level string
	Dev   bool
}

func LoadConfig() Config {
	env := getEnv("ENV", EnvDevelopment)
	if env == EnvDevelopment {
		_ = godotenv.Load()
	}

	return Config{
		Env: env,
		Ports: PortsConfig{
			Users:  getEnvInt("USERS_PORT", 3001),
			Agenda: getEnvInt("AGENDA_PORT", 3002),
			Diary:  getEnvInt("DIARY_PORT", 3003),
		},
		Database: DatabaseConfig{
			URL:          getEnv("DATABASE_URL", ""),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "mind"),
			Password:     getEnv("DB_PASSWORD", "password"),
			DBName:       getEnv("DB_NAME", "mind_db"),
			UseSSL:       getEnvBool("DB_SSL", false),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 10),
		},
		Auth: AuthConfig{
			JWTSecret:    strings.TrimSpace(getEnv("JWT_SECRET", "")),
			TokenTTL:     getEnvDuration("JWT_EXPIRES_IN", 24*time.Hour),
			Disabled:     getEnvBool("AUTH_DISABLED", false),
			BcryptCost:   getEnvInt("BCRYPT_ROUNDS", 12),
			Pepper:       getEnv("PASSWORD_PEPPER", ""),
			CodeTTL:      getEnvDuration("VERIFICATION_CODE_TTL", 15*time.Minute),
			MaxFailed:    getEnvInt("MAX_FAILED_LOGINS", 5),
			SystemUserID: getEnv("SYSTEM_USER_ID", "system"),

			AdminUserTypeCode: getEnv("ADMIN_USER_TYPE_CODE", "ADMIN"),
		},
		Defaults: DefaultsConfig{
			UserTypeCode: getEnv("DEFAULT_USER_TYPE_CODE", "PATIENT"),
			UserTypeName: getEnv("DEFAULT_USER_TYPE_NAME", "Patient"),
		},
		HTTP: HTTPConfig{
			CORSOrigins:    getEnvList("CORS_ORIGINS", []string{"*"}),
			RateLimitRPS:   getEnvInt("RATE_LIMIT_RPS", 20),
			RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 40),
		},
		Mail: MailConfig{
			Transport:    getEnv("MAIL_TRANSPORT", "smtp"),
			From:         getEnv("MAIL_FROM", "no-reply@mind.local"),
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getEnvInt("SMTP_PORT", 587),
			SMTPUser:     getEnv("SMTP_USER", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			Queue:        getEnv("MAIL_QUEUE", "mind.mail.outbound"),
		},
		MQ: MQConfig{
			Backend: getEnv("MQ_BACKEND", "rabbitmq"),
			RabbitMQ: RabbitMQConfig{
				URL:             getEnv("RABBITMQ_URL", ""),
				QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
				QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", false),
				PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH", 10),
			},
			PubSub: PubSubConfig{
				ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
				CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
				SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
			},
		},
		Storage: StorageConfig{
			Backend: getEnv("STORAGE_BACKEND", "none"),
			Minio: MinioConfig{
				Endpoint:  getEnv("MINIO_ENDPOINT", ""),
				AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
				SecretKey: getEnv("MINIO_SECRET_KEY", ""),
				Bucket:    getEnv("MINIO_BUCKET", "mind-records"),
				UseSSL:    getEnvBool("MINIO_USE_SSL", false),
			},
			GCS: GCSConfig{
				Bucket:          getEnv("GCS_BUCKET", ""),
				ProjectID:       getEnv("GCS_PROJECT_ID", ""),
				CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
			},
		},
		Audit: AuditConfig{
			Backend:       getEnv("AUDIT_BACKEND", "postgres"),
			MongoURI:      getEnv("MONGO_URI", ""),
			MongoDatabase: getEnv("MONGO_DATABASE", "mind_audit"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", ""),
			Dev:   getEnvBool("LOG_DEV", false),
		},
		StoreBackend: getEnv("STORE_BACKEND", "postgres"),
	}
}

// IsProduction reports whether verification codes and stack traces must be hidden.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, EnvProduction)
}

// Validate reports configuration that would make a service unusable.
func (c Config) Validate() error {
	if !c.Auth.Disabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_ROUNDS must be between 4 and 31, got %d", c.Auth.BcryptCost)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("JWT_EXPIRES_IN must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := strconv.Atoi(strings.TrimSpace(valueStr))
		if err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := strconv.ParseBool(strings.TrimSpace(valueStr))
		if err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("24h") and the "1d"/"7d" shorthand.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valueStr = strings.TrimSpace(valueStr)
	if days, ok := strings.CutSuffix(valueStr, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return defaultValue
		}
		return time.Duration(n) * 24 * time.Hour
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvList(key string, defaultValue []string) []string {
	valueStr, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(valueStr) == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
