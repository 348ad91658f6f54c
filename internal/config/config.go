package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "your-secret-key"

// Config - структура для хранения конфигураций приложения
type Config struct {
	ServerAddress  string        `mapstructure:"SERVER_ADDRESS"`
	AppEnv         string        `mapstructure:"APP_ENV"`
	PostgresConn   string        `mapstructure:"POSTGRES_CONN"`
	AutoMigrate    bool          `mapstructure:"AUTO_MIGRATE"`
	JWTSecret      string        `mapstructure:"JWT_SECRET"`
	JWTTTL         time.Duration `mapstructure:"JWT_TTL"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	AppURL         string        `mapstructure:"APP_URL"`
	AdminEmail     string        `mapstructure:"ADMIN_EMAIL"`
	AdminPassword  string        `mapstructure:"ADMIN_PASSWORD"`

	Email EmailConfig `mapstructure:",squash"`
	AI    AIConfig    `mapstructure:",squash"`
}

// EmailConfig настройки SMTP (отправка) и IMAP (прием)
type EmailConfig struct {
	Host     string `mapstructure:"EMAIL_HOST"`
	Port     int    `mapstructure:"EMAIL_PORT"`
	User     string `mapstructure:"EMAIL_USER"`
	Password string `mapstructure:"EMAIL_PASSWORD"`
	From     string `mapstructure:"EMAIL_FROM"`

	IMAPHost   string `mapstructure:"EMAIL_IMAP_HOST"`
	IMAPPort   int    `mapstructure:"EMAIL_IMAP_PORT"`
	IMAPSecure bool   `mapstructure:"EMAIL_IMAP_SECURE"`

	ProcessInterval time.Duration `mapstructure:"EMAIL_PROCESS_INTERVAL"`
	MaxPerCheck     int           `mapstructure:"EMAIL_MAX_PER_CHECK"`
	ReconnectDelay  time.Duration `mapstructure:"EMAIL_RECONNECT_DELAY"`
}

type AIConfig struct {
	APIKey  string        `mapstructure:"OPENAI_API_KEY"`
	Model   string        `mapstructure:"OPENAI_MODEL"`
	BaseURL string        `mapstructure:"OPENAI_BASE_URL"`
	Timeout time.Duration `mapstructure:"AI_TIMEOUT"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_ADDRESS", "0.0.0.0:8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("POSTGRES_CONN", "")
	v.SetDefault("AUTO_MIGRATE", true)
	v.SetDefault("JWT_SECRET", defaultJWTSecret)
	v.SetDefault("JWT_TTL", 30*24*time.Hour)
	v.SetDefault("REQUEST_TIMEOUT", 15*time.Second)
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("APP_URL", "http://localhost:3001")
	v.SetDefault("ADMIN_EMAIL", "")
	v.SetDefault("ADMIN_PASSWORD", "")

	v.SetDefault("EMAIL_HOST", "smtp.gmail.com")
	v.SetDefault("EMAIL_PORT", 587)
	v.SetDefault("EMAIL_USER", "")
	v.SetDefault("EMAIL_PASSWORD", "")
	v.SetDefault("EMAIL_FROM", "rfp-manager@example.com")
	v.SetDefault("EMAIL_IMAP_HOST", "imap.gmail.com")
	v.SetDefault("EMAIL_IMAP_PORT", 993)
	v.SetDefault("EMAIL_IMAP_SECURE", true)
	v.SetDefault("EMAIL_PROCESS_INTERVAL", 5*time.Minute)
	v.SetDefault("EMAIL_MAX_PER_CHECK", 50)
	v.SetDefault("EMAIL_RECONNECT_DELAY", 5*time.Second)

	v.SetDefault("OPENAI_API_KEY", "")
	v.SetDefault("OPENAI_MODEL", "gpt-3.5-turbo")
	v.SetDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("AI_TIMEOUT", 30*time.Second)
}

// Load загружает конфигурацию: .env (если есть), затем app.env из path, затем переменные окружения.
func Load(path string) (cfg Config, err error) {
	// .env необязателен
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path != "" {
		v.AddConfigPath(path)
		v.SetConfigName("app")
		v.SetConfigType("env")
		if err = v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return cfg, fmt.Errorf("read config: %w", err)
			}
			err = nil
		}
	}

	if err = v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Validate проверяет обязательные параметры перед запуском сервера.
func (c Config) Validate() error {
	if c.PostgresConn == "" {
		return errors.New("POSTGRES_CONN is not set")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	if c.IsProduction() && c.JWTSecret == defaultJWTSecret {
		return errors.New("JWT_SECRET must be changed in production")
	}
	if c.JWTTTL <= 0 {
		return errors.New("JWT_TTL must be positive")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT must be positive")
	}
	if c.Email.ProcessInterval <= 0 {
		return errors.New("EMAIL_PROCESS_INTERVAL must be positive")
	}
	if c.Email.MaxPerCheck <= 0 {
		return errors.New("EMAIL_MAX_PER_CHECK must be positive")
	}
	return nil
}

// SMTPEnabled true, если заданы учетные данные для отправки почты
func (e EmailConfig) SMTPEnabled() bool {
	return e.Host != "" && e.User != "" && e.Password != ""
}

// IMAPEnabled true, если можно запускать опрос почтового ящика
func (e EmailConfig) IMAPEnabled() bool {
	return e.IMAPHost != "" && e.User != "" && e.Password != ""
}

func (e EmailConfig) IMAPAddr() string {
	return fmt.Sprintf("%s:%d", e.IMAPHost, e.IMAPPort)
}

func (e EmailConfig) SMTPAddr() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}
