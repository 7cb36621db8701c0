package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Scheduler  SchedulerConfig
	SideEffect SideEffectConfig
	Email      EmailConfig
	NATS       NATSConfig
}

type AppConfig struct {
	Name           string
	Port           string
	Debug          bool
	LogPath        string
	Timezone       string
	RequestTimeout time.Duration
	CORSOrigins    []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	MaxConns int32
}

type SchedulerConfig struct {
	ExpiryInterval time.Duration
}

type SideEffectConfig struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

type EmailConfig struct {
	MailerSendKey string
	From          string
	FromName      string
}

type NATSConfig struct {
	URL string
}

// Location resolves the venue timezone, falling back to UTC.
func (c AppConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")

	// Set defaults
	viper.SetDefault("APP_NAME", "visitor-booking")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DEBUG", false)
	viper.SetDefault("LOG_PATH", "logs/")
	viper.SetDefault("TIMEZONE", "UTC")
	viper.SetDefault("REQUEST_TIMEOUT", "15s")
	viper.SetDefault("CORS_ORIGINS", "*")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_MAX_CONNS", 10)
	viper.SetDefault("EXPIRY_INTERVAL", "1h")
	viper.SetDefault("SIDE_EFFECT_WORKERS", 4)
	viper.SetDefault("SIDE_EFFECT_QUEUE_SIZE", 256)
	viper.SetDefault("SIDE_EFFECT_TIMEOUT", "10s")
	viper.SetDefault("EMAIL_FROM_NAME", "Visitor Booking")

	// .env is optional, the environment always wins
	if err := viper.ReadInConfig(); err != nil {
		var pathErr *fs.PathError
		if !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	viper.AutomaticEnv()

	config := &Config{
		App: AppConfig{
			Name:           viper.GetString("APP_NAME"),
			Port:           viper.GetString("PORT"),
			Debug:          viper.GetBool("DEBUG"),
			LogPath:        viper.GetString("LOG_PATH"),
			Timezone:       viper.GetString("TIMEZONE"),
			RequestTimeout: viper.GetDuration("REQUEST_TIMEOUT"),
			CORSOrigins:    splitList(viper.GetString("CORS_ORIGINS")),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			Name:     viper.GetString("DB_NAME"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASS"),
			MaxConns: viper.GetInt32("DB_MAX_CONNS"),
		},
		Scheduler: SchedulerConfig{
			ExpiryInterval: viper.GetDuration("EXPIRY_INTERVAL"),
		},
		SideEffect: SideEffectConfig{
			Workers:   viper.GetInt("SIDE_EFFECT_WORKERS"),
			QueueSize: viper.GetInt("SIDE_EFFECT_QUEUE_SIZE"),
			Timeout:   viper.GetDuration("SIDE_EFFECT_TIMEOUT"),
		},
		Email: EmailConfig{
			MailerSendKey: viper.GetString("MAILERSEND_API_KEY"),
			From:          viper.GetString("EMAIL_FROM"),
			FromName:      viper.GetString("EMAIL_FROM_NAME"),
		},
		NATS: NATSConfig{
			URL: viper.GetString("NATS_URL"),
		},
	}

	if _, err := time.LoadLocation(config.App.Timezone); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", config.App.Timezone, err)
	}

	return config, nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
