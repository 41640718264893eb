// Package config loads the application configuration from command-line flags,
// environment variables, and an optional .env file, then validates it.
// Environment variables win over flags, flags win over defaults.
package config

import (
	"flag"
	"log"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds every runtime setting of the service.
type Config struct {
	RunAddr             string        `env:"SERVER_ADDRESS" validate:"hostname_port"`
	BaseURL             string        `env:"BASE_URL" validate:"url"`
	LogLevel            string        `env:"LOG_LEVEL" validate:"loglevel"`
	MongoURL            string        `env:"MONGO_URL"`
	MongoDBName         string        `env:"MONGO_DB_NAME"`
	DatabaseDSN         string        `env:"DATABASE_DSN"`
	DBConnectionTimeout time.Duration `env:"DB_CONNECTION_TIMEOUT"`
	MigrationsDir       string        `env:"MIGRATIONS_DIR"`
	SecretKey           string        `env:"SECRET_KEY" validate:"required"`
	SessionTokenTTL     time.Duration `env:"SESSION_TOKEN_TTL"`
	ResetTokenTTL       time.Duration `env:"RESET_TOKEN_TTL"`
	SMTPHost            string        `env:"SMTP_HOST"`
	SMTPPort            int           `env:"SMTP_PORT"`
	SMTPUsername        string        `env:"SMTP_USERNAME"`
	SMTPPassword        string        `env:"SMTP_PASSWORD"`
	MailFrom            string        `env:"MAIL_FROM"`
	MailQueueCapacity   int           `env:"MAIL_QUEUE_CAPACITY"`
	MailWorkers         int           `env:"MAIL_WORKERS"`
}

var defaultConfig = Config{
	RunAddr:             ":8080",
	BaseURL:             "http://localhost:8080",
	LogLevel:            "info",
	MongoDBName:         "linkshort",
	DBConnectionTimeout: 10 * time.Second,
	MigrationsDir:       "cmd/linkshort/migrations",
	SecretKey:           "do-not-use-in-production",
	SessionTokenTTL:     24 * time.Hour,
	ResetTokenTTL:       10 * time.Minute,
	SMTPPort:            587,
	MailQueueCapacity:   100,
	MailWorkers:         3,
}

func validateLogLevel(fieldLevel validator.FieldLevel) bool {
	value := fieldLevel.Field().String()

	allowedLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}

	return allowedLogLevels[value]
}

func (c *Config) validate() error {
	validate := validator.New()

	err := validate.RegisterValidation("loglevel", validateLogLevel)
	if err != nil {
		return err
	}

	return validate.Struct(c)
}

func applyDefaults(target *Config, defaults Config) {
	*target = defaults
}

// InitOption is a functional option for New.
type InitOption func(*initOptions)

type initOptions struct {
	disableFlagsParsing bool
}

// WithDisableFlagsParsing disables command-line flag parsing.
// Tests use it because the `go test` flag set collides with the application's.
func WithDisableFlagsParsing(disableFlagsParsing bool) InitOption {
	return func(options *initOptions) {
		options.disableFlagsParsing = disableFlagsParsing
	}
}

// New builds the configuration from defaults, flags, the optional .env file,
// and environment variables, and validates the result.
func New(optionsProto ...InitOption) (*Config, error) {
	options := &initOptions{
		disableFlagsParsing: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	if err := godotenv.Load(); err != nil {
		log.Printf("Unable to load .env file: %v", err)
	}

	values := &Config{}
	applyDefaults(values, defaultConfig)

	if !options.disableFlagsParsing {
		flag.StringVar(&values.RunAddr, "a", values.RunAddr, "address and port to run server")
		flag.StringVar(&values.BaseURL, "b", values.BaseURL, "base address used in short links and emailed links")
		flag.StringVar(&values.LogLevel, "l", values.LogLevel, "logger level")
		flag.StringVar(&values.MongoURL, "m", values.MongoURL, "MongoDB connection string")
		flag.StringVar(&values.DatabaseDSN, "d", values.DatabaseDSN, "PostgreSQL connection string")
		flag.StringVar(&values.SecretKey, "s", values.SecretKey, "secret key for token signing")
		flag.Parse()
	}

	valuesFromEnv := Config{}
	if err := env.Parse(&valuesFromEnv); err != nil {
		return nil, err
	}

	mergeNonEmpty(values, &valuesFromEnv)

	if err := values.validate(); err != nil {
		return nil, err
	}

	return values, nil
}

func mergeNonEmpty(target, source *Config) {
	if source.RunAddr != "" {
		target.RunAddr = source.RunAddr
	}

	if source.BaseURL != "" {
		target.BaseURL = source.BaseURL
	}

	if source.LogLevel != "" {
		target.LogLevel = source.LogLevel
	}

	if source.MongoURL != "" {
		target.MongoURL = source.MongoURL
	}

	if source.MongoDBName != "" {
		target.MongoDBName = source.MongoDBName
	}

	if source.DatabaseDSN != "" {
		target.DatabaseDSN = source.DatabaseDSN
	}

	if source.DBConnectionTimeout != 0 {
		target.DBConnectionTimeout = source.DBConnectionTimeout
	}

	if source.MigrationsDir != "" {
		target.MigrationsDir = source.MigrationsDir
	}

	if source.SecretKey != "" {
		target.SecretKey = source.SecretKey
	}

	if source.SessionTokenTTL != 0 {
		target.SessionTokenTTL = source.SessionTokenTTL
	}

	if source.ResetTokenTTL != 0 {
		target.ResetTokenTTL = source.ResetTokenTTL
	}

	if source.SMTPHost != "" {
		target.SMTPHost = source.SMTPHost
	}

	if source.SMTPPort != 0 {
		target.SMTPPort = source.SMTPPort
	}

	if source.SMTPUsername != "" {
		target.SMTPUsername = source.SMTPUsername
	}

	if source.SMTPPassword != "" {
		target.SMTPPassword = source.SMTPPassword
	}

	if source.MailFrom != "" {
		target.MailFrom = source.MailFrom
	}

	if source.MailQueueCapacity != 0 {
		target.MailQueueCapacity = source.MailQueueCapacity
	}

	if source.MailWorkers != 0 {
		target.MailWorkers = source.MailWorkers
	}
}
