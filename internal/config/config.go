package config

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	AppEnv        string `mapstructure:"APP_ENV"`
	Port          string `mapstructure:"PORT"`
	DatabaseURL   string `mapstructure:"DATABASE_URL"`
	RedisURL      string `mapstructure:"REDIS_URL"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	SessionSecret string `mapstructure:"SESSION_SECRET"`
	TemplatePath  string `mapstructure:"TEMPLATE_PATH"`

	// Rotating log file, disabled when LogFile is empty
	LogFile       string `mapstructure:"LOG_FILE"`
	LogMaxSizeMB  int    `mapstructure:"LOG_MAX_SIZE_MB"`
	LogMaxBackups int    `mapstructure:"LOG_MAX_BACKUPS"`
	LogMaxAgeDays int    `mapstructure:"LOG_MAX_AGE_DAYS"`
}

func (c Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func LoadConfig() (config Config, err error) {
	// .env is optional; real environment variables take precedence
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded, using environment and defaults")
	}

	v := viper.New()
	v.SetDefault("APP_ENV", "local")
	v.SetDefault("PORT", "8080")
	v.SetDefault("DATABASE_URL", "sqlite://cancionero.db")
	v.SetDefault("REDIS_URL", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("SESSION_SECRET", "change-me-in-production-32-bytes!")
	v.SetDefault("TEMPLATE_PATH", "")
	v.SetDefault("LOG_FILE", "")
	v.SetDefault("LOG_MAX_SIZE_MB", 10)
	v.SetDefault("LOG_MAX_BACKUPS", 3)
	v.SetDefault("LOG_MAX_AGE_DAYS", 28)

	v.AutomaticEnv()

	err = v.Unmarshal(&config)
	if err != nil {
		log.Printf("unable to decode into struct, %v", err)
		return
	}

	return
}
