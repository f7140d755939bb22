package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultConfigDir = "./configs"

// Load reads configs/<APP_ENV>.yaml from the default directory.
func Load() (*Config, *viper.Viper, error) {
	return LoadFrom(defaultConfigDir)
}

// LoadFrom reads <dir>/<APP_ENV>.yaml, applies environment overrides
// (log.level -> LOG_LEVEL), validates the result and returns it together
// with the viper instance for watching.
func LoadFrom(dir string) (*Config, *viper.Viper, error) {
	for _, file := range []string{".env.local", ".env"} {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("load %s: %w", file, err)
		}
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(filepath.Join(dir, env+".yaml"))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	cfg.AppEnv = env

	return cfg, v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func Validate(cfg *Config) error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

// Watch re-reads the config file on change and passes the new, validated
// config to onChange. Invalid edits are reported through onError and ignored.
func Watch(v *viper.Viper, onChange func(*Config), onError func(error)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		cfg, err := decode(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}

		if onChange != nil {
			onChange(cfg)
		}
	})
	v.WatchConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "sawti-academy")
	v.SetDefault("app.lang", "ar")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 14)

	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.namespace", "academy")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.connect_attempts", 3)

	v.SetDefault("bot.mode", "polling")
	v.SetDefault("bot.timeout", 10*time.Second)
	v.SetDefault("bot.state_ttl", 30*time.Minute)

	v.SetDefault("tutor.chat_model", "gemini-3-flash-preview")
	v.SetDefault("tutor.live_model", "gemini-2.5-flash-native-audio-preview-12-2025")
	v.SetDefault("tutor.timeout", 30*time.Second)

	v.SetDefault("rate_limit.global.limit", 120)
	v.SetDefault("rate_limit.global.window", "1m")
	v.SetDefault("rate_limit.routes.login.limit", 10)
	v.SetDefault("rate_limit.routes.login.window", "1m")
	v.SetDefault("rate_limit.routes.submit.limit", 5)
	v.SetDefault("rate_limit.routes.submit.window", "1m")
	v.SetDefault("rate_limit.routes.chat.limit", 20)
	v.SetDefault("rate_limit.routes.chat.window", "1m")
	v.SetDefault("rate_limit.routes.operator.limit", 30)
	v.SetDefault("rate_limit.routes.operator.window", "1m")

	v.SetDefault("jobs.reminder_cron", "0 * * * *")
	v.SetDefault("jobs.reminder_within", 72*time.Hour)
	v.SetDefault("jobs.concurrency", 5)
}
