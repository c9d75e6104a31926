package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	Database DatabaseConfig
	Covers   CoversConfig
	Server   ServerConfig
	JWT      JWTConfig
	Log      LogConfig
}

type DatabaseConfig struct {
	Path string
}

type CoversConfig struct {
	Dir         string
	Placeholder string
	// Map overrides the built-in article to image table when non-empty.
	Map   map[string]string
	MinIO MinIOConfig
}

// Mapping returns the configured article to image table, or nil to use the
// built-in one. Viper lowercases keys, so articles are restored to upper case.
func (c CoversConfig) Mapping() map[string]string {
	if len(c.Map) == 0 {
		return nil
	}
	m := make(map[string]string, len(c.Map))
	for article, name := range c.Map {
		m[strings.ToUpper(article)] = name
	}
	return m
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string
	UseSSL    bool `mapstructure:"use_ssl"`
}

// Enabled reports whether covers should come from a bucket instead of Dir.
func (m MinIOConfig) Enabled() bool { return m.Endpoint != "" && m.Bucket != "" }

type ServerConfig struct {
	Host string
	Port int
}

// Address is host:port for the HTTP listener.
func (s ServerConfig) Address() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

type JWTConfig struct {
	Secret    string
	ExpiresIn time.Duration `mapstructure:"expires_in"`
}

type LogConfig struct {
	Level string
}

const envPrefix = "BOOKCLUB"

// SetDefaults registers the values used when neither the config file nor the
// environment sets a key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "literature_club.db")
	v.SetDefault("covers.dir", "resources")
	v.SetDefault("covers.placeholder", "placeholder.png")
	v.SetDefault("covers.minio.endpoint", "")
	v.SetDefault("covers.minio.access_key", "")
	v.SetDefault("covers.minio.secret_key", "")
	v.SetDefault("covers.minio.bucket", "covers")
	v.SetDefault("covers.minio.use_ssl", false)
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expires_in", time.Hour)
	v.SetDefault("log.level", "info")
}

// Load reads .env, then config.toml (name overridable with CONFIG_NAME) from
// ./config or the working directory, then BOOKCLUB_* environment variables.
// An explicit file path wins over the search. A missing config file is not an error.
func Load(v *viper.Viper, file string) (*Config, error) {
	_ = godotenv.Load()

	SetDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		configName := "config"
		if name := os.Getenv("CONFIG_NAME"); name != "" {
			configName = name
		}
		v.SetConfigName(configName)
		v.SetConfigType("toml")
		v.AddConfigPath("config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		log.Debug("no config file found, using defaults")
	} else {
		log.WithField("file", v.ConfigFileUsed()).Debug("config file loaded")
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Database.Path == "" {
		return nil, fmt.Errorf("database.path must not be empty")
	}

	log.Info("config parsed")
	return cfg, nil
}

// ConfigureLogging applies the configured level to the standard logrus logger.
func ConfigureLogging(c LogConfig) error {
	level, err := log.ParseLevel(c.Level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	return nil
}
