package config

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/vault-client-go"
	"github.com/spf13/viper"
	_ "github.com/spf13/viper/remote"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	config      = viper.New()
	backend     = "consul"
	backendAddr = "127.0.0.1:8500"
	backendPath = "development"
	configType  = "yaml"
)

type Config struct {
	AppEnv     string `mapstructure:"APP_ENV"`
	AppName    string `mapstructure:"APP_NAME"`
	AppVersion string `mapstructure:"APP_VERSION"`
	TLS        struct {
		Enable   bool   `mapstructure:"ENABLE"`
		CertPath string `mapstructure:"CERT_PATH"`
		KeyPath  string `mapstructure:"KEY_PATH"`
	} `mapstructure:"TLS"`
	Server struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	Admin struct {
		User         string `mapstructure:"USER"`
		Password     string `mapstructure:"PASSWORD"`
		PasswordHash string `mapstructure:"PASSWORD_HASH"`
		Realm        string `mapstructure:"REALM"`
	} `mapstructure:"ADMIN"`
	Database struct {
		Type           string `mapstructure:"TYPE"`
		Host           string `mapstructure:"HOST"`
		Port           string `mapstructure:"PORT"`
		DBNAME         string `mapstructure:"DBNAME"`
		User           string `mapstructure:"USER"`
		Password       string `mapstructure:"PASSWORD"`
		SSLMode        string `mapstructure:"SSLMODE"`
		Timezone       string `mapstructure:"TIMEZONE"`
		ConnectionPool struct {
			MaxIdleConn     int           `mapstructure:"MAX_IDLE_CONN"`
			MaxOpenConns    int           `mapstructure:"MAX_OPEN_CONNS"`
			ConnMaxLifetime time.Duration `mapstructure:"CONN_MAX_LIFETIME"`
			ConnMaxIdleTime time.Duration `mapstructure:"CONN_MAX_IDLE_TIME"`
		} `mapstructure:"CONNECTION_POOL"`
	} `mapstructure:"DATABASE"`
	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`
	Minio struct {
		Endpoint   string `mapstructure:"ENDPOINT"`
		AccessKey  string `mapstructure:"ACCESS_KEY"`
		SecretKey  string `mapstructure:"SECRET_KEY"`
		Secure     bool   `mapstructure:"SECURE"`
		BucketName string `mapstructure:"BUCKET_NAME"`
	} `mapstructure:"MINIO"`
	Backup struct {
		ScheduleHour   int  `mapstructure:"SCHEDULE_HOUR"`
		ScheduleMinute int  `mapstructure:"SCHEDULE_MINUTE"`
		Upload         bool `mapstructure:"UPLOAD"`
	} `mapstructure:"BACKUP"`
	AccessControl struct {
		Model  string `mapstructure:"MODEL"`
		Policy string `mapstructure:"POLICY"`
	} `mapstructure:"ACCESS_CONTROL"`
	ConfigCacheTTL time.Duration `mapstructure:"CONFIG_CACHE_TTL"`
	Otel           struct {
		Enable bool `mapstructure:"ENABLE"`
	} `mapstructure:"OTEL"`
}

var Module = fx.Module("config", fx.Provide(LoadConfig))

type Params struct {
	fx.In
	Vault *vault.Client `optional:"true"`
}

func LoadConfig(p Params) *Config {

	config.SetConfigName("config")
	config.SetConfigType(configType)
	config.AddConfigPath(".")

	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AutomaticEnv()

	setDefaults()

	if v, ok := os.LookupEnv("REMOTE_CONFIG_PROVIDER"); ok {
		backend = v
		if addr, ok := os.LookupEnv("REMOTE_CONFIG_ADDR"); ok {
			backendAddr = addr
		}
		if path, ok := os.LookupEnv("REMOTE_CONFIG_PATH"); ok {
			backendPath = path
		}
		if err := config.AddRemoteProvider(backend, backendAddr, backendPath); err != nil {
			zap.L().Error("failed to register remote config provider", zap.Error(err))
			os.Exit(1)
		}
		if err := config.ReadRemoteConfig(); err != nil {
			zap.L().Error("failed to read remote config", zap.Error(err))
			os.Exit(1)
		}
	} else if err := config.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			os.Exit(1)
		}
	}

	var cfg Config
	if err := config.Unmarshal(&cfg); err != nil {
		os.Exit(1)
	}

	if p.Vault != nil {
		overlaySecrets(p.Vault, &cfg)
	}

	return &cfg
}

func setDefaults() {
	config.SetDefault("APP_ENV", "development")
	config.SetDefault("APP_NAME", "amulet-controlplane")
	config.SetDefault("APP_VERSION", "0.0.0")
	config.SetDefault("HTTP_SERVER.ADDR", ":8080")
	config.SetDefault("HTTP_SERVER.READ_TIMEOUT", 15*time.Second)
	config.SetDefault("HTTP_SERVER.WRITE_TIMEOUT", 15*time.Second)
	config.SetDefault("HTTP_SERVER.IDLE_TIMEOUT", 60*time.Second)
	config.SetDefault("ADMIN.USER", "admin")
	config.SetDefault("ADMIN.REALM", "Amulet Admin")
	config.SetDefault("DATABASE.TYPE", "sqlite")
	config.SetDefault("DATABASE.DBNAME", "amulet.db")
	config.SetDefault("BACKUP.SCHEDULE_HOUR", 1)
	config.SetDefault("CONFIG_CACHE_TTL", 30*time.Second)
}

// overlaySecrets replaces credentials with their Vault copies when a Vault
// client is wired in. Missing keys leave the config values untouched.
func overlaySecrets(client *vault.Client, cfg *Config) {
	ctx := context.Background()

	secret, err := client.Secrets.KvV2Read(ctx, cfg.AppEnv, vault.WithMountPath("secret"))
	if err != nil {
		zap.L().Error("failed to read secrets from vault", zap.String("path", cfg.AppEnv), zap.Error(err))
		os.Exit(1)
	}

	get := func(key string) string {
		if val, ok := secret.Data.Data[key].(string); ok {
			return val
		}
		return ""
	}

	if v := get("database_password"); v != "" {
		cfg.Database.Password = v
	}
	if v := get("redis_password"); v != "" {
		cfg.Redis.Password = v
	}
	if v := get("admin_password"); v != "" {
		cfg.Admin.Password = v
	}
	if v := get("admin_password_hash"); v != "" {
		cfg.Admin.PasswordHash = v
	}
	if v := get("minio_secret_key"); v != "" {
		cfg.Minio.SecretKey = v
	}
}
