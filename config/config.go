// Package config loads linkbio settings from defaults, an optional config file,
// an optional .env file and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/golang/glog"
	"github.com/spf13/viper"
)

// Config mirrors the keys of config.yaml. Environment variables use the upper-cased
// key with dots replaced by underscores, e.g. SERVER_PORT or AUTH_ACCESS_TTL.
type Config struct {
	Server struct {
		Port    int    `mapstructure:"port"`
		BaseURL string `mapstructure:"base_url"`
		Mode    string `mapstructure:"mode"`
	} `mapstructure:"server"`

	Database struct {
		DSN         string `mapstructure:"dsn"`
		AutoMigrate bool   `mapstructure:"auto_migrate"`
	} `mapstructure:"database"`

	Auth struct {
		JWTSecret  string        `mapstructure:"jwt_secret"`
		AccessTTL  time.Duration `mapstructure:"access_ttl"`
		RefreshTTL time.Duration `mapstructure:"refresh_ttl"`
		BcryptCost int           `mapstructure:"bcrypt_cost"`
	} `mapstructure:"auth"`

	Admin struct {
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
	} `mapstructure:"admin"`

	Registration struct {
		Open bool `mapstructure:"open"`
	} `mapstructure:"registration"`

	Uploads struct {
		Backend      string `mapstructure:"backend"`
		BaseDir      string `mapstructure:"base_dir"`
		PublicPrefix string `mapstructure:"public_prefix"`
		MaxBytes     int64  `mapstructure:"max_bytes"`
		AvatarSize   int    `mapstructure:"avatar_size"`
	} `mapstructure:"uploads"`

	S3 struct {
		Endpoint  string `mapstructure:"endpoint"`
		AccessKey string `mapstructure:"access_key"`
		SecretKey string `mapstructure:"secret_key"`
		Bucket    string `mapstructure:"bucket"`
		Region    string `mapstructure:"region"`
		UseSSL    bool   `mapstructure:"use_ssl"`
		PublicURL string `mapstructure:"public_url"`
	} `mapstructure:"s3"`

	Cron struct {
		PurgeTokens string `mapstructure:"purge_tokens"`
	} `mapstructure:"cron"`
}

// DevJWTSecret is used when no secret is configured. Never deploy with it.
const DevJWTSecret = "dev-insecure-secret-change"

// legacyEnv maps keys to the environment names used by earlier deployments.
var legacyEnv = map[string]string{
	"database.dsn":          "DB_DSN",
	"database.auto_migrate": "DB_AUTO_MIGRATE",
	"auth.jwt_secret":       "JWT_SECRET",
	"uploads.base_dir":      "UPLOAD_BASE",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8081)
	v.SetDefault("server.base_url", "http://localhost:8081")
	v.SetDefault("server.mode", "release")
	v.SetDefault("database.dsn", "sqlite://linkbio.db")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("auth.jwt_secret", DevJWTSecret)
	v.SetDefault("auth.access_ttl", "24h")
	v.SetDefault("auth.refresh_ttl", "720h")
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("admin.username", "admin")
	v.SetDefault("admin.password", "")
	v.SetDefault("registration.open", true)
	v.SetDefault("uploads.backend", "local")
	v.SetDefault("uploads.base_dir", "uploads")
	v.SetDefault("uploads.public_prefix", "/media")
	v.SetDefault("uploads.max_bytes", 5*1024*1024)
	v.SetDefault("uploads.avatar_size", 400)
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.public_url", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.use_ssl", true)
	v.SetDefault("cron.purge_tokens", "0 15 3 * * *")
}

// New returns a viper instance with defaults and environment bindings but no files read.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		// BindEnv only fails when no key is given
		_ = v.BindEnv(key, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env)
	}
	return v
}

// Load reads configuration. When file is empty, config.yaml is searched for in
// ./configs and the working directory. A .env file in the working directory is
// merged when present. Missing files are not an error.
func Load(file string) (*Config, *viper.Viper, error) {
	if err := readDotEnv(); err != nil {
		return nil, nil, err
	}
	v := New()
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, nil, fmt.Errorf("read config: %w", err)
		}
		glog.V(1).Infof("no config file found, using defaults and environment")
	} else {
		glog.Infof("config loaded from %s", v.ConfigFileUsed())
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

// readDotEnv exports KEY=value pairs from ./.env into the process environment
// without overwriting variables that are already set.
func readDotEnv() error {
	env := viper.New()
	env.SetConfigFile(".env")
	env.SetConfigType("env")
	if err := env.ReadInConfig(); err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return nil
		}
		return fmt.Errorf("read .env: %w", err)
	}
	for _, k := range env.AllKeys() {
		name := strings.ToUpper(k)
		if _, exists := os.LookupEnv(name); !exists {
			_ = os.Setenv(name, env.GetString(k))
		}
	}
	glog.V(1).Infof("loaded %d values from .env", len(env.AllKeys()))
	return nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = DevJWTSecret
	}
	if cfg.Auth.JWTSecret == DevJWTSecret {
		glog.Warning("auth.jwt_secret is not set; using the development secret")
	}
	return &cfg, nil
}

// Watch re-decodes the configuration whenever the config file changes and hands
// the new value to onChange. It does nothing when no config file was loaded.
func Watch(v *viper.Viper, onChange func(*Config)) {
	if v.ConfigFileUsed() == "" {
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(v)
		if err != nil {
			glog.Errorf("config reload from %s failed: %v", e.Name, err)
			return
		}
		glog.Infof("config reloaded from %s", e.Name)
		onChange(cfg)
	})
	v.WatchConfig()
}

// Defaults returns the configuration built from defaults and the environment only.
func Defaults() (*Config, error) {
	return decode(New())
}
