package config

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"dirsync/internal/bootstrap/logging"
	"dirsync/internal/errs"
)

const EnvPrefix = "DIRSYNC"

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Metadata  MetadataConfig  `mapstructure:"metadata"`
	Directory DirectoryConfig `mapstructure:"directory"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Notify    NotifyConfig    `mapstructure:"notify"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// MetadataConfig describes the optional key/name/value store. An empty DSN
// disables the linker.
type MetadataConfig struct {
	Driver      string    `mapstructure:"driver"`
	DSN         string    `mapstructure:"dsn"`
	Table       string    `mapstructure:"table"`
	AutoMigrate bool      `mapstructure:"auto_migrate"`
	Names       LinkNames `mapstructure:"names"`
}

type LinkNames struct {
	StableID string `mapstructure:"stable_id"`
	Username string `mapstructure:"username"`
	Email    string `mapstructure:"email"`
}

func (m MetadataConfig) Database() DatabaseConfig {
	return DatabaseConfig{Driver: m.Driver, DSN: m.DSN}
}

type DirectoryConfig struct {
	Source string              `mapstructure:"source"`
	File   FileDirectoryConfig `mapstructure:"file"`
	LDAP   LDAPConfig          `mapstructure:"ldap"`
}

type FileDirectoryConfig struct {
	Path string `mapstructure:"path"`
}

type LDAPConfig struct {
	URL                string         `mapstructure:"url"`
	BindDN             string         `mapstructure:"bind_dn"`
	BindPassword       string         `mapstructure:"bind_password"`
	BaseDN             string         `mapstructure:"base_dn"`
	Filter             string         `mapstructure:"filter"`
	PageSize           uint32         `mapstructure:"page_size"`
	StartTLS           bool           `mapstructure:"start_tls"`
	InsecureSkipVerify bool           `mapstructure:"insecure_skip_verify"`
	Timeout            time.Duration  `mapstructure:"timeout"`
	Attributes         LDAPAttributes `mapstructure:"attributes"`
}

type LDAPAttributes struct {
	ID          string `mapstructure:"id"`
	Username    string `mapstructure:"username"`
	Email       string `mapstructure:"email"`
	DisplayName string `mapstructure:"display_name"`
	Company     string `mapstructure:"company"`
	Department  string `mapstructure:"department"`
}

type SnapshotConfig struct {
	Retain    int `mapstructure:"retain"`
	BatchSize int `mapstructure:"batch_size"`
}

type ReconcileConfig struct {
	FailOnRowErrors bool `mapstructure:"fail_on_row_errors"`
}

type NotifyConfig struct {
	NATS NATSConfig `mapstructure:"nats"`
}

type NATSConfig struct {
	URL     string        `mapstructure:"url"`
	Subject string        `mapstructure:"subject"`
	Name    string        `mapstructure:"name"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("directory_source", cfg.Directory.Source),
		slog.Bool("metadata_enabled", cfg.Metadata.DSN != ""),
		slog.Bool("notify_enabled", cfg.Notify.NATS.URL != ""),
	)

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database.dsn is required")
	}
	switch strings.ToLower(c.Directory.Source) {
	case "ldap", "file":
	default:
		return errors.New(`directory.source must be "ldap" or "file"`)
	}
	if c.Snapshot.Retain < 1 {
		return errors.New("snapshot.retain must be at least 1")
	}
	return nil
}

// setDefaults registers every key that may come from the environment only;
// viper ignores unknown keys on Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "dirsync")
	v.SetDefault("app.env", "local")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "")

	v.SetDefault("metadata.dsn", "")
	v.SetDefault("metadata.auto_migrate", false)
	v.SetDefault("directory.file.path", "")
	v.SetDefault("directory.ldap.url", "")
	v.SetDefault("directory.ldap.bind_dn", "")
	v.SetDefault("directory.ldap.bind_password", "")
	v.SetDefault("directory.ldap.base_dn", "")
	v.SetDefault("directory.ldap.start_tls", false)
	v.SetDefault("directory.ldap.insecure_skip_verify", false)
	v.SetDefault("reconcile.fail_on_row_errors", false)
	v.SetDefault("notify.nats.url", "")

	v.SetDefault("metadata.driver", "sqlite")
	v.SetDefault("metadata.table", "MADB_Meta")
	v.SetDefault("metadata.names.stable_id", "ADObjectGuid")
	v.SetDefault("metadata.names.username", "ADUsername")
	v.SetDefault("metadata.names.email", "eMail")

	v.SetDefault("directory.source", "ldap")
	v.SetDefault("directory.ldap.filter", "(&(objectCategory=person)(objectClass=user))")
	v.SetDefault("directory.ldap.page_size", 1000)
	v.SetDefault("directory.ldap.timeout", "30s")

	v.SetDefault("snapshot.retain", 2)
	v.SetDefault("snapshot.batch_size", 500)

	v.SetDefault("notify.nats.subject", "dirsync.changes")
	v.SetDefault("notify.nats.name", "dirsync")
	v.SetDefault("notify.nats.timeout", "5s")
}
