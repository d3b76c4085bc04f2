package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

var configLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	configLogger = l
}

// Config represents the complete configuration structure
type Config struct {
	Site    SiteConfig    `yaml:"site"`
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
	Auth    AuthConfig    `yaml:"auth"`
	Blog    BlogConfig    `yaml:"blog"`
	Theme   ThemeConfig   `yaml:"theme"`
	Logging LoggingConfig `yaml:"logging"`
}

type SiteConfig struct {
	Name        string `yaml:"name" default:"Folio"`
	Description string `yaml:"description" default:"A personal portfolio and blog"`
	Tagline     string `yaml:"tagline" default:"Welcome"`
}

type ServerConfig struct {
	Host string `yaml:"host" default:"0.0.0.0"`
	Port string `yaml:"port" default:"12600"`
}

// StoreConfig selects and configures the document store backend. AppID is the
// application namespace every collection path is scoped under; it is required.
type StoreConfig struct {
	Backend      string       `yaml:"backend" default:"sqlite"`
	AppID        string       `yaml:"app_id" default:""`
	PollInterval int          `yaml:"poll_interval_seconds" default:"5"`
	SQLite       SQLiteConfig `yaml:"sqlite"`
	S3           S3Config     `yaml:"s3"`
}

type SQLiteConfig struct {
	Path string `yaml:"path" default:"./folio.db"`
}

type S3Config struct {
	Endpoint string `yaml:"endpoint" default:""`
	Bucket   string `yaml:"bucket" default:""`
	Region   string `yaml:"region" default:"auto"`
}

// AuthConfig selects the identity provider. The session token itself comes
// from the environment, never from the config file.
type AuthConfig struct {
	Provider string `yaml:"provider" default:"token"`
	Owner    string `yaml:"owner" default:"owner"`
}

type BlogConfig struct {
	Author string `yaml:"author" default:"Anonymous"`
}

type ThemeConfig struct {
	Default            string       `yaml:"default" default:"dark"`
	AllowSwitching     bool         `yaml:"allow_switching" default:"true"`
	SyntaxHighlighting SyntaxConfig `yaml:"syntax_highlighting"`
}

type SyntaxConfig struct {
	DefaultDark  string `yaml:"default_dark" default:"gruvbox"`
	DefaultLight string `yaml:"default_light" default:"catppuccin-latte"`
}

type LoggingConfig struct {
	Level string `yaml:"level" default:"info"`
}

var AppConfig *Config

func LoadConfig(path string) error {
	config := &Config{}

	// Apply default values first
	applyDefaults(config)

	// Try to read and parse the config file
	data, err := os.ReadFile(path)
	if err != nil {
		// If file doesn't exist, just use defaults
		configLogger.Info().Str("path", path).Msg("Config file not found, using defaults")
		AppConfig = config
		return config.Validate()
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return &ConfigError{Field: "file", Reason: fmt.Sprintf("failed to parse %s: %v", path, err)}
	}

	AppConfig = config
	return config.Validate()
}

// Validate enforces the settings the backends cannot start without. A
// returned ConfigError is fatal: nothing downstream initializes.
func (c *Config) Validate() error {
	if c.Store.AppID == "" {
		return &ConfigError{Field: "store.app_id", Reason: "required"}
	}

	switch c.Store.Backend {
	case "sqlite":
		if c.Store.SQLite.Path == "" {
			return &ConfigError{Field: "store.sqlite.path", Reason: "required for the sqlite backend"}
		}
	case "s3":
		if c.Store.S3.Bucket == "" {
			return &ConfigError{Field: "store.s3.bucket", Reason: "required for the s3 backend"}
		}
		if c.Store.S3.Endpoint == "" {
			return &ConfigError{Field: "store.s3.endpoint", Reason: "required for the s3 backend"}
		}
	case "memory":
	default:
		return &ConfigError{Field: "store.backend", Reason: fmt.Sprintf("unknown backend %q", c.Store.Backend)}
	}

	switch c.Auth.Provider {
	case "token", "clerk":
	default:
		return &ConfigError{Field: "auth.provider", Reason: fmt.Sprintf("unknown provider %q", c.Auth.Provider)}
	}

	if c.Store.PollInterval <= 0 {
		return &ConfigError{Field: "store.poll_interval_seconds", Reason: "must be positive"}
	}

	return nil
}

func ApplyDefaults(config interface{}) {
	applyDefaults(config)
}

func applyDefaults(config interface{}) {
	v := reflect.ValueOf(config)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.IsValid() || !field.CanSet() {
			continue
		}

		// Recursively apply defaults to nested structs
		if field.Kind() == reflect.Struct {
			applyDefaults(field.Addr().Interface())
			continue
		}

		defaultValue := fieldType.Tag.Get("default")
		if defaultValue == "" {
			continue
		}

		switch field.Kind() {
		case reflect.String:
			field.SetString(defaultValue)
		case reflect.Bool:
			if val, err := strconv.ParseBool(defaultValue); err == nil {
				field.SetBool(val)
			}
		case reflect.Int:
			if val, err := strconv.ParseInt(defaultValue, 10, 64); err == nil {
				field.SetInt(val)
			}
		case reflect.Float64:
			if val, err := strconv.ParseFloat(defaultValue, 64); err == nil {
				field.SetFloat(val)
			}
		case reflect.Slice:
			if field.Len() == 0 && field.Type().Elem().Kind() == reflect.String {
				parts := strings.Split(defaultValue, ",")
				slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
				for j, part := range parts {
					slice.Index(j).SetString(strings.TrimSpace(part))
				}
				field.Set(slice)
			}
		default:
			configLogger.Warn().
				Str("field_name", fieldType.Name).
				Str("field_type", field.Kind().String()).
				Msg("Unsupported field type for default value")
		}
	}
}
