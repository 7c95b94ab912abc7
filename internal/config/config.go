// Package config loads streakline settings from an optional .env file, a YAML config file
// and STREAKLINE_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/julianstephens/streakline/internal/constants"
	"github.com/julianstephens/streakline/internal/keyring"
	"github.com/julianstephens/streakline/internal/storage/postgres"
	"github.com/julianstephens/streakline/internal/utils"
)

const (
	EnvPrefix      = "STREAKLINE"
	ConfigFileName = "config.yaml"
)

type Config struct {
	Database      string              `mapstructure:"database"`
	Owner         string              `mapstructure:"owner"`
	LookaheadDays int                 `mapstructure:"lookahead_days"`
	DailyRunAt    string              `mapstructure:"daily_run_at"`
	Events        EventsConfig        `mapstructure:"events"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Log           LogConfig           `mapstructure:"log"`

	// Dir is the directory holding the config file, logs and the default database.
	Dir string `mapstructure:"-"`
}

type EventsConfig struct {
	Dir           string `mapstructure:"dir"`
	EscalateAfter int    `mapstructure:"escalate_after"`
}

type NotificationsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type LogConfig struct {
	Debug bool `mapstructure:"debug"`
}

// DefaultPath is the config file read when no explicit path is given.
func DefaultPath() string {
	return filepath.Join(constants.DefaultConfigDir, ConfigFileName)
}

// Load reads configuration from path, or DefaultPath when path is empty. A missing default
// file is not an error; a missing explicit file is.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	path, err := utils.ExpandPath(path)
	if err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v, filepath.Dir(path))
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if _, statErr := os.Stat(path); statErr == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config file %s: %w", path, statErr)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Dir = filepath.Dir(path)

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDotEnv(name string) error {
	if _, err := os.Stat(name); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(name); err != nil {
		return fmt.Errorf("failed to load %s: %w", name, err)
	}
	return nil
}

func setDefaults(v *viper.Viper, dir string) {
	v.SetDefault("database", filepath.Join(dir, constants.AppName+".db"))
	v.SetDefault("owner", constants.DefaultOwner)
	v.SetDefault("lookahead_days", constants.DefaultLookaheadDays)
	v.SetDefault("daily_run_at", constants.DefaultDailyRunAt)
	v.SetDefault("events.dir", filepath.Join(dir, constants.EventsDirName))
	v.SetDefault("events.escalate_after", constants.DefaultEscalateAfter)
	v.SetDefault("notifications.enabled", false)
	v.SetDefault("log.debug", false)
}

func (c *Config) normalize() error {
	c.Owner = strings.TrimSpace(c.Owner)
	if c.Owner == "" {
		return errors.New("owner cannot be empty")
	}
	if c.LookaheadDays < 1 {
		return fmt.Errorf("lookahead_days must be at least 1, got %d", c.LookaheadDays)
	}
	if _, err := utils.ParseTimeOfDay(c.DailyRunAt); err != nil {
		return fmt.Errorf("daily_run_at must be HH:MM, got %q", c.DailyRunAt)
	}
	if c.Events.EscalateAfter < 1 {
		c.Events.EscalateAfter = constants.DefaultEscalateAfter
	}

	var err error
	if c.Events.Dir, err = utils.ExpandPath(c.Events.Dir); err != nil {
		return err
	}
	return c.SetDatabase(c.Database)
}

// SetDatabase replaces the configured database, expanding SQLite paths and rejecting
// PostgreSQL connection strings that carry a password.
func (c *Config) SetDatabase(db string) error {
	db = strings.TrimSpace(db)
	switch {
	case db == "":
		return errors.New("database cannot be empty")
	case keyring.IsReference(db):
		c.Database = keyring.Reference
		return nil
	case IsPostgres(db):
		if _, err := postgres.ValidateConnString(db); err != nil {
			if errors.Is(err, postgres.ErrEmbeddedCredentials) {
				return fmt.Errorf("%w; store it with 'streakline keyring set' and set database to %q", err, keyring.Reference)
			}
			return err
		}
		c.Database = db
		return nil
	default:
		path, err := utils.ExpandPath(db)
		if err != nil {
			return err
		}
		c.Database = path
		return nil
	}
}

// DatabaseTarget returns the SQLite path or PostgreSQL connection string to open, reading
// the OS keyring when the database is set to the keyring reference.
func (c *Config) DatabaseTarget() (string, error) {
	return keyring.Resolve(c.Database)
}

// IsPostgres reports whether db is a PostgreSQL URI or key=value DSN rather than a file path.
func IsPostgres(db string) bool {
	if postgres.IsConnString(db) {
		return true
	}
	return strings.Contains(db, "host=") || strings.Contains(db, "dbname=")
}
