package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"

	"github.com/jakechorley/volunteer-hours/pkg/core/autopublish"
)

const (
	EmailProviderGmail = "gmail"
	EmailProviderLog   = "log"

	// DefaultRunLockKey is the postgres advisory lock key used to serialise runs
	DefaultRunLockKey int64 = 727274
)

// AutoPublishConfig controls the certificate auto-publish job
type AutoPublishConfig struct {
	Enabled            bool          `yaml:"enabled"`
	MinAge             time.Duration `yaml:"minAge" validate:"gt=0"`
	MaxAge             time.Duration `yaml:"maxAge" validate:"gt=0"`
	MaxSessionDuration time.Duration `yaml:"maxSessionDuration" validate:"gt=0"`
	NotifyConcurrency  int           `yaml:"notifyConcurrency" validate:"min=1,max=32"`
	InterSessionDelay  time.Duration `yaml:"interSessionDelay" validate:"gte=0"`
	SiteURL            string        `yaml:"siteURL" validate:"required,url"`
	DefaultTimeZone    string        `yaml:"defaultTimeZone" validate:"required"`
}

// EmailConfig selects how certificate emails are delivered
type EmailConfig struct {
	Provider    string `yaml:"provider" validate:"required,oneof=gmail log"`
	From        string `yaml:"from" validate:"required,email"`
	GmailUserID string `yaml:"gmailUserID,omitempty" validate:"required_if=Provider gmail"`
}

// ScheduleConfig defines when serve runs the job itself. At most one of Cron and RRule may be set.
type ScheduleConfig struct {
	Cron     string `yaml:"cron,omitempty"`
	RRule    string `yaml:"rrule,omitempty"`
	Timezone string `yaml:"timezone,omitempty"`
}

// IsSet reports whether an in-process schedule is configured
func (s ScheduleConfig) IsSet() bool {
	return s.Cron != "" || s.RRule != ""
}

// Config represents the application configuration
type Config struct {
	DatabaseURL    string            `yaml:"databaseURL" validate:"required"`
	HTTPAddr       string            `yaml:"httpAddr" validate:"required"`
	CronSecret     string            `yaml:"cronSecret,omitempty"`
	RunLockKey     int64             `yaml:"runLockKey"`
	MetricsEnabled bool              `yaml:"metricsEnabled"`
	JSONLogs       bool              `yaml:"jsonLogs"`
	AutoPublish    AutoPublishConfig `yaml:"autoPublish"`
	Email          EmailConfig       `yaml:"email"`
	Schedule       ScheduleConfig    `yaml:"schedule,omitempty"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Default returns a configuration with every optional setting filled in
func Default() Config {
	return Config{
		HTTPAddr:       ":8080",
		RunLockKey:     DefaultRunLockKey,
		MetricsEnabled: true,
		AutoPublish: AutoPublishConfig{
			MinAge:             48 * time.Hour,
			MaxAge:             72 * time.Hour,
			MaxSessionDuration: autopublish.MaxSessionDuration,
			NotifyConcurrency:  4,
			InterSessionDelay:  time.Second,
			DefaultTimeZone:    "UTC",
		},
		Email: EmailConfig{
			Provider: EmailProviderGmail,
		},
	}
}

// LoadWithEnv loads and validates autopublish_config.<env>.yaml.
// It looks for the config file in the current directory first, then in the user's home directory.
func LoadWithEnv(env string) (*Config, error) {
	configPath, err := findConfigFile(env)
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads and validates the configuration from a specific path.
// DATABASE_URL and CRON_SECRET in the environment take precedence over the file.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(&cfg, os.LookupEnv)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup("DATABASE_URL"); ok && v != "" {
		cfg.DatabaseURL = v
	}
	if v, ok := lookup("CRON_SECRET"); ok && v != "" {
		cfg.CronSecret = v
	}
}

// Validate validates the configuration struct and checks time zones and schedule syntax
func Validate(cfg *Config) error {
	// Run struct validation
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	ap := cfg.AutoPublish
	if ap.MinAge >= ap.MaxAge {
		return fmt.Errorf("autoPublish.minAge (%s) must be less than autoPublish.maxAge (%s)", ap.MinAge, ap.MaxAge)
	}

	if _, err := time.LoadLocation(ap.DefaultTimeZone); err != nil {
		return fmt.Errorf("invalid autoPublish.defaultTimeZone: %w", err)
	}

	return validateSchedule(cfg.Schedule)
}

func validateSchedule(s ScheduleConfig) error {
	if s.Cron != "" && s.RRule != "" {
		return fmt.Errorf("schedule: only one of cron and rrule may be set")
	}

	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return fmt.Errorf("invalid schedule.timezone: %w", err)
		}
	}

	if s.Cron != "" {
		if _, err := cron.ParseStandard(s.Cron); err != nil {
			return fmt.Errorf("invalid cron in schedule: %w", err)
		}
	}

	if s.RRule != "" {
		if _, err := rrule.StrToRRule(s.RRule); err != nil {
			return fmt.Errorf("invalid rrule in schedule: %w", err)
		}
	}

	return nil
}

// DefaultLocation returns the time zone used for projects without one
func (c *Config) DefaultLocation() *time.Location {
	loc, err := time.LoadLocation(c.AutoPublish.DefaultTimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ScheduleLocation returns the time zone schedules are evaluated in, UTC if unset
func (c *Config) ScheduleLocation() *time.Location {
	if c.Schedule.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// AutoPublishSettings maps the file configuration onto the job configuration
func (c *Config) AutoPublishSettings() autopublish.Config {
	return autopublish.Config{
		MinAge:             c.AutoPublish.MinAge,
		MaxAge:             c.AutoPublish.MaxAge,
		MaxSessionDuration: c.AutoPublish.MaxSessionDuration,
		NotifyConcurrency:  c.AutoPublish.NotifyConcurrency,
		InterSessionDelay:  c.AutoPublish.InterSessionDelay,
		SiteURL:            c.AutoPublish.SiteURL,
		FromAddress:        c.Email.From,
		DefaultLocation:    c.DefaultLocation(),
	}
}

// configFileName returns autopublish_config.yaml, or autopublish_config.<env>.yaml when env is set
func configFileName(env string) string {
	if env == "" {
		return "autopublish_config.yaml"
	}
	return "autopublish_config." + env + ".yaml"
}

// findConfigFile searches for the config file in current directory and home directory
func findConfigFile(env string) (string, error) {
	name := configFileName(env)

	// Check current directory
	if _, err := os.Stat(name); err == nil {
		return name, nil
	}

	// Check home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	homeConfigPath := filepath.Join(homeDir, name)
	if _, err := os.Stat(homeConfigPath); err == nil {
		return homeConfigPath, nil
	}

	return "", fmt.Errorf("%s not found in current directory or home directory", name)
}
