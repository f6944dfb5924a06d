/*
Package config loads server configuration.

SOURCES (highest priority first):
  1. Environment variables prefixed TIMETRACKER_ (dots become underscores,
     e.g. TIMETRACKER_SERVER_PORT)
  2. A .env file in the working directory, if present
  3. A YAML file (explicit path, or ./config/config.yaml, or ./config.yaml)
  4. Defaults below

MARKET KEYS:
  Viper lowercases map keys. Market codes in the notify maps are
  uppercased again after loading so they match User.Market.
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/warp/timetracker/factory"
	"github.com/warp/timetracker/mail"
	"github.com/warp/timetracker/tracker"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	DB        DBConfig        `mapstructure:"db"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	Mail      MailConfig      `mapstructure:"mail"`
	Tracker   TrackerConfig   `mapstructure:"tracker"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DBConfig points at the SQLite file. ":memory:" keeps everything in process.
type DBConfig struct {
	Path string `mapstructure:"path"`
}

// RedisConfig is only used when Enabled; otherwise balances are cached in
// process memory.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MailConfig with an empty SMTPHost logs messages instead of sending them.
type MailConfig struct {
	SMTPHost     string `mapstructure:"smtp_host"`
	SMTPPort     int    `mapstructure:"smtp_port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	From         string `mapstructure:"from"`
	FailSilently bool   `mapstructure:"fail_silently"`
}

type TrackerConfig struct {
	WorkingDays    int                    `mapstructure:"working_days"`
	ZeroingMarkets []string               `mapstructure:"zeroing_markets"`
	Overrides      []factory.OverrideJSON `mapstructure:"overrides"`
}

type NotifyConfig struct {
	ManagerEmailsOverride map[string][]string            `mapstructure:"manager_emails_override"`
	ManagerNamesOverride  map[string][]string            `mapstructure:"manager_names_override"`
	TLApprovalChains      map[string]map[string][]string `mapstructure:"tl_approval_chains"`
}

type SchedulerConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

// Load reads configuration from path (or the default locations when empty),
// the environment and an optional .env file, then validates it.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("TIMETRACKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.normalizeMarkets()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors.allow_origins", []string{"*"})

	v.SetDefault("db.path", "./timetracker.db")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("mail.smtp_host", "")
	v.SetDefault("mail.smtp_port", 25)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", mail.DefaultFrom)
	v.SetDefault("mail.fail_silently", true)

	v.SetDefault("tracker.working_days", tracker.DefaultWorkingDays)
	v.SetDefault("tracker.zeroing_markets", []string{})

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.interval", "24h")
}

func (c *Config) normalizeMarkets() {
	upper := func(m map[string][]string) map[string][]string {
		out := make(map[string][]string, len(m))
		for k, v := range m {
			out[strings.ToUpper(k)] = v
		}
		return out
	}
	c.Notify.ManagerEmailsOverride = upper(c.Notify.ManagerEmailsOverride)
	c.Notify.ManagerNamesOverride = upper(c.Notify.ManagerNamesOverride)

	chains := make(map[string]map[string][]string, len(c.Notify.TLApprovalChains))
	for market, byProcess := range c.Notify.TLApprovalChains {
		chains[strings.ToUpper(market)] = upper(byProcess)
	}
	c.Notify.TLApprovalChains = chains

	for i, m := range c.Tracker.ZeroingMarkets {
		c.Tracker.ZeroingMarkets[i] = strings.ToUpper(strings.TrimSpace(m))
	}
	for i := range c.Tracker.Overrides {
		c.Tracker.Overrides[i].Market = strings.ToUpper(c.Tracker.Overrides[i].Market)
	}
}

// Validate checks the values the server cannot start without.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid config: server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.DB.Path == "" {
		return fmt.Errorf("invalid config: db.path is required")
	}
	if c.Tracker.WorkingDays < 1 || c.Tracker.WorkingDays > 7 {
		return fmt.Errorf("invalid config: tracker.working_days must be between 1 and 7, got %d", c.Tracker.WorkingDays)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid config: log.format must be json or console, got %q", c.Log.Format)
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		return fmt.Errorf("invalid config: scheduler.interval must be positive")
	}
	if _, err := c.Overrides(); err != nil {
		return fmt.Errorf("invalid config: tracker.overrides: %w", err)
	}
	return nil
}

// Overrides builds the per-market calculations.
func (c *Config) Overrides() (map[string]tracker.Calculation, error) {
	return factory.NewStrategyFactory().Build(c.Tracker.Overrides)
}

func (c *Config) NotifyConfig() tracker.NotifyConfig {
	return tracker.NotifyConfig{
		From:                  c.Mail.From,
		ManagerEmailsOverride: c.Notify.ManagerEmailsOverride,
		ManagerNamesOverride:  c.Notify.ManagerNamesOverride,
		TLApprovalChains:      c.Notify.TLApprovalChains,
	}
}

func (c *Config) SMTP() mail.SMTPConfig {
	return mail.SMTPConfig{
		Host:     c.Mail.SMTPHost,
		Port:     c.Mail.SMTPPort,
		Username: c.Mail.Username,
		Password: c.Mail.Password,
		From:     c.Mail.From,
	}
}
