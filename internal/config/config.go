package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

type Config struct {
	Redis     RedisConfig     `mapstructure:"redis"`
	MySQL     MySQLConfig     `mapstructure:"mysql"`
	Leader    LeaderConfig    `mapstructure:"leader"`
	Instance  InstanceConfig  `mapstructure:"instance"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Auction   AuctionConfig   `mapstructure:"auction"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Clock     ClockConfig     `mapstructure:"clock"`
	Log       LogConfig       `mapstructure:"log"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// List the service pops auction commands from.
	CommandQueue string `mapstructure:"command_queue"`
	// Channel bid events are published on.
	EventChannel string `mapstructure:"event_channel"`
}

type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type LeaderConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type InstanceConfig struct {
	ID string `mapstructure:"id"`
}

// StorageConfig selects where auction records live: "memory", "redis" or
// "mysql".
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	KeyPrefix string `mapstructure:"key_prefix"`
	// Lifetime of per-auction locks held in Redis.
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

type IncrementTier struct {
	// Upper bound (exclusive) of the current bid for this tier, 0 for the
	// open-ended last tier.
	Below uint64 `mapstructure:"below"`
	Step  uint64 `mapstructure:"step"`
}

type AuctionConfig struct {
	// Blocks before the end within which an accepted bid extends the end.
	ExtensionWindow uint64 `mapstructure:"extension_window"`
	// Blocks after the bid the end is moved to.
	ExtensionPeriod uint64          `mapstructure:"extension_period"`
	MinimumBid      uint64          `mapstructure:"minimum_bid"`
	AllowEqualBids  bool            `mapstructure:"allow_equal_bids"`
	Beneficiary     string          `mapstructure:"beneficiary"`
	IncrementTiers  []IncrementTier `mapstructure:"increment_tiers"`
}

type SchedulerConfig struct {
	// Cron spec (with seconds) for polling due jobs.
	Spec string `mapstructure:"spec"`
}

type ClockConfig struct {
	Genesis       time.Time     `mapstructure:"genesis"`
	BlockInterval time.Duration `mapstructure:"block_interval"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.command_queue", "auction_commands")
	v.SetDefault("redis.event_channel", "auction_events")
	v.SetDefault("mysql.dsn", "auction_user:auction_pass@tcp(localhost:3306)/auction_db?parseTime=true")
	v.SetDefault("mysql.max_open_conns", 25)
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("leader.ttl", 30*time.Second)
	v.SetDefault("instance.id", "auction-service-1")
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.key_prefix", "auction")
	v.SetDefault("storage.lock_ttl", 10*time.Second)
	v.SetDefault("auction.extension_window", 5)
	v.SetDefault("auction.extension_period", 5)
	v.SetDefault("auction.minimum_bid", 1)
	v.SetDefault("auction.allow_equal_bids", false)
	v.SetDefault("auction.beneficiary", "treasury")
	v.SetDefault("scheduler.spec", "@every 1s")
	v.SetDefault("clock.genesis", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	v.SetDefault("clock.block_interval", 6*time.Second)
	v.SetDefault("log.level", "info")
}

func bindEnv(v *viper.Viper) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Environment variable mappings
	_ = v.BindEnv("redis.address", "REDIS_ADDRESS")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("mysql.dsn", "MYSQL_DSN")
	_ = v.BindEnv("mysql.max_open_conns", "MYSQL_MAX_OPEN_CONNS")
	_ = v.BindEnv("mysql.max_idle_conns", "MYSQL_MAX_IDLE_CONNS")
	_ = v.BindEnv("mysql.conn_max_lifetime", "MYSQL_CONN_MAX_LIFETIME")
	_ = v.BindEnv("leader.ttl", "LEADER_TTL")
	_ = v.BindEnv("instance.id", "INSTANCE_ID")
	_ = v.BindEnv("storage.backend", "STORAGE_BACKEND")
	_ = v.BindEnv("storage.key_prefix", "STORAGE_KEY_PREFIX")
	_ = v.BindEnv("redis.command_queue", "REDIS_COMMAND_QUEUE")
	_ = v.BindEnv("log.level", "LOG_LEVEL")
}

// Load reads config.yaml from the usual locations if present, then applies
// environment overrides on top of defaults.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/auction-core/")
	bindEnv(v)

	// Read configuration file (optional - will use defaults/env vars if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	return unmarshal(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeHookFunc(time.RFC3339),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&config, hook); err != nil {
		return nil, err
	}
	if len(config.Auction.IncrementTiers) == 0 {
		config.Auction.IncrementTiers = DefaultIncrementTiers()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// DefaultIncrementTiers mirrors the classic 5/10/25 ladder.
func DefaultIncrementTiers() []IncrementTier {
	return []IncrementTier{
		{Below: 100, Step: 5},
		{Below: 500, Step: 10},
		{Below: 0, Step: 25},
	}
}

func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "memory", "redis", "mysql":
	default:
		return fmt.Errorf("storage.backend: unknown backend %q", c.Storage.Backend)
	}
	if c.Auction.ExtensionWindow > 0 && c.Auction.ExtensionPeriod < c.Auction.ExtensionWindow {
		return fmt.Errorf("auction.extension_period (%d) must not be shorter than auction.extension_window (%d)",
			c.Auction.ExtensionPeriod, c.Auction.ExtensionWindow)
	}
	if c.Auction.Beneficiary == "" {
		return errors.New("auction.beneficiary must be set")
	}
	if c.Clock.BlockInterval <= 0 {
		return errors.New("clock.block_interval must be positive")
	}
	if c.Leader.TTL <= 0 {
		return errors.New("leader.ttl must be positive")
	}
	if c.Storage.LockTTL <= 0 {
		return errors.New("storage.lock_ttl must be positive")
	}
	if c.Scheduler.Spec == "" {
		return errors.New("scheduler.spec must be set")
	}
	if c.Redis.CommandQueue == "" {
		return errors.New("redis.command_queue must be set")
	}
	return nil
}

// GetConfigString returns a formatted string representation of the config
func (c *Config) GetConfigString() string {
	return fmt.Sprintf(
		"Storage: %s, Redis: %s, Instance: %s, Window: %d, Period: %d",
		c.Storage.Backend,
		c.Redis.Address,
		c.Instance.ID,
		c.Auction.ExtensionWindow,
		c.Auction.ExtensionPeriod,
	)
}
