package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dkeye/barflow/internal/domain"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Storage struct {
	// Driver is sqlite, postgres or mysql.
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	Path     string `mapstructure:"path"`
	PoolSize int    `mapstructure:"pool_size"`
}

type Redis struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type Rabbit struct {
	URL   string `mapstructure:"url"`
	Queue string `mapstructure:"queue"`
}

type Presence struct {
	SnapshotInterval time.Duration `mapstructure:"snapshot_interval"`
	// Backpressure is kick or tolerate.
	Backpressure string `mapstructure:"backpressure"`
}

type Signal struct {
	SendBuffer int     `mapstructure:"send_buffer"`
	JoinRate   float64 `mapstructure:"join_rate"`
	JoinBurst  int     `mapstructure:"join_burst"`
}

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`

	Storage  Storage       `mapstructure:"storage"`
	Redis    Redis         `mapstructure:"redis"`
	Rabbit   Rabbit        `mapstructure:"rabbit"`
	Presence Presence      `mapstructure:"presence"`
	Signal   Signal        `mapstructure:"signal"`
	Menu     []domain.Item `mapstructure:"menu"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "change-me")

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.path", "./data/barflow.db")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.pool_size", 0)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "5m")
	v.SetDefault("rabbit.url", "")
	v.SetDefault("rabbit.queue", "bar.stock")

	v.SetDefault("presence.snapshot_interval", "30s")
	v.SetDefault("presence.backpressure", "kick")

	v.SetDefault("signal.send_buffer", 32)
	v.SetDefault("signal.join_rate", 1.0)
	v.SetDefault("signal.join_burst", 5)
}

// Load reads .env, then config/config.<CONFIG_ENV>.yaml, then BARFLOW_*
// environment variables, then command-line flags. Later sources win.
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("module", "config").Msg("reading .env")
	}

	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)
	v.SetConfigFile(fileName)

	setDefaults(v)

	v.SetEnvPrefix("BARFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	flags := pflag.NewFlagSet("barflow", pflag.ContinueOnError)
	flags.Int("port", 0, "HTTP listen port")
	flags.String("mode", "", "gin mode: debug or release")
	flags.String("storage.driver", "", "ledger storage: sqlite, postgres or mysql")
	flags.String("storage.path", "", "sqlite database file")
	flags.String("storage.dsn", "", "postgres or mysql DSN")
	flags.String("redis.addr", "", "redis address for the item cache; empty disables it")
	flags.String("rabbit.url", "", "AMQP URL of the stock feed; empty disables it")
	if err := flags.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}
	// Only flags given on the command line override lower layers.
	flags.Visit(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
	})

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).
		Str("storage", cfg.Storage.Driver).Int("menu_items", len(cfg.Menu)).Msg("config ready")
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.Path == "" {
			return errors.New("config: storage.path is required for sqlite")
		}
	case "postgres", "mysql":
		if c.Storage.DSN == "" {
			return fmt.Errorf("config: storage.dsn is required for %s", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("config: unknown storage.driver %q", c.Storage.Driver)
	}
	switch c.Presence.Backpressure {
	case "kick", "tolerate":
	default:
		return fmt.Errorf("config: presence.backpressure must be kick or tolerate, got %q", c.Presence.Backpressure)
	}
	if c.PingPeriod <= 0 {
		return errors.New("config: ping_period must be positive")
	}
	if c.Signal.SendBuffer <= 0 {
		return errors.New("config: signal.send_buffer must be positive")
	}
	for i, item := range c.Menu {
		if strings.TrimSpace(item.Name) == "" {
			return fmt.Errorf("config: menu[%d] has no name", i)
		}
	}
	return nil
}
