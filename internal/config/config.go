package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/inforequest/inforequest/internal/domain"
	"github.com/inforequest/inforequest/internal/workdays"
)

// Dir is the per-project directory holding the config file and the default
// sqlite database.
const Dir = ".inforequest"

type ServerConfig struct {
	HTTPAddr string `toml:"http_addr"`
	GRPCAddr string `toml:"grpc_addr"`
}

type StorageConfig struct {
	Driver     string   `toml:"driver"`
	DSN        string   `toml:"dsn"`
	RedisAddrs []string `toml:"redis_addrs"`
	Namespace  string   `toml:"namespace"`
}

type CalendarConfig struct {
	CzechHolidays bool     `toml:"czech_holidays"`
	Holidays      []string `toml:"holidays"`
	CacheMinutes  int      `toml:"cache_minutes"`
}

type LogConfig struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

type WizardConfig struct {
	MaxSteps int `toml:"max_steps"`
}

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Storage  StorageConfig  `toml:"storage"`
	Calendar CalendarConfig `toml:"calendar"`
	Log      LogConfig      `toml:"log"`
	Wizard   WizardConfig   `toml:"wizard"`
}

func Defaults() Config {
	return Config{
		Server: ServerConfig{
			HTTPAddr: ":8080",
			GRPCAddr: ":9090",
		},
		Storage: StorageConfig{
			Driver:    "sqlite",
			DSN:       filepath.Join(Dir, "inforequest.db"),
			Namespace: "inforequest",
		},
		Calendar: CalendarConfig{
			CzechHolidays: true,
			CacheMinutes:  60,
		},
		Log: LogConfig{
			Level: "info",
		},
		Wizard: WizardConfig{
			MaxSteps: 1000,
		},
	}
}

// Load reads <projectDir>/.inforequest/config over the defaults.
func Load(projectDir string) (*Config, error) {
	return LoadFile(filepath.Join(projectDir, Dir, "config"))
}

// LoadFile reads the TOML file at path over the defaults. A missing file
// yields the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &cfg, nil
	}
	if err != nil {
		return nil, err
	}

	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "sqlite", "memory":
	case "redis":
		if len(c.Storage.RedisAddrs) == 0 {
			return fmt.Errorf("storage: redis driver needs redis_addrs")
		}
	default:
		return fmt.Errorf("storage: unknown driver %q", c.Storage.Driver)
	}
	for _, h := range c.Calendar.Holidays {
		if _, err := domain.ParseDate(h); err != nil {
			return fmt.Errorf("calendar: %w", err)
		}
	}
	return nil
}

// WorkdayCalendar builds the working-day calendar the config describes.
func (c *Config) WorkdayCalendar() (domain.Calendar, error) {
	var opts []workdays.Option
	if c.Calendar.CzechHolidays {
		opts = append(opts, workdays.WithCzechHolidays())
	}
	days := make([]time.Time, 0, len(c.Calendar.Holidays))
	for _, h := range c.Calendar.Holidays {
		d, err := domain.ParseDate(h)
		if err != nil {
			return nil, fmt.Errorf("calendar: %w", err)
		}
		days = append(days, d)
	}
	opts = append(opts, workdays.WithHolidays(days...))

	cal := workdays.New(opts...)
	if c.Calendar.CacheMinutes <= 0 {
		return cal, nil
	}
	return workdays.NewCached(cal, time.Duration(c.Calendar.CacheMinutes)*time.Minute), nil
}
