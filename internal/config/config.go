// Package config loads the gateway list from YAML and credentials from the
// environment (optionally a .env file).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/logger"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/schema"
)

var (
	ErrNoGateways   = errors.New("config: no gateways configured")
	ErrMissingVenue = errors.New("config: gateway venue is required")
)

// Config is the root of the YAML file.
type Config struct {
	Log      LogConfig       `yaml:"log"`
	Gateways []GatewayConfig `yaml:"gateways"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Stdout     bool   `yaml:"stdout"`
}

// GatewayConfig describes one gateway instance.
type GatewayConfig struct {
	Venue     schema.ExchangeName `yaml:"venue"`  // binance, mexc, gate, bsc
	Market    schema.MarketType   `yaml:"market"` // spot, amm; 空值为 spot
	Proxy     string              `yaml:"proxy"`
	Timeout   Duration            `yaml:"timeout"`
	RateLimit float64             `yaml:"rate_limit"` // 每秒请求数, 0 表示不限速
	Burst     int                 `yaml:"burst"`
	KeepAlive Duration            `yaml:"keep_alive"`
	Grace     Duration            `yaml:"grace"`
	RESTURL   string              `yaml:"rest_url"`
	StreamURL string              `yaml:"stream_url"`
	RPCURL    string              `yaml:"rpc_url"`

	Subscriptions []schema.Subscription `yaml:"subscriptions"`

	// 从环境变量加载, 不写入配置文件
	Credentials schema.Credentials `yaml:"-"`
}

// ID returns the gateway id, e.g. binance_spot.
func (g GatewayConfig) ID() schema.GatewayID {
	return schema.NewGatewayID(g.Venue, g.Market)
}

// Duration accepts "5s", "1m30s" or a plain number of seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	if v, err := time.ParseDuration(s); err == nil {
		*d = Duration(v)
		return nil
	}
	var secs float64
	if err := n.Decode(&secs); err != nil {
		return fmt.Errorf("invalid duration %q", s)
	}
	*d = Duration(time.Duration(secs * float64(time.Second)))
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Load reads path and pulls credentials from the environment. A .env in the working directory is loaded when present.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse is Load without the file read.
func Parse(data []byte) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("加载 .env 失败: %v", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(cfg.Gateways) == 0 {
		return nil, ErrNoGateways
	}
	for i := range cfg.Gateways {
		g := &cfg.Gateways[i]
		g.Venue = schema.ExchangeName(strings.ToLower(strings.TrimSpace(string(g.Venue))))
		g.Market = schema.NormalizeMarketType(string(g.Market))
		if g.Venue == "" {
			return nil, fmt.Errorf("gateway #%d: %w", i, ErrMissingVenue)
		}
		for j, sub := range g.Subscriptions {
			m, ok := schema.ParseMethod(string(sub.Method))
			if !ok {
				return nil, fmt.Errorf("gateway %s subscription #%d: unknown method %q", g.ID(), j, sub.Method)
			}
			g.Subscriptions[j].Method = m
		}
		g.Credentials = FromEnv(g.Venue)
	}
	return &cfg, nil
}

// FromEnv reads <VENUE>_API_KEY, <VENUE>_API_SECRET and <VENUE>_ADDRESS.
func FromEnv(venue schema.ExchangeName) schema.Credentials {
	prefix := strings.ToUpper(string(venue))
	return schema.Credentials{
		Key:     os.Getenv(prefix + "_API_KEY"),
		Secret:  os.Getenv(prefix + "_API_SECRET"),
		Address: os.Getenv(prefix + "_ADDRESS"),
	}
}

// LoggerOptions maps the log section to logger.Options.
func (c *Config) LoggerOptions() logger.Options {
	return logger.Options{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
		Stdout:     c.Log.Stdout,
	}
}
