package config

import (
	"time"

	"github.com/spf13/viper"
)

type AppConf struct {
	Env            string `mapstructure:"env"`
	Port           int    `mapstructure:"port"`
	ShutdownSecond int    `mapstructure:"shutdown_seconds"`
}

type ChatConf struct {
	DatabasePath  string   `mapstructure:"database_path"`
	OnlineSeconds int      `mapstructure:"online_window_seconds"`
	AlertLimit    int      `mapstructure:"alert_limit"`
	Owners        []string `mapstructure:"owners"`
}

type BlobConf struct {
	Backend string `mapstructure:"backend"` // local | s3
	Dir     string `mapstructure:"dir"`
}

type AWSConf struct {
	Region   string `mapstructure:"region"`
	Bucket   string `mapstructure:"bucket"`
	Endpoint string `mapstructure:"endpoint"`
}

type RedisConf struct {
	Addr       string `mapstructure:"addr"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	Prefix     string `mapstructure:"prefix"`
	TTLSeconds int    `mapstructure:"cache_ttl_seconds"`
}

type Config struct {
	App   AppConf   `mapstructure:"app"`
	Chat  ChatConf  `mapstructure:"chat"`
	Blob  BlobConf  `mapstructure:"blob"`
	AWS   AWSConf   `mapstructure:"aws"`
	Redis RedisConf `mapstructure:"redis"`
	Log   struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`

	// derived
	ShutdownTimeout time.Duration
	OnlineWindow    time.Duration
	CacheTTL        time.Duration
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.AutomaticEnv()
	v.SetEnvPrefix("APP")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.App.Port == 0 {
		cfg.App.Port = 8080
	}
	if cfg.App.ShutdownSecond == 0 {
		cfg.App.ShutdownSecond = 15
	}
	if cfg.Chat.DatabasePath == "" {
		cfg.Chat.DatabasePath = "chat.db"
	}
	if cfg.Chat.OnlineSeconds == 0 {
		cfg.Chat.OnlineSeconds = 120
	}
	if cfg.Chat.AlertLimit == 0 {
		cfg.Chat.AlertLimit = 50
	}
	if cfg.Blob.Backend == "" {
		cfg.Blob.Backend = "local"
	}
	if cfg.Blob.Dir == "" {
		cfg.Blob.Dir = "media"
	}
	if cfg.Redis.TTLSeconds == 0 {
		cfg.Redis.TTLSeconds = 5
	}
	cfg.ShutdownTimeout = time.Duration(cfg.App.ShutdownSecond) * time.Second
	cfg.OnlineWindow = time.Duration(cfg.Chat.OnlineSeconds) * time.Second
	cfg.CacheTTL = time.Duration(cfg.Redis.TTLSeconds) * time.Second
	return &cfg, nil
}

// OwnerSet returns the privileged identities as a lookup set.
func (c *Config) OwnerSet() map[string]struct{} {
	out := make(map[string]struct{}, len(c.Chat.Owners))
	for _, o := range c.Chat.Owners {
		out[o] = struct{}{}
	}
	return out
}
