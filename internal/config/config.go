package config

import (
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	Env      string `mapstructure:"env"`
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type RedisConfig struct {
	Addr   string `mapstructure:"addr"`
	Pass   string `mapstructure:"password"`
	DB     int    `mapstructure:"db"`
	Prefix string `mapstructure:"prefix"`
}

type KafkaConfig struct {
	Brokers          []string `mapstructure:"brokers"`
	TopicMessageSent string   `mapstructure:"topic_message_sent"`
}

type SyncConfig struct {
	TypingIdleSeconds     int `mapstructure:"typing_idle_seconds"`
	PresenceTTLSeconds    int `mapstructure:"presence_ttl_seconds"`
	NotificationListLimit int `mapstructure:"notification_list_limit"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

type Config struct {
	App   AppConfig   `mapstructure:"app"`
	JWT   JWTConfig   `mapstructure:"jwt"`
	Mongo MongoConfig `mapstructure:"mongo"`
	Redis RedisConfig `mapstructure:"redis"`
	Kafka KafkaConfig `mapstructure:"kafka"`
	Sync  SyncConfig  `mapstructure:"sync"`

	// derived
	TypingIdle     time.Duration
	PresenceTTL    time.Duration
	RequestTimeout time.Duration
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	applyDefaults(&c)
	return &c, nil
}

func applyDefaults(c *Config) {
	if c.App.Port == 0 {
		c.App.Port = 8080
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "institute"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "portal"
	}
	if c.Sync.TypingIdleSeconds == 0 {
		c.Sync.TypingIdleSeconds = 4
	}
	if c.Sync.PresenceTTLSeconds == 0 {
		c.Sync.PresenceTTLSeconds = 30
	}
	if c.Sync.NotificationListLimit == 0 {
		c.Sync.NotificationListLimit = 10
	}
	if c.Sync.RequestTimeoutSeconds == 0 {
		c.Sync.RequestTimeoutSeconds = 5
	}
	c.TypingIdle = time.Duration(c.Sync.TypingIdleSeconds) * time.Second
	c.PresenceTTL = time.Duration(c.Sync.PresenceTTLSeconds) * time.Second
	c.RequestTimeout = time.Duration(c.Sync.RequestTimeoutSeconds) * time.Second
}
