package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/crypto"
)

type AppConfig struct {
	Env  string `mapstructure:"env"`
	Port int    `mapstructure:"port"`
}

func (a AppConfig) PortString() string { return fmt.Sprintf("%d", a.Port) }
func (a AppConfig) Development() bool  { return a.Env != "production" }

type MongoConfig struct {
	URI        string `mapstructure:"uri"`
	DB         string `mapstructure:"db"`
	Collection string `mapstructure:"collection"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type ChatConfig struct {
	// Secret derives the end-to-end message key. Required: the service
	// refuses to start without one instead of falling back to a built-in
	// default.
	Secret string `mapstructure:"secret"`
}

type WSConfig struct {
	PingIntervalSeconds  int   `mapstructure:"ping_interval_seconds"`
	WriteDeadlineSeconds int   `mapstructure:"write_deadline_seconds"`
	MaxMessageSizeBytes  int64 `mapstructure:"max_message_size_bytes"`
	EventsPerSecond      int   `mapstructure:"events_per_second"`
}

type Config struct {
	App   AppConfig   `mapstructure:"app"`
	Mongo MongoConfig `mapstructure:"mongo"`
	Redis RedisConfig `mapstructure:"redis"`
	Kafka KafkaConfig `mapstructure:"kafka"`
	JWT   JWTConfig   `mapstructure:"jwt"`
	Chat  ChatConfig  `mapstructure:"chat"`
	WS    WSConfig    `mapstructure:"ws"`

	// derived
	PingInterval  time.Duration
	WriteDeadline time.Duration
}

// Load reads config.yaml (path overridable), layered under environment
// variables; a .env file is honored for local runs.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("CHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", 8085)
	v.SetDefault("mongo.db", "hms")
	v.SetDefault("mongo.collection", "messages")
	v.SetDefault("redis.prefix", "chat")
	v.SetDefault("kafka.topic", "chat.events")
	v.SetDefault("ws.ping_interval_seconds", 25)
	v.SetDefault("ws.write_deadline_seconds", 10)
	v.SetDefault("ws.max_message_size_bytes", 64*1024)
	v.SetDefault("ws.events_per_second", 25)

	if err := v.ReadInConfig(); err != nil {
		// a missing file is fine, env-only deployments carry everything
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}

	// env-only secrets
	if s := v.GetString("jwt_secret"); s != "" {
		c.JWT.Secret = s
	}
	if s := v.GetString("e2e_secret"); s != "" {
		c.Chat.Secret = s
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	c.PingInterval = time.Duration(c.WS.PingIntervalSeconds) * time.Second
	c.WriteDeadline = time.Duration(c.WS.WriteDeadlineSeconds) * time.Second
	return &c, nil
}

func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret missing (CHAT_JWT_SECRET)")
	}
	if len(c.Chat.Secret) < crypto.MinSecretLen {
		return fmt.Errorf("%w: chat.secret missing or shorter than %d characters (CHAT_E2E_SECRET)",
			crypto.ErrConfiguration, crypto.MinSecretLen)
	}
	if c.Mongo.URI == "" {
		return errors.New("mongo.uri missing")
	}
	if c.Redis.Addr == "" {
		return errors.New("redis.addr missing")
	}
	if len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers missing")
	}
	return nil
}
