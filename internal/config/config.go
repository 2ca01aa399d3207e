package config

import (
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	Env               string `mapstructure:"env"`
	Port              int    `mapstructure:"port"`
	JWTSecret         string `mapstructure:"jwt_secret"`
	LogLevel          string `mapstructure:"log_level"`
	RESTRatePerMinute int    `mapstructure:"rest_rate_per_minute"`
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

type WSConfig struct {
	PingIntervalSeconds  int   `mapstructure:"ping_interval_seconds"`
	WriteDeadlineSeconds int   `mapstructure:"write_deadline_seconds"`
	ReadDeadlineSeconds  int   `mapstructure:"read_deadline_seconds"`
	MaxMessageSizeBytes  int64 `mapstructure:"max_message_size_bytes"`
	SendRatePerSecond    int   `mapstructure:"send_rate_per_second"`
	SendBurst            int   `mapstructure:"send_burst"`
}

type PresenceConfig struct {
	OfflineGraceMillis int `mapstructure:"offline_grace_ms"`
}

type MetricsConfig struct {
	Port int `mapstructure:"port"`
}

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	WS       WSConfig       `mapstructure:"ws"`
	Presence PresenceConfig `mapstructure:"presence"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`

	// derived
	PingInterval  time.Duration
	WriteDeadline time.Duration
	ReadDeadline  time.Duration
	OfflineGrace  time.Duration
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.AutomaticEnv()
	v.SetEnvPrefix("APP")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}

	if c.App.Port == 0 {
		c.App.Port = 8080
	}
	if c.App.RESTRatePerMinute == 0 {
		c.App.RESTRatePerMinute = 300
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "realtime"
	}
	if c.WS.PingIntervalSeconds == 0 {
		c.WS.PingIntervalSeconds = 25
	}
	if c.WS.WriteDeadlineSeconds == 0 {
		c.WS.WriteDeadlineSeconds = 10
	}
	if c.WS.ReadDeadlineSeconds == 0 {
		c.WS.ReadDeadlineSeconds = 60
	}
	if c.WS.MaxMessageSizeBytes == 0 {
		c.WS.MaxMessageSizeBytes = 65536
	}
	if c.WS.SendRatePerSecond == 0 {
		c.WS.SendRatePerSecond = 10
	}
	if c.WS.SendBurst == 0 {
		c.WS.SendBurst = 20
	}
	if c.Presence.OfflineGraceMillis == 0 {
		c.Presence.OfflineGraceMillis = 500
	}
	if c.Metrics.Port == 0 {
		c.Metrics.Port = 9091
	}
	c.PingInterval = time.Duration(c.WS.PingIntervalSeconds) * time.Second
	c.WriteDeadline = time.Duration(c.WS.WriteDeadlineSeconds) * time.Second
	c.ReadDeadline = time.Duration(c.WS.ReadDeadlineSeconds) * time.Second
	c.OfflineGrace = time.Duration(c.Presence.OfflineGraceMillis) * time.Millisecond
	return &c, nil
}
