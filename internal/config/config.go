package config

import (
	"github.com/google/uuid"
	"github.com/spf13/viper"
)

type Config struct {
	ServerPort    string `mapstructure:"SERVER_PORT"`
	APIBaseURL    string `mapstructure:"API_BASE_URL"`
	APIToken      string `mapstructure:"API_TOKEN"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	MQTTBroker   string `mapstructure:"MQTT_BROKER"`
	MQTTTopic    string `mapstructure:"MQTT_TOPIC"`
	MQTTClientID string `mapstructure:"MQTT_CLIENT_ID"`

	DeviceID string `mapstructure:"DEVICE_ID"`
	Platform string `mapstructure:"PLATFORM"`

	DistanceFilterM float64 `mapstructure:"DISTANCE_FILTER_M"`
	FlushIntervalMs int     `mapstructure:"FLUSH_INTERVAL_MS"`
	FlushThreshold  int     `mapstructure:"FLUSH_THRESHOLD"`
}

func Load() Config {
	viper.AutomaticEnv()
	viper.SetDefault("SERVER_PORT", ":8081")
	viper.SetDefault("API_BASE_URL", "http://localhost:3000/api")
	viper.SetDefault("API_TOKEN", "")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("MQTT_BROKER", "")
	viper.SetDefault("MQTT_TOPIC", "tripgo/location")
	viper.SetDefault("MQTT_CLIENT_ID", "tripgo-tracker-"+uuid.NewString()[:8])
	viper.SetDefault("DEVICE_ID", uuid.NewString())
	viper.SetDefault("PLATFORM", "android")
	viper.SetDefault("DISTANCE_FILTER_M", 15.0)
	viper.SetDefault("FLUSH_INTERVAL_MS", 60000)
	viper.SetDefault("FLUSH_THRESHOLD", 20)

	var cfg Config
	_ = viper.Unmarshal(&cfg)
	return cfg
}
