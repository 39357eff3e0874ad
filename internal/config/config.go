package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	DBURL        string `mapstructure:"DB_URL"`
	RedisAddr    string `mapstructure:"REDIS_ADDR"`
	MQTTBroker   string `mapstructure:"MQTT_BROKER"`
	MQTTClientID string `mapstructure:"MQTT_CLIENT_ID"`
	JWTSecret    string `mapstructure:"JWT_SECRET"`
	HTTPAddr     string `mapstructure:"HTTP_ADDR"`
	Timezone     string `mapstructure:"TIMEZONE"`

	// Reconciliation timing
	SettleDelay time.Duration `mapstructure:"SETTLE_DELAY"`
	GracePeriod time.Duration `mapstructure:"GRACE_PERIOD"`
	ArmDebounce time.Duration `mapstructure:"ARM_DEBOUNCE"`

	// Presence sweeping
	SweepInterval time.Duration `mapstructure:"SWEEP_INTERVAL"`
	OfflineAfter  time.Duration `mapstructure:"OFFLINE_AFTER"`

	// Web push
	VAPIDPublicKey  string `mapstructure:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `mapstructure:"VAPID_PRIVATE_KEY"`
	VAPIDSubscriber string `mapstructure:"VAPID_SUBSCRIBER"`
}

// LoadConfig reads configuration from file, .env, or env vars
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// .env is optional; plain env vars still apply
	}

	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig()

	viper.SetDefault("HTTP_ADDR", ":5069")
	viper.SetDefault("MQTT_CLIENT_ID", "switchfleet-backend")
	viper.SetDefault("TIMEZONE", "Local")
	viper.SetDefault("SETTLE_DELAY", "30s")
	viper.SetDefault("GRACE_PERIOD", "60s")
	viper.SetDefault("ARM_DEBOUNCE", "1s")
	viper.SetDefault("SWEEP_INTERVAL", "30s")
	viper.SetDefault("OFFLINE_AFTER", "60s")

	cfg := &Config{
		DBURL:           viper.GetString("DB_URL"),
		RedisAddr:       viper.GetString("REDIS_ADDR"),
		MQTTBroker:      viper.GetString("MQTT_BROKER"),
		MQTTClientID:    viper.GetString("MQTT_CLIENT_ID"),
		JWTSecret:       viper.GetString("JWT_SECRET"),
		HTTPAddr:        viper.GetString("HTTP_ADDR"),
		Timezone:        viper.GetString("TIMEZONE"),
		SettleDelay:     viper.GetDuration("SETTLE_DELAY"),
		GracePeriod:     viper.GetDuration("GRACE_PERIOD"),
		ArmDebounce:     viper.GetDuration("ARM_DEBOUNCE"),
		SweepInterval:   viper.GetDuration("SWEEP_INTERVAL"),
		OfflineAfter:    viper.GetDuration("OFFLINE_AFTER"),
		VAPIDPublicKey:  viper.GetString("VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: viper.GetString("VAPID_PRIVATE_KEY"),
		VAPIDSubscriber: viper.GetString("VAPID_SUBSCRIBER"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DBURL == "" {
		return fmt.Errorf("DB_URL is required")
	}
	if c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.SettleDelay <= 0 || c.GracePeriod <= 0 || c.ArmDebounce <= 0 {
		return fmt.Errorf("reconciliation durations must be positive")
	}
	if c.SettleDelay >= c.GracePeriod {
		return fmt.Errorf("SETTLE_DELAY must be shorter than GRACE_PERIOD")
	}
	if c.SweepInterval <= 0 || c.OfflineAfter <= 0 {
		return fmt.Errorf("presence durations must be positive")
	}
	return nil
}
