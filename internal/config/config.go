package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is loaded from an optional TOML file with environment-variable
// overrides for everything secret or deployment-specific.
type Config struct {
	Server struct {
		Addr string `toml:"addr"`
	} `toml:"server"`

	Database struct {
		DSN string `toml:"dsn"`
	} `toml:"database"`

	Redis struct {
		Addr string `toml:"addr"`
	} `toml:"redis"`

	AMQP struct {
		URL      string `toml:"url"`
		Exchange string `toml:"exchange"`
	} `toml:"amqp"`

	Auth struct {
		JWTSecret     string `toml:"jwt_secret"`
		AdminUsername string `toml:"admin_username"`
		AdminPassword string `toml:"admin_password"`
	} `toml:"auth"`

	Telegram struct {
		Token string `toml:"token"`
	} `toml:"telegram"`

	Facebook struct {
		PageToken   string `toml:"page_token"`
		VerifyToken string `toml:"verify_token"`
	} `toml:"facebook"`

	Viber struct {
		Token      string `toml:"token"`
		SenderName string `toml:"sender_name"`
	} `toml:"viber"`

	WhatsApp struct {
		Token         string `toml:"token"`
		PhoneNumberID string `toml:"phone_number_id"`
		VerifyToken   string `toml:"verify_token"`
	} `toml:"whatsapp"`

	Relay struct {
		WelcomeText      string `toml:"welcome_text"`
		SendTimeoutSecs  int    `toml:"send_timeout_secs"`
		BroadcastDelayMS int    `toml:"broadcast_delay_ms"`
	} `toml:"relay"`
}

// Load reads the TOML file at path (missing file is fine), applies env
// overrides and validates the required settings.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.Server.Addr = ":8080"
	cfg.AMQP.Exchange = "relay.events"
	cfg.Relay.SendTimeoutSecs = 15
	cfg.Relay.BroadcastDelayMS = 1000

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	override(&cfg.Server.Addr, "SERVER_ADDR")
	override(&cfg.Database.DSN, "DB_DSN")
	override(&cfg.Redis.Addr, "REDIS_ADDR")
	override(&cfg.AMQP.URL, "AMQP_URL")
	override(&cfg.AMQP.Exchange, "AMQP_EXCHANGE")
	override(&cfg.Auth.JWTSecret, "JWT_SECRET")
	override(&cfg.Auth.AdminUsername, "ADMIN_USERNAME")
	override(&cfg.Auth.AdminPassword, "ADMIN_PASSWORD")
	override(&cfg.Telegram.Token, "TELEGRAM_BOT_TOKEN")
	override(&cfg.Facebook.PageToken, "FACEBOOK_PAGE_TOKEN")
	override(&cfg.Facebook.VerifyToken, "FACEBOOK_VERIFY_TOKEN")
	override(&cfg.Viber.Token, "VIBER_AUTH_TOKEN")
	override(&cfg.WhatsApp.Token, "WHATSAPP_ACCESS_TOKEN")
	override(&cfg.WhatsApp.PhoneNumberID, "WHATSAPP_PHONE_NUMBER_ID")
	override(&cfg.WhatsApp.VerifyToken, "WHATSAPP_VERIFY_TOKEN")

	if cfg.Database.DSN == "" {
		return nil, errors.New("DB_DSN is not set")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is not set")
	}
	return cfg, nil
}

func (c *Config) SendTimeout() time.Duration {
	return time.Duration(c.Relay.SendTimeoutSecs) * time.Second
}

func (c *Config) BroadcastDelay() time.Duration {
	return time.Duration(c.Relay.BroadcastDelayMS) * time.Millisecond
}

func override(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}
