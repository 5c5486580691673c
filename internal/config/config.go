package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

type AppConfig struct {
	BotToken string

	RedisURL    string
	DatabaseURL string

	HoyoBaseURL string
	EnkaBaseURL string

	CardRenderer string

	RegisterTTLSec int
	PollTimeoutSec int
	HTTPTimeoutSec int
	DisplayListCap int
	MsgTemplateDir string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		HoyoBaseURL:    "https://bbs-api-os.hoyolab.com",
		EnkaBaseURL:    "https://enka.network",
		CardRenderer:   "svg",
		RegisterTTLSec: 600,
		PollTimeoutSec: 30,
		HTTPTimeoutSec: 15,
		DisplayListCap: 10,
	}

	cfg.BotToken = strings.TrimSpace(os.Getenv("BOT_TOKEN"))

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	if v := strings.TrimSpace(os.Getenv("HOYO_BASE_URL")); v != "" {
		cfg.HoyoBaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("ENKA_BASE_URL")); v != "" {
		cfg.EnkaBaseURL = v
	}
	if v := strings.ToLower(strings.TrimSpace(os.Getenv("CARD_RENDERER"))); v != "" {
		cfg.CardRenderer = v
	}
	if v := strings.TrimSpace(os.Getenv("REGISTER_TTL_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RegisterTTLSec = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("POLL_TIMEOUT_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PollTimeoutSec = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("HTTP_TIMEOUT_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HTTPTimeoutSec = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("DISPLAY_LIST_CAP")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.DisplayListCap = n
		}
	}
	cfg.MsgTemplateDir = strings.TrimSpace(os.Getenv("MSG_TEMPLATE_DIR"))

	if cfg.BotToken == "" {
		return nil, errors.New("BOT_TOKEN is required")
	}
	if cfg.RedisURL == "" && cfg.DatabaseURL == "" {
		return nil, errors.New("REDIS_URL or DATABASE_URL is required")
	}
	if cfg.CardRenderer != "svg" && cfg.CardRenderer != "fallback" {
		return nil, errors.New("CARD_RENDERER must be 'svg' or 'fallback'")
	}

	return cfg, nil
}
