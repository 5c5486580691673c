package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/genshin-telegram-bot/internal/adapter/genshinpresenter"
	"github.com/kapu/genshin-telegram-bot/internal/card"
	appcfg "github.com/kapu/genshin-telegram-bot/internal/config"
	"github.com/kapu/genshin-telegram-bot/internal/dispatch"
	"github.com/kapu/genshin-telegram-bot/internal/enka"
	"github.com/kapu/genshin-telegram-bot/internal/hoyo"
	"github.com/kapu/genshin-telegram-bot/internal/msgcat"
	"github.com/kapu/genshin-telegram-bot/internal/obslog"
	"github.com/kapu/genshin-telegram-bot/internal/regconv"
	"github.com/kapu/genshin-telegram-bot/internal/store"
	"github.com/kapu/genshin-telegram-bot/internal/tgram"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()

	st, err := openStore(cfg)
	if err != nil {
		log.Fatalf("store init error: %v", err)
	}

	httpTimeout := time.Duration(cfg.HTTPTimeoutSec) * time.Second
	gw := hoyo.NewClient(cfg.HoyoBaseURL, hoyo.WithTimeout(httpTimeout))
	showcase := enka.NewClient(cfg.EnkaBaseURL, enka.WithTimeout(httpTimeout))
	tg := tgram.NewClient(cfg.BotToken, tgram.WithTimeout(httpTimeout))

	cat, err := msgcat.New(cfg.MsgTemplateDir)
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := regconv.NewManager(time.Duration(cfg.RegisterTTLSec) * time.Second)
	reg.StartSweeper(ctx, time.Minute)

	presenter := genshinpresenter.NewPresenter(
		func(ctx context.Context, chatID int64, text string) error {
			return tg.SendMessage(ctx, chatID, text)
		},
		func(ctx context.Context, chatID int64, text string, kb *tgram.InlineKeyboardMarkup) error {
			return tg.SendMarkdown(ctx, chatID, text, kb)
		},
		func(ctx context.Context, chatID int64, png []byte, caption string) error {
			return tg.SendPhoto(ctx, chatID, png, caption)
		},
		func(ctx context.Context, chatID, messageID int64, text string, kb *tgram.InlineKeyboardMarkup, markdown bool) error {
			return tg.EditMessageText(ctx, chatID, messageID, text, kb, markdown)
		},
		func(ctx context.Context, callbackID string) error {
			return tg.AnswerCallbackQuery(ctx, callbackID)
		},
	)

	d := dispatch.New(st, gw, showcase,
		card.NewRenderer(cfg.CardRenderer),
		genshinpresenter.NewFormatter(cat, cfg.DisplayListCap),
		reg, presenter)

	poller := tgram.NewPoller(tg, cfg.PollTimeoutSec, logger)
	poller.OnMessage(func(msg *tgram.Message) { d.HandleMessage(ctx, msg) })
	poller.OnCallback(func(cb *tgram.CallbackQuery) { d.HandleCallback(ctx, cb) })

	logger.Info("bot started", zap.String("renderer", cfg.CardRenderer))
	if err := poller.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("poller stopped", zap.Error(err))
	}

	_ = st.Close()
	logger.Info("bot stopped")
	os.Exit(0)
}

func openStore(cfg *appcfg.AppConfig) (store.Store, error) {
	if cfg.RedisURL != "" {
		return store.NewRedisStore(cfg.RedisURL)
	}
	return store.NewPostgresStore(cfg.DatabaseURL)
}
