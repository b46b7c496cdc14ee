package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"

	"taskboard/internal/client"
	"taskboard/internal/config"
	"taskboard/internal/logger"
)

const replyTimeout = 15 * time.Second

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		logger.Error(ctx, err, "load config")
		os.Exit(1)
	}
	logger.Init("telegram-bot", cfg.LogLevel, cfg.LogFormat)

	if cfg.TelegramToken == "" {
		logger.Error(ctx, errors.New("TELEGRAM_TOKEN is not set"), "start bot")
		os.Exit(1)
	}

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		logger.Error(ctx, err, "create bot")
		os.Exit(1)
	}
	logger.Info(ctx, "authorized", "bot", api.Self.UserName, "tasks_api", cfg.APIURL)

	bot := NewBot(client.NewState(client.New(cfg.APIURL)))

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates, err := api.GetUpdatesChan(u)
	if err != nil {
		logger.Error(ctx, err, "get updates")
		os.Exit(1)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	logger.Info(ctx, "bot started")
	for {
		select {
		case <-quit:
			logger.Info(ctx, "bot stopped")
			return
		case update := <-updates:
			if update.Message == nil {
				continue
			}
			handleMessage(ctx, api, bot, update.Message)
		}
	}
}

// handleMessage runs commands one at a time so positions from /list stay
// meaningful for the next command.
func handleMessage(ctx context.Context, api *tgbotapi.BotAPI, bot *Bot, msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(ctx, replyTimeout)
	defer cancel()

	command, args := "", msg.Text
	if msg.IsCommand() {
		command, args = msg.Command(), msg.CommandArguments()
	}
	user := ""
	if msg.From != nil {
		user = msg.From.UserName
	}
	logger.Info(ctx, "message received", "user", user, "command", command)

	reply := bot.Reply(ctx, msg.Chat.ID, command, args)
	if _, err := api.Send(tgbotapi.NewMessage(msg.Chat.ID, reply)); err != nil {
		logger.Error(ctx, err, "send reply", "chat", msg.Chat.ID)
	}
}
