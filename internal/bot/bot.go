package bot

import (
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"fitpoints/internal/achievements"
	"fitpoints/internal/config"
	"fitpoints/internal/engine"
	"fitpoints/internal/repository"
)

// Bot представляет Telegram бота для записи тренировок
type Bot struct {
	api     *tgbotapi.BotAPI
	engine  *engine.Engine
	checker *achievements.Checker
	repo    *repository.Repository
	config  *config.Config
}

// New создаёт новый экземпляр бота
func New(api *tgbotapi.BotAPI, eng *engine.Engine, checker *achievements.Checker, repo *repository.Repository, cfg *config.Config) *Bot {
	return &Bot{
		api:     api,
		engine:  eng,
		checker: checker,
		repo:    repo,
		config:  cfg,
	}
}

// Start запускает бота
func (b *Bot) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := b.api.GetUpdatesChan(u)
	b.handleUpdates(updates)
	return nil
}

func (b *Bot) handleUpdates(updates tgbotapi.UpdatesChannel) {
	for update := range updates {
		if update.Message == nil {
			continue
		}

		if update.Message.IsCommand() {
			b.handleCommand(update.Message)
			continue
		}

		b.handleMessage(update.Message)
	}
}

func (b *Bot) isAdmin(chatID int64) bool {
	return b.config.AdminChatID != 0 && chatID == b.config.AdminChatID
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("Ошибка отправки сообщения: %v", err)
	}
}
