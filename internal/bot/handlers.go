package bot

import (
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"fitpoints/internal/activity"
	"fitpoints/internal/models"
)

const helpText = `Запиши упражнение одной строкой:

squat 3x10x60 — подходы x повторения x вес
pushup 25 — только повторения
run 5.2km — дистанция
plank 90s — время

Добавь "!" в конце, если это личный рекорд.`

// handleCommand обрабатывает команды бота
func (b *Bot) handleCommand(message *tgbotapi.Message) {
	chatID := message.Chat.ID

	switch message.Command() {
	case "start", "help":
		b.sendMessage(chatID, helpText)

	case "stats":
		stats, err := b.repo.Audit.GetUserStats(chatID)
		if err != nil {
			b.sendMessage(chatID, "Не удалось получить статистику")
			return
		}
		b.sendMessage(chatID, fmt.Sprintf(
			"📊 Твоя статистика\n\nТренировок: %v\nВсего очков: %v\nРазных упражнений: %v",
			stats["total_workouts"], stats["total_points"], stats["total_exercises"]))

	case "reload":
		if !b.isAdmin(chatID) {
			b.sendMessage(chatID, "Команда доступна только администратору")
			return
		}
		if err := b.engine.ReloadConfiguration(); err != nil {
			b.sendMessage(chatID, fmt.Sprintf("Ошибка перезагрузки конфигурации: %v", err))
			return
		}
		b.sendMessage(chatID, "✅ Конфигурация перезагружена")

	default:
		b.sendMessage(chatID, "Неизвестная команда. /help — список форматов")
	}
}

// handleMessage парсит строки тренировки, считает очки и проверяет достижения
func (b *Bot) handleMessage(message *tgbotapi.Message) {
	chatID := message.Chat.ID

	activities := activity.ParseAll(message.Text)
	if len(activities) == 0 {
		b.sendMessage(chatID, "Не понял формат. /help — примеры записи")
		return
	}

	var reply strings.Builder
	for _, act := range activities {
		res := b.engine.Calculate(chatID, act, nil)
		reply.WriteString(formatResult(act, res))
		reply.WriteString("\n")
	}
	b.sendMessage(chatID, strings.TrimSpace(reply.String()))

	b.checkAchievements(chatID)
}

// checkAchievements выдаёт новые достижения после записи тренировки
func (b *Bot) checkAchievements(chatID int64) {
	stats, err := b.repo.Audit.GetUserStats(chatID)
	if err != nil {
		log.Printf("Достижения: не удалось получить статистику %d: %v", chatID, err)
		return
	}
	awarded, err := b.repo.Award.GetAwardedKeys(chatID)
	if err != nil {
		log.Printf("Достижения: не удалось получить выданные %d: %v", chatID, err)
		return
	}

	awards, err := b.checker.Check(stats, awarded)
	if err != nil {
		log.Printf("Достижения: ошибка проверки %d: %v", chatID, err)
		return
	}

	for _, award := range awards {
		if err := b.repo.Award.SaveAward(chatID, award.Key, award.Points, award.AwardedAt); err != nil {
			log.Printf("Достижения: не удалось сохранить %s для %d: %v", award.Key, chatID, err)
			continue
		}
		b.sendMessage(chatID, fmt.Sprintf("%s Новое достижение: %s (+%d очков)", award.Icon, award.Name, award.Points))
	}
}

// formatResult форматирует итог расчёта для ответа пользователю
func formatResult(act models.Activity, res *models.CalculationResult) string {
	if res.Status == models.StatusFailed {
		return fmt.Sprintf("⚠️ %s: %s\n", act.ExerciseKey, strings.Join(res.Errors, "; "))
	}

	var sb strings.Builder
	bd := res.Breakdown

	sb.WriteString(fmt.Sprintf("🏋️ %s — %d очков\n", act.ExerciseKey, res.TotalPoints))
	sb.WriteString(fmt.Sprintf("Базовые: %d\n", bd.BasePoints))
	if bd.RepsPoints > 0 {
		sb.WriteString(fmt.Sprintf("За повторения: +%d\n", bd.RepsPoints))
	}
	if bd.SetsPoints > 0 {
		sb.WriteString(fmt.Sprintf("За подходы: +%d\n", bd.SetsPoints))
	}
	if bd.WeightPoints > 0 {
		sb.WriteString(fmt.Sprintf("За вес: +%d\n", bd.WeightPoints))
	}
	if bd.DistancePoints > 0 {
		sb.WriteString(fmt.Sprintf("За дистанцию: +%d\n", bd.DistancePoints))
	}
	if bd.DurationPoints > 0 {
		sb.WriteString(fmt.Sprintf("За время: +%d\n", bd.DurationPoints))
	}
	for _, bonus := range bd.AppliedBonuses {
		sb.WriteString(fmt.Sprintf("Бонус %s: +%.0f\n", bonus.RuleID, bonus.Value))
	}
	for _, mult := range bd.AppliedMultipliers {
		sb.WriteString(fmt.Sprintf("Множитель %s: x%.1f\n", mult.RuleID, mult.Value))
	}
	for _, warning := range res.Warnings {
		sb.WriteString(fmt.Sprintf("⚠️ %s\n", warning))
	}
	return sb.String()
}
