package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"firmament/internal/booking"
)

// maxCallbackData is Telegram's limit on callback data bytes.
const maxCallbackData = 64

func optionsKeyboard(rows [][]booking.Option) (tgbotapi.InlineKeyboardMarkup, bool) {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, o := range row {
			data := o.Data
			if !o.Enabled || data == "" || len(data) > maxCallbackData {
				data = booking.NoopData
			}
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(o.Label, data))
		}
		if len(buttons) > 0 {
			keyboard = append(keyboard, buttons)
		}
	}
	if len(keyboard) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...), true
}

var (
	mainMenu = tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuBook),
			tgbotapi.NewKeyboardButton(menuServices),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuHelp),
		),
	)

	adminMenu = tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuUpcoming),
			tgbotapi.NewKeyboardButton(menuBlocks),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuBook),
			tgbotapi.NewKeyboardButton(menuExport),
		),
	)
)

const (
	menuBook     = "🗓 Book a consultation"
	menuServices = "📋 Services"
	menuHelp     = "ℹ️ Help"
	menuUpcoming = "📥 Upcoming"
	menuBlocks   = "⛔ Blocked periods"
	menuExport   = "📊 Export"
)
