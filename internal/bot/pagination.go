package bot

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const itemsPerPage = 8

type pageItem struct {
	Label  string
	Detail string
	Data   string
}

type PaginationParams struct {
	ChatID       int64
	MessageID    int // 0 if new message
	Page         int
	Title        string
	PagePrefix   string
	BackCallback string
}

// renderPage builds the text and keyboard of one page of items.
func renderPage(items []pageItem, params PaginationParams) (string, tgbotapi.InlineKeyboardMarkup) {
	pages := (len(items) + itemsPerPage - 1) / itemsPerPage
	if pages == 0 {
		pages = 1
	}
	page := min(max(params.Page, 0), pages-1)
	startIdx := page * itemsPerPage
	endIdx := min(startIdx+itemsPerPage, len(items))

	var message strings.Builder
	message.WriteString(params.Title + "\n\n")
	if pages > 1 {
		message.WriteString(fmt.Sprintf("Page %d of %d\n\n", page+1, pages))
	}

	current := items[startIdx:endIdx]
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for i, item := range current {
		message.WriteString(fmt.Sprintf("%d. %s\n", startIdx+i+1, item.Label))
		if item.Detail != "" {
			message.WriteString("   " + item.Detail + "\n")
		}
		if item.Data != "" {
			btn := tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%d. %s", startIdx+i+1, truncate(item.Label, 40)), item.Data)
			keyboard = append(keyboard, []tgbotapi.InlineKeyboardButton{btn})
		}
	}

	var nav []tgbotapi.InlineKeyboardButton
	if page > 0 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("⬅️ Previous", fmt.Sprintf("%s%d", params.PagePrefix, page-1)))
	}
	if endIdx < len(items) {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("Next ➡️", fmt.Sprintf("%s%d", params.PagePrefix, page+1)))
	}
	if len(nav) > 0 {
		keyboard = append(keyboard, nav)
	}
	if params.BackCallback != "" {
		keyboard = append(keyboard, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", params.BackCallback),
		})
	}
	return strings.TrimRight(message.String(), "\n"), tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

func (b *Bot) sendPage(items []pageItem, params PaginationParams) {
	text, markup := renderPage(items, params)
	if params.MessageID != 0 {
		_, _ = b.tg.Send(tgbotapi.NewEditMessageTextAndMarkup(params.ChatID, params.MessageID, text, markup))
		return
	}
	msg := tgbotapi.NewMessage(params.ChatID, text)
	if len(markup.InlineKeyboard) > 0 {
		msg.ReplyMarkup = markup
	}
	_, _ = b.tg.Send(msg)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
