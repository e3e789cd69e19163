package bot

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"firmament/internal/audit"
	"firmament/internal/model"
	"firmament/internal/pricing"
	"firmament/internal/schedule"
)

var adminCommands = map[string]bool{
	"/admin": true, "/upcoming": true, "/blocks": true, "/block": true, "/export": true,
	menuUpcoming: true, menuBlocks: true, menuExport: true,
}

// handleAdminCommand reports whether command was an admin command.
func (b *Bot) handleAdminCommand(ctx context.Context, msg *tgbotapi.Message, command string) bool {
	if !adminCommands[command] {
		return false
	}
	chatID, userID := msg.Chat.ID, msg.From.ID
	if !b.isAdmin(userID) || b.admin == nil {
		b.reply(chatID, "This command is reserved for administrators.")
		return true
	}

	switch command {
	case "/admin":
		b.reply(chatID, adminHelpText)
	case "/upcoming", menuUpcoming:
		b.sendUpcoming(ctx, chatID, 0, 0)
	case "/blocks", menuBlocks:
		b.sendBlocks(ctx, chatID, userID)
	case "/block":
		form, err := schedule.ParseBlockArgs(strings.Fields(msg.Text)[1:])
		if err != nil {
			b.reply(chatID, "Usage: /block DATE [END_DATE] [HH:MM-HH:MM] [REASON] [notes]\n"+err.Error())
			return true
		}
		_ = b.admin.Block(ctx, form)
		b.replyNotices(chatID, "")
	case "/export", menuExport:
		b.sendExport(ctx, chatID)
	}
	return true
}

func (b *Bot) handleAdminCallback(ctx context.Context, chatID int64, messageID int, userID int64, data string) {
	l := zerolog.Ctx(ctx)
	action, arg, _ := strings.Cut(data, ":")
	switch action {
	case "uppage":
		page, _ := strconv.Atoi(arg)
		b.sendUpcoming(ctx, chatID, messageID, page)
	case "appt":
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return
		}
		b.sendAppointment(ctx, chatID, id)
	case "status":
		idStr, status, _ := strings.Cut(arg, ":")
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return
		}
		if _, err := b.admin.SetStatus(ctx, id, model.Status(status)); err != nil {
			l.Error().Err(err).Int64("appointment_id", id).Msg("Failed to change status")
		}
		b.replyNotices(chatID, "")
	case "cancel":
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return
		}
		_ = b.admin.Cancel(ctx, id)
		b.replyNotices(chatID, "")
	case "unblock":
		st, _ := b.state.get(userID)
		i, err := strconv.Atoi(arg)
		if err != nil || i < 0 || i >= len(st.blocks) {
			b.reply(chatID, "This list is out of date, send /blocks again.")
			return
		}
		res := b.admin.Unblock(ctx, st.blocks[i])
		if err := res.Err(); err != nil {
			l.Warn().Err(err).Msg("Unblock incomplete")
		}
		b.replyNotices(chatID, "")
		b.sendBlocks(ctx, chatID, userID)
	}
}

func (b *Bot) sendUpcoming(ctx context.Context, chatID int64, messageID, page int) {
	appts, stats, err := b.admin.Dashboard(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to load upcoming appointments")
		b.reply(chatID, "Could not load upcoming appointments.")
		return
	}
	items := make([]pageItem, 0, len(appts))
	for i := range appts {
		a := &appts[i]
		items = append(items, pageItem{
			Label:  fmt.Sprintf("%s %s %s", a.Status.Symbol(), a.AppointmentDate.In(b.loc).Format("02.01 15:04"), a.FullName()),
			Detail: fmt.Sprintf("%s, %s", a.ConsultationType, a.Duration),
			Data:   fmt.Sprintf("adm:appt:%d", a.ID),
		})
	}
	b.sendPage(items, PaginationParams{
		ChatID:     chatID,
		MessageID:  messageID,
		Page:       page,
		Title:      formatStats(stats),
		PagePrefix: "adm:uppage:",
	})
}

func formatStats(s schedule.Stats) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Upcoming: %d (pending %d, confirmed %d)", s.Total, s.Pending, s.Confirmed)
	for _, c := range model.Currencies {
		if v := s.Revenue[c]; v > 0 {
			fmt.Fprintf(&sb, "\nRevenue: %s", pricing.Format(v, c))
		}
	}
	return sb.String()
}

func (b *Bot) sendAppointment(ctx context.Context, chatID, id int64) {
	a, err := b.admin.Appointment(ctx, id)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Appointment #%d not found.", id))
		return
	}
	at := a.AppointmentDate.In(b.loc)
	text := fmt.Sprintf("Appointment #%d %s %s\n%s %s, %s\n%s\n%s\n%s\nPhone: %s\nEmail: %s\nCountry: %s\nAmount: %s",
		a.ID, a.Status.Symbol(), a.Status,
		at.Format("02.01.2006"), at.Format("15:04"), a.Duration,
		a.ConsultationType, a.FullName(), a.ClientPresentation,
		a.Phone, a.Email, a.Country, pricing.Format(a.Amount, a.Currency))
	if a.AdminNotes != "" {
		text += "\nNotes: " + a.AdminNotes
	}

	var row []tgbotapi.InlineKeyboardButton
	if a.Status == model.StatusPending {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("✅ Confirm", fmt.Sprintf("adm:status:%d:%s", a.ID, model.StatusConfirmed)))
	}
	if a.Status == model.StatusConfirmed {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("🏁 Complete", fmt.Sprintf("adm:status:%d:%s", a.ID, model.StatusCompleted)))
	}
	if a.Status != model.StatusCancelled {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", fmt.Sprintf("adm:cancel:%d", a.ID)))
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if len(row) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(row)
	}
	_, _ = b.tg.Send(msg)
}

func (b *Bot) sendBlocks(ctx context.Context, chatID, userID int64) {
	groups, err := b.admin.Groups(ctx, "", "")
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to load blocked periods")
		b.reply(chatID, "Could not load blocked periods.")
		return
	}
	st, _ := b.state.get(userID)
	st.blocks = groups

	if len(groups) == 0 {
		b.reply(chatID, "No blocked periods.")
		return
	}
	var sb strings.Builder
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for i := range groups {
		label := formatGroup(&groups[i])
		fmt.Fprintf(&sb, "%d. %s\n", i+1, label)
		if groups[i].Removable() {
			keyboard = append(keyboard, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("Unblock %d", i+1), fmt.Sprintf("adm:unblock:%d", i)),
			))
		}
	}
	msg := tgbotapi.NewMessage(chatID, strings.TrimRight(sb.String(), "\n"))
	if len(keyboard) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(keyboard...)
	}
	_, _ = b.tg.Send(msg)
}

func formatGroup(g *schedule.BlockGroup) string {
	when := g.Start
	if g.IsRange() {
		when = g.Start + " → " + g.End
	}
	hours := "full day"
	if !g.FullDay {
		hours = g.StartTime + "-" + g.EndTime
	}
	s := fmt.Sprintf("%s, %s, %s", when, hours, g.Reason.Label())
	if g.Notes != "" {
		s += " (" + g.Notes + ")"
	}
	if g.Linked() {
		s += " 🔒 appointment"
	}
	return s
}

func (b *Bot) sendExport(ctx context.Context, chatID int64) {
	if b.exporter == nil {
		b.reply(chatID, "Export is not configured.")
		return
	}
	var buf bytes.Buffer
	if err := b.exporter.Export(ctx, &buf); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to export appointments")
		b.reply(chatID, "Export failed.")
		return
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: audit.Filename(time.Now().In(b.loc)), Bytes: buf.Bytes()})
	doc.Caption = "Appointments export"
	if _, err := b.tg.Send(doc); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to send export")
	}
}

// replyNotices sends pending admin notices, or fallback when there are none.
func (b *Bot) replyNotices(chatID int64, fallback string) {
	var lines []string
	if b.notices != nil {
		for _, n := range b.notices.Drain() {
			lines = append(lines, noticeLine(n))
		}
	}
	if len(lines) == 0 {
		if fallback == "" {
			return
		}
		lines = []string{fallback}
	}
	b.reply(chatID, strings.Join(lines, "\n"))
}
