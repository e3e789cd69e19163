package bot

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"firmament/internal/model"
)

// StartDigest sends admins the next day's agenda every day at hour.
func (b *Bot) StartDigest(ctx context.Context, hour int) {
	if b == nil || b.admin == nil || len(b.admins) == 0 {
		return
	}

	go func() {
		timer := time.NewTimer(timeUntilNextHour(time.Now().In(b.loc), hour))
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
				b.sendTomorrowDigest(ctx)
				timer.Reset(timeUntilNextHour(time.Now().In(b.loc), hour))
			}
		}
	}()
}

func (b *Bot) sendTomorrowDigest(ctx context.Context) {
	appts, _, err := b.admin.Dashboard(ctx)
	if err != nil {
		b.logger.Error().Err(err).Msg("digest: load upcoming appointments")
		return
	}
	text := formatDigest(appts, time.Now().In(b.loc).AddDate(0, 0, 1), b.loc)
	for id := range b.admins {
		if _, err := b.tg.Send(tgbotapi.NewMessage(id, text)); err != nil {
			b.logger.Error().Err(err).Int64("admin_id", id).Msg("digest: send")
		}
	}
}

func shouldRemindStatus(status model.Status) bool {
	switch status {
	case model.StatusPending, model.StatusConfirmed:
		return true
	default:
		return false
	}
}

func formatDigest(appts []model.Appointment, day time.Time, loc *time.Location) string {
	var lines []string
	var selected []model.Appointment
	for _, a := range appts {
		if shouldRemindStatus(a.Status) && model.SameDay(a.AppointmentDate.In(loc), day) {
			selected = append(selected, a)
		}
	}
	sort.Slice(selected, func(i, j int) bool {
		return selected[i].AppointmentDate.Before(selected[j].AppointmentDate.Time)
	})
	for _, a := range selected {
		lines = append(lines, fmt.Sprintf("%s %s %s, %s (%s)",
			a.Status.Symbol(), a.AppointmentDate.In(loc).Format("15:04"), a.FullName(), a.ConsultationType, a.Duration))
	}

	header := "Agenda for " + day.Format("Monday 02.01.2006")
	if len(lines) == 0 {
		return header + ": no appointments."
	}
	return header + ":\n" + strings.Join(lines, "\n")
}

func timeUntilNextHour(now time.Time, hour int) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}
