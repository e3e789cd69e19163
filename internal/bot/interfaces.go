package bot

import (
	"context"
	"io"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"firmament/internal/model"
	"firmament/internal/schedule"
)

type telegramClient interface {
	Send(tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetFileDirectURL(fileID string) (string, error)
	SelfUser() tgbotapi.User
}

type realTelegramClient struct {
	api *tgbotapi.BotAPI
}

func (c *realTelegramClient) Send(msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	return c.api.Send(msg)
}

func (c *realTelegramClient) Request(msg tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return c.api.Request(msg)
}

func (c *realTelegramClient) GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return c.api.GetUpdatesChan(cfg)
}

func (c *realTelegramClient) GetFileDirectURL(fileID string) (string, error) {
	return c.api.GetFileDirectURL(fileID)
}

func (c *realTelegramClient) SelfUser() tgbotapi.User {
	return c.api.Self
}

// AdminService is the schedule editor as seen by admin commands.
type AdminService interface {
	Dashboard(ctx context.Context) ([]model.Appointment, schedule.Stats, error)
	Appointment(ctx context.Context, id int64) (*model.Appointment, error)
	SetStatus(ctx context.Context, id int64, status model.Status) (*model.Appointment, error)
	Cancel(ctx context.Context, id int64) error
	Groups(ctx context.Context, from, to string) ([]schedule.BlockGroup, error)
	Block(ctx context.Context, form schedule.BlockForm) error
	Unblock(ctx context.Context, g schedule.BlockGroup) *schedule.UnblockResult
}

// Exporter writes the appointments workbook.
type Exporter interface {
	Export(ctx context.Context, w io.Writer) error
}
