// Package bot is the Telegram front end: clients book through the same
// wizard as the terminal, admins manage the schedule.
package bot

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"firmament/internal/booking"
	"firmament/internal/events"
	"firmament/internal/model"
)

const helpText = `Book a consultation in six steps: date and time, duration, your details, confirmation, payment.

Commands:
/book - start or resume a booking
/services - pick a service to preselect the consultation type
/back, /next - move between steps
/restart - start over
Send PDF, JPEG, PNG, DOC or DOCX files (up to 10MB) while filling in your details to attach documents.`

const adminHelpText = `Admin commands:
/upcoming - upcoming appointments and stats
/blocks - blocked periods
/block DATE [END_DATE] [HH:MM-HH:MM] [REASON] [notes] - block time
/export - spreadsheet of all appointments`

// Options configures the bot.
type Options struct {
	Admins         []int64
	Services       []model.Service
	Location       *time.Location
	Admin          AdminService
	AdminNotices   *events.Collector
	Exporter       Exporter
	HTTPClient     *http.Client
	Debug          bool
	// SessionTimeout drops wizards idle for longer; 2h when zero.
	SessionTimeout time.Duration
}

// Bot routes Telegram updates to per-user booking sessions.
type Bot struct {
	tg         telegramClient
	handler    *booking.Handler
	state      *stateStore
	admins     map[int64]struct{}
	servicesMu sync.RWMutex
	services   []model.Service
	loc        *time.Location
	admin      AdminService
	notices    *events.Collector
	exporter   Exporter
	httpClient *http.Client
	logger     *zerolog.Logger
}

func New(token string, handler *booking.Handler, newSession NewSessionFunc, opts Options, logger *zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	api.Debug = opts.Debug
	return newBot(&realTelegramClient{api: api}, handler, newSession, opts, logger)
}

// NewWithTelegramClient allows injecting a mocked Telegram client for tests.
func NewWithTelegramClient(tg telegramClient, handler *booking.Handler, newSession NewSessionFunc, opts Options, logger *zerolog.Logger) (*Bot, error) {
	return newBot(tg, handler, newSession, opts, logger)
}

func newBot(tg telegramClient, handler *booking.Handler, newSession NewSessionFunc, opts Options, logger *zerolog.Logger) (*Bot, error) {
	if tg == nil {
		return nil, fmt.Errorf("telegram client is nil")
	}
	if handler == nil || newSession == nil {
		return nil, fmt.Errorf("booking handler and session factory are required")
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	admins := make(map[int64]struct{})
	for _, id := range opts.Admins {
		admins[id] = struct{}{}
	}
	return &Bot{
		tg:         tg,
		handler:    handler,
		state:      newStateStore(newSession, opts.SessionTimeout),
		admins:     admins,
		services:   opts.Services,
		loc:        opts.Location,
		admin:      opts.Admin,
		notices:    opts.AdminNotices,
		exporter:   opts.Exporter,
		httpClient: opts.HTTPClient,
		logger:     logger,
	}, nil
}

const sessionCleanupInterval = 10 * time.Minute

// Start polls updates until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.tg.GetUpdatesChan(u)
	b.logger.Info().Str("username", b.tg.SelfUser().UserName).Msg("Booking bot authorized")

	cleanup := time.NewTicker(sessionCleanupInterval)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-cleanup.C:
			if n := b.state.cleanup(); n > 0 {
				b.logger.Debug().Int("removed", n).Int("active", b.state.len()).Msg("expired booking sessions removed")
			}
		case update, ok := <-updates:
			if !ok {
				return
			}
			requestID := uuid.New().String()
			l := b.logger.With().Str("request_id", requestID).Logger()
			b.handleUpdate(l.WithContext(ctx), &update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update *tgbotapi.Update) {
	l := zerolog.Ctx(ctx)
	if update.CallbackQuery != nil {
		l.Debug().
			Int64("user_id", update.CallbackQuery.From.ID).
			Str("data", update.CallbackQuery.Data).
			Msg("Handling callback query")
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}
	if update.Message != nil && update.Message.From != nil {
		l.Debug().
			Int64("user_id", update.Message.From.ID).
			Str("text", update.Message.Text).
			Msg("Handling message")
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID, userID := msg.Chat.ID, msg.From.ID
	if msg.Document != nil || len(msg.Photo) > 0 {
		b.handleAttachment(ctx, msg)
		return
	}

	text := strings.TrimSpace(msg.Text)
	command := commandOf(text)

	switch command {
	case "/start":
		b.state.reset(userID)
		b.sendMainMenu(chatID, userID)
		b.sendPrompt(ctx, chatID, userID)
		return
	case "/book", menuBook:
		b.sendPrompt(ctx, chatID, userID)
		return
	case "/services", menuServices:
		b.sendServices(chatID, 0, 0)
		return
	case "/help", menuHelp:
		text := helpText
		if b.isAdmin(userID) {
			text += "\n\n" + adminHelpText
		}
		b.reply(chatID, text)
		return
	}

	if b.handleAdminCommand(ctx, msg, command) {
		return
	}

	st, _ := b.state.get(userID)
	res := b.handler.HandleInput(ctx, st.session.Wizard, text)
	b.sendResult(chatID, 0, st.session, res)
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq == nil || cq.Message == nil {
		return
	}
	_ = b.answerCallback(cq.ID)
	data := cq.Data
	if data == booking.NoopData {
		return
	}

	userID := cq.From.ID
	chatID := cq.Message.Chat.ID
	messageID := cq.Message.MessageID

	switch {
	case strings.HasPrefix(data, "svcpage:"):
		page, _ := strconv.Atoi(strings.TrimPrefix(data, "svcpage:"))
		b.sendServices(chatID, messageID, page)
	case strings.HasPrefix(data, "svc:"):
		b.handleServiceCallback(ctx, chatID, userID, strings.TrimPrefix(data, "svc:"))
	case strings.HasPrefix(data, "adm:"):
		if b.isAdmin(userID) {
			b.handleAdminCallback(ctx, chatID, messageID, userID, strings.TrimPrefix(data, "adm:"))
		}
	default:
		st, created := b.state.get(userID)
		if created {
			// Buttons of a session lost on restart are stale.
			st.session.Wizard.Start(ctx)
			b.sendResult(chatID, 0, st.session, b.handler.Prompt(st.session.Wizard))
			return
		}
		res := b.handler.HandleInput(ctx, st.session.Wizard, data)
		b.sendResult(chatID, messageID, st.session, res)
	}
}

func (b *Bot) handleServiceCallback(ctx context.Context, chatID, userID int64, id string) {
	st, created := b.state.get(userID)
	if created {
		st.session.Wizard.Start(ctx)
	}
	for _, s := range b.listServices() {
		if s.ID == id && st.session.Wizard.Preselect(s.ConsultationType) {
			b.reply(chatID, fmt.Sprintf("%s selected. Choose a date to continue.", s.Title))
			break
		}
	}
	b.sendResult(chatID, 0, st.session, b.handler.Prompt(st.session.Wizard))
}

// SetServices replaces the list shown by /services.
func (b *Bot) SetServices(services []model.Service) {
	b.servicesMu.Lock()
	b.services = services
	b.servicesMu.Unlock()
}

func (b *Bot) listServices() []model.Service {
	b.servicesMu.RLock()
	defer b.servicesMu.RUnlock()
	return b.services
}

func (b *Bot) sendServices(chatID int64, messageID, page int) {
	services := b.listServices()
	items := make([]pageItem, 0, len(services))
	for _, s := range services {
		items = append(items, pageItem{Label: s.Title, Detail: s.ConsultationType, Data: "svc:" + s.ID})
	}
	b.sendPage(items, PaginationParams{
		ChatID:     chatID,
		MessageID:  messageID,
		Page:       page,
		Title:      "Our services",
		PagePrefix: "svcpage:",
	})
}

// sendPrompt renders the user's current step, starting a session if needed.
func (b *Bot) sendPrompt(ctx context.Context, chatID, userID int64) {
	st, created := b.state.get(userID)
	if created {
		st.session.Wizard.Start(ctx)
	}
	b.sendResult(chatID, 0, st.session, b.handler.Prompt(st.session.Wizard))
}

// sendResult edits messageID, or sends a new message when it is 0.
func (b *Bot) sendResult(chatID int64, messageID int, s *Session, res booking.TransitionResult) {
	text := res.Message
	if s != nil && s.Notices != nil {
		var lines []string
		for _, n := range s.Notices.Drain() {
			lines = append(lines, noticeLine(n))
		}
		if len(lines) > 0 {
			text = strings.Join(lines, "\n") + "\n\n" + text
		}
	}

	markup, ok := optionsKeyboard(res.Options)
	if messageID != 0 {
		if ok {
			_, _ = b.tg.Send(tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, markup))
		} else {
			_, _ = b.tg.Send(tgbotapi.NewEditMessageText(chatID, messageID, text))
		}
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if ok {
		msg.ReplyMarkup = markup
	}
	_, _ = b.tg.Send(msg)
}

func noticeLine(n events.Notice) string {
	switch n.Level {
	case events.LevelSuccess:
		return "✅ " + n.Message
	case events.LevelWarning:
		return "⚠️ " + n.Message
	case events.LevelError:
		return "❌ " + n.Message
	default:
		return "ℹ️ " + n.Message
	}
}

// commandOf returns the command word of text without a bot mention, or
// text itself when it is not a command.
func commandOf(text string) string {
	if !strings.HasPrefix(text, "/") {
		return text
	}
	word, _, _ := strings.Cut(strings.Fields(text)[0], "@")
	return strings.ToLower(word)
}

func (b *Bot) sendMainMenu(chatID, userID int64) {
	msg := tgbotapi.NewMessage(chatID, "Welcome! Choose an action:")
	if b.isAdmin(userID) {
		msg.ReplyMarkup = adminMenu
	} else {
		msg.ReplyMarkup = mainMenu
	}
	_, _ = b.tg.Send(msg)
}

func (b *Bot) reply(chatID int64, text string) {
	_, _ = b.tg.Send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) isAdmin(id int64) bool {
	_, ok := b.admins[id]
	return ok
}

func (b *Bot) answerCallback(id string) error {
	_, err := b.tg.Request(tgbotapi.NewCallback(id, ""))
	return err
}
