package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firmament/internal/availability"
	"firmament/internal/booking"
	"firmament/internal/events"
	"firmament/internal/model"
	"firmament/internal/schedule"
)

type fakeTelegram struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests int
	files    map[string]string
	fetched  []string
}

func (f *fakeTelegram) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeTelegram) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeTelegram) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (f *fakeTelegram) GetFileDirectURL(fileID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, fileID)
	url, ok := f.files[fileID]
	if !ok {
		return "", errors.New("file not found")
	}
	return url, nil
}

func (f *fakeTelegram) SelfUser() tgbotapi.User { return tgbotapi.User{UserName: "firmament_bot"} }

func (f *fakeTelegram) take() []tgbotapi.Chattable {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.sent
	f.sent = nil
	return out
}

func texts(cs []tgbotapi.Chattable) []string {
	var out []string
	for _, c := range cs {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, m.Text)
		case tgbotapi.EditMessageTextConfig:
			out = append(out, m.Text)
		}
	}
	return out
}

type fakeSource struct{}

func (fakeSource) MonthAvailability(_ context.Context, _, month int, _ string) (model.MonthAvailability, error) {
	if month == 6 {
		return model.MonthAvailability{10: true}, nil
	}
	return nil, errors.New("no data")
}

func (fakeSource) DayAvailability(_ context.Context, date, _ string) (*model.DayAvailability, error) {
	return &model.DayAvailability{Date: date, Slots: []model.Slot{{StartTime: "10:00", Available30: true}}}, nil
}

type fakeAdmin struct {
	bus       *events.Bus
	appts     []model.Appointment
	groups    []schedule.BlockGroup
	blocked   []schedule.BlockForm
	unblocked []schedule.BlockGroup
	cancelled []int64
}

func (f *fakeAdmin) Dashboard(context.Context) ([]model.Appointment, schedule.Stats, error) {
	return f.appts, schedule.ComputeStats(f.appts), nil
}

func (f *fakeAdmin) Appointment(_ context.Context, id int64) (*model.Appointment, error) {
	for i := range f.appts {
		if f.appts[i].ID == id {
			return &f.appts[i], nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeAdmin) SetStatus(_ context.Context, id int64, s model.Status) (*model.Appointment, error) {
	f.bus.Success("status " + string(s))
	return &model.Appointment{ID: id, Status: s}, nil
}

func (f *fakeAdmin) Cancel(_ context.Context, id int64) error {
	f.cancelled = append(f.cancelled, id)
	f.bus.Success(schedule.MsgCancelled)
	return nil
}

func (f *fakeAdmin) Groups(context.Context, string, string) ([]schedule.BlockGroup, error) {
	return f.groups, nil
}

func (f *fakeAdmin) Block(_ context.Context, form schedule.BlockForm) error {
	f.blocked = append(f.blocked, form)
	f.bus.Success(schedule.MsgBlocked)
	return nil
}

func (f *fakeAdmin) Unblock(_ context.Context, g schedule.BlockGroup) *schedule.UnblockResult {
	f.unblocked = append(f.unblocked, g)
	f.bus.Success(schedule.MsgUnblocked)
	return &schedule.UnblockResult{Removed: g.IDs(), Failed: map[int64]error{}}
}

type fakeExporter struct{}

func (fakeExporter) Export(_ context.Context, w io.Writer) error {
	_, err := io.WriteString(w, "PK")
	return err
}

const (
	clientID = int64(100)
	adminID  = int64(1)
)

func newTestBot(t *testing.T) (*Bot, *fakeTelegram, *fakeAdmin) {
	t.Helper()
	loc, err := time.LoadLocation("America/Toronto")
	require.NoError(t, err)

	newSession := func() *Session {
		bus := events.NewBus()
		cache := availability.NewCache(fakeSource{}, loc, nil)
		w := booking.NewWizard(nil, cache, bus, booking.Options{
			Location:          loc,
			ConsultationTypes: model.DefaultConsultationTypes,
			Now:               func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, loc) },
		}, nil)
		return &Session{Wizard: w, Notices: events.NewCollector(bus)}
	}

	adminBus := events.NewBus()
	admin := &fakeAdmin{bus: adminBus}
	tg := &fakeTelegram{files: map[string]string{}}
	b, err := NewWithTelegramClient(tg, booking.NewHandler(nil), newSession, Options{
		Admins:       []int64{adminID},
		Services:     model.DefaultServices,
		Location:     loc,
		Admin:        admin,
		AdminNotices: events.NewCollector(adminBus),
		Exporter:     fakeExporter{},
	}, nil)
	require.NoError(t, err)
	return b, tg, admin
}

func message(from int64, text string) *tgbotapi.Update {
	return &tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 7,
		From:      &tgbotapi.User{ID: from},
		Chat:      &tgbotapi.Chat{ID: from},
		Text:      text,
	}}
}

func callback(from int64, data string) *tgbotapi.Update {
	return &tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: from},
		Message: &tgbotapi.Message{MessageID: 55, Chat: &tgbotapi.Chat{ID: from}},
		Data:    data,
	}}
}

func hasButton(markup tgbotapi.InlineKeyboardMarkup, data string) bool {
	for _, row := range markup.InlineKeyboard {
		for _, btn := range row {
			if btn.CallbackData != nil && *btn.CallbackData == data {
				return true
			}
		}
	}
	return false
}

func TestStartSendsMenuAndCalendar(t *testing.T) {
	b, tg, _ := newTestBot(t)
	b.handleUpdate(context.Background(), message(clientID, "/start"))

	sent := tg.take()
	require.Len(t, sent, 2)
	menu := sent[0].(tgbotapi.MessageConfig)
	assert.Equal(t, mainMenu, menu.ReplyMarkup)

	prompt := sent[1].(tgbotapi.MessageConfig)
	assert.Contains(t, prompt.Text, "Step 1/6")
	markup, ok := prompt.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	assert.True(t, hasButton(markup, "date:2025-06-10"))
}

func TestAdminGetsAdminMenu(t *testing.T) {
	b, tg, _ := newTestBot(t)
	b.handleUpdate(context.Background(), message(adminID, "/start@firmament_bot"))
	sent := tg.take()
	require.NotEmpty(t, sent)
	assert.Equal(t, adminMenu, sent[0].(tgbotapi.MessageConfig).ReplyMarkup)
}

func TestCallbackEditsPrompt(t *testing.T) {
	ctx := context.Background()
	b, tg, _ := newTestBot(t)
	b.handleUpdate(ctx, message(clientID, "/book"))
	tg.take()

	b.handleUpdate(ctx, callback(clientID, "date:2025-06-10"))
	sent := tg.take()
	require.Len(t, sent, 1)
	edit, ok := sent[0].(tgbotapi.EditMessageTextConfig)
	require.True(t, ok)
	assert.Equal(t, 55, edit.MessageID)
	assert.Contains(t, edit.Text, "Choose a time.")
	require.NotNil(t, edit.ReplyMarkup)
	assert.True(t, hasButton(*edit.ReplyMarkup, "time:10:00"))
	assert.Equal(t, 1, tg.requests, "callback answered")

	b.handleUpdate(ctx, callback(clientID, booking.NoopData))
	assert.Empty(t, tg.take())
}

func TestStaleCallbackSendsFreshPrompt(t *testing.T) {
	b, tg, _ := newTestBot(t)
	b.handleUpdate(context.Background(), callback(clientID, "time:10:00"))
	sent := tg.take()
	require.Len(t, sent, 1)
	msg, ok := sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Contains(t, msg.Text, "Choose a date.")
}

func TestServicePreselectsType(t *testing.T) {
	ctx := context.Background()
	b, tg, _ := newTestBot(t)
	b.handleUpdate(ctx, message(clientID, "/services"))
	sent := tg.take()
	require.Len(t, sent, 1)
	markup := sent[0].(tgbotapi.MessageConfig).ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	assert.True(t, hasButton(markup, "svc:student-visa"))

	b.handleUpdate(ctx, callback(clientID, "svc:student-visa"))
	st, _ := b.state.get(clientID)
	assert.Equal(t, "Permis d'études", st.session.Wizard.State().Draft.ConsultationType)
	assert.Contains(t, texts(tg.take())[0], "Visa Étudiant selected")
}

func TestSetServicesReplacesList(t *testing.T) {
	b, tg, _ := newTestBot(t)
	b.SetServices([]model.Service{{ID: "audit", Title: "Audit", ConsultationType: "Autre"}})

	b.handleUpdate(context.Background(), message(clientID, "/services"))
	sent := tg.take()
	require.Len(t, sent, 1)
	markup := sent[0].(tgbotapi.MessageConfig).ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	assert.True(t, hasButton(markup, "svc:audit"))
	assert.False(t, hasButton(markup, "svc:student-visa"))
}

func TestOversizedDocumentRejectedBeforeDownload(t *testing.T) {
	b, tg, _ := newTestBot(t)
	up := message(clientID, "")
	up.Message.Document = &tgbotapi.Document{FileID: "f1", FileName: "scan.pdf", MimeType: "application/pdf", FileSize: 12 << 20}
	b.handleUpdate(context.Background(), up)

	assert.Empty(t, tg.fetched)
	got := texts(tg.take())
	require.Len(t, got, 1)
	assert.Contains(t, got[0], "❌ scan.pdf exceeds the maximum size of 10MB")
}

func TestDocumentDownloadedAndAttached(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "%PDF-1.4")
	}))
	defer srv.Close()

	b, tg, _ := newTestBot(t)
	tg.files["f2"] = srv.URL + "/f2"
	up := message(clientID, "")
	up.Message.Document = &tgbotapi.Document{FileID: "f2", FileName: "passport.pdf", MimeType: "application/pdf", FileSize: 8}
	b.handleUpdate(context.Background(), up)

	st, _ := b.state.get(clientID)
	docs := st.session.Wizard.State().Draft.Documents
	require.Len(t, docs, 1)
	assert.Equal(t, []byte("%PDF-1.4"), docs[0].Data)
	assert.Contains(t, texts(tg.take()), "📎 Attached passport.pdf")
}

func TestAdminCommandsRestricted(t *testing.T) {
	b, tg, admin := newTestBot(t)
	b.handleUpdate(context.Background(), message(clientID, "/block 2025-06-10"))
	assert.Equal(t, []string{"This command is reserved for administrators."}, texts(tg.take()))
	assert.Empty(t, admin.blocked)
}

func TestAdminUpcomingAndAppointment(t *testing.T) {
	ctx := context.Background()
	b, tg, admin := newTestBot(t)
	admin.appts = []model.Appointment{
		{ID: 3, FirstName: "Amina", LastName: "Benali", Status: model.StatusPending, Duration: model.Duration60,
			Amount: 90, Currency: model.CurrencyCAD, ConsultationType: "Autre",
			AppointmentDate: model.Timestamp{Time: time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)}},
		{ID: 4, FirstName: "Omar", Status: model.StatusConfirmed, Amount: 900, Currency: model.CurrencyMAD},
	}

	b.handleUpdate(ctx, message(adminID, "/upcoming"))
	sent := tg.take()
	require.Len(t, sent, 1)
	msg := sent[0].(tgbotapi.MessageConfig)
	assert.Contains(t, msg.Text, "Upcoming: 2 (pending 1, confirmed 1)")
	assert.Contains(t, msg.Text, "Revenue: 900 MAD")
	assert.Contains(t, msg.Text, "10.06 10:00 Amina Benali")
	assert.True(t, hasButton(msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup), "adm:appt:3"))

	b.handleUpdate(ctx, callback(adminID, "adm:appt:3"))
	detail := tg.take()[0].(tgbotapi.MessageConfig)
	assert.Contains(t, detail.Text, "Appointment #3")
	assert.True(t, hasButton(detail.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup), "adm:status:3:CONFIRMED"))

	b.handleUpdate(ctx, callback(adminID, "adm:cancel:3"))
	assert.Equal(t, []int64{3}, admin.cancelled)
	assert.Equal(t, []string{"✅ " + schedule.MsgCancelled}, texts(tg.take()))

	b.handleUpdate(ctx, callback(clientID, "adm:cancel:4"))
	assert.Equal(t, []int64{3}, admin.cancelled, "non-admin callbacks ignored")
}

func TestAdminBlockAndUnblock(t *testing.T) {
	ctx := context.Background()
	b, tg, admin := newTestBot(t)

	b.handleUpdate(ctx, message(adminID, "/block 2025-06-20 2025-06-22 VACATION summer"))
	require.Len(t, admin.blocked, 1)
	assert.Equal(t, "2025-06-22", admin.blocked[0].EndDate)
	assert.Equal(t, []string{"✅ " + schedule.MsgBlocked}, texts(tg.take()))

	apptID := int64(9)
	admin.groups = schedule.GroupBlockedPeriods([]model.BlockedPeriod{
		{ID: 1, Date: "2025-06-20", FullDay: true, Reason: model.ReasonVacation},
		{ID: 2, Date: "2025-06-21", FullDay: true, Reason: model.ReasonVacation},
		{ID: 5, Date: "2025-06-25", StartTime: "10:00", EndTime: "11:00", Reason: model.ReasonOther, AppointmentID: &apptID},
	})
	b.handleUpdate(ctx, message(adminID, "/blocks"))
	msg := tg.take()[0].(tgbotapi.MessageConfig)
	assert.Contains(t, msg.Text, "1. 2025-06-20 → 2025-06-21, full day, Vacation")
	assert.Contains(t, msg.Text, "🔒 appointment")
	markup := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	assert.True(t, hasButton(markup, "adm:unblock:0"))
	assert.False(t, hasButton(markup, "adm:unblock:1"), "linked block has no unblock button")

	b.handleUpdate(ctx, callback(adminID, "adm:unblock:0"))
	require.Len(t, admin.unblocked, 1)
	assert.Equal(t, []int64{1, 2}, admin.unblocked[0].IDs())

	b.handleUpdate(ctx, callback(adminID, "adm:unblock:9"))
	assert.Contains(t, texts(tg.take()), "This list is out of date, send /blocks again.")
}

func TestAdminExport(t *testing.T) {
	b, tg, _ := newTestBot(t)
	b.handleUpdate(context.Background(), message(adminID, menuExport))
	sent := tg.take()
	require.Len(t, sent, 1)
	doc, ok := sent[0].(tgbotapi.DocumentConfig)
	require.True(t, ok)
	file := doc.File.(tgbotapi.FileBytes)
	assert.True(t, strings.HasPrefix(file.Name, "appointments_"))
	assert.Equal(t, []byte("PK"), file.Bytes)
}

func TestRenderPage(t *testing.T) {
	items := make([]pageItem, 10)
	for i := range items {
		items[i] = pageItem{Label: fmt.Sprintf("item %d", i+1), Data: fmt.Sprintf("it:%d", i)}
	}

	text, markup := renderPage(items, PaginationParams{Title: "Items", PagePrefix: "p:"})
	assert.Contains(t, text, "Page 1 of 2")
	assert.Len(t, markup.InlineKeyboard, 9)
	assert.True(t, hasButton(markup, "p:1"))
	assert.False(t, hasButton(markup, "it:8"))

	text, markup = renderPage(items, PaginationParams{Title: "Items", PagePrefix: "p:", Page: 5, BackCallback: "back"})
	assert.Contains(t, text, "Page 2 of 2")
	assert.True(t, hasButton(markup, "it:9"))
	assert.True(t, hasButton(markup, "p:0"))
	assert.True(t, hasButton(markup, "back"))

	text, markup = renderPage(nil, PaginationParams{Title: "Empty"})
	assert.Equal(t, "Empty", text)
	assert.Empty(t, markup.InlineKeyboard)
}

func TestOptionsKeyboard(t *testing.T) {
	markup, ok := optionsKeyboard([][]booking.Option{{
		{Label: "30 min", Data: "dur:30", Enabled: true},
		{Label: "⛔ 90 min", Data: "dur:90"},
		{Label: "long", Data: strings.Repeat("x", 65), Enabled: true},
	}})
	require.True(t, ok)
	assert.True(t, hasButton(markup, "dur:30"))
	assert.False(t, hasButton(markup, "dur:90"))
	assert.Equal(t, booking.NoopData, *markup.InlineKeyboard[0][2].CallbackData)

	_, ok = optionsKeyboard(nil)
	assert.False(t, ok)
}

func TestFormatDigest(t *testing.T) {
	loc, err := time.LoadLocation("America/Toronto")
	require.NoError(t, err)
	day := time.Date(2025, 6, 11, 0, 0, 0, 0, loc)
	at := func(h int) model.Timestamp { return model.Timestamp{Time: time.Date(2025, 6, 11, h, 0, 0, 0, loc)} }
	appts := []model.Appointment{
		{FirstName: "B", Status: model.StatusConfirmed, AppointmentDate: at(14), Duration: model.Duration30, ConsultationType: "Autre"},
		{FirstName: "A", Status: model.StatusPending, AppointmentDate: at(9), Duration: model.Duration60, ConsultationType: "Citoyenneté"},
		{FirstName: "C", Status: model.StatusCancelled, AppointmentDate: at(10)},
		{FirstName: "D", Status: model.StatusConfirmed, AppointmentDate: model.Timestamp{Time: time.Date(2025, 6, 12, 9, 0, 0, 0, loc)}},
	}
	got := formatDigest(appts, day, loc)
	assert.Equal(t, "Agenda for Wednesday 11.06.2025:\n⏳ 09:00 A, Citoyenneté (60 minutes)\n✅ 14:00 B, Autre (30 minutes)", got)
	assert.Equal(t, "Agenda for Thursday 12.06.2025: no appointments.", formatDigest(nil, day.AddDate(0, 0, 1), loc))
}

func TestTimeUntilNextHour(t *testing.T) {
	now := time.Date(2025, 6, 10, 8, 30, 0, 0, time.UTC)
	assert.Equal(t, 30*time.Minute, timeUntilNextHour(now, 9))
	assert.Equal(t, 23*time.Hour+30*time.Minute, timeUntilNextHour(now, 8))
}

func TestCommandOf(t *testing.T) {
	assert.Equal(t, "/start", commandOf("/start@firmament_bot payload"))
	assert.Equal(t, "/block", commandOf("/BLOCK 2025-06-10"))
	assert.Equal(t, "Amina", commandOf("Amina"))
}
