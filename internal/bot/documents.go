package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"firmament/internal/booking"
	"firmament/internal/model"
)

// handleAttachment attaches a sent document or photo to the user's draft.
// Size and type are checked from the metadata before downloading.
func (b *Bot) handleAttachment(ctx context.Context, msg *tgbotapi.Message) {
	chatID, userID := msg.Chat.ID, msg.From.ID
	st, created := b.state.get(userID)
	if created {
		st.session.Wizard.Start(ctx)
	}

	var a model.Attachment
	var fileID string
	switch {
	case msg.Document != nil:
		fileID = msg.Document.FileID
		a = model.Attachment{Name: msg.Document.FileName, ContentType: msg.Document.MimeType, Size: int64(msg.Document.FileSize)}
	default:
		p := msg.Photo[len(msg.Photo)-1]
		fileID = p.FileID
		a = model.Attachment{Name: fmt.Sprintf("photo_%d.jpg", msg.MessageID), ContentType: "image/jpeg", Size: int64(p.FileSize)}
	}
	if a.Name == "" {
		a.Name = fileID
	}

	w := st.session.Wizard
	if err := booking.ValidateAttachment(a); err != nil || w.DocumentsLocked() {
		// Let the wizard report the rejection on its bus.
		w.AddDocuments(a)
		b.sendResult(chatID, 0, st.session, b.handler.Prompt(w))
		return
	}

	data, err := b.download(ctx, fileID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("file_id", fileID).Msg("Failed to download attachment")
		b.reply(chatID, "Could not receive "+a.Name+", please send it again.")
		return
	}
	a.Data = data
	a.Size = int64(len(data))
	if errs := w.AddDocuments(a); len(errs) == 0 {
		b.reply(chatID, "📎 Attached "+a.Name)
	}
	b.sendResult(chatID, 0, st.session, b.handler.Prompt(w))
}

func (b *Bot) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.tg.GetFileDirectURL(fileID)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: http %d", fileID, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, booking.MaxDocumentSize+1))
}
