package schedule

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"firmament/internal/availability"
	"firmament/internal/booking"
	"firmament/internal/crmapi"
	"firmament/internal/events"
	"firmament/internal/metrics"
	"firmament/internal/model"
)

// Notices shown to the admin.
const (
	MsgBlocked        = "Time period blocked successfully"
	MsgBlockFailed    = "Failed to block time period"
	MsgUnblocked      = "Period unblocked successfully"
	MsgUnblockFailed  = "Failed to unblock period"
	MsgLinkedBlock    = "This period belongs to an appointment; cancel the appointment instead"
	MsgCancelled      = "Appointment cancelled successfully"
	MsgCancelFailed   = "Failed to cancel appointment"
	MsgUpdated        = "Appointment updated successfully"
	MsgUpdateFailed   = "Failed to update appointment"
	MsgDocDeleted     = "Document deleted successfully"
	MsgDocDeleteFail  = "Failed to delete document"
	MsgDocsUploaded   = "Documents uploaded successfully"
	MsgDocsUploadFail = "Failed to upload documents"
)

// ErrLinkedBlock refuses to unblock an appointment's block.
var ErrLinkedBlock = errors.New("block is linked to an appointment")

// API is the admin subset of the REST client.
type API interface {
	availability.Source
	BlockedPeriods(ctx context.Context, startDate, endDate string) ([]model.BlockedPeriod, error)
	Block(ctx context.Context, req crmapi.BlockRequest) error
	Unblock(ctx context.Context, id int64) error

	UpcomingAppointments(ctx context.Context) ([]model.Appointment, error)
	Appointments(ctx context.Context, status model.Status) ([]model.Appointment, error)
	Appointment(ctx context.Context, id int64) (*model.Appointment, error)
	UpdateAppointment(ctx context.Context, id int64, req crmapi.UpdateAppointmentRequest) (*model.Appointment, error)
	CancelAppointment(ctx context.Context, id int64) error

	Documents(ctx context.Context, appointmentID int64) ([]model.Document, error)
	DownloadDocument(ctx context.Context, id int64, w io.Writer) (int64, error)
	DeleteDocument(ctx context.Context, id int64) error
	UploadDocuments(ctx context.Context, appointmentID int64, files []model.Attachment) error
}

// Editor runs admin operations and reports outcomes on the bus.
type Editor struct {
	api    API
	bus    *events.Bus
	loc    *time.Location
	logger *zerolog.Logger
	now    func() time.Time
}

// NewEditor builds an editor working in the admin's zone.
func NewEditor(api API, bus *events.Bus, loc *time.Location, logger *zerolog.Logger) *Editor {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Editor{api: api, bus: bus, loc: loc, logger: logger, now: time.Now}
}

// Location returns the admin's zone.
func (e *Editor) Location() *time.Location { return e.loc }

func (e *Editor) today() time.Time {
	return model.DateOnly(e.now().In(e.loc))
}

// Groups loads blocked periods between two optional dates and groups them.
func (e *Editor) Groups(ctx context.Context, from, to string) ([]BlockGroup, error) {
	blocks, err := e.api.BlockedPeriods(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("load blocked periods: %w", err)
	}
	return GroupBlockedPeriods(blocks), nil
}

// Block validates the form and creates the block.
func (e *Editor) Block(ctx context.Context, form BlockForm) error {
	form = form.Normalize()
	if err := form.Validate(e.today()); err != nil {
		e.bus.Error(err.Error())
		return err
	}
	req, err := form.Request(e.loc.String())
	if err != nil {
		e.bus.Error(err.Error())
		return err
	}
	if err := e.api.Block(ctx, req); err != nil {
		e.logger.Error().Err(err).Str("date", form.Date).Msg("block period failed")
		e.bus.Error(MsgBlockFailed)
		return err
	}
	e.bus.Success(MsgBlocked)
	e.bus.Publish(events.Event{Type: events.TypeBlocksChanged})
	return nil
}

// UnblockResult reports a range removal. Failures are not rolled back.
type UnblockResult struct {
	Removed []int64
	Failed  map[int64]error
}

// Partial reports whether some blocks were removed and some were not.
func (r *UnblockResult) Partial() bool {
	return len(r.Removed) > 0 && len(r.Failed) > 0
}

// Err joins the failures in ID order, nil when all succeeded.
func (r *UnblockResult) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(r.Failed))
	for id := range r.Failed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	errs := make([]error, 0, len(ids))
	for _, id := range ids {
		errs = append(errs, fmt.Errorf("block %d: %w", id, r.Failed[id]))
	}
	return errors.Join(errs...)
}

// Unblock removes every block of the group, one request each.
func (e *Editor) Unblock(ctx context.Context, g BlockGroup) *UnblockResult {
	res := &UnblockResult{Failed: make(map[int64]error)}
	if !g.Removable() {
		for _, id := range g.IDs() {
			res.Failed[id] = ErrLinkedBlock
		}
		metrics.IncUnblock("refused")
		e.bus.Warn(MsgLinkedBlock)
		return res
	}

	for _, id := range g.IDs() {
		if err := e.api.Unblock(ctx, id); err != nil {
			e.logger.Error().Err(err).Int64("block_id", id).Msg("unblock failed")
			res.Failed[id] = err
			continue
		}
		res.Removed = append(res.Removed, id)
	}

	switch {
	case len(res.Failed) == 0:
		metrics.IncUnblock("ok")
		e.bus.Success(MsgUnblocked)
	case res.Partial():
		metrics.IncUnblock("partial")
		e.bus.Warn(fmt.Sprintf("Unblocked %d of %d days; %d failed",
			len(res.Removed), len(res.Removed)+len(res.Failed), len(res.Failed)))
	default:
		metrics.IncUnblock("failed")
		e.bus.Error(MsgUnblockFailed)
	}
	if len(res.Removed) > 0 {
		e.bus.Publish(events.Event{Type: events.TypeBlocksChanged})
	}
	return res
}

// Documents lists an appointment's documents.
func (e *Editor) Documents(ctx context.Context, appointmentID int64) ([]model.Document, error) {
	return e.api.Documents(ctx, appointmentID)
}

// Download streams a document to w.
func (e *Editor) Download(ctx context.Context, id int64, w io.Writer) (int64, error) {
	n, err := e.api.DownloadDocument(ctx, id, w)
	if err != nil {
		e.bus.Error("Failed to download document")
		return n, err
	}
	return n, nil
}

// DeleteDocument removes a document.
func (e *Editor) DeleteDocument(ctx context.Context, id int64) error {
	if err := e.api.DeleteDocument(ctx, id); err != nil {
		e.logger.Error().Err(err).Int64("document_id", id).Msg("delete document failed")
		e.bus.Error(MsgDocDeleteFail)
		return err
	}
	e.bus.Success(MsgDocDeleted)
	return nil
}

// UploadDocuments validates and uploads admin-provided files. Rejected
// files are reported and skipped.
func (e *Editor) UploadDocuments(ctx context.Context, appointmentID int64, files []model.Attachment) ([]error, error) {
	var accepted []model.Attachment
	var rejected []error
	for _, f := range files {
		if err := booking.ValidateAttachment(f); err != nil {
			e.bus.Error(err.Error())
			rejected = append(rejected, err)
			continue
		}
		accepted = append(accepted, f)
	}
	if len(accepted) == 0 {
		return rejected, nil
	}
	if err := e.api.UploadDocuments(ctx, appointmentID, accepted); err != nil {
		e.bus.Error(MsgDocsUploadFail)
		return rejected, err
	}
	e.bus.Success(MsgDocsUploaded)
	return rejected, nil
}
