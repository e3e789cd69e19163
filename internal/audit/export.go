// Package audit exports appointments and blocked periods to a spreadsheet.
package audit

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"firmament/internal/model"
	"firmament/internal/pricing"
	"firmament/internal/schedule"
)

// Source provides the exported records.
type Source interface {
	Appointments(ctx context.Context, status model.Status) ([]model.Appointment, error)
	BlockedPeriods(ctx context.Context, startDate, endDate string) ([]model.BlockedPeriod, error)
}

var appointmentColumns = []string{
	"ID", "Date", "Time", "Duration", "Client", "Email", "Phone", "Country",
	"Consultation", "Status", "Amount", "Currency", "Admin notes",
}

var blockColumns = []string{"From", "To", "Hours", "Reason", "Notes", "Appointment"}

// Exporter builds the workbook.
type Exporter struct {
	src       Source
	newWriter func() ExcelWriter
	loc       *time.Location
	logger    *zerolog.Logger
}

// NewExporter creates an exporter rendering times in loc.
func NewExporter(src Source, loc *time.Location, logger *zerolog.Logger) *Exporter {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Exporter{src: src, newWriter: NewExcelizeWriter, loc: loc, logger: logger}
}

// Filename names an export made at t, e.g. "appointments_2025-06-10.xlsx".
func Filename(t time.Time) string {
	return fmt.Sprintf("appointments_%s.xlsx", t.Format(model.DateLayout))
}

// Export writes all appointments, grouped blocked periods and a summary
// sheet to w.
func (e *Exporter) Export(ctx context.Context, w io.Writer) error {
	appts, err := e.src.Appointments(ctx, "")
	if err != nil {
		return fmt.Errorf("load appointments: %w", err)
	}
	blocks, err := e.src.BlockedPeriods(ctx, "", "")
	if err != nil {
		return fmt.Errorf("load blocked periods: %w", err)
	}
	sort.SliceStable(appts, func(i, j int) bool {
		return appts[i].AppointmentDate.Before(appts[j].AppointmentDate.Time)
	})

	xl := e.newWriter()
	defer xl.Close()

	if err := e.writeAppointments(xl, appts); err != nil {
		return err
	}
	if err := e.writeBlocks(xl, schedule.GroupBlockedPeriods(blocks)); err != nil {
		return err
	}
	if err := e.writeSummary(xl, schedule.ComputeStats(appts)); err != nil {
		return err
	}
	if err := xl.Save(w); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	e.logger.Info().Int("appointments", len(appts)).Int("blocks", len(blocks)).Msg("export written")
	return nil
}

// ExportToFile writes the workbook to path.
func (e *Exporter) ExportToFile(ctx context.Context, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := e.Export(ctx, f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

func (e *Exporter) writeAppointments(xl ExcelWriter, appts []model.Appointment) error {
	if err := xl.AddSheet("Appointments"); err != nil {
		return err
	}
	if err := xl.WriteHeader(appointmentColumns); err != nil {
		return err
	}
	for i := range appts {
		a := &appts[i]
		at := a.AppointmentDate.In(e.loc)
		row := []any{
			a.ID, model.FormatDate(at), at.Format("15:04"), int(a.Duration), a.FullName(),
			a.Email, a.Phone, a.Country, a.ConsultationType, string(a.Status),
			a.Amount, string(a.Currency), a.AdminNotes,
		}
		if err := xl.WriteRow(row); err != nil {
			return err
		}
	}
	return nil
}

func (e *Exporter) writeBlocks(xl ExcelWriter, groups []schedule.BlockGroup) error {
	if err := xl.AddSheet("Blocked periods"); err != nil {
		return err
	}
	if err := xl.WriteHeader(blockColumns); err != nil {
		return err
	}
	for i := range groups {
		g := &groups[i]
		hours := "full day"
		if !g.FullDay {
			hours = g.StartTime + "-" + g.EndTime
		}
		var linked any = ""
		if g.Linked() && g.Blocks[0].AppointmentID != nil {
			linked = *g.Blocks[0].AppointmentID
		}
		if err := xl.WriteRow([]any{g.Start, g.End, hours, g.Reason.Label(), g.Notes, linked}); err != nil {
			return err
		}
	}
	return nil
}

func (e *Exporter) writeSummary(xl ExcelWriter, s schedule.Stats) error {
	if err := xl.AddSheet("Summary"); err != nil {
		return err
	}
	if err := xl.WriteHeader([]string{"Metric", "Value"}); err != nil {
		return err
	}
	rows := [][]any{
		{"Total appointments", s.Total},
		{"Pending", s.Pending},
		{"Confirmed", s.Confirmed},
	}
	for _, c := range model.Currencies {
		rows = append(rows, []any{"Revenue " + string(c), pricing.Format(s.Revenue[c], c)})
	}
	for _, r := range rows {
		if err := xl.WriteRow(r); err != nil {
			return err
		}
	}
	return nil
}
