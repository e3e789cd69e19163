package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"firmament/internal/audit"
	"firmament/internal/console"
	"firmament/internal/events"
	"firmament/internal/model"
	"firmament/internal/pricing"
	"firmament/internal/schedule"
	"firmament/internal/session"
)

// PasswordEnv supplies the admin password without a prompt.
const PasswordEnv = "BOOKER_ADMIN_PASSWORD"

var errUsage = errors.New("usage")

const adminUsage = `Usage: booker admin COMMAND [ARGS]

  login USERNAME                 sign in (password from $BOOKER_ADMIN_PASSWORD or stdin)
  logout                         drop the stored session
  upcoming                       upcoming appointments and totals
  list [STATUS]                  appointments, optionally by status
  show ID                        one appointment with its documents
  status ID STATUS               set PENDING, CONFIRMED, CANCELLED or COMPLETED
  notes ID TEXT...               replace admin notes
  reschedule ID DATE TIME        move an appointment
  times DATE                     free start times on a date
  cancel ID                      cancel an appointment
  blocks [FROM TO]               grouped blocked periods
  block DATE [END] [HH:MM-HH:MM] [REASON] [NOTES...]
  unblock N                      remove group N from 'blocks'
  docs ID                        list an appointment's documents
  upload ID FILE...              attach files to an appointment
  download DOC_ID FILE           save a document
  rmdoc DOC_ID                   delete a document
  export [FILE]                  write the appointments workbook
`

type adminCLI struct {
	a       *app
	editor  *schedule.Editor
	notices *events.Collector
	in      *bufio.Reader
	out     io.Writer
}

type adminFunc func(c *adminCLI, ctx context.Context, args []string) error

var adminCommands = map[string]adminFunc{
	"upcoming":   (*adminCLI).upcoming,
	"list":       (*adminCLI).list,
	"show":       (*adminCLI).show,
	"status":     (*adminCLI).status,
	"notes":      (*adminCLI).notes,
	"reschedule": (*adminCLI).reschedule,
	"times":      (*adminCLI).times,
	"cancel":     (*adminCLI).cancel,
	"blocks":     (*adminCLI).blocks,
	"block":      (*adminCLI).block,
	"unblock":    (*adminCLI).unblock,
	"docs":       (*adminCLI).docs,
	"upload":     (*adminCLI).upload,
	"download":   (*adminCLI).download,
	"rmdoc":      (*adminCLI).rmdoc,
	"export":     (*adminCLI).export,
}

func runAdmin(ctx context.Context, a *app, args []string, in io.Reader, out io.Writer) error {
	if len(args) == 0 || args[0] == "help" {
		fmt.Fprint(out, adminUsage)
		if len(args) == 0 {
			return errUsage
		}
		return nil
	}

	bus := events.NewBus()
	c := &adminCLI{
		a:       a,
		editor:  schedule.NewEditor(a.client, bus, a.loc, a.logger),
		notices: events.NewCollector(bus),
		in:      bufio.NewReader(in),
		out:     out,
	}
	defer c.flushNotices()

	switch args[0] {
	case "login":
		return c.login(ctx, args[1:])
	case "logout":
		a.session.Clear()
		fmt.Fprintln(out, "Logged out.")
		return nil
	}

	fn, ok := adminCommands[args[0]]
	if !ok {
		fmt.Fprint(out, adminUsage)
		return errUsage
	}
	if err := a.session.Require(session.RoleAdmin); err != nil {
		return fmt.Errorf("%w: run 'booker admin login USERNAME'", err)
	}
	return fn(c, ctx, args[1:])
}

func (c *adminCLI) flushNotices() {
	for _, n := range c.notices.Drain() {
		fmt.Fprintln(c.out, n.Message)
	}
}

func (c *adminCLI) login(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usagef("login USERNAME")
	}
	password := os.Getenv(PasswordEnv)
	if password == "" {
		fmt.Fprint(c.out, "Password: ")
		line, err := c.in.ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	resp, err := c.a.client.Login(ctx, args[0], password)
	if err != nil {
		return err
	}
	if resp.Role != session.RoleAdmin {
		return fmt.Errorf("%s has role %q: %w", resp.Username, resp.Role, session.ErrForbidden)
	}
	if err := c.a.session.Begin(ctx, session.Data{Token: resp.Token, Username: resp.Username, Role: resp.Role}); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Logged in as %s.\n", resp.Username)
	return nil
}

func (c *adminCLI) upcoming(ctx context.Context, _ []string) error {
	appts, stats, err := c.editor.Dashboard(ctx)
	if err != nil {
		return err
	}
	c.writeAppointments(appts)
	fmt.Fprintf(c.out, "\nTotal %d, pending %d, confirmed %d\n", stats.Total, stats.Pending, stats.Confirmed)
	for _, cur := range model.Currencies {
		if v := stats.Revenue[cur]; v > 0 {
			fmt.Fprintf(c.out, "Revenue %s\n", pricing.Format(v, cur))
		}
	}
	return nil
}

func (c *adminCLI) list(ctx context.Context, args []string) error {
	var status model.Status
	if len(args) > 0 {
		s, err := model.ParseStatus(args[0])
		if err != nil {
			return err
		}
		status = s
	}
	appts, err := c.editor.Appointments(ctx, status)
	if err != nil {
		return err
	}
	c.writeAppointments(appts)
	return nil
}

func (c *adminCLI) writeAppointments(appts []model.Appointment) {
	if len(appts) == 0 {
		fmt.Fprintln(c.out, "No appointments.")
		return
	}
	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tTIME\tDURATION\tCLIENT\tTYPE\tSTATUS\tAMOUNT")
	for i := range appts {
		a := &appts[i]
		at := a.AppointmentDate.In(c.a.loc)
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s %s\t%s\n",
			a.ID, model.FormatDate(at), at.Format("15:04"), a.Duration, a.FullName(),
			a.ConsultationType, a.Status.Symbol(), a.Status, pricing.Format(a.Amount, a.Currency))
	}
	_ = tw.Flush()
}

func (c *adminCLI) show(ctx context.Context, args []string) error {
	id, err := idArg(args, "show ID")
	if err != nil {
		return err
	}
	a, err := c.editor.Appointment(ctx, id)
	if err != nil {
		return err
	}
	at := a.AppointmentDate.In(c.a.loc)
	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	rows := [][2]string{
		{"ID", strconv.FormatInt(a.ID, 10)},
		{"Client", a.FullName()},
		{"Email", a.Email},
		{"Phone", a.Phone},
		{"Country", a.Country},
		{"Type", a.ConsultationType},
		{"When", model.FormatDate(at) + " " + at.Format("15:04") + " (" + a.Duration.String() + ")"},
		{"Status", string(a.Status)},
		{"Amount", pricing.Format(a.Amount, a.Currency)},
		{"Presentation", a.ClientPresentation},
		{"Notes", a.AdminNotes},
	}
	for _, r := range rows {
		fmt.Fprintf(tw, "%s:\t%s\n", r[0], r[1])
	}
	_ = tw.Flush()

	docs, err := c.editor.Documents(ctx, id)
	if err != nil {
		return err
	}
	if len(docs) > 0 {
		fmt.Fprintln(c.out)
		c.writeDocuments(docs)
	}
	return nil
}

func (c *adminCLI) status(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usagef("status ID STATUS")
	}
	id, err := idArg(args[:1], "status ID STATUS")
	if err != nil {
		return err
	}
	_, err = c.editor.SetStatus(ctx, id, model.Status(strings.ToUpper(args[1])))
	return err
}

func (c *adminCLI) notes(ctx context.Context, args []string) error {
	id, err := idArg(args, "notes ID TEXT...")
	if err != nil {
		return err
	}
	_, err = c.editor.SetNotes(ctx, id, strings.Join(args[1:], " "))
	return err
}

func (c *adminCLI) reschedule(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return usagef("reschedule ID DATE TIME")
	}
	id, err := idArg(args[:1], "reschedule ID DATE TIME")
	if err != nil {
		return err
	}
	a, err := c.editor.Appointment(ctx, id)
	if err != nil {
		return err
	}
	form := schedule.EditFormFrom(a, c.a.loc)
	form.ChangeDate(args[1])
	form.Time = args[2]
	_, err = c.editor.Save(ctx, id, form)
	return err
}

func (c *adminCLI) times(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usagef("times DATE")
	}
	times := c.editor.AvailableTimes(ctx, args[0])
	if len(times) == 0 {
		fmt.Fprintln(c.out, "No free start times.")
		return nil
	}
	fmt.Fprintln(c.out, strings.Join(times, " "))
	return nil
}

func (c *adminCLI) cancel(ctx context.Context, args []string) error {
	id, err := idArg(args, "cancel ID")
	if err != nil {
		return err
	}
	return c.editor.Cancel(ctx, id)
}

func (c *adminCLI) groups(ctx context.Context, args []string) ([]schedule.BlockGroup, error) {
	var from, to string
	switch len(args) {
	case 0:
	case 2:
		from, to = args[0], args[1]
	default:
		return nil, usagef("blocks [FROM TO]")
	}
	return c.editor.Groups(ctx, from, to)
}

func (c *adminCLI) blocks(ctx context.Context, args []string) error {
	groups, err := c.groups(ctx, args)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		fmt.Fprintln(c.out, "No blocked periods.")
		return nil
	}
	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "N\tFROM\tTO\tHOURS\tREASON\tNOTES\t")
	for i := range groups {
		g := &groups[i]
		hours := "full day"
		if !g.FullDay {
			hours = g.StartTime + "-" + g.EndTime
		}
		lock := ""
		if g.Linked() {
			lock = "appointment"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n", i+1, g.Start, g.End, hours, g.Reason.Label(), g.Notes, lock)
	}
	return tw.Flush()
}

func (c *adminCLI) block(ctx context.Context, args []string) error {
	form, err := schedule.ParseBlockArgs(args)
	if err != nil {
		return err
	}
	return c.editor.Block(ctx, form)
}

func (c *adminCLI) unblock(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usagef("unblock N")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return usagef("unblock N")
	}
	groups, err := c.editor.Groups(ctx, "", "")
	if err != nil {
		return err
	}
	if n > len(groups) {
		return fmt.Errorf("no group %d, run 'booker admin blocks'", n)
	}
	return c.editor.Unblock(ctx, groups[n-1]).Err()
}

func (c *adminCLI) docs(ctx context.Context, args []string) error {
	id, err := idArg(args, "docs ID")
	if err != nil {
		return err
	}
	docs, err := c.editor.Documents(ctx, id)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Fprintln(c.out, "No documents.")
		return nil
	}
	c.writeDocuments(docs)
	return nil
}

func (c *adminCLI) writeDocuments(docs []model.Document) {
	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DOC\tNAME\tTYPE\tSIZE")
	for _, d := range docs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", d.ID, d.FileName, d.ContentType, d.Size)
	}
	_ = tw.Flush()
}

func (c *adminCLI) upload(ctx context.Context, args []string) error {
	id, err := idArg(args, "upload ID FILE...")
	if err != nil {
		return err
	}
	if len(args) < 2 {
		return usagef("upload ID FILE...")
	}
	files := make([]model.Attachment, 0, len(args)-1)
	for _, path := range args[1:] {
		f, err := console.ReadAttachment(path)
		if err != nil {
			return err
		}
		files = append(files, f)
	}
	_, err = c.editor.UploadDocuments(ctx, id, files)
	return err
}

func (c *adminCLI) download(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usagef("download DOC_ID FILE")
	}
	id, err := idArg(args[:1], "download DOC_ID FILE")
	if err != nil {
		return err
	}
	f, err := os.Create(args[1])
	if err != nil {
		return err
	}
	n, err := c.editor.Download(ctx, id, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(args[1])
		return err
	}
	fmt.Fprintf(c.out, "Saved %s (%d bytes).\n", args[1], n)
	return nil
}

func (c *adminCLI) rmdoc(ctx context.Context, args []string) error {
	id, err := idArg(args, "rmdoc DOC_ID")
	if err != nil {
		return err
	}
	return c.editor.DeleteDocument(ctx, id)
}

func (c *adminCLI) export(ctx context.Context, args []string) error {
	exp := audit.NewExporter(c.a.client, c.a.loc, c.a.logger)
	path := audit.Filename(time.Now().In(c.a.loc))
	if len(args) > 0 {
		path = args[0]
	}
	if err := exp.ExportToFile(ctx, path); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Exported %s.\n", path)
	return nil
}

func idArg(args []string, usage string) (int64, error) {
	if len(args) == 0 {
		return 0, usagef(usage)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", args[0])
	}
	return id, nil
}

func usagef(usage string) error {
	return fmt.Errorf("%w: booker admin %s", errUsage, usage)
}
