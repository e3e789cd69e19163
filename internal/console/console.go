// Package console runs the booking wizard in a terminal.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"firmament/internal/booking"
	"firmament/internal/events"
	"firmament/internal/model"
)

const help = `Commands:
  <number>        pick a listed option
  /attach PATH..  attach documents (PDF, JPEG, PNG, DOC, DOCX up to 10MB)
  /next /back     move between steps
  /restart        start over
  /quit           leave
Any other input is passed to the current step.`

// Console reads lines from in and renders the wizard to out.
type Console struct {
	in      io.Reader
	out     io.Writer
	handler *booking.Handler
	wizard  *booking.Wizard
	notices *events.Collector
	logger  *zerolog.Logger
	options []booking.Option
}

// New creates a console session.
func New(in io.Reader, out io.Writer, h *booking.Handler, w *booking.Wizard, notices *events.Collector, logger *zerolog.Logger) *Console {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Console{in: in, out: out, handler: h, wizard: w, notices: notices, logger: logger}
}

// Run loops until /quit, end of input or ctx cancellation.
func (c *Console) Run(ctx context.Context) error {
	c.wizard.Start(ctx)
	c.render(c.handler.Prompt(c.wizard))

	scanner := bufio.NewScanner(c.in)
	for {
		fmt.Fprint(c.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(c.out)
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(scanner.Text())
		fields := strings.Fields(line)
		switch {
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/help":
			fmt.Fprintln(c.out, help)
			continue
		case len(fields) > 0 && fields[0] == "/attach":
			c.attach(fields[1:])
			c.render(c.handler.Prompt(c.wizard))
			continue
		}

		line = c.resolve(line)
		c.logger.Debug().Str("input", line).Stringer("step", c.wizard.Step()).Msg("console input")
		c.render(c.handler.HandleInput(ctx, c.wizard, line))
	}
}

// resolve maps an option number to its token.
func (c *Console) resolve(line string) string {
	n, err := strconv.Atoi(line)
	if err != nil || n < 1 || n > len(c.options) {
		return line
	}
	return c.options[n-1].Data
}

func (c *Console) attach(paths []string) {
	if len(paths) == 0 {
		fmt.Fprintln(c.out, "usage: /attach PATH [PATH...]")
		return
	}
	var files []model.Attachment
	for _, p := range paths {
		a, err := ReadAttachment(p)
		if err != nil {
			fmt.Fprintf(c.out, "✖ %s: %v\n", p, err)
			continue
		}
		files = append(files, a)
	}
	before := len(c.wizard.State().Draft.Documents)
	c.wizard.AddDocuments(files...)
	if added := len(c.wizard.State().Draft.Documents) - before; added > 0 {
		fmt.Fprintf(c.out, "Attached %d file(s).\n", added)
	}
}

func (c *Console) render(res booking.TransitionResult) {
	for _, n := range c.notices.Drain() {
		fmt.Fprintf(c.out, "%s %s\n", noticePrefix(n.Level), n.Message)
	}
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, res.Message)

	c.options = c.options[:0]
	for _, row := range res.Options {
		var cells []string
		for _, o := range row {
			if o.Data == booking.NoopData || !o.Enabled {
				cells = append(cells, "   "+o.Label)
				continue
			}
			c.options = append(c.options, o)
			cells = append(cells, fmt.Sprintf("[%d] %s", len(c.options), o.Label))
		}
		fmt.Fprintln(c.out, strings.Join(cells, "  "))
	}
}

func noticePrefix(l events.Level) string {
	switch l {
	case events.LevelSuccess:
		return "✔"
	case events.LevelWarning:
		return "!"
	case events.LevelError:
		return "✖"
	default:
		return "i"
	}
}

// ReadAttachment loads a file and sniffs its content type. Files over
// booking.MaxDocumentSize are rejected from their size before reading.
func ReadAttachment(path string) (model.Attachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return model.Attachment{}, err
	}
	name := filepath.Base(path)
	if info.Size() > booking.MaxDocumentSize {
		return model.Attachment{}, &booking.DocumentError{Name: name, Err: booking.ErrFileTooLarge}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Attachment{}, err
	}
	ct := mimetype.Detect(data).String()
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		ct = mt
	}
	return model.Attachment{
		Name:        name,
		ContentType: ct,
		Size:        int64(len(data)),
		Data:        data,
	}, nil
}
