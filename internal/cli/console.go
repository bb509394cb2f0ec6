package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/fatih/color"
)

const prefix = "[SQLiF]"

const banner = `
    _____ _____ __    _ _____
   |   __|     |  |  |_|   __|
   |__   |  |  |  |__| |   __|
   |_____|__  _|_____|_|__|
            |__|            %s
`

const disclaimer = `[*] The developer is not responsible for any illegal use, including unauthorised attacks
    on websites or databases. By using this software, you agree to use it responsibly
    and legally, and you assume full responsibility for any consequences that may arise.
`

// console prints user-facing status lines.
type console struct {
	out io.Writer

	info  *color.Color
	warn  *color.Color
	alert *color.Color
	good  *color.Color
}

func newConsole(out io.Writer, noColor bool) *console {
	if noColor {
		color.NoColor = true
	}
	return &console{
		out:   out,
		info:  color.New(color.FgCyan),
		warn:  color.New(color.FgYellow),
		alert: color.New(color.FgRed, color.Bold),
		good:  color.New(color.FgGreen),
	}
}

func (c *console) banner() {
	c.info.Fprintf(c.out, banner, "v"+version)
	fmt.Fprintln(c.out)
	fmt.Fprint(c.out, disclaimer)
	fmt.Fprintln(c.out)
}

func (c *console) line(col *color.Color, format string, args ...any) {
	col.Fprint(c.out, prefix)
	fmt.Fprintf(c.out, " "+format+"\n", args...)
}

func (c *console) Infof(format string, args ...any)  { c.line(c.info, format, args...) }
func (c *console) Warnf(format string, args ...any)  { c.line(c.warn, format, args...) }
func (c *console) Alertf(format string, args ...any) { c.line(c.alert, format, args...) }
func (c *console) Goodf(format string, args ...any)  { c.line(c.good, format, args...) }

// newLogger returns a text logger whose level follows --verbose.
func newLogger(w io.Writer, verbose int) *slog.Logger {
	logLevel := slog.LevelError
	switch {
	case verbose >= 3:
		logLevel = slog.LevelDebug
	case verbose >= 2:
		logLevel = slog.LevelInfo
	case verbose >= 1:
		logLevel = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel}))
}
