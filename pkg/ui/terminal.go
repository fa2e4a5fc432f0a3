package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

// Banner printed at the start of a run
const Banner = `
    ╔══════════════════════════════════════════════════════╗
    ║   QIDIAN PARAGRAPH REVIEWS · 起点画线评抓取           ║
    ╚══════════════════════════════════════════════════════╝
`

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

// colorize returns a function that wraps text with ANSI color codes
func colorize(colorString string) func(string) string {
	return func(text string) string {
		return fmt.Sprintf(colorString, text)
	}
}

// Console writes operator-facing progress. Colors and in-place lines are
// used only when the output is a terminal.
type Console struct {
	mu      sync.Mutex
	out     io.Writer
	tty     bool
	pending bool // an in-place line is on screen
}

// NewConsole creates a Console on stdout
func NewConsole() *Console {
	return NewConsoleWriter(os.Stdout)
}

// NewConsoleWriter creates a Console on w. Terminal features are enabled
// when w is a terminal file.
func NewConsoleWriter(w io.Writer) *Console {
	tty := false
	if f, ok := w.(*os.File); ok {
		tty = term.IsTerminal(int(f.Fd()))
	}
	return &Console{out: w, tty: tty}
}

// Writer returns the underlying writer
func (c *Console) Writer() io.Writer {
	return c.out
}

func (c *Console) paint(color func(string) string, s string) string {
	if !c.tty {
		return s
	}
	return color(s)
}

func (c *Console) println(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending {
		fmt.Fprintln(c.out)
		c.pending = false
	}
	fmt.Fprintln(c.out, s)
}

// PrintBanner prints the banner and the book being scraped
func (c *Console) PrintBanner(bookID string) {
	c.println(c.paint(Cyan, Banner))
	c.PrintInfo("Book", bookID)
}

// PrintInfo prints a label and value
func (c *Console) PrintInfo(label, value string) {
	c.println(fmt.Sprintf("%s: %s", c.paint(Cyan, label), c.paint(Yellow, value)))
}

// PrintSuccess prints a success message in green
func (c *Console) PrintSuccess(format string, args ...interface{}) {
	c.println(c.paint(Green, fmt.Sprintf(format, args...)))
}

// PrintWarning prints a warning message in yellow
func (c *Console) PrintWarning(format string, args ...interface{}) {
	c.println(c.paint(Yellow, fmt.Sprintf(format, args...)))
}

// PrintError prints an error message in red
func (c *Console) PrintError(msg string, err error) {
	if err != nil {
		msg = msg + ": " + err.Error()
	}
	c.println(c.paint(Red, msg))
}

// ChapterStart announces chapter i of n
func (c *Console) ChapterStart(i, n int, name, id string) {
	c.println(fmt.Sprintf("\n%s %s %s",
		c.paint(Magenta, ProgressBar(i, n, 20)),
		name,
		c.paint(Dim, "(ID: "+id+")")))
}

// ChapterSkipped reports a chapter persisted by an earlier run
func (c *Console) ChapterSkipped(i, n int, name, id string) {
	c.println(c.paint(Dim, fmt.Sprintf("[%d/%d] skipping completed chapter: %s (ID: %s)", i, n, name, id)))
}

// SegmentDone reports one paragraph's comment count and a preview of its text
func (c *Console) SegmentDone(segmentID string, comments int, originalText string) {
	line := fmt.Sprintf("    segment %s: %d comments", segmentID, comments)
	if originalText != "" {
		line += " | " + c.paint(Dim, Preview(originalText, 30))
	}
	c.println(line)
}

// WaitProgress shows how long the operator has been waited for. On a
// terminal the line is rewritten in place.
func (c *Console) WaitProgress(elapsed, timeout time.Duration) {
	msg := fmt.Sprintf("waiting for verification... %ds/%ds",
		int(elapsed.Seconds()), int(timeout.Seconds()))

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tty {
		fmt.Fprintf(c.out, "\r%s\r%s", strings.Repeat(" ", 60), c.paint(Yellow, msg))
		c.pending = true
		return
	}
	fmt.Fprintln(c.out, msg)
}

// Preview truncates s to n runes, marking the cut with an ellipsis
func Preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
