// Package terminal renders an interactive planning session.
package terminal

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/abhirockzz/langchaingo-trip-planner/client"
	"github.com/abhirockzz/langchaingo-trip-planner/plan"
	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

const (
	colorReset = "\033[0m"
	colorBold  = "\033[1m"
	colorDim   = "\033[2m"
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
	colorCyan  = "\033[36m"
	colorGray  = "\033[90m"

	defaultWidth = 80
)

type Display struct {
	out      io.Writer
	rich     bool
	renderer *glamour.TermRenderer
}

// New returns a Display for f. Colors and markdown rendering are only used
// when f is a terminal.
func New(f *os.File) *Display {
	fd := int(f.Fd())
	rich := term.IsTerminal(fd)

	width := defaultWidth
	if rich {
		if w, _, err := term.GetSize(fd); err == nil && w > 20 {
			width = w
		}
	}
	return newDisplay(f, rich, width)
}

func newDisplay(out io.Writer, rich bool, width int) *Display {
	style := glamour.WithStandardStyle("notty")
	if rich {
		style = glamour.WithAutoStyle()
	}

	renderer, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width-10))
	if err != nil {
		renderer = nil
	}
	return &Display{out: out, rich: rich, renderer: renderer}
}

func (d *Display) paint(color, s string) string {
	if !d.rich {
		return s
	}
	return color + s + colorReset
}

func (d *Display) Welcome(serverURL, sessionID string) {
	fmt.Fprintln(d.out, d.paint(colorBold+colorCyan, "Trip planner"))
	fmt.Fprintf(d.out, "%s %s\n", d.paint(colorGray, "Server:"), serverURL)
	fmt.Fprintf(d.out, "%s %s\n", d.paint(colorGray, "Session:"), sessionID)
	fmt.Fprintf(d.out, "%s /exit | /clear | /history | Ctrl-C stops a reply\n", d.paint(colorGray, "Commands:"))
}

func (d *Display) Prompt() {
	fmt.Fprint(d.out, "\n"+d.paint(colorBold+colorGreen, "> "))
}

func (d *Display) StartReply() {
	fmt.Fprint(d.out, d.paint(colorGray, "assistant: "))
}

// Delta prints a content fragment as it arrives.
func (d *Display) Delta(delta string) {
	fmt.Fprint(d.out, delta)
}

func (d *Display) Action(a plan.ItineraryAction) {
	fmt.Fprintf(d.out, "\n%s %s", d.paint(colorCyan, "  ->"), describe(a))
}

// describe summarizes an action. Unknown kinds and payloads that do not
// decode are shown raw.
func describe(a plan.ItineraryAction) string {
	raw := fmt.Sprintf("%s %s", a.Type, string(a.Payload))
	if !a.Type.Known() {
		return raw
	}
	decoded, err := a.Decode()
	if err != nil {
		return raw
	}

	switch p := decoded.(type) {
	case *plan.RegenerateDayPayload:
		if p.Theme != "" {
			return fmt.Sprintf("regenerate day %d (%s)", p.Day, p.Theme)
		}
		return fmt.Sprintf("regenerate day %d", p.Day)
	case *plan.InsertActivityPayload:
		return fmt.Sprintf("add %q to day %d", p.Activity.Name, p.Day)
	case *plan.LightenDayPayload:
		return fmt.Sprintf("lighten day %d", p.Day)
	case *plan.RebalanceRoutePayload:
		return fmt.Sprintf("rebalance route for day %d", p.Day)
	case *plan.UpdateItineraryPayload:
		if p.MaxDailyBudget > 0 {
			return fmt.Sprintf("update itinerary (max %.0f per day)", p.MaxDailyBudget)
		}
		return "update itinerary"
	}
	return raw
}

// Finish prints the end of a reply. Completed replies are rendered once
// more as markdown on a terminal.
func (d *Display) Finish(out client.Outcome) {
	fmt.Fprintln(d.out)

	switch out.State {
	case client.StateCompleted:
		if d.rich && d.renderer != nil && out.Reply != nil {
			rendered, err := d.renderer.Render(out.Reply.Content)
			if err == nil {
				fmt.Fprintln(d.out, d.paint(colorDim, strings.Repeat("-", 40)))
				fmt.Fprint(d.out, rendered)
			}
		}
	case client.StateAborted:
		fmt.Fprintln(d.out, d.paint(colorGray, "[stopped]"))
	case client.StateFailed:
		fmt.Fprintln(d.out, d.paint(colorRed, client.FailureMessage))
	}
}

func (d *Display) History(msgs []plan.ConversationMessage) {
	if len(msgs) == 0 {
		fmt.Fprintln(d.out, d.paint(colorGray, "(no messages yet)"))
		return
	}
	for _, m := range msgs {
		fmt.Fprintf(d.out, "%s %s\n",
			d.paint(colorGray, fmt.Sprintf("[%s] %s:", m.CreatedAt.Local().Format("15:04:05"), m.Role)),
			m.Content)
	}
}

func (d *Display) Notice(format string, args ...any) {
	fmt.Fprintln(d.out, d.paint(colorGray, fmt.Sprintf(format, args...)))
}

func (d *Display) Error(err error) {
	fmt.Fprintln(d.out, d.paint(colorRed, "error: "+err.Error()))
}
