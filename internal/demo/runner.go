// Package demo implements the colorized walkthrough of the coordination
// protocol: two agents race over a shared file and the demo narrates every
// gate as it fires.
package demo

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/dotcommander/scrum/internal/actions"
)

// ANSI color constants.
const (
	colorReset = "\033[0m"
	colorBold  = "\033[1m"
	colorDim   = "\033[2m"
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
	colorCyan  = "\033[36m"
)

// Runner drives the scripted scenario against a facade over a scratch
// database.
type Runner struct {
	svc   *actions.Service
	out   io.Writer
	color bool
	fast  bool
}

// NewRunner creates a demo runner. Color is enabled only when out is a
// terminal; fast skips the dramatic pauses.
func NewRunner(svc *actions.Service, out io.Writer, fast bool) *Runner {
	color := false
	if f, ok := out.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd())
	}
	return &Runner{svc: svc, out: out, color: color, fast: fast}
}

func (r *Runner) paint(code, s string) string {
	if !r.color {
		return s
	}
	return code + s + colorReset
}

func (r *Runner) pause(d time.Duration) {
	if !r.fast {
		time.Sleep(d)
	}
}

// act prints a section banner.
func (r *Runner) act(n int, title string) {
	fmt.Fprintf(r.out, "\n%s\n", r.paint(colorBold, fmt.Sprintf("=== Act %d: %s ===", n, title)))
	r.pause(400 * time.Millisecond)
}

// step narrates one protocol operation and its outcome. A nil err renders
// the payload; a non-nil err renders the rejection, which for this demo is
// usually the point.
func (r *Runner) step(label string, payload any, err error) {
	fmt.Fprintf(r.out, "  %s ", r.paint(colorCyan, label))
	if err != nil {
		fmt.Fprintf(r.out, "%s %v\n", r.paint(colorRed, "rejected:"), err)
	} else {
		fmt.Fprintf(r.out, "%s", r.paint(colorGreen, "ok"))
		if payload != nil {
			if raw, merr := json.Marshal(payload); merr == nil {
				fmt.Fprintf(r.out, " %s", r.paint(colorDim, clip(string(raw), 120)))
			}
		}
		fmt.Fprintln(r.out)
	}
	r.pause(200 * time.Millisecond)
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
