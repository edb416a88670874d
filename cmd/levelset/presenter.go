package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
)

// presenter renders the scheduler's streams. On a terminal it keeps a
// progress bar pinned below the log lines; otherwise it prints lines only.
type presenter struct {
	out      io.Writer
	bar      *progressbar.ProgressBar
	colorize bool
}

func newPresenter(out io.Writer, total int, interactive, colorize bool) *presenter {
	p := &presenter{out: out, colorize: colorize}
	if interactive && total > 0 {
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(out),
			progressbar.OptionSetDescription("normalizing"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(30),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionEnableColorCodes(colorize),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(out) }),
		)
	}
	return p
}

// consume blocks until both streams are closed.
func (p *presenter) consume(logs <-chan string, progress <-chan int) {
	for logs != nil || progress != nil {
		select {
		case line, ok := <-logs:
			if !ok {
				logs = nil
				continue
			}
			p.printLine(line)
		case completed, ok := <-progress:
			if !ok {
				progress = nil
				continue
			}
			if p.bar != nil {
				_ = p.bar.Set(completed)
			}
		}
	}
	if p.bar != nil && !p.bar.IsFinished() {
		_ = p.bar.Finish()
	}
}

func (p *presenter) printLine(line string) {
	if p.bar != nil {
		_ = p.bar.Clear()
	}
	fmt.Fprintln(p.out, p.decorate(line))
	if p.bar != nil {
		_ = p.bar.RenderBlank()
	}
}

func (p *presenter) decorate(line string) string {
	if !p.colorize {
		return line
	}
	switch {
	case strings.HasPrefix(line, "error: "):
		return ansiRed + line + ansiReset
	case strings.HasPrefix(line, "warning: "):
		return ansiYellow + line + ansiReset
	default:
		return line
	}
}
