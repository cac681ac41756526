package cmd

import (
	"io"
	"sync"

	"github.com/pterm/pterm"

	"github.com/huanfeng/apk-extractor/internal/session"
	"github.com/huanfeng/apk-extractor/pkg/utils"
)

// cliNotifier renders session events with pterm and mirrors them to the log.
type cliNotifier struct {
	mu    sync.Mutex
	out   io.Writer
	quiet bool
	bars  map[string]*utils.ProgressBar
	log   utils.Logger
}

func newCLINotifier(out io.Writer, quiet bool) *cliNotifier {
	return &cliNotifier{
		out:   out,
		quiet: quiet,
		bars:  make(map[string]*utils.ProgressBar),
		log:   utils.GetGlobalLogger(),
	}
}

// Notify handles one session event.
func (n *cliNotifier) Notify(e session.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if e.Level == session.LevelProgress {
		n.progress(e)
		return
	}

	if e.Level == session.LevelError {
		n.closeBar(e.Step, false)
	}
	if e.Level == session.LevelDebug {
		n.log.Debug("[%s] %s", e.Step, e.Message)
		return
	}

	// Quiet runs keep warnings and errors in the log only.
	if n.quiet {
		switch e.Level {
		case session.LevelWarn:
			n.log.Warn("[%s] %s", e.Step, e.Message)
		case session.LevelError:
			n.log.Error("[%s] %s", e.Step, e.Message)
		}
		return
	}
	n.log.Debug("[%s] %s", e.Step, e.Message)
	n.printer(e.Level).Println(e.Message)
}

func (n *cliNotifier) printer(level session.Level) *pterm.PrefixPrinter {
	var p pterm.PrefixPrinter
	switch level {
	case session.LevelSuccess:
		p = pterm.Success
	case session.LevelWarn:
		p = pterm.Warning
	case session.LevelError:
		p = pterm.Error
	default:
		p = pterm.Info
	}
	return p.WithWriter(n.out)
}

func (n *cliNotifier) progress(e session.Event) {
	bar, ok := n.bars[e.Step]
	if !ok {
		bar = utils.NewProgressBar(e.Total, e.Step, n.out, n.quiet)
		n.bars[e.Step] = bar
	}
	bar.Update(e.Current)
	if e.Total > 0 && e.Current >= e.Total {
		n.closeBar(e.Step, true)
	}
}

func (n *cliNotifier) closeBar(step string, ok bool) {
	bar, found := n.bars[step]
	if !found {
		return
	}
	if ok {
		bar.Finish()
	} else {
		bar.Fail()
	}
	delete(n.bars, step)
}

// Close stops any bar still running.
func (n *cliNotifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for step := range n.bars {
		n.closeBar(step, false)
	}
}
