package main

import (
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/edulang/pseudo"
)

// runProgram executes the interpreter on its own goroutine and feeds the TUI
// through the events channel. Input requests carry a response channel the
// Update loop resolves once the user submits or cancels.
func runProgram(cfg appConfig, source string, stop *atomic.Bool, events chan<- tea.Msg) {
	defer close(events)
	host := &teaHost{events: events, stop: stop}
	var err error
	if cfg.seed >= 0 {
		err = pseudo.RunSeeded(source, host, cfg.seed)
	} else {
		err = pseudo.Run(source, host)
	}
	events <- vmDoneMsg{err: err}
}

type teaHost struct {
	events chan<- tea.Msg
	stop   *atomic.Bool
}

func (h *teaHost) Display(line string) {
	h.events <- vmOutputMsg{line: line}
}

func (h *teaHost) Input(prompt string) (string, bool) {
	resp := make(chan inputResp, 1)
	h.events <- vmPromptMsg{prompt: prompt, resp: resp}
	r := <-resp
	return r.value, !r.cancelled
}

func (h *teaHost) ShouldStop() bool {
	return h.stop.Load()
}
