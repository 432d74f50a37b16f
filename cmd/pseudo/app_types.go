package main

import tea "github.com/charmbracelet/bubbletea"

type appConfig struct {
	file string
	mode string
	seed int64
}

type vmStartedMsg struct {
	events <-chan tea.Msg
}

type vmOutputMsg struct {
	line string
}

type vmDoneMsg struct {
	err error
}

type inputResp struct {
	value     string
	cancelled bool
}

type vmPromptMsg struct {
	prompt string
	resp   chan inputResp
}

type pendingInput struct {
	prompt string
	resp   chan inputResp
}
