package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"arbor/internal/checker"
	"arbor/internal/ui"
)

type runOutcome struct {
	summary checker.Summary
	err     error
}

// runWithUI runs c while a progress view renders its events. The sink of
// c must be the channel returned by newProgressChannel.
func runWithUI(ctx context.Context, c *checker.Checker, files []string, names []string, events chan checker.Event) (checker.Summary, error) {
	outcomeCh := make(chan runOutcome, 1)
	go func() {
		sum, err := c.Run(ctx, files)
		outcomeCh <- runOutcome{summary: sum, err: err}
		close(events)
	}()

	model := ui.NewProgressModel("arbor check", names, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout), tea.WithContext(ctx))
	_, uiErr := program.Run()
	// вид мог закрыться раньше (ctrl+c), не даём прогону заблокироваться
	go func() {
		for range events {
		}
	}()
	outcome := <-outcomeCh
	if outcome.err != nil {
		return outcome.summary, outcome.err
	}
	return outcome.summary, uiErr
}

func newProgressChannel() chan checker.Event {
	return make(chan checker.Event, 256)
}
