package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"piecemeal/internal/buildpipeline"
	"piecemeal/internal/driver"
	"piecemeal/internal/ui"
)

type runOutcome struct {
	result *driver.Result
	err    error
}

// runWithUI executes the driver while a progress view consumes its events.
// Quitting the view cancels the run.
func runWithUI(ctx context.Context, title string, opts driver.Options) (*driver.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan buildpipeline.Event, 256)
	outcomeCh := make(chan runOutcome, 1)

	go func() {
		o := opts
		o.Progress = buildpipeline.ChannelSink{Ch: events}
		res, err := driver.Run(ctx, o)
		outcomeCh <- runOutcome{result: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, nil, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stderr), tea.WithContext(ctx))
	_, uiErr := program.Run()

	var outcome runOutcome
	select {
	case outcome = <-outcomeCh:
	default:
		cancel()
		go func() {
			for range events {
			}
		}()
		outcome = <-outcomeCh
	}
	if outcome.err != nil {
		return outcome.result, outcome.err
	}
	return outcome.result, uiErr
}
