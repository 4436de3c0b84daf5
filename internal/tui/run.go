// ABOUTME: Entry point for the live interaction view
// ABOUTME: Runs the tea.Program until the stream ends or the user stops it

package tui

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
)

// Options configures the live view.
type Options struct {
	Output        io.Writer
	Input         io.Reader
	Thoughts      bool
	MarkdownStyle string
}

// Run renders src until it ends. The returned model reports how it ended.
func Run(ctx context.Context, src Source, opts Options) (Model, error) {
	m := NewModel(src, opts)

	progOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if opts.Output != nil {
		progOpts = append(progOpts, tea.WithOutput(opts.Output))
	} else {
		progOpts = append(progOpts, tea.WithOutput(os.Stdout))
	}
	if opts.Input != nil {
		progOpts = append(progOpts, tea.WithInput(opts.Input))
	}

	final, err := tea.NewProgram(m, progOpts...).Run()
	if err != nil {
		_ = src.Close()
		return m, fmt.Errorf("bubble tea: %w", err)
	}
	fm, ok := final.(Model)
	if !ok {
		return m, fmt.Errorf("bubble tea: unexpected model %T", final)
	}
	return fm, nil
}
