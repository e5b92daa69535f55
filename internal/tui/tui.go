// Package tui is the interactive chat front end. It renders the client state
// machine and applies each generation turn's result to the local project.
package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bleue740/huggy-code-haven-sub000/internal/vfs"
)

// Program is an alias for tea.Program, exposed so callers don't need
// to import bubbletea directly.
type Program = tea.Program

// NewProgram creates a BubbleTea program over project using the alternate
// screen buffer.
func NewProgram(project *vfs.Store, run TurnFunc, opts Options, progOpts ...tea.ProgramOption) *Program {
	all := append([]tea.ProgramOption{tea.WithAltScreen()}, progOpts...)
	return tea.NewProgram(NewModel(project, run, opts), all...)
}

// Run runs the chat program until the user quits and returns the final
// project.
func Run(project *vfs.Store, run TurnFunc, opts Options, progOpts ...tea.ProgramOption) (*vfs.Store, error) {
	final, err := NewProgram(project, run, opts, progOpts...).Run()
	if err != nil {
		return project, fmt.Errorf("TUI error: %w", err)
	}
	if m, ok := final.(Model); ok {
		return m.Project, nil
	}
	return project, nil
}
