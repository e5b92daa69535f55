package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/bleue740/huggy-code-haven-sub000/internal/client"
)

// View renders the status bar, transcript, input line and key help.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.statusBar())
	b.WriteString("\n")
	b.WriteString(m.Viewport.View())
	b.WriteString("\n")
	b.WriteString(m.Input.View())
	b.WriteString("\n")
	b.WriteString(styleFooter.Render(m.Help.ShortHelpView(m.Keys.ShortHelp())))
	return b.String()
}

func (m Model) statusBar() string {
	phase := string(m.State.Phase)
	if m.State.Phase.Busy() {
		phase = m.Spinner.View() + " " + phase
		if !m.State.StartedAt.IsZero() {
			phase += fmt.Sprintf(" %s", m.now().Sub(m.State.StartedAt).Round(time.Second))
		}
	}
	line := styleStatusLabel.Render("haven") + "  " + phase
	if m.State.Message != "" {
		line += "  " + m.State.Message
	}
	line += fmt.Sprintf("  files:%d", m.Project.Len())
	bar := styleStatusBar
	if m.Width > 0 {
		bar = bar.Width(m.Width)
	}
	return bar.Render(line)
}

// body renders the transcript followed by the live turn panel.
func (m Model) body() string {
	var b strings.Builder
	for _, e := range m.Transcript {
		switch e.Role {
		case "user":
			b.WriteString(styleUser.Render("you: "))
			b.WriteString(e.Text)
		case "assistant":
			b.WriteString(styleAssistant.Render(e.Text))
		default:
			b.WriteString(styleSystem.Render(e.Text))
		}
		b.WriteString("\n\n")
	}
	b.WriteString(m.turnPanel())
	return b.String()
}

func (m Model) turnPanel() string {
	s := m.State
	var b strings.Builder

	if len(s.PlanSteps) > 0 && s.Phase != client.PhaseIdle {
		b.WriteString(styleStatusLabel.Render("plan"))
		b.WriteString("\n")
		for _, st := range s.PlanSteps {
			icon := iconWaiting
			if generated(s.GeneratedFiles, st.Target) {
				icon = styleDone.Render(iconDone)
			}
			fmt.Fprintf(&b, " %s %d. %s %s\n", icon, st.ID, st.Action, st.Target)
		}
	}

	for _, f := range s.Errors {
		fmt.Fprintf(&b, " %s %s\n", styleError.Render(iconFailed), f.String())
	}
	for _, f := range s.Warnings {
		fmt.Fprintf(&b, " %s %s\n", styleWarn.Render(iconWarn), f.String())
	}

	if s.Phase == client.PhaseError {
		b.WriteString(styleError.Render("error: " + s.Message))
		b.WriteString("\n")
	}
	return b.String()
}

func generated(paths []string, target string) bool {
	for _, p := range paths {
		if p == target {
			return true
		}
	}
	return false
}
