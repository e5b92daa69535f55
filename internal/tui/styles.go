package tui

import "github.com/charmbracelet/lipgloss"

// Semantic color palette.
var (
	colorPrimary    = lipgloss.Color("#00BFFF")
	colorSuccess    = lipgloss.Color("#00E676")
	colorDanger     = lipgloss.Color("#FF5252")
	colorAccent     = lipgloss.Color("#FFD700")
	colorMuted      = lipgloss.Color("#636363")
	colorMutedLight = lipgloss.Color("#8C8C8C")
	colorWhite      = lipgloss.Color("#EEEEEE")
	colorSurface    = lipgloss.Color("#1E1E2E")
)

// Status icons for plan steps and generated files.
const (
	iconDone    = "✓"
	iconFailed  = "✗"
	iconWaiting = "·"
	iconWarn    = "!"
)

var (
	styleStatusBar = lipgloss.NewStyle().
			Background(colorSurface).
			Foreground(colorWhite).
			Bold(true).
			Padding(0, 1)

	styleStatusLabel = lipgloss.NewStyle().
				Foreground(colorPrimary).
				Bold(true)

	styleUser = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true)

	styleAssistant = lipgloss.NewStyle().
			Foreground(colorWhite)

	styleSystem = lipgloss.NewStyle().
			Foreground(colorMutedLight).
			Italic(true)

	styleError = lipgloss.NewStyle().
			Foreground(colorDanger).
			Bold(true)

	styleWarn = lipgloss.NewStyle().
			Foreground(colorAccent)

	styleDone = lipgloss.NewStyle().
			Foreground(colorSuccess)

	styleFooter = lipgloss.NewStyle().
			Foreground(colorMuted)
)
