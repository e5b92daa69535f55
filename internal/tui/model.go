package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bleue740/huggy-code-haven-sub000/internal/client"
	"github.com/bleue740/huggy-code-haven-sub000/internal/events"
	"github.com/bleue740/huggy-code-haven-sub000/internal/llm"
	"github.com/bleue740/huggy-code-haven-sub000/internal/orchestrator"
	"github.com/bleue740/huggy-code-haven-sub000/internal/patch"
	"github.com/bleue740/huggy-code-haven-sub000/internal/snapshot"
	"github.com/bleue740/huggy-code-haven-sub000/internal/vfs"
)

// TurnFunc runs one turn, emitting events into sink.
type TurnFunc func(ctx context.Context, req orchestrator.TurnRequest, sink events.Sink) (*events.Result, error)

// Entry is one line of the chat transcript.
type Entry struct {
	Role string
	Text string
}

// Options configures a chat Model.
type Options struct {
	Snapshot snapshot.Options
	// OnApply persists the project after a generation turn is applied.
	OnApply func(*vfs.Store) error
}

// Model is the chat program state. The turn lifecycle lives in State and
// moves only through client.Reduce.
type Model struct {
	State      client.State
	Project    *vfs.Store
	History    []llm.Message
	Transcript []Entry

	Input    textinput.Model
	Spinner  spinner.Model
	Viewport viewport.Model
	Help     help.Model
	Keys     KeyMap
	Width    int
	Height   int

	run     TurnFunc
	opts    Options
	cancel  context.CancelFunc
	stream  <-chan events.Event
	errc    <-chan error
	now     func() time.Time
	applied bool
}

// NewModel creates a chat model over project.
func NewModel(project *vfs.Store, run TurnFunc, opts Options) Model {
	ti := textinput.New()
	ti.Prompt = "▸ "
	ti.Placeholder = "describe the app you want, or ask a question"
	ti.CharLimit = 4000
	ti.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(colorPrimary)

	return Model{
		State:    client.Initial(),
		Project:  project,
		Input:    ti,
		Spinner:  s,
		Viewport: viewport.New(80, 20),
		Help:     help.New(),
		Keys:     DefaultKeyMap(),
		run:      run,
		opts:     opts,
		now:      time.Now,
	}
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles a message and returns the next model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width, m.Height = msg.Width, msg.Height
		m.Input.Width = msg.Width - 4
		m.Viewport.Width = msg.Width
		m.Viewport.Height = max(msg.Height-4, 3)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		if !m.State.Phase.Busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case MsgEvent:
		m.handleEvent(msg.Event)
		m.refresh()
		return m, m.next()

	case MsgTurnEnded:
		m.handleEnded(msg.Err)
		m.refresh()
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.Keys.Quit):
		if m.cancel != nil {
			m.cancel()
		}
		return m, tea.Quit
	case key.Matches(msg, m.Keys.Cancel):
		if m.cancel != nil {
			m.cancel()
		}
		return m, nil
	case key.Matches(msg, m.Keys.Reset):
		if m.State.Phase == client.PhaseError {
			m.State = client.Reduce(m.State, client.Reset())
			m.refresh()
		}
		return m, nil
	case key.Matches(msg, m.Keys.Up), key.Matches(msg, m.Keys.Down):
		var cmd tea.Cmd
		m.Viewport, cmd = m.Viewport.Update(msg)
		return m, cmd
	case key.Matches(msg, m.Keys.Send):
		return m.send()
	}

	var cmd tea.Cmd
	m.Input, cmd = m.Input.Update(msg)
	return m, cmd
}

// send starts a turn with the input line as the user message.
func (m Model) send() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.Input.Value())
	if text == "" || m.State.Phase.Busy() || m.stream != nil {
		return m, nil
	}
	m.Input.Reset()

	m.History = append(m.History, llm.Message{Role: "user", Content: text})
	m.Transcript = append(m.Transcript, Entry{Role: "user", Text: text})

	snap := snapshot.Build(m.Project, m.opts.Snapshot)
	req := orchestrator.TurnRequest{
		Messages:       append([]llm.Message(nil), m.History...),
		ProjectContext: snap.ProjectContext,
		FileTree:       snap.FileTree,
	}

	ctx, cancel := context.WithCancel(context.Background())
	sink := events.NewChanSink(16)
	errc := make(chan error, 1)
	run := m.run
	go func() {
		_, err := run(ctx, req, sink)
		errc <- err
		close(sink.C)
	}()

	m.cancel = cancel
	m.stream = sink.C
	m.errc = errc
	m.applied = false
	m.State = client.Reduce(m.State, client.Start(m.now()))
	m.refresh()
	return m, tea.Batch(m.Spinner.Tick, m.next())
}

// next waits for the next event of the running turn.
func (m Model) next() tea.Cmd {
	stream, errc := m.stream, m.errc
	if stream == nil {
		return nil
	}
	return func() tea.Msg {
		e, ok := <-stream
		if !ok {
			return MsgTurnEnded{Err: <-errc}
		}
		return MsgEvent{Event: e}
	}
}

func (m *Model) handleEvent(e events.Event) {
	m.State = client.Reduce(m.State, client.Event(e))

	switch e.Type {
	case events.TypeResult:
		m.applyResult(e.Result)
	case events.TypeCancelled:
		m.Transcript = append(m.Transcript, Entry{Role: "system", Text: "Turn cancelled."})
	}
}

func (m *Model) applyResult(res *events.Result) {
	if res == nil || m.applied {
		return
	}
	m.applied = true

	if res.Conversational {
		m.History = append(m.History, llm.Message{Role: "assistant", Content: res.Reply})
		m.Transcript = append(m.Transcript, Entry{Role: "assistant", Text: res.Reply})
		return
	}

	next, err := patch.Apply(m.Project, res)
	if err != nil {
		m.State = client.Reduce(m.State, client.Error(err.Error()))
		return
	}
	m.Project = next
	if m.opts.OnApply != nil {
		if err := m.opts.OnApply(next); err != nil {
			m.Transcript = append(m.Transcript, Entry{Role: "system", Text: "save failed: " + err.Error()})
		}
	}

	summary := summarize(res)
	m.History = append(m.History, llm.Message{Role: "assistant", Content: summary})
	m.Transcript = append(m.Transcript, Entry{Role: "assistant", Text: summary})
}

func (m *Model) handleEnded(err error) {
	if m.cancel != nil {
		m.cancel()
	}
	m.cancel = nil
	m.stream = nil
	m.errc = nil

	switch {
	case err == nil, errors.Is(err, orchestrator.ErrCancelled):
	case errors.Is(err, orchestrator.ErrBadRequest):
		m.State = client.Reduce(m.State, client.Error(err.Error()))
	default:
		// Fatal turn errors already arrived as a phase:error event.
		if m.State.Phase.Busy() {
			m.State = client.Reduce(m.State, client.Error(err.Error()))
		}
	}
}

func summarize(res *events.Result) string {
	var b strings.Builder
	if res.Intent != "" {
		b.WriteString(res.Intent)
		b.WriteString(": ")
	}
	paths := make([]string, 0, len(res.Files))
	for _, f := range res.Files {
		paths = append(paths, f.Path)
	}
	fmt.Fprintf(&b, "updated %s", strings.Join(paths, ", "))
	if len(res.DeletedFiles) > 0 {
		fmt.Fprintf(&b, "; deleted %s", strings.Join(res.DeletedFiles, ", "))
	}
	return b.String()
}

// refresh re-renders the transcript into the viewport.
func (m *Model) refresh() {
	m.Viewport.SetContent(m.body())
	m.Viewport.GotoBottom()
}
