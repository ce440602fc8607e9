package chat

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/egdigital/egassist/internal/application"
	"github.com/egdigital/egassist/internal/domain"
)

const assistantName = "EG Assist"

// Options configures the interactive chat model.
type Options struct {
	UserName string
	Prompts  []domain.Prompt
	Log      logrus.FieldLogger
}

// SessionReady is sent by the wiring layer once the session bootstrap has
// opened the conversation stream. Until it arrives the model shows a
// waiting indicator and accepts no input.
type SessionReady struct {
	Pipeline   *application.Pipeline
	Activities <-chan domain.Activity
	UserID     string
	UserName   string
}

// OverlayDismissed hides the prompt overlay. The wiring layer sends it from
// the pipeline's first-submit hook so a submission from any path dismisses
// the overlay exactly once.
type OverlayDismissed struct{}

type activityMsg struct {
	activity domain.Activity
}

type streamClosedMsg struct{}

type postDoneMsg struct {
	err error
}

type chatEntry struct {
	author string
	text   string
	at     time.Time
	mine   bool
}

// Model is the bubbletea model for the interactive chat session.
type Model struct {
	opts   Options
	styles styles

	input textinput.Model
	pane  viewport.Model
	spin  spinner.Model

	pipeline   *application.Pipeline
	activities <-chan domain.Activity
	userID     string

	entries []chatEntry
	typing  bool
	overlay bool
	cursor  int
	ready   bool
	closed  bool

	width  int
	height int
}

func New(opts Options) Model {
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}

	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = "Type your question"
	input.CharLimit = 2000
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	return Model{
		opts:    opts,
		styles:  newStyles(),
		input:   input,
		pane:    viewport.New(80, 16),
		spin:    spin,
		overlay: len(opts.Prompts) > 0,
	}
}

func (m Model) Init() tea.Cmd {
	return m.spin.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.pane.Width = msg.Width
		m.pane.Height = max(msg.Height-6, 3)
		m.input.Width = max(msg.Width-4, 20)
		m.refreshPane()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case SessionReady:
		m.pipeline = msg.Pipeline
		m.activities = msg.Activities
		m.userID = msg.UserID
		if msg.UserName != "" {
			m.opts.UserName = msg.UserName
		}
		m.ready = true
		return m, waitForActivity(msg.Activities)

	case activityMsg:
		m = m.applyActivity(msg.activity)
		return m, waitForActivity(m.activities)

	case streamClosedMsg:
		m.closed = true
		m.typing = false
		return m, nil

	case OverlayDismissed:
		m.overlay = false
		return m, nil

	case postDoneMsg:
		if msg.err != nil {
			m.opts.Log.WithError(msg.err).Warn("message post failed")
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.pane, cmd = m.pane.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "esc":
		if m.overlay {
			m.overlay = false
			return m, nil
		}
		return m, tea.Quit

	case "up":
		if m.overlay && m.cursor > 0 {
			m.cursor--
			return m, nil
		}

	case "down":
		if m.overlay && m.cursor < len(m.opts.Prompts)-1 {
			m.cursor++
			return m, nil
		}

	case "enter":
		if !m.ready || m.pipeline == nil {
			return m, nil
		}
		if text := m.input.Value(); text != "" {
			m.input.Reset()
			m.overlay = false
			return m, m.submitCmd(text)
		}
		if m.overlay {
			prompt := m.opts.Prompts[m.cursor]
			m.overlay = false
			return m, m.selectPromptCmd(prompt)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) applyActivity(activity domain.Activity) Model {
	switch activity.Type {
	case domain.ActivityTyping:
		if activity.From.ID != m.userID {
			m.typing = true
		}
	case domain.ActivityMessage:
		if activity.Text == "" {
			return m
		}
		mine := activity.From.ID == m.userID
		author := activity.From.Name
		if author == "" {
			if mine {
				author = m.opts.UserName
			} else {
				author = assistantName
			}
		}
		m.entries = append(m.entries, chatEntry{
			author: author,
			text:   activity.Text,
			at:     time.Now(),
			mine:   mine,
		})
		if !mine {
			m.typing = false
		}
		if mine {
			m.overlay = false
		}
		m.refreshPane()
	}
	return m
}

func (m *Model) refreshPane() {
	m.pane.SetContent(renderEntries(m.entries, m.styles))
	m.pane.GotoBottom()
}

func (m Model) submitCmd(text string) tea.Cmd {
	pipeline := m.pipeline
	return func() tea.Msg {
		return postDoneMsg{err: pipeline.Submit(context.Background(), text)}
	}
}

func (m Model) selectPromptCmd(prompt domain.Prompt) tea.Cmd {
	pipeline := m.pipeline
	return func() tea.Msg {
		return postDoneMsg{err: pipeline.SelectPrompt(context.Background(), prompt)}
	}
}

func waitForActivity(activities <-chan domain.Activity) tea.Cmd {
	return func() tea.Msg {
		activity, ok := <-activities
		if !ok {
			return streamClosedMsg{}
		}
		return activityMsg{activity: activity}
	}
}
