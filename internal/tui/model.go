// Package tui is the terminal chat client over the query API's streaming
// protocol.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kxddry/wikirag/internal/domain"
)

// Model is the Bubble Tea model for the chat client.
type Model struct {
	client    *StreamClient
	topK      int
	input     textinput.Model
	viewport  viewport.Model
	answer    string
	sources   []domain.Source
	question  string
	status    string
	streaming bool
	events    <-chan Event
	cancel    context.CancelFunc
	ready     bool
}

// New creates a chat model over the given stream client.
func New(client *StreamClient, topK int) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Scrapboxについて質問してください"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		client:   client,
		topK:     topK,
		input:    ti,
		viewport: vp,
		status:   "Ready. Type a question and press Enter.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

type streamEventMsg Event

func waitForEvent(events <-chan Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return streamEventMsg(Event{Done: true})
		}
		return streamEventMsg(ev)
	}
}

// Update handles key, window and stream events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, ah := answerBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + qh + 1 // header, status, input frame, spacer
		vh := msg.Height - reserved - ah
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = maxInt(20, msg.Width)
		m.viewport.Height = vh
		m.viewport.SetContent(m.renderAnswer())
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
		if msg.String() == "enter" && !m.streaming {
			q := strings.TrimSpace(m.input.Value())
			if q != "" {
				ctx, cancel := context.WithCancel(context.Background())
				m.cancel = cancel
				m.question = q
				m.answer = ""
				m.sources = nil
				m.streaming = true
				m.status = "Waiting for answer..."
				m.input.SetValue("")
				m.events = m.client.Query(ctx, q, m.topK)
				m.viewport.SetContent(m.renderAnswer())
				return m, waitForEvent(m.events)
			}
		}

	case streamEventMsg:
		ev := Event(msg)
		switch {
		case ev.Err != nil:
			m.streaming = false
			m.status = "Error: " + ev.Err.Error()
			return m, nil
		case ev.Done:
			m.streaming = false
			m.status = fmt.Sprintf("Answered %q (%d sources)", m.question, len(m.sources))
			m.viewport.SetContent(m.renderAnswer())
			return m, nil
		default:
			if ev.Sources != nil {
				m.sources = ev.Sources
			}
			if ev.Text != "" {
				m.answer += ev.Text
			}
			m.viewport.SetContent(m.renderAnswer())
			m.viewport.GotoBottom()
			return m, waitForEvent(m.events)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the chat layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Cosense RAG Chat")
	answer := answerBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + answer + "\n" + input + "\n" + status
}

func (m Model) renderAnswer() string {
	if m.question == "" {
		return "Ask a question to search the wiki."
	}
	var b strings.Builder
	b.WriteString(questionStyle.Render("Q: "+m.question) + "\n\n")
	text := m.answer
	if text == "" && m.streaming {
		text = "…"
	}
	b.WriteString(text)
	if len(m.sources) > 0 {
		b.WriteString("\n\n" + sourceHeaderStyle.Render("参考にしたページ:") + "\n")
		for _, src := range m.sources {
			b.WriteString(fmt.Sprintf("- %s (%s) score=%.2f\n", src.Title, src.URL, src.Score))
		}
	}
	return b.String()
}

var (
	answerBoxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	questionStyle     = lipgloss.NewStyle().Bold(true)
	sourceHeaderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	statusStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
