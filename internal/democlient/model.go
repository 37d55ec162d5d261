package democlient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

var (
	userStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	botStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5"))
	systemStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("8"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4"))
)

type messagesMsg struct {
	messages []map[string]any
	cursor   int64
	err      error
}

type postResultMsg struct{ err error }

// Model is the terminal transcript/composer for one joined channel,
// shaped after memohai's floyd chat TUI (viewport + textinput, Update
// dispatching on tea.Msg kind), adapted from a single-agent chat
// transcript to a multi-party channel transcript driven by sync_messages
// long-polling instead of a token stream.
type Model struct {
	client    *Client
	ctx       context.Context
	channelID string
	cursor    int64

	viewport viewport.Model
	input    textinput.Model
	ready    bool
	lines    []string
	lastErr  string
}

// NewModel returns a Model ready to drive the demo TUI for channelID.
func NewModel(ctx context.Context, client *Client, channelID string) Model {
	ti := textinput.New()
	ti.Placeholder = "say something..."
	ti.Focus()
	ti.CharLimit = 2000
	return Model{client: client, ctx: ctx, channelID: channelID, input: ti}
}

func (m Model) Init() tea.Cmd {
	return m.waitForMessages()
}

func (m Model) waitForMessages() tea.Cmd {
	return func() tea.Msg {
		result, err := m.client.SyncMessages(m.ctx, m.channelID, m.cursor, 20*time.Second)
		if err != nil {
			return messagesMsg{err: err}
		}
		cursor, _ := result["cursor"].(float64)
		raw, _ := result["messages"].([]any)
		messages := make([]map[string]any, 0, len(raw))
		for _, item := range raw {
			if m, ok := item.(map[string]any); ok {
				messages = append(messages, m)
			}
		}
		return messagesMsg{messages: messages, cursor: int64(cursor)}
	}
}

func (m Model) postMessage(text string) tea.Cmd {
	return func() tea.Msg {
		_, err := m.client.PostMessage(m.ctx, m.channelID, text)
		return postResultMsg{err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		header := headerStyle.Render("memoh — channel " + m.channelID)
		vertical := lipgloss.Height(header) + lipgloss.Height(m.input.View()) + 1
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-vertical)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - vertical
		}
		m.input.Width = msg.Width
		m.viewport.SetContent(strings.Join(m.lines, "\n"))
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			text := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if text == "" {
				return m, nil
			}
			return m, m.postMessage(text)
		}

	case messagesMsg:
		if msg.err != nil {
			m.lastErr = msg.err.Error()
			return m, m.waitForMessages()
		}
		m.cursor = msg.cursor
		for _, body := range msg.messages {
			m.lines = append(m.lines, renderMessage(body))
		}
		if m.ready {
			m.viewport.SetContent(strings.Join(m.lines, "\n"))
			m.viewport.GotoBottom()
		}
		return m, m.waitForMessages()

	case postResultMsg:
		if msg.err != nil {
			m.lastErr = msg.err.Error()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if !m.ready {
		return "connecting...\n"
	}
	header := headerStyle.Render("memoh — channel " + m.channelID)
	view := fmt.Sprintf("%s\n%s\n%s", header, m.viewport.View(), m.input.View())
	if m.lastErr != "" {
		view += "\n" + systemStyle.Render("error: "+m.lastErr)
	}
	return view
}

func renderMessage(raw map[string]any) string {
	sender, _ := raw["sender"].(string)
	kind, _ := raw["kind"].(string)
	body, _ := raw["body"].(map[string]any)
	text := renderBody(body)

	switch {
	case kind == "system":
		return systemStyle.Render("* " + text)
	case strings.HasPrefix(kind, "bot") || kind == "prompt" || kind == "judge" || kind == "violation":
		return botStyle.Render(fmt.Sprintf("[%s] %s: %s", kind, sender, text))
	default:
		return userStyle.Render(sender+": ") + glamourRender(text)
	}
}

func renderBody(body map[string]any) string {
	if body == nil {
		return ""
	}
	if text, ok := body["text"].(string); ok && text != "" {
		return text
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return ""
	}
	return string(raw)
}

func glamourRender(text string) string {
	rendered, err := glamour.Render(text, "dark")
	if err != nil {
		return text
	}
	return strings.TrimRight(rendered, "\n")
}
