// internal/tui/tui.go
// Package tui provides the interactive terminal chat interface.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ragline/ragline/internal/appconfig"
	"github.com/ragline/ragline/internal/logging"
	"github.com/ragline/ragline/internal/metrics"
	"github.com/ragline/ragline/internal/rag"
	"github.com/ragline/ragline/internal/util"
)

// Answerer is the TUI-facing subset of the pipeline.
type Answerer interface {
	AnswerStream(ctx context.Context, question string) (<-chan string, <-chan error)
	IndexMetadata() rag.IndexMetadata
}

// chatMessage is one turn of the visible transcript. The transcript is
// display-only; every question goes through the full pipeline on its own.
type chatMessage struct {
	role    string
	content string
}

// streamChunkMsg carries one fragment of a streaming answer.
type streamChunkMsg string

// streamEndMsg signals the current answer finished cleanly.
type streamEndMsg struct{ elapsed time.Duration }

// streamErr signals the current answer failed.
type streamErr struct{ error }

// model is the Bubble Tea model for the chat session.
type model struct {
	ctx      context.Context
	cfg      *appconfig.Config
	pipeline Answerer

	viewport    viewport.Model
	textArea    textarea.Model
	spinner     spinner.Model
	transcript  []chatMessage
	responseBuf strings.Builder

	program          *tea.Program
	isLoading        bool
	width, height    int
	requestStartTime time.Time
}

func initialModel(ctx context.Context, cfg *appconfig.Config, pipeline Answerer) *model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	ta := textarea.New()
	ta.Placeholder = "Ask about your documents..."
	ta.Focus()
	ta.Prompt = "Ask: "
	ta.ShowLineNumbers = false
	ta.CharLimit = -1
	ta.SetHeight(1)
	ta.KeyMap.InsertNewline.SetEnabled(false)

	return &model{
		ctx:      ctx,
		cfg:      cfg,
		pipeline: pipeline,
		spinner:  s,
		textArea: ta,
		viewport: viewport.New(100, 5),
	}
}

// streamAnswerCmd runs the pipeline for one question and forwards fragments
// to the program as they arrive.
func streamAnswerCmd(ctx context.Context, p *tea.Program, pipeline Answerer, question string) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		go func() {
			fragments, errs := pipeline.AnswerStream(ctx, question)
			for fragment := range fragments {
				p.Send(streamChunkMsg(fragment))
			}
			if err := <-errs; err != nil {
				metrics.GetInstance().RecordRequest(false, time.Since(start), rag.ErrorCategory(err))
				p.Send(streamErr{error: err})
				return
			}
			metrics.GetInstance().RecordRequest(true, time.Since(start), "")
			p.Send(streamEndMsg{elapsed: time.Since(start)})
		}()
		return nil
	}
}

// Init starts the spinner animation.
func (m *model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update is the central update function for the Bubble Tea model.
func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.textArea.SetWidth(msg.Width - 3)
		headerHeight := 2
		footerHeight := 4
		m.viewport.Width = msg.Width
		m.viewport.Height = util.Max(3, msg.Height-headerHeight-footerHeight)
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()

	case streamChunkMsg:
		m.responseBuf.WriteString(string(msg))
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, nil

	case streamEndMsg:
		if m.responseBuf.Len() > 0 {
			m.transcript = append(m.transcript, chatMessage{role: "assistant", content: m.responseBuf.String()})
			m.responseBuf.Reset()
		}
		m.isLoading = false
		m.textArea.Focus()
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, nil

	case streamErr:
		m.isLoading = false
		partial := m.responseBuf.String()
		m.responseBuf.Reset()
		content := friendlyError(msg.error)
		if partial != "" {
			content = partial + "\n" + content
		}
		m.transcript = append(m.transcript, chatMessage{role: "error", content: content})
		m.textArea.Focus()
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, nil
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	m.textArea, cmd = m.textArea.Update(msg)
	cmds = append(cmds, cmd)

	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "enter" && !m.isLoading {
		question := strings.TrimSpace(m.textArea.Value())
		if question != "" {
			m.transcript = append(m.transcript, chatMessage{role: "user", content: question})
			m.textArea.Reset()
			m.isLoading = true
			m.requestStartTime = time.Now()
			m.viewport.SetContent(m.renderTranscript())
			m.viewport.GotoBottom()
			cmds = append(cmds, m.spinner.Tick, streamAnswerCmd(m.ctx, m.program, m.pipeline, question))
		}
	}

	if m.isLoading {
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

var (
	headerStyle    = lipgloss.NewStyle().Background(lipgloss.Color("62")).Foreground(lipgloss.Color("230")).Padding(0, 1)
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// View renders the chat layout.
func (m *model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	meta := m.pipeline.IndexMetadata()
	header := headerStyle.Render(fmt.Sprintf("ragline  |  %s  |  %d chunks", m.cfg.GenerateModel, meta.EntryCount))

	footer := m.textArea.View()
	if m.isLoading {
		timer := fmt.Sprintf("%.1fs", time.Since(m.requestStartTime).Seconds())
		footer = fmt.Sprintf("%s Thinking... %s", m.spinner.View(), timer)
	}
	help := helpStyle.Render("enter: send  |  ctrl+c: quit")

	return header + "\n\n" + m.viewport.View() + "\n\n" + footer + "\n" + help
}

// renderTranscript formats the full conversation, including any answer
// still streaming in.
func (m *model) renderTranscript() string {
	width := util.Max(20, m.viewport.Width-2)
	var b strings.Builder
	for _, turn := range m.transcript {
		switch turn.role {
		case "user":
			b.WriteString(userStyle.Render("You: ") + util.WrapToWidth(turn.content, width) + "\n\n")
		case "error":
			b.WriteString(errorStyle.Render(util.WrapToWidth(turn.content, width)) + "\n\n")
		default:
			b.WriteString(assistantStyle.Render(util.WrapToWidth(turn.content, width)) + "\n\n")
		}
	}
	if m.responseBuf.Len() > 0 {
		b.WriteString(assistantStyle.Render(util.WrapToWidth(m.responseBuf.String(), width)) + "\n\n")
	}
	if b.Len() == 0 {
		return helpStyle.Render("Ask a question about the ingested documents.")
	}
	return strings.TrimRight(b.String(), "\n")
}

// friendlyError maps pipeline errors to messages fit for the transcript.
func friendlyError(err error) string {
	detail := util.TruncateRunes(err.Error(), 300)
	switch rag.ErrorCategory(err) {
	case "validation":
		return "Invalid question: " + detail
	case "retrieval":
		return "Could not search the index: " + detail
	case "generation":
		return "The model did not answer: " + detail
	default:
		return "Error: " + detail
	}
}

// Run starts the interactive chat session and blocks until the user quits.
func Run(ctx context.Context, cfg *appconfig.Config, pipeline Answerer) error {
	m := initialModel(ctx, cfg, pipeline)
	p := tea.NewProgram(m, tea.WithAltScreen())
	m.program = p
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat interface failed: %w", err)
	}
	logging.LogEvent("[TUI] Chat session ended")
	return nil
}
