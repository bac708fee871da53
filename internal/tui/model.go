package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ragdocs/internal/answer"
	"ragdocs/internal/tokenize"
)

// Asker is the TUI-facing subset of the answer composer.
type Asker interface {
	Answer(ctx context.Context, query string) (answer.Answer, error)
}

type answeredMsg struct {
	query  string
	answer answer.Answer
	err    error
}

// Model is the Bubble Tea model for the chat console. Page 0 shows the
// answer; the following pages show each source document.
type Model struct {
	ctx       context.Context
	asker     Asker
	timeout   time.Duration
	input     textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	tokenizer *tokenize.Tokenizer
	answer    *answer.Answer
	subtitle  string
	status    string
	page      int
	busy      bool
	ready     bool
	lastQuery string
}

// New creates a new TUI model instance. Questions run under ctx, each
// bounded by timeout.
func New(ctx context.Context, asker Asker, subtitle string, timeout time.Duration) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return Model{
		ctx:       ctx,
		asker:     asker,
		timeout:   timeout,
		input:     ti,
		viewport:  vp,
		spinner:   sp,
		tokenizer: tokenize.New(),
		subtitle:  subtitle,
		status:    "Ready. Type a question.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) ask(q string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, m.timeout)
		defer cancel()
		a, err := m.asker.Answer(ctx, q)
		return answeredMsg{query: q, answer: a, err: err}
	}
}

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around result and query boxes
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		totalHeaderLines := 2                                    // header + subtitle
		totalFooterLines := 1                                    // status
		reserved := totalHeaderLines + totalFooterLines + qh + 1 // 1 spacer
		vh := msg.Height - reserved
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderPage())
		return m, nil
	case answeredMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.answer = nil
		} else {
			a := msg.answer
			m.answer = &a
			m.page = 0
			m.lastQuery = msg.query
			m.status = fmt.Sprintf("Answer for %q from %d document(s). Up/Down to browse sources.", msg.query, len(a.Retrieval.Documents))
		}
		m.viewport.SetContent(m.renderPage())
		m.viewport.GotoTop()
		return m, nil
	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		// Global quits
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.busy {
				return m, nil
			}
			m.busy = true
			m.status = fmt.Sprintf("Asking %q...", q)
			m.input.SetValue("")
			return m, tea.Batch(m.ask(q), m.spinner.Tick)
		case "down", "up":
			if n := m.pages(); n > 1 {
				step := 1
				if msg.String() == "up" {
					step = n - 1
				}
				m.page = (m.page + step) % n
				m.viewport.SetContent(m.renderPage())
				m.viewport.GotoTop()
				return m, nil
			}
		case "pgdown":
			m.viewport.HalfViewDown()
			return m, nil
		case "pgup":
			m.viewport.HalfViewUp()
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the TUI layout and current page.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Knowledge Base Q&A")
	subtitle := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.subtitle)
	input := queryBoxStyle.Render(m.input.View())
	status := m.status
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	status = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + subtitle + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) pages() int {
	if m.answer == nil {
		return 0
	}
	return 1 + len(m.answer.Retrieval.Documents)
}

func (m Model) renderPage() string {
	if m.answer == nil {
		return "No answer yet."
	}
	n := m.pages()
	if m.page == 0 {
		sources := m.answer.Sources()
		src := "none"
		if len(sources) > 0 {
			src = strings.Join(sources, ", ")
		}
		title := fmt.Sprintf("Answer  (1/%d)", n)
		return title + "\n\n" + m.answer.Text + "\n\n" + sourceStyle.Render("Sources: "+src)
	}
	doc := m.answer.Retrieval.Documents[m.page-1]
	title := fmt.Sprintf("Source %s  (%d/%d, %d chunks)", doc.DocumentID, m.page+1, n, len(doc.Chunks))
	return title + "\n\n" + m.highlightBestSentence(doc.Text, m.lastQuery)
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	sourceStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	sentenceRe     = regexp.MustCompile(`[^.!?。！？\n]+[.!?。！？]?`)
)

// highlightBestSentence marks the sentence sharing the most terms with query.
// Text outside the marked sentence is returned unchanged.
func (m Model) highlightBestSentence(text, query string) string {
	qTokens := toSet(m.tokenizer.Tokens(query))
	if len(qTokens) == 0 {
		return text
	}
	var best []int
	bestScore := 0
	for _, loc := range sentenceRe.FindAllStringIndex(text, -1) {
		score := 0
		for t := range toSet(m.tokenizer.Tokens(text[loc[0]:loc[1]])) {
			if _, ok := qTokens[t]; ok {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = loc
		}
	}
	if best == nil {
		return text
	}
	return text[:best[0]] + highlightStyle.Render(text[best[0]:best[1]]) + text[best[1]:]
}

func toSet(tokens []string) map[string]struct{} {
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}
