package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragdocs/internal/answer"
	"ragdocs/internal/retrieve"
)

type stubAsker struct {
	err error
}

func (s stubAsker) Answer(_ context.Context, query string) (answer.Answer, error) {
	if s.err != nil {
		return answer.Answer{}, s.err
	}
	return answer.Answer{
		Text: "Returns are accepted within 30 days.",
		Retrieval: retrieve.Result{
			Query: query,
			Documents: []retrieve.DocumentContext{
				{DocumentID: "returns", Text: "Shipping is free.\nReturns are accepted within 30 days."},
				{DocumentID: "faq", Text: "Stores open at nine."},
			},
		},
	}, nil
}

func send(t *testing.T, m tea.Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model, cmd
}

func TestModel_AskAndBrowse(t *testing.T) {
	m := New(context.Background(), stubAsker{}, "2 documents indexed", 0)
	assert.Equal(t, "Loading...", m.View())

	m, _ = send(t, m, tea.WindowSizeMsg{Width: 80, Height: 30})
	assert.Contains(t, m.View(), "No answer yet.")

	m.input.SetValue("  returns window ")
	m, cmd := send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.True(t, m.busy)
	assert.Empty(t, m.input.Value())

	msg := m.ask("returns window")()
	m, _ = send(t, m, msg)
	assert.False(t, m.busy)
	page := m.renderPage()
	assert.Contains(t, page, "Returns are accepted within 30 days.")
	assert.Contains(t, page, "Sources: returns, faq")

	m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 1, m.page)
	assert.Contains(t, m.renderPage(), "Source returns")
	assert.Contains(t, m.renderPage(), "Shipping is free.")

	m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyUp})
	m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 2, m.page)
	assert.Contains(t, m.renderPage(), "Source faq")
}

func TestModel_Error(t *testing.T) {
	m := New(context.Background(), stubAsker{err: errors.New("quota exceeded")}, "", 0)
	m, _ = send(t, m, tea.WindowSizeMsg{Width: 80, Height: 30})
	m, _ = send(t, m, m.ask("q")())
	assert.Contains(t, m.status, "quota exceeded")
	assert.Equal(t, "No answer yet.", m.renderPage())
}

type waitingAsker struct{}

func (waitingAsker) Answer(ctx context.Context, _ string) (answer.Answer, error) {
	<-ctx.Done()
	return answer.Answer{}, ctx.Err()
}

func TestModel_AskStopsWhenParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := New(ctx, waitingAsker{}, "", time.Hour)
	cancel()
	msg, ok := m.ask("q")().(answeredMsg)
	require.True(t, ok)
	assert.ErrorIs(t, msg.err, context.Canceled)
}

func TestModel_EmptyEnterDoesNothing(t *testing.T) {
	m := New(context.Background(), stubAsker{}, "", 0)
	m, cmd := send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.False(t, m.busy)
}

func TestModel_Quit(t *testing.T) {
	m := New(context.Background(), stubAsker{}, "", 0)
	_, cmd := send(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestHighlightBestSentence(t *testing.T) {
	m := New(context.Background(), stubAsker{}, "", 0)
	text := "Shipping is free.\nReturns are accepted within 30 days."
	assert.Equal(t, text, m.highlightBestSentence(text, "warranty"))
	out := m.highlightBestSentence(text, "returns accepted")
	assert.Contains(t, out, "Shipping is free.\n")
	assert.Contains(t, out, "Returns are accepted within 30 days.")
}
