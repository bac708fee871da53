package gemini

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"ragdocs/internal/domain"
	"ragdocs/internal/generation"
)

type fakeModels struct {
	calls   int
	errs    []error
	reply   string
	model   string
	prompts []string
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.model = model
	f.prompts = append(f.prompts, contents[0].Parts[0].Text)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: f.reply}}},
		}},
	}, nil
}

func TestGenerator_Generate(t *testing.T) {
	fake := &fakeModels{reply: " 30 days. \n"}
	g := newGenerator(fake, Config{})

	out, err := g.Generate(context.Background(), generation.Request{Prompt: "prompt text"})
	require.NoError(t, err)
	assert.Equal(t, "30 days.", out)
	assert.Equal(t, DefaultModel, fake.model)
	assert.Equal(t, []string{"prompt text"}, fake.prompts)
	assert.Equal(t, "gemini:"+DefaultModel, g.Name())
}

func TestGenerator_RetriesTemporaryErrors(t *testing.T) {
	fake := &fakeModels{
		reply: "ok",
		errs:  []error{genai.APIError{Code: 503, Message: "overloaded"}},
	}
	g := newGenerator(fake, Config{Timeout: time.Second, MaxRetries: 2})

	out, err := g.Generate(context.Background(), generation.Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 2, fake.calls)
}

func TestGenerator_PermanentError(t *testing.T) {
	fake := &fakeModels{errs: []error{genai.APIError{Code: 400, Message: "bad request"}}}
	g := newGenerator(fake, Config{MaxRetries: 3})

	_, err := g.Generate(context.Background(), generation.Request{Prompt: "p"})
	assert.ErrorIs(t, err, domain.ErrGenerationService)
	assert.Equal(t, 1, fake.calls)
}

func TestGenerator_EmptyReply(t *testing.T) {
	g := newGenerator(&fakeModels{reply: "  "}, Config{})
	_, err := g.Generate(context.Background(), generation.Request{Prompt: "p"})
	assert.ErrorIs(t, err, domain.ErrGenerationService)
}

func TestNewGenerator_RequiresKey(t *testing.T) {
	_, err := NewGenerator(context.Background(), Config{})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}
