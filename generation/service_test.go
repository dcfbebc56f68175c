package generation

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dreamsun/models"
	"dreamsun/providers"
)

type fakeProvider struct {
	endpoint string
	input    map[string]any
	out      *providers.Output
	err      error
	updates  []providers.QueueUpdate
}

func (f *fakeProvider) GetName() string { return "fake" }

func (f *fakeProvider) Submit(ctx context.Context, endpoint string, input map[string]any, onUpdate providers.UpdateFunc) (*providers.Output, error) {
	f.endpoint, f.input = endpoint, input
	for _, u := range f.updates {
		if onUpdate != nil {
			onUpdate(u)
		}
	}
	return f.out, f.err
}

func newTestService(t *testing.T, p *fakeProvider) *Service {
	t.Helper()
	d := editModel(true)
	d.Name = "Edit Model"
	d.ReferenceImage.MaxImages = 2
	reg, err := models.NewRegistry(textModel(), d)
	require.NoError(t, err)

	s := NewService(reg, map[string]providers.ImageProvider{models.ProviderFal: p})
	s.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return s
}

func TestGenerate(t *testing.T) {
	p := &fakeProvider{
		out: &providers.Output{
			RequestID: "req-9",
			Seed:      1234,
			Images:    []providers.Image{{URL: "https://cdn/out.jpg", Width: 1024, Height: 1024}},
		},
		updates: []providers.QueueUpdate{{Status: providers.StatusInQueue}, {Status: providers.StatusCompleted}},
	}
	s := newTestService(t, p)

	var seen []providers.QueueStatus
	res, err := s.Generate(context.Background(), Request{
		ModelID:            "edit",
		Prompt:             "  make it blue  ",
		ReferenceImageURLs: []string{"A", " ", "B", "C"},
	}, func(u providers.QueueUpdate) { seen = append(seen, u.Status) })
	require.NoError(t, err)

	assert.Equal(t, "fal-ai/edit", p.endpoint)
	assert.Equal(t, "make it blue", p.input["prompt"])
	assert.Equal(t, []string{"A", "B"}, p.input["image_urls"])
	assert.Equal(t, []providers.QueueStatus{providers.StatusInQueue, providers.StatusCompleted}, seen)

	assert.Equal(t, &Result{
		ImageURL:  "https://cdn/out.jpg",
		Width:     1024,
		Height:    1024,
		Seed:      1234,
		ModelName: "Edit Model",
		ModelID:   "edit",
		Prompt:    "make it blue",
		RequestID: "req-9",
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}, res)
}

func TestGenerateValidation(t *testing.T) {
	p := &fakeProvider{}
	s := newTestService(t, p)

	cases := []struct {
		name  string
		req   Request
		field string
	}{
		{"missing model", Request{Prompt: "p"}, "modelId"},
		{"blank prompt", Request{ModelID: "text", Prompt: "   "}, "prompt"},
		{"unknown model", Request{ModelID: "nope", Prompt: "p"}, "modelId"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Generate(context.Background(), tc.req, nil)
			var v *ValidationError
			require.ErrorAs(t, err, &v)
			assert.Equal(t, tc.field, v.Field)
			assert.True(t, IsValidation(err))
		})
	}
	assert.Nil(t, p.input, "provider must not be called for invalid requests")

	_, err := s.Generate(context.Background(), Request{ModelID: "nope", Prompt: "p"}, nil)
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestGenerateEmptyResult(t *testing.T) {
	s := newTestService(t, &fakeProvider{out: &providers.Output{Provider: "fal_ai", Images: nil}})

	_, err := s.Generate(context.Background(), Request{ModelID: "text", Prompt: "p"}, nil)
	require.Error(t, err)
	assert.True(t, providers.IsEmptyResult(err))
}

func TestGenerateProviderError(t *testing.T) {
	apiErr := &providers.APIError{StatusCode: 422, Message: "prompt too long"}
	s := newTestService(t, &fakeProvider{err: apiErr})

	_, err := s.Generate(context.Background(), Request{ModelID: "text", Prompt: "p"}, nil)
	assert.True(t, errors.Is(err, apiErr))
}

func TestGenerateMissingProvider(t *testing.T) {
	reg, err := models.NewRegistry(textModel())
	require.NoError(t, err)
	s := NewService(reg, nil)

	_, err = s.Generate(context.Background(), Request{ModelID: "text", Prompt: "p"}, nil)
	var apiErr *providers.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
}
