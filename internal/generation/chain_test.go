package generation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockProvider struct {
	mock.Mock
	name string
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func TestChainUsesPrimary(t *testing.T) {
	t.Parallel()

	primary := &mockProvider{name: "gemini"}
	fallback := &mockProvider{name: "mistral"}
	primary.On("Generate", mock.Anything, "prompt").Return("primary answer", nil).Once()

	reply, err := NewChain(zap.NewNop(), primary, fallback).Generate(context.Background(), "prompt")
	require.NoError(t, err)
	require.Equal(t, Reply{Text: "primary answer", Provider: "gemini"}, reply)
	primary.AssertExpectations(t)
	fallback.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestChainFallsBack(t *testing.T) {
	t.Parallel()

	primary := &mockProvider{name: "gemini"}
	fallback := &mockProvider{name: "mistral"}
	primary.On("Generate", mock.Anything, "prompt").Return("", errors.New("quota exceeded")).Once()
	fallback.On("Generate", mock.Anything, "prompt").Return("fallback answer", nil).Once()

	reply, err := NewChain(zap.NewNop(), primary, fallback).Generate(context.Background(), "prompt")
	require.NoError(t, err)
	require.Equal(t, "mistral", reply.Provider)
	require.Equal(t, "fallback answer", reply.Text)
	primary.AssertExpectations(t)
	fallback.AssertExpectations(t)
}

func TestChainAllFail(t *testing.T) {
	t.Parallel()

	primaryErr := errors.New("quota exceeded")
	primary := &mockProvider{name: "gemini"}
	fallback := &mockProvider{name: "mistral"}
	primary.On("Generate", mock.Anything, "prompt").Return("", primaryErr).Once()
	fallback.On("Generate", mock.Anything, "prompt").Return("", ErrMissingAPIKey).Once()

	chain := NewChain(nil, primary, fallback)
	require.Equal(t, []string{"gemini", "mistral"}, chain.Providers())

	_, err := chain.Generate(context.Background(), "prompt")
	require.ErrorIs(t, err, ErrGenerationFailed)
	require.ErrorIs(t, err, primaryErr)
	require.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestChainWithoutProviders(t *testing.T) {
	t.Parallel()

	_, err := NewChain(nil).Generate(context.Background(), "prompt")
	require.ErrorIs(t, err, ErrGenerationFailed)
}
