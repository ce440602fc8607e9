package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egdigital/egassist/internal/domain"
)

func TestSubmitPostsUserMessage(t *testing.T) {
	t.Parallel()

	transport := newFakeTransport()
	p := NewPipeline(transport, "user-1", "User One", nil)

	require.NoError(t, p.Submit(context.Background(), "  what is my leave balance?  "))

	posted := transport.postedActivities()
	require.Len(t, posted, 1)
	assert.Equal(t, domain.ActivityMessage, posted[0].Type)
	assert.Equal(t, "what is my leave balance?", posted[0].Text)
	assert.Equal(t, "user-1", posted[0].From.ID)
}

func TestSubmitIgnoresEmptyInput(t *testing.T) {
	t.Parallel()

	transport := newFakeTransport()
	p := NewPipeline(transport, "user-1", "", nil)

	require.NoError(t, p.Submit(context.Background(), "   "))
	assert.Empty(t, transport.postedActivities())
}

func TestSelectPromptIndistinguishableFromTyping(t *testing.T) {
	t.Parallel()

	typedTransport := newFakeTransport()
	typed := NewPipeline(typedTransport, "user-1", "User One", nil)
	require.NoError(t, typed.Submit(context.Background(), "How do I refer someone?"))

	promptTransport := newFakeTransport()
	prompted := NewPipeline(promptTransport, "user-1", "User One", nil)
	require.NoError(t, prompted.SelectPrompt(context.Background(), domain.Prompt{
		ID:    "refer",
		Title: "How do I refer someone?",
	}))

	assert.Equal(t, typedTransport.postedActivities(), promptTransport.postedActivities())
}

func TestFirstSubmitCallbackFiresOnce(t *testing.T) {
	t.Parallel()

	transport := newFakeTransport()
	p := NewPipeline(transport, "user-1", "", nil)

	fired := 0
	p.OnFirstSubmit(func() { fired++ })

	require.NoError(t, p.Submit(context.Background(), "one"))
	require.NoError(t, p.Submit(context.Background(), "two"))
	assert.Equal(t, 1, fired)
}

func TestFirstSubmitLatchSurvivesFailedPost(t *testing.T) {
	t.Parallel()

	transport := newFakeTransport()
	transport.postErr = assert.AnError
	p := NewPipeline(transport, "user-1", "", nil)

	fired := 0
	p.OnFirstSubmit(func() { fired++ })

	require.Error(t, p.Submit(context.Background(), "one"))
	transport.postErr = nil
	require.NoError(t, p.Submit(context.Background(), "two"))
	assert.Equal(t, 1, fired)
}
