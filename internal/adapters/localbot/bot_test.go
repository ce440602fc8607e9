package localbot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egdigital/egassist/internal/domain"
)

func testTransport(t *testing.T) *Transport {
	t.Helper()
	return NewTransport(10*time.Millisecond, 5*time.Millisecond, nil, nil)
}

func receive(t *testing.T, ch <-chan domain.Activity) domain.Activity {
	t.Helper()

	select {
	case activity := <-ch:
		return activity
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for activity")
		return domain.Activity{}
	}
}

func TestStartConversationEmitsWelcome(t *testing.T) {
	t.Parallel()

	tr := testTransport(t)
	err := tr.Post(context.Background(), domain.Activity{
		Type: domain.ActivityEvent,
		Name: domain.EventStartConversation,
		From: domain.ChannelAccount{ID: "user-1"},
	})
	require.NoError(t, err)

	welcome := receive(t, tr.Activities())
	assert.Equal(t, domain.ActivityMessage, welcome.Type)
	assert.Equal(t, welcomeText, welcome.Text)
	assert.Equal(t, botID, welcome.From.ID)
}

func TestUserMessageEchoTypingReply(t *testing.T) {
	t.Parallel()

	tr := testTransport(t)
	err := tr.Post(context.Background(), domain.Activity{
		Type: domain.ActivityMessage,
		Text: "What types of leave can I take?",
		From: domain.ChannelAccount{ID: "user-1"},
	})
	require.NoError(t, err)

	echo := receive(t, tr.Activities())
	assert.Equal(t, "What types of leave can I take?", echo.Text)
	assert.Equal(t, "user-1", echo.From.ID)
	assert.NotEmpty(t, echo.ID, "echo gets a transport-assigned id")

	typing := receive(t, tr.Activities())
	assert.Equal(t, domain.ActivityTyping, typing.Type)

	reply := receive(t, tr.Activities())
	assert.Equal(t, botID, reply.From.ID)
	assert.Contains(t, reply.Text, "leave")
}

func TestReplyForKeywordTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		text     string
		contains string
	}{
		{name: "bonus", text: "am I eligible for the referral BONUS?", contains: "90 days"},
		{name: "harassment", text: "how do I report harassment", contains: "POSH"},
		{name: "travel", text: "travel reimbursement policy", contains: "travel policy"},
		{name: "ticket", text: "how to check ticket status?", contains: "Helpdesk"},
		{name: "fallback", text: "what is the meaning of life", contains: "processing your request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Contains(t, replyFor(tt.text), tt.contains)
		})
	}
}

func TestFirstReplySurvivesClose(t *testing.T) {
	t.Parallel()

	tr := NewTransport(10*time.Millisecond, 30*time.Millisecond, nil, nil)
	require.NoError(t, tr.Post(context.Background(), domain.Activity{
		Type: domain.ActivityMessage,
		Text: "hello",
		From: domain.ChannelAccount{ID: "user-1"},
	}))

	receive(t, tr.Activities()) // echo
	receive(t, tr.Activities()) // typing
	require.NoError(t, tr.Close())

	reply := receive(t, tr.Activities())
	assert.Equal(t, botID, reply.From.ID, "first reply must not be lost to a teardown")
}

func TestLaterRepliesDroppedAfterClose(t *testing.T) {
	t.Parallel()

	tr := NewTransport(30*time.Millisecond, 5*time.Millisecond, nil, nil)
	ctx := context.Background()

	require.NoError(t, tr.Post(ctx, domain.Activity{Type: domain.ActivityMessage, Text: "first", From: domain.ChannelAccount{ID: "u"}}))
	receive(t, tr.Activities()) // echo
	receive(t, tr.Activities()) // typing
	receive(t, tr.Activities()) // first reply

	require.NoError(t, tr.Post(ctx, domain.Activity{Type: domain.ActivityMessage, Text: "second", From: domain.ChannelAccount{ID: "u"}}))
	receive(t, tr.Activities()) // echo
	receive(t, tr.Activities()) // typing
	require.NoError(t, tr.Close())

	select {
	case activity := <-tr.Activities():
		t.Fatalf("unexpected activity after close: %q", activity.Text)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPostAfterCloseRejected(t *testing.T) {
	t.Parallel()

	tr := testTransport(t)
	require.NoError(t, tr.Close())

	err := tr.Post(context.Background(), domain.Activity{Type: domain.ActivityMessage, Text: "hi"})
	assert.ErrorIs(t, err, domain.ErrTransportClosed)
}

func TestSSODemoEmitsExchangeableCardAndAcknowledgesInvoke(t *testing.T) {
	t.Parallel()

	tr := testTransport(t)
	ctx := context.Background()

	require.NoError(t, tr.Post(ctx, domain.Activity{Type: domain.ActivityMessage, Text: "run the sso-demo please", From: domain.ChannelAccount{ID: "u"}}))

	receive(t, tr.Activities()) // echo
	receive(t, tr.Activities()) // typing
	nag := receive(t, tr.Activities())
	assert.Equal(t, signInNagText, nag.Text)

	carded := receive(t, tr.Activities())
	card, ok := carded.OAuthCard()
	require.True(t, ok)
	assert.True(t, card.ExchangeReady())

	require.NoError(t, tr.Post(ctx, domain.Activity{
		Type: domain.ActivityInvoke,
		Name: domain.InvokeTokenExchange,
		Value: domain.TokenExchangeValue{
			ID:             card.TokenExchangeResource.ID,
			ConnectionName: card.ConnectionName,
			Token:          "exchanged-token",
		},
		From: domain.ChannelAccount{ID: "u"},
	}))

	ack := receive(t, tr.Activities())
	assert.Contains(t, ack.Text, "signed in")
}
