package application

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egdigital/egassist/internal/domain"
)

func mustAttachment(t *testing.T, card domain.OAuthCard) domain.Attachment {
	t.Helper()

	raw, err := json.Marshal(card)
	require.NoError(t, err)
	return domain.Attachment{ContentType: domain.ContentTypeOAuthCard, Content: raw}
}

func exchangeableCard() domain.OAuthCard {
	return domain.OAuthCard{
		ConnectionName:        "C1",
		TokenExchangeResource: &domain.TokenExchangeResource{ID: "R1", URI: "U1"},
	}
}

func TestInterceptPassesThroughNonMessageActivities(t *testing.T) {
	t.Parallel()

	identity := &fakeIdentity{}
	transport := newFakeTransport()
	ic := NewInterceptor(identity, transport, "user-1", nil)

	typing := domain.Activity{ID: "a1", Type: domain.ActivityTyping}
	got, deliver := ic.Intercept(typing)
	require.True(t, deliver)
	assert.Equal(t, typing, got)
}

func TestInterceptPassthroughFidelity(t *testing.T) {
	t.Parallel()

	identity := &fakeIdentity{}
	transport := newFakeTransport()
	ic := NewInterceptor(identity, transport, "user-1", nil)

	atts := []domain.Attachment{
		{ContentType: "application/vnd.microsoft.card.hero", Content: json.RawMessage(`{"title":"t"}`)},
		{ContentType: "image/png", ContentURL: "https://example.com/x.png"},
	}
	msg := domain.Activity{ID: "a2", Type: domain.ActivityMessage, Text: "hello there", Attachments: atts}

	got, deliver := ic.Intercept(msg)
	require.True(t, deliver)
	assert.Equal(t, msg, got)
	assert.Same(t, &atts[0], &got.Attachments[0], "attachment list must not be copied")
	assert.Empty(t, transport.postedActivities())
}

func TestInterceptStripsCardWithoutExchangeFields(t *testing.T) {
	t.Parallel()

	identity := &fakeIdentity{}
	transport := newFakeTransport()
	ic := NewInterceptor(identity, transport, "user-1", nil)

	card := domain.OAuthCard{ConnectionName: "C1"} // no tokenExchangeResource
	msg := domain.Activity{
		ID:   "a3",
		Type: domain.ActivityMessage,
		Attachments: []domain.Attachment{
			mustAttachment(t, card),
			{ContentType: "image/png", ContentURL: "https://example.com/x.png"},
		},
	}

	got, deliver := ic.Intercept(msg)
	ic.WaitExchanges()

	require.True(t, deliver)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "image/png", got.Attachments[0].ContentType)
	assert.Empty(t, identity.requestedScopes(), "no exchange for an incomplete card")
	assert.Empty(t, transport.postedActivities())
}

func TestInterceptStripsCardWithUndecodableContent(t *testing.T) {
	t.Parallel()

	for name, content := range map[string]json.RawMessage{
		"string": json.RawMessage(`"not-an-object"`),
		"array":  json.RawMessage(`[1,2]`),
		"null":   json.RawMessage(`null`),
		"empty":  nil,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			identity := &fakeIdentity{}
			transport := newFakeTransport()
			ic := NewInterceptor(identity, transport, "user-1", nil)

			msg := domain.Activity{
				ID:   "a7",
				Type: domain.ActivityMessage,
				Attachments: []domain.Attachment{
					{ContentType: domain.ContentTypeOAuthCard, Content: content},
					{ContentType: "image/png", ContentURL: "https://example.com/x.png"},
				},
			}

			got, deliver := ic.Intercept(msg)
			ic.WaitExchanges()

			require.True(t, deliver)
			require.Len(t, got.Attachments, 1)
			assert.Equal(t, "image/png", got.Attachments[0].ContentType)
			assert.Empty(t, identity.requestedScopes(), "no exchange for an undecodable card")
			assert.Empty(t, transport.postedActivities())
		})
	}
}

func TestInterceptExchangeCorrelatesOnResourceID(t *testing.T) {
	t.Parallel()

	identity := &fakeIdentity{}
	transport := newFakeTransport()
	ic := NewInterceptor(identity, transport, "user-1", nil)

	msg := domain.Activity{
		ID:          "activity-id-not-r1",
		Type:        domain.ActivityMessage,
		Attachments: []domain.Attachment{mustAttachment(t, exchangeableCard())},
	}

	got, deliver := ic.Intercept(msg)
	ic.WaitExchanges()

	require.True(t, deliver)
	assert.Empty(t, got.Attachments, "card must be stripped from the UI copy")
	assert.Equal(t, []string{"U1"}, identity.requestedScopes())

	posted := transport.postedActivities()
	require.Len(t, posted, 1)
	invoke := posted[0]
	assert.Equal(t, domain.ActivityInvoke, invoke.Type)
	assert.Equal(t, domain.InvokeTokenExchange, invoke.Name)
	assert.Equal(t, "user-1", invoke.From.ID)

	value, ok := invoke.Value.(domain.TokenExchangeValue)
	require.True(t, ok)
	assert.Equal(t, "R1", value.ID, "must carry the card's resource id, not the activity id")
	assert.Equal(t, "C1", value.ConnectionName)
	assert.Equal(t, "token-for-U1", value.Token)
}

func TestInterceptExchangeFailureIsSwallowed(t *testing.T) {
	t.Parallel()

	identity := &fakeIdentity{tokenErr: assert.AnError}
	transport := newFakeTransport()
	ic := NewInterceptor(identity, transport, "user-1", nil)

	msg := domain.Activity{
		ID:          "a5",
		Type:        domain.ActivityMessage,
		Text:        "extra context",
		Attachments: []domain.Attachment{mustAttachment(t, exchangeableCard())},
	}

	got, deliver := ic.Intercept(msg)
	ic.WaitExchanges()

	require.True(t, deliver)
	assert.Empty(t, got.Attachments, "card stripped regardless of exchange outcome")
	assert.Equal(t, "extra context", got.Text)
	assert.Empty(t, transport.postedActivities())
}

func TestInterceptSuppressesSignInPromptText(t *testing.T) {
	t.Parallel()

	identity := &fakeIdentity{}
	transport := newFakeTransport()
	ic := NewInterceptor(identity, transport, "user-1", nil)

	tests := []struct {
		name    string
		text    string
		deliver bool
	}{
		{name: "sign in prompt", text: "Please Sign In to continue", deliver: false},
		{name: "login prompt", text: "You need to LOGIN first", deliver: false},
		{name: "ordinary message", text: "your leave balance is 12 days", deliver: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, deliver := ic.Intercept(domain.Activity{Type: domain.ActivityMessage, Text: tt.text})
			assert.Equal(t, tt.deliver, deliver)
		})
	}
}

func TestInterceptExchangeDoesNotBlockStream(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	identity := &fakeIdentity{block: release}
	transport := newFakeTransport()
	ic := NewInterceptor(identity, transport, "user-1", nil)

	withCard := domain.Activity{
		ID:          "a6",
		Type:        domain.ActivityMessage,
		Attachments: []domain.Attachment{mustAttachment(t, exchangeableCard())},
	}
	plain := domain.Activity{ID: "a7", Type: domain.ActivityMessage, Text: "next message"}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = ic.Intercept(withCard)
		got, deliver := ic.Intercept(plain)
		if deliver && got.Text == "next message" {
			return
		}
		panic("later activity was not delivered intact")
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream blocked on an in-flight exchange")
	}

	assert.Empty(t, transport.postedActivities(), "exchange still pending")
	close(release)
	ic.WaitExchanges()
	assert.Len(t, transport.postedActivities(), 1)
}

func TestPipeRewritesInOrderAndClosesWithInput(t *testing.T) {
	t.Parallel()

	identity := &fakeIdentity{}
	transport := newFakeTransport()
	ic := NewInterceptor(identity, transport, "user-1", nil)

	in := make(chan domain.Activity, 3)
	in <- domain.Activity{ID: "1", Type: domain.ActivityMessage, Text: "first"}
	in <- domain.Activity{ID: "2", Type: domain.ActivityMessage, Text: "please sign in"}
	in <- domain.Activity{ID: "3", Type: domain.ActivityMessage, Text: "second"}
	close(in)

	out := ic.Pipe(context.Background(), in)

	var ids []string
	for activity := range out {
		ids = append(ids, activity.ID)
	}
	assert.Equal(t, []string{"1", "3"}, ids)
}
